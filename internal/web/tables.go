package web

import (
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	sdyn "github.com/sdyn/go-sdyn"
	"github.com/sdyn/go-sdyn/internal/format"
	"github.com/sdyn/go-sdyn/internal/table"
)

// sectionState reads the state of one of several tables on a page. Each
// table pages, sorts and searches under its own prefixed query keys. The
// flash message is not carried into the table's links.
func sectionState(r *http.Request, prefix string) table.State {
	q := r.URL.Query()
	q.Del("msg")
	return table.ParseSection(q, prefix)
}

// clientSideLimit is the page size requested when the member portal loads a
// whole list to page through it in memory.
const clientSideLimit = 1000

func badge(status string) template.HTML {
	st := format.StatusDisplay(status)
	return template.HTML(fmt.Sprintf(`<span class="badge %s %s">%s</span>`,
		st.Color.Bg, st.Color.Text, template.HTMLEscapeString(st.Label)))
}

func link(href, label string) template.HTML {
	return template.HTML(fmt.Sprintf(`<a href="%s">%s</a>`,
		template.HTMLEscapeString(href), template.HTMLEscapeString(label)))
}

func (s *Server) memberTable(admin bool) *table.Table[sdyn.Member] {
	cols := []table.Column[sdyn.Member]{
		table.Text("member_id", "Дугаар", func(m sdyn.Member) string { return m.MemberID }),
		table.Text("name", "Овог нэр", sdyn.Member.FullName),
		table.Text("organization", "Байгууллага", func(m sdyn.Member) string { return m.OrganizationName }),
		table.Text("phone", "Утас", func(m sdyn.Member) string { return m.Phone }).
			WithRender(func(m sdyn.Member, _ int) template.HTML {
				return template.HTML(template.HTMLEscapeString(format.Phone(m.Phone)))
			}),
		table.Text("status", "Төлөв", func(m sdyn.Member) string { return string(m.Status) }).
			WithRender(func(m sdyn.Member, _ int) template.HTML { return badge(string(m.Status)) }),
		table.Time("joined", "Элссэн", format.DateLayout, func(m sdyn.Member) time.Time {
			if m.JoinedAt == nil {
				return time.Time{}
			}
			return *m.JoinedAt
		}),
	}
	opts := table.Options[sdyn.Member]{
		PageSize:  s.cfg.PageSize,
		SearchAll: admin,
		SearchFields: []table.Field[sdyn.Member]{
			{Key: "name", Value: sdyn.Member.FullName},
			{Key: "member_id", Value: func(m sdyn.Member) string { return m.MemberID }},
			{Key: "email", Value: func(m sdyn.Member) string { return m.Email }},
		},
		EmptyMessage: "Гишүүн олдсонгүй",
	}
	if admin {
		opts.RowHref = func(m sdyn.Member) string { return "/members/" + url.PathEscape(m.ID) }
	}
	return table.New(cols, opts)
}

func (s *Server) organizationTable(admin bool) *table.Table[sdyn.Organization] {
	cols := []table.Column[sdyn.Organization]{
		table.Text("name", "Нэр", func(o sdyn.Organization) string { return o.Name }),
		table.Text("level", "Түвшин", func(o sdyn.Organization) string { return format.LevelLabel(string(o.Level)) }),
		table.Text("parent", "Дээд байгууллага", func(o sdyn.Organization) string { return o.ParentName }),
		table.Int("members", "Гишүүд", func(o sdyn.Organization) int { return o.TotalMembers }).WithClass("num"),
		table.Int("active", "Идэвхтэй", func(o sdyn.Organization) int { return o.ActiveMembers }).WithClass("num"),
	}
	opts := table.Options[sdyn.Organization]{
		PageSize:  s.cfg.PageSize,
		SearchAll: admin,
		SearchFields: []table.Field[sdyn.Organization]{
			{Key: "name", Value: func(o sdyn.Organization) string { return o.Name }},
			{Key: "code", Value: func(o sdyn.Organization) string { return o.Code }},
		},
		RowHref:      func(o sdyn.Organization) string { return "/organizations/" + url.PathEscape(o.ID) },
		EmptyMessage: "Байгууллага олдсонгүй",
	}
	return table.New(cols, opts)
}

func (s *Server) eventTable(admin bool) *table.Table[sdyn.Event] {
	cols := []table.Column[sdyn.Event]{
		table.Text("title", "Гарчиг", func(e sdyn.Event) string { return e.Title }),
		table.Time("start", "Огноо", format.DateTimeLayout, func(e sdyn.Event) time.Time { return e.StartDate }),
		table.Text("location", "Байршил", func(e sdyn.Event) string { return e.Location }),
		table.Int("registered", "Бүртгүүлсэн", func(e sdyn.Event) int { return e.Registered }).
			WithClass("num").
			WithRender(func(e sdyn.Event, _ int) template.HTML {
				if e.Capacity > 0 {
					return template.HTML(fmt.Sprintf("%d / %d", e.Registered, e.Capacity))
				}
				return template.HTML(strconv.Itoa(e.Registered))
			}),
		table.Text("status", "Төлөв", func(e sdyn.Event) string { return string(e.Status) }).
			WithRender(func(e sdyn.Event, _ int) template.HTML { return badge(string(e.Status)) }),
	}
	return table.New(cols, table.Options[sdyn.Event]{
		PageSize:  s.cfg.PageSize,
		SearchAll: admin,
		SearchFields: []table.Field[sdyn.Event]{
			{Key: "title", Value: func(e sdyn.Event) string { return e.Title }},
			{Key: "location", Value: func(e sdyn.Event) string { return e.Location }},
		},
		RowHref:      func(e sdyn.Event) string { return "/events/" + url.PathEscape(e.ID) },
		EmptyMessage: "Арга хэмжээ олдсонгүй",
	})
}

func (s *Server) feeTable(admin bool) *table.Table[sdyn.MembershipFee] {
	cols := []table.Column[sdyn.MembershipFee]{
		table.Int("year", "Он", func(f sdyn.MembershipFee) int { return f.Year }),
		table.Decimal("amount", "Дүн", func(f sdyn.MembershipFee) decimal.Decimal { return f.Amount }).
			WithClass("num").
			WithRender(func(f sdyn.MembershipFee, _ int) template.HTML {
				return template.HTML(template.HTMLEscapeString(format.Currency(f.Amount)))
			}),
		table.Text("status", "Төлөв", func(f sdyn.MembershipFee) string { return string(f.Status) }).
			WithRender(func(f sdyn.MembershipFee, _ int) template.HTML { return badge(string(f.Status)) }),
		table.Time("paid", "Төлсөн", format.DateLayout, func(f sdyn.MembershipFee) time.Time {
			if f.PaidAt == nil {
				return time.Time{}
			}
			return *f.PaidAt
		}),
	}
	if admin {
		cols = append([]table.Column[sdyn.MembershipFee]{
			table.Text("member", "Гишүүн", func(f sdyn.MembershipFee) string { return f.MemberName }),
		}, cols...)
		cols = append(cols, table.Custom("actions", "", func(f sdyn.MembershipFee, _ int) template.HTML {
			id := url.PathEscape(f.ID)
			out := link("/fees/"+id+"/edit", "Засах")
			if f.Status != sdyn.FeePaid && f.Status != sdyn.FeeWaived {
				out += " " + link("/fees/"+id+"/approve", "Батлах")
			}
			return out
		}))
	}
	return table.New(cols, table.Options[sdyn.MembershipFee]{
		PageSize:  s.cfg.PageSize,
		SearchAll: admin,
		SearchFields: []table.Field[sdyn.MembershipFee]{
			{Key: "year", Value: func(f sdyn.MembershipFee) string { return strconv.Itoa(f.Year) }},
			{Key: "status", Value: func(f sdyn.MembershipFee) string { return format.StatusLabel(string(f.Status)) }},
		},
		EmptyMessage: "Татварын мэдээлэл алга",
	})
}

func historyTable() *table.Table[sdyn.MemberHistory] {
	return table.New([]table.Column[sdyn.MemberHistory]{
		table.Time("date", "Огноо", format.DateTimeLayout, func(h sdyn.MemberHistory) time.Time { return h.CreatedAt }),
		table.Text("action", "Үйлдэл", func(h sdyn.MemberHistory) string { return h.Action }),
		table.Custom("change", "Өөрчлөлт", func(h sdyn.MemberHistory, _ int) template.HTML {
			if h.OldValue == "" && h.NewValue == "" {
				return "-"
			}
			return badge(h.OldValue) + " → " + badge(h.NewValue)
		}),
		table.Text("reason", "Шалтгаан", func(h sdyn.MemberHistory) string { return h.Reason }),
	}, table.Options[sdyn.MemberHistory]{PageSize: 50, EmptyMessage: "Түүх алга"})
}

// listData is the data of the shared list page.
type listData struct {
	Table    interface{}
	NewHref  string
	NewLabel string
	Links    []action
	Summary  []detailField
}

// Sort fields of the server-paged lists, by column key. Columns missing here
// cannot be sorted on those lists: the backend only orders by its own
// fields, and sorting one page in memory would misorder the whole list.
var (
	memberSortFields = map[string]string{
		"member_id": "member_id",
		"name":      "last_name",
		"phone":     "phone",
		"status":    "status",
		"joined":    "joined_at",
	}
	organizationSortFields = map[string]string{
		"name":  "name",
		"level": "level",
	}
	eventSortFields = map[string]string{
		"title":    "title",
		"start":    "start_date",
		"location": "location",
		"status":   "status",
	}
	feeSortFields = map[string]string{
		"year":   "year",
		"amount": "amount",
		"status": "status",
		"paid":   "paid_at",
	}
)

// listParams is the backend query of a server-paged list.
func (s *Server) listParams(st table.State, sortFields map[string]string) sdyn.ListParams {
	p := sdyn.ListParams{Page: st.Page, PageSize: s.cfg.PageSize, Search: st.Search}
	if field, ok := sortFields[st.SortKey]; ok {
		p.SortBy = field
		p.SortOrder = sdyn.SortAsc
		if st.Desc {
			p.SortOrder = sdyn.SortDesc
		}
	}
	return p
}

// remoteView wraps a backend page. A page past the end redirects to the last
// page instead of showing an empty table.
func remoteView[T any](w http.ResponseWriter, r *http.Request, tbl *table.Table[T], page *sdyn.Page[T], st table.State, sortFields map[string]string) (table.View[T], bool) {
	if st.Page > 1 && page.TotalPages > 0 && st.Page > page.TotalPages {
		http.Redirect(w, r, r.URL.Path+st.WithPage(page.TotalPages).Link(), http.StatusFound)
		return table.View[T]{}, false
	}
	v := tbl.Remote(page.Data, page.Total, st)
	for i, h := range v.Headers {
		if _, ok := sortFields[h.Key]; !ok {
			v.Headers[i].Sortable = false
			v.Headers[i].Active = false
			v.Headers[i].Href = ""
		}
	}
	return v, true
}
