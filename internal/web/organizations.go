package web

import (
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/sync/errgroup"

	sdyn "github.com/sdyn/go-sdyn"
	"github.com/sdyn/go-sdyn/internal/format"
	"github.com/sdyn/go-sdyn/internal/table"
)

func (s *Server) organizationList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := table.ParseState(r.URL.Query())
	page, err := clientFrom(ctx).ListOrganizations(ctx, s.listParams(st, organizationSortFields))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	view, ok := remoteView(w, r, s.organizationTable(true), page, st, organizationSortFields)
	if !ok {
		return
	}
	data := listData{Table: view}
	if sessionFrom(ctx).IsNationalAdmin() {
		data.NewHref = "/organizations/new"
		data.NewLabel = "Байгууллага нэмэх"
	}
	s.render(w, r, http.StatusOK, "list", &Page{Title: "Байгууллагууд", Data: data})
}

// organizationBrowse lists every organization for members, paged in memory.
func (s *Server) organizationBrowse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgs, err := organizationChoices(ctx, clientFrom(ctx))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	view := s.organizationTable(false).Apply(orgs, table.ParseState(r.URL.Query()))
	s.render(w, r, http.StatusOK, "list", &Page{Title: "Байгууллагууд", Data: listData{Table: view}})
}

func (s *Server) organizationView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	api := clientFrom(ctx)
	id := pathID(r)

	var (
		org     *sdyn.Organization
		members *sdyn.Page[sdyn.Member]
		stats   *sdyn.OrganizationStats
	)
	admin := s.admin()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		org, err = api.GetOrganization(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		members, err = api.OrganizationMembers(gctx, id, sdyn.ListParams{Page: 1, PageSize: clientSideLimit})
		return err
	})
	if admin {
		g.Go(func() (err error) {
			stats, err = api.OrganizationStats(gctx, id)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		s.fail(w, r, err)
		return
	}
	if org == nil {
		s.notFound(w, r)
		return
	}

	data := detailData{
		Heading: org.Name,
		Fields: []detailField{
			{"Түвшин", text(format.LevelLabel(string(org.Level)))},
			{"Код", text(org.Code)},
			{"Дээд байгууллага", organizationLink(org.ParentID, org.ParentName)},
			{"И-мэйл", text(org.Email)},
			{"Утас", text(format.Phone(org.Phone))},
			{"Хаяг", text(org.Address)},
			{"Нийт гишүүн", text(format.Number(org.TotalMembers))},
			{"Идэвхтэй гишүүн", text(format.Number(org.ActiveMembers))},
		},
		Sections: []section{{
			Title: "Гишүүд (" + strconv.Itoa(members.Total) + ")",
			Table: s.memberTable(admin).Apply(members.Data, table.ParseState(r.URL.Query())),
		}},
	}
	if stats != nil {
		data.Cards = organizationCards(stats)
	}
	if admin {
		base := "/organizations/" + url.PathEscape(org.ID)
		data.Actions = append(data.Actions, action{Href: base + "/edit", Label: "Засах"})
		if sessionFrom(ctx).IsNationalAdmin() {
			data.Actions = append(data.Actions, action{Href: base + "/delete", Label: "Устгах", Danger: true})
		}
	}
	s.render(w, r, http.StatusOK, "detail", &Page{Title: org.Name, Data: data})
}

func organizationCards(st *sdyn.OrganizationStats) []statCard {
	return []statCard{
		{Label: "Нийт гишүүн", Value: format.Number(st.TotalMembers)},
		{Label: "Идэвхтэй гишүүн", Value: format.Number(st.ActiveMembers)},
		{Label: "Хүлээгдэж буй", Value: format.Number(st.PendingMembers)},
		{Label: "Арга хэмжээ", Value: format.Number(st.TotalEvents)},
		{Label: "Төлөгдсөн татвар", Value: format.Currency(st.PaidFees), Note: "Нийт " + format.Currency(st.TotalFees)},
	}
}

func newOrganizationForm(parents []sdyn.Organization) *form {
	return &form{
		Title:  "Шинэ байгууллага",
		Action: "/organizations",
		Submit: "Бүртгэх",
		Cancel: "/organizations",
		Fields: organizationFields(parents),
	}
}

func editOrganizationForm(id string, parents []sdyn.Organization) *form {
	return &form{
		Title:  "Байгууллага засах",
		Action: "/organizations/" + url.PathEscape(id),
		Submit: "Хадгалах",
		Cancel: "/organizations/" + url.PathEscape(id),
		Fields: organizationFields(parents),
	}
}

func (s *Server) organizationNew(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgs, err := organizationChoices(ctx, clientFrom(ctx))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.renderForm(w, r, http.StatusOK, newOrganizationForm(orgs))
}

func (s *Server) organizationCreate(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}
	in, errs := parseOrganization(r.PostForm)
	if len(errs) > 0 {
		s.invalid(w, r, newOrganizationForm(reloadChoices(r, "")), errs)
		return
	}
	ctx := r.Context()
	if _, err := clientFrom(ctx).CreateOrganization(ctx, in); err != nil {
		s.rejected(w, r, newOrganizationForm(reloadChoices(r, "")), err)
		return
	}
	redirect(w, r, "/organizations", "created")
}

func (s *Server) organizationEdit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	api := clientFrom(ctx)

	var (
		org  *sdyn.Organization
		orgs []sdyn.Organization
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		org, err = api.GetOrganization(gctx, pathID(r))
		return err
	})
	g.Go(func() (err error) {
		orgs, err = organizationChoices(gctx, api)
		return err
	})
	if err := g.Wait(); err != nil {
		s.fail(w, r, err)
		return
	}
	if org == nil {
		s.notFound(w, r)
		return
	}
	parents := make([]sdyn.Organization, 0, len(orgs))
	for _, o := range orgs {
		if o.ID != org.ID {
			parents = append(parents, o)
		}
	}
	s.renderForm(w, r, http.StatusOK, editOrganizationForm(org.ID, parents).bind(organizationValues(org)))
}

func (s *Server) organizationUpdate(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}
	id := pathID(r)
	in, errs := parseOrganization(r.PostForm)
	if in.ParentID == id {
		errs.fail("parent_id", "Байгууллага өөрийнхөө дээд байгууллага байж болохгүй")
	}
	if len(errs) > 0 {
		s.invalid(w, r, editOrganizationForm(id, reloadChoices(r, id)), errs)
		return
	}
	ctx := r.Context()
	if _, err := clientFrom(ctx).UpdateOrganization(ctx, id, in); err != nil {
		s.rejected(w, r, editOrganizationForm(id, reloadChoices(r, id)), err)
		return
	}
	redirect(w, r, "/organizations/"+url.PathEscape(id), "updated")
}

func (s *Server) organizationDeleteConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	org, err := clientFrom(ctx).GetOrganization(ctx, pathID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if org == nil {
		s.notFound(w, r)
		return
	}
	base := "/organizations/" + url.PathEscape(org.ID)
	s.render(w, r, http.StatusOK, "confirm", &Page{
		Title: "Байгууллага устгах",
		Data: confirmData{
			Message: org.Name + " байгууллагыг устгах уу? " + strconv.Itoa(org.TotalMembers) + " гишүүн харьяалагдаж байна.",
			Action:  base + "/delete",
			Submit:  "Устгах",
			Cancel:  base,
			Danger:  true,
		},
	})
}

func (s *Server) organizationDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := clientFrom(ctx).DeleteOrganization(ctx, pathID(r)); err != nil {
		s.fail(w, r, err)
		return
	}
	redirect(w, r, "/organizations", "deleted")
}
