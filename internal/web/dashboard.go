package web

import (
	"net/http"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	sdyn "github.com/sdyn/go-sdyn"
	"github.com/sdyn/go-sdyn/internal/format"
)

const dashboardRows = 5

type statCard struct {
	Label string
	Value string
	Note  string
	Href  string
}

type dashboardData struct {
	Greeting string
	Cards    []statCard
	Sections []section
}

func (s *Server) adminDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	api := clientFrom(ctx)

	var (
		stats    *sdyn.DashboardStats
		members  *sdyn.Page[sdyn.Member]
		upcoming *sdyn.Page[sdyn.Event]
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats, err = api.DashboardStats(gctx)
		return err
	})
	g.Go(func() (err error) {
		members, err = api.ListMembers(gctx, sdyn.ListParams{Page: 1, PageSize: dashboardRows})
		return err
	})
	g.Go(func() (err error) {
		upcoming, err = api.ListEvents(gctx, sdyn.ListParams{Page: 1, PageSize: dashboardRows, Status: string(sdyn.EventUpcoming)})
		return err
	})
	if err := g.Wait(); err != nil {
		s.fail(w, r, err)
		return
	}

	s.render(w, r, http.StatusOK, "dashboard", &Page{
		Title: "Хянах самбар",
		Data: dashboardData{
			Greeting: sessionFrom(ctx).User.DisplayName(),
			Cards:    statCards(stats),
			Sections: []section{
				{Title: "Сүүлд бүртгэгдсэн гишүүд", Table: s.memberTable(true).Apply(members.Data, sectionState(r, "m_"))},
				{Title: "Удахгүй болох арга хэмжээ", Table: s.eventTable(true).Apply(upcoming.Data, sectionState(r, "ev_"))},
			},
		},
	})
}

func statCards(st *sdyn.DashboardStats) []statCard {
	return []statCard{
		{Label: "Нийт гишүүн", Value: format.Number(st.TotalMembers), Href: "/members"},
		{Label: "Идэвхтэй гишүүн", Value: format.Number(st.ActiveMembers), Note: "Өсөлт " + format.Percent(st.MemberGrowth)},
		{Label: "Байгууллага", Value: format.Number(st.TotalOrganizations), Href: "/organizations"},
		{Label: "Удахгүй болох арга хэмжээ", Value: format.Number(st.UpcomingEvents), Note: "Нийт " + format.Number(st.TotalEvents), Href: "/events"},
		{Label: "Төлөгдсөн татвар", Value: format.Currency(st.PaidFees), Note: "Цуглалт " + format.Percent(st.FeeCollectionRate), Href: "/fees"},
		{Label: "Төлөгдөөгүй татвар", Value: format.Currency(st.PendingFees), Href: "/fees"},
	}
}

// memberDashboard shows the signed-in member's own profile, fees and
// registrations.
func (s *Server) memberDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	api := clientFrom(ctx)
	sess := sessionFrom(ctx)

	var (
		profile *sdyn.Member
		fees    []sdyn.MembershipFee
		events  []sdyn.Event
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		profile, err = api.Profile(gctx)
		return err
	})
	g.Go(func() (err error) {
		fees, err = api.ProfileFees(gctx)
		return err
	})
	g.Go(func() (err error) {
		events, err = api.ProfileEvents(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.fail(w, r, err)
		return
	}

	data := dashboardData{Greeting: sess.User.DisplayName()}
	if profile == nil {
		data.Cards = []statCard{{Label: "Гишүүнчлэл", Value: "Бүртгэлгүй", Note: "Гишүүний бүртгэл олдсонгүй", Href: "/profile"}}
	} else {
		data.Greeting = profile.FullName()
		data.Cards = []statCard{
			{Label: "Гишүүний дугаар", Value: profile.MemberID, Href: "/profile"},
			{Label: "Төлөв", Value: format.StatusLabel(string(profile.Status))},
			{Label: "Байгууллага", Value: profile.OrganizationName},
		}
	}
	sum := summarizeFees(fees)
	data.Cards = append(data.Cards, statCard{Label: "Төлөгдөөгүй татвар", Value: format.Currency(sum.Pending), Href: "/fees"})

	upcoming := upcomingEvents(events, s.now())
	data.Sections = []section{
		{Title: "Миний арга хэмжээ", Table: s.eventTable(false).Apply(upcoming, sectionState(r, "ev_"))},
		{Title: "Миний татвар", Table: s.feeTable(false).Apply(fees, sectionState(r, "fee_"))},
	}
	s.render(w, r, http.StatusOK, "dashboard", &Page{Title: "Нүүр", Data: data})
}

// upcomingEvents returns up to dashboardRows events that have not ended,
// soonest first.
func upcomingEvents(events []sdyn.Event, now time.Time) []sdyn.Event {
	out := make([]sdyn.Event, 0, len(events))
	for _, e := range events {
		end := e.StartDate
		if e.EndDate != nil {
			end = *e.EndDate
		}
		if e.Status == sdyn.EventCancelled || end.Before(now) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	if len(out) > dashboardRows {
		out = out[:dashboardRows]
	}
	return out
}
