package web

import (
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	sdyn "github.com/sdyn/go-sdyn"
	"github.com/sdyn/go-sdyn/internal/format"
	"github.com/sdyn/go-sdyn/internal/table"
)

func (s *Server) eventList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := table.ParseState(r.URL.Query())
	page, err := clientFrom(ctx).ListEvents(ctx, s.listParams(st, eventSortFields))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	view, ok := remoteView(w, r, s.eventTable(true), page, st, eventSortFields)
	if !ok {
		return
	}
	s.render(w, r, http.StatusOK, "list", &Page{
		Title: "Арга хэмжээ",
		Data:  listData{Table: view, NewHref: "/events/new", NewLabel: "Арга хэмжээ нэмэх"},
	})
}

// eventBrowse lists events for members, paged in memory.
func (s *Server) eventBrowse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page, err := clientFrom(ctx).ListEvents(ctx, sdyn.ListParams{Page: 1, PageSize: clientSideLimit})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	view := s.eventTable(false).Apply(page.Data, table.ParseState(r.URL.Query()))
	s.render(w, r, http.StatusOK, "list", &Page{Title: "Арга хэмжээ", Data: listData{Table: view}})
}

func participantTable() *table.Table[sdyn.EventParticipant] {
	return table.New([]table.Column[sdyn.EventParticipant]{
		table.Text("name", "Гишүүн", func(p sdyn.EventParticipant) string { return p.MemberName }),
		table.Time("registered", "Бүртгүүлсэн", format.DateTimeLayout, func(p sdyn.EventParticipant) time.Time { return p.RegisteredAt }),
		table.Custom("attended", "Ирц", func(p sdyn.EventParticipant, _ int) template.HTML {
			if p.Attended {
				return "✓"
			}
			return "-"
		}),
	}, table.Options[sdyn.EventParticipant]{PageSize: clientSideLimit, EmptyMessage: "Бүртгүүлсэн хүн алга"})
}

func eventPeriod(e *sdyn.Event) string {
	out := format.DateTime(e.StartDate)
	if e.EndDate != nil {
		out += " - " + format.DateTime(*e.EndDate)
	}
	return out
}

func eventCapacity(e *sdyn.Event) string {
	if e.Capacity > 0 {
		return strconv.Itoa(e.Registered) + " / " + strconv.Itoa(e.Capacity)
	}
	return strconv.Itoa(e.Registered)
}

func (s *Server) eventView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	api := clientFrom(ctx)
	id := pathID(r)
	admin := s.admin()

	var (
		event        *sdyn.Event
		participants []sdyn.EventParticipant
		mine         []sdyn.Event
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		event, err = api.GetEvent(gctx, id)
		return err
	})
	if admin {
		g.Go(func() (err error) {
			participants, err = api.EventParticipants(gctx, id)
			return err
		})
	} else {
		g.Go(func() (err error) {
			mine, err = api.ProfileEvents(gctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		s.fail(w, r, err)
		return
	}
	if event == nil {
		s.notFound(w, r)
		return
	}

	base := "/events/" + url.PathEscape(event.ID)
	data := detailData{
		Heading: event.Title,
		Badge:   badge(string(event.Status)),
		Fields: []detailField{
			{"Огноо", text(eventPeriod(event))},
			{"Байршил", text(event.Location)},
			{"Байгууллага", organizationLink(event.OrganizationID, event.OrganizationName)},
			{"Бүртгүүлсэн", text(eventCapacity(event))},
		},
		Body: renderMarkdown(event.Description),
	}
	if admin {
		data.Actions = []action{
			{Href: base + "/edit", Label: "Засах"},
			{Href: base + "/participants", Label: "Ирц бүртгэх"},
			{Href: base + "/delete", Label: "Устгах", Danger: true},
		}
		data.Sections = []section{{
			Title: "Оролцогчид (" + strconv.Itoa(len(participants)) + ")",
			Table: participantTable().Apply(participants, sectionState(r, "p_")),
		}}
	} else {
		registered := false
		for _, e := range mine {
			if e.ID == event.ID {
				registered = true
				break
			}
		}
		switch {
		case registered:
			data.Fields = append(data.Fields, detailField{"Таны бүртгэл", text("Бүртгүүлсэн")})
		case event.Full():
			data.Fields = append(data.Fields, detailField{"Таны бүртгэл", text("Хүний тоо дүүрсэн")})
		case event.Status == sdyn.EventUpcoming:
			data.Actions = []action{{Href: base + "/register", Label: "Бүртгүүлэх", Post: true}}
		}
	}
	s.render(w, r, http.StatusOK, "detail", &Page{Title: event.Title, Data: data})
}

func (s *Server) eventRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := pathID(r)
	if err := clientFrom(ctx).RegisterForEvent(ctx, id); err != nil {
		s.fail(w, r, err)
		return
	}
	redirect(w, r, "/events/"+url.PathEscape(id), "registered")
}

func newEventForm(orgs []sdyn.Organization) *form {
	return &form{
		Title:  "Шинэ арга хэмжээ",
		Action: "/events",
		Submit: "Бүртгэх",
		Cancel: "/events",
		Fields: eventFields(orgs),
	}
}

func editEventForm(id string, orgs []sdyn.Organization) *form {
	return &form{
		Title:  "Арга хэмжээ засах",
		Action: "/events/" + url.PathEscape(id),
		Submit: "Хадгалах",
		Cancel: "/events/" + url.PathEscape(id),
		Fields: eventFields(orgs),
	}
}

func (s *Server) eventNew(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgs, err := organizationChoices(ctx, clientFrom(ctx))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.renderForm(w, r, http.StatusOK, newEventForm(orgs).bind(url.Values{"status": {string(sdyn.EventUpcoming)}}))
}

func (s *Server) eventCreate(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}
	in, errs := parseEvent(r.PostForm)
	if len(errs) > 0 {
		s.invalid(w, r, newEventForm(reloadChoices(r, "")), errs)
		return
	}
	ctx := r.Context()
	if _, err := clientFrom(ctx).CreateEvent(ctx, in); err != nil {
		s.rejected(w, r, newEventForm(reloadChoices(r, "")), err)
		return
	}
	redirect(w, r, "/events", "created")
}

func (s *Server) eventEdit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	api := clientFrom(ctx)

	var (
		event *sdyn.Event
		orgs  []sdyn.Organization
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		event, err = api.GetEvent(gctx, pathID(r))
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
	if event == nil {
		s.notFound(w, r)
		return
	}
	s.renderForm(w, r, http.StatusOK, editEventForm(event.ID, orgs).bind(eventValues(event)))
}

func (s *Server) eventUpdate(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}
	id := pathID(r)
	in, errs := parseEvent(r.PostForm)
	if len(errs) > 0 {
		s.invalid(w, r, editEventForm(id, reloadChoices(r, "")), errs)
		return
	}
	ctx := r.Context()
	if _, err := clientFrom(ctx).UpdateEvent(ctx, id, in); err != nil {
		s.rejected(w, r, editEventForm(id, reloadChoices(r, "")), err)
		return
	}
	redirect(w, r, "/events/"+url.PathEscape(id), "updated")
}

func (s *Server) eventDeleteConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	event, err := clientFrom(ctx).GetEvent(ctx, pathID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if event == nil {
		s.notFound(w, r)
		return
	}
	base := "/events/" + url.PathEscape(event.ID)
	s.render(w, r, http.StatusOK, "confirm", &Page{
		Title: "Арга хэмжээ устгах",
		Data: confirmData{
			Message: event.Title + " арга хэмжээг устгах уу? " + strconv.Itoa(event.Registered) + " хүн бүртгүүлсэн байна.",
			Action:  base + "/delete",
			Submit:  "Устгах",
			Cancel:  base,
			Danger:  true,
		},
	})
}

func (s *Server) eventDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := clientFrom(ctx).DeleteEvent(ctx, pathID(r)); err != nil {
		s.fail(w, r, err)
		return
	}
	redirect(w, r, "/events", "deleted")
}

// participantsData is the data of the attendance sheet.
type participantsData struct {
	Event        *sdyn.Event
	Participants []sdyn.EventParticipant
	Action       string
	Cancel       string
}

func (s *Server) eventParticipants(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	api := clientFrom(ctx)
	id := pathID(r)

	var (
		event        *sdyn.Event
		participants []sdyn.EventParticipant
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		event, err = api.GetEvent(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		participants, err = api.EventParticipants(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		s.fail(w, r, err)
		return
	}
	if event == nil {
		s.notFound(w, r)
		return
	}
	base := "/events/" + url.PathEscape(event.ID)
	s.render(w, r, http.StatusOK, "participants", &Page{
		Title: event.Title + " - ирц",
		Data: participantsData{
			Event:        event,
			Participants: participants,
			Action:       base + "/attendance",
			Cancel:       base,
		},
	})
}

// eventAttendance saves the attendance sheet. Every listed participant is
// posted as member_id; the checked ones also as attended.
func (s *Server) eventAttendance(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}
	present, absent := splitAttendance(r.PostForm)
	ctx := r.Context()
	api := clientFrom(ctx)
	id := pathID(r)
	if len(present) > 0 {
		if err := api.MarkAttendance(ctx, id, present, true); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	if len(absent) > 0 {
		if err := api.MarkAttendance(ctx, id, absent, false); err != nil {
			s.fail(w, r, err)
			return
		}
	}
	redirect(w, r, "/events/"+url.PathEscape(id), "attendance")
}

func splitAttendance(values url.Values) (present, absent []string) {
	checked := make(map[string]bool, len(values["attended"]))
	for _, id := range values["attended"] {
		checked[id] = true
	}
	seen := make(map[string]bool, len(values["member_id"]))
	for _, id := range values["member_id"] {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if checked[id] {
			present = append(present, id)
		} else {
			absent = append(absent, id)
		}
	}
	return present, absent
}
