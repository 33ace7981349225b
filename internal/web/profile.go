package web

import (
	"net/http"

	"golang.org/x/sync/errgroup"

	sdyn "github.com/sdyn/go-sdyn"
	"github.com/sdyn/go-sdyn/internal/format"
)

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	api := clientFrom(ctx)
	user := sessionFrom(ctx).User

	var (
		member *sdyn.Member
		events []sdyn.Event
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		member, err = api.Profile(gctx)
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

	data := detailData{
		Heading: user.DisplayName(),
		Fields: []detailField{
			{"Нэвтрэх нэр", text(user.Username)},
			{"И-мэйл", text(user.Email)},
		},
	}
	if member == nil {
		data.Body = text("Таны нэвтрэх эрхэд гишүүний бүртгэл холбогдоогүй байна.")
	} else {
		data.Heading = member.FullName()
		data.Badge = badge(string(member.Status))
		data.Fields = append(data.Fields,
			detailField{"Гишүүний дугаар", text(member.MemberID)},
			detailField{"Утас", text(format.Phone(member.Phone))},
			detailField{"Хаяг", text(member.Address)},
			detailField{"Байгууллага", organizationLink(member.OrganizationID, member.OrganizationName)},
			detailField{"Элссэн", text(format.OptDate(member.JoinedAt))},
		)
		data.Actions = []action{{Href: "/profile/edit", Label: "Засах"}}
	}
	data.Sections = []section{{
		Title: "Бүртгүүлсэн арга хэмжээ",
		Table: s.eventTable(false).Apply(events, sectionState(r, "ev_")),
	}}
	s.render(w, r, http.StatusOK, "detail", &Page{Title: "Миний мэдээлэл", Data: data})
}

func profileForm() *form {
	return &form{
		Title:  "Миний мэдээлэл засах",
		Action: "/profile/edit",
		Submit: "Хадгалах",
		Cancel: "/profile",
		Fields: memberFields(nil, false),
	}
}

func (s *Server) profileEdit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	member, err := clientFrom(ctx).Profile(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if member == nil {
		s.notFound(w, r)
		return
	}
	s.renderForm(w, r, http.StatusOK, profileForm().bind(memberValues(member)))
}

func (s *Server) profileUpdate(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}
	in, errs := parseMember(r.PostForm)
	// Members cannot move themselves to another organization.
	in.OrganizationID = ""
	if len(errs) > 0 {
		s.invalid(w, r, profileForm(), errs)
		return
	}
	ctx := r.Context()
	if _, err := clientFrom(ctx).UpdateProfile(ctx, in); err != nil {
		s.rejected(w, r, profileForm(), err)
		return
	}
	redirect(w, r, "/profile", "updated")
}
