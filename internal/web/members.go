package web

import (
	"html/template"
	"net/http"
	"net/url"

	"golang.org/x/sync/errgroup"

	sdyn "github.com/sdyn/go-sdyn"
	"github.com/sdyn/go-sdyn/internal/format"
	"github.com/sdyn/go-sdyn/internal/table"
)

func (s *Server) memberList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := table.ParseState(r.URL.Query())
	page, err := clientFrom(ctx).ListMembers(ctx, s.listParams(st, memberSortFields))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	view, ok := remoteView(w, r, s.memberTable(true), page, st, memberSortFields)
	if !ok {
		return
	}
	s.render(w, r, http.StatusOK, "list", &Page{
		Title: "Гишүүд",
		Data:  listData{Table: view, NewHref: "/members/new", NewLabel: "Гишүүн нэмэх"},
	})
}

func newMemberForm(orgs []sdyn.Organization) *form {
	return &form{
		Title:  "Шинэ гишүүн",
		Action: "/members",
		Submit: "Бүртгэх",
		Cancel: "/members",
		Fields: memberFields(orgs, true),
	}
}

func editMemberForm(id string, orgs []sdyn.Organization) *form {
	return &form{
		Title:  "Гишүүний мэдээлэл засах",
		Action: "/members/" + url.PathEscape(id),
		Submit: "Хадгалах",
		Cancel: "/members/" + url.PathEscape(id),
		Fields: memberFields(orgs, true),
	}
}

func (s *Server) memberNew(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgs, err := organizationChoices(ctx, clientFrom(ctx))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.renderForm(w, r, http.StatusOK, newMemberForm(orgs))
}

func (s *Server) memberCreate(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}
	in, errs := parseMember(r.PostForm)
	if len(errs) > 0 {
		s.invalid(w, r, newMemberForm(reloadChoices(r, "")), errs)
		return
	}
	ctx := r.Context()
	if _, err := clientFrom(ctx).CreateMember(ctx, in); err != nil {
		s.rejected(w, r, newMemberForm(reloadChoices(r, "")), err)
		return
	}
	redirect(w, r, "/members", "created")
}

func (s *Server) memberView(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	api := clientFrom(ctx)
	id := pathID(r)

	var (
		member  *sdyn.Member
		history []sdyn.MemberHistory
		fees    []sdyn.MembershipFee
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		member, err = api.GetMember(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		history, err = api.MemberHistory(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		fees, err = api.MemberFees(gctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		s.fail(w, r, err)
		return
	}
	if member == nil {
		s.notFound(w, r)
		return
	}

	base := "/members/" + url.PathEscape(id)
	feeTbl := s.feeTable(false)
	s.render(w, r, http.StatusOK, "detail", &Page{
		Title: member.FullName(),
		Data: detailData{
			Heading: member.FullName(),
			Badge:   badge(string(member.Status)),
			Fields: []detailField{
				{"Гишүүний дугаар", text(member.MemberID)},
				{"И-мэйл", text(member.Email)},
				{"Утас", text(format.Phone(member.Phone))},
				{"Хаяг", text(member.Address)},
				{"Байгууллага", organizationLink(member.OrganizationID, member.OrganizationName)},
				{"Элссэн", text(format.OptDate(member.JoinedAt))},
				{"Бүртгэсэн", text(format.DateTime(member.CreatedAt))},
			},
			Actions: []action{
				{Href: base + "/edit", Label: "Засах"},
				{Href: base + "/status", Label: "Төлөв өөрчлөх"},
				{Href: base + "/delete", Label: "Устгах", Danger: true},
			},
			Sections: []section{
				{Title: "Татвар", Table: feeTbl.Apply(fees, sectionState(r, "fee_"))},
				{Title: "Түүх", Table: historyTable().Apply(history, sectionState(r, "hist_"))},
			},
		},
	})
}

func organizationLink(id, name string) template.HTML {
	if id == "" {
		return text(name)
	}
	if name == "" {
		name = id
	}
	return link("/organizations/"+url.PathEscape(id), name)
}

func (s *Server) memberEdit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	api := clientFrom(ctx)

	var (
		member *sdyn.Member
		orgs   []sdyn.Organization
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		member, err = api.GetMember(gctx, pathID(r))
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
	if member == nil {
		s.notFound(w, r)
		return
	}
	s.renderForm(w, r, http.StatusOK, editMemberForm(member.ID, orgs).bind(memberValues(member)))
}

func (s *Server) memberUpdate(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}
	id := pathID(r)
	in, errs := parseMember(r.PostForm)
	if len(errs) > 0 {
		s.invalid(w, r, editMemberForm(id, reloadChoices(r, "")), errs)
		return
	}
	ctx := r.Context()
	if _, err := clientFrom(ctx).UpdateMember(ctx, id, in); err != nil {
		s.rejected(w, r, editMemberForm(id, reloadChoices(r, "")), err)
		return
	}
	redirect(w, r, "/members/"+url.PathEscape(id), "updated")
}

func (s *Server) memberDeleteConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	member, err := clientFrom(ctx).GetMember(ctx, pathID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if member == nil {
		s.notFound(w, r)
		return
	}
	base := "/members/" + url.PathEscape(member.ID)
	s.render(w, r, http.StatusOK, "confirm", &Page{
		Title: "Гишүүн устгах",
		Data: confirmData{
			Message: member.FullName() + " гишүүнийг устгах уу? Энэ үйлдлийг буцаах боломжгүй.",
			Action:  base + "/delete",
			Submit:  "Устгах",
			Cancel:  base,
			Danger:  true,
		},
	})
}

func (s *Server) memberDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := clientFrom(ctx).DeleteMember(ctx, pathID(r)); err != nil {
		s.fail(w, r, err)
		return
	}
	redirect(w, r, "/members", "deleted")
}

func statusForm(id string) *form {
	return &form{
		Action: "/members/" + url.PathEscape(id) + "/status",
		Fields: []field{
			{Name: "status", Label: "Шинэ төлөв", Type: "select", Required: true, Options: statusOptions(sdyn.MemberStatuses)},
			{Name: "reason", Label: "Шалтгаан", Type: "textarea", Required: true},
		},
	}
}

func (s *Server) memberStatusConfirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	member, err := clientFrom(ctx).GetMember(ctx, pathID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if member == nil {
		s.notFound(w, r)
		return
	}
	f := statusForm(member.ID).bind(url.Values{"status": {string(member.Status)}})
	s.render(w, r, http.StatusOK, "confirm", &Page{
		Title: "Төлөв өөрчлөх",
		Data: confirmData{
			Message: member.FullName() + " гишүүний одоогийн төлөв: " + format.StatusLabel(string(member.Status)),
			Action:  f.Action,
			Submit:  "Батлах",
			Cancel:  "/members/" + url.PathEscape(member.ID),
			Form:    f,
		},
	})
}

func (s *Server) memberStatus(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}
	id := pathID(r)
	status, reason, errs := parseStatusChange(r.PostForm)
	if len(errs) > 0 {
		f := statusForm(id)
		f.Errors = errs
		f.bind(r.PostForm)
		s.render(w, r, http.StatusUnprocessableEntity, "confirm", &Page{
			Title: "Төлөв өөрчлөх",
			Data: confirmData{
				Message: "Төлөв болон шалтгааныг оруулна уу.",
				Action:  f.Action,
				Submit:  "Батлах",
				Cancel:  "/members/" + url.PathEscape(id),
				Form:    f,
			},
		})
		return
	}
	ctx := r.Context()
	if err := clientFrom(ctx).UpdateMemberStatus(ctx, id, status, reason); err != nil {
		s.fail(w, r, err)
		return
	}
	redirect(w, r, "/members/"+url.PathEscape(id), "status")
}

// directory is the member portal's read-only list of the members of the
// user's own organization, paged in memory.
func (s *Server) directory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	api := clientFrom(ctx)
	profile, err := api.Profile(ctx)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var members []sdyn.Member
	if profile != nil && profile.OrganizationID != "" {
		page, err := api.OrganizationMembers(ctx, profile.OrganizationID, sdyn.ListParams{Page: 1, PageSize: clientSideLimit})
		if err != nil {
			s.fail(w, r, err)
			return
		}
		members = page.Data
	}
	view := s.memberTable(false).Apply(members, table.ParseState(r.URL.Query()))
	s.render(w, r, http.StatusOK, "list", &Page{
		Title: "Манай байгууллагын гишүүд",
		Data:  listData{Table: view},
	})
}
