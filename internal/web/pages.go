package web

import (
	"context"
	"html/template"
	"net/http"

	"github.com/gorilla/mux"

	sdyn "github.com/sdyn/go-sdyn"
	"github.com/sdyn/go-sdyn/internal/logging"
)

type detailField struct {
	Label string
	Value template.HTML
}

// action is a link, or a button posting to Href when Post is set.
type action struct {
	Href   string
	Label  string
	Danger bool
	Post   bool
}

type section struct {
	Title string
	Table interface{}
}

// detailData is the data of the shared detail page.
type detailData struct {
	Heading  string
	Badge    template.HTML
	Fields   []detailField
	Cards    []statCard
	Body     template.HTML
	Actions  []action
	Sections []section
	Form     *form
}

// confirmData is the data of the shared confirmation page.
type confirmData struct {
	Message string
	Action  string
	Submit  string
	Cancel  string
	Danger  bool
	Form    *form
}

func text(s string) template.HTML {
	if s == "" {
		return "-"
	}
	return template.HTML(template.HTMLEscapeString(s))
}

func pathID(r *http.Request) string {
	return mux.Vars(r)["id"]
}

func (s *Server) renderForm(w http.ResponseWriter, r *http.Request, status int, f *form) {
	s.render(w, r, status, "form", &Page{Title: f.Title, Data: f})
}

// invalid re-renders a form after a failed validation. No API call is made.
func (s *Server) invalid(w http.ResponseWriter, r *http.Request, f *form, errs validator) {
	f.Errors = errs
	f.bind(r.PostForm)
	s.renderForm(w, r, http.StatusUnprocessableEntity, f)
}

// rejected re-renders a form the backend refused, with its message, or
// falls back to fail for any other error.
func (s *Server) rejected(w http.ResponseWriter, r *http.Request, f *form, err error) {
	if !sdyn.IsValidation(err) {
		s.fail(w, r, err)
		return
	}
	f.Message = sdyn.Message(err)
	if f.Message == "" {
		f.Message = "Илгээсэн мэдээлэл буруу байна."
	}
	f.bind(r.PostForm)
	s.renderForm(w, r, http.StatusUnprocessableEntity, f)
}

func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		s.renderError(w, r, http.StatusBadRequest, "Маягт уншигдсангүй.", r.URL.Path)
		return false
	}
	return true
}

// organizationChoices loads the organizations offered in select fields.
func organizationChoices(ctx context.Context, api *sdyn.Client) ([]sdyn.Organization, error) {
	page, err := api.ListOrganizations(ctx, sdyn.ListParams{Page: 1, PageSize: clientSideLimit})
	if err != nil {
		return nil, err
	}
	return page.Data, nil
}

// reloadChoices fetches the organizations again for a form shown after a
// failed submit, leaving out skip. On error the form keeps only the
// submitted selection.
func reloadChoices(r *http.Request, skip string) []sdyn.Organization {
	ctx := r.Context()
	orgs, err := organizationChoices(ctx, clientFrom(ctx))
	if err != nil {
		logging.FromContext(ctx).Warnw("Failed to reload organizations", "error", err)
		return nil
	}
	if skip == "" {
		return orgs
	}
	out := make([]sdyn.Organization, 0, len(orgs))
	for _, o := range orgs {
		if o.ID != skip {
			out = append(out, o)
		}
	}
	return out
}
