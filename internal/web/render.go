package web

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gorilla/csrf"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	sdyn "github.com/sdyn/go-sdyn"
	"github.com/sdyn/go-sdyn/internal/config"
	"github.com/sdyn/go-sdyn/internal/format"
	"github.com/sdyn/go-sdyn/internal/logging"
	"github.com/sdyn/go-sdyn/internal/session"
)

//go:embed templates
var templateFS embed.FS

// Raw HTML in descriptions is escaped; WithUnsafe is not set.
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

var funcMap = template.FuncMap{
	"currency": format.Currency,
	"number":   format.Number,
	"percent":  format.Percent,
	"date":     format.Date,
	"datetime": format.DateTime,
	"optdate":  format.OptDate,
	"phone":    format.Phone,
	"truncate": format.Truncate,
	"initials": format.Initials,
	"ago":      func(t time.Time) string { return format.RelativeTime(t, time.Now()) },
	"status": func(v interface{}) format.Status {
		return format.StatusDisplay(toString(v))
	},
	"level":    func(l sdyn.OrgLevel) string { return format.LevelLabel(string(l)) },
	"role":     format.RoleLabel,
	"markdown": renderMarkdown,
	"isZero":   func(d decimal.Decimal) bool { return d.IsZero() },
}

func toString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case sdyn.MemberStatus:
		return string(s)
	case sdyn.EventStatus:
		return string(s)
	case sdyn.FeeStatus:
		return string(s)
	case interface{ String() string }:
		return s.String()
	}
	return ""
}

type views struct {
	pages map[string]*template.Template
}

// loadViews parses the layout and partials once and clones them for every
// page template.
func loadViews() (*views, error) {
	base, err := template.New("layout.html").Funcs(funcMap).ParseFS(templateFS,
		"templates/layout.html", "templates/partials/*.html")
	if err != nil {
		return nil, errors.Wrap(err, "parse layout")
	}
	names, err := fs.Glob(templateFS, "templates/pages/*.html")
	if err != nil {
		return nil, err
	}
	v := &views{pages: make(map[string]*template.Template, len(names))}
	for _, name := range names {
		t, err := base.Clone()
		if err != nil {
			return nil, err
		}
		if _, err := t.ParseFS(templateFS, name); err != nil {
			return nil, errors.Wrapf(err, "parse %s", name)
		}
		v.pages[strings.TrimSuffix(path.Base(name), ".html")] = t
	}
	return v, nil
}

type navItem struct {
	Href   string
	Label  string
	Active bool
}

// Page is the data every template receives.
type Page struct {
	Title    string
	App      config.App
	Session  *session.Session
	CSRF     template.HTML
	Nav      []navItem
	Flash    string
	Error    string
	RetryURL string
	Data     interface{}
}

func (p *Page) Admin() bool {
	return p.App == config.AppAdmin
}

var flashes = map[string]string{
	"created":    "Амжилттай бүртгэлээ.",
	"updated":    "Өөрчлөлт хадгалагдлаа.",
	"deleted":    "Амжилттай устгалаа.",
	"status":     "Төлөв шинэчлэгдлээ.",
	"approved":   "Төлбөр баталгаажлаа.",
	"bulk":       "Татварууд бүртгэгдлээ.",
	"registered": "Арга хэмжээнд бүртгүүллээ.",
	"attendance": "Ирц хадгалагдлаа.",
	"welcome":    "Бүртгэл амжилттай. Нэвтэрч орно уу.",
}

func (s *Server) nav(r *http.Request) []navItem {
	var items []navItem
	if s.app == config.AppAdmin {
		items = []navItem{
			{Href: "/dashboard", Label: "Хянах самбар"},
			{Href: "/members", Label: "Гишүүд"},
			{Href: "/organizations", Label: "Байгууллагууд"},
			{Href: "/events", Label: "Арга хэмжээ"},
			{Href: "/fees", Label: "Татвар"},
			{Href: "/reports", Label: "Тайлан"},
			{Href: "/settings", Label: "Тохиргоо"},
		}
	} else {
		items = []navItem{
			{Href: "/dashboard", Label: "Нүүр"},
			{Href: "/profile", Label: "Миний мэдээлэл"},
			{Href: "/members", Label: "Гишүүд"},
			{Href: "/organizations", Label: "Байгууллагууд"},
			{Href: "/events", Label: "Арга хэмжээ"},
			{Href: "/fees", Label: "Татвар"},
			{Href: "/settings", Label: "Тохиргоо"},
		}
	}
	for i := range items {
		p := items[i].Href
		items[i].Active = r.URL.Path == p || strings.HasPrefix(r.URL.Path, p+"/")
	}
	return items
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, p *Page) {
	tpl, ok := s.views.pages[name]
	if !ok {
		logging.FromContext(r.Context()).Errorw("Unknown template", "template", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	p.App = s.app
	p.Session = sessionFrom(r.Context())
	p.CSRF = csrf.TemplateField(r)
	if p.Session.Authenticated() {
		p.Nav = s.nav(r)
	}
	if p.Flash == "" {
		p.Flash = flashes[r.URL.Query().Get("msg")]
	}

	var buf bytes.Buffer
	if err := tpl.ExecuteTemplate(&buf, "layout", p); err != nil {
		logging.FromContext(r.Context()).Errorw("Render failed", "template", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (s *Server) renderError(w http.ResponseWriter, r *http.Request, status int, msg, retry string) {
	s.render(w, r, status, "error", &Page{Title: "Алдаа", Error: msg, RetryURL: retry})
}

// denied is the access-denied page. It is not an error: the user is signed
// in but lacks the role.
func (s *Server) denied(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusForbidden, "denied", &Page{Title: "Хандах эрхгүй"})
}

func (s *Server) notFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusNotFound, "notfound", &Page{Title: "Олдсонгүй"})
}

func (s *Server) csrfFailed(w http.ResponseWriter, r *http.Request) {
	logging.FromContext(r.Context()).Warnw("CSRF check failed", "reason", csrf.FailureReason(r))
	s.renderError(w, r, http.StatusForbidden, "Маягтын хугацаа дууссан байна. Хуудсаа шинэчлээд дахин оролдоно уу.", r.URL.Path)
}

// fail turns a handler error into a response: expired sessions go back to
// login, missing records to the not-found page, everything else to an error
// banner with a retry link.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, context.Canceled):
		return
	case errors.Is(err, sdyn.ErrSessionExpired), errors.Is(err, session.ErrNotAuthenticated), errors.Is(err, sdyn.ErrNoRefresh):
		logging.FromContext(ctx).Infow("Session expired, sending to login", "error", err)
		s.sessions.Invalidate(ctx, sessionFrom(ctx))
		s.clearSessionCookie(w)
		s.redirectLogin(w, r)
		return
	case sdyn.IsNotFound(err):
		s.notFound(w, r)
		return
	case sdyn.IsStatus(err, http.StatusForbidden):
		s.denied(w, r)
		return
	}

	logging.FromContext(ctx).Errorw("Request failed", "error", err)
	msg := "Сервертэй холбогдоход алдаа гарлаа. Дахин оролдоно уу."
	if sdyn.IsValidation(err) {
		msg = "Илгээсэн мэдээлэл буруу байна."
		if m := sdyn.Message(err); m != "" {
			msg = m
		}
	}
	retry := r.URL.RequestURI()
	if r.Method != http.MethodGet {
		retry = r.URL.Path
	}
	s.renderError(w, r, http.StatusBadGateway, msg, retry)
}

// redirect finishes a mutation with a POST-redirect-GET.
func redirect(w http.ResponseWriter, r *http.Request, to, msg string) {
	if msg != "" {
		to += "?msg=" + msg
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}
