package web

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	sdyn "github.com/sdyn/go-sdyn"
	"github.com/sdyn/go-sdyn/internal/logging"
	"github.com/sdyn/go-sdyn/internal/session"
)

// ssoMarker remembers, for the browser session, that a silent check ran.
const ssoMarker = "sso"

func (s *Server) cookieName(kind string) string {
	return s.cfg.Session.CookieName + "_" + string(s.app) + "_" + kind
}

func (s *Server) setSessionCookie(w http.ResponseWriter, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName("id"),
		Value:    id,
		Path:     "/",
		MaxAge:   int(s.cfg.Session.TTL.Seconds()),
		HttpOnly: true,
		Secure:   s.cfg.Session.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName("id"),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cfg.Session.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionMiddleware resolves the session cookie and binds an API client to
// the session's tokens for the rest of the request.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(s.cookieName("id")); err == nil {
			id = c.Value
		}
		sess := s.sessions.Load(r.Context(), id)
		if id != "" && sess.ID == "" {
			s.clearSessionCookie(w)
		}

		api, err := s.api.WithOpts(sdyn.WithTokenSource(s.sessions.TokenSource(sess)))
		if err != nil {
			s.fail(w, r, err)
			return
		}
		ctx := withSession(r.Context(), sess, api)
		if sess.Authenticated() {
			ctx = logging.WithContext(ctx, logging.FromContext(ctx).With("user", sess.User.Username))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireAuth sends anonymous browsers to the login page.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !sessionFrom(r.Context()).Authenticated() {
			s.redirectLogin(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireRoles answers with the access-denied page unless the user holds one
// of roles.
func (s *Server) requireRoles(roles ...sdyn.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !sessionFrom(r.Context()).HasAnyRole(roles...) {
				s.denied(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) redirectLogin(w http.ResponseWriter, r *http.Request) {
	returnTo := "/dashboard"
	if r.Method == http.MethodGet {
		returnTo = r.URL.RequestURI()
	}
	http.Redirect(w, r, "/login?"+url.Values{"return_to": {returnTo}}.Encode(), http.StatusFound)
}

// safeReturn keeps redirects on this site.
func safeReturn(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return "/dashboard"
	}
	return raw
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	s.startLogin(w, r, false)
}

func (s *Server) silentCheck(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName(ssoMarker),
		Value:    "1",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Session.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	s.startLogin(w, r, true)
}

func (s *Server) startLogin(w http.ResponseWriter, r *http.Request, silent bool) {
	returnTo := safeReturn(r.URL.Query().Get("return_to"))
	sess := sessionFrom(r.Context())
	if sess.Authenticated() {
		http.Redirect(w, r, returnTo, http.StatusFound)
		return
	}
	pending, authURL, err := s.sessions.BeginLogin(r.Context(), sess, returnTo, silent)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.setSessionCookie(w, pending.ID)
	http.Redirect(w, r, authURL, http.StatusFound)
}

func (s *Server) callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sess, returnTo, err := s.sessions.CompleteLogin(r.Context(), sessionFrom(r.Context()),
		q.Get("state"), q.Get("code"), q.Get("error"))
	switch {
	case errors.Is(err, session.ErrLoginRequired):
		s.clearSessionCookie(w)
		if returnTo == "" || returnTo == "/dashboard" {
			returnTo = "/"
		}
		http.Redirect(w, r, safeReturn(returnTo), http.StatusFound)
		return
	case errors.Is(err, session.ErrInvalidState):
		s.clearSessionCookie(w)
		s.renderError(w, r, http.StatusBadRequest, "Нэвтрэх хүсэлт хүчингүй болсон байна. Дахин нэвтэрнэ үү.", "/login")
		return
	case err != nil:
		logging.FromContext(r.Context()).Warnw("Login failed", "error", err)
		s.clearSessionCookie(w)
		s.renderError(w, r, http.StatusBadGateway, "Нэвтрэх үед алдаа гарлаа.", "/login")
		return
	}
	s.setSessionCookie(w, sess.ID)
	http.Redirect(w, r, safeReturn(returnTo), http.StatusFound)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	dest := s.sessions.Logout(r.Context(), sessionFrom(r.Context()), s.appCfg.PublicURL+"/")
	s.clearSessionCookie(w)
	http.Redirect(w, r, dest, http.StatusFound)
}

// home is the member portal landing page. Anonymous visitors get one silent
// check per browser session so an existing provider login is picked up
// without a prompt.
func (s *Server) home(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if sess.Authenticated() {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	if _, err := r.Cookie(s.cookieName(ssoMarker)); err != nil && r.URL.Query().Get("msg") == "" {
		http.Redirect(w, r, "/auth/silent?return_to=%2Fdashboard", http.StatusFound)
		return
	}
	s.render(w, r, http.StatusOK, "home", &Page{Title: "Нүүр"})
}

type settingsData struct {
	User          *session.User
	Roles         []string
	APIURL        string
	Issuer        string
	RefreshTokens bool
	SessionStore  string
}

func (s *Server) settings(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	s.render(w, r, http.StatusOK, "settings", &Page{
		Title: "Тохиргоо",
		Data: settingsData{
			User:          sess.User,
			Roles:         sess.User.Roles,
			APIURL:        s.cfg.API.BaseURL,
			Issuer:        s.cfg.Auth.IssuerURL(),
			RefreshTokens: s.cfg.Auth.RefreshTokens,
			SessionStore:  s.cfg.Session.Store,
		},
	})
}
