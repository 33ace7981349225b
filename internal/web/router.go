package web

import (
	"fmt"
	"net/http"

	"github.com/gorilla/csrf"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	sdyn "github.com/sdyn/go-sdyn"
	"github.com/sdyn/go-sdyn/internal/config"
)

const csrfField = "csrf_token"

func (s *Server) newRouter() http.Handler {
	router := mux.NewRouter()
	router.Use(NewLoggingMiddleware(s.app, s.logger))
	router.Use(s.sessionMiddleware)

	router.HandleFunc("/healthz", getHealth).Methods(http.MethodGet).Name("healthz")
	s.authRoutes(router)
	if s.app == config.AppAdmin {
		s.adminRoutes(router)
	} else {
		s.memberRoutes(router)
	}
	// mux skips router middleware for unmatched routes.
	router.NotFoundHandler = NewLoggingMiddleware(s.app, s.logger)(s.sessionMiddleware(http.HandlerFunc(s.notFound)))

	h := csrf.Protect(s.csrfKey,
		csrf.Secure(s.cfg.Session.CookieSecure),
		csrf.Path("/"),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.CookieName(s.cookieName("csrf")),
		csrf.FieldName(csrfField),
		csrf.ErrorHandler(http.HandlerFunc(s.csrfFailed)),
	)(router)
	h = NewContextHandler(s.logger)(h)
	h = handlers.CompressHandler(h)
	h = handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{s.logger}),
	)(h)
	return h
}

func (s *Server) authRoutes(r *mux.Router) {
	r.HandleFunc("/login", s.login).Methods(http.MethodGet).Name("login")
	r.HandleFunc("/auth/silent", s.silentCheck).Methods(http.MethodGet).Name("silent")
	r.HandleFunc("/auth/callback", s.callback).Methods(http.MethodGet).Name("callback")
	r.HandleFunc("/logout", s.logout).Methods(http.MethodPost).Name("logout")
	r.Handle("/settings", s.requireAuth(http.HandlerFunc(s.settings))).Methods(http.MethodGet).Name("settings")
}

func (s *Server) memberRoutes(r *mux.Router) {
	auth := func(h http.HandlerFunc) http.Handler { return s.requireAuth(h) }

	r.HandleFunc("/", s.home).Methods(http.MethodGet).Name("home")
	r.HandleFunc("/register", s.registerForm).Methods(http.MethodGet).Name("register")
	r.HandleFunc("/register", s.registerSubmit).Methods(http.MethodPost).Name("register")

	r.Handle("/dashboard", auth(s.memberDashboard)).Methods(http.MethodGet).Name("dashboard")
	r.Handle("/profile", auth(s.profile)).Methods(http.MethodGet).Name("profile")
	r.Handle("/profile/edit", auth(s.profileEdit)).Methods(http.MethodGet).Name("profile_edit")
	r.Handle("/profile/edit", auth(s.profileUpdate)).Methods(http.MethodPost).Name("profile_edit")

	r.Handle("/members", auth(s.directory)).Methods(http.MethodGet).Name("members")

	r.Handle("/organizations", auth(s.organizationBrowse)).Methods(http.MethodGet).Name("organizations")
	r.Handle("/organizations/{id}", auth(s.organizationView)).Methods(http.MethodGet).Name("organization")

	r.Handle("/events", auth(s.eventBrowse)).Methods(http.MethodGet).Name("events")
	r.Handle("/events/{id}", auth(s.eventView)).Methods(http.MethodGet).Name("event")
	r.Handle("/events/{id}/register", auth(s.eventRegister)).Methods(http.MethodPost).Name("event_register")

	r.Handle("/fees", auth(s.myFees)).Methods(http.MethodGet).Name("fees")
}

func (s *Server) adminRoutes(r *mux.Router) {
	admin := func(h http.HandlerFunc) http.Handler {
		return s.requireAuth(s.requireRoles(sdyn.AdminRoles...)(h))
	}
	national := func(h http.HandlerFunc) http.Handler {
		return s.requireAuth(s.requireRoles(sdyn.RoleNationalAdmin)(h))
	}

	r.Handle("/", http.RedirectHandler("/dashboard", http.StatusFound)).Name("home")
	r.Handle("/dashboard", admin(s.adminDashboard)).Methods(http.MethodGet).Name("dashboard")

	r.Handle("/members", admin(s.memberList)).Methods(http.MethodGet).Name("members")
	r.Handle("/members", admin(s.memberCreate)).Methods(http.MethodPost).Name("members")
	r.Handle("/members/new", admin(s.memberNew)).Methods(http.MethodGet).Name("member_new")
	r.Handle("/members/{id}", admin(s.memberView)).Methods(http.MethodGet).Name("member")
	r.Handle("/members/{id}", admin(s.memberUpdate)).Methods(http.MethodPost).Name("member")
	r.Handle("/members/{id}/edit", admin(s.memberEdit)).Methods(http.MethodGet).Name("member_edit")
	r.Handle("/members/{id}/delete", admin(s.memberDeleteConfirm)).Methods(http.MethodGet).Name("member_delete")
	r.Handle("/members/{id}/delete", admin(s.memberDelete)).Methods(http.MethodPost).Name("member_delete")
	r.Handle("/members/{id}/status", admin(s.memberStatusConfirm)).Methods(http.MethodGet).Name("member_status")
	r.Handle("/members/{id}/status", admin(s.memberStatus)).Methods(http.MethodPost).Name("member_status")

	r.Handle("/organizations", admin(s.organizationList)).Methods(http.MethodGet).Name("organizations")
	r.Handle("/organizations", national(s.organizationCreate)).Methods(http.MethodPost).Name("organizations")
	r.Handle("/organizations/new", national(s.organizationNew)).Methods(http.MethodGet).Name("organization_new")
	r.Handle("/organizations/{id}", admin(s.organizationView)).Methods(http.MethodGet).Name("organization")
	r.Handle("/organizations/{id}", admin(s.organizationUpdate)).Methods(http.MethodPost).Name("organization")
	r.Handle("/organizations/{id}/edit", admin(s.organizationEdit)).Methods(http.MethodGet).Name("organization_edit")
	r.Handle("/organizations/{id}/delete", national(s.organizationDeleteConfirm)).Methods(http.MethodGet).Name("organization_delete")
	r.Handle("/organizations/{id}/delete", national(s.organizationDelete)).Methods(http.MethodPost).Name("organization_delete")

	r.Handle("/events", admin(s.eventList)).Methods(http.MethodGet).Name("events")
	r.Handle("/events", admin(s.eventCreate)).Methods(http.MethodPost).Name("events")
	r.Handle("/events/new", admin(s.eventNew)).Methods(http.MethodGet).Name("event_new")
	r.Handle("/events/{id}", admin(s.eventView)).Methods(http.MethodGet).Name("event")
	r.Handle("/events/{id}", admin(s.eventUpdate)).Methods(http.MethodPost).Name("event")
	r.Handle("/events/{id}/edit", admin(s.eventEdit)).Methods(http.MethodGet).Name("event_edit")
	r.Handle("/events/{id}/delete", admin(s.eventDeleteConfirm)).Methods(http.MethodGet).Name("event_delete")
	r.Handle("/events/{id}/delete", admin(s.eventDelete)).Methods(http.MethodPost).Name("event_delete")
	r.Handle("/events/{id}/participants", admin(s.eventParticipants)).Methods(http.MethodGet).Name("event_participants")
	r.Handle("/events/{id}/attendance", admin(s.eventAttendance)).Methods(http.MethodPost).Name("event_attendance")

	r.Handle("/fees", admin(s.feeList)).Methods(http.MethodGet).Name("fees")
	r.Handle("/fees", admin(s.feeCreate)).Methods(http.MethodPost).Name("fees")
	r.Handle("/fees/new", admin(s.feeNew)).Methods(http.MethodGet).Name("fee_new")
	r.Handle("/fees/bulk", admin(s.feeBulkNew)).Methods(http.MethodGet).Name("fee_bulk")
	r.Handle("/fees/bulk", admin(s.feeBulkCreate)).Methods(http.MethodPost).Name("fee_bulk")
	r.Handle("/fees/{id}/edit", admin(s.feeEdit)).Methods(http.MethodGet).Name("fee_edit")
	r.Handle("/fees/{id}", admin(s.feeUpdate)).Methods(http.MethodPost).Name("fee")
	r.Handle("/fees/{id}/approve", admin(s.feeApproveConfirm)).Methods(http.MethodGet).Name("fee_approve")
	r.Handle("/fees/{id}/approve", admin(s.feeApprove)).Methods(http.MethodPost).Name("fee_approve")

	r.Handle("/reports", admin(s.reports)).Methods(http.MethodGet).Name("reports")
	r.Handle("/reports/export", admin(s.reportExport)).Methods(http.MethodGet).Name("report_export")
}

func getHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "%d %s", http.StatusOK, http.StatusText(http.StatusOK)) //nolint:errcheck
}

type recoveryLogger struct {
	logger *zap.SugaredLogger
}

func (l recoveryLogger) Println(v ...interface{}) {
	l.logger.Errorw("Recovered from panic", "panic", fmt.Sprint(v...))
}
