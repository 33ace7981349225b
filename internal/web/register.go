package web

import (
	"net/http"

	"github.com/sdyn/go-sdyn/internal/logging"
)

func newRegisterForm() *form {
	return &form{
		Title:  "Гишүүнээр бүртгүүлэх",
		Action: "/register",
		Submit: "Бүртгүүлэх",
		Cancel: "/",
		Fields: registerFields(),
	}
}

func (s *Server) registerForm(w http.ResponseWriter, r *http.Request) {
	if sessionFrom(r.Context()).Authenticated() {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	s.renderForm(w, r, http.StatusOK, newRegisterForm())
}

// registerSubmit creates the account through the public register endpoint.
// The user signs in afterwards through the identity provider.
func (s *Server) registerSubmit(w http.ResponseWriter, r *http.Request) {
	if !s.parseForm(w, r) {
		return
	}
	in, errs := parseRegister(r.PostForm)
	if len(errs) > 0 {
		s.invalid(w, r, newRegisterForm(), errs)
		return
	}
	ctx := r.Context()
	if err := s.api.Register(ctx, in); err != nil {
		s.rejected(w, r, newRegisterForm(), err)
		return
	}
	logging.FromContext(ctx).Infow("Member registered", "email", in.Email)
	redirect(w, r, "/", "welcome")
}
