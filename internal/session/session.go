package session

import (
	"time"

	"golang.org/x/oauth2"

	sdyn "github.com/sdyn/go-sdyn"
)

// State is where a session is in the login lifecycle.
type State int

const (
	Uninitialized State = iota
	Initializing
	Authenticated
	Unauthenticated
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Initializing:
		return "initializing"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	}
	return "unknown"
}

// PendingLogin is an authorization request waiting for its callback.
type PendingLogin struct {
	State     string    `json:"state"`
	Verifier  string    `json:"verifier"`
	ReturnTo  string    `json:"return_to"`
	Silent    bool      `json:"silent"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is one browser's server-side login state. The browser only holds
// the ID.
type Session struct {
	ID        string        `json:"id"`
	State     State         `json:"state"`
	Token     *oauth2.Token `json:"token,omitempty"`
	IDToken   string        `json:"id_token,omitempty"`
	User      *User         `json:"user,omitempty"`
	Pending   *PendingLogin `json:"pending,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

func (s *Session) Authenticated() bool {
	return s != nil && s.State == Authenticated
}

// HasRole checks the realm roles of the token the session was built from.
func (s *Session) HasRole(role sdyn.Role) bool {
	return s.Authenticated() && s.User.HasRole(role)
}

func (s *Session) HasAnyRole(roles ...sdyn.Role) bool {
	return s.Authenticated() && s.User.HasAnyRole(roles...)
}

// IsAdmin reports an admin role at any hierarchy level.
func (s *Session) IsAdmin() bool {
	return s.HasAnyRole(sdyn.AdminRoles...)
}

func (s *Session) IsNationalAdmin() bool {
	return s.HasRole(sdyn.RoleNationalAdmin)
}

// expiresWithin reports whether the access token has less than d left.
// Tokens without an expiry never expire.
func (s *Session) expiresWithin(d time.Duration, now time.Time) bool {
	if s.Token == nil {
		return true
	}
	if s.Token.Expiry.IsZero() {
		return false
	}
	return s.Token.Expiry.Add(-d).Before(now)
}
