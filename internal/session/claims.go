package session

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"

	sdyn "github.com/sdyn/go-sdyn"
)

// RealmAccess is Keycloak's realm role claim.
type RealmAccess struct {
	Roles []string `json:"roles"`
}

// Claims are the access token claims the portals read.
type Claims struct {
	jwt.RegisteredClaims
	PreferredUsername string      `json:"preferred_username"`
	Email             string      `json:"email"`
	EmailVerified     bool        `json:"email_verified"`
	GivenName         string      `json:"given_name"`
	FamilyName        string      `json:"family_name"`
	Name              string      `json:"name"`
	RealmAccess       RealmAccess `json:"realm_access"`
}

// User is the signed-in identity derived from the access token.
type User struct {
	ID            string   `json:"id"`
	Username      string   `json:"username"`
	Email         string   `json:"email"`
	FirstName     string   `json:"first_name"`
	LastName      string   `json:"last_name"`
	FullName      string   `json:"full_name"`
	EmailVerified bool     `json:"email_verified"`
	Roles         []string `json:"roles"`
}

func (c *Claims) User() *User {
	return &User{
		ID:            c.Subject,
		Username:      c.PreferredUsername,
		Email:         c.Email,
		FirstName:     c.GivenName,
		LastName:      c.FamilyName,
		FullName:      c.Name,
		EmailVerified: c.EmailVerified,
		Roles:         slices.Clone(c.RealmAccess.Roles),
	}
}

func (u *User) HasRole(role sdyn.Role) bool {
	return u != nil && slices.Contains(u.Roles, string(role))
}

func (u *User) HasAnyRole(roles ...sdyn.Role) bool {
	for _, r := range roles {
		if u.HasRole(r) {
			return true
		}
	}
	return false
}

// DisplayName prefers the full name, then the username.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}
