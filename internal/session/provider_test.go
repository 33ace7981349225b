package session

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIDP struct {
	*httptest.Server
	key           *rsa.PrivateKey
	discoveryHits atomic.Int32
	failFirst     int32
	lastForm      url.Values
}

func newFakeIDP(t *testing.T) *fakeIDP {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	idp := &fakeIDP{key: key}

	mux := http.NewServeMux()
	mux.HandleFunc("/realms/sdyn/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		if idp.discoveryHits.Add(1) <= idp.failFirst {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		base := idp.URL + "/realms/sdyn"
		_ = json.NewEncoder(w).Encode(Discovery{
			Issuer:                base,
			AuthorizationEndpoint: base + "/protocol/openid-connect/auth",
			TokenEndpoint:         base + "/protocol/openid-connect/token",
			EndSessionEndpoint:    base + "/protocol/openid-connect/logout",
			JWKSURI:               base + "/protocol/openid-connect/certs",
		})
	})
	mux.HandleFunc("/realms/sdyn/protocol/openid-connect/certs", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(jose.JSONWebKeySet{Keys: []jose.JSONWebKey{{
			Key:       &key.PublicKey,
			KeyID:     "k1",
			Algorithm: "RS256",
			Use:       "sig",
		}}})
	})
	mux.HandleFunc("/realms/sdyn/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		idp.lastForm = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  idp.sign(t, key, "k1", []string{"national_admin"}),
			"token_type":    "Bearer",
			"refresh_token": "refresh-2",
			"expires_in":    300,
			"id_token":      "id-token",
		})
	})
	idp.Server = httptest.NewServer(mux)
	t.Cleanup(idp.Close)
	return idp
}

func (idp *fakeIDP) issuer() string {
	return idp.URL + "/realms/sdyn"
}

func (idp *fakeIDP) sign(t *testing.T, key *rsa.PrivateKey, kid string, roles []string) string {
	t.Helper()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    idp.issuer(),
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		PreferredUsername: "bold",
		Email:             "bold@example.mn",
		GivenName:         "Болд",
		FamilyName:        "Бат",
		Name:              "Болд Бат",
		RealmAccess:       RealmAccess{Roles: roles},
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tok.Header["kid"] = kid
	s, err := tok.SignedString(key)
	require.NoError(t, err)
	return s
}

func newTestProvider(t *testing.T, idp *fakeIDP, attempts int) (*Provider, error) {
	return NewProvider(context.Background(), ProviderConfig{
		IssuerURL:   idp.issuer(),
		ClientID:    "sdyn-admin",
		RedirectURL: "http://localhost:3001/auth/callback",
		Scopes:      []string{"openid", "profile", "email"},
		Attempts:    attempts,
	})
}

func TestProviderDiscoveryRetries(t *testing.T) {
	idp := newFakeIDP(t)
	idp.failFirst = 1

	p, err := newTestProvider(t, idp, 3)
	require.NoError(t, err)
	assert.Equal(t, int32(2), idp.discoveryHits.Load())
	assert.Equal(t, idp.issuer(), p.Metadata().Issuer)
}

func TestProviderDiscoveryGivesUp(t *testing.T) {
	idp := newFakeIDP(t)
	idp.failFirst = 100

	_, err := newTestProvider(t, idp, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestProviderAuthCodeURL(t *testing.T) {
	idp := newFakeIDP(t)
	p, err := newTestProvider(t, idp, 1)
	require.NoError(t, err)

	u, err := url.Parse(p.AuthCodeURL("st", "verifier-verifier-verifier-verifier-verifier", false))
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "st", q.Get("state"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))
	assert.Equal(t, "sdyn-admin", q.Get("client_id"))
	assert.Empty(t, q.Get("prompt"))

	u, err = url.Parse(p.AuthCodeURL("st", "v", true))
	require.NoError(t, err)
	assert.Equal(t, "none", u.Query().Get("prompt"))
}

func TestProviderExchangeAndVerify(t *testing.T) {
	idp := newFakeIDP(t)
	p, err := newTestProvider(t, idp, 1)
	require.NoError(t, err)

	tok, err := p.Exchange(context.Background(), "code-1", "the-verifier")
	require.NoError(t, err)
	assert.Equal(t, "code-1", idp.lastForm.Get("code"))
	assert.Equal(t, "the-verifier", idp.lastForm.Get("code_verifier"))
	assert.Equal(t, "id-token", idToken(tok))

	claims, err := p.Verify(context.Background(), tok.AccessToken)
	require.NoError(t, err)
	user := claims.User()
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, "bold", user.Username)
	assert.Equal(t, []string{"national_admin"}, user.Roles)
	assert.Equal(t, "Болд Бат", user.DisplayName())

	refreshed, err := p.Refresh(context.Background(), "refresh-1")
	require.NoError(t, err)
	assert.Equal(t, "refresh_token", idp.lastForm.Get("grant_type"))
	assert.Equal(t, "refresh-1", idp.lastForm.Get("refresh_token"))
	assert.Equal(t, "refresh-2", refreshed.RefreshToken)
}

func TestProviderVerifyRejectsForeignKey(t *testing.T) {
	idp := newFakeIDP(t)
	p, err := newTestProvider(t, idp, 1)
	require.NoError(t, err)

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	_, err = p.Verify(context.Background(), idp.sign(t, other, "k1", nil))
	assert.Error(t, err)

	_, err = p.Verify(context.Background(), idp.sign(t, other, "k9", nil))
	assert.Error(t, err)
}

func TestProviderEndSessionURL(t *testing.T) {
	idp := newFakeIDP(t)
	p, err := newTestProvider(t, idp, 1)
	require.NoError(t, err)

	u, err := url.Parse(p.EndSessionURL("id-token", "http://localhost:3001/"))
	require.NoError(t, err)
	assert.Equal(t, "/realms/sdyn/protocol/openid-connect/logout", u.Path)
	assert.Equal(t, "id-token", u.Query().Get("id_token_hint"))
	assert.Equal(t, "http://localhost:3001/", u.Query().Get("post_logout_redirect_uri"))
}
