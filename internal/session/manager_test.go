package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	sdyn "github.com/sdyn/go-sdyn"
)

type fakeAuth struct {
	mu         sync.Mutex
	refreshes  int
	refreshErr error
	delay      time.Duration
	roles      []string
}

func (f *fakeAuth) AuthCodeURL(state, verifier string, silent bool) string {
	return fmt.Sprintf("https://idp.example/auth?state=%s&silent=%t", state, silent)
}

func (f *fakeAuth) Exchange(_ context.Context, code, verifier string) (*oauth2.Token, error) {
	if code == "bad" {
		return nil, errors.New("invalid_grant")
	}
	tok := &oauth2.Token{
		AccessToken:  "access-0",
		RefreshToken: "refresh-0",
		Expiry:       time.Now().Add(5 * time.Minute),
	}
	return tok.WithExtra(map[string]interface{}{"id_token": "id-0"}), nil
}

func (f *fakeAuth) Refresh(_ context.Context, refreshToken string) (*oauth2.Token, error) {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return &oauth2.Token{
		AccessToken:  fmt.Sprintf("access-%d", f.refreshes),
		RefreshToken: fmt.Sprintf("refresh-%d", f.refreshes),
		Expiry:       time.Now().Add(5 * time.Minute),
	}, nil
}

func (f *fakeAuth) Verify(_ context.Context, accessToken string) (*Claims, error) {
	c := &Claims{PreferredUsername: "bold", RealmAccess: RealmAccess{Roles: f.roles}}
	c.Subject = "user-1"
	return c, nil
}

func (f *fakeAuth) EndSessionURL(idToken, redirect string) string {
	return "https://idp.example/logout?id_token_hint=" + idToken + "&redirect=" + url.QueryEscape(redirect)
}

func (f *fakeAuth) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

func newTestManager(auth *fakeAuth, refresh bool) (*Manager, *MemoryStore) {
	store := NewMemoryStore(100, time.Hour)
	return NewManager(auth, store, Options{RefreshTokens: refresh, MinValidity: time.Minute}), store
}

func saveAuthenticated(t *testing.T, store Store, expiry time.Time) *Session {
	t.Helper()
	sess := &Session{
		ID:    "sess-1",
		State: Authenticated,
		Token: &oauth2.Token{AccessToken: "access-old", RefreshToken: "refresh-old", Expiry: expiry},
		User:  &User{Username: "bold", Roles: []string{"member"}},
	}
	require.NoError(t, store.Save(context.Background(), sess))
	return sess
}

func TestLoginFlow(t *testing.T) {
	ctx := context.Background()
	auth := &fakeAuth{roles: []string{"province_admin"}}
	m, store := newTestManager(auth, true)

	pending, authURL, err := m.BeginLogin(ctx, nil, "/members", false)
	require.NoError(t, err)
	assert.Contains(t, authURL, "state="+pending.Pending.State)
	assert.False(t, pending.Authenticated())

	loaded := m.Load(ctx, pending.ID)
	assert.Equal(t, Unauthenticated, loaded.State)
	require.NotNil(t, loaded.Pending)

	sess, returnTo, err := m.CompleteLogin(ctx, loaded, pending.Pending.State, "code", "")
	require.NoError(t, err)
	assert.Equal(t, "/members", returnTo)
	assert.True(t, sess.Authenticated())
	assert.NotEqual(t, pending.ID, sess.ID, "session id rotates on login")
	assert.Equal(t, "id-0", sess.IDToken)
	assert.True(t, sess.IsAdmin())
	assert.False(t, sess.IsNationalAdmin())
	assert.True(t, sess.HasRole(sdyn.RoleProvinceAdmin))

	_, err = store.Get(ctx, pending.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	again := m.Load(ctx, sess.ID)
	assert.Equal(t, Authenticated, again.State)
	assert.Equal(t, "bold", again.User.Username)
}

func TestCompleteLoginRejectsWrongState(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(&fakeAuth{}, true)

	pending, _, err := m.BeginLogin(ctx, nil, "/", false)
	require.NoError(t, err)

	_, _, err = m.CompleteLogin(ctx, pending, "forged", "code", "")
	assert.ErrorIs(t, err, ErrInvalidState)

	_, _, err = m.CompleteLogin(ctx, &Session{}, "", "code", "")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCompleteLoginFailures(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(&fakeAuth{}, true)

	pending, _, err := m.BeginLogin(ctx, nil, "/dashboard", true)
	require.NoError(t, err)
	_, returnTo, err := m.CompleteLogin(ctx, pending, pending.Pending.State, "", "login_required")
	assert.ErrorIs(t, err, ErrLoginRequired)
	assert.Equal(t, "/dashboard", returnTo)
	_, err = store.Get(ctx, pending.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	pending, _, err = m.BeginLogin(ctx, nil, "/", false)
	require.NoError(t, err)
	_, _, err = m.CompleteLogin(ctx, pending, pending.Pending.State, "bad", "")
	assert.Error(t, err)
	assert.False(t, pending.Authenticated())
}

func TestRolesRequireAuthentication(t *testing.T) {
	sess := &Session{State: Unauthenticated, User: &User{Roles: []string{"national_admin"}}}
	assert.False(t, sess.IsAdmin())
	assert.False(t, sess.HasRole(sdyn.RoleNationalAdmin))

	sess.State = Authenticated
	assert.True(t, sess.IsNationalAdmin())
	assert.False(t, sess.HasRole(sdyn.RoleMember))

	var none *Session
	assert.False(t, none.IsAdmin())
}

func TestLoadUnknownSession(t *testing.T) {
	m, _ := newTestManager(&fakeAuth{}, true)
	assert.Equal(t, Unauthenticated, m.Load(context.Background(), "").State)
	assert.Equal(t, Unauthenticated, m.Load(context.Background(), "missing").State)
}

func TestLoadRefreshesExpiredToken(t *testing.T) {
	ctx := context.Background()
	auth := &fakeAuth{roles: []string{"member"}}
	m, store := newTestManager(auth, true)
	saveAuthenticated(t, store, time.Now().Add(-time.Minute))

	sess := m.Load(ctx, "sess-1")
	assert.Equal(t, Authenticated, sess.State)
	assert.Equal(t, "access-1", sess.Token.AccessToken)
	assert.Equal(t, 1, auth.count())

	stored, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", stored.Token.RefreshToken)
}

func TestLoadFailsClosed(t *testing.T) {
	ctx := context.Background()
	auth := &fakeAuth{refreshErr: errors.New("invalid_grant")}
	m, store := newTestManager(auth, true)
	saveAuthenticated(t, store, time.Now().Add(-time.Minute))

	sess := m.Load(ctx, "sess-1")
	assert.Equal(t, Unauthenticated, sess.State)
	assert.False(t, sess.IsAdmin())

	_, err := store.Get(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRefreshDisabledEndsSession(t *testing.T) {
	ctx := context.Background()
	auth := &fakeAuth{}
	m, store := newTestManager(auth, false)
	sess := saveAuthenticated(t, store, time.Now().Add(time.Hour))

	_, err := m.TokenSource(sess).Refresh(ctx)
	assert.ErrorIs(t, err, sdyn.ErrNoRefresh)
	assert.Zero(t, auth.count())
	assert.False(t, sess.Authenticated())
	_, err = store.Get(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentRefreshesCollapse(t *testing.T) {
	ctx := context.Background()
	auth := &fakeAuth{delay: 50 * time.Millisecond}
	m, store := newTestManager(auth, true)
	saveAuthenticated(t, store, time.Now().Add(time.Hour))

	var wg sync.WaitGroup
	tokens := make([]string, 8)
	for i := range tokens {
		i := i
		sess, err := store.Get(ctx, "sess-1")
		require.NoError(t, err)
		ts := m.TokenSource(sess)
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := ts.Refresh(ctx)
			assert.NoError(t, err)
			tokens[i] = tok
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, auth.count())
	for _, tok := range tokens {
		assert.Equal(t, "access-1", tok)
	}
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	m, store := newTestManager(&fakeAuth{}, true)
	sess := saveAuthenticated(t, store, time.Now().Add(time.Hour))
	sess.IDToken = "id-9"

	dest := m.Logout(ctx, sess, "http://localhost:3000/")
	assert.Contains(t, dest, "id_token_hint=id-9")
	assert.False(t, sess.Authenticated())
	_, err := store.Get(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, "/", m.Logout(ctx, &Session{State: Unauthenticated}, "/"))
}

func TestSweep(t *testing.T) {
	ctx := context.Background()
	auth := &fakeAuth{}
	m, store := newTestManager(auth, true)

	saveAuthenticated(t, store, time.Now().Add(30*time.Second))
	require.NoError(t, store.Save(ctx, &Session{
		ID:    "fresh",
		Token: &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: time.Now().Add(time.Hour)},
	}))
	require.NoError(t, store.Save(ctx, &Session{
		ID:      "abandoned",
		Pending: &PendingLogin{State: "s", CreatedAt: time.Now().Add(-time.Hour)},
	}))

	res, err := m.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Refreshed: 1, Expired: 1}, res)
	assert.Equal(t, 1, auth.count())

	_, err = store.Get(ctx, "abandoned")
	assert.ErrorIs(t, err, ErrNotFound)
	fresh, err := store.Get(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, "a", fresh.Token.AccessToken)
}

func TestRefresherRunsSweep(t *testing.T) {
	auth := &fakeAuth{}
	m, store := newTestManager(auth, true)
	saveAuthenticated(t, store, time.Now().Add(10*time.Second))

	r, err := NewRefresher(m, time.Second, nil)
	require.NoError(t, err)
	r.Start()
	defer r.Stop(context.Background())

	assert.Eventually(t, func() bool { return auth.count() == 1 }, 5*time.Second, 50*time.Millisecond)

	_, err = NewRefresher(m, 0, nil)
	assert.Error(t, err)
}

func TestAPIClientRefreshesOnce(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") != "Bearer access-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"id":"m1","first_name":"Болд"}],"total":1,"page":1,"pageSize":10,"totalPages":1}`))
	}))
	defer api.Close()
	apiURL, err := url.Parse(api.URL)
	require.NoError(t, err)

	t.Run("refresh succeeds", func(t *testing.T) {
		calls.Store(0)
		auth := &fakeAuth{}
		m, store := newTestManager(auth, true)
		sess := saveAuthenticated(t, store, time.Now().Add(time.Hour))

		client, err := sdyn.Open(*apiURL, sdyn.WithTokenSource(m.TokenSource(sess)))
		require.NoError(t, err)
		page, err := client.ListMembers(ctx, sdyn.ListParams{Page: 1})
		require.NoError(t, err)
		require.Len(t, page.Data, 1)
		assert.Equal(t, int32(2), calls.Load())
		assert.Equal(t, 1, auth.count())
		assert.Equal(t, "access-1", sess.Token.AccessToken)
	})

	t.Run("refresh fails", func(t *testing.T) {
		calls.Store(0)
		auth := &fakeAuth{refreshErr: errors.New("invalid_grant")}
		m, store := newTestManager(auth, true)
		sess := saveAuthenticated(t, store, time.Now().Add(time.Hour))

		client, err := sdyn.Open(*apiURL, sdyn.WithTokenSource(m.TokenSource(sess)))
		require.NoError(t, err)
		_, err = client.ListMembers(ctx, sdyn.ListParams{Page: 1})
		assert.ErrorIs(t, err, sdyn.ErrSessionExpired)
		assert.Equal(t, int32(1), calls.Load())
		assert.False(t, sess.Authenticated())
		_, err = store.Get(ctx, "sess-1")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
