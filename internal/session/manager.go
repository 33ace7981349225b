package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	sdyn "github.com/sdyn/go-sdyn"
	"github.com/sdyn/go-sdyn/internal/metrics"
)

var (
	// ErrInvalidState is returned for callbacks that match no pending login.
	ErrInvalidState = errors.New("invalid login state")

	// ErrLoginRequired is returned when a silent check found no provider
	// session.
	ErrLoginRequired = errors.New("login required")

	ErrNotAuthenticated = errors.New("not authenticated")
)

// pendingTTL bounds how long an unanswered authorization request is kept.
const pendingTTL = 10 * time.Minute

const refreshTimeout = 15 * time.Second

type Options struct {
	// RefreshTokens enables refresh-token renewal. When false an expired or
	// rejected token ends the session.
	RefreshTokens bool

	// MinValidity is how close to expiry a token is renewed by the sweep.
	MinValidity time.Duration

	Logger *zap.SugaredLogger
	Now    func() time.Time
}

// Manager owns the session lifecycle: login, silent check, refresh and
// logout. It is safe for concurrent use; refreshes of one session are
// collapsed into a single provider call.
type Manager struct {
	auth   Authenticator
	store  Store
	opts   Options
	logger *zap.SugaredLogger
	flight singleflight.Group
}

func NewManager(auth Authenticator, store Store, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		auth:   auth,
		store:  store,
		opts:   opts,
		logger: opts.Logger.Named("session"),
	}
}

// Load resolves the session for a cookie value. It never fails: anything it
// cannot confirm is returned as unauthenticated. Pending logins keep their ID
// so the callback can find them.
func (m *Manager) Load(ctx context.Context, id string) *Session {
	sess := m.load(ctx, id)
	metrics.ObserveSessionCheck(sess.State.String())
	return sess
}

func (m *Manager) load(ctx context.Context, id string) *Session {
	if id == "" {
		return &Session{State: Unauthenticated}
	}
	sess, err := m.store.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.logger.Errorw("Session lookup failed", "error", err)
		}
		return &Session{State: Unauthenticated}
	}
	if sess.Token == nil {
		sess.State = Unauthenticated
		return sess
	}

	sess.State = Initializing
	if !sess.expiresWithin(0, m.opts.Now()) {
		sess.State = Authenticated
		return sess
	}
	if err := m.refresh(ctx, sess, "request"); err != nil {
		return &Session{State: Unauthenticated}
	}
	return sess
}

// BeginLogin starts an authorization code flow and returns the session that
// holds the pending request together with the provider URL to redirect to.
// A fresh session ID is issued for every attempt.
func (m *Manager) BeginLogin(ctx context.Context, prev *Session, returnTo string, silent bool) (*Session, string, error) {
	if prev != nil && prev.ID != "" {
		if err := m.store.Delete(ctx, prev.ID); err != nil {
			m.logger.Warnw("Failed to drop previous session", "error", err)
		}
	}
	now := m.opts.Now()
	sess := &Session{
		ID:        uuid.NewString(),
		State:     Unauthenticated,
		CreatedAt: now,
		Pending: &PendingLogin{
			State:     uuid.NewString(),
			Verifier:  oauth2.GenerateVerifier(),
			ReturnTo:  returnTo,
			Silent:    silent,
			CreatedAt: now,
		},
	}
	if err := m.store.Save(ctx, sess); err != nil {
		return nil, "", errors.Wrap(err, "begin login")
	}
	return sess, m.auth.AuthCodeURL(sess.Pending.State, sess.Pending.Verifier, silent), nil
}

// CompleteLogin handles the provider callback. providerErr is the callback's
// error parameter, if any. The return-to path of the pending login is
// returned even when the login failed.
func (m *Manager) CompleteLogin(ctx context.Context, sess *Session, state, code, providerErr string) (*Session, string, error) {
	if sess == nil || sess.Pending == nil || sess.Pending.State == "" || sess.Pending.State != state {
		return nil, "", ErrInvalidState
	}
	pending := sess.Pending
	if m.opts.Now().Sub(pending.CreatedAt) > pendingTTL {
		m.drop(ctx, sess)
		return nil, pending.ReturnTo, ErrInvalidState
	}

	if providerErr != "" {
		m.drop(ctx, sess)
		switch providerErr {
		case "login_required", "interaction_required", "consent_required":
			return nil, pending.ReturnTo, ErrLoginRequired
		}
		return nil, pending.ReturnTo, errors.Errorf("provider rejected login: %s", providerErr)
	}

	tok, err := m.auth.Exchange(ctx, code, pending.Verifier)
	if err != nil {
		m.drop(ctx, sess)
		return nil, pending.ReturnTo, err
	}
	claims, err := m.auth.Verify(ctx, tok.AccessToken)
	if err != nil {
		m.drop(ctx, sess)
		return nil, pending.ReturnTo, err
	}

	// New ID on privilege change.
	m.drop(ctx, sess)
	next := &Session{
		ID:        uuid.NewString(),
		State:     Authenticated,
		Token:     tok,
		IDToken:   idToken(tok),
		User:      claims.User(),
		CreatedAt: m.opts.Now(),
	}
	if err := m.store.Save(ctx, next); err != nil {
		return nil, pending.ReturnTo, errors.Wrap(err, "save session")
	}
	m.logger.Infow("User logged in", "user", next.User.Username, "roles", next.User.Roles)
	return next, pending.ReturnTo, nil
}

// Logout deletes the session and returns where to send the browser: the
// provider's end-session URL for authenticated sessions, redirect otherwise.
func (m *Manager) Logout(ctx context.Context, sess *Session, redirect string) string {
	if sess == nil {
		return redirect
	}
	authenticated := sess.Token != nil
	if sess.User != nil {
		m.logger.Infow("User logged out", "user", sess.User.Username)
	}
	m.drop(ctx, sess)
	if !authenticated {
		return redirect
	}
	return m.auth.EndSessionURL(sess.IDToken, redirect)
}

// Invalidate ends a session locally, without a provider round trip.
func (m *Manager) Invalidate(ctx context.Context, sess *Session) {
	if sess == nil {
		return
	}
	m.drop(ctx, sess)
}

func (m *Manager) drop(ctx context.Context, sess *Session) {
	if sess.ID != "" {
		if err := m.store.Delete(ctx, sess.ID); err != nil {
			m.logger.Warnw("Failed to delete session", "error", err)
		}
	}
	sess.State = Unauthenticated
	sess.Token = nil
	sess.User = nil
	sess.Pending = nil
}

// Refresh renews the session's tokens. On failure the session is logged out
// and the error wraps sdyn.ErrSessionExpired.
func (m *Manager) Refresh(ctx context.Context, sess *Session) error {
	return m.refresh(ctx, sess, "request")
}

func (m *Manager) refresh(ctx context.Context, sess *Session, trigger string) error {
	stale := ""
	if sess.Token != nil {
		stale = sess.Token.AccessToken
	}
	// Not cancelled with the request: the flight may be shared.
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
	defer cancel()

	v, err, shared := m.flight.Do(sess.ID, func() (interface{}, error) {
		return m.renew(fctx, sess.ID, stale)
	})
	metrics.ObserveRefresh(trigger, err)
	if err != nil {
		m.logger.Warnw("Token refresh failed, session ended",
			"trigger", trigger,
			"shared", shared,
			"error", err)
		sess.State = Unauthenticated
		sess.Token = nil
		sess.User = nil
		if errors.Is(err, sdyn.ErrNoRefresh) {
			return err
		}
		return errors.Wrapf(sdyn.ErrSessionExpired, "refresh: %v", err)
	}
	*sess = *v.(*Session)
	return nil
}

func (m *Manager) renew(ctx context.Context, id, stale string) (*Session, error) {
	cur, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cur.Token == nil {
		return nil, errors.New("session has no token")
	}
	// Renewed by an earlier flight.
	if cur.Token.AccessToken != stale && !cur.expiresWithin(0, m.opts.Now()) {
		cur.State = Authenticated
		return cur, nil
	}
	if !m.opts.RefreshTokens || cur.Token.RefreshToken == "" {
		_ = m.store.Delete(ctx, id)
		return nil, sdyn.ErrNoRefresh
	}

	tok, err := m.auth.Refresh(ctx, cur.Token.RefreshToken)
	if err != nil {
		_ = m.store.Delete(ctx, id)
		return nil, err
	}
	claims, err := m.auth.Verify(ctx, tok.AccessToken)
	if err != nil {
		_ = m.store.Delete(ctx, id)
		return nil, err
	}

	next := *cur
	next.State = Authenticated
	next.Token = tok
	next.User = claims.User()
	if raw := idToken(tok); raw != "" {
		next.IDToken = raw
	}
	if err := m.store.Save(ctx, &next); err != nil {
		return nil, errors.Wrap(err, "save session")
	}
	return &next, nil
}

// SweepResult counts what one Sweep did.
type SweepResult struct {
	Refreshed int
	Failed    int
	Expired   int
}

// Sweep renews every authenticated session whose token expires within
// MinValidity and drops abandoned login attempts.
func (m *Manager) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	ids, err := m.store.IDs(ctx)
	if err != nil {
		return res, err
	}
	now := m.opts.Now()
	for _, id := range ids {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		sess, err := m.store.Get(ctx, id)
		if err != nil {
			continue
		}
		if sess.Token == nil {
			if sess.Pending == nil || now.Sub(sess.Pending.CreatedAt) > pendingTTL {
				_ = m.store.Delete(ctx, id)
				res.Expired++
			}
			continue
		}
		if !m.opts.RefreshTokens {
			if sess.expiresWithin(0, now) {
				_ = m.store.Delete(ctx, id)
				res.Expired++
			}
			continue
		}
		if !sess.expiresWithin(m.opts.MinValidity, now) {
			continue
		}
		if err := m.refresh(ctx, sess, "timer"); err != nil {
			res.Failed++
			continue
		}
		res.Refreshed++
	}
	return res, nil
}

// TokenSource binds the API client to sess. Refreshes update sess in place.
func (m *Manager) TokenSource(sess *Session) sdyn.TokenSource {
	return &tokenSource{m: m, sess: sess}
}

type tokenSource struct {
	m    *Manager
	sess *Session
}

func (t *tokenSource) Token(context.Context) (string, error) {
	if t.sess.Token == nil || t.sess.Token.AccessToken == "" {
		return "", ErrNotAuthenticated
	}
	return t.sess.Token.AccessToken, nil
}

func (t *tokenSource) Refresh(ctx context.Context) (string, error) {
	if t.sess.Token == nil {
		return "", ErrNotAuthenticated
	}
	if err := t.m.refresh(ctx, t.sess, "request"); err != nil {
		return "", err
	}
	return t.sess.Token.AccessToken, nil
}

func idToken(tok *oauth2.Token) string {
	raw, _ := tok.Extra("id_token").(string)
	return raw
}
