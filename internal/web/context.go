package web

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	sdyn "github.com/sdyn/go-sdyn"
	"github.com/sdyn/go-sdyn/internal/logging"
	"github.com/sdyn/go-sdyn/internal/session"
)

type contextKey int

const (
	sessionKey contextKey = iota
	clientKey
)

// NewContextHandler adds a request-scoped logger to the request context.
func NewContextHandler(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logging.WithContext(r.Context(), logger.With(
				"method", r.Method,
				"path", r.URL.Path,
				"addr", r.RemoteAddr,
			))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func withSession(ctx context.Context, sess *session.Session, api *sdyn.Client) context.Context {
	ctx = context.WithValue(ctx, sessionKey, sess)
	return context.WithValue(ctx, clientKey, api)
}

// sessionFrom returns the request's session, never nil.
func sessionFrom(ctx context.Context) *session.Session {
	if sess, ok := ctx.Value(sessionKey).(*session.Session); ok {
		return sess
	}
	return &session.Session{State: session.Unauthenticated}
}

// clientFrom returns the API client bound to the request's session.
func clientFrom(ctx context.Context) *sdyn.Client {
	api, _ := ctx.Value(clientKey).(*sdyn.Client)
	return api
}
