package web

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/sdyn/go-sdyn/internal/config"
	"github.com/sdyn/go-sdyn/internal/metrics"
)

// logWriter captures the status code and body size of a response.
type logWriter struct {
	http.ResponseWriter
	code, bytes int
}

var _ http.ResponseWriter = (*logWriter)(nil)

var _ http.Flusher = (*logWriter)(nil)

var _ http.Hijacker = (*logWriter)(nil)

func (r *logWriter) Write(p []byte) (int, error) {
	written, err := r.ResponseWriter.Write(p)
	r.bytes += written
	return written, err
}

// Only called for non-200 answers, so code starts at 200.
func (r *logWriter) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *logWriter) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func (r *logWriter) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (r *logWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := r.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("http.Hijacker not implemented")
}

// NewLoggingMiddleware logs every response and counts it per route. It must
// run inside the router so the matched route is known.
func NewLoggingMiddleware(app config.App, logger *zap.SugaredLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			writer := &logWriter{code: http.StatusOK, ResponseWriter: w}
			next.ServeHTTP(writer, r)

			route := "unknown"
			if cur := mux.CurrentRoute(r); cur != nil && cur.GetName() != "" {
				route = cur.GetName()
			}
			metrics.ObservePage(string(app), route, writer.code)
			logger.Debugw("response",
				"method", r.Method,
				"path", r.URL.Path,
				"route", route,
				"status", fmt.Sprintf("%d %s", writer.code, http.StatusText(writer.code)),
				"bytes", humanize.Bytes(uint64(writer.bytes)), //nolint:gosec
				"time", time.Since(start))
		})
	}
}
