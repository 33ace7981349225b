package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	apiRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sdyn_api_requests_total",
			Help: "Backend API requests by method, resource and status",
		},
		[]string{"method", "route", "status"},
	)

	apiDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sdyn_api_request_duration_seconds",
			Help:    "Backend API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	tokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sdyn_token_refresh_total",
			Help: "Access token refresh attempts by trigger and result",
		},
		[]string{"trigger", "result"},
	)

	sessionsLoaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sdyn_session_checks_total",
			Help: "Silent session checks by resulting state",
		},
		[]string{"state"},
	)

	pageRenders = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sdyn_page_renders_total",
			Help: "Rendered pages by application, template and status",
		},
		[]string{"app", "page", "status"},
	)
)

// ObserveAPIRequest records one backend call. A zero status means the request
// never got an answer.
func ObserveAPIRequest(method, route string, status int, d time.Duration) {
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	apiRequests.WithLabelValues(method, route, code).Inc()
	apiDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveRefresh records a token refresh. trigger is "request" or "timer".
func ObserveRefresh(trigger string, err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	tokenRefreshes.WithLabelValues(trigger, result).Inc()
}

func ObserveSessionCheck(state string) {
	sessionsLoaded.WithLabelValues(state).Inc()
}

func ObservePage(app, page string, status int) {
	pageRenders.WithLabelValues(app, page, strconv.Itoa(status)).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
