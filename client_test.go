package sdyn

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens struct {
	mu         sync.Mutex
	token      string
	next       string
	refreshErr error
	refreshes  int
}

func (s *staticTokens) Token(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *staticTokens) Refresh(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshes++
	if s.refreshErr != nil {
		return "", s.refreshErr
	}
	s.token = s.next
	return s.token, nil
}

type request struct {
	method string
	path   string
	query  url.Values
	auth   string
	body   string
}

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...Option) (*Client, *[]request) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []request
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, request{r.Method, r.URL.Path, r.URL.Query(), r.Header.Get("Authorization"), string(b)})
		mu.Unlock()
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	c, err := Open(*u, opts...)
	require.NoError(t, err)
	return c, &reqs
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestListMembersSendsParams(t *testing.T) {
	c, reqs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, Page[Member]{
			Data:       []Member{{ID: "m1", FirstName: "Болд", LastName: "Бат"}},
			Total:      21,
			Page:       3,
			PageSize:   10,
			TotalPages: 3,
		})
	})

	page, err := c.ListMembers(context.Background(), ListParams{Page: 3, PageSize: 10, Search: "бат", Status: "active"})
	require.NoError(t, err)
	assert.Equal(t, 21, page.Total)
	assert.Equal(t, "Бат Болд", page.Data[0].FullName())

	require.Len(t, *reqs, 1)
	got := (*reqs)[0]
	assert.Equal(t, "/api/v1/members", got.path)
	assert.Equal(t, "3", got.query.Get("page"))
	assert.Equal(t, "10", got.query.Get("pageSize"))
	assert.Equal(t, "бат", got.query.Get("search"))
	assert.Equal(t, "active", got.query.Get("status"))
	assert.Empty(t, got.query.Get("sort_by"))
	assert.Empty(t, got.auth)

	_, err = c.ListMembers(context.Background(), ListParams{Page: 1, SortBy: "joined_at", SortOrder: SortDesc})
	require.NoError(t, err)
	require.Len(t, *reqs, 2)
	assert.Equal(t, "joined_at", (*reqs)[1].query.Get("sort_by"))
	assert.Equal(t, "desc", (*reqs)[1].query.Get("sort_order"))
}

func TestUnauthorizedRefreshesOnce(t *testing.T) {
	tokens := &staticTokens{token: "old", next: "new"}
	c, reqs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer new" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, Member{ID: "me"})
	}, WithTokenSource(tokens))

	rejected := apiRequestCount(t, "/profile", "401")
	accepted := apiRequestCount(t, "/profile", "200")

	m, err := c.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "me", m.ID)
	assert.Equal(t, 1, tokens.refreshes)
	require.Len(t, *reqs, 2)
	assert.Equal(t, "Bearer old", (*reqs)[0].auth)
	assert.Equal(t, "Bearer new", (*reqs)[1].auth)

	assert.Equal(t, rejected+1, apiRequestCount(t, "/profile", "401"))
	assert.Equal(t, accepted+1, apiRequestCount(t, "/profile", "200"))
}

// apiRequestCount reads the backend request counter for one route and status.
func apiRequestCount(t *testing.T, route, status string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	var total float64
	for _, mf := range families {
		if mf.GetName() != "sdyn_api_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["route"] == route && labels["status"] == status {
				total += m.GetCounter().GetValue()
			}
		}
	}
	return total
}

func TestUnauthorizedAfterRefreshExpiresSession(t *testing.T) {
	tokens := &staticTokens{token: "old", next: "still-bad"}
	c, reqs := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, WithTokenSource(tokens))

	_, err := c.ListEvents(context.Background(), ListParams{Page: 1})
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, 1, tokens.refreshes)
	assert.Len(t, *reqs, 2)
}

func TestFailedRefreshDoesNotRetry(t *testing.T) {
	tokens := &staticTokens{token: "old", refreshErr: errors.New("invalid_grant")}
	c, reqs := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, WithTokenSource(tokens))

	err := c.DeleteMember(context.Background(), "m1")
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Len(t, *reqs, 1)
}

func TestOtherErrorsAreNotRetried(t *testing.T) {
	tokens := &staticTokens{token: "t"}
	c, reqs := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Имэйл бүртгэлтэй байна"})
	}, WithTokenSource(tokens))

	_, err := c.CreateMember(context.Background(), MemberInput{FirstName: "Болд"})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Equal(t, "Имэйл бүртгэлтэй байна", Message(err))
	assert.Equal(t, 0, tokens.refreshes)
	assert.Len(t, *reqs, 1)
}

func TestGetReturnsNilWhenMissing(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	})
	ctx := context.Background()

	m, err := c.GetMember(ctx, "x")
	assert.NoError(t, err)
	assert.Nil(t, m)

	o, err := c.GetOrganization(ctx, "x")
	assert.NoError(t, err)
	assert.Nil(t, o)

	err = c.DeleteEvent(ctx, "x")
	assert.True(t, IsNotFound(err))
}

func TestPlainTextErrorMessage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream unavailable\n"))
	})
	_, err := c.DashboardStats(context.Background())
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusBadGateway))
	assert.Equal(t, "upstream unavailable", Message(err))
}

func TestFeeAmountIsSentAsNumber(t *testing.T) {
	c, reqs := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]interface{}{"id": "f1", "amount": "50000.5", "year": 2025, "status": "pending"})
	})

	fee, err := c.CreateFee(context.Background(), FeeInput{
		MemberID: "m1",
		Amount:   decimal.RequireFromString("50000.50"),
		Year:     2025,
	})
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("50000.5").Equal(fee.Amount))
	require.Len(t, *reqs, 1)
	assert.JSONEq(t, `{"member_id":"m1","amount":50000.5,"year":2025}`, (*reqs)[0].body)
}

func TestExportReport(t *testing.T) {
	c, reqs := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	})

	raw, err := c.ExportReport(context.Background(), "fees", FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", raw.ContentType)
	assert.Equal(t, "%PDF-1.4", string(raw.Data))
	assert.Equal(t, "/api/v1/reports/export/fees", (*reqs)[0].path)
	assert.Equal(t, "pdf", (*reqs)[0].query.Get("format"))

	_, err = c.ExportReport(context.Background(), "fees", "docx")
	assert.Error(t, err)
	assert.Len(t, *reqs, 1)
}

func TestRegisterIsAnonymous(t *testing.T) {
	tokens := &staticTokens{token: "t"}
	c, reqs := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}, WithTokenSource(tokens))

	require.NoError(t, c.Register(context.Background(), RegisterRequest{Email: "a@b.mn", Password: "secret123"}))
	require.Len(t, *reqs, 1)
	assert.Equal(t, "/api/v1/auth/register", (*reqs)[0].path)
	assert.Empty(t, (*reqs)[0].auth)
}

func TestMarkAttendance(t *testing.T) {
	c, reqs := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	require.NoError(t, c.MarkAttendance(context.Background(), "e 1", []string{"m1", "m2"}, true))
	assert.Equal(t, "/api/v1/events/e 1/attendance", (*reqs)[0].path)
	assert.JSONEq(t, `{"member_ids":["m1","m2"],"attended":true}`, (*reqs)[0].body)
}

func TestEventFull(t *testing.T) {
	assert.False(t, Event{Capacity: 0, Registered: 500}.Full())
	assert.False(t, Event{Capacity: 10, Registered: 9}.Full())
	assert.True(t, Event{Capacity: 10, Registered: 10}.Full())
}

func TestOrganizationStats(t *testing.T) {
	c, reqs := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/organizations/missing/stats" {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"total_members": 120, "active_members": 100, "pending_members": 5,
			"total_fees": 6000000.5, "paid_fees": 4500000, "total_events": 7,
		})
	})

	stats, err := c.OrganizationStats(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/organizations/org-1/stats", (*reqs)[0].path)
	assert.Equal(t, 5, stats.PendingMembers)
	assert.True(t, decimal.RequireFromString("6000000.5").Equal(stats.TotalFees))

	stats, err = c.OrganizationStats(context.Background(), "missing")
	assert.NoError(t, err)
	assert.Nil(t, stats)
}

func TestBulkCreateFees(t *testing.T) {
	c, reqs := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]interface{}{"message": "Fees created successfully", "created": 2})
	})

	n, err := c.BulkCreateFees(context.Background(), BulkFeeInput{
		MemberIDs: []string{"m1", "m2"},
		Amount:    decimal.NewFromInt(50000),
		Year:      2025,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, *reqs, 1)
	assert.Equal(t, "/api/v1/fees/bulk", (*reqs)[0].path)
	assert.JSONEq(t, `{"member_ids":["m1","m2"],"amount":50000,"year":2025}`, (*reqs)[0].body)

	_, err = c.BulkCreateFees(context.Background(), BulkFeeInput{Amount: decimal.NewFromInt(1), Year: 2025})
	assert.Error(t, err)
	assert.Len(t, *reqs, 1)
}
