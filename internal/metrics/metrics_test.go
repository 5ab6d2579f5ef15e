package metrics_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pkordes/triplog/internal/domain"
	"github.com/pkordes/triplog/internal/metrics"
)

func scrape(t *testing.T, c *metrics.Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{domain.ErrNotFound, "not_found"},
		{fmt.Errorf("%w: to is required", domain.ErrValidation), "validation"},
		{&domain.StateError{Kind: domain.ErrForbidden}, "forbidden"},
		{fmt.Errorf("service: %w", &domain.StateError{Kind: domain.ErrPrecondition}), "precondition"},
		{&domain.StateError{Kind: domain.ErrConflict}, "conflict"},
		{errors.New("db exploded"), "error"},
	}
	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, metrics.Outcome(tc.err))
		})
	}
}

func TestCollector_Transition(t *testing.T) {
	c := metrics.New()

	c.Transition("trip.create", nil)
	c.Transition("trip.create", nil)
	c.Transition("destination.start", &domain.StateError{Kind: domain.ErrConflict})

	body := scrape(t, c)
	assert.Contains(t, body, `triplog_transitions_total{operation="trip.create",outcome="ok"} 2`)
	assert.Contains(t, body, `triplog_transitions_total{operation="destination.start",outcome="conflict"} 1`)
}

func TestCollector_Requests(t *testing.T) {
	c := metrics.New()

	done := c.RequestStarted()
	assert.Contains(t, scrape(t, c), "http_requests_in_flight 1")
	done(http.MethodPost, "/trips", http.StatusCreated, 20*time.Millisecond)

	body := scrape(t, c)
	assert.Contains(t, body, "http_requests_in_flight 0")
	assert.Contains(t, body, `http_requests_total{method="POST",route="/trips",status="201"} 1`)
	assert.Contains(t, body, `http_request_duration_seconds_count{method="POST",route="/trips"} 1`)
}
