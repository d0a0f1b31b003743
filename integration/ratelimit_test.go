package integration

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCostTableMatchesSpecificRuleOverDefault(t *testing.T) {
	ct := CostTable{DefaultCost: 1, Rules: []CostRule{{Pattern: "tool:shell*", Cost: 10}}}
	require.Equal(t, 10, ct.CostFor("tool:shell_exec"))
	require.Equal(t, 1, ct.CostFor("tool:read_file"))
}

func TestLimiterAllowsUpToBurstThenBlocks(t *testing.T) {
	l := NewLimiter(0, 2, CostTable{DefaultCost: 1})
	require.True(t, l.Allow("agent-1", "chat"))
	require.True(t, l.Allow("agent-1", "chat"))
	require.False(t, l.Allow("agent-1", "chat"))
}

func TestLimiterTracksBucketsPerKeyIndependently(t *testing.T) {
	l := NewLimiter(0, 1, CostTable{DefaultCost: 1})
	require.True(t, l.Allow("agent-1", "chat"))
	require.True(t, l.Allow("agent-2", "chat"))
	require.False(t, l.Allow("agent-1", "chat"))
}

func TestRateLimitMiddlewareAllowsWithinBurst(t *testing.T) {
	l := NewLimiter(0, 1, CostTable{DefaultCost: 1})
	handler := RateLimitMiddleware(l, "chat")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitMiddlewareDeniesOverBurstWith429AndRetryAfter(t *testing.T) {
	l := NewLimiter(0, 1, CostTable{DefaultCost: 1})
	handler := RateLimitMiddleware(l, "chat")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "60", rec.Header().Get("Retry-After"))
}
