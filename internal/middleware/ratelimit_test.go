package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/raffle-reservation/internal/config"
)

type fakeWindowStore struct {
	counts    map[string]int64
	remaining time.Duration
	err       error
}

func (s *fakeWindowStore) Incr(_ context.Context, key string, _ time.Duration) (int64, time.Duration, error) {
	if s.err != nil {
		return 0, 0, s.err
	}
	if s.counts == nil {
		s.counts = map[string]int64{}
	}
	s.counts[key]++
	return s.counts[key], s.remaining, nil
}

func runLimited(limiter echo.MiddlewareFunc) (*httptest.ResponseRecorder, bool) {
	e := echo.New()
	handled := false
	handler := limiter(func(c echo.Context) error {
		handled = true
		return c.NoContent(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodPost, "/v1/reservations", nil)
	req.RemoteAddr = "203.0.113.9:4411"
	rec := httptest.NewRecorder()
	if err := handler(e.NewContext(req, rec)); err != nil {
		e.HTTPErrorHandler(err, e.NewContext(req, rec))
	}
	return rec, handled
}

func TestLimiterAllowsUpToLimitThenBlocks(test *testing.T) {
	test.Parallel()
	store := &fakeWindowStore{remaining: 42 * time.Second}
	limiter := NewReserveLimiter(config.RateLimitConfig{
		Enabled: true, Limit: 10, Window: time.Minute, Prefix: "ratelimit",
	}, store)

	for i := 1; i <= 10; i++ {
		rec, handled := runLimited(limiter)
		if !handled || rec.Code != http.StatusOK {
			test.Fatalf("request %d should pass, got status %d handled=%v", i, rec.Code, handled)
		}
	}

	rec, handled := runLimited(limiter)
	if handled {
		test.Fatalf("request 11 must not reach the handler")
	}
	if rec.Code != http.StatusTooManyRequests {
		test.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "42" {
		test.Fatalf("expected Retry-After 42, got %q", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "0" {
		test.Fatalf("expected no remaining budget, got %q", got)
	}
}

func TestLimiterSetsRateHeadersWhileAllowing(test *testing.T) {
	test.Parallel()
	store := &fakeWindowStore{remaining: time.Minute}
	limiter := NewReserveLimiter(config.RateLimitConfig{
		Enabled: true, Limit: 3, Window: time.Minute, Prefix: "ratelimit",
	}, store)

	rec, _ := runLimited(limiter)
	if got := rec.Header().Get("X-RateLimit-Limit"); got != "3" {
		test.Fatalf("expected limit header 3, got %q", got)
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "2" {
		test.Fatalf("expected 2 remaining after first request, got %q", got)
	}
}

func TestLimiterKeysByClientIP(test *testing.T) {
	test.Parallel()
	store := &fakeWindowStore{remaining: time.Minute}
	limiter := NewReserveLimiter(config.RateLimitConfig{
		Enabled: true, Limit: 5, Window: time.Minute, Prefix: "ratelimit",
	}, store)

	runLimited(limiter)
	if _, ok := store.counts["ratelimit:reserve:203.0.113.9"]; !ok {
		test.Fatalf("expected counter keyed by client IP, have %v", store.counts)
	}
}

func TestLimiterFailsOpenOnStoreError(test *testing.T) {
	test.Parallel()
	store := &fakeWindowStore{err: errors.New("redis down")}
	limiter := NewReserveLimiter(config.RateLimitConfig{
		Enabled: true, Limit: 1, Window: time.Minute, Prefix: "ratelimit",
	}, store)

	for i := 0; i < 3; i++ {
		rec, handled := runLimited(limiter)
		if !handled || rec.Code != http.StatusOK {
			test.Fatalf("expected fail-open pass-through, got status %d handled=%v", rec.Code, handled)
		}
	}
}

func TestLimiterDisabledIsPassThrough(test *testing.T) {
	test.Parallel()
	store := &fakeWindowStore{}
	limiter := NewReserveLimiter(config.RateLimitConfig{Enabled: false, Limit: 1}, store)

	rec, handled := runLimited(limiter)
	if !handled || rec.Code != http.StatusOK {
		test.Fatalf("disabled limiter must pass requests through")
	}
	if len(store.counts) != 0 {
		test.Fatalf("disabled limiter must not touch the store, have %v", store.counts)
	}
}

func TestLimiterNilStoreIsPassThrough(test *testing.T) {
	test.Parallel()
	limiter := NewReserveLimiter(config.RateLimitConfig{Enabled: true, Limit: 1, Window: time.Minute}, nil)
	rec, handled := runLimited(limiter)
	if !handled || rec.Code != http.StatusOK {
		test.Fatalf("nil store must disable limiting")
	}
}
