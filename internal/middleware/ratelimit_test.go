package middleware

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/meeting-room-reservation/internal/config"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func newMemoryBucket(clk *fakeClock) *MemoryBucket {
	b := NewMemoryBucket()
	b.now = clk.now
	return b
}

func TestMemoryBucketPastCapacity(t *testing.T) {
	clk := &fakeClock{t: time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)}
	b := newMemoryBucket(clk)
	p := BucketParams{Capacity: 3, RefillTokens: 1, RefillInterval: time.Minute, TTL: time.Hour}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, _ := b.Take(ctx, "k", p)
		if !d.Allowed || d.Remaining != int64(2-i) {
			t.Fatalf("take %d: %+v", i, d)
		}
	}
	d, _ := b.Take(ctx, "k", p)
	if d.Allowed {
		t.Fatal("fourth take should be refused")
	}
	if d.RetryAfter != time.Minute {
		t.Fatalf("retry after: got %v", d.RetryAfter)
	}
	if d, _ := b.Take(ctx, "other", p); !d.Allowed {
		t.Fatal("buckets must be independent")
	}

	clk.t = clk.t.Add(61 * time.Second)
	if d, _ := b.Take(ctx, "k", p); !d.Allowed {
		t.Fatal("one token should have been refilled")
	}
	if d, _ := b.Take(ctx, "k", p); d.Allowed {
		t.Fatal("only one token was refilled")
	}
}

func TestTokenBucketReturns429(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	cfg := config.RateLimitConfig{Enabled: true, Capacity: 2, RefillTokens: 1, RefillInterval: 10 * time.Second, TTL: time.Minute, Prefix: "rl"}
	mw := NewTokenBucket(cfg, newMemoryBucket(clk), nil)
	h := mw(func(c echo.Context) error { return c.NoContent(http.StatusCreated) })

	var rec *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		var c echo.Context
		c, rec = newCtx(http.MethodPost, "/v1/reservations")
		c.SetPath("/v1/reservations")
		if err := h(c); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		if i < 2 && rec.Code != http.StatusCreated {
			t.Fatalf("request %d: got %d", i, rec.Code)
		}
	}
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: got %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "10" || rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Fatalf("headers: %v", rec.Header())
	}
	if !strings.Contains(rec.Body.String(), "too_many_requests") {
		t.Fatalf("body: %s", rec.Body.String())
	}
}

func cancelCtx(body, ip string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/reservations/cancel", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(echo.HeaderXRealIP, ip)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestPinGuardLimitsPerReservation(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	cfg := config.RateLimitConfig{Enabled: true, Prefix: "rl", PinCapacity: 2, PinRefillInterval: 5 * time.Minute}
	var seen []string
	mw := NewPinGuard(cfg, newMemoryBucket(clk), nil)
	h := mw(func(c echo.Context) error {
		b, _ := io.ReadAll(c.Request().Body)
		seen = append(seen, string(b))
		return c.JSON(http.StatusForbidden, echo.Map{"error": "password_mismatch"})
	})

	body7 := `{"room":"Room 1","date":"2026-10-20","rows":[{"reservationId":7,"time":"09:00 - 09:30"},{"reservationId":7,"time":"09:30 - 10:00"}],"password":"0000"}`
	// a different address each time: the bucket follows the reservation
	for i, ip := range []string{"10.0.0.1", "10.0.0.2"} {
		c, rec := cancelCtx(body7, ip)
		if err := h(c); err != nil {
			t.Fatal(err)
		}
		if rec.Code != http.StatusForbidden {
			t.Fatalf("attempt %d: got %d", i, rec.Code)
		}
	}
	if len(seen) != 2 || seen[0] != body7 {
		t.Fatalf("handler should see the unchanged body, got %q", seen)
	}

	c, rec := cancelCtx(body7, "10.0.0.3")
	if err := h(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third attempt: got %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "300" {
		t.Fatalf("Retry-After: %q", rec.Header().Get("Retry-After"))
	}
	if len(seen) != 2 {
		t.Fatal("refused attempt must not reach the handler")
	}

	body8 := `{"room":"Room 1","date":"2026-10-20","rows":[{"reservationId":8,"time":"11:00 - 11:30"}],"password":"0000"}`
	c, rec = cancelCtx(body8, "10.0.0.3")
	if err := h(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("other reservation: got %d", rec.Code)
	}

	// a request naming the exhausted id alongside a fresh one is refused too
	mixed := `{"rows":[{"reservationId":9},{"reservationId":7}],"password":"0000"}`
	c, rec = cancelCtx(mixed, "10.0.0.4")
	if err := h(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("mixed ids: got %d, want 429", rec.Code)
	}

	clk.t = clk.t.Add(5*time.Minute + time.Second)
	c, rec = cancelCtx(body7, "10.0.0.5")
	if err := h(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusForbidden {
		t.Fatalf("after refill: got %d", rec.Code)
	}
}

func TestPinGuardPassesUnreadableBody(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Prefix: "rl", PinCapacity: 1, PinRefillInterval: time.Minute}
	mw := NewPinGuard(cfg, NewMemoryBucket(), nil)
	var got string
	h := mw(func(c echo.Context) error {
		b, _ := io.ReadAll(c.Request().Body)
		got = string(b)
		return c.NoContent(http.StatusBadRequest)
	})
	c, rec := cancelCtx("{not json", "10.0.0.1")
	if err := h(c); err != nil {
		t.Fatal(err)
	}
	if rec.Code != http.StatusBadRequest || got != "{not json" {
		t.Fatalf("got %d %q", rec.Code, got)
	}
}

func TestPeekReservationIDs(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"rows":[{"reservationId":5},{"reservationId":2},{"reservationId":5},{"time":"x"}]}`))
	ids, err := peekReservationIDs(req)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != 2 || ids[1] != 5 {
		t.Fatalf("ids: %v", ids)
	}
}
