package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/meeting-room-reservation/internal/config"
)

// BucketParams shapes one token bucket.
type BucketParams struct {
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration // idle buckets are forgotten after TTL
}

// Decision is the outcome of taking a token.
type Decision struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// Bucket takes one token from the bucket stored under key.
type Bucket interface {
	Take(ctx context.Context, key string, p BucketParams) (Decision, error)
}

// refillAndTake runs the same steps as the Lua script below: whole
// intervals since the last refill add RefillTokens each, capped at
// Capacity, then one token is spent if any is left.
func refillAndTake(tokens int64, last, now int64, p BucketParams) (int64, int64, Decision) {
	interval := p.RefillInterval.Milliseconds()
	if interval > 0 && p.RefillTokens > 0 {
		elapsed := now - last
		if elapsed < 0 {
			elapsed = 0
		}
		if n := elapsed / interval; n > 0 {
			tokens = min(int64(p.Capacity), tokens+n*int64(p.RefillTokens))
			last += n * interval
		}
	}
	if tokens > 0 {
		return tokens - 1, last, Decision{Allowed: true, Remaining: tokens - 1}
	}
	wait := interval - (now - last)
	if wait < 0 {
		wait = 0
	}
	return tokens, last, Decision{RetryAfter: time.Duration(wait) * time.Millisecond}
}

var takeScript = redis.NewScript(`
	local key = KEYS[1]
	local now_ms = tonumber(ARGV[1])
	local capacity = tonumber(ARGV[2])
	local refill_tokens = tonumber(ARGV[3])
	local interval_ms = tonumber(ARGV[4])
	local ttl_seconds = tonumber(ARGV[5])

	local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
	local tokens = tonumber(state[1])
	local last_refill = tonumber(state[2])
	if tokens == nil or last_refill == nil then
		tokens = capacity
		last_refill = now_ms
	end

	if interval_ms > 0 and refill_tokens > 0 then
		local elapsed = math.max(0, now_ms - last_refill)
		local intervals = math.floor(elapsed / interval_ms)
		if intervals > 0 then
			tokens = math.min(capacity, tokens + (intervals * refill_tokens))
			last_refill = last_refill + (intervals * interval_ms)
		end
	end

	local allowed = 0
	local retry_after_ms = 0
	if tokens > 0 then
		allowed = 1
		tokens = tokens - 1
	else
		retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
	end

	redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
	redis.call('EXPIRE', key, ttl_seconds)
	return { allowed, tokens, retry_after_ms }
`)

// RedisBucket keeps buckets in Redis so every instance shares them.
type RedisBucket struct {
	rdb *redis.Client
	now func() time.Time
}

// NewRedisBucket returns nil when rdb is nil so callers can fall back.
func NewRedisBucket(rdb *redis.Client) Bucket {
	if rdb == nil {
		return nil
	}
	return &RedisBucket{rdb: rdb, now: time.Now}
}

func (b *RedisBucket) Take(ctx context.Context, key string, p BucketParams) (Decision, error) {
	ttl := int64(p.TTL / time.Second)
	if ttl < 1 {
		ttl = 1
	}
	vals, err := takeScript.Run(ctx, b.rdb, []string{key},
		b.now().UnixMilli(), p.Capacity, p.RefillTokens, p.RefillInterval.Milliseconds(), ttl).Int64Slice()
	if err != nil {
		return Decision{}, err
	}
	if len(vals) != 3 {
		return Decision{}, errors.New("ratelimit: unexpected script result")
	}
	return Decision{
		Allowed:    vals[0] == 1,
		Remaining:  vals[1],
		RetryAfter: time.Duration(vals[2]) * time.Millisecond,
	}, nil
}

type bucketState struct {
	tokens int64
	last   int64 // ms of last refill
	seen   time.Time
}

// MemoryBucket keeps buckets in process memory.  It guards a single
// instance when Redis is not available.
type MemoryBucket struct {
	mu      sync.Mutex
	now     func() time.Time
	buckets map[string]*bucketState
	takes   int
}

func NewMemoryBucket() *MemoryBucket {
	return &MemoryBucket{now: time.Now, buckets: map[string]*bucketState{}}
}

func (b *MemoryBucket) Take(_ context.Context, key string, p BucketParams) (Decision, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	b.takes++
	if b.takes%1024 == 0 {
		for k, st := range b.buckets {
			if now.Sub(st.seen) > p.TTL {
				delete(b.buckets, k)
			}
		}
	}
	st, ok := b.buckets[key]
	if !ok || now.Sub(st.seen) > p.TTL {
		st = &bucketState{tokens: int64(p.Capacity), last: now.UnixMilli()}
		b.buckets[key] = st
	}
	var d Decision
	st.tokens, st.last, d = refillAndTake(st.tokens, st.last, now.UnixMilli(), p)
	st.seen = now
	return d, nil
}

// NewTokenBucket limits requests per client.  A nil bucket or a disabled
// config lets everything through, and so does a failing bucket.
func NewTokenBucket(cfg config.RateLimitConfig, bucket Bucket, log *zap.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || bucket == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if log == nil {
		log = zap.NewNop()
	}
	params := BucketParams{
		Capacity:       cfg.Capacity,
		RefillTokens:   cfg.RefillTokens,
		RefillInterval: cfg.RefillInterval,
		TTL:            cfg.TTL,
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := buildRateKey(cfg, c)
			d, err := bucket.Take(c.Request().Context(), key, params)
			if err != nil {
				log.Warn("ratelimit: bucket error", zap.String("key", key), zap.Error(err))
				return next(c)
			}
			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Capacity))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
			if !d.Allowed {
				if cfg.Debug {
					log.Debug("ratelimit: blocked", zap.String("key", key), zap.Duration("retry", d.RetryAfter))
				}
				return tooMany(c, "rate limit exceeded", d.RetryAfter)
			}
			return next(c)
		}
	}
}

// NewPinGuard limits cancellation attempts per reservation, whoever sends
// them.  Every reservation id in the request body spends one token; when
// any bucket is empty the request is refused before the password is
// checked.  A body that cannot be read is left for the handler to reject.
func NewPinGuard(cfg config.RateLimitConfig, bucket Bucket, log *zap.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || bucket == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if log == nil {
		log = zap.NewNop()
	}
	params := BucketParams{
		Capacity:       cfg.PinCapacity,
		RefillTokens:   1,
		RefillInterval: cfg.PinRefillInterval,
		TTL:            cfg.PinTTL(),
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ids, err := peekReservationIDs(c.Request())
			if err != nil {
				return next(c)
			}
			ctx := c.Request().Context()
			for _, id := range ids {
				key := pinKey(cfg.Prefix, id)
				d, err := bucket.Take(ctx, key, params)
				if err != nil {
					log.Warn("ratelimit: pin bucket error", zap.String("key", key), zap.Error(err))
					continue
				}
				if !d.Allowed {
					log.Warn("ratelimit: cancellation attempts exhausted",
						zap.Uint64("reservation_id", id), zap.String("ip", c.RealIP()))
					return tooMany(c, "too many cancellation attempts for this reservation", d.RetryAfter)
				}
			}
			return next(c)
		}
	}
}

func pinKey(prefix string, id uint64) string {
	return prefix + ":pin:" + strconv.FormatUint(id, 10)
}

// maxPeekBody bounds how much of a cancellation body is buffered.
const maxPeekBody = 64 << 10

// peekReservationIDs reads the distinct rows[].reservationId values of a
// cancellation body and puts the body back for the handler.
func peekReservationIDs(r *http.Request) ([]uint64, error) {
	if r.Body == nil {
		return nil, errors.New("empty body")
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxPeekBody+1))
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	if len(raw) > maxPeekBody {
		return nil, errors.New("body too large")
	}
	var body struct {
		Rows []struct {
			ReservationID uint64 `json:"reservationId"`
		} `json:"rows"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	seen := map[uint64]bool{}
	var ids []uint64
	for _, row := range body.Rows {
		if row.ReservationID != 0 && !seen[row.ReservationID] {
			seen[row.ReservationID] = true
			ids = append(ids, row.ReservationID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func tooMany(c echo.Context, msg string, retry time.Duration) error {
	secs := int(math.Ceil(retry.Seconds()))
	if secs < 0 {
		secs = 0
	}
	c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
	return c.JSON(http.StatusTooManyRequests, echo.Map{
		"error":       "too_many_requests",
		"message":     msg,
		"retry_after": secs,
	})
}

// buildRateKey keys buckets by client IP, route or both.  Requests are
// anonymous, so there is no per-user bucket.
func buildRateKey(cfg config.RateLimitConfig, c echo.Context) string {
	parts := []string{cfg.Prefix}
	ip := c.RealIP()
	if ip == "" {
		ip = "unknown"
	}
	route := c.Request().Method + " " + c.Path()

	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip":
		parts = append(parts, "ip", ip)
	case "route":
		parts = append(parts, "route", route)
	default: // "ip_route"
		parts = append(parts, "ip", ip, "route", route)
	}
	return strings.Join(parts, ":")
}
