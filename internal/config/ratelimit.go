package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// RateLimitConfig configures the token buckets.  The request limiter keys
// buckets by client IP and, with KeyStrategy "ip_route", by route as well.
// The PIN guard keeps one bucket per reservation so the 10,000 possible
// cancellation PINs cannot be walked from many addresses at once.
type RateLimitConfig struct {
	Enabled        bool          `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	Capacity       int           `envconfig:"RATE_LIMIT_CAPACITY" default:"60"`
	RefillTokens   int           `envconfig:"RATE_LIMIT_REFILL_TOKENS" default:"1"`
	RefillInterval time.Duration `envconfig:"RATE_LIMIT_REFILL_INTERVAL" default:"1s"`
	TTL            time.Duration `envconfig:"RATE_LIMIT_TTL" default:"10m"`
	KeyStrategy    string        `envconfig:"RATE_LIMIT_KEY_STRATEGY" default:"ip_route"`
	Prefix         string        `envconfig:"RATE_LIMIT_PREFIX" default:"rl"`
	Debug          bool          `envconfig:"RATE_LIMIT_DEBUG" default:"false"`

	// Cancellation attempts per reservation: PinCapacity tries, then one
	// more every PinRefillInterval.
	PinCapacity       int           `envconfig:"RATE_LIMIT_PIN_CAPACITY" default:"5"`
	PinRefillInterval time.Duration `envconfig:"RATE_LIMIT_PIN_REFILL_INTERVAL" default:"5m"`
}

func LoadRateLimitConfig() (RateLimitConfig, error) {
	var c RateLimitConfig
	if err := envconfig.Process("", &c); err != nil {
		return RateLimitConfig{}, err
	}
	c.normalize()
	return c, nil
}

func (c *RateLimitConfig) normalize() {
	if c.Capacity < 1 {
		c.Capacity = 1
	}
	if c.RefillTokens < 1 {
		c.RefillTokens = 1
	}
	if c.RefillInterval <= 0 {
		c.RefillInterval = time.Second
	}
	// keep idle buckets long enough to refill completely
	if minTTL := 5 * c.RefillInterval; c.TTL < minTTL {
		c.TTL = minTTL
	}
	if c.PinCapacity < 1 {
		c.PinCapacity = 1
	}
	if c.PinRefillInterval <= 0 {
		c.PinRefillInterval = 5 * time.Minute
	}
}

// PinTTL is how long an idle per-reservation bucket is kept: long enough
// to refill from empty.
func (c RateLimitConfig) PinTTL() time.Duration {
	return time.Duration(c.PinCapacity+1) * c.PinRefillInterval
}
