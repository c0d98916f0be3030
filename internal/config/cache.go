package config

import "time"

// CountCacheConfig defines settings for the per-raffle ticket-count cache.
// The TTL is deliberately short – seconds, not minutes – because the cache
// only exists to absorb read bursts on the raffle detail page; every
// successful mutation deletes the entry anyway.
type CountCacheConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

// LoadCountCacheConfig reads environment variables to build a
// CountCacheConfig. TTLs above ten seconds are clamped back down; a
// staler count defeats the point of invalidation-on-write.
func LoadCountCacheConfig() CountCacheConfig {
	cfg := CountCacheConfig{
		Enabled: envBool("COUNT_CACHE_ENABLED", true),
		TTL:     envDur("COUNT_CACHE_TTL", 5*time.Second),
		Prefix:  envStr("COUNT_CACHE_PREFIX", "counts"),
	}
	if cfg.TTL < time.Second {
		cfg.TTL = time.Second
	}
	if cfg.TTL > 10*time.Second {
		cfg.TTL = 10 * time.Second
	}
	return cfg
}
