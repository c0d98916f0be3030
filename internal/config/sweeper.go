package config

import "time"

// SweeperConfig bounds the expiration sweeper. Each run processes at most
// MaxBatches batches of BatchSize reservations so a single run stays short
// and retry-safe even after a long backlog builds up.
type SweeperConfig struct {
	Enabled    bool
	Interval   time.Duration
	BatchSize  int
	MaxBatches int
}

// LoadSweeperConfig reads environment variables to build a SweeperConfig.
func LoadSweeperConfig() SweeperConfig {
	cfg := SweeperConfig{
		Enabled:    envBool("SWEEPER_ENABLED", true),
		Interval:   envDur("SWEEPER_INTERVAL", time.Minute),
		BatchSize:  envInt("SWEEPER_BATCH_SIZE", 500),
		MaxBatches: envInt("SWEEPER_MAX_BATCHES", 10),
	}
	if cfg.Interval < time.Second {
		cfg.Interval = time.Second
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.MaxBatches < 1 {
		cfg.MaxBatches = 1
	}
	return cfg
}
