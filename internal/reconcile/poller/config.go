package poller

import "time"

// Config controls the pending-import poller loop.
type Config struct {
	BatchSize    int
	PollInterval time.Duration
	// MinAge is how long a triggered import must sit before polling it,
	// giving the completion webhook a head start.
	MinAge time.Duration
}

func DefaultConfig() Config {
	return Config{
		BatchSize:    10,
		PollInterval: 5 * time.Minute,
		MinAge:       10 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaults.PollInterval
	}
	if c.MinAge <= 0 {
		c.MinAge = defaults.MinAge
	}
	return c
}
