package controller

import "time"

// Config tunes polling cadence and bounds. The shape is fixed (bounded
// exponential backoff plus an overall deadline); the numbers are
// deployment tuning.
type Config struct {
	PollInitial    time.Duration
	PollMax        time.Duration
	PollMultiplier float64
	Timeout        time.Duration
	AbortTimeout   time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInitial <= 0 {
		c.PollInitial = time.Second
	}
	if c.PollMax <= 0 {
		c.PollMax = 10 * time.Second
	}
	if c.PollMultiplier < 1 {
		c.PollMultiplier = 2.0
	}
	if c.Timeout <= 0 {
		c.Timeout = 3 * time.Minute
	}
	if c.AbortTimeout <= 0 {
		c.AbortTimeout = 5 * time.Second
	}
	return c
}

// nextDelay grows the poll interval geometrically up to the cap.
func nextDelay(cur time.Duration, cfg Config) time.Duration {
	next := time.Duration(float64(cur) * cfg.PollMultiplier)
	if next > cfg.PollMax || next < cur {
		next = cfg.PollMax
	}
	return next
}
