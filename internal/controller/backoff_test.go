package controller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextDelayGrowsToCap(t *testing.T) {
	cfg := Config{PollInitial: time.Second, PollMax: 10 * time.Second, PollMultiplier: 2}.withDefaults()

	d := cfg.PollInitial
	var got []time.Duration
	for i := 0; i < 6; i++ {
		d = nextDelay(d, cfg)
		got = append(got, d)
	}
	assert.Equal(t, []time.Duration{
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second,
		10 * time.Second,
		10 * time.Second,
	}, got)
}

func TestNextDelayNeverShrinks(t *testing.T) {
	cfg := Config{PollInitial: time.Second, PollMax: 10 * time.Second, PollMultiplier: 1}.withDefaults()
	assert.Equal(t, time.Second, nextDelay(time.Second, cfg))
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, time.Second, cfg.PollInitial)
	assert.Equal(t, 10*time.Second, cfg.PollMax)
	assert.Equal(t, 2.0, cfg.PollMultiplier)
	assert.Equal(t, 3*time.Minute, cfg.Timeout)
	assert.Equal(t, 5*time.Second, cfg.AbortTimeout)
}
