// Package clock provides the logical time source every core operation
// observes. Time is a monotonically increasing block height; nothing in the
// engine schedules against wall time, expiry is always a comparison against
// the height read at decision time.
package clock

import (
	"context"
	"sync/atomic"
	"time"
)

const (
	// BlocksPerDay converts day-denominated durations into block heights.
	BlocksPerDay uint64 = 144

	// EmergencyDuration is the fixed lifetime of an emergency episode.
	EmergencyDuration uint64 = 144
)

// Source yields the current logical height. Implementations must be
// monotonic: successive calls never return a smaller value.
type Source interface {
	Now(ctx context.Context) (uint64, error)
}

// Counter is a manually advanced Source for development and tests.
type Counter struct {
	height atomic.Uint64
}

func NewCounter(start uint64) *Counter {
	c := &Counter{}
	c.height.Store(start)
	return c
}

func (c *Counter) Now(ctx context.Context) (uint64, error) {
	return c.height.Load(), nil
}

// Advance moves the counter forward by n blocks and returns the new height.
func (c *Counter) Advance(n uint64) uint64 {
	return c.height.Add(n)
}

// Wall derives the height from wall time at a fixed block interval, anchored
// at a genesis instant. Useful when the engine runs without a chain.
type Wall struct {
	genesis  time.Time
	interval time.Duration
}

func NewWall(genesis time.Time, interval time.Duration) *Wall {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Wall{genesis: genesis, interval: interval}
}

func (w *Wall) Now(ctx context.Context) (uint64, error) {
	elapsed := time.Since(w.genesis)
	if elapsed < 0 {
		return 0, nil
	}
	return uint64(elapsed / w.interval), nil
}
