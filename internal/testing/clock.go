package testing

import (
	"sync"
	"time"

	"github.com/LeJamon/goxrpl-escrow/internal/codec/ledgertime"
)

// ManualClock is a controllable ledgertime.Clock.
type ManualClock struct {
	mu      sync.RWMutex
	current time.Time
}

var _ ledgertime.Clock = (*ManualClock)(nil)

// NewManualClock returns a clock set to January 1, 2024, 00:00:00 UTC.
func NewManualClock() *ManualClock {
	return NewManualClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
}

// NewManualClockAt returns a clock set to t.
func NewManualClockAt(t time.Time) *ManualClock {
	return &ManualClock{current: t}
}

// Now returns the current time on the clock.
func (c *ManualClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// LedgerTime returns the current time in ledger seconds.
func (c *ManualClock) LedgerTime() uint32 {
	return uint32(ledgertime.ToLedgerTime(c.Now().Unix()))
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// Set sets the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}
