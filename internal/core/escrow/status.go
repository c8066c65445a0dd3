package escrow

import (
	"context"
	"time"
)

// Status is the application-level state of an escrow that still exists on
// the ledger. It is derived on every read and never stored.
type Status string

const (
	// StatusActive: no time window is open yet, or release needs a
	// fulfillment.
	StatusActive Status = "active"
	// StatusReadyToFinish: FinishAfter has passed and CancelAfter has not.
	StatusReadyToFinish Status = "ready_to_finish"
	// StatusReadyToCancel: CancelAfter has passed on an escrow with no
	// FinishAfter.
	StatusReadyToCancel Status = "ready_to_cancel"
	// StatusExpired: CancelAfter has passed after the finish window opened
	// and nobody finished it.
	StatusExpired Status = "expired"
)

// ComputeStatus derives the status of v at now. Once CancelAfter has passed
// the escrow is no longer a finish target, so cancel takes precedence over
// an open finish window. Bounds are inclusive.
func ComputeStatus(v View, now time.Time) Status {
	reached := func(bound *time.Time) bool {
		return bound != nil && !now.Before(*bound)
	}
	switch {
	case reached(v.CancelAfter) && v.FinishAfter == nil:
		return StatusReadyToCancel
	case reached(v.CancelAfter):
		return StatusExpired
	case reached(v.FinishAfter):
		return StatusReadyToFinish
	default:
		return StatusActive
	}
}

// Status reads the escrow and derives its status from the manager clock.
// found=false means the escrow no longer exists and has no status.
func (m *Manager) Status(ctx context.Context, owner string, sequence uint32) (*View, Status, bool, error) {
	v, found, err := m.Info(ctx, owner, sequence)
	if err != nil || !found {
		return nil, "", found, err
	}
	return v, ComputeStatus(*v, m.clock.Now()), true, nil
}
