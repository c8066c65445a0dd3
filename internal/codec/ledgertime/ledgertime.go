// Package ledgertime converts between Unix seconds and ledger seconds, which
// count from 2000-01-01T00:00:00Z.
package ledgertime

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// RippleEpoch is 2000-01-01T00:00:00Z in Unix seconds.
const RippleEpoch int64 = 946684800

// SecondsPerDay is the multiplier used by Days.
const SecondsPerDay int64 = 86400

// ErrOutOfRange is returned when a ledger time does not fit a UInt32 field.
var ErrOutOfRange = errors.New("ledger time out of range")

// ToLedgerTime converts Unix seconds to ledger seconds.
func ToLedgerTime(unix int64) int64 {
	return unix - RippleEpoch
}

// ToUnixTime converts ledger seconds to Unix seconds.
func ToUnixTime(ledger int64) int64 {
	return ledger + RippleEpoch
}

// FromNowPlusSeconds returns the ledger time offset seconds after now.
func FromNowPlusSeconds(now time.Time, offset int64) int64 {
	return ToLedgerTime(now.Unix() + offset)
}

// ToField narrows a ledger time to the UInt32 used by transaction fields.
func ToField(ledger int64) (uint32, error) {
	if ledger < 0 || ledger > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %d", ErrOutOfRange, ledger)
	}
	return uint32(ledger), nil
}

// Time returns the wall-clock time for a ledger time.
func Time(ledger int64) time.Time {
	return time.Unix(ToUnixTime(ledger), 0).UTC()
}

type delayKind uint8

const (
	delaySeconds delayKind = iota
	delayAt
)

// Delay is a caller supplied bound on an escrow window: either relative to
// the time it is resolved, or an absolute instant.
type Delay struct {
	kind    delayKind
	seconds int64
	at      time.Time
}

// Seconds is a delay of n seconds from resolution time.
func Seconds(n int64) *Delay {
	return &Delay{kind: delaySeconds, seconds: n}
}

// Days is a delay of n whole days from resolution time.
func Days(n int64) *Delay {
	return &Delay{kind: delaySeconds, seconds: n * SecondsPerDay}
}

// At is an absolute bound.
func At(t time.Time) *Delay {
	return &Delay{kind: delayAt, at: t}
}

// Resolve returns the ledger time for d relative to now. A nil Delay is
// absent and reports ok=false; no default bound is ever substituted.
func (d *Delay) Resolve(now time.Time) (ledger int64, ok bool) {
	if d == nil {
		return 0, false
	}
	if d.kind == delayAt {
		return ToLedgerTime(d.at.Unix()), true
	}
	return FromNowPlusSeconds(now, d.seconds), true
}

// String renders d for logs.
func (d *Delay) String() string {
	switch {
	case d == nil:
		return "none"
	case d.kind == delayAt:
		return d.at.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprintf("+%ds", d.seconds)
	}
}

// Clock supplies the current time to code that makes time decisions.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns time.Now.
func (SystemClock) Now() time.Time {
	return time.Now()
}
