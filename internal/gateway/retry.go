package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryDialer retries failed dials with exponential backoff. Only opening a
// connection is retried; requests on an open connection never are.
type RetryDialer struct {
	Dialer    Dialer
	Retries   int
	BaseDelay time.Duration
	Logger    *slog.Logger
}

// Dial tries the wrapped dialer up to Retries+1 times.
func (r *RetryDialer) Dial(ctx context.Context) (Conn, error) {
	eb := backoff.NewExponentialBackOff()
	if r.BaseDelay > 0 {
		eb.InitialInterval = r.BaseDelay
	}
	eb.MaxElapsedTime = 0

	retries := r.Retries
	if retries < 0 {
		retries = 0
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries)), ctx)

	var conn Conn
	op := func() error {
		c, err := r.Dialer.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		conn = c
		return nil
	}
	notify := func(err error, wait time.Duration) {
		if r.Logger != nil {
			r.Logger.Warn("ledger dial failed, retrying", "error", err, "wait", wait)
		}
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, err
	}
	return conn, nil
}
