package gateway

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyDialer struct {
	failures int
	calls    int
}

func (f *flakyDialer) Dial(ctx context.Context) (Conn, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("connection refused")
	}
	return nopConn{}, nil
}

type nopConn struct{}

func (nopConn) Request(context.Context, string, map[string]any, any) error { return nil }
func (nopConn) Close() error                                                 { return nil }

func TestRetryDialerRecovers(t *testing.T) {
	inner := &flakyDialer{failures: 2}
	d := &RetryDialer{Dialer: inner, Retries: 3, BaseDelay: time.Millisecond}

	conn, err := d.Dial(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, conn)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryDialerGivesUp(t *testing.T) {
	inner := &flakyDialer{failures: 10}
	d := &RetryDialer{Dialer: inner, Retries: 2, BaseDelay: time.Millisecond}

	_, err := d.Dial(context.Background())
	require.Error(t, err)
	assert.Equal(t, 3, inner.calls)
}

func TestRetryDialerStopsOnCancel(t *testing.T) {
	inner := &flakyDialer{failures: 10}
	d := &RetryDialer{Dialer: inner, Retries: 5, BaseDelay: time.Millisecond}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Dial(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}
