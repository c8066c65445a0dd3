package gateway_test

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LeJamon/goxrpl-escrow/internal/core/failure"
	"github.com/LeJamon/goxrpl-escrow/internal/gateway"
	"github.com/LeJamon/goxrpl-escrow/internal/gateway/mock_gateway"
	"github.com/LeJamon/goxrpl-escrow/internal/logging"
)

func TestWithConnClosesOnSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := mock_gateway.NewMockConn(ctrl)
	dialer := mock_gateway.NewMockDialer(ctrl)

	dialer.EXPECT().Dial(gomock.Any()).Return(conn, nil)
	conn.EXPECT().Close().Return(nil)

	called := false
	err := gateway.WithConn(context.Background(), dialer, gateway.Options{}, logging.Discard(), func(s *gateway.Session) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
}

func TestWithConnClosesOnError(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := mock_gateway.NewMockConn(ctrl)
	dialer := mock_gateway.NewMockDialer(ctrl)

	dialer.EXPECT().Dial(gomock.Any()).Return(conn, nil)
	conn.EXPECT().Close().Return(errors.New("close failed"))

	boom := errors.New("boom")
	err := gateway.WithConn(context.Background(), dialer, gateway.Options{}, logging.Discard(), func(s *gateway.Session) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestWithConnCloseErrorDoesNotFail(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := mock_gateway.NewMockConn(ctrl)
	dialer := mock_gateway.NewMockDialer(ctrl)

	dialer.EXPECT().Dial(gomock.Any()).Return(conn, nil)
	conn.EXPECT().Close().Return(errors.New("close failed"))

	err := gateway.WithConn(context.Background(), dialer, gateway.Options{}, logging.Discard(), func(s *gateway.Session) error {
		return nil
	})
	assert.NoError(t, err)
}

func TestWithConnClosesOnPanic(t *testing.T) {
	ctrl := gomock.NewController(t)
	conn := mock_gateway.NewMockConn(ctrl)
	dialer := mock_gateway.NewMockDialer(ctrl)

	dialer.EXPECT().Dial(gomock.Any()).Return(conn, nil)
	conn.EXPECT().Close().Return(nil)

	assert.Panics(t, func() {
		_ = gateway.WithConn(context.Background(), dialer, gateway.Options{}, logging.Discard(), func(s *gateway.Session) error {
			panic("unexpected")
		})
	})
}

func TestWithConnDialFailureIsNetwork(t *testing.T) {
	ctrl := gomock.NewController(t)
	dialer := mock_gateway.NewMockDialer(ctrl)
	dialer.EXPECT().Dial(gomock.Any()).Return(nil, errors.New("refused"))

	err := gateway.WithConn(context.Background(), dialer, gateway.Options{}, logging.Discard(), func(s *gateway.Session) error {
		t.Fatal("fn must not run without a connection")
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, failure.ErrNetwork)
	assert.True(t, failure.Retryable(err))
}

func TestSessionUsesRequester(t *testing.T) {
	ctrl := gomock.NewController(t)
	req := mock_gateway.NewMockRequester(ctrl)
	req.EXPECT().
		Request(gomock.Any(), "ledger", map[string]any{"ledger_index": "validated"}, gomock.Any()).
		Return(&gateway.RPCError{Command: "ledger", Name: gateway.ErrNameLgrNotFound})

	s := gateway.NewSession(req, gateway.Options{}, logging.Discard())
	_, err := s.Ledger(context.Background(), gateway.LedgerValidated)
	assert.True(t, gateway.IsRPCError(err, gateway.ErrNameLgrNotFound))
}

func TestQueryFailure(t *testing.T) {
	rpcErr := &gateway.RPCError{Command: "account_objects", Name: "invalidParams"}
	err := gateway.QueryFailure("escrow.info", rpcErr)
	assert.Equal(t, failure.KindInternal, failure.KindOf(err))
	assert.Equal(t, "invalidParams", failure.CodeOf(err))
	assert.ErrorIs(t, err, rpcErr)

	err = gateway.QueryFailure("escrow.info", context.DeadlineExceeded)
	assert.True(t, failure.Retryable(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
