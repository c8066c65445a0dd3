package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newWSServer serves a WebSocket endpoint answering each request with
// handle's reply, or not at all when handle returns nil.
func newWSServer(t *testing.T, handle func(req map[string]any) map[string]any) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			var req map[string]any
			if err := ws.ReadJSON(&req); err != nil {
				return
			}
			reply := handle(req)
			if reply == nil {
				continue
			}
			reply["id"] = req["id"]
			if err := ws.WriteJSON(reply); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialTest(t *testing.T, url string) Conn {
	t.Helper()
	d := &WSDialer{URL: url, HandshakeTimeout: 2 * time.Second}
	conn, err := d.Dial(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestWSRequestSuccess(t *testing.T) {
	url := newWSServer(t, func(req map[string]any) map[string]any {
		assert.Equal(t, "account_info", req["command"])
		assert.Equal(t, "rAccount", req["account"])
		return map[string]any{
			"status": "success",
			"type":   "response",
			"result": map[string]any{"account_data": map[string]any{"Sequence": 5}},
		}
	})
	conn := dialTest(t, url)

	var out struct {
		AccountData struct {
			Sequence uint32 `json:"Sequence"`
		} `json:"account_data"`
	}
	err := conn.Request(context.Background(), "account_info", map[string]any{"account": "rAccount"}, &out)
	require.NoError(t, err)
	assert.Equal(t, uint32(5), out.AccountData.Sequence)
}

func TestWSRequestError(t *testing.T) {
	url := newWSServer(t, func(req map[string]any) map[string]any {
		return map[string]any{
			"status":        "error",
			"type":          "response",
			"error":         "actNotFound",
			"error_code":    19,
			"error_message": "Account not found.",
		}
	})
	conn := dialTest(t, url)

	err := conn.Request(context.Background(), "account_info", nil, nil)
	require.Error(t, err)
	assert.True(t, IsRPCError(err, ErrNameActNotFound))
	assert.True(t, IsNotFound(err))

	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, 19, rpcErr.Code)
	assert.Equal(t, "account_info", rpcErr.Command)
}

func TestWSNestedError(t *testing.T) {
	url := newWSServer(t, func(req map[string]any) map[string]any {
		return map[string]any{
			"status": "error",
			"result": map[string]any{"error": "txnNotFound", "error_code": 29},
		}
	})
	conn := dialTest(t, url)

	err := conn.Request(context.Background(), "tx", nil, nil)
	assert.True(t, IsRPCError(err, ErrNameTxnNotFound))
}

func TestWSRequestTimeout(t *testing.T) {
	url := newWSServer(t, func(req map[string]any) map[string]any { return nil })
	conn := dialTest(t, url)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := conn.Request(ctx, "ledger", nil, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWSConcurrentRequests(t *testing.T) {
	url := newWSServer(t, func(req map[string]any) map[string]any {
		return map[string]any{"status": "success", "result": map[string]any{"echo": req["n"]}}
	})
	conn := dialTest(t, url)

	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func(n int) {
			var out struct {
				Echo int `json:"echo"`
			}
			err := conn.Request(context.Background(), "ping", map[string]any{"n": n}, &out)
			if err == nil && out.Echo != n {
				err = assert.AnError
			}
			errs <- err
		}(i)
	}
	for i := 0; i < 10; i++ {
		assert.NoError(t, <-errs)
	}
}

func TestWSRequestAfterClose(t *testing.T) {
	url := newWSServer(t, func(req map[string]any) map[string]any {
		return map[string]any{"status": "success", "result": map[string]any{}}
	})
	d := &WSDialer{URL: url}
	conn, err := d.Dial(context.Background())
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	err = conn.Request(context.Background(), "ledger", nil, nil)
	assert.Error(t, err)
}

func TestWSDialFailure(t *testing.T) {
	d := &WSDialer{URL: "ws://127.0.0.1:1", HandshakeTimeout: 200 * time.Millisecond}
	_, err := d.Dial(context.Background())
	assert.Error(t, err)
}

func TestDecodeResponseIgnoresEmptyResult(t *testing.T) {
	var out map[string]any
	err := decodeResponse("ping", response{Status: "success"}, &out)
	require.NoError(t, err)
	assert.Nil(t, out)

	err = decodeResponse("ping", response{Status: "success", Result: json.RawMessage(`{"a":1}`)}, &out)
	require.NoError(t, err)
	assert.Equal(t, float64(1), out["a"])
}
