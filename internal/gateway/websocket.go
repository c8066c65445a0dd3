package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/LeJamon/goxrpl-escrow/internal/metrics"
)

// response is the envelope of every reply on the socket.
type response struct {
	ID           *uint64         `json:"id"`
	Status       string          `json:"status"`
	Type         string          `json:"type"`
	Result       json.RawMessage `json:"result"`
	Error        string          `json:"error"`
	ErrorCode    int             `json:"error_code"`
	ErrorMessage string          `json:"error_message"`
}

// WSDialer dials a ledger node's WebSocket endpoint.
type WSDialer struct {
	URL              string
	HandshakeTimeout time.Duration
	Logger           *slog.Logger
}

// Dial connects and starts the read loop.
func (d *WSDialer) Dial(ctx context.Context) (Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            websocket.DefaultDialer.Proxy,
		HandshakeTimeout: d.HandshakeTimeout,
	}
	if dialer.HandshakeTimeout == 0 {
		dialer.HandshakeTimeout = 10 * time.Second
	}

	ws, _, err := dialer.DialContext(ctx, d.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", d.URL, err)
	}

	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &wsConn{
		ws:      ws,
		logger:  logger.With("url", d.URL),
		pending: make(map[uint64]chan response),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

type wsConn struct {
	ws     *websocket.Conn
	logger *slog.Logger
	nextID atomic.Uint64

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[uint64]chan response
	readErr error

	done      chan struct{}
	closeOnce sync.Once
}

func (c *wsConn) readLoop() {
	defer c.shutdown(ErrClosed)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("websocket read failed", "error", err)
			}
			c.shutdown(err)
			return
		}

		var resp response
		if err := json.Unmarshal(data, &resp); err != nil {
			c.logger.Debug("dropping undecodable message", "error", err)
			continue
		}
		if resp.ID == nil {
			// Stream messages are not requested by this client.
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[*resp.ID]
		delete(c.pending, *resp.ID)
		c.mu.Unlock()
		if ok {
			ch <- resp
		}
	}
}

// shutdown records the first terminal error and wakes every waiter.
func (c *wsConn) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.readErr = err
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *wsConn) Request(ctx context.Context, command string, params map[string]any, out any) error {
	id := c.nextID.Add(1)
	msg := make(map[string]any, len(params)+2)
	for k, v := range params {
		msg[k] = v
	}
	msg["id"] = id
	msg["command"] = command

	ch := make(chan response, 1)
	c.mu.Lock()
	if c.readErr != nil {
		err := c.readErr
		c.mu.Unlock()
		return fmt.Errorf("%s: %w", command, err)
	}
	c.pending[id] = ch
	c.mu.Unlock()

	forget := func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}

	c.writeMu.Lock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.ws.SetWriteDeadline(deadline)
	} else {
		_ = c.ws.SetWriteDeadline(time.Time{})
	}
	err := c.ws.WriteJSON(msg)
	c.writeMu.Unlock()
	if err != nil {
		forget()
		metrics.GatewayRequestsTotal.WithLabelValues(command, "transport_error").Inc()
		return fmt.Errorf("%s: writing request: %w", command, err)
	}

	select {
	case resp := <-ch:
		return decodeResponse(command, resp, out)
	case <-c.done:
		forget()
		c.mu.Lock()
		err := c.readErr
		c.mu.Unlock()
		metrics.GatewayRequestsTotal.WithLabelValues(command, "transport_error").Inc()
		return fmt.Errorf("%s: %w", command, err)
	case <-ctx.Done():
		forget()
		metrics.GatewayRequestsTotal.WithLabelValues(command, "timeout").Inc()
		return fmt.Errorf("%s: %w", command, ctx.Err())
	}
}

func decodeResponse(command string, resp response, out any) error {
	if resp.Status == "error" && resp.Error == "" && len(resp.Result) > 0 {
		// Some servers nest the error fields inside result.
		var nested response
		if json.Unmarshal(resp.Result, &nested) == nil {
			resp.Error, resp.ErrorCode, resp.ErrorMessage = nested.Error, nested.ErrorCode, nested.ErrorMessage
		}
	}
	if resp.Status == "error" || resp.Error != "" {
		metrics.GatewayRequestsTotal.WithLabelValues(command, "error").Inc()
		return &RPCError{
			Command: command,
			Code:    resp.ErrorCode,
			Name:    resp.Error,
			Message: resp.ErrorMessage,
		}
	}
	metrics.GatewayRequestsTotal.WithLabelValues(command, "success").Inc()
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("%s: decoding result: %w", command, err)
	}
	return nil
}

func (c *wsConn) Close() error {
	var werr error
	select {
	case <-c.done:
	default:
		c.writeMu.Lock()
		_ = c.ws.SetWriteDeadline(time.Now().Add(time.Second))
		werr = c.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
	}

	err := c.ws.Close()
	c.shutdown(ErrClosed)
	if err != nil {
		return err
	}
	if werr != nil && werr != websocket.ErrCloseSent {
		return werr
	}
	return nil
}
