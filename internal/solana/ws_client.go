package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
)

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// SubscribeTimeout is how long to wait for a subscription confirmation.
	SubscribeTimeout time.Duration
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		PingInterval:     30 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     10 * time.Second,
		SubscribeTimeout: 30 * time.Second,
	}
}

// WSConfirmer waits for transaction confirmation via signatureSubscribe.
// Signature subscriptions are one-shot: the node cancels them after the first
// notification, so there is no resubscribe state to carry across reconnects.
// If the connection drops, outstanding waits fail and callers fall back to
// polling getSignatureStatuses.
type WSConfirmer struct {
	endpoint string
	config   WSClientConfig

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// pendingSubs maps request ID to channel waiting for subscription ID
	pendingSubs   map[uint64]chan int64
	pendingSubsMu sync.Mutex

	// waiters maps subscription ID to channel waiting for the notification
	waiters   map[int64]chan error
	waitersMu sync.Mutex

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWSConfirmer connects to the WebSocket endpoint and starts the read loop.
func NewWSConfirmer(ctx context.Context, endpoint string, config *WSClientConfig) (*WSConfirmer, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}

	c := &WSConfirmer{
		endpoint:    endpoint,
		config:      cfg,
		pendingSubs: make(map[uint64]chan int64),
		waiters:     make(map[int64]chan error),
		done:        make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go c.readLoop()

	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// connect establishes the WebSocket connection.
func (c *WSConfirmer) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type wsMessage struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Method string          `json:"method"`
	Params *wsNotifyParams `json:"params"`
	Error  *wsError        `json:"error"`
}

type wsNotifyParams struct {
	Subscription int64 `json:"subscription"`
	Result       struct {
		Value struct {
			Err interface{} `json:"err"`
		} `json:"value"`
	} `json:"result"`
}

type wsError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// WaitForSignature blocks until the signature is confirmed, the transaction
// fails on chain, or ctx expires.
func (c *WSConfirmer) WaitForSignature(ctx context.Context, sig solanago.Signature) error {
	if c.closed.Load() {
		return fmt.Errorf("confirmer closed")
	}

	reqID := c.requestID.Add(1)
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "signatureSubscribe",
		Params: []interface{}{
			sig.String(),
			map[string]string{"commitment": "confirmed"},
		},
	}

	confirmCh := make(chan int64, 1)
	c.pendingSubsMu.Lock()
	c.pendingSubs[reqID] = confirmCh
	c.pendingSubsMu.Unlock()

	c.connMu.Lock()
	if c.conn == nil {
		c.connMu.Unlock()
		c.dropPending(reqID)
		return fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.conn.WriteJSON(req)
	c.connMu.Unlock()

	if err != nil {
		c.dropPending(reqID)
		return fmt.Errorf("write subscribe: %w", err)
	}

	var subID int64
	select {
	case subID = <-confirmCh:
	case <-time.After(c.config.SubscribeTimeout):
		c.dropPending(reqID)
		return fmt.Errorf("subscription timeout")
	case <-c.done:
		return fmt.Errorf("confirmer closed")
	case <-ctx.Done():
		c.dropPending(reqID)
		return ctx.Err()
	}

	ch := make(chan error, 1)
	c.waitersMu.Lock()
	c.waiters[subID] = ch
	c.waitersMu.Unlock()

	defer func() {
		c.waitersMu.Lock()
		delete(c.waiters, subID)
		c.waitersMu.Unlock()
	}()

	select {
	case err := <-ch:
		return err
	case <-c.done:
		return fmt.Errorf("confirmer closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *WSConfirmer) dropPending(reqID uint64) {
	c.pendingSubsMu.Lock()
	delete(c.pendingSubs, reqID)
	c.pendingSubsMu.Unlock()
}

// Close closes the WebSocket connection and fails outstanding waits.
func (c *WSConfirmer) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.pendingSubsMu.Lock()
	for id, ch := range c.pendingSubs {
		close(ch)
		delete(c.pendingSubs, id)
	}
	c.pendingSubsMu.Unlock()

	c.wg.Wait()
	return nil
}

// readLoop reads messages and dispatches confirmations/notifications.
func (c *WSConfirmer) readLoop() {
	defer c.wg.Done()

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			return
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			// Connection lost: fail every outstanding wait so callers can
			// fall back to polling, and drop the conn so the ping loop
			// stops and new waits fail fast.
			c.failAllWaiters(fmt.Errorf("websocket read: %w", err))
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.Close()
				c.conn = nil
			}
			c.connMu.Unlock()
			return
		}

		c.handleMessage(message)
	}
}

// pingLoop sends periodic pings to keep the connection alive.
func (c *WSConfirmer) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn == nil {
				c.connMu.Unlock()
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
			c.conn.WriteMessage(websocket.PingMessage, nil)
			c.connMu.Unlock()
		}
	}
}

// handleMessage dispatches one message: either a subscription confirmation
// (carries our request ID) or a signatureNotification.
func (c *WSConfirmer) handleMessage(message []byte) {
	var msg wsMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}

	if msg.ID != 0 {
		c.pendingSubsMu.Lock()
		ch, ok := c.pendingSubs[msg.ID]
		if ok {
			delete(c.pendingSubs, msg.ID)
		}
		c.pendingSubsMu.Unlock()

		if ok && msg.Error == nil && msg.Result != nil {
			var subID int64
			if err := json.Unmarshal(msg.Result, &subID); err == nil {
				ch <- subID
			}
		}
		return
	}

	if msg.Method != "signatureNotification" || msg.Params == nil {
		return
	}

	c.waitersMu.Lock()
	ch, ok := c.waiters[msg.Params.Subscription]
	c.waitersMu.Unlock()
	if !ok {
		return
	}

	if txErr := msg.Params.Result.Value.Err; txErr != nil {
		ch <- fmt.Errorf("transaction failed: %v", txErr)
		return
	}
	ch <- nil
}

// failAllWaiters delivers err to every outstanding wait.
func (c *WSConfirmer) failAllWaiters(err error) {
	c.waitersMu.Lock()
	for id, ch := range c.waiters {
		select {
		case ch <- err:
		default:
		}
		delete(c.waiters, id)
	}
	c.waitersMu.Unlock()
}
