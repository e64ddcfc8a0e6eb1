// Package remote classifies windows through an external scenario service
// reached over a WebSocket JSON-RPC connection.
package remote

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"dca-backtest-lab/internal/adaptive"
	"dca-backtest-lab/internal/domain"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("classifier client closed")

const methodClassify = "classifyScenario"

// Config configures the client.
type Config struct {
	// HandshakeTimeout bounds the dial.
	HandshakeTimeout time.Duration
	// ReadTimeout bounds a single response wait when ctx has no earlier deadline.
	ReadTimeout time.Duration
	// WriteTimeout bounds a single request write.
	WriteTimeout time.Duration
}

// DefaultConfig returns default client configuration.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      30 * time.Second,
		WriteTimeout:     10 * time.Second,
	}
}

// Client implements adaptive.ScenarioClassifier. Calls are serialized over
// one connection; a broken connection is redialed once per call.
type Client struct {
	endpoint string
	config   Config
	logger   *zap.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	closed    atomic.Bool
	requestID atomic.Uint64
}

var _ adaptive.ScenarioClassifier = (*Client)(nil)

// Dial connects to endpoint. config and logger may be nil.
func Dial(ctx context.Context, endpoint string, config *Config, logger *zap.Logger) (*Client, error) {
	cfg := DefaultConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{endpoint: endpoint, config: cfg, logger: logger}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.connectLocked(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connectLocked(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.config.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	c.conn = conn
	return nil
}

// Classify sends the window and waits for the matching response.
func (c *Client) Classify(ctx context.Context, w adaptive.Window, strategyKind string) (domain.ScenarioClassification, error) {
	if c.closed.Load() {
		return domain.ScenarioClassification{}, ErrClosed
	}

	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  methodClassify,
		Params:  newClassifyParams(w, strategyKind),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.roundTripLocked(ctx, req)
	if err != nil && !isRPCError(err) && ctx.Err() == nil && !c.closed.Load() {
		c.logger.Warn("classifier connection failed, redialing",
			zap.String("endpoint", c.endpoint),
			zap.Error(err),
		)
		c.dropLocked()
		if dialErr := c.connectLocked(ctx); dialErr != nil {
			return domain.ScenarioClassification{}, fmt.Errorf("redial after %v: %w", err, dialErr)
		}
		resp, err = c.roundTripLocked(ctx, req)
	}
	if err != nil {
		if !isRPCError(err) {
			// a timed-out or cancelled read leaves the connection unusable
			c.dropLocked()
		}
		return domain.ScenarioClassification{}, err
	}

	return resp.classification(), nil
}

func (c *Client) roundTripLocked(ctx context.Context, req rpcRequest) (*classifyResult, error) {
	if c.conn == nil {
		return nil, fmt.Errorf("not connected")
	}

	conn := c.conn
	if err := conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
		return nil, fmt.Errorf("set write deadline: %w", err)
	}
	if err := conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	deadline := time.Now().Add(c.config.ReadTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set read deadline: %w", err)
	}

	// cancellation without a deadline still unblocks the read
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now()) //nolint:errcheck
	})
	defer stop()

	for {
		var resp rpcResponse
		if err := conn.ReadJSON(&resp); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("read response: %w", ctxErr)
			}
			return nil, fmt.Errorf("read response: %w", err)
		}
		// stale replies from an abandoned call are skipped
		if resp.ID != req.ID {
			continue
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		if resp.Result == nil {
			return nil, fmt.Errorf("response %d has no result", resp.ID)
		}
		return resp.Result, nil
	}
}

func (c *Client) dropLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Close sends a close frame and releases the connection.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}
	c.dropLocked()
	return nil
}
