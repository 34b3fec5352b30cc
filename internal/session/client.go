package session

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/haldane/pkgd/internal/domain"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512 * 1024 // 512KB

	// Send buffer size
	sendBufferSize = 64

	// Reconnect backoff bounds
	minBackoff = time.Second
	maxBackoff = time.Minute
)

// Handler processes one inbound envelope. Handlers run in their own
// goroutine so a slow lookup never stalls the read pump or delays replies
// to other outstanding requests.
type Handler func(ctx context.Context, env *domain.Envelope)

// Client maintains the persistent bidirectional session channel to the
// assistant backend. The channel multiplexes unrelated message types;
// the client dispatches by envelope type and ignores the rest.
type Client struct {
	url    string
	token  string
	logger *zap.Logger

	mu       sync.RWMutex
	handlers map[string]Handler

	send chan *domain.Envelope
}

func NewClient(url, token string, logger *zap.Logger) *Client {
	return &Client{
		url:      url,
		token:    token,
		logger:   logger,
		handlers: make(map[string]Handler),
		send:     make(chan *domain.Envelope, sendBufferSize),
	}
}

// Handle registers the handler for an envelope type. Must be called before
// Run.
func (c *Client) Handle(msgType string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[msgType] = h
}

// Send enqueues an envelope for the write pump. It never blocks: if the
// buffer is full the envelope is dropped with a warning, because stalling
// the caller is worse than losing one message on a saturated channel.
func (c *Client) Send(env *domain.Envelope) {
	select {
	case c.send <- env:
	default:
		c.logger.Warn("session send buffer full, dropping message",
			zap.String("type", env.Type))
	}
}

// Run dials the session endpoint and keeps the channel alive, reconnecting
// with capped exponential backoff until ctx is cancelled.
func (c *Client) Run(ctx context.Context) {
	backoff := minBackoff
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := c.dial(ctx)
		if err != nil {
			c.logger.Warn("session dial failed",
				zap.String("url", c.url),
				zap.Duration("retry_in", backoff),
				zap.Error(err))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		c.logger.Info("session channel connected", zap.String("url", c.url))
		backoff = minBackoff

		c.pump(ctx, conn)
		conn.Close()

		if ctx.Err() == nil {
			c.logger.Info("session channel disconnected, reconnecting")
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, header)
	return conn, err
}

// pump runs the read and write loops for one connection and returns when
// either side fails.
func (c *Client) pump(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})

	go c.writePump(ctx, conn, done)
	c.readPump(ctx, conn)
	close(done)
}

func (c *Client) readPump(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("session read failed", zap.Error(err))
			}
			return
		}

		var env domain.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.logger.Warn("unparseable session message", zap.Error(err))
			continue
		}

		c.dispatch(ctx, &env)
	}
}

func (c *Client) dispatch(ctx context.Context, env *domain.Envelope) {
	c.mu.RLock()
	h, ok := c.handlers[env.Type]
	c.mu.RUnlock()

	if !ok {
		// Auth, heartbeat, transcript, execute and friends ride the same
		// channel but belong to other parts of the pipeline.
		c.logger.Debug("ignoring session message", zap.String("type", env.Type))
		return
	}

	// Each request is answered independently; ordering is not preserved
	// across outstanding requests, only correlation by payload.
	go h(ctx, env)
}

func (c *Client) writePump(ctx context.Context, conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case env := <-c.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(env); err != nil {
				c.logger.Warn("session write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
