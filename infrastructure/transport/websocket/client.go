// Package websocket implements the realtime transport over a
// gorilla/websocket client connection.
//
// Architecture: a manager goroutine owns the dial/reconnect loop. For each
// live connection it runs a read loop on its own stack and a ping loop on
// a second goroutine; raw frames flow to the engine over the Inbound
// channel and FSM transitions over StateChanges. Sends happen on the
// caller's goroutine behind a write mutex, so errors surface synchronously
// to the offline queue.
package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/aiborg-ai/appboardguru-sub011/application/ports"
	pkgerrors "github.com/aiborg-ai/appboardguru-sub011/pkg/errors"
	"github.com/aiborg-ai/appboardguru-sub011/pkg/observability"
	"github.com/aiborg-ai/appboardguru-sub011/pkg/retry"
)

const (
	// Maximum message size allowed from the server.
	maxMessageSize = 512 * 1024

	// Inbound frame buffer between the read loop and the engine.
	inboundBufferSize = 256

	// FSM transition buffer. The engine drains this continuously.
	stateBufferSize = 16
)

// Config holds the dial target and timing knobs.
type Config struct {
	// URL is the ws:// or wss:// endpoint.
	URL string
	// HandshakeTimeout bounds the dial.
	HandshakeTimeout time.Duration
	// WriteWait bounds every frame write.
	WriteWait time.Duration
	// PongWait is how long the connection survives without a pong. Pings
	// go out at 9/10 of this.
	PongWait time.Duration
	// Backoff schedules reconnect attempts.
	Backoff *retry.Policy
}

func (c *Config) applyDefaults() {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.PongWait <= 0 {
		c.PongWait = 60 * time.Second
	}
	if c.Backoff == nil {
		c.Backoff = retry.DefaultPolicy()
	}
}

// Client is a reconnecting websocket transport implementing ports.Transport.
type Client struct {
	config  Config
	tokens  ports.TokenSource
	logger  *zap.Logger
	metrics *observability.Collector
	dialer  *websocket.Dialer

	mu      sync.Mutex
	state   ports.ConnState
	conn    *websocket.Conn
	running bool
	cancel  context.CancelFunc

	// emitMu keeps StateChanges ordered across concurrent transitions.
	// Never held together with mu.
	emitMu sync.Mutex

	// writeMu serializes frame writes between Send and the ping loop.
	writeMu sync.Mutex

	inbound chan []byte
	states  chan ports.StateChange
	wg      sync.WaitGroup
}

// NewClient creates a transport client. Connect starts it.
func NewClient(config Config, tokens ports.TokenSource, logger *zap.Logger, metrics *observability.Collector) *Client {
	config.applyDefaults()
	return &Client{
		config:  config,
		tokens:  tokens,
		logger:  logger,
		metrics: metrics,
		dialer: &websocket.Dialer{
			HandshakeTimeout: config.HandshakeTimeout,
		},
		state:   ports.StateClosed,
		inbound: make(chan []byte, inboundBufferSize),
		states:  make(chan ports.StateChange, stateBufferSize),
	}
}

// Connect starts the connection manager. The OPEN transition arrives via
// StateChanges once the dial succeeds. Calling Connect after a session
// expiry starts over with whatever token the source now holds.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return pkgerrors.NewConflict("transport already running")
	}
	c.running = true
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	// Leaving CLOSED or SESSION_EXPIRED is only legal here.
	c.transition(ports.StateConnecting, true)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(runCtx)
	}()
	return nil
}

// Close tears the connection down and stops the manager.
func (c *Client) Close() error {
	c.transition(ports.StateClosed, false)

	c.mu.Lock()
	conn := c.conn
	cancel := c.cancel
	c.mu.Unlock()

	if conn != nil {
		deadline := time.Now().Add(c.config.WriteWait)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = conn.Close()
	}
	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
	return nil
}

// ExpireSession moves the FSM to its terminal SESSION_EXPIRED state and
// stops reconnecting. Only a fresh Connect with a fresh token leaves it.
func (c *Client) ExpireSession() {
	c.transition(ports.StateSessionExpired, false)

	c.mu.Lock()
	conn := c.conn
	cancel := c.cancel
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if cancel != nil {
		cancel()
	}
}

// Send writes one frame. It never buffers: any state but OPEN returns a
// NOT_CONNECTED error and the frame is the caller's to keep.
func (c *Client) Send(_ context.Context, data []byte) error {
	c.mu.Lock()
	state := c.state
	conn := c.conn
	c.mu.Unlock()

	if state != ports.StateOpen || conn == nil {
		return pkgerrors.NewNotConnected("connection is " + string(state))
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return pkgerrors.NewUnavailable("transport write failed", err)
	}
	return nil
}

// Inbound delivers raw frames in arrival order.
func (c *Client) Inbound() <-chan []byte {
	return c.inbound
}

// StateChanges delivers every FSM transition in order.
func (c *Client) StateChanges() <-chan ports.StateChange {
	return c.states
}

// State returns the current FSM state.
func (c *Client) State() ports.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// run is the manager loop: dial, pump, back off, repeat.
func (c *Client) run(ctx context.Context) {
	defer c.finish()

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.transition(ports.StateReconnecting, false)
			delay := c.config.Backoff.Delay(attempt)
			attempt++
			c.logger.Warn("dial failed",
				zap.String("url", c.config.URL),
				zap.Int("attempt", attempt),
				zap.Duration("retry_in", delay),
				zap.Error(err),
			)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}
			continue
		}

		attempt = 0
		c.attach(conn)
		c.transition(ports.StateOpen, false)
		c.logger.Info("connected", zap.String("url", c.config.URL))

		c.readLoop(ctx, conn)

		c.detach()
		_ = conn.Close()

		if ctx.Err() != nil || c.terminal() {
			return
		}
		c.transition(ports.StateReconnecting, false)
	}
}

// dial fetches the current token and opens the socket.
func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	token, err := c.tokens.Current(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "fetching auth token")
	}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	dialCtx, cancel := context.WithTimeout(ctx, c.config.HandshakeTimeout)
	defer cancel()

	conn, resp, err := c.dialer.DialContext(dialCtx, c.config.URL, header)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return nil, err
	}
	return conn, nil
}

// readLoop pumps frames until the connection dies. It owns the read
// deadline and runs the ping loop for this connection.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	})

	pingDone := make(chan struct{})
	var pingWg sync.WaitGroup
	pingWg.Add(1)
	go func() {
		defer pingWg.Done()
		c.pingLoop(conn, pingDone)
	}()
	defer func() {
		close(pingDone)
		pingWg.Wait()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("read failed", zap.Error(err))
			}
			return
		}
		select {
		case c.inbound <- data:
		case <-ctx.Done():
			return
		}
	}
}

// pingLoop keeps the connection alive. Pings go out at 9/10 of the pong
// wait so a healthy peer always answers in time.
func (c *Client) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.config.PongWait * 9 / 10)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

func (c *Client) attach(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Client) detach() {
	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()
}

func (c *Client) terminal() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == ports.StateClosed || c.state == ports.StateSessionExpired
}

// finish marks the manager stopped. A manager exiting for any reason other
// than Close or ExpireSession still leaves the FSM in CLOSED.
func (c *Client) finish() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()
	c.transition(ports.StateClosed, false)
}

// transition moves the FSM and emits the change. Terminal states are only
// left when force is set, which Connect alone uses.
func (c *Client) transition(to ports.ConnState, force bool) {
	c.mu.Lock()
	from := c.state
	if from == to {
		c.mu.Unlock()
		return
	}
	if !force && (from == ports.StateClosed || from == ports.StateSessionExpired) {
		c.mu.Unlock()
		return
	}
	c.state = to
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.SetConnectionState(string(to))
		if to == ports.StateReconnecting {
			c.metrics.Reconnects.Inc()
		}
	}
	c.logger.Info("connection state changed",
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)

	c.emitMu.Lock()
	c.states <- ports.StateChange{Previous: from, Current: to, At: time.Now()}
	c.emitMu.Unlock()
}
