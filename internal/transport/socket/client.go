package socket

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/i474232898/weather-watch-sync/internal/transport"
)

const (
	defaultDialTimeout    = 10 * time.Second
	defaultBreakerTimeout = 30 * time.Second
)

// ClientConfig configures a relay Client.
type ClientConfig struct {
	Addr        string        // relay URL, see ParseAddress
	NodeID      string        // defaults to a random uuid
	DialTimeout time.Duration // bounds dial plus handshake, defaults to 10s

	// BreakerTimeout is how long the circuit stays open after repeated
	// connect failures. Defaults to 30s.
	BreakerTimeout time.Duration
}

// Client is a transport.Transport backed by a relay Server. It does not
// reconnect on its own: after a lost connection IsConnected reports false,
// NotifyLost callbacks fire and the owner decides when to Connect again.
// Listeners stay registered across reconnects.
type Client struct {
	cfg       ClientConfig
	log       zerolog.Logger
	breaker   *gobreaker.CircuitBreaker
	listeners transport.Listeners

	mu       sync.Mutex
	conn     net.Conn
	pending  map[string]*transport.Result
	lostNext int
	lost     map[int]func(error)
}

var (
	_ transport.Transport         = (*Client)(nil)
	_ transport.ConnectionWatcher = (*Client)(nil)
)

// NewClient creates a disconnected Client.
func NewClient(cfg ClientConfig, log zerolog.Logger) *Client {
	if cfg.NodeID == "" {
		cfg.NodeID = uuid.NewString()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = defaultBreakerTimeout
	}
	log = log.With().Str("component", "relay-client").Str("node", cfg.NodeID).Logger()

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "relay:" + cfg.NodeID,
		MaxRequests: 1,
		Interval:    1 * time.Minute,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("relay circuit breaker state changed")
		},
	})

	return &Client{
		cfg:     cfg,
		log:     log,
		breaker: cb,
		pending: make(map[string]*transport.Result),
		lost:    make(map[int]func(error)),
	}
}

// NodeID returns the id this client announces to the relay.
func (c *Client) NodeID() string { return c.cfg.NodeID }

// Connect dials the relay, announces the node and waits until the relay has
// registered it, so events sent by other peers after Connect returns are
// delivered. It is a no-op when already connected.
func (c *Client) Connect(ctx context.Context) error {
	if c.IsConnected() {
		return nil
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.dial(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to connect to relay at %s: %w", c.cfg.Addr, err)
	}
	sess, ok := res.(*session)
	if !ok {
		return errors.New("unexpected result type from circuit breaker")
	}

	c.mu.Lock()
	if c.conn != nil {
		// Lost a race with a concurrent Connect.
		c.mu.Unlock()
		sess.conn.Close()
		return nil
	}
	c.conn = sess.conn
	c.mu.Unlock()

	c.log.Info().Str("relay", c.cfg.Addr).Msg("connected to relay")
	go c.readLoop(sess)
	return nil
}

// session is a connection the relay has accepted.
type session struct {
	conn   net.Conn
	reader *bufio.Reader
}

// dial opens a connection, says hello and reads the relay's ack. The whole
// exchange is bounded by DialTimeout and ctx.
func (c *Client) dial(ctx context.Context) (*session, error) {
	deadline := time.Now().Add(c.cfg.DialTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	network, address := ParseAddress(c.cfg.Addr)
	d := net.Dialer{Deadline: deadline}
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}

	sess, err := c.handshake(ctx, conn, deadline)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return sess, nil
}

func (c *Client) handshake(ctx context.Context, conn net.Conn, deadline time.Time) (*session, error) {
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})

	hello, err := json.Marshal(frame{Type: frameHello, Node: c.cfg.NodeID})
	if err != nil {
		stop()
		return nil, fmt.Errorf("failed to marshal hello: %w", err)
	}
	if _, err := conn.Write(append(hello, '\n')); err != nil {
		stop()
		return nil, fmt.Errorf("failed to greet relay: %w", contextErr(ctx, err))
	}

	reader := bufio.NewReader(conn)
	line, err := reader.ReadBytes('\n')
	if !stop() {
		return nil, ctx.Err()
	}
	if err != nil {
		return nil, fmt.Errorf("relay did not answer hello: %w", err)
	}
	var ack frame
	if err := json.Unmarshal(line, &ack); err != nil || ack.Type != frameAck {
		return nil, errors.New("relay answered hello with an unexpected frame")
	}

	if err := conn.SetDeadline(time.Time{}); err != nil {
		return nil, err
	}
	return &session{conn: conn, reader: reader}, nil
}

func contextErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

// Disconnect closes the connection and fails every unacknowledged write.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	pending := c.takePendingLocked()
	c.mu.Unlock()

	failAll(pending, transport.ErrNotConnected)
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// IsConnected reports whether the client holds a relay connection.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Put sends a write to the relay. The Result resolves when the relay acks.
func (c *Client) Put(ctx context.Context, req transport.PutRequest) *transport.Result {
	return c.send(ctx, frame{Type: framePut, Path: req.Path, Urgent: req.Urgent, Data: req.Data})
}

// Delete removes the item under path on the relay.
func (c *Client) Delete(ctx context.Context, path string) *transport.Result {
	return c.send(ctx, frame{Type: frameDelete, Path: path})
}

// AddListener implements transport.Transport.
func (c *Client) AddListener(l transport.Listener) func() {
	return c.listeners.Add(l)
}

// NotifyLost implements transport.ConnectionWatcher. fn runs on its own
// goroutine whenever the relay connection drops without Disconnect.
func (c *Client) NotifyLost(fn func(err error)) (remove func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.lostNext
	c.lostNext++
	c.lost[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.lost, id)
	}
}

func (c *Client) send(ctx context.Context, f frame) *transport.Result {
	if err := ctx.Err(); err != nil {
		return transport.Completed(err)
	}

	f.ID = uuid.NewString()
	f.Node = c.cfg.NodeID
	data, err := json.Marshal(f)
	if err != nil {
		return transport.Completed(fmt.Errorf("failed to marshal %s frame: %w", f.Type, err))
	}
	data = append(data, '\n')

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return transport.Completed(transport.ErrNotConnected)
	}

	res := transport.NewResult()
	c.pending[f.ID] = res
	if _, err := c.conn.Write(data); err != nil {
		delete(c.pending, f.ID)
		c.conn.Close()
		c.conn = nil
		failAll(c.takePendingLocked(), transport.ErrNotConnected)
		c.notifyLostLocked(err)
		return transport.Completed(fmt.Errorf("failed to write to relay: %w", transport.ErrNotConnected))
	}
	return res
}

func (c *Client) readLoop(sess *session) {
	for {
		line, err := sess.reader.ReadBytes('\n')
		if err != nil {
			c.connectionLost(sess.conn, err)
			return
		}

		var f frame
		if err := json.Unmarshal(line, &f); err != nil {
			c.log.Error().Err(err).Msg("failed to parse relay frame")
			continue
		}

		switch f.Type {
		case frameAck:
			c.resolve(f.ID, f.Error)
		case frameEvent:
			c.listeners.Dispatch([]transport.Event{{
				Path:   f.Path,
				Kind:   kindFromWire(f.Kind),
				Data:   transport.DataMap(f.Data),
				Source: f.Node,
			}})
		default:
			c.log.Debug().Str("type", f.Type).Msg("unknown relay frame type")
		}
	}
}

func (c *Client) resolve(id, errMsg string) {
	c.mu.Lock()
	res, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()

	if !ok {
		return
	}
	if errMsg != "" {
		res.Resolve(errors.New(errMsg))
		return
	}
	res.Resolve(nil)
}

func (c *Client) connectionLost(conn net.Conn, err error) {
	c.mu.Lock()
	current := c.conn == conn
	var pending map[string]*transport.Result
	if current {
		c.conn = nil
		pending = c.takePendingLocked()
		c.notifyLostLocked(err)
	}
	c.mu.Unlock()

	conn.Close()
	if !current {
		// Closed by Disconnect.
		return
	}
	c.log.Warn().Err(err).Msg("relay connection lost")
	failAll(pending, transport.ErrNotConnected)
}

func (c *Client) notifyLostLocked(err error) {
	for _, fn := range c.lost {
		go fn(err)
	}
}

func (c *Client) takePendingLocked() map[string]*transport.Result {
	pending := c.pending
	c.pending = make(map[string]*transport.Result)
	return pending
}

func failAll(pending map[string]*transport.Result, err error) {
	for _, res := range pending {
		res.Resolve(err)
	}
}
