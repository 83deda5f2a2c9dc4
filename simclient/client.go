package simclient

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/irishsmurf/caolo-client/protocol"
)

var (
	// ErrClosed is returned by commands issued after Close.
	ErrClosed = errors.New("simclient: client closed")
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("simclient: client already started")
)

// Client is the handle the rest of the application holds. It owns the
// outbound queue, the event bridge and the background connection.
type Client struct {
	cfg        Config
	logger     *zap.SugaredLogger
	dialer     Dialer
	httpClient *http.Client
	store      LayoutStore
	metrics    *Metrics
	observe    func(ConnectionState)
	layout     []protocol.AxialPos

	state    *StateCell
	outbound chan Frame
	bridge   *Bridge

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	done      chan struct{}
	closeOnce sync.Once
}

// Option customises a Client.
type Option func(*Client)

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(c *Client) { c.logger = logger }
}

func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithMetrics registers the client collectors with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) { c.metrics = NewMetrics(reg) }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLayoutStore caches the room layout across runs.
func WithLayoutStore(s LayoutStore) Option {
	return func(c *Client) { c.store = s }
}

// WithLayout skips the layout bootstrap and uses layout as given.
func WithLayout(layout []protocol.AxialPos) Option {
	return func(c *Client) { c.layout = layout }
}

// WithStateObserver calls fn on every state transition, from the connection
// goroutine. fn must not block.
func WithStateObserver(fn func(ConnectionState)) Option {
	return func(c *Client) { c.observe = fn }
}

// New builds a client. Nothing touches the network until Start.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Client{
		cfg:        cfg,
		logger:     zap.NewNop().Sugar(),
		dialer:     WSDialer{HandshakeTimeout: cfg.HandshakeTimeout},
		httpClient: http.DefaultClient,
		state:      NewStateCell(Connecting),
		outbound:   make(chan Frame, cfg.OutboundCapacity),
		bridge:     NewBridge(cfg),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}
	c.logger = c.logger.With("component", "simclient")
	return c, nil
}

// Start loads the room layout and launches the connection manager. It
// blocks only for the layout bootstrap. The manager runs until ctx is done
// or Close is called.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.isClosed() {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.started = true
	c.cancel = cancel
	layout := c.layout
	c.mu.Unlock()

	if layout == nil {
		var err error
		if layout, err = FetchLayout(runCtx, c.httpClient, c.cfg, c.store, c.logger); err != nil {
			cancel()
			c.mu.Lock()
			c.started = false
			c.cancel = nil
			c.mu.Unlock()
			return err
		}
	}

	m := &Manager{
		url:      c.cfg.StreamURL(),
		dialer:   c.dialer,
		layout:   layout,
		state:    c.state,
		outbound: c.outbound,
		bridge:   c.bridge,
		backoff:  newBackoff(c.cfg),
		metrics:  c.metrics,
		logger:   c.logger,
		observe:  c.observe,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.isClosed() {
		return ErrClosed
	}
	c.layout = layout
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		m.Run(runCtx)
	}()
	return nil
}

func (c *Client) isClosed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Close stops the connection manager and waits for it to exit. Later
// commands fail with ErrClosed.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		if c.cancel != nil {
			c.cancel()
		}
		c.mu.Unlock()
		c.wg.Wait()
	})
	return nil
}

// State is the current advisory connection state.
func (c *Client) State() ConnectionState {
	return c.state.Load()
}

// Layout is the room layout used for terrain reconstruction.
func (c *Client) Layout() []protocol.AxialPos {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.layout
}

// Drain returns every event queued since the last call without blocking.
// Call it once per frame.
func (c *Client) Drain() Events {
	return c.bridge.Drain()
}

// SubscribeRoom asks the server to stream the given room.
func (c *Client) SubscribeRoom(ctx context.Context, room protocol.AxialPos) error {
	return c.enqueue(ctx, protocol.EncodeSubscribe(room))
}

// SubscribeRooms asks the server to stream every room given, in one command.
func (c *Client) SubscribeRooms(ctx context.Context, rooms []protocol.AxialPos) error {
	return c.enqueue(ctx, protocol.EncodeSubscribeMany(rooms))
}

func (c *Client) UnsubscribeRoom(ctx context.Context, room protocol.AxialPos) error {
	return c.enqueue(ctx, protocol.EncodeUnsubscribe(room))
}

func (c *Client) UnsubscribeAll(ctx context.Context) error {
	return c.enqueue(ctx, protocol.EncodeUnsubscribeAll())
}

// enqueue blocks only while the outbound queue is full. Commands queued
// while offline are written once the next sender starts.
func (c *Client) enqueue(ctx context.Context, data []byte) error {
	if c.isClosed() {
		return ErrClosed
	}
	select {
	case c.outbound <- binaryFrame(data):
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}
