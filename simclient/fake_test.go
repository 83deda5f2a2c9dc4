package simclient

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/irishsmurf/caolo-client/protocol"
)

// fakeConn replays queued frames and records writes. Control frames go
// through the installed handlers, the way gorilla dispatches them.
type fakeConn struct {
	inbound   chan Frame
	written   chan Frame
	closed    chan struct{}
	closeOnce sync.Once

	mu   sync.Mutex
	ping func(string) error
	pong func(string) error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan Frame, 16),
		written: make(chan Frame, 16),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	for {
		select {
		case f := <-c.inbound:
			c.mu.Lock()
			h := c.ping
			if f.Type == websocket.PongMessage {
				h = c.pong
			}
			c.mu.Unlock()
			if f.Type == websocket.PingMessage || f.Type == websocket.PongMessage {
				if h != nil {
					if err := h(string(f.Data)); err != nil {
						return 0, nil, err
					}
				}
				continue
			}
			return f.Type, f.Data, nil
		case <-c.closed:
			return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
		}
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-c.closed:
		return errors.New("write on closed connection")
	case c.written <- Frame{Type: messageType, Data: data}:
		return nil
	}
}

func (c *fakeConn) SetPingHandler(h func(string) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ping = h
}

func (c *fakeConn) SetPongHandler(h func(string) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pong = h
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) text(data string) {
	c.inbound <- Frame{Type: websocket.TextMessage, Data: []byte(data)}
}

type dialResult struct {
	conn *fakeConn
	err  error
}

// fakeDialer hands out results in order and then blocks until ctx is done.
type fakeDialer struct {
	mu      sync.Mutex
	results []dialResult
	calls   int
}

func (d *fakeDialer) Dial(ctx context.Context, _ string) (Conn, error) {
	d.mu.Lock()
	d.calls++
	if len(d.results) == 0 {
		d.mu.Unlock()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	r := d.results[0]
	d.results = d.results[1:]
	d.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	return r.conn, nil
}

func (d *fakeDialer) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

type transition struct {
	state ConnectionState
	at    time.Time
}

type stateRecorder struct {
	mu   sync.Mutex
	seen []transition
}

func (r *stateRecorder) observe(s ConnectionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, transition{state: s, at: time.Now()})
}

func (r *stateRecorder) transitions() []transition {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]transition(nil), r.seen...)
}

func (r *stateRecorder) states() []ConnectionState {
	var out []ConnectionState
	for _, t := range r.transitions() {
		out = append(out, t.state)
	}
	return out
}

func (r *stateRecorder) reached(s ConnectionState) bool {
	for _, got := range r.states() {
		if got == s {
			return true
		}
	}
	return false
}

// startManager runs a manager over d until the test ends.
func startManager(t *testing.T, d Dialer, layout []protocol.AxialPos) (*Manager, *stateRecorder) {
	t.Helper()
	cfg := DefaultConfig()
	rec := &stateRecorder{}
	m := &Manager{
		url:      "ws://test/object-stream",
		dialer:   d,
		layout:   layout,
		state:    NewStateCell(Connecting),
		outbound: make(chan Frame, cfg.OutboundCapacity),
		bridge:   NewBridge(cfg),
		backoff:  newBackoff(cfg),
		metrics:  NewMetrics(nil),
		logger:   zap.NewNop().Sugar(),
		observe:  rec.observe,
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return m, rec
}
