package simclient

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/irishsmurf/caolo-client/protocol"
)

// Manager keeps one logical connection to the object stream alive. Run
// loops connect, serve, reconnect until its context is cancelled.
type Manager struct {
	url      string
	dialer   Dialer
	layout   []protocol.AxialPos
	state    *StateCell
	outbound chan Frame
	bridge   *Bridge
	backoff  *backoff.ExponentialBackOff
	metrics  *Metrics
	logger   *zap.SugaredLogger
	observe  func(ConnectionState)
}

func newBackoff(cfg Config) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialBackoff
	b.MaxInterval = cfg.MaxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (m *Manager) setState(s ConnectionState) {
	m.state.store(s)
	m.metrics.state.Set(float64(s))
	if m.observe != nil {
		m.observe(s)
	}
}

// Run is the supervised retry loop. It returns only when ctx is done,
// leaving the state at Closed or Error.
func (m *Manager) Run(ctx context.Context) {
	for ctx.Err() == nil {
		m.logger.Infow("Connecting to object stream", "url", m.url)
		m.setState(Connecting)
		m.metrics.connectAttempts.Inc()

		conn, err := m.dialer.Dial(ctx, m.url)
		if err != nil {
			m.setState(Error)
			m.metrics.connectFailures.Inc()
			wait := m.backoff.NextBackOff()
			m.logger.Errorw("Failed to connect to object stream", "error", err, "retryIn", wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return
			}
			continue
		}
		m.backoff.Reset()

		m.serve(ctx, conn)
	}
}

// serve runs one connection until its read side ends.
func (m *Manager) serve(ctx context.Context, conn Conn) {
	logger := m.logger.With("attempt", uuid.New().String()[:8])

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Closing the socket unblocks ReadMessage and any in-flight write once
	// this attempt is over or the client shuts down.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		<-connCtx.Done()
		conn.Close()
	}()
	defer func() { <-closed }()

	conn.SetPingHandler(func(appData string) error {
		m.handleFrame(connCtx, logger, websocket.PingMessage, []byte(appData))
		return nil
	})
	conn.SetPongHandler(func(appData string) error {
		m.handleFrame(connCtx, logger, websocket.PongMessage, []byte(appData))
		return nil
	})

	// The sender must be draining before Connected goes out, otherwise a
	// resubscribe queued in reaction to it could sit behind a dead sender.
	started := make(chan struct{})
	senderDone := make(chan struct{})
	go func() {
		defer close(senderDone)
		runSender(connCtx, conn, m.outbound, started, m.metrics, logger.With("task", "sender"))
	}()
	defer func() { <-senderDone }()
	select {
	case <-started:
	case <-connCtx.Done():
		m.setState(Closed)
		return
	}

	logger.Infow("Connected to object stream")
	m.setState(Online)
	if m.bridge.publishConnected(connCtx) {
		m.metrics.eventsPublished.WithLabelValues("connected").Inc()
	}

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				logger.Infow("Object stream closed on shutdown")
			} else if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Infow("Object stream closed by server, reconnecting", "error", err)
			} else {
				logger.Infow("Connection dropped, reconnecting", "error", err)
			}
			break
		}
		m.handleFrame(connCtx, logger, messageType, data)
	}

	m.setState(Closed)
	// Abort the sender right away; its socket is unusable.
	cancel()
}

// handleFrame dispatches one inbound frame. Decode failures drop the frame
// and keep the connection.
func (m *Manager) handleFrame(ctx context.Context, logger *zap.SugaredLogger, messageType int, data []byte) {
	m.metrics.framesReceived.WithLabelValues(frameKind(messageType)).Inc()
	m.metrics.bytesReceived.Add(float64(len(data)))

	switch messageType {
	case websocket.TextMessage:
		if err := m.handleMessage(ctx, logger, data); err != nil {
			kind := protocol.ErrorKind(err)
			if kind == "" {
				kind = "other"
			}
			m.metrics.decodeErrors.WithLabelValues(string(kind)).Inc()
			logger.Errorw("Failed to handle message", "error", err)
		}
	case websocket.PingMessage:
		// Replies go through the outbound queue so the sender stays the
		// only writer.
		select {
		case m.outbound <- Frame{Type: websocket.PongMessage, Data: data}:
		default:
			m.metrics.framesDropped.Inc()
			logger.Warnw("Outbound queue full, dropping pong")
		}
	case websocket.PongMessage:
		logger.Debugw("Server pong received")
	default:
		logger.Debugw("Unexpected message variant", "kind", frameKind(messageType), "bytes", len(data))
	}
}

func (m *Manager) handleMessage(ctx context.Context, logger *zap.SugaredLogger, data []byte) error {
	msg, err := protocol.Decode(data)
	if err != nil {
		return err
	}

	switch msg.Type {
	case protocol.MessageEntities:
		logger.Debugw("New entities", "time", msg.Entities.Time, "room", msg.Entities.RoomID)
		if m.bridge.publishEntities(ctx, NewEntities{Payload: msg.Entities}) {
			m.metrics.eventsPublished.WithLabelValues("entities").Inc()
		}

	case protocol.MessageTerrain:
		if msg.Terrain == nil {
			logger.Infow("Terrain request returned null")
			return nil
		}
		tiles, err := protocol.TerrainPayloadToTiles(msg.Terrain.Tiles, m.layout)
		if err != nil {
			return err
		}
		logger.Infow("Got terrain", "room", msg.Terrain.RoomID, "offset", msg.Terrain.Offset, "tiles", len(tiles))
		ev := NewTerrain{RoomID: msg.Terrain.RoomID, Offset: msg.Terrain.Offset, Terrain: tiles}
		if m.bridge.publishTerrain(ctx, ev) {
			m.metrics.eventsPublished.WithLabelValues("terrain").Inc()
		}
	}
	return nil
}
