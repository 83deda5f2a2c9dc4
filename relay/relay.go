// Package relay republishes decoded simulation snapshots on NATS so other
// processes can follow a room without holding their own WebSocket.
package relay

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/irishsmurf/caolo-client/protocol"
	"github.com/irishsmurf/caolo-client/simclient"
)

const subjectPrefix = "caosim"

// EntitiesSubject is the subject snapshots of room are published on.
func EntitiesSubject(room protocol.AxialPos) string {
	return fmt.Sprintf("%s.entities.%d.%d", subjectPrefix, room.Q, room.R)
}

// TerrainSubject is the subject terrain of room is published on.
func TerrainSubject(room protocol.AxialPos) string {
	return fmt.Sprintf("%s.terrain.%d.%d", subjectPrefix, room.Q, room.R)
}

// Conn is the publishing side of a NATS connection. *nats.Conn satisfies it.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Dial connects to the NATS server at url, reconnecting forever.
func Dial(url, name string, logger *zap.SugaredLogger) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warnw("NATS disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Infow("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	return nc, nil
}

// Publisher forwards bridge events to NATS as JSON.
type Publisher struct {
	conn   Conn
	logger *zap.SugaredLogger
}

func NewPublisher(conn Conn, logger *zap.SugaredLogger) *Publisher {
	return &Publisher{conn: conn, logger: logger.With("component", "relay")}
}

// Forward publishes every entity and terrain event in events. Failures are
// logged; the relay is best effort.
func (p *Publisher) Forward(events simclient.Events) {
	for _, e := range events.Entities {
		if err := p.PublishEntities(e.Payload); err != nil {
			p.logger.Warnw("Failed to relay entities", "room", e.Payload.RoomID, "error", err)
		}
	}
	for _, t := range events.Terrain {
		if err := p.PublishTerrain(t); err != nil {
			p.logger.Warnw("Failed to relay terrain", "room", t.RoomID, "error", err)
		}
	}
}

func (p *Publisher) PublishEntities(payload *protocol.EntitiesPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode entities: %w", err)
	}
	return p.conn.Publish(EntitiesSubject(payload.RoomID), data)
}

func (p *Publisher) PublishTerrain(t simclient.NewTerrain) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode terrain: %w", err)
	}
	return p.conn.Publish(TerrainSubject(t.RoomID), data)
}
