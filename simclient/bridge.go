package simclient

import (
	"context"

	"github.com/irishsmurf/caolo-client/protocol"
)

// NewEntities is published once per decoded entities snapshot. The payload
// is shared between consumers and must not be mutated.
type NewEntities struct {
	Payload *protocol.EntitiesPayload
}

// NewTerrain is published once per decoded terrain response. Terrain is
// shared between consumers and must not be mutated.
type NewTerrain struct {
	RoomID  protocol.AxialPos
	Offset  protocol.AxialPos
	Terrain []protocol.Tile
}

// Connected fires after every successful handshake. Consumers resubscribe
// to the rooms they care about when they see it.
type Connected struct{}

// Events is everything drained from the bridge in one frame, each kind in
// arrival order.
type Events struct {
	Connected []Connected
	Entities  []NewEntities
	Terrain   []NewTerrain
}

// Empty reports whether nothing was drained.
func (e Events) Empty() bool {
	return len(e.Connected) == 0 && len(e.Entities) == 0 && len(e.Terrain) == 0
}

// Bridge carries decoded payloads from the connection goroutine to a frame
// driven consumer over small bounded channels.
type Bridge struct {
	entities  chan NewEntities
	terrain   chan NewTerrain
	connected chan Connected
}

// NewBridge creates the channel pairs with the configured capacities.
func NewBridge(cfg Config) *Bridge {
	return &Bridge{
		entities:  make(chan NewEntities, cfg.EntitiesCapacity),
		terrain:   make(chan NewTerrain, cfg.TerrainCapacity),
		connected: make(chan Connected, cfg.ConnectedCapacity),
	}
}

// Drain pulls every queued event without blocking.
func (b *Bridge) Drain() Events {
	return Events{
		Connected: drain(b.connected),
		Entities:  drain(b.entities),
		Terrain:   drain(b.terrain),
	}
}

func drain[T any](ch <-chan T) []T {
	var out []T
	for {
		select {
		case v := <-ch:
			out = append(out, v)
		default:
			return out
		}
	}
}

// The publish methods block while the channel is full. They give up only
// when ctx is done, reporting false.

func (b *Bridge) publishEntities(ctx context.Context, e NewEntities) bool {
	select {
	case b.entities <- e:
		return true
	case <-ctx.Done():
		return false
	}
}

func (b *Bridge) publishTerrain(ctx context.Context, t NewTerrain) bool {
	select {
	case b.terrain <- t:
		return true
	case <-ctx.Done():
		return false
	}
}

func (b *Bridge) publishConnected(ctx context.Context) bool {
	select {
	case b.connected <- Connected{}:
		return true
	case <-ctx.Done():
		return false
	}
}
