package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/irishsmurf/caolo-client/protocol"
	"github.com/irishsmurf/caolo-client/relay"
	"github.com/irishsmurf/caolo-client/simclient"
)

type fakeSubscriber struct {
	calls [][]protocol.AxialPos
	err   error
}

func (f *fakeSubscriber) SubscribeRooms(_ context.Context, rooms []protocol.AxialPos) error {
	f.calls = append(f.calls, rooms)
	return f.err
}

type fakeNATS struct{ subjects []string }

func (f *fakeNATS) Publish(subject string, _ []byte) error {
	f.subjects = append(f.subjects, subject)
	return nil
}

func snapshot(time int64, botIDs ...protocol.SimEntityID) simclient.NewEntities {
	p := &protocol.EntitiesPayload{Time: time, RoomID: protocol.AxialPos{Q: 1, R: 1}}
	for _, id := range botIDs {
		p.Bots = append(p.Bots, protocol.Bot{ID: id})
	}
	return simclient.NewEntities{Payload: p}
}

func TestHost_ResubscribesOnConnected(t *testing.T) {
	sub := &fakeSubscriber{}
	rooms := []protocol.AxialPos{{Q: 0, R: 0}, {Q: 1, R: 1}}
	h := newHost(sub, rooms, nil, zap.NewNop().Sugar())
	ctx := context.Background()

	h.frame(ctx, simclient.Events{})
	assert.Empty(t, sub.calls)

	h.frame(ctx, simclient.Events{Connected: []simclient.Connected{{}}})
	h.frame(ctx, simclient.Events{Connected: []simclient.Connected{{}}})
	require.Len(t, sub.calls, 2)
	assert.Equal(t, rooms, sub.calls[1])

	sub.err = errors.New("client closed")
	assert.NotPanics(t, func() { h.frame(ctx, simclient.Events{Connected: []simclient.Connected{{}}}) })
}

func TestHost_TracksEntitiesAndTerrain(t *testing.T) {
	nats := &fakeNATS{}
	h := newHost(&fakeSubscriber{}, nil, relay.NewPublisher(nats, zap.NewNop().Sugar()), zap.NewNop().Sugar())
	ctx := context.Background()

	h.frame(ctx, simclient.Events{
		Entities: []simclient.NewEntities{snapshot(1, 1, 2)},
		Terrain: []simclient.NewTerrain{{
			RoomID:  protocol.AxialPos{Q: 1, R: 1},
			Terrain: []protocol.Tile{{Ty: protocol.TerrainPlain}},
		}},
	})
	assert.Equal(t, 2, h.registry.Len())
	assert.Len(t, h.terrain[protocol.AxialPos{Q: 1, R: 1}], 1)
	assert.Equal(t, []string{"caosim.entities.1.1", "caosim.terrain.1.1"}, nats.subjects)

	h.frame(ctx, simclient.Events{Entities: []simclient.NewEntities{snapshot(2, 1), snapshot(3, 1)}})
	assert.Equal(t, 1, h.registry.Len(), "bot 2 went stale")
	assert.Equal(t, 2, h.spawned)
	assert.Equal(t, 1, h.despawned)

	h.frame(ctx, simclient.Events{Connected: []simclient.Connected{{}}})
	assert.Zero(t, h.registry.Len(), "reconnect resets the registry")
}
