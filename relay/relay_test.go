package relay_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/irishsmurf/caolo-client/protocol"
	"github.com/irishsmurf/caolo-client/relay"
	"github.com/irishsmurf/caolo-client/simclient"
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	msgs []published
	err  error
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, published{subject, data})
	return nil
}

func TestSubjects(t *testing.T) {
	assert.Equal(t, "caosim.entities.5.-3", relay.EntitiesSubject(protocol.AxialPos{Q: 5, R: -3}))
	assert.Equal(t, "caosim.terrain.0.0", relay.TerrainSubject(protocol.AxialPos{}))
}

func TestForward(t *testing.T) {
	conn := &fakeConn{}
	p := relay.NewPublisher(conn, zap.NewNop().Sugar())

	p.Forward(simclient.Events{
		Connected: []simclient.Connected{{}},
		Entities: []simclient.NewEntities{{Payload: &protocol.EntitiesPayload{
			Time:   42,
			RoomID: protocol.AxialPos{Q: 1, R: 1},
		}}},
		Terrain: []simclient.NewTerrain{{
			RoomID:  protocol.AxialPos{Q: 2, R: 2},
			Terrain: []protocol.Tile{{Pos: protocol.AxialPos{}, Ty: protocol.TerrainWall}},
		}},
	})

	require.Len(t, conn.msgs, 2)
	assert.Equal(t, "caosim.entities.1.1", conn.msgs[0].subject)
	assert.Equal(t, "caosim.terrain.2.2", conn.msgs[1].subject)

	var payload protocol.EntitiesPayload
	require.NoError(t, json.Unmarshal(conn.msgs[0].data, &payload))
	assert.EqualValues(t, 42, payload.Time)
}

func TestForward_SwallowsPublishErrors(t *testing.T) {
	conn := &fakeConn{err: errors.New("nats: connection closed")}
	p := relay.NewPublisher(conn, zap.NewNop().Sugar())

	assert.NotPanics(t, func() {
		p.Forward(simclient.Events{Entities: []simclient.NewEntities{{Payload: &protocol.EntitiesPayload{}}}})
	})
	assert.Error(t, p.PublishEntities(&protocol.EntitiesPayload{}))
}
