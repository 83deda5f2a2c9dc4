package protocol_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irishsmurf/caolo-client/protocol"
)

func TestDecode_Entities(t *testing.T) {
	t.Run("empty snapshot", func(t *testing.T) {
		msg, err := protocol.Decode([]byte(`{"ty":"entities","payload":{"time":42,"roomId":{"q":1,"r":1},"bots":[],"structures":[],"resources":[]}}`))
		require.NoError(t, err)

		assert.Equal(t, protocol.MessageEntities, msg.Type)
		require.NotNil(t, msg.Entities)
		assert.Equal(t, int64(42), msg.Entities.Time)
		assert.Equal(t, protocol.AxialPos{Q: 1, R: 1}, msg.Entities.RoomID)
		assert.Empty(t, msg.Entities.Bots)
		assert.Nil(t, msg.Terrain)
	})

	t.Run("omitted fields take defaults", func(t *testing.T) {
		msg, err := protocol.Decode([]byte(`{"ty":"entities","payload":{"time":7,"bots":[{"id":3}]}}`))
		require.NoError(t, err)

		require.Len(t, msg.Entities.Bots, 1)
		bot := msg.Entities.Bots[0]
		assert.Equal(t, protocol.SimEntityID(3), bot.ID)
		assert.Equal(t, protocol.EntityPosition{}, bot.Pos)
		assert.Nil(t, bot.Hp)
		assert.Nil(t, bot.MineIntent)
		assert.Equal(t, protocol.AxialPos{}, msg.Entities.RoomID)
		assert.Empty(t, msg.Entities.Structures)
	})

	t.Run("full records", func(t *testing.T) {
		raw := `{"ty":"entities","payload":{
			"time":100,
			"roomId":{"q":2,"r":-1},
			"bots":[{"id":1,"pos":{"room":{"q":2,"r":-1},"pos":{"q":4,"r":5},"offset":{"q":10,"r":-5}},
				"hp":{"value":80,"valueMax":100},"carry":{"value":5,"valueMax":50},
				"owner":{"data":"a5c4"},"say":"hi","mineIntent":{"targetId":9},
				"decay":{"hpAmount":1,"interval":10,"timeRemaining":3}}],
			"structures":[{"id":2,"hp":{"value":1000,"valueMax":1000},"energy":{"value":200,"valueMax":500},
				"energyRegen":3,"StructureType":{"Spawn":{"timeToSpawn":4,"spawning":11,"spawnQueue":[12,13]}}}],
			"resources":[{"id":9,"ResourceType":{"Energy":{"value":300,"valueMax":1000}}}]
		}}`
		msg, err := protocol.Decode([]byte(raw))
		require.NoError(t, err)

		pl := msg.Entities
		require.Len(t, pl.Bots, 1)
		bot := pl.Bots[0]
		require.NotNil(t, bot.Hp)
		assert.Equal(t, int64(80), bot.Hp.Value)
		require.NotNil(t, bot.Say)
		assert.Equal(t, "hi", *bot.Say)
		require.NotNil(t, bot.MineIntent)
		assert.Equal(t, protocol.SimEntityID(9), bot.MineIntent.TargetID)
		assert.Equal(t, int64(3), bot.Decay.TimeRemaining)
		assert.Equal(t, protocol.AxialPos{Q: 14, R: 0}, bot.Pos.AbsoluteAxial())

		require.Len(t, pl.Structures, 1)
		assert.Equal(t, []int64{12, 13}, pl.Structures[0].StructureType.Spawn.SpawnQueue)
		assert.Equal(t, int64(3), pl.Structures[0].EnergyRegen)

		require.Len(t, pl.Resources, 1)
		assert.Equal(t, int64(300), pl.Resources[0].ResourceType.Energy.Value)
	})
}

func TestDecode_Terrain(t *testing.T) {
	t.Run("payload", func(t *testing.T) {
		msg, err := protocol.Decode([]byte(`{"ty":"terrain","payload":{"roomId":{"q":1,"r":2},"offset":{"q":30,"r":60},"tiles":[0,1,2,3]}}`))
		require.NoError(t, err)

		assert.Equal(t, protocol.MessageTerrain, msg.Type)
		require.NotNil(t, msg.Terrain)
		assert.Equal(t, protocol.AxialPos{Q: 1, R: 2}, msg.Terrain.RoomID)
		assert.Equal(t, protocol.AxialPos{Q: 30, R: 60}, msg.Terrain.Offset)
		assert.Equal(t, []int64{0, 1, 2, 3}, msg.Terrain.Tiles)
	})

	t.Run("null payload means no terrain", func(t *testing.T) {
		msg, err := protocol.Decode([]byte(`{"ty":"terrain","payload":null}`))
		require.NoError(t, err)

		assert.Equal(t, protocol.MessageTerrain, msg.Type)
		assert.Nil(t, msg.Terrain)
	})
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"not json", `{"ty":`, protocol.ErrMalformed},
		{"missing tag", `{"payload":{}}`, protocol.ErrMalformed},
		{"unknown tag", `{"ty":"weather","payload":{}}`, protocol.ErrUnknownTag},
		{"entities without payload", `{"ty":"entities"}`, protocol.ErrMalformed},
		{"wrong field type", `{"ty":"entities","payload":{"time":"soon"}}`, protocol.ErrMalformed},
		{"terrain tiles not numbers", `{"ty":"terrain","payload":{"tiles":["wall"]}}`, protocol.ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := protocol.Decode([]byte(tt.raw))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	t.Run("unknown tag carries the tag", func(t *testing.T) {
		_, err := protocol.Decode([]byte(`{"ty":"weather"}`))
		var de *protocol.DecodeError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, "weather", de.Tag)
		assert.Equal(t, protocol.KindUnknownTag, protocol.ErrorKind(err))
	})
}

func TestEncode_RoundTrip(t *testing.T) {
	say := "beep"
	in := protocol.Message{
		Type: protocol.MessageEntities,
		Entities: &protocol.EntitiesPayload{
			Time:   9,
			RoomID: protocol.AxialPos{Q: -1, R: 2},
			Bots:   []protocol.Bot{{ID: 5, Say: &say}},
		},
	}
	data, err := protocol.Encode(in)
	require.NoError(t, err)

	out, err := protocol.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, in.Entities.Time, out.Entities.Time)
	assert.Equal(t, in.Entities.RoomID, out.Entities.RoomID)
	require.Len(t, out.Entities.Bots, 1)
	assert.Equal(t, "beep", *out.Entities.Bots[0].Say)

	data, err = protocol.Encode(protocol.Message{Type: protocol.MessageTerrain})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ty":"terrain","payload":null}`, string(data))
}

func TestEncodeCommands(t *testing.T) {
	room := protocol.AxialPos{Q: 5, R: -3}

	t.Run("wire shapes", func(t *testing.T) {
		assert.JSONEq(t, `{"ty":"room_id","room_id":{"q":5,"r":-3}}`, string(protocol.EncodeSubscribe(room)))
		assert.JSONEq(t, `{"ty":"unsubscribe_room_id","room_id":{"q":5,"r":-3}}`, string(protocol.EncodeUnsubscribe(room)))
		assert.JSONEq(t, `{"ty":"room_ids","room_ids":[{"q":5,"r":-3},{"q":0,"r":0}]}`,
			string(protocol.EncodeSubscribeMany([]protocol.AxialPos{room, {}})))
		assert.JSONEq(t, `{"ty":"room_ids","room_ids":[]}`, string(protocol.EncodeSubscribeMany(nil)))
		assert.JSONEq(t, `{"ty":"clear_room_ids"}`, string(protocol.EncodeUnsubscribeAll()))
	})

	t.Run("subscribe round trip", func(t *testing.T) {
		cmd, err := protocol.DecodeCommand(protocol.EncodeSubscribe(room))
		require.NoError(t, err)
		assert.Equal(t, protocol.CommandSubscribe, cmd.Ty)
		require.NotNil(t, cmd.RoomID)
		assert.Equal(t, room, *cmd.RoomID)
	})

	t.Run("subscribe many round trip", func(t *testing.T) {
		rooms := []protocol.AxialPos{{Q: 1, R: 1}, {Q: 2, R: -2}}
		cmd, err := protocol.DecodeCommand(protocol.EncodeSubscribeMany(rooms))
		require.NoError(t, err)
		assert.Equal(t, protocol.CommandSubscribeMany, cmd.Ty)
		assert.Equal(t, rooms, cmd.RoomIDs)
	})

	t.Run("unsubscribe all is stateless", func(t *testing.T) {
		first := protocol.EncodeUnsubscribeAll()
		_ = protocol.EncodeSubscribe(room)
		assert.Equal(t, first, protocol.EncodeUnsubscribeAll())

		cmd, err := protocol.DecodeCommand(first)
		require.NoError(t, err)
		assert.Equal(t, protocol.CommandUnsubscribeAll, cmd.Ty)
	})

	t.Run("bad commands", func(t *testing.T) {
		_, err := protocol.DecodeCommand([]byte(`{"ty":"room_id"}`))
		assert.ErrorIs(t, err, protocol.ErrMalformed)

		_, err = protocol.DecodeCommand([]byte(`{"ty":"teleport"}`))
		assert.ErrorIs(t, err, protocol.ErrUnknownTag)

		_, err = protocol.DecodeCommand([]byte(`[]`))
		assert.ErrorIs(t, err, protocol.ErrMalformed)
	})

	t.Run("commands are valid json", func(t *testing.T) {
		for _, b := range [][]byte{
			protocol.EncodeSubscribe(room),
			protocol.EncodeUnsubscribe(room),
			protocol.EncodeSubscribeMany(nil),
			protocol.EncodeUnsubscribeAll(),
		} {
			assert.True(t, json.Valid(b), string(b))
		}
	})
}
