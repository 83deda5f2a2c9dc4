package simclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irishsmurf/caolo-client/protocol"
	"github.com/irishsmurf/caolo-client/simclient"
)

const entitiesFrame = `{"ty":"entities","payload":{"time":42,"roomId":{"q":1,"r":1},"bots":[],"structures":[],"resources":[]}}`

// streamServer upgrades /object-stream, forwards every client frame to
// received and then writes each frame from replies.
func streamServer(t *testing.T, replies ...string) (*httptest.Server, chan []byte) {
	t.Helper()
	received := make(chan []byte, 16)
	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()
	mux.HandleFunc("/object-stream", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, reply := range replies {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
				return
			}
		}
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			assert.Equal(t, websocket.BinaryMessage, mt)
			received <- data
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, received
}

func testConfig(srv *httptest.Server) simclient.Config {
	cfg := simclient.DefaultConfig()
	cfg.WSBaseURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	cfg.APIBaseURL = srv.URL
	return cfg
}

func TestClient_EndToEnd(t *testing.T) {
	srv, received := streamServer(t, entitiesFrame)
	reg := prometheus.NewRegistry()

	c, err := simclient.New(testConfig(srv),
		simclient.WithLayout([]protocol.AxialPos{}),
		simclient.WithMetrics(reg),
	)
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, simclient.Connecting, c.State())

	ctx := context.Background()
	// Queued while offline, flushed once the sender starts.
	require.NoError(t, c.SubscribeRoom(ctx, protocol.AxialPos{Q: 5, R: -3}))
	require.NoError(t, c.Start(ctx))

	select {
	case data := <-received:
		cmd, err := protocol.DecodeCommand(data)
		require.NoError(t, err)
		assert.Equal(t, protocol.CommandSubscribe, cmd.Ty)
		assert.Equal(t, protocol.AxialPos{Q: 5, R: -3}, *cmd.RoomID)
	case <-time.After(2 * time.Second):
		t.Fatal("subscribe never reached the server")
	}

	var events simclient.Events
	require.Eventually(t, func() bool {
		got := c.Drain()
		events.Connected = append(events.Connected, got.Connected...)
		events.Entities = append(events.Entities, got.Entities...)
		return len(events.Connected) == 1 && len(events.Entities) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 42, events.Entities[0].Payload.Time)
	assert.Equal(t, simclient.Online, c.State())

	require.NoError(t, c.UnsubscribeAll(ctx))
	select {
	case data := <-received:
		assert.JSONEq(t, `{"ty":"clear_room_ids"}`, string(data))
	case <-time.After(2 * time.Second):
		t.Fatal("unsubscribe never reached the server")
	}

	const sent = `
# HELP caosim_client_frames_sent_total Outbound frames written to the socket.
# TYPE caosim_client_frames_sent_total counter
caosim_client_frames_sent_total 2
`
	assert.Eventually(t, func() bool {
		return testutil.GatherAndCompare(reg, strings.NewReader(sent), "caosim_client_frames_sent_total") == nil
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Close())
	assert.Equal(t, simclient.Closed, c.State())
	assert.ErrorIs(t, c.SubscribeRoom(ctx, protocol.AxialPos{}), simclient.ErrClosed)
	assert.ErrorIs(t, c.Start(ctx), simclient.ErrClosed)
}

func TestClient_StartTwice(t *testing.T) {
	srv, _ := streamServer(t)
	c, err := simclient.New(testConfig(srv), simclient.WithLayout([]protocol.AxialPos{}))
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.Start(context.Background()))
	assert.ErrorIs(t, c.Start(context.Background()), simclient.ErrAlreadyStarted)
}

func TestClient_EnqueueRespectsContext(t *testing.T) {
	cfg := simclient.DefaultConfig()
	cfg.OutboundCapacity = 1
	c, err := simclient.New(cfg)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.SubscribeRooms(ctx, []protocol.AxialPos{{Q: 1, R: 1}, {Q: 2, R: 2}}))

	full, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.UnsubscribeRoom(full, protocol.AxialPos{Q: 1, R: 1}), context.DeadlineExceeded)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := simclient.DefaultConfig()
	cfg.EntitiesCapacity = 0
	_, err := simclient.New(cfg)
	assert.Error(t, err)

	cfg = simclient.DefaultConfig()
	cfg.MaxBackoff = 0
	_, err = simclient.New(cfg)
	assert.Error(t, err)
}
