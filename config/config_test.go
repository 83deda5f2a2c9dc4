package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irishsmurf/caolo-client/protocol"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "caosim.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "ws://localhost:8080/object-stream", cfg.Sim.StreamURL())
	assert.Equal(t, 4096*time.Millisecond, cfg.Sim.MaxBackoff)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeFile(t, `
sim:
  ws_base_url: wss://sim.example.com
  layout_radius: 12
  max_backoff: 2s
log:
  level: debug
rooms:
  - {q: 1, r: -1}
  - {q: 2, r: 0}
server:
  tick_interval: 250ms
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "wss://sim.example.com", cfg.Sim.WSBaseURL)
	assert.Equal(t, 12, cfg.Sim.LayoutRadius)
	assert.Equal(t, 2*time.Second, cfg.Sim.MaxBackoff)
	assert.Equal(t, time.Millisecond, cfg.Sim.InitialBackoff, "unset keys keep their default")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []protocol.AxialPos{{Q: 1, R: -1}, {Q: 2, R: 0}}, cfg.Rooms)
	assert.Equal(t, 250*time.Millisecond, cfg.Server.TickInterval)
}

func TestLoad_EnvWins(t *testing.T) {
	path := writeFile(t, "sim:\n  layout_radius: 12\n")
	t.Setenv("CAOSIM_LAYOUT_RADIUS", "5")
	t.Setenv("CAOSIM_NATS_URL", "nats://localhost:4222")
	t.Setenv("CAOSIM_ROOMS", "0,0; 3,-2")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Sim.LayoutRadius)
	assert.Equal(t, "nats://localhost:4222", cfg.NATS.URL)
	assert.Equal(t, []protocol.AxialPos{{Q: 0, R: 0}, {Q: 3, R: -2}}, cfg.Rooms)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "sim: [not, a, map]"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "sim:\n  outbound_capacity: 0\n"))
	assert.Error(t, err)
}

func TestApplyEnv_BadValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"CAOSIM_LAYOUT_RADIUS", "thirty"},
		{"CAOSIM_MAX_BACKOFF", "4096"},
		{"CAOSIM_ROOMS", "1;2"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			cfg := Default()
			lookup := func(k string) (string, bool) {
				if k == tt.key {
					return tt.value, true
				}
				return "", false
			}
			err := applyEnv(&cfg, lookup)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestParseRooms(t *testing.T) {
	rooms, err := ParseRooms("")
	require.NoError(t, err)
	assert.Empty(t, rooms)

	rooms, err = ParseRooms("5,-3;")
	require.NoError(t, err)
	assert.Equal(t, []protocol.AxialPos{{Q: 5, R: -3}}, rooms)

	_, err = ParseRooms("5,x")
	assert.Error(t, err)
}
