// Package config loads the settings shared by the client hosts and the
// development server: defaults, then a YAML file, then a .env file, then
// CAOSIM_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/irishsmurf/caolo-client/logging"
	"github.com/irishsmurf/caolo-client/protocol"
	"github.com/irishsmurf/caolo-client/simclient"
)

type Config struct {
	Sim     simclient.Config    `yaml:"sim"`
	Log     logging.Config      `yaml:"log"`
	Metrics MetricsConfig       `yaml:"metrics"`
	Redis   RedisConfig         `yaml:"redis"`
	NATS    NATSConfig          `yaml:"nats"`
	Rooms   []protocol.AxialPos `yaml:"rooms"`
	Server  ServerConfig        `yaml:"server"`
}

type MetricsConfig struct {
	// Addr serves /metrics when set.
	Addr string `yaml:"addr"`
}

// RedisConfig enables the shared layout cache when Addr is set.
type RedisConfig struct {
	Addr      string        `yaml:"addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	LayoutTTL time.Duration `yaml:"layout_ttl"`
}

// NATSConfig enables the snapshot relay when URL is set.
type NATSConfig struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

// ServerConfig drives the development simulation server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// WorldRadius is how many rooms out from the origin room the world spans.
	WorldRadius  int           `yaml:"world_radius"`
	RoomRadius   int           `yaml:"room_radius"`
	BotsPerRoom  int           `yaml:"bots_per_room"`
	TickInterval time.Duration `yaml:"tick_interval"`
	Seed         int64         `yaml:"seed"`
	PprofAddr    string        `yaml:"pprof_addr"`
}

func Default() Config {
	return Config{
		Sim:     simclient.DefaultConfig(),
		Log:     logging.DefaultConfig(),
		Metrics: MetricsConfig{Addr: ":2112"},
		Redis:   RedisConfig{LayoutTTL: 24 * time.Hour},
		NATS:    NATSConfig{Name: "caosim-client"},
		Rooms:   []protocol.AxialPos{{Q: 0, R: 0}},
		Server: ServerConfig{
			Addr:         ":8080",
			WorldRadius:  1,
			RoomRadius:   30,
			BotsPerRoom:  8,
			TickInterval: 500 * time.Millisecond,
			Seed:         1,
			PprofAddr:    "localhost:6060",
		},
	}
}

// Load builds the configuration. path may be empty to skip the YAML file.
// A missing .env in the working directory is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}

	if err := cfg.Sim.Validate(); err != nil {
		return Config{}, fmt.Errorf("sim config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
		return nil
	}

	str("CAOSIM_API_BASE_URL", &cfg.Sim.APIBaseURL)
	str("CAOSIM_WS_BASE_URL", &cfg.Sim.WSBaseURL)
	str("CAOSIM_LOG_LEVEL", &cfg.Log.Level)
	str("CAOSIM_LOG_FILE", &cfg.Log.File)
	str("CAOSIM_METRICS_ADDR", &cfg.Metrics.Addr)
	str("CAOSIM_REDIS_ADDR", &cfg.Redis.Addr)
	str("CAOSIM_REDIS_PASSWORD", &cfg.Redis.Password)
	str("CAOSIM_NATS_URL", &cfg.NATS.URL)
	str("CAOSIM_SERVER_ADDR", &cfg.Server.Addr)

	for _, err := range []error{
		num("CAOSIM_LAYOUT_RADIUS", &cfg.Sim.LayoutRadius),
		dur("CAOSIM_MAX_BACKOFF", &cfg.Sim.MaxBackoff),
		num("CAOSIM_REDIS_DB", &cfg.Redis.DB),
		num("CAOSIM_WORLD_RADIUS", &cfg.Server.WorldRadius),
		dur("CAOSIM_TICK_INTERVAL", &cfg.Server.TickInterval),
	} {
		if err != nil {
			return err
		}
	}

	if v, ok := lookup("CAOSIM_ROOMS"); ok {
		rooms, err := ParseRooms(v)
		if err != nil {
			return fmt.Errorf("CAOSIM_ROOMS: %w", err)
		}
		cfg.Rooms = rooms
	}
	return nil
}

// ParseRooms reads a room list like "0,0;1,-1". Empty input yields no rooms.
func ParseRooms(s string) ([]protocol.AxialPos, error) {
	rooms := []protocol.AxialPos{}
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		qs, rs, ok := strings.Cut(part, ",")
		if !ok {
			return nil, fmt.Errorf("room %q: want q,r", part)
		}
		q, err := strconv.ParseInt(strings.TrimSpace(qs), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("room %q: %w", part, err)
		}
		r, err := strconv.ParseInt(strings.TrimSpace(rs), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("room %q: %w", part, err)
		}
		rooms = append(rooms, protocol.AxialPos{Q: int32(q), R: int32(r)})
	}
	return rooms, nil
}
