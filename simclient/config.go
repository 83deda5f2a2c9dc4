package simclient

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config configures the simulation client.
type Config struct {
	// APIBaseURL is the HTTP API root, e.g. http://localhost:8000/v1.
	APIBaseURL string `yaml:"api_base_url"`
	// WSBaseURL is the WebSocket root, e.g. ws://localhost:8080.
	WSBaseURL  string `yaml:"ws_base_url"`
	StreamPath string `yaml:"stream_path"`

	// LayoutRadius is the radius passed to the room layout bootstrap call.
	LayoutRadius int `yaml:"layout_radius"`

	InitialBackoff   time.Duration `yaml:"initial_backoff"`
	MaxBackoff       time.Duration `yaml:"max_backoff"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`

	OutboundCapacity  int `yaml:"outbound_capacity"`
	EntitiesCapacity  int `yaml:"entities_capacity"`
	TerrainCapacity   int `yaml:"terrain_capacity"`
	ConnectedCapacity int `yaml:"connected_capacity"`
}

// DefaultConfig returns the settings the client ships with.
func DefaultConfig() Config {
	return Config{
		APIBaseURL:        "http://localhost:8000/v1",
		WSBaseURL:         "ws://localhost:8080",
		StreamPath:        "/object-stream",
		LayoutRadius:      30,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        4096 * time.Millisecond,
		HandshakeTimeout:  10 * time.Second,
		OutboundCapacity:  64,
		EntitiesCapacity:  4,
		TerrainCapacity:   4,
		ConnectedCapacity: 2,
	}
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	if _, err := url.Parse(c.StreamURL()); err != nil || c.WSBaseURL == "" {
		return fmt.Errorf("invalid ws base url %q", c.WSBaseURL)
	}
	if c.APIBaseURL == "" {
		return fmt.Errorf("api base url is empty")
	}
	if c.LayoutRadius < 0 {
		return fmt.Errorf("layout radius must not be negative, got %d", c.LayoutRadius)
	}
	if c.InitialBackoff <= 0 || c.MaxBackoff < c.InitialBackoff {
		return fmt.Errorf("backoff must satisfy 0 < initial (%s) <= max (%s)", c.InitialBackoff, c.MaxBackoff)
	}
	for name, n := range map[string]int{
		"outbound":  c.OutboundCapacity,
		"entities":  c.EntitiesCapacity,
		"terrain":   c.TerrainCapacity,
		"connected": c.ConnectedCapacity,
	} {
		if n <= 0 {
			return fmt.Errorf("%s channel capacity must be positive, got %d", name, n)
		}
	}
	return nil
}

// StreamURL is the object stream endpoint.
func (c Config) StreamURL() string {
	return strings.TrimRight(c.WSBaseURL, "/") + c.StreamPath
}

// LayoutURL is the room layout bootstrap endpoint.
func (c Config) LayoutURL() string {
	return fmt.Sprintf("%s/world/room-terrain-layout?radius=%d", strings.TrimRight(c.APIBaseURL, "/"), c.LayoutRadius)
}
