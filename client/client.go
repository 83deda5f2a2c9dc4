// Command client is a headless host for the simulation client. It drains
// the event bridge on a fixed frame rate, keeps an entity registry and can
// relay snapshots to NATS.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/irishsmurf/caolo-client/config"
	"github.com/irishsmurf/caolo-client/entities"
	"github.com/irishsmurf/caolo-client/logging"
	"github.com/irishsmurf/caolo-client/protocol"
	"github.com/irishsmurf/caolo-client/relay"
	"github.com/irishsmurf/caolo-client/simclient"
	"github.com/irishsmurf/caolo-client/storage"
)

var (
	configPath  = flag.String("config", "", "path to a YAML config file")
	frameRate   = flag.Int("fps", 30, "frames per second for draining events")
	statusEvery = flag.Duration("status", 5*time.Second, "how often to log a status line")
)

// subscriber is the part of the client the frame loop drives.
type subscriber interface {
	SubscribeRooms(ctx context.Context, rooms []protocol.AxialPos) error
}

// host is the per-frame consumer of bridge events.
type host struct {
	client   subscriber
	rooms    []protocol.AxialPos
	registry *entities.Registry
	relay    *relay.Publisher
	terrain  map[protocol.AxialPos][]protocol.Tile
	logger   *zap.SugaredLogger

	spawned, despawned int
}

func newHost(client subscriber, rooms []protocol.AxialPos, pub *relay.Publisher, logger *zap.SugaredLogger) *host {
	return &host{
		client:   client,
		rooms:    rooms,
		registry: entities.NewRegistry(),
		relay:    pub,
		terrain:  make(map[protocol.AxialPos][]protocol.Tile),
		logger:   logger,
	}
}

// frame handles everything drained this frame.
func (h *host) frame(ctx context.Context, events simclient.Events) {
	if len(events.Connected) > 0 {
		// A reconnect means a full resync; the server may have restarted
		// its clock.
		h.registry.Reset()
		if err := h.client.SubscribeRooms(ctx, h.rooms); err != nil {
			h.logger.Warnw("Failed to resubscribe", "rooms", h.rooms, "error", err)
		} else {
			h.logger.Infow("Subscribed to rooms", "rooms", h.rooms)
		}
	}

	for _, t := range events.Terrain {
		h.terrain[t.RoomID] = t.Terrain
		h.logger.Infow("Terrain updated", "room", t.RoomID, "tiles", len(t.Terrain))
	}

	for _, e := range events.Entities {
		h.count(h.registry.Apply(e.Payload))
	}
	h.count(h.registry.Collect())

	if h.relay != nil {
		h.relay.Forward(events)
	}
}

func (h *host) count(changes []entities.Change) {
	for _, c := range changes {
		switch c.Kind {
		case entities.Spawned:
			h.spawned++
		case entities.Despawned:
			h.despawned++
		}
	}
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Errorw("Client exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			logger.Infow("Serving metrics", "addr", cfg.Metrics.Addr)
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warnw("Metrics server stopped", "error", err)
			}
		}()
	}

	var store simclient.LayoutStore = storage.NewMemoryLayoutStore()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		store = storage.NewRedisLayoutStore(rdb, cfg.Redis.LayoutTTL)
		logger.Infow("Using Redis layout cache", "addr", cfg.Redis.Addr)
	}

	var pub *relay.Publisher
	if cfg.NATS.URL != "" {
		nc, err := relay.Dial(cfg.NATS.URL, cfg.NATS.Name, logger)
		if err != nil {
			return err
		}
		defer nc.Drain()
		pub = relay.NewPublisher(nc, logger)
		logger.Infow("Relaying snapshots to NATS", "url", cfg.NATS.URL)
	}

	client, err := simclient.New(cfg.Sim,
		simclient.WithLogger(logger),
		simclient.WithMetrics(reg),
		simclient.WithLayoutStore(store),
	)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Start(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	h := newHost(client, cfg.Rooms, pub, logger.With("component", "host"))
	frames := time.NewTicker(time.Second / time.Duration(max(*frameRate, 1)))
	defer frames.Stop()
	status := time.NewTicker(*statusEvery)
	defer status.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Infow("Shutting down")
			return nil
		case <-frames.C:
			h.frame(ctx, client.Drain())
		case <-status.C:
			logger.Infow("Status",
				"state", client.State(),
				"entities", h.registry.Len(),
				"time", h.registry.LatestTime(),
				"rooms", len(h.terrain),
				"spawned", h.spawned,
				"despawned", h.despawned,
			)
		}
	}
}
