// Command caolo-client runs a development simulation server that speaks the
// object stream protocol, for exercising the client hosts locally.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	_ "net/http/pprof" // Import for side-effects (registers handlers)
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/irishsmurf/caolo-client/config"
	"github.com/irishsmurf/caolo-client/game"
	"github.com/irishsmurf/caolo-client/logging"
	"github.com/irishsmurf/caolo-client/server"
)

var (
	configPath = flag.String("config", "", "path to a YAML config file")
	addr       = flag.String("addr", "", "http service address (overrides server.addr)")
	pprofAddr  = flag.String("pprof", "", "pprof http service address (overrides server.pprof_addr)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *pprofAddr != "" {
		cfg.Server.PprofAddr = *pprofAddr
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintln(os.Stderr, "init logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Errorw("Server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	world := game.NewWorld(game.Config{
		WorldRadius: cfg.Server.WorldRadius,
		RoomRadius:  cfg.Server.RoomRadius,
		BotsPerRoom: cfg.Server.BotsPerRoom,
		Seed:        cfg.Server.Seed,
	})
	hub := server.NewHub(world, cfg.Server.TickInterval, logger)
	go hub.Run(ctx)

	// Start pprof server in a separate goroutine
	if cfg.Server.PprofAddr != "" {
		go func() {
			logger.Infow("Starting pprof HTTP server", "addr", cfg.Server.PprofAddr)
			if err := http.ListenAndServe(cfg.Server.PprofAddr, nil); err != nil {
				logger.Warnw("pprof server stopped", "error", err)
			}
		}()
	}

	mux := server.NewMux(hub, logger)
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("Starting HTTP server", "addr", cfg.Server.Addr,
			"worldRadius", cfg.Server.WorldRadius, "roomRadius", cfg.Server.RoomRadius, "tick", cfg.Server.TickInterval)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Infow("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		srv.Close()
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
