package simclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/irishsmurf/caolo-client/protocol"
)

// LayoutStore caches room layouts by radius between runs.
type LayoutStore interface {
	Get(ctx context.Context, radius int) ([]protocol.AxialPos, bool, error)
	Put(ctx context.Context, radius int, layout []protocol.AxialPos) error
}

// FetchLayout returns the room layout used to place terrain tiles. The store,
// when given, is consulted first; on a miss the layout is fetched over HTTP,
// retrying transient failures until ctx is done, and written back.
func FetchLayout(ctx context.Context, httpClient *http.Client, cfg Config, store LayoutStore, logger *zap.SugaredLogger) ([]protocol.AxialPos, error) {
	if store != nil {
		layout, ok, err := store.Get(ctx, cfg.LayoutRadius)
		switch {
		case err != nil:
			logger.Warnw("Layout cache read failed", "radius", cfg.LayoutRadius, "error", err)
		case ok:
			logger.Infow("Loaded room layout from cache", "radius", cfg.LayoutRadius, "cells", len(layout))
			return layout, nil
		}
	}

	var layout []protocol.AxialPos
	op := func() error {
		l, err := getLayout(ctx, httpClient, cfg.LayoutURL())
		if err != nil {
			return err
		}
		layout = l
		return nil
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = cfg.MaxBackoff
	b.MaxElapsedTime = 0
	notify := func(err error, wait time.Duration) {
		logger.Errorw("Failed to fetch room layout", "url", cfg.LayoutURL(), "error", err, "retryIn", wait)
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, fmt.Errorf("fetch room layout: %w", err)
	}
	logger.Infow("Fetched room layout", "radius", cfg.LayoutRadius, "cells", len(layout))

	if store != nil {
		if err := store.Put(ctx, cfg.LayoutRadius, layout); err != nil {
			logger.Warnw("Layout cache write failed", "radius", cfg.LayoutRadius, "error", err)
		}
	}
	return layout, nil
}

func getLayout(ctx context.Context, httpClient *http.Client, url string) ([]protocol.AxialPos, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
		// Client errors will not fix themselves.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	var layout []protocol.AxialPos
	if err := json.NewDecoder(resp.Body).Decode(&layout); err != nil {
		return nil, fmt.Errorf("decode layout: %w", err)
	}
	return layout, nil
}
