package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/irishsmurf/caolo-client/protocol"
)

const layoutKeyPrefix = "caosim:layout:"

// RedisLayoutStore shares cached layouts between client processes. Entries
// are JSON arrays of axial positions and expire after TTL; a zero TTL keeps
// them forever.
type RedisLayoutStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisLayoutStore(client *redis.Client, ttl time.Duration) *RedisLayoutStore {
	return &RedisLayoutStore{client: client, ttl: ttl}
}

func layoutKey(radius int) string {
	return fmt.Sprintf("%s%d", layoutKeyPrefix, radius)
}

func (s *RedisLayoutStore) Get(ctx context.Context, radius int) ([]protocol.AxialPos, bool, error) {
	data, err := s.client.Get(ctx, layoutKey(radius)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get layout: %w", err)
	}
	var layout []protocol.AxialPos
	if err := json.Unmarshal(data, &layout); err != nil {
		// Callers treat this like a miss; the refetched layout overwrites it.
		return nil, false, fmt.Errorf("decode cached layout: %w", err)
	}
	return layout, true, nil
}

func (s *RedisLayoutStore) Put(ctx context.Context, radius int, layout []protocol.AxialPos) error {
	if layout == nil {
		layout = []protocol.AxialPos{}
	}
	data, err := json.Marshal(layout)
	if err != nil {
		return fmt.Errorf("encode layout: %w", err)
	}
	if err := s.client.Set(ctx, layoutKey(radius), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set layout: %w", err)
	}
	return nil
}
