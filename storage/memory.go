// Package storage caches room layouts so a restarted client can skip the
// bootstrap HTTP call.
package storage

import (
	"context"
	"sync"

	"github.com/irishsmurf/caolo-client/protocol"
)

// MemoryLayoutStore keeps layouts for the life of the process.
type MemoryLayoutStore struct {
	mu      sync.RWMutex
	layouts map[int][]protocol.AxialPos
}

func NewMemoryLayoutStore() *MemoryLayoutStore {
	return &MemoryLayoutStore{layouts: make(map[int][]protocol.AxialPos)}
}

func (s *MemoryLayoutStore) Get(_ context.Context, radius int) ([]protocol.AxialPos, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	layout, ok := s.layouts[radius]
	if !ok {
		return nil, false, nil
	}
	return append([]protocol.AxialPos(nil), layout...), true, nil
}

func (s *MemoryLayoutStore) Put(_ context.Context, radius int, layout []protocol.AxialPos) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.layouts[radius] = append([]protocol.AxialPos(nil), layout...)
	return nil
}
