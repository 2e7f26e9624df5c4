// Package memory provides in-memory repository implementations.
// These are used in tests and for runs without a persistent database.
package memory

import (
	"sync"

	"github.com/boombox-player/boombox/internal/domain"
	"github.com/boombox-player/boombox/internal/ports"
)

// MetadataStore implements ports.MetadataStore with a map.
//
// Thread-safe: All operations protected by sync.RWMutex.
type MetadataStore struct {
	entries map[string]domain.RemoteTrack
	mu      sync.RWMutex
}

// NewMetadataStore creates an empty in-memory metadata store.
func NewMetadataStore() *MetadataStore {
	return &MetadataStore{
		entries: make(map[string]domain.RemoteTrack),
	}
}

// Get retrieves an entry by canonical id. Returns (nil, nil) when absent.
func (s *MetadataStore) Get(id string) (*domain.RemoteTrack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, nil
	}

	// Return a copy so callers cannot mutate stored state.
	copied := entry
	return &copied, nil
}

// Upsert inserts or replaces the entry for the track's canonical id.
func (s *MetadataStore) Upsert(track *domain.RemoteTrack) error {
	if track == nil || track.ID == "" {
		return domain.ErrTrackNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[track.ID] = *track
	return nil
}

// Delete removes the entry for id. Missing entries are a no-op.
func (s *MetadataStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, id)
	return nil
}

// All returns every stored entry.
func (s *MetadataStore) All() ([]*domain.RemoteTrack, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.RemoteTrack, 0, len(s.entries))
	for _, entry := range s.entries {
		copied := entry
		out = append(out, &copied)
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *MetadataStore) Close() error {
	return nil
}

// Verify interface implementation
var _ ports.MetadataStore = (*MetadataStore)(nil)
