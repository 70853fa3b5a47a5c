// Package memory implements the graph store in-memory for development
// and tests.
package memory

import (
	"context"
	"sync"

	"github.com/malirobot/musiclinks/internal/store"
)

type edgeKey struct {
	artistID  string
	releaseID string
	role      string
	credit    string
}

// Store keeps the collaboration graph in maps.
type Store struct {
	mu       sync.RWMutex
	artists  map[string]store.ArtistRecord
	releases map[string]store.ReleaseRecord
	edges    map[edgeKey]store.Edge
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		artists:  make(map[string]store.ArtistRecord),
		releases: make(map[string]store.ReleaseRecord),
		edges:    make(map[edgeKey]store.Edge),
	}
}

// GetArtist returns the artist and whether it exists.
func (s *Store) GetArtist(_ context.Context, id string) (store.ArtistRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.artists[id]
	return rec, ok, nil
}

// SaveArtist upserts an artist node.
func (s *Store) SaveArtist(_ context.Context, artist store.ArtistRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artists[artist.ID] = artist
	return nil
}

// ReleaseExists reports whether the release was already saved.
func (s *Store) ReleaseExists(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.releases[id]
	return ok, nil
}

// SaveRelease upserts a release node.
func (s *Store) SaveRelease(_ context.Context, release store.ReleaseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releases[release.ID] = release
	return nil
}

// SaveEdge upserts an artist-release edge.
func (s *Store) SaveEdge(_ context.Context, edge store.Edge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edges[edgeKey{edge.ArtistID, edge.ReleaseID, edge.Role, edge.CreditType}] = edge
	return nil
}

// Close is a no-op.
func (s *Store) Close() {}

// ArtistCount reports how many artists are stored.
func (s *Store) ArtistCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.artists)
}

// ReleaseCount reports how many releases are stored.
func (s *Store) ReleaseCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.releases)
}

// Edges returns a snapshot of all stored edges.
func (s *Store) Edges() []store.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Edge, 0, len(s.edges))
	for _, e := range s.edges {
		out = append(out, e)
	}
	return out
}
