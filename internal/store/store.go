// Package store defines persistence for the collaboration graph.
package store

import (
	"context"
	"time"
)

// ArtistRecord is a persisted artist node.
type ArtistRecord struct {
	ID        string
	Name      string
	PageURL   string
	ImageURL  string
	CreatedAt time.Time
}

// ReleaseRecord is a persisted release node.
type ReleaseRecord struct {
	ID      string
	Title   string
	Year    int
	Kind    string
	PageURL string
}

// Edge links an artist to a release with the role they played on it.
// CreditType carries the specific credit ("Producer", "Track: A1 - Sax")
// and is empty for plain main or extra appearances.
type Edge struct {
	ArtistID   string
	ReleaseID  string
	Role       string
	CreditType string
}

// Store persists artists, releases and the edges between them. All writes
// are idempotent: saving an existing node or edge is not an error.
type Store interface {
	GetArtist(ctx context.Context, id string) (ArtistRecord, bool, error)
	SaveArtist(ctx context.Context, artist ArtistRecord) error
	ReleaseExists(ctx context.Context, id string) (bool, error)
	SaveRelease(ctx context.Context, release ReleaseRecord) error
	SaveEdge(ctx context.Context, edge Edge) error
	Close()
}
