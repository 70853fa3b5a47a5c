package traversal

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/malirobot/musiclinks/internal/catalog"
	"github.com/malirobot/musiclinks/internal/store"
)

// Client is the catalog surface the traversal depends on.
type Client interface {
	GetArtist(ctx context.Context, id string) (catalog.Artist, error)
	GetReleasePage(ctx context.Context, artistID string, page int) (catalog.ReleasePage, error)
	GetRelease(ctx context.Context, id string) (catalog.Release, error)
}

// Clock abstracts wall-clock time for the run loop.
type Clock interface {
	Now() time.Time
}

// ArtistProcessor resolves artists against the graph store, fetching from
// the catalog only when the artist is not yet persisted.
type ArtistProcessor struct {
	client Client
	graph  store.Store
	clock  Clock
	logger *zap.Logger
}

// NewArtistProcessor wires an ArtistProcessor.
func NewArtistProcessor(client Client, graph store.Store, clock Clock, logger *zap.Logger) *ArtistProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArtistProcessor{client: client, graph: graph, clock: clock, logger: logger}
}

// GetOrCreate returns the stored artist, fetching and persisting it first
// when unknown. The second return reports whether the artist already
// existed.
func (p *ArtistProcessor) GetOrCreate(ctx context.Context, id string) (store.ArtistRecord, bool, error) {
	rec, ok, err := p.graph.GetArtist(ctx, id)
	if err != nil {
		return store.ArtistRecord{}, false, fmt.Errorf("load artist %s: %w", id, err)
	}
	if ok {
		return rec, true, nil
	}

	artist, err := p.client.GetArtist(ctx, id)
	if err != nil {
		return store.ArtistRecord{}, false, fmt.Errorf("fetch artist %s: %w", id, err)
	}
	rec = store.ArtistRecord{
		ID:        artist.ID,
		Name:      artist.Name,
		PageURL:   artist.PageURL,
		ImageURL:  artist.ImageURL,
		CreatedAt: p.clock.Now(),
	}
	if err := p.graph.SaveArtist(ctx, rec); err != nil {
		return store.ArtistRecord{}, false, fmt.Errorf("save artist %s: %w", id, err)
	}
	p.logger.Debug("artist persisted", zap.String("artist_id", id), zap.String("name", rec.Name))
	return rec, false, nil
}

// FetchReleasesBatch pulls the artist's release listing from the start,
// page by page, until it is exhausted or maxPages pages were read. A
// maxPages of zero reads the full listing.
func (p *ArtistProcessor) FetchReleasesBatch(ctx context.Context, id string, maxPages int) ([]catalog.ReleaseSummary, error) {
	var out []catalog.ReleaseSummary
	for page := 0; ; page++ {
		if maxPages > 0 && page >= maxPages {
			return out, nil
		}
		rp, err := p.client.GetReleasePage(ctx, id, page)
		if err != nil {
			return nil, fmt.Errorf("fetch release page %d for artist %s: %w", page, id, err)
		}
		out = append(out, rp.Releases...)
		if page >= rp.Pagination.Pages-1 {
			return out, nil
		}
	}
}
