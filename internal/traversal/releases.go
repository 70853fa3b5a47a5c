package traversal

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/malirobot/musiclinks/internal/catalog"
	"github.com/malirobot/musiclinks/internal/store"
)

// Extraction is the outcome of walking one artist's releases.
type Extraction struct {
	// Candidates are collaborators eligible to join the frontier, in
	// discovery order, capped by the limit handed to ExtractCandidates.
	Candidates []Item
	// ReleasesProcessed counts releases fully persisted during the walk.
	ReleasesProcessed int
	// EdgesSaved counts artist-release edges written.
	EdgesSaved int
	// Dropped counts collaborators declined because the limit was reached.
	Dropped int
}

// ReleaseProcessor walks an artist's release listing, persists every
// release and credit edge it touches, and extracts collaborator
// candidates. It is scoped to a single run: releases already walked in
// this run are skipped entirely.
type ReleaseProcessor struct {
	client Client
	graph  store.Store
	cfg    Config
	logger *zap.Logger

	walked map[string]struct{}
}

// NewReleaseProcessor wires a run-scoped ReleaseProcessor.
func NewReleaseProcessor(client Client, graph store.Store, cfg Config, logger *zap.Logger) *ReleaseProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReleaseProcessor{
		client: client,
		graph:  graph,
		cfg:    cfg,
		logger: logger,
		walked: make(map[string]struct{}),
	}
}

// ExtractCandidates walks the artist's releases page by page. A release
// that has been started is always persisted completely, edges included,
// even when the candidate limit is reached partway through its credits.
// The walk halts before the next release once the limit is reached.
func (p *ReleaseProcessor) ExtractCandidates(ctx context.Context, item Item, limit int) (Extraction, error) {
	var ext Extraction
	seenCandidate := map[string]struct{}{item.ArtistID: {}}

	for page := 0; ; page++ {
		rp, err := p.client.GetReleasePage(ctx, item.ArtistID, page)
		if err != nil {
			return ext, fmt.Errorf("fetch release page %d for artist %s: %w", page, item.ArtistID, err)
		}

		for _, summary := range rp.Releases {
			if err := p.processRelease(ctx, item, summary, limit, seenCandidate, &ext); err != nil {
				return ext, err
			}
			if len(ext.Candidates) >= limit {
				return ext, nil
			}
		}

		if page >= rp.Pagination.Pages-1 {
			return ext, nil
		}
	}
}

func (p *ReleaseProcessor) processRelease(
	ctx context.Context,
	item Item,
	summary catalog.ReleaseSummary,
	limit int,
	seenCandidate map[string]struct{},
	ext *Extraction,
) error {
	releaseID := summary.ID
	if summary.Kind == catalog.KindMaster {
		if summary.MainReleaseID == "" {
			p.logger.Debug("master without main release, skipping",
				zap.String("master_id", summary.ID))
			return nil
		}
		releaseID = summary.MainReleaseID
	}

	if _, ok := p.walked[releaseID]; ok {
		return nil
	}
	p.walked[releaseID] = struct{}{}

	release, err := p.client.GetRelease(ctx, releaseID)
	if err != nil {
		return fmt.Errorf("fetch release %s: %w", releaseID, err)
	}

	exists, err := p.graph.ReleaseExists(ctx, release.ID)
	if err != nil {
		return fmt.Errorf("check release %s: %w", release.ID, err)
	}
	if !exists {
		rec := store.ReleaseRecord{
			ID:      release.ID,
			Title:   release.Title,
			Year:    release.Year,
			Kind:    string(release.Kind),
			PageURL: release.PageURL,
		}
		if err := p.graph.SaveRelease(ctx, rec); err != nil {
			return fmt.Errorf("save release %s: %w", release.ID, err)
		}
	}

	for _, credit := range p.collectCredits(release) {
		edge := store.Edge{
			ArtistID:   credit.ArtistID,
			ReleaseID:  release.ID,
			Role:       string(credit.Role),
			CreditType: credit.CreditType,
		}
		if err := p.graph.SaveEdge(ctx, edge); err != nil {
			return fmt.Errorf("save edge %s->%s: %w", credit.ArtistID, release.ID, err)
		}
		ext.EdgesSaved++

		if _, ok := seenCandidate[credit.ArtistID]; ok {
			continue
		}
		seenCandidate[credit.ArtistID] = struct{}{}
		if len(ext.Candidates) >= limit {
			ext.Dropped++
			continue
		}
		ext.Candidates = append(ext.Candidates, Item{
			ArtistID: credit.ArtistID,
			Depth:    item.Depth + 1,
			ParentID: item.ArtistID,
		})
	}

	ext.ReleasesProcessed++
	return nil
}

type creditRef struct {
	ArtistID   string
	Role       catalog.Role
	CreditType string
}

// collectCredits flattens a release's credits in role order: billed
// artists, then release personnel, then per-track credits. The include
// flags gate the latter two classes.
func (p *ReleaseProcessor) collectCredits(release catalog.Release) []creditRef {
	var out []creditRef
	for _, a := range release.Artists {
		if a.ArtistID == "" {
			continue
		}
		out = append(out, creditRef{ArtistID: a.ArtistID, Role: catalog.RoleMain})
	}
	if p.cfg.IncludeExtraArtists {
		for _, a := range release.ExtraArtists {
			if a.ArtistID == "" {
				continue
			}
			out = append(out, creditRef{
				ArtistID:   a.ArtistID,
				Role:       catalog.RoleExtra,
				CreditType: a.CreditType,
			})
		}
	}
	if p.cfg.IncludeCredits {
		for _, track := range release.Tracklist {
			for _, a := range track.ExtraArtists {
				if a.ArtistID == "" {
					continue
				}
				credit := a.CreditType
				if track.Position != "" {
					credit = fmt.Sprintf("Track: %s - %s", track.Position, a.CreditType)
				}
				out = append(out, creditRef{
					ArtistID:   a.ArtistID,
					Role:       catalog.RoleCredit,
					CreditType: credit,
				})
			}
		}
	}
	return out
}
