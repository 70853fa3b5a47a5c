package traversal

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/malirobot/musiclinks/internal/catalog"
	storemem "github.com/malirobot/musiclinks/internal/store/memory"
)

// fakeClient serves a scripted catalog world.
type fakeClient struct {
	mu sync.Mutex

	listings  map[string][]catalog.ReleaseSummary
	releases  map[string]catalog.Release
	artistErr map[string]error
	perPage   int

	artistCalls []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		listings:  make(map[string][]catalog.ReleaseSummary),
		releases:  make(map[string]catalog.Release),
		artistErr: make(map[string]error),
	}
}

// addCollab registers a release credited to all given artists and lists it
// on the first artist's release page.
func (f *fakeClient) addCollab(releaseID string, artistIDs ...string) {
	credits := make([]catalog.Credit, 0, len(artistIDs))
	for _, id := range artistIDs {
		credits = append(credits, catalog.Credit{ArtistID: id, Name: "artist " + id})
	}
	f.releases[releaseID] = catalog.Release{
		ID:      releaseID,
		Title:   "release " + releaseID,
		Kind:    catalog.KindRelease,
		Artists: credits,
	}
	owner := artistIDs[0]
	f.listings[owner] = append(f.listings[owner], catalog.ReleaseSummary{
		ID:    releaseID,
		Title: "release " + releaseID,
		Kind:  catalog.KindRelease,
	})
}

func (f *fakeClient) GetArtist(_ context.Context, id string) (catalog.Artist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.artistCalls = append(f.artistCalls, id)
	if err := f.artistErr[id]; err != nil {
		return catalog.Artist{}, err
	}
	return catalog.Artist{ID: id, Name: "artist " + id}, nil
}

func (f *fakeClient) GetReleasePage(_ context.Context, artistID string, page int) (catalog.ReleasePage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	listing := f.listings[artistID]
	perPage := f.perPage
	if perPage <= 0 {
		perPage = 1000
	}
	pages := (len(listing) + perPage - 1) / perPage
	if pages == 0 {
		pages = 1
	}
	start := page * perPage
	end := start + perPage
	if start > len(listing) {
		start = len(listing)
	}
	if end > len(listing) {
		end = len(listing)
	}
	return catalog.ReleasePage{
		Pagination: catalog.Pagination{Page: page, Pages: pages, PerPage: perPage, Items: len(listing)},
		Releases:   listing[start:end],
	}, nil
}

func (f *fakeClient) GetRelease(_ context.Context, id string) (catalog.Release, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	release, ok := f.releases[id]
	if !ok {
		return catalog.Release{}, &catalog.Error{
			Op: "get_release", Class: catalog.ClassPermanent, StatusCode: 404,
			Err: fmt.Errorf("release %s not found", id),
		}
	}
	return release, nil
}

func (f *fakeClient) processedOrder() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.artistCalls...)
}

// stepClock advances a fixed amount on every reading.
type stepClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

func testClock() *stepClock {
	return &stepClock{now: time.Unix(1700000000, 0).UTC(), step: time.Millisecond}
}

func newTestManager(t *testing.T, cfg Config, client Client, graph *storemem.Store, opts ...ManagerOption) *Manager {
	t.Helper()
	m, err := NewManager(cfg, client, graph, testClock(), zap.NewNop(), opts...)
	require.NoError(t, err)
	return m
}

func TestRunStopsExactlyAtArtistCap(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.addCollab("r-a", "A", "B", "C", "D")
	client.addCollab("r-b", "B", "E", "F", "G")

	cfg := DefaultConfig()
	cfg.MaxArtists = 5
	graph := storemem.New()
	m := newTestManager(t, cfg, client, graph)

	stats, err := m.Run(context.Background(), "A")
	require.NoError(t, err)

	require.Equal(t, ReasonMaxArtists, stats.Termination)
	require.Equal(t, 5, stats.ArtistsProcessed)
	require.Equal(t, 5, stats.ArtistsDiscovered)
	require.Equal(t, StateCompleted, m.State())
}

func TestCapacityDistributionDropsObservably(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.addCollab("r-a", "A", "B", "C", "D")
	client.addCollab("r-b", "B", "E", "F", "G")

	cfg := DefaultConfig()
	cfg.MaxArtists = 5
	graph := storemem.New()
	m := newTestManager(t, cfg, client, graph)

	stats, err := m.Run(context.Background(), "A")
	require.NoError(t, err)

	// After A: capacity 4 remains, B, C and D all enqueue. Processing B
	// surfaces E, F, G but only 2 slots remain, so G is declined.
	require.Equal(t, 1, stats.CandidatesDropped)
	require.Equal(t, 5, stats.ArtistsProcessed)
	// Declined candidates still got their edges persisted.
	require.Equal(t, 8, stats.EdgesSaved)

	hasG := false
	for _, e := range graph.Edges() {
		if e.ArtistID == "G" {
			hasG = true
		}
	}
	require.True(t, hasG)
}

func TestRunTerminatesWhenQueueEmpties(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.addCollab("r-a", "A", "B")

	cfg := DefaultConfig()
	cfg.MaxArtists = 50
	graph := storemem.New()
	m := newTestManager(t, cfg, client, graph)

	stats, err := m.Run(context.Background(), "A")
	require.NoError(t, err)

	require.Equal(t, ReasonQueueEmpty, stats.Termination)
	require.Equal(t, 2, stats.ArtistsProcessed)
	require.LessOrEqual(t, stats.ArtistsProcessed, cfg.MaxArtists)
}

func TestRerunSkipsKnownArtistsWithoutDiscovery(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.addCollab("r-a", "A", "B", "C")

	cfg := DefaultConfig()
	cfg.MaxArtists = 10
	graph := storemem.New()

	first := newTestManager(t, cfg, client, graph)
	firstStats, err := first.Run(context.Background(), "A")
	require.NoError(t, err)
	require.Equal(t, 3, firstStats.ArtistsDiscovered)

	second := newTestManager(t, cfg, client, graph)
	stats, err := second.Run(context.Background(), "A")
	require.NoError(t, err)

	require.Equal(t, 0, stats.ArtistsDiscovered)
	require.Equal(t, stats.ArtistsProcessed, stats.ArtistsSkipped)
	require.Equal(t, 3, graph.ArtistCount())
}

func TestErrorThresholdAbortsRun(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.addCollab("r-a", "A", "B", "C", "D")
	client.artistErr["B"] = &catalog.Error{Op: "get_artist", Class: catalog.ClassPermanent, StatusCode: 404, Err: fmt.Errorf("gone")}
	client.artistErr["C"] = &catalog.Error{Op: "get_artist", Class: catalog.ClassPermanent, StatusCode: 404, Err: fmt.Errorf("gone")}

	cfg := DefaultConfig()
	cfg.MaxArtists = 50
	cfg.ErrorThreshold = 2
	graph := storemem.New()
	m := newTestManager(t, cfg, client, graph)

	stats, err := m.Run(context.Background(), "A")
	require.NoError(t, err)

	require.Equal(t, ReasonErrorThreshold, stats.Termination)
	require.Equal(t, 2, stats.ArtistsFailed)
	// D was still queued when the threshold fired.
	require.Equal(t, 3, stats.ArtistsProcessed)
}

func TestFailedArtistsAreNotReprocessed(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.addCollab("r-a", "A", "B")
	client.addCollab("r-c", "C", "B")
	client.listings["A"] = append(client.listings["A"], client.listings["C"]...)
	client.artistErr["B"] = &catalog.Error{Op: "get_artist", Class: catalog.ClassPermanent, StatusCode: 404, Err: fmt.Errorf("gone")}

	cfg := DefaultConfig()
	cfg.MaxArtists = 50
	graph := storemem.New()
	m := newTestManager(t, cfg, client, graph)

	stats, err := m.Run(context.Background(), "A")
	require.NoError(t, err)
	require.Equal(t, 1, stats.ArtistsFailed)

	fetches := 0
	for _, id := range client.processedOrder() {
		if id == "B" {
			fetches++
		}
	}
	require.Equal(t, 1, fetches)
}

func TestDepthCutoffPersistsEdgesWithoutEnqueueing(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.addCollab("r-a", "A", "B")
	client.addCollab("r-b", "B", "C")

	cfg := DefaultConfig()
	cfg.MaxArtists = 50
	cfg.MaxDepth = 1
	graph := storemem.New()
	m := newTestManager(t, cfg, client, graph)

	stats, err := m.Run(context.Background(), "A")
	require.NoError(t, err)

	require.Equal(t, 2, stats.ArtistsProcessed)

	// C's edge on r-b is persisted even though C never enters the frontier.
	hasC := false
	for _, e := range graph.Edges() {
		if e.ArtistID == "C" && e.ReleaseID == "r-b" {
			hasC = true
		}
	}
	require.True(t, hasC)
	_, known, err := graph.GetArtist(context.Background(), "C")
	require.NoError(t, err)
	require.False(t, known)
}

func TestBreadthFirstProcessesLevelByLevel(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.addCollab("r-a", "A", "B", "C")
	client.addCollab("r-b", "B", "D")
	client.addCollab("r-c", "C", "E")

	cfg := DefaultConfig()
	cfg.MaxArtists = 10
	cfg.Strategy = StrategyBFS
	graph := storemem.New()
	m := newTestManager(t, cfg, client, graph)

	_, err := m.Run(context.Background(), "A")
	require.NoError(t, err)
	require.Equal(t, []string{"A", "B", "C", "D", "E"}, client.processedOrder())
}

func TestDepthFirstFollowsBranches(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.addCollab("r-a", "A", "B", "C")
	client.addCollab("r-c", "C", "D")

	cfg := DefaultConfig()
	cfg.MaxArtists = 10
	cfg.Strategy = StrategyDFS
	graph := storemem.New()
	m := newTestManager(t, cfg, client, graph)

	_, err := m.Run(context.Background(), "A")
	require.NoError(t, err)
	// C is taken before B, and C's collaborator D before B as well.
	require.Equal(t, []string{"A", "C", "D", "B"}, client.processedOrder())
}

func TestTimeLimitStopsRun(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.addCollab("r-a", "A", "B", "C", "D", "E", "F")

	cfg := DefaultConfig()
	cfg.MaxArtists = 50
	cfg.TimeLimit = 5 * time.Millisecond
	graph := storemem.New()

	clock := testClock()
	clock.step = 2 * time.Millisecond
	m, err := NewManager(cfg, client, graph, clock, zap.NewNop())
	require.NoError(t, err)

	stats, err := m.Run(context.Background(), "A")
	require.NoError(t, err)
	require.Equal(t, ReasonTimeLimit, stats.Termination)
	require.Less(t, stats.ArtistsProcessed, 6)
}

// gateClient pauses every artist fetch after the seed so a run can be
// observed mid-flight.
type gateClient struct {
	*fakeClient
	seedID  string
	once    sync.Once
	reached chan struct{}
	release chan struct{}
}

func (g *gateClient) GetArtist(ctx context.Context, id string) (catalog.Artist, error) {
	if id != g.seedID {
		g.once.Do(func() { close(g.reached) })
		select {
		case <-g.release:
		case <-ctx.Done():
			return catalog.Artist{}, ctx.Err()
		}
	}
	return g.fakeClient.GetArtist(ctx, id)
}

func TestStatisticsReportProgressWhileRunning(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.addCollab("r-a", "A", "B", "C")
	gated := &gateClient{
		fakeClient: client,
		seedID:     "A",
		reached:    make(chan struct{}),
		release:    make(chan struct{}),
	}

	cfg := DefaultConfig()
	cfg.MaxArtists = 5
	m, err := NewManager(cfg, gated, storemem.New(), testClock(), zap.NewNop())
	require.NoError(t, err)

	type result struct {
		stats Statistics
		err   error
	}
	done := make(chan result, 1)
	go func() {
		stats, runErr := m.Run(context.Background(), "A")
		done <- result{stats: stats, err: runErr}
	}()

	<-gated.reached
	live := m.Statistics()
	require.Equal(t, 1, live.ArtistsProcessed)
	require.Equal(t, 1, live.ArtistsDiscovered)
	require.Equal(t, 1, live.ReleasesProcessed)
	require.Equal(t, 3, live.EdgesSaved)
	require.Equal(t, 3, live.TotalEnqueued)

	close(gated.release)
	final := <-done
	require.NoError(t, final.err)
	require.Equal(t, 3, final.stats.ArtistsProcessed)
	require.Equal(t, ReasonQueueEmpty, final.stats.Termination)
}

func TestManualStopShortCircuits(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	client.addCollab("r-a", "A", "B")

	cfg := DefaultConfig()
	graph := storemem.New()
	m := newTestManager(t, cfg, client, graph)
	m.Stop()

	stats, err := m.Run(context.Background(), "A")
	require.NoError(t, err)
	require.Equal(t, ReasonManualStop, stats.Termination)
	require.Equal(t, 0, stats.ArtistsProcessed)
	require.Equal(t, StateStopped, m.State())
}

func TestRunRejectsEmptySeed(t *testing.T) {
	t.Parallel()

	client := newFakeClient()
	m := newTestManager(t, DefaultConfig(), client, storemem.New())
	_, err := m.Run(context.Background(), "")
	require.Error(t, err)
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MaxArtists = 0
	_, err := NewManager(cfg, newFakeClient(), storemem.New(), testClock(), zap.NewNop())
	require.Error(t, err)
}
