package traversal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func queueConfig(maxArtists int) Config {
	cfg := DefaultConfig()
	cfg.MaxArtists = maxArtists
	cfg.MaxDepth = 0
	return cfg
}

func TestEnqueueDeduplicates(t *testing.T) {
	t.Parallel()

	q := NewQueue(queueConfig(10))
	require.True(t, q.Enqueue(Item{ArtistID: "a-1"}))
	require.False(t, q.Enqueue(Item{ArtistID: "a-1", Depth: 2}))
	require.Equal(t, 1, q.Len())
	require.Equal(t, 0, q.Dropped())
}

func TestProcessedArtistsNeverReenter(t *testing.T) {
	t.Parallel()

	q := NewQueue(queueConfig(10))
	require.True(t, q.Enqueue(Item{ArtistID: "a-1"}))
	_, ok := q.Dequeue()
	require.True(t, ok)
	q.MarkProcessed("a-1")

	require.False(t, q.Enqueue(Item{ArtistID: "a-1"}))
	require.Equal(t, 0, q.Len())
	require.Equal(t, 1, q.ProcessedCount())
}

func TestBFSOrdering(t *testing.T) {
	t.Parallel()

	cfg := queueConfig(10)
	cfg.Strategy = StrategyBFS
	q := NewQueue(cfg)
	q.AddMultiple([]Item{{ArtistID: "a-1"}, {ArtistID: "a-2"}, {ArtistID: "a-3"}})

	var order []string
	for {
		item, ok := q.Dequeue()
		if !ok {
			break
		}
		order = append(order, item.ArtistID)
	}
	require.Equal(t, []string{"a-1", "a-2", "a-3"}, order)
}

func TestDFSOrdering(t *testing.T) {
	t.Parallel()

	cfg := queueConfig(10)
	cfg.Strategy = StrategyDFS
	q := NewQueue(cfg)
	q.AddMultiple([]Item{{ArtistID: "a-1"}, {ArtistID: "a-2"}, {ArtistID: "a-3"}})

	var order []string
	for {
		item, ok := q.Dequeue()
		if !ok {
			break
		}
		order = append(order, item.ArtistID)
	}
	require.Equal(t, []string{"a-3", "a-2", "a-1"}, order)
}

func TestBudgetAccountsForProcessedAndWaiting(t *testing.T) {
	t.Parallel()

	q := NewQueue(queueConfig(5))
	require.True(t, q.Enqueue(Item{ArtistID: "seed"}))
	require.Equal(t, 4, q.Budget())

	seed, _ := q.Dequeue()
	q.MarkProcessed(seed.ArtistID)
	require.Equal(t, 4, q.Budget())

	admitted := q.AddMultiple([]Item{{ArtistID: "b"}, {ArtistID: "c"}, {ArtistID: "d"}})
	require.Equal(t, 3, admitted)
	require.Equal(t, 1, q.Budget())

	// One more fits, the rest are dropped.
	admitted = q.AddMultiple([]Item{{ArtistID: "e"}, {ArtistID: "f"}, {ArtistID: "g"}})
	require.Equal(t, 1, admitted)
	require.Equal(t, 2, q.Dropped())
	require.False(t, q.CanAcceptMore())
}

func TestFrontierCapDropsItems(t *testing.T) {
	t.Parallel()

	cfg := queueConfig(100)
	cfg.MaxQueueSize = 2
	q := NewQueue(cfg)

	admitted := q.AddMultiple([]Item{{ArtistID: "a"}, {ArtistID: "b"}, {ArtistID: "c"}})
	require.Equal(t, 2, admitted)
	require.Equal(t, 1, q.Dropped())
	require.Equal(t, 2, q.PeakSize())
}

func TestDepthLimitIgnoresDeepItems(t *testing.T) {
	t.Parallel()

	cfg := queueConfig(10)
	cfg.MaxDepth = 2
	q := NewQueue(cfg)

	require.True(t, q.Enqueue(Item{ArtistID: "a", Depth: 2}))
	require.False(t, q.Enqueue(Item{ArtistID: "b", Depth: 3}))
	require.Equal(t, 0, q.Dropped())
	require.False(t, q.Seen("b"))
}

func TestDefaultQueueSizeIsTwiceMaxArtists(t *testing.T) {
	t.Parallel()

	cfg := queueConfig(7)
	cfg.MaxQueueSize = 0
	require.Equal(t, 14, cfg.EffectiveQueueSize())
}

func TestPeakAndTotalTrackHistory(t *testing.T) {
	t.Parallel()

	q := NewQueue(queueConfig(10))
	q.AddMultiple([]Item{{ArtistID: "a"}, {ArtistID: "b"}})
	q.Dequeue()
	q.Enqueue(Item{ArtistID: "c"})

	require.Equal(t, 2, q.PeakSize())
	require.Equal(t, 3, q.TotalAdded())
}
