package traversal

import (
	"sync"

	"github.com/malirobot/musiclinks/internal/metrics"
)

// Item is one frontier entry: an artist waiting to be processed, with the
// hop count from the seed and the artist whose release introduced it.
type Item struct {
	ArtistID string
	Depth    int
	ParentID string
}

// Queue is the traversal frontier. It deduplicates across everything ever
// enqueued, enforces the frontier size cap and a budget derived from the
// artist cap, and serves items in BFS or DFS order.
type Queue struct {
	mu sync.Mutex

	strategy   Strategy
	maxSize    int
	maxArtists int
	maxDepth   int

	items     []Item
	seen      map[string]struct{}
	processed map[string]struct{}

	peak       int
	totalAdded int
	dropped    int
}

// NewQueue builds a frontier for the given configuration.
func NewQueue(cfg Config) *Queue {
	return &Queue{
		strategy:   cfg.EffectiveStrategy(),
		maxSize:    cfg.EffectiveQueueSize(),
		maxArtists: cfg.MaxArtists,
		maxDepth:   cfg.MaxDepth,
		seen:       make(map[string]struct{}),
		processed:  make(map[string]struct{}),
	}
}

// Enqueue offers one item to the frontier. Duplicates and items beyond the
// depth limit are silently ignored; a frontier at capacity or an exhausted
// artist budget counts the item as dropped.
func (q *Queue) Enqueue(item Item) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.enqueueLocked(item)
}

// AddMultiple offers a batch and returns how many were admitted.
func (q *Queue) AddMultiple(items []Item) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	admitted := 0
	for _, item := range items {
		if q.enqueueLocked(item) {
			admitted++
		}
	}
	return admitted
}

func (q *Queue) enqueueLocked(item Item) bool {
	if item.ArtistID == "" {
		return false
	}
	if _, ok := q.seen[item.ArtistID]; ok {
		return false
	}
	if q.maxDepth > 0 && item.Depth > q.maxDepth {
		return false
	}
	if len(q.items) >= q.maxSize || q.budgetLocked() <= 0 {
		q.dropped++
		metrics.AddQueueDropped(1)
		return false
	}
	q.seen[item.ArtistID] = struct{}{}
	q.items = append(q.items, item)
	q.totalAdded++
	if len(q.items) > q.peak {
		q.peak = len(q.items)
	}
	metrics.SetQueueSize(len(q.items))
	return true
}

// budgetLocked is how many more artists the run can still take on: the
// artist cap minus artists already processed minus artists waiting in the
// frontier.
func (q *Queue) budgetLocked() int {
	return q.maxArtists - len(q.processed) - len(q.items)
}

// Dequeue removes the next item per the strategy.
func (q *Queue) Dequeue() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Item{}, false
	}
	var item Item
	if q.strategy == StrategyDFS {
		item = q.items[len(q.items)-1]
		q.items = q.items[:len(q.items)-1]
	} else {
		item = q.items[0]
		q.items = q.items[1:]
	}
	metrics.SetQueueSize(len(q.items))
	return item, true
}

// MarkProcessed records a terminal outcome for the artist. Processed
// artists can never re-enter the frontier.
func (q *Queue) MarkProcessed(artistID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.seen[artistID] = struct{}{}
	q.processed[artistID] = struct{}{}
}

// CanAcceptMore reports whether the frontier has both space and budget.
func (q *Queue) CanAcceptMore() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) < q.maxSize && q.budgetLocked() > 0
}

// Budget reports how many more artists the run can still admit.
func (q *Queue) Budget() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.budgetLocked()
}

// Len reports the current frontier size.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// ProcessedCount reports how many artists reached a terminal outcome.
func (q *Queue) ProcessedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.processed)
}

// Seen reports whether the artist was ever enqueued or processed.
func (q *Queue) Seen(artistID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.seen[artistID]
	return ok
}

// PeakSize reports the largest frontier size observed.
func (q *Queue) PeakSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.peak
}

// TotalAdded reports how many items were ever admitted.
func (q *Queue) TotalAdded() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.totalAdded
}

// Dropped reports how many items were declined for capacity or budget.
func (q *Queue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}
