package traversal

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/malirobot/musiclinks/internal/metrics"
	"github.com/malirobot/musiclinks/internal/progress"
	"github.com/malirobot/musiclinks/internal/publisher"
	"github.com/malirobot/musiclinks/internal/store"
)

// State is the lifecycle of a Manager.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateStopped   State = "stopped"
)

// RequestCounter is implemented by clients that track upstream traffic.
type RequestCounter interface {
	Requests() int64
	Errors() int64
}

// Manager drives one traversal run: it owns the frontier, dispatches
// artists to the processors, enforces the termination conditions and
// reports the run outcome.
type Manager struct {
	cfg     Config
	client  Client
	graph   store.Store
	clock   Clock
	emitter progress.Emitter
	pub     publisher.Publisher
	topic   string
	logger  *zap.Logger

	mu    sync.Mutex
	state State
	runID uuid.UUID
	stats Statistics

	stopRequested atomic.Bool
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithEmitter attaches a progress emitter.
func WithEmitter(e progress.Emitter) ManagerOption {
	return func(m *Manager) {
		if e != nil {
			m.emitter = e
		}
	}
}

// WithPublisher announces finished runs on the given topic.
func WithPublisher(p publisher.Publisher, topic string) ManagerOption {
	return func(m *Manager) {
		m.pub = p
		m.topic = topic
	}
}

// NewManager wires a Manager for a single run.
func NewManager(cfg Config, client Client, graph store.Store, clock Clock, logger *zap.Logger, opts ...ManagerOption) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid traversal config: %w", err)
	}
	if client == nil {
		return nil, fmt.Errorf("catalog client is required")
	}
	if graph == nil {
		return nil, fmt.Errorf("graph store is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		cfg:     cfg,
		client:  client,
		graph:   graph,
		clock:   clock,
		emitter: progress.NopEmitter{},
		logger:  logger,
		state:   StateIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// State reports the manager lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// RunID reports the identifier assigned to the current or last run.
func (m *Manager) RunID() uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runID
}

// Statistics returns a snapshot of the current or last run's counters.
func (m *Manager) Statistics() Statistics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// Stop requests a graceful halt. The run finishes the artist in flight and
// terminates with reason manual_stop.
func (m *Manager) Stop() {
	m.stopRequested.Store(true)
}

// Run traverses the collaboration graph from the seed artist until a
// termination condition fires. It returns the run statistics; the error is
// non-nil only when the run could not start or the context was canceled.
func (m *Manager) Run(ctx context.Context, seedID string) (Statistics, error) {
	if seedID == "" {
		return Statistics{}, fmt.Errorf("seed artist id is required")
	}

	m.mu.Lock()
	if m.state == StateRunning {
		m.mu.Unlock()
		return Statistics{}, fmt.Errorf("traversal already running")
	}
	m.state = StateRunning
	m.runID = uuid.New()
	runID := m.runID
	started := m.clock.Now()
	m.stats = Statistics{
		SeedArtistID: seedID,
		Strategy:     m.cfg.EffectiveStrategy(),
		StartedAt:    started,
	}
	m.mu.Unlock()

	m.logger.Info("traversal started",
		zap.String("run_id", runID.String()),
		zap.String("seed_artist_id", seedID),
		zap.String("strategy", string(m.cfg.EffectiveStrategy())),
		zap.Int("max_artists", m.cfg.MaxArtists),
	)
	m.emit(progress.Event{
		RunID: progress.UUIDToBytes(runID),
		TS:    started,
		Stage: progress.StageRunStart,
	})

	queue := NewQueue(m.cfg)
	artists := NewArtistProcessor(m.client, m.graph, m.clock, m.logger)
	releases := NewReleaseProcessor(m.client, m.graph, m.cfg, m.logger)

	queue.Enqueue(Item{ArtistID: seedID})

	var deadline time.Time
	if m.cfg.TimeLimit > 0 {
		deadline = started.Add(m.cfg.TimeLimit)
	}

	var failed, skipped, discovered, processed, releasesDone, edges, extractionDrops int
	reason := TerminationReason("")
	var runErr error

	for {
		if err := ctx.Err(); err != nil {
			reason = ReasonManualStop
			runErr = err
			break
		}
		m.updateLiveStats(queue, processed, discovered, failed, skipped, releasesDone, edges, extractionDrops)
		reason = m.terminationReason(queue, processed, failed, deadline)
		if reason != "" {
			break
		}

		item, ok := queue.Dequeue()
		if !ok {
			reason = ReasonQueueEmpty
			break
		}

		artistStart := m.clock.Now()
		rec, existed, err := artists.GetOrCreate(ctx, item.ArtistID)
		if err != nil {
			queue.MarkProcessed(item.ArtistID)
			processed++
			failed++
			m.recordFailure(runID, item, queue, processed, err)
			continue
		}

		if existed {
			queue.MarkProcessed(item.ArtistID)
			processed++
			skipped++
			metrics.IncArtistProcessed(metrics.OutcomeSkipped)
			m.logger.Debug("artist already known, skipping releases",
				zap.String("artist_id", item.ArtistID))
			m.emitArtistDone(runID, item, queue, processed, artistStart, "already_known")
			m.heartbeat(runID, queue, processed)
			continue
		}
		discovered++

		ext, extractErr := releases.ExtractCandidates(ctx, item, queue.Budget())
		releasesDone += ext.ReleasesProcessed
		edges += ext.EdgesSaved
		extractionDrops += ext.Dropped

		if extractErr != nil {
			queue.MarkProcessed(item.ArtistID)
			processed++
			failed++
			m.recordFailure(runID, item, queue, processed, extractErr)
			continue
		}

		// The artist counts as processed only after its candidates are in.
		queue.AddMultiple(ext.Candidates)
		queue.MarkProcessed(item.ArtistID)
		processed++
		metrics.IncArtistProcessed(metrics.OutcomeDiscovered)
		m.logger.Debug("artist processed",
			zap.String("artist_id", item.ArtistID),
			zap.String("name", rec.Name),
			zap.Int("depth", item.Depth),
			zap.Int("candidates", len(ext.Candidates)),
			zap.Int("releases", ext.ReleasesProcessed),
		)
		m.emitArtistDone(runID, item, queue, processed, artistStart, "")
		m.heartbeat(runID, queue, processed)
	}

	finished := m.clock.Now()
	stats := Statistics{
		SeedArtistID:      seedID,
		Strategy:          m.cfg.EffectiveStrategy(),
		ArtistsProcessed:  processed,
		ArtistsDiscovered: discovered,
		ArtistsFailed:     failed,
		ArtistsSkipped:    skipped,
		ReleasesProcessed: releasesDone,
		EdgesSaved:        edges,
		CandidatesDropped: extractionDrops + queue.Dropped(),
		PeakQueueSize:     queue.PeakSize(),
		TotalEnqueued:     queue.TotalAdded(),
		StartedAt:         started,
		FinishedAt:        finished,
		Duration:          finished.Sub(started),
		Termination:       reason,
	}
	if counter, ok := m.client.(RequestCounter); ok {
		stats.APIRequests = counter.Requests()
		stats.APIErrors = counter.Errors()
	}

	m.finish(runID, stats, runErr)
	return stats, runErr
}

// updateLiveStats refreshes the snapshot served by Statistics while the
// run is in flight. finish writes the authoritative final values.
func (m *Manager) updateLiveStats(queue *Queue, processed, discovered, failed, skipped, releasesDone, edges, drops int) {
	dropped := drops + queue.Dropped()
	peak := queue.PeakSize()
	enqueued := queue.TotalAdded()

	m.mu.Lock()
	m.stats.ArtistsProcessed = processed
	m.stats.ArtistsDiscovered = discovered
	m.stats.ArtistsFailed = failed
	m.stats.ArtistsSkipped = skipped
	m.stats.ReleasesProcessed = releasesDone
	m.stats.EdgesSaved = edges
	m.stats.CandidatesDropped = dropped
	m.stats.PeakQueueSize = peak
	m.stats.TotalEnqueued = enqueued
	m.mu.Unlock()
}

func (m *Manager) emit(evt progress.Event) {
	if m.emitter == nil {
		return
	}
	m.emitter.Emit(evt)
}

// terminationReason evaluates the stop conditions in priority order.
func (m *Manager) terminationReason(queue *Queue, processed, failed int, deadline time.Time) TerminationReason {
	switch {
	case processed >= m.cfg.MaxArtists:
		return ReasonMaxArtists
	case queue.Len() == 0:
		return ReasonQueueEmpty
	case !deadline.IsZero() && !m.clock.Now().Before(deadline):
		return ReasonTimeLimit
	case m.cfg.ErrorThreshold > 0 && failed >= m.cfg.ErrorThreshold:
		return ReasonErrorThreshold
	case m.stopRequested.Load():
		return ReasonManualStop
	}
	return ""
}

func (m *Manager) recordFailure(runID uuid.UUID, item Item, queue *Queue, processed int, err error) {
	metrics.IncArtistProcessed(metrics.OutcomeFailed)
	m.logger.Warn("artist processing failed",
		zap.String("artist_id", item.ArtistID),
		zap.Int("depth", item.Depth),
		zap.Error(err),
	)
	m.emit(progress.Event{
		RunID:     progress.UUIDToBytes(runID),
		TS:        m.clock.Now(),
		Stage:     progress.StageArtistError,
		ArtistID:  item.ArtistID,
		Depth:     item.Depth,
		Processed: int64(processed),
		QueueLen:  int64(queue.Len()),
		Note:      err.Error(),
	})
}

func (m *Manager) emitArtistDone(runID uuid.UUID, item Item, queue *Queue, processed int, startedAt time.Time, note string) {
	m.emit(progress.Event{
		RunID:     progress.UUIDToBytes(runID),
		TS:        m.clock.Now(),
		Stage:     progress.StageArtistDone,
		ArtistID:  item.ArtistID,
		Depth:     item.Depth,
		Processed: int64(processed),
		QueueLen:  int64(queue.Len()),
		Dur:       m.clock.Now().Sub(startedAt),
		Note:      note,
	})
}

func (m *Manager) heartbeat(runID uuid.UUID, queue *Queue, processed int) {
	if m.cfg.ProgressInterval <= 0 || processed%m.cfg.ProgressInterval != 0 {
		return
	}
	m.logger.Info("traversal progress",
		zap.String("run_id", runID.String()),
		zap.Int("processed", processed),
		zap.Int("queue_len", queue.Len()),
		zap.Int("peak_queue", queue.PeakSize()),
	)
	m.emit(progress.Event{
		RunID:     progress.UUIDToBytes(runID),
		TS:        m.clock.Now(),
		Stage:     progress.StageRunHB,
		Processed: int64(processed),
		QueueLen:  int64(queue.Len()),
	})
}

func (m *Manager) finish(runID uuid.UUID, stats Statistics, runErr error) {
	metrics.IncRunTerminated(string(stats.Termination))

	stage := progress.StageRunDone
	note := ""
	if runErr != nil {
		stage = progress.StageRunError
		note = runErr.Error()
	}
	m.emit(progress.Event{
		RunID:     progress.UUIDToBytes(runID),
		TS:        stats.FinishedAt,
		Stage:     stage,
		Processed: int64(stats.ArtistsProcessed),
		Reason:    string(stats.Termination),
		Dur:       stats.Duration,
		Note:      note,
	})

	if m.pub != nil && m.topic != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := m.pub.Publish(ctx, m.topic, stats); err != nil {
			m.logger.Warn("run result publish failed", zap.Error(err))
		}
	}

	m.logger.Info("traversal finished",
		zap.String("run_id", runID.String()),
		zap.String("reason", string(stats.Termination)),
		zap.Int("artists_processed", stats.ArtistsProcessed),
		zap.Int("artists_failed", stats.ArtistsFailed),
		zap.Int("releases_processed", stats.ReleasesProcessed),
		zap.Int("edges_saved", stats.EdgesSaved),
		zap.Int("candidates_dropped", stats.CandidatesDropped),
		zap.Duration("duration", stats.Duration),
	)

	m.mu.Lock()
	m.stats = stats
	if stats.Termination == ReasonManualStop {
		m.state = StateStopped
	} else {
		m.state = StateCompleted
	}
	m.mu.Unlock()
}
