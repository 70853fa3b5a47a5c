package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/malirobot/musiclinks/internal/traversal"
)

// RunStatus is the externally visible lifecycle of a traversal run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusStopped   RunStatus = "stopped"
	RunStatusFailed    RunStatus = "failed"
)

// RunRecord is the API view of a traversal run.
type RunRecord struct {
	ID           uuid.UUID             `json:"id"`
	SeedArtistID string                `json:"seed_artist_id"`
	Status       RunStatus             `json:"status"`
	StartedAt    time.Time             `json:"started_at"`
	Stats        *traversal.Statistics `json:"stats,omitempty"`
	Error        string                `json:"error,omitempty"`
}

// ManagerFactory builds a fresh manager for each run request.
type ManagerFactory func(cfg traversal.Config) (*traversal.Manager, error)

// RunService starts traversal runs in the background and tracks their
// lifecycle for the HTTP surface.
type RunService struct {
	factory ManagerFactory
	clock   traversal.Clock
	logger  *zap.Logger

	mu       sync.Mutex
	runs     map[uuid.UUID]*RunRecord
	managers map[uuid.UUID]*traversal.Manager
}

// NewRunService wires a RunService.
func NewRunService(factory ManagerFactory, clock traversal.Clock, logger *zap.Logger) *RunService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunService{
		factory:  factory,
		clock:    clock,
		logger:   logger,
		runs:     make(map[uuid.UUID]*RunRecord),
		managers: make(map[uuid.UUID]*traversal.Manager),
	}
}

// Start launches a run and returns its identifier immediately.
func (s *RunService) Start(seedArtistID string, cfg traversal.Config) (uuid.UUID, error) {
	if seedArtistID == "" {
		return uuid.Nil, fmt.Errorf("seed artist id is required")
	}
	manager, err := s.factory(cfg)
	if err != nil {
		return uuid.Nil, err
	}

	id := uuid.New()
	record := &RunRecord{
		ID:           id,
		SeedArtistID: seedArtistID,
		Status:       RunStatusRunning,
		StartedAt:    s.clock.Now(),
	}
	s.mu.Lock()
	s.runs[id] = record
	s.managers[id] = manager
	s.mu.Unlock()

	go s.execute(id, manager, seedArtistID)
	return id, nil
}

func (s *RunService) execute(id uuid.UUID, manager *traversal.Manager, seedArtistID string) {
	stats, err := manager.Run(context.Background(), seedArtistID)

	s.mu.Lock()
	defer s.mu.Unlock()
	record := s.runs[id]
	record.Stats = &stats
	switch {
	case err != nil:
		record.Status = RunStatusFailed
		record.Error = err.Error()
	case stats.Termination == traversal.ReasonManualStop:
		record.Status = RunStatusStopped
	default:
		record.Status = RunStatusCompleted
	}
	delete(s.managers, id)
}

// Get returns the run record.
func (s *RunService) Get(id uuid.UUID) (RunRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.runs[id]
	if !ok {
		return RunRecord{}, false
	}
	snapshot := *record
	if record.Status == RunStatusRunning {
		if m, live := s.managers[id]; live {
			stats := m.Statistics()
			snapshot.Stats = &stats
		}
	}
	return snapshot, true
}

// Stop requests a graceful halt of a running traversal.
func (s *RunService) Stop(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	manager, ok := s.managers[id]
	if !ok {
		return false
	}
	manager.Stop()
	return true
}

// List returns all known runs in no particular order.
func (s *RunService) List() []RunRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RunRecord, 0, len(s.runs))
	for _, record := range s.runs {
		out = append(out, *record)
	}
	return out
}
