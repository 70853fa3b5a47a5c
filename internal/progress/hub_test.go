package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu      sync.Mutex
	batches [][]Event
	closed  bool
}

func (s *captureSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]Event(nil), batch...))
	return nil
}

func (s *captureSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *captureSink) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func validEvent(stage Stage) Event {
	return Event{
		RunID:    UUIDToBytes(uuid.New()),
		TS:       time.Now().UTC(),
		Stage:    stage,
		ArtistID: "a-1",
		Reason:   "queue_empty",
	}
}

func TestHubFlushesOnClose(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{MaxBatchWait: time.Hour}, sink)

	hub.Emit(validEvent(StageRunStart))
	hub.Emit(validEvent(StageArtistDone))
	hub.Emit(validEvent(StageRunDone))

	require.NoError(t, hub.Close(context.Background()))
	require.Equal(t, 3, sink.total())
	require.True(t, sink.closed)
}

func TestHubFlushesWhenBatchFills(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{MaxBatchEvents: 2, MaxBatchWait: time.Hour}, sink)
	defer func() { _ = hub.Close(context.Background()) }()

	hub.Emit(validEvent(StageArtistDone))
	hub.Emit(validEvent(StageArtistDone))

	require.Eventually(t, func() bool { return sink.total() == 2 },
		2*time.Second, 10*time.Millisecond)
}

func TestHubDiscardsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{}, sink)

	hub.Emit(Event{Stage: StageRunStart})

	require.NoError(t, hub.Close(context.Background()))
	require.Equal(t, 0, sink.total())
}

func TestEmitAfterCloseIsIgnored(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{}, sink)
	require.NoError(t, hub.Close(context.Background()))

	hub.Emit(validEvent(StageRunStart))
	require.Equal(t, 0, sink.total())
}

func TestEventValidation(t *testing.T) {
	t.Parallel()

	base := validEvent(StageRunDone)
	require.NoError(t, base.Validate())

	noReason := base
	noReason.Reason = ""
	require.Error(t, noReason.Validate())

	noArtist := validEvent(StageArtistDone)
	noArtist.ArtistID = ""
	require.Error(t, noArtist.Validate())

	unknown := base
	unknown.Stage = "SOMETHING"
	require.Error(t, unknown.Validate())
}
