// Package progress defines the event stream emitted by traversal runs.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the milestone an Event represents.
type Stage string

// Supported progress stages.
const (
	StageRunStart    Stage = "RUN_START"
	StageRunHB       Stage = "RUN_HEARTBEAT"
	StageRunDone     Stage = "RUN_DONE"
	StageRunError    Stage = "RUN_ERROR"
	StageArtistDone  Stage = "ARTIST_DONE"
	StageArtistError Stage = "ARTIST_ERROR"
)

// Event captures one milestone of a traversal run.
type Event struct {
	// RunID uniquely identifies a run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage is the milestone that occurred.
	Stage Stage
	// ArtistID scopes artist events to the artist being processed.
	ArtistID string
	// Depth is the artist's hop count from the seed.
	Depth int
	// Processed is the running count of artists with a terminal outcome.
	Processed int64
	// QueueLen is the frontier size when the event was emitted.
	QueueLen int64
	// Reason carries the termination reason on RUN_DONE.
	Reason string
	// Dur captures elapsed time for artist and run completions.
	Dur time.Duration
	// Note lets emitters attach low-volume context such as error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunHB, StageRunError:
	case StageRunDone:
		if e.Reason == "" {
			return errors.New("run done requires a reason")
		}
	case StageArtistDone, StageArtistError:
		if e.ArtistID == "" {
			return fmt.Errorf("%s requires an artist id", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
