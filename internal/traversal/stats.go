package traversal

import "time"

// TerminationReason records why a run stopped. Checks are ordered: a run
// that hits the artist cap with an empty queue reports the cap.
type TerminationReason string

const (
	ReasonMaxArtists     TerminationReason = "max_artists_reached"
	ReasonQueueEmpty     TerminationReason = "queue_empty"
	ReasonTimeLimit      TerminationReason = "time_limit_exceeded"
	ReasonErrorThreshold TerminationReason = "error_threshold_exceeded"
	ReasonManualStop     TerminationReason = "manual_stop"
)

// Statistics summarizes a finished run.
type Statistics struct {
	SeedArtistID      string            `json:"seed_artist_id"`
	Strategy          Strategy          `json:"strategy"`
	ArtistsProcessed  int               `json:"artists_processed"`
	ArtistsDiscovered int               `json:"artists_discovered"`
	ArtistsFailed     int               `json:"artists_failed"`
	ArtistsSkipped    int               `json:"artists_skipped"`
	ReleasesProcessed int               `json:"releases_processed"`
	EdgesSaved        int               `json:"edges_saved"`
	CandidatesDropped int               `json:"candidates_dropped"`
	PeakQueueSize     int               `json:"peak_queue_size"`
	TotalEnqueued     int               `json:"total_enqueued"`
	APIRequests       int64             `json:"api_requests"`
	APIErrors         int64             `json:"api_errors"`
	StartedAt         time.Time         `json:"started_at"`
	FinishedAt        time.Time         `json:"finished_at"`
	Duration          time.Duration     `json:"duration"`
	Termination       TerminationReason `json:"termination_reason"`
}
