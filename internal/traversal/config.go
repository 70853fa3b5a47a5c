package traversal

import (
	"fmt"
	"time"
)

// Strategy selects the queue discipline for the traversal frontier.
type Strategy string

const (
	// StrategyBFS explores the graph breadth-first, nearest collaborators
	// before distant ones.
	StrategyBFS Strategy = "bfs"
	// StrategyDFS follows collaboration chains depth-first.
	StrategyDFS Strategy = "dfs"
)

// Config bounds a traversal run. Zero or negative values disable the
// corresponding limit unless noted otherwise.
type Config struct {
	// MaxArtists caps the number of artists processed in the run.
	// Must be positive.
	MaxArtists int `mapstructure:"max_artists" yaml:"max_artists"`

	// Strategy is the frontier discipline, bfs by default.
	Strategy Strategy `mapstructure:"strategy" yaml:"strategy"`

	// MaxQueueSize caps the frontier. When zero it defaults to twice
	// MaxArtists.
	MaxQueueSize int `mapstructure:"max_queue_size" yaml:"max_queue_size"`

	// MaxDepth limits how many hops from the seed are explored.
	MaxDepth int `mapstructure:"max_depth" yaml:"max_depth"`

	// TimeLimit bounds the wall-clock duration of the run.
	TimeLimit time.Duration `mapstructure:"time_limit" yaml:"time_limit"`

	// ErrorThreshold stops the run after this many artists fail.
	ErrorThreshold int `mapstructure:"error_threshold" yaml:"error_threshold"`

	// IncludeExtraArtists admits personnel credited on a release but not
	// billed as its artist.
	IncludeExtraArtists bool `mapstructure:"include_extra_artists" yaml:"include_extra_artists"`

	// IncludeCredits admits per-track credits.
	IncludeCredits bool `mapstructure:"include_credits" yaml:"include_credits"`

	// ProgressInterval is how often a heartbeat is emitted, counted in
	// processed artists. Zero disables heartbeats.
	ProgressInterval int `mapstructure:"progress_interval" yaml:"progress_interval"`
}

// DefaultConfig returns a bounded configuration suitable for exploratory runs.
func DefaultConfig() Config {
	return Config{
		MaxArtists:          100,
		Strategy:            StrategyBFS,
		MaxDepth:            3,
		ErrorThreshold:      10,
		IncludeExtraArtists: true,
		IncludeCredits:      true,
		ProgressInterval:    10,
	}
}

// Validate checks the configuration for a runnable traversal.
func (c Config) Validate() error {
	if c.MaxArtists <= 0 {
		return fmt.Errorf("max_artists must be positive, got %d", c.MaxArtists)
	}
	switch c.Strategy {
	case StrategyBFS, StrategyDFS, "":
	default:
		return fmt.Errorf("unknown strategy %q", c.Strategy)
	}
	return nil
}

// EffectiveStrategy resolves the default strategy.
func (c Config) EffectiveStrategy() Strategy {
	if c.Strategy == "" {
		return StrategyBFS
	}
	return c.Strategy
}

// EffectiveQueueSize resolves the default frontier cap.
func (c Config) EffectiveQueueSize() int {
	if c.MaxQueueSize > 0 {
		return c.MaxQueueSize
	}
	return 2 * c.MaxArtists
}
