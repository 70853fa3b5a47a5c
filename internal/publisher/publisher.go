// Package publisher defines the outbound message surface for finished runs.
package publisher

import "context"

// Publisher announces run results to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}
