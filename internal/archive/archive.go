// Package archive defines storage for raw catalog payloads.
package archive

import "context"

// Store persists raw payload bytes under a path and returns a URI
// identifying where the payload landed.
type Store interface {
	PutObject(ctx context.Context, path, contentType string, data []byte) (string, error)
}
