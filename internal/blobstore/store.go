// Package blobstore defines the remote container boundary: an externally
// hosted blob per domain, holding that domain's fully-serialized chain.
//
// Updates carry the version token returned by the last Read. A stale token
// fails with ErrConcurrentModification instead of silently overwriting a
// concurrent writer's chain, turning the classic read-build-write race into
// a retryable error.
package blobstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Read and Update for unknown container ids.
var ErrNotFound = errors.New("container not found")

// ErrUnavailable wraps transient transport failures. No partial write has
// occurred when it is returned, so the operation is safe to retry.
var ErrUnavailable = errors.New("blob store unavailable")

// ErrConcurrentModification is returned by Update when the supplied version
// no longer matches the container's current version: another writer updated
// the container between the caller's Read and Update. Re-fetch and retry.
var ErrConcurrentModification = errors.New("container modified concurrently")

// Store is the remote container API consumed by the sync orchestrator.
// Implementations must be safe for concurrent use.
type Store interface {
	// Create bootstraps a new container holding content and returns its id.
	Create(ctx context.Context, content []byte) (string, error)

	// Read returns the container's current content and its version token.
	Read(ctx context.Context, id string) (content []byte, version string, err error)

	// Update overwrites the container's content. version must be the token
	// returned by the Read the new content was derived from.
	Update(ctx context.Context, id string, content []byte, version string) error
}
