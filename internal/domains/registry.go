// Package domains maintains the local domain → container mapping.
//
// The registry is the single source of truth for "does domain X already have
// a remote container". It lives outside the remote store on purpose: losing
// it would make repeated runs re-create containers for domains that already
// have one.
package domains

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when a domain has no registered container.
var ErrNotFound = errors.New("domain not registered")

// ErrConflict is returned by Set when a domain is already registered with a
// different container id. Overwriting silently would orphan every
// transaction in the previous container, so this is never auto-resolved.
var ErrConflict = errors.New("domain already registered with a different container")

// Registry maps domain names to remote container identifiers.
// Implementations must be safe for concurrent use.
type Registry interface {
	// Get returns the container id for domain, or ErrNotFound.
	Get(ctx context.Context, domain string) (string, error)

	// Set registers domain → containerID. Re-registering the same pair is a
	// no-op; a different containerID fails with ErrConflict.
	Set(ctx context.Context, domain, containerID string) error

	// List returns all registered domain → container mappings.
	List(ctx context.Context) (map[string]string, error)
}
