package bootstrap

import (
	"context"

	"chorddht/internal/domain"
)

// Bootstrap is how a joining node finds existing ring members, and how it
// publishes its own endpoint for others to find.
type Bootstrap interface {
	// Discover returns a list of known peer addresses.
	Discover(ctx context.Context) ([]string, error)
	// Register publishes self, if the backend requires it (e.g. Route53).
	Register(ctx context.Context, self domain.NodeRef) error
	// Deregister removes self from the backend, if applicable.
	Deregister(ctx context.Context, self domain.NodeRef) error
}
