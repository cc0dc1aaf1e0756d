// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the pipeline and
// service layers from concrete implementations.
package port

import (
	"context"

	"github.com/boddenberg/wallet-activity-bfa/internal/domain"
)

// DataSource fetches one wallet API resource. Implementations must be safe
// for concurrent use and honour ctx cancellation.
type DataSource interface {
	Fetch(ctx context.Context, endpoint domain.Endpoint, params domain.Params) (*domain.RawResponse, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}
