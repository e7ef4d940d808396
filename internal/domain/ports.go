package domain

import (
	"context"
	"io"
	"time"
)

// ObjectInfo describes one object returned by a storage listing.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// ObjectStore lists and fetches archive objects.
type ObjectStore interface {
	// List returns up to maxKeys objects under prefix in key order.
	List(ctx context.Context, prefix string, maxKeys int) ([]ObjectInfo, error)
	// Get opens the object body. The caller closes it.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// QueryEngine runs SQL statements asynchronously on a managed engine.
type QueryEngine interface {
	StartQuery(ctx context.Context, in StartQueryInput) (string, error)
	GetQueryStatus(ctx context.Context, executionID string) (*EngineStatus, error)
	StopQuery(ctx context.Context, executionID string) error
}
