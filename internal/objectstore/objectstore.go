// Package objectstore is the only place that talks to the bucket backend.
// Callers see three operations and a single not-found error kind.
package objectstore

import (
	"context"
	"time"
)

// Gateway is the storage surface used by the dispatcher and the worker.
type Gateway interface {
	// Read returns the full content of bucket/key.
	Read(ctx context.Context, bucket, key string) ([]byte, error)

	// Write stores data at bucket/key, replacing any existing object.
	Write(ctx context.Context, bucket, key string, data []byte) error

	// Move copies src to dst and then deletes src. It is never an atomic
	// rename. A missing source yields errors.ErrFileNotFound.
	Move(ctx context.Context, srcBucket, srcKey, dstBucket, dstKey string) error
}

// Object describes a stored object as returned by List.
type Object struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// Lister is used by operator tooling to inspect a bucket.
type Lister interface {
	List(ctx context.Context, bucket, prefix string) ([]Object, error)
	Exists(ctx context.Context, bucket, key string) (bool, error)
}

// Store is a Gateway that can also be inspected.
type Store interface {
	Gateway
	Lister
}
