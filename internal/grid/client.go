package grid

import (
	"context"
)

// Client is one connection to the grid. Clients are not safe for concurrent
// use; workers check them out of a Pool for the duration of one unit of work.
//
// Calls fail with ErrNotFound, ErrPermissionDenied, ErrConnection or
// ErrConflict (possibly wrapped) so callers can discriminate with errors.Is.
type Client interface {
	// Stat reports what, if anything, exists at path. A missing path is not
	// an error: it returns KindNone.
	Stat(ctx context.Context, path string) (Kind, error)

	// GetReplicas returns all replicas of a data object, valid and stale.
	GetReplicas(ctx context.Context, path string) ([]Replica, error)

	// GetChecksumRecord returns the values of all checksum metadata entries
	// on the object. A correct object has exactly one; zero means no record.
	GetChecksumRecord(ctx context.Context, path string) ([]string, error)

	// RemoveReplica trims the replica with the given index.
	RemoveReplica(ctx context.Context, path string, number int) error

	// CreateReplica materializes a new replica on the named resource.
	CreateReplica(ctx context.Context, path, resource string) error

	GetMetadata(ctx context.Context, path string) ([]AVU, error)
	AddMetadata(ctx context.Context, path string, avus ...AVU) error
	RemoveMetadata(ctx context.Context, path string, avus ...AVU) error

	GetACL(ctx context.Context, path string) ([]ACE, error)
	SetACL(ctx context.Context, path string, entries ...ACE) error

	// CopyObject copies a single data object server-side. The gateway
	// verifies the destination checksum before reporting success.
	CopyObject(ctx context.Context, src, dst string) error

	// CreateCollection creates a collection. Creating an existing collection
	// is not an error.
	CreateCollection(ctx context.Context, path string) error

	// ListChildren returns the direct children of a collection.
	ListChildren(ctx context.Context, path string) ([]Entry, error)

	Close() error
}
