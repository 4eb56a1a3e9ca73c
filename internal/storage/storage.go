// Package storage defines the interface for object storage operations.
// Swap implementations by changing the concrete type injected at startup.
// The S3 implementation works with any S3-compatible provider (MinIO, AWS S3,
// managed blob stores with an S3 gateway), and local disk and WebDAV backends
// honor the same contract.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dropserve/service/internal/config"
)

// ErrNotFound is returned by Get when no object exists under the given name.
var ErrNotFound = errors.New("object not found")

// ErrWrite is returned by Put when the backend rejected or lost the write.
var ErrWrite = errors.New("object write failed")

// ErrConnection is returned by Login when the backend is unreachable.
// It is fatal at startup; nothing else in the process treats it specially.
var ErrConnection = errors.New("storage backend unreachable")

// ObjectStat describes one object as reported by a backend listing.
// It is transient, used during reconciliation and listing, never persisted.
type ObjectStat struct {
	// Filename is the full backend path, including any internal root prefix.
	Filename string
	// Basename is the leaf name: the correlation key matching what Put was given.
	Basename string
	// Size in bytes.
	Size int64
	// LastModified as reported by the backend.
	LastModified time.Time
	// ETag, when the backend provides one.
	ETag string
}

// ByteRange asks Get for a partial read of [Start, End] inclusive.
// Only the local backend is required to honor it; remote backends may
// approximate with a full fetch.
type ByteRange struct {
	Start int64
	End   int64
}

// Backend is the uniform contract every storage implementation provides.
// A single Backend instance is shared by all request handlers and the
// reconciler, so implementations must be safe for concurrent use.
type Backend interface {
	// Login establishes readiness: it verifies or creates the bucket or root
	// directory. Idempotent; safe to call when already initialized.
	Login(ctx context.Context) error
	// List enumerates every object under the backend's configured root.
	// Each call is a full re-list; the result is a point-in-time snapshot.
	List(ctx context.Context) ([]ObjectStat, error)
	// Put uploads content under name, fully overwriting any existing object.
	// size must be the exact byte count when known, -1 otherwise.
	Put(ctx context.Context, name string, r io.Reader, size int64) error
	// Get returns a readable stream of the object, or ErrNotFound.
	// The caller must close the stream.
	Get(ctx context.Context, name string, rng *ByteRange) (io.ReadCloser, error)
	// Remove deletes the object. Removing a missing object is not an error:
	// cleanup races (two sweeps, a concurrent delete) are expected.
	Remove(ctx context.Context, name string) error
	// Exists reports whether an object is present. Best-effort: backend
	// failures degrade to false, never to an error.
	Exists(ctx context.Context, name string) bool
	// Stat returns object metadata, or nil when missing or unreadable.
	Stat(ctx context.Context, name string) *ObjectStat
}

// Open selects and constructs the backend for the configured storage mode.
// Called once at startup; the choice is immutable for the process lifetime.
func Open(cfg *config.Config) (Backend, error) {
	switch cfg.StorageMode {
	case "local":
		return NewLocal(cfg.StorageDir), nil
	case "s3":
		return NewS3(cfg.StorageEndpoint, cfg.StorageAccessKey, cfg.StorageSecretKey, cfg.StorageBucket, cfg.StorageUseSSL)
	case "webdav":
		return NewWebDAV(cfg.WebDAVURL, cfg.WebDAVUser, cfg.WebDAVPassword, cfg.WebDAVRoot), nil
	default:
		return nil, fmt.Errorf("unknown storage mode %q", cfg.StorageMode)
	}
}
