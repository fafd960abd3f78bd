package storage

import (
	"context"
	"io"
	"time"
)

// Package storage holds the blob-store collaborator for compliance artifact
// files. The document engine never reads or writes file bytes itself; it only
// records the object key the handler obtained from this store. Implementations
// must avoid local disk and rely on streaming I/O only.

// PutObjectOptions define optional parameters for uploading artifacts.
// Size should be the exact number of bytes if known; if unknown, set to -1 and
// the implementation will buffer/chunk as supported by the backend.
type PutObjectOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo contains basic information about a stored artifact.
type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Storage is an S3-compatible object store client for artifact blobs.
type Storage interface {
	// Put uploads an artifact under the given key using the provided reader.
	Put(ctx context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error)
	// Delete removes an artifact by key. Used to roll back an upload whose
	// engine mutation failed.
	Delete(ctx context.Context, key string) error
	// PresignGet returns a time-limited download URL for the artifact.
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}
