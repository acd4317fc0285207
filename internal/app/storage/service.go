/*
Package storage provides the durable blob store used for chat cache snapshots.

Each user's in-memory chat collection is serialized to a single blob keyed by
user id. Two backends are supported: a local filesystem directory and any
S3-compatible object store.
*/
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Load when no blob exists for the given key.
var ErrNotFound = errors.New("storage: blob not found")

// ServiceConfig holds the configuration required to construct a BlobStore.
type ServiceConfig struct {
	// Backend selects the implementation: "fs" or "s3" (see configs package).
	Backend string

	// Dir is the snapshot directory for the filesystem backend.
	Dir string

	// S3 connection settings, used only by the s3 backend.
	S3BucketName      string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// BlobStore defines the public interface for snapshot persistence.
type BlobStore interface {
	// Load reads the blob stored under key. It returns ErrNotFound if the key
	// has never been written.
	Load(ctx context.Context, key string) ([]byte, error)

	// Save durably writes data under key, replacing any previous content.
	Save(ctx context.Context, key string, data []byte) error

	// Delete removes the blob stored under key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}

// NewBlobStore is the factory function for BlobStore.
// It initializes and returns a concrete implementation based on the provided configuration.
func NewBlobStore(cfg ServiceConfig) (BlobStore, error) {
	if cfg.Backend == "s3" {
		return newS3Store(cfg)
	}
	return newFSStore(cfg.Dir)
}
