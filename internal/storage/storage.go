// Package storage defines the Storage interface and common types for the blob
// backends that hold call recordings and exported reports.
//
// New backends are added by implementing the Storage interface and registering
// with the factory via an init() function in the backend's own package:
//
//	func init() {
//	    storage.Register("mybackend", func(cfg *config.Config) (Storage, error) {
//	        return NewMyBackend(cfg)
//	    })
//	}
//
// The API router imports each backend with a blank import to trigger init().
// This means adding a new backend requires no changes to the factory, only a
// blank import in internal/api/router.go.
package storage

import (
	"context"
	"io"
	"time"
)

// Storage is the blob interface the call-recording pipeline writes through.
// Every backend hashes content with SHA-256 on upload so the webhook handler
// can spot a recording Twilio delivered twice.
type Storage interface {
	// Upload stores the object at path and reports its size and checksum.
	Upload(ctx context.Context, path string, reader io.Reader, size int64) (*UploadResult, error)

	// Download streams the object back. The caller closes the reader.
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Delete removes the object. Deleting an absent object is not an error.
	Delete(ctx context.Context, path string) error

	// GetURL returns a download URL: time-limited and signed on cloud
	// backends, a serving path on the local backend.
	GetURL(ctx context.Context, path string, ttl time.Duration) (string, error)

	// Exists reports whether an object is present at path.
	Exists(ctx context.Context, path string) (bool, error)

	// GetMetadata returns size, checksum, and modification time without
	// transferring the object body when the backend can avoid it.
	GetMetadata(ctx context.Context, path string) (*FileMetadata, error)
}

// UploadResult reports where an upload landed and what was written.
type UploadResult struct {
	Path     string
	Size     int64
	Checksum string // SHA-256 hex of the object body
}

// FileMetadata describes a stored object.
type FileMetadata struct {
	Path         string
	Size         int64
	Checksum     string // SHA-256 hex of the object body
	LastModified time.Time
}

// RecordingPath builds the canonical object key for a call recording. Keys are
// grouped by organization so per-tenant cleanup is a prefix delete.
func RecordingPath(orgID, callID string) string {
	return "recordings/" + orgID + "/" + callID + ".mp3"
}
