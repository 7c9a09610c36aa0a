package driven

import "context"

// BlobStore is the object storage holding original uploads. This
// core only deletes from it, as part of the document deletion
// protocol; uploads happen outside the pipeline.
type BlobStore interface {
	// DeleteFile removes the object at the given key. Deleting a
	// missing object is not an error.
	DeleteFile(ctx context.Context, path string) error

	// Ping validates connectivity.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
