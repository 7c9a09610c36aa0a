// Package sqlite provides the local storage backend. One SQLite file
// holds document metadata, chunk rows and their embeddings; embeddings
// are stored as little-endian float32 blobs and similarity search runs
// in process. Suitable for single-machine setups without Postgres.
package sqlite
