// Package postgres provides the production storage backend: document
// metadata, chunk rows and their embeddings live in one Postgres
// database with the pgvector extension. Similarity search runs in SQL
// with cosine distance; everything else is plain relational rows.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/veritas-labs/docq/internal/core/domain"
	"github.com/veritas-labs/docq/internal/core/ports/driven"
)

// DefaultDimension is used when the configured dimension is missing.
const DefaultDimension = 1536

// searchOverFetch is the over-fetch multiplier applied before the
// MinScore threshold trims results. Fetching 2×TopK avoids
// under-returning when many candidates sit near the threshold.
const searchOverFetch = 2

// Store is the unified Postgres-backed storage. Access the port
// implementations through Documents and Vectors.
type Store struct {
	db        *sql.DB
	dimension int
}

// NewStore connects to Postgres (with pgvector) and ensures the
// schema exists. dimension fixes the width of the embedding column
// and must match the active provider.
func NewStore(dsn string, dimension int) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return NewStoreFromDB(db, dimension)
}

// NewStoreFromDB reuses an existing *sql.DB.
func NewStoreFromDB(db *sql.DB, dimension int) (*Store, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	if dimension <= 0 {
		dimension = DefaultDimension
	}

	s := &Store{db: db, dimension: dimension}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	ddl := fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS documents (
  id              text PRIMARY KEY,
  owner_id        text NOT NULL,
  title           text NOT NULL DEFAULT '',
  status          text NOT NULL,
  content         text NOT NULL DEFAULT '',
  storage_path    text NOT NULL DEFAULT '',
  chunk_count     integer NOT NULL DEFAULT 0,
  truncated       boolean NOT NULL DEFAULT false,
  original_chunks integer NOT NULL DEFAULT 0,
  stored_chunks   integer NOT NULL DEFAULT 0,
  error_type      text,
  error_message   text,
  error_at        timestamptz,
  created_at      timestamptz NOT NULL DEFAULT now(),
  updated_at      timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS documents_owner_idx ON documents (owner_id);

CREATE TABLE IF NOT EXISTS chunks (
  id          text PRIMARY KEY,
  document_id text NOT NULL,
  chunk_index integer NOT NULL,
  content     text NOT NULL,
  length      integer NOT NULL DEFAULT 0,
  embedding   vector(%d),
  created_at  timestamptz NOT NULL DEFAULT now(),
  updated_at  timestamptz NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS chunks_document_idx ON chunks (document_id);
CREATE INDEX IF NOT EXISTS chunks_embedding_idx ON chunks USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100);

CREATE TABLE IF NOT EXISTS user_usage (
  owner_id       text PRIMARY KEY,
  document_count integer NOT NULL DEFAULT 0,
  chunk_count    integer NOT NULL DEFAULT 0,
  updated_at     timestamptz NOT NULL DEFAULT now()
);
`, s.dimension)
	_, err := s.db.Exec(ddl)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Documents returns a DocumentStore backed by this store.
func (s *Store) Documents() driven.DocumentStore {
	return &documentStore{store: s}
}

// Vectors returns a VectorStore backed by this store.
func (s *Store) Vectors() driven.VectorStore {
	return &vectorStore{store: s}
}

// ==================== Document store ====================

type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// SaveDocument inserts or updates a document. A first insert
// increments the owner's document counter.
func (d *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	tx, err := d.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists bool
	err = tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM documents WHERE id = $1)`, doc.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check document: %w", err)
	}

	var errType, errMessage any
	var errAt any
	if doc.Error != nil {
		errType = string(doc.Error.Type)
		errMessage = doc.Error.Message
		errAt = doc.Error.Timestamp
	}

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents
		  (id, owner_id, title, status, content, storage_path, chunk_count,
		   truncated, original_chunks, stored_chunks, error_type, error_message, error_at,
		   created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (id) DO UPDATE SET
		  owner_id = EXCLUDED.owner_id,
		  title = EXCLUDED.title,
		  status = EXCLUDED.status,
		  content = EXCLUDED.content,
		  storage_path = EXCLUDED.storage_path,
		  chunk_count = EXCLUDED.chunk_count,
		  truncated = EXCLUDED.truncated,
		  original_chunks = EXCLUDED.original_chunks,
		  stored_chunks = EXCLUDED.stored_chunks,
		  error_type = EXCLUDED.error_type,
		  error_message = EXCLUDED.error_message,
		  error_at = EXCLUDED.error_at,
		  updated_at = EXCLUDED.updated_at
	`, doc.ID, doc.OwnerID, doc.Title, string(doc.Status), doc.Content, doc.StoragePath,
		doc.ChunkCount, doc.Chunking.Truncated, doc.Chunking.OriginalCount, doc.Chunking.StoredCount,
		errType, errMessage, errAt, doc.CreatedAt, now)
	if err != nil {
		return fmt.Errorf("save document: %w", err)
	}

	if !exists {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO user_usage (owner_id, document_count, updated_at)
			VALUES ($1, 1, now())
			ON CONFLICT (owner_id) DO UPDATE SET
			  document_count = user_usage.document_count + 1,
			  updated_at = now()
		`, doc.OwnerID)
		if err != nil {
			return fmt.Errorf("increment usage: %w", err)
		}
	}

	return tx.Commit()
}

// GetDocument retrieves a document by id.
func (d *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := d.store.db.QueryRowContext(ctx, `
		SELECT id, owner_id, title, status, content, storage_path, chunk_count,
		       truncated, original_chunks, stored_chunks, error_type, error_message, error_at,
		       created_at, updated_at
		FROM documents WHERE id = $1
	`, id)

	var doc domain.Document
	var status string
	var errType, errMessage sql.NullString
	var errAt sql.NullTime

	err := row.Scan(&doc.ID, &doc.OwnerID, &doc.Title, &status, &doc.Content, &doc.StoragePath,
		&doc.ChunkCount, &doc.Chunking.Truncated, &doc.Chunking.OriginalCount, &doc.Chunking.StoredCount,
		&errType, &errMessage, &errAt, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}

	doc.Status = domain.DocumentStatus(status)
	if errType.Valid {
		doc.Error = &domain.ProcessingError{
			Type:      domain.ErrorCode(errType.String),
			Message:   errMessage.String,
			Timestamp: errAt.Time,
		}
	}

	return &doc, nil
}

// UpdateStatus sets the lifecycle state and failure metadata.
func (d *documentStore) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, procErr *domain.ProcessingError) error {
	var errType, errMessage, errAt any
	if procErr != nil {
		errType = string(procErr.Type)
		errMessage = procErr.Message
		errAt = procErr.Timestamp
	}

	res, err := d.store.db.ExecContext(ctx, `
		UPDATE documents
		SET status = $2, error_type = $3, error_message = $4, error_at = $5, updated_at = now()
		WHERE id = $1
	`, id, string(status), errType, errMessage, errAt)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateChunkStats records the chunking outcome and keeps the owner's
// chunk counter in step.
func (d *documentStore) UpdateChunkStats(ctx context.Context, id string, count int, stats domain.ChunkStats) error {
	tx, err := d.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var ownerID string
	var oldCount int
	err = tx.QueryRowContext(ctx,
		`SELECT owner_id, chunk_count FROM documents WHERE id = $1`, id).Scan(&ownerID, &oldCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("load document: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE documents
		SET chunk_count = $2, truncated = $3, original_chunks = $4, stored_chunks = $5, updated_at = now()
		WHERE id = $1
	`, id, count, stats.Truncated, stats.OriginalCount, stats.StoredCount)
	if err != nil {
		return fmt.Errorf("update chunk stats: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_usage (owner_id, chunk_count, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (owner_id) DO UPDATE SET
		  chunk_count = GREATEST(user_usage.chunk_count + $2 - $3, 0),
		  updated_at = now()
	`, ownerID, count, oldCount)
	if err != nil {
		return fmt.Errorf("update usage: %w", err)
	}

	return tx.Commit()
}

// DeleteDocument removes the metadata row and decrements usage
// counters in one transaction. The caller has already removed the
// chunk rows.
func (d *documentStore) DeleteDocument(ctx context.Context, id string) error {
	tx, err := d.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var ownerID string
	var chunkCount int
	err = tx.QueryRowContext(ctx,
		`SELECT owner_id, chunk_count FROM documents WHERE id = $1`, id).Scan(&ownerID, &chunkCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("load document: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE user_usage
		SET document_count = GREATEST(document_count - 1, 0),
		    chunk_count = GREATEST(chunk_count - $2, 0),
		    updated_at = now()
		WHERE owner_id = $1
	`, ownerID, chunkCount)
	if err != nil {
		return fmt.Errorf("decrement usage: %w", err)
	}

	return tx.Commit()
}

// GetUsage returns the owner's usage counters.
func (d *documentStore) GetUsage(ctx context.Context, ownerID string) (*domain.UserUsage, error) {
	row := d.store.db.QueryRowContext(ctx,
		`SELECT owner_id, document_count, chunk_count FROM user_usage WHERE owner_id = $1`, ownerID)

	var u domain.UserUsage
	if err := row.Scan(&u.OwnerID, &u.DocumentCount, &u.ChunkCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.UserUsage{OwnerID: ownerID}, nil
		}
		return nil, fmt.Errorf("scan usage: %w", err)
	}
	return &u, nil
}

// ==================== Vector store ====================

type vectorStore struct {
	store *Store
}

var _ driven.VectorStore = (*vectorStore)(nil)

// Upsert writes one record, idempotently by chunk id.
func (v *vectorStore) Upsert(ctx context.Context, rec domain.VectorRecord) error {
	return v.UpsertBatch(ctx, []domain.VectorRecord{rec})
}

// UpsertBatch writes all records in one transaction. Last write wins
// on conflicting chunk ids.
func (v *vectorStore) UpsertBatch(ctx context.Context, recs []domain.VectorRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, chunk_index, content, length, embedding, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (id) DO UPDATE SET
		  document_id = EXCLUDED.document_id,
		  chunk_index = EXCLUDED.chunk_index,
		  content = EXCLUDED.content,
		  length = EXCLUDED.length,
		  embedding = EXCLUDED.embedding,
		  updated_at = now()
	`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		lit, err := toVectorLiteral(rec.Embedding, v.store.dimension)
		if err != nil {
			return fmt.Errorf("chunk %s: %w", rec.ChunkID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			rec.ChunkID, rec.DocumentID, rec.Index, rec.Content, len([]rune(rec.Content)), lit); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", rec.ChunkID, err)
		}
	}

	return tx.Commit()
}

// Search runs cosine similarity search in SQL, over-fetching before
// the MinScore threshold and TopK trim are applied.
func (v *vectorStore) Search(ctx context.Context, q driven.SearchQuery) ([]driven.SearchHit, error) {
	if q.TopK <= 0 {
		q.TopK = 10
	}

	lit, err := toVectorLiteral(q.Vector, v.store.dimension)
	if err != nil {
		return nil, domain.WrapPipelineError(domain.CodeVectorSearchError, "invalid query vector", err)
	}

	where := []string{"TRUE"}
	args := []any{}
	argIdx := 1
	if q.Filter.OwnerID != "" {
		where = append(where, fmt.Sprintf("d.owner_id = $%d", argIdx))
		args = append(args, q.Filter.OwnerID)
		argIdx++
	}
	if q.Filter.DocumentID != "" {
		where = append(where, fmt.Sprintf("c.document_id = $%d", argIdx))
		args = append(args, q.Filter.DocumentID)
		argIdx++
	}

	query := fmt.Sprintf(`
		SELECT c.id, c.document_id, c.chunk_index, c.content, 1 - (c.embedding <=> '%s'::vector) AS score
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE %s
		ORDER BY c.embedding <=> '%s'::vector
		LIMIT %d
	`, lit, strings.Join(where, " AND "), lit, q.TopK*searchOverFetch)

	rows, err := v.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.WrapPipelineError(domain.CodeVectorSearchError, "similarity query failed", err)
	}
	defer rows.Close()

	var hits []driven.SearchHit
	for rows.Next() {
		var h driven.SearchHit
		if err := rows.Scan(&h.ChunkID, &h.DocumentID, &h.Index, &h.Content, &h.Score); err != nil {
			return nil, domain.WrapPipelineError(domain.CodeVectorSearchError, "scan search row", err)
		}
		if h.Score < q.MinScore {
			continue
		}
		hits = append(hits, h)
		if len(hits) == q.TopK {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapPipelineError(domain.CodeVectorSearchError, "iterate search rows", err)
	}

	return hits, nil
}

// ChunkIDs returns all chunk ids stored for a document.
func (v *vectorStore) ChunkIDs(ctx context.Context, documentID string) ([]string, error) {
	rows, err := v.store.db.QueryContext(ctx,
		`SELECT id FROM chunks WHERE document_id = $1 ORDER BY chunk_index`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query chunk ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan chunk id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Delete removes one vector record.
func (v *vectorStore) Delete(ctx context.Context, chunkID string) error {
	return v.DeleteBatch(ctx, []string{chunkID})
}

// DeleteBatch removes vector records.
func (v *vectorStore) DeleteBatch(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}
	_, err := v.store.db.ExecContext(ctx,
		`DELETE FROM chunks WHERE id = ANY($1)`, pq.Array(chunkIDs))
	if err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

// Close is a no-op: the parent Store owns the connection.
func (v *vectorStore) Close() error {
	return nil
}

// toVectorLiteral renders an embedding as a pgvector literal,
// enforcing the configured dimension.
func toVectorLiteral(embedding []float32, dim int) (string, error) {
	if len(embedding) == 0 {
		return "", errors.New("embedding is required")
	}
	if dim > 0 && len(embedding) != dim {
		return "", fmt.Errorf("embedding length %d does not match dimension %d", len(embedding), dim)
	}
	parts := make([]string, len(embedding))
	for i, f := range embedding {
		parts[i] = strconv.FormatFloat(float64(f), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]", nil
}
