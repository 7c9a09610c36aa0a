package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/veritas-labs/docq/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/veritas-labs/docq/internal/core/domain"
	"github.com/veritas-labs/docq/internal/core/ports/driven"
)

// Store is a unified SQLite-based storage for local, single-machine
// use. Documents, chunks and embeddings live in one file; similarity
// search scans candidate embeddings in process.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.docq/data/docq.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".docq", "data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "docq.db")

	// WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Documents returns a DocumentStore backed by this store.
func (s *Store) Documents() driven.DocumentStore {
	return &documentStore{store: s}
}

// Vectors returns a VectorStore backed by this store.
func (s *Store) Vectors() driven.VectorStore {
	return &vectorStore{store: s}
}

func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("applying migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
	}

	return nil
}

// ==================== Document store ====================

type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

func (d *documentStore) SaveDocument(ctx context.Context, doc *domain.Document) error {
	tx, err := d.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var exists bool
	err = tx.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM documents WHERE id = ?)", doc.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking document: %w", err)
	}

	var errType, errMessage, errAt any
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
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT (id) DO UPDATE SET
		  owner_id = excluded.owner_id,
		  title = excluded.title,
		  status = excluded.status,
		  content = excluded.content,
		  storage_path = excluded.storage_path,
		  chunk_count = excluded.chunk_count,
		  truncated = excluded.truncated,
		  original_chunks = excluded.original_chunks,
		  stored_chunks = excluded.stored_chunks,
		  error_type = excluded.error_type,
		  error_message = excluded.error_message,
		  error_at = excluded.error_at,
		  updated_at = excluded.updated_at
	`, doc.ID, doc.OwnerID, doc.Title, string(doc.Status), doc.Content, doc.StoragePath,
		doc.ChunkCount, doc.Chunking.Truncated, doc.Chunking.OriginalCount, doc.Chunking.StoredCount,
		errType, errMessage, errAt, doc.CreatedAt, now)
	if err != nil {
		return fmt.Errorf("saving document: %w", err)
	}

	if !exists {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO user_usage (owner_id, document_count, updated_at)
			VALUES (?, 1, CURRENT_TIMESTAMP)
			ON CONFLICT (owner_id) DO UPDATE SET
			  document_count = user_usage.document_count + 1,
			  updated_at = CURRENT_TIMESTAMP
		`, doc.OwnerID)
		if err != nil {
			return fmt.Errorf("incrementing usage: %w", err)
		}
	}

	return tx.Commit()
}

func (d *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := d.store.db.QueryRowContext(ctx, `
		SELECT id, owner_id, title, status, content, storage_path, chunk_count,
		       truncated, original_chunks, stored_chunks, error_type, error_message, error_at,
		       created_at, updated_at
		FROM documents WHERE id = ?
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
		return nil, fmt.Errorf("scanning document: %w", err)
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

func (d *documentStore) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, procErr *domain.ProcessingError) error {
	var errType, errMessage, errAt any
	if procErr != nil {
		errType = string(procErr.Type)
		errMessage = procErr.Message
		errAt = procErr.Timestamp
	}

	res, err := d.store.db.ExecContext(ctx, `
		UPDATE documents
		SET status = ?, error_type = ?, error_message = ?, error_at = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, string(status), errType, errMessage, errAt, id)
	if err != nil {
		return fmt.Errorf("updating status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (d *documentStore) UpdateChunkStats(ctx context.Context, id string, count int, stats domain.ChunkStats) error {
	tx, err := d.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var ownerID string
	var oldCount int
	err = tx.QueryRowContext(ctx,
		"SELECT owner_id, chunk_count FROM documents WHERE id = ?", id).Scan(&ownerID, &oldCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("loading document: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE documents
		SET chunk_count = ?, truncated = ?, original_chunks = ?, stored_chunks = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, count, stats.Truncated, stats.OriginalCount, stats.StoredCount, id)
	if err != nil {
		return fmt.Errorf("updating chunk stats: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_usage (owner_id, chunk_count, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (owner_id) DO UPDATE SET
		  chunk_count = MAX(user_usage.chunk_count + ? - ?, 0),
		  updated_at = CURRENT_TIMESTAMP
	`, ownerID, count, count, oldCount)
	if err != nil {
		return fmt.Errorf("updating usage: %w", err)
	}

	return tx.Commit()
}

func (d *documentStore) DeleteDocument(ctx context.Context, id string) error {
	tx, err := d.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var ownerID string
	var chunkCount int
	err = tx.QueryRowContext(ctx,
		"SELECT owner_id, chunk_count FROM documents WHERE id = ?", id).Scan(&ownerID, &chunkCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("loading document: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE user_usage
		SET document_count = MAX(document_count - 1, 0),
		    chunk_count = MAX(chunk_count - ?, 0),
		    updated_at = CURRENT_TIMESTAMP
		WHERE owner_id = ?
	`, chunkCount, ownerID)
	if err != nil {
		return fmt.Errorf("decrementing usage: %w", err)
	}

	return tx.Commit()
}

func (d *documentStore) GetUsage(ctx context.Context, ownerID string) (*domain.UserUsage, error) {
	row := d.store.db.QueryRowContext(ctx,
		"SELECT owner_id, document_count, chunk_count FROM user_usage WHERE owner_id = ?", ownerID)

	var u domain.UserUsage
	if err := row.Scan(&u.OwnerID, &u.DocumentCount, &u.ChunkCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &domain.UserUsage{OwnerID: ownerID}, nil
		}
		return nil, fmt.Errorf("scanning usage: %w", err)
	}
	return &u, nil
}

// ==================== Vector store ====================

type vectorStore struct {
	store *Store
}

var _ driven.VectorStore = (*vectorStore)(nil)

func (v *vectorStore) Upsert(ctx context.Context, rec domain.VectorRecord) error {
	return v.UpsertBatch(ctx, []domain.VectorRecord{rec})
}

func (v *vectorStore) UpsertBatch(ctx context.Context, recs []domain.VectorRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, chunk_index, content, length, embedding, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (id) DO UPDATE SET
		  document_id = excluded.document_id,
		  chunk_index = excluded.chunk_index,
		  content = excluded.content,
		  length = excluded.length,
		  embedding = excluded.embedding,
		  updated_at = CURRENT_TIMESTAMP
	`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		if len(rec.Embedding) == 0 {
			return fmt.Errorf("chunk %s: embedding is required", rec.ChunkID)
		}
		blob := float32SliceToBytes(rec.Embedding)
		if _, err := stmt.ExecContext(ctx,
			rec.ChunkID, rec.DocumentID, rec.Index, rec.Content, len([]rune(rec.Content)), blob); err != nil {
			return fmt.Errorf("upserting chunk %s: %w", rec.ChunkID, err)
		}
	}

	return tx.Commit()
}

// Search loads candidate embeddings and scores them with cosine
// similarity in process. Fine for the local store's scale.
func (v *vectorStore) Search(ctx context.Context, q driven.SearchQuery) ([]driven.SearchHit, error) {
	if q.TopK <= 0 {
		q.TopK = 10
	}
	if len(q.Vector) == 0 {
		return nil, domain.WrapPipelineError(domain.CodeVectorSearchError, "invalid query vector",
			errors.New("embedding is required"))
	}

	where := []string{"c.embedding IS NOT NULL"}
	args := []any{}
	if q.Filter.OwnerID != "" {
		where = append(where, "d.owner_id = ?")
		args = append(args, q.Filter.OwnerID)
	}
	if q.Filter.DocumentID != "" {
		where = append(where, "c.document_id = ?")
		args = append(args, q.Filter.DocumentID)
	}

	rows, err := v.store.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT c.id, c.document_id, c.chunk_index, c.content, c.embedding
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE %s
	`, strings.Join(where, " AND ")), args...)
	if err != nil {
		return nil, domain.WrapPipelineError(domain.CodeVectorSearchError, "similarity query failed", err)
	}
	defer rows.Close()

	var hits []driven.SearchHit
	for rows.Next() {
		var h driven.SearchHit
		var blob []byte
		if err := rows.Scan(&h.ChunkID, &h.DocumentID, &h.Index, &h.Content, &blob); err != nil {
			return nil, domain.WrapPipelineError(domain.CodeVectorSearchError, "scanning search row", err)
		}
		emb := bytesToFloat32Slice(blob)
		if len(emb) != len(q.Vector) {
			continue
		}
		h.Score = cosineSimilarity(q.Vector, emb)
		if h.Score < q.MinScore {
			continue
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapPipelineError(domain.CodeVectorSearchError, "iterating search rows", err)
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > q.TopK {
		hits = hits[:q.TopK]
	}
	return hits, nil
}

func (v *vectorStore) ChunkIDs(ctx context.Context, documentID string) ([]string, error) {
	rows, err := v.store.db.QueryContext(ctx,
		"SELECT id FROM chunks WHERE document_id = ? ORDER BY chunk_index", documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunk ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning chunk id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (v *vectorStore) Delete(ctx context.Context, chunkID string) error {
	return v.DeleteBatch(ctx, []string{chunkID})
}

func (v *vectorStore) DeleteBatch(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(chunkIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(chunkIDs))
	for i, id := range chunkIDs {
		args[i] = id
	}

	_, err := v.store.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM chunks WHERE id IN (%s)", placeholders), args...)
	if err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	return nil
}

// Close is a no-op: the parent Store owns the connection.
func (v *vectorStore) Close() error {
	return nil
}

// ==================== Helpers ====================

// float32SliceToBytes converts a float32 slice to a little-endian
// byte slice for BLOB storage.
func float32SliceToBytes(floats []float32) []byte {
	bytes := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(bytes[i*4:], math.Float32bits(f))
	}
	return bytes
}

// bytesToFloat32Slice converts a little-endian byte slice back to
// float32 values.
func bytesToFloat32Slice(bytes []byte) []float32 {
	floats := make([]float32, len(bytes)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(bytes[i*4:]))
	}
	return floats
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
