package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/gocontext-search/pkg/types"
)

// maxSearchTerms bounds the OR clauses of a term lookup
const maxSearchTerms = 32

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// WAL lets readers proceed while the indexer writes
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage opens (or creates) the database at dbPath and applies migrations.
// Use ":memory:" for a throwaway store.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) querier() querier {
	return t.tx
}

func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Item operations

const itemColumns = `i.id, i.path, i.source_path, i.content, i.content_type, i.content_hash,
		       i.start_line, i.end_line, i.created_at, i.updated_at`

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row scanner, extra ...interface{}) (*types.IndexedItem, error) {
	var item types.IndexedItem
	var contentType string
	var hash []byte
	dest := []interface{}{
		&item.ID, &item.Path, &item.SourcePath, &item.Content, &contentType, &hash,
		&item.StartLine, &item.EndLine, &item.CreatedAt, &item.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	item.ContentType = types.ContentType(contentType)
	copy(item.ContentHash[:], hash)
	return &item, nil
}

func (s *SQLiteStorage) upsertItemWithQuerier(ctx context.Context, q querier, item *types.IndexedItem) error {
	if err := item.Validate(); err != nil {
		return fmt.Errorf("invalid item: %w", err)
	}
	if item.SourcePath == "" {
		item.SourcePath = item.Path
	}

	query := `
		INSERT INTO items (id, path, source_path, content, content_type, content_hash,
		                   start_line, end_line, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			path = excluded.path,
			source_path = excluded.source_path,
			content = excluded.content,
			content_type = excluded.content_type,
			content_hash = excluded.content_hash,
			start_line = excluded.start_line,
			end_line = excluded.end_line,
			updated_at = excluded.updated_at
	`
	now := time.Now()
	_, err := q.ExecContext(ctx, query,
		item.ID, item.Path, item.SourcePath, item.Content, string(item.ContentType),
		item.ContentHash[:], item.StartLine, item.EndLine, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert item %s: %w", item.ID, err)
	}

	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertItem(ctx context.Context, item *types.IndexedItem) error {
	return s.upsertItemWithQuerier(ctx, s.querier(), item)
}

// getItemWithQuerier loads an item together with its vector, if any
func (s *SQLiteStorage) getItemWithQuerier(ctx context.Context, q querier, id string) (*types.IndexedItem, error) {
	query := `
		SELECT ` + itemColumns + `,
		       e.vector, e.dimension, e.model, e.provider
		FROM items i
		LEFT JOIN embeddings e ON e.item_id = i.id
		WHERE i.id = ?
	`
	var blob []byte
	var dimension sql.NullInt64
	var model, provider sql.NullString
	item, err := scanItem(q.QueryRowContext(ctx, query, id), &blob, &dimension, &model, &provider)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if dimension.Valid {
		item.Vector = &types.Vector{
			Values:    deserializeVector(blob),
			Dimension: int(dimension.Int64),
			Model:     model.String,
			Provider:  provider.String,
		}
	}
	return item, nil
}

func (s *SQLiteStorage) GetItem(ctx context.Context, id string) (*types.IndexedItem, error) {
	return s.getItemWithQuerier(ctx, s.querier(), id)
}

// deleteItemsBySourceWithQuerier removes every item of a source file; vectors cascade
func (s *SQLiteStorage) deleteItemsBySourceWithQuerier(ctx context.Context, q querier, sourcePath string) (int, error) {
	result, err := q.ExecContext(ctx, `DELETE FROM items WHERE source_path = ?`, sourcePath)
	if err != nil {
		return 0, fmt.Errorf("failed to delete items for %s: %w", sourcePath, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SQLiteStorage) DeleteItemsBySource(ctx context.Context, sourcePath string) (int, error) {
	return s.deleteItemsBySourceWithQuerier(ctx, s.querier(), sourcePath)
}

// Vector operations

func (s *SQLiteStorage) upsertVectorWithQuerier(ctx context.Context, q querier, itemID string, v *types.Vector) error {
	if v == nil || len(v.Values) == 0 {
		return fmt.Errorf("empty vector for item %s", itemID)
	}
	if v.Dimension != len(v.Values) {
		return fmt.Errorf("%w: item %s declares %d dimensions, has %d values",
			types.ErrVectorDimensionMismatch, itemID, v.Dimension, len(v.Values))
	}

	query := `
		INSERT INTO embeddings (item_id, vector, dimension, provider, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(item_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			provider = excluded.provider,
			model = excluded.model,
			created_at = excluded.created_at
	`
	_, err := q.ExecContext(ctx, query,
		itemID, serializeVector(v.Values), v.Dimension, v.Provider, v.Model, time.Now())
	if err != nil {
		return fmt.Errorf("failed to upsert vector for %s: %w", itemID, err)
	}
	return nil
}

func (s *SQLiteStorage) UpsertVector(ctx context.Context, itemID string, v *types.Vector) error {
	return s.upsertVectorWithQuerier(ctx, s.querier(), itemID, v)
}

// Source operations

func (s *SQLiteStorage) upsertSourceWithQuerier(ctx context.Context, q querier, src *Source) error {
	query := `
		INSERT INTO sources (path, content_hash, content_type, item_count, last_indexed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			content_hash = excluded.content_hash,
			content_type = excluded.content_type,
			item_count = excluded.item_count,
			last_indexed_at = excluded.last_indexed_at
	`
	if src.LastIndexedAt.IsZero() {
		src.LastIndexedAt = time.Now()
	}
	_, err := q.ExecContext(ctx, query,
		src.Path, src.ContentHash[:], string(src.ContentType), src.ItemCount, src.LastIndexedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert source %s: %w", src.Path, err)
	}
	return nil
}

func (s *SQLiteStorage) UpsertSource(ctx context.Context, src *Source) error {
	return s.upsertSourceWithQuerier(ctx, s.querier(), src)
}

func (s *SQLiteStorage) getSourceWithQuerier(ctx context.Context, q querier, path string) (*Source, error) {
	query := `
		SELECT path, content_hash, content_type, item_count, last_indexed_at
		FROM sources
		WHERE path = ?
	`
	var src Source
	var hash []byte
	var contentType string
	var lastIndexedAt sql.NullTime
	err := q.QueryRowContext(ctx, query, path).Scan(
		&src.Path, &hash, &contentType, &src.ItemCount, &lastIndexedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	copy(src.ContentHash[:], hash)
	src.ContentType = types.ContentType(contentType)
	if lastIndexedAt.Valid {
		src.LastIndexedAt = lastIndexedAt.Time
	}
	return &src, nil
}

func (s *SQLiteStorage) GetSource(ctx context.Context, path string) (*Source, error) {
	return s.getSourceWithQuerier(ctx, s.querier(), path)
}

// Retrieval operations

func (s *SQLiteStorage) FetchCandidatesByTerms(ctx context.Context, terms []string, limit int) ([]*types.IndexedItem, error) {
	return fetchCandidatesByTerms(ctx, s.querier(), terms, limit)
}

func (s *SQLiteStorage) ScanCandidatesByTerms(ctx context.Context, terms []string, fn func(*types.IndexedItem) error) error {
	return scanCandidatesByTerms(ctx, s.querier(), terms, 0, fn)
}

func (s *SQLiteStorage) FetchAllVectors(ctx context.Context) ([]VectorRecord, error) {
	return fetchAllVectors(ctx, s.querier())
}

// Status operations

func (s *SQLiteStorage) getStatusWithQuerier(ctx context.Context, q querier) (*Status, error) {
	status := &Status{}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM sources", &status.SourcesCount},
		{"SELECT COUNT(*) FROM items", &status.ItemsCount},
		{"SELECT COUNT(*) FROM embeddings", &status.EmbeddingsCount},
	}
	for _, c := range counts {
		if err := q.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to count (%s): %w", c.query, err)
		}
	}

	rows, err := q.QueryContext(ctx, `
		SELECT model, provider, dimension, COUNT(*)
		FROM embeddings
		GROUP BY model, provider, dimension
		ORDER BY COUNT(*) DESC, model
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to group embeddings: %w", err)
	}
	for rows.Next() {
		var mc ModelCount
		if err := rows.Scan(&mc.Model, &mc.Provider, &mc.Dimension, &mc.Count); err != nil {
			_ = rows.Close()
			return nil, err
		}
		status.Models = append(status.Models, mc)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// MAX() over a TIMESTAMP column comes back untyped, so read the newest row instead
	var lastIndexedAt sql.NullTime
	err = q.QueryRowContext(ctx,
		"SELECT last_indexed_at FROM sources ORDER BY last_indexed_at DESC LIMIT 1").Scan(&lastIndexedAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to read last index time: %w", err)
	}
	if lastIndexedAt.Valid {
		status.LastIndexedAt = lastIndexedAt.Time
	}

	var pageCount, pageSize int
	if err := q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	status.Health = HealthStatus{
		DatabaseAccessible:  true,
		EmbeddingsAvailable: status.EmbeddingsCount > 0,
		MixedModels:         len(status.Models) > 1,
	}
	return status, nil
}

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*Status, error) {
	return s.getStatusWithQuerier(ctx, s.querier())
}

// Transaction implementations route every call through the transaction querier

func (t *sqliteTx) UpsertItem(ctx context.Context, item *types.IndexedItem) error {
	return t.storage.upsertItemWithQuerier(ctx, t.querier(), item)
}

func (t *sqliteTx) GetItem(ctx context.Context, id string) (*types.IndexedItem, error) {
	return t.storage.getItemWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) DeleteItemsBySource(ctx context.Context, sourcePath string) (int, error) {
	return t.storage.deleteItemsBySourceWithQuerier(ctx, t.querier(), sourcePath)
}

func (t *sqliteTx) UpsertVector(ctx context.Context, itemID string, v *types.Vector) error {
	return t.storage.upsertVectorWithQuerier(ctx, t.querier(), itemID, v)
}

func (t *sqliteTx) UpsertSource(ctx context.Context, src *Source) error {
	return t.storage.upsertSourceWithQuerier(ctx, t.querier(), src)
}

func (t *sqliteTx) GetSource(ctx context.Context, path string) (*Source, error) {
	return t.storage.getSourceWithQuerier(ctx, t.querier(), path)
}

func (t *sqliteTx) FetchCandidatesByTerms(ctx context.Context, terms []string, limit int) ([]*types.IndexedItem, error) {
	return fetchCandidatesByTerms(ctx, t.querier(), terms, limit)
}

func (t *sqliteTx) ScanCandidatesByTerms(ctx context.Context, terms []string, fn func(*types.IndexedItem) error) error {
	return scanCandidatesByTerms(ctx, t.querier(), terms, 0, fn)
}

func (t *sqliteTx) FetchAllVectors(ctx context.Context) ([]VectorRecord, error) {
	return fetchAllVectors(ctx, t.querier())
}

func (t *sqliteTx) GetStatus(ctx context.Context) (*Status, error) {
	return t.storage.getStatusWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	return nil, errors.New("nested transactions not supported")
}

// escapeLike escapes LIKE wildcards so terms match literally
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
