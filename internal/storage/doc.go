// Package storage provides SQLite-based persistence for indexed items.
//
// The storage layer manages:
//   - Sources: ingested files and their content hashes
//   - Items: retrievable chunks (path, content, content type)
//   - Embeddings: one vector per item, tagged with model, provider and dimension
//
// Both retrievers read through this package. The lexical retriever uses
// ScanCandidatesByTerms, which streams every row matching a case-insensitive
// LIKE on any term; FetchCandidatesByTerms is the bounded form, ordered by
// length(path), path. The semantic retriever uses FetchAllVectors and
// computes cosine similarity itself.
//
// # Database Schema
//
// Tables:
//   - schema_version: applied migrations, ordered with semver
//   - sources: path, content_hash, content_type, item_count
//   - items: id (primary key), path, source_path, content, content_type
//   - embeddings: item_id (FK, ON DELETE CASCADE), vector blob, dimension, model
//
// Vectors are stored as little-endian float32 blobs.
//
// # Basic Usage
//
//	db, err := storage.NewSQLiteStorage("~/.gocontext/search.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	tx, _ := db.BeginTx(ctx)
//	_ = tx.UpsertItem(ctx, item)
//	_ = tx.UpsertVector(ctx, item.ID, vector)
//	_ = tx.Commit()
//
// # Build Modes
//
// The default build uses modernc.org/sqlite (pure Go). Build with
// -tags sqlite_cgo to use github.com/mattn/go-sqlite3 instead.
//
// # Concurrency
//
// The pool is limited to one connection. SQLite serializes writers anyway and
// a single connection keeps ":memory:" databases coherent.
package storage
