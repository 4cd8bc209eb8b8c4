package storage

import (
	"context"
	"errors"
	"time"

	"github.com/dshills/gocontext-search/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
)

// Storage defines the interface for persisting and querying indexed items
type Storage interface {
	// Item operations
	UpsertItem(ctx context.Context, item *types.IndexedItem) error
	GetItem(ctx context.Context, id string) (*types.IndexedItem, error)
	DeleteItemsBySource(ctx context.Context, sourcePath string) (int, error)

	// Vector operations
	UpsertVector(ctx context.Context, itemID string, vector *types.Vector) error

	// Source operations
	UpsertSource(ctx context.Context, src *Source) error
	GetSource(ctx context.Context, path string) (*Source, error)

	// Retrieval operations
	FetchCandidatesByTerms(ctx context.Context, terms []string, limit int) ([]*types.IndexedItem, error)
	ScanCandidatesByTerms(ctx context.Context, terms []string, fn func(*types.IndexedItem) error) error
	FetchAllVectors(ctx context.Context) ([]VectorRecord, error)

	// Status operations
	GetStatus(ctx context.Context) (*Status, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Source tracks an ingested file so unchanged files can be skipped on re-index
type Source struct {
	Path          string
	ContentHash   [32]byte
	ContentType   types.ContentType
	ItemCount     int
	LastIndexedAt time.Time
}

// VectorRecord is a stored vector joined with the item it belongs to
type VectorRecord struct {
	ItemID      string
	Path        string
	ContentType types.ContentType
	Content     string
	Vector      *types.Vector
}

// Status contains statistics about the content store
type Status struct {
	SourcesCount    int
	ItemsCount      int
	EmbeddingsCount int
	Models          []ModelCount
	IndexSizeMB     float64
	LastIndexedAt   time.Time
	Health          HealthStatus
}

// ModelCount is the number of stored vectors per embedding model generation
type ModelCount struct {
	Model     string `json:"model"`
	Provider  string `json:"provider"`
	Dimension int    `json:"dimension"`
	Count     int    `json:"count"`
}

// HealthStatus represents the health of the index
type HealthStatus struct {
	DatabaseAccessible  bool
	EmbeddingsAvailable bool
	MixedModels         bool // More than one model generation is stored
}
