package types

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ContentType classifies indexed content for weighting decisions
type ContentType string

const (
	ContentCode          ContentType = "code"
	ContentDocumentation ContentType = "documentation"
	ContentConfiguration ContentType = "configuration"
	ContentOther         ContentType = "other"
)

// Valid reports whether c is one of the known content types
func (c ContentType) Valid() bool {
	switch c {
	case ContentCode, ContentDocumentation, ContentConfiguration, ContentOther:
		return true
	default:
		return false
	}
}

// Vector is a dense embedding produced once by the embedding backend.
// It is immutable after creation and shared by reference.
type Vector struct {
	Values    []float32
	Dimension int
	Model     string
	Provider  string
}

// IndexedItem is a unit of retrievable content
type IndexedItem struct {
	// Identification
	ID         string
	Path       string // File path, with a #L<start>-L<end> suffix for sub-file chunks
	SourcePath string // File path without the chunk suffix

	// Content
	Content     string
	ContentType ContentType
	ContentHash [32]byte
	StartLine   int
	EndLine     int

	// Embedding (nullable)
	Vector *Vector

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ItemID derives a stable identifier from a source path and a line offset
func ItemID(sourcePath string, startLine int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", sourcePath, startLine)))
	return hex.EncodeToString(h[:16])
}

// ChunkPath renders the path of a sub-file chunk
func ChunkPath(sourcePath string, startLine, endLine int) string {
	return fmt.Sprintf("%s#L%d-L%d", sourcePath, startLine, endLine)
}

// ComputeContentHash computes the SHA-256 hash of the item content
func (i *IndexedItem) ComputeContentHash() {
	i.ContentHash = sha256.Sum256([]byte(i.Content))
}

// Validate checks the invariants an item must hold before it is stored
func (i *IndexedItem) Validate() error {
	if strings.TrimSpace(i.ID) == "" {
		return errors.New("item ID is required")
	}
	if i.Path == "" {
		return errors.New("item path is required")
	}
	if !i.ContentType.Valid() {
		return fmt.Errorf("invalid content type %q", i.ContentType)
	}
	if i.Vector != nil && i.Vector.Dimension != len(i.Vector.Values) {
		return fmt.Errorf("vector dimension %d does not match %d values", i.Vector.Dimension, len(i.Vector.Values))
	}
	return nil
}
