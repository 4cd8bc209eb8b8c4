package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/dshills/gocontext-search/pkg/types"
)

// fetchCandidatesByTerms returns items whose content or path contains any of
// terms. Matching is case-insensitive for ASCII and terms are matched literally.
// Rows come back shortest path first so truncation is deterministic.
func fetchCandidatesByTerms(ctx context.Context, q querier, terms []string, limit int) ([]*types.IndexedItem, error) {
	items := make([]*types.IndexedItem, 0)
	if limit <= 0 {
		return items, nil
	}
	err := scanCandidatesByTerms(ctx, q, terms, limit, func(item *types.IndexedItem) error {
		items = append(items, item)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// scanCandidatesByTerms streams matching items to fn in fetchCandidatesByTerms
// order. A non-positive limit streams every match. An error from fn stops the
// scan and is returned as is.
func scanCandidatesByTerms(ctx context.Context, q querier, terms []string, limit int, fn func(*types.IndexedItem) error) error {
	terms = normalizeTerms(terms)
	if len(terms) == 0 {
		return nil
	}

	var (
		clauses = make([]string, 0, len(terms))
		args    = make([]interface{}, 0, len(terms)*2+1)
	)
	for _, term := range terms {
		pattern := "%" + escapeLike(term) + "%"
		clauses = append(clauses, `lower(i.content) LIKE ? ESCAPE '\' OR lower(i.path) LIKE ? ESCAPE '\'`)
		args = append(args, pattern, pattern)
	}

	query := `
		SELECT ` + itemColumns + `
		FROM items i
		WHERE ` + strings.Join(clauses, " OR ") + `
		ORDER BY length(i.path), i.path, i.id`
	if limit > 0 {
		query += `
		LIMIT ?`
		args = append(args, limit)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query candidates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return fmt.Errorf("failed to scan item: %w", err)
		}
		if err := fn(item); err != nil {
			return err
		}
	}
	return rows.Err()
}

// normalizeTerms lowercases, drops blanks and duplicates, and caps the term count
func normalizeTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == maxSearchTerms {
			break
		}
	}
	return out
}

// fetchAllVectors loads every stored vector with its item, ordered by item ID
func fetchAllVectors(ctx context.Context, q querier) ([]VectorRecord, error) {
	query := `
		SELECT i.id, i.path, i.content_type, i.content,
		       e.vector, e.dimension, e.model, e.provider
		FROM embeddings e
		INNER JOIN items i ON i.id = e.item_id
		ORDER BY i.id
	`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]VectorRecord, 0)
	for rows.Next() {
		var (
			rec         VectorRecord
			contentType string
			blob        []byte
			v           types.Vector
		)
		if err := rows.Scan(&rec.ItemID, &rec.Path, &contentType, &rec.Content,
			&blob, &v.Dimension, &v.Model, &v.Provider); err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		v.Values = deserializeVector(blob)
		rec.ContentType = types.ContentType(contentType)
		rec.Vector = &v
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// CosineSimilarity computes the cosine similarity of a and b. Vectors of
// different length are never compared.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", types.ErrVectorDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// SerializeVector is an exported helper for testing
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector is an exported helper for testing
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}
