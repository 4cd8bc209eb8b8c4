package embedder

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"
)

// LocalModel names the vectors produced by LocalProvider
const LocalModel = "local-hash-v1"

// LocalProvider embeds text offline by feature hashing its tokens into a
// fixed number of signed buckets. Identifiers are also split on case and
// underscore boundaries so "parseConfig" shares buckets with "parse config".
type LocalProvider struct {
	dimension int
	cache     *Cache
}

// NewLocalProvider creates a local embedder. A non-positive dimension uses LocalDimension.
func NewLocalProvider(dimension int, cache *Cache) *LocalProvider {
	if dimension <= 0 {
		dimension = LocalDimension
	}
	return &LocalProvider{
		dimension: dimension,
		cache:     cache,
	}
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := CacheKey(ProviderLocal, LocalModel, req.Text)
	if emb, ok := l.cache.Get(key); ok {
		return emb, nil
	}

	vector, err := l.embed(req.Text)
	if err != nil {
		return nil, err
	}

	emb := &Embedding{
		Vector:    vector,
		Dimension: l.dimension,
		Provider:  ProviderLocal,
		Model:     LocalModel,
		Hash:      ComputeHash(req.Text),
	}
	l.cache.Set(key, emb)
	return emb, nil
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		emb, err := l.GenerateEmbedding(ctx, EmbeddingRequest{Text: text})
		if err != nil {
			return nil, fmt.Errorf("text %d: %w", i, err)
		}
		embeddings[i] = emb
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      LocalModel,
	}, nil
}

func (l *LocalProvider) embed(text string) ([]float32, error) {
	features := localFeatures(text)
	if len(features) == 0 {
		return nil, fmt.Errorf("%w: text has no embeddable tokens", ErrInvalidInput)
	}

	vector := make([]float32, l.dimension)
	for _, feature := range features {
		h := hashFeature(feature)
		bucket := int(h % uint64(l.dimension))
		if h>>63 == 1 {
			vector[bucket]--
		} else {
			vector[bucket]++
		}
	}
	return NormalizeVector(vector), nil
}

func (l *LocalProvider) Dimension() int {
	return l.dimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return LocalModel
}

func (l *LocalProvider) Close() error {
	return nil
}

func hashFeature(feature string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	return h.Sum64()
}

// localFeatures returns lowercased alphanumeric tokens plus the sub-words of
// mixed-case or underscored identifiers
func localFeatures(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})

	features := make([]string, 0, len(fields))
	for _, field := range fields {
		parts := splitIdentifier(field)
		whole := strings.ToLower(strings.ReplaceAll(field, "_", ""))
		if whole != "" {
			features = append(features, whole)
		}
		if len(parts) > 1 {
			features = append(features, parts...)
		}
	}
	return features
}

func splitIdentifier(s string) []string {
	var parts []string
	var current []rune
	runes := []rune(s)
	flush := func() {
		if len(current) > 0 {
			parts = append(parts, strings.ToLower(string(current)))
			current = current[:0]
		}
	}
	for i, r := range runes {
		switch {
		case r == '_':
			flush()
			continue
		case unicode.IsUpper(r) && i > 0:
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		current = append(current, r)
	}
	flush()
	return parts
}
