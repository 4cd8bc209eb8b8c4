package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/gocontext-search/pkg/types"
)

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		path string
		want types.ContentType
	}{
		{"internal/searcher/searcher.go", types.ContentCode},
		{"src/graph/unified.ts", types.ContentCode},
		{"scripts/build.SH", types.ContentCode},
		{"docs/gpu-embeddings.md", types.ContentDocumentation},
		{"README", types.ContentDocumentation},
		{"LICENSE", types.ContentDocumentation},
		{"notes.txt", types.ContentDocumentation},
		{"config.yaml", types.ContentConfiguration},
		{"deploy/values.yml", types.ContentConfiguration},
		{"Dockerfile", types.ContentConfiguration},
		{"go.mod", types.ContentConfiguration},
		{".env", types.ContentConfiguration},
		{"image.png", types.ContentOther},
		{"binary", types.ContentOther},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectContentType(tt.path))
		})
	}
}

func TestSplitSmallFileIsOneChunk(t *testing.T) {
	c := New(DefaultConfig())
	content := "package main\n\nfunc main() {}\n"

	chunks := c.Split(content)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 3, chunks[0].EndLine)
	assert.Equal(t, strings.TrimRight(content, "\n"), chunks[0].Content)
}

func TestSplitBlankContent(t *testing.T) {
	c := New(DefaultConfig())
	assert.Nil(t, c.Split(""))
	assert.Nil(t, c.Split("  \n\n\t"))
}

func TestSplitLargeFileRespectsLimitAndOverlap(t *testing.T) {
	var b strings.Builder
	for i := 1; i <= 100; i++ {
		fmt.Fprintf(&b, "line %03d of the file with some padding text\n", i)
	}
	c := New(Config{MaxTokens: 60, OverlapLines: 2})

	chunks := c.Split(b.String())
	require.Greater(t, len(chunks), 1)

	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 100, chunks[len(chunks)-1].EndLine)
	for i, ch := range chunks {
		assert.LessOrEqual(t, EstimateTokens(ch.Content), 60, "chunk %d", i)
		assert.Equal(t, ch.EndLine-ch.StartLine+1, strings.Count(ch.Content, "\n")+1)
		if i > 0 {
			assert.Equal(t, chunks[i-1].EndLine-1, ch.StartLine, "chunk %d overlaps by two lines", i)
		}
	}
}

func TestSplitOversizedLine(t *testing.T) {
	long := strings.Repeat("x", 1000)
	c := New(Config{MaxTokens: 50})

	chunks := c.Split("short\n" + long + "\nshort again")
	require.Len(t, chunks, 3)
	assert.Equal(t, long, chunks[1].Content)
	assert.Equal(t, 2, chunks[1].StartLine)
	assert.Equal(t, 2, chunks[1].EndLine)
}

func TestSplitOverlapNeverStalls(t *testing.T) {
	long := strings.Repeat("y", 400)
	c := New(Config{MaxTokens: 10, OverlapLines: 5})

	chunks := c.Split(long + "\n" + long + "\n" + long)
	assert.Len(t, chunks, 3)
}

func TestItems(t *testing.T) {
	c := New(DefaultConfig())

	items := c.Items("docs/intro.md", "# Intro\n\nWelcome.\n")
	require.Len(t, items, 1)
	item := items[0]
	assert.Equal(t, "docs/intro.md", item.Path)
	assert.Equal(t, "docs/intro.md", item.SourcePath)
	assert.Equal(t, types.ContentDocumentation, item.ContentType)
	assert.Equal(t, types.ItemID("docs/intro.md", 1), item.ID)
	assert.NotEqual(t, [32]byte{}, item.ContentHash)
	require.NoError(t, item.Validate())
}

func TestItemsChunkedPaths(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 200; i++ {
		fmt.Fprintf(&b, "func f%d() int { return %d }\n", i, i)
	}
	c := New(Config{MaxTokens: 100})

	items := c.Items("pkg/funcs.go", b.String())
	require.Greater(t, len(items), 1)

	seen := make(map[string]bool)
	for _, item := range items {
		assert.Equal(t, types.ChunkPath("pkg/funcs.go", item.StartLine, item.EndLine), item.Path)
		assert.Equal(t, types.ContentCode, item.ContentType)
		assert.False(t, seen[item.ID], "duplicate id %s", item.ID)
		seen[item.ID] = true
	}
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
}
