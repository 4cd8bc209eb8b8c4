package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func goSource(funcs, bodyLines int) string {
	var b strings.Builder
	b.WriteString("package demo\n\nimport \"fmt\"\n\n")
	for i := 0; i < funcs; i++ {
		fmt.Fprintf(&b, "// F%d prints a few lines\nfunc F%d() {\n", i, i)
		for j := 0; j < bodyLines; j++ {
			b.WriteString("\tfmt.Println(\"some moderately long line of output text\")\n")
		}
		b.WriteString("}\n\n")
	}
	return b.String()
}

func TestGoDeclarations(t *testing.T) {
	src := "package demo\n\n// Answer is documented\nconst Answer = 42\n\nfunc f() {\n\treturn\n}\n"
	spans, ok := goDeclarations(src)
	require.True(t, ok)
	require.Len(t, spans, 2)
	assert.Equal(t, declSpan{start: 3, end: 4}, spans[0], "doc comment is part of the span")
	assert.Equal(t, declSpan{start: 6, end: 8}, spans[1])

	_, ok = goDeclarations("package demo\nfunc (")
	assert.False(t, ok)
}

func TestSplitGoBreaksBetweenDeclarations(t *testing.T) {
	src := goSource(6, 8)
	lines := strings.Split(strings.TrimRight(src, "\n"), "\n")
	c := New(Config{MaxTokens: 250, OverlapLines: 3})

	chunks := c.SplitGo(src)
	require.Greater(t, len(chunks), 2)

	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, len(lines), chunks[len(chunks)-1].EndLine)
	for i, ch := range chunks {
		assert.LessOrEqual(t, EstimateTokens(ch.Content), 250, "chunk %d", i)
		if i == 0 {
			continue
		}
		assert.Equal(t, chunks[i-1].EndLine+1, ch.StartLine, "declaration chunks do not overlap")
		assert.True(t, strings.HasPrefix(lines[ch.StartLine-1], "// F"),
			"chunk %d starts mid-declaration: %q", i, lines[ch.StartLine-1])
	}
}

func TestSplitGoOversizedDeclaration(t *testing.T) {
	src := goSource(1, 120)
	c := New(Config{MaxTokens: 100, OverlapLines: 2})

	chunks := c.SplitGo(src)
	require.Greater(t, len(chunks), 2)
	for _, ch := range chunks {
		assert.LessOrEqual(t, EstimateTokens(ch.Content), 100)
	}
	assert.Contains(t, chunks[0].Content, "package demo")
}

func TestSplitGoFallsBackOnSyntaxError(t *testing.T) {
	var b strings.Builder
	b.WriteString("package broken\n\nfunc (\n")
	for i := 0; i < 200; i++ {
		b.WriteString("\tnot valid go at all\n")
	}
	c := New(Config{MaxTokens: 100, OverlapLines: 2})

	assert.Equal(t, c.Split(b.String()), c.SplitGo(b.String()))
}

func TestSplitGoSmallFile(t *testing.T) {
	src := "package demo\n\nfunc F() {}\n"
	chunks := New(DefaultConfig()).SplitGo(src)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 3, chunks[0].EndLine)
	assert.Nil(t, New(DefaultConfig()).SplitGo("  \n"))
}

func TestSplitFileDispatchesOnExtension(t *testing.T) {
	src := goSource(6, 8)
	c := New(Config{MaxTokens: 250, OverlapLines: 3})

	assert.Equal(t, c.SplitGo(src), c.SplitFile("pkg/demo.go", src))
	assert.Equal(t, c.Split(src), c.SplitFile("notes/demo.txt", src))
}
