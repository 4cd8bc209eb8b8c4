package chunker

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
)

// declSpan is the line range of one top-level Go declaration, doc comment included
type declSpan struct {
	start int // 1-based, inclusive
	end   int // 1-based, inclusive
}

// goDeclarations returns the spans of top-level declarations in source order.
// ok is false when the source does not parse.
func goDeclarations(content string) ([]declSpan, bool) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "", content, parser.ParseComments|parser.SkipObjectResolution)
	if err != nil || file == nil {
		return nil, false
	}

	spans := make([]declSpan, 0, len(file.Decls))
	for _, decl := range file.Decls {
		start := decl.Pos()
		if doc := docComment(decl); doc != nil {
			start = doc.Pos()
		}
		spans = append(spans, declSpan{
			start: fset.Position(start).Line,
			end:   fset.Position(decl.End()).Line,
		})
	}
	return spans, true
}

func docComment(decl ast.Decl) *ast.CommentGroup {
	switch d := decl.(type) {
	case *ast.FuncDecl:
		return d.Doc
	case *ast.GenDecl:
		return d.Doc
	default:
		return nil
	}
}

// SplitGo chunks Go source so that chunk boundaries fall between top-level
// declarations. Consecutive small declarations share a chunk; a declaration
// larger than the limit is split into line windows. Source that does not
// parse falls back to Split.
func (c *Chunker) SplitGo(content string) []Chunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	if EstimateTokens(content) <= c.maxTokens {
		return c.Split(content)
	}

	spans, ok := goDeclarations(content)
	if !ok || len(spans) == 0 {
		return c.Split(content)
	}

	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")

	// Each segment runs from one declaration start to the line before the
	// next; the first also takes the package clause.
	bounds := make([]int, 0, len(spans)+1)
	bounds = append(bounds, 0)
	for _, sp := range spans[1:] {
		if b := sp.start - 1; b > bounds[len(bounds)-1] && b < len(lines) {
			bounds = append(bounds, b)
		}
	}
	bounds = append(bounds, len(lines))

	var chunks []Chunk
	groupStart, groupTokens := 0, 0
	flush := func(end int) {
		if end > groupStart {
			window := strings.Join(lines[groupStart:end], "\n")
			if strings.TrimSpace(window) != "" {
				chunks = append(chunks, Chunk{Content: window, StartLine: groupStart + 1, EndLine: end})
			}
		}
		groupStart, groupTokens = end, 0
	}

	for i := 0; i+1 < len(bounds); i++ {
		segStart, segEnd := bounds[i], bounds[i+1]
		segTokens := 0
		for _, line := range lines[segStart:segEnd] {
			segTokens += lineTokens(line)
		}

		if segTokens > c.maxTokens {
			flush(segStart)
			chunks = append(chunks, c.windows(lines[segStart:segEnd], segStart)...)
			groupStart = segEnd
			continue
		}
		if groupTokens+segTokens > c.maxTokens {
			flush(segStart)
		}
		groupTokens += segTokens
	}
	flush(len(lines))

	return chunks
}
