package chunker

import (
	"path/filepath"
	"strings"

	"github.com/dshills/gocontext-search/pkg/types"
)

const (
	// DefaultMaxTokens is the target maximum token count per chunk
	DefaultMaxTokens = 400

	// DefaultOverlapLines is how many trailing lines of a chunk are repeated
	// at the start of the next one
	DefaultOverlapLines = 3

	// TokensPerChar is the heuristic for estimating tokens (chars/4)
	TokensPerChar = 4
)

var codeExtensions = map[string]bool{
	".go": true, ".py": true, ".js": true, ".ts": true, ".tsx": true, ".jsx": true,
	".java": true, ".rs": true, ".c": true, ".cc": true, ".cpp": true, ".h": true,
	".hpp": true, ".cs": true, ".rb": true, ".php": true, ".swift": true, ".kt": true,
	".scala": true, ".sh": true, ".sql": true, ".vue": true, ".mjs": true, ".cjs": true,
}

var docExtensions = map[string]bool{
	".md": true, ".markdown": true, ".mdx": true, ".rst": true, ".txt": true, ".adoc": true,
}

var configExtensions = map[string]bool{
	".yaml": true, ".yml": true, ".json": true, ".toml": true, ".ini": true,
	".cfg": true, ".conf": true, ".env": true, ".properties": true, ".xml": true,
}

var configNames = map[string]bool{
	"dockerfile": true, "makefile": true, "go.mod": true, ".env": true,
}

var docNames = map[string]bool{
	"readme": true, "license": true, "changelog": true, "contributing": true,
}

// DetectContentType classifies a file by its name and extension
func DetectContentType(path string) types.ContentType {
	base := strings.ToLower(filepath.Base(path))
	if configNames[base] {
		return types.ContentConfiguration
	}
	if docNames[strings.TrimSuffix(base, filepath.Ext(base))] && !codeExtensions[filepath.Ext(base)] {
		return types.ContentDocumentation
	}

	ext := filepath.Ext(base)
	switch {
	case codeExtensions[ext]:
		return types.ContentCode
	case docExtensions[ext]:
		return types.ContentDocumentation
	case configExtensions[ext]:
		return types.ContentConfiguration
	default:
		return types.ContentOther
	}
}

// Chunk is a contiguous range of lines of one file
type Chunk struct {
	Content   string
	StartLine int // 1-based, inclusive
	EndLine   int // 1-based, inclusive
}

// Config controls chunk sizing
type Config struct {
	MaxTokens    int `yaml:"max_tokens"`
	OverlapLines int `yaml:"overlap_lines"`
}

// DefaultConfig returns the default chunk sizing
func DefaultConfig() Config {
	return Config{
		MaxTokens:    DefaultMaxTokens,
		OverlapLines: DefaultOverlapLines,
	}
}

// Chunker splits file content into line windows of bounded size
type Chunker struct {
	maxTokens int
	overlap   int
}

// New creates a Chunker. Non-positive sizes use the defaults.
func New(cfg Config) *Chunker {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.OverlapLines < 0 {
		cfg.OverlapLines = 0
	}
	return &Chunker{maxTokens: cfg.MaxTokens, overlap: cfg.OverlapLines}
}

// EstimateTokens approximates the token count of s
func EstimateTokens(s string) int {
	return (len(s) + TokensPerChar - 1) / TokensPerChar
}

// Split breaks content into chunks of at most maxTokens each. A single line
// longer than the limit becomes its own chunk. Blank-only content yields nil.
func (c *Chunker) Split(content string) []Chunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	if EstimateTokens(content) <= c.maxTokens {
		return []Chunk{{Content: strings.Join(lines, "\n"), StartLine: 1, EndLine: len(lines)}}
	}
	return c.windows(lines, 0)
}

// windows packs lines into overlapping windows of at most maxTokens. offset is
// the number of file lines preceding lines[0].
func (c *Chunker) windows(lines []string, offset int) []Chunk {
	var chunks []Chunk
	start := 0
	for start < len(lines) {
		end := start
		tokens := 0
		for end < len(lines) {
			t := lineTokens(lines[end])
			if tokens+t > c.maxTokens && end > start {
				break
			}
			tokens += t
			end++
		}

		window := strings.Join(lines[start:end], "\n")
		if strings.TrimSpace(window) != "" {
			chunks = append(chunks, Chunk{Content: window, StartLine: offset + start + 1, EndLine: offset + end})
		}
		if end >= len(lines) {
			break
		}

		next := end - c.overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// lineTokens counts a line plus its newline
func lineTokens(line string) int {
	return EstimateTokens(line) + 1
}

// SplitFile chunks content using the strategy for path: Go sources split on
// declaration boundaries, everything else uses line windows.
func (c *Chunker) SplitFile(path, content string) []Chunk {
	if strings.EqualFold(filepath.Ext(path), ".go") {
		return c.SplitGo(content)
	}
	return c.Split(content)
}

// Items splits a file into indexed items. A file that fits in one chunk keeps
// its plain path; larger files get line-range suffixed paths.
func (c *Chunker) Items(sourcePath, content string) []*types.IndexedItem {
	chunks := c.SplitFile(sourcePath, content)
	contentType := DetectContentType(sourcePath)

	items := make([]*types.IndexedItem, 0, len(chunks))
	for _, ch := range chunks {
		path := sourcePath
		if len(chunks) > 1 {
			path = types.ChunkPath(sourcePath, ch.StartLine, ch.EndLine)
		}
		item := &types.IndexedItem{
			ID:          types.ItemID(sourcePath, ch.StartLine),
			Path:        path,
			SourcePath:  sourcePath,
			Content:     ch.Content,
			ContentType: contentType,
			StartLine:   ch.StartLine,
			EndLine:     ch.EndLine,
		}
		item.ComputeContentHash()
		items = append(items, item)
	}
	return items
}
