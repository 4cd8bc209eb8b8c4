// Package chunker divides files into indexed items for retrieval.
//
// Files are split into line windows bounded by an estimated token count
// (characters / 4). Consecutive windows share a few overlapping lines so a
// definition near a boundary is visible in both. A file that fits in one
// window becomes a single item with its plain path; otherwise each item's
// path carries a #L<start>-L<end> suffix.
//
// Go sources that parse are split between top-level declarations instead,
// keeping a function together with its doc comment. Small declarations are
// packed into one chunk; a declaration over the limit falls back to windows.
//
// # Basic Usage
//
//	c := chunker.New(chunker.DefaultConfig())
//	for _, item := range c.Items("docs/setup.md", content) {
//	    fmt.Println(item.Path, item.ContentType)
//	}
//
// DetectContentType maps file names and extensions onto the content types
// used for weighting: code, documentation, configuration, and other.
package chunker
