// Package indexer populates the content store from files on disk.
//
// The pipeline for each file is: read, hash, skip if unchanged, chunk, embed
// in batches, then replace the file's stored items in one transaction. Files
// are processed concurrently by an errgroup bounded to Config.Workers.
//
// # Basic Usage
//
//	idx := indexer.New(store, emb, indexer.WithLogger(logger))
//	stats, err := idx.IndexPath(ctx, "/path/to/repo", nil)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("indexed %d files, %d items\n", stats.FilesIndexed, stats.ItemsCreated)
//
// # Incremental Indexing
//
// Each source file's SHA-256 is stored. A later run skips files whose hash is
// unchanged and rewrites the rest, so deleted chunks never linger.
//
// # Embedding Failures
//
// When the embedding backend fails, items are still stored and remain
// reachable through lexical retrieval. The source hash is cleared so the next
// run retries the embedding.
//
// # Discovery
//
// Directories named vendor, node_modules, dist, build, target and
// __pycache__ are skipped, as are dot-directories unless IncludeHidden is
// set. Only files whose content type is code, documentation or configuration
// are indexed; binary files and files above MaxFileBytes are skipped.
//
// IndexLock lets a long-running server reject a second index request while
// one is in flight.
package indexer
