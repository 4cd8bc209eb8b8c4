package types

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidQuery is returned for empty or malformed queries. It is a caller
	// error and is reported before any retrieval starts.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrRetrievalUnavailable marks a single retriever whose backend could not
	// serve the request. The pipeline degrades to the other retriever.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")

	// ErrAllRetrievalUnavailable is returned when no retriever produced a signal.
	ErrAllRetrievalUnavailable = errors.New("all retrieval unavailable")

	// ErrRerankUnavailable marks a reranker failure or timeout. Fused ordering is kept.
	ErrRerankUnavailable = errors.New("rerank unavailable")

	// ErrVectorDimensionMismatch marks vectors from a different embedding model
	// generation than the query embedding.
	ErrVectorDimensionMismatch = errors.New("vector dimension mismatch")
)

// Unavailable wraps cause as a RetrievalUnavailable condition for stage.
func Unavailable(stage Stage, cause error) error {
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrRetrievalUnavailable, stage)
	}
	return fmt.Errorf("%w: %s: %w", ErrRetrievalUnavailable, stage, cause)
}

// AllRetrievalUnavailableError carries the cause reported by every retriever
// that was asked to run.
type AllRetrievalUnavailableError struct {
	Lexical  error
	Semantic error
}

func (e *AllRetrievalUnavailableError) Error() string {
	msg := ErrAllRetrievalUnavailable.Error()
	if e.Lexical != nil {
		msg += "; lexical: " + e.Lexical.Error()
	}
	if e.Semantic != nil {
		msg += "; semantic: " + e.Semantic.Error()
	}
	return msg
}

// Is reports ErrAllRetrievalUnavailable as a match.
func (e *AllRetrievalUnavailableError) Is(target error) bool {
	return target == ErrAllRetrievalUnavailable
}

// Unwrap exposes the underlying causes to errors.Is and errors.As.
func (e *AllRetrievalUnavailableError) Unwrap() []error {
	var errs []error
	if e.Lexical != nil {
		errs = append(errs, e.Lexical)
	}
	if e.Semantic != nil {
		errs = append(errs, e.Semantic)
	}
	return errs
}
