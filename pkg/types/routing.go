package types

import (
	"fmt"
	"math"
)

// QueryType is the closed set of categories the classifier can detect
type QueryType string

const (
	QueryCode          QueryType = "code"
	QueryDocumentation QueryType = "documentation"
	QueryMixed         QueryType = "mixed"
)

// weightTolerance bounds floating error when checking that weights sum to 1
const weightTolerance = 1e-9

// Weights is the relative contribution of each retriever to the fused score
type Weights struct {
	Lexical  float64 `yaml:"lexical" json:"lexical"`
	Semantic float64 `yaml:"semantic" json:"semantic"`
}

// Validate checks that weights are non-negative and sum to 1. NaN is rejected.
func (w Weights) Validate() error {
	if !(w.Lexical >= 0) || !(w.Semantic >= 0) {
		return fmt.Errorf("weights must be non-negative (lexical=%.3f semantic=%.3f)", w.Lexical, w.Semantic)
	}
	if math.Abs(w.Lexical+w.Semantic-1.0) > weightTolerance {
		return fmt.Errorf("weights must sum to 1.0 (lexical=%.3f semantic=%.3f)", w.Lexical, w.Semantic)
	}
	return nil
}

// RoutingDecision is the output of the query classifier
type RoutingDecision struct {
	DetectedType   QueryType
	LexicalWeight  float64
	SemanticWeight float64
	Reasoning      string

	// Concrete patterns that fired
	CodeSignals []string
	DocSignals  []string
}

// Weights returns the decision's weight pair
func (d RoutingDecision) Weights() Weights {
	return Weights{Lexical: d.LexicalWeight, Semantic: d.SemanticWeight}
}
