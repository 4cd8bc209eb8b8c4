// Package classifier routes queries between lexical and semantic retrieval.
//
// Classification is pattern based and deterministic. Two disjoint rule
// families are evaluated in a fixed order; the families that fire decide the
// query type, and the type selects a weight pair from the Policy.
package classifier

import (
	"fmt"
	"strings"

	"github.com/dshills/gocontext-search/pkg/types"
)

// Policy maps each query type to its retrieval weights
type Policy struct {
	Code          types.Weights `yaml:"code"`
	Documentation types.Weights `yaml:"documentation"`
	Mixed         types.Weights `yaml:"mixed"`
}

// DefaultPolicy returns the heuristic weight pairs 0.8/0.2, 0.2/0.8 and 0.5/0.5
func DefaultPolicy() Policy {
	return Policy{
		Code:          types.Weights{Lexical: 0.8, Semantic: 0.2},
		Documentation: types.Weights{Lexical: 0.2, Semantic: 0.8},
		Mixed:         types.Weights{Lexical: 0.5, Semantic: 0.5},
	}
}

// Validate checks every weight pair
func (p Policy) Validate() error {
	if err := p.Code.Validate(); err != nil {
		return fmt.Errorf("code weights: %w", err)
	}
	if err := p.Documentation.Validate(); err != nil {
		return fmt.Errorf("documentation weights: %w", err)
	}
	if err := p.Mixed.Validate(); err != nil {
		return fmt.Errorf("mixed weights: %w", err)
	}
	return nil
}

// For returns the weights for a query type
func (p Policy) For(t types.QueryType) types.Weights {
	switch t {
	case types.QueryCode:
		return p.Code
	case types.QueryDocumentation:
		return p.Documentation
	default:
		return p.Mixed
	}
}

// Classifier inspects raw query text and produces a routing decision
type Classifier struct {
	policy Policy
	rules  []rule
}

// New creates a classifier using policy. An invalid policy falls back to DefaultPolicy.
func New(policy Policy) *Classifier {
	if policy.Validate() != nil {
		policy = DefaultPolicy()
	}
	return &Classifier{
		policy: policy,
		rules:  defaultRules(),
	}
}

// Policy returns the weight policy in use
func (c *Classifier) Policy() Policy {
	return c.policy
}

// Classify decides the query type and weights. It is a pure function of text.
func (c *Classifier) Classify(text string) types.RoutingDecision {
	raw := strings.TrimSpace(text)
	lower := strings.ToLower(raw)

	var codeSignals, docSignals []string
	for _, r := range c.rules {
		signal, ok := r.match(raw, lower)
		if !ok {
			continue
		}
		switch r.category {
		case categoryCode:
			codeSignals = append(codeSignals, signal)
		case categoryDoc:
			docSignals = append(docSignals, signal)
		}
	}

	detected := types.QueryMixed
	switch {
	case len(codeSignals) > 0 && len(docSignals) == 0:
		detected = types.QueryCode
	case len(docSignals) > 0 && len(codeSignals) == 0:
		detected = types.QueryDocumentation
	}

	w := c.policy.For(detected)
	return types.RoutingDecision{
		DetectedType:   detected,
		LexicalWeight:  w.Lexical,
		SemanticWeight: w.Semantic,
		Reasoning:      reasoning(codeSignals, docSignals, w),
		CodeSignals:    codeSignals,
		DocSignals:     docSignals,
	}
}

func reasoning(code, doc []string, w types.Weights) string {
	var b strings.Builder
	switch {
	case len(code) > 0 && len(doc) > 0:
		fmt.Fprintf(&b, "mixed: code patterns [%s] and documentation patterns [%s] both matched",
			strings.Join(code, ", "), strings.Join(doc, ", "))
	case len(code) > 0:
		fmt.Fprintf(&b, "code: matched [%s]", strings.Join(code, ", "))
	case len(doc) > 0:
		fmt.Fprintf(&b, "documentation: matched [%s]", strings.Join(doc, ", "))
	default:
		b.WriteString("mixed: no code or documentation pattern matched")
	}
	fmt.Fprintf(&b, " (lexical=%.2f, semantic=%.2f)", w.Lexical, w.Semantic)
	return b.String()
}
