package lexical

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dshills/gocontext-search/pkg/types"
)

// Scoring holds the tunable boosts of the lexical scorer
type Scoring struct {
	ExactMatchBoost float64 `yaml:"exact_match_boost"`
	DefinitionBoost float64 `yaml:"definition_boost"`
	TermWeight      float64 `yaml:"term_weight"`
	MaxTermScore    float64 `yaml:"max_term_score"`
	FilenameBonus   float64 `yaml:"filename_bonus"`
	MinTokenLength  int     `yaml:"min_token_length"`
}

// DefaultScoring returns the default boosts
func DefaultScoring() Scoring {
	return Scoring{
		ExactMatchBoost: 10,
		DefinitionBoost: 50,
		TermWeight:      0.1,
		MaxTermScore:    9,
		FilenameBonus:   2,
		MinTokenLength:  3,
	}
}

// Validate checks that boosts are usable
func (s Scoring) Validate() error {
	if s.ExactMatchBoost <= 0 {
		return fmt.Errorf("exact_match_boost must be positive, got %v", s.ExactMatchBoost)
	}
	if s.DefinitionBoost < 0 || s.TermWeight < 0 || s.FilenameBonus < 0 {
		return fmt.Errorf("boosts must be non-negative")
	}
	if s.MaxTermScore < 0 || s.MaxTermScore >= s.ExactMatchBoost {
		return fmt.Errorf("max_term_score must be in [0, exact_match_boost), got %v", s.MaxTermScore)
	}
	if s.MinTokenLength < 1 {
		return fmt.Errorf("min_token_length must be at least 1, got %d", s.MinTokenLength)
	}
	return nil
}

// Tokenize lowercases text and splits it on characters outside [a-z0-9_],
// keeping unique tokens of at least minLen bytes in first-seen order.
func Tokenize(text string, minLen int) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_')
	})

	seen := make(map[string]struct{}, len(fields))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < minLen {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		tokens = append(tokens, f)
	}
	return tokens
}

// scorer holds the per-query state derived once and reused for every item
type scorer struct {
	cfg        Scoring
	query      string // trimmed, case preserved
	lowerQuery string
	terms      []string
	definition *regexp.Regexp
}

func newScorer(cfg Scoring, query string) *scorer {
	q := strings.TrimSpace(query)
	s := &scorer{
		cfg:        cfg,
		query:      q,
		lowerQuery: strings.ToLower(q),
		terms:      searchTerms(q, cfg.MinTokenLength),
	}
	s.definition = definitionPattern(q)
	return s
}

// searchTerms returns the query tokens, or the whole lowercased query when
// tokenization yields nothing.
func searchTerms(query string, minLen int) []string {
	terms := Tokenize(query, minLen)
	if len(terms) == 0 {
		if q := strings.ToLower(strings.TrimSpace(query)); q != "" {
			terms = []string{q}
		}
	}
	return terms
}

// definitionPattern matches query as the name of a declaration, e.g.
// "function query", "export default class query", "def query", "func (r *T) query".
func definitionPattern(query string) *regexp.Regexp {
	if query == "" {
		return nil
	}
	expr := `(?:export\s+(?:default\s+)?(?:async\s+)?)?` +
		`(?:function\*?|class|const|def|func(?:\s*\([^)]*\))?)\s+` +
		regexp.QuoteMeta(query)
	if r, _ := utf8.DecodeLastRuneInString(query); isWordRune(r) {
		expr += `\b`
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil
	}
	return re
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// score computes the lexical score of one item
func (s *scorer) score(item *types.IndexedItem) (float64, *types.LexicalExplanation) {
	exp := &types.LexicalExplanation{}
	if s.lowerQuery == "" {
		return 0, exp
	}

	lowerContent := strings.ToLower(item.Content)

	exp.ExactMatches = strings.Count(lowerContent, s.lowerQuery)
	exp.ExactScore = float64(exp.ExactMatches) * s.cfg.ExactMatchBoost

	if s.definition != nil {
		exp.DefinitionMatches = len(s.definition.FindAllStringIndex(item.Content, -1))
		exp.DefinitionScore = float64(exp.DefinitionMatches) * s.cfg.DefinitionBoost
	}

	var termScore float64
	for _, term := range s.terms {
		n := strings.Count(lowerContent, term)
		if n == 0 {
			continue
		}
		exp.MatchedTerms = append(exp.MatchedTerms, term)
		termScore += float64(n) * s.cfg.TermWeight
	}
	if termScore > s.cfg.MaxTermScore {
		termScore = s.cfg.MaxTermScore
	}
	exp.TermScore = termScore

	lowerPath := strings.ToLower(item.Path)
	for _, term := range s.terms {
		if strings.Contains(lowerPath, term) {
			exp.FilenameScore = s.cfg.FilenameBonus
			break
		}
	}

	return exp.Total(), exp
}
