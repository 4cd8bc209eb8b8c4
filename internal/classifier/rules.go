package classifier

import (
	"fmt"
	"regexp"
	"strings"
)

type category int

const (
	categoryCode category = iota
	categoryDoc
)

// rule is one (pattern, category) entry. Rules are evaluated in slice order.
type rule struct {
	name     string
	category category
	pattern  *regexp.Regexp
	lower    bool // match against the lowercased query
	all      bool // report every match instead of the first
}

// match returns a signal naming the rule and the text that fired it
func (r rule) match(raw, lower string) (string, bool) {
	text := raw
	if r.lower {
		text = lower
	}

	if r.all {
		found := r.pattern.FindAllString(text, -1)
		if len(found) == 0 {
			return "", false
		}
		return fmt.Sprintf("%s(%s)", r.name, strings.Join(dedupe(found), ",")), true
	}

	loc := r.pattern.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	return fmt.Sprintf("%s(%s)", r.name, text[loc[0]:loc[1]]), true
}

// sourceExtensions are the file extensions that mark a query as a code lookup
var sourceExtensions = []string{
	"go", "py", "js", "ts", "tsx", "jsx", "java", "rs", "c", "cc", "cpp", "h", "hpp",
	"cs", "rb", "php", "swift", "kt", "scala", "sh", "sql", "vue",
}

// docVocabulary holds words and phrases typical of documentation queries
var docVocabulary = []string{
	"guide", "tutorial", "documentation", "manual", "readme", "instructions",
	"setup", "install", "configure", "strategy", "approach", "pattern",
	"best practice", "principle", "concept", "overview", "security",
	"monitoring", "testing", "deployment", "migration", "troubleshooting",
}

func defaultRules() []rule {
	return []rule{
		// Code indicators, evaluated against the raw query
		{
			name:     "source_extension",
			category: categoryCode,
			pattern:  regexp.MustCompile(`(?i)\.(?:` + strings.Join(sourceExtensions, "|") + `)$`),
		},
		{
			name:     "verb_prefix",
			category: categoryCode,
			pattern:  regexp.MustCompile(`^(?:get|set|create|update|delete|find|search|list|add|remove)[A-Z]`),
		},
		{
			name:     "pascal_case",
			category: categoryCode,
			pattern:  regexp.MustCompile(`^[A-Z][a-z]+[A-Z]`),
		},
		{
			name:     "camel_case",
			category: categoryCode,
			pattern:  regexp.MustCompile(`[a-z][A-Z]`),
		},
		{
			name:     "call_syntax",
			category: categoryCode,
			pattern:  regexp.MustCompile(`\(\s*\)$`),
		},

		// Documentation indicators, evaluated against the lowercased query
		{
			name:     "interrogative",
			category: categoryDoc,
			pattern:  regexp.MustCompile(`^(?:how to|how do|what is|what are|why|when|where)\b`),
			lower:    true,
		},
		{
			name:     "doc_vocabulary",
			category: categoryDoc,
			pattern:  regexp.MustCompile(`\b(?:` + strings.Join(inflect(docVocabulary), "|") + `)\b`),
			lower:    true,
			all:      true,
		},
	}
}

// inflect turns each word into a pattern that also accepts its plural and
// verb forms: guide, guides, guided, guiding; strategy, strategies.
func inflect(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		q := regexp.QuoteMeta(w)
		switch {
		case strings.HasSuffix(w, "e"):
			out = append(out, q[:len(q)-1]+`(?:e|es|ed|ing)`)
		case strings.HasSuffix(w, "y"):
			out = append(out, q[:len(q)-1]+`(?:y|ies)`)
		default:
			out = append(out, q+`(?:s|es|ed|ing)?`)
		}
	}
	return out
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
