package expand

import (
	"regexp"
	"strings"
)

// DefaultMaxVariations caps multi-query generation.
const DefaultMaxVariations = 4

var (
	whatIsRe  = regexp.MustCompile(`(?i)^what\s+(is|are)\s+`)
	howToRe   = regexp.MustCompile(`(?i)^how\s+(do\s+i|to|can\s+i)\s+`)
	listAllRe = regexp.MustCompile(`(?i)^(list|show)\s+(all|every)\s+`)
)

var variationStopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"for": {}, "to": {}, "of": {}, "in": {}, "on": {}, "at": {}, "by": {},
	"do": {}, "does": {}, "how": {}, "what": {}, "which": {}, "can": {},
	"i": {}, "we": {}, "my": {},
}

// GenerateVariations produces up to maxVariations distinct retrieval
// queries: the original, a synonym-substituted form, a question
// reformulation, and a keyword-only variant. Deduplicated
// case-insensitively; the original always leads.
func (e *Expander) GenerateVariations(query string, maxVariations int) []string {
	if maxVariations <= 0 {
		maxVariations = DefaultMaxVariations
	}

	seen := map[string]struct{}{}
	var out []string
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" || len(out) >= maxVariations {
			return
		}
		key := strings.ToLower(v)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}

	add(query)
	add(e.substituteSynonyms(query))
	add(reformulate(query))
	add(keywordVariant(query))
	return out
}

// substituteSynonyms replaces each term that has a static synonym with
// its first synonym, producing a parallel phrasing of the query.
func (e *Expander) substituteSynonyms(query string) string {
	words := strings.Fields(query)
	changed := false
	for i, w := range words {
		trimmed := strings.ToLower(strings.Trim(w, ".,;:!?"))
		if syns := e.static[trimmed]; len(syns) > 0 {
			words[i] = syns[0]
			changed = true
		}
	}
	if !changed {
		return ""
	}
	return strings.Join(words, " ")
}

// reformulate applies a pattern-specific rewrite for the common question
// shapes. Queries matching none of the patterns get no reformulation.
func reformulate(query string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(query), "?")
	switch {
	case whatIsRe.MatchString(trimmed):
		subject := whatIsRe.ReplaceAllString(trimmed, "")
		return subject + " definition meaning"
	case howToRe.MatchString(trimmed):
		action := howToRe.ReplaceAllString(trimmed, "")
		return "steps to " + action
	case listAllRe.MatchString(trimmed):
		subject := listAllRe.ReplaceAllString(trimmed, "")
		return subject + " complete reference"
	}
	return ""
}

// keywordVariant strips stopwords and question scaffolding, leaving the
// content-bearing terms.
func keywordVariant(query string) string {
	var kept []string
	for _, w := range strings.Fields(strings.ToLower(query)) {
		trimmed := strings.Trim(w, ".,;:!?")
		if trimmed == "" {
			continue
		}
		if _, stop := variationStopwords[trimmed]; stop {
			continue
		}
		kept = append(kept, trimmed)
	}
	if len(kept) == 0 {
		return ""
	}
	return strings.Join(kept, " ")
}
