package terms

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kgrail/kgrail/pkg/graph"
	"github.com/kgrail/kgrail/pkg/types"
)

const fuzzyMatchThreshold = 0.85

var titleCaseRe = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\b`)

// TitleCasePhrases extracts Title Case phrases from a query, the usual
// shape of a defined term mentioned in prose.
func TitleCasePhrases(query string) []string {
	var phrases []string
	for _, p := range titleCaseRe.FindAllString(query, -1) {
		if p = strings.TrimSpace(p); p != "" {
			phrases = append(phrases, p)
		}
	}
	return phrases
}

// intents that ask what something means.
var definitionalIntents = map[string]struct{}{
	"define":       {},
	"explain_term": {},
	"what_is":      {},
	"means":        {},
	"definition":   {},
	"educational":  {},
}

// ShouldActivate decides whether term resolution should run for a query.
// Generic corpora never activate. Otherwise any of the following does:
// a definitional intent; a title-case phrase matching a graph term exactly
// or by fuzzy similarity; or a high-similarity initial result from a
// governing-legal document that references a defined term. The returned
// string explains the decision.
func ShouldActivate(query, intent string, corpusRegime types.Regime, initialResults []types.ScoredChunk, g *graph.Graph) (bool, string) {
	if corpusRegime == types.RegimeGenericGuide {
		return false, "corpus_regime=GENERIC, term graph not consulted"
	}

	var reasons []string
	if _, ok := definitionalIntents[intent]; ok {
		reasons = append(reasons, "intent="+intent)
	}

	if g != nil {
		for _, phrase := range TitleCasePhrases(query) {
			slug := Slug(phrase)
			if g.HasNode("defterm:"+slug) || g.HasNode("term:"+slug) {
				reasons = append(reasons, fmt.Sprintf("title_case_match=%q", phrase))
				break
			}
			if match := fuzzyMatchTerm(phrase, g); match != "" {
				reasons = append(reasons, fmt.Sprintf("fuzzy_match=%q -> %s", phrase, match))
				break
			}
		}
	}

	legalHits := 0
	for _, row := range initialResults {
		if types.Regime(row.DocRegime) == types.RegimeGoverningDocLegal && row.DefTermRef && row.Similarity >= 0.75 {
			legalHits++
		}
	}
	if legalHits > 0 {
		reasons = append(reasons, fmt.Sprintf("high_conf_legal_chunks=%d", legalHits))
	}

	if len(reasons) > 0 {
		return true, strings.Join(reasons, " AND ")
	}
	return false, "no query-level triggers matched"
}

// fuzzyMatchTerm returns the best defterm:/term: node whose label is at
// least fuzzyMatchThreshold similar to the phrase, or "".
func fuzzyMatchTerm(phrase string, g *graph.Graph) string {
	norm := Normalize(phrase)
	best := ""
	bestRatio := 0.0
	for id := range g.Nodes {
		var label string
		switch {
		case strings.HasPrefix(id, "defterm:"):
			label = strings.TrimPrefix(id, "defterm:")
		case strings.HasPrefix(id, "term:"):
			label = strings.TrimPrefix(id, "term:")
		default:
			continue
		}
		label = strings.ToLower(strings.ReplaceAll(label, "_", " "))
		ratio := similarityRatio(norm, label)
		if ratio >= fuzzyMatchThreshold && ratio > bestRatio {
			best, bestRatio = id, ratio
		}
	}
	return best
}

// similarityRatio is the classic difflib ratio: 2*M/T where M is the
// total length of matching blocks from a longest-common-substring
// decomposition and T the combined length.
func similarityRatio(a, b string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}
	matched := matchingBlocks(a, b)
	return 2.0 * float64(matched) / float64(len(a)+len(b))
}

func matchingBlocks(a, b string) int {
	la, lb, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}
	total := size
	total += matchingBlocks(a[:la], b[:lb])
	total += matchingBlocks(a[la+size:], b[lb+size:])
	return total
}

func longestMatch(a, b string) (int, int, int) {
	bestA, bestB, bestSize := 0, 0, 0
	// lengths[j] is the longest common suffix ending at a[i], b[j].
	lengths := make([]int, len(b)+1)
	for i := 0; i < len(a); i++ {
		prev := 0
		for j := 0; j < len(b); j++ {
			current := lengths[j+1]
			if a[i] == b[j] {
				lengths[j+1] = prev + 1
				if lengths[j+1] > bestSize {
					bestSize = lengths[j+1]
					bestA = i - bestSize + 1
					bestB = j - bestSize + 1
				}
			} else {
				lengths[j+1] = 0
			}
			prev = current
		}
	}
	return bestA, bestB, bestSize
}
