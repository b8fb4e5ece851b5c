package search

import (
	"regexp"
	"strings"

	"github.com/kgrail/kgrail/pkg/types"
)

var errorCodeRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bERR-[A-Z]+-\d{3}\b`),
	regexp.MustCompile(`(?i)\bHTTP\s*\d{3}\b`),
	regexp.MustCompile(`(?i)\b[A-Z]+\d{3,4}\b`),
}

// ExtractErrorCodes pulls error/reference codes (ERR-UPL-013, HTTP 504,
// AUTH401) out of free text, uppercased.
func ExtractErrorCodes(text string) []string {
	var codes []string
	for _, re := range errorCodeRes {
		for _, m := range re.FindAllString(text, -1) {
			codes = append(codes, strings.ToUpper(m))
		}
	}
	return codes
}

var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"for": {}, "to": {}, "of": {}, "in": {}, "on": {}, "at": {}, "by": {},
}

var wordRe = regexp.MustCompile(`\b\w{3,}\b`)

// queryTerms returns the significant lowercased terms of a query.
func queryTerms(query string) []string {
	var terms []string
	for _, w := range wordRe.FindAllString(strings.ToLower(query), -1) {
		if _, stop := stopwords[w]; !stop {
			terms = append(terms, w)
		}
	}
	return terms
}

// Features holds the per-candidate signals feeding the rank formula.
type Features struct {
	ErrorCodeExactMatch float64
	IntentDocTypeMatch  float64
	TitleTermMatch      float64
	QueryKeywordMatch   float64
	ImagePenalty        float64
	EntityOverlap       float64
	KeyphraseMatch      float64
}

// ComputeFeatures derives the candidate's features against a query whose
// intent has already been detected.
func ComputeFeatures(query string, chunk types.ScoredChunk, intent string, expectedDocTypes []string) Features {
	var f Features

	codes := ExtractErrorCodes(query)
	if len(codes) > 0 {
		docCodes := map[string]struct{}{}
		for _, c := range ExtractErrorCodes(chunk.Content + " " + chunk.SourcePath) {
			docCodes[c] = struct{}{}
		}
		for _, c := range codes {
			if _, ok := docCodes[c]; ok {
				f.ErrorCodeExactMatch = 1.0
				break
			}
		}
	}

	// Rank-weighted doc-type alignment: first expected type scores 1.0,
	// second 0.5, and so on; high-confidence intents score half again.
	for rank, docType := range expectedDocTypes {
		if chunk.DocType == docType {
			f.IntentDocTypeMatch = 1.0 / float64(rank+1)
			if _, high := highConfidenceIntents[intent]; high {
				f.IntentDocTypeMatch *= 1.5
			}
			break
		}
	}

	terms := queryTerms(query)
	if len(terms) > 0 {
		pathLower := strings.ToLower(chunk.SourcePath)
		titleMatches := 0
		for _, term := range terms {
			if strings.Contains(pathLower, term) {
				titleMatches++
			}
		}
		f.TitleTermMatch = clamp01(float64(titleMatches) / float64(len(terms)))

		top := terms
		if len(top) > 5 {
			top = top[:5]
		}
		contentLower := strings.ToLower(chunk.Content)
		contentMatches := 0
		for _, term := range top {
			if strings.Contains(contentLower, term) {
				contentMatches++
			}
		}
		f.QueryKeywordMatch = clamp01(float64(contentMatches) / float64(len(top)))
	}

	if chunk.IsImageDesc {
		f.ImagePenalty = 1.0
	}
	return f
}

func clamp01(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	if v < 0 {
		return 0
	}
	return v
}

// entityOverlap is the Jaccard overlap of normalized entity surfaces.
func entityOverlap(queryEntities, chunkEntities []types.Entity) float64 {
	if len(queryEntities) == 0 || len(chunkEntities) == 0 {
		return 0.0
	}
	qs := map[string]struct{}{}
	for _, e := range queryEntities {
		qs[normalizeEntity(e.Text)] = struct{}{}
	}
	cs := map[string]struct{}{}
	for _, e := range chunkEntities {
		cs[normalizeEntity(e.Text)] = struct{}{}
	}
	intersection := 0
	for s := range qs {
		if _, ok := cs[s]; ok {
			intersection++
		}
	}
	union := len(qs) + len(cs) - intersection
	if union == 0 {
		return 0.0
	}
	return float64(intersection) / float64(union)
}

func normalizeEntity(text string) string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	normalized = strings.TrimPrefix(normalized, "the ")
	normalized = strings.TrimSuffix(normalized, "'s")
	normalized = strings.TrimSuffix(normalized, "s'")
	return strings.TrimSpace(normalized)
}

// keyphraseMatch counts query keyphrases with a substring relationship to
// any chunk keyphrase, normalized by query keyphrase count.
func keyphraseMatch(queryKeyphrases, chunkKeyphrases []types.Keyphrase) float64 {
	if len(queryKeyphrases) == 0 || len(chunkKeyphrases) == 0 {
		return 0.0
	}
	matches := 0
	for _, q := range queryKeyphrases {
		ql := strings.ToLower(q.Text)
		for _, c := range chunkKeyphrases {
			cl := strings.ToLower(c.Text)
			if strings.Contains(cl, ql) || strings.Contains(ql, cl) {
				matches++
				break
			}
		}
	}
	return clamp01(float64(matches) / float64(len(queryKeyphrases)))
}
