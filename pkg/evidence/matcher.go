// Package evidence splits generated answers into claims, matches each
// claim against retrieved passages with a tiered fuzzy cascade, and
// enforces the provenance contract over the resulting ledger.
package evidence

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kgrail/kgrail/pkg/types"
)

// EvidenceMatch records the best supporting span found for one claim.
type EvidenceMatch struct {
	ClaimText      string  `json:"claim_text"`
	MatchedChunkID string  `json:"matched_chunk_id"`
	SourceURI      string  `json:"source_uri"`
	MatchStart     int     `json:"match_start"`
	MatchEnd       int     `json:"match_end"`
	MatchScore     float64 `json:"match_score"`
	MatchMethod    string  `json:"match_method"`
	Citation       string  `json:"citation"`
}

// Ledger aggregates the claims of one generated answer and the evidence
// found for them. Request-scoped; persisted only through the audit log.
type Ledger struct {
	Query            string          `json:"query"`
	GeneratedAnswer  string          `json:"generated_answer"`
	Claims           []string        `json:"claims"`
	EvidenceMatches  []EvidenceMatch `json:"evidence_matches"`
	Coverage         float64         `json:"coverage"`
	UncitedClaims    []string        `json:"uncited_claims"`
	Timestamp        string          `json:"timestamp"`
	StrictModePassed *bool           `json:"strict_mode_passed"`
}

// Match method names, in cascade order.
const (
	MethodExact            = "exact"
	MethodCasefolded       = "casefolded"
	MethodTokenBoundary    = "token_boundary"
	MethodNumericTolerance = "numeric_tolerance"
	MethodCodeNormalized   = "code_normalized"
)

// Matcher runs the five-tier matching cascade. The zero value is not
// usable; construct with NewMatcher.
type Matcher struct {
	CasefoldingEnabled bool
	CodeNormalization  bool
	AbsoluteTolerance  float64
	RelativeTolerance  float64

	cascade []matcherFunc
}

// matcherFunc tries one strategy against a claim/passage pair. A nil
// result means the strategy did not fire.
type matcherFunc func(claim, content string) *span

type span struct {
	start, end int
	score      float64
	method     string
}

// NewMatcher returns a matcher with every tier enabled and 1% numeric
// tolerances.
func NewMatcher() *Matcher {
	m := &Matcher{
		CasefoldingEnabled: true,
		CodeNormalization:  true,
		AbsoluteTolerance:  0.01,
		RelativeTolerance:  0.01,
	}
	m.cascade = []matcherFunc{
		m.matchExact,
		m.matchCasefolded,
		m.matchTokenBoundary,
		m.matchNumericTolerance,
		m.matchCodeNormalized,
	}
	return m
}

// SplitClaims breaks a generated answer into sentence-like claims. The
// boundary is terminal punctuation followed by whitespace and an
// uppercase letter, quote, or opening bracket.
func SplitClaims(answer string) []string {
	text := strings.TrimSpace(answer)
	if text == "" {
		return nil
	}

	var claims []string
	start := 0
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if runes[i] != '.' && runes[i] != '!' && runes[i] != '?' {
			continue
		}
		j := i + 1
		for j < len(runes) && isSpace(runes[j]) {
			j++
		}
		if j == i+1 || j >= len(runes) {
			continue
		}
		if !startsClaim(runes[j]) {
			continue
		}
		if claim := strings.TrimSpace(string(runes[start : i+1])); claim != "" {
			claims = append(claims, claim)
		}
		start = j
		i = j - 1
	}
	if claim := strings.TrimSpace(string(runes[start:])); claim != "" {
		claims = append(claims, claim)
	}
	return claims
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func startsClaim(r rune) bool {
	if r >= 'A' && r <= 'Z' {
		return true
	}
	switch r {
	case '[', '"', '“':
		return true
	}
	return false
}

func (m *Matcher) matchExact(claim, content string) *span {
	if idx := strings.Index(content, claim); idx >= 0 {
		return &span{idx, idx + len(claim), 1.0, MethodExact}
	}
	return nil
}

func (m *Matcher) matchCasefolded(claim, content string) *span {
	if !m.CasefoldingEnabled {
		return nil
	}
	if idx := strings.Index(strings.ToLower(content), strings.ToLower(claim)); idx >= 0 {
		return &span{idx, idx + len(claim), 0.95, MethodCasefolded}
	}
	return nil
}

var (
	wsRe    = regexp.MustCompile(`\s+`)
	punctRe = regexp.MustCompile(`\s*([.,;:!?])\s*`)
)

// normalizeTokens lowercases, collapses whitespace, and standardizes the
// spacing around punctuation so reflowed text still matches.
func normalizeTokens(text string) string {
	lowered := strings.ToLower(text)
	lowered = wsRe.ReplaceAllString(lowered, " ")
	lowered = punctRe.ReplaceAllString(lowered, "$1 ")
	return strings.TrimSpace(wsRe.ReplaceAllString(lowered, " "))
}

func (m *Matcher) matchTokenBoundary(claim, content string) *span {
	normClaim := normalizeTokens(claim)
	normContent := normalizeTokens(content)
	if idx := strings.Index(normContent, normClaim); idx >= 0 {
		return &span{idx, idx + len(normClaim), 0.90, MethodTokenBoundary}
	}
	return nil
}

var numberRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

func extractNumbers(text string) []float64 {
	var out []float64
	for _, raw := range numberRe.FindAllString(text, -1) {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			out = append(out, v)
		}
	}
	return out
}

// matchNumericTolerance fires when every number in the claim has a
// counterpart in the passage within max(absTol, value*relTol).
func (m *Matcher) matchNumericTolerance(claim, content string) *span {
	claimNums := extractNumbers(claim)
	contentNums := extractNumbers(content)
	if len(claimNums) == 0 || len(contentNums) == 0 {
		return nil
	}
	for _, value := range claimNums {
		tolerance := m.AbsoluteTolerance
		if rel := value * m.RelativeTolerance; rel > tolerance {
			tolerance = rel
		}
		found := false
		for _, candidate := range contentNums {
			diff := candidate - value
			if diff < 0 {
				diff = -diff
			}
			if diff <= tolerance {
				found = true
				break
			}
		}
		if !found {
			return nil
		}
	}
	end := len(claim)
	if len(content) < end {
		end = len(content)
	}
	return &span{0, end, 0.85, MethodNumericTolerance}
}

var codeStripRe = regexp.MustCompile(`[-_\s]+`)

func normalizeCodes(text string) string {
	return codeStripRe.ReplaceAllString(strings.ToUpper(text), "")
}

func (m *Matcher) matchCodeNormalized(claim, content string) *span {
	if !m.CodeNormalization {
		return nil
	}
	normClaim := normalizeCodes(claim)
	if normClaim == "" {
		return nil
	}
	if idx := strings.Index(normalizeCodes(content), normClaim); idx >= 0 {
		return &span{idx, idx + len(normClaim), 0.85, MethodCodeNormalized}
	}
	return nil
}

// FindMatch runs the cascade over one claim/chunk pair and returns the
// first strategy that fires, or nil.
func (m *Matcher) FindMatch(claim string, chunk types.Chunk) *EvidenceMatch {
	if claim == "" || chunk.Content == "" {
		return nil
	}
	for _, try := range m.cascade {
		if s := try(claim, chunk.Content); s != nil {
			return &EvidenceMatch{
				ClaimText:      claim,
				MatchedChunkID: chunk.ChunkID,
				SourceURI:      chunkSource(chunk),
				MatchStart:     s.start,
				MatchEnd:       s.end,
				MatchScore:     s.score,
				MatchMethod:    s.method,
				Citation:       formatCitation(chunk),
			}
		}
	}
	return nil
}

func chunkSource(chunk types.Chunk) string {
	if chunk.SourceURI != "" {
		return chunk.SourceURI
	}
	if chunk.SourcePath != "" {
		return chunk.SourcePath
	}
	return chunk.DocID
}

func formatCitation(chunk types.Chunk) string {
	var parts []string
	if source := chunkSource(chunk); source != "" {
		parts = append(parts, source)
	}
	if chunk.SectionID != "" {
		parts = append(parts, chunk.SectionID)
	}
	if chunk.Page != 0 {
		parts = append(parts, fmt.Sprintf("p.%d", chunk.Page))
	}
	if len(parts) == 0 {
		return "[citation]"
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// MatchClaims splits the answer into claims and records, per claim, the
// highest-scoring match across all passages. Coverage is matched/total,
// or 0 when the answer produced no claims.
func (m *Matcher) MatchClaims(generatedAnswer string, chunks []types.Chunk, query string) *Ledger {
	claims := SplitClaims(generatedAnswer)

	var matches []EvidenceMatch
	matched := map[string]struct{}{}
	for _, claim := range claims {
		var best *EvidenceMatch
		for _, chunk := range chunks {
			match := m.FindMatch(claim, chunk)
			if match == nil {
				continue
			}
			if best == nil || match.MatchScore > best.MatchScore {
				best = match
			}
		}
		if best != nil {
			matches = append(matches, *best)
			matched[claim] = struct{}{}
		}
	}

	coverage := 0.0
	if len(claims) > 0 {
		coverage = float64(len(matches)) / float64(len(claims))
	}
	var uncited []string
	for _, claim := range claims {
		if _, ok := matched[claim]; !ok {
			uncited = append(uncited, claim)
		}
	}

	return &Ledger{
		Query:           query,
		GeneratedAnswer: generatedAnswer,
		Claims:          claims,
		EvidenceMatches: matches,
		Coverage:        coverage,
		UncitedClaims:   uncited,
		Timestamp:       time.Now().UTC().Format(time.RFC3339Nano),
	}
}
