// Package terms extracts defined terms from document text and resolves
// the transitive dependency closure of a term against the knowledge graph.
package terms

import (
	"regexp"
	"sort"
	"strings"

	"github.com/kgrail/kgrail/pkg/types"
)

// Extraction strategies, in the confidence order they are applied.
const (
	StrategyRegexMeans         = "regex_means"
	StrategyDefinitionsSection = "definitions_section"
	StrategyBoldItalicMarker   = "bold_italic_marker"
	StrategyInlineReference    = "inline_reference"
)

const maxDefinitionLen = 500

// strategy pairs a fixed confidence with its extractor function, so the
// aggregation loop stays independent of the number of strategies.
type strategy struct {
	name       string
	confidence float64
	extract    func(text string) []types.DefinedTerm
}

// Extractor runs every strategy over a document and deduplicates the
// results, keeping the highest-confidence instance per surface form.
type Extractor struct {
	strategies []strategy
}

// NewExtractor returns an extractor with the four standard strategies.
func NewExtractor() *Extractor {
	return &Extractor{strategies: []strategy{
		{StrategyRegexMeans, 0.95, extractMeansPattern},
		{StrategyDefinitionsSection, 0.90, extractDefinitionsSection},
		{StrategyBoldItalicMarker, 0.85, extractBoldItalic},
		{StrategyInlineReference, 0.80, extractInlineReference},
	}}
}

// Extract runs all strategies. Empty or pure-prose text yields an empty
// slice, never an error.
func (e *Extractor) Extract(text string) []types.DefinedTerm {
	var all []types.DefinedTerm
	for _, s := range e.strategies {
		all = append(all, s.extract(text)...)
	}
	return dedupe(all)
}

var (
	quotedMeansRe = regexp.MustCompile(`(?i)["\x{201c}]([^"\x{201d}]{2,80})["\x{201d}]\s+(means|shall mean|is defined as|has the meaning)\s+(.{10,300}?)(\.|\n|$)`)
	bareMeansRe   = regexp.MustCompile(`\b([A-Z][A-Za-z0-9 _-]{1,60}?)\s+(?i:(means|is defined as))\s+(.{10,300}?)(\.|\n|$)`)
)

func extractMeansPattern(text string) []types.DefinedTerm {
	var out []types.DefinedTerm
	for _, re := range []*regexp.Regexp{quotedMeansRe, bareMeansRe} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			surface := trimTerm(m[1])
			if len(surface) < 2 || len(surface) > 80 {
				continue
			}
			out = append(out, types.DefinedTerm{
				SurfaceForm:        surface,
				DefinitionText:     clipDefinition(m[3]),
				Confidence:         0.95,
				ExtractionStrategy: StrategyRegexMeans,
			})
		}
	}
	return out
}

var (
	definitionsHeadingRe = regexp.MustCompile(`(?im)^#{0,4}\s*(?:ARTICLE|SECTION)?\s*[IVXLC0-9.]*\s*DEFINITIONS?\s*$`)
	nextSectionRe        = regexp.MustCompile(`(?im)^#{0,4}\s*(?:ARTICLE|SECTION)\s+[IVXLC0-9]+[.\s]`)
	definitionEntryRe    = regexp.MustCompile(`(?m)^\s*["\x{201c}]?([A-Z][A-Za-z0-9 /'-]{1,80})["\x{201d}]?\s*[:.\x{2014}\x{2013}-]+\s*(.{10,500})`)
)

func extractDefinitionsSection(text string) []types.DefinedTerm {
	loc := definitionsHeadingRe.FindStringIndex(text)
	if loc == nil {
		return nil
	}
	section := text[loc[1]:]
	if next := nextSectionRe.FindStringIndex(section); next != nil {
		section = section[:next[0]]
	} else if len(section) > 10000 {
		section = section[:10000]
	}

	var out []types.DefinedTerm
	for _, m := range definitionEntryRe.FindAllStringSubmatch(section, -1) {
		surface := trimTerm(m[1])
		if len(surface) < 2 {
			continue
		}
		out = append(out, types.DefinedTerm{
			SurfaceForm:        surface,
			DefinitionText:     clipDefinition(m[2]),
			Confidence:         0.90,
			ExtractionStrategy: StrategyDefinitionsSection,
			SourceSectionID:    "DEFINITIONS",
		})
	}
	return out
}

var boldItalicRe = regexp.MustCompile(`(?:\*\*|__)([A-Z][A-Za-z0-9 /'-]{1,80})(?:\*\*|__)\s*[:.\x{2014}\x{2013}-]+\s*(.{10,400})`)

func extractBoldItalic(text string) []types.DefinedTerm {
	var out []types.DefinedTerm
	for _, m := range boldItalicRe.FindAllStringSubmatch(text, -1) {
		out = append(out, types.DefinedTerm{
			SurfaceForm:        trimTerm(m[1]),
			DefinitionText:     clipDefinition(m[2]),
			Confidence:         0.85,
			ExtractionStrategy: StrategyBoldItalicMarker,
		})
	}
	return out
}

var inlineRefRe = regexp.MustCompile(`(?i)["\x{201c}]([A-Z][A-Za-z0-9 /'-]{1,80})["\x{201d}]\s*\(as defined (?:in|herein|above|below)(?:\s+(?:Section|Article)\s+[IVXLC0-9.]+)?\)`)

func extractInlineReference(text string) []types.DefinedTerm {
	var out []types.DefinedTerm
	for _, m := range inlineRefRe.FindAllStringSubmatch(text, -1) {
		out = append(out, types.DefinedTerm{
			SurfaceForm:        trimTerm(m[1]),
			DefinitionText:     "(cross-reference — defined elsewhere in the document)",
			Confidence:         0.80,
			ExtractionStrategy: StrategyInlineReference,
		})
	}
	return out
}

// dedupe keeps the highest-confidence instance per case-insensitive
// trimmed surface form, sorted by confidence descending then surface form.
func dedupe(terms []types.DefinedTerm) []types.DefinedTerm {
	best := map[string]types.DefinedTerm{}
	for _, t := range terms {
		key := strings.ToLower(strings.TrimSpace(t.SurfaceForm))
		if existing, ok := best[key]; !ok || t.Confidence > existing.Confidence {
			best[key] = t
		}
	}
	out := make([]types.DefinedTerm, 0, len(best))
	for _, t := range best {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].SurfaceForm < out[j].SurfaceForm
	})
	return out
}

func trimTerm(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"”“`)
}

func clipDefinition(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxDefinitionLen {
		s = s[:maxDefinitionLen]
	}
	return s
}
