// Package expand broadens queries before retrieval: three-tier synonym
// expansion, acronym resolution, and multi-query variation generation
// for rank fusion.
package expand

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"gopkg.in/yaml.v3"
)

// Defaults for the learned-synonym admission gate.
const (
	DefaultMinConfidence = 0.7
	DefaultMinDocCount   = 2
)

// LearnedSynonym is one auto-learned entry; it is consulted only when it
// clears the confidence and doc-count gates.
type LearnedSynonym struct {
	Synonyms   []string `json:"synonyms" yaml:"synonyms"`
	Confidence float64  `json:"confidence" yaml:"confidence"`
	DocCount   int      `json:"doc_count" yaml:"doc_count"`
}

// Expander applies the three synonym tiers: a human-approved static
// dictionary (always), a per-regime learned dictionary (gated), and an
// optional entity tier supplied by the caller.
type Expander struct {
	MinConfidence float64
	MinDocCount   int

	static  map[string][]string
	learned map[string]map[string]LearnedSynonym
}

// NewExpander returns an expander with empty dictionaries.
func NewExpander() *Expander {
	return &Expander{
		MinConfidence: DefaultMinConfidence,
		MinDocCount:   DefaultMinDocCount,
		static:        map[string][]string{},
		learned:       map[string]map[string]LearnedSynonym{},
	}
}

// LoadStatic reads the human-approved synonym dictionary from a YAML or
// JSON file. A missing file leaves the dictionary empty.
func (e *Expander) LoadStatic(path string) error {
	var dict map[string][]string
	if err := loadDictFile(path, &dict); err != nil {
		return err
	}
	if dict != nil {
		lowered := make(map[string][]string, len(dict))
		for term, syns := range dict {
			lowered[strings.ToLower(term)] = syns
		}
		e.static = lowered
	}
	return nil
}

// LoadLearned reads the per-regime learned dictionary. A missing or
// unparseable file leaves the learned tier empty.
func (e *Expander) LoadLearned(path string) error {
	var dict map[string]map[string]LearnedSynonym
	if err := loadDictFile(path, &dict); err != nil {
		// Learned synonyms are best-effort.
		return nil
	}
	if dict != nil {
		e.learned = dict
	}
	return nil
}

// loadDictFile parses YAML or JSON by extension. JSON that fails to parse
// is run through jsonrepair first; these dictionaries are hand-edited.
func loadDictFile(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read dictionary %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("parse dictionary %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(raw, out); err != nil {
			repaired, repairErr := jsonrepair.JSONRepair(string(raw))
			if repairErr != nil {
				return fmt.Errorf("parse dictionary %s: %w", path, err)
			}
			if err := json.Unmarshal([]byte(repaired), out); err != nil {
				return fmt.Errorf("parse repaired dictionary %s: %w", path, err)
			}
		}
	}
	return nil
}

// SetStatic replaces the static dictionary. Keys are lowercased.
func (e *Expander) SetStatic(dict map[string][]string) {
	lowered := make(map[string][]string, len(dict))
	for term, syns := range dict {
		lowered[strings.ToLower(term)] = syns
	}
	e.static = lowered
}

// SetLearned replaces the learned dictionary, keyed by regime/doc type.
func (e *Expander) SetLearned(dict map[string]map[string]LearnedSynonym) {
	e.learned = dict
}

// Synonyms returns the static synonyms for a single term.
func (e *Expander) Synonyms(term string) []string {
	return append([]string(nil), e.static[strings.ToLower(term)]...)
}

var tokenRe = regexp.MustCompile(`\b[a-z]{3,}\b`)

// Expand appends synonym expansions after an " OR " marker, preserving
// the original query. Each matched term contributes up to maxExpansions
// synonyms; entityTerms (tier 0, from optional NLP) lead the expansion
// list. docType selects the learned-tier regime; empty skips that tier.
func (e *Expander) Expand(query string, maxExpansions int, docType string, entityTerms []string) string {
	if maxExpansions <= 0 {
		maxExpansions = 3
	}
	tokens := tokenRe.FindAllString(strings.ToLower(query), -1)
	seen := map[string]struct{}{}
	for _, t := range tokens {
		seen[t] = struct{}{}
	}
	var expansions []string
	add := func(syn string) {
		lowered := strings.ToLower(syn)
		if len(lowered) < 3 {
			return
		}
		if _, dup := seen[lowered]; dup {
			return
		}
		seen[lowered] = struct{}{}
		expansions = append(expansions, lowered)
	}

	for i, entity := range entityTerms {
		if i >= maxExpansions {
			break
		}
		add(entity)
	}

	for _, token := range tokens {
		syns := e.static[token]
		for i, syn := range syns {
			if i >= maxExpansions {
				break
			}
			add(syn)
		}
	}

	if regime, ok := e.learned[docType]; docType != "" && ok {
		queryLower := strings.ToLower(query)
		terms := make([]string, 0, len(regime))
		for term := range regime {
			terms = append(terms, term)
		}
		sort.Strings(terms)
		for _, term := range terms {
			record := regime[term]
			if !e.admitLearned(record) {
				continue
			}
			hit := false
			if strings.Contains(term, " ") {
				hit = strings.Contains(queryLower, term)
			} else {
				for _, token := range tokens {
					if token == term {
						hit = true
						break
					}
				}
			}
			if !hit {
				continue
			}
			for i, syn := range record.Synonyms {
				if i >= maxExpansions {
					break
				}
				add(syn)
			}
		}
	}

	if len(expansions) == 0 {
		return query
	}
	return query + " OR " + strings.Join(expansions, " ")
}

func (e *Expander) admitLearned(record LearnedSynonym) bool {
	minConf := e.MinConfidence
	if minConf <= 0 {
		minConf = DefaultMinConfidence
	}
	minDocs := e.MinDocCount
	if minDocs <= 0 {
		minDocs = DefaultMinDocCount
	}
	return record.Confidence >= minConf && record.DocCount >= minDocs
}
