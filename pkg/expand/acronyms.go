package expand

import (
	"regexp"
	"strings"
)

// AcronymResolver expands uppercase domain acronyms inline using a static
// dictionary: "PSA" becomes "PSA (Pooling and Servicing Agreement)".
type AcronymResolver struct {
	dict map[string]string
}

// NewAcronymResolver returns a resolver with an empty dictionary.
func NewAcronymResolver() *AcronymResolver {
	return &AcronymResolver{dict: map[string]string{}}
}

// Load reads the acronym dictionary (YAML or JSON) from path. A missing
// file leaves the dictionary empty.
func (r *AcronymResolver) Load(path string) error {
	var dict map[string]string
	if err := loadDictFile(path, &dict); err != nil {
		return err
	}
	if dict != nil {
		upper := make(map[string]string, len(dict))
		for k, v := range dict {
			upper[strings.ToUpper(k)] = v
		}
		r.dict = upper
	}
	return nil
}

// Set replaces the dictionary. Keys are uppercased.
func (r *AcronymResolver) Set(dict map[string]string) {
	upper := make(map[string]string, len(dict))
	for k, v := range dict {
		upper[strings.ToUpper(k)] = v
	}
	r.dict = upper
}

var acronymRe = regexp.MustCompile(`\b[A-Z]{2,6}\b`)

// Expand rewrites known 2-6 letter uppercase tokens as
// "ACRONYM (expansion)", leaving unknown tokens untouched.
func (r *AcronymResolver) Expand(query string) string {
	if len(r.dict) == 0 {
		return query
	}
	return acronymRe.ReplaceAllStringFunc(query, func(acronym string) string {
		if expansion, ok := r.dict[acronym]; ok {
			return acronym + " (" + expansion + ")"
		}
		return acronym
	})
}

// ExpandTokens appends the expansion after each known acronym token.
func (r *AcronymResolver) ExpandTokens(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, token := range tokens {
		out = append(out, token)
		if expansion, ok := r.dict[strings.ToUpper(token)]; ok {
			out = append(out, expansion)
		}
	}
	return out
}
