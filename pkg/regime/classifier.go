// Package regime classifies a document's register as governing/legal,
// mixed, or generic. The label steers ingestion chunk sizing, term
// resolver activation, and intent-based ranking.
package regime

import (
	"regexp"
	"strings"

	"github.com/kgrail/kgrail/pkg/types"
)

// signal is one weighted boolean detector. Classification arithmetic is
// independent of how many signals the table carries.
type signal struct {
	name   string
	weight int
	detect func(text string) bool
}

var signals = []signal{
	{"definitions_section", 25, hasDefinitionsSection},
	{"amendment_boilerplate", 20, hasAmendmentBoilerplate},
	{"named_party_structure", 15, hasNamedPartyStructure},
	{"section_article_headings", 10, hasSectionArticleHeadings},
	{"legal_citation_density", 15, hasLegalCitationDensity},
	{"signature_notarization", 15, hasSignatureNotarization},
}

const filenameBonus = 10

var (
	definedTermRe = regexp.MustCompile(`(?i)["\x{201c}][A-Z][a-zA-Z]+(?:\s+[A-Z][a-zA-Z]+)*["\x{201d}]\s+(?:means?|shall\s+mean|has\s+the\s+meaning|is\s+defined\s+as|refers?\s+to)`)
	definitionsHeadRe = regexp.MustCompile(`(?im)^#{0,4}\s*(?:ARTICLE|SECTION)?\s*[IVXLC0-9.]*\s*DEFINITIONS?\s*$`)

	amendmentRe = regexp.MustCompile(`(?i)\b(amendment|supplement|restated|as amended|amended and restated|supplemental indenture|first amendment|second amendment)\b`)

	partyRoleRe = regexp.MustCompile(`(?i)\b(the\s+)?(trustee|servicer|master\s+servicer|sub[- ]?servicer|depositor|issuer|seller|purchaser|underwriter|sponsor|originator|custodian|paying\s+agent|certificateholder|certificate\s+holder|borrower|lender|guarantor|obligor|mortgagor)\b`)

	articleHeadingRe = regexp.MustCompile(`(?im)^\s*(ARTICLE|PART)\s+[IVXLC]+[.\s]`)
	sectionHeadingRe = regexp.MustCompile(`(?im)^\s*SECTION\s+\d+\.\d+[.\s(]`)
	inlineSectionRe  = regexp.MustCompile(`(?i)\bSection\s+\d+\.\d+[.\s:]`)

	legalCitationRes = []*regexp.Regexp{
		regexp.MustCompile(`§\s*\d`),
		regexp.MustCompile(`(?i)\bU\.?S\.?C\.?\b`),
		regexp.MustCompile(`(?i)\bpursuant to\b`),
		regexp.MustCompile(`(?i)\bhereinafter\b`),
		regexp.MustCompile(`(?i)\bherein\b`),
		regexp.MustCompile(`(?i)\bwhereas\b`),
		regexp.MustCompile(`(?i)\bnotwithstanding\b`),
		regexp.MustCompile(`(?i)\bshall mean\b`),
		regexp.MustCompile(`(?i)\bshall not\b`),
	}

	signatureRe = regexp.MustCompile(`(?i)\b(IN WITNESS WHEREOF|NOTARIZED|ACKNOWLEDGED AND AGREED|SIGNATURE PAGE|EXECUTED AND DELIVERED|BY:\s*_{3,}|Authorized Signatory|Witness:)`)

	legalFilenameRe = regexp.MustCompile(`(?i)(agreement|indenture|supplement|psa|pooling|servicing|prospectus|offering|trust|mortgage|contract|bylaws|policy)`)
)

// hasDefinitionsSection fires on a definitions heading together with
// dictionary-style defined-term entries, or on several such entries alone.
// A bare "Definitions" heading with no entries is not enough.
func hasDefinitionsSection(text string) bool {
	hits := len(definedTermRe.FindAllString(text, -1))
	if definitionsHeadRe.MatchString(text) && hits >= 1 {
		return true
	}
	return hits >= 5
}

func hasAmendmentBoilerplate(text string) bool {
	return amendmentRe.MatchString(text)
}

// hasNamedPartyStructure requires at least three distinct party roles, not
// three mentions of the same role.
func hasNamedPartyStructure(text string) bool {
	distinct := map[string]struct{}{}
	for _, m := range partyRoleRe.FindAllStringSubmatch(text, -1) {
		role := strings.ToLower(strings.Join(strings.Fields(m[2]), " "))
		distinct[role] = struct{}{}
	}
	return len(distinct) >= 3
}

func hasSectionArticleHeadings(text string) bool {
	head := text
	if len(head) > 20000 {
		head = head[:20000]
	}
	inline := len(inlineSectionRe.FindAllString(head, -1))
	if inline > 5 {
		inline = 5
	}
	total := len(articleHeadingRe.FindAllString(text, -1)) +
		len(sectionHeadingRe.FindAllString(text, -1)) +
		inline
	return total >= 2
}

func hasLegalCitationDensity(text string) bool {
	hits := 0
	for _, re := range legalCitationRes {
		if re.MatchString(text) {
			hits++
		}
	}
	return hits >= 3
}

func hasSignatureNotarization(text string) bool {
	return signatureRe.MatchString(text)
}

// Classify scores text against the signal table plus a filename bonus and
// maps the capped score to a regime label. Deterministic: the same text
// and filename always yield the same result.
func Classify(text, filename string) types.RegimeResult {
	result := types.RegimeResult{
		Signals:  make(map[string]bool, len(signals)),
		Filename: filename,
	}
	score := 0
	for _, s := range signals {
		fired := s.detect(text)
		result.Signals[s.name] = fired
		if fired {
			score += s.weight
		}
	}
	if filename != "" && legalFilenameRe.MatchString(filename) {
		score += filenameBonus
	}
	if score > 100 {
		score = 100
	}
	result.Score = score

	switch {
	case score >= 70:
		result.Regime = types.RegimeGoverningDocLegal
	case score >= 40:
		result.Regime = types.RegimeMixed
	default:
		result.Regime = types.RegimeGenericGuide
	}
	return result
}

// CorpusRegime derives the corpus-level label by majority vote over
// per-document results. Ties break toward the more legal label.
func CorpusRegime(results []types.RegimeResult) types.Regime {
	if len(results) == 0 {
		return types.RegimeGenericGuide
	}
	var legal, mixed, generic int
	for _, r := range results {
		switch r.Regime {
		case types.RegimeGoverningDocLegal:
			legal++
		case types.RegimeMixed:
			mixed++
		default:
			generic++
		}
	}
	if legal >= mixed && legal >= generic {
		return types.RegimeGoverningDocLegal
	}
	if mixed >= generic {
		return types.RegimeMixed
	}
	return types.RegimeGenericGuide
}
