// Package search ranks retrieved passages against a query using intent,
// error-code, graph, and keyword features, and fuses multi-variant
// retrievals with reciprocal rank fusion.
package search

import (
	"regexp"
	"strings"
)

// Intent names. Each maps to an ordered list of expected document types
// used for rank weighting, not hard filtering.
const (
	IntentExplicitTroubleshoot  = "explicit_troubleshoot"
	IntentExplicitRelease       = "explicit_release"
	IntentExplicitUserGuide     = "explicit_user_guide"
	IntentGoverningDoc          = "governing_doc"
	IntentGoverningDocDetail    = "governing_doc_detail"
	IntentReferenceCatalog      = "reference_catalog"
	IntentUIPageAccess          = "ui_page_access"
	IntentSOPProcedure          = "sop_procedure"
	IntentReleaseImprovement    = "release_improvement"
	IntentReleaseNotes          = "release_notes"
	IntentActiveTroubleshooting = "active_troubleshooting"
	IntentPolicy                = "policy"
	IntentTroubleshooting       = "troubleshooting"
	IntentHowTo                 = "how_to"
	IntentNavigationPage        = "navigation_page"
	IntentNavigation            = "navigation"
	IntentFileCapability        = "file_capability"
	IntentFeatureCapability     = "feature_capability"
	IntentRecommendation        = "recommendation"
	IntentEducational           = "educational"
	IntentGeneral               = "general"
)

// intentRule is one pattern class. Rules are tested in table order; the
// first match wins.
type intentRule struct {
	name     string
	pattern  *regexp.Regexp
	docTypes []string
}

var intentRules = []intentRule{
	// Explicit doc-type mentions outrank everything else.
	{IntentExplicitTroubleshoot, regexp.MustCompile(`\btroubleshooting (guide|doc)`), []string{"TROUBLESHOOT", "SOP"}},
	{IntentExplicitRelease, regexp.MustCompile(`\brelease\s+(note|doc|guide)`), []string{"RELEASE_NOTE"}},
	{IntentExplicitUserGuide, regexp.MustCompile(`\buser\s+guide`), []string{"USER_GUIDE"}},

	{IntentGoverningDoc, regexp.MustCompile(`\b(agreement|pooling|servicing|trust|indenture|psa|certificate\s*holder|trustee|obligor|servicer|depositor|beneficiary)\b`), []string{"GOVERNING_DOC"}},
	{IntentGoverningDocDetail, regexp.MustCompile(`\b(reporting\s+requirement|distribution\s+date|payment\s+date|record\s+date|remittance\s+report|statement\s+to\s+certificate)`), []string{"GOVERNING_DOC"}},

	// Catalog requests override error keywords.
	{IntentReferenceCatalog, regexp.MustCompile(`\b(list|show)\s+(all|every)\s+\w+\s+codes?\b|\bcatalog\b|\ball\s+error\s+codes?\b`), []string{"REFERENCE"}},

	{IntentUIPageAccess, regexp.MustCompile(`\b(access|navigate to|open|find).*(tickets?|dashboard|reports?|uploads?|admin|settings?).*pages?\b`), []string{"USER_GUIDE"}},
	{IntentSOPProcedure, regexp.MustCompile(`\bprocedure (for|to)|\bwhat.?s?\s+the\s+procedure`), []string{"SOP", "TROUBLESHOOT"}},
	{IntentReleaseImprovement, regexp.MustCompile(`\b(improvement|enhancement|new feature|retry logic)\b`), []string{"RELEASE_NOTE"}},
	{IntentReleaseNotes, regexp.MustCompile(`\bwhat.*(changed|new)\b|\brelease|\bversion\s*\d|\bbreaking\b`), []string{"RELEASE_NOTE"}},
	{IntentActiveTroubleshooting, regexp.MustCompile(`\b(i'?m getting|i have|i'?m seeing)\s+\w+\s+(error|fail|issue|problem)`), []string{"TROUBLESHOOT", "SOP"}},
	{IntentPolicy, regexp.MustCompile(`\b(blocked|allowed|restrict|prohibit|permission|policy|rule)\b`), []string{"TRAINING", "RELEASE_NOTE", "USER_GUIDE"}},
	{IntentTroubleshooting, regexp.MustCompile(`\berror\b|\bfail|\bbroken|\bfix\b|\bissue\b|\bproblem\b|\bcause\b`), []string{"TROUBLESHOOT", "SOP"}},
	{IntentHowTo, regexp.MustCompile(`\bhow (do|to|can)|\bsteps\b|\bprocess\b`), []string{"SOP", "USER_GUIDE", "TRAINING"}},
	{IntentNavigationPage, regexp.MustCompile(`\b(how|where).*(access|find|get to|navigate).*(page|screen|tab)`), []string{"USER_GUIDE", "SOP"}},
	{IntentNavigation, regexp.MustCompile(`\baccess\b.*\bpage\b|\bnavigate\b|\bfind\b.*\bpage\b|\bgo to\b`), []string{"USER_GUIDE", "SOP"}},
	{IntentFileCapability, regexp.MustCompile(`\b(which|what)\s+files?.*(preview|display|view|support)`), []string{"TRAINING", "USER_GUIDE"}},
	{IntentFeatureCapability, regexp.MustCompile(`\b(which|what)\s+(files?|features?).*(can|preview|use|support)`), []string{"USER_GUIDE", "TRAINING"}},
	{IntentRecommendation, regexp.MustCompile(`\bwhich\s+(file|browser|feature)|\bcan\s+(i|we)\s+(preview|use|access)`), []string{"USER_GUIDE", "TRAINING", "RELEASE_NOTE"}},
	{IntentEducational, regexp.MustCompile(`\bwhat (is|does|are)|\bwhy\b`), []string{"TRAINING", "USER_GUIDE", "TROUBLESHOOT"}},
}

var defaultDocTypes = []string{"USER_GUIDE", "TROUBLESHOOT"}

// highConfidenceIntents get an extra multiplier on the intent feature.
var highConfidenceIntents = map[string]struct{}{
	IntentReferenceCatalog: {},
	IntentUIPageAccess:     {},
	IntentFileCapability:   {},
}

// DetectIntent classifies a query and returns the intent name with its
// prioritized expected document types.
func DetectIntent(query string) (string, []string) {
	lowered := strings.ToLower(query)
	for _, rule := range intentRules {
		if rule.pattern.MatchString(lowered) {
			return rule.name, rule.docTypes
		}
	}
	return IntentGeneral, defaultDocTypes
}
