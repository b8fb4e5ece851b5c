package evidence

import "fmt"

// ErrCodeIncompleteProvenance is the structured code carried by a strict
// mode violation.
const ErrCodeIncompleteProvenance = "E_INCOMPLETE_PROVENANCE"

// ValidationResult is the non-raising outcome of contract enforcement.
type ValidationResult struct {
	Passed        bool     `json:"passed"`
	Coverage      float64  `json:"coverage"`
	UncitedClaims []string `json:"uncited_claims"`
	Message       string   `json:"message"`
}

// ProvenanceError is the strict-mode violation. It carries a structured
// payload that must reach the caller intact.
type ProvenanceError struct {
	Code    string
	Message string
	Details map[string]any
}

func (e *ProvenanceError) Error() string {
	return e.Message
}

// Payload returns the wire shape {"error": {code, message, details}}.
func (e *ProvenanceError) Payload() map[string]any {
	return map[string]any{
		"error": map[string]any{
			"code":    e.Code,
			"message": e.Message,
			"details": e.Details,
		},
	}
}

// ValidateStrict passes only at full coverage.
func ValidateStrict(ledger *Ledger) ValidationResult {
	if ledger.Coverage < 1.0 {
		return ValidationResult{
			Passed:        false,
			Coverage:      ledger.Coverage,
			UncitedClaims: ledger.UncitedClaims,
			Message:       fmt.Sprintf("STRICT MODE VIOLATION: %d uncited claims", len(ledger.UncitedClaims)),
		}
	}
	return ValidationResult{
		Passed:   true,
		Coverage: 1.0,
		Message:  "All claims cited",
	}
}

// DefaultProductionThreshold is the coverage required to pass in
// production mode.
const DefaultProductionThreshold = 0.95

// EnforceContract applies the provenance contract to a ledger. In strict
// mode any uncited claim returns a *ProvenanceError; in production mode
// the result reports pass/fail against the threshold without erroring.
// The ledger's StrictModePassed field is set as a side effect.
func EnforceContract(ledger *Ledger, strictMode bool, productionThreshold float64) (ValidationResult, error) {
	if productionThreshold <= 0 {
		productionThreshold = DefaultProductionThreshold
	}

	if strictMode {
		result := ValidateStrict(ledger)
		ledger.StrictModePassed = &result.Passed
		if !result.Passed {
			return result, &ProvenanceError{
				Code:    ErrCodeIncompleteProvenance,
				Message: fmt.Sprintf("Strict mode enabled: %d sentence(s) lack citations", len(result.UncitedClaims)),
				Details: map[string]any{
					"total_sentences":      len(ledger.Claims),
					"cited_sentences":      len(ledger.Claims) - len(result.UncitedClaims),
					"uncited_sentences":    result.UncitedClaims,
					"coverage":             ledger.Coverage,
					"resolution_attempted": true,
					"partial_answer":       ledger.GeneratedAnswer,
				},
			}
		}
		return result, nil
	}

	passed := ledger.Coverage >= productionThreshold
	message := "Production provenance coverage passed"
	if !passed {
		message = fmt.Sprintf("Production coverage %.2f%% is below threshold %.2f%%",
			ledger.Coverage*100, productionThreshold*100)
	}
	return ValidationResult{
		Passed:        passed,
		Coverage:      ledger.Coverage,
		UncitedClaims: ledger.UncitedClaims,
		Message:       message,
	}, nil
}
