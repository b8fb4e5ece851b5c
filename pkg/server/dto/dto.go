// Package dto defines the request and response shapes of the HTTP API.
package dto

import "github.com/kgrail/kgrail/pkg/types"

// SearchRequest is the body of POST /api/v1/search.
type SearchRequest struct {
	Query            string `json:"query"`
	MaxResults       int    `json:"max_results,omitempty"`
	Tool             string `json:"tool,omitempty"`
	DocType          string `json:"doc_type,omitempty"`
	DisableExpansion bool   `json:"disable_expansion,omitempty"`
	DisableResolver  bool   `json:"disable_resolver,omitempty"`
}

// ResolveRequest is the body of POST /api/v1/resolve.
type ResolveRequest struct {
	Term string `json:"term"`
}

// ValidateRequest is the body of POST /api/v1/validate.
type ValidateRequest struct {
	Query  string        `json:"query"`
	Answer string        `json:"answer"`
	Chunks []types.Chunk `json:"chunks"`
}

// IngestRequest is the body of POST /api/v1/ingest.
type IngestRequest struct {
	Documents []types.IngestedDocument `json:"documents"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}
