// Package types defines the shared data model for the kgrail engine:
// graph nodes and edges, defined terms, regime classifications, term
// resolutions, retrieval candidates, and search responses.
//
// All other packages depend on types; types depends on nothing but the
// standard library.
package types
