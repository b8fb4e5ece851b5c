package types

import "time"

// NodeType enumerates the node kinds the graph schema accepts.
type NodeType string

const (
	NodeDocument    NodeType = "DOCUMENT"
	NodeSection     NodeType = "SECTION"
	NodeClause      NodeType = "CLAUSE"
	NodeDefinedTerm NodeType = "DEFINED_TERM"
	NodeEntity      NodeType = "ENTITY"
	NodeKeyphrase   NodeType = "KEYPHRASE"
	NodeAlias       NodeType = "ALIAS"
	NodeFormula     NodeType = "FORMULA"
	NodeTool        NodeType = "TOOL"
	NodeProcess     NodeType = "PROCESS"
	NodeErrorCode   NodeType = "ERROR_CODE"
	NodeConcept     NodeType = "CONCEPT"
	NodeTopic       NodeType = "TOPIC"
)

// EdgeType enumerates the directed edge kinds the graph schema accepts.
type EdgeType string

const (
	EdgeDefines    EdgeType = "DEFINES"
	EdgeDescribes  EdgeType = "DESCRIBES"
	EdgeAddresses  EdgeType = "ADDRESSES"
	EdgeCovers     EdgeType = "COVERS"
	EdgeMentions   EdgeType = "MENTIONS"
	EdgeRefersTo   EdgeType = "REFERS_TO"
	EdgeDependsOn  EdgeType = "DEPENDS_ON"
	EdgeAuthoredBy EdgeType = "AUTHORED_BY"
	EdgeMaintains  EdgeType = "MAINTAINS"
	EdgeHasChild   EdgeType = "HAS_CHILD"
	// EdgeUses is retained for backward compatibility with older
	// ingestion metadata.
	EdgeUses EdgeType = "USES"
)

// Node is a typed graph node. Required attributes vary by type and are
// validated by graph.ValidateNode before insertion; Attrs carries the
// type-specific fields plus any forward-compatible extras.
type Node struct {
	ID    string         `json:"id"`
	Type  NodeType       `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

// Attr returns a string attribute, or "" when absent or not a string.
func (n *Node) Attr(key string) string {
	if n.Attrs == nil {
		return ""
	}
	s, _ := n.Attrs[key].(string)
	return s
}

// Edge is a directed, typed edge. At most one edge of a given type may
// exist between the same ordered pair of nodes.
type Edge struct {
	Source string   `json:"source"`
	Target string   `json:"target"`
	Type   EdgeType `json:"type"`
}

// Regime labels a document's register: governing/legal, mixed, or generic.
type Regime string

const (
	RegimeGoverningDocLegal Regime = "GOVERNING_DOC_LEGAL"
	RegimeMixed             Regime = "MIXED"
	RegimeGenericGuide      Regime = "GENERIC_GUIDE"
)

// RegimeResult is the immutable outcome of classifying one document.
type RegimeResult struct {
	Regime   Regime          `json:"regime"`
	Score    int             `json:"score"`
	Signals  map[string]bool `json:"signals"`
	Filename string          `json:"filename"`
}

// DefinedTerm is one extracted "X means Y" style definition.
type DefinedTerm struct {
	SurfaceForm        string  `json:"surface_form"`
	DefinitionText     string  `json:"definition_text"`
	Confidence         float64 `json:"confidence"`
	ExtractionStrategy string  `json:"extraction_strategy"`
	SourceSectionID    string  `json:"source_section_id,omitempty"`
	SourceLine         int     `json:"source_line,omitempty"`
}

// ResolutionCitation points at the evidence behind one resolved term.
type ResolutionCitation struct {
	SectionID string `json:"section_id,omitempty"`
	Page      int    `json:"page,omitempty"`
	ChunkID   string `json:"chunk_id,omitempty"`
	SourceURI string `json:"source_uri,omitempty"`
}

// TermResolution is the request-scoped result of resolving a term's
// transitive dependency closure. It is never persisted.
type TermResolution struct {
	RootTerm             string               `json:"root_term"`
	Closure              []string             `json:"closure"`
	StitchedExplanation  string               `json:"stitched_explanation"`
	Citations            []ResolutionCitation `json:"citations,omitempty"`
	DepthReached         int                  `json:"depth_reached"`
	Truncated            bool                 `json:"truncated"`
	CyclesDetected       []string             `json:"cycles_detected,omitempty"`
}

// Chunk is a retrieved passage as returned by the vector backend.
type Chunk struct {
	ChunkID    string `json:"chunk_id"`
	DocID      string `json:"doc_id"`
	Content    string `json:"content"`
	SourcePath string `json:"source_path"`
	ChunkIndex int    `json:"chunk_index"`
	DocType    string `json:"doc_type"`

	// Optional per-chunk metadata carried through from ingestion.
	SectionID   string `json:"section_id,omitempty"`
	Page        int    `json:"page,omitempty"`
	SourceURI   string `json:"source_uri,omitempty"`
	IsImageDesc bool   `json:"is_image_desc,omitempty"`
	ImageID     string `json:"image_id,omitempty"`
	DocRegime   string `json:"doc_regime,omitempty"`
	DefTermRef  bool   `json:"defterm_ref,omitempty"`
}

// ScoredChunk augments a Chunk with its base vector similarity and the
// final score computed at rank time.
type ScoredChunk struct {
	Chunk
	Similarity float64 `json:"similarity"`
	FinalScore float64 `json:"final_score"`
}

// Citation is the user-facing provenance pointer for one result chunk.
type Citation struct {
	DocID      string `json:"doc_id"`
	DocName    string `json:"doc_name"`
	SourcePath string `json:"source_path"`
	URI        string `json:"uri"`
	Section    string `json:"section,omitempty"`
	Page       int    `json:"page,omitempty"`
	ImageNote  string `json:"image_note,omitempty"`
}

// SearchResult is the ranked, citation-backed response to a query.
type SearchResult struct {
	ContextChunks []ScoredChunk `json:"context_chunks"`
	Citations     []Citation    `json:"citations"`
	Confidence    float64       `json:"confidence"`
	ImageNotes    []string      `json:"image_notes,omitempty"`
	RelatedTopics []string      `json:"related_topics,omitempty"`
}

// Entity is one NER-extracted entity from the optional NLP collaborator.
type Entity struct {
	Text  string `json:"text"`
	Label string `json:"label"`
}

// Keyphrase is one extracted keyphrase with its salience score.
type Keyphrase struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// Extraction bundles the optional NLP collaborator's output.
type Extraction struct {
	Entities   []Entity    `json:"entities"`
	Keyphrases []Keyphrase `json:"keyphrases"`
}

// ContextKey is the type used for request-scoped context values.
type ContextKey string

const (
	ContextKeyRequestID ContextKey = "request_id"
	ContextKeyUserID    ContextKey = "user_id"
)

// IngestedDocument describes one document handed to the ingestion
// pipeline after external format conversion.
type IngestedDocument struct {
	DocID      string    `json:"doc_id"`
	Title      string    `json:"title"`
	SourcePath string    `json:"source_path"`
	Text       string    `json:"text"`
	DocType    string    `json:"doc_type"`
	Version    int       `json:"version"`
	Tools      []string  `json:"tools,omitempty"`
	Topics     []string  `json:"topics,omitempty"`
	Processes  []string  `json:"processes,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	IngestedAt time.Time `json:"ingested_at,omitempty"`
}
