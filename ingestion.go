package kgrail

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/kgrail/kgrail/pkg/graph"
	"github.com/kgrail/kgrail/pkg/regime"
	"github.com/kgrail/kgrail/pkg/terms"
	"github.com/kgrail/kgrail/pkg/types"
)

// IngestReport summarizes one ingestion run. Node- and edge-level
// failures are collected in Errors; they do not abort the run.
type IngestReport struct {
	Documents    int               `json:"documents"`
	Chunks       int               `json:"chunks"`
	DefinedTerms int               `json:"defined_terms"`
	Regimes      map[string]string `json:"regimes"`
	CorpusRegime types.Regime      `json:"corpus_regime"`
	Errors       []string          `json:"errors,omitempty"`
}

// Ingest implements Engine. Each document is classified, chunked
// according to its regime, mined for defined terms, and written to the
// knowledge graph in a single store transaction; chunks are then pushed
// to the vector index.
func (c *Client) Ingest(ctx context.Context, docs []types.IngestedDocument) (*IngestReport, error) {
	report := &IngestReport{Regimes: map[string]string{}}
	if len(docs) == 0 {
		return report, nil
	}

	var allChunks []types.Chunk

	updated, err := graph.Mutate(ctx, c.store, func(g *graph.Graph) error {
		for _, doc := range docs {
			if doc.DocID == "" {
				report.Errors = append(report.Errors, "document with empty doc_id skipped")
				continue
			}

			rr := regime.Classify(doc.Text, filepath.Base(doc.SourcePath))
			report.Regimes[doc.DocID] = string(rr.Regime)

			extracted := c.termsExt.Extract(doc.Text)
			chunks := c.chunkDocument(doc, rr.Regime, extracted)

			c.upsertDocument(g, doc, rr, extracted, report)

			report.Documents++
			report.Chunks += len(chunks)
			report.DefinedTerms += len(extracted)
			allChunks = append(allChunks, chunks...)

			c.logger.Info("Ingested document",
				"doc_id", doc.DocID,
				"regime", rr.Regime,
				"chunks", len(chunks),
				"defined_terms", len(extracted))
		}

		g.CorpusRegime = corpusRegimeFromGraph(g)
		report.CorpusRegime = g.CorpusRegime
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("persist knowledge graph: %w", err)
	}
	c.setGraph(updated)

	if len(allChunks) > 0 {
		if err := c.vector.Index(ctx, allChunks); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("vector index: %v", err))
			c.logger.Error("vector indexing failed", "chunks", len(allChunks), "error", err)
		} else {
			c.logger.Info("Indexed chunks", "count", len(allChunks))
		}
	}

	return report, nil
}

// chunkDocument chunks one document and marks chunks that reference an
// extracted defined term, which feeds resolver activation at query time.
func (c *Client) chunkDocument(doc types.IngestedDocument, docRegime types.Regime, extracted []types.DefinedTerm) []types.Chunk {
	chunks := c.chunker.Chunk(doc, docRegime)
	if len(extracted) == 0 {
		return chunks
	}
	for i := range chunks {
		lower := strings.ToLower(chunks[i].Content)
		for _, term := range extracted {
			if strings.Contains(lower, strings.ToLower(term.SurfaceForm)) {
				chunks[i].DefTermRef = true
				break
			}
		}
	}
	return chunks
}

// upsertDocument writes one document's nodes and edges. Failures are
// reported per node/edge and the rest of the document still lands.
func (c *Client) upsertDocument(g *graph.Graph, doc types.IngestedDocument, rr types.RegimeResult, extracted []types.DefinedTerm, report *IngestReport) {
	docID := "doc:" + doc.DocID
	record := func(err error) {
		if err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", doc.DocID, err))
		}
	}

	title := doc.Title
	if title == "" {
		title = filepath.Base(doc.SourcePath)
	}
	tags := make([]any, 0, len(doc.Tags))
	for _, tag := range doc.Tags {
		tags = append(tags, tag)
	}
	ingestedAt := doc.IngestedAt
	if ingestedAt.IsZero() {
		ingestedAt = time.Now().UTC()
	}
	record(g.UpsertNode(docID, types.NodeDocument, map[string]any{
		"title":       title,
		"path":        doc.SourcePath,
		"doc_type":    doc.DocType,
		"version":     doc.Version,
		"regime":      string(rr.Regime),
		"tags":        tags,
		"ingested_at": ingestedAt.Format(time.RFC3339),
	}))

	for _, tool := range doc.Tools {
		toolID := "tool:" + tool
		record(g.UpsertNode(toolID, types.NodeTool, map[string]any{"name": tool}))
		record(g.UpsertEdge(docID, toolID, types.EdgeMentions))
	}
	for _, topic := range doc.Topics {
		topicID := "topic:" + topic
		record(g.UpsertNode(topicID, types.NodeTopic, map[string]any{"name": topic}))
		record(g.UpsertEdge(docID, topicID, types.EdgeCovers))
	}
	for _, process := range doc.Processes {
		processID := "process:" + process
		record(g.UpsertNode(processID, types.NodeProcess, map[string]any{"name": process}))
		record(g.UpsertEdge(docID, processID, types.EdgeDescribes))
	}

	for _, term := range extracted {
		termID := "defterm:" + terms.Slug(term.SurfaceForm)
		record(g.UpsertNode(termID, types.NodeDefinedTerm, map[string]any{
			"surface_form":        term.SurfaceForm,
			"definition_text":     term.DefinitionText,
			"confidence":          term.Confidence,
			"extraction_strategy": term.ExtractionStrategy,
			"doc_id":              doc.DocID,
			"section_id":          term.SourceSectionID,
		}))
		record(g.UpsertEdge(docID, termID, types.EdgeDefines))
	}

	// Cross-reference edges between defined terms: a definition that
	// mentions another term's surface form depends on it.
	for _, term := range extracted {
		sourceID := "defterm:" + terms.Slug(term.SurfaceForm)
		definition := strings.ToLower(term.DefinitionText)
		for _, other := range extracted {
			if other.SurfaceForm == term.SurfaceForm {
				continue
			}
			if strings.Contains(definition, strings.ToLower(other.SurfaceForm)) {
				targetID := "defterm:" + terms.Slug(other.SurfaceForm)
				record(g.UpsertEdge(sourceID, targetID, types.EdgeRefersTo))
			}
		}
	}
}

// corpusRegimeFromGraph recomputes the corpus-level regime by majority
// vote over the per-document regimes stored on DOCUMENT nodes.
func corpusRegimeFromGraph(g *graph.Graph) types.Regime {
	var results []types.RegimeResult
	for _, node := range g.Nodes {
		if node.Type != types.NodeDocument {
			continue
		}
		if label := node.Attr("regime"); label != "" {
			results = append(results, types.RegimeResult{Regime: types.Regime(label)})
		}
	}
	return regime.CorpusRegime(results)
}
