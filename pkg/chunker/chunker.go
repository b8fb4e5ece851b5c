// Package chunker turns ingested document text into indexable chunks.
// Generic documents get recursive separator splitting with overlap;
// governing/legal documents get section-aware chunking that respects
// article and section boundaries.
package chunker

import (
	"fmt"

	"github.com/kgrail/kgrail/pkg/types"
)

// Default sizing. Generic sizes are in characters with a tail-overlap;
// legal sizing is adaptive between min and max around a target.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200

	DefaultLegalMinSize    = 500
	DefaultLegalMaxSize    = 5000
	DefaultLegalTargetSize = 2500
	legalSplitOverlap      = 500
)

// Chunker selects a chunking strategy per document regime.
type Chunker struct {
	ChunkSize    int
	ChunkOverlap int

	LegalMinSize    int
	LegalMaxSize    int
	LegalTargetSize int

	// MergeSubsections keeps a parent section and its subsections in
	// one chunk when they fit together under LegalMaxSize.
	MergeSubsections bool
}

// New returns a Chunker with default sizing.
func New() *Chunker {
	return &Chunker{
		ChunkSize:        DefaultChunkSize,
		ChunkOverlap:     DefaultChunkOverlap,
		LegalMinSize:     DefaultLegalMinSize,
		LegalMaxSize:     DefaultLegalMaxSize,
		LegalTargetSize:  DefaultLegalTargetSize,
		MergeSubsections: true,
	}
}

// Chunk splits doc according to regime. Legal and mixed documents go
// through section-aware chunking; everything else through the generic
// splitter.
func (c *Chunker) Chunk(doc types.IngestedDocument, regime types.Regime) []types.Chunk {
	text := CleanText(doc.Text)
	if text == "" {
		return nil
	}
	if regime == types.RegimeGoverningDocLegal || regime == types.RegimeMixed {
		return c.chunkLegal(doc, text, regime)
	}
	return c.assemble(doc, regime, SplitText(text, c.ChunkSize, c.ChunkOverlap))
}

// chunkLegal chunks along the document's section structure: sections
// in the target range become one chunk each, small adjacent sections
// merge, and oversized sections split on subsections or fall back to
// the generic splitter. Documents without detectable structure fall
// back entirely.
func (c *Chunker) chunkLegal(doc types.IngestedDocument, text string, regime types.Regime) []types.Chunk {
	sections := extractSections(text)
	if len(sections) == 0 {
		return c.assemble(doc, regime, SplitText(text, c.LegalMaxSize, legalSplitOverlap))
	}

	flat := flattenSections(sections, c.MergeSubsections, c.LegalMaxSize)

	var chunks []types.Chunk
	i := 0
	for i < len(flat) {
		sec := flat[i]
		size := len(sec.content)

		switch {
		case size >= c.LegalMinSize && size <= c.LegalMaxSize:
			chunks = append(chunks, c.legalChunk(doc, regime, sec, sec.content, len(chunks)))
			i++

		case size < c.LegalMinSize:
			merged := sec.content
			j := i + 1
			for j < len(flat) && len(merged) < c.LegalTargetSize {
				if len(merged)+len(flat[j].content) > c.LegalMaxSize {
					break
				}
				merged += "\n\n" + flat[j].content
				j++
			}
			chunks = append(chunks, c.legalChunk(doc, regime, sec, merged, len(chunks)))
			i = j

		default:
			if len(sec.children) > 0 {
				for _, child := range sec.children {
					chunks = append(chunks, c.legalChunk(doc, regime, child, child.content, len(chunks)))
				}
			} else {
				for _, piece := range SplitText(sec.content, c.LegalTargetSize, legalSplitOverlap) {
					chunks = append(chunks, c.legalChunk(doc, regime, sec, piece, len(chunks)))
				}
			}
			i++
		}
	}
	return chunks
}

func (c *Chunker) legalChunk(doc types.IngestedDocument, regime types.Regime, sec section, content string, index int) types.Chunk {
	chunk := c.newChunk(doc, regime, sectionHeader(sec, content), index)
	chunk.SectionID = sec.number
	return chunk
}

func (c *Chunker) assemble(doc types.IngestedDocument, regime types.Regime, pieces []string) []types.Chunk {
	chunks := make([]types.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		chunks = append(chunks, c.newChunk(doc, regime, piece, i))
	}
	return chunks
}

func (c *Chunker) newChunk(doc types.IngestedDocument, regime types.Regime, content string, index int) types.Chunk {
	return types.Chunk{
		ChunkID:    fmt.Sprintf("%s_chunk_%d", doc.DocID, index),
		DocID:      doc.DocID,
		Content:    content,
		SourcePath: doc.SourcePath,
		ChunkIndex: index,
		DocType:    doc.DocType,
		DocRegime:  string(regime),
	}
}
