package search

import (
	"strings"

	"github.com/kgrail/kgrail/pkg/graph"
	"github.com/kgrail/kgrail/pkg/types"
)

// GraphBoostCap bounds the total graph relevance contribution.
const GraphBoostCap = 0.7

var graphEdgeWeights = map[types.EdgeType]float64{
	types.EdgeDefines:   0.3,
	types.EdgeAddresses: 0.25,
	types.EdgeCovers:    0.15,
	types.EdgeMentions:  0.1,
}

const graphEdgeDefaultWeight = 0.05

// conceptNodeTypes are the node kinds whose names are matched against the
// query for graph boosting.
var conceptNodeTypes = map[types.NodeType]struct{}{
	types.NodeDefinedTerm: {},
	types.NodeTool:        {},
	types.NodeErrorCode:   {},
	types.NodeTopic:       {},
	types.NodeConcept:     {},
}

// GraphBoost scores how strongly the graph connects a document to the
// concepts named in the query. Concept nodes whose name appears in the
// query contribute per connecting edge, weighted by edge type, capped.
func GraphBoost(query, docID string, g *graph.Graph) float64 {
	if g == nil || len(g.Nodes) == 0 {
		return 0.0
	}
	docNodeID := "doc:" + docID
	if !g.HasNode(docNodeID) {
		return 0.0
	}
	queryLower := strings.ToLower(query)

	var relevant []string
	for id, node := range g.Nodes {
		if _, ok := conceptNodeTypes[node.Type]; !ok {
			continue
		}
		name := node.Attr("name")
		if name == "" {
			name = node.Attr("surface_form")
		}
		if name != "" && strings.Contains(queryLower, strings.ToLower(name)) {
			relevant = append(relevant, id)
		}
	}

	score := 0.0
	for _, concept := range relevant {
		if e, ok := g.EdgeBetween(docNodeID, concept); ok {
			score += edgeWeight(e.Type)
		}
		if e, ok := g.EdgeBetween(concept, docNodeID); ok {
			score += edgeWeight(e.Type)
		}
	}
	if score > GraphBoostCap {
		score = GraphBoostCap
	}
	return score
}

func edgeWeight(t types.EdgeType) float64 {
	if w, ok := graphEdgeWeights[t]; ok {
		return w
	}
	return graphEdgeDefaultWeight
}
