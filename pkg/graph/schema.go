package graph

import (
	"fmt"
	"sort"

	"github.com/kgrail/kgrail/pkg/types"
)

// SchemaVersion is stored on every persisted graph.
const SchemaVersion = "2.1"

// nodeTypes is the set of node types the schema accepts.
var nodeTypes = map[types.NodeType]struct{}{
	types.NodeDocument:    {},
	types.NodeSection:     {},
	types.NodeClause:      {},
	types.NodeDefinedTerm: {},
	types.NodeEntity:      {},
	types.NodeKeyphrase:   {},
	types.NodeAlias:       {},
	types.NodeFormula:     {},
	types.NodeTool:        {},
	types.NodeProcess:     {},
	types.NodeErrorCode:   {},
	types.NodeConcept:     {},
	types.NodeTopic:       {},
}

var edgeTypes = map[types.EdgeType]struct{}{
	types.EdgeDefines:    {},
	types.EdgeDescribes:  {},
	types.EdgeAddresses:  {},
	types.EdgeCovers:     {},
	types.EdgeMentions:   {},
	types.EdgeRefersTo:   {},
	types.EdgeDependsOn:  {},
	types.EdgeAuthoredBy: {},
	types.EdgeMaintains:  {},
	types.EdgeHasChild:   {},
	types.EdgeUses:       {},
}

// requiredProps lists the attributes each node type must carry at upsert.
var requiredProps = map[types.NodeType][]string{
	types.NodeDocument:    {"title", "path"},
	types.NodeSection:     {"heading", "doc_id"},
	types.NodeClause:      {"heading", "doc_id"},
	types.NodeDefinedTerm: {"surface_form", "confidence", "extraction_strategy"},
	types.NodeEntity:      {"entity_type", "surface_form"},
	types.NodeKeyphrase:   {"surface_form", "score"},
	types.NodeAlias:       {"surface_form", "canonical_id"},
	types.NodeFormula:     {"expression", "doc_id"},
	types.NodeTool:        {"name"},
	types.NodeProcess:     {"name"},
	types.NodeErrorCode:   {"name"},
	types.NodeConcept:     {"name"},
	types.NodeTopic:       {"name"},
}

// SchemaValidationError reports a node or edge that violates the schema.
// Violations are hard rejections at upsert time, never silent drops.
type SchemaValidationError struct {
	Reason string
}

func (e *SchemaValidationError) Error() string { return e.Reason }

func schemaErrorf(format string, args ...any) error {
	return &SchemaValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ValidateNode rejects unknown node types and missing required attributes.
func ValidateNode(nodeType types.NodeType, attrs map[string]any) error {
	if _, ok := nodeTypes[nodeType]; !ok {
		return schemaErrorf("unknown node type %q", nodeType)
	}
	var missing []string
	for _, prop := range requiredProps[nodeType] {
		if _, ok := attrs[prop]; !ok {
			missing = append(missing, prop)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return schemaErrorf("node type %q missing required properties %v", nodeType, missing)
	}
	return nil
}

// ValidateEdge rejects unknown edge types and self-loops.
func ValidateEdge(source, target string, edgeType types.EdgeType) error {
	if _, ok := edgeTypes[edgeType]; !ok {
		return schemaErrorf("unknown edge type %q", edgeType)
	}
	if source == target {
		return schemaErrorf("self-loop edge %s -[%s]-> %s rejected", source, edgeType, target)
	}
	return nil
}
