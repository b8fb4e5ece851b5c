// Package graph implements the typed knowledge graph: schema validation,
// in-memory mutation, persistence stores, and the traversal queries the
// retrieval and resolution components depend on.
package graph

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/kgrail/kgrail/pkg/types"
)

// Graph is a whole-snapshot knowledge graph. It is read-modify-written as
// a unit through a Store; concurrent writer discipline is the store's
// responsibility, not the Graph's.
type Graph struct {
	SchemaVersion string                 `json:"schema_version"`
	CorpusRegime  types.Regime           `json:"corpus_regime,omitempty"`
	Nodes         map[string]*types.Node `json:"nodes"`
	Edges         []types.Edge           `json:"edges"`

	edgeSet map[types.Edge]struct{}

	// loadedVersion is the store version this snapshot was read at; used
	// by stores with optimistic concurrency (see BadgerStore).
	loadedVersion uint64
}

// New returns an empty graph at the current schema version.
func New() *Graph {
	return &Graph{
		SchemaVersion: SchemaVersion,
		Nodes:         map[string]*types.Node{},
		Edges:         []types.Edge{},
	}
}

func (g *Graph) ensureIndex() {
	if g.edgeSet != nil {
		return
	}
	g.edgeSet = make(map[types.Edge]struct{}, len(g.Edges))
	for _, e := range g.Edges {
		g.edgeSet[e] = struct{}{}
	}
}

// UpsertNode validates and inserts or replaces a node. Schema violations
// are returned to the caller; the graph is left unchanged on error.
func (g *Graph) UpsertNode(id string, nodeType types.NodeType, attrs map[string]any) error {
	if id == "" {
		return schemaErrorf("node id must not be empty")
	}
	if err := ValidateNode(nodeType, attrs); err != nil {
		return err
	}
	if g.Nodes == nil {
		g.Nodes = map[string]*types.Node{}
	}
	copied := make(map[string]any, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	g.Nodes[id] = &types.Node{ID: id, Type: nodeType, Attrs: copied}
	return nil
}

// UpsertEdge validates and inserts an edge. Inserting an edge that already
// exists between the same ordered pair with the same type is a no-op.
func (g *Graph) UpsertEdge(source, target string, edgeType types.EdgeType) error {
	if err := ValidateEdge(source, target, edgeType); err != nil {
		return err
	}
	g.ensureIndex()
	e := types.Edge{Source: source, Target: target, Type: edgeType}
	if _, dup := g.edgeSet[e]; dup {
		return nil
	}
	g.Edges = append(g.Edges, e)
	g.edgeSet[e] = struct{}{}
	return nil
}

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *types.Node {
	return g.Nodes[id]
}

// HasNode reports whether id exists in the graph.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.Nodes[id]
	return ok
}

// Successors returns the targets of outgoing edges from id, optionally
// restricted to a set of edge types.
func (g *Graph) Successors(id string, edgeFilter ...types.EdgeType) []types.Edge {
	var out []types.Edge
	for _, e := range g.Edges {
		if e.Source != id {
			continue
		}
		if len(edgeFilter) > 0 && !containsEdgeType(edgeFilter, e.Type) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// PredecessorsByEdgeType returns the source ids of edges of the given type
// pointing at target, sorted for determinism.
func (g *Graph) PredecessorsByEdgeType(target string, edgeType types.EdgeType) []string {
	var out []string
	for _, e := range g.Edges {
		if e.Target == target && e.Type == edgeType {
			out = append(out, e.Source)
		}
	}
	sort.Strings(out)
	return out
}

// EdgeBetween returns the first edge from source to target and true, or
// false when none exists.
func (g *Graph) EdgeBetween(source, target string) (types.Edge, bool) {
	for _, e := range g.Edges {
		if e.Source == source && e.Target == target {
			return e, true
		}
	}
	return types.Edge{}, false
}

func containsEdgeType(set []types.EdgeType, t types.EdgeType) bool {
	for _, candidate := range set {
		if candidate == t {
			return true
		}
	}
	return false
}

// Marshal serializes the graph to its canonical JSON snapshot form.
func (g *Graph) Marshal() ([]byte, error) {
	if g.SchemaVersion == "" {
		g.SchemaVersion = SchemaVersion
	}
	return json.MarshalIndent(g, "", "  ")
}

// Unmarshal parses a JSON snapshot produced by Marshal.
func Unmarshal(data []byte) (*Graph, error) {
	g := New()
	if err := json.Unmarshal(data, g); err != nil {
		return nil, fmt.Errorf("parse graph snapshot: %w", err)
	}
	if g.Nodes == nil {
		g.Nodes = map[string]*types.Node{}
	}
	if g.Edges == nil {
		g.Edges = []types.Edge{}
	}
	return g, nil
}
