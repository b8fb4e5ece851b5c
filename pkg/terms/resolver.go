package terms

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kgrail/kgrail/pkg/graph"
	"github.com/kgrail/kgrail/pkg/types"
)

// Defaults for the traversal safety valves.
const (
	DefaultMaxDepth    = 5
	DefaultTokenBudget = 2000
)

// Resolver computes the transitive dependency closure of a term by
// breadth-first traversal of REFERS_TO and DEPENDS_ON edges, bounded by a
// depth limit and a cumulative token budget.
type Resolver struct {
	MaxDepth    int
	TokenBudget int
}

// NewResolver returns a resolver with the default bounds.
func NewResolver() *Resolver {
	return &Resolver{MaxDepth: DefaultMaxDepth, TokenBudget: DefaultTokenBudget}
}

// Normalize collapses whitespace and lowercases a term.
func Normalize(term string) string {
	return strings.ToLower(strings.Join(strings.Fields(term), " "))
}

// Slug converts a term to the form used in defterm:/term: node ids.
func Slug(term string) string {
	return strings.ReplaceAll(Normalize(term), " ", "_")
}

// startNode prefers a defterm: node, falls back to term:, then scans all
// prefixed nodes for a label match. Returns "" when nothing matches.
func (r *Resolver) startNode(g *graph.Graph, term string) string {
	slug := Slug(term)
	for _, candidate := range []string{"defterm:" + slug, "term:" + slug} {
		if g.HasNode(candidate) {
			return candidate
		}
	}
	norm := Normalize(term)
	for _, prefix := range []string{"defterm:", "term:"} {
		for id := range g.Nodes {
			if !strings.HasPrefix(id, prefix) {
				continue
			}
			label := strings.ReplaceAll(strings.TrimPrefix(id, prefix), "_", " ")
			if strings.ToLower(label) == norm {
				return id
			}
		}
	}
	return ""
}

func nodeLabel(node *types.Node) string {
	if name := node.Attr("name"); name != "" {
		return name
	}
	if surface := node.Attr("surface_form"); surface != "" {
		return surface
	}
	if i := strings.Index(node.ID, ":"); i >= 0 {
		return strings.ReplaceAll(node.ID[i+1:], "_", " ")
	}
	return node.ID
}

func definitionText(node *types.Node) string {
	if text := node.Attr("definition_text"); text != "" {
		return text
	}
	return node.Attr("defined_text")
}

// Resolve walks the dependency graph from term. A missing start node is
// not an error: the resolution comes back with an empty closure and an
// explanatory message. Traversal always terminates, even on cyclic
// graphs; cycles are reported, not followed.
func (r *Resolver) Resolve(term string, g *graph.Graph) types.TermResolution {
	maxDepth := r.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	budget := r.TokenBudget
	if budget <= 0 {
		budget = DefaultTokenBudget
	}

	start := r.startNode(g, term)
	if start == "" {
		return types.TermResolution{
			RootTerm:            term,
			Closure:             []string{},
			StitchedExplanation: fmt.Sprintf("%s not found in term graph.", term),
		}
	}

	type queued struct {
		id    string
		depth int
	}
	queue := []queued{{start, 0}}
	visited := map[string]struct{}{}
	activePath := map[string]struct{}{}
	cycleSet := map[string]struct{}{}

	res := types.TermResolution{RootTerm: term, Closure: []string{}}
	totalTokens := 0

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current.depth > maxDepth {
			continue
		}
		if _, onPath := activePath[current.id]; onPath {
			cycleSet[current.id] = struct{}{}
			continue
		}
		if _, seen := visited[current.id]; seen {
			continue
		}
		visited[current.id] = struct{}{}
		activePath[current.id] = struct{}{}

		node := g.Node(current.id)
		if node == nil {
			delete(activePath, current.id)
			continue
		}

		// Budget is checked before the node is admitted: the node that
		// would overflow is not added to the closure.
		tokens := len(strings.Fields(definitionText(node)))
		if tokens < 1 {
			tokens = 1
		}
		if totalTokens+tokens > budget {
			res.Truncated = true
			delete(activePath, current.id)
			break
		}
		totalTokens += tokens
		res.Closure = append(res.Closure, nodeLabel(node))
		if current.depth > res.DepthReached {
			res.DepthReached = current.depth
		}

		citation := types.ResolutionCitation{
			SectionID: node.Attr("section_id"),
			ChunkID:   node.Attr("chunk_id"),
			SourceURI: node.Attr("source_uri"),
		}
		if page, ok := node.Attrs["page"].(float64); ok {
			citation.Page = int(page)
		} else if page, ok := node.Attrs["page"].(int); ok {
			citation.Page = page
		}
		if citation.SectionID != "" || citation.Page != 0 || citation.ChunkID != "" {
			res.Citations = append(res.Citations, citation)
		}

		for _, e := range g.Successors(current.id, types.EdgeRefersTo, types.EdgeDependsOn) {
			neighbor := e.Target
			if neighbor == current.id {
				continue
			}
			if _, onPath := activePath[neighbor]; onPath {
				cycleSet[neighbor] = struct{}{}
				continue
			}
			if _, seen := visited[neighbor]; seen {
				cycleSet[neighbor] = struct{}{}
				continue
			}
			queue = append(queue, queued{neighbor, current.depth + 1})
		}

		delete(activePath, current.id)
	}

	for id := range cycleSet {
		res.CyclesDetected = append(res.CyclesDetected, id)
	}
	sort.Strings(res.CyclesDetected)

	if len(res.Closure) > 0 {
		var b strings.Builder
		fmt.Fprintf(&b, "Resolved '%s' with %d dependent term(s).\nWhere:\n", term, len(res.Closure))
		for i, entry := range res.Closure {
			if i > 0 {
				b.WriteByte('\n')
			}
			fmt.Fprintf(&b, "%d. %s", i+1, entry)
		}
		res.StitchedExplanation = b.String()
	} else {
		res.StitchedExplanation = fmt.Sprintf("%s not found in term graph.", term)
	}
	return res
}
