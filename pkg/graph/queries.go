package graph

import (
	"sort"

	"github.com/kgrail/kgrail/pkg/types"
)

// DocsForTool returns the DOCUMENT nodes linked to the named tool via a
// MENTIONS edge in either direction.
func (g *Graph) DocsForTool(toolName string) []*types.Node {
	toolID := "tool:" + toolName
	seen := map[string]struct{}{}
	var docs []*types.Node
	add := func(id string) {
		node := g.Nodes[id]
		if node == nil || node.Type != types.NodeDocument {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		docs = append(docs, node)
	}
	for _, e := range g.Edges {
		if e.Type != types.EdgeMentions {
			continue
		}
		if e.Source == toolID {
			add(e.Target)
		}
		if e.Target == toolID {
			add(e.Source)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs
}

// DocsForTopic returns the DOCUMENT nodes with a COVERS edge to the topic.
func (g *Graph) DocsForTopic(topic string) []*types.Node {
	topicID := "topic:" + topic
	var docs []*types.Node
	for _, source := range g.PredecessorsByEdgeType(topicID, types.EdgeCovers) {
		if node := g.Nodes[source]; node != nil && node.Type == types.NodeDocument {
			docs = append(docs, node)
		}
	}
	return docs
}

// RelatedDocs walks the graph undirected from docID up to maxHops and
// returns the ids of other DOCUMENT nodes reached, sorted.
func (g *Graph) RelatedDocs(docID string, maxHops int) []string {
	if !g.HasNode(docID) || maxHops <= 0 {
		return nil
	}

	adjacency := map[string][]string{}
	for _, e := range g.Edges {
		adjacency[e.Source] = append(adjacency[e.Source], e.Target)
		adjacency[e.Target] = append(adjacency[e.Target], e.Source)
	}

	type hop struct {
		id    string
		depth int
	}
	queue := []hop{{docID, 0}}
	visited := map[string]struct{}{docID: {}}
	var related []string

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current.depth >= maxHops {
			continue
		}
		for _, neighbor := range adjacency[current.id] {
			if _, dup := visited[neighbor]; dup {
				continue
			}
			visited[neighbor] = struct{}{}
			if node := g.Nodes[neighbor]; node != nil && node.Type == types.NodeDocument {
				related = append(related, neighbor)
			}
			queue = append(queue, hop{neighbor, current.depth + 1})
		}
	}
	sort.Strings(related)
	return related
}

// DocStats summarizes document counts by doc_type.
func (g *Graph) DocStats() (total int, byType map[string]int) {
	byType = map[string]int{}
	for _, node := range g.Nodes {
		if node.Type != types.NodeDocument {
			continue
		}
		total++
		docType := node.Attr("doc_type")
		if docType == "" {
			docType = "UNKNOWN"
		}
		byType[docType]++
	}
	return total, byType
}
