package graph

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kgrail/kgrail/pkg/types"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jStore persists graph snapshots in a Neo4j database. The snapshot
// contract is preserved: Load reads every kgrail-labeled node and edge,
// Save rewrites the whole labeled subgraph inside a single write
// transaction, which also serializes concurrent writers.
type Neo4jStore struct {
	client   neo4j.DriverWithContext
	database string
}

// NewNeo4jStore connects to the database at uri.
func NewNeo4jStore(uri, username, password, database string) (*Neo4jStore, error) {
	client, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if database == "" {
		database = "neo4j"
	}
	return &Neo4jStore{client: client, database: database}, nil
}

// Close releases the driver's connection pool.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

// Load reads the persisted snapshot.
func (s *Neo4jStore) Load(ctx context.Context) (*Graph, error) {
	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		g := New()

		meta, err := tx.Run(ctx, `
			MATCH (m:KgrailMeta)
			RETURN m.schema_version AS schema_version, m.corpus_regime AS corpus_regime
		`, nil)
		if err != nil {
			return nil, err
		}
		if meta.Next(ctx) {
			record := meta.Record()
			if v, ok := record.Get("schema_version"); ok {
				if str, ok := v.(string); ok {
					g.SchemaVersion = str
				}
			}
			if v, ok := record.Get("corpus_regime"); ok {
				if str, ok := v.(string); ok && str != "" {
					g.CorpusRegime = types.Regime(str)
				}
			}
		}

		nodes, err := tx.Run(ctx, `
			MATCH (n:KgrailNode)
			RETURN n.id AS id, n.node_type AS node_type, n.attrs AS attrs
		`, nil)
		if err != nil {
			return nil, err
		}
		for nodes.Next(ctx) {
			record := nodes.Record()
			id, _ := record.Get("id")
			nodeType, _ := record.Get("node_type")
			node := &types.Node{
				ID:   id.(string),
				Type: types.NodeType(nodeType.(string)),
			}
			if raw, ok := record.Get("attrs"); ok {
				if encoded, ok := raw.(string); ok && encoded != "" {
					_ = json.Unmarshal([]byte(encoded), &node.Attrs)
				}
			}
			g.Nodes[node.ID] = node
		}

		edges, err := tx.Run(ctx, `
			MATCH (a:KgrailNode)-[e:KGRAIL_EDGE]->(b:KgrailNode)
			RETURN a.id AS source, b.id AS target, e.edge_type AS edge_type
		`, nil)
		if err != nil {
			return nil, err
		}
		for edges.Next(ctx) {
			record := edges.Record()
			source, _ := record.Get("source")
			target, _ := record.Get("target")
			edgeType, _ := record.Get("edge_type")
			g.Edges = append(g.Edges, types.Edge{
				Source: source.(string),
				Target: target.(string),
				Type:   types.EdgeType(edgeType.(string)),
			})
		}
		return g, nil
	})
	if err != nil {
		return nil, fmt.Errorf("load graph from neo4j: %w", err)
	}
	return result.(*Graph), nil
}

// Save rewrites the snapshot in one write transaction.
func (s *Neo4jStore) Save(ctx context.Context, g *Graph) error {
	session := s.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
	defer session.Close(ctx)

	nodeRows := make([]map[string]any, 0, len(g.Nodes))
	for _, node := range g.Nodes {
		attrs, err := json.Marshal(node.Attrs)
		if err != nil {
			return fmt.Errorf("encode attrs for node %s: %w", node.ID, err)
		}
		nodeRows = append(nodeRows, map[string]any{
			"id":        node.ID,
			"node_type": string(node.Type),
			"attrs":     string(attrs),
		})
	}
	edgeRows := make([]map[string]any, 0, len(g.Edges))
	for _, e := range g.Edges {
		edgeRows = append(edgeRows, map[string]any{
			"source":    e.Source,
			"target":    e.Target,
			"edge_type": string(e.Type),
		})
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `MATCH (n:KgrailNode) DETACH DELETE n`, nil); err != nil {
			return nil, err
		}
		if _, err := tx.Run(ctx, `
			MERGE (m:KgrailMeta)
			SET m.schema_version = $schema_version, m.corpus_regime = $corpus_regime
		`, map[string]any{
			"schema_version": g.SchemaVersion,
			"corpus_regime":  string(g.CorpusRegime),
		}); err != nil {
			return nil, err
		}
		if _, err := tx.Run(ctx, `
			UNWIND $rows AS row
			CREATE (n:KgrailNode {id: row.id, node_type: row.node_type, attrs: row.attrs})
		`, map[string]any{"rows": nodeRows}); err != nil {
			return nil, err
		}
		if _, err := tx.Run(ctx, `
			UNWIND $rows AS row
			MATCH (a:KgrailNode {id: row.source})
			MATCH (b:KgrailNode {id: row.target})
			CREATE (a)-[:KGRAIL_EDGE {edge_type: row.edge_type}]->(b)
		`, map[string]any{"rows": edgeRows}); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("save graph to neo4j: %w", err)
	}
	return nil
}
