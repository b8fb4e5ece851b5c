// Package kgrail provides a grounded retrieval and knowledge-graph
// engine for document corpora that mix governing/legal material with
// generic guides.
//
// The engine ingests documents into a typed knowledge graph plus a
// vector index, classifies each document's regime (governing-legal,
// mixed, or generic), extracts defined terms, and answers queries with
// intent-aware ranking, query expansion, reciprocal rank fusion, and
// on-demand resolution of defined-term dependency closures. Generated
// answers can be validated against retrieved evidence under a strict or
// production provenance contract.
//
// # Basic Usage
//
// Create a client with a graph store and a vector backend:
//
//	store, err := graph.NewJSONStore("./knowledge_graph.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//	vec := vector.NewHTTPClient("http://localhost:8001")
//
//	client, err := kgrail.NewClient(store, vec, nil, nil, nil, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close(ctx)
//
// # Ingesting
//
//	report, err := client.Ingest(ctx, []types.IngestedDocument{{
//		DocID:      "psa-2024",
//		Title:      "Pooling and Servicing Agreement",
//		SourcePath: "docs/psa_2024.pdf",
//		Text:       text,
//		DocType:    "GOVERNING",
//	}})
//
// # Querying
//
//	result, err := client.Query(ctx, "what does Master Servicer mean", nil)
//	for _, c := range result.Citations {
//		fmt.Println(c.DocName, c.Section)
//	}
//
// # Validating answers
//
//	validation, ledger, err := client.ValidateAnswer(ctx, query, answer, chunks)
//
// In strict mode an incompletely cited answer returns a typed
// *evidence.ProvenanceError carrying a structured payload; production
// mode reports pass/fail against a coverage threshold without erroring.
//
// # Architecture
//
//   - pkg/graph: typed knowledge graph, schema validation, stores
//   - pkg/regime: governing-document regime classifier
//   - pkg/terms: defined-term extraction and dependency resolution
//   - pkg/evidence: claim-to-evidence matching and provenance contract
//   - pkg/search: intent detection, ranking, rank fusion
//   - pkg/expand: query expansion, variations, acronyms
//   - pkg/chunker: regime-aware document chunking
//   - pkg/vector, pkg/nlp, pkg/crossencoder: external collaborators
package kgrail
