package kgrail

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kgrail/kgrail/pkg/config"
	"github.com/kgrail/kgrail/pkg/types"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Ingest documents from a JSON or YAML file",
	Long: `Ingest documents into the knowledge graph and vector index.

The input file holds an array of documents. JSON and YAML are both
accepted; the format is picked from the file extension.

Each document carries doc_id, title, source_path, text, doc_type, and
optional tools, topics, processes, and tags arrays.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	docs, err := readDocuments(args[0])
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no documents found in %s", args[0])
	}

	engine, err := initializeEngine(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize kgrail: %w", err)
	}
	defer engine.Close(cmd.Context())

	report, err := engine.Ingest(cmd.Context(), docs)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	fmt.Printf("Ingested %d documents (%d chunks, %d defined terms), corpus regime: %s\n",
		report.Documents, report.Chunks, report.DefinedTerms, report.CorpusRegime)
	for _, ingestErr := range report.Errors {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", ingestErr)
	}
	return nil
}

func readDocuments(path string) ([]types.IngestedDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var docs []types.IngestedDocument
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &docs); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, &docs); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	return docs, nil
}
