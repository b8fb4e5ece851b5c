package kgrail

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kgrail/kgrail"
	"github.com/kgrail/kgrail/pkg/config"
)

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Search the corpus with expansion, fusion, and reranking",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuery,
}

var (
	queryMaxResults int
	queryTool       string
	queryDocType    string
	queryNoExpand   bool
	queryNoResolver bool
	queryJSON       bool
)

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().IntVar(&queryMaxResults, "max-results", 0, "Maximum ranked chunks to return")
	queryCmd.Flags().StringVar(&queryTool, "tool", "", "Restrict results to documents mentioning a tool")
	queryCmd.Flags().StringVar(&queryDocType, "doc-type", "", "Restrict results to a document type")
	queryCmd.Flags().BoolVar(&queryNoExpand, "no-expansion", false, "Disable query expansion")
	queryCmd.Flags().BoolVar(&queryNoResolver, "no-resolver", false, "Disable defined-term resolution")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "Print the full result as JSON")
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	engine, err := initializeEngine(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize kgrail: %w", err)
	}
	defer engine.Close(cmd.Context())

	queryText := strings.Join(args, " ")
	result, err := engine.Query(cmd.Context(), queryText, &kgrail.QueryOptions{
		MaxResults:       queryMaxResults,
		ToolFilter:       queryTool,
		DocTypeFilter:    queryDocType,
		DisableExpansion: queryNoExpand,
		DisableResolver:  queryNoResolver,
	})
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	}

	fmt.Printf("Intent: %s\n", result.Intent)
	fmt.Printf("Variations: %s\n", strings.Join(result.Queries, " | "))
	fmt.Printf("Confidence: %.2f\n\n", result.Confidence)
	for i, chunk := range result.ContextChunks {
		fmt.Printf("[%d] %s (score %.3f)\n", i+1, chunk.SourcePath, chunk.FinalScore)
		content := chunk.Content
		if len(content) > 240 {
			content = content[:240] + "..."
		}
		fmt.Printf("    %s\n\n", content)
	}
	if result.Resolution != nil {
		fmt.Printf("Resolved term: %s (closure %v)\n", result.Resolution.RootTerm, result.Resolution.Closure)
	}
	return nil
}
