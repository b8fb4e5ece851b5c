package kgrail

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kgrail/kgrail/pkg/config"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <term>",
	Short: "Resolve a defined term to its dependency closure",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	engine, err := initializeEngine(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize kgrail: %w", err)
	}
	defer engine.Close(cmd.Context())

	resolution, err := engine.ResolveTerm(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return fmt.Errorf("resolution failed: %w", err)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(resolution)
}
