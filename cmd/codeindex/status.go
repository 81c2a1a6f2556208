// cmd/codeindex/status.go
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/codeintel/codeindex/internal/app"
	"github.com/codeintel/codeindex/internal/config"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status [repo-path]",
	Short: "Show index status",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	repoPath := "."
	if len(args) == 1 {
		repoPath = args[0]
	}
	absPath, err := filepath.Abs(repoPath)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	cfg, err := config.LoadConfig(getGlobalConfigPath())
	if err != nil {
		fmt.Println("No global config found, using defaults")
		cfg = config.DefaultConfig()
	}

	repoCfg, err := config.LoadRepoConfig(absPath)
	if err != nil {
		return fmt.Errorf("failed to load repo config: %w\nRun 'codeindex init %s' first", err, absPath)
	}

	ctx := context.Background()

	codeApp, err := app.New(ctx, cfg, absPath, app.Options{
		EmbeddingAPIKey: os.Getenv("VOYAGE_API_KEY"),
		Neo4jUser:       os.Getenv("NEO4J_USER"),
		Neo4jPassword:   os.Getenv("NEO4J_PASSWORD"),
	})
	if err != nil {
		return fmt.Errorf("failed to wire application: %w", err)
	}
	defer codeApp.Close()

	snapshots, err := codeApp.Snapshots.List(ctx, repoCfg.Name, 10)
	if err != nil || len(snapshots) == 0 {
		fmt.Println("No index found. Run 'codeindex index <repo>' to create one.")
		return nil
	}

	fmt.Printf("Index Status for %s:\n", repoCfg.Name)
	for i, snap := range snapshots {
		marker := " "
		if i == 0 {
			marker = "*"
		}
		fmt.Printf("  %s %-24s  files=%-6d  %s\n", marker, snap.SnapshotID, len(snap.Files), snap.Timestamp.Format("2006-01-02 15:04:05"))
	}

	fmt.Println("\nAdapters:")
	for _, src := range []string{"lexical", "vector", "symbol", "fuzzy", "domain"} {
		if _, ok := codeApp.Adapters[src]; ok {
			fmt.Printf("  %-8s online\n", src)
		} else {
			fmt.Printf("  %-8s unavailable\n", src)
		}
	}

	return nil
}
