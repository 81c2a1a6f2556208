// cmd/codeindex/index.go
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/codeintel/codeindex/internal/app"
	"github.com/codeintel/codeindex/internal/config"
	"github.com/codeintel/codeindex/internal/orchestrator"
	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index [repo-name-or-path]",
	Short: "Index a repository",
	Args:  cobra.ExactArgs(1),
	RunE:  runIndex,
}

var (
	indexIncremental bool
)

func init() {
	indexCmd.Flags().BoolVar(&indexIncremental, "incremental", false, "Only index changed files")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	repoArg := args[0]

	// Resolve repo path
	repoPath := repoArg
	if !filepath.IsAbs(repoPath) {
		// Check if it's a registered repo name or relative path
		if _, err := os.Stat(repoPath); os.IsNotExist(err) {
			// Try ~/repos/{name}
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("repository not found: %s (unable to check ~/repos)", repoPath)
			}
			repoPath = filepath.Join(homeDir, "repos", repoArg)
		}
	}

	absPath, err := filepath.Abs(repoPath)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	if _, err := os.Stat(absPath); os.IsNotExist(err) {
		return fmt.Errorf("repository not found: %s", absPath)
	}

	// Load configs
	globalCfg, err := config.LoadConfig(getGlobalConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load global config: %w", err)
	}

	repoCfg, err := config.LoadRepoConfig(absPath)
	if err != nil {
		return fmt.Errorf("failed to load repo config: %w\nRun 'codeindex init %s' first", err, absPath)
	}

	ctx := context.Background()

	codeApp, err := app.New(ctx, globalCfg, absPath, app.Options{
		EmbeddingAPIKey: os.Getenv("VOYAGE_API_KEY"),
		Neo4jUser:       os.Getenv("NEO4J_USER"),
		Neo4jPassword:   os.Getenv("NEO4J_PASSWORD"),
	})
	if err != nil {
		return fmt.Errorf("failed to wire application: %w", err)
	}
	defer codeApp.Close()

	repoID := repoCfg.Name
	opts := orchestrator.Options{Includes: repoCfg.Include, Excludes: repoCfg.Exclude}

	var result *orchestrator.Result
	if indexIncremental {
		fmt.Printf("Incremental indexing %s (%s)...\n", repoID, absPath)
		prev, loadErr := codeApp.Snapshots.LoadLatest(ctx, repoID)
		if loadErr != nil {
			fmt.Printf("Warning: no prior snapshot found, falling back to full indexing: %v\n", loadErr)
			result, err = codeApp.Orchestrator.IndexRepoFull(ctx, repoID, nextSnapshotID(absPath), absPath, opts)
		} else {
			result, err = codeApp.Orchestrator.IndexRepoIncrementalAuto(ctx, repoID, nextSnapshotID(absPath), absPath, prev.SnapshotID, opts)
		}
	} else {
		fmt.Printf("Indexing %s (%s)...\n", repoID, absPath)
		result, err = codeApp.Orchestrator.IndexRepoFull(ctx, repoID, nextSnapshotID(absPath), absPath, opts)
	}
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	// Report results
	fmt.Printf("\nIndexing complete:\n")
	fmt.Printf("  Files processed: %d\n", result.FilesProcessed)
	fmt.Printf("  Chunks created:  %d\n", result.ChunksCreated)

	if len(result.Errors) > 0 {
		fmt.Printf("  Errors: %d\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Printf("    - %v\n", e)
		}
	}

	return nil
}

func getGlobalConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory config
		return ".code-index-config.yaml"
	}
	return filepath.Join(homeDir, ".config", "code-index", "config.yaml")
}
