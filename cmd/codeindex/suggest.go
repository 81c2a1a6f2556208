// cmd/codeindex/suggest.go
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/codeintel/codeindex/internal/app"
	"github.com/codeintel/codeindex/internal/config"
	"github.com/codeintel/codeindex/internal/retriever"
	"github.com/spf13/cobra"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest-context [file-path]",
	Short: "Suggest related files for context (used by Claude Code hooks)",
	Long: `Analyzes the given file and suggests semantically related files that
may be relevant context. Output goes to stderr so Claude can see it.

This command is designed to be called by Claude Code PreToolUse hooks
when reading files. It fails silently to avoid breaking Claude's operations.`,
	Args: cobra.ExactArgs(1),
	RunE: runSuggestContext,
}

var suggestLimit int

func init() {
	suggestCmd.Flags().IntVar(&suggestLimit, "limit", 3, "Maximum suggestions to show")
	rootCmd.AddCommand(suggestCmd)
}

func runSuggestContext(cmd *cobra.Command, args []string) error {
	filePath := args[0]

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil // Silent fail
	}

	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil // Silent fail - file might not exist yet
	}
	if len(content) < 50 {
		return nil // too small to be meaningful code
	}

	voyageKey := os.Getenv("VOYAGE_API_KEY")
	if voyageKey == "" {
		return nil // Silent fail - no API key
	}

	repo := inferRepoFromPath(absPath)
	if repo == "" {
		return nil // can't determine which repo this file belongs to
	}

	homeDir, _ := os.UserHomeDir()
	repoPath := filepath.Join(homeDir, "repos", repo)

	cfg, err := config.LoadConfig(getGlobalConfigPath())
	if err != nil {
		cfg = config.DefaultConfig()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	codeApp, err := app.New(ctx, cfg, repoPath, app.Options{
		EmbeddingAPIKey: voyageKey,
		Neo4jUser:       os.Getenv("NEO4J_USER"),
		Neo4jPassword:   os.Getenv("NEO4J_PASSWORD"),
	})
	if err != nil {
		return nil // Silent fail - backends unavailable
	}
	defer codeApp.Close()

	snapshot, err := codeApp.Snapshots.LoadLatest(ctx, repo)
	if err != nil {
		return nil // no index yet
	}

	queryText := string(content)
	if len(queryText) > 2000 {
		queryText = queryText[:2000]
	}

	relPath, err := filepath.Rel(repoPath, absPath)
	if err != nil {
		relPath = absPath
	}

	result, err := codeApp.Retriever.Retrieve(ctx, repo, snapshot.SnapshotID, queryText, retriever.Options{TopK: suggestLimit * 5})
	if err != nil {
		return nil // Silent fail
	}

	seen := map[string]bool{relPath: true, absPath: true}
	var suggestions []string
	for _, f := range result.Hits {
		if seen[f.FilePath] {
			continue
		}
		seen[f.FilePath] = true
		suggestions = append(suggestions, f.FilePath)
		if len(suggestions) >= suggestLimit {
			break
		}
	}

	if len(suggestions) == 0 {
		return nil
	}

	fmt.Fprintf(os.Stderr, "[code-index] Related files for %s:\n", filepath.Base(filePath))
	for _, s := range suggestions {
		fmt.Fprintf(os.Stderr, "  - %s\n", s)
	}

	return nil
}
