// cmd/codeindex-mcp/main.go
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/codeintel/codeindex/internal/app"
	"github.com/codeintel/codeindex/internal/config"
	"github.com/codeintel/codeindex/internal/mcp"
	"github.com/codeintel/codeindex/internal/search"
	"github.com/spf13/cobra"
)

const (
	serverName    = "codeindex-mcp"
	serverVersion = "0.1.0"
)

var rootCmd = &cobra.Command{
	Use:   "codeindex-mcp",
	Short: "MCP server for semantic code search",
	Long:  `An MCP (Model Context Protocol) server that provides semantic code search tools for Claude Code.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long:  `Start the MCP server listening on stdin/stdout for JSON-RPC messages.`,
	RunE:  runServe,
}

var (
	logFile  string
	repoPath string
)

func init() {
	serveCmd.Flags().StringVar(&logFile, "log-file", "", "Log file path (defaults to ~/.cache/codeindex-mcp/server.log)")
	serveCmd.Flags().StringVar(&repoPath, "repo", "", "Repository path to search (defaults to the current directory)")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	// Set up logging to file (NOT stdout - that's for MCP protocol)
	logger, cleanup, err := setupLogging()
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	defer cleanup()

	logger.Info("starting MCP server", "name", serverName, "version", serverVersion)

	cfg, err := config.LoadConfig(getGlobalConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	absRepoPath := repoPath
	if absRepoPath == "" {
		absRepoPath, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to resolve repo path: %w", err)
		}
	}
	absRepoPath, err = filepath.Abs(absRepoPath)
	if err != nil {
		return fmt.Errorf("invalid repo path: %w", err)
	}

	repoCfg, err := config.LoadRepoConfig(absRepoPath)
	repoID := filepath.Base(absRepoPath)
	if err == nil && repoCfg.Name != "" {
		repoID = repoCfg.Name
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	codeApp, err := app.New(ctx, cfg, absRepoPath, app.Options{
		EmbeddingAPIKey: os.Getenv("VOYAGE_API_KEY"),
		Neo4jUser:       os.Getenv("NEO4J_USER"),
		Neo4jPassword:   os.Getenv("NEO4J_PASSWORD"),
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("failed to wire application: %w", err)
	}
	defer codeApp.Close()

	handler, err := search.NewHandler(codeApp, repoID, logger)
	if err != nil {
		return fmt.Errorf("failed to create handler: %w", err)
	}
	defer handler.Close()

	server := mcp.NewServer(serverName, serverVersion, handler, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	// Run server with stdin/stdout
	if err := server.Run(ctx, os.Stdin, os.Stdout); err != nil {
		if err == context.Canceled {
			logger.Info("server stopped")
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

func getGlobalConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".codeindex-config.yaml"
	}
	return filepath.Join(homeDir, ".config", "codeindex", "config.yaml")
}

func setupLogging() (*slog.Logger, func(), error) {
	path := logFile
	if path == "" {
		// Default to ~/.cache/codeindex-mcp/server.log
		cacheDir, err := os.UserCacheDir()
		if err != nil {
			cacheDir = "/tmp"
		}
		logDir := filepath.Join(cacheDir, "codeindex-mcp")
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		path = filepath.Join(logDir, "server.log")
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	cleanup := func() {
		file.Close()
	}

	return logger, cleanup, nil
}
