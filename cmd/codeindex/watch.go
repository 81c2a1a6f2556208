package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/codeintel/codeindex/internal/app"
	"github.com/codeintel/codeindex/internal/config"
	"github.com/codeintel/codeindex/internal/sync"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch repositories and sync on changes",
	Long:  `Run a background daemon that watches repositories for changes and syncs the index.`,
	RunE:  runWatch,
}

var (
	watchRepos    string
	watchInterval string
)

func init() {
	watchCmd.Flags().StringVar(&watchRepos, "repos", "", "Comma-separated repo names to watch (e.g., r3,m32rimm)")
	watchCmd.Flags().StringVar(&watchInterval, "interval", "60s", "Check interval (e.g., 30s, 5m)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchRepos == "" {
		return fmt.Errorf("--repos is required")
	}

	interval, err := time.ParseDuration(watchInterval)
	if err != nil {
		return fmt.Errorf("invalid interval: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.LoadConfig(getGlobalConfigPath())
	if err != nil {
		cfg = config.DefaultConfig()
	}

	voyageKey := os.Getenv("VOYAGE_API_KEY")
	if voyageKey == "" {
		return fmt.Errorf("VOYAGE_API_KEY not set")
	}

	homeDir, _ := os.UserHomeDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repoNames := strings.Split(watchRepos, ",")
	var repos []sync.RepoWatch
	var apps []*app.App

	for _, name := range repoNames {
		name = strings.TrimSpace(name)
		repoPath := filepath.Join(homeDir, "repos", name)

		if _, err := os.Stat(repoPath); os.IsNotExist(err) {
			logger.Warn("repo path not found", "repo", name, "path", repoPath)
			continue
		}

		repoCfg, err := config.LoadRepoConfig(repoPath)
		if err != nil {
			repoCfg = &config.RepoConfig{
				Name:    name,
				Include: []string{"**/*.py", "**/*.js", "**/*.ts", "**/*.go"},
				Exclude: []string{"**/node_modules/**", "**/venv/**", "**/.git/**"},
			}
			logger.Warn("using default repo config", "repo", name)
		}

		repoApp, err := app.New(ctx, cfg, repoPath, app.Options{
			EmbeddingAPIKey: voyageKey,
			Neo4jUser:       os.Getenv("NEO4J_USER"),
			Neo4jPassword:   os.Getenv("NEO4J_PASSWORD"),
			Logger:          logger,
		})
		if err != nil {
			logger.Warn("failed to wire app for repo, skipping", "repo", name, "err", err)
			continue
		}
		apps = append(apps, repoApp)

		repos = append(repos, sync.RepoWatch{
			Name:   name,
			Path:   repoPath,
			Config: repoCfg,
			App:    repoApp,
		})
	}

	if len(repos) == 0 {
		return fmt.Errorf("no valid repos found")
	}

	defer func() {
		for _, a := range apps {
			a.Close()
		}
	}()

	daemon := sync.NewDaemon(repos, interval, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	return daemon.Run(ctx)
}
