// Package sync provides background synchronization for code indexing.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/codeintel/codeindex/internal/app"
	"github.com/codeintel/codeindex/internal/changedetect"
	"github.com/codeintel/codeindex/internal/config"
	"github.com/codeintel/codeindex/internal/orchestrator"
)

// Daemon watches repositories and syncs on changes, re-running an
// incremental index through each repo's own app.App whenever its git HEAD
// moves. Grounded on the teacher's poll-HEAD-then-reindex daemon shape,
// generalized from a single shared *indexer.Indexer to one app.App per
// repo since each repo gets its own relational store and bleve indexes.
type Daemon struct {
	repos    []RepoWatch
	interval time.Duration
	logger   *slog.Logger
	headHash map[string]string // repo name -> last known HEAD hash
}

// RepoWatch defines a repository to watch.
type RepoWatch struct {
	Name   string
	Path   string
	Config *config.RepoConfig
	App    *app.App
}

// NewDaemon creates a new sync daemon.
func NewDaemon(repos []RepoWatch, interval time.Duration, logger *slog.Logger) *Daemon {
	return &Daemon{
		repos:    repos,
		interval: interval,
		logger:   logger,
		headHash: make(map[string]string),
	}
}

// Run starts the daemon.
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.Info("starting sync daemon", "interval", d.interval, "repos", len(d.repos))

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	// Initial sync
	d.syncAll(ctx)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("daemon shutting down")
			return ctx.Err()
		case <-ticker.C:
			d.syncAll(ctx)
		}
	}
}

func (d *Daemon) syncAll(ctx context.Context) {
	for _, repo := range d.repos {
		if err := d.syncRepo(ctx, repo); err != nil {
			d.logger.Error("sync failed", "repo", repo.Name, "error", err)
		}
	}
}

func (d *Daemon) syncRepo(ctx context.Context, repo RepoWatch) error {
	d.logger.Debug("checking repo", "name", repo.Name)

	currentHead, err := changedetect.HeadHash(repo.Path)
	if err != nil {
		return fmt.Errorf("failed to get HEAD: %w", err)
	}

	cachedHead := d.headHash[repo.Name]
	if currentHead == cachedHead {
		d.logger.Debug("repo unchanged", "name", repo.Name)
		return nil
	}

	d.logger.Info("repo changed, syncing", "name", repo.Name, "old_head", truncateHash(cachedHead), "new_head", truncateHash(currentHead))

	opts := orchestrator.Options{Includes: repo.Config.Include, Excludes: repo.Config.Exclude}
	newSnapshotID := fmt.Sprintf("%s-%d", truncateHash(currentHead), time.Now().Unix())

	var result *orchestrator.Result
	prev, loadErr := repo.App.Snapshots.LoadLatest(ctx, repo.Name)
	if loadErr != nil {
		result, err = repo.App.Orchestrator.IndexRepoFull(ctx, repo.Name, newSnapshotID, repo.Path, opts)
	} else {
		result, err = repo.App.Orchestrator.IndexRepoIncrementalAuto(ctx, repo.Name, newSnapshotID, repo.Path, prev.SnapshotID, opts)
	}
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	d.logger.Info("sync complete",
		"repo", repo.Name,
		"files", result.FilesProcessed,
		"chunks", result.ChunksCreated,
	)

	d.headHash[repo.Name] = currentHead

	return nil
}

func truncateHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
