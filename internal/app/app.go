// Package app assembles the orchestrator, retriever, and their shared
// adapters/stores from a config.Config, replacing the piecemeal
// per-command wiring the teacher's cmd/ package used to do directly
// against internal/indexer and internal/search. Grounded on
// internal/indexer.NewIndexer's connect-everything-up-front constructor
// shape, generalized from one backend (Qdrant only) to all five adapters
// plus the relational store.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/codeintel/codeindex/internal/cache"
	"github.com/codeintel/codeindex/internal/changedetect"
	"github.com/codeintel/codeindex/internal/config"
	"github.com/codeintel/codeindex/internal/embedding"
	"github.com/codeintel/codeindex/internal/index"
	"github.com/codeintel/codeindex/internal/observability"
	"github.com/codeintel/codeindex/internal/orchestrator"
	"github.com/codeintel/codeindex/internal/pattern"
	"github.com/codeintel/codeindex/internal/relstore"
	"github.com/codeintel/codeindex/internal/retriever"
	"github.com/codeintel/codeindex/internal/semantic"
	"github.com/codeintel/codeindex/internal/typesnapshot"
)

// App holds every long-lived dependency a CLI command or server needs,
// built once from config and torn down with Close.
type App struct {
	Config      *config.Config
	RelStore    *sql.DB
	Snapshots   *typesnapshot.Store
	Adapters    map[string]index.Adapter
	Embedder    embedding.Provider
	Detector    changedetect.Detector
	Tracer      *observability.Tracer
	Orchestrator *orchestrator.Orchestrator
	Retriever    *retriever.Retriever
	Logger       *slog.Logger

	closers []func() error
}

// Options carries the per-process inputs config.Config doesn't itself
// hold: secrets (never persisted to YAML) and the trace/log destinations.
type Options struct {
	EmbeddingAPIKey string
	Neo4jUser       string
	Neo4jPassword   string
	TracePath       string // stage-timing JSONL; empty disables tracing
	Logger          *slog.Logger
}

// New wires every adapter named in cfg.Storage into a shared Orchestrator
// and Retriever. Adapters whose URL/path is empty are skipped rather than
// erroring, so a partial deployment (e.g. no Neo4j) still indexes and
// searches with the adapters it does have, per §6's "a missing backend
// degrades the corresponding strategy, it doesn't fail the whole system."
func New(ctx context.Context, cfg *config.Config, repoRoot string, opts Options) (*App, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: opts.Logger, Adapters: map[string]index.Adapter{}}

	dsn := cfg.Storage.DatabaseURL
	if dsn == "" {
		dsn = "file:" + filepath.Join(repoRoot, ".codeindex", "index.db") + "?_pragma=busy_timeout(5000)"
		if err := os.MkdirAll(filepath.Join(repoRoot, ".codeindex"), 0o755); err != nil {
			return nil, fmt.Errorf("app: prepare data dir: %w", err)
		}
	}
	db, err := relstore.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("app: open relstore: %w", err)
	}
	a.closers = append(a.closers, db.Close)
	if err := relstore.Migrate(db); err != nil {
		return nil, fmt.Errorf("app: migrate relstore: %w", err)
	}
	a.RelStore = db

	snaps, err := typesnapshot.NewStore(db)
	if err != nil {
		return nil, fmt.Errorf("app: type snapshot store: %w", err)
	}
	a.Snapshots = snaps

	a.Adapters[index.SourceFuzzy] = index.NewFuzzyIndex(db)

	lexicalPath := cfg.Storage.LexicalURL
	if lexicalPath == "" {
		lexicalPath = filepath.Join(repoRoot, ".codeindex", "lexical.bleve")
	}
	lexical, err := index.NewLexicalIndex(lexicalPath)
	if err != nil {
		opts.Logger.Warn("lexical index unavailable", "err", err)
	} else {
		a.Adapters[index.SourceLexical] = lexical
		a.closers = append(a.closers, lexical.Close)
	}

	domainPath := filepath.Join(repoRoot, ".codeindex", "domain.bleve")
	domain, err := index.NewDomainIndex(domainPath)
	if err != nil {
		opts.Logger.Warn("domain index unavailable", "err", err)
	} else {
		a.Adapters[index.SourceDomain] = domain
		a.closers = append(a.closers, domain.Close)
	}

	var embedder embedding.Provider
	if opts.EmbeddingAPIKey != "" {
		voyage := embedding.NewVoyageClient(opts.EmbeddingAPIKey, cfg.Embedding.Model)
		cached := embedding.NewCachedProvider(voyage, cache.NewMemoryCache[[]float32](4096, 24*time.Hour, nil), 24*time.Hour)
		embedder = cached

		if cfg.Storage.QdrantURL != "" {
			vec, err := index.NewVectorIndex(cfg.Storage.QdrantURL, voyage.Dimension())
			if err != nil {
				opts.Logger.Warn("vector index unavailable", "err", err)
			} else {
				a.Adapters[index.SourceVector] = vec
				a.closers = append(a.closers, vec.Close)
			}
		}
	} else {
		opts.Logger.Warn("no embedding API key configured, vector search disabled")
	}
	a.Embedder = embedder

	if cfg.Storage.Neo4jURL != "" {
		user := opts.Neo4jUser
		if user == "" {
			user = "neo4j"
		}
		if opts.Neo4jPassword == "" {
			opts.Logger.Warn("neo4j url set but no password provided, symbol/graph index disabled")
		} else {
			sym, err := index.NewSymbolIndex(cfg.Storage.Neo4jURL, user, opts.Neo4jPassword)
			if err != nil {
				opts.Logger.Warn("symbol index unavailable", "err", err)
			} else {
				a.Adapters[index.SourceSymbol] = sym
				a.closers = append(a.closers, sym.Close)
			}
		}
	}

	// rerankCache has no default reranker attached (§4.9 step 9 is optional
	// and no pack example ships a cross-encoder client); it's wired up front
	// so a caller that does set retriever.Reranker gets Redis-backed reuse
	// for free instead of every query recomputing scores.
	var redisTier cache.PersistentTier
	if cfg.Storage.RedisURL != "" {
		rc, err := cache.NewRedisCache(cfg.Storage.RedisURL)
		if err != nil {
			opts.Logger.Warn("redis cache unavailable", "err", err)
		} else {
			redisTier = rc
			a.closers = append(a.closers, rc.Close)
		}
	}
	rerankCache := cache.NewMemoryCache[float64](2048, time.Hour, redisTier)

	var tracer *observability.Tracer
	if opts.TracePath != "" {
		tracer, err = observability.NewTracer(opts.TracePath, opts.Logger)
		if err != nil {
			return nil, fmt.Errorf("app: tracer: %w", err)
		}
		a.closers = append(a.closers, tracer.Close)
	}
	a.Tracer = tracer

	a.Detector = changedetect.NewGitDetector("")

	orc := orchestrator.New(a.Adapters, db, snaps, tracer)
	orc.Detector = a.Detector
	orc.Embedder = embedder
	if embedder != nil {
		orc.PatternDetector = pattern.NewDetector(pattern.DetectorConfig{})
	}
	a.closers = append(a.closers, orc.Close)
	a.Orchestrator = orc

	var strategies []retriever.Strategy
	for _, src := range []string{index.SourceLexical, index.SourceVector, index.SourceSymbol, index.SourceFuzzy, index.SourceDomain} {
		if ad, ok := a.Adapters[src]; ok {
			strategies = append(strategies, retriever.Strategy{Source: src, Adapter: ad})
		}
	}
	if symAd, ok := a.Adapters[index.SourceSymbol]; ok {
		if sym, ok := symAd.(*index.SymbolIndex); ok {
			strategies = append(strategies, retriever.Strategy{Source: index.SourceGraph, Adapter: index.NewGraphExpandAdapter(sym)})
		}
	}
	ret := retriever.New(strategies, tracer)
	ret.FusionVersion = cfg.Retrieval.FusionVersion
	ret.Embedder = embedder
	ret.RerankCache = rerankCache
	ret.LookupContent = func(ctx context.Context, chunkID string) (string, string, error) {
		return relstore.GetChunkContent(ctx, db, chunkID)
	}
	ret.ReadyCheck = func(ctx context.Context, repoID, snapshotID string) (bool, error) {
		return relstore.IsSnapshotReady(ctx, db, repoID, snapshotID)
	}
	a.Retriever = ret

	return a, nil
}

// ResolverFor builds the semantic.TypeResolver that incremental indexing
// should pass via orchestrator.Options.Resolver, honoring
// CODEINDEX_ENABLE_EXTERNAL_TYPING (§4.4/§9's blind-scan hazard: the
// analyzer-backed resolver only ever runs against IR-identified
// positions, never a free-form scan).
func (a *App) ResolverFor(analyzer semantic.Analyzer) semantic.TypeResolver {
	if a.Config.Semantic.EnableExternalTyping && analyzer != nil {
		return semantic.NewAnalyzerResolver(analyzer, 10)
	}
	return semantic.NewLexicalResolver(nil)
}

// Close releases every resource opened by New, in reverse acquisition
// order, collecting (not short-circuiting on) individual close errors.
func (a *App) Close() error {
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
