// Package orchestrator composes the parser, IR generator, chunk builder,
// and index adapters into end-to-end "index a repository" operations,
// grounded on internal/indexer.Indexer's walk-extract-embed-store pipeline
// but restructured around the IR path and the five uniform index adapters.
package orchestrator

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/codeintel/codeindex/internal/changedetect"
	"github.com/codeintel/codeindex/internal/chunk"
	"github.com/codeintel/codeindex/internal/docs"
	"github.com/codeintel/codeindex/internal/embedding"
	"github.com/codeintel/codeindex/internal/errs"
	"github.com/codeintel/codeindex/internal/index"
	"github.com/codeintel/codeindex/internal/indexer"
	"github.com/codeintel/codeindex/internal/ir"
	"github.com/codeintel/codeindex/internal/observability"
	"github.com/codeintel/codeindex/internal/parser"
	"github.com/codeintel/codeindex/internal/pattern"
	"github.com/codeintel/codeindex/internal/relstore"
	"github.com/codeintel/codeindex/internal/semantic"
	"github.com/codeintel/codeindex/internal/typesnapshot"
)

// Options configures one indexing run.
type Options struct {
	Includes, Excludes []string
	// MaxFailureFraction is the fraction of files that may fail parsing or
	// IR generation before the whole run is reported as failed, despite
	// per-file error isolation (§4.8).
	MaxFailureFraction  float64
	Resolver            semantic.TypeResolver
	LargeClassThreshold int
	// SkipNavDocs disables the AGENTS.md/CLAUDE.md discovery stage (§4.8
	// full-pipeline step 9's navigation artifacts); on by default.
	SkipNavDocs bool
	// SkipPatterns disables cross-file pattern detection (§4.8 full-pipeline
	// step 9's repo-map artifacts); on by default.
	SkipPatterns bool
	// EmbedBatchSize bounds how many chunk contents are sent to the
	// embedding provider per request; <=0 uses a 128-text default.
	EmbedBatchSize int
}

// Result is the §4.8 result object.
type Result struct {
	FilesProcessed int
	FilesSkipped   int
	ChunksCreated  int
	ChunksIndexed  int
	GraphNodes     int
	GraphEdges     int
	Timings        map[string]time.Duration
	Errors         []*errs.Error
}

// Orchestrator wires the five index adapters and the relational stores
// behind the two public pipeline operations.
type Orchestrator struct {
	Adapters        map[string]index.Adapter
	RelStore        *sql.DB
	Snapshots       *typesnapshot.Store
	Tracer          *observability.Tracer
	Detector        changedetect.Detector
	Embedder        embedding.Provider
	PatternDetector *pattern.Detector
	// ASTCache holds the last parsed tree per file path across runs of this
	// Orchestrator (§4.11), so IndexRepoIncremental can hand a prior tree to
	// parser.ParseIncremental instead of reparsing unchanged files whole.
	ASTCache *parser.ASTCache
}

// New builds an Orchestrator over the given adapter set, keyed by
// index.Source* constant.
func New(adapters map[string]index.Adapter, rel *sql.DB, snapshots *typesnapshot.Store, tracer *observability.Tracer) *Orchestrator {
	return &Orchestrator{Adapters: adapters, RelStore: rel, Snapshots: snapshots, Tracer: tracer, ASTCache: parser.NewASTCache(512)}
}

// Close releases the AST cache's held trees. Safe to call even if ASTCache
// was overwritten with nil.
func (o *Orchestrator) Close() error {
	if o.ASTCache != nil {
		o.ASTCache.Close()
	}
	return nil
}

// fileUnit is one file's work product threaded through the pipeline.
type fileUnit struct {
	relPath string
	source  []byte
	lang    parser.Language
	doc     *ir.Document
	chunks  []chunk.Chunk
	err     error
}

// IndexRepoFull runs the full seven-stage pipeline over every discovered
// file in repoPath.
func (o *Orchestrator) IndexRepoFull(ctx context.Context, repoID, snapshotID, repoPath string, opts Options) (*Result, error) {
	result := &Result{Timings: map[string]time.Duration{}}

	var files, navFiles []string
	err := o.stage(ctx, result, "discover", func(ctx context.Context) error {
		walker := indexer.NewWalker(opts.Includes, opts.Excludes)
		return walker.Walk(repoPath, func(path string) error {
			rel, relErr := filepath.Rel(repoPath, path)
			if relErr != nil {
				return relErr
			}
			if isNavDoc(rel) {
				navFiles = append(navFiles, rel)
			} else {
				files = append(files, rel)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: discover: %w", err)
	}

	units := make([]*fileUnit, len(files))
	for i, rel := range files {
		units[i] = &fileUnit{relPath: rel}
	}

	if err := o.stage(ctx, result, "parse_and_ir", func(ctx context.Context) error {
		return o.parseAndGenerate(ctx, repoID, snapshotID, repoPath, units, false)
	}); err != nil {
		return nil, fmt.Errorf("orchestrator: parse_and_ir: %w", err)
	}

	if err := o.stage(ctx, result, "chunk", func(ctx context.Context) error {
		return o.chunkAll(repoID, snapshotID, units, opts)
	}); err != nil {
		return nil, fmt.Errorf("orchestrator: chunk: %w", err)
	}

	var artifactChunks []chunk.Chunk
	if !opts.SkipNavDocs && len(navFiles) > 0 {
		if err := o.stage(ctx, result, "nav_docs", func(ctx context.Context) error {
			cs, err := o.loadNavDocs(repoPath, repoID, snapshotID, navFiles)
			artifactChunks = append(artifactChunks, cs...)
			return err
		}); err != nil {
			return nil, fmt.Errorf("orchestrator: nav_docs: %w", err)
		}
	}
	if !opts.SkipPatterns {
		if err := o.stage(ctx, result, "patterns", func(ctx context.Context) error {
			artifactChunks = append(artifactChunks, o.detectPatterns(repoID, snapshotID, units)...)
			return nil
		}); err != nil {
			return nil, fmt.Errorf("orchestrator: patterns: %w", err)
		}
	}

	docs := toIndexDocuments(units, result)
	docs = append(docs, docChunksToIndexDocuments(artifactChunks)...)

	if o.Embedder != nil {
		if err := o.stage(ctx, result, "embed", func(ctx context.Context) error {
			return o.embedAll(ctx, docs, opts)
		}); err != nil {
			return nil, fmt.Errorf("orchestrator: embed: %w", err)
		}
	}

	if o.RelStore != nil {
		if err := o.stage(ctx, result, "persist_chunks", func(ctx context.Context) error {
			return o.persistChunks(ctx, units, artifactChunks, docs)
		}); err != nil {
			return nil, fmt.Errorf("orchestrator: persist_chunks: %w", err)
		}
	}

	if err := o.stage(ctx, result, "index", func(ctx context.Context) error {
		return o.upsertAll(ctx, result, repoID, snapshotID, docs)
	}); err != nil {
		return nil, fmt.Errorf("orchestrator: index: %w", err)
	}
	result.ChunksIndexed = len(docs)

	failures := len(result.Errors)
	if opts.MaxFailureFraction > 0 && len(files) > 0 {
		if float64(failures)/float64(len(files)) > opts.MaxFailureFraction {
			return result, errs.New(errs.KindIndex, fmt.Sprintf("failure fraction %.2f exceeds threshold", float64(failures)/float64(len(files))))
		}
	}

	if o.RelStore != nil {
		if err := relstore.PublishSnapshot(ctx, o.RelStore, repoID, snapshotID); err != nil {
			result.Errors = append(result.Errors, toErrsError(err))
		}
	}

	return result, nil
}

// IndexRepoIncremental indexes only the changed/deleted file sets,
// leaving every other file's index entries untouched (§4.8 step 5).
func (o *Orchestrator) IndexRepoIncremental(ctx context.Context, repoID, newSnapshotID string, changedFiles, deletedFiles []string, prevSnapshotID, repoPath string, opts Options) (*Result, error) {
	result := &Result{Timings: map[string]time.Duration{}}

	// deletedFiles never get written under newSnapshotID: each adapter's
	// Delete is snapshot-scoped, not file-scoped, so "removing" a deleted
	// file means simply not carrying it forward into the new snapshot.
	// Unaffected files are expected to have been copied forward into
	// newSnapshotID by the caller (via relstore) before this call runs,
	// satisfying the "do not touch unchanged files" rule without requiring
	// a file-level delete in the Adapter contract.
	var codeFiles, navFiles []string
	for _, f := range changedFiles {
		if isNavDoc(f) {
			navFiles = append(navFiles, f)
		} else {
			codeFiles = append(codeFiles, f)
		}
	}

	units := make([]*fileUnit, len(codeFiles))
	for i, rel := range codeFiles {
		units[i] = &fileUnit{relPath: rel}
	}

	if err := o.stage(ctx, result, "parse_and_ir", func(ctx context.Context) error {
		return o.parseAndGenerate(ctx, repoID, newSnapshotID, repoPath, units, true)
	}); err != nil {
		return nil, fmt.Errorf("orchestrator: parse_and_ir: %w", err)
	}

	if err := o.stage(ctx, result, "chunk", func(ctx context.Context) error {
		return o.chunkAll(repoID, newSnapshotID, units, opts)
	}); err != nil {
		return nil, fmt.Errorf("orchestrator: chunk: %w", err)
	}

	var artifactChunks []chunk.Chunk
	if !opts.SkipNavDocs && len(navFiles) > 0 {
		if err := o.stage(ctx, result, "nav_docs", func(ctx context.Context) error {
			cs, err := o.loadNavDocs(repoPath, repoID, newSnapshotID, navFiles)
			artifactChunks = append(artifactChunks, cs...)
			return err
		}); err != nil {
			return nil, fmt.Errorf("orchestrator: nav_docs: %w", err)
		}
	}
	if !opts.SkipPatterns {
		if err := o.stage(ctx, result, "patterns", func(ctx context.Context) error {
			artifactChunks = append(artifactChunks, o.detectPatterns(repoID, newSnapshotID, units)...)
			return nil
		}); err != nil {
			return nil, fmt.Errorf("orchestrator: patterns: %w", err)
		}
	}

	docs := toIndexDocuments(units, result)
	docs = append(docs, docChunksToIndexDocuments(artifactChunks)...)

	if o.Embedder != nil {
		if err := o.stage(ctx, result, "embed", func(ctx context.Context) error {
			return o.embedAll(ctx, docs, opts)
		}); err != nil {
			return nil, fmt.Errorf("orchestrator: embed: %w", err)
		}
	}

	if o.RelStore != nil {
		if err := o.stage(ctx, result, "persist_chunks", func(ctx context.Context) error {
			return o.persistChunks(ctx, units, artifactChunks, docs)
		}); err != nil {
			return nil, fmt.Errorf("orchestrator: persist_chunks: %w", err)
		}
	}

	if err := o.stage(ctx, result, "index", func(ctx context.Context) error {
		return o.upsertAll(ctx, result, repoID, newSnapshotID, docs)
	}); err != nil {
		return nil, fmt.Errorf("orchestrator: index: %w", err)
	}
	result.ChunksIndexed = len(docs)

	if err := o.stage(ctx, result, "type_snapshot_merge", func(ctx context.Context) error {
		return o.mergeTypeSnapshot(ctx, repoID, newSnapshotID, prevSnapshotID, changedFiles, deletedFiles, units, opts)
	}); err != nil {
		return nil, fmt.Errorf("orchestrator: type_snapshot_merge: %w", err)
	}

	if o.RelStore != nil {
		if err := relstore.PublishSnapshot(ctx, o.RelStore, repoID, newSnapshotID); err != nil {
			result.Errors = append(result.Errors, toErrsError(err))
		}
	}

	return result, nil
}

// IndexRepoIncrementalAuto runs change detection via o.Detector before
// delegating to IndexRepoIncremental, covering §4.8 incremental step 1.
func (o *Orchestrator) IndexRepoIncrementalAuto(ctx context.Context, repoID, newSnapshotID, repoPath, prevSnapshotID string, opts Options) (*Result, error) {
	if o.Detector == nil {
		return nil, errs.New(errs.KindConfig, "orchestrator: no change detector configured")
	}
	snap, err := o.Detector.Detect(ctx, repoPath)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: detect changes: %w", err)
	}
	return o.IndexRepoIncremental(ctx, repoID, newSnapshotID, snap.ChangedFiles, snap.DeletedFiles, prevSnapshotID, repoPath, opts)
}

// mergeTypeSnapshot resolves types for each changed file's IR document and
// merges the result into the previous snapshot using the direct
// file-keyed rule (internal/typesnapshot.Merge), never a generic diff.
func (o *Orchestrator) mergeTypeSnapshot(ctx context.Context, repoID, newSnapshotID, prevSnapshotID string, changedFiles, deletedFiles []string, units []*fileUnit, opts Options) error {
	if o.Snapshots == nil || opts.Resolver == nil {
		return nil
	}
	prev, err := o.Snapshots.LoadByID(ctx, prevSnapshotID)
	if err != nil {
		// Degrade to a full analysis for this run rather than fail outright,
		// logged by the caller at WARN per §4.6's failure semantics.
		prev = &typesnapshot.Snapshot{}
	}

	fresh := make(map[string][]typesnapshot.TypingEntry, len(units))
	for _, u := range units {
		if u.err != nil || u.doc == nil {
			continue
		}
		entities, err := opts.Resolver.Resolve(ctx, u.doc)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", u.relPath, err)
		}
		var entries []typesnapshot.TypingEntry
		for nodeID, te := range entities {
			n, ok := u.doc.Get(nodeID)
			if !ok {
				continue
			}
			entries = append(entries, typesnapshot.TypingEntry{
				File:      u.relPath,
				StartLine: n.Span.StartLine,
				StartCol:  n.Span.StartCol,
				EndLine:   n.Span.EndLine,
				EndCol:    n.Span.EndCol,
				Type:      te.Raw,
			})
		}
		fresh[u.relPath] = entries
	}

	merged := typesnapshot.Merge(prev, changedFiles, deletedFiles, fresh, newSnapshotID, repoID, changedFiles)
	return o.Snapshots.Save(ctx, merged)
}

// parseAndGenerate runs parse + IR-generate concurrently per file, with
// strict per-file error isolation: a failing file is recorded as an
// *errs.Error on its unit and excluded from later stages, never aborting
// the run. When incremental is true and o.ASTCache holds a prior tree for a
// file, it reparses via parser.ParseIncremental (§4.1/§4.11) instead of a
// full parser.RawParseCtx; IndexRepoFull always passes incremental=false
// since there is by definition no prior tree to reuse on a first index.
func (o *Orchestrator) parseAndGenerate(ctx context.Context, repoID, snapshotID, repoPath string, units []*fileUnit, incremental bool) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(16)

	for _, u := range units {
		u := u
		g.Go(func() error {
			source, err := os.ReadFile(filepath.Join(repoPath, u.relPath))
			if err != nil {
				u.err = errs.Wrap(errs.KindParse, err.Error(), err).WithDetail("file", u.relPath)
				return nil
			}
			u.source = source

			lang, ok := parser.DetectLanguage(u.relPath)
			if !ok {
				u.err = errs.New(errs.KindParse, "unsupported language").WithDetail("file", u.relPath)
				return nil
			}
			u.lang = lang

			p, err := parser.NewParser(lang)
			if err != nil {
				u.err = errs.Wrap(errs.KindParse, err.Error(), err).WithDetail("file", u.relPath)
				return nil
			}

			var tree *sitter.Tree
			cacheKey := repoID + ":" + u.relPath
			if incremental && o.ASTCache != nil {
				if oldSource, oldTree, ok := o.ASTCache.Get(cacheKey); ok {
					tree, err = parser.ParseIncremental(gctx, p, oldTree, oldSource, source)
				} else {
					tree, err = parser.RawParseCtx(gctx, p, source)
				}
			} else {
				tree, err = parser.RawParseCtx(gctx, p, source)
			}
			if err != nil {
				u.err = errs.Wrap(errs.KindParse, err.Error(), err).WithDetail("file", u.relPath)
				return nil
			}

			gen := ir.NewGenerator()
			doc, err := gen.Generate(gctx, ir.SourceFile{RepoID: repoID, FilePath: u.relPath, Source: source, Language: lang}, snapshotID, tree)
			if err != nil {
				tree.Close()
				u.err = errs.Wrap(errs.KindInternal, err.Error(), err).WithDetail("file", u.relPath)
				return nil
			}
			u.doc = doc

			if o.ASTCache != nil {
				o.ASTCache.Put(cacheKey, source, tree)
			} else {
				tree.Close()
			}
			return nil
		})
	}
	return g.Wait()
}

func (o *Orchestrator) chunkAll(repoID, snapshotID string, units []*fileUnit, opts Options) error {
	builder := chunk.NewBuilder(opts.LargeClassThreshold)
	for _, u := range units {
		if u.err != nil || u.doc == nil {
			continue
		}
		chunks, err := builder.Build(u.doc, repoID, snapshotID, u.source)
		if err != nil {
			u.err = errs.Wrap(errs.KindInternal, err.Error(), err).WithDetail("file", u.relPath)
			continue
		}
		u.chunks = chunks
	}
	return nil
}

// isNavDoc reports whether rel is a navigation document (AGENTS.md,
// CLAUDE.md) handled by internal/docs instead of the parser/IR path.
func isNavDoc(rel string) bool {
	base := filepath.Base(rel)
	return base == "AGENTS.md" || base == "CLAUDE.md"
}

// loadNavDocs reads and parses the navigation docs discovered alongside
// the repo walk into documentation-typed chunks for the domain index,
// grounded on internal/docs.ParseAgentsMD / AgentsDoc.ToChunks.
func (o *Orchestrator) loadNavDocs(repoPath, repoID, snapshotID string, navFiles []string) ([]chunk.Chunk, error) {
	var out []chunk.Chunk
	for _, rel := range navFiles {
		content, err := os.ReadFile(filepath.Join(repoPath, rel))
		if err != nil {
			continue // a missing/unreadable nav doc degrades silently, it's not part of the code graph
		}
		doc, err := docs.ParseAgentsMD(content, rel, repoID)
		if err != nil {
			continue
		}
		cs := doc.ToChunks()
		for i := range cs {
			cs[i].SnapshotID = snapshotID
		}
		out = append(out, cs...)
	}
	return out, nil
}

// detectPatterns derives a flat []parser.Symbol table from each file's IR
// class/method structure and runs it through o.PatternDetector, converting
// any detected cross-file pattern into a documentation-typed chunk (§4.8
// full-pipeline step 9's optional repo-map artifact).
func (o *Orchestrator) detectPatterns(repoID, snapshotID string, units []*fileUnit) []chunk.Chunk {
	if o.PatternDetector == nil {
		return nil
	}
	var symbols []parser.Symbol
	for _, u := range units {
		if u.err != nil || u.doc == nil {
			continue
		}
		for class, methods := range classMembers(u.doc) {
			symbols = append(symbols, pattern.SymbolsFromMembers(u.relPath, class.Name, methods)...)
		}
	}
	if len(symbols) == 0 {
		return nil
	}
	patterns := o.PatternDetector.Detect(symbols)
	if len(patterns) == 0 {
		return nil
	}
	return pattern.ToChunks(patterns, repoID, snapshotID)
}

// classMembers maps each class node in doc to the names of the method
// nodes it CONTAINS, the shape pattern.SymbolsFromMembers expects.
func classMembers(doc *ir.Document) map[*ir.Node][]string {
	byID := make(map[string]*ir.Node, len(doc.Nodes))
	classes := make(map[string]*ir.Node)
	for _, n := range doc.Nodes {
		byID[n.ID] = n
		if n.Kind == ir.KindClass {
			classes[n.ID] = n
		}
	}
	methodNames := make(map[string][]string)
	for _, e := range doc.Edges {
		if e.Kind != ir.EdgeContains {
			continue
		}
		if _, isClass := classes[e.SourceID]; !isClass {
			continue
		}
		if n, ok := byID[e.TargetID]; ok && n.Kind == ir.KindMethod {
			methodNames[e.SourceID] = append(methodNames[e.SourceID], n.Name)
		}
	}
	out := make(map[*ir.Node][]string, len(classes))
	for id, c := range classes {
		out[c] = methodNames[id]
	}
	return out
}

// docChunksToIndexDocuments converts documentation-typed chunks (nav docs,
// detected patterns) into index.Documents tagged for the domain index.
func docChunksToIndexDocuments(chunks []chunk.Chunk) []index.Document {
	var out []index.Document
	for _, c := range chunks {
		out = append(out, index.Document{
			ChunkID:    c.ID,
			RepoID:     c.Repo,
			SnapshotID: c.SnapshotID,
			Kind:       c.Kind,
			FilePath:   c.FilePath,
			StartLine:  c.StartLine,
			EndLine:    c.EndLine,
			Content:    c.Content,
			DocType:    c.Kind,
			Metadata: map[string]any{
				"content_hash": c.ContentHash,
				"heading_path": c.HeadingPath,
				"content":      c.Content,
			},
		})
	}
	return out
}

// embedAll computes embeddings for every document carrying indexable
// content, batched per §4.3's batching contract (dedup is handled a layer
// down by embedding.CachedProvider when configured; here the only
// responsibility is chunking the request stream to EmbedBatchSize).
func (o *Orchestrator) embedAll(ctx context.Context, docs []index.Document, opts Options) error {
	batchSize := opts.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = 128
	}
	var idx []int
	var texts []string
	for i, d := range docs {
		if d.Content == "" {
			continue
		}
		idx = append(idx, i)
		texts = append(texts, d.Content)
	}
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		vectors, err := o.Embedder.Embed(ctx, texts[start:end])
		if err != nil {
			return fmt.Errorf("orchestrator: embed batch %d-%d: %w", start, end, err)
		}
		for j, v := range vectors {
			docs[idx[start+j]].Embedding = v
		}
	}
	return nil
}

// persistChunks mirrors every chunk (code and documentation) into the
// relational store: the chunks table backs audit retention and the
// retriever's rerank content lookup, domain_documents backs the same for
// documentation-typed chunks specifically (§3, §6).
func (o *Orchestrator) persistChunks(ctx context.Context, units []*fileUnit, artifacts []chunk.Chunk, docs []index.Document) error {
	var rows []relstore.ChunkRow
	for _, u := range units {
		for _, c := range u.chunks {
			rows = append(rows, relstore.ChunkRow{
				ID: c.ID, RepoID: c.Repo, SnapshotID: c.SnapshotID, Kind: c.Kind,
				FilePath: c.FilePath, StartLine: c.StartLine, EndLine: c.EndLine,
				Content: c.Content, ContentHash: c.ContentHash,
				ParentChunkID: c.ParentChunkID, SymbolID: c.SymbolID,
			})
		}
	}
	for _, c := range artifacts {
		rows = append(rows, relstore.ChunkRow{
			ID: c.ID, RepoID: c.Repo, SnapshotID: c.SnapshotID, Kind: c.Kind,
			FilePath: c.FilePath, StartLine: c.StartLine, EndLine: c.EndLine,
			Content: c.Content, ContentHash: c.ContentHash,
		})
	}
	if err := relstore.UpsertChunks(ctx, o.RelStore, rows); err != nil {
		return err
	}

	var domainRows []relstore.DomainDocRow
	for _, d := range docs {
		if d.DocType == "" {
			continue
		}
		headingPath, _ := d.Metadata["heading_path"].(string)
		domainRows = append(domainRows, relstore.DomainDocRow{
			ID: "dd_" + d.ChunkID, RepoID: d.RepoID, SnapshotID: d.SnapshotID, ChunkID: d.ChunkID,
			DocType: d.DocType, HeadingPath: headingPath, Content: d.Content,
			FilePath: d.FilePath, StartLine: d.StartLine, EndLine: d.EndLine,
		})
	}
	return relstore.UpsertDomainDocuments(ctx, o.RelStore, domainRows)
}

func toIndexDocuments(units []*fileUnit, result *Result) []index.Document {
	var docs []index.Document
	for _, u := range units {
		if u.err != nil {
			result.Errors = append(result.Errors, toErrsError(u.err))
			result.FilesSkipped++
			continue
		}
		result.FilesProcessed++
		result.ChunksCreated += len(u.chunks)
		for _, c := range u.chunks {
			doc := index.Document{
				ChunkID:     c.ID,
				RepoID:      c.Repo,
				SnapshotID:  c.SnapshotID,
				Kind:        c.Kind,
				FilePath:    c.FilePath,
				StartLine:   c.StartLine,
				EndLine:     c.EndLine,
				Content:     c.Content,
				Identifiers: identifiersOf(c),
				Metadata: map[string]any{
					"content_hash":    c.ContentHash,
					"parent_chunk_id": c.ParentChunkID,
					"content":         c.Content,
				},
			}
			if isSymbolKind(c.Kind) && c.SymbolID != "" {
				doc.Symbol = &index.SymbolRecord{
					ID:       c.SymbolID,
					FQN:      c.SymbolName,
					Name:     c.SymbolName,
					Kind:     c.Kind,
					ParentID: c.ParentChunkID,
				}
			}
			docs = append(docs, doc)
		}
	}
	return docs
}

func isSymbolKind(kind string) bool {
	switch kind {
	case "class", "function", "method", "class_summary":
		return true
	default:
		return false
	}
}

func identifiersOf(c chunk.Chunk) []string {
	if c.SymbolName == "" {
		return nil
	}
	return []string{c.SymbolName}
}

func toErrsError(err error) *errs.Error {
	if ie, ok := err.(*errs.Error); ok {
		return ie
	}
	return errs.Wrap(errs.KindInternal, err.Error(), err)
}

// upsertAll upserts docs into every adapter independently: one adapter's
// failure is recorded in result.Errors and does not stop, cancel, or fail
// the others (§4.8 step 8's all-or-success-per-adapter rule). The run as a
// whole only fails if every adapter failed, since then nothing was indexed.
func (o *Orchestrator) upsertAll(ctx context.Context, result *Result, repoID, snapshotID string, docs []index.Document) error {
	var mu sync.Mutex
	var wg sync.WaitGroup
	failed := 0
	for name, adapter := range o.Adapters {
		name, adapter := name, adapter
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := adapter.Upsert(ctx, repoID, snapshotID, docs); err != nil {
				mu.Lock()
				failed++
				result.Errors = append(result.Errors, errs.Wrap(errs.KindIndex, fmt.Sprintf("adapter %s upsert failed", name), err))
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if failed > 0 && failed == len(o.Adapters) {
		return errs.New(errs.KindIndex, "all adapters failed to upsert")
	}
	return nil
}

func (o *Orchestrator) stage(ctx context.Context, result *Result, name string, fn func(ctx context.Context) error) error {
	start := time.Now()
	var err error
	if o.Tracer != nil {
		err = o.Tracer.Stage(ctx, name, fn)
	} else {
		err = fn(ctx)
	}
	result.Timings[name] = time.Since(start)
	return err
}
