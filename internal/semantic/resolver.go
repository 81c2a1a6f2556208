package semantic

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/semaphore"

	"github.com/codeintel/codeindex/internal/ir"
)

// ResolutionLevel tracks how far a TypeEntity has been enriched.
// Monotonically increasing: Raw < Builtin < Local < Module < Project < External.
type ResolutionLevel int

const (
	LevelRaw ResolutionLevel = iota
	LevelBuiltin
	LevelLocal
	LevelModule
	LevelProject
	LevelExternal
)

// TypeFlavor classifies a TypeEntity.
type TypeFlavor string

const (
	FlavorPrimitive TypeFlavor = "primitive"
	FlavorBuiltin   TypeFlavor = "builtin"
	FlavorUser      TypeFlavor = "user"
	FlavorExternal  TypeFlavor = "external"
	FlavorTypeVar   TypeFlavor = "typevar"
	FlavorGeneric   TypeFlavor = "generic"
	FlavorCallable  TypeFlavor = "callable"
)

// TypeEntity is a resolved or partially-resolved type.
type TypeEntity struct {
	ID              string
	Raw             string
	Flavor          TypeFlavor
	GenericParamIDs []string
	ResolutionLevel ResolutionLevel
}

// ParamKind enumerates signature parameter kinds.
type ParamKind string

const (
	ParamPositional ParamKind = "positional"
	ParamKeyword    ParamKind = "keyword"
	ParamVariadic   ParamKind = "variadic"
	ParamKeywordOnly ParamKind = "kw-only"
)

// Param is one signature parameter.
type Param struct {
	Name    string
	TypeID  string
	Default string
	Kind    ParamKind
}

// SignatureEntity describes a callable's shape.
type SignatureEntity struct {
	ID         string
	Params     []Param
	ReturnType string
	Visibility string
	Async      bool
	Static     bool
	ClassMethod bool
}

// Position is a single (file, line, column) site the analyzer is asked
// about. Positions are deduplicated before dispatch; the analyzer must
// never be asked to blind-scan a whole file.
type Position struct {
	File   string
	Line   int
	Column int
}

// TypeHint is what the external analyzer reports for one position.
type TypeHint struct {
	Position Position
	Type     string
}

// Analyzer is the external, out-of-process type/symbol intelligence
// service (a Pyright-like LSP). It is consulted only at known positions.
type Analyzer interface {
	Hover(ctx context.Context, positions []Position) ([]TypeHint, error)
}

// TypeResolver is the pluggable strategy described in the component design:
// resolve IR identifiers to types, optionally enriched by an Analyzer.
type TypeResolver interface {
	Resolve(ctx context.Context, doc *ir.Document) (map[string]*TypeEntity, error)
}

// LexicalResolver resolves only to Builtin/Local levels using lexical
// rules and in-file class definitions; used when no external analyzer is
// configured.
type LexicalResolver struct {
	builtins map[string]struct{}
}

// NewLexicalResolver builds a resolver over a language's builtin type names.
func NewLexicalResolver(builtins []string) *LexicalResolver {
	set := make(map[string]struct{}, len(builtins))
	for _, b := range builtins {
		set[b] = struct{}{}
	}
	return &LexicalResolver{builtins: set}
}

func (r *LexicalResolver) Resolve(ctx context.Context, doc *ir.Document) (map[string]*TypeEntity, error) {
	out := make(map[string]*TypeEntity)
	localClasses := make(map[string]struct{})
	for _, n := range doc.Nodes {
		if n.Kind == ir.KindClass {
			localClasses[n.Name] = struct{}{}
		}
	}
	for _, n := range doc.Nodes {
		if n.Kind != ir.KindVariable && n.Kind != ir.KindFunction && n.Kind != ir.KindMethod {
			continue
		}
		if _, ok := r.builtins[n.Name]; ok {
			out[n.ID] = &TypeEntity{ID: n.ID, Raw: n.Name, Flavor: FlavorBuiltin, ResolutionLevel: LevelBuiltin}
			continue
		}
		if _, ok := localClasses[n.Name]; ok {
			out[n.ID] = &TypeEntity{ID: n.ID, Raw: n.Name, Flavor: FlavorUser, ResolutionLevel: LevelLocal}
		}
	}
	return out, nil
}

// AnalyzerResolver extracts positions of interest from the IR (the start
// positions of function, method and variable nodes) and batches them to
// the external analyzer, never blind-scanning whole files.
type AnalyzerResolver struct {
	analyzer    Analyzer
	concurrency int64
}

// NewAnalyzerResolver wires an Analyzer with a bounded-concurrency dispatch
// budget (default/target ~10 concurrent hover requests).
func NewAnalyzerResolver(a Analyzer, concurrency int64) *AnalyzerResolver {
	if concurrency <= 0 {
		concurrency = 10
	}
	return &AnalyzerResolver{analyzer: a, concurrency: concurrency}
}

func (r *AnalyzerResolver) Resolve(ctx context.Context, doc *ir.Document) (map[string]*TypeEntity, error) {
	positions := positionsOfInterest(doc)
	if len(positions) == 0 {
		return map[string]*TypeEntity{}, nil
	}

	hints, err := r.dispatchBatched(ctx, positions)
	if err != nil {
		return nil, fmt.Errorf("semantic: analyzer dispatch failed: %w", err)
	}

	byNode := indexNodesByPosition(doc)
	out := make(map[string]*TypeEntity, len(hints))
	for _, h := range hints {
		nodeID, ok := byNode[h.Position]
		if !ok {
			continue
		}
		out[nodeID] = &TypeEntity{ID: nodeID, Raw: h.Type, Flavor: FlavorExternal, ResolutionLevel: LevelExternal}
	}
	return out, nil
}

// dispatchBatched deduplicates positions by (file, line, column) and
// dispatches hover requests with bounded concurrency; result order is
// irrelevant, so each chunk's results are simply appended under a mutex-free
// per-goroutine slice collected via a channel.
func (r *AnalyzerResolver) dispatchBatched(ctx context.Context, positions []Position) ([]TypeHint, error) {
	dedup := dedupePositions(positions)

	const batchSize = 32
	sem := semaphore.NewWeighted(r.concurrency)
	results := make(chan []TypeHint, (len(dedup)/batchSize)+1)
	errs := make(chan error, (len(dedup)/batchSize)+1)

	batches := 0
	for i := 0; i < len(dedup); i += batchSize {
		end := i + batchSize
		if end > len(dedup) {
			end = len(dedup)
		}
		batch := dedup[i:end]
		batches++

		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		go func(b []Position) {
			defer sem.Release(1)
			hints, err := r.analyzer.Hover(ctx, b)
			if err != nil {
				errs <- err
				return
			}
			results <- hints
		}(batch)
	}

	var all []TypeHint
	for i := 0; i < batches; i++ {
		select {
		case h := <-results:
			all = append(all, h...)
		case err := <-errs:
			return nil, err
		}
	}
	return all, nil
}

func dedupePositions(positions []Position) []Position {
	seen := make(map[Position]struct{}, len(positions))
	out := make([]Position, 0, len(positions))
	for _, p := range positions {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Column < out[j].Column
	})
	return out
}

func positionsOfInterest(doc *ir.Document) []Position {
	var positions []Position
	for _, n := range doc.Nodes {
		switch n.Kind {
		case ir.KindFunction, ir.KindMethod, ir.KindVariable:
			positions = append(positions, Position{File: n.Span.FilePath, Line: n.Span.StartLine, Column: n.Span.StartCol})
		}
	}
	return positions
}

func indexNodesByPosition(doc *ir.Document) map[Position]string {
	out := make(map[Position]string, len(doc.Nodes))
	for _, n := range doc.Nodes {
		out[Position{File: n.Span.FilePath, Line: n.Span.StartLine, Column: n.Span.StartCol}] = n.ID
	}
	return out
}
