package chunk

import (
	"fmt"
	"strings"

	"github.com/codeintel/codeindex/internal/ir"
	"github.com/codeintel/codeindex/internal/security"
)

// Builder produces a Chunk hierarchy directly from an ir.Document, mirroring
// HierarchicalChunker's policy (one file chunk, one class chunk plus method
// chunks, a class-summary synthesized past largeClassThreshold methods) but
// driven by IR CONTAINS edges instead of a flat parser.Symbol list, so it
// also covers languages analyzed only through the IR path.
type Builder struct {
	largeClassThreshold int
	secretDetector      *security.SecretDetector
}

// NewBuilder constructs an IR-driven chunk builder. threshold <= 0 uses the
// package default (LargeClassMethods). Every emitted chunk is scanned for
// secrets (same detector the legacy Extractor uses) so a leaf chunk's
// HasSecrets field is populated before it ever reaches an index adapter.
func NewBuilder(threshold int) *Builder {
	if threshold <= 0 {
		threshold = LargeClassMethods
	}
	return &Builder{largeClassThreshold: threshold, secretDetector: security.NewSecretDetector()}
}

// children indexes a document's CONTAINS edges by parent ID.
type children map[string][]*ir.Node

func childIndex(doc *ir.Document) children {
	byTarget := make(map[string]*ir.Node, len(doc.Nodes))
	for _, n := range doc.Nodes {
		byTarget[n.ID] = n
	}
	c := make(children)
	for _, e := range doc.Edges {
		if e.Kind != ir.EdgeContains {
			continue
		}
		if n, ok := byTarget[e.TargetID]; ok {
			c[e.SourceID] = append(c[e.SourceID], n)
		}
	}
	return c
}

// Build walks doc's CONTAINS tree from its File node and emits a Chunk for
// the File node and for each Class, Function and Method node below it
// (no Module chunk is produced), content sliced from source by span. source must be the exact bytes the document's spans were computed
// against.
func (b *Builder) Build(doc *ir.Document, repoID, snapshotID string, source []byte) ([]Chunk, error) {
	lines := splitLines(source)

	var fileNode *ir.Node
	for _, n := range doc.Nodes {
		if n.Kind == ir.KindFile {
			fileNode = n
			break
		}
	}
	if fileNode == nil {
		return nil, fmt.Errorf("chunk: build: document %s has no file node", doc.FilePath)
	}

	kids := childIndex(doc)
	var out []Chunk

	fileChunk := b.nodeChunk(fileNode, "file", repoID, snapshotID, lines)
	out = append(out, fileChunk)

	var moduleLevelChildIDs []string
	for _, child := range kids[fileNode.ID] {
		switch child.Kind {
		case ir.KindClass:
			classChunks := b.buildClass(child, kids, repoID, snapshotID, lines, fileChunk.ID)
			out = append(out, classChunks...)
			moduleLevelChildIDs = append(moduleLevelChildIDs, classChunks[0].ID)
		case ir.KindFunction, ir.KindMethod:
			fn := b.nodeChunk(child, kindLabel(child.Kind), repoID, snapshotID, lines)
			fn.ParentChunkID = fileChunk.ID
			out = append(out, fn)
			moduleLevelChildIDs = append(moduleLevelChildIDs, fn.ID)
		default:
			// Variables, imports, and external symbols don't get their own
			// chunk; they remain part of the file chunk's content.
		}
	}

	out[0].ChildChunkIDs = moduleLevelChildIDs
	return out, nil
}

func (b *Builder) buildClass(class *ir.Node, kids children, repoID, snapshotID string, lines []string, parentID string) []Chunk {
	methods := kids[class.ID]

	classChunk := b.nodeChunk(class, "class", repoID, snapshotID, lines)
	classChunk.ParentChunkID = parentID

	if len(methods) > b.largeClassThreshold {
		summary := b.classSummary(class, methods, repoID, snapshotID, lines)
		summary.ParentChunkID = parentID
		out := []Chunk{summary}
		for _, m := range methods {
			mc := b.nodeChunk(m, "method", repoID, snapshotID, lines)
			mc.ParentChunkID = summary.ID
			summary.ChildChunkIDs = append(summary.ChildChunkIDs, mc.ID)
			out = append(out, mc)
		}
		out[0] = summary
		return out
	}

	out := []Chunk{classChunk}
	for _, m := range methods {
		mc := b.nodeChunk(m, "method", repoID, snapshotID, lines)
		mc.ParentChunkID = classChunk.ID
		classChunk.ChildChunkIDs = append(classChunk.ChildChunkIDs, mc.ID)
		out = append(out, mc)
	}
	out[0] = classChunk
	return out
}

func (b *Builder) classSummary(class *ir.Node, methods []*ir.Node, repoID, snapshotID string, lines []string) Chunk {
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = m.Name
	}
	content := fmt.Sprintf("class %s:\n    # %d methods, summarized: %s", class.Name, len(methods), strings.Join(names, ", "))
	id := GenerateSnapshotID(repoID, snapshotID, class.Span.FilePath, class.Span.StartLine, class.Span.EndLine)
	return Chunk{
		ID:          id,
		Repo:        repoID,
		SnapshotID:  snapshotID,
		FilePath:    class.Span.FilePath,
		StartLine:   class.Span.StartLine,
		EndLine:     class.Span.EndLine,
		Type:        ChunkTypeCode,
		Kind:        "class_summary",
		SymbolName:  class.Name,
		Content:     content,
		ContentHash: ContentSHA256(content),
		SymbolID:    class.ID,
		Metadata:    map[string]any{"method_count": len(methods)},
	}
}

func (b *Builder) nodeChunk(n *ir.Node, kind, repoID, snapshotID string, lines []string) Chunk {
	content := sliceSpan(lines, n.Span.StartLine, n.Span.EndLine)
	id := GenerateSnapshotID(repoID, snapshotID, n.Span.FilePath, n.Span.StartLine, n.Span.EndLine)
	return Chunk{
		ID:          id,
		Repo:        repoID,
		SnapshotID:  snapshotID,
		FilePath:    n.Span.FilePath,
		StartLine:   n.Span.StartLine,
		EndLine:     n.Span.EndLine,
		Type:        ChunkTypeCode,
		Kind:        kind,
		SymbolName:  n.Name,
		Content:     content,
		ContentHash: ContentSHA256(content),
		SymbolID:    n.ID,
		HasSecrets:  b.secretDetector != nil && b.secretDetector.HasSecrets(content),
	}
}

func kindLabel(k ir.NodeKind) string {
	switch k {
	case ir.KindFunction:
		return "function"
	case ir.KindMethod:
		return "method"
	default:
		return string(k)
	}
}

func splitLines(source []byte) []string {
	return strings.Split(string(source), "\n")
}

// sliceSpan extracts the inclusive line range [start, end] (0-based) as the
// chunk's byte-accurate content, per the Chunk invariant that a leaf
// chunk's content equals the original file slice defined by its span.
func sliceSpan(lines []string, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end >= len(lines) {
		end = len(lines) - 1
	}
	if start > end || start >= len(lines) {
		return ""
	}
	return strings.Join(lines[start:end+1], "\n")
}
