// Package ir defines the typed, graph-structured intermediate representation
// produced from a source file's AST: nodes, edges, and the per-function
// control-flow metrics computed during generation.
package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// NodeKind enumerates the IR node types.
type NodeKind string

const (
	KindFile           NodeKind = "file"
	KindModule         NodeKind = "module"
	KindClass          NodeKind = "class"
	KindFunction       NodeKind = "function"
	KindMethod         NodeKind = "method"
	KindVariable       NodeKind = "variable"
	KindImport         NodeKind = "import"
	KindExternalSymbol NodeKind = "external_symbol"
	KindError          NodeKind = "error"
)

// EdgeKind enumerates the IR edge types.
type EdgeKind string

const (
	EdgeContains        EdgeKind = "CONTAINS"
	EdgeCalls           EdgeKind = "CALLS"
	EdgeImports         EdgeKind = "IMPORTS"
	EdgeInherits        EdgeKind = "INHERITS"
	EdgeReferencesType  EdgeKind = "REFERENCES_TYPE"
	EdgeInstantiates    EdgeKind = "INSTANTIATES"
	EdgeDefines         EdgeKind = "DEFINES"
	EdgeReferences      EdgeKind = "REFERENCES"
)

// Span is a half-open source region, 0-based, byte-accurate over the
// original UTF-8 buffer.
type Span struct {
	FilePath  string `json:"file_path"`
	StartLine int    `json:"start_line"`
	StartCol  int    `json:"start_col"`
	EndLine   int    `json:"end_line"`
	EndCol    int    `json:"end_col"`
}

// FunctionMetrics holds the per-function derived metrics computed in the
// same traversal pass that builds the node.
type FunctionMetrics struct {
	CyclomaticComplexity int      `json:"cyclomatic_complexity"`
	LoopCount            int      `json:"loop_count"`
	HasTry               bool     `json:"has_try"`
	BranchCount          int      `json:"branch_count"`
	Calls                []string `json:"calls,omitempty"`
	Assignments          []string `json:"assignments,omitempty"`
	Imports              []string `json:"imports,omitempty"`
}

// Node is one entry of the IR: a File, Module, Class, Function, Method,
// Variable, Import, or ExternalSymbol.
type Node struct {
	ID          string           `json:"id"`
	Kind        NodeKind         `json:"kind"`
	FQN         string           `json:"fqn"`
	Name        string           `json:"name"`
	Span        Span             `json:"span"`
	ParentID    string           `json:"parent_id,omitempty"`
	SignatureID string           `json:"signature_id,omitempty"`
	TypeID      string           `json:"type_id,omitempty"`
	ContentHash string           `json:"content_hash"`
	Metrics     *FunctionMetrics `json:"metrics,omitempty"`
}

// Edge is a directed relationship between two IR nodes.
type Edge struct {
	SourceID string   `json:"source_id"`
	TargetID string   `json:"target_id"`
	Kind     EdgeKind `json:"kind"`
}

// Document is the arena holding every node and edge produced for one
// (repo_id, snapshot_id, file_path). Nodes own their identity; edges hold
// IDs rather than pointers, matching the on-disk representation.
type Document struct {
	RepoID     string  `json:"repo_id"`
	SnapshotID string  `json:"snapshot_id"`
	FilePath   string  `json:"file_path"`
	Nodes      []*Node `json:"nodes"`
	Edges      []*Edge `json:"edges"`

	byID map[string]*Node
}

// NewDocument creates an empty arena for one file within one snapshot.
func NewDocument(repoID, snapshotID, filePath string) *Document {
	return &Document{
		RepoID:     repoID,
		SnapshotID: snapshotID,
		FilePath:   filePath,
		byID:       make(map[string]*Node),
	}
}

// AddNode inserts a node into the arena and indexes it by ID.
func (d *Document) AddNode(n *Node) {
	d.Nodes = append(d.Nodes, n)
	if d.byID == nil {
		d.byID = make(map[string]*Node)
	}
	d.byID[n.ID] = n
}

// AddEdge records a directed edge. Both endpoints are IDs, not references.
func (d *Document) AddEdge(sourceID, targetID string, kind EdgeKind) {
	d.Edges = append(d.Edges, &Edge{SourceID: sourceID, TargetID: targetID, Kind: kind})
}

// Get resolves a node by ID within this document.
func (d *Document) Get(id string) (*Node, bool) {
	n, ok := d.byID[id]
	return n, ok
}

// NodeID computes a stable content-addressed ID for an IR node from its
// scoping tuple and structural position. The ID is opaque outside the
// system and is the join key between stores.
func NodeID(repoID, snapshotID, filePath string, kind NodeKind, fqn string, startLine, startCol int) string {
	h := sha256.New()
	h.Write([]byte(repoID))
	h.Write([]byte{0})
	h.Write([]byte(snapshotID))
	h.Write([]byte{0})
	h.Write([]byte(filePath))
	h.Write([]byte{0})
	h.Write([]byte(kind))
	h.Write([]byte{0})
	h.Write([]byte(fqn))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(startLine)))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(startCol)))
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:16])
}

// JoinFQN builds a dotted fully-qualified name from a parent scope and a
// local name, skipping an empty parent.
func JoinFQN(parent, name string) string {
	if parent == "" {
		return name
	}
	var b strings.Builder
	b.WriteString(parent)
	b.WriteByte('.')
	b.WriteString(name)
	return b.String()
}
