package parser

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	sitter "github.com/smacker/go-tree-sitter"
)

// ASTCache holds the most recently parsed tree per file path for the
// lifetime of one Orchestrator (§4.11): an incremental run looks up the
// prior tree here and hands it to ParseIncremental instead of reparsing
// from scratch. Bounded by size; evicting or overwriting an entry closes
// its tree to release the tree-sitter C allocation behind it.
type ASTCache struct {
	mu  sync.Mutex
	lru *lru.Cache[string, astEntry]
}

type astEntry struct {
	source []byte
	tree   *sitter.Tree
}

// NewASTCache builds a cache holding at most size trees.
func NewASTCache(size int) *ASTCache {
	if size <= 0 {
		size = 256
	}
	c := &ASTCache{}
	l, _ := lru.NewWithEvict[string, astEntry](size, func(_ string, e astEntry) {
		e.tree.Close()
	})
	c.lru = l
	return c
}

// Get returns the cached source and tree for path, if present.
func (c *ASTCache) Get(path string) (source []byte, tree *sitter.Tree, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, found := c.lru.Get(path)
	if !found {
		return nil, nil, false
	}
	return e.source, e.tree, true
}

// Put stores source and tree for path, closing whatever tree it replaces.
func (c *ASTCache) Put(path string, source []byte, tree *sitter.Tree) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.lru.Peek(path); ok {
		old.tree.Close()
	}
	c.lru.Add(path, astEntry{source: source, tree: tree})
}

// Close releases every cached tree.
func (c *ASTCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}
