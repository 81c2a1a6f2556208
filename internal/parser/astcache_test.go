package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIncremental_ReusesTreeForUnchangedFunction(t *testing.T) {
	old := []byte(`def hello(name):
    return "hi " + name


def other():
    pass
`)
	// Only the second function's body changes; hello is untouched.
	updated := []byte(`def hello(name):
    return "hi " + name


def other():
    return 1
`)

	p, err := NewParser(LanguagePython)
	require.NoError(t, err)

	oldTree, err := RawParseCtx(context.Background(), p, old)
	require.NoError(t, err)
	defer oldTree.Close()

	newTree, err := ParseIncremental(context.Background(), p, oldTree, old, updated)
	require.NoError(t, err)
	require.NotNil(t, newTree)
	defer newTree.Close()

	symbols, err := p.Parse(updated, "test.py")
	require.NoError(t, err)
	require.Len(t, symbols, 2)
	assert.Equal(t, "hello", symbols[0].Name)
	assert.Equal(t, "other", symbols[1].Name)
}

func TestParseIncremental_FallsBackToFullParseWithNilOldTree(t *testing.T) {
	src := []byte("def f():\n    pass\n")
	p, err := NewParser(LanguagePython)
	require.NoError(t, err)

	tree, err := ParseIncremental(context.Background(), p, nil, nil, src)
	require.NoError(t, err)
	require.NotNil(t, tree)
	defer tree.Close()

	assert.False(t, tree.RootNode().HasError())
}

func TestComputeEdit_FindsSingleChangedRegion(t *testing.T) {
	old := []byte("abcXdef")
	updated := []byte("abcYYdef")

	edit := computeEdit(old, updated)
	assert.Equal(t, uint32(3), edit.StartIndex)
	assert.Equal(t, uint32(4), edit.OldEndIndex)
	assert.Equal(t, uint32(5), edit.NewEndIndex)
}

func TestComputeEdit_NoChangeYieldsEmptyRegion(t *testing.T) {
	same := []byte("unchanged")
	edit := computeEdit(same, same)
	assert.Equal(t, edit.StartIndex, edit.OldEndIndex)
	assert.Equal(t, edit.StartIndex, edit.NewEndIndex)
}

func TestASTCache_PutThenGetRoundTrips(t *testing.T) {
	c := NewASTCache(4)
	defer c.Close()

	p, err := NewParser(LanguagePython)
	require.NoError(t, err)
	src := []byte("def f():\n    pass\n")
	tree, err := RawParseCtx(context.Background(), p, src)
	require.NoError(t, err)

	c.Put("a.py", src, tree)

	gotSrc, gotTree, ok := c.Get("a.py")
	require.True(t, ok)
	assert.Equal(t, src, gotSrc)
	assert.Same(t, tree, gotTree)

	_, _, ok = c.Get("missing.py")
	assert.False(t, ok)
}

func TestASTCache_PutOverwritesAndClosesPriorEntry(t *testing.T) {
	c := NewASTCache(4)
	defer c.Close()

	p, err := NewParser(LanguagePython)
	require.NoError(t, err)

	src1 := []byte("def f():\n    pass\n")
	tree1, err := RawParseCtx(context.Background(), p, src1)
	require.NoError(t, err)
	c.Put("a.py", src1, tree1)

	src2 := []byte("def g():\n    pass\n")
	tree2, err := RawParseCtx(context.Background(), p, src2)
	require.NoError(t, err)
	c.Put("a.py", src2, tree2)

	gotSrc, gotTree, ok := c.Get("a.py")
	require.True(t, ok)
	assert.Equal(t, src2, gotSrc)
	assert.Same(t, tree2, gotTree)
}

func TestASTCache_EvictsOldestBeyondCapacity(t *testing.T) {
	c := NewASTCache(1)
	defer c.Close()

	p, err := NewParser(LanguagePython)
	require.NoError(t, err)

	src := []byte("def f():\n    pass\n")
	tree, err := RawParseCtx(context.Background(), p, src)
	require.NoError(t, err)
	c.Put("a.py", src, tree)

	tree2, err := RawParseCtx(context.Background(), p, src)
	require.NoError(t, err)
	c.Put("b.py", src, tree2)

	_, _, ok := c.Get("a.py")
	assert.False(t, ok, "capacity-1 cache must evict the oldest entry")
	_, _, ok = c.Get("b.py")
	assert.True(t, ok)
}
