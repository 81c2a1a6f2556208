package ir

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeintel/codeindex/internal/parser"
)

func TestGeneratePython_ClassAndMethod(t *testing.T) {
	src := []byte(`class UserService:
    def authenticate(self, user):
        if user.active:
            return check(user)
        return False
`)

	g := NewGenerator()
	doc, err := g.Generate(context.Background(), SourceFile{
		RepoID:   "repo1",
		FilePath: "svc.py",
		Source:   src,
		Language: parser.LanguagePython,
	}, "snap1", nil)
	require.NoError(t, err)
	require.NotNil(t, doc)

	var class, method *Node
	for _, n := range doc.Nodes {
		switch n.Kind {
		case KindClass:
			class = n
		case KindMethod:
			method = n
		}
	}

	require.NotNil(t, class)
	assert.Equal(t, "UserService", class.Name)

	require.NotNil(t, method)
	assert.Equal(t, "authenticate", method.Name)
	assert.Equal(t, "UserService.authenticate", method.FQN)
	require.NotNil(t, method.Metrics)
	assert.True(t, method.Metrics.BranchCount >= 1)
	assert.Equal(t, 1+method.Metrics.BranchCount, method.Metrics.CyclomaticComplexity)
}

func TestGenerateJavaScript_ImportAndCall(t *testing.T) {
	src := []byte(`import { foo } from "bar";
function run() {
  foo();
}
`)
	g := NewGenerator()
	doc, err := g.Generate(context.Background(), SourceFile{
		RepoID:   "repo1",
		FilePath: "run.js",
		Source:   src,
		Language: parser.LanguageJavaScript,
	}, "snap1", nil)
	require.NoError(t, err)

	var sawImport bool
	for _, e := range doc.Edges {
		if e.Kind == EdgeImports {
			sawImport = true
		}
	}
	assert.True(t, sawImport, "expected an IMPORTS edge for the bar module")

	var fn *Node
	for _, n := range doc.Nodes {
		if n.Kind == KindFunction && n.Name == "run" {
			fn = n
		}
	}
	require.NotNil(t, fn)
	require.NotNil(t, fn.Metrics)
	assert.Contains(t, fn.Metrics.Calls, "foo")
}

func TestGeneratePython_ComplexitySumsAllLoops(t *testing.T) {
	src := []byte(`def scan(items):
    total = 0
    for item in items:
        total += item
    for item in items:
        if item:
            total += 1
    return total
`)
	g := NewGenerator()
	doc, err := g.Generate(context.Background(), SourceFile{
		RepoID:   "repo1",
		FilePath: "scan.py",
		Source:   src,
		Language: parser.LanguagePython,
	}, "snap1", nil)
	require.NoError(t, err)

	var fn *Node
	for _, n := range doc.Nodes {
		if n.Kind == KindFunction && n.Name == "scan" {
			fn = n
		}
	}
	require.NotNil(t, fn)
	require.NotNil(t, fn.Metrics)

	// Two for-loops plus one if: the formula must count both loops, not
	// cap the loop contribution at 1 regardless of how many there are.
	assert.Equal(t, 2, fn.Metrics.LoopCount)
	assert.Equal(t, 1+fn.Metrics.BranchCount+fn.Metrics.LoopCount, fn.Metrics.CyclomaticComplexity)
	assert.True(t, fn.Metrics.CyclomaticComplexity >= 4)
}

func TestNodeID_DeterministicAndContentAddressed(t *testing.T) {
	id1 := NodeID("repo", "snap", "a.py", KindFunction, "f", 1, 0)
	id2 := NodeID("repo", "snap", "a.py", KindFunction, "f", 1, 0)
	assert.Equal(t, id1, id2)

	id3 := NodeID("repo", "snap", "a.py", KindFunction, "g", 1, 0)
	assert.NotEqual(t, id1, id3)
}
