package typesnapshot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codeintel/codeindex/internal/relstore"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := relstore.Open("file::memory:?cache=shared")
	require.NoError(t, err)
	require.NoError(t, relstore.Migrate(db))
	s, err := NewStore(db)
	require.NoError(t, err)
	return s
}

func TestStore_SaveAndLoadLatest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	snap := &Snapshot{
		SnapshotID: "snap-1",
		RepoID:     "repo-1",
		Files:      []string{"a.py"},
		TypingInfo: map[string][]TypingEntry{
			"a.py": {{File: "a.py", StartLine: 1, StartCol: 0, EndLine: 1, EndCol: 5, Type: "int"}},
		},
	}
	require.NoError(t, s.Save(ctx, snap))

	got, err := s.LoadLatest(ctx, "repo-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "snap-1", got.SnapshotID)
	require.Equal(t, "int", got.TypingInfo["a.py"][0].Type)
}

func TestStore_LoadLatest_NoneFound(t *testing.T) {
	s := newTestStore(t)
	got, err := s.LoadLatest(context.Background(), "nonexistent")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestMerge_DirectFileKeyedRule(t *testing.T) {
	prev := &Snapshot{
		SnapshotID: "snap-1",
		RepoID:     "repo-1",
		TypingInfo: map[string][]TypingEntry{
			"a.py": {{File: "a.py", Type: "int"}},
			"b.py": {{File: "b.py", Type: "str"}},
			"c.py": {{File: "c.py", Type: "bool"}},
		},
	}
	fresh := map[string][]TypingEntry{
		"b.py": {{File: "b.py", Type: "float"}},
	}

	merged := Merge(prev, []string{"b.py"}, []string{"c.py"}, fresh, "snap-2", "repo-1", []string{"a.py", "b.py"})

	require.Equal(t, "snap-2", merged.SnapshotID)
	require.Contains(t, merged.TypingInfo, "a.py")
	require.Equal(t, "float", merged.TypingInfo["b.py"][0].Type)
	require.NotContains(t, merged.TypingInfo, "c.py")
}

func TestStore_DeleteOld(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i, id := range []string{"s1", "s2", "s3"} {
		snap := &Snapshot{SnapshotID: id, RepoID: "repo-1", Files: []string{"a.py"}}
		require.NoError(t, s.Save(ctx, snap))
		_ = i
	}

	n, err := s.DeleteOld(ctx, "repo-1", 1)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	list, err := s.List(ctx, "repo-1", 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
}
