package search

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	encoded := EncodeCursor("abc123", 10)
	assert.NotEmpty(t, encoded)

	decoded, err := DecodeCursor(encoded)
	require.NoError(t, err)
	assert.Equal(t, "abc123", decoded.QueryHash)
	assert.Equal(t, 10, decoded.Offset)
}

func TestDecodeCursorInvalid(t *testing.T) {
	_, err := DecodeCursor("not-valid-base64!!!")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cursor")
}

func TestDecodeCursorMalformed(t *testing.T) {
	// Valid base64 but invalid JSON
	_, err := DecodeCursor("bm90LWpzb24=") // "not-json"
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cursor format")
}

func TestPaginate(t *testing.T) {
	results := make([]SearchResult, 25)
	for i := range results {
		results[i] = SearchResult{FilePath: "file.py", StartLine: i}
	}

	// First page
	page1 := Paginate(results, 0, 10, "hash123", "concept")
	assert.Len(t, page1.Results, 10)
	assert.Equal(t, 25, page1.TotalCount)
	assert.True(t, page1.HasMore)
	assert.NotEmpty(t, page1.Cursor)
	assert.Equal(t, "concept", page1.QueryType)

	// Decode cursor and verify
	cursor, err := DecodeCursor(page1.Cursor)
	require.NoError(t, err)
	assert.Equal(t, 10, cursor.Offset)

	// Second page using cursor offset
	page2 := Paginate(results, cursor.Offset, 10, "hash123", "concept")
	assert.Len(t, page2.Results, 10)
	assert.True(t, page2.HasMore)

	// Third page
	cursor2, _ := DecodeCursor(page2.Cursor)
	page3 := Paginate(results, cursor2.Offset, 10, "hash123", "concept")
	assert.Len(t, page3.Results, 5) // Only 5 remaining
	assert.False(t, page3.HasMore)
	assert.Empty(t, page3.Cursor)
}

func TestPaginateEmpty(t *testing.T) {
	results := []SearchResult{}

	page := Paginate(results, 0, 10, "hash123", "concept")
	assert.Len(t, page.Results, 0)
	assert.Equal(t, 0, page.TotalCount)
	assert.False(t, page.HasMore)
	assert.Empty(t, page.Cursor)
}

func TestPaginateOffsetBeyondEnd(t *testing.T) {
	results := make([]SearchResult, 5)

	page := Paginate(results, 100, 10, "hash123", "concept")
	assert.Len(t, page.Results, 0)
	assert.Equal(t, 5, page.TotalCount)
	assert.False(t, page.HasMore)
}

func TestHashQuery(t *testing.T) {
	hash1 := HashQuery("query1", "repo1", "module1")
	hash2 := HashQuery("query1", "repo1", "module1")
	hash3 := HashQuery("query2", "repo1", "module1")

	assert.Equal(t, hash1, hash2, "same inputs should produce same hash")
	assert.NotEqual(t, hash1, hash3, "different inputs should produce different hash")
	assert.Len(t, hash1, 16, "hash should be 16 hex chars")
}

func TestCursorExpiry(t *testing.T) {
	// Create a cursor with old timestamp
	cursor := Cursor{
		QueryHash: "test",
		Offset:    0,
		CreatedAt: time.Now().Add(-11 * time.Minute),
	}

	data, err := json.Marshal(cursor)
	require.NoError(t, err)
	_, err = DecodeCursor(base64.URLEncoding.EncodeToString(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cursor expired")

	// A freshly encoded cursor is not expired
	encoded := EncodeCursor("test", 0)
	_, err = DecodeCursor(encoded)
	assert.NoError(t, err, "recent cursor should not be expired")
}
