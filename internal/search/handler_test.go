// Package search provides the semantic code search handler.
package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHandler() *Handler {
	return &Handler{
		repoID:        "test-repo",
		classifier:    NewClassifier(),
		suggestionGen: NewSuggestionGenerator(),
	}
}

func TestHandlerGetTools(t *testing.T) {
	handler := newTestHandler()

	tools := handler.ListTools()

	require.Len(t, tools, 1)
	assert.Equal(t, "search_code", tools[0].Name)
	assert.Contains(t, tools[0].Description, "semantic")

	assert.Contains(t, tools[0].InputSchema.Required, "query")
}

func TestHandlerListResources(t *testing.T) {
	handler := newTestHandler()

	resources := handler.ListResources()

	require.Len(t, resources, 1)
	assert.Equal(t, "codeindex://relevant", resources[0].URI)
}

func TestHandlerCallToolUnknown(t *testing.T) {
	handler := newTestHandler()

	ctx := context.Background()
	_, err := handler.CallTool(ctx, "unknown_tool", nil)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tool")
}

func TestHandlerCallToolMissingQuery(t *testing.T) {
	handler := newTestHandler()

	ctx := context.Background()
	result, err := handler.CallTool(ctx, "search_code", map[string]interface{}{})

	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "query parameter is required")
}

func TestFormatEmptyResponse(t *testing.T) {
	handler := newTestHandler()

	response := handler.formatEmptyResponse("test query")

	assert.Contains(t, response, "No direct matches")
	assert.Contains(t, response, "test query")
}

// TestHandlerSearchIntegration requires a fully wired app.App (sqlite,
// bleve, optionally Qdrant/Neo4j/Redis) and is exercised by
// test/e2e/index_test.go against a real repository instead of here, since
// building one needs a real filesystem-backed data directory.
