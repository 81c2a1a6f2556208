// Package search provides the semantic code search handler for MCP,
// backed by internal/retriever's fused multi-strategy pipeline and
// internal/contextbuilder's token-budgeted packing rather than the
// teacher's single Qdrant query, per §4.9/§4.10.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/codeintel/codeindex/internal/app"
	"github.com/codeintel/codeindex/internal/contextbuilder"
	"github.com/codeintel/codeindex/internal/mcp"
	"github.com/codeintel/codeindex/internal/metrics"
	"github.com/codeintel/codeindex/internal/relstore"
	"github.com/codeintel/codeindex/internal/retriever"
)

// Handler implements mcp.Handler for code search, wrapping one app.App
// (one repo's adapters + orchestrator + retriever).
type Handler struct {
	app           *app.App
	repoID        string
	metrics       *metrics.Logger
	classifier    *Classifier
	suggestionGen *SuggestionGenerator
	logger        *slog.Logger
}

// NewHandler builds a search Handler over an already-wired app.App,
// grounded on the teacher's NewHandler's connect-everything shape but
// delegating the actual query work to internal/retriever instead of a
// single Qdrant call.
func NewHandler(a *app.App, repoID string, logger *slog.Logger) (*Handler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if repoID == "" {
		return nil, fmt.Errorf("search: handler requires a repo id")
	}

	var metricsLogger *metrics.Logger
	homeDir, _ := os.UserHomeDir()
	metricsPath := filepath.Join(homeDir, ".local", "share", "codeindex", "metrics.jsonl")
	if err := os.MkdirAll(filepath.Dir(metricsPath), 0755); err == nil {
		metricsLogger, _ = metrics.NewLogger(metricsPath)
	}

	return &Handler{
		app:           a,
		repoID:        repoID,
		metrics:       metricsLogger,
		classifier:    NewClassifier(),
		suggestionGen: NewSuggestionGenerator(),
		logger:        logger,
	}, nil
}

// Close releases resources held by the handler (not the underlying
// app.App, which outlives any one Handler and is closed by its owner).
func (h *Handler) Close() error {
	if h.metrics != nil {
		h.metrics.Close()
	}
	return nil
}

// ListTools returns available tools (implements mcp.Handler).
func (h *Handler) ListTools() []mcp.Tool {
	return []mcp.Tool{
		{
			Name:        "search_code",
			Description: "Find code by concept using semantic search. Use when you don't know exact symbol names but know what you're looking for.",
			InputSchema: mcp.InputSchema{
				Type: "object",
				Properties: map[string]mcp.Property{
					"query": {
						Type:        "string",
						Description: "Describe what you're looking for in natural language",
					},
					"snapshot": {
						Type:        "string",
						Description: "Snapshot id to search (default: latest indexed snapshot)",
					},
					"limit": {
						Type:        "number",
						Description: "Maximum results to return (default: 10)",
					},
					"cursor": {
						Type:        "string",
						Description: "Pagination cursor from previous response (for fetching next page)",
					},
				},
				Required: []string{"query"},
			},
		},
	}
}

// CallTool processes a tool invocation (implements mcp.Handler).
func (h *Handler) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	switch name {
	case "search_code":
		return h.searchCode(ctx, args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// ListResources returns available resources (implements mcp.Handler).
func (h *Handler) ListResources() []mcp.Resource {
	return []mcp.Resource{
		{
			URI:         "codeindex://relevant",
			Name:        "Contextually relevant code",
			Description: "Auto-retrieved code based on conversation context",
			MimeType:    "text/markdown",
		},
	}
}

// ReadResource processes a resource read (implements mcp.Handler).
func (h *Handler) ReadResource(ctx context.Context, uri string) (*mcp.ReadResourceResult, error) {
	switch uri {
	case "codeindex://relevant":
		return h.getRelevantContext(ctx)
	default:
		return nil, fmt.Errorf("unknown resource: %s", uri)
	}
}

func (h *Handler) searchCode(ctx context.Context, args map[string]interface{}) (*mcp.CallToolResult, error) {
	startTime := time.Now()

	query, _ := args["query"].(string)
	if query == "" {
		return &mcp.CallToolResult{
			Content: []mcp.Content{{Type: "text", Text: "query parameter is required"}},
			IsError: true,
		}, nil
	}

	snapshotID, _ := args["snapshot"].(string)
	if snapshotID == "" {
		var err error
		snapshotID, err = h.latestSnapshotID(ctx)
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{{Type: "text", Text: fmt.Sprintf("no indexed snapshot available: %v", err)}},
				IsError: true,
			}, nil
		}
	}

	limit := 10
	if l, ok := args["limit"].(float64); ok && l > 0 {
		limit = int(l)
	}

	var offset int
	if cursorStr, ok := args["cursor"].(string); ok && cursorStr != "" {
		cursor, err := DecodeCursor(cursorStr)
		if err != nil {
			return &mcp.CallToolResult{
				Content: []mcp.Content{{Type: "text", Text: fmt.Sprintf("invalid cursor: %s", err.Error())}},
				IsError: true,
			}, nil
		}
		offset = cursor.Offset
	}

	queryType := h.classifier.Classify(query)

	if h.logger != nil {
		h.logger.Info("search_code called", "query", query, "query_type", string(queryType), "repo", h.repoID, "limit", limit)
	}

	result, err := h.app.Retriever.Retrieve(ctx, h.repoID, snapshotID, query, retriever.Options{TopK: offset + limit + 1})
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	searchResults := make([]SearchResult, 0, len(result.Hits))
	for _, f := range result.Hits {
		content, _, lookupErr := relstore.GetChunkContent(ctx, h.app.RelStore, f.ChunkID)
		if lookupErr != nil {
			continue
		}
		searchResults = append(searchResults, SearchResult{
			FilePath:  f.FilePath,
			StartLine: f.StartLine,
			EndLine:   f.EndLine,
			Content:   content,
		})
	}

	queryHash := HashQuery(query, h.repoID)
	paginated := Paginate(searchResults, offset, limit, queryHash, string(queryType))

	var response string
	if len(paginated.Results) == 0 && offset == 0 {
		response = h.formatEmptyResponse(query)
	} else {
		data, _ := json.MarshalIndent(paginated, "", "  ")
		response = string(data)
	}

	if h.metrics != nil {
		h.metrics.LogSearch(query, string(queryType), len(paginated.Results), time.Since(startTime).Milliseconds(), false)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{{Type: "text", Text: response}},
	}, nil
}

func (h *Handler) latestSnapshotID(ctx context.Context) (string, error) {
	snap, err := h.app.Snapshots.LoadLatest(ctx, h.repoID)
	if err != nil {
		return "", err
	}
	return snap.ID, nil
}

func (h *Handler) formatEmptyResponse(query string) string {
	suggestions := h.suggestionGen.Generate(query)
	response := h.suggestionGen.FormatEmptyResponse(query, h.repoID, suggestions)

	data, _ := json.MarshalIndent(response, "", "  ")
	return string(data)
}

func (h *Handler) getRelevantContext(ctx context.Context) (*mcp.ReadResourceResult, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return h.emptyRelevantContext(), nil
	}

	snapshotID, err := h.latestSnapshotID(ctx)
	if err != nil {
		return h.emptyRelevantContext(), nil
	}

	dirName := filepath.Base(cwd)
	var suggestions []string
	if dirName != "." {
		result, err := h.app.Retriever.Retrieve(ctx, h.repoID, snapshotID, dirName, retriever.Options{TopK: 5})
		if err == nil {
			for _, f := range result.Hits {
				suggestions = append(suggestions, fmt.Sprintf("- `%s:%d-%d`", f.FilePath, f.StartLine, f.EndLine))
			}
		}
	}

	if len(suggestions) == 0 {
		return h.emptyRelevantContext(), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Relevant Context for %s\n\n", h.repoID)
	fmt.Fprintf(&b, "Based on current directory: `%s`\n\n", cwd)
	b.WriteString("## Related Code\n\n")
	for _, s := range suggestions {
		b.WriteString(s + "\n")
	}
	b.WriteString("\n*Use `search_code` for more specific queries.*")

	if h.metrics != nil {
		h.metrics.LogContextInject(cwd, len(suggestions), 0.7)
	}

	return &mcp.ReadResourceResult{
		Contents: []mcp.ResourceContent{
			{URI: "codeindex://relevant", MimeType: "text/markdown", Text: b.String()},
		},
	}, nil
}

func (h *Handler) emptyRelevantContext() *mcp.ReadResourceResult {
	return &mcp.ReadResourceResult{
		Contents: []mcp.ResourceContent{
			{
				URI:      "codeindex://relevant",
				MimeType: "text/markdown",
				Text:     "No contextual suggestions available. Use `search_code` tool for explicit searches.",
			},
		},
	}
}

// BuildContext runs Retrieve followed by contextbuilder.Build, the
// token-budgeted packing path (§4.10) that searchCode itself doesn't need
// since MCP tool responses are paginated rather than budget-packed.
func (h *Handler) BuildContext(ctx context.Context, snapshotID, query string, opts contextbuilder.Options) (*contextbuilder.Result, error) {
	result, err := h.app.Retriever.Retrieve(ctx, h.repoID, snapshotID, query, retriever.Options{TopK: 50})
	if err != nil {
		return nil, fmt.Errorf("search: build context: retrieve: %w", err)
	}
	content := make(map[string]string, len(result.Hits))
	for _, f := range result.Hits {
		c, _, err := relstore.GetChunkContent(ctx, h.app.RelStore, f.ChunkID)
		if err == nil {
			content[f.ChunkID] = c
		}
	}
	candidates := contextbuilder.FromFused(result.Hits, content)
	return contextbuilder.Build(candidates, opts)
}

// SearchResponse is the structured search result.
type SearchResponse struct {
	QueryType  string         `json:"query_type"`
	Results    []SearchResult `json:"results"`
	TotalCount int            `json:"total_count"`
	HasMore    bool           `json:"has_more"`
	Cursor     string         `json:"cursor,omitempty"`
}

// SearchResult is a single search result.
type SearchResult struct {
	FilePath  string `json:"file_path"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Content   string `json:"content"`
}
