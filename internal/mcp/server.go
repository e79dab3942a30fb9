// Package mcp exposes the indexing pipeline over the Model Context Protocol
// so editor/agent clients can index and search a codebase without shelling
// out to the CLI. The core packages never import this one — the dependency
// runs one way, transport depending on engine.
package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	gosdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nsethi/codemesh/internal/pipeline"
	"github.com/nsethi/codemesh/pkg/version"
)

// Server bridges MCP tool calls to a *pipeline.Pipeline. One Server serves
// every root path a client asks about; the pipeline itself holds the
// per-root synchronizer state.
type Server struct {
	mcp      *gosdk.Server
	pipeline *pipeline.Pipeline
	hybrid   bool
}

// NewServer builds an MCP server wrapping p, registers its four tools, and
// returns it ready to Run.
func NewServer(p *pipeline.Pipeline, hybrid bool) *Server {
	s := &Server{
		mcp: gosdk.NewServer(&gosdk.Implementation{
			Name:    "codemesh",
			Version: version.Version,
		}, nil),
		pipeline: p,
		hybrid:   hybrid,
	}
	s.registerTools()
	return s
}

// Run serves MCP requests over stdio until ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcp.Run(ctx, &gosdk.StdioTransport{})
}

func (s *Server) registerTools() {
	gosdk.AddTool(s.mcp, &gosdk.Tool{
		Name:        "index_codebase",
		Description: "Build or refresh the search index for a codebase at an absolute path. Re-running only re-embeds files that changed since the last index.",
	}, s.handleIndexCodebase)

	gosdk.AddTool(s.mcp, &gosdk.Tool{
		Name:        "search_code",
		Description: "Search an already-indexed codebase by meaning and keyword. Returns the most relevant chunks with file path, line range, and score.",
	}, s.handleSearchCode)

	gosdk.AddTool(s.mcp, &gosdk.Tool{
		Name:        "clear_index",
		Description: "Delete the search index for a codebase, freeing its storage. The next index_codebase call starts from scratch.",
	}, s.handleClearIndex)

	gosdk.AddTool(s.mcp, &gosdk.Tool{
		Name:        "get_indexing_status",
		Description: "Report whether a codebase is indexed, currently indexing, or has never been indexed, plus document/storage stats when available.",
	}, s.handleGetIndexingStatus)

	slog.Debug("mcp: registered tools", slog.Int("count", 4))
}

// IndexCodebaseInput is the index_codebase tool's input schema.
type IndexCodebaseInput struct {
	Path  string `json:"path" jsonschema:"absolute path to the codebase to index"`
	Force bool   `json:"force,omitempty" jsonschema:"discard the existing index and rebuild from scratch"`
}

// IndexCodebaseOutput is the index_codebase tool's output schema.
type IndexCodebaseOutput struct {
	FilesIndexed int    `json:"files_indexed" jsonschema:"number of files scanned"`
	ChunksStored int    `json:"chunks_stored" jsonschema:"number of chunks written to the index"`
	Message      string `json:"message" jsonschema:"human-readable summary"`
}

func (s *Server) handleIndexCodebase(ctx context.Context, _ *gosdk.CallToolRequest, in IndexCodebaseInput) (*gosdk.CallToolResult, IndexCodebaseOutput, error) {
	if in.Path == "" {
		return nil, IndexCodebaseOutput{}, fmt.Errorf("path is required")
	}
	requestID := generateRequestID()
	slog.Info("mcp: index_codebase", slog.String("request_id", requestID), slog.String("path", in.Path))

	if in.Force {
		if err := s.pipeline.ClearIndex(in.Path, ""); err != nil {
			return nil, IndexCodebaseOutput{}, err
		}
	}

	var last pipeline.Progress
	onProgress := func(p pipeline.Progress) { last = p }
	exists, err := s.pipeline.Store.HasCollection(ctx, pipeline.CollectionName(in.Path, ""))
	if err != nil {
		return nil, IndexCodebaseOutput{}, err
	}
	if exists {
		_, err = s.pipeline.ReindexByChange(ctx, in.Path, "", s.hybrid, onProgress)
	} else {
		err = s.pipeline.FullIndex(ctx, in.Path, "", s.hybrid, onProgress)
	}
	if err != nil {
		return nil, IndexCodebaseOutput{}, err
	}

	status, err := s.pipeline.Status(ctx, in.Path, "")
	if err != nil {
		return nil, IndexCodebaseOutput{}, err
	}
	out := IndexCodebaseOutput{Message: fmt.Sprintf("indexed %s (%s)", in.Path, last.Phase)}
	if status.Registry.Files > 0 || status.Registry.Chunks > 0 {
		out.FilesIndexed = status.Registry.Files
		out.ChunksStored = status.Registry.Chunks
	}
	return nil, out, nil
}

// SearchCodeInput is the search_code tool's input schema.
type SearchCodeInput struct {
	Path       string   `json:"path" jsonschema:"absolute path to the already-indexed codebase"`
	Query      string   `json:"query" jsonschema:"the search query"`
	Limit      int      `json:"limit,omitempty" jsonschema:"maximum number of results, default 10"`
	Extensions []string `json:"extensions,omitempty" jsonschema:"restrict results to these file extensions, e.g. [\".go\"]"`
}

// SearchCodeOutput is the search_code tool's output schema.
type SearchCodeOutput struct {
	Results    []SearchResultOutput `json:"results" jsonschema:"matched chunks, best first"`
	InProgress bool                 `json:"in_progress" jsonschema:"true if the codebase is currently being (re)indexed"`
}

// SearchResultOutput is one projected search hit.
type SearchResultOutput struct {
	FilePath  string  `json:"file_path"`
	Content   string  `json:"content"`
	StartLine int     `json:"start_line"`
	EndLine   int     `json:"end_line"`
	Language  string  `json:"language"`
	Score     float64 `json:"score"`
}

func (s *Server) handleSearchCode(ctx context.Context, _ *gosdk.CallToolRequest, in SearchCodeInput) (*gosdk.CallToolResult, SearchCodeOutput, error) {
	if in.Path == "" || in.Query == "" {
		return nil, SearchCodeOutput{}, fmt.Errorf("path and query are required")
	}
	result, err := s.pipeline.Search(ctx, in.Path, "", in.Query, pipeline.SearchOptions{
		TopK:       in.Limit,
		Extensions: in.Extensions,
	})
	if err != nil {
		return nil, SearchCodeOutput{}, err
	}
	out := SearchCodeOutput{InProgress: result.InProgress, Results: make([]SearchResultOutput, 0, len(result.Hits))}
	for _, h := range result.Hits {
		out.Results = append(out.Results, SearchResultOutput{
			FilePath:  h.RelativePath,
			Content:   h.Content,
			StartLine: h.StartLine,
			EndLine:   h.EndLine,
			Language:  h.Language,
			Score:     h.Score,
		})
	}
	return nil, out, nil
}

// ClearIndexInput is the clear_index tool's input schema.
type ClearIndexInput struct {
	Path string `json:"path" jsonschema:"absolute path to the codebase whose index should be deleted"`
}

// ClearIndexOutput is the clear_index tool's output schema.
type ClearIndexOutput struct {
	Cleared bool `json:"cleared"`
}

func (s *Server) handleClearIndex(_ context.Context, _ *gosdk.CallToolRequest, in ClearIndexInput) (*gosdk.CallToolResult, ClearIndexOutput, error) {
	if in.Path == "" {
		return nil, ClearIndexOutput{}, fmt.Errorf("path is required")
	}
	if err := s.pipeline.ClearIndex(in.Path, ""); err != nil {
		return nil, ClearIndexOutput{}, err
	}
	return nil, ClearIndexOutput{Cleared: true}, nil
}

// GetIndexingStatusInput is the get_indexing_status tool's input schema.
type GetIndexingStatusInput struct {
	Path string `json:"path" jsonschema:"absolute path to the codebase to check"`
}

// GetIndexingStatusOutput is the get_indexing_status tool's output schema.
type GetIndexingStatusOutput struct {
	State         string `json:"state" jsonschema:"not_found, indexing, indexed, or failed"`
	Progress      int    `json:"progress,omitempty"`
	DocumentCount int    `json:"document_count,omitempty"`
	StorageBytes  int64  `json:"storage_bytes,omitempty"`
	Message       string `json:"message,omitempty"`
}

func (s *Server) handleGetIndexingStatus(ctx context.Context, _ *gosdk.CallToolRequest, in GetIndexingStatusInput) (*gosdk.CallToolResult, GetIndexingStatusOutput, error) {
	if in.Path == "" {
		return nil, GetIndexingStatusOutput{}, fmt.Errorf("path is required")
	}
	status, err := s.pipeline.Status(ctx, in.Path, "")
	if err != nil {
		return nil, GetIndexingStatusOutput{}, err
	}
	out := GetIndexingStatusOutput{
		State:    string(status.Registry.State),
		Progress: status.Registry.Progress,
		Message:  status.Registry.Message,
	}
	if status.Collection != nil {
		out.DocumentCount = status.Collection.DocumentCount
		out.StorageBytes = status.Collection.StorageBytes
	}
	return nil, out, nil
}

// generateRequestID mints a correlation id tying together the log lines of
// a single tool call.
func generateRequestID() string {
	return uuid.New().String()
}
