package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aurora-qa/aurora/pkg/model"
	"github.com/aurora-qa/aurora/pkg/usecase/qa"
	"github.com/aurora-qa/aurora/pkg/utils/logging"
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type searchParams struct {
	Name  string `json:"name"`
	Query string `json:"query,omitempty"`
	TopK  int    `json:"top_k,omitempty"`
}

type searchResult struct {
	Member   string         `json:"member"`
	MemberID model.MemberID `json:"member_id"`
	Items    []searchItem   `json:"items"`
}

type searchItem struct {
	SnippetID  string   `json:"snippet_id"`
	Text       string   `json:"text"`
	Timestamp  string   `json:"timestamp"`
	Status     string   `json:"status"`
	Categories []string `json:"categories,omitempty"`
	Score      float64  `json:"score"`
}

// NewServer exposes member memory search as an MCP tool so external
// MCP clients can reuse the same retrieval and evidence annotation the
// QA loop uses internally.
func NewServer(uc *qa.UseCase, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "aurora-member-memory",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "search_member_memory",
		Description: "Search memory snippets recorded about one member of the service. Resolves the member by name, retrieves the most relevant snippets, and annotates them with statuses (active, superseded, intent, confirmed).",
		InputSchema: searchInputSchema(),
	}, func(ctx context.Context, _ *mcp.CallToolRequest, params *searchParams) (*mcp.CallToolResult, any, error) {
		return handleSearch(ctx, uc, params)
	})

	return server
}

// Serve runs the MCP server on stdio until the context is done.
func Serve(ctx context.Context, uc *qa.UseCase, version string) error {
	logging.From(ctx).Info("starting MCP server on stdio")
	return NewServer(uc, version).Run(ctx, &mcp.StdioTransport{})
}

func searchInputSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"name": {
				Type:        "string",
				Description: "Member name to resolve against the roster",
			},
			"query": {
				Type:        "string",
				Description: "What to look for (defaults to the member name)",
			},
			"top_k": {
				Type:        "integer",
				Description: "Maximum snippets to retrieve",
			},
		},
		Required: []string{"name"},
	}
}

func handleSearch(ctx context.Context, uc *qa.UseCase, params *searchParams) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(params.Name) == "" {
		return errorResult("name is required"), nil, nil
	}

	member, candidates := uc.ResolveMember(params.Name)
	switch {
	case member == nil && len(candidates) > 0:
		names := make([]string, len(candidates))
		for i, c := range candidates {
			names[i] = c.DisplayName
		}
		return errorResult(fmt.Sprintf("%q matches multiple members: %s. Call again with the exact full name.",
			params.Name, strings.Join(names, ", "))), nil, nil

	case member == nil:
		return errorResult(fmt.Sprintf("no member matches %q; the name may be misspelled", params.Name)), nil, nil
	}

	_, evidence, err := uc.SearchMemberMemory(ctx, member.DisplayName, params.Query, params.TopK)
	if err != nil {
		return nil, nil, err
	}

	result := searchResult{
		Member:   member.DisplayName,
		MemberID: member.ID,
		Items:    make([]searchItem, 0, len(evidence)),
	}
	for _, s := range evidence {
		ts := "unknown"
		if !s.Timestamp.IsZero() {
			ts = s.Timestamp.UTC().Format(time.RFC3339)
		}
		result.Items = append(result.Items, searchItem{
			SnippetID:  string(s.ID),
			Text:       s.Text,
			Timestamp:  ts,
			Status:     string(s.Status),
			Categories: s.Categories,
			Score:      s.Score,
		})
	}

	text, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return nil, nil, err
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(text)}},
	}, result, nil
}

func errorResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: msg}},
	}
}
