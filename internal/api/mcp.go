package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/creatorswipe/internal/catalog"
	"github.com/kalambet/creatorswipe/internal/matcher"
	"github.com/kalambet/creatorswipe/internal/profile"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Catalog   *catalog.Catalog
	Profiles  *profile.Manager
	Matcher   *matcher.Matcher
	Decisions DecisionReader
}

// NewMCPServer creates an MCP server with the creatorswipe tools and resources registered.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"creatorswipe",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("creatorswipe: browse creator project profiles, submit new ones, and rank an idea against the existing catalog."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_profiles",
			mcp.WithDescription("List creator profiles in feed order."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of profiles (default 20)")),
			mcp.WithString("tag", mcp.Description("Only return profiles carrying this tag")),
		),
		mcpListProfiles(deps),
	)

	s.AddTool(
		mcp.NewTool("create_profile",
			mcp.WithDescription("Create a creator profile and add it to the listing."),
			mcp.WithString("name", mcp.Description("Creator name"), mcp.Required()),
			mcp.WithString("project", mcp.Description("Project title"), mcp.Required()),
			mcp.WithString("description", mcp.Description("Project description"), mcp.Required()),
			mcp.WithString("video_url", mcp.Description("Optional pitch video URL")),
			mcp.WithArray("tags", mcp.Description("Optional tags")),
		),
		mcpCreateProfile(deps),
	)

	s.AddTool(
		mcp.NewTool("match_idea",
			mcp.WithDescription("Rank existing creator ideas by similarity to a new idea (0-100)."),
			mcp.WithString("idea", mcp.Description("The new idea to compare"), mcp.Required()),
		),
		mcpMatchIdea(deps),
	)

	s.AddTool(
		mcp.NewTool("recent_decisions",
			mcp.WithDescription("Return the most recent like/reject decisions, newest first."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of decisions (default 10)")),
		),
		mcpRecentDecisions(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"catalog://profiles",
			"Profile Catalog",
			mcp.WithResourceDescription("Full profile listing as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProfiles(deps),
	)

	return s
}

func mcpListProfiles(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 20)
		if limit <= 0 {
			limit = 20
		}
		tag := strings.ToLower(strings.TrimSpace(req.GetString("tag", "")))

		rs, err := deps.Catalog.Profiles()
		if err != nil {
			return mcpError(fmt.Sprintf("listing profiles failed: %v", err)), nil
		}

		out := make([]profile.Record, 0, len(rs))
		for _, r := range rs {
			if tag != "" && !hasTag(r, tag) {
				continue
			}
			out = append(out, r)
			if len(out) == limit {
				break
			}
		}

		b, err := json.Marshal(out)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal profiles: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func hasTag(r profile.Record, tag string) bool {
	for _, t := range r.Tags {
		if strings.ToLower(t) == tag {
			return true
		}
	}
	return false
}

func mcpCreateProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		d := profile.Draft{
			Name:        req.GetString("name", ""),
			Project:     req.GetString("project", ""),
			Description: req.GetString("description", ""),
			VideoURL:    req.GetString("video_url", ""),
			Tags:        req.GetStringSlice("tags", nil),
		}

		rec, err := deps.Profiles.Create(d)
		if err != nil {
			var invalid *profile.InvalidRecordError
			if errors.As(err, &invalid) {
				return mcpError(invalid.Error()), nil
			}
			return mcpError(fmt.Sprintf("failed to save profile: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Created profile %s", rec.ID)), nil
	}
}

func mcpMatchIdea(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		idea, err := req.RequireString("idea")
		if err != nil || strings.TrimSpace(idea) == "" {
			return mcpError("idea is required"), nil
		}

		ideas, err := deps.Catalog.Ideas()
		if err != nil {
			return mcpError(fmt.Sprintf("listing ideas failed: %v", err)), nil
		}
		if len(ideas) == 0 {
			return mcpError("no existing ideas to compare against"), nil
		}

		rankings, err := deps.Matcher.Rank(ctx, ideas, idea)
		if err != nil {
			return mcpError(fmt.Sprintf("ranking failed: %v", err)), nil
		}

		b, err := json.Marshal(rankings)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal rankings: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpRecentDecisions(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Decisions == nil {
			return mcpError("decision history not available"), nil
		}
		limit := req.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}
		if limit > 100 {
			limit = 100
		}

		ds, err := deps.Decisions.ListDecisions(limit, 0)
		if err != nil {
			return mcpError(fmt.Sprintf("listing decisions failed: %v", err)), nil
		}
		if len(ds) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(ds)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal decisions: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceProfiles(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		rs, err := deps.Catalog.Profiles()
		if err != nil {
			return nil, fmt.Errorf("failed to list profiles: %w", err)
		}

		b, err := json.Marshal(rs)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal profiles: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
