package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/creatorswipe/internal/matcher"
	"github.com/kalambet/creatorswipe/internal/profile"
	"github.com/kalambet/creatorswipe/internal/storage"
)

func newTestMCPDeps(t *testing.T) (MCPDeps, *storage.Store) {
	t.Helper()
	env := newTestEnv(t, true)
	return MCPDeps{
		Catalog:   env.deps.Catalog,
		Profiles:  env.deps.Profiles,
		Matcher:   env.deps.Matcher,
		Decisions: env.store,
	}, env.store
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestMCPServer_Creates(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	if s := NewMCPServer(deps); s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}

func TestMCPTool_ListProfiles(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpListProfiles(deps)

	result, err := handler(context.Background(), makeCallToolRequest("list_profiles", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	var rs []profile.Record
	if err := json.Unmarshal([]byte(toolText(t, result)), &rs); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(rs) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(rs))
	}

	result, _ = handler(context.Background(), makeCallToolRequest("list_profiles", map[string]interface{}{"limit": 1}))
	if err := json.Unmarshal([]byte(toolText(t, result)), &rs); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(rs) != 1 || rs[0].ID != "1" {
		t.Fatalf("limit 1 returned %+v", rs)
	}
}

func TestMCPTool_ListProfiles_TagFilter(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	if _, err := deps.Profiles.Create(profile.Draft{Name: "T", Project: "P", Description: "D", Tags: []string{"Music"}}); err != nil {
		t.Fatalf("creating profile: %v", err)
	}

	result, _ := mcpListProfiles(deps)(context.Background(),
		makeCallToolRequest("list_profiles", map[string]interface{}{"tag": "music"}))
	var rs []profile.Record
	if err := json.Unmarshal([]byte(toolText(t, result)), &rs); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(rs) != 1 || rs[0].Name != "T" {
		t.Fatalf("tag filter returned %+v", rs)
	}
}

func TestMCPTool_CreateProfile(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	handler := mcpCreateProfile(deps)

	result, err := handler(context.Background(), makeCallToolRequest("create_profile", map[string]interface{}{
		"name":        "Mira",
		"project":     "Tide",
		"description": "Ocean sound maps",
		"tags":        []interface{}{"audio", "sea"},
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	if !strings.HasPrefix(toolText(t, result), "Created profile ") {
		t.Errorf("text = %q", toolText(t, result))
	}

	rs, err := store.ListProfiles(0, 0)
	if err != nil {
		t.Fatalf("listing: %v", err)
	}
	if len(rs) != 1 || rs[0].Name != "Mira" || len(rs[0].Tags) != 2 {
		t.Fatalf("stored = %+v", rs)
	}
}

func TestMCPTool_CreateProfile_Invalid(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	result, err := mcpCreateProfile(deps)(context.Background(), makeCallToolRequest("create_profile", map[string]interface{}{
		"name": "Mira",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result")
	}
	if !strings.Contains(toolText(t, result), "project") {
		t.Errorf("text = %q, want it to name the field", toolText(t, result))
	}
}

func TestMCPTool_MatchIdea(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpMatchIdea(deps)

	result, err := handler(context.Background(), makeCallToolRequest("match_idea", map[string]interface{}{
		"idea": "Sustainable fashion marketplace",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	var rankings []matcher.Ranking
	if err := json.Unmarshal([]byte(toolText(t, result)), &rankings); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(rankings) != 2 {
		t.Fatalf("expected 2 rankings, got %d", len(rankings))
	}
	for _, r := range rankings {
		if r.Similarity < 0 || r.Similarity > 100 {
			t.Errorf("similarity %v out of range", r.Similarity)
		}
	}

	result, _ = handler(context.Background(), makeCallToolRequest("match_idea", map[string]interface{}{}))
	if !result.IsError {
		t.Error("expected error for missing idea")
	}
}

func TestMCPTool_RecentDecisions(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	handler := mcpRecentDecisions(deps)

	result, _ := handler(context.Background(), makeCallToolRequest("recent_decisions", map[string]interface{}{}))
	if result.IsError || toolText(t, result) != "[]" {
		t.Fatalf("empty result = %q", toolText(t, result))
	}

	for i, d := range []string{"like", "reject"} {
		if err := store.SaveDecision(storage.Decision{ID: "d" + string(rune('0'+i)), ProfileID: "1", Decision: d}); err != nil {
			t.Fatalf("saving decision: %v", err)
		}
	}

	result, _ = handler(context.Background(), makeCallToolRequest("recent_decisions", map[string]interface{}{"limit": 1}))
	var ds []storage.Decision
	if err := json.Unmarshal([]byte(toolText(t, result)), &ds); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(ds) != 1 || ds[0].Decision != "reject" {
		t.Fatalf("recent = %+v", ds)
	}
}

func TestMCPResource_Profiles(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	req := mcp.ReadResourceRequest{Params: mcp.ReadResourceParams{URI: "catalog://profiles"}}

	contents, err := mcpResourceProfiles(deps)(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if tc.URI != "catalog://profiles" || !strings.Contains(tc.Text, "Alex Chen") {
		t.Errorf("resource = %+v", tc)
	}
}
