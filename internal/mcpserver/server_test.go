package mcpserver

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"sort"
	"testing"

	"trivia-rewards/internal/catalog"
	"trivia-rewards/internal/config"
	"trivia-rewards/internal/eligibility"
	"trivia-rewards/internal/leaderboard"
	"trivia-rewards/internal/rewards"
	"trivia-rewards/internal/testutil"
	"trivia-rewards/internal/workflow"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

type fixture struct {
	deps   Deps
	client *client.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := testutil.OpenTestStore(t)
	c := testutil.OpenTestCache(t)
	cfg := config.DefaultEngine()
	elig := eligibility.NewManager(st, c, cfg)
	deps := Deps{
		Eligibility: elig,
		Catalog:     catalog.NewAllocator(st),
		Workflow:    workflow.NewDriver(st, elig, testutil.NewFakeLedger(), &testutil.FakeContentStore{}, cfg),
		Leaderboard: leaderboard.NewEngine(st, c),
	}
	testutil.SeedCatalog(t, st, "science", rewards.TierCategory, 3)

	httpSrv := httptest.NewServer(New(deps).Handler())
	t.Cleanup(httpSrv.Close)
	mcpClient, closeClient := newMCPClient(t, httpSrv.URL+"/mcp")
	t.Cleanup(closeClient)
	return &fixture{deps: deps, client: mcpClient}
}

func TestMCPServerTools(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assertToolNames(t, mustListTools(t, f.client), "get_leaderboard", "list_eligibilities", "get_operation", "check_availability")

	if _, err := f.deps.Leaderboard.ApplyScoreDelta(ctx, leaderboard.ScoreEvent{PlayerID: "p1", PeriodID: "s1", Points: 40}); err != nil {
		t.Fatalf("apply score: %v", err)
	}
	board := mustCallOK(t, f.client, "get_leaderboard", map[string]any{"period_id": "s1"})
	entries, _ := board["entries"].([]any)
	if len(entries) != 1 || asFloat64(board["total"]) != 1 {
		t.Fatalf("unexpected leaderboard: %v", board)
	}
	if first, _ := entries[0].(map[string]any); asString(first["player_id"]) != "p1" || asFloat64(first["rank"]) != 1 {
		t.Fatalf("unexpected entry: %v", entries[0])
	}

	if _, err := f.deps.Eligibility.Grant(ctx, eligibility.GrantRequest{Kind: rewards.EligibilityCategory, CategoryID: "science", PlayerID: "p1", SessionID: "sess"}); err != nil {
		t.Fatalf("grant: %v", err)
	}
	list := mustCallOK(t, f.client, "list_eligibilities", map[string]any{"player_id": "p1", "claimable_only": true})
	if items, _ := list["items"].([]any); len(items) != 1 {
		t.Fatalf("unexpected eligibilities: %v", list)
	}

	av := mustCallOK(t, f.client, "check_availability", map[string]any{"category_id": "science"})
	if asFloat64(av["remaining"]) != 3 {
		t.Fatalf("unexpected availability: %v", av)
	}
}

func TestMCPServerToolErrors(t *testing.T) {
	f := newFixture(t)

	assertToolErrorCode(t, mustCallTool(t, f.client, "get_operation", map[string]any{"operation_id": "missing"}), "not_found")
	assertToolErrorCode(t, mustCallTool(t, f.client, "get_leaderboard", map[string]any{}), "invalid_request")
	assertToolErrorCode(t, mustCallTool(t, f.client, "check_availability", map[string]any{"category_id": "science", "tier": "bogus"}), "invalid_request")
}

func TestClampPagination(t *testing.T) {
	tests := []struct {
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{0, 0, 50, 0},
		{20, 5, 20, 5},
		{500, -3, 100, 0},
	}
	for _, tt := range tests {
		limit, offset := clampPagination(tt.limit, tt.offset, maxLeaderboardLimit)
		if limit != tt.wantLimit || offset != tt.wantOffset {
			t.Fatalf("clampPagination(%d, %d) = %d, %d", tt.limit, tt.offset, limit, offset)
		}
	}
}

func newMCPClient(t *testing.T, endpoint string) (*client.Client, func()) {
	t.Helper()
	ctx := context.Background()
	trans, err := transport.NewStreamableHTTP(endpoint)
	if err != nil {
		t.Fatalf("new transport: %v", err)
	}
	if err := trans.Start(ctx); err != nil {
		t.Fatalf("transport start: %v", err)
	}
	c := client.NewClient(trans)
	_, err = c.Initialize(ctx, mcp.InitializeRequest{Params: mcp.InitializeParams{ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION}})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return c, func() { _ = trans.Close() }
}

func mustListTools(t *testing.T, c *client.Client) []mcp.Tool {
	t.Helper()
	res, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	return res.Tools
}

func assertToolNames(t *testing.T, tools []mcp.Tool, expected ...string) {
	t.Helper()
	got := make([]string, 0, len(tools))
	for _, tool := range tools {
		got = append(got, tool.Name)
	}
	sort.Strings(got)
	sort.Strings(expected)
	if len(got) != len(expected) {
		t.Fatalf("tool count mismatch got=%v expected=%v", got, expected)
	}
	for i := range got {
		if got[i] != expected[i] {
			t.Fatalf("tool list mismatch got=%v expected=%v", got, expected)
		}
	}
}

func mustCallTool(t *testing.T, c *client.Client, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := c.CallTool(context.Background(), mcp.CallToolRequest{Params: mcp.CallToolParams{Name: name, Arguments: args}})
	if err != nil {
		t.Fatalf("call tool %s: %v", name, err)
	}
	return res
}

func mustCallOK(t *testing.T, c *client.Client, name string, args map[string]any) map[string]any {
	t.Helper()
	res := mustCallTool(t, c, name, args)
	if res.IsError {
		t.Fatalf("%s: unexpected tool error: %v", name, res.StructuredContent)
	}
	return mapFromStructured(t, res)
}

func assertToolErrorCode(t *testing.T, res *mcp.CallToolResult, want string) {
	t.Helper()
	if !res.IsError {
		t.Fatalf("expected tool error %q, got success: %v", want, res.StructuredContent)
	}
	payload := mapFromStructured(t, res)
	errObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Fatalf("error payload missing 'error': %v", payload)
	}
	if got := asString(errObj["code"]); got != want {
		t.Fatalf("error code=%q want=%q payload=%v", got, want, payload)
	}
}

func mapFromStructured(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	b, err := json.Marshal(res.StructuredContent)
	if err != nil {
		t.Fatalf("marshal structured content: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal structured content: %v", err)
	}
	return out
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat64(v any) float64 {
	f, _ := v.(float64)
	return f
}
