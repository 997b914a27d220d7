package mcpserver

import (
	"context"

	"trivia-rewards/internal/rewards"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_leaderboard",
			mcp.WithDescription("Get one page of a period leaderboard"),
			mcp.WithString("period_id", mcp.Required(), mcp.Description("Season id")),
			mcp.WithString("category_id", mcp.Description("Category scope; global when empty")),
			mcp.WithNumber("limit", mcp.Description("Page size, default 50, max 100")),
			mcp.WithNumber("offset", mcp.Description("Page offset, default 0")),
		),
		s.handleGetLeaderboard,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_eligibilities",
			mcp.WithDescription("List a player's eligibilities"),
			mcp.WithString("player_id", mcp.Required(), mcp.Description("Player id")),
			mcp.WithBoolean("claimable_only", mcp.Description("Only active, unexpired eligibilities")),
		),
		s.handleListEligibilities,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_operation",
			mcp.WithDescription("Get claim or forge operation status"),
			mcp.WithString("operation_id", mcp.Required(), mcp.Description("Operation id")),
		),
		s.handleGetOperation,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"check_availability",
			mcp.WithDescription("Advisory count of unallocated catalog items"),
			mcp.WithString("category_id", mcp.Required(), mcp.Description("Catalog category")),
			mcp.WithString("tier", mcp.Description("Catalog tier, default category")),
		),
		s.handleCheckAvailability,
	)
}

func (s *Server) handleGetLeaderboard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	periodID, err := request.RequireString("period_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	limit := request.GetInt("limit", defaultPageLimit)
	offset := request.GetInt("offset", 0)
	limit, offset = clampPagination(limit, offset, maxLeaderboardLimit)

	page, err := s.deps.Leaderboard.GetPage(ctx, periodID, scopeOf(request.GetString("category_id", "")), limit, offset)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(page), nil
}

func (s *Server) handleListEligibilities(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	playerID, err := request.RequireString("player_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	list := s.deps.Eligibility.List
	if request.GetBool("claimable_only", false) {
		list = s.deps.Eligibility.Claimable
	}
	items, err := list(ctx, playerID)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(map[string]any{"items": items}), nil
}

func (s *Server) handleGetOperation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	operationID, err := request.RequireString("operation_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	st, err := s.deps.Workflow.Status(ctx, operationID)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(st), nil
}

func (s *Server) handleCheckAvailability(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	categoryID, err := request.RequireString("category_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	tier := rewards.Tier(request.GetString("tier", string(rewards.TierCategory)))
	av, err := s.deps.Catalog.CheckAvailability(ctx, categoryID, tier)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(av), nil
}
