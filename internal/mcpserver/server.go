package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"trivia-rewards/internal/catalog"
	"trivia-rewards/internal/eligibility"
	"trivia-rewards/internal/leaderboard"
	"trivia-rewards/internal/workflow"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Deps are the engine components the read-only tools query.
type Deps struct {
	Eligibility *eligibility.Manager
	Catalog     *catalog.Allocator
	Workflow    *workflow.Driver
	Leaderboard *leaderboard.Engine
}

type Server struct {
	deps Deps

	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
}

func New(d Deps) *Server {
	mcpSrv := server.NewMCPServer(
		"trivia-rewards",
		"0.1.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
		server.WithResourceRecovery(),
	)
	s := &Server{
		deps:       d,
		mcpServer:  mcpSrv,
		httpServer: server.NewStreamableHTTPServer(mcpSrv, server.WithStateLess(true), server.WithDisableStreaming(true)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer
}

func (s *Server) registerResources() {
	s.mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"operation://{operation_id}",
			"operation_status",
			mcp.WithTemplateDescription("Claim or forge operation status by id"),
			mcp.WithTemplateMIMEType("application/json"),
		),
		func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			raw := request.Params.URI
			operationID := strings.TrimPrefix(raw, "operation://")
			if operationID == "" || operationID == raw {
				return nil, nil
			}
			st, err := s.deps.Workflow.Status(ctx, operationID)
			if err != nil {
				return nil, err
			}
			payload, err := json.Marshal(st)
			if err != nil {
				return nil, err
			}
			return []mcp.ResourceContents{
				mcp.TextResourceContents{
					URI:      raw,
					MIMEType: "application/json",
					Text:     string(payload),
				},
			}, nil
		},
	)
}
