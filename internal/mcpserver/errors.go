package mcpserver

import (
	"errors"
	"fmt"

	"trivia-rewards/internal/rewards"

	"github.com/mark3labs/mcp-go/mcp"
)

func toolResult(data any) *mcp.CallToolResult {
	return mcp.NewToolResultStructuredOnly(data)
}

func toolError(code, message string) *mcp.CallToolResult {
	result := mcp.NewToolResultStructured(
		map[string]any{
			"error": map[string]any{
				"code":    code,
				"message": message,
			},
		},
		fmt.Sprintf("%s: %s", code, message),
	)
	result.IsError = true
	return result
}

func mapDomainError(err error) *mcp.CallToolResult {
	if err == nil {
		return toolError("internal_error", "unknown error")
	}
	var ie *rewards.InsufficientInputsError
	if errors.As(err, &ie) {
		return toolError(rewards.ErrInsufficientInputs.Error(), ie.Error())
	}
	return toolError(rewards.Code(err), err.Error())
}
