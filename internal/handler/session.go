package handler

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/voicecards/voicecards/internal/service"
)

// SessionStatsTool handles the get_session_stats MCP tool.
type SessionStatsTool struct {
	svc *service.Service
}

func (t *SessionStatsTool) Definition() mcp.Tool {
	return mcp.NewTool("get_session_stats",
		mcp.WithDescription("Show reviewed and correct counters for a study session."),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description("Study session to inspect"),
		),
	)
}

func (t *SessionStatsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := req.GetString("session_id", "")
	if sessionID == "" {
		return mcp.NewToolResultError("'session_id' is required"), nil
	}

	session, err := t.svc.GetSessionStats(ctx, sessionID)
	if err != nil {
		return errResult(err), nil
	}

	return jsonResult(session), nil
}

// EndSessionTool handles the end_session MCP tool.
type EndSessionTool struct {
	svc *service.Service
}

func (t *EndSessionTool) Definition() mcp.Tool {
	return mcp.NewTool("end_session",
		mcp.WithDescription(
			"End the active study session and report its final counters. The current "+
				"card, if any, is dropped without being graded.",
		),
		mcp.WithString("user_id",
			mcp.Description("User whose session to end"),
		),
	)
}

func (t *EndSessionTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := req.GetString("user_id", defaultUser)

	session, err := t.svc.EndSession(ctx, userID)
	if err != nil {
		return errResult(err), nil
	}

	return jsonResult(session), nil
}
