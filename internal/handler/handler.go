// Package handler exposes the review and sync services as MCP tools over
// stdio. Each tool is a small struct pairing a definition with its handler;
// NewServer is the composition root that registers them all.
package handler

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/voicecards/voicecards/internal/service"
)

// Version is set at build time via ldflags.
var Version = "dev"

// defaultUser is used when a tool call carries no user_id. The server is
// typically attached to a single AI client, so most calls rely on it.
const defaultUser = "default"

func NewServer(svc *service.Service) *server.MCPServer {
	s := server.NewMCPServer(
		"voicecards",
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	nextTool := &GetNextCardTool{svc: svc}
	s.AddTool(nextTool.Definition(), nextTool.Handle)

	revealTool := &RevealAnswerTool{svc: svc}
	s.AddTool(revealTool.Definition(), revealTool.Handle)

	gradeTool := &GradeCardTool{svc: svc}
	s.AddTool(gradeTool.Definition(), gradeTool.Handle)

	skipTool := &SkipCardTool{svc: svc}
	s.AddTool(skipTool.Definition(), skipTool.Handle)

	createDeckTool := &CreateDeckTool{svc: svc}
	s.AddTool(createDeckTool.Definition(), createDeckTool.Handle)

	listDecksTool := &ListDecksTool{svc: svc}
	s.AddTool(listDecksTool.Definition(), listDecksTool.Handle)

	deckStatsTool := &DeckStatsTool{svc: svc}
	s.AddTool(deckStatsTool.Definition(), deckStatsTool.Handle)

	importCardsTool := &ImportCardsTool{svc: svc}
	s.AddTool(importCardsTool.Definition(), importCardsTool.Handle)

	sessionStatsTool := &SessionStatsTool{svc: svc}
	s.AddTool(sessionStatsTool.Definition(), sessionStatsTool.Handle)

	endSessionTool := &EndSessionTool{svc: svc}
	s.AddTool(endSessionTool.Definition(), endSessionTool.Handle)

	ankiImportTool := &AnkiImportTool{svc: svc}
	s.AddTool(ankiImportTool.Definition(), ankiImportTool.Handle)

	ankiExportTool := &AnkiExportTool{svc: svc}
	s.AddTool(ankiExportTool.Definition(), ankiExportTool.Handle)

	ankiSyncTool := &AnkiSyncTool{svc: svc}
	s.AddTool(ankiSyncTool.Definition(), ankiSyncTool.Handle)

	syncHistoryTool := &SyncHistoryTool{svc: svc}
	s.AddTool(syncHistoryTool.Definition(), syncHistoryTool.Handle)

	resolveConflictTool := &ResolveConflictTool{svc: svc}
	s.AddTool(resolveConflictTool.Definition(), resolveConflictTool.Handle)

	return s
}

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// jsonResult renders any value as an indented JSON tool result.
func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err))
	}
	return mcp.NewToolResultText(string(data))
}

// errResult renders a domain failure as a tool error the client can show
// to the user. Transport-level errors never originate here.
func errResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(err.Error())
}
