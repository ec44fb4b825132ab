package handler

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/voicecards/voicecards/internal/service"
)

// AnkiImportTool handles the anki_import_deck MCP tool.
type AnkiImportTool struct {
	svc *service.Service
}

func (t *AnkiImportTool) Definition() mcp.Tool {
	return mcp.NewTool("anki_import_deck",
		mcp.WithDescription(
			"Import a deck from Anki: cards, review history and id mappings. On a front "+
				"text collision the Anki version of the card wins and the collision is "+
				"reported as a resolved conflict. Requires Anki running with AnkiConnect.",
		),
		mcp.WithString("deck_name",
			mcp.Required(),
			mcp.Description("Name of the Anki deck to import"),
		),
		mcp.WithString("user_id",
			mcp.Description("User to import for"),
		),
	)
}

func (t *AnkiImportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deckName := req.GetString("deck_name", "")
	if deckName == "" {
		return mcp.NewToolResultError("'deck_name' is required"), nil
	}

	userID := req.GetString("user_id", defaultUser)

	outcome, err := t.svc.ImportDeckFromAnki(ctx, userID, deckName)
	if err != nil {
		return errResult(err), nil
	}

	return jsonResult(outcome), nil
}

// AnkiExportTool handles the anki_export_progress MCP tool.
type AnkiExportTool struct {
	svc *service.Service
}

func (t *AnkiExportTool) Definition() mcp.Tool {
	return mcp.NewTool("anki_export_progress",
		mcp.WithDescription(
			"Export local review progress for a deck into Anki. Cards Anki has never "+
				"seen are created there first so they gain an id mapping.",
		),
		mcp.WithString("deck_id",
			mcp.Required(),
			mcp.Description("Local deck whose progress to export"),
		),
		mcp.WithString("user_id",
			mcp.Description("User whose progress to export"),
		),
	)
}

func (t *AnkiExportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deckID := req.GetString("deck_id", "")
	if deckID == "" {
		return mcp.NewToolResultError("'deck_id' is required"), nil
	}

	userID := req.GetString("user_id", defaultUser)

	outcome, err := t.svc.ExportProgress(ctx, userID, deckID)
	if err != nil {
		return errResult(err), nil
	}

	return jsonResult(outcome), nil
}

// AnkiSyncTool handles the anki_sync MCP tool.
type AnkiSyncTool struct {
	svc *service.Service
}

func (t *AnkiSyncTool) Definition() mcp.Tool {
	return mcp.NewTool("anki_sync",
		mcp.WithDescription(
			"Run a bidirectional sync for a deck: local reviews go to Anki, Anki's "+
				"changes come back. Conflicts are reported in the outcome.",
		),
		mcp.WithString("deck_id",
			mcp.Required(),
			mcp.Description("Local deck to sync"),
		),
		mcp.WithString("user_id",
			mcp.Description("User whose deck to sync"),
		),
	)
}

func (t *AnkiSyncTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deckID := req.GetString("deck_id", "")
	if deckID == "" {
		return mcp.NewToolResultError("'deck_id' is required"), nil
	}

	userID := req.GetString("user_id", defaultUser)

	outcome, err := t.svc.SyncBidirectional(ctx, userID, deckID)
	if err != nil {
		return errResult(err), nil
	}

	return jsonResult(outcome), nil
}

// SyncHistoryTool handles the anki_sync_history MCP tool.
type SyncHistoryTool struct {
	svc *service.Service
}

func (t *SyncHistoryTool) Definition() mcp.Tool {
	return mcp.NewTool("anki_sync_history",
		mcp.WithDescription("Show recent sync runs: what moved, what conflicted, what failed."),
		mcp.WithNumber("limit",
			mcp.Description("Max entries to return (default: 10)"),
		),
		mcp.WithString("user_id",
			mcp.Description("User whose history to show"),
		),
	)
}

func (t *SyncHistoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := req.GetString("user_id", defaultUser)
	limit := intArg(req, "limit", 10)

	entries, err := t.svc.ListSyncHistory(ctx, userID, limit)
	if err != nil {
		return errResult(err), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("No sync runs yet."), nil
	}

	return jsonResult(entries), nil
}

// ResolveConflictTool handles the anki_resolve_conflict MCP tool.
type ResolveConflictTool struct {
	svc *service.Service
}

func (t *ResolveConflictTool) Definition() mcp.Tool {
	return mcp.NewTool("anki_resolve_conflict",
		mcp.WithDescription(
			"Resolve a reported sync conflict for one card. use_primary pushes the local "+
				"review state to Anki, use_external re-imports the deck so Anki's version "+
				"wins, merge does both in that order.",
		),
		mcp.WithString("card_id",
			mcp.Required(),
			mcp.Description("Conflicted card"),
		),
		mcp.WithString("strategy",
			mcp.Required(),
			mcp.Description("use_primary, use_external or merge"),
		),
		mcp.WithString("user_id",
			mcp.Description("User resolving the conflict"),
		),
	)
}

func (t *ResolveConflictTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cardID := req.GetString("card_id", "")
	if cardID == "" {
		return mcp.NewToolResultError("'card_id' is required"), nil
	}
	strategy := req.GetString("strategy", "")
	if strategy == "" {
		return mcp.NewToolResultError("'strategy' is required"), nil
	}

	userID := req.GetString("user_id", defaultUser)

	outcome, err := t.svc.ResolveConflict(ctx, userID, cardID, strategy)
	if err != nil {
		return errResult(err), nil
	}

	return jsonResult(outcome), nil
}
