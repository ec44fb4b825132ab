package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/voicecards/voicecards/internal/service"
)

// CreateDeckTool handles the create_deck MCP tool.
type CreateDeckTool struct {
	svc *service.Service
}

func (t *CreateDeckTool) Definition() mcp.Tool {
	return mcp.NewTool("create_deck",
		mcp.WithDescription("Create a new flashcard deck."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Deck name, unique per user"),
		),
		mcp.WithString("description",
			mcp.Description("What the deck covers"),
		),
		mcp.WithString("tags",
			mcp.Description("Comma-separated tags"),
		),
		mcp.WithString("user_id",
			mcp.Description("Owner of the deck"),
		),
	)
}

func (t *CreateDeckTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if name == "" {
		return mcp.NewToolResultError("'name' is required"), nil
	}

	userID := req.GetString("user_id", defaultUser)
	description := req.GetString("description", "")
	tags := splitTags(req.GetString("tags", ""))

	deck, err := t.svc.CreateDeck(ctx, userID, name, description, tags)
	if err != nil {
		return errResult(err), nil
	}

	return jsonResult(deck), nil
}

// ListDecksTool handles the list_decks MCP tool.
type ListDecksTool struct {
	svc *service.Service
}

func (t *ListDecksTool) Definition() mcp.Tool {
	return mcp.NewTool("list_decks",
		mcp.WithDescription("List the user's flashcard decks."),
		mcp.WithString("user_id",
			mcp.Description("User whose decks to list"),
		),
	)
}

func (t *ListDecksTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := req.GetString("user_id", defaultUser)

	decks, err := t.svc.ListDecks(ctx, userID)
	if err != nil {
		return errResult(err), nil
	}
	if len(decks) == 0 {
		return mcp.NewToolResultText("No decks yet. Use create_deck or anki_import_deck to add one."), nil
	}

	return jsonResult(decks), nil
}

// DeckStatsTool handles the get_deck_stats MCP tool.
type DeckStatsTool struct {
	svc *service.Service
}

func (t *DeckStatsTool) Definition() mcp.Tool {
	return mcp.NewTool("get_deck_stats",
		mcp.WithDescription(
			"Show card counts for a deck: total, due today, new, learning and mastered.",
		),
		mcp.WithString("deck_id",
			mcp.Required(),
			mcp.Description("Deck to inspect"),
		),
		mcp.WithString("user_id",
			mcp.Description("User whose progress to count"),
		),
	)
}

func (t *DeckStatsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deckID := req.GetString("deck_id", "")
	if deckID == "" {
		return mcp.NewToolResultError("'deck_id' is required"), nil
	}

	userID := req.GetString("user_id", defaultUser)

	stats, err := t.svc.GetDeckStats(ctx, userID, deckID)
	if err != nil {
		return errResult(err), nil
	}

	return jsonResult(stats), nil
}

// ImportCardsTool handles the import_cards MCP tool.
type ImportCardsTool struct {
	svc *service.Service
}

func (t *ImportCardsTool) Definition() mcp.Tool {
	return mcp.NewTool("import_cards",
		mcp.WithDescription(
			"Bulk-add cards to a deck from text. One card per line in the form "+
				"front|back or front|back|hint. Blank lines are skipped.",
		),
		mcp.WithString("deck_id",
			mcp.Required(),
			mcp.Description("Deck to add the cards to"),
		),
		mcp.WithString("cards",
			mcp.Required(),
			mcp.Description("Card lines, newline separated"),
		),
	)
}

func (t *ImportCardsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deckID := req.GetString("deck_id", "")
	if deckID == "" {
		return mcp.NewToolResultError("'deck_id' is required"), nil
	}
	text := req.GetString("cards", "")
	if text == "" {
		return mcp.NewToolResultError("'cards' is required"), nil
	}

	imported, skipped, err := t.svc.ImportCardsFromText(ctx, deckID, text)
	if err != nil {
		return errResult(err), nil
	}

	if skipped > 0 {
		return mcp.NewToolResultText(fmt.Sprintf("Imported %d cards, skipped %d malformed lines.", imported, skipped)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Imported %d cards.", imported)), nil
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}

	var tags []string
	for _, tag := range strings.Split(s, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}

	return tags
}
