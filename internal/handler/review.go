package handler

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/voicecards/voicecards/internal/service"
)

// GetNextCardTool handles the get_next_card MCP tool.
type GetNextCardTool struct {
	svc *service.Service
}

func (t *GetNextCardTool) Definition() mcp.Tool {
	return mcp.NewTool("get_next_card",
		mcp.WithDescription(
			"Fetch the next due flashcard for review. Returns the front side only; "+
				"call reveal_answer to see the back. Calling this again before grading "+
				"returns the same card.",
		),
		mcp.WithString("deck_id",
			mcp.Description("Limit the review to one deck. Omit to review across all decks."),
		),
		mcp.WithString("user_id",
			mcp.Description("User to review as (default: the server's single user)"),
		),
	)
}

func (t *GetNextCardTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := req.GetString("user_id", defaultUser)

	var deckID *string
	if v := req.GetString("deck_id", ""); v != "" {
		deckID = &v
	}

	next, err := t.svc.GetNextCard(ctx, userID, deckID)
	if err != nil {
		return errResult(err), nil
	}
	if next == nil {
		return mcp.NewToolResultText("No cards are due for review. Great job!"), nil
	}

	return jsonResult(next), nil
}

// RevealAnswerTool handles the reveal_answer MCP tool.
type RevealAnswerTool struct {
	svc *service.Service
}

func (t *RevealAnswerTool) Definition() mcp.Tool {
	return mcp.NewTool("reveal_answer",
		mcp.WithDescription("Reveal the back side of the current card so it can be graded."),
		mcp.WithString("user_id",
			mcp.Description("User whose card to reveal"),
		),
	)
}

func (t *RevealAnswerTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := req.GetString("user_id", defaultUser)

	card, err := t.svc.RevealAnswer(ctx, userID)
	if err != nil {
		return errResult(err), nil
	}

	return jsonResult(card), nil
}

// GradeCardTool handles the grade_card MCP tool.
type GradeCardTool struct {
	svc *service.Service
}

func (t *GradeCardTool) Definition() mcp.Tool {
	return mcp.NewTool("grade_card",
		mcp.WithDescription(
			"Grade the current card after revealing its answer. Accepts again/hard/good/easy "+
				"and common synonyms (forgot, correct, perfect, ...). The card is rescheduled "+
				"and the next due date is returned.",
		),
		mcp.WithString("grade",
			mcp.Required(),
			mcp.Description("Answer quality: again, hard, good or easy"),
		),
		mcp.WithString("user_id",
			mcp.Description("User grading the card"),
		),
	)
}

func (t *GradeCardTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	grade := req.GetString("grade", "")
	if grade == "" {
		return mcp.NewToolResultError("'grade' is required"), nil
	}

	userID := req.GetString("user_id", defaultUser)

	result, err := t.svc.GradeCard(ctx, userID, grade)
	if err != nil {
		return errResult(err), nil
	}

	return jsonResult(result), nil
}

// SkipCardTool handles the skip_card MCP tool.
type SkipCardTool struct {
	svc *service.Service
}

func (t *SkipCardTool) Definition() mcp.Tool {
	return mcp.NewTool("skip_card",
		mcp.WithDescription(
			"Skip the current card without grading it. No review is recorded and the card "+
				"stays due.",
		),
		mcp.WithString("user_id",
			mcp.Description("User skipping the card"),
		),
	)
}

func (t *SkipCardTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := req.GetString("user_id", defaultUser)

	if err := t.svc.SkipCard(ctx, userID); err != nil {
		return errResult(err), nil
	}

	return mcp.NewToolResultText("Card skipped."), nil
}
