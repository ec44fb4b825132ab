package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/voicecards/voicecards/internal/models"
)

func (r *Postgres) CreateCard(ctx context.Context, card *models.Card) error {
	query := r.psql.Insert("cards").
		Columns("id", "deck_id", "front", "back", "hint", "tags", "created_at", "updated_at").
		Values(card.ID, card.DeckID, card.Front, card.Back, card.Hint, card.Tags, card.CreatedAt, card.UpdatedAt)

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (card_id: %s): %w", card.ID, err)
	}

	_, err = r.ExecContext(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("create card (card_id: %s, deck_id: %s): %w", card.ID, card.DeckID, err)
	}
	return nil
}

func (r *Postgres) GetCard(ctx context.Context, cardID string) (*models.Card, error) {
	query := `
		SELECT id, deck_id, front, back, hint, tags, created_at, updated_at
		FROM cards WHERE id = $1
	`

	var card models.Card
	err := r.GetContext(ctx, &card, query, cardID)
	if err != nil {
		return nil, fmt.Errorf("get card (card_id: %s): %w", cardID, err)
	}

	return &card, nil
}

func (r *Postgres) FindCardByFront(ctx context.Context, deckID, front string) (*models.Card, error) {
	query := `
		SELECT id, deck_id, front, back, hint, tags, created_at, updated_at
		FROM cards WHERE deck_id = $1 AND front = $2
	`

	var card models.Card
	err := r.GetContext(ctx, &card, query, deckID, front)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find card by front (deck_id: %s): %w", deckID, err)
	}

	return &card, nil
}

func (r *Postgres) UpdateCardContent(ctx context.Context, cardID, back, hint string, tags models.Tags) error {
	query := r.psql.Update("cards").
		Set("back", back).
		Set("hint", hint).
		Set("tags", tags).
		Set("updated_at", time.Now().UTC()).
		Where("id = ?", cardID)

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (card_id: %s): %w", cardID, err)
	}

	_, err = r.ExecContext(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update card content (card_id: %s): %w", cardID, err)
	}
	return nil
}

func (r *Postgres) ListDeckCards(ctx context.Context, deckID string) ([]*models.Card, error) {
	query := `
		SELECT id, deck_id, front, back, hint, tags, created_at, updated_at
		FROM cards
		WHERE deck_id = $1
		ORDER BY created_at ASC, id ASC
	`

	var cards []*models.Card
	err := r.SelectContext(ctx, &cards, query, deckID)
	if err != nil {
		return nil, fmt.Errorf("list deck cards (deck_id: %s): %w", deckID, err)
	}

	return cards, nil
}

// FindDueCards returns the user's due cards ordered earliest-due first.
// Cards with no review yet count as due and sort ahead of everything else;
// creation time and id break ties so the ordering is stable.
func (r *Postgres) FindDueCards(ctx context.Context, userID string, deckID *string, now time.Time) ([]*models.Card, error) {
	query := `
		SELECT c.id, c.deck_id, c.front, c.back, c.hint, c.tags, c.created_at, c.updated_at
		FROM cards c
		JOIN decks d ON d.id = c.deck_id
		LEFT JOIN LATERAL (
			SELECT next_due_at
			FROM card_reviews
			WHERE card_id = c.id AND user_id = $1
			ORDER BY reviewed_at DESC
			LIMIT 1
		) lr ON TRUE
		WHERE d.user_id = $1
		  AND ($2::uuid IS NULL OR c.deck_id = $2)
		  AND (lr.next_due_at IS NULL OR lr.next_due_at <= $3)
		ORDER BY lr.next_due_at ASC NULLS FIRST, c.created_at ASC, c.id ASC
	`

	var cards []*models.Card
	err := r.SelectContext(ctx, &cards, query, userID, deckID, now)
	if err != nil {
		return nil, fmt.Errorf("find due cards (user_id: %s): %w", userID, err)
	}

	return cards, nil
}
