package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/voicecards/voicecards/internal/models"
	"github.com/voicecards/voicecards/pkg/utils"
)

func (r *Postgres) CreateDeck(ctx context.Context, deck *models.Deck) error {
	query := r.psql.Insert("decks").
		Columns("id", "user_id", "name", "description", "tags", "created_at", "updated_at").
		Values(deck.ID, deck.UserID, deck.Name, deck.Description, deck.Tags, deck.CreatedAt, deck.UpdatedAt)

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (deck_id: %s): %w", deck.ID, err)
	}

	_, err = r.ExecContext(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("create deck (deck_id: %s, name: %s): %w", deck.ID, deck.Name, err)
	}
	return nil
}

func (r *Postgres) GetDeck(ctx context.Context, deckID string) (*models.Deck, error) {
	query := `
		SELECT id, user_id, name, description, tags, created_at, updated_at
		FROM decks WHERE id = $1
	`

	var deck models.Deck
	err := r.GetContext(ctx, &deck, query, deckID)
	if err != nil {
		return nil, fmt.Errorf("get deck (deck_id: %s): %w", deckID, err)
	}

	return &deck, nil
}

func (r *Postgres) GetDeckByName(ctx context.Context, userID, name string) (*models.Deck, error) {
	query := `
		SELECT id, user_id, name, description, tags, created_at, updated_at
		FROM decks WHERE user_id = $1 AND name = $2
	`

	var deck models.Deck
	err := r.GetContext(ctx, &deck, query, userID, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get deck by name (user_id: %s, name: %s): %w", userID, name, err)
	}

	return &deck, nil
}

func (r *Postgres) UpdateDeckDescription(ctx context.Context, deckID, description string) error {
	query := r.psql.Update("decks").
		Set("description", description).
		Set("updated_at", time.Now().UTC()).
		Where("id = ?", deckID)

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (deck_id: %s): %w", deckID, err)
	}

	_, err = r.ExecContext(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update deck description (deck_id: %s): %w", deckID, err)
	}
	return nil
}

func (r *Postgres) ListDecks(ctx context.Context, userID string) ([]*models.Deck, error) {
	query := `
		SELECT id, user_id, name, description, tags, created_at, updated_at
		FROM decks
		WHERE user_id = $1
		ORDER BY name ASC
	`

	var decks []*models.Deck
	err := r.SelectContext(ctx, &decks, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list decks (user_id: %s): %w", userID, err)
	}

	return decks, nil
}

// GetDeckStats aggregates card counts for a deck. A card is new when it has
// no review, due when its latest review is due before end of day, learning
// when its latest interval is under 21 days and mastered otherwise.
func (r *Postgres) GetDeckStats(ctx context.Context, userID, deckID string, now time.Time) (*models.DeckStats, error) {
	endOfDay := utils.EndOfDay(utils.TruncateToMinutes(now))

	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE lr.next_due_at IS NULL) AS new,
			COUNT(*) FILTER (WHERE lr.next_due_at IS NOT NULL AND lr.next_due_at <= $3) AS due,
			COUNT(*) FILTER (WHERE lr.interval_days IS NOT NULL AND lr.interval_days < 21) AS learning,
			COUNT(*) FILTER (WHERE lr.interval_days IS NOT NULL AND lr.interval_days >= 21) AS mastered
		FROM cards c
		LEFT JOIN LATERAL (
			SELECT next_due_at, interval_days
			FROM card_reviews
			WHERE card_id = c.id AND user_id = $1
			ORDER BY reviewed_at DESC
			LIMIT 1
		) lr ON TRUE
		WHERE c.deck_id = $2
	`

	stats := models.DeckStats{DeckID: deckID}
	err := r.QueryRowxContext(ctx, query, userID, deckID, endOfDay).Scan(
		&stats.TotalCards,
		&stats.NewCards,
		&stats.DueCards,
		&stats.Learning,
		&stats.Mastered,
	)
	if err != nil {
		return nil, fmt.Errorf("get deck stats (user_id: %s, deck_id: %s): %w", userID, deckID, err)
	}

	return &stats, nil
}
