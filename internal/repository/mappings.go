package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/voicecards/voicecards/internal/models"
)

func (r *Postgres) CreateMapping(ctx context.Context, mapping *models.CardMapping) error {
	query := r.psql.Insert("anki_card_mappings").
		Columns("id", "card_id", "anki_note_id", "anki_card_id", "deck_id", "last_synced_at", "sync_enabled").
		Values(mapping.ID, mapping.CardID, mapping.AnkiNoteID, mapping.AnkiCardID,
			mapping.DeckID, mapping.LastSyncedAt, mapping.SyncEnabled)

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (card_id: %s): %w", mapping.CardID, err)
	}

	_, err = r.ExecContext(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("create mapping (card_id: %s, deck_id: %s): %w", mapping.CardID, mapping.DeckID, err)
	}
	return nil
}

func (r *Postgres) GetMappingByCard(ctx context.Context, cardID string) (*models.CardMapping, error) {
	query := `
		SELECT id, card_id, anki_note_id, anki_card_id, deck_id, last_synced_at, sync_enabled
		FROM anki_card_mappings
		WHERE card_id = $1
	`

	var mapping models.CardMapping
	err := r.GetContext(ctx, &mapping, query, cardID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get mapping (card_id: %s): %w", cardID, err)
	}

	return &mapping, nil
}

func (r *Postgres) GetMappingByAnkiCard(ctx context.Context, ankiCardID int64) (*models.CardMapping, error) {
	query := `
		SELECT id, card_id, anki_note_id, anki_card_id, deck_id, last_synced_at, sync_enabled
		FROM anki_card_mappings
		WHERE anki_card_id = $1
	`

	var mapping models.CardMapping
	err := r.GetContext(ctx, &mapping, query, ankiCardID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get mapping (anki_card_id: %d): %w", ankiCardID, err)
	}

	return &mapping, nil
}

func (r *Postgres) ListDeckMappings(ctx context.Context, deckID string, onlyEnabled bool) ([]*models.CardMapping, error) {
	query := `
		SELECT id, card_id, anki_note_id, anki_card_id, deck_id, last_synced_at, sync_enabled
		FROM anki_card_mappings
		WHERE deck_id = $1 AND ($2 = FALSE OR sync_enabled = TRUE)
	`

	var mappings []*models.CardMapping
	err := r.SelectContext(ctx, &mappings, query, deckID, onlyEnabled)
	if err != nil {
		return nil, fmt.Errorf("list deck mappings (deck_id: %s): %w", deckID, err)
	}

	return mappings, nil
}

func (r *Postgres) SetMappingAnkiIDs(ctx context.Context, cardID string, noteID, ankiCardID int64) error {
	query := r.psql.Update("anki_card_mappings").
		Set("anki_note_id", noteID).
		Set("anki_card_id", ankiCardID).
		Where("card_id = ?", cardID)

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (card_id: %s): %w", cardID, err)
	}

	_, err = r.ExecContext(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("set mapping anki ids (card_id: %s, anki_card_id: %d): %w", cardID, ankiCardID, err)
	}
	return nil
}

// TouchMappings refreshes the sync watermark for every enabled mapping in the
// deck, regardless of whether an individual card changed during the round.
func (r *Postgres) TouchMappings(ctx context.Context, deckID string, syncedAt time.Time) error {
	query := r.psql.Update("anki_card_mappings").
		Set("last_synced_at", syncedAt).
		Where("deck_id = ?", deckID).
		Where("sync_enabled = TRUE")

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (deck_id: %s): %w", deckID, err)
	}

	_, err = r.ExecContext(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("touch mappings (deck_id: %s): %w", deckID, err)
	}
	return nil
}

func (r *Postgres) ListSyncTargets(ctx context.Context) ([]models.SyncTarget, error) {
	query := `
		SELECT DISTINCT d.user_id, m.deck_id
		FROM anki_card_mappings m
		JOIN decks d ON d.id = m.deck_id
		WHERE m.sync_enabled = TRUE
	`

	var targets []models.SyncTarget
	err := r.SelectContext(ctx, &targets, query)
	if err != nil {
		return nil, fmt.Errorf("list sync targets: %w", err)
	}

	return targets, nil
}

func (r *Postgres) InsertSyncHistory(ctx context.Context, userID string, outcome *models.SyncOutcome) error {
	query := r.psql.Insert("anki_sync_history").
		Columns("id", "user_id", "sync_type", "outcome", "success", "completed_at").
		Values(uuid.NewString(), userID, outcome.SyncType, outcome, outcome.Success, outcome.Timestamp)

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (user_id: %s): %w", userID, err)
	}

	_, err = r.ExecContext(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("insert sync history (user_id: %s, sync_type: %s): %w", userID, outcome.SyncType, err)
	}
	return nil
}

func (r *Postgres) ListSyncHistory(ctx context.Context, userID string, limit int) ([]*models.SyncHistoryEntry, error) {
	query := `
		SELECT id, user_id, sync_type, outcome, success, completed_at
		FROM anki_sync_history
		WHERE user_id = $1
		ORDER BY completed_at DESC
		LIMIT $2
	`

	var entries []*models.SyncHistoryEntry
	err := r.SelectContext(ctx, &entries, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sync history (user_id: %s): %w", userID, err)
	}

	return entries, nil
}
