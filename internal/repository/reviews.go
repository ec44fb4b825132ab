package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/voicecards/voicecards/internal/models"
)

func (r *Postgres) InsertReviewRecord(ctx context.Context, record *models.ReviewRecord) error {
	query := r.psql.Insert("card_reviews").
		Columns("id", "card_id", "user_id", "ease_factor", "interval_days", "repetitions",
			"quality", "session_id", "reviewed_at", "next_due_at").
		Values(record.ID, record.CardID, record.UserID, record.EaseFactor, record.IntervalDays,
			record.Repetitions, record.Quality, record.SessionID, record.ReviewedAt, record.NextDueAt)

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (card_id: %s, user_id: %s): %w", record.CardID, record.UserID, err)
	}

	_, err = r.ExecContext(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("insert review record (card_id: %s, user_id: %s): %w", record.CardID, record.UserID, err)
	}
	return nil
}

func (r *Postgres) LatestReviewRecord(ctx context.Context, cardID, userID string) (*models.ReviewRecord, error) {
	query := `
		SELECT id, card_id, user_id, ease_factor, interval_days, repetitions,
		       quality, session_id, reviewed_at, next_due_at
		FROM card_reviews
		WHERE card_id = $1 AND user_id = $2
		ORDER BY reviewed_at DESC
		LIMIT 1
	`

	var record models.ReviewRecord
	err := r.GetContext(ctx, &record, query, cardID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest review record (card_id: %s, user_id: %s): %w", cardID, userID, err)
	}

	return &record, nil
}

// ListReviewRecords returns all of the user's reviews, newest first.
func (r *Postgres) ListReviewRecords(ctx context.Context, userID string) ([]*models.ReviewRecord, error) {
	query := `
		SELECT id, card_id, user_id, ease_factor, interval_days, repetitions,
		       quality, session_id, reviewed_at, next_due_at
		FROM card_reviews
		WHERE user_id = $1
		ORDER BY reviewed_at DESC
	`

	var records []*models.ReviewRecord
	err := r.SelectContext(ctx, &records, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list review records (user_id: %s): %w", userID, err)
	}

	return records, nil
}

func (r *Postgres) GetSessionState(ctx context.Context, userID string) (*models.SessionState, error) {
	query := `
		SELECT user_id, deck_id, current_card_id, session_id, answer_revealed, updated_at
		FROM user_card_state
		WHERE user_id = $1
	`

	var state models.SessionState
	err := r.GetContext(ctx, &state, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session state (user_id: %s): %w", userID, err)
	}

	return &state, nil
}

func (r *Postgres) UpsertSessionState(ctx context.Context, state *models.SessionState) error {
	query := `
		INSERT INTO user_card_state (user_id, deck_id, current_card_id, session_id, answer_revealed, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			deck_id = EXCLUDED.deck_id,
			current_card_id = EXCLUDED.current_card_id,
			session_id = EXCLUDED.session_id,
			answer_revealed = EXCLUDED.answer_revealed,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.ExecContext(ctx, query,
		state.UserID, state.DeckID, state.CurrentCardID, state.SessionID, state.AnswerRevealed, state.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert session state (user_id: %s): %w", state.UserID, err)
	}
	return nil
}

func (r *Postgres) ClearCurrentCard(ctx context.Context, userID string) error {
	query := r.psql.Update("user_card_state").
		Set("current_card_id", nil).
		Set("answer_revealed", false).
		Set("updated_at", time.Now().UTC()).
		Where("user_id = ?", userID)

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (user_id: %s): %w", userID, err)
	}

	_, err = r.ExecContext(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("clear current card (user_id: %s): %w", userID, err)
	}
	return nil
}

func (r *Postgres) CreateStudySession(ctx context.Context, session *models.StudySession) error {
	query := r.psql.Insert("study_sessions").
		Columns("id", "user_id", "deck_id", "cards_reviewed", "cards_correct", "started_at").
		Values(session.ID, session.UserID, session.DeckID, session.CardsReviewed, session.CardsCorrect, session.StartedAt)

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build SQL query (session_id: %s): %w", session.ID, err)
	}

	_, err = r.ExecContext(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("create study session (session_id: %s, user_id: %s): %w", session.ID, session.UserID, err)
	}
	return nil
}

func (r *Postgres) GetStudySession(ctx context.Context, sessionID string) (*models.StudySession, error) {
	query := `
		SELECT id, user_id, deck_id, cards_reviewed, cards_correct, started_at, ended_at
		FROM study_sessions
		WHERE id = $1
	`

	var session models.StudySession
	err := r.GetContext(ctx, &session, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get study session (session_id: %s): %w", sessionID, err)
	}

	return &session, nil
}

func (r *Postgres) IncrementSessionStats(ctx context.Context, sessionID string, correct bool) error {
	query := `
		UPDATE study_sessions
		SET cards_reviewed = cards_reviewed + 1,
		    cards_correct = cards_correct + CASE WHEN $2 THEN 1 ELSE 0 END
		WHERE id = $1
	`

	_, err := r.ExecContext(ctx, query, sessionID, correct)
	if err != nil {
		return fmt.Errorf("increment session stats (session_id: %s): %w", sessionID, err)
	}
	return nil
}

func (r *Postgres) EndStudySession(ctx context.Context, sessionID string, endedAt time.Time) (*models.StudySession, error) {
	query := r.psql.Update("study_sessions").
		Set("ended_at", endedAt).
		Where("id = ?", sessionID)

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build SQL query (session_id: %s): %w", sessionID, err)
	}

	_, err = r.ExecContext(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("end study session (session_id: %s): %w", sessionID, err)
	}

	return r.GetStudySession(ctx, sessionID)
}
