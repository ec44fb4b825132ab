package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voicecards/voicecards/internal/models"
	"github.com/voicecards/voicecards/internal/service/srs"
	"github.com/voicecards/voicecards/pkg/utils"
)

// NextCard is the presentation of the user's current card. Back is only
// populated after the answer has been revealed.
type NextCard struct {
	CardID         string   `json:"card_id"`
	Front          string   `json:"front"`
	Back           string   `json:"back,omitempty"`
	Hint           string   `json:"hint,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	Revealed       bool     `json:"revealed"`
	SessionID      string   `json:"session_id"`
	CardsRemaining int      `json:"cards_remaining"`
}

// GradeResult reports the scheduling outcome of one graded review.
type GradeResult struct {
	CardID       string    `json:"card_id"`
	Grade        string    `json:"grade"`
	Correct      bool      `json:"correct"`
	EaseFactor   float64   `json:"ease_factor"`
	IntervalDays int       `json:"interval_days"`
	NextDueAt    time.Time `json:"next_due_at"`
	NextReviewIn string    `json:"next_review_in"`
}

// GetNextCard returns the user's current card, fetching a new due card when
// the cursor is empty. Calling it again before grading returns the same card
// without advancing anything.
func (s *Service) GetNextCard(ctx context.Context, userID string, deckID *string) (*NextCard, error) {
	defer s.userLocks.lock(userID).Unlock()

	now := utils.NowUTC()

	state, err := s.repo.GetSessionState(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get session state (user_id: %s): %w", userID, err)
	}

	due, err := s.repo.FindDueCards(ctx, userID, deckID, now)
	if err != nil {
		return nil, fmt.Errorf("find due cards (user_id: %s): %w", userID, err)
	}

	if state != nil && state.CurrentCardID != nil {
		card, err := s.repo.GetCard(ctx, *state.CurrentCardID)
		if err != nil {
			return nil, fmt.Errorf("get current card (card_id: %s): %w", *state.CurrentCardID, err)
		}
		return s.presentCard(card, state, len(due)), nil
	}

	if len(due) == 0 {
		return nil, nil
	}

	card := due[0]

	sessionID, err := s.ensureStudySession(ctx, userID, state, deckID, now)
	if err != nil {
		return nil, err
	}

	next := &models.SessionState{
		UserID:         userID,
		DeckID:         deckID,
		CurrentCardID:  &card.ID,
		SessionID:      &sessionID,
		AnswerRevealed: false,
		UpdatedAt:      now,
	}
	if err := s.repo.UpsertSessionState(ctx, next); err != nil {
		return nil, fmt.Errorf("save session state (user_id: %s): %w", userID, err)
	}

	return s.presentCard(card, next, len(due)), nil
}

// RevealAnswer flips the current card face up.
func (s *Service) RevealAnswer(ctx context.Context, userID string) (*NextCard, error) {
	defer s.userLocks.lock(userID).Unlock()

	state, err := s.repo.GetSessionState(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get session state (user_id: %s): %w", userID, err)
	}
	if state == nil || state.CurrentCardID == nil {
		return nil, &InvalidStateError{UserID: userID, Reason: "no card is being reviewed, call get_next_card first"}
	}
	if state.AnswerRevealed {
		return nil, &InvalidStateError{UserID: userID, Reason: "answer already revealed, grade the card"}
	}

	card, err := s.repo.GetCard(ctx, *state.CurrentCardID)
	if err != nil {
		return nil, fmt.Errorf("get current card (card_id: %s): %w", *state.CurrentCardID, err)
	}

	now := utils.NowUTC()

	due, err := s.repo.FindDueCards(ctx, userID, state.DeckID, now)
	if err != nil {
		return nil, fmt.Errorf("find due cards (user_id: %s): %w", userID, err)
	}

	state.AnswerRevealed = true
	state.UpdatedAt = now
	if err := s.repo.UpsertSessionState(ctx, state); err != nil {
		return nil, fmt.Errorf("save session state (user_id: %s): %w", userID, err)
	}

	return s.presentCard(card, state, len(due)), nil
}

// GradeCard records the user's answer quality for the revealed card and
// schedules its next review. The grade string is parsed strictly; an unknown
// word is returned to the caller instead of being coerced to a default.
func (s *Service) GradeCard(ctx context.Context, userID, gradeWord string) (*GradeResult, error) {
	grade, err := srs.ParseGrade(gradeWord)
	if err != nil {
		return nil, fmt.Errorf("parse grade %q: %w", gradeWord, err)
	}

	defer s.userLocks.lock(userID).Unlock()

	state, err := s.repo.GetSessionState(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get session state (user_id: %s): %w", userID, err)
	}
	if state == nil || state.CurrentCardID == nil {
		return nil, &InvalidStateError{UserID: userID, Reason: "no card is being reviewed, call get_next_card first"}
	}
	if !state.AnswerRevealed {
		return nil, &InvalidStateError{UserID: userID, Reason: "answer not revealed yet, call reveal_answer first"}
	}

	cardID := *state.CurrentCardID
	now := utils.NowUTC()

	prior := srs.DefaultState()
	latest, err := s.repo.LatestReviewRecord(ctx, cardID, userID)
	if err != nil {
		return nil, fmt.Errorf("get latest review (card_id: %s): %w", cardID, err)
	}
	if latest != nil {
		prior = srs.State{
			EaseFactor:   latest.EaseFactor,
			IntervalDays: latest.IntervalDays,
			Repetitions:  latest.Repetitions,
		}
	}

	result := srs.ComputeNext(prior, grade, now)
	correct := grade >= srs.Good

	err = s.repo.RunInTx(ctx, func(repo models.Repository) error {
		record := &models.ReviewRecord{
			ID:           uuid.NewString(),
			CardID:       cardID,
			UserID:       userID,
			EaseFactor:   result.EaseFactor,
			IntervalDays: result.IntervalDays,
			Repetitions:  result.Repetitions,
			Quality:      grade,
			SessionID:    state.SessionID,
			ReviewedAt:   now,
			NextDueAt:    result.NextDueAt,
		}
		if err := repo.InsertReviewRecord(ctx, record); err != nil {
			return fmt.Errorf("insert review record (card_id: %s): %w", cardID, err)
		}

		if state.SessionID != nil {
			if err := repo.IncrementSessionStats(ctx, *state.SessionID, correct); err != nil {
				return fmt.Errorf("increment session stats (session_id: %s): %w", *state.SessionID, err)
			}
		}

		if err := repo.ClearCurrentCard(ctx, userID); err != nil {
			return fmt.Errorf("clear current card (user_id: %s): %w", userID, err)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("grade card (card_id: %s): %w", cardID, err)
	}

	zap.S().Infow("card graded",
		"user_id", userID,
		"card_id", cardID,
		"grade", grade.String(),
		"interval_days", result.IntervalDays,
		"ease_factor", result.EaseFactor)

	return &GradeResult{
		CardID:       cardID,
		Grade:        grade.String(),
		Correct:      correct,
		EaseFactor:   result.EaseFactor,
		IntervalDays: result.IntervalDays,
		NextDueAt:    result.NextDueAt,
		NextReviewIn: srs.FormatInterval(result.IntervalDays),
	}, nil
}

// SkipCard drops the current card without recording a review. The card stays
// due and will come back on a later fetch.
func (s *Service) SkipCard(ctx context.Context, userID string) error {
	defer s.userLocks.lock(userID).Unlock()

	state, err := s.repo.GetSessionState(ctx, userID)
	if err != nil {
		return fmt.Errorf("get session state (user_id: %s): %w", userID, err)
	}
	if state == nil || state.CurrentCardID == nil {
		return &InvalidStateError{UserID: userID, Reason: "no card is being reviewed, nothing to skip"}
	}

	if err := s.repo.ClearCurrentCard(ctx, userID); err != nil {
		return fmt.Errorf("clear current card (user_id: %s): %w", userID, err)
	}

	return nil
}

func (s *Service) ensureStudySession(ctx context.Context, userID string, state *models.SessionState, deckID *string, now time.Time) (string, error) {
	if state != nil && state.SessionID != nil && equalDeck(state.DeckID, deckID) {
		return *state.SessionID, nil
	}

	session := &models.StudySession{
		ID:        uuid.NewString(),
		UserID:    userID,
		DeckID:    deckID,
		StartedAt: now,
	}
	if err := s.repo.CreateStudySession(ctx, session); err != nil {
		return "", fmt.Errorf("create study session (user_id: %s): %w", userID, err)
	}

	zap.S().Infow("study session started", "user_id", userID, "session_id", session.ID)

	return session.ID, nil
}

func (s *Service) presentCard(card *models.Card, state *models.SessionState, remaining int) *NextCard {
	next := &NextCard{
		CardID:         card.ID,
		Front:          card.Front,
		Hint:           card.Hint,
		Tags:           card.Tags,
		Revealed:       state.AnswerRevealed,
		CardsRemaining: remaining,
	}
	if state.SessionID != nil {
		next.SessionID = *state.SessionID
	}
	if state.AnswerRevealed {
		next.Back = card.Back
	}

	return next
}

func equalDeck(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
