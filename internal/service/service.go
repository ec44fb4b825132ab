package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voicecards/voicecards/internal/models"
	"github.com/voicecards/voicecards/pkg/anki"
	"github.com/voicecards/voicecards/pkg/utils"
)

// AnkiClient is the external-store surface the service depends on.
// Implemented by pkg/anki over AnkiConnect.
type AnkiClient interface {
	CheckConnection(ctx context.Context) error
	ImportDeck(ctx context.Context, deckName string) (*anki.DeckExport, error)
	AddCard(ctx context.Context, deckName, front, back, hint string, tags []string) (int64, error)
	PushProgress(ctx context.Context, mappings []anki.ProgressMapping, reviews []anki.ReviewInfo) error
	SyncProgress(ctx context.Context, deckName string, reviews []anki.ReviewInfo, mappings []anki.ProgressMapping) (*anki.SyncSummary, error)
}

// keyedMutex hands out one mutex per key. Used to serialize session
// operations per user and sync runs per deck.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

func (k *keyedMutex) lock(key string) *sync.Mutex {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m
}

type Service struct {
	repo models.Repository
	anki AnkiClient

	userLocks *keyedMutex
	deckLocks *keyedMutex

	autoSyncStop chan struct{}
	autoSyncDone chan struct{}
}

func NewService(repo models.Repository, ankiClient AnkiClient) *Service {
	return &Service{
		repo:      repo,
		anki:      ankiClient,
		userLocks: newKeyedMutex(),
		deckLocks: newKeyedMutex(),
	}
}

func (s *Service) CreateDeck(ctx context.Context, userID, name, description string, tags []string) (*models.Deck, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("deck name is empty (user_id: %s)", userID)
	}

	existing, err := s.repo.GetDeckByName(ctx, userID, name)
	if err != nil {
		return nil, fmt.Errorf("check deck exists (user_id: %s, name: %s): %w", userID, name, err)
	}
	if existing != nil {
		return nil, fmt.Errorf("deck already exists (user_id: %s, name: %s)", userID, name)
	}

	now := utils.NowUTC()
	deck := &models.Deck{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        name,
		Description: description,
		Tags:        models.Tags(tags),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.CreateDeck(ctx, deck); err != nil {
		return nil, fmt.Errorf("create deck (user_id: %s, name: %s): %w", userID, name, err)
	}

	zap.S().Infow("deck created", "user_id", userID, "deck_id", deck.ID, "name", name)

	return deck, nil
}

func (s *Service) ListDecks(ctx context.Context, userID string) ([]*models.Deck, error) {
	decks, err := s.repo.ListDecks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list decks (user_id: %s): %w", userID, err)
	}

	return decks, nil
}

func (s *Service) GetDeckStats(ctx context.Context, userID, deckID string) (*models.DeckStats, error) {
	deck, err := s.getDeck(ctx, deckID)
	if err != nil {
		return nil, err
	}

	stats, err := s.repo.GetDeckStats(ctx, userID, deck.ID, utils.NowUTC())
	if err != nil {
		return nil, fmt.Errorf("get deck stats (deck_id: %s): %w", deckID, err)
	}

	return stats, nil
}

// ImportCardsFromText parses "front|back|hint" lines and creates a card per
// line. The hint segment is optional; blank lines are ignored and malformed
// lines are skipped and counted instead of failing the batch.
func (s *Service) ImportCardsFromText(ctx context.Context, deckID, text string) (imported, skipped int, err error) {
	deck, err := s.getDeck(ctx, deckID)
	if err != nil {
		return 0, 0, err
	}

	err = s.repo.RunInTx(ctx, func(repo models.Repository) error {
		for i, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			parts := strings.SplitN(line, "|", 3)
			if len(parts) < 2 {
				zap.S().Warnw("malformed card line skipped", "deck_id", deckID, "line", i+1)
				skipped++
				continue
			}

			hint := ""
			if len(parts) == 3 {
				hint = strings.TrimSpace(parts[2])
			}

			now := utils.NowUTC()
			card := &models.Card{
				ID:        uuid.NewString(),
				DeckID:    deck.ID,
				Front:     strings.TrimSpace(parts[0]),
				Back:      strings.TrimSpace(parts[1]),
				Hint:      hint,
				CreatedAt: now,
				UpdatedAt: now,
			}

			if err := repo.CreateCard(ctx, card); err != nil {
				return fmt.Errorf("create card (line %d): %w", i+1, err)
			}
			imported++
		}
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("import cards (deck_id: %s): %w", deckID, err)
	}

	zap.S().Infow("cards imported from text", "deck_id", deckID, "count", imported, "skipped", skipped)

	return imported, skipped, nil
}

func (s *Service) GetSessionStats(ctx context.Context, sessionID string) (*models.StudySession, error) {
	session, err := s.repo.GetStudySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Kind: "session", ID: sessionID}
		}
		return nil, fmt.Errorf("get study session (session_id: %s): %w", sessionID, err)
	}

	return session, nil
}

func (s *Service) getDeck(ctx context.Context, deckID string) (*models.Deck, error) {
	deck, err := s.repo.GetDeck(ctx, deckID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Kind: "deck", ID: deckID}
		}
		return nil, fmt.Errorf("get deck (deck_id: %s): %w", deckID, err)
	}

	return deck, nil
}

// EndSession closes the user's active study session and resets the cursor.
func (s *Service) EndSession(ctx context.Context, userID string) (*models.StudySession, error) {
	defer s.userLocks.lock(userID).Unlock()

	state, err := s.repo.GetSessionState(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get session state (user_id: %s): %w", userID, err)
	}
	if state == nil || state.SessionID == nil {
		return nil, &InvalidStateError{UserID: userID, Reason: "no active session"}
	}

	session, err := s.repo.EndStudySession(ctx, *state.SessionID, utils.NowUTC())
	if err != nil {
		return nil, fmt.Errorf("end study session (session_id: %s): %w", *state.SessionID, err)
	}

	cleared := &models.SessionState{UserID: userID, UpdatedAt: utils.NowUTC()}
	if err := s.repo.UpsertSessionState(ctx, cleared); err != nil {
		return nil, fmt.Errorf("reset session state (user_id: %s): %w", userID, err)
	}

	zap.S().Infow("study session ended",
		"user_id", userID,
		"session_id", session.ID,
		"reviewed", session.CardsReviewed,
		"correct", session.CardsCorrect)

	return session, nil
}

func (s *Service) ListSyncHistory(ctx context.Context, userID string, limit int) ([]*models.SyncHistoryEntry, error) {
	if limit <= 0 {
		limit = 10
	}

	entries, err := s.repo.ListSyncHistory(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list sync history (user_id: %s): %w", userID, err)
	}

	return entries, nil
}
