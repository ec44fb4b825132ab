package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/voicecards/voicecards/internal/models"
	"github.com/voicecards/voicecards/pkg/anki"
)

// fakeRepo is an in-memory models.Repository for service tests.
type fakeRepo struct {
	decks    map[string]*models.Deck
	cards    map[string]*models.Card
	reviews  []*models.ReviewRecord
	states   map[string]*models.SessionState
	sessions map[string]*models.StudySession
	mappings map[string]*models.CardMapping
	history  []*models.SyncHistoryEntry
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		decks:    make(map[string]*models.Deck),
		cards:    make(map[string]*models.Card),
		states:   make(map[string]*models.SessionState),
		sessions: make(map[string]*models.StudySession),
		mappings: make(map[string]*models.CardMapping),
	}
}

func (f *fakeRepo) CreateDeck(_ context.Context, deck *models.Deck) error {
	cp := *deck
	f.decks[deck.ID] = &cp
	return nil
}

func (f *fakeRepo) GetDeck(_ context.Context, deckID string) (*models.Deck, error) {
	deck, ok := f.decks[deckID]
	if !ok {
		return nil, fmt.Errorf("get deck (id: %s): %w", deckID, sql.ErrNoRows)
	}
	cp := *deck
	return &cp, nil
}

func (f *fakeRepo) GetDeckByName(_ context.Context, userID, name string) (*models.Deck, error) {
	for _, deck := range f.decks {
		if deck.UserID == userID && deck.Name == name {
			cp := *deck
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) UpdateDeckDescription(_ context.Context, deckID, description string) error {
	if deck, ok := f.decks[deckID]; ok {
		deck.Description = description
	}
	return nil
}

func (f *fakeRepo) ListDecks(_ context.Context, userID string) ([]*models.Deck, error) {
	var out []*models.Deck
	for _, deck := range f.decks {
		if deck.UserID == userID {
			cp := *deck
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeRepo) GetDeckStats(_ context.Context, _, deckID string, _ time.Time) (*models.DeckStats, error) {
	stats := &models.DeckStats{DeckID: deckID}
	for _, card := range f.cards {
		if card.DeckID == deckID {
			stats.TotalCards++
		}
	}
	return stats, nil
}

func (f *fakeRepo) CreateCard(_ context.Context, card *models.Card) error {
	cp := *card
	f.cards[card.ID] = &cp
	return nil
}

func (f *fakeRepo) GetCard(_ context.Context, cardID string) (*models.Card, error) {
	card, ok := f.cards[cardID]
	if !ok {
		return nil, fmt.Errorf("get card (id: %s): %w", cardID, sql.ErrNoRows)
	}
	cp := *card
	return &cp, nil
}

func (f *fakeRepo) FindCardByFront(_ context.Context, deckID, front string) (*models.Card, error) {
	for _, card := range f.cards {
		if card.DeckID == deckID && card.Front == front {
			cp := *card
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) UpdateCardContent(_ context.Context, cardID, back, hint string, tags models.Tags) error {
	card, ok := f.cards[cardID]
	if !ok {
		return fmt.Errorf("update card (id: %s): %w", cardID, sql.ErrNoRows)
	}
	card.Back = back
	card.Hint = hint
	card.Tags = tags
	return nil
}

func (f *fakeRepo) ListDeckCards(_ context.Context, deckID string) ([]*models.Card, error) {
	var out []*models.Card
	for _, card := range f.cards {
		if card.DeckID == deckID {
			cp := *card
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Front < out[j].Front })
	return out, nil
}

func (f *fakeRepo) FindDueCards(_ context.Context, userID string, deckID *string, now time.Time) ([]*models.Card, error) {
	latest := make(map[string]*models.ReviewRecord)
	for i := len(f.reviews) - 1; i >= 0; i-- {
		r := f.reviews[i]
		if r.UserID == userID {
			if _, ok := latest[r.CardID]; !ok {
				latest[r.CardID] = r
			}
		}
	}

	var out []*models.Card
	for _, card := range f.cards {
		if deckID != nil && card.DeckID != *deckID {
			continue
		}
		if r, ok := latest[card.ID]; ok && r.NextDueAt.After(now) {
			continue
		}
		cp := *card
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRepo) InsertReviewRecord(_ context.Context, record *models.ReviewRecord) error {
	cp := *record
	f.reviews = append(f.reviews, &cp)
	return nil
}

func (f *fakeRepo) LatestReviewRecord(_ context.Context, cardID, userID string) (*models.ReviewRecord, error) {
	for i := len(f.reviews) - 1; i >= 0; i-- {
		r := f.reviews[i]
		if r.CardID == cardID && r.UserID == userID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) ListReviewRecords(_ context.Context, userID string) ([]*models.ReviewRecord, error) {
	var out []*models.ReviewRecord
	for i := len(f.reviews) - 1; i >= 0; i-- {
		if f.reviews[i].UserID == userID {
			cp := *f.reviews[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRepo) GetSessionState(_ context.Context, userID string) (*models.SessionState, error) {
	state, ok := f.states[userID]
	if !ok {
		return nil, nil
	}
	cp := *state
	return &cp, nil
}

func (f *fakeRepo) UpsertSessionState(_ context.Context, state *models.SessionState) error {
	cp := *state
	f.states[state.UserID] = &cp
	return nil
}

func (f *fakeRepo) ClearCurrentCard(_ context.Context, userID string) error {
	if state, ok := f.states[userID]; ok {
		state.CurrentCardID = nil
		state.AnswerRevealed = false
	}
	return nil
}

func (f *fakeRepo) CreateStudySession(_ context.Context, session *models.StudySession) error {
	cp := *session
	f.sessions[session.ID] = &cp
	return nil
}

func (f *fakeRepo) GetStudySession(_ context.Context, sessionID string) (*models.StudySession, error) {
	session, ok := f.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("get study session (id: %s): %w", sessionID, sql.ErrNoRows)
	}
	cp := *session
	return &cp, nil
}

func (f *fakeRepo) IncrementSessionStats(_ context.Context, sessionID string, correct bool) error {
	session, ok := f.sessions[sessionID]
	if !ok {
		return fmt.Errorf("increment session stats (id: %s): %w", sessionID, sql.ErrNoRows)
	}
	session.CardsReviewed++
	if correct {
		session.CardsCorrect++
	}
	return nil
}

func (f *fakeRepo) EndStudySession(_ context.Context, sessionID string, endedAt time.Time) (*models.StudySession, error) {
	session, ok := f.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("end study session (id: %s): %w", sessionID, sql.ErrNoRows)
	}
	session.EndedAt = &endedAt
	cp := *session
	return &cp, nil
}

func (f *fakeRepo) CreateMapping(_ context.Context, mapping *models.CardMapping) error {
	for _, m := range f.mappings {
		if m.CardID == mapping.CardID {
			return fmt.Errorf("duplicate mapping (card_id: %s)", mapping.CardID)
		}
	}
	cp := *mapping
	f.mappings[mapping.ID] = &cp
	return nil
}

func (f *fakeRepo) GetMappingByCard(_ context.Context, cardID string) (*models.CardMapping, error) {
	for _, m := range f.mappings {
		if m.CardID == cardID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) GetMappingByAnkiCard(_ context.Context, ankiCardID int64) (*models.CardMapping, error) {
	for _, m := range f.mappings {
		if m.AnkiCardID != nil && *m.AnkiCardID == ankiCardID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) ListDeckMappings(_ context.Context, deckID string, onlyEnabled bool) ([]*models.CardMapping, error) {
	var out []*models.CardMapping
	for _, m := range f.mappings {
		if m.DeckID != deckID {
			continue
		}
		if onlyEnabled && !m.SyncEnabled {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CardID < out[j].CardID })
	return out, nil
}

func (f *fakeRepo) SetMappingAnkiIDs(_ context.Context, cardID string, noteID, ankiCardID int64) error {
	for _, m := range f.mappings {
		if m.CardID == cardID {
			m.AnkiNoteID = &noteID
			m.AnkiCardID = &ankiCardID
			return nil
		}
	}
	return fmt.Errorf("mapping not found (card_id: %s): %w", cardID, sql.ErrNoRows)
}

func (f *fakeRepo) TouchMappings(_ context.Context, deckID string, syncedAt time.Time) error {
	for _, m := range f.mappings {
		if m.DeckID == deckID {
			m.LastSyncedAt = syncedAt
		}
	}
	return nil
}

func (f *fakeRepo) ListSyncTargets(_ context.Context) ([]models.SyncTarget, error) {
	seen := make(map[string]bool)
	var out []models.SyncTarget
	for _, m := range f.mappings {
		if !m.SyncEnabled {
			continue
		}
		deck, ok := f.decks[m.DeckID]
		if !ok || seen[m.DeckID] {
			continue
		}
		seen[m.DeckID] = true
		out = append(out, models.SyncTarget{UserID: deck.UserID, DeckID: m.DeckID})
	}
	return out, nil
}

func (f *fakeRepo) InsertSyncHistory(_ context.Context, userID string, outcome *models.SyncOutcome) error {
	f.history = append(f.history, &models.SyncHistoryEntry{
		ID:          fmt.Sprintf("history-%d", len(f.history)+1),
		UserID:      userID,
		SyncType:    outcome.SyncType,
		Outcome:     *outcome,
		Success:     outcome.Success,
		CompletedAt: outcome.Timestamp,
	})
	return nil
}

func (f *fakeRepo) ListSyncHistory(_ context.Context, userID string, limit int) ([]*models.SyncHistoryEntry, error) {
	var out []*models.SyncHistoryEntry
	for i := len(f.history) - 1; i >= 0 && len(out) < limit; i-- {
		if f.history[i].UserID == userID {
			cp := *f.history[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRepo) RunInTx(_ context.Context, fn func(models.Repository) error) error {
	return fn(f)
}

// fakeAnki records calls and serves canned responses.
type fakeAnki struct {
	export      *anki.DeckExport
	summary     *anki.SyncSummary
	nextCardID  int64
	addedCards  []string
	pushedCount int
	pushErr     error
	pushErrCard string
	importErr   error
}

func (f *fakeAnki) CheckConnection(context.Context) error { return nil }

func (f *fakeAnki) ImportDeck(_ context.Context, _ string) (*anki.DeckExport, error) {
	if f.importErr != nil {
		return nil, f.importErr
	}
	return f.export, nil
}

func (f *fakeAnki) AddCard(_ context.Context, _, front, _, _ string, _ []string) (int64, error) {
	f.nextCardID++
	f.addedCards = append(f.addedCards, front)
	return f.nextCardID, nil
}

func (f *fakeAnki) PushProgress(_ context.Context, mappings []anki.ProgressMapping, reviews []anki.ReviewInfo) error {
	if f.pushErr != nil {
		return f.pushErr
	}
	for _, m := range mappings {
		if f.pushErrCard != "" && m.CardID == f.pushErrCard {
			return errors.New("anki error (action: pushProgress): card is being edited")
		}
	}
	f.pushedCount += len(reviews)
	return nil
}

func (f *fakeAnki) SyncProgress(_ context.Context, _ string, _ []anki.ReviewInfo, _ []anki.ProgressMapping) (*anki.SyncSummary, error) {
	if f.summary != nil {
		return f.summary, nil
	}
	return &anki.SyncSummary{}, nil
}
