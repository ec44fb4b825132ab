package models

import (
	"context"
	"time"
)

// Repository is the persistence contract consumed by the service layer.
// Implemented by internal/repository on Postgres.
type Repository interface {
	CreateDeck(ctx context.Context, deck *Deck) error
	GetDeck(ctx context.Context, deckID string) (*Deck, error)
	GetDeckByName(ctx context.Context, userID, name string) (*Deck, error)
	UpdateDeckDescription(ctx context.Context, deckID, description string) error
	ListDecks(ctx context.Context, userID string) ([]*Deck, error)
	GetDeckStats(ctx context.Context, userID, deckID string, now time.Time) (*DeckStats, error)

	CreateCard(ctx context.Context, card *Card) error
	GetCard(ctx context.Context, cardID string) (*Card, error)
	FindCardByFront(ctx context.Context, deckID, front string) (*Card, error)
	UpdateCardContent(ctx context.Context, cardID, back, hint string, tags Tags) error
	ListDeckCards(ctx context.Context, deckID string) ([]*Card, error)
	FindDueCards(ctx context.Context, userID string, deckID *string, now time.Time) ([]*Card, error)

	InsertReviewRecord(ctx context.Context, record *ReviewRecord) error
	LatestReviewRecord(ctx context.Context, cardID, userID string) (*ReviewRecord, error)
	ListReviewRecords(ctx context.Context, userID string) ([]*ReviewRecord, error)

	GetSessionState(ctx context.Context, userID string) (*SessionState, error)
	UpsertSessionState(ctx context.Context, state *SessionState) error
	ClearCurrentCard(ctx context.Context, userID string) error

	CreateStudySession(ctx context.Context, session *StudySession) error
	GetStudySession(ctx context.Context, sessionID string) (*StudySession, error)
	IncrementSessionStats(ctx context.Context, sessionID string, correct bool) error
	EndStudySession(ctx context.Context, sessionID string, endedAt time.Time) (*StudySession, error)

	CreateMapping(ctx context.Context, mapping *CardMapping) error
	GetMappingByCard(ctx context.Context, cardID string) (*CardMapping, error)
	GetMappingByAnkiCard(ctx context.Context, ankiCardID int64) (*CardMapping, error)
	ListDeckMappings(ctx context.Context, deckID string, onlyEnabled bool) ([]*CardMapping, error)
	SetMappingAnkiIDs(ctx context.Context, cardID string, noteID, ankiCardID int64) error
	TouchMappings(ctx context.Context, deckID string, syncedAt time.Time) error
	ListSyncTargets(ctx context.Context) ([]SyncTarget, error)

	InsertSyncHistory(ctx context.Context, userID string, outcome *SyncOutcome) error
	ListSyncHistory(ctx context.Context, userID string, limit int) ([]*SyncHistoryEntry, error)

	RunInTx(ctx context.Context, fn func(Repository) error) error
}
