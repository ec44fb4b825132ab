package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/voicecards/voicecards/internal/service/srs"
)

type Deck struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Tags        Tags      `db:"tags"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

type Card struct {
	ID        string    `db:"id"`
	DeckID    string    `db:"deck_id"`
	Front     string    `db:"front"`
	Back      string    `db:"back"`
	Hint      string    `db:"hint"`
	Tags      Tags      `db:"tags"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// ReviewRecord is one completed grading event. Records are immutable once
// inserted; the most recent record per (card, user) is the authoritative
// scheduling state for that card.
type ReviewRecord struct {
	ID           string    `db:"id"`
	CardID       string    `db:"card_id"`
	UserID       string    `db:"user_id"`
	EaseFactor   float64   `db:"ease_factor"`
	IntervalDays int       `db:"interval_days"`
	Repetitions  int       `db:"repetitions"`
	Quality      srs.Grade `db:"quality"`
	SessionID    *string   `db:"session_id"`
	ReviewedAt   time.Time `db:"reviewed_at"`
	NextDueAt    time.Time `db:"next_due_at"`
}

// SessionState is the per-user review cursor: at most one row per user.
// AnswerRevealed is only meaningful while CurrentCardID is set.
type SessionState struct {
	UserID         string    `db:"user_id"`
	DeckID         *string   `db:"deck_id"`
	CurrentCardID  *string   `db:"current_card_id"`
	SessionID      *string   `db:"session_id"`
	AnswerRevealed bool      `db:"answer_revealed"`
	UpdatedAt      time.Time `db:"updated_at"`
}

type StudySession struct {
	ID            string     `db:"id"`
	UserID        string     `db:"user_id"`
	DeckID        *string    `db:"deck_id"`
	CardsReviewed int        `db:"cards_reviewed"`
	CardsCorrect  int        `db:"cards_correct"`
	StartedAt     time.Time  `db:"started_at"`
	EndedAt       *time.Time `db:"ended_at"`
}

// CardMapping links a card to its identity in Anki. The Anki ids stay absent
// until Anki assigns them, either on an import that carries them or on the
// first export round-trip. Zero is never used as an id sentinel.
type CardMapping struct {
	ID           string    `db:"id"`
	CardID       string    `db:"card_id"`
	AnkiNoteID   *int64    `db:"anki_note_id"`
	AnkiCardID   *int64    `db:"anki_card_id"`
	DeckID       string    `db:"deck_id"`
	LastSyncedAt time.Time `db:"last_synced_at"`
	SyncEnabled  bool      `db:"sync_enabled"`
}

type ConflictKind string

const (
	ConflictCard   ConflictKind = "card"
	ConflictReview ConflictKind = "review"
)

type SyncConflict struct {
	Kind       ConflictKind `json:"kind"`
	EntityID   string       `json:"entity_id"`
	Reason     string       `json:"reason"`
	Resolution string       `json:"resolution,omitempty"`
}

// SyncOutcome is the immutable audit record produced by every reconciliation
// run, successful or not.
type SyncOutcome struct {
	SyncType        string         `json:"sync_type"`
	Success         bool           `json:"success"`
	ImportedDecks   int            `json:"imported_decks"`
	ImportedCards   int            `json:"imported_cards"`
	ImportedReviews int            `json:"imported_reviews"`
	ExportedCards   int            `json:"exported_cards"`
	ExportedReviews int            `json:"exported_reviews"`
	Conflicts       []SyncConflict `json:"conflicts"`
	Errors          []string       `json:"errors"`
	Timestamp       time.Time      `json:"timestamp"`
}

type SyncHistoryEntry struct {
	ID          string      `db:"id"`
	UserID      string      `db:"user_id"`
	SyncType    string      `db:"sync_type"`
	Outcome     SyncOutcome `db:"outcome"`
	Success     bool        `db:"success"`
	CompletedAt time.Time   `db:"completed_at"`
}

type DeckStats struct {
	DeckID     string `json:"deck_id"`
	TotalCards int    `json:"total_cards"`
	DueCards   int    `json:"due_cards"`
	NewCards   int    `json:"new_cards"`
	Learning   int    `json:"learning_cards"`
	Mastered   int    `json:"mastered_cards"`
}

// SyncTarget identifies one auto-syncable deck.
type SyncTarget struct {
	UserID string `db:"user_id"`
	DeckID string `db:"deck_id"`
}

func (o SyncOutcome) Value() (driver.Value, error) {
	b, err := json.Marshal(o)
	if err != nil {
		return nil, fmt.Errorf("marshal sync outcome: %w", err)
	}
	return string(b), nil
}

func (o *SyncOutcome) Scan(src any) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, o)
	case string:
		return json.Unmarshal([]byte(v), o)
	default:
		return fmt.Errorf("scan sync outcome: unsupported type %T", src)
	}
}

// Tags is a string list stored as a JSONB column.
type Tags []string

func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}
	return string(b), nil
}

func (t *Tags) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*t = nil
		return nil
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	default:
		return fmt.Errorf("scan tags: unsupported type %T", src)
	}
}
