package anki

import (
	"encoding/json"
	"time"
)

type DeckInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

type CardInfo struct {
	NoteID int64    `json:"note_id"`
	CardID int64    `json:"card_id"`
	Front  string   `json:"front"`
	Back   string   `json:"back"`
	Hint   string   `json:"hint"`
	Tags   []string `json:"tags"`
}

type ReviewInfo struct {
	AnkiCardID   int64     `json:"anki_card_id"`
	EaseFactor   float64   `json:"ease_factor"`
	IntervalDays int       `json:"interval_days"`
	Repetitions  int       `json:"repetitions"`
	Quality      string    `json:"quality"`
	ReviewedAt   time.Time `json:"reviewed_at"`
	NextDueAt    time.Time `json:"next_due_at"`
}

// DeckExport is a full deck pulled from Anki: metadata, cards and the
// review log entries attached to them.
type DeckExport struct {
	Deck    DeckInfo     `json:"deck"`
	Cards   []CardInfo   `json:"cards"`
	Reviews []ReviewInfo `json:"reviews"`
}

// ProgressMapping pairs a local card id with its Anki card id for
// progress pushes.
type ProgressMapping struct {
	CardID     string `json:"card_id"`
	AnkiCardID int64  `json:"anki_card_id"`
}

type SyncConflictInfo struct {
	CardID string `json:"card_id"`
	Reason string `json:"reason"`
}

// SyncSummary is what Anki's sync routine reports back for a
// bidirectional round.
type SyncSummary struct {
	Imported  int                `json:"imported"`
	Exported  int                `json:"exported"`
	Conflicts []SyncConflictInfo `json:"conflicts"`
}

type request struct {
	Action  string `json:"action"`
	Version int    `json:"version"`
	Params  any    `json:"params,omitempty"`
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *string         `json:"error"`
}
