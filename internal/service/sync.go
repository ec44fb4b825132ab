package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/voicecards/voicecards/internal/models"
	"github.com/voicecards/voicecards/internal/service/srs"
	"github.com/voicecards/voicecards/pkg/anki"
	"github.com/voicecards/voicecards/pkg/utils"
)

const cardConflictResolution = "Updated with external data"

// ImportDeckFromAnki pulls a deck from Anki into the primary store. On front
// text collision the external card wins: the local card's content is
// overwritten and the collision is recorded as a resolved conflict. Reviews
// are additive and never overwrite existing history.
func (s *Service) ImportDeckFromAnki(ctx context.Context, userID, deckName string) (*models.SyncOutcome, error) {
	defer s.deckLocks.lock(userID + "/" + deckName).Unlock()

	outcome := &models.SyncOutcome{SyncType: "import", Timestamp: utils.NowUTC()}

	export, err := s.anki.ImportDeck(ctx, deckName)
	if err != nil {
		outcome.Errors = append(outcome.Errors, err.Error())
		s.recordOutcome(ctx, userID, outcome)
		return nil, fmt.Errorf("import deck from anki (deck: %s): %w", deckName, err)
	}

	deck, err := s.repo.GetDeckByName(ctx, userID, export.Deck.Name)
	if err != nil {
		outcome.Errors = append(outcome.Errors, err.Error())
		s.recordOutcome(ctx, userID, outcome)
		return nil, fmt.Errorf("find local deck (name: %s): %w", export.Deck.Name, err)
	}

	now := utils.NowUTC()
	if deck == nil {
		deck = &models.Deck{
			ID:          uuid.NewString(),
			UserID:      userID,
			Name:        export.Deck.Name,
			Description: export.Deck.Description,
			Tags:        models.Tags(export.Deck.Tags),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.repo.CreateDeck(ctx, deck); err != nil {
			outcome.Errors = append(outcome.Errors, err.Error())
			s.recordOutcome(ctx, userID, outcome)
			return nil, fmt.Errorf("create local deck (name: %s): %w", export.Deck.Name, err)
		}
		outcome.ImportedDecks++
	} else if export.Deck.Description != "" && export.Deck.Description != deck.Description {
		if err := s.repo.UpdateDeckDescription(ctx, deck.ID, export.Deck.Description); err != nil {
			outcome.Errors = append(outcome.Errors, err.Error())
		}
	}

	for _, info := range export.Cards {
		if err := s.importCard(ctx, deck.ID, info, outcome); err != nil {
			outcome.Errors = append(outcome.Errors, err.Error())
		}
	}

	for _, review := range export.Reviews {
		if err := s.importReview(ctx, userID, review, outcome); err != nil {
			outcome.Errors = append(outcome.Errors, err.Error())
		}
	}

	if err := s.repo.TouchMappings(ctx, deck.ID, now); err != nil {
		outcome.Errors = append(outcome.Errors, err.Error())
	}

	outcome.Success = len(outcome.Errors) == 0
	s.recordOutcome(ctx, userID, outcome)

	zap.S().Infow("deck imported from anki",
		"user_id", userID,
		"deck", deckName,
		"cards", outcome.ImportedCards,
		"reviews", outcome.ImportedReviews,
		"conflicts", len(outcome.Conflicts),
		"errors", len(outcome.Errors))

	return outcome, nil
}

func (s *Service) importCard(ctx context.Context, deckID string, info anki.CardInfo, outcome *models.SyncOutcome) error {
	existing, err := s.repo.FindCardByFront(ctx, deckID, info.Front)
	if err != nil {
		return fmt.Errorf("find card by front (deck_id: %s): %w", deckID, err)
	}

	now := utils.NowUTC()

	if existing != nil {
		if err := s.repo.UpdateCardContent(ctx, existing.ID, info.Back, info.Hint, models.Tags(info.Tags)); err != nil {
			return fmt.Errorf("update card content (card_id: %s): %w", existing.ID, err)
		}
		outcome.Conflicts = append(outcome.Conflicts, models.SyncConflict{
			Kind:       models.ConflictCard,
			EntityID:   existing.ID,
			Reason:     "card with the same front text exists locally",
			Resolution: cardConflictResolution,
		})
		return s.ensureMapping(ctx, existing.ID, deckID, info, now)
	}

	card := &models.Card{
		ID:        uuid.NewString(),
		DeckID:    deckID,
		Front:     info.Front,
		Back:      info.Back,
		Hint:      info.Hint,
		Tags:      models.Tags(info.Tags),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateCard(ctx, card); err != nil {
		return fmt.Errorf("create imported card (deck_id: %s): %w", deckID, err)
	}
	outcome.ImportedCards++

	return s.ensureMapping(ctx, card.ID, deckID, info, now)
}

func (s *Service) ensureMapping(ctx context.Context, cardID, deckID string, info anki.CardInfo, now time.Time) error {
	mapping, err := s.repo.GetMappingByCard(ctx, cardID)
	if err != nil {
		return fmt.Errorf("get mapping (card_id: %s): %w", cardID, err)
	}

	if mapping == nil {
		mapping = &models.CardMapping{
			ID:           uuid.NewString(),
			CardID:       cardID,
			DeckID:       deckID,
			LastSyncedAt: now,
			SyncEnabled:  true,
		}
		// A zero card id means Anki never assigned one. Keep the ids
		// absent so the next export creates the card over there.
		if info.CardID != 0 {
			noteID := info.NoteID
			ankiCardID := info.CardID
			mapping.AnkiNoteID = &noteID
			mapping.AnkiCardID = &ankiCardID
		}
		if err := s.repo.CreateMapping(ctx, mapping); err != nil {
			return fmt.Errorf("create mapping (card_id: %s): %w", cardID, err)
		}
		return nil
	}

	if mapping.AnkiCardID == nil && info.CardID != 0 {
		if err := s.repo.SetMappingAnkiIDs(ctx, cardID, info.NoteID, info.CardID); err != nil {
			return fmt.Errorf("set mapping anki ids (card_id: %s): %w", cardID, err)
		}
	}

	return nil
}

func (s *Service) importReview(ctx context.Context, userID string, review anki.ReviewInfo, outcome *models.SyncOutcome) error {
	mapping, err := s.repo.GetMappingByAnkiCard(ctx, review.AnkiCardID)
	if err != nil {
		return fmt.Errorf("get mapping by anki card (anki_card_id: %d): %w", review.AnkiCardID, err)
	}
	if mapping == nil {
		return fmt.Errorf("no mapping for anki card %d, review skipped", review.AnkiCardID)
	}

	grade, err := srs.ParseGrade(review.Quality)
	if err != nil {
		return fmt.Errorf("parse imported review quality %q (anki_card_id: %d): %w", review.Quality, review.AnkiCardID, err)
	}

	record := &models.ReviewRecord{
		ID:           uuid.NewString(),
		CardID:       mapping.CardID,
		UserID:       userID,
		EaseFactor:   review.EaseFactor,
		IntervalDays: review.IntervalDays,
		Repetitions:  review.Repetitions,
		Quality:      grade,
		ReviewedAt:   review.ReviewedAt,
		NextDueAt:    review.NextDueAt,
	}
	if err := s.repo.InsertReviewRecord(ctx, record); err != nil {
		return fmt.Errorf("insert imported review (card_id: %s): %w", mapping.CardID, err)
	}
	outcome.ImportedReviews++

	return nil
}

// ExportProgress pushes local review progress for one deck into Anki. Cards
// without a mapping are first created in Anki so they gain one.
func (s *Service) ExportProgress(ctx context.Context, userID, deckID string) (*models.SyncOutcome, error) {
	deck, err := s.getDeck(ctx, deckID)
	if err != nil {
		return nil, err
	}

	defer s.deckLocks.lock(userID + "/" + deck.Name).Unlock()

	outcome := &models.SyncOutcome{SyncType: "export", Timestamp: utils.NowUTC()}

	latest, err := s.latestReviewsByCard(ctx, userID)
	if err != nil {
		outcome.Errors = append(outcome.Errors, err.Error())
		s.recordOutcome(ctx, userID, outcome)
		return nil, err
	}

	cards, err := s.repo.ListDeckCards(ctx, deckID)
	if err != nil {
		outcome.Errors = append(outcome.Errors, err.Error())
		s.recordOutcome(ctx, userID, outcome)
		return nil, fmt.Errorf("list deck cards (deck_id: %s): %w", deckID, err)
	}

	for _, card := range cards {
		record, ok := latest[card.ID]
		if !ok {
			continue
		}

		mapping, err := s.repo.GetMappingByCard(ctx, card.ID)
		if err != nil {
			outcome.Errors = append(outcome.Errors, err.Error())
			continue
		}

		if mapping == nil || mapping.AnkiCardID == nil {
			ankiCardID, err := s.anki.AddCard(ctx, deck.Name, card.Front, card.Back, card.Hint, card.Tags)
			if err != nil {
				outcome.Errors = append(outcome.Errors, fmt.Sprintf("add card to anki (card_id: %s): %v", card.ID, err))
				continue
			}

			if mapping == nil {
				mapping = &models.CardMapping{
					ID:           uuid.NewString(),
					CardID:       card.ID,
					AnkiNoteID:   &ankiCardID,
					AnkiCardID:   &ankiCardID,
					DeckID:       deckID,
					LastSyncedAt: utils.NowUTC(),
					SyncEnabled:  true,
				}
				if err := s.repo.CreateMapping(ctx, mapping); err != nil {
					outcome.Errors = append(outcome.Errors, err.Error())
					continue
				}
			} else {
				if err := s.repo.SetMappingAnkiIDs(ctx, card.ID, ankiCardID, ankiCardID); err != nil {
					outcome.Errors = append(outcome.Errors, err.Error())
					continue
				}
				mapping.AnkiCardID = &ankiCardID
			}
			outcome.ExportedCards++
		}

		// One push per card so a failing card becomes one conflict and
		// the rest of the deck still exports.
		pushMappings := []anki.ProgressMapping{{CardID: card.ID, AnkiCardID: *mapping.AnkiCardID}}
		pushReviews := []anki.ReviewInfo{reviewToInfo(record, *mapping.AnkiCardID)}
		if err := s.anki.PushProgress(ctx, pushMappings, pushReviews); err != nil {
			outcome.Conflicts = append(outcome.Conflicts, models.SyncConflict{
				Kind:     models.ConflictReview,
				EntityID: card.ID,
				Reason:   fmt.Sprintf("push progress failed: %v", err),
			})
			continue
		}
		outcome.ExportedReviews++
	}

	if err := s.repo.TouchMappings(ctx, deckID, utils.NowUTC()); err != nil {
		outcome.Errors = append(outcome.Errors, err.Error())
	}

	outcome.Success = len(outcome.Errors) == 0
	s.recordOutcome(ctx, userID, outcome)

	zap.S().Infow("progress exported to anki",
		"user_id", userID,
		"deck_id", deckID,
		"cards", outcome.ExportedCards,
		"reviews", outcome.ExportedReviews,
		"errors", len(outcome.Errors))

	return outcome, nil
}

// SyncBidirectional runs a full merge round for one deck: local reviews and
// id mappings go out, Anki reports what it took and what it sent back.
func (s *Service) SyncBidirectional(ctx context.Context, userID, deckID string) (*models.SyncOutcome, error) {
	deck, err := s.getDeck(ctx, deckID)
	if err != nil {
		return nil, err
	}

	defer s.deckLocks.lock(userID + "/" + deck.Name).Unlock()

	outcome := &models.SyncOutcome{SyncType: "bidirectional", Timestamp: utils.NowUTC()}

	mappings, err := s.repo.ListDeckMappings(ctx, deckID, true)
	if err != nil {
		outcome.Errors = append(outcome.Errors, err.Error())
		s.recordOutcome(ctx, userID, outcome)
		return nil, fmt.Errorf("list deck mappings (deck_id: %s): %w", deckID, err)
	}

	latest, err := s.latestReviewsByCard(ctx, userID)
	if err != nil {
		outcome.Errors = append(outcome.Errors, err.Error())
		s.recordOutcome(ctx, userID, outcome)
		return nil, err
	}

	var (
		wireMappings []anki.ProgressMapping
		wireReviews  []anki.ReviewInfo
	)
	for _, m := range mappings {
		if m.AnkiCardID == nil {
			continue
		}
		wireMappings = append(wireMappings, anki.ProgressMapping{CardID: m.CardID, AnkiCardID: *m.AnkiCardID})
		if record, ok := latest[m.CardID]; ok {
			wireReviews = append(wireReviews, reviewToInfo(record, *m.AnkiCardID))
		}
	}

	summary, err := s.anki.SyncProgress(ctx, deck.Name, wireReviews, wireMappings)
	if err != nil {
		outcome.Errors = append(outcome.Errors, err.Error())
		s.recordOutcome(ctx, userID, outcome)
		return nil, fmt.Errorf("sync progress (deck: %s): %w", deck.Name, err)
	}

	outcome.ImportedReviews = summary.Imported
	outcome.ExportedReviews = summary.Exported
	for _, c := range summary.Conflicts {
		outcome.Conflicts = append(outcome.Conflicts, models.SyncConflict{
			Kind:     models.ConflictReview,
			EntityID: c.CardID,
			Reason:   c.Reason,
		})
	}

	if err := s.repo.TouchMappings(ctx, deckID, utils.NowUTC()); err != nil {
		outcome.Errors = append(outcome.Errors, err.Error())
	}

	outcome.Success = len(outcome.Errors) == 0
	s.recordOutcome(ctx, userID, outcome)

	zap.S().Infow("bidirectional sync finished",
		"user_id", userID,
		"deck_id", deckID,
		"imported", outcome.ImportedReviews,
		"exported", outcome.ExportedReviews,
		"conflicts", len(outcome.Conflicts))

	return outcome, nil
}

// ResolveConflict applies one of three strategies to a conflicted card:
// use_primary pushes the local review state out, use_external re-imports the
// containing deck so the Anki version wins, merge does both in that order.
func (s *Service) ResolveConflict(ctx context.Context, userID, cardID, strategy string) (*models.SyncOutcome, error) {
	card, err := s.repo.GetCard(ctx, cardID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Kind: "card", ID: cardID}
		}
		return nil, fmt.Errorf("get card (card_id: %s): %w", cardID, err)
	}

	deck, err := s.getDeck(ctx, card.DeckID)
	if err != nil {
		return nil, err
	}

	switch strategy {
	case "use_primary":
		return s.pushCardProgress(ctx, userID, card)
	case "use_external":
		return s.ImportDeckFromAnki(ctx, userID, deck.Name)
	case "merge":
		if _, err := s.pushCardProgress(ctx, userID, card); err != nil {
			return nil, err
		}
		return s.ImportDeckFromAnki(ctx, userID, deck.Name)
	default:
		return nil, fmt.Errorf("unknown conflict strategy %q, expected use_primary, use_external or merge", strategy)
	}
}

func (s *Service) pushCardProgress(ctx context.Context, userID string, card *models.Card) (*models.SyncOutcome, error) {
	outcome := &models.SyncOutcome{SyncType: "resolve", Timestamp: utils.NowUTC()}

	mapping, err := s.repo.GetMappingByCard(ctx, card.ID)
	if err != nil {
		return nil, fmt.Errorf("get mapping (card_id: %s): %w", card.ID, err)
	}
	if mapping == nil || mapping.AnkiCardID == nil {
		return nil, &NotFoundError{Kind: "mapping", ID: card.ID}
	}

	record, err := s.repo.LatestReviewRecord(ctx, card.ID, userID)
	if err != nil {
		return nil, fmt.Errorf("get latest review (card_id: %s): %w", card.ID, err)
	}
	if record == nil {
		return nil, fmt.Errorf("card has no review history to push (card_id: %s)", card.ID)
	}

	mappings := []anki.ProgressMapping{{CardID: card.ID, AnkiCardID: *mapping.AnkiCardID}}
	reviews := []anki.ReviewInfo{reviewToInfo(record, *mapping.AnkiCardID)}

	if err := s.anki.PushProgress(ctx, mappings, reviews); err != nil {
		outcome.Errors = append(outcome.Errors, err.Error())
		s.recordOutcome(ctx, userID, outcome)
		return nil, fmt.Errorf("push card progress (card_id: %s): %w", card.ID, err)
	}

	outcome.ExportedReviews = 1
	outcome.Success = true
	s.recordOutcome(ctx, userID, outcome)

	return outcome, nil
}

// latestReviewsByCard keeps the first record seen per card; records arrive
// newest first so the survivor is the most recent one.
func (s *Service) latestReviewsByCard(ctx context.Context, userID string) (map[string]*models.ReviewRecord, error) {
	records, err := s.repo.ListReviewRecords(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list review records (user_id: %s): %w", userID, err)
	}

	latest := make(map[string]*models.ReviewRecord, len(records))
	for _, record := range records {
		if _, ok := latest[record.CardID]; !ok {
			latest[record.CardID] = record
		}
	}

	return latest, nil
}

func (s *Service) recordOutcome(ctx context.Context, userID string, outcome *models.SyncOutcome) {
	if err := s.repo.InsertSyncHistory(ctx, userID, outcome); err != nil {
		zap.S().Errorw("save sync history", "user_id", userID, "error", err)
	}
}

func reviewToInfo(record *models.ReviewRecord, ankiCardID int64) anki.ReviewInfo {
	return anki.ReviewInfo{
		AnkiCardID:   ankiCardID,
		EaseFactor:   record.EaseFactor,
		IntervalDays: record.IntervalDays,
		Repetitions:  record.Repetitions,
		Quality:      record.Quality.String(),
		ReviewedAt:   record.ReviewedAt,
		NextDueAt:    record.NextDueAt,
	}
}

// StartAutoSync launches a background loop that runs a bidirectional sync
// for every sync-enabled deck on each tick. A run that overlaps the next
// tick simply delays it; ticks are never queued.
func (s *Service) StartAutoSync(interval time.Duration) {
	if s.autoSyncStop != nil {
		return
	}

	s.autoSyncStop = make(chan struct{})
	s.autoSyncDone = make(chan struct{})

	go func() {
		defer close(s.autoSyncDone)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		zap.S().Infow("auto sync started", "interval", interval)

		for {
			select {
			case <-ticker.C:
				s.runAutoSync()
			case <-s.autoSyncStop:
				return
			}
		}
	}()
}

func (s *Service) StopAutoSync() {
	if s.autoSyncStop == nil {
		return
	}
	close(s.autoSyncStop)
	<-s.autoSyncDone
	s.autoSyncStop = nil
	s.autoSyncDone = nil
}

func (s *Service) runAutoSync() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	targets, err := s.repo.ListSyncTargets(ctx)
	if err != nil {
		zap.S().Errorw("list auto sync targets", "error", err)
		return
	}

	for _, target := range targets {
		if _, err := s.SyncBidirectional(ctx, target.UserID, target.DeckID); err != nil {
			zap.S().Errorw("auto sync deck",
				"user_id", target.UserID,
				"deck_id", target.DeckID,
				"error", err)
		}
	}
}
