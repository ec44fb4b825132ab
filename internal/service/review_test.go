package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/voicecards/voicecards/internal/models"
	"github.com/voicecards/voicecards/internal/service/srs"
)

const testUser = "user-1"

func seedDeckWithCards(t *testing.T, repo *fakeRepo, cardCount int) *models.Deck {
	t.Helper()

	ctx := context.Background()
	now := time.Now().UTC()

	deck := &models.Deck{ID: "deck-1", UserID: testUser, Name: "Spanish", CreatedAt: now, UpdatedAt: now}
	if err := repo.CreateDeck(ctx, deck); err != nil {
		t.Fatalf("seed deck: %v", err)
	}

	for i := 0; i < cardCount; i++ {
		card := &models.Card{
			ID:        "card-" + string(rune('a'+i)),
			DeckID:    deck.ID,
			Front:     "front " + string(rune('a'+i)),
			Back:      "back " + string(rune('a'+i)),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := repo.CreateCard(ctx, card); err != nil {
			t.Fatalf("seed card: %v", err)
		}
	}

	return deck
}

func TestGetNextCardNoneDue(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeAnki{})

	next, err := svc.GetNextCard(context.Background(), testUser, nil)
	if err != nil {
		t.Fatalf("GetNextCard: %v", err)
	}
	if next != nil {
		t.Fatalf("expected nil when no cards are due, got %+v", next)
	}
}

func TestGetNextCardIsIdempotent(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeAnki{})
	seedDeckWithCards(t, repo, 3)

	ctx := context.Background()

	first, err := svc.GetNextCard(ctx, testUser, nil)
	if err != nil {
		t.Fatalf("first GetNextCard: %v", err)
	}
	if first == nil {
		t.Fatal("expected a card")
	}

	second, err := svc.GetNextCard(ctx, testUser, nil)
	if err != nil {
		t.Fatalf("second GetNextCard: %v", err)
	}
	if second.CardID != first.CardID {
		t.Fatalf("re-fetch returned a different card: %s vs %s", second.CardID, first.CardID)
	}

	session, err := repo.GetStudySession(ctx, first.SessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if session.CardsReviewed != 0 {
		t.Fatalf("re-fetch advanced the session counter: %d", session.CardsReviewed)
	}
}

func TestGetNextCardAfterRevealStillReturnsSameCard(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeAnki{})
	seedDeckWithCards(t, repo, 2)

	ctx := context.Background()

	first, err := svc.GetNextCard(ctx, testUser, nil)
	if err != nil {
		t.Fatalf("GetNextCard: %v", err)
	}
	if _, err := svc.RevealAnswer(ctx, testUser); err != nil {
		t.Fatalf("RevealAnswer: %v", err)
	}

	again, err := svc.GetNextCard(ctx, testUser, nil)
	if err != nil {
		t.Fatalf("GetNextCard after reveal: %v", err)
	}
	if again.CardID != first.CardID {
		t.Fatalf("expected the revealed card back, got %s", again.CardID)
	}
	if !again.Revealed {
		t.Fatal("expected the card to stay revealed")
	}
	if again.Back == "" {
		t.Fatal("expected the back to be visible after reveal")
	}
}

func TestRevealAnswerReportsRemaining(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeAnki{})
	seedDeckWithCards(t, repo, 3)

	ctx := context.Background()

	if _, err := svc.GetNextCard(ctx, testUser, nil); err != nil {
		t.Fatalf("GetNextCard: %v", err)
	}

	revealed, err := svc.RevealAnswer(ctx, testUser)
	if err != nil {
		t.Fatalf("RevealAnswer: %v", err)
	}
	if revealed.CardsRemaining != 3 {
		t.Errorf("cards remaining = %d, want 3", revealed.CardsRemaining)
	}
}

func TestRevealAnswerWithoutCard(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeAnki{})

	_, err := svc.RevealAnswer(context.Background(), testUser)

	var invalid *InvalidStateError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
}

func TestGradeCardBeforeReveal(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeAnki{})
	seedDeckWithCards(t, repo, 1)

	ctx := context.Background()
	if _, err := svc.GetNextCard(ctx, testUser, nil); err != nil {
		t.Fatalf("GetNextCard: %v", err)
	}

	_, err := svc.GradeCard(ctx, testUser, "good")

	var invalid *InvalidStateError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
}

func TestGradeCardUnknownWord(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeAnki{})

	_, err := svc.GradeCard(context.Background(), testUser, "meh")
	if !errors.Is(err, srs.ErrUnknownGrade) {
		t.Fatalf("expected ErrUnknownGrade, got %v", err)
	}
}

func TestGradeCardFullCycle(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeAnki{})
	seedDeckWithCards(t, repo, 1)

	ctx := context.Background()

	next, err := svc.GetNextCard(ctx, testUser, nil)
	if err != nil {
		t.Fatalf("GetNextCard: %v", err)
	}
	if _, err := svc.RevealAnswer(ctx, testUser); err != nil {
		t.Fatalf("RevealAnswer: %v", err)
	}

	result, err := svc.GradeCard(ctx, testUser, "good")
	if err != nil {
		t.Fatalf("GradeCard: %v", err)
	}
	if !result.Correct {
		t.Error("good grade should count as correct")
	}
	if result.IntervalDays != 1 {
		t.Errorf("first good review interval = %d, want 1", result.IntervalDays)
	}

	record, err := repo.LatestReviewRecord(ctx, next.CardID, testUser)
	if err != nil {
		t.Fatalf("LatestReviewRecord: %v", err)
	}
	if record == nil {
		t.Fatal("expected a review record")
	}
	if record.Quality != srs.Good {
		t.Errorf("recorded quality = %v, want Good", record.Quality)
	}

	session, err := repo.GetStudySession(ctx, next.SessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if session.CardsReviewed != 1 || session.CardsCorrect != 1 {
		t.Errorf("session counters = %d/%d, want 1/1", session.CardsReviewed, session.CardsCorrect)
	}

	state, err := repo.GetSessionState(ctx, testUser)
	if err != nil {
		t.Fatalf("GetSessionState: %v", err)
	}
	if state.CurrentCardID != nil {
		t.Error("grading should clear the current card")
	}
}

func TestGradeAgainKeepsCardDue(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeAnki{})
	seedDeckWithCards(t, repo, 1)

	ctx := context.Background()

	if _, err := svc.GetNextCard(ctx, testUser, nil); err != nil {
		t.Fatalf("GetNextCard: %v", err)
	}
	if _, err := svc.RevealAnswer(ctx, testUser); err != nil {
		t.Fatalf("RevealAnswer: %v", err)
	}

	result, err := svc.GradeCard(ctx, testUser, "again")
	if err != nil {
		t.Fatalf("GradeCard: %v", err)
	}
	if result.Correct {
		t.Error("again should not count as correct")
	}
	if result.IntervalDays != 0 {
		t.Errorf("again interval = %d, want 0", result.IntervalDays)
	}
}

func TestSkipCardWithoutCard(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeAnki{})

	err := svc.SkipCard(context.Background(), testUser)

	var invalid *InvalidStateError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
}

func TestSkipCardLeavesNoRecord(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeAnki{})
	seedDeckWithCards(t, repo, 1)

	ctx := context.Background()

	next, err := svc.GetNextCard(ctx, testUser, nil)
	if err != nil {
		t.Fatalf("GetNextCard: %v", err)
	}
	if err := svc.SkipCard(ctx, testUser); err != nil {
		t.Fatalf("SkipCard: %v", err)
	}

	record, err := repo.LatestReviewRecord(ctx, next.CardID, testUser)
	if err != nil {
		t.Fatalf("LatestReviewRecord: %v", err)
	}
	if record != nil {
		t.Fatal("skip must not record a review")
	}

	again, err := svc.GetNextCard(ctx, testUser, nil)
	if err != nil {
		t.Fatalf("GetNextCard after skip: %v", err)
	}
	if again == nil || again.CardID != next.CardID {
		t.Fatal("skipped card should still be due")
	}
}

func TestImportCardsFromTextSkipsMalformedLines(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeAnki{})
	deck := seedDeckWithCards(t, repo, 0)

	text := "hola|hello\n" +
		"\n" +
		"no separator on this line\n" +
		"adios|goodbye|a common farewell\n"

	imported, skipped, err := svc.ImportCardsFromText(context.Background(), deck.ID, text)
	if err != nil {
		t.Fatalf("ImportCardsFromText: %v", err)
	}
	if imported != 2 {
		t.Errorf("imported = %d, want 2", imported)
	}
	if skipped != 1 {
		t.Errorf("skipped = %d, want 1", skipped)
	}

	cards, err := repo.ListDeckCards(context.Background(), deck.ID)
	if err != nil {
		t.Fatalf("ListDeckCards: %v", err)
	}
	if len(cards) != 2 {
		t.Errorf("cards in deck = %d, want 2", len(cards))
	}
}

func TestEndSessionWithoutActiveSession(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeAnki{})

	_, err := svc.EndSession(context.Background(), testUser)

	var invalid *InvalidStateError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
}

func TestEndSessionReportsCounters(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, &fakeAnki{})
	seedDeckWithCards(t, repo, 2)

	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.GetNextCard(ctx, testUser, nil); err != nil {
			t.Fatalf("GetNextCard: %v", err)
		}
		if _, err := svc.RevealAnswer(ctx, testUser); err != nil {
			t.Fatalf("RevealAnswer: %v", err)
		}
		if _, err := svc.GradeCard(ctx, testUser, "good"); err != nil {
			t.Fatalf("GradeCard: %v", err)
		}
	}

	session, err := svc.EndSession(ctx, testUser)
	if err != nil {
		t.Fatalf("EndSession: %v", err)
	}
	if session.CardsReviewed != 2 || session.CardsCorrect != 2 {
		t.Errorf("session counters = %d/%d, want 2/2", session.CardsReviewed, session.CardsCorrect)
	}
	if session.EndedAt == nil {
		t.Error("expected EndedAt to be set")
	}
}
