package app_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"bridgebites-service/internal/app"
	"bridgebites-service/internal/domain"
	"bridgebites-service/internal/infra/auth"
	"bridgebites-service/internal/infra/memory"
)

func testChallenges() []domain.Challenge {
	now := time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)
	return []domain.Challenge{
		{
			ID:            "c-japan",
			Title:         "Taste of Japan",
			Type:          domain.ChallengeQuiz,
			Country:       "Japan",
			Points:        20,
			Options:       &domain.ChoiceSet{Choices: []string{"Sushi", "Ramen", "Tempura", "Tacos"}},
			CorrectAnswer: "Sushi",
			IsDaily:       true,
			CreatedAt:     now,
		},
		{
			ID:            "c-france",
			Title:         "Capital Quiz: France",
			Type:          domain.ChallengeQuiz,
			Country:       "France",
			Points:        50,
			Options:       &domain.ChoiceSet{Choices: []string{"Paris", "Lyon", "Nice"}},
			CorrectAnswer: "Paris",
			IsDaily:       true,
			CreatedAt:     now.Add(-time.Minute),
		},
		{
			ID:          "c-audio",
			Title:       "Say hello in Korean",
			Type:        domain.ChallengeAudio,
			Country:     "South Korea",
			Points:      30,
			CreatedAt:   now.Add(-2 * time.Minute),
			Description: "Record yourself greeting",
		},
		{
			ID:            "c-zero",
			Title:         "Bonus fact",
			Type:          domain.ChallengeCultural,
			Country:       "Iceland",
			Points:        0,
			CorrectAnswer: "geyser",
			CreatedAt:     now.Add(-3 * time.Minute),
		},
	}
}

type sessionFixture struct {
	service *app.SessionService
	store   *memory.Store
	clock   *fakeClock
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	store := memory.NewStore()
	store.SeedChallenges(testChallenges()...)
	store.SeedProfile(domain.Profile{
		ID:               "p1",
		UserID:           "u1",
		Username:         "alice",
		TotalPoints:      100,
		CurrentStreak:    3,
		MaxStreak:        5,
		CountriesBridged: []string{"Italy"},
	})
	clock := &fakeClock{now: time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC)}
	service := app.NewSessionService(app.SessionConfig{
		Auth:       auth.Context{},
		Sessions:   memory.NewSessionStore(),
		Challenges: store,
		Profiles:   store,
		Attempts:   store,
		Feed:       store,
		Notifier:   memory.NewFeedNotifier(),
		Clock:      clock.Now,
	})
	return &sessionFixture{service: service, store: store, clock: clock}
}

func userCtx(userID string) context.Context {
	return auth.WithUser(context.Background(), domain.User{ID: userID, Username: userID})
}

func TestOpenRequiresAuth(t *testing.T) {
	f := newSessionFixture(t)
	if _, err := f.service.Open(context.Background()); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestOpenReturnsProfileAndDaily(t *testing.T) {
	f := newSessionFixture(t)
	snapshot, err := f.service.Open(userCtx("u1"))
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if snapshot.Profile.TotalPoints != 100 {
		t.Fatalf("expected seeded profile, got %+v", snapshot.Profile)
	}
	if snapshot.Daily == nil {
		t.Fatalf("expected a daily pick")
	}
	if !snapshot.Daily.Challenge.IsDaily {
		t.Fatalf("daily pool exists, pick should come from it: %+v", snapshot.Daily.Challenge)
	}
}

func TestRecordAttemptCorrectExtendsStreak(t *testing.T) {
	f := newSessionFixture(t)
	ctx := userCtx("u1")

	// A correct attempt yesterday makes today consecutive.
	yesterday := f.clock.now.AddDate(0, 0, -1)
	if _, err := f.store.InsertAttempt(ctx, domain.Attempt{
		ID: "a0", UserID: "u1", ChallengeID: "c-france", IsCorrect: true, PointsEarned: 50, CompletedAt: yesterday,
	}); err != nil {
		t.Fatalf("seed attempt: %v", err)
	}

	result, err := f.service.RecordAttempt(ctx, "c-japan", "sushi")
	if err != nil {
		t.Fatalf("record attempt failed: %v", err)
	}
	if !result.Recorded || !result.AwardedFull || result.PointsAwarded != 20 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.Profile.TotalPoints != 120 {
		t.Fatalf("expected 120 points, got %d", result.Profile.TotalPoints)
	}
	if result.Profile.CurrentStreak != 4 || result.Profile.MaxStreak != 5 {
		t.Fatalf("expected streak 4 max 5, got %d/%d", result.Profile.CurrentStreak, result.Profile.MaxStreak)
	}
	if !result.Profile.HasBridged("Japan") || !result.Profile.HasBridged("Italy") {
		t.Fatalf("expected Italy and Japan bridged, got %v", result.Profile.CountriesBridged)
	}

	attempts, err := f.store.ListRecentAttempts(ctx, "u1", 10)
	if err != nil {
		t.Fatalf("list attempts: %v", err)
	}
	if len(attempts) != 2 {
		t.Fatalf("expected 2 attempt rows, got %d", len(attempts))
	}

	entries, err := f.store.ListEntries(ctx, 10)
	if err != nil {
		t.Fatalf("list feed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one feed post, got %d", len(entries))
	}
	if entries[0].PointsEarned != 20 || entries[0].Country != "Japan" {
		t.Fatalf("unexpected feed post %+v", entries[0].FeedPost)
	}
}

func TestRecordAttemptIncorrectHalvesPoints(t *testing.T) {
	f := newSessionFixture(t)
	ctx := userCtx("u1")

	result, err := f.service.RecordAttempt(ctx, "c-japan", "Tacos")
	if err != nil {
		t.Fatalf("record attempt failed: %v", err)
	}
	if result.AwardedFull || result.PointsAwarded != 10 {
		t.Fatalf("expected half credit 10, got %+v", result)
	}
	if result.Profile.CurrentStreak != 3 {
		t.Fatalf("incorrect attempt must not touch streak, got %d", result.Profile.CurrentStreak)
	}
	if !result.Profile.HasBridged("Japan") {
		t.Fatalf("half credit should still bridge the country")
	}
}

func TestRecordAttemptRepeatSubmission(t *testing.T) {
	f := newSessionFixture(t)
	ctx := userCtx("u1")

	first, err := f.service.RecordAttempt(ctx, "c-japan", "Sushi")
	if err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	second, err := f.service.RecordAttempt(ctx, "c-japan", "Sushi")
	if err != nil {
		t.Fatalf("second attempt: %v", err)
	}
	// Same calendar day: points accrue again, streak stays.
	if second.Profile.TotalPoints != first.Profile.TotalPoints+20 {
		t.Fatalf("expected points to accrue, got %d then %d", first.Profile.TotalPoints, second.Profile.TotalPoints)
	}
	if second.Profile.CurrentStreak != first.Profile.CurrentStreak {
		t.Fatalf("same-day repeat changed streak: %d vs %d", first.Profile.CurrentStreak, second.Profile.CurrentStreak)
	}

	attempts, _ := f.store.ListRecentAttempts(ctx, "u1", 10)
	if len(attempts) != 2 {
		t.Fatalf("each submission inserts its own row, got %d", len(attempts))
	}
}

func TestRecordAttemptZeroPoints(t *testing.T) {
	f := newSessionFixture(t)
	ctx := userCtx("u1")

	result, err := f.service.RecordAttempt(ctx, "c-zero", "the geyser")
	if err != nil {
		t.Fatalf("record attempt failed: %v", err)
	}
	if !result.Recorded || result.PointsAwarded != 0 {
		t.Fatalf("expected recorded zero-point attempt, got %+v", result)
	}
	if result.Profile.TotalPoints != 100 || result.Profile.HasBridged("Iceland") {
		t.Fatalf("zero-point attempt must not touch the profile: %+v", result.Profile)
	}

	entries, _ := f.store.ListEntries(ctx, 10)
	if len(entries) != 0 {
		t.Fatalf("zero-point attempt should not post to the feed")
	}

	attempts, _ := f.store.ListRecentAttempts(ctx, "u1", 10)
	if len(attempts) != 1 {
		t.Fatalf("zero-point attempt is still recorded, got %d rows", len(attempts))
	}
}

func TestRecordAttemptUnknownChallenge(t *testing.T) {
	f := newSessionFixture(t)
	_, err := f.service.RecordAttempt(userCtx("u1"), "c-missing", "answer")
	if !errors.Is(err, domain.ErrChallengeNotFound) {
		t.Fatalf("expected challenge not found, got %v", err)
	}
}

// failingAttempts rejects every insert to exercise the all-or-nothing path.
type failingAttempts struct {
	app.AttemptRepository
}

func (f failingAttempts) InsertAttempt(context.Context, domain.Attempt) (domain.Attempt, error) {
	return domain.Attempt{}, fmt.Errorf("attempt storage down")
}

func TestRecordAttemptInsertFailureChangesNothing(t *testing.T) {
	f := newSessionFixture(t)
	service := app.NewSessionService(app.SessionConfig{
		Auth:       auth.Context{},
		Sessions:   memory.NewSessionStore(),
		Challenges: f.store,
		Profiles:   f.store,
		Attempts:   failingAttempts{f.store},
		Feed:       f.store,
		Clock:      f.clock.Now,
	})
	ctx := userCtx("u1")

	_, err := service.RecordAttempt(ctx, "c-japan", "Sushi")
	if !errors.Is(err, domain.ErrAttemptPersistence) {
		t.Fatalf("expected attempt persistence error, got %v", err)
	}

	profile, _ := f.store.GetProfile(ctx, "u1")
	if profile.TotalPoints != 100 || profile.HasBridged("Japan") {
		t.Fatalf("failed insert must leave the profile untouched: %+v", profile)
	}
	entries, _ := f.store.ListEntries(ctx, 10)
	if len(entries) != 0 {
		t.Fatalf("failed insert must not post to the feed")
	}
}

// failingProfiles accepts reads but rejects stat updates.
type failingProfiles struct {
	app.ProfileRepository
}

func (f failingProfiles) ApplyStats(context.Context, app.StatsDelta) (domain.Profile, error) {
	return domain.Profile{}, fmt.Errorf("profile storage down")
}

func TestRecordAttemptProfileFailureKeepsAttempt(t *testing.T) {
	f := newSessionFixture(t)
	service := app.NewSessionService(app.SessionConfig{
		Auth:       auth.Context{},
		Sessions:   memory.NewSessionStore(),
		Challenges: f.store,
		Profiles:   failingProfiles{f.store},
		Attempts:   f.store,
		Feed:       f.store,
		Clock:      f.clock.Now,
	})
	ctx := userCtx("u1")

	result, err := service.RecordAttempt(ctx, "c-japan", "Sushi")
	if !errors.Is(err, domain.ErrProfilePersistence) {
		t.Fatalf("expected profile persistence error, got %v", err)
	}
	if !result.Recorded || !result.ProfileStale {
		t.Fatalf("attempt is durable, result should say so: %+v", result)
	}

	attempts, _ := f.store.ListRecentAttempts(ctx, "u1", 10)
	if len(attempts) != 1 {
		t.Fatalf("attempt row should persist despite profile failure, got %d", len(attempts))
	}
	entries, _ := f.store.ListEntries(ctx, 10)
	if len(entries) != 0 {
		t.Fatalf("no feed post when the profile update failed")
	}
}

func TestAdvanceAvoidsRepeat(t *testing.T) {
	f := newSessionFixture(t)
	ctx := userCtx("u1")
	if _, err := f.service.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}

	// Repeats are tolerated after the bounded retries, so with two daily
	// challenges they should be rare rather than impossible.
	repeats := 0
	for i := 0; i < 20; i++ {
		before, err := f.service.Daily(ctx)
		if err != nil {
			t.Fatalf("daily: %v", err)
		}
		after, err := f.service.Advance(ctx)
		if err != nil {
			t.Fatalf("advance: %v", err)
		}
		if after.Challenge.ID == before.Challenge.ID {
			repeats++
		}
	}
	if repeats > 2 {
		t.Fatalf("advance repeated the current pick %d times out of 20", repeats)
	}
}

func TestDailyPickShufflesCopy(t *testing.T) {
	f := newSessionFixture(t)
	ctx := userCtx("u1")
	snapshot, err := f.service.Open(ctx)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	pick := snapshot.Daily
	if len(pick.Choices) != len(pick.Challenge.Options.Choices) {
		t.Fatalf("shuffled choices must keep every option: %v vs %v", pick.Choices, pick.Challenge.Options.Choices)
	}
	counts := map[string]int{}
	for _, c := range pick.Choices {
		counts[c]++
	}
	for _, c := range pick.Challenge.Options.Choices {
		if counts[c] != 1 {
			t.Fatalf("choice %q missing or duplicated in %v", c, pick.Choices)
		}
	}
}

func TestSubscribeReceivesAttemptUpdates(t *testing.T) {
	f := newSessionFixture(t)
	ctx := userCtx("u1")

	ch, cancel, err := f.service.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	<-ch // initial snapshot

	if _, err := f.service.RecordAttempt(ctx, "c-japan", "Sushi"); err != nil {
		t.Fatalf("record attempt: %v", err)
	}

	select {
	case update := <-ch:
		if update.Profile.TotalPoints != 120 {
			t.Fatalf("expected broadcast of updated profile, got %+v", update.Profile)
		}
	case <-time.After(time.Second):
		t.Fatalf("no snapshot broadcast after attempt")
	}
}

func TestRecentAttemptsJoinsChallenges(t *testing.T) {
	f := newSessionFixture(t)
	ctx := userCtx("u1")

	if _, err := f.service.RecordAttempt(ctx, "c-japan", "Sushi"); err != nil {
		t.Fatalf("record attempt: %v", err)
	}
	if _, err := f.service.RecordAttempt(ctx, "c-audio", "recorded"); err != nil {
		t.Fatalf("record audio attempt: %v", err)
	}

	views, err := f.service.RecentAttempts(ctx, 10)
	if err != nil {
		t.Fatalf("recent attempts: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 views, got %d", len(views))
	}
	for _, v := range views {
		if v.Challenge == nil {
			t.Fatalf("expected challenge summary on %+v", v.Attempt)
		}
	}
}

func TestLoadChallengesKeepsCatalogOnError(t *testing.T) {
	f := newSessionFixture(t)
	ctx := userCtx("u1")
	if _, err := f.service.Open(ctx); err != nil {
		t.Fatalf("open: %v", err)
	}

	// Attempts against the already-loaded catalog still work even though a
	// fresh service with a broken repository cannot load at all.
	broken := app.NewSessionService(app.SessionConfig{
		Auth:       auth.Context{},
		Sessions:   memory.NewSessionStore(),
		Challenges: failingChallenges{},
		Profiles:   f.store,
		Attempts:   f.store,
		Feed:       f.store,
		Clock:      f.clock.Now,
	})
	if _, err := broken.LoadChallenges(ctx); err == nil {
		t.Fatalf("expected load error")
	}

	if _, err := f.service.RecordAttempt(ctx, "c-japan", "Sushi"); err != nil {
		t.Fatalf("existing catalog should keep serving: %v", err)
	}
}

type failingChallenges struct{}

func (failingChallenges) ListChallenges(context.Context) ([]domain.Challenge, error) {
	return nil, fmt.Errorf("catalog down")
}

func (failingChallenges) GetChallenge(context.Context, string) (domain.Challenge, error) {
	return domain.Challenge{}, fmt.Errorf("catalog down")
}
