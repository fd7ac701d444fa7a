package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"bridgebites-service/internal/app"
	"bridgebites-service/internal/domain"
)

func TestApplyStatsMatchesConditionalUpdate(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	store.SeedProfile(domain.Profile{
		UserID:           "u1",
		TotalPoints:      100,
		CurrentStreak:    3,
		MaxStreak:        5,
		CountriesBridged: []string{"Italy"},
	})

	streak := 4
	updated, err := store.ApplyStats(ctx, app.StatsDelta{
		UserID:  "u1",
		Points:  20,
		Streak:  &streak,
		Country: "Japan",
	})
	if err != nil {
		t.Fatalf("apply stats: %v", err)
	}
	if updated.TotalPoints != 120 || updated.CurrentStreak != 4 || updated.MaxStreak != 5 {
		t.Fatalf("unexpected profile %+v", updated)
	}
	if !updated.HasBridged("Japan") {
		t.Fatalf("expected Japan appended, got %v", updated.CountriesBridged)
	}

	// Nil streak leaves both streak columns alone; duplicate country is a
	// no-op.
	updated, err = store.ApplyStats(ctx, app.StatsDelta{UserID: "u1", Points: 10, Country: "Japan"})
	if err != nil {
		t.Fatalf("apply stats: %v", err)
	}
	if updated.CurrentStreak != 4 || updated.MaxStreak != 5 {
		t.Fatalf("nil streak should not change streaks, got %+v", updated)
	}
	if len(updated.CountriesBridged) != 2 {
		t.Fatalf("duplicate country appended: %v", updated.CountriesBridged)
	}

	if _, err := store.ApplyStats(ctx, app.StatsDelta{UserID: "unknown", Points: 1}); !errors.Is(err, domain.ErrProfileNotFound) {
		t.Fatalf("expected profile not found, got %v", err)
	}
}

func TestInsertFriendshipRefusesDuplicatePair(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	now := time.Now().UTC()

	if _, err := store.InsertFriendship(ctx, domain.Friendship{
		ID: "f1", UserID: "u1", FriendID: "u2", Status: domain.FriendshipPending, CreatedAt: now,
	}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	_, err := store.InsertFriendship(ctx, domain.Friendship{
		ID: "f2", UserID: "u2", FriendID: "u1", Status: domain.FriendshipPending, CreatedAt: now,
	})
	if !errors.Is(err, domain.ErrFriendshipExists) {
		t.Fatalf("reversed pair should collide, got %v", err)
	}
}

func TestLastCorrectAt(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	last, err := store.LastCorrectAt(ctx, "u1")
	if err != nil || last != nil {
		t.Fatalf("expected no history, got %v %v", last, err)
	}

	base := time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC)
	attempts := []domain.Attempt{
		{ID: "a1", UserID: "u1", ChallengeID: "c1", IsCorrect: true, CompletedAt: base.Add(-48 * time.Hour)},
		{ID: "a2", UserID: "u1", ChallengeID: "c2", IsCorrect: false, CompletedAt: base.Add(-time.Hour)},
		{ID: "a3", UserID: "u1", ChallengeID: "c3", IsCorrect: true, CompletedAt: base.Add(-24 * time.Hour)},
		{ID: "a4", UserID: "u2", ChallengeID: "c1", IsCorrect: true, CompletedAt: base},
	}
	for _, a := range attempts {
		if _, err := store.InsertAttempt(ctx, a); err != nil {
			t.Fatalf("insert attempt %s: %v", a.ID, err)
		}
	}

	last, err = store.LastCorrectAt(ctx, "u1")
	if err != nil {
		t.Fatalf("last correct: %v", err)
	}
	if last == nil || !last.Equal(base.Add(-24*time.Hour)) {
		t.Fatalf("expected most recent correct attempt, got %v", last)
	}
}
