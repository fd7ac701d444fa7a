package app_test

import (
	"testing"
	"time"

	"bridgebites-service/internal/app"
	"bridgebites-service/internal/domain"
)

func TestPointsAwarded(t *testing.T) {
	if got := app.PointsAwarded(100, true); got != 100 {
		t.Fatalf("expected full 100 points, got %d", got)
	}
	if got := app.PointsAwarded(100, false); got != 50 {
		t.Fatalf("expected half 50 points, got %d", got)
	}
	if got := app.PointsAwarded(75, false); got != 37 {
		t.Fatalf("expected floor 37 points, got %d", got)
	}
	if got := app.PointsAwarded(0, false); got != 0 {
		t.Fatalf("expected 0 points, got %d", got)
	}
}

func TestNextStreak(t *testing.T) {
	now := time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC)

	if got := app.NextStreak(nil, 7, now); got != 1 {
		t.Fatalf("no history should reset to 1, got %d", got)
	}

	sameDay := now.Add(-3 * time.Hour)
	if got := app.NextStreak(&sameDay, 4, now); got != 4 {
		t.Fatalf("same day should keep streak 4, got %d", got)
	}

	yesterday := now.AddDate(0, 0, -1)
	if got := app.NextStreak(&yesterday, 4, now); got != 5 {
		t.Fatalf("consecutive day should give 5, got %d", got)
	}

	gap := now.AddDate(0, 0, -3)
	if got := app.NextStreak(&gap, 9, now); got != 1 {
		t.Fatalf("gap should reset to 1, got %d", got)
	}

	future := now.AddDate(0, 0, 2)
	if got := app.NextStreak(&future, 9, now); got != 1 {
		t.Fatalf("future timestamp should reset to 1, got %d", got)
	}
}

func TestNextStreakUsesCalendarDays(t *testing.T) {
	// 23:30 then 00:30 the next day is consecutive even though only an hour
	// passed.
	last := time.Date(2025, 8, 14, 23, 30, 0, 0, time.UTC)
	now := time.Date(2025, 8, 15, 0, 30, 0, 0, time.UTC)
	if got := app.NextStreak(&last, 2, now); got != 3 {
		t.Fatalf("midnight boundary should extend streak to 3, got %d", got)
	}
}

func TestApplyOutcomeCorrect(t *testing.T) {
	now := time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)
	profile := domain.Profile{
		UserID:           "u1",
		TotalPoints:      100,
		CurrentStreak:    3,
		MaxStreak:        5,
		CountriesBridged: []string{"Italy"},
	}
	challenge := domain.Challenge{ID: "c1", Country: "Japan", Points: 60}

	delta, expected := app.ApplyOutcome(profile, challenge, true, &yesterday, now)
	if delta.Points != 60 {
		t.Fatalf("expected 60 points in delta, got %d", delta.Points)
	}
	if delta.Streak == nil || *delta.Streak != 4 {
		t.Fatalf("expected streak 4, got %v", delta.Streak)
	}
	if delta.Country != "Japan" {
		t.Fatalf("expected Japan bridged, got %q", delta.Country)
	}
	if expected.TotalPoints != 160 || expected.CurrentStreak != 4 || expected.MaxStreak != 5 {
		t.Fatalf("unexpected projected profile %+v", expected)
	}
	if !expected.HasBridged("Japan") || !expected.HasBridged("Italy") {
		t.Fatalf("expected both countries bridged, got %v", expected.CountriesBridged)
	}
}

func TestApplyOutcomeMaxStreakRatchet(t *testing.T) {
	now := time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)
	profile := domain.Profile{UserID: "u1", CurrentStreak: 5, MaxStreak: 5}
	challenge := domain.Challenge{ID: "c1", Country: "Italy", Points: 10}

	_, expected := app.ApplyOutcome(profile, challenge, true, &yesterday, now)
	if expected.CurrentStreak != 6 || expected.MaxStreak != 6 {
		t.Fatalf("expected streak and max 6, got %d/%d", expected.CurrentStreak, expected.MaxStreak)
	}

	// A later reset never lowers the ratchet.
	profile = expected
	_, expected = app.ApplyOutcome(profile, challenge, true, nil, now)
	if expected.CurrentStreak != 1 || expected.MaxStreak != 6 {
		t.Fatalf("reset should keep max 6, got %d/%d", expected.CurrentStreak, expected.MaxStreak)
	}
}

func TestApplyOutcomeIncorrectStillBridges(t *testing.T) {
	now := time.Date(2025, 8, 15, 12, 0, 0, 0, time.UTC)
	profile := domain.Profile{UserID: "u1", CurrentStreak: 3}
	challenge := domain.Challenge{ID: "c1", Country: "Peru", Points: 40}

	delta, expected := app.ApplyOutcome(profile, challenge, false, nil, now)
	if delta.Points != 20 {
		t.Fatalf("expected half points 20, got %d", delta.Points)
	}
	if delta.Streak != nil {
		t.Fatalf("incorrect attempt should not touch the streak, got %v", *delta.Streak)
	}
	if !expected.HasBridged("Peru") {
		t.Fatalf("partial credit should still bridge the country")
	}
	if expected.CurrentStreak != 3 {
		t.Fatalf("streak should stay 3, got %d", expected.CurrentStreak)
	}
}

func TestApplyOutcomeDuplicateCountry(t *testing.T) {
	now := time.Now().UTC()
	profile := domain.Profile{UserID: "u1", CountriesBridged: []string{"Japan"}}
	challenge := domain.Challenge{ID: "c1", Country: "Japan", Points: 10}

	_, expected := app.ApplyOutcome(profile, challenge, true, nil, now)
	if len(expected.CountriesBridged) != 1 {
		t.Fatalf("expected Japan once, got %v", expected.CountriesBridged)
	}
}
