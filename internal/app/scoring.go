package app

import (
	"time"

	"bridgebites-service/internal/domain"
)

// PointsAwarded returns the points earned for an attempt: the full base value
// when correct, half (floored) otherwise. Zero-point attempts are valid.
func PointsAwarded(basePoints int, correct bool) int {
	if basePoints <= 0 {
		return 0
	}
	if correct {
		return basePoints
	}
	return basePoints / 2
}

// NextStreak computes the streak value after a correct attempt at now, given
// the timestamp of the previous correct attempt. Calendar days are compared
// in UTC. Multiple correct attempts in one day leave the streak unchanged; a
// gap of two or more days (or a previous attempt in the future) resets to 1.
//
// Callers invoke this only for correct attempts; incorrect attempts never
// touch the streak.
func NextStreak(lastCorrect *time.Time, currentStreak int, now time.Time) int {
	if lastCorrect == nil {
		return 1
	}
	prev := dayUTC(*lastCorrect)
	today := dayUTC(now)
	switch {
	case prev.Equal(today):
		if currentStreak < 1 {
			return 1
		}
		return currentStreak
	case prev.AddDate(0, 0, 1).Equal(today):
		return currentStreak + 1
	default:
		return 1
	}
}

func dayUTC(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// StatsDelta describes the profile mutation produced by one scored attempt.
// The store applies it as a single conditional update so concurrent
// submissions cannot lose points to interleaved read-modify-write.
type StatsDelta struct {
	UserID string
	// Points to add to total_points; always >= 0.
	Points int
	// Streak is the new current_streak, set only for correct attempts.
	// max_streak ratchets to GREATEST(max_streak, *Streak).
	Streak *int
	// Country to append to countries_bridged unless already present.
	Country string
}

// Zero reports whether applying the delta would change nothing.
func (d StatsDelta) Zero() bool {
	return d.Points == 0 && d.Streak == nil && d.Country == ""
}

// ApplyOutcome computes the delta a scored attempt produces for profile, and
// the profile expected after the store applies it. A zero-point attempt
// yields an empty delta and the profile untouched.
func ApplyOutcome(profile domain.Profile, challenge domain.Challenge, correct bool, lastCorrect *time.Time, now time.Time) (StatsDelta, domain.Profile) {
	points := PointsAwarded(challenge.Points, correct)
	delta := StatsDelta{UserID: profile.UserID}
	if points == 0 {
		return delta, profile
	}

	delta.Points = points
	updated := profile
	updated.TotalPoints += points

	if correct {
		streak := NextStreak(lastCorrect, profile.CurrentStreak, now)
		delta.Streak = &streak
		updated.CurrentStreak = streak
		if streak > updated.MaxStreak {
			updated.MaxStreak = streak
		}
	}

	if challenge.Country != "" && !profile.HasBridged(challenge.Country) {
		delta.Country = challenge.Country
		updated.CountriesBridged = append(append([]string(nil), profile.CountriesBridged...), challenge.Country)
	}
	return delta, updated
}
