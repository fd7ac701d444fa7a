package app

import (
	"strings"

	"bridgebites-service/internal/domain"
)

// AnswerMatcher decides whether a submitted answer is correct for one
// challenge. Implementations form a closed set selected by MatcherFor.
type AnswerMatcher interface {
	Match(submitted string) bool
}

// MatcherFor picks the matcher for a challenge:
//
//   - audio: any submission counts; correctness is not content-verified.
//   - quiz/visual with usable options: exact match, case-insensitive and
//     whitespace-trimmed.
//   - cultural and free-text fallback (quiz/visual without options):
//     substring containment on trimmed, lower-cased text.
//
// A non-audio challenge without a correct answer has no defined matching;
// MatcherFor returns ErrDegradedChallenge and the caller must refuse to
// score rather than guess.
func MatcherFor(challenge domain.Challenge) (AnswerMatcher, error) {
	if challenge.Type == domain.ChallengeAudio {
		return autoMatcher{}, nil
	}
	correct := strings.TrimSpace(challenge.CorrectAnswer)
	if correct == "" {
		return nil, domain.ErrDegradedChallenge
	}
	switch challenge.Type {
	case domain.ChallengeQuiz, domain.ChallengeVisual:
		if challenge.Options.Usable() {
			return choiceMatcher{correct: correct}, nil
		}
		return freeTextMatcher{correct: correct}, nil
	default:
		return freeTextMatcher{correct: correct}, nil
	}
}

// IsAnswerCorrect is the one-shot form of MatcherFor + Match.
func IsAnswerCorrect(challenge domain.Challenge, submitted string) (bool, error) {
	matcher, err := MatcherFor(challenge)
	if err != nil {
		return false, err
	}
	return matcher.Match(submitted), nil
}

// autoMatcher treats any submission (the "recorded" sentinel included) as a
// success; audio tasks reward the attempt, not the content.
type autoMatcher struct{}

func (autoMatcher) Match(string) bool { return true }

// choiceMatcher requires the submission to equal the correct answer after
// trimming and case folding.
type choiceMatcher struct {
	correct string
}

func (m choiceMatcher) Match(submitted string) bool {
	return strings.EqualFold(strings.TrimSpace(submitted), m.correct)
}

// freeTextMatcher accepts any submission containing the correct answer,
// both sides trimmed and lower-cased. An empty correct answer never matches;
// containment must not be vacuously true.
type freeTextMatcher struct {
	correct string
}

func (m freeTextMatcher) Match(submitted string) bool {
	correct := strings.ToLower(strings.TrimSpace(m.correct))
	if correct == "" {
		return false
	}
	return strings.Contains(strings.ToLower(strings.TrimSpace(submitted)), correct)
}
