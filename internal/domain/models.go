package domain

import "time"

// ChallengeType enumerates the supported challenge formats.
type ChallengeType string

const (
	ChallengeAudio    ChallengeType = "audio"
	ChallengeVisual   ChallengeType = "visual"
	ChallengeQuiz     ChallengeType = "quiz"
	ChallengeCultural ChallengeType = "cultural"
)

// ChoiceSet holds the answer options presented for multiple-choice challenges.
type ChoiceSet struct {
	Choices []string `json:"choices"`
}

// Usable reports whether the set carries enough options for MCQ matching.
func (c *ChoiceSet) Usable() bool {
	return c != nil && len(c.Choices) >= 2
}

// Challenge is one cultural task. Immutable once loaded for a session; the
// authoritative copy lives in the row store.
type Challenge struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	Type          ChallengeType `json:"type"`
	Country       string        `json:"country"`
	Flag          string        `json:"flag"`
	Points        int           `json:"points"`
	Difficulty    string        `json:"difficulty"`
	Options       *ChoiceSet    `json:"options,omitempty"`
	CorrectAnswer string        `json:"correct_answer,omitempty"`
	IsDaily       bool          `json:"is_daily"`
	CreatedAt     time.Time     `json:"created_at"`
}

// Summary returns the lightweight view joined onto attempts and feed entries.
func (c Challenge) Summary() *ChallengeSummary {
	return &ChallengeSummary{ID: c.ID, Title: c.Title, Country: c.Country, Flag: c.Flag}
}

// ChallengeSummary carries just the display fields of a challenge.
type ChallengeSummary struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Country string `json:"country"`
	Flag    string `json:"flag"`
}

// User identifies an authenticated account as surfaced by the auth collaborator.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email,omitempty"`
	Username string `json:"username,omitempty"`
}

// Profile is the per-user gamification state.
//
// Invariants after every update: MaxStreak >= CurrentStreak, TotalPoints is
// monotonically non-decreasing, CountriesBridged only grows and holds no
// duplicates.
type Profile struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	Username         string    `json:"username"`
	DisplayName      string    `json:"display_name"`
	Level            int       `json:"level"`
	TotalPoints      int       `json:"total_points"`
	CurrentStreak    int       `json:"current_streak"`
	MaxStreak        int       `json:"max_streak"`
	CountriesBridged []string  `json:"countries_bridged"`
	CreatedAt        time.Time `json:"created_at"`
}

// HasBridged reports whether country is already in the profile's bridged set.
func (p Profile) HasBridged(country string) bool {
	for _, c := range p.CountriesBridged {
		if c == country {
			return true
		}
	}
	return false
}

// Summary returns the display slice of the profile.
func (p Profile) Summary() *ProfileSummary {
	return &ProfileSummary{
		UserID:      p.UserID,
		Username:    p.Username,
		DisplayName: p.DisplayName,
		Level:       p.Level,
	}
}

// ProfileSummary is the display slice of a profile used in feeds and lists.
type ProfileSummary struct {
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Level       int    `json:"level"`
}

// Attempt is one user_challenges row. Append-only: every submission creates a
// new record, repeat submissions to the same challenge included.
type Attempt struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	ChallengeID  string    `json:"challenge_id"`
	UserAnswer   string    `json:"user_answer"`
	IsCorrect    bool      `json:"is_correct"`
	PointsEarned int       `json:"points_earned"`
	CompletedAt  time.Time `json:"completed_at"`
}

// AttemptView is an attempt joined with its challenge summary for display.
// Challenge is nil when the referenced row is gone.
type AttemptView struct {
	Attempt
	Challenge *ChallengeSummary `json:"challenge,omitempty"`
}

// FeedPost is a social-timeline entry emitted after a scored attempt.
type FeedPost struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	ChallengeID       string    `json:"challenge_id"`
	ActionDescription string    `json:"action_description"`
	PointsEarned      int       `json:"points_earned"`
	StreakCount       int       `json:"streak_count"`
	Country           string    `json:"country"`
	Flag              string    `json:"flag"`
	CreatedAt         time.Time `json:"created_at"`
}

// FeedEntry is a post joined with its author and social counters.
type FeedEntry struct {
	FeedPost
	Author   *ProfileSummary `json:"author,omitempty"`
	Likes    []PostLike      `json:"likes"`
	Comments []PostComment   `json:"comments"`
}

// LikedBy reports whether userID has liked the post.
func (e FeedEntry) LikedBy(userID string) bool {
	for _, l := range e.Likes {
		if l.UserID == userID {
			return true
		}
	}
	return false
}

// PostLike is a single like row; one per (post, user).
type PostLike struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// PostComment is an ordered comment on a feed post.
type PostComment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Friendship statuses. Rows are created pending by the requester and become
// accepted only through the recipient; decline and removal delete the row.
const (
	FriendshipPending  = "pending"
	FriendshipAccepted = "accepted"
)

// Friendship links a requester (UserID) to a recipient (FriendID).
type Friendship struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	FriendID  string    `json:"friend_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Involves reports whether userID is on either side of the row.
func (f Friendship) Involves(userID string) bool {
	return f.UserID == userID || f.FriendID == userID
}

// OtherSide returns the counterpart of userID in the row.
func (f Friendship) OtherSide(userID string) string {
	if f.UserID == userID {
		return f.FriendID
	}
	return f.UserID
}

// FriendRequest is an incoming pending friendship with the requester attached.
type FriendRequest struct {
	Friendship
	Requester *ProfileSummary `json:"requester,omitempty"`
}

// Friend is an accepted friendship normalized to the viewer's perspective.
type Friend struct {
	FriendshipID string          `json:"friendship_id"`
	UserID       string          `json:"user_id"`
	Profile      *ProfileSummary `json:"profile,omitempty"`
	Since        time.Time       `json:"since"`
}
