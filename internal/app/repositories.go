package app

import (
	"context"
	"time"

	"bridgebites-service/internal/domain"
)

// AuthProvider is the authentication collaborator. CurrentUser returns
// domain.ErrAuthPending while session bootstrap is unresolved and
// domain.ErrUnauthenticated when no user is signed in; the two are distinct
// states and writes are refused in both.
type AuthProvider interface {
	CurrentUser(ctx context.Context) (domain.User, error)
}

// ChallengeRepository loads challenge content (from cache/backing store).
type ChallengeRepository interface {
	// ListChallenges returns the full catalog ordered by creation time
	// descending.
	ListChallenges(ctx context.Context) ([]domain.Challenge, error)
	GetChallenge(ctx context.Context, id string) (domain.Challenge, error)
}

// ProfileRepository stores per-user gamification state.
type ProfileRepository interface {
	GetProfile(ctx context.Context, userID string) (domain.Profile, error)
	// ApplyStats applies a scored attempt's delta as one conditional update
	// (atomic increment, streak ratchet, guarded country append) and returns
	// the resulting profile.
	ApplyStats(ctx context.Context, delta StatsDelta) (domain.Profile, error)
	// ListProfiles returns up to limit profiles whose user id is not in
	// exclude.
	ListProfiles(ctx context.Context, exclude []string, limit int) ([]domain.Profile, error)
	GetProfiles(ctx context.Context, userIDs []string) ([]domain.Profile, error)
}

// AttemptRepository stores user_challenges rows. Inserts are append-only.
type AttemptRepository interface {
	InsertAttempt(ctx context.Context, attempt domain.Attempt) (domain.Attempt, error)
	// ListRecentAttempts returns the user's attempts newest first.
	ListRecentAttempts(ctx context.Context, userID string, limit int) ([]domain.Attempt, error)
	// LastCorrectAt returns the timestamp of the user's most recent correct
	// attempt, or nil when none exists.
	LastCorrectAt(ctx context.Context, userID string) (*time.Time, error)
}

// FeedRepository stores feed posts and their like/comment rows.
type FeedRepository interface {
	InsertPost(ctx context.Context, post domain.FeedPost) (domain.FeedPost, error)
	// ListEntries returns the latest posts with likes and comments attached,
	// newest first. Authors are resolved by the caller.
	ListEntries(ctx context.Context, limit int) ([]domain.FeedEntry, error)
	GetLike(ctx context.Context, postID, userID string) (*domain.PostLike, error)
	InsertLike(ctx context.Context, like domain.PostLike) error
	DeleteLike(ctx context.Context, postID, userID string) error
	InsertComment(ctx context.Context, comment domain.PostComment) (domain.PostComment, error)
}

// FriendshipRepository stores friendship rows.
type FriendshipRepository interface {
	// ListFriendships returns every row involving userID, either side, any
	// status.
	ListFriendships(ctx context.Context, userID string) ([]domain.Friendship, error)
	// InsertFriendship adds a pending row; a row already linking the pair in
	// either direction yields domain.ErrFriendshipExists.
	InsertFriendship(ctx context.Context, friendship domain.Friendship) (domain.Friendship, error)
	// ListIncoming returns pending rows addressed to userID, newest first.
	ListIncoming(ctx context.Context, userID string) ([]domain.Friendship, error)
	// AcceptFriendship flips a pending row to accepted, but only when
	// recipientID is the row's friend_id. Returns false when no row matched.
	AcceptFriendship(ctx context.Context, id, recipientID string) (bool, error)
	// DeleteFriendship removes the row when memberID is on either side.
	// Returns false when no row matched.
	DeleteFriendship(ctx context.Context, id, memberID string) (bool, error)
}

// FeedEvent is an at-least-once notification of an insert into a feed table.
// Consumers refetch the whole feed; duplicates are harmless.
type FeedEvent struct {
	Table  string `json:"table"`
	PostID string `json:"post_id,omitempty"`
}

// FeedNotifier fans out feed insert events, in process or across instances.
type FeedNotifier interface {
	Publish(ctx context.Context, event FeedEvent) error
	// Subscribe returns a stream of events; the caller must invoke the
	// returned cancel function to avoid leaks.
	Subscribe(ctx context.Context) (<-chan FeedEvent, func(), error)
}
