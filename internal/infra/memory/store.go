package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"bridgebites-service/internal/app"
	"bridgebites-service/internal/domain"
)

// Store is an in-memory implementation of every row-store repository the
// app layer consumes. Used by tests and by demo mode when no Postgres is
// configured.
type Store struct {
	mu          sync.RWMutex
	challenges  map[string]domain.Challenge
	profiles    map[string]domain.Profile
	attempts    []domain.Attempt
	posts       []domain.FeedPost
	likes       map[string][]domain.PostLike
	comments    map[string][]domain.PostComment
	friendships map[string]domain.Friendship
}

var (
	_ app.ChallengeRepository  = (*Store)(nil)
	_ app.ProfileRepository    = (*Store)(nil)
	_ app.AttemptRepository    = (*Store)(nil)
	_ app.FeedRepository       = (*Store)(nil)
	_ app.FriendshipRepository = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		challenges:  make(map[string]domain.Challenge),
		profiles:    make(map[string]domain.Profile),
		likes:       make(map[string][]domain.PostLike),
		comments:    make(map[string][]domain.PostComment),
		friendships: make(map[string]domain.Friendship),
	}
}

// SeedChallenges loads challenge rows, replacing rows with the same id.
func (s *Store) SeedChallenges(challenges ...domain.Challenge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range challenges {
		s.challenges[c.ID] = c
	}
}

// SeedProfile loads a profile row keyed by user id.
func (s *Store) SeedProfile(profile domain.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.UserID] = profile
}

func (s *Store) ListChallenges(_ context.Context) ([]domain.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Challenge, 0, len(s.challenges))
	for _, c := range s.challenges {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) GetChallenge(_ context.Context, id string) (domain.Challenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.challenges[id]; ok {
		return c, nil
	}
	return domain.Challenge{}, domain.ErrChallengeNotFound
}

// UpsertChallenges satisfies the seed tool's writer interface.
func (s *Store) UpsertChallenges(_ context.Context, challenges []domain.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range challenges {
		s.challenges[c.ID] = c
	}
	return nil
}

func (s *Store) GetProfile(_ context.Context, userID string) (domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.profiles[userID]; ok {
		return p, nil
	}
	return domain.Profile{}, domain.ErrProfileNotFound
}

func (s *Store) InsertProfile(_ context.Context, profile domain.Profile) (domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.UserID] = profile
	return profile, nil
}

// ApplyStats applies the delta under the store lock, mirroring the
// conditional-update semantics of the Postgres store.
func (s *Store) ApplyStats(_ context.Context, delta app.StatsDelta) (domain.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[delta.UserID]
	if !ok {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	p.TotalPoints += delta.Points
	if delta.Streak != nil {
		p.CurrentStreak = *delta.Streak
		if *delta.Streak > p.MaxStreak {
			p.MaxStreak = *delta.Streak
		}
	}
	if delta.Country != "" && !p.HasBridged(delta.Country) {
		p.CountriesBridged = append(append([]string(nil), p.CountriesBridged...), delta.Country)
	}
	s.profiles[delta.UserID] = p
	return p, nil
}

func (s *Store) ListProfiles(_ context.Context, exclude []string, limit int) ([]domain.Profile, error) {
	excluded := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		excluded[id] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Profile, 0, limit)
	ids := make([]string, 0, len(s.profiles))
	for id := range s.profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if excluded[id] {
			continue
		}
		out = append(out, s.profiles[id])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) GetProfiles(_ context.Context, userIDs []string) ([]domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Profile, 0, len(userIDs))
	for _, id := range userIDs {
		if p, ok := s.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) InsertAttempt(_ context.Context, attempt domain.Attempt) (domain.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, attempt)
	return attempt, nil
}

func (s *Store) ListRecentAttempts(_ context.Context, userID string, limit int) ([]domain.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Attempt, 0, limit)
	for _, a := range s.attempts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.After(out[j].CompletedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) LastCorrectAt(_ context.Context, userID string) (*time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var last *time.Time
	for _, a := range s.attempts {
		if a.UserID == userID && a.IsCorrect {
			t := a.CompletedAt
			if last == nil || t.After(*last) {
				last = &t
			}
		}
	}
	return last, nil
}

func (s *Store) InsertPost(_ context.Context, post domain.FeedPost) (domain.FeedPost, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append(s.posts, post)
	return post, nil
}

func (s *Store) ListEntries(_ context.Context, limit int) ([]domain.FeedEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	posts := append([]domain.FeedPost(nil), s.posts...)
	sort.Slice(posts, func(i, j int) bool { return posts[i].CreatedAt.After(posts[j].CreatedAt) })
	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}
	out := make([]domain.FeedEntry, 0, len(posts))
	for _, p := range posts {
		out = append(out, domain.FeedEntry{
			FeedPost: p,
			Likes:    append([]domain.PostLike(nil), s.likes[p.ID]...),
			Comments: append([]domain.PostComment(nil), s.comments[p.ID]...),
		})
	}
	return out, nil
}

func (s *Store) GetLike(_ context.Context, postID, userID string) (*domain.PostLike, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.likes[postID] {
		if l.UserID == userID {
			like := l
			return &like, nil
		}
	}
	return nil, nil
}

func (s *Store) InsertLike(_ context.Context, like domain.PostLike) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.postExistsLocked(like.PostID) {
		return domain.ErrPostNotFound
	}
	for _, l := range s.likes[like.PostID] {
		if l.UserID == like.UserID {
			return nil
		}
	}
	s.likes[like.PostID] = append(s.likes[like.PostID], like)
	return nil
}

func (s *Store) DeleteLike(_ context.Context, postID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	likes := s.likes[postID]
	for i, l := range likes {
		if l.UserID == userID {
			s.likes[postID] = append(likes[:i], likes[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *Store) InsertComment(_ context.Context, comment domain.PostComment) (domain.PostComment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.postExistsLocked(comment.PostID) {
		return domain.PostComment{}, domain.ErrPostNotFound
	}
	s.comments[comment.PostID] = append(s.comments[comment.PostID], comment)
	return comment, nil
}

func (s *Store) postExistsLocked(postID string) bool {
	for _, p := range s.posts {
		if p.ID == postID {
			return true
		}
	}
	return false
}

func (s *Store) ListFriendships(_ context.Context, userID string) ([]domain.Friendship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Friendship, 0)
	for _, f := range s.friendships {
		if f.Involves(userID) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) InsertFriendship(_ context.Context, friendship domain.Friendship) (domain.Friendship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.friendships {
		if (f.UserID == friendship.UserID && f.FriendID == friendship.FriendID) ||
			(f.UserID == friendship.FriendID && f.FriendID == friendship.UserID) {
			return domain.Friendship{}, domain.ErrFriendshipExists
		}
	}
	s.friendships[friendship.ID] = friendship
	return friendship, nil
}

func (s *Store) ListIncoming(_ context.Context, userID string) ([]domain.Friendship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Friendship, 0)
	for _, f := range s.friendships {
		if f.FriendID == userID && f.Status == domain.FriendshipPending {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) AcceptFriendship(_ context.Context, id, recipientID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.friendships[id]
	if !ok || f.FriendID != recipientID || f.Status != domain.FriendshipPending {
		return false, nil
	}
	f.Status = domain.FriendshipAccepted
	s.friendships[id] = f
	return true, nil
}

func (s *Store) DeleteFriendship(_ context.Context, id, memberID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.friendships[id]
	if !ok || !f.Involves(memberID) {
		return false, nil
	}
	delete(s.friendships, id)
	return true, nil
}
