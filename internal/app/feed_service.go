package app

import (
	"context"
	"fmt"
	"time"

	"bridgebites-service/internal/domain"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// defaultFeedPageSize matches the feed page the clients render.
const defaultFeedPageSize = 20

// FeedService assembles the social feed and handles likes and comments.
type FeedService struct {
	auth     AuthProvider
	feed     FeedRepository
	profiles ProfileRepository
	notifier FeedNotifier
	log      logrus.FieldLogger
	clock    func() time.Time
	pageSize int
}

func NewFeedService(auth AuthProvider, feed FeedRepository, profiles ProfileRepository, notifier FeedNotifier, log logrus.FieldLogger) *FeedService {
	if log == nil {
		log = logrus.New()
	}
	return &FeedService{
		auth:     auth,
		feed:     feed,
		profiles: profiles,
		notifier: notifier,
		log:      log,
		clock:    time.Now,
		pageSize: defaultFeedPageSize,
	}
}

// Feed returns the latest posts, newest first, with authors and like/comment
// rows attached. Author resolution is best-effort.
func (s *FeedService) Feed(ctx context.Context) ([]domain.FeedEntry, error) {
	entries, err := s.feed.ListEntries(ctx, s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("list feed: %w", err)
	}

	ids := make([]string, 0, len(entries))
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if !seen[e.UserID] {
			seen[e.UserID] = true
			ids = append(ids, e.UserID)
		}
	}
	if len(ids) > 0 {
		profiles, err := s.profiles.GetProfiles(ctx, ids)
		if err != nil {
			s.log.WithError(err).Warn("feed author lookup failed")
		} else {
			byUser := make(map[string]*domain.ProfileSummary, len(profiles))
			for _, p := range profiles {
				byUser[p.UserID] = p.Summary()
			}
			for i := range entries {
				entries[i].Author = byUser[entries[i].UserID]
			}
		}
	}
	return entries, nil
}

// ToggleLike likes the post when the caller has not liked it, and removes
// the like otherwise.
func (s *FeedService) ToggleLike(ctx context.Context, postID string) (liked bool, err error) {
	user, err := s.auth.CurrentUser(ctx)
	if err != nil {
		return false, err
	}
	existing, err := s.feed.GetLike(ctx, postID, user.ID)
	if err != nil {
		return false, fmt.Errorf("lookup like: %w", err)
	}
	if existing != nil {
		if err := s.feed.DeleteLike(ctx, postID, user.ID); err != nil {
			return true, fmt.Errorf("unlike: %w", err)
		}
		return false, nil
	}
	like := domain.PostLike{
		ID:        uuid.NewString(),
		PostID:    postID,
		UserID:    user.ID,
		CreatedAt: s.clock(),
	}
	if err := s.feed.InsertLike(ctx, like); err != nil {
		return false, fmt.Errorf("like: %w", err)
	}
	s.publish(ctx, FeedEvent{Table: "post_likes", PostID: postID})
	return true, nil
}

// AddComment appends a comment to the post.
func (s *FeedService) AddComment(ctx context.Context, postID, content string) (domain.PostComment, error) {
	user, err := s.auth.CurrentUser(ctx)
	if err != nil {
		return domain.PostComment{}, err
	}
	comment := domain.PostComment{
		ID:        uuid.NewString(),
		PostID:    postID,
		UserID:    user.ID,
		Content:   content,
		CreatedAt: s.clock(),
	}
	stored, err := s.feed.InsertComment(ctx, comment)
	if err != nil {
		return domain.PostComment{}, fmt.Errorf("comment: %w", err)
	}
	return stored, nil
}

// Subscribe streams feed insert notifications. Deliveries are at-least-once;
// consumers refetch the full feed per event rather than merging
// incrementally, so duplicates are harmless.
func (s *FeedService) Subscribe(ctx context.Context) (<-chan FeedEvent, func(), error) {
	if s.notifier == nil {
		ch := make(chan FeedEvent)
		close(ch)
		return ch, func() {}, nil
	}
	return s.notifier.Subscribe(ctx)
}

func (s *FeedService) publish(ctx context.Context, event FeedEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, event); err != nil {
		s.log.WithError(err).Warn("feed event publish failed")
	}
}
