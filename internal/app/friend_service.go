package app

import (
	"context"
	"fmt"
	"time"

	"bridgebites-service/internal/domain"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// defaultSuggestionLimit caps a suggestions page when the caller does not.
const defaultSuggestionLimit = 30

// FriendService implements the friend-graph operations: suggestions, the
// request lifecycle and removal.
type FriendService struct {
	auth        AuthProvider
	friendships FriendshipRepository
	profiles    ProfileRepository
	log         logrus.FieldLogger
	clock       func() time.Time
}

func NewFriendService(auth AuthProvider, friendships FriendshipRepository, profiles ProfileRepository, log logrus.FieldLogger) *FriendService {
	if log == nil {
		log = logrus.New()
	}
	return &FriendService{
		auth:        auth,
		friendships: friendships,
		profiles:    profiles,
		log:         log,
		clock:       time.Now,
	}
}

// Suggestions returns profiles excluding self and anyone already linked to
// the caller by a friendship row in either direction, any status.
func (s *FriendService) Suggestions(ctx context.Context, limit int) ([]domain.Profile, error) {
	user, err := s.auth.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > defaultSuggestionLimit {
		limit = defaultSuggestionLimit
	}

	rows, err := s.friendships.ListFriendships(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list friendships: %w", err)
	}
	exclude := []string{user.ID}
	seen := map[string]bool{user.ID: true}
	for _, f := range rows {
		for _, id := range []string{f.UserID, f.FriendID} {
			if id != "" && !seen[id] {
				seen[id] = true
				exclude = append(exclude, id)
			}
		}
	}
	return s.profiles.ListProfiles(ctx, exclude, limit)
}

// SendRequest inserts a pending friendship toward targetUserID. An empty or
// self target is invalid input; a row already linking the pair, in either
// direction and any status, is refused as a duplicate.
func (s *FriendService) SendRequest(ctx context.Context, targetUserID string) (domain.Friendship, error) {
	user, err := s.auth.CurrentUser(ctx)
	if err != nil {
		return domain.Friendship{}, err
	}
	if targetUserID == "" || targetUserID == user.ID {
		return domain.Friendship{}, domain.ErrInvalidFriendTarget
	}
	friendship := domain.Friendship{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		FriendID:  targetUserID,
		Status:    domain.FriendshipPending,
		CreatedAt: s.clock(),
	}
	stored, err := s.friendships.InsertFriendship(ctx, friendship)
	if err != nil {
		return domain.Friendship{}, err
	}
	return stored, nil
}

// IncomingRequests returns pending requests addressed to the caller, newest
// first, with requester profiles attached where available.
func (s *FriendService) IncomingRequests(ctx context.Context) ([]domain.FriendRequest, error) {
	user, err := s.auth.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.friendships.ListIncoming(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("incoming requests: %w", err)
	}

	requesterIDs := make([]string, 0, len(rows))
	for _, f := range rows {
		requesterIDs = append(requesterIDs, f.UserID)
	}
	byUser := s.profileIndex(ctx, requesterIDs)

	requests := make([]domain.FriendRequest, 0, len(rows))
	for _, f := range rows {
		requests = append(requests, domain.FriendRequest{Friendship: f, Requester: byUser[f.UserID]})
	}
	return requests, nil
}

// AcceptRequest flips a pending row to accepted. Only the recipient can
// accept; anything else reports the row as not found.
func (s *FriendService) AcceptRequest(ctx context.Context, requestID string) error {
	user, err := s.auth.CurrentUser(ctx)
	if err != nil {
		return err
	}
	ok, err := s.friendships.AcceptFriendship(ctx, requestID, user.ID)
	if err != nil {
		return fmt.Errorf("accept request: %w", err)
	}
	if !ok {
		return domain.ErrFriendshipNotFound
	}
	return nil
}

// DeclineRequest deletes a pending row addressed to the caller.
func (s *FriendService) DeclineRequest(ctx context.Context, requestID string) error {
	user, err := s.auth.CurrentUser(ctx)
	if err != nil {
		return err
	}
	ok, err := s.friendships.DeleteFriendship(ctx, requestID, user.ID)
	if err != nil {
		return fmt.Errorf("decline request: %w", err)
	}
	if !ok {
		return domain.ErrFriendshipNotFound
	}
	return nil
}

// Friends lists accepted friendships normalized to the caller's perspective.
func (s *FriendService) Friends(ctx context.Context) ([]domain.Friend, error) {
	user, err := s.auth.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.friendships.ListFriendships(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}

	accepted := rows[:0]
	ids := make([]string, 0, len(rows))
	for _, f := range rows {
		if f.Status == domain.FriendshipAccepted {
			accepted = append(accepted, f)
			ids = append(ids, f.OtherSide(user.ID))
		}
	}
	byUser := s.profileIndex(ctx, ids)

	friends := make([]domain.Friend, 0, len(accepted))
	for _, f := range accepted {
		other := f.OtherSide(user.ID)
		friends = append(friends, domain.Friend{
			FriendshipID: f.ID,
			UserID:       other,
			Profile:      byUser[other],
			Since:        f.CreatedAt,
		})
	}
	return friends, nil
}

// RemoveFriend deletes a friendship row. The caller must be on one side of
// the row; a bare id is not enough.
func (s *FriendService) RemoveFriend(ctx context.Context, friendshipID string) error {
	user, err := s.auth.CurrentUser(ctx)
	if err != nil {
		return err
	}
	ok, err := s.friendships.DeleteFriendship(ctx, friendshipID, user.ID)
	if err != nil {
		return fmt.Errorf("remove friend: %w", err)
	}
	if !ok {
		return domain.ErrFriendshipNotFound
	}
	return nil
}

// profileIndex resolves profile summaries best-effort; a failed lookup only
// degrades display.
func (s *FriendService) profileIndex(ctx context.Context, userIDs []string) map[string]*domain.ProfileSummary {
	byUser := make(map[string]*domain.ProfileSummary, len(userIDs))
	if len(userIDs) == 0 {
		return byUser
	}
	profiles, err := s.profiles.GetProfiles(ctx, userIDs)
	if err != nil {
		s.log.WithError(err).Warn("profile lookup failed")
		return byUser
	}
	for _, p := range profiles {
		byUser[p.UserID] = p.Summary()
	}
	return byUser
}
