package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"bridgebites-service/internal/domain"
	"bridgebites-service/internal/metrics"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// maxDailyRetries bounds the re-pick loop that avoids repeating the previous
// daily challenge; after this many collisions a repeat is accepted.
const maxDailyRetries = 10

// SessionRepository abstracts how user sessions are stored (in-memory,
// Redis-marked, etc).
type SessionRepository interface {
	GetOrCreate(userID string, create func() *Session) *Session
	Get(userID string) (*Session, bool)
	DeleteIfEmpty(userID string)
}

// SessionConfig wires a SessionService. Auth and the repositories are
// required; Notifier is optional and Log, Metrics and Clock default when nil.
type SessionConfig struct {
	Auth       AuthProvider
	Sessions   SessionRepository
	Challenges ChallengeRepository
	Profiles   ProfileRepository
	Attempts   AttemptRepository
	Feed       FeedRepository
	Notifier   FeedNotifier
	Log        logrus.FieldLogger
	Metrics    *metrics.Metrics
	Clock      func() time.Time
}

// SessionService owns the challenge catalog and the per-user daily-challenge
// sessions, and orchestrates attempt recording end to end.
type SessionService struct {
	auth       AuthProvider
	sessions   SessionRepository
	challenges ChallengeRepository
	profiles   ProfileRepository
	attempts   AttemptRepository
	feed       FeedRepository
	notifier   FeedNotifier
	log        logrus.FieldLogger
	metrics    *metrics.Metrics
	clock      func() time.Time

	mu      sync.Mutex
	rnd     *rand.Rand
	catalog []domain.Challenge
}

func NewSessionService(cfg SessionConfig) *SessionService {
	if cfg.Log == nil {
		cfg.Log = logrus.New()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.New(prometheus.NewRegistry())
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &SessionService{
		auth:       cfg.Auth,
		sessions:   cfg.Sessions,
		challenges: cfg.Challenges,
		profiles:   cfg.Profiles,
		attempts:   cfg.Attempts,
		feed:       cfg.Feed,
		notifier:   cfg.Notifier,
		log:        cfg.Log,
		metrics:    cfg.Metrics,
		clock:      cfg.Clock,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// DailyPick is the session-local daily challenge: the stored challenge plus
// an independently shuffled copy of its choices. The stored challenge is
// never mutated, so other sessions see their own unbiased order.
type DailyPick struct {
	Challenge domain.Challenge `json:"challenge"`
	Choices   []string         `json:"choices,omitempty"`
}

// Snapshot is the session state broadcast to subscribers so independent
// consumers observe one source of truth.
type Snapshot struct {
	Profile   domain.Profile `json:"profile"`
	Daily     *DailyPick     `json:"daily,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// AttemptResult reports the outcome of RecordAttempt.
type AttemptResult struct {
	Recorded      bool            `json:"recorded"`
	AwardedFull   bool            `json:"awarded_full"`
	PointsAwarded int             `json:"points_awarded"`
	Profile       *domain.Profile `json:"profile,omitempty"`
	// ProfileStale is set when the attempt is durable but the profile update
	// failed; displayed scores may lag until the next refetch.
	ProfileStale bool `json:"profile_stale,omitempty"`
}

// Open binds a session for the authenticated user: loads the catalog if
// needed, fetches the profile and selects a daily challenge.
func (s *SessionService) Open(ctx context.Context) (Snapshot, error) {
	user, err := s.auth.CurrentUser(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	if err := s.ensureCatalog(ctx); err != nil {
		return Snapshot{}, err
	}
	profile, err := s.profiles.GetProfile(ctx, user.ID)
	if err != nil {
		return Snapshot{}, err
	}

	session := s.sessions.GetOrCreate(user.ID, func() *Session {
		return newSession(user.ID, s.clock)
	})
	session.mu.Lock()
	defer session.mu.Unlock()
	session.profile = profile
	if session.daily == nil {
		if pick, ok := s.pickDaily(""); ok {
			session.daily = pick
		}
	}
	return session.snapshotLocked(), nil
}

// LoadChallenges refreshes the catalog, newest first. On failure the
// previous catalog stays intact and the error is surfaced; there is no retry
// beyond this single attempt.
func (s *SessionService) LoadChallenges(ctx context.Context) ([]domain.Challenge, error) {
	catalog, err := s.challenges.ListChallenges(ctx)
	if err != nil {
		return nil, fmt.Errorf("load challenges: %w", err)
	}
	s.mu.Lock()
	s.catalog = catalog
	s.mu.Unlock()
	return catalog, nil
}

// Daily returns the session's current daily pick.
func (s *SessionService) Daily(ctx context.Context) (*DailyPick, error) {
	session, err := s.boundSession(ctx)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	return session.daily, nil
}

// Advance reselects the daily challenge, avoiding the current pick for a
// bounded number of retries before tolerating a repeat.
func (s *SessionService) Advance(ctx context.Context) (*DailyPick, error) {
	session, err := s.boundSession(ctx)
	if err != nil {
		return nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	avoid := ""
	if session.daily != nil {
		avoid = session.daily.Challenge.ID
	}
	pick, ok := s.pickDaily(avoid)
	if !ok {
		return nil, domain.ErrChallengeNotFound
	}
	session.daily = pick
	session.broadcastLocked()
	return pick, nil
}

// RecordAttempt scores and persists one submission. Each submission inserts
// a fresh attempt row, repeat attempts on the same challenge included. The
// session lock serializes attempts for one profile so interleaved
// read-modify-write cannot lose updates.
func (s *SessionService) RecordAttempt(ctx context.Context, challengeID, answer string) (AttemptResult, error) {
	user, err := s.auth.CurrentUser(ctx)
	if err != nil {
		return AttemptResult{}, err
	}
	session, err := s.ensureSession(ctx, user)
	if err != nil {
		return AttemptResult{}, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()

	challenge, err := s.findChallenge(ctx, challengeID)
	if err != nil {
		return AttemptResult{}, err
	}
	matcher, err := MatcherFor(challenge)
	if err != nil {
		return AttemptResult{}, err
	}
	correct := matcher.Match(answer)
	points := PointsAwarded(challenge.Points, correct)
	now := s.clock()

	var lastCorrect *time.Time
	if correct && points > 0 {
		lastCorrect, err = s.attempts.LastCorrectAt(ctx, user.ID)
		if err != nil {
			// Streak history unavailable; score as a fresh streak rather
			// than failing the whole attempt.
			s.log.WithError(err).Warn("last correct attempt lookup failed")
			lastCorrect = nil
		}
	}

	attempt := domain.Attempt{
		ID:           uuid.NewString(),
		UserID:       user.ID,
		ChallengeID:  challenge.ID,
		UserAnswer:   answer,
		IsCorrect:    correct,
		PointsEarned: points,
		CompletedAt:  now,
	}
	if _, err := s.attempts.InsertAttempt(ctx, attempt); err != nil {
		s.metrics.AttemptFailures.Inc()
		s.log.WithError(err).WithField("challenge_id", challenge.ID).Error("attempt insert failed")
		return AttemptResult{}, fmt.Errorf("%w: %v", domain.ErrAttemptPersistence, err)
	}

	if points == 0 {
		s.metrics.AttemptsRecorded.WithLabelValues("zero_points").Inc()
		profile := session.profile
		return AttemptResult{Recorded: true, PointsAwarded: 0, Profile: &profile}, nil
	}

	delta, _ := ApplyOutcome(session.profile, challenge, correct, lastCorrect, now)
	updated, err := s.profiles.ApplyStats(ctx, delta)
	if err != nil {
		s.metrics.ProfileUpdateFailures.Inc()
		s.log.WithError(err).WithField("user_id", user.ID).Error("profile update failed after durable attempt")
		profile := session.profile
		return AttemptResult{
			Recorded:      true,
			AwardedFull:   correct,
			PointsAwarded: points,
			Profile:       &profile,
			ProfileStale:  true,
		}, fmt.Errorf("%w: %v", domain.ErrProfilePersistence, err)
	}
	session.profile = updated

	s.emitFeedPost(ctx, user, challenge, points, updated.CurrentStreak, now)

	label := "incorrect"
	if correct {
		label = "correct"
	}
	s.metrics.AttemptsRecorded.WithLabelValues(label).Inc()
	session.broadcastLocked()
	return AttemptResult{
		Recorded:      true,
		AwardedFull:   correct,
		PointsAwarded: points,
		Profile:       &updated,
	}, nil
}

// RecentAttempts returns the user's attempts newest first, joined with
// challenge summaries. Rows whose challenge left the catalog are backfilled
// with an individual fetch; if that also misses, the summary stays nil.
func (s *SessionService) RecentAttempts(ctx context.Context, limit int) ([]domain.AttemptView, error) {
	user, err := s.auth.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}
	attempts, err := s.attempts.ListRecentAttempts(ctx, user.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent attempts: %w", err)
	}

	s.mu.Lock()
	byID := make(map[string]domain.Challenge, len(s.catalog))
	for _, c := range s.catalog {
		byID[c.ID] = c
	}
	s.mu.Unlock()

	views := make([]domain.AttemptView, 0, len(attempts))
	for _, attempt := range attempts {
		view := domain.AttemptView{Attempt: attempt}
		if c, ok := byID[attempt.ChallengeID]; ok {
			view.Challenge = c.Summary()
		} else if c, err := s.challenges.GetChallenge(ctx, attempt.ChallengeID); err == nil {
			view.Challenge = c.Summary()
		} else if !errors.Is(err, domain.ErrChallengeNotFound) {
			s.log.WithError(err).WithField("challenge_id", attempt.ChallengeID).Warn("challenge backfill failed")
		}
		views = append(views, view)
	}
	return views, nil
}

// Subscribe streams session snapshots for the authenticated user. The caller
// must invoke the returned cancel function.
func (s *SessionService) Subscribe(ctx context.Context) (<-chan Snapshot, func(), error) {
	user, err := s.auth.CurrentUser(ctx)
	if err != nil {
		return nil, nil, err
	}
	session, err := s.ensureSession(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := session.subscribe()
	return ch, cancel, nil
}

// Leave drops the user's session once no subscribers remain.
func (s *SessionService) Leave(userID string) {
	s.sessions.DeleteIfEmpty(userID)
}

func (s *SessionService) boundSession(ctx context.Context) (*Session, error) {
	user, err := s.auth.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	return s.ensureSession(ctx, user)
}

func (s *SessionService) ensureSession(ctx context.Context, user domain.User) (*Session, error) {
	if session, ok := s.sessions.Get(user.ID); ok {
		return session, nil
	}
	if _, err := s.Open(ctx); err != nil {
		return nil, err
	}
	session, ok := s.sessions.Get(user.ID)
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return session, nil
}

func (s *SessionService) ensureCatalog(ctx context.Context) error {
	s.mu.Lock()
	loaded := len(s.catalog) > 0
	s.mu.Unlock()
	if loaded {
		return nil
	}
	_, err := s.LoadChallenges(ctx)
	return err
}

func (s *SessionService) findChallenge(ctx context.Context, id string) (domain.Challenge, error) {
	s.mu.Lock()
	for _, c := range s.catalog {
		if c.ID == id {
			s.mu.Unlock()
			return c, nil
		}
	}
	s.mu.Unlock()
	return s.challenges.GetChallenge(ctx, id)
}

// pickDaily selects uniformly from the daily-flagged pool, falling back to
// the full catalog so a daily challenge is always available. The avoid id is
// skipped for a bounded number of retries.
func (s *SessionService) pickDaily(avoid string) (*DailyPick, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pool := make([]domain.Challenge, 0, len(s.catalog))
	for _, c := range s.catalog {
		if c.IsDaily {
			pool = append(pool, c)
		}
	}
	if len(pool) == 0 {
		pool = s.catalog
	}
	if len(pool) == 0 {
		return nil, false
	}

	chosen := pool[s.rnd.Intn(len(pool))]
	if avoid != "" && len(pool) > 1 {
		for i := 0; i < maxDailyRetries && chosen.ID == avoid; i++ {
			chosen = pool[s.rnd.Intn(len(pool))]
		}
	}

	pick := &DailyPick{Challenge: chosen}
	if chosen.Options.Usable() {
		pick.Choices = s.shuffleLocked(chosen.Options.Choices)
	}
	return pick, true
}

// shuffleLocked returns a uniformly shuffled copy; the input is untouched.
func (s *SessionService) shuffleLocked(choices []string) []string {
	out := append([]string(nil), choices...)
	for i := len(out) - 1; i > 0; i-- {
		j := s.rnd.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// emitFeedPost is best-effort: failures are logged and counted, never
// surfaced to the caller.
func (s *SessionService) emitFeedPost(ctx context.Context, user domain.User, challenge domain.Challenge, points, streak int, now time.Time) {
	post := domain.FeedPost{
		ID:                uuid.NewString(),
		UserID:            user.ID,
		ChallengeID:       challenge.ID,
		ActionDescription: fmt.Sprintf("completed the %s", challenge.Title),
		PointsEarned:      points,
		StreakCount:       streak,
		Country:           challenge.Country,
		Flag:              challenge.Flag,
		CreatedAt:         now,
	}
	stored, err := s.feed.InsertPost(ctx, post)
	if err != nil {
		s.metrics.FeedPostFailures.Inc()
		s.log.WithError(err).WithField("challenge_id", challenge.ID).Warn("feed post dropped")
		return
	}
	if s.notifier != nil {
		if err := s.notifier.Publish(ctx, FeedEvent{Table: "feed_posts", PostID: stored.ID}); err != nil {
			s.log.WithError(err).Warn("feed event publish failed")
		} else {
			s.metrics.FeedEventsPublished.Inc()
		}
	}
}

// Session is the in-memory per-user challenge session.
type Session struct {
	userID      string
	createdAt   time.Time
	now         func() time.Time
	mu          sync.Mutex
	profile     domain.Profile
	daily       *DailyPick
	subscribers map[chan Snapshot]struct{}
}

// NewSession is exported for infrastructure layers that need to seed
// sessions.
func NewSession(userID string) *Session {
	return newSession(userID, time.Now)
}

func newSession(userID string, now func() time.Time) *Session {
	return &Session{
		userID:      userID,
		createdAt:   now(),
		now:         now,
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

// IsEmpty reports whether the session has no subscribers.
func (s *Session) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscribers) == 0
}

func (s *Session) subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	initial := s.snapshotLocked()
	s.mu.Unlock()

	ch <- initial

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		Profile:   s.profile,
		Daily:     s.daily,
		UpdatedAt: s.now(),
	}
}

func (s *Session) broadcastLocked() {
	snap := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the stale snapshot so a slow consumer cannot block the
			// broadcast.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}
