package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bridgebites-service/internal/app"
	"bridgebites-service/internal/domain"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const pgUniqueViolation = "23505"

// Store implements the row-store repositories over Postgres.
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ app.ChallengeRepository  = (*Store)(nil)
	_ app.ProfileRepository    = (*Store)(nil)
	_ app.AttemptRepository    = (*Store)(nil)
	_ app.FeedRepository       = (*Store)(nil)
	_ app.FriendshipRepository = (*Store)(nil)
)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const challengeColumns = `id, title, description, type, country, flag, points, difficulty, options, correct_answer, is_daily, created_at`

func (s *Store) ListChallenges(ctx context.Context) ([]domain.Challenge, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+challengeColumns+` FROM challenges ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list challenges: %w", err)
	}
	defer rows.Close()

	var out []domain.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetChallenge(ctx context.Context, id string) (domain.Challenge, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+challengeColumns+` FROM challenges WHERE id=$1`, id)
	c, err := scanChallenge(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Challenge{}, domain.ErrChallengeNotFound
	}
	return c, err
}

// UpsertChallenges writes seed rows, replacing existing ids.
func (s *Store) UpsertChallenges(ctx context.Context, challenges []domain.Challenge) error {
	for _, c := range challenges {
		var options []byte
		if c.Options != nil {
			data, err := json.Marshal(c.Options)
			if err != nil {
				return fmt.Errorf("marshal options: %w", err)
			}
			options = data
		}
		_, err := s.pool.Exec(ctx, `
			INSERT INTO challenges (`+challengeColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
			ON CONFLICT (id) DO UPDATE SET
				title=EXCLUDED.title, description=EXCLUDED.description, type=EXCLUDED.type,
				country=EXCLUDED.country, flag=EXCLUDED.flag, points=EXCLUDED.points,
				difficulty=EXCLUDED.difficulty, options=EXCLUDED.options,
				correct_answer=EXCLUDED.correct_answer, is_daily=EXCLUDED.is_daily`,
			c.ID, c.Title, c.Description, string(c.Type), c.Country, c.Flag, c.Points,
			c.Difficulty, options, c.CorrectAnswer, c.IsDaily, c.CreatedAt)
		if err != nil {
			return fmt.Errorf("upsert challenge %s: %w", c.ID, err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanChallenge(row rowScanner) (domain.Challenge, error) {
	var (
		c       domain.Challenge
		ctype   string
		options []byte
	)
	err := row.Scan(&c.ID, &c.Title, &c.Description, &ctype, &c.Country, &c.Flag,
		&c.Points, &c.Difficulty, &options, &c.CorrectAnswer, &c.IsDaily, &c.CreatedAt)
	if err != nil {
		return domain.Challenge{}, err
	}
	c.Type = domain.ChallengeType(ctype)
	if len(options) > 0 {
		var choices domain.ChoiceSet
		if err := json.Unmarshal(options, &choices); err == nil && len(choices.Choices) > 0 {
			c.Options = &choices
		}
	}
	return c, nil
}

const profileColumns = `id, user_id, username, display_name, level, total_points, current_streak, max_streak, countries_bridged, created_at`

func (s *Store) GetProfile(ctx context.Context, userID string) (domain.Profile, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id=$1`, userID)
	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	return p, err
}

// InsertProfile creates the profile row for a new user.
func (s *Store) InsertProfile(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO profiles (`+profileColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		p.ID, p.UserID, p.Username, p.DisplayName, p.Level, p.TotalPoints,
		p.CurrentStreak, p.MaxStreak, p.CountriesBridged, p.CreatedAt)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("insert profile: %w", err)
	}
	return p, nil
}

// ApplyStats performs the whole stat update server-side in one conditional
// UPDATE, so concurrent submissions increment rather than overwrite.
func (s *Store) ApplyStats(ctx context.Context, delta app.StatsDelta) (domain.Profile, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE profiles SET
			total_points   = total_points + $2,
			current_streak = COALESCE($3::int, current_streak),
			max_streak     = GREATEST(max_streak, COALESCE($3::int, max_streak)),
			countries_bridged = CASE
				WHEN $4::text = '' OR $4::text = ANY(countries_bridged) THEN countries_bridged
				ELSE array_append(countries_bridged, $4::text)
			END
		WHERE user_id = $1
		RETURNING `+profileColumns,
		delta.UserID, delta.Points, delta.Streak, delta.Country)
	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Profile{}, domain.ErrProfileNotFound
	}
	if err != nil {
		return domain.Profile{}, fmt.Errorf("apply stats: %w", err)
	}
	return p, nil
}

func (s *Store) ListProfiles(ctx context.Context, exclude []string, limit int) ([]domain.Profile, error) {
	if len(exclude) == 0 {
		exclude = []string{""}
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+profileColumns+` FROM profiles
		WHERE NOT (user_id = ANY($1))
		ORDER BY created_at DESC
		LIMIT $2`, exclude, limit)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()
	return collectProfiles(rows)
}

func (s *Store) GetProfiles(ctx context.Context, userIDs []string) ([]domain.Profile, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT `+profileColumns+` FROM profiles WHERE user_id = ANY($1)`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("get profiles: %w", err)
	}
	defer rows.Close()
	return collectProfiles(rows)
}

func collectProfiles(rows pgx.Rows) ([]domain.Profile, error) {
	var out []domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanProfile(row rowScanner) (domain.Profile, error) {
	var p domain.Profile
	err := row.Scan(&p.ID, &p.UserID, &p.Username, &p.DisplayName, &p.Level,
		&p.TotalPoints, &p.CurrentStreak, &p.MaxStreak, &p.CountriesBridged, &p.CreatedAt)
	return p, err
}

func (s *Store) InsertAttempt(ctx context.Context, a domain.Attempt) (domain.Attempt, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_challenges (id, user_id, challenge_id, user_answer, is_correct, points_earned, completed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		a.ID, a.UserID, a.ChallengeID, a.UserAnswer, a.IsCorrect, a.PointsEarned, a.CompletedAt)
	if err != nil {
		return domain.Attempt{}, fmt.Errorf("insert attempt: %w", err)
	}
	return a, nil
}

func (s *Store) ListRecentAttempts(ctx context.Context, userID string, limit int) ([]domain.Attempt, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, challenge_id, user_answer, is_correct, points_earned, completed_at
		FROM user_challenges WHERE user_id=$1
		ORDER BY completed_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent attempts: %w", err)
	}
	defer rows.Close()

	var out []domain.Attempt
	for rows.Next() {
		var a domain.Attempt
		if err := rows.Scan(&a.ID, &a.UserID, &a.ChallengeID, &a.UserAnswer, &a.IsCorrect, &a.PointsEarned, &a.CompletedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) LastCorrectAt(ctx context.Context, userID string) (*time.Time, error) {
	var t time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT completed_at FROM user_challenges
		WHERE user_id=$1 AND is_correct
		ORDER BY completed_at DESC LIMIT 1`, userID).Scan(&t)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last correct attempt: %w", err)
	}
	return &t, nil
}

func (s *Store) InsertPost(ctx context.Context, p domain.FeedPost) (domain.FeedPost, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO feed_posts (id, user_id, challenge_id, action_description, points_earned, streak_count, country, flag, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		p.ID, p.UserID, p.ChallengeID, p.ActionDescription, p.PointsEarned, p.StreakCount, p.Country, p.Flag, p.CreatedAt)
	if err != nil {
		return domain.FeedPost{}, fmt.Errorf("insert feed post: %w", err)
	}
	return p, nil
}

func (s *Store) ListEntries(ctx context.Context, limit int) ([]domain.FeedEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, challenge_id, action_description, points_earned, streak_count, country, flag, created_at
		FROM feed_posts ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list feed posts: %w", err)
	}
	defer rows.Close()

	var entries []domain.FeedEntry
	var ids []string
	for rows.Next() {
		var p domain.FeedPost
		if err := rows.Scan(&p.ID, &p.UserID, &p.ChallengeID, &p.ActionDescription, &p.PointsEarned, &p.StreakCount, &p.Country, &p.Flag, &p.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, domain.FeedEntry{FeedPost: p, Likes: []domain.PostLike{}, Comments: []domain.PostComment{}})
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return entries, nil
	}

	byPost := make(map[string]*domain.FeedEntry, len(entries))
	for i := range entries {
		byPost[entries[i].ID] = &entries[i]
	}

	likeRows, err := s.pool.Query(ctx, `
		SELECT id, post_id, user_id, created_at FROM post_likes WHERE post_id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("list likes: %w", err)
	}
	defer likeRows.Close()
	for likeRows.Next() {
		var l domain.PostLike
		if err := likeRows.Scan(&l.ID, &l.PostID, &l.UserID, &l.CreatedAt); err != nil {
			return nil, err
		}
		if entry, ok := byPost[l.PostID]; ok {
			entry.Likes = append(entry.Likes, l)
		}
	}
	if err := likeRows.Err(); err != nil {
		return nil, err
	}

	commentRows, err := s.pool.Query(ctx, `
		SELECT id, post_id, user_id, content, created_at FROM post_comments
		WHERE post_id = ANY($1) ORDER BY created_at ASC`, ids)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer commentRows.Close()
	for commentRows.Next() {
		var c domain.PostComment
		if err := commentRows.Scan(&c.ID, &c.PostID, &c.UserID, &c.Content, &c.CreatedAt); err != nil {
			return nil, err
		}
		if entry, ok := byPost[c.PostID]; ok {
			entry.Comments = append(entry.Comments, c)
		}
	}
	return entries, commentRows.Err()
}

func (s *Store) GetLike(ctx context.Context, postID, userID string) (*domain.PostLike, error) {
	var l domain.PostLike
	err := s.pool.QueryRow(ctx, `
		SELECT id, post_id, user_id, created_at FROM post_likes
		WHERE post_id=$1 AND user_id=$2`, postID, userID).
		Scan(&l.ID, &l.PostID, &l.UserID, &l.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get like: %w", err)
	}
	return &l, nil
}

func (s *Store) InsertLike(ctx context.Context, l domain.PostLike) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO post_likes (id, post_id, user_id, created_at)
		VALUES ($1,$2,$3,$4) ON CONFLICT (post_id, user_id) DO NOTHING`,
		l.ID, l.PostID, l.UserID, l.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.ErrPostNotFound
		}
		return fmt.Errorf("insert like: %w", err)
	}
	return nil
}

func (s *Store) DeleteLike(ctx context.Context, postID, userID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM post_likes WHERE post_id=$1 AND user_id=$2`, postID, userID)
	if err != nil {
		return fmt.Errorf("delete like: %w", err)
	}
	return nil
}

func (s *Store) InsertComment(ctx context.Context, c domain.PostComment) (domain.PostComment, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO post_comments (id, post_id, user_id, content, created_at)
		VALUES ($1,$2,$3,$4,$5)`,
		c.ID, c.PostID, c.UserID, c.Content, c.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return domain.PostComment{}, domain.ErrPostNotFound
		}
		return domain.PostComment{}, fmt.Errorf("insert comment: %w", err)
	}
	return c, nil
}

func (s *Store) ListFriendships(ctx context.Context, userID string) ([]domain.Friendship, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, friend_id, status, created_at FROM friendships
		WHERE user_id=$1 OR friend_id=$1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list friendships: %w", err)
	}
	defer rows.Close()
	return collectFriendships(rows)
}

func (s *Store) InsertFriendship(ctx context.Context, f domain.Friendship) (domain.Friendship, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO friendships (id, user_id, friend_id, status, created_at)
		VALUES ($1,$2,$3,$4,$5)`,
		f.ID, f.UserID, f.FriendID, f.Status, f.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.Friendship{}, domain.ErrFriendshipExists
		}
		return domain.Friendship{}, fmt.Errorf("insert friendship: %w", err)
	}
	return f, nil
}

func (s *Store) ListIncoming(ctx context.Context, userID string) ([]domain.Friendship, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, friend_id, status, created_at FROM friendships
		WHERE friend_id=$1 AND status=$2
		ORDER BY created_at DESC`, userID, domain.FriendshipPending)
	if err != nil {
		return nil, fmt.Errorf("list incoming: %w", err)
	}
	defer rows.Close()
	return collectFriendships(rows)
}

func (s *Store) AcceptFriendship(ctx context.Context, id, recipientID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE friendships SET status=$3
		WHERE id=$1 AND friend_id=$2 AND status=$4`,
		id, recipientID, domain.FriendshipAccepted, domain.FriendshipPending)
	if err != nil {
		return false, fmt.Errorf("accept friendship: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) DeleteFriendship(ctx context.Context, id, memberID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM friendships WHERE id=$1 AND (user_id=$2 OR friend_id=$2)`, id, memberID)
	if err != nil {
		return false, fmt.Errorf("delete friendship: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func collectFriendships(rows pgx.Rows) ([]domain.Friendship, error) {
	var out []domain.Friendship
	for rows.Next() {
		var f domain.Friendship
		if err := rows.Scan(&f.ID, &f.UserID, &f.FriendID, &f.Status, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
