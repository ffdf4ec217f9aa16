package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dailyquiz-service/internal/app"
	"dailyquiz-service/internal/domain"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const (
	uniqueViolation = "23505"

	quizDateConstraint    = "daily_quizzes_quiz_date_key"
	attemptUserConstraint = "quiz_attempts_user_quiz_key"
)

// Store persists quizzes, attempts, user quiz state and profiles. The unique
// constraints on daily_quizzes.quiz_date and quiz_attempts(user_id, quiz_id)
// are what keep concurrent servers consistent.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

var _ app.Store = (*Store)(nil)

const quizColumns = `id, quiz_date, question_ids, expires_at, created_at`

func (s *Store) QuizByDate(ctx context.Context, day time.Time) (domain.DailyQuiz, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+quizColumns+` FROM daily_quizzes WHERE quiz_date = $1`, domain.DayOf(day))
	return scanQuiz(row)
}

func (s *Store) QuizByID(ctx context.Context, quizID string) (domain.DailyQuiz, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+quizColumns+` FROM daily_quizzes WHERE id = $1`, quizID)
	return scanQuiz(row)
}

func (s *Store) CreateQuiz(ctx context.Context, quiz domain.DailyQuiz) error {
	ids, err := json.Marshal(quiz.QuestionIDs)
	if err != nil {
		return fmt.Errorf("marshal question ids: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO daily_quizzes (id, quiz_date, question_ids, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		quiz.ID, domain.DayOf(quiz.Date), ids, quiz.ExpiresAt, quiz.CreatedAt)
	if isUniqueViolation(err, quizDateConstraint) {
		return domain.ErrQuizExists
	}
	if err != nil {
		return fmt.Errorf("insert daily quiz: %w", err)
	}
	return nil
}

func scanQuiz(row pgx.Row) (domain.DailyQuiz, error) {
	var (
		quiz domain.DailyQuiz
		ids  []byte
	)
	err := row.Scan(&quiz.ID, &quiz.Date, &ids, &quiz.ExpiresAt, &quiz.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DailyQuiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.DailyQuiz{}, fmt.Errorf("scan daily quiz: %w", err)
	}
	if err := json.Unmarshal(ids, &quiz.QuestionIDs); err != nil {
		return domain.DailyQuiz{}, fmt.Errorf("unmarshal question ids: %w", err)
	}
	quiz.Date = domain.DayOf(quiz.Date)
	quiz.ExpiresAt = quiz.ExpiresAt.UTC()
	quiz.CreatedAt = quiz.CreatedAt.UTC()
	return quiz, nil
}

func (s *Store) AttemptFor(ctx context.Context, userID, quizID string) (domain.QuizAttempt, error) {
	var (
		a               domain.QuizAttempt
		results, badges []byte
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, quiz_id, results, score, correct_count, streak_after, xp_awarded, is_perfect, new_badges, completed_at
		FROM quiz_attempts WHERE user_id = $1 AND quiz_id = $2`, userID, quizID).
		Scan(&a.ID, &a.UserID, &a.QuizID, &results, &a.Score, &a.CorrectCount, &a.StreakAfter, &a.XPAwarded, &a.IsPerfect, &badges, &a.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.QuizAttempt{}, domain.ErrAttemptNotFound
	}
	if err != nil {
		return domain.QuizAttempt{}, fmt.Errorf("load attempt: %w", err)
	}
	if err := json.Unmarshal(results, &a.Results); err != nil {
		return domain.QuizAttempt{}, fmt.Errorf("unmarshal results: %w", err)
	}
	if err := json.Unmarshal(badges, &a.NewBadges); err != nil {
		return domain.QuizAttempt{}, fmt.Errorf("unmarshal badges: %w", err)
	}
	a.CompletedAt = a.CompletedAt.UTC()
	return a, nil
}

// RecordAttempt locks the user's state row, lets build derive the attempt and
// the next state, then writes both in one transaction. A second attempt for
// the same quiz fails on the unique constraint and rolls everything back.
func (s *Store) RecordAttempt(ctx context.Context, userID string, build app.AttemptBuilder) (domain.QuizAttempt, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.QuizAttempt{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `INSERT INTO user_quiz_states (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID); err != nil {
		return domain.QuizAttempt{}, fmt.Errorf("ensure state row: %w", err)
	}
	prior, err := scanState(tx.QueryRow(ctx, `
		SELECT user_id, streak, last_quiz_date, total_xp, badges
		FROM user_quiz_states WHERE user_id = $1 FOR UPDATE`, userID))
	if err != nil {
		return domain.QuizAttempt{}, err
	}

	attempt, next, err := build(prior)
	if err != nil {
		return domain.QuizAttempt{}, err
	}
	if attempt.UserID != userID {
		return domain.QuizAttempt{}, fmt.Errorf("attempt user %q does not match %q", attempt.UserID, userID)
	}

	results, err := json.Marshal(attempt.Results)
	if err != nil {
		return domain.QuizAttempt{}, fmt.Errorf("marshal results: %w", err)
	}
	newBadges, err := json.Marshal(nonNil(attempt.NewBadges))
	if err != nil {
		return domain.QuizAttempt{}, fmt.Errorf("marshal badges: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO quiz_attempts (id, user_id, quiz_id, results, score, correct_count, streak_after, xp_awarded, is_perfect, new_badges, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		attempt.ID, attempt.UserID, attempt.QuizID, results, attempt.Score, attempt.CorrectCount,
		attempt.StreakAfter, attempt.XPAwarded, attempt.IsPerfect, newBadges, attempt.CompletedAt)
	if isUniqueViolation(err, attemptUserConstraint) {
		return domain.QuizAttempt{}, domain.ErrAlreadyCompleted
	}
	if err != nil {
		return domain.QuizAttempt{}, fmt.Errorf("insert attempt: %w", err)
	}

	badges, err := json.Marshal(nonNil(next.Badges))
	if err != nil {
		return domain.QuizAttempt{}, fmt.Errorf("marshal state badges: %w", err)
	}
	var lastDate *time.Time
	if !next.LastQuizDate.IsZero() {
		d := domain.DayOf(next.LastQuizDate)
		lastDate = &d
	}
	if _, err := tx.Exec(ctx, `
		UPDATE user_quiz_states
		SET streak = $2, last_quiz_date = $3, total_xp = $4, badges = $5, updated_at = now()
		WHERE user_id = $1`, userID, next.Streak, lastDate, next.TotalXP, badges); err != nil {
		return domain.QuizAttempt{}, fmt.Errorf("update state: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.QuizAttempt{}, fmt.Errorf("commit attempt: %w", err)
	}
	return attempt, nil
}

func (s *Store) AggregateAttempts(ctx context.Context, filter domain.AttemptFilter) ([]domain.AttemptAggregate, error) {
	if filter.Restricted && len(filter.UserIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT user_id, MAX(score), COUNT(*), COUNT(*) FILTER (WHERE is_perfect), MAX(streak_after)
		FROM quiz_attempts`
	var args []interface{}
	if filter.Restricted {
		query += ` WHERE user_id = ANY($1)`
		args = append(args, filter.UserIDs)
	}
	query += ` GROUP BY user_id ORDER BY user_id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("aggregate attempts: %w", err)
	}
	defer rows.Close()

	var out []domain.AttemptAggregate
	for rows.Next() {
		var agg domain.AttemptAggregate
		if err := rows.Scan(&agg.UserID, &agg.MaxScore, &agg.TotalQuizzes, &agg.PerfectCount, &agg.CurrentStreak); err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		out = append(out, agg)
	}
	return out, rows.Err()
}

func (s *Store) QuizStates(ctx context.Context, userIDs []string) (map[string]domain.UserQuizState, error) {
	out := make(map[string]domain.UserQuizState, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, streak, last_quiz_date, total_xp, badges
		FROM user_quiz_states WHERE user_id = ANY($1)`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("load quiz states: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		st, err := scanState(rows)
		if err != nil {
			return nil, err
		}
		out[st.UserID] = st
	}
	return out, rows.Err()
}

func scanState(row pgx.Row) (domain.UserQuizState, error) {
	var (
		st       domain.UserQuizState
		lastDate *time.Time
		badges   []byte
	)
	if err := row.Scan(&st.UserID, &st.Streak, &lastDate, &st.TotalXP, &badges); err != nil {
		return domain.UserQuizState{}, fmt.Errorf("scan quiz state: %w", err)
	}
	if lastDate != nil {
		st.LastQuizDate = domain.DayOf(*lastDate)
	}
	if err := json.Unmarshal(badges, &st.Badges); err != nil {
		return domain.UserQuizState{}, fmt.Errorf("unmarshal badges: %w", err)
	}
	return st, nil
}

// Profile returns the stored profile; an unknown user has no city and follows nobody.
func (s *Store) Profile(ctx context.Context, userID string) (domain.Profile, error) {
	p := domain.Profile{UserID: userID}
	err := s.pool.QueryRow(ctx, `SELECT username, avatar, city FROM users WHERE id = $1`, userID).
		Scan(&p.Username, &p.Avatar, &p.City)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return domain.Profile{}, fmt.Errorf("load user: %w", err)
	}

	rows, err := s.pool.Query(ctx, `SELECT followee_id FROM follows WHERE follower_id = $1 ORDER BY followee_id`, userID)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("load follows: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return domain.Profile{}, fmt.Errorf("scan follow: %w", err)
		}
		p.Following = append(p.Following, id)
	}
	return p, rows.Err()
}

func (s *Store) Profiles(ctx context.Context, userIDs []string) (map[string]domain.Profile, error) {
	out := make(map[string]domain.Profile, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT id, username, avatar, city FROM users WHERE id = ANY($1)`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p domain.Profile
		if err := rows.Scan(&p.UserID, &p.Username, &p.Avatar, &p.City); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out[p.UserID] = p
	}
	return out, rows.Err()
}

func (s *Store) UserIDsInCity(ctx context.Context, city string) ([]string, error) {
	if city == "" {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT id FROM users WHERE city = $1 ORDER BY id`, city)
	if err != nil {
		return nil, fmt.Errorf("list city users: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraint
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
