package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dailyquiz-service/internal/domain"
	"dailyquiz-service/internal/logger"
	"github.com/google/uuid"
)

// Submitter records attempts. It is the only component that mutates attempts
// and user quiz state.
type Submitter struct {
	quizzes   QuizStore
	bank      QuestionBank
	attempts  AttemptStore
	listeners []AttemptListener
	log       *logger.Logger
	clock     func() time.Time
	grace     time.Duration
}

func NewSubmitter(quizzes QuizStore, bank QuestionBank, attempts AttemptStore, log *logger.Logger, clock func() time.Time, grace time.Duration, listeners ...AttemptListener) *Submitter {
	if clock == nil {
		clock = time.Now
	}
	return &Submitter{
		quizzes:   quizzes,
		bank:      bank,
		attempts:  attempts,
		listeners: listeners,
		log:       log.With("component", "submitter"),
		clock:     clock,
		grace:     grace,
	}
}

// Submit scores answers for quizID and records the attempt together with the
// user's new streak, XP and badges. Either everything is written or nothing.
func (s *Submitter) Submit(ctx context.Context, userID, quizID string, answers map[string]domain.SubmittedAnswer) (domain.SubmissionResult, error) {
	if userID == "" {
		return domain.SubmissionResult{}, domain.ErrUnauthenticated
	}

	_, err := s.attempts.AttemptFor(ctx, userID, quizID)
	switch {
	case err == nil:
		return domain.SubmissionResult{}, domain.ErrAlreadyCompleted
	case !errors.Is(err, domain.ErrAttemptNotFound):
		return domain.SubmissionResult{}, fmt.Errorf("check attempt: %w", err)
	}

	quiz, questions, err := s.loadQuiz(ctx, quizID)
	if err != nil {
		return domain.SubmissionResult{}, err
	}
	now := s.clock().UTC()
	if now.After(quiz.ExpiresAt.Add(s.grace)) {
		return domain.SubmissionResult{}, domain.ErrQuizExpired
	}

	results, score, correct := scoreQuiz(questions, answers)
	isPerfect := correct == len(questions)

	attempt, err := s.attempts.RecordAttempt(ctx, userID, func(prior domain.UserQuizState) (domain.QuizAttempt, domain.UserQuizState, error) {
		outcome := EvaluateStreak(prior, quiz.Date, isPerfect)
		xp := score + outcome.XPBonus
		attempt := domain.QuizAttempt{
			ID:           uuid.NewString(),
			UserID:       userID,
			QuizID:       quiz.ID,
			Results:      results,
			Score:        score,
			CorrectCount: correct,
			StreakAfter:  outcome.Streak,
			XPAwarded:    xp,
			IsPerfect:    isPerfect,
			NewBadges:    outcome.NewBadges,
			CompletedAt:  now,
		}
		return attempt, advanceState(prior, quiz.Date, outcome, xp), nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyCompleted) {
			s.log.Info("duplicate submission rejected by store", "user_id", userID, "quiz_id", quizID)
			return domain.SubmissionResult{}, domain.ErrAlreadyCompleted
		}
		return domain.SubmissionResult{}, fmt.Errorf("record attempt: %w", err)
	}

	s.log.Info("attempt recorded",
		"user_id", userID,
		"quiz_id", quiz.ID,
		"score", attempt.Score,
		"streak", attempt.StreakAfter,
		"xp", attempt.XPAwarded,
	)
	s.notify(ctx, attempt)
	return buildResult(quiz, questions, attempt), nil
}

// Result re-reads a recorded attempt. The stored attempt is authoritative, so
// a client that lost the response to Submit gets the same payload here.
func (s *Submitter) Result(ctx context.Context, userID, quizID string) (domain.SubmissionResult, error) {
	if userID == "" {
		return domain.SubmissionResult{}, domain.ErrUnauthenticated
	}
	attempt, err := s.attempts.AttemptFor(ctx, userID, quizID)
	if err != nil {
		if errors.Is(err, domain.ErrAttemptNotFound) {
			return domain.SubmissionResult{}, err
		}
		return domain.SubmissionResult{}, fmt.Errorf("load attempt: %w", err)
	}
	quiz, questions, err := s.loadQuiz(ctx, quizID)
	if err != nil {
		return domain.SubmissionResult{}, err
	}
	return buildResult(quiz, questions, attempt), nil
}

func (s *Submitter) loadQuiz(ctx context.Context, quizID string) (domain.DailyQuiz, []domain.Question, error) {
	quiz, err := s.quizzes.QuizByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, domain.ErrQuizNotFound) {
			return domain.DailyQuiz{}, nil, err
		}
		return domain.DailyQuiz{}, nil, fmt.Errorf("load quiz: %w", err)
	}
	questions, err := resolveQuestions(ctx, s.bank, quiz)
	if err != nil {
		return domain.DailyQuiz{}, nil, err
	}
	return quiz, questions, nil
}

// notify runs after the attempt is durable; listener failures are logged only.
func (s *Submitter) notify(ctx context.Context, attempt domain.QuizAttempt) {
	event := attempt.Event()
	for _, l := range s.listeners {
		if err := l.AttemptRecorded(ctx, event); err != nil {
			s.log.Warn("attempt listener failed", "attempt_id", attempt.ID, "error", err)
		}
	}
}

func buildResult(quiz domain.DailyQuiz, questions []domain.Question, attempt domain.QuizAttempt) domain.SubmissionResult {
	byQuestion := make(map[string]domain.QuestionResult, len(attempt.Results))
	for _, r := range attempt.Results {
		byQuestion[r.QuestionID] = r
	}

	reviews := make([]domain.QuestionReview, 0, len(questions))
	for _, q := range questions {
		r := byQuestion[q.ID]
		reviews = append(reviews, domain.QuestionReview{
			ID:            q.ID,
			Prompt:        q.Prompt,
			CorrectAnswer: q.Answer,
			Explanation:   q.Explanation,
			UserAnswer:    r.SubmittedAnswer,
			IsCorrect:     r.IsCorrect,
		})
	}

	newBadges := attempt.NewBadges
	if newBadges == nil {
		newBadges = []string{}
	}
	return domain.SubmissionResult{
		QuizID:         quiz.ID,
		Score:          attempt.Score,
		CorrectCount:   attempt.CorrectCount,
		TotalQuestions: len(questions),
		Streak:         attempt.StreakAfter,
		StreakBonus:    attempt.StreakBonus(),
		TotalXP:        attempt.XPAwarded,
		IsPerfect:      attempt.IsPerfect,
		NewBadges:      newBadges,
		Questions:      reviews,
		CompletedAt:    attempt.CompletedAt,
	}
}
