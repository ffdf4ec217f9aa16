package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"dailyquiz-service/internal/domain"
	"dailyquiz-service/internal/logger"
)

// Deps wires the service. Quizzes overrides the quiz half of Store, typically
// with a cache in front of it. Quizzes, Cache and Bus are optional.
type Deps struct {
	Bank    QuestionBank
	Store   Store
	Quizzes QuizStore
	Cache   LeaderboardCache
	Bus     EventBus
	Log     *logger.Logger
	Clock   func() time.Time
	Rand    rand.Source
	Grace   time.Duration

	DefaultLimit int
	MaxLimit     int
	FeedLimit    int
}

// QuizService contains the daily quiz use cases exposed to transports.
type QuizService struct {
	generator  *Generator
	submitter  *Submitter
	aggregator *Aggregator
	feed       *Feed
	attempts   AttemptStore
}

func NewQuizService(deps Deps) *QuizService {
	log := deps.Log
	if log == nil {
		log = logger.NewNop()
	}

	quizzes := deps.Quizzes
	if quizzes == nil {
		quizzes = deps.Store
	}

	var listeners []AttemptListener
	if deps.Cache != nil {
		listeners = append(listeners, deps.Cache)
	}
	if deps.Bus != nil {
		listeners = append(listeners, deps.Bus)
	}

	aggregator := NewAggregator(deps.Store, deps.Store, deps.Cache, log, deps.Clock, deps.DefaultLimit, deps.MaxLimit)
	feedLimit := deps.FeedLimit
	if feedLimit <= 0 {
		feedLimit = 10
	}
	return &QuizService{
		generator:  NewGenerator(deps.Bank, quizzes, log, deps.Clock, deps.Rand),
		submitter:  NewSubmitter(quizzes, deps.Bank, deps.Store, log, deps.Clock, deps.Grace, listeners...),
		aggregator: aggregator,
		feed:       NewFeed(aggregator, feedLimit, log),
		attempts:   deps.Store,
	}
}

// Today returns today's quiz without answers. userID may be empty.
func (s *QuizService) Today(ctx context.Context, userID string) (domain.TodayView, error) {
	quiz, questions, err := s.generator.Today(ctx)
	if err != nil {
		return domain.TodayView{}, err
	}

	view := domain.TodayView{
		QuizID:    quiz.ID,
		Date:      quiz.Date,
		ExpiresAt: quiz.ExpiresAt,
		Questions: make([]domain.PublicQuestion, 0, len(questions)),
	}
	for _, q := range questions {
		view.Questions = append(view.Questions, q.Public())
	}

	if userID != "" {
		_, err := s.attempts.AttemptFor(ctx, userID, quiz.ID)
		switch {
		case err == nil:
			view.HasCompleted = true
		case !errors.Is(err, domain.ErrAttemptNotFound):
			return domain.TodayView{}, fmt.Errorf("check attempt: %w", err)
		}
	}
	return view, nil
}

// Submit records the user's answers for quizID.
func (s *QuizService) Submit(ctx context.Context, userID, quizID string, answers map[string]domain.SubmittedAnswer) (domain.SubmissionResult, error) {
	return s.submitter.Submit(ctx, userID, quizID, answers)
}

// Result returns the stored outcome of the user's attempt at quizID.
func (s *QuizService) Result(ctx context.Context, userID, quizID string) (domain.SubmissionResult, error) {
	return s.submitter.Result(ctx, userID, quizID)
}

// Leaderboard ranks users within scope as seen by userID.
func (s *QuizService) Leaderboard(ctx context.Context, scope domain.Scope, userID string, limit int) (domain.Leaderboard, error) {
	return s.aggregator.Rank(ctx, scope, userID, limit)
}

// Subscribe returns a channel of live global leaderboard snapshots.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *QuizService) Subscribe(ctx context.Context) (<-chan domain.Leaderboard, func(), error) {
	return s.feed.Subscribe(ctx)
}

// RunFeed keeps live subscribers updated from bus until ctx is done.
func (s *QuizService) RunFeed(ctx context.Context, bus EventBus) error {
	return s.feed.Run(ctx, bus)
}
