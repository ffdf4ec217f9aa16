package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"dailyquiz-service/internal/domain"
	"dailyquiz-service/internal/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Generator returns the singleton quiz of the current UTC day, creating it on
// first access.
type Generator struct {
	bank    QuestionBank
	quizzes QuizStore
	log     *logger.Logger
	clock   func() time.Time
	sf      singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewGenerator(bank QuestionBank, quizzes QuizStore, log *logger.Logger, clock func() time.Time, src rand.Source) *Generator {
	if clock == nil {
		clock = time.Now
	}
	if src == nil {
		src = rand.NewSource(time.Now().UnixNano())
	}
	return &Generator{
		bank:    bank,
		quizzes: quizzes,
		log:     log.With("component", "generator"),
		clock:   clock,
		rnd:     rand.New(src),
	}
}

// Today returns today's quiz with its questions resolved in quiz order.
func (g *Generator) Today(ctx context.Context) (domain.DailyQuiz, []domain.Question, error) {
	day := domain.DayOf(g.clock())

	// Collapses concurrent first requests inside this process; the store's
	// date uniqueness covers other processes.
	quiz, err := SharedCall(ctx, &g.sf, day.Format(time.DateOnly), func(ctx context.Context) (domain.DailyQuiz, error) {
		return g.getOrCreate(ctx, day)
	})
	if err != nil {
		return domain.DailyQuiz{}, nil, err
	}

	questions, err := resolveQuestions(ctx, g.bank, quiz)
	if err != nil {
		return domain.DailyQuiz{}, nil, err
	}
	return quiz, questions, nil
}

func (g *Generator) getOrCreate(ctx context.Context, day time.Time) (domain.DailyQuiz, error) {
	quiz, err := g.quizzes.QuizByDate(ctx, day)
	if err == nil {
		return quiz, nil
	}
	if !errors.Is(err, domain.ErrQuizNotFound) {
		return domain.DailyQuiz{}, fmt.Errorf("find quiz for %s: %w", day.Format(time.DateOnly), err)
	}

	ids, err := g.bank.ActiveQuestionIDs(ctx)
	if err != nil {
		return domain.DailyQuiz{}, fmt.Errorf("list active questions: %w", err)
	}
	if len(ids) < domain.QuizSize {
		g.log.Warn("question bank too small", "active", len(ids), "required", domain.QuizSize)
		return domain.DailyQuiz{}, domain.ErrInsufficientContent
	}

	quiz = domain.DailyQuiz{
		ID:          uuid.NewString(),
		Date:        day,
		QuestionIDs: g.pick(ids, domain.QuizSize),
		ExpiresAt:   day.AddDate(0, 0, 1),
		CreatedAt:   g.clock().UTC(),
	}
	err = g.quizzes.CreateQuiz(ctx, quiz)
	switch {
	case err == nil:
		g.log.Info("daily quiz created", "quiz_id", quiz.ID, "date", day.Format(time.DateOnly))
		return quiz, nil
	case errors.Is(err, domain.ErrQuizExists):
		g.log.Debug("lost daily quiz creation race", "date", day.Format(time.DateOnly))
		winner, err := g.quizzes.QuizByDate(ctx, day)
		if err != nil {
			return domain.DailyQuiz{}, fmt.Errorf("reread quiz for %s: %w", day.Format(time.DateOnly), err)
		}
		return winner, nil
	default:
		return domain.DailyQuiz{}, fmt.Errorf("create quiz: %w", err)
	}
}

// pick returns n ids chosen uniformly without replacement, in random order.
func (g *Generator) pick(ids []string, n int) []string {
	pool := append([]string(nil), ids...)
	g.rndMu.Lock()
	defer g.rndMu.Unlock()
	for i := 0; i < n; i++ {
		j := i + g.rnd.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}

// resolveQuestions loads the quiz's questions in quiz order. A quiz whose
// questions no longer resolve is reported as not found.
func resolveQuestions(ctx context.Context, bank QuestionBank, quiz domain.DailyQuiz) ([]domain.Question, error) {
	found, err := bank.QuestionsByID(ctx, quiz.QuestionIDs)
	if err != nil {
		return nil, fmt.Errorf("load quiz questions: %w", err)
	}
	questions := make([]domain.Question, 0, len(quiz.QuestionIDs))
	for _, id := range quiz.QuestionIDs {
		q, ok := found[id]
		if !ok {
			return nil, domain.ErrQuizNotFound
		}
		questions = append(questions, q)
	}
	return questions, nil
}
