package app_test

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"dailyquiz-service/internal/app"
	"dailyquiz-service/internal/domain"
	"dailyquiz-service/internal/infra/memory"
	"dailyquiz-service/internal/logger"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(raw string) *fakeClock {
	now, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		panic(err)
	}
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	clock   *fakeClock
	bank    *memory.QuestionBank
	store   *memory.Store
	service *app.QuizService
}

func newFixture(questions ...domain.Question) *fixture {
	if len(questions) == 0 {
		questions = bankQuestions()
	}
	f := &fixture{
		clock: newClock("2024-01-05T09:30:00Z"),
		bank:  memory.NewQuestionBank(questions...),
		store: memory.NewStore(),
	}
	f.service = app.NewQuizService(app.Deps{
		Bank:  f.bank,
		Store: f.store,
		Log:   logger.NewNop(),
		Clock: f.clock.Now,
		Rand:  rand.NewSource(1),
	})
	return f
}

// bankQuestions holds exactly five active questions, one of them a bonus, so
// today's quiz always contains all of them.
func bankQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:          "mcq",
			Kind:        domain.KindMultipleChoice,
			Prompt:      "Which rapper released Yours Truly?",
			Options:     []string{"KRSNA", "DIVINE", "Naezy", "Prabh Deep"},
			Answer:      domain.SingleAnswer("KRSNA"),
			Difficulty:  domain.DifficultyMedium,
			Explanation: "KRSNA released Yours Truly.",
			IsActive:    true,
		},
		{
			ID:       "tf",
			Kind:     domain.KindTrueFalse,
			Prompt:   "Gully Boy was inspired by DIVINE and Naezy.",
			Options:  []string{"True", "False"},
			Answer:   domain.SingleAnswer("True"),
			IsActive: true,
		},
		{
			ID:       "short",
			Kind:     domain.KindShortAnswer,
			Prompt:   "Which producer is known as the man behind Seedhe Maut's beats?",
			Answer:   domain.AnswerSet("Sez", "Sez on the Beat"),
			IsActive: true,
		},
		{
			ID:       "audio",
			Kind:     domain.KindAudioMultipleChoice,
			Prompt:   "Name the artist from the clip.",
			Options:  []string{"Emiway", "Raftaar"},
			Answer:   domain.SingleAnswer("Raftaar"),
			IsBonus:  true,
			IsActive: true,
		},
		{
			ID:       "mcq2",
			Kind:     domain.KindMultipleChoice,
			Prompt:   "Which label signed DIVINE?",
			Options:  []string{"Gully Gang", "Mass Appeal India"},
			Answer:   domain.SingleAnswer("Mass Appeal India"),
			IsActive: true,
		},
	}
}

func correctAnswers() map[string]domain.SubmittedAnswer {
	return map[string]domain.SubmittedAnswer{
		"mcq":   {Answer: "KRSNA", SecondsSpent: 4},
		"tf":    {Answer: "true", SecondsSpent: 2},
		"short": {Answer: " sez ON the beat ", SecondsSpent: 9},
		"audio": {Answer: "Raftaar", SecondsSpent: 6},
		"mcq2":  {Answer: "Mass Appeal India", SecondsSpent: 3},
	}
}

func extraQuestions(n int) []domain.Question {
	out := make([]domain.Question, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.Question{
			ID:       fmt.Sprintf("extra-%02d", i),
			Kind:     domain.KindMultipleChoice,
			Prompt:   fmt.Sprintf("Question %d", i),
			Options:  []string{"a", "b"},
			Answer:   domain.SingleAnswer("a"),
			IsActive: true,
		})
	}
	return out
}
