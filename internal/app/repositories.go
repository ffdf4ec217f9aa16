package app

import (
	"context"
	"time"

	"dailyquiz-service/internal/domain"
)

// QuestionBank supplies catalog questions. The engine never writes to it.
type QuestionBank interface {
	ActiveQuestionIDs(ctx context.Context) ([]string, error)
	// QuestionsByID returns the questions it found; missing ids are simply absent.
	QuestionsByID(ctx context.Context, ids []string) (map[string]domain.Question, error)
}

// QuizStore persists daily quizzes. CreateQuiz must enforce uniqueness of the
// date and report a lost race as domain.ErrQuizExists.
type QuizStore interface {
	QuizByDate(ctx context.Context, day time.Time) (domain.DailyQuiz, error)
	QuizByID(ctx context.Context, quizID string) (domain.DailyQuiz, error)
	CreateQuiz(ctx context.Context, quiz domain.DailyQuiz) error
}

// AttemptBuilder derives the attempt and the user's next quiz state from the
// state read inside the store's atomic unit.
type AttemptBuilder func(prior domain.UserQuizState) (domain.QuizAttempt, domain.UserQuizState, error)

// AttemptStore persists attempts together with the user quiz state.
//
// RecordAttempt reads the user's state, calls build, inserts the attempt and
// writes the new state as one atomic unit. A uniqueness violation on
// (user, quiz) is reported as domain.ErrAlreadyCompleted and nothing is written.
type AttemptStore interface {
	AttemptFor(ctx context.Context, userID, quizID string) (domain.QuizAttempt, error)
	RecordAttempt(ctx context.Context, userID string, build AttemptBuilder) (domain.QuizAttempt, error)
	AggregateAttempts(ctx context.Context, filter domain.AttemptFilter) ([]domain.AttemptAggregate, error)
	QuizStates(ctx context.Context, userIDs []string) (map[string]domain.UserQuizState, error)
}

// UserDirectory is the read side of the profile collaborator. Unknown users
// resolve to a Profile carrying only the UserID.
type UserDirectory interface {
	Profile(ctx context.Context, userID string) (domain.Profile, error)
	Profiles(ctx context.Context, userIDs []string) (map[string]domain.Profile, error)
	UserIDsInCity(ctx context.Context, city string) ([]string, error)
}

// Store is the full persistence surface used by the service.
type Store interface {
	QuizStore
	AttemptStore
	UserDirectory
}

// AttemptListener is told about every attempt after it was durably recorded.
type AttemptListener interface {
	AttemptRecorded(ctx context.Context, event domain.AttemptEvent) error
}

// EventBus fans attempt events out to every server process.
// Listen blocks until ctx is done.
type EventBus interface {
	AttemptListener
	Listen(ctx context.Context, handle func(domain.AttemptEvent)) error
}

// LeaderboardCache stores computed leaderboards until the next recorded attempt.
type LeaderboardCache interface {
	AttemptListener
	Get(ctx context.Context, key string) (domain.Leaderboard, bool, error)
	Set(ctx context.Context, key string, lb domain.Leaderboard) error
}
