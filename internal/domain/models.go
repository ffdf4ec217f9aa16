package domain

import (
	"slices"
	"time"
)

// QuizSize is the number of questions in every daily quiz.
const QuizSize = 5

// QuestionKind selects how a submitted answer is compared with the accepted answer.
type QuestionKind string

const (
	KindMultipleChoice      QuestionKind = "mcq"
	KindTrueFalse           QuestionKind = "true_false"
	KindShortAnswer         QuestionKind = "short_answer"
	KindAudioMultipleChoice QuestionKind = "audio_mcq"
)

// Valid reports whether k is a known question kind.
func (k QuestionKind) Valid() bool {
	switch k {
	case KindMultipleChoice, KindTrueFalse, KindShortAnswer, KindAudioMultipleChoice:
		return true
	}
	return false
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Question is an immutable catalog entry of the question bank.
type Question struct {
	ID          string       `json:"id" yaml:"id"`
	Kind        QuestionKind `json:"type" yaml:"type"`
	Prompt      string       `json:"prompt" yaml:"prompt"`
	Options     []string     `json:"options,omitempty" yaml:"options"`
	Answer      Answer       `json:"answer" yaml:"answer"`
	Difficulty  Difficulty   `json:"difficulty" yaml:"difficulty"`
	Tags        []string     `json:"tags,omitempty" yaml:"tags"`
	Source      string       `json:"source,omitempty" yaml:"source"`
	Explanation string       `json:"explanation,omitempty" yaml:"explanation"`
	IsBonus     bool         `json:"isBonus" yaml:"is_bonus"`
	IsActive    bool         `json:"isActive" yaml:"is_active"`
}

// PublicQuestion is the question as shown before submission: no answer, no explanation.
type PublicQuestion struct {
	ID         string       `json:"id"`
	Kind       QuestionKind `json:"type"`
	Prompt     string       `json:"prompt"`
	Options    []string     `json:"options,omitempty"`
	Difficulty Difficulty   `json:"difficulty"`
	Tags       []string     `json:"tags,omitempty"`
	IsBonus    bool         `json:"isBonus"`
}

func (q Question) Public() PublicQuestion {
	return PublicQuestion{
		ID:         q.ID,
		Kind:       q.Kind,
		Prompt:     q.Prompt,
		Options:    slices.Clone(q.Options),
		Difficulty: q.Difficulty,
		Tags:       slices.Clone(q.Tags),
		IsBonus:    q.IsBonus,
	}
}

// DailyQuiz is the single shared quiz of one UTC calendar day.
type DailyQuiz struct {
	ID          string    `json:"id"`
	Date        time.Time `json:"date"`
	QuestionIDs []string  `json:"questionIds"`
	ExpiresAt   time.Time `json:"expiresAt"`
	CreatedAt   time.Time `json:"createdAt"`
}

// DayOf truncates t to UTC midnight.
func DayOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SubmittedAnswer is what the client sent for one question.
type SubmittedAnswer struct {
	Answer       string `json:"answer"`
	SecondsSpent int    `json:"timeSpent"`
}

// QuestionResult is the scored outcome of one question inside an attempt.
type QuestionResult struct {
	QuestionID      string `json:"questionId"`
	SubmittedAnswer string `json:"userAnswer,omitempty"`
	Answered        bool   `json:"answered"`
	IsCorrect       bool   `json:"isCorrect"`
	PointsAwarded   int    `json:"points"`
	SecondsSpent    int    `json:"timeSpent"`
}

// QuizAttempt is one user's completed submission against one daily quiz.
type QuizAttempt struct {
	ID           string           `json:"id"`
	UserID       string           `json:"userId"`
	QuizID       string           `json:"quizId"`
	Results      []QuestionResult `json:"answers"`
	Score        int              `json:"score"`
	CorrectCount int              `json:"correctCount"`
	StreakAfter  int              `json:"streak"`
	XPAwarded    int              `json:"totalXP"`
	IsPerfect    bool             `json:"isPerfect"`
	NewBadges    []string         `json:"newBadges"`
	CompletedAt  time.Time        `json:"completedAt"`
}

// StreakBonus is the part of XPAwarded that did not come from answers.
func (a QuizAttempt) StreakBonus() int {
	return a.XPAwarded - a.Score
}

const (
	BadgePerfectQuiz = "perfect_quiz"
	Badge7DayStreak  = "7_day_streak"
	Badge30DayStreak = "30_day_streak"
)

// UserQuizState is the part of the user record owned by the quiz engine.
// A zero LastQuizDate means the user never completed a quiz.
type UserQuizState struct {
	UserID       string    `json:"userId"`
	Streak       int       `json:"streak"`
	LastQuizDate time.Time `json:"lastQuizDate"`
	TotalXP      int       `json:"totalXP"`
	Badges       []string  `json:"badges"`
}

func (s UserQuizState) HasBadge(badge string) bool {
	return slices.Contains(s.Badges, badge)
}

// Profile is the display identity and social graph supplied by the profile collaborator.
type Profile struct {
	UserID    string   `json:"userId"`
	Username  string   `json:"username"`
	Avatar    string   `json:"avatar"`
	City      string   `json:"city,omitempty"`
	Following []string `json:"following,omitempty"`
}

// QuestionReview reveals the answer for one question after submission.
type QuestionReview struct {
	ID            string `json:"id"`
	Prompt        string `json:"prompt"`
	CorrectAnswer Answer `json:"correctAnswer"`
	Explanation   string `json:"explanation,omitempty"`
	UserAnswer    string `json:"userAnswer,omitempty"`
	IsCorrect     bool   `json:"isCorrect"`
}

// SubmissionResult is returned once per attempt; it is the only view carrying answers.
type SubmissionResult struct {
	QuizID         string           `json:"quizId"`
	Score          int              `json:"score"`
	CorrectCount   int              `json:"correctCount"`
	TotalQuestions int              `json:"totalQuestions"`
	Streak         int              `json:"streak"`
	StreakBonus    int              `json:"streakBonus"`
	TotalXP        int              `json:"totalXP"`
	IsPerfect      bool             `json:"isPerfect"`
	NewBadges      []string         `json:"newBadges"`
	Questions      []QuestionReview `json:"questions"`
	CompletedAt    time.Time        `json:"completedAt"`
}

// TodayView is today's quiz as presented to a (possibly anonymous) caller.
type TodayView struct {
	QuizID       string           `json:"quizId"`
	Date         time.Time        `json:"date"`
	ExpiresAt    time.Time        `json:"expiresAt"`
	Questions    []PublicQuestion `json:"questions"`
	HasCompleted bool             `json:"hasCompleted"`
}

// AttemptEvent announces a recorded attempt to other components and processes.
type AttemptEvent struct {
	AttemptID   string    `json:"attemptId"`
	UserID      string    `json:"userId"`
	QuizID      string    `json:"quizId"`
	Score       int       `json:"score"`
	CompletedAt time.Time `json:"completedAt"`
}

func (a QuizAttempt) Event() AttemptEvent {
	return AttemptEvent{
		AttemptID:   a.ID,
		UserID:      a.UserID,
		QuizID:      a.QuizID,
		Score:       a.Score,
		CompletedAt: a.CompletedAt,
	}
}
