package domain

import "errors"

var (
	// ErrUnauthenticated is returned when an operation needs a user and none was resolved.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrAlreadyCompleted is returned when the user already has an attempt for the quiz.
	ErrAlreadyCompleted = errors.New("quiz already completed")
	// ErrQuizNotFound indicates the quiz id does not resolve to a daily quiz.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrInsufficientContent is returned when the bank has too few active questions.
	ErrInsufficientContent = errors.New("not enough questions in bank")
	// ErrQuizExists is returned by stores when a quiz for the same date was created first.
	ErrQuizExists = errors.New("daily quiz already exists for date")
	// ErrQuizExpired indicates the quiz no longer accepts attempts.
	ErrQuizExpired = errors.New("quiz expired")
	// ErrAttemptNotFound indicates the user has no attempt for the quiz.
	ErrAttemptNotFound = errors.New("attempt not found")
	// ErrInvalidScope indicates an unknown leaderboard scope.
	ErrInvalidScope = errors.New("invalid leaderboard scope")
)
