package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"dailyquiz-service/internal/app"
	"dailyquiz-service/internal/domain"
)

// Store is an in-memory implementation of app.Store. A single mutex stands in
// for the unique indexes and transactions a real database provides.
type Store struct {
	mu         sync.RWMutex
	quizzes    map[string]domain.DailyQuiz
	quizByDate map[int64]string
	attempts   map[attemptKey]domain.QuizAttempt
	states     map[string]domain.UserQuizState
	profiles   map[string]domain.Profile
}

type attemptKey struct {
	userID string
	quizID string
}

func NewStore() *Store {
	return &Store{
		quizzes:    make(map[string]domain.DailyQuiz),
		quizByDate: make(map[int64]string),
		attempts:   make(map[attemptKey]domain.QuizAttempt),
		states:     make(map[string]domain.UserQuizState),
		profiles:   make(map[string]domain.Profile),
	}
}

var _ app.Store = (*Store)(nil)

func (s *Store) QuizByDate(_ context.Context, day time.Time) (domain.DailyQuiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.quizByDate[domain.DayOf(day).Unix()]
	if !ok {
		return domain.DailyQuiz{}, domain.ErrQuizNotFound
	}
	return cloneQuiz(s.quizzes[id]), nil
}

func (s *Store) QuizByID(_ context.Context, quizID string) (domain.DailyQuiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.DailyQuiz{}, domain.ErrQuizNotFound
	}
	return cloneQuiz(quiz), nil
}

func (s *Store) CreateQuiz(_ context.Context, quiz domain.DailyQuiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := domain.DayOf(quiz.Date).Unix()
	if _, ok := s.quizByDate[key]; ok {
		return domain.ErrQuizExists
	}
	if _, ok := s.quizzes[quiz.ID]; ok {
		return fmt.Errorf("duplicate quiz id %s", quiz.ID)
	}
	s.quizzes[quiz.ID] = cloneQuiz(quiz)
	s.quizByDate[key] = quiz.ID
	return nil
}

// Quizzes returns how many daily quizzes exist.
func (s *Store) Quizzes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.quizzes)
}

func (s *Store) AttemptFor(_ context.Context, userID, quizID string) (domain.QuizAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attempt, ok := s.attempts[attemptKey{userID, quizID}]
	if !ok {
		return domain.QuizAttempt{}, domain.ErrAttemptNotFound
	}
	return cloneAttempt(attempt), nil
}

func (s *Store) RecordAttempt(_ context.Context, userID string, build app.AttemptBuilder) (domain.QuizAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prior, ok := s.states[userID]
	if !ok {
		prior = domain.UserQuizState{UserID: userID}
	}
	attempt, next, err := build(cloneState(prior))
	if err != nil {
		return domain.QuizAttempt{}, err
	}
	if attempt.UserID != userID {
		return domain.QuizAttempt{}, fmt.Errorf("attempt user %q does not match %q", attempt.UserID, userID)
	}
	key := attemptKey{attempt.UserID, attempt.QuizID}
	if _, exists := s.attempts[key]; exists {
		return domain.QuizAttempt{}, domain.ErrAlreadyCompleted
	}

	next.UserID = userID
	s.attempts[key] = cloneAttempt(attempt)
	s.states[userID] = cloneState(next)
	return attempt, nil
}

func (s *Store) AggregateAttempts(_ context.Context, filter domain.AttemptFilter) ([]domain.AttemptAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byUser := make(map[string]*domain.AttemptAggregate)
	var order []string
	for _, a := range s.attempts {
		if filter.Restricted && !slices.Contains(filter.UserIDs, a.UserID) {
			continue
		}
		agg, ok := byUser[a.UserID]
		if !ok {
			agg = &domain.AttemptAggregate{UserID: a.UserID}
			byUser[a.UserID] = agg
			order = append(order, a.UserID)
		}
		agg.MaxScore = max(agg.MaxScore, a.Score)
		agg.TotalQuizzes++
		if a.IsPerfect {
			agg.PerfectCount++
		}
		agg.CurrentStreak = max(agg.CurrentStreak, a.StreakAfter)
	}

	slices.Sort(order)
	out := make([]domain.AttemptAggregate, 0, len(order))
	for _, id := range order {
		out = append(out, *byUser[id])
	}
	return out, nil
}

func (s *Store) QuizStates(_ context.Context, userIDs []string) (map[string]domain.UserQuizState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.UserQuizState, len(userIDs))
	for _, id := range userIDs {
		if st, ok := s.states[id]; ok {
			out[id] = cloneState(st)
		}
	}
	return out, nil
}

// QuizState returns the stored state for userID, zero if the user never played.
func (s *Store) QuizState(userID string) domain.UserQuizState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[userID]
	if !ok {
		return domain.UserQuizState{UserID: userID}
	}
	return cloneState(st)
}

// PutProfile stores display identity and the follow list; it plays the role
// of the profile collaborator.
func (s *Store) PutProfile(p domain.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Following = slices.Clone(p.Following)
	s.profiles[p.UserID] = p
}

func (s *Store) Profile(_ context.Context, userID string) (domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return domain.Profile{UserID: userID}, nil
	}
	p.Following = slices.Clone(p.Following)
	return p, nil
}

func (s *Store) Profiles(_ context.Context, userIDs []string) (map[string]domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.Profile, len(userIDs))
	for _, id := range userIDs {
		if p, ok := s.profiles[id]; ok {
			p.Following = slices.Clone(p.Following)
			out[id] = p
		}
	}
	return out, nil
}

func (s *Store) UserIDsInCity(_ context.Context, city string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for id, p := range s.profiles {
		if city != "" && p.City == city {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func cloneQuiz(q domain.DailyQuiz) domain.DailyQuiz {
	q.QuestionIDs = slices.Clone(q.QuestionIDs)
	return q
}

func cloneAttempt(a domain.QuizAttempt) domain.QuizAttempt {
	a.Results = slices.Clone(a.Results)
	a.NewBadges = slices.Clone(a.NewBadges)
	return a
}

func cloneState(st domain.UserQuizState) domain.UserQuizState {
	st.Badges = slices.Clone(st.Badges)
	return st
}
