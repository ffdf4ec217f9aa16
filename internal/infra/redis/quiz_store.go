package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"dailyquiz-service/internal/app"
	"dailyquiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuizStore caches daily quizzes in Redis in front of the durable store.
// A quiz never changes once created, so entries are never invalidated:
//
//	SET dailyquiz:quiz:{id}         {json}   EX ttl
//	SET dailyquiz:quiz:date:{date}  {id}     EX until expiresAt
//
// Misses are not cached, otherwise a freshly created quiz would stay hidden.
type QuizStore struct {
	inner  app.QuizStore
	client *redis.Client
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu  sync.Mutex
	rnd *rand.Rand
}

var _ app.QuizStore = (*QuizStore)(nil)

func NewQuizStore(client *redis.Client, inner app.QuizStore, ttl time.Duration) *QuizStore {
	return &QuizStore{
		inner:  inner,
		client: client,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *QuizStore) QuizByID(ctx context.Context, quizID string) (domain.DailyQuiz, error) {
	if quiz, ok := s.cachedQuiz(ctx, quizID); ok {
		return quiz, nil
	}
	return app.SharedCall(ctx, &s.sf, "id:"+quizID, func(ctx context.Context) (domain.DailyQuiz, error) {
		// Re-check cache in case another goroutine filled it.
		if quiz, ok := s.cachedQuiz(ctx, quizID); ok {
			return quiz, nil
		}
		quiz, err := s.inner.QuizByID(ctx, quizID)
		if err != nil {
			return domain.DailyQuiz{}, err
		}
		s.store(ctx, quiz)
		return quiz, nil
	})
}

func (s *QuizStore) QuizByDate(ctx context.Context, day time.Time) (domain.DailyQuiz, error) {
	dateKey := s.dateKey(day)
	if id, err := s.client.Get(ctx, dateKey).Result(); err == nil {
		if quiz, ok := s.cachedQuiz(ctx, id); ok {
			return quiz, nil
		}
	}
	return app.SharedCall(ctx, &s.sf, dateKey, func(ctx context.Context) (domain.DailyQuiz, error) {
		quiz, err := s.inner.QuizByDate(ctx, day)
		if err != nil {
			return domain.DailyQuiz{}, err
		}
		s.store(ctx, quiz)
		return quiz, nil
	})
}

// CreateQuiz writes through; a lost race reports domain.ErrQuizExists untouched.
func (s *QuizStore) CreateQuiz(ctx context.Context, quiz domain.DailyQuiz) error {
	if err := s.inner.CreateQuiz(ctx, quiz); err != nil {
		return err
	}
	s.store(ctx, quiz)
	return nil
}

func (s *QuizStore) cachedQuiz(ctx context.Context, quizID string) (domain.DailyQuiz, bool) {
	raw, err := s.client.Get(ctx, s.quizKey(quizID)).Bytes()
	if err != nil {
		return domain.DailyQuiz{}, false
	}
	var quiz domain.DailyQuiz
	if err := json.Unmarshal(raw, &quiz); err != nil {
		return domain.DailyQuiz{}, false
	}
	return quiz, true
}

// store is best effort: a failed cache write only costs a later miss.
func (s *QuizStore) store(ctx context.Context, quiz domain.DailyQuiz) {
	raw, err := json.Marshal(quiz)
	if err != nil {
		return
	}
	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.quizKey(quiz.ID), raw, s.ttlWithJitter())
	if untilExpiry := quiz.ExpiresAt.Sub(s.clock()); untilExpiry > 0 {
		pipe.Set(ctx, s.dateKey(quiz.Date), quiz.ID, untilExpiry)
	}
	_, _ = pipe.Exec(ctx)
}

func (s *QuizStore) quizKey(quizID string) string {
	return "dailyquiz:quiz:" + quizID
}

func (s *QuizStore) dateKey(day time.Time) string {
	return "dailyquiz:quiz:date:" + domain.DayOf(day).Format(time.DateOnly)
}

func (s *QuizStore) ttlWithJitter() time.Duration {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	jitterMax := int64(s.ttl) / 10
	return s.ttl + time.Duration(s.rnd.Int63n(jitterMax+1))
}
