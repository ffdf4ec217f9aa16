package memory

import (
	"context"
	"math/rand"
	"slices"
	"strings"
	"sync"
	"time"

	"dailyquiz-service/internal/app"
	"dailyquiz-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// QuestionCache caches questions with TTL to avoid repeated bank hits. Bank
// content does not change while a quiz is live, so entries are never
// invalidated, only expired.
type QuestionCache struct {
	bank  app.QuestionBank
	ttl   time.Duration
	clock func() time.Time
	sf    singleflight.Group

	mu    sync.RWMutex
	rnd   *rand.Rand
	cache map[string]cachedQuestion
}

type cachedQuestion struct {
	question  domain.Question
	expiresAt time.Time
}

func NewQuestionCache(bank app.QuestionBank, ttl time.Duration) *QuestionCache {
	return &QuestionCache{
		bank:  bank,
		ttl:   ttl,
		clock: time.Now,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
		cache: make(map[string]cachedQuestion),
	}
}

// ActiveQuestionIDs is only needed once per day, so it always goes to the bank.
func (c *QuestionCache) ActiveQuestionIDs(ctx context.Context) ([]string, error) {
	return c.bank.ActiveQuestionIDs(ctx)
}

func (c *QuestionCache) QuestionsByID(ctx context.Context, ids []string) (map[string]domain.Question, error) {
	found, missing := c.lookup(ids)
	if len(missing) == 0 {
		return found, nil
	}

	sorted := slices.Clone(missing)
	slices.Sort(sorted)
	loaded, err := app.SharedCall(ctx, &c.sf, strings.Join(sorted, ","), func(ctx context.Context) (map[string]domain.Question, error) {
		loaded, err := c.bank.QuestionsByID(ctx, missing)
		if err != nil {
			return nil, err
		}
		now := c.clock()
		c.mu.Lock()
		for id, q := range loaded {
			c.cache[id] = cachedQuestion{question: q, expiresAt: now.Add(c.ttlWithJitterLocked())}
		}
		c.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	for id, q := range loaded {
		found[id] = q
	}
	return found, nil
}

func (c *QuestionCache) lookup(ids []string) (map[string]domain.Question, []string) {
	now := c.clock()
	found := make(map[string]domain.Question, len(ids))
	var missing []string

	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, id := range ids {
		if entry, ok := c.cache[id]; ok && entry.expiresAt.After(now) {
			found[id] = entry.question
			continue
		}
		missing = append(missing, id)
	}
	return found, missing
}

func (c *QuestionCache) ttlWithJitterLocked() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
