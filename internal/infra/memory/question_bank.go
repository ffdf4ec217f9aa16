package memory

import (
	"context"
	"sync"

	"dailyquiz-service/internal/domain"
)

// QuestionBank is a bank backed by an in-memory map (useful for tests/demos).
type QuestionBank struct {
	mu        sync.RWMutex
	order     []string
	questions map[string]domain.Question
}

func NewQuestionBank(questions ...domain.Question) *QuestionBank {
	b := &QuestionBank{questions: make(map[string]domain.Question)}
	for _, q := range questions {
		b.Put(q)
	}
	return b
}

// Put adds or replaces a question; it plays the role of the seeding collaborator.
func (b *QuestionBank) Put(q domain.Question) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.questions[q.ID]; !ok {
		b.order = append(b.order, q.ID)
	}
	b.questions[q.ID] = q
}

func (b *QuestionBank) ActiveQuestionIDs(_ context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	ids := make([]string, 0, len(b.order))
	for _, id := range b.order {
		if b.questions[id].IsActive {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (b *QuestionBank) QuestionsByID(_ context.Context, ids []string) (map[string]domain.Question, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]domain.Question, len(ids))
	for _, id := range ids {
		if q, ok := b.questions[id]; ok {
			out[id] = q
		}
	}
	return out, nil
}
