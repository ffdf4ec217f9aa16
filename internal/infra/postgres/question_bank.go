package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"dailyquiz-service/internal/app"
	"dailyquiz-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// QuestionBank reads the question catalog from Postgres.
type QuestionBank struct {
	pool *pgxpool.Pool
}

func NewQuestionBank(pool *pgxpool.Pool) *QuestionBank {
	return &QuestionBank{pool: pool}
}

var _ app.QuestionBank = (*QuestionBank)(nil)

func (b *QuestionBank) ActiveQuestionIDs(ctx context.Context) ([]string, error) {
	rows, err := b.pool.Query(ctx, `SELECT id FROM questions WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list active questions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan question id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (b *QuestionBank) QuestionsByID(ctx context.Context, ids []string) (map[string]domain.Question, error) {
	out := make(map[string]domain.Question, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := b.pool.Query(ctx, `
		SELECT id, kind, prompt, options, answer, difficulty, tags, source, explanation, is_bonus, is_active
		FROM questions WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			q                     domain.Question
			options, answer, tags []byte
			kind, difficulty      string
		)
		if err := rows.Scan(&q.ID, &kind, &q.Prompt, &options, &answer, &difficulty, &tags, &q.Source, &q.Explanation, &q.IsBonus, &q.IsActive); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.Kind = domain.QuestionKind(kind)
		q.Difficulty = domain.Difficulty(difficulty)
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return nil, fmt.Errorf("unmarshal options of %s: %w", q.ID, err)
		}
		if err := json.Unmarshal(answer, &q.Answer); err != nil {
			return nil, fmt.Errorf("unmarshal answer of %s: %w", q.ID, err)
		}
		if err := json.Unmarshal(tags, &q.Tags); err != nil {
			return nil, fmt.Errorf("unmarshal tags of %s: %w", q.ID, err)
		}
		out[q.ID] = q
	}
	return out, rows.Err()
}
