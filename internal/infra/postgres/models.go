package postgres

import (
	"time"

	"dailyquiz-service/internal/domain"
	"github.com/uptrace/bun"
)

// Bun models mirror the tables created by the schema migration. The query
// paths use pgx directly; these exist for content seeding.

type questionModel struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID          string        `bun:"id,pk"`
	Kind        string        `bun:"kind,notnull"`
	Prompt      string        `bun:"prompt,notnull"`
	Options     []string      `bun:"options,type:jsonb,notnull"`
	Answer      domain.Answer `bun:"answer,type:jsonb,notnull"`
	Difficulty  string        `bun:"difficulty,notnull"`
	Tags        []string      `bun:"tags,type:jsonb,notnull"`
	Source      string        `bun:"source,notnull"`
	Explanation string        `bun:"explanation,notnull"`
	IsBonus     bool          `bun:"is_bonus,notnull"`
	IsActive    bool          `bun:"is_active,notnull"`
	CreatedAt   time.Time     `bun:"created_at,notnull,default:current_timestamp"`
}

type userModel struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID        string    `bun:"id,pk"`
	Username  string    `bun:"username,notnull"`
	Avatar    string    `bun:"avatar,notnull"`
	City      string    `bun:"city,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

type followModel struct {
	bun.BaseModel `bun:"table:follows,alias:f"`

	FollowerID string `bun:"follower_id,pk"`
	FolloweeID string `bun:"followee_id,pk"`
}

func newQuestionModel(q domain.Question) questionModel {
	options, tags := q.Options, q.Tags
	if options == nil {
		options = []string{}
	}
	if tags == nil {
		tags = []string{}
	}
	difficulty := q.Difficulty
	if difficulty == "" {
		difficulty = domain.DifficultyMedium
	}
	return questionModel{
		ID:          q.ID,
		Kind:        string(q.Kind),
		Prompt:      q.Prompt,
		Options:     options,
		Answer:      q.Answer,
		Difficulty:  string(difficulty),
		Tags:        tags,
		Source:      q.Source,
		Explanation: q.Explanation,
		IsBonus:     q.IsBonus,
		IsActive:    q.IsActive,
	}
}
