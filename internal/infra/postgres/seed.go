package postgres

import (
	"context"
	"fmt"
	"os"

	"dailyquiz-service/internal/domain"
	"github.com/uptrace/bun"
	"gopkg.in/yaml.v3"
)

// Seed is the content document accepted by the seed command:
//
//	questions:
//	  - id: q1
//	    type: mcq
//	    prompt: ...
//	    options: [a, b]
//	    answer: a
//	users:
//	  - id: u1
//	    username: divine
//	    city: Mumbai
//	    following: [u2]
type Seed struct {
	Questions []SeedQuestion `yaml:"questions"`
	Users     []SeedUser     `yaml:"users"`
}

// SeedQuestion is a question whose is_active and difficulty default to true and medium.
type SeedQuestion domain.Question

func (q *SeedQuestion) UnmarshalYAML(node *yaml.Node) error {
	type plain SeedQuestion
	p := plain{IsActive: true, Difficulty: domain.DifficultyMedium}
	if err := node.Decode(&p); err != nil {
		return err
	}
	*q = SeedQuestion(p)
	return nil
}

type SeedUser struct {
	ID        string   `yaml:"id"`
	Username  string   `yaml:"username"`
	Avatar    string   `yaml:"avatar"`
	City      string   `yaml:"city"`
	Following []string `yaml:"following"`
}

// LoadSeed reads and validates a seed document.
func LoadSeed(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, err
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("parse seed %s: %w", path, err)
	}
	if err := seed.Validate(); err != nil {
		return Seed{}, fmt.Errorf("seed %s: %w", path, err)
	}
	return seed, nil
}

func (s Seed) Validate() error {
	seen := make(map[string]bool, len(s.Questions))
	for i, q := range s.Questions {
		switch {
		case q.ID == "":
			return fmt.Errorf("question %d: missing id", i)
		case seen[q.ID]:
			return fmt.Errorf("question %s: duplicate id", q.ID)
		case !q.Kind.Valid():
			return fmt.Errorf("question %s: unknown type %q", q.ID, q.Kind)
		case q.Answer.IsZero():
			return fmt.Errorf("question %s: missing answer", q.ID)
		case q.Kind != domain.KindShortAnswer && len(q.Answer.Values()) != 1:
			return fmt.Errorf("question %s: %s takes a single answer", q.ID, q.Kind)
		}
		seen[q.ID] = true
	}
	for i, u := range s.Users {
		if u.ID == "" || u.Username == "" {
			return fmt.Errorf("user %d: id and username are required", i)
		}
	}
	return nil
}

// DomainQuestions converts the seeded questions.
func (s Seed) DomainQuestions() []domain.Question {
	out := make([]domain.Question, len(s.Questions))
	for i, q := range s.Questions {
		out[i] = domain.Question(q)
	}
	return out
}

// Profiles converts the seeded users.
func (s Seed) Profiles() []domain.Profile {
	out := make([]domain.Profile, len(s.Users))
	for i, u := range s.Users {
		out[i] = domain.Profile{UserID: u.ID, Username: u.Username, Avatar: u.Avatar, City: u.City, Following: u.Following}
	}
	return out
}

// Seeder upserts seed content. Re-running a seed updates rows in place, so a
// question can be retired by seeding it again with is_active: false.
type Seeder struct {
	db *bun.DB
}

func NewSeeder(db *bun.DB) *Seeder {
	return &Seeder{db: db}
}

type SeedStats struct {
	Questions int
	Users     int
	Follows   int
}

func (s *Seeder) Apply(ctx context.Context, seed Seed) (SeedStats, error) {
	var stats SeedStats
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if len(seed.Questions) > 0 {
			rows := make([]questionModel, 0, len(seed.Questions))
			for _, q := range seed.DomainQuestions() {
				rows = append(rows, newQuestionModel(q))
			}
			_, err := tx.NewInsert().Model(&rows).
				On("CONFLICT (id) DO UPDATE").
				Set("kind = EXCLUDED.kind").
				Set("prompt = EXCLUDED.prompt").
				Set("options = EXCLUDED.options").
				Set("answer = EXCLUDED.answer").
				Set("difficulty = EXCLUDED.difficulty").
				Set("tags = EXCLUDED.tags").
				Set("source = EXCLUDED.source").
				Set("explanation = EXCLUDED.explanation").
				Set("is_bonus = EXCLUDED.is_bonus").
				Set("is_active = EXCLUDED.is_active").
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("upsert questions: %w", err)
			}
			stats.Questions = len(rows)
		}

		if len(seed.Users) == 0 {
			return nil
		}
		users := make([]userModel, 0, len(seed.Users))
		var follows []followModel
		for _, u := range seed.Users {
			users = append(users, userModel{ID: u.ID, Username: u.Username, Avatar: u.Avatar, City: u.City})
			for _, f := range u.Following {
				follows = append(follows, followModel{FollowerID: u.ID, FolloweeID: f})
			}
		}
		_, err := tx.NewInsert().Model(&users).
			On("CONFLICT (id) DO UPDATE").
			Set("username = EXCLUDED.username").
			Set("avatar = EXCLUDED.avatar").
			Set("city = EXCLUDED.city").
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("upsert users: %w", err)
		}
		stats.Users = len(users)

		if len(follows) > 0 {
			if _, err := tx.NewInsert().Model(&follows).On("CONFLICT DO NOTHING").Exec(ctx); err != nil {
				return fmt.Errorf("insert follows: %w", err)
			}
			stats.Follows = len(follows)
		}
		return nil
	})
	return stats, err
}
