package domain

import "time"

// Scope is the population filter applied before ranking.
type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopeFriends Scope = "friends"
	ScopeCity    Scope = "city"
)

// ParseScope maps the query value to a Scope; empty means global.
func ParseScope(raw string) (Scope, error) {
	switch Scope(raw) {
	case "", ScopeGlobal:
		return ScopeGlobal, nil
	case ScopeFriends:
		return ScopeFriends, nil
	case ScopeCity:
		return ScopeCity, nil
	}
	return "", ErrInvalidScope
}

// AttemptFilter restricts which users' attempts are aggregated.
// When Restricted is set only UserIDs match; an empty list matches nothing.
type AttemptFilter struct {
	Restricted bool
	UserIDs    []string
}

// AttemptAggregate is the per-user rollup of all attempts.
type AttemptAggregate struct {
	UserID        string
	MaxScore      int
	TotalQuizzes  int
	PerfectCount  int
	CurrentStreak int
}

// RankEntry is one leaderboard row.
type RankEntry struct {
	Rank          int    `json:"rank"`
	UserID        string `json:"userId"`
	Username      string `json:"username"`
	Avatar        string `json:"avatar"`
	City          string `json:"city,omitempty"`
	TotalXP       int    `json:"totalXP"`
	MaxScore      int    `json:"maxScore"`
	TotalQuizzes  int    `json:"totalQuizzes"`
	PerfectCount  int    `json:"perfectCount"`
	CurrentStreak int    `json:"currentStreak"`
}

// Leaderboard captures the ordered ranking for one scope.
type Leaderboard struct {
	Scope     Scope       `json:"scope"`
	Entries   []RankEntry `json:"leaderboard"`
	UpdatedAt time.Time   `json:"updatedAt"`
}
