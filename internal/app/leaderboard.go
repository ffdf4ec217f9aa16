package app

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"time"

	"dailyquiz-service/internal/domain"
	"dailyquiz-service/internal/logger"
	"golang.org/x/sync/errgroup"
)

// Aggregator ranks users by their historical attempts. It never writes.
type Aggregator struct {
	attempts     AttemptStore
	users        UserDirectory
	cache        LeaderboardCache
	log          *logger.Logger
	clock        func() time.Time
	defaultLimit int
	maxLimit     int
}

func NewAggregator(attempts AttemptStore, users UserDirectory, cache LeaderboardCache, log *logger.Logger, clock func() time.Time, defaultLimit, maxLimit int) *Aggregator {
	if clock == nil {
		clock = time.Now
	}
	if maxLimit <= 0 {
		maxLimit = 100
	}
	if defaultLimit <= 0 || defaultLimit > maxLimit {
		defaultLimit = min(50, maxLimit)
	}
	return &Aggregator{
		attempts:     attempts,
		users:        users,
		cache:        cache,
		log:          log.With("component", "aggregator"),
		clock:        clock,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// Rank returns up to limit entries for scope as seen by userID. The friends
// and city scopes need a user; a user without a city gets an empty city board.
func (a *Aggregator) Rank(ctx context.Context, scope domain.Scope, userID string, limit int) (domain.Leaderboard, error) {
	if scope != domain.ScopeGlobal && userID == "" {
		return domain.Leaderboard{}, domain.ErrUnauthenticated
	}
	limit = a.clampLimit(limit)

	key := cacheKey(scope, userID, limit)
	if a.cache != nil {
		lb, ok, err := a.cache.Get(ctx, key)
		if err != nil {
			a.log.Warn("leaderboard cache read failed", "key", key, "error", err)
		} else if ok {
			return lb, nil
		}
	}

	filter, err := a.filterFor(ctx, scope, userID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	aggregates, err := a.attempts.AggregateAttempts(ctx, filter)
	if err != nil {
		return domain.Leaderboard{}, fmt.Errorf("aggregate attempts: %w", err)
	}
	entries := RankAggregates(aggregates, limit)
	if err := a.decorate(ctx, entries); err != nil {
		return domain.Leaderboard{}, err
	}

	lb := domain.Leaderboard{Scope: scope, Entries: entries, UpdatedAt: a.clock().UTC()}
	if a.cache != nil {
		if err := a.cache.Set(ctx, key, lb); err != nil {
			a.log.Warn("leaderboard cache write failed", "key", key, "error", err)
		}
	}
	return lb, nil
}

func (a *Aggregator) clampLimit(limit int) int {
	if limit <= 0 {
		return a.defaultLimit
	}
	return min(limit, a.maxLimit)
}

func (a *Aggregator) filterFor(ctx context.Context, scope domain.Scope, userID string) (domain.AttemptFilter, error) {
	switch scope {
	case domain.ScopeGlobal:
		return domain.AttemptFilter{}, nil
	case domain.ScopeFriends:
		profile, err := a.users.Profile(ctx, userID)
		if err != nil {
			return domain.AttemptFilter{}, fmt.Errorf("load profile: %w", err)
		}
		ids := append([]string{userID}, profile.Following...)
		slices.Sort(ids)
		return domain.AttemptFilter{Restricted: true, UserIDs: slices.Compact(ids)}, nil
	case domain.ScopeCity:
		profile, err := a.users.Profile(ctx, userID)
		if err != nil {
			return domain.AttemptFilter{}, fmt.Errorf("load profile: %w", err)
		}
		if profile.City == "" {
			return domain.AttemptFilter{Restricted: true}, nil
		}
		ids, err := a.users.UserIDsInCity(ctx, profile.City)
		if err != nil {
			return domain.AttemptFilter{}, fmt.Errorf("list city users: %w", err)
		}
		return domain.AttemptFilter{Restricted: true, UserIDs: ids}, nil
	}
	return domain.AttemptFilter{}, domain.ErrInvalidScope
}

// decorate joins display identity and total XP onto ranked entries.
func (a *Aggregator) decorate(ctx context.Context, entries []domain.RankEntry) error {
	if len(entries) == 0 {
		return nil
	}
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.UserID
	}

	var (
		profiles map[string]domain.Profile
		states   map[string]domain.UserQuizState
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		profiles, err = a.users.Profiles(gctx, ids)
		if err != nil {
			return fmt.Errorf("load profiles: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		states, err = a.attempts.QuizStates(gctx, ids)
		if err != nil {
			return fmt.Errorf("load quiz states: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	for i := range entries {
		p := profiles[entries[i].UserID]
		entries[i].Username = p.Username
		entries[i].Avatar = p.Avatar
		entries[i].City = p.City
		entries[i].TotalXP = states[entries[i].UserID].TotalXP
	}
	return nil
}

// RankAggregates orders by best score, then by number of quizzes taken, and
// assigns 1-based ranks after truncating to limit. Remaining ties fall back
// to user id so repeated reads agree.
func RankAggregates(aggregates []domain.AttemptAggregate, limit int) []domain.RankEntry {
	sorted := slices.Clone(aggregates)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].MaxScore != sorted[j].MaxScore {
			return sorted[i].MaxScore > sorted[j].MaxScore
		}
		if sorted[i].TotalQuizzes != sorted[j].TotalQuizzes {
			return sorted[i].TotalQuizzes > sorted[j].TotalQuizzes
		}
		return sorted[i].UserID < sorted[j].UserID
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	entries := make([]domain.RankEntry, len(sorted))
	for i, agg := range sorted {
		entries[i] = domain.RankEntry{
			Rank:          i + 1,
			UserID:        agg.UserID,
			MaxScore:      agg.MaxScore,
			TotalQuizzes:  agg.TotalQuizzes,
			PerfectCount:  agg.PerfectCount,
			CurrentStreak: agg.CurrentStreak,
		}
	}
	return entries
}

func cacheKey(scope domain.Scope, userID string, limit int) string {
	if scope == domain.ScopeGlobal {
		return string(scope) + ":" + strconv.Itoa(limit)
	}
	return string(scope) + ":" + userID + ":" + strconv.Itoa(limit)
}
