package app

import (
	"slices"
	"time"

	"dailyquiz-service/internal/domain"
)

// MaxStreakBonus caps the XP granted for a streak.
const MaxStreakBonus = 7

// StreakOutcome is the progression produced by one attempt.
type StreakOutcome struct {
	Streak    int
	XPBonus   int
	NewBadges []string
}

// EvaluateStreak continues the streak when the previous quiz was exactly the
// day before submissionDate and resets it to 1 otherwise. A late attempt on a
// day no later than the last one played keeps the current streak. Badges
// already in prior.Badges never unlock again.
func EvaluateStreak(prior domain.UserQuizState, submissionDate time.Time, isPerfect bool) StreakOutcome {
	day := domain.DayOf(submissionDate)

	streak := 1
	if !prior.LastQuizDate.IsZero() {
		last := domain.DayOf(prior.LastQuizDate)
		switch {
		case !day.After(last):
			streak = max(prior.Streak, 1)
		case last.Equal(day.AddDate(0, 0, -1)):
			streak = prior.Streak + 1
		}
	}

	badges := []string{}
	unlock := func(badge string, cond bool) {
		if cond && !prior.HasBadge(badge) {
			badges = append(badges, badge)
		}
	}
	unlock(domain.BadgePerfectQuiz, isPerfect)
	unlock(domain.Badge7DayStreak, streak == 7)
	unlock(domain.Badge30DayStreak, streak == 30)

	return StreakOutcome{
		Streak:    streak,
		XPBonus:   min(streak, MaxStreakBonus),
		NewBadges: badges,
	}
}

// advanceState is the user quiz state after an attempt on day. LastQuizDate
// never moves backwards.
func advanceState(prior domain.UserQuizState, day time.Time, outcome StreakOutcome, xp int) domain.UserQuizState {
	next := prior
	next.Streak = outcome.Streak
	if d := domain.DayOf(day); prior.LastQuizDate.IsZero() || d.After(domain.DayOf(prior.LastQuizDate)) {
		next.LastQuizDate = d
	}
	next.TotalXP = prior.TotalXP + xp
	next.Badges = slices.Clone(prior.Badges)
	for _, b := range outcome.NewBadges {
		if !slices.Contains(next.Badges, b) {
			next.Badges = append(next.Badges, b)
		}
	}
	return next
}
