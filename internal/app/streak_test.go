package app_test

import (
	"slices"
	"testing"
	"time"

	"dailyquiz-service/internal/app"
	"dailyquiz-service/internal/domain"
)

func day(d int) time.Time {
	return time.Date(2024, time.January, d, 0, 0, 0, 0, time.UTC)
}

func TestEvaluateStreakContinuity(t *testing.T) {
	prior := domain.UserQuizState{Streak: 3, LastQuizDate: day(5)}

	next := app.EvaluateStreak(prior, day(6), false)
	if next.Streak != 4 || next.XPBonus != 4 {
		t.Fatalf("expected continued streak 4/4, got %+v", next)
	}

	gap := app.EvaluateStreak(prior, day(8), false)
	if gap.Streak != 1 || gap.XPBonus != 1 {
		t.Fatalf("expected reset after gap, got %+v", gap)
	}

	first := app.EvaluateStreak(domain.UserQuizState{}, day(8), false)
	if first.Streak != 1 || first.XPBonus != 1 {
		t.Fatalf("expected first streak 1, got %+v", first)
	}
}

func TestEvaluateStreakLateAttemptKeepsStreak(t *testing.T) {
	prior := domain.UserQuizState{Streak: 4, LastQuizDate: day(6)}
	late := app.EvaluateStreak(prior, day(5), false)
	if late.Streak != 4 || late.XPBonus != 4 {
		t.Fatalf("expected late attempt to keep streak 4, got %+v", late)
	}
}

func TestEvaluateStreakTruncatesTimes(t *testing.T) {
	prior := domain.UserQuizState{Streak: 1, LastQuizDate: day(5).Add(23 * time.Hour)}
	next := app.EvaluateStreak(prior, day(6).Add(30*time.Minute), false)
	if next.Streak != 2 {
		t.Fatalf("expected times within the days to count as consecutive, got %+v", next)
	}
}

func TestEvaluateStreakBonusCapped(t *testing.T) {
	prior := domain.UserQuizState{Streak: 40, LastQuizDate: day(5), Badges: []string{domain.Badge7DayStreak, domain.Badge30DayStreak}}
	next := app.EvaluateStreak(prior, day(6), false)
	if next.Streak != 41 || next.XPBonus != app.MaxStreakBonus {
		t.Fatalf("expected capped bonus, got %+v", next)
	}
	if len(next.NewBadges) != 0 {
		t.Fatalf("expected no badges, got %v", next.NewBadges)
	}
}

func TestEvaluateStreakBadgeThresholds(t *testing.T) {
	for prior, want := range map[int][]string{
		5:  {},
		6:  {domain.Badge7DayStreak},
		7:  {},
		28: {},
		29: {domain.Badge30DayStreak},
		30: {},
	} {
		got := app.EvaluateStreak(domain.UserQuizState{Streak: prior, LastQuizDate: day(5)}, day(6), false)
		if !slices.Equal(got.NewBadges, want) {
			t.Fatalf("streak %d -> %d: badges %v, want %v", prior, got.Streak, got.NewBadges, want)
		}
	}
}

func TestEvaluateStreakBadgesNeverRefire(t *testing.T) {
	owned := domain.UserQuizState{Streak: 6, LastQuizDate: day(5), Badges: []string{domain.Badge7DayStreak, domain.BadgePerfectQuiz}}
	got := app.EvaluateStreak(owned, day(6), true)
	if got.Streak != 7 || len(got.NewBadges) != 0 {
		t.Fatalf("expected owned badges to stay silent, got %+v", got)
	}

	fresh := app.EvaluateStreak(domain.UserQuizState{Streak: 6, LastQuizDate: day(5)}, day(6), true)
	if !slices.Equal(fresh.NewBadges, []string{domain.BadgePerfectQuiz, domain.Badge7DayStreak}) {
		t.Fatalf("expected perfect and 7-day badges, got %v", fresh.NewBadges)
	}
}
