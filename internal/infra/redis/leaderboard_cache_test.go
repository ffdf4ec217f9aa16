package redis

import (
	"context"
	"testing"
	"time"

	"dailyquiz-service/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
)

func TestLeaderboardCacheRoundTripAndInvalidation(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	cache := NewLeaderboardCache(newClient(mr), 30*time.Second)

	if _, ok, err := cache.Get(ctx, "global:50"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	lb := domain.Leaderboard{
		Scope:     domain.ScopeGlobal,
		Entries:   []domain.RankEntry{{Rank: 1, UserID: "u1", MaxScore: 60, TotalQuizzes: 3}},
		UpdatedAt: time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC),
	}
	if err := cache.Set(ctx, "global:50", lb); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, ok, err := cache.Get(ctx, "global:50")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if len(got.Entries) != 1 || got.Entries[0].UserID != "u1" || !got.UpdatedAt.Equal(lb.UpdatedAt) {
		t.Fatalf("unexpected cached board: %+v", got)
	}
	if ttl := mr.TTL("dailyquiz:lb:0:global:50"); ttl != 30*time.Second {
		t.Fatalf("expected ttl 30s, got %s", ttl)
	}

	if err := cache.AttemptRecorded(ctx, domain.AttemptEvent{UserID: "u2"}); err != nil {
		t.Fatalf("attempt recorded: %v", err)
	}
	if _, ok, _ := cache.Get(ctx, "global:50"); ok {
		t.Fatalf("expected invalidated board")
	}

	mr.FastForward(31 * time.Second)
	if mr.Exists("dailyquiz:lb:0:global:50") {
		t.Fatalf("expected orphaned board to expire")
	}
}
