package app

import (
	"context"
	"sync"

	"dailyquiz-service/internal/domain"
	"dailyquiz-service/internal/logger"
)

// Feed pushes the global leaderboard to live subscribers whenever an attempt
// is recorded anywhere in the deployment.
type Feed struct {
	aggregator *Aggregator
	limit      int
	log        *logger.Logger

	mu  sync.Mutex
	seq uint64
	// subscribers maps each channel to the sequence of the last snapshot it got.
	subscribers map[chan domain.Leaderboard]uint64
}

func NewFeed(aggregator *Aggregator, limit int, log *logger.Logger) *Feed {
	return &Feed{
		aggregator:  aggregator,
		limit:       limit,
		log:         log.With("component", "feed"),
		subscribers: make(map[chan domain.Leaderboard]uint64),
	}
}

// Subscribe returns a channel that first receives the current leaderboard and
// then every refresh. The channel is registered before the first snapshot is
// computed, so no refresh in between is missed. The caller must invoke the
// returned cancel function.
func (f *Feed) Subscribe(ctx context.Context) (<-chan domain.Leaderboard, func(), error) {
	ch := make(chan domain.Leaderboard, 8)

	f.mu.Lock()
	f.subscribers[ch] = 0
	seq := f.nextSeqLocked()
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if _, ok := f.subscribers[ch]; ok {
			delete(f.subscribers, ch)
			close(ch)
		}
		f.mu.Unlock()
	}

	initial, err := f.aggregator.Rank(ctx, domain.ScopeGlobal, "", f.limit)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	f.mu.Lock()
	if _, ok := f.subscribers[ch]; ok {
		f.deliverLocked(ch, seq, initial)
	}
	f.mu.Unlock()
	return ch, cancel, nil
}

// Subscribers reports how many live subscribers are attached.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers)
}

// Refresh recomputes the leaderboard and broadcasts it.
func (f *Feed) Refresh(ctx context.Context) error {
	f.mu.Lock()
	if len(f.subscribers) == 0 {
		f.mu.Unlock()
		return nil
	}
	seq := f.nextSeqLocked()
	f.mu.Unlock()

	lb, err := f.aggregator.Rank(ctx, domain.ScopeGlobal, "", f.limit)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subscribers {
		f.deliverLocked(ch, seq, lb)
	}
	return nil
}

// Run refreshes the feed for every event on bus until ctx is done.
func (f *Feed) Run(ctx context.Context, bus EventBus) error {
	return bus.Listen(ctx, func(event domain.AttemptEvent) {
		if err := f.Refresh(ctx); err != nil {
			f.log.Warn("leaderboard refresh failed", "attempt_id", event.AttemptID, "error", err)
		}
	})
}

func (f *Feed) nextSeqLocked() uint64 {
	f.seq++
	return f.seq
}

// deliverLocked sends lb unless ch already holds a snapshot computed later.
func (f *Feed) deliverLocked(ch chan domain.Leaderboard, seq uint64, lb domain.Leaderboard) {
	if seq <= f.subscribers[ch] {
		return
	}
	f.subscribers[ch] = seq
	select {
	case ch <- lb:
	default:
		// slow subscriber: replace its oldest snapshot
		select {
		case <-ch:
		default:
		}
		ch <- lb
	}
}
