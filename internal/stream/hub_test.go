package stream

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ticketblitz/ticketblitz-backend/internal/ledger"
	"github.com/ticketblitz/ticketblitz-backend/pkg/types"
)

type fakeSnapshotter struct {
	mu       sync.Mutex
	counts   map[uuid.UUID][]ledger.TierAvailability
	barrier  chan struct{}
	released chan struct{}
	err      error
}

func newFakeSnapshotter() *fakeSnapshotter {
	return &fakeSnapshotter{counts: make(map[uuid.UUID][]ledger.TierAvailability)}
}

func (f *fakeSnapshotter) EventAvailability(_ context.Context, eventID uuid.UUID) ([]ledger.TierAvailability, error) {
	if f.barrier != nil {
		close(f.released)
		<-f.barrier
	}
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ledger.TierAvailability(nil), f.counts[eventID]...), nil
}

func collect(t *testing.T, sub *Subscription, n int) []types.StockDelta {
	t.Helper()
	out := make([]types.StockDelta, 0, n)
	timeout := time.After(2 * time.Second)
	for len(out) < n {
		select {
		case delta, ok := <-sub.Deltas():
			if !ok {
				t.Fatalf("channel closed after %d deltas", len(out))
			}
			out = append(out, delta)
		case <-timeout:
			t.Fatalf("timed out after %d of %d deltas", len(out), n)
		}
	}
	return out
}

func TestSubscribeDeliversSnapshotThenDeltas(t *testing.T) {
	eventID := uuid.New()
	tierID := uuid.New()
	source := newFakeSnapshotter()
	source.counts[eventID] = []ledger.TierAvailability{{TierID: tierID, Name: "General", Remaining: 10}}

	hub, err := NewHub(source, nil, 8)
	if err != nil {
		t.Fatalf("new hub: %v", err)
	}

	sub, err := hub.Subscribe(context.Background(), eventID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	if len(sub.Snapshot) != 1 || sub.Snapshot[0].Remaining != 10 {
		t.Fatalf("unexpected snapshot %+v", sub.Snapshot)
	}

	for _, remaining := range []int{2, 1, 3} {
		hub.Publish(types.StockDelta{EventID: eventID, TierID: tierID, Remaining: remaining})
	}

	got := collect(t, sub, 3)
	for i, want := range []int{2, 1, 3} {
		if got[i].Remaining != want {
			t.Fatalf("delta %d: expected %d, got %d", i, want, got[i].Remaining)
		}
	}
}

func TestDeltasDuringSnapshotAreNotLost(t *testing.T) {
	eventID := uuid.New()
	tierID := uuid.New()
	source := newFakeSnapshotter()
	source.counts[eventID] = []ledger.TierAvailability{{TierID: tierID, Name: "General", Remaining: 10}}
	source.barrier = make(chan struct{})
	source.released = make(chan struct{})

	hub, err := NewHub(source, nil, 8)
	if err != nil {
		t.Fatalf("new hub: %v", err)
	}

	type result struct {
		sub *Subscription
		err error
	}
	done := make(chan result, 1)
	go func() {
		sub, err := hub.Subscribe(context.Background(), eventID)
		done <- result{sub: sub, err: err}
	}()

	// wait until the subscriber is registered but still reading its snapshot,
	// then publish
	<-source.released
	hub.Publish(types.StockDelta{EventID: eventID, TierID: tierID, Remaining: 9})
	close(source.barrier)

	res := <-done
	if res.err != nil {
		t.Fatalf("subscribe: %v", res.err)
	}
	defer res.sub.Close()

	got := collect(t, res.sub, 1)
	if got[0].Remaining != 9 {
		t.Fatalf("expected buffered delta 9, got %d", got[0].Remaining)
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	eventID := uuid.New()
	tierID := uuid.New()
	source := newFakeSnapshotter()

	hub, err := NewHub(source, nil, 2)
	if err != nil {
		t.Fatalf("new hub: %v", err)
	}

	sub, err := hub.Subscribe(context.Background(), eventID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	// publish more than the buffer holds; none of these may block
	finished := make(chan struct{})
	go func() {
		for remaining := 10; remaining > 0; remaining-- {
			hub.Publish(types.StockDelta{EventID: eventID, TierID: tierID, Remaining: remaining})
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	// oldest deltas were shed; the buffer converged on the newest counts
	got := collect(t, sub, 2)
	if got[0].Remaining != 2 || got[1].Remaining != 1 {
		t.Fatalf("unexpected buffered deltas %+v", got)
	}
}

func TestPublishIgnoresOtherEvents(t *testing.T) {
	eventID := uuid.New()
	source := newFakeSnapshotter()

	hub, err := NewHub(source, nil, 8)
	if err != nil {
		t.Fatalf("new hub: %v", err)
	}

	sub, err := hub.Subscribe(context.Background(), eventID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	hub.Publish(types.StockDelta{EventID: uuid.New(), TierID: uuid.New(), Remaining: 1})

	select {
	case delta := <-sub.Deltas():
		t.Fatalf("unexpected delta %+v", delta)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCloseDetachesSubscriber(t *testing.T) {
	eventID := uuid.New()
	source := newFakeSnapshotter()

	hub, err := NewHub(source, nil, 8)
	if err != nil {
		t.Fatalf("new hub: %v", err)
	}

	sub, err := hub.Subscribe(context.Background(), eventID)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if got := hub.SubscriberCount(eventID); got != 1 {
		t.Fatalf("expected 1 subscriber, got %d", got)
	}

	sub.Close()
	sub.Close() // idempotent

	if got := hub.SubscriberCount(eventID); got != 0 {
		t.Fatalf("expected 0 subscribers, got %d", got)
	}
	if _, ok := <-sub.Deltas(); ok {
		t.Fatal("expected closed channel")
	}
}

func TestSubscribeSurfacesSnapshotError(t *testing.T) {
	source := newFakeSnapshotter()
	source.err = fmt.Errorf("ledger unavailable")

	hub, err := NewHub(source, nil, 8)
	if err != nil {
		t.Fatalf("new hub: %v", err)
	}

	eventID := uuid.New()
	if _, err := hub.Subscribe(context.Background(), eventID); err == nil {
		t.Fatal("expected snapshot error")
	}
	if got := hub.SubscriberCount(eventID); got != 0 {
		t.Fatalf("failed subscribe must not leak, got %d", got)
	}
}
