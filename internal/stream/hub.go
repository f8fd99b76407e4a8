package stream

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ticketblitz/ticketblitz-backend/internal/ledger"
	"github.com/ticketblitz/ticketblitz-backend/pkg/metrics"
	"github.com/ticketblitz/ticketblitz-backend/pkg/types"
)

const defaultSubscriberBuffer = 32

type snapshotter interface {
	EventAvailability(ctx context.Context, eventID uuid.UUID) ([]ledger.TierAvailability, error)
}

// Subscription is one live listener on an event's stock channel. Snapshot
// holds the per-tier counts as of subscribe time; Deltas carries every change
// committed after that point.
type Subscription struct {
	Snapshot []ledger.TierAvailability

	deltas chan types.StockDelta
	once   sync.Once
	hub    *Hub
	id     uint64
	event  uuid.UUID
}

// Deltas returns the live delta channel. It is closed when the subscription
// is cancelled.
func (s *Subscription) Deltas() <-chan types.StockDelta {
	return s.deltas
}

// Close detaches the subscription from the hub.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s.event, s.id)
	})
}

type subscriber struct {
	ch      chan types.StockDelta
	pending []types.StockDelta
	live    bool
}

// Hub fans stock deltas out to in-process subscribers. A subscriber that
// cannot keep up loses deltas rather than blocking the publisher; the next
// delta it does receive carries the absolute count, so a dropped update only
// delays convergence.
type Hub struct {
	mu      sync.Mutex
	nextID  uint64
	events  map[uuid.UUID]map[uint64]*subscriber
	source  snapshotter
	metrics *metrics.StreamMetrics
	buffer  int
}

// NewHub builds a hub that snapshots from the provided availability source.
func NewHub(source snapshotter, streamMetrics *metrics.StreamMetrics, buffer int) (*Hub, error) {
	if source == nil {
		return nil, fmt.Errorf("availability source required")
	}
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Hub{
		events:  make(map[uuid.UUID]map[uint64]*subscriber),
		source:  source,
		metrics: streamMetrics,
		buffer:  buffer,
	}, nil
}

// Subscribe registers a listener for the event and captures a snapshot of the
// current counts. Deltas published while the snapshot is being read are
// buffered and flushed into the channel before the subscription goes live, so
// a client that applies Snapshot first and then replays Deltas never observes
// counts out of order.
func (h *Hub) Subscribe(ctx context.Context, eventID uuid.UUID) (*Subscription, error) {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	sub := &subscriber{ch: make(chan types.StockDelta, h.buffer)}
	subs, ok := h.events[eventID]
	if !ok {
		subs = make(map[uint64]*subscriber)
		h.events[eventID] = subs
	}
	subs[id] = sub
	h.mu.Unlock()

	snapshot, err := h.source.EventAvailability(ctx, eventID)
	if err != nil {
		h.remove(eventID, id)
		return nil, err
	}

	h.mu.Lock()
	for _, delta := range sub.pending {
		h.deliver(sub, delta)
	}
	sub.pending = nil
	sub.live = true
	h.mu.Unlock()

	h.metrics.SubscriberConnected()
	return &Subscription{
		Snapshot: snapshot,
		deltas:   sub.ch,
		hub:      h,
		id:       id,
		event:    eventID,
	}, nil
}

// Publish fans a delta out to the event's subscribers. It never blocks.
func (h *Hub) Publish(delta types.StockDelta) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.events[delta.EventID] {
		if !sub.live {
			sub.pending = append(sub.pending, delta)
			continue
		}
		h.deliver(sub, delta)
	}
}

// deliver pushes into the subscriber channel without blocking. When the
// buffer is full the oldest delta is shed instead of the incoming one: counts
// are absolute, so a stalled reader that keeps only the newest values still
// converges on the real remaining stock. Callers hold h.mu.
func (h *Hub) deliver(sub *subscriber, delta types.StockDelta) {
	select {
	case sub.ch <- delta:
		h.metrics.IncDelivered()
		return
	default:
	}

	select {
	case <-sub.ch:
		h.metrics.IncDropped()
	default:
	}
	select {
	case sub.ch <- delta:
		h.metrics.IncDelivered()
	default:
		h.metrics.IncDropped()
	}
}

// SubscriberCount reports the listeners registered for an event.
func (h *Hub) SubscriberCount(eventID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events[eventID])
}

func (h *Hub) remove(eventID uuid.UUID, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.events[eventID]
	if !ok {
		return
	}
	sub, ok := subs[id]
	if !ok {
		return
	}
	delete(subs, id)
	if len(subs) == 0 {
		delete(h.events, eventID)
	}
	close(sub.ch)
	if sub.live {
		h.metrics.SubscriberDisconnected()
	}
}
