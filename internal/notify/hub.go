package notify

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrHubStopped is returned by Notify after Run has exited.
var ErrHubStopped = errors.New("notification hub stopped")

// Subscriber is one live moderator connection.
type Subscriber interface {
	ID() uuid.UUID
	// SendChannel is written only by the hub.
	SendChannel() chan<- Notification
	Run()
	// Close is called exactly once, by the hub, after the subscriber is removed.
	Close()
}

// Hub owns the subscriber set. All mutations happen inside Run, so the map
// needs no lock.
type Hub struct {
	subscribers map[uuid.UUID]Subscriber

	RegisterCh   chan Subscriber
	UnregisterCh chan Subscriber
	broadcastCh  chan Notification
	countCh      chan chan int
	done         chan struct{}

	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		subscribers:  make(map[uuid.UUID]Subscriber),
		RegisterCh:   make(chan Subscriber),
		UnregisterCh: make(chan Subscriber),
		broadcastCh:  make(chan Notification, 64),
		countCh:      make(chan chan int),
		done:         make(chan struct{}),
		logger:       logger,
	}
}

// Run processes registrations and broadcasts until ctx is cancelled, then
// closes every remaining subscriber.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for id, s := range h.subscribers {
			delete(h.subscribers, id)
			s.Close()
		}
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case s := <-h.RegisterCh:
			h.subscribers[s.ID()] = s
			h.logger.Info("subscriber registered",
				zap.String("subscriber_id", s.ID().String()),
				zap.Int("subscribers", len(h.subscribers)))

		case s := <-h.UnregisterCh:
			h.remove(s.ID())

		case n := <-h.broadcastCh:
			for id, s := range h.subscribers {
				select {
				case s.SendChannel() <- n:
				default:
					h.logger.Warn("dropping slow subscriber", zap.String("subscriber_id", id.String()))
					h.remove(id)
				}
			}

		case reply := <-h.countCh:
			reply <- len(h.subscribers)
		}
	}
}

func (h *Hub) remove(id uuid.UUID) {
	s, ok := h.subscribers[id]
	if !ok {
		return
	}
	delete(h.subscribers, id)
	s.Close()
	h.logger.Info("subscriber unregistered", zap.String("subscriber_id", id.String()))
}

// Register adds s and starts its pumps.
func (h *Hub) Register(s Subscriber) error {
	select {
	case h.RegisterCh <- s:
		s.Run()
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

// Unregister is safe to call after the hub has stopped.
func (h *Hub) Unregister(s Subscriber) {
	select {
	case h.UnregisterCh <- s:
	case <-h.done:
	}
}

// Notify queues n for every subscriber connected to this instance.
func (h *Hub) Notify(ctx context.Context, n Notification) error {
	select {
	case h.broadcastCh <- n:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Count returns the number of registered subscribers.
func (h *Hub) Count() int {
	reply := make(chan int, 1)
	select {
	case h.countCh <- reply:
		return <-reply
	case <-h.done:
		return 0
	}
}
