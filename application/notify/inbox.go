package notify

import (
	"context"
	"sync"

	"relmap/application/ports"

	"go.uber.org/zap"
)

// DefaultCapacity bounds each user's inbox
const DefaultCapacity = 50

// Inbox keeps the latest notifications of every user until they are read.
// When full the oldest notification is dropped.
type Inbox struct {
	mu       sync.Mutex
	capacity int
	items    map[string][]ports.Notification
}

// NewInbox creates an inbox holding at most capacity notifications per user
func NewInbox(capacity int) *Inbox {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Inbox{capacity: capacity, items: make(map[string][]ports.Notification)}
}

// Notify stores a notification
func (i *Inbox) Notify(ctx context.Context, notification ports.Notification) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	list := append(i.items[notification.UserID], notification)
	if over := len(list) - i.capacity; over > 0 {
		list = append([]ports.Notification(nil), list[over:]...)
	}
	i.items[notification.UserID] = list
	return nil
}

// Drain returns and removes the notifications of userID, oldest first
func (i *Inbox) Drain(userID string) []ports.Notification {
	i.mu.Lock()
	defer i.mu.Unlock()

	list := i.items[userID]
	delete(i.items, userID)
	if list == nil {
		return []ports.Notification{}
	}
	return list
}

// Count returns the number of unread notifications of userID
func (i *Inbox) Count(userID string) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.items[userID])
}

// Fanout delivers to several notifiers. One failing target does not stop the others.
type Fanout struct {
	targets []ports.Notifier
	logger  *zap.Logger
}

// NewFanout creates a notifier delivering to every non-nil target
func NewFanout(logger *zap.Logger, targets ...ports.Notifier) *Fanout {
	f := &Fanout{logger: logger}
	for _, t := range targets {
		if t != nil {
			f.targets = append(f.targets, t)
		}
	}
	return f
}

// Notify delivers to every target and returns the first error
func (f *Fanout) Notify(ctx context.Context, notification ports.Notification) error {
	var firstErr error
	for _, target := range f.targets {
		if err := target.Notify(ctx, notification); err != nil {
			f.logger.Warn("Notification target failed",
				zap.String("userID", notification.UserID),
				zap.String("operation", notification.Operation),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
