package memory

import (
	"context"
	"log"
	"sync"

	"emprendo-intake/internal/domain"
)

// Outbox records notification events when no queue is configured.
type Outbox struct {
	mu     sync.Mutex
	events []domain.NotificationEvent
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) Notify(_ context.Context, event domain.NotificationEvent) error {
	o.mu.Lock()
	o.events = append(o.events, event)
	o.mu.Unlock()
	log.Printf("notification %s queued in memory for application=%d", event.Kind, event.ApplicationID)
	return nil
}

// Events returns a copy of everything notified so far.
func (o *Outbox) Events() []domain.NotificationEvent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]domain.NotificationEvent(nil), o.events...)
}
