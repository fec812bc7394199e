package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"emprendo-intake/internal/domain"
)

const (
	TypeNotifyApproved = "intake:notify:approved"
	TypeNotifyRejected = "intake:notify:rejected"
)

// DefaultMaxRetry bounds redelivery attempts of a notification task.
const DefaultMaxRetry = 5

func taskType(kind domain.NotificationKind) (string, error) {
	switch kind {
	case domain.NotificationApproved:
		return TypeNotifyApproved, nil
	case domain.NotificationRejected:
		return TypeNotifyRejected, nil
	}
	return "", fmt.Errorf("unknown notification kind %q", kind)
}

// NewNotificationTask encodes event as the task the email collaborator consumes.
func NewNotificationTask(event domain.NotificationEvent) (*asynq.Task, error) {
	typ, err := taskType(event.Kind)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typ, payload), nil
}

// ParseNotificationTask decodes a task produced by NewNotificationTask.
func ParseNotificationTask(t *asynq.Task) (domain.NotificationEvent, error) {
	var event domain.NotificationEvent
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		return domain.NotificationEvent{}, err
	}
	if typ, err := taskType(event.Kind); err != nil || typ != t.Type() {
		return domain.NotificationEvent{}, fmt.Errorf("task %s carries a %q event", t.Type(), event.Kind)
	}
	return event, nil
}

// Notifier publishes stage-1 outcomes as asynq tasks. The task id is derived
// from the application and outcome, so a retried grading step enqueues once.
type Notifier struct {
	client   *asynq.Client
	queue    string
	maxRetry int
}

func NewNotifier(client *asynq.Client, queue string, maxRetry int) *Notifier {
	if maxRetry <= 0 {
		maxRetry = DefaultMaxRetry
	}
	return &Notifier{client: client, queue: queue, maxRetry: maxRetry}
}

func (n *Notifier) Notify(ctx context.Context, event domain.NotificationEvent) error {
	task, err := NewNotificationTask(event)
	if err != nil {
		return err
	}
	opts := []asynq.Option{asynq.TaskID(TaskID(event)), asynq.MaxRetry(n.maxRetry)}
	if n.queue != "" {
		opts = append(opts, asynq.Queue(n.queue))
	}
	info, err := n.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		log.Printf("notification %s for application=%d already enqueued", event.Kind, event.ApplicationID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	log.Printf("enqueued %s task %s for application=%d", task.Type(), info.ID, event.ApplicationID)
	return nil
}

// TaskID is the deduplication key of a notification.
func TaskID(event domain.NotificationEvent) string {
	return fmt.Sprintf("notify-%d-%s", event.ApplicationID, event.Kind)
}
