package rabbit

import (
	"context"
	"encoding/json"
	"fmt"

	"workshopportal/internal/dto"
)

type Publisher interface {
	Publish(ctx context.Context, message []byte) error
}

// QueueNotifier defers confirmation emails to the consumer worker by
// publishing them instead of sending inline.
type QueueNotifier struct {
	pub Publisher
}

func NewQueueNotifier(pub Publisher) *QueueNotifier {
	return &QueueNotifier{pub: pub}
}

func (n *QueueNotifier) Notify(ctx context.Context, name, email, workshop string) error {
	payload, err := json.Marshal(dto.NotificationMessage{
		Name:     name,
		Email:    email,
		Workshop: workshop,
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := n.pub.Publish(ctx, payload); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}
