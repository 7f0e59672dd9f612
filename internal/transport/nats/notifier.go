package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"mailmart/internal/model"
)

// Notifier hands notifications to the bus; a worker persists them.
type Notifier struct {
	bus Publisher
}

func NewNotifier(bus Publisher) *Notifier {
	return &Notifier{bus: bus}
}

func (n *Notifier) Notify(_ context.Context, note model.Notification) error {
	data, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := n.bus.Publish(model.NotificationsSubject, data); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}
