package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"mailmart/internal/model"
	"mailmart/internal/service"
)

// NotificationWorker listens on model.NotificationsSubject and stores each
// notification in the recipient's inbox.
type NotificationWorker struct {
	store    service.NotificationStore
	natsConn *nats.Conn
	logger   *slog.Logger
}

func NewNotificationWorker(store service.NotificationStore, nc *nats.Conn, logger *slog.Logger) *NotificationWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationWorker{store: store, natsConn: nc, logger: logger}
}

// Start subscribes and blocks until ctx is cancelled.
func (w *NotificationWorker) Start(ctx context.Context) error {
	// Queue group: each notification is written by one replica only.
	sub, err := w.natsConn.QueueSubscribe(model.NotificationsSubject, "notification_writers", w.onMessage(ctx))
	if err != nil {
		return fmt.Errorf("worker: failed to subscribe to NATS: %w", err)
	}

	w.logger.Info("notification worker is running")

	<-ctx.Done()

	w.logger.Info("notification worker received shutdown signal, draining subscription")
	return sub.Drain()
}

func (w *NotificationWorker) Stop(context.Context) error {
	return nil
}

// onMessage stores each delivery. Drain keeps delivering buffered messages
// after ctx ends, so the store call does not inherit its cancellation.
func (w *NotificationWorker) onMessage(ctx context.Context) nats.MsgHandler {
	storeCtx := context.WithoutCancel(ctx)
	return func(m *nats.Msg) {
		_ = w.handle(storeCtx, m.Data)
	}
}

func (w *NotificationWorker) handle(ctx context.Context, data []byte) error {
	var n model.Notification
	if err := json.Unmarshal(data, &n); err != nil {
		w.logger.Error("worker: failed to unmarshal notification", "error", err)
		return err
	}
	if n.ID == "" || n.UserID == "" {
		w.logger.Error("worker: notification without id or recipient", "id", n.ID)
		return model.ErrInvalidInput
	}
	// Redelivered messages are ignored by the store.
	if err := w.store.CreateNotification(ctx, n); err != nil {
		w.logger.Error("worker: failed to store notification",
			"notification_id", n.ID,
			"user_id", n.UserID,
			"error", err,
		)
		return err
	}
	w.logger.Debug("worker: notification stored", "notification_id", n.ID, "type", n.Type)
	return nil
}
