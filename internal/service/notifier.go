package service

import (
	"context"

	"mailmart/internal/model"
)

// Notifier is the fire-and-forget side channel.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// StoreNotifier writes notifications straight into the inbox table.
type StoreNotifier struct {
	store NotificationStore
}

func NewStoreNotifier(store NotificationStore) *StoreNotifier {
	return &StoreNotifier{store: store}
}

func (s *StoreNotifier) Notify(ctx context.Context, n model.Notification) error {
	return s.store.CreateNotification(ctx, n)
}

type DiscardNotifier struct{}

func (DiscardNotifier) Notify(context.Context, model.Notification) error { return nil }
