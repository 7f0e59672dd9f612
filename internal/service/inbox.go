package service

import (
	"context"

	"mailmart/internal/model"
)

const inboxLimit = 100

type Inbox struct {
	*base
}

func (i *Inbox) List(ctx context.Context, userID string) ([]model.Notification, error) {
	return i.store.Notifications(ctx, userID, inboxLimit)
}

func (i *Inbox) UnreadCount(ctx context.Context, userID string) (int, error) {
	return i.store.UnreadCount(ctx, userID)
}

func (i *Inbox) MarkRead(ctx context.Context, userID, id string) error {
	return i.store.MarkRead(ctx, userID, id)
}

func (i *Inbox) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return i.store.MarkAllRead(ctx, userID)
}
