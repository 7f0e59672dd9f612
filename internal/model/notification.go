package model

import "time"

type NotificationType string

const (
	NotifyPurchase           NotificationType = "purchase"
	NotifyAccountSold        NotificationType = "account_sold"
	NotifySaleVerified       NotificationType = "sale_verified"
	NotifyDisputeCreated     NotificationType = "dispute_created"
	NotifyDisputeAccepted    NotificationType = "dispute_accepted"
	NotifyDisputeRejected    NotificationType = "dispute_rejected"
	NotifyRefund             NotificationType = "refund"
	NotifyDepositApproved    NotificationType = "deposit_approved"
	NotifyDepositRejected    NotificationType = "deposit_rejected"
	NotifyWithdrawalApproved NotificationType = "withdrawal_approved"
	NotifyWithdrawalRejected NotificationType = "withdrawal_rejected"
)

type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	RelatedID string           `json:"related_id,omitempty"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
}

// NotificationsSubject carries JSON-encoded notifications on the bus.
const NotificationsSubject = "notifications.created"
