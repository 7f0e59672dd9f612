package model

import (
	"fmt"
	"time"
)

type DisputeStatus string

const (
	DisputePending  DisputeStatus = "pending"
	DisputeAccepted DisputeStatus = "accepted"
	DisputeRejected DisputeStatus = "rejected"
)

func ParseDisputeStatus(s string) (DisputeStatus, error) {
	switch st := DisputeStatus(s); st {
	case DisputePending, DisputeAccepted, DisputeRejected:
		return st, nil
	}
	return "", fmt.Errorf("%w: unknown dispute status %q", ErrInvalidInput, s)
}

func (s DisputeStatus) CanTransitionTo(next DisputeStatus) bool {
	return s == DisputePending && (next == DisputeAccepted || next == DisputeRejected)
}

type Dispute struct {
	ID             string        `json:"id"`
	TransactionID  string        `json:"transaction_id"`
	BuyerID        string        `json:"buyer_id"`
	SellerID       string        `json:"seller_id"`
	IssueType      string        `json:"issue_type"`
	Description    string        `json:"description"`
	Status         DisputeStatus `json:"status"`
	SellerResponse string        `json:"seller_response,omitempty"`
	IsResolved     bool          `json:"is_resolved"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// ResponseDue reports whether the seller's response window has closed at now.
func (d Dispute) ResponseDue(now time.Time, window time.Duration) bool {
	return d.Status == DisputePending && !now.Before(d.CreatedAt.Add(window))
}

type DisputeAction string

const (
	DisputeAccept DisputeAction = "accept"
	DisputeReject DisputeAction = "reject"
)
