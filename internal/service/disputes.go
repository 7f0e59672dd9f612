package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"mailmart/internal/model"
)

// Disputes runs the buyer-report / seller-response sub-flow.
type Disputes struct {
	*base
}

// File opens a dispute on a pending transaction of callerID.
func (d *Disputes) File(ctx context.Context, transactionID, callerID, issueType, description string) (model.Dispute, error) {
	issueType = strings.TrimSpace(issueType)
	if issueType == "" {
		return model.Dispute{}, fmt.Errorf("%w: issue type is required", model.ErrInvalidInput)
	}

	t, err := d.store.Transaction(ctx, transactionID)
	if err != nil {
		return model.Dispute{}, fmt.Errorf("transaction %s: %w", transactionID, err)
	}
	if t.BuyerID != callerID {
		return model.Dispute{}, model.ErrNotAuthorized
	}
	if !t.Status.CanTransitionTo(model.TransactionDisputed) {
		return model.Dispute{}, fmt.Errorf("%w: transaction is %s", model.ErrInvalidState, t.Status)
	}

	now := d.now().UTC()
	dispute, err := d.store.OpenDispute(ctx, model.Dispute{
		ID:            uuid.NewString(),
		TransactionID: t.ID,
		BuyerID:       t.BuyerID,
		SellerID:      t.SellerID,
		IssueType:     issueType,
		Description:   strings.TrimSpace(description),
		Status:        model.DisputePending,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return model.Dispute{}, fmt.Errorf("open dispute on %s: %w", t.ID, err)
	}

	d.logger.Info("dispute filed",
		"dispute_id", dispute.ID,
		"transaction_id", t.ID,
		"issue_type", issueType,
	)
	d.notify(ctx, t.SellerID, model.NotifyDisputeCreated,
		"New Dispute Created",
		fmt.Sprintf("A buyer has disputed a sale. Issue: %s. Respond within %s or the buyer is refunded.", issueType, humanHours(d.cfg.DisputeWindow)),
		dispute.ID)
	return dispute, nil
}

// Respond lets the seller accept (refund the buyer) or reject (keep the
// proceeds) a pending dispute.
func (d *Disputes) Respond(ctx context.Context, disputeID, callerID string, action model.DisputeAction) (model.Transaction, error) {
	if action != model.DisputeAccept && action != model.DisputeReject {
		return model.Transaction{}, fmt.Errorf("%w: unknown action %q", model.ErrInvalidInput, action)
	}

	dispute, err := d.store.Dispute(ctx, disputeID)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("dispute %s: %w", disputeID, err)
	}
	if dispute.SellerID != callerID {
		return model.Transaction{}, model.ErrNotAuthorized
	}
	if dispute.Status != model.DisputePending {
		return model.Transaction{}, fmt.Errorf("%w: dispute already %s", model.ErrInvalidState, dispute.Status)
	}

	t, err := d.store.Transaction(ctx, dispute.TransactionID)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("transaction %s: %w", dispute.TransactionID, err)
	}

	if action == model.DisputeAccept {
		settled, err := d.refund(ctx, t, dispute, resolutionSellerAccepted)
		if err != nil {
			return model.Transaction{}, fmt.Errorf("accept dispute %s: %w", dispute.ID, err)
		}
		d.logger.Info("dispute accepted", "dispute_id", dispute.ID, "transaction_id", t.ID)
		d.notify(ctx, t.BuyerID, model.NotifyDisputeAccepted,
			"Dispute Accepted",
			"The seller accepted your dispute.",
			dispute.ID)
		d.notifyRefund(ctx, settled, resolutionSellerAccepted)
		return settled, nil
	}

	settled, err := d.payout(ctx, t, &dispute, resolutionSellerRejected)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("reject dispute %s: %w", dispute.ID, err)
	}
	d.logger.Info("dispute rejected", "dispute_id", dispute.ID, "transaction_id", t.ID)
	d.notify(ctx, t.BuyerID, model.NotifyDisputeRejected,
		"Dispute Rejected",
		"The seller rejected your dispute. The sale has been finalized.",
		dispute.ID)
	d.notifyPayout(ctx, settled)
	return settled, nil
}

func (d *Disputes) SellerDisputes(ctx context.Context, sellerID string) ([]model.Dispute, error) {
	return d.store.DisputesBySeller(ctx, sellerID)
}

// Dispute is visible to both parties of the dispute.
func (d *Disputes) Dispute(ctx context.Context, disputeID, callerID string) (model.Dispute, error) {
	dispute, err := d.store.Dispute(ctx, disputeID)
	if err != nil {
		return model.Dispute{}, fmt.Errorf("dispute %s: %w", disputeID, err)
	}
	if dispute.BuyerID != callerID && dispute.SellerID != callerID {
		return model.Dispute{}, model.ErrNotAuthorized
	}
	return dispute, nil
}
