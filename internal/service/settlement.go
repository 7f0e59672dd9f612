package service

import (
	"context"
	"fmt"
	"time"

	"mailmart/internal/model"
)

const (
	resolutionSellerAccepted = "Seller accepted the dispute and processed refund"
	resolutionSellerRejected = "Seller rejected the dispute claim"
)

func autoAcceptResolution(cfg Config) string {
	return fmt.Sprintf("Auto-accepted due to no seller response within %s", humanHours(cfg.DisputeWindow))
}

// payout settles t in the seller's favour. The seller receives the
// category's buy price, never the amount the buyer paid.
func (b *base) payout(ctx context.Context, t model.Transaction, d *model.Dispute, resolution string) (model.Transaction, error) {
	cat, err := b.store.Category(ctx, t.CategoryID)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("category %s: %w", t.CategoryID, err)
	}
	s := model.Settlement{
		TransactionID: t.ID,
		From:          t.Status,
		To:            model.TransactionVerified,
		CreditParty:   t.SellerID,
		CreditAmount:  cat.BuyPrice,
		At:            b.now().UTC(),
	}
	if d != nil {
		s.From = model.TransactionDisputed
		s.DisputeID = d.ID
		s.DisputeStatus = model.DisputeRejected
		s.Resolution = resolution
	}
	if err := s.Validate(); err != nil {
		return model.Transaction{}, err
	}
	return b.store.Settle(ctx, s)
}

// refund settles a disputed transaction in the buyer's favour with the
// frozen purchase amount.
func (b *base) refund(ctx context.Context, t model.Transaction, d model.Dispute, resolution string) (model.Transaction, error) {
	s := model.Settlement{
		TransactionID: t.ID,
		From:          model.TransactionDisputed,
		To:            model.TransactionRefunded,
		CreditParty:   t.BuyerID,
		CreditAmount:  t.Amount,
		DisputeID:     d.ID,
		DisputeStatus: model.DisputeAccepted,
		Resolution:    resolution,
		At:            b.now().UTC(),
	}
	if err := s.Validate(); err != nil {
		return model.Transaction{}, err
	}
	return b.store.Settle(ctx, s)
}

func (b *base) notifyPayout(ctx context.Context, t model.Transaction) {
	b.notify(ctx, t.SellerID, model.NotifySaleVerified,
		"Sale Verified",
		"A sale has been verified and the payout was added to your balance.",
		t.ID)
}

func (b *base) notifyRefund(ctx context.Context, t model.Transaction, reason string) {
	b.notify(ctx, t.BuyerID, model.NotifyRefund,
		"Refund Processed",
		fmt.Sprintf("Your refund of $%s has been added to your balance. Reason: %s", t.Amount.StringFixed(2), reason),
		t.ID)
}

func humanHours(d time.Duration) string {
	h := d.Hours()
	if h == float64(int64(h)) {
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", int64(h))
	}
	return fmt.Sprintf("%.1f hours", h)
}
