package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mailmart/internal/model"
)

// Sweeper force-resolves records whose deadline passed without action.
type Sweeper struct {
	*base
}

type SweepFailure struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
	Err  string `json:"error"`
}

type SweepResult struct {
	Now                  time.Time      `json:"now"`
	TransactionsFound    int            `json:"transactions_found"`
	TransactionsVerified int            `json:"transactions_verified"`
	TransactionsSkipped  int            `json:"transactions_skipped"`
	DisputesFound        int            `json:"disputes_found"`
	DisputesAccepted     int            `json:"disputes_accepted"`
	DisputesSkipped      int            `json:"disputes_skipped"`
	Failures             []SweepFailure `json:"failures,omitempty"`
	Duration             time.Duration  `json:"duration_ns"`
}

func (r SweepResult) Empty() bool {
	return r.TransactionsFound == 0 && r.DisputesFound == 0
}

// Run executes both passes against now. A scan error in one pass does not
// prevent the other; per-record errors are logged and counted.
func (s *Sweeper) Run(ctx context.Context, now time.Time) (SweepResult, error) {
	started := time.Now()
	res := SweepResult{Now: now.UTC()}

	verifyErr := s.autoVerify(ctx, now, &res)
	acceptErr := s.autoAccept(ctx, now, &res)

	res.Duration = time.Since(started)
	return res, errors.Join(verifyErr, acceptErr)
}

func (s *Sweeper) autoVerify(ctx context.Context, now time.Time, res *SweepResult) error {
	due, err := s.store.DueTransactions(ctx, now, s.cfg.SweepBatchSize)
	if err != nil {
		return fmt.Errorf("scan due transactions: %w", err)
	}
	res.TransactionsFound = len(due)

	for _, t := range due {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Scan results may be stale; the store re-checks the status.
		if !t.VerificationDue(now) {
			res.TransactionsSkipped++
			continue
		}
		settled, err := s.payout(ctx, t, nil, "")
		switch {
		case errors.Is(err, model.ErrInvalidState):
			res.TransactionsSkipped++
			s.logger.Debug("auto-verify skipped, transaction already finalized", "transaction_id", t.ID)
		case err != nil:
			res.Failures = append(res.Failures, SweepFailure{Kind: "transaction", ID: t.ID, Err: err.Error()})
			s.logger.Error("auto-verify failed", "transaction_id", t.ID, "error", err)
		default:
			res.TransactionsVerified++
			s.logger.Info("transaction auto-verified", "transaction_id", t.ID, "seller_id", t.SellerID)
			s.notifyPayout(ctx, settled)
		}
	}
	return nil
}

func (s *Sweeper) autoAccept(ctx context.Context, now time.Time, res *SweepResult) error {
	stale, err := s.store.StaleDisputes(ctx, now.Add(-s.cfg.DisputeWindow), s.cfg.SweepBatchSize)
	if err != nil {
		return fmt.Errorf("scan stale disputes: %w", err)
	}
	res.DisputesFound = len(stale)
	resolution := autoAcceptResolution(s.cfg)

	for _, d := range stale {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.ResponseDue(now, s.cfg.DisputeWindow) {
			res.DisputesSkipped++
			continue
		}
		t, err := s.store.Transaction(ctx, d.TransactionID)
		if err != nil {
			res.Failures = append(res.Failures, SweepFailure{Kind: "dispute", ID: d.ID, Err: err.Error()})
			s.logger.Error("auto-accept failed", "dispute_id", d.ID, "error", err)
			continue
		}
		settled, err := s.refund(ctx, t, d, resolution)
		switch {
		case errors.Is(err, model.ErrInvalidState):
			res.DisputesSkipped++
			s.logger.Debug("auto-accept skipped, dispute already answered", "dispute_id", d.ID)
		case err != nil:
			res.Failures = append(res.Failures, SweepFailure{Kind: "dispute", ID: d.ID, Err: err.Error()})
			s.logger.Error("auto-accept failed", "dispute_id", d.ID, "error", err)
		default:
			res.DisputesAccepted++
			s.logger.Info("dispute auto-accepted", "dispute_id", d.ID, "transaction_id", t.ID)
			s.notify(ctx, d.SellerID, model.NotifyDisputeAccepted,
				"Dispute Auto-Accepted",
				resolution,
				d.ID)
			s.notifyRefund(ctx, settled, resolution)
		}
	}
	return nil
}
