package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"mailmart/internal/model"
)

const disputeColumns = `id, transaction_id, buyer_id, seller_id, issue_type, description, status,
	seller_response, is_resolved, created_at, updated_at`

func scanDispute(row rowScanner) (model.Dispute, error) {
	var (
		d      model.Dispute
		status string
	)
	err := row.Scan(&d.ID, &d.TransactionID, &d.BuyerID, &d.SellerID, &d.IssueType, &d.Description,
		&status, &d.SellerResponse, &d.IsResolved, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return model.Dispute{}, err
	}
	d.Status, err = model.ParseDisputeStatus(status)
	return d, err
}

// OpenDispute moves the transaction out of pending and inserts the dispute.
// The unique index on transaction_id backs the one-dispute rule.
func (s *Store) OpenDispute(ctx context.Context, d model.Dispute) (model.Dispute, error) {
	var created model.Dispute
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE transactions SET status = 'disputed', is_disputed = true, updated_at = $2
			WHERE id = $1 AND status = 'pending'`, d.TransactionID, d.CreatedAt)
		if err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return missingOrState(ctx, tx, "transactions", d.TransactionID)
		}

		created, err = scanDispute(tx.QueryRow(ctx, `
			INSERT INTO disputes (id, transaction_id, buyer_id, seller_id, issue_type, description, status,
				seller_response, is_resolved, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, '', false, $8, $8)
			RETURNING `+disputeColumns,
			d.ID, d.TransactionID, d.BuyerID, d.SellerID, d.IssueType, d.Description, string(d.Status), d.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert dispute: %w", mapErr(err))
		}
		return nil
	})
	return created, err
}

func (s *Store) Dispute(ctx context.Context, id string) (model.Dispute, error) {
	d, err := scanDispute(s.pool.QueryRow(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1`, id))
	if err != nil {
		return model.Dispute{}, mapErr(err)
	}
	return d, nil
}

func (s *Store) DisputesBySeller(ctx context.Context, sellerID string) ([]model.Dispute, error) {
	return s.queryDisputes(ctx, `SELECT `+disputeColumns+` FROM disputes
		WHERE seller_id = $1 ORDER BY created_at DESC`, sellerID)
}

func (s *Store) StaleDisputes(ctx context.Context, createdBefore time.Time, limit int) ([]model.Dispute, error) {
	return s.queryDisputes(ctx, `SELECT `+disputeColumns+` FROM disputes
		WHERE status = 'pending' AND created_at <= $1
		ORDER BY created_at
		LIMIT $2`, createdBefore, limit)
}

func (s *Store) RecentDisputes(ctx context.Context, limit int) ([]model.Dispute, error) {
	return s.queryDisputes(ctx, `SELECT `+disputeColumns+` FROM disputes
		ORDER BY created_at DESC, id
		LIMIT $1`, limit)
}

func (s *Store) queryDisputes(ctx context.Context, sql string, args ...any) ([]model.Dispute, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query disputes: %w", err)
	}
	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (model.Dispute, error) {
		return scanDispute(r)
	})
}
