package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"mailmart/internal/model"
)

const fundingColumns = `id, user_id, kind, amount, status, payment_method, reference,
	account_number, account_name, bank_name, admin_id, admin_note, created_at, updated_at`

func scanFunding(row rowScanner) (model.FundingRequest, error) {
	var (
		r            model.FundingRequest
		kind, status string
	)
	err := row.Scan(&r.ID, &r.UserID, &kind, &r.Amount, &status, &r.PaymentMethod, &r.Reference,
		&r.AccountNumber, &r.AccountName, &r.BankName, &r.AdminID, &r.AdminNote, &r.CreatedAt, &r.UpdatedAt)
	r.Kind = model.FundingKind(kind)
	r.Status = model.FundingStatus(status)
	return r, err
}

func (s *Store) CreateFundingRequest(ctx context.Context, r model.FundingRequest) (model.FundingRequest, error) {
	created, err := scanFunding(s.pool.QueryRow(ctx, `
		INSERT INTO funding_requests (id, user_id, kind, amount, status, payment_method, reference,
			account_number, account_name, bank_name, admin_id, admin_note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, '', '', $11, $11)
		RETURNING `+fundingColumns,
		r.ID, r.UserID, string(r.Kind), r.Amount, string(r.Status), r.PaymentMethod, r.Reference,
		r.AccountNumber, r.AccountName, r.BankName, r.CreatedAt))
	if err != nil {
		return model.FundingRequest{}, fmt.Errorf("insert funding request: %w", mapErr(err))
	}
	return created, nil
}

func (s *Store) FundingRequest(ctx context.Context, id string) (model.FundingRequest, error) {
	r, err := scanFunding(s.pool.QueryRow(ctx, `SELECT `+fundingColumns+` FROM funding_requests WHERE id = $1`, id))
	if err != nil {
		return model.FundingRequest{}, mapErr(err)
	}
	return r, nil
}

// FundingRequests lists requests of kind; an empty userID lists everyone's.
func (s *Store) FundingRequests(ctx context.Context, userID string, kind model.FundingKind) ([]model.FundingRequest, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+fundingColumns+` FROM funding_requests
		WHERE kind = $1 AND ($2 = '' OR user_id = $2)
		ORDER BY created_at DESC`, string(kind), userID)
	if err != nil {
		return nil, fmt.Errorf("query funding requests: %w", err)
	}
	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (model.FundingRequest, error) {
		return scanFunding(r)
	})
}

// ResolveFundingRequest locks the request, applies the balance movement on
// approval and records the decision. A withdrawal never takes a balance
// below zero.
func (s *Store) ResolveFundingRequest(ctx context.Context, res model.FundingResolution) (model.FundingRequest, error) {
	var resolved model.FundingRequest
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		r, err := scanFunding(tx.QueryRow(ctx,
			`SELECT `+fundingColumns+` FROM funding_requests WHERE id = $1 FOR UPDATE`, res.RequestID))
		if err != nil {
			return mapErr(err)
		}
		if r.Status != model.FundingPending {
			return fmt.Errorf("%w: request already %s", model.ErrInvalidState, r.Status)
		}

		if res.Approve {
			var ok bool
			err := tx.QueryRow(ctx, `
				UPDATE users SET balance = balance + $2, updated_at = $3
				WHERE id = $1 AND balance + $2 >= 0
				RETURNING true`, r.UserID, r.Delta(), res.At).Scan(&ok)
			if errors.Is(err, pgx.ErrNoRows) {
				return model.ErrInsufficientFunds
			}
			if err != nil {
				return fmt.Errorf("apply funding: %w", err)
			}
		}

		resolved, err = scanFunding(tx.QueryRow(ctx, `
			UPDATE funding_requests
			SET status = $2, admin_id = $3, admin_note = $4, updated_at = $5
			WHERE id = $1
			RETURNING `+fundingColumns,
			r.ID, string(res.Status()), res.AdminID, res.Note, res.At))
		return err
	})
	return resolved, err
}
