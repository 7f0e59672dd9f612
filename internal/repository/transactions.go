package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"mailmart/internal/model"
)

const transactionColumns = `id, buyer_id, seller_id, item_id, category_id, amount, status,
	is_verified, is_disputed, verification_deadline, created_at, updated_at`

func scanTransaction(row rowScanner) (model.Transaction, error) {
	var (
		t      model.Transaction
		status string
	)
	err := row.Scan(&t.ID, &t.BuyerID, &t.SellerID, &t.ItemID, &t.CategoryID, &t.Amount, &status,
		&t.IsVerified, &t.IsDisputed, &t.VerificationDeadline, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return model.Transaction{}, err
	}
	t.Status, err = model.ParseTransactionStatus(status)
	return t, err
}

// Purchase reserves the items, then debits the buyer with a conditional
// decrement. Any failure rolls back both.
func (s *Store) Purchase(ctx context.Context, o model.PurchaseOrder) (model.Purchase, error) {
	var p model.Purchase
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		for _, party := range []string{o.BuyerID, o.SellerID} {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, party).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("party %s: %w", party, model.ErrNotFound)
			}
		}

		items, err := reserve(ctx, tx, o.SellerID, o.CategoryID, o.Quantity)
		if err != nil {
			return err
		}

		total := o.Total()
		var balance decimal.Decimal
		err = tx.QueryRow(ctx, `
			UPDATE users SET balance = balance - $2, updated_at = $3
			WHERE id = $1 AND balance >= $2
			RETURNING balance`, o.BuyerID, total, o.At).Scan(&balance)
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ErrInsufficientFunds
		}
		if err != nil {
			return fmt.Errorf("debit buyer: %w", err)
		}

		batch := &pgx.Batch{}
		txs := make([]model.Transaction, len(items))
		for i, it := range items {
			txs[i] = model.Transaction{
				ID:                   uuid.NewString(),
				BuyerID:              o.BuyerID,
				SellerID:             o.SellerID,
				ItemID:               it.ID,
				CategoryID:           o.CategoryID,
				Amount:               o.UnitPrice,
				Status:               model.TransactionPending,
				VerificationDeadline: o.Deadline,
				CreatedAt:            o.At,
				UpdatedAt:            o.At,
			}
			t := txs[i]
			batch.Queue(`
				INSERT INTO transactions (id, buyer_id, seller_id, item_id, category_id, amount, status,
					is_verified, is_disputed, verification_deadline, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, false, false, $8, $9, $9)`,
				t.ID, t.BuyerID, t.SellerID, t.ItemID, t.CategoryID, t.Amount, string(t.Status),
				t.VerificationDeadline, t.CreatedAt)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert transactions: %w", mapErr(err))
		}

		p = model.Purchase{Transactions: txs, Items: items, Total: total, Deadline: o.Deadline}
		return nil
	})
	return p, err
}

func (s *Store) Transaction(ctx context.Context, id string) (model.Transaction, error) {
	t, err := scanTransaction(s.pool.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
	if err != nil {
		return model.Transaction{}, mapErr(err)
	}
	return t, nil
}

func (s *Store) TransactionsByBuyer(ctx context.Context, buyerID string) ([]model.Transaction, error) {
	return s.queryTransactions(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE buyer_id = $1 ORDER BY created_at DESC, id`, buyerID)
}

func (s *Store) TransactionsBySeller(ctx context.Context, sellerID string) ([]model.Transaction, error) {
	return s.queryTransactions(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE seller_id = $1 ORDER BY created_at DESC, id`, sellerID)
}

func (s *Store) DueTransactions(ctx context.Context, now time.Time, limit int) ([]model.Transaction, error) {
	return s.queryTransactions(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE status = 'pending' AND verification_deadline <= $1
		ORDER BY verification_deadline
		LIMIT $2`, now, limit)
}

func (s *Store) RecentTransactions(ctx context.Context, limit int) ([]model.Transaction, error) {
	return s.queryTransactions(ctx, `SELECT `+transactionColumns+` FROM transactions
		ORDER BY created_at DESC, id
		LIMIT $1`, limit)
}

const tallyQuery = `
	SELECT count(*),
		count(*) FILTER (WHERE status = 'pending'),
		count(*) FILTER (WHERE status = 'verified'),
		COALESCE(sum(amount) FILTER (WHERE status <> 'refunded'), 0)
	FROM transactions`

func (s *Store) BuyerTally(ctx context.Context, buyerID string) (model.TransactionTally, error) {
	return s.tally(ctx, tallyQuery+` WHERE buyer_id = $1`, buyerID)
}

func (s *Store) SellerTally(ctx context.Context, sellerID string) (model.TransactionTally, error) {
	return s.tally(ctx, tallyQuery+` WHERE seller_id = $1`, sellerID)
}

func (s *Store) tally(ctx context.Context, sql, partyID string) (model.TransactionTally, error) {
	var t model.TransactionTally
	err := s.pool.QueryRow(ctx, sql, partyID).Scan(&t.Count, &t.Pending, &t.Verified, &t.Amount)
	if err != nil {
		return model.TransactionTally{}, fmt.Errorf("tally transactions: %w", err)
	}
	return t, nil
}

func (s *Store) queryTransactions(ctx context.Context, sql string, args ...any) ([]model.Transaction, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (model.Transaction, error) {
		return scanTransaction(r)
	})
}

// Settle flips the status only if it still equals st.From, so a settlement
// that lost a race changes nothing and reports model.ErrInvalidState.
func (s *Store) Settle(ctx context.Context, st model.Settlement) (model.Transaction, error) {
	var settled model.Transaction
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var err error
		settled, err = scanTransaction(tx.QueryRow(ctx, `
			UPDATE transactions
			SET status = $3, is_verified = is_verified OR $4, updated_at = $5
			WHERE id = $1 AND status = $2
			RETURNING `+transactionColumns,
			st.TransactionID, string(st.From), string(st.To), st.To == model.TransactionVerified, st.At))
		if errors.Is(err, pgx.ErrNoRows) {
			return missingOrState(ctx, tx, "transactions", st.TransactionID)
		}
		if err != nil {
			return fmt.Errorf("update transaction: %w", err)
		}

		if st.DisputeID != "" {
			tag, err := tx.Exec(ctx, `
				UPDATE disputes
				SET status = $2, seller_response = $3, is_resolved = true, updated_at = $4
				WHERE id = $1 AND status = 'pending'`,
				st.DisputeID, string(st.DisputeStatus), st.Resolution, st.At)
			if err != nil {
				return fmt.Errorf("update dispute: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return missingOrState(ctx, tx, "disputes", st.DisputeID)
			}
		}

		tag, err := tx.Exec(ctx, `UPDATE users SET balance = balance + $2, updated_at = $3 WHERE id = $1`,
			st.CreditParty, st.CreditAmount, st.At)
		if err != nil {
			return fmt.Errorf("credit %s: %w", st.CreditParty, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("party %s: %w", st.CreditParty, model.ErrNotFound)
		}
		return nil
	})
	return settled, err
}
