package repository

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"mailmart/internal/model"
)

const userColumns = `id, full_name, balance, created_at, updated_at`

func scanUser(row rowScanner) (model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.FullName, &u.Balance, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

func (s *Store) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (id, full_name, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+userColumns,
		u.ID, u.FullName, u.Balance, u.CreatedAt, u.UpdatedAt)
	created, err := scanUser(row)
	if err != nil {
		return model.User{}, fmt.Errorf("insert user: %w", mapErr(err))
	}
	return created, nil
}

func (s *Store) User(ctx context.Context, id string) (model.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return model.User{}, mapErr(err)
	}
	return u, nil
}

// Adjust is a single UPDATE so concurrent adjustments never lose writes.
func (s *Store) Adjust(ctx context.Context, userID string, delta decimal.Decimal) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.pool.QueryRow(ctx, `
		UPDATE users SET balance = balance + $2, updated_at = now()
		WHERE id = $1
		RETURNING balance`, userID, delta).Scan(&balance)
	if err != nil {
		return decimal.Zero, mapErr(err)
	}
	return balance, nil
}
