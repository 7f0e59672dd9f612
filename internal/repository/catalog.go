package repository

import (
	"context"
	"fmt"

	"mailmart/internal/model"
)

const categoryColumns = `id, name, slug, description, buy_price, sell_price, is_active, created_at`

func scanCategory(row rowScanner) (model.Category, error) {
	var c model.Category
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.BuyPrice, &c.SellPrice, &c.IsActive, &c.CreatedAt)
	return c, err
}

func (s *Store) Category(ctx context.Context, id string) (model.Category, error) {
	c, err := scanCategory(s.pool.QueryRow(ctx, `SELECT `+categoryColumns+` FROM categories WHERE id = $1`, id))
	if err != nil {
		return model.Category{}, mapErr(err)
	}
	return c, nil
}

func (s *Store) Categories(ctx context.Context) ([]model.Category, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+categoryColumns+` FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	out := make([]model.Category, 0)
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) UpsertCategory(ctx context.Context, c model.Category) (model.Category, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO categories (id, name, slug, description, buy_price, sell_price, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			slug = EXCLUDED.slug,
			description = EXCLUDED.description,
			buy_price = EXCLUDED.buy_price,
			sell_price = EXCLUDED.sell_price,
			is_active = EXCLUDED.is_active
		RETURNING `+categoryColumns,
		c.ID, c.Name, c.Slug, c.Description, c.BuyPrice, c.SellPrice, c.IsActive, c.CreatedAt)
	saved, err := scanCategory(row)
	if err != nil {
		return model.Category{}, fmt.Errorf("upsert category: %w", mapErr(err))
	}
	return saved, nil
}
