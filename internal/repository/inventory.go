package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"mailmart/internal/model"
)

const itemColumns = `id, seller_id, category_id, login, password, recovery_email, is_available, is_sold, created_at`

func scanItem(row rowScanner) (model.Item, error) {
	var it model.Item
	err := row.Scan(&it.ID, &it.SellerID, &it.CategoryID, &it.Login, &it.Password,
		&it.RecoveryEmail, &it.IsAvailable, &it.IsSold, &it.CreatedAt)
	return it, err
}

func (s *Store) AddItems(ctx context.Context, items []model.Item) error {
	rows := make([][]any, len(items))
	for i, it := range items {
		rows[i] = []any{it.ID, it.SellerID, it.CategoryID, it.Login, it.Password,
			it.RecoveryEmail, it.IsAvailable, it.IsSold, it.CreatedAt}
	}
	_, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"items"},
		[]string{"id", "seller_id", "category_id", "login", "password", "recovery_email", "is_available", "is_sold", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy items: %w", mapErr(err))
	}
	return nil
}

func (s *Store) AvailableStock(ctx context.Context, categoryID string) ([]model.SellerStock, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT seller_id, count(*)
		FROM items
		WHERE category_id = $1 AND is_available AND NOT is_sold
		GROUP BY seller_id
		ORDER BY seller_id`, categoryID)
	if err != nil {
		return nil, fmt.Errorf("query stock: %w", err)
	}
	defer rows.Close()

	out := make([]model.SellerStock, 0)
	for rows.Next() {
		var st model.SellerStock
		if err := rows.Scan(&st.SellerID, &st.Available); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) Item(ctx context.Context, id string) (model.Item, error) {
	it, err := scanItem(s.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id))
	if err != nil {
		return model.Item{}, mapErr(err)
	}
	return it, nil
}

func (s *Store) SellerInventory(ctx context.Context, sellerID string) ([]model.InventoryLine, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT c.id, c.name, c.slug, c.description, c.buy_price, c.sell_price, c.is_active, c.created_at,
			COALESCE(i.available, 0), COALESCE(t.sales, 0), COALESCE(t.revenue, 0)
		FROM categories c
		LEFT JOIN (
			SELECT category_id, count(*) AS available
			FROM items
			WHERE seller_id = $1 AND is_available AND NOT is_sold
			GROUP BY category_id
		) i ON i.category_id = c.id
		LEFT JOIN (
			SELECT category_id, count(*) AS sales, sum(amount) AS revenue
			FROM transactions
			WHERE seller_id = $1 AND status = 'verified'
			GROUP BY category_id
		) t ON t.category_id = c.id
		ORDER BY c.name`, sellerID)
	if err != nil {
		return nil, fmt.Errorf("query inventory: %w", err)
	}
	return pgx.CollectRows(rows, func(r pgx.CollectableRow) (model.InventoryLine, error) {
		var (
			l model.InventoryLine
			c = &l.Category
		)
		err := r.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.BuyPrice, &c.SellPrice, &c.IsActive, &c.CreatedAt,
			&l.Available, &l.Sales, &l.Revenue)
		return l, err
	})
}

// reserve locks and flips up to qty available items of seller+category in
// listing order. Callers hold tx open until the purchase commits.
func reserve(ctx context.Context, tx pgx.Tx, sellerID, categoryID string, qty int) ([]model.Item, error) {
	rows, err := tx.Query(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE seller_id = $1 AND category_id = $2 AND is_available AND NOT is_sold
		ORDER BY created_at, id
		LIMIT $3
		FOR UPDATE`, sellerID, categoryID, qty)
	if err != nil {
		return nil, fmt.Errorf("lock items: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (model.Item, error) { return scanItem(r) })
	if err != nil {
		return nil, fmt.Errorf("scan items: %w", err)
	}
	if len(items) < qty {
		return nil, model.ErrInsufficientInventory
	}

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	tag, err := tx.Exec(ctx, `
		UPDATE items SET is_available = false, is_sold = true
		WHERE id = ANY($1) AND is_available AND NOT is_sold`, ids)
	if err != nil {
		return nil, fmt.Errorf("flip items: %w", err)
	}
	if tag.RowsAffected() != int64(qty) {
		return nil, model.ErrInsufficientInventory
	}
	for i := range items {
		items[i].IsAvailable = false
		items[i].IsSold = true
	}
	return items, nil
}
