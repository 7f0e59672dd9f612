package service

import (
	"context"
	"fmt"
	"strings"

	"mailmart/internal/model"
)

// Catalog is the read side of the pricing collaborator plus the admin upsert
// used to seed it.
type Catalog struct {
	*base
}

func (c *Catalog) Categories(ctx context.Context) ([]model.Category, error) {
	all, err := c.store.Categories(ctx)
	if err != nil {
		return nil, err
	}
	active := all[:0]
	for _, cat := range all {
		if cat.IsActive {
			active = append(active, cat)
		}
	}
	return active, nil
}

func (c *Catalog) Category(ctx context.Context, id string) (model.Category, error) {
	return c.store.Category(ctx, id)
}

func (c *Catalog) Upsert(ctx context.Context, cat model.Category) (model.Category, error) {
	cat.Name = strings.TrimSpace(cat.Name)
	if cat.Slug == "" {
		cat.Slug = strings.ToLower(strings.ReplaceAll(cat.Name, " ", "-"))
	}
	if !isCents(cat.BuyPrice) || !isCents(cat.SellPrice) {
		return model.Category{}, fmt.Errorf("%w: prices must be in cents", model.ErrInvalidInput)
	}
	if err := cat.Validate(); err != nil {
		return model.Category{}, err
	}
	if cat.CreatedAt.IsZero() {
		cat.CreatedAt = c.now().UTC()
	}
	saved, err := c.store.UpsertCategory(ctx, cat)
	if err != nil {
		return model.Category{}, fmt.Errorf("upsert category %s: %w", cat.ID, err)
	}
	c.logger.Info("category saved",
		"category_id", saved.ID,
		"buy_price", saved.BuyPrice.String(),
		"sell_price", saved.SellPrice.String(),
	)
	return saved, nil
}
