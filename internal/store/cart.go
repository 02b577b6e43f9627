package store

import (
	"context"
	"database/sql"
	"fmt"

	"storefront-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// cartItemRow scans a cart line joined with its product.
type cartItemRow struct {
	models.CartItem
	Product models.Product `db:"product"`
}

const cartItemJoinColumns = `
	ci.id, ci.user_id, ci.product_id, ci.quantity, ci.created_at, ci.updated_at,
	p.id AS "product.id", p.name AS "product.name", p.description AS "product.description",
	p.price AS "product.price", p.original_price AS "product.original_price",
	p.image AS "product.image", p.category AS "product.category",
	p.rating AS "product.rating", p.reviews AS "product.reviews",
	p.is_on_sale AS "product.is_on_sale",
	p.created_at AS "product.created_at", p.updated_at AS "product.updated_at"`

// UpsertCartItem merges quantity into the user's cart line for a product.
// The insert-or-increment is a single statement, so concurrent adds for the
// same (user, product) serialize at the row instead of racing a prior read.
func (s *Store) UpsertCartItem(ctx context.Context, userID, productID string, quantity int) (*models.CartItem, error) {
	query := `
		INSERT INTO cart_items (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()
		RETURNING *`

	var item models.CartItem
	if err := s.db.GetContext(ctx, &item, query, userID, productID, quantity); err != nil {
		return nil, fmt.Errorf("failed to upsert cart item: %w", err)
	}
	return &item, nil
}

// GetCartItems retrieves the user's cart lines joined with their products
func (s *Store) GetCartItems(ctx context.Context, userID string) ([]models.CartItem, error) {
	query := `
		SELECT` + cartItemJoinColumns + `
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.created_at`

	var rows []cartItemRow
	if err := s.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, err
	}
	return attachProducts(rows), nil
}

// getCartItemsForUpdate locks and returns the user's cart lines inside tx.
// Only the cart rows are locked; product rows stay readable to other carts.
func getCartItemsForUpdate(ctx context.Context, tx *sqlx.Tx, userID string) ([]models.CartItem, error) {
	query := `
		SELECT` + cartItemJoinColumns + `
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.created_at
		FOR UPDATE OF ci`

	var rows []cartItemRow
	if err := tx.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, err
	}
	return attachProducts(rows), nil
}

func attachProducts(rows []cartItemRow) []models.CartItem {
	items := make([]models.CartItem, len(rows))
	for i := range rows {
		items[i] = rows[i].CartItem
		product := rows[i].Product
		items[i].Product = &product
	}
	return items
}

// UpdateCartItemQuantity overwrites a cart line's quantity, scoped to the
// owning user. Not a merge: the new quantity replaces the old one.
func (s *Store) UpdateCartItemQuantity(ctx context.Context, userID, itemID string, quantity int) (*models.CartItem, error) {
	query := `
		UPDATE cart_items
		SET quantity = $1, updated_at = NOW()
		WHERE id = $2 AND user_id = $3
		RETURNING *`

	var item models.CartItem
	err := s.db.GetContext(ctx, &item, query, quantity, itemID, userID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("cart item %s: %w", itemID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// DeleteCartItem removes a cart line. Deleting an absent line is not an error.
func (s *Store) DeleteCartItem(ctx context.Context, userID, itemID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM cart_items WHERE id = $1 AND user_id = $2", itemID, userID)
	return err
}
