package store

import (
	"context"
	"database/sql"
	"fmt"

	"storefront-service/internal/models"

	"github.com/shopspring/decimal"
)

// OrderTotal computes the order total over cart lines in exact decimal
// arithmetic. Rounding to two places happens once, after summation, so the
// result carries no per-line drift.
func OrderTotal(items []models.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total.Round(2)
}

// CustomerInfo holds the checkout form fields copied onto the order.
type CustomerInfo struct {
	Name            string
	Email           string
	DeliveryAddress string
}

// CreateOrderFromCart converts the user's cart into an order in one
// transaction: lock the cart lines, total them, insert the order and its
// items with the products' current prices frozen in, then clear the cart.
// Any failure rolls everything back; an order is never observable without
// its items, and the cart is never cleared without a committed order.
//
// Returns ErrEmptyCart without side effects when the user has no cart lines.
// A concurrent checkout for the same user blocks on the row locks and then
// sees the emptied cart.
func (s *Store) CreateOrderFromCart(ctx context.Context, userID string, info CustomerInfo) (*models.Order, []models.OrderItem, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	cartItems, err := getCartItemsForUpdate(ctx, tx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if len(cartItems) == 0 {
		return nil, nil, ErrEmptyCart
	}

	order := models.Order{
		UserID:          userID,
		TotalAmount:     OrderTotal(cartItems),
		Status:          models.OrderStatusPending,
		CustomerName:    info.Name,
		CustomerEmail:   info.Email,
		DeliveryAddress: info.DeliveryAddress,
	}

	err = tx.GetContext(ctx, &order, `
		INSERT INTO orders (user_id, total_amount, status, customer_name, customer_email, delivery_address)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *`,
		order.UserID, order.TotalAmount, order.Status,
		order.CustomerName, order.CustomerEmail, order.DeliveryAddress)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create order: %w", err)
	}

	orderItems := make([]models.OrderItem, 0, len(cartItems))
	for _, cartItem := range cartItems {
		item := models.OrderItem{
			OrderID:   order.ID,
			ProductID: cartItem.ProductID,
			Quantity:  cartItem.Quantity,
			Price:     cartItem.Product.Price,
		}

		err = tx.GetContext(ctx, &item.ID, `
			INSERT INTO order_items (order_id, product_id, quantity, price)
			VALUES ($1, $2, $3, $4)
			RETURNING id`,
			item.OrderID, item.ProductID, item.Quantity, item.Price)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create order item: %w", err)
		}

		orderItems = append(orderItems, item)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = $1", userID); err != nil {
		return nil, nil, fmt.Errorf("failed to clear cart: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit order: %w", err)
	}

	return &order, orderItems, nil
}

// GetOrderByID retrieves one of the user's orders
func (s *Store) GetOrderByID(ctx context.Context, userID, orderID string) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE id = $1 AND user_id = $2", orderID, userID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("order %s: %w", orderID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersByUserID retrieves the user's order history, newest first
func (s *Store) GetOrdersByUserID(ctx context.Context, userID string) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return orders, err
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	var items []models.OrderItem
	err := s.db.SelectContext(ctx, &items,
		"SELECT * FROM order_items WHERE order_id = $1", orderID)
	return items, err
}
