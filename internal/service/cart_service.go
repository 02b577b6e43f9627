package service

import (
	"context"
	"fmt"

	"storefront-service/internal/models"
	"storefront-service/internal/util"

	"go.uber.org/zap"
)

// cartStore is the slice of the store the cart service uses.
type cartStore interface {
	UpsertCartItem(ctx context.Context, userID, productID string, quantity int) (*models.CartItem, error)
	GetCartItems(ctx context.Context, userID string) ([]models.CartItem, error)
	UpdateCartItemQuantity(ctx context.Context, userID, itemID string, quantity int) (*models.CartItem, error)
	DeleteCartItem(ctx context.Context, userID, itemID string) error
}

// CartService handles cart business logic
type CartService struct {
	store  cartStore
	logger *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(store cartStore) *CartService {
	return &CartService{
		store:  store,
		logger: util.GetLogger(),
	}
}

// AddItem merges quantity into the user's cart line for a product, creating
// the line on first add. Product existence is enforced by the store's foreign
// key rather than a pre-read, which would reopen the check-then-act window.
func (s *CartService) AddItem(ctx context.Context, userID, productID string, quantity int) (*models.CartItem, error) {
	ctx, span := util.StartSpan(ctx, "CartService.AddItem")
	defer span.End()

	item, err := s.store.UpsertCartItem(ctx, userID, productID, quantity)
	if err != nil {
		return nil, err
	}

	util.CartItemsAddedTotal.Inc()
	s.logger.Info("Cart item merged",
		zap.String("user_id", userID),
		zap.String("product_id", productID),
		zap.Int("quantity", item.Quantity))

	return item, nil
}

// UpdateQuantity overwrites a cart line's quantity. Quantity zero delegates
// to RemoveItem and returns a nil item.
func (s *CartService) UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) (*models.CartItem, error) {
	ctx, span := util.StartSpan(ctx, "CartService.UpdateQuantity")
	defer span.End()

	if quantity == 0 {
		if err := s.RemoveItem(ctx, userID, itemID); err != nil {
			return nil, err
		}
		return nil, nil
	}

	item, err := s.store.UpdateCartItemQuantity(ctx, userID, itemID, quantity)
	if err != nil {
		return nil, fmt.Errorf("failed to update quantity: %w", err)
	}
	return item, nil
}

// RemoveItem deletes a cart line. Removing an absent line succeeds.
func (s *CartService) RemoveItem(ctx context.Context, userID, itemID string) error {
	ctx, span := util.StartSpan(ctx, "CartService.RemoveItem")
	defer span.End()

	if err := s.store.DeleteCartItem(ctx, userID, itemID); err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}

	util.CartItemsRemovedTotal.Inc()
	return nil
}

// ListItems retrieves the user's cart lines with their products
func (s *CartService) ListItems(ctx context.Context, userID string) ([]models.CartItem, error) {
	return s.store.GetCartItems(ctx, userID)
}
