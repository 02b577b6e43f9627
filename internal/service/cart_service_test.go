package service

import (
	"context"
	"errors"
	"testing"

	"storefront-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCartStore struct {
	upserted map[string]int
	deleted  []string
	updated  map[string]int
	failWith error
}

func newFakeCartStore() *fakeCartStore {
	return &fakeCartStore{
		upserted: make(map[string]int),
		updated:  make(map[string]int),
	}
}

func (f *fakeCartStore) UpsertCartItem(_ context.Context, userID, productID string, quantity int) (*models.CartItem, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.upserted[productID] += quantity
	return &models.CartItem{
		ID:        "item-" + productID,
		UserID:    userID,
		ProductID: productID,
		Quantity:  f.upserted[productID],
	}, nil
}

func (f *fakeCartStore) GetCartItems(context.Context, string) ([]models.CartItem, error) {
	return nil, nil
}

func (f *fakeCartStore) UpdateCartItemQuantity(_ context.Context, userID, itemID string, quantity int) (*models.CartItem, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.updated[itemID] = quantity
	return &models.CartItem{ID: itemID, UserID: userID, Quantity: quantity}, nil
}

func (f *fakeCartStore) DeleteCartItem(_ context.Context, _, itemID string) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.deleted = append(f.deleted, itemID)
	return nil
}

func TestAddItemMergesRepeatAdds(t *testing.T) {
	fake := newFakeCartStore()
	svc := NewCartService(fake)
	ctx := context.Background()

	first, err := svc.AddItem(ctx, "u1", "p1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Quantity)

	second, err := svc.AddItem(ctx, "u1", "p1", 3)
	require.NoError(t, err)
	assert.Equal(t, 5, second.Quantity)
	assert.Equal(t, first.ID, second.ID)
}

func TestUpdateQuantityZeroDelegatesToRemove(t *testing.T) {
	fake := newFakeCartStore()
	svc := NewCartService(fake)

	item, err := svc.UpdateQuantity(context.Background(), "u1", "item-1", 0)
	require.NoError(t, err)
	assert.Nil(t, item)
	assert.Equal(t, []string{"item-1"}, fake.deleted)
	assert.Empty(t, fake.updated, "zero quantity must not become an update")
}

func TestUpdateQuantityOverwrites(t *testing.T) {
	fake := newFakeCartStore()
	svc := NewCartService(fake)

	item, err := svc.UpdateQuantity(context.Background(), "u1", "item-1", 7)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, 7, item.Quantity)
	assert.Empty(t, fake.deleted)
}

func TestUpdateQuantityPropagatesStoreError(t *testing.T) {
	fake := newFakeCartStore()
	fake.failWith = errors.New("connection reset")
	svc := NewCartService(fake)

	_, err := svc.UpdateQuantity(context.Background(), "u1", "item-1", 2)
	assert.Error(t, err)
}

func TestRemoveItemIsIdempotent(t *testing.T) {
	fake := newFakeCartStore()
	svc := NewCartService(fake)
	ctx := context.Background()

	require.NoError(t, svc.RemoveItem(ctx, "u1", "missing"))
	require.NoError(t, svc.RemoveItem(ctx, "u1", "missing"))
	assert.Equal(t, []string{"missing", "missing"}, fake.deleted)
}
