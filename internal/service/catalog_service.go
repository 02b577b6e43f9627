package service

import (
	"context"

	"storefront-service/internal/models"
	"storefront-service/internal/store"
)

// CatalogService exposes the read-only product catalog.
type CatalogService struct {
	store *store.Store
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store *store.Store) *CatalogService {
	return &CatalogService{store: store}
}

// ListProducts retrieves the catalog, newest first
func (s *CatalogService) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.store.GetProducts(ctx)
}

// GetProduct retrieves a single product
func (s *CatalogService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return s.store.GetProductByID(ctx, id)
}
