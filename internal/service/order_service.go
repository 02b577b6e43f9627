package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/store"
	"storefront-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// orderStore is the slice of the store the order service uses.
type orderStore interface {
	CreateOrderFromCart(ctx context.Context, userID string, info store.CustomerInfo) (*models.Order, []models.OrderItem, error)
	GetOrderByID(ctx context.Context, userID, orderID string) (*models.Order, error)
	GetOrdersByUserID(ctx context.Context, userID string) ([]models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID string) ([]models.OrderItem, error)
}

// checkoutCoordinator provides the cross-process lock and idempotency-key
// storage backing concurrent checkout protection.
type checkoutCoordinator interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
	LookupCheckoutResult(ctx context.Context, key string) (string, bool, error)
	StoreCheckoutResult(ctx context.Context, key, orderID string, ttl time.Duration) error
}

// orderEventPublisher emits post-commit order events.
type orderEventPublisher interface {
	PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error
}

// OrderService handles checkout and order reads
type OrderService struct {
	store          orderStore
	redis          checkoutCoordinator
	eventPublisher orderEventPublisher
	lockTTL        time.Duration
	idempotencyTTL time.Duration
	logger         *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	store orderStore,
	redis checkoutCoordinator,
	eventPublisher orderEventPublisher,
	lockTTL, idempotencyTTL time.Duration,
) *OrderService {
	return &OrderService{
		store:          store,
		redis:          redis,
		eventPublisher: eventPublisher,
		lockTTL:        lockTTL,
		idempotencyTTL: idempotencyTTL,
		logger:         util.GetLogger(),
	}
}

// CheckoutRequest carries the customer fields copied onto the order.
type CheckoutRequest struct {
	CustomerName    string `json:"customer_name" binding:"required"`
	CustomerEmail   string `json:"customer_email" binding:"required,email"`
	DeliveryAddress string `json:"delivery_address" binding:"required"`
	IdempotencyKey  string `json:"idempotency_key,omitempty"`
}

// Checkout converts the user's cart into an order. The conversion itself is
// one store transaction; this layer adds a per-user lock so concurrent
// checkouts fail fast instead of queueing on row locks, an optional
// idempotency-key replay, and the post-commit OrderCreated event.
func (s *OrderService) Checkout(ctx context.Context, userID string, req *CheckoutRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.Checkout")
	defer span.End()

	if req.IdempotencyKey != "" {
		orderID, found, err := s.redis.LookupCheckoutResult(ctx, req.IdempotencyKey)
		if err != nil {
			s.logger.Warn("Idempotency lookup failed", zap.Error(err))
		} else if found {
			s.logger.Info("Duplicate checkout request detected",
				zap.String("idempotency_key", req.IdempotencyKey),
				zap.String("order_id", orderID))
			return s.store.GetOrderByID(ctx, userID, orderID)
		}
	}

	acquired, err := s.redis.AcquireLock(ctx, "checkout:"+userID, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire checkout lock: %w", err)
	}
	if !acquired {
		util.CheckoutsFailedTotal.WithLabelValues("lock_held").Inc()
		return nil, ErrCheckoutInProgress
	}
	defer func() {
		if err := s.redis.ReleaseLock(context.Background(), "checkout:"+userID); err != nil {
			s.logger.Warn("Failed to release checkout lock", zap.String("user_id", userID), zap.Error(err))
		}
	}()

	start := time.Now()
	order, items, err := s.store.CreateOrderFromCart(ctx, userID, store.CustomerInfo{
		Name:            req.CustomerName,
		Email:           req.CustomerEmail,
		DeliveryAddress: req.DeliveryAddress,
	})
	util.CheckoutLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		reason := "db_error"
		if errors.Is(err, store.ErrEmptyCart) {
			reason = "empty_cart"
		}
		util.CheckoutsFailedTotal.WithLabelValues(reason).Inc()
		return nil, err
	}

	util.OrdersCreatedTotal.Inc()
	util.OrderTotalAmount.Observe(order.TotalAmount.InexactFloat64())
	s.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.String("user_id", userID),
		zap.String("total_amount", order.TotalAmount.String()))

	if req.IdempotencyKey != "" {
		if err := s.redis.StoreCheckoutResult(ctx, req.IdempotencyKey, order.ID, s.idempotencyTTL); err != nil {
			s.logger.Warn("Failed to store idempotency key", zap.Error(err))
		}
	}

	s.publishOrderCreated(ctx, order, items)

	return order, nil
}

// publishOrderCreated emits the post-commit event. The order is durable at
// this point, so publish failures are logged, never surfaced to the caller.
func (s *OrderService) publishOrderCreated(ctx context.Context, order *models.Order, items []models.OrderItem) {
	eventItems := make([]models.OrderItemData, 0, len(items))
	for _, item := range items {
		eventItems = append(eventItems, models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}

	event := &models.OrderCreatedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCreated,
			Timestamp: time.Now(),
		},
		OrderID:       order.ID,
		UserID:        order.UserID,
		TotalAmount:   order.TotalAmount,
		CustomerEmail: order.CustomerEmail,
		Items:         eventItems,
	}

	if err := s.eventPublisher.PublishOrderCreated(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderCreated event",
			zap.String("order_id", order.ID), zap.Error(err))
	}
}

// GetOrder retrieves one of the user's orders with its items
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID string) (*models.Order, []models.OrderItem, error) {
	order, err := s.store.GetOrderByID(ctx, userID, orderID)
	if err != nil {
		return nil, nil, err
	}

	items, err := s.store.GetOrderItemsByOrderID(ctx, order.ID)
	if err != nil {
		return nil, nil, err
	}

	return order, items, nil
}

// ListOrders retrieves the user's order history
func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]models.Order, error) {
	return s.store.GetOrdersByUserID(ctx, userID)
}
