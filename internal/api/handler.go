package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"storefront-service/internal/models"
	"storefront-service/internal/service"
	"storefront-service/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CartService is the cart surface the handlers depend on.
type CartService interface {
	AddItem(ctx context.Context, userID, productID string, quantity int) (*models.CartItem, error)
	UpdateQuantity(ctx context.Context, userID, itemID string, quantity int) (*models.CartItem, error)
	RemoveItem(ctx context.Context, userID, itemID string) error
	ListItems(ctx context.Context, userID string) ([]models.CartItem, error)
}

// OrderService is the checkout surface the handlers depend on.
type OrderService interface {
	Checkout(ctx context.Context, userID string, req *service.CheckoutRequest) (*models.Order, error)
	GetOrder(ctx context.Context, userID, orderID string) (*models.Order, []models.OrderItem, error)
	ListOrders(ctx context.Context, userID string) ([]models.Order, error)
}

// CatalogService is the read-only product surface the handlers depend on.
type CatalogService interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
}

// Handler contains HTTP handlers
type Handler struct {
	cart      CartService
	orders    OrderService
	catalog   CatalogService
	jwtSecret string
}

// NewHandler creates a new HTTP handler
func NewHandler(cart CartService, orders OrderService, catalog CatalogService, jwtSecret string) *Handler {
	return &Handler{
		cart:      cart,
		orders:    orders,
		catalog:   catalog,
		jwtSecret: jwtSecret,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)
	}

	authed := v1.Group("", authRequired(h.jwtSecret))
	{
		authed.GET("/cart", h.listCartItems)
		authed.POST("/cart/items", h.addToCart)
		authed.PUT("/cart/items/:id", h.updateQuantity)
		authed.DELETE("/cart/items/:id", h.removeItem)

		authed.POST("/orders", h.createOrder)
		authed.GET("/orders", h.listOrders)
		authed.GET("/orders/:id", h.getOrder)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// listProducts handles the catalog listing
func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.catalog.ListProducts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load products"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": products})
}

// getProduct handles a single product read
func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.catalog.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load product"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": product})
}

type addToCartRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"omitempty,min=1,max=999"`
}

// addToCart merges a product into the caller's cart
func (h *Handler) addToCart(c *gin.Context) {
	var req addToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	item, err := h.cart.AddItem(c.Request.Context(), currentUserID(c), req.ProductID, req.Quantity)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Failed to add item to cart",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

// listCartItems returns the caller's cart joined with products
func (h *Handler) listCartItems(c *gin.Context) {
	items, err := h.cart.ListItems(c.Request.Context(), currentUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Failed to load cart",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

type updateQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required,min=0,max=999"`
}

// updateQuantity overwrites a cart line's quantity; zero removes the line
func (h *Handler) updateQuantity(c *gin.Context) {
	var req updateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	item, err := h.cart.UpdateQuantity(c.Request.Context(), currentUserID(c), c.Param("id"), *req.Quantity)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Cart item not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Failed to update cart item",
			"details": err.Error(),
		})
		return
	}

	if item == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": item})
}

// removeItem deletes a cart line; removing an absent line still succeeds
func (h *Handler) removeItem(c *gin.Context) {
	if err := h.cart.RemoveItem(c.Request.Context(), currentUserID(c), c.Param("id")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Failed to remove cart item",
			"details": err.Error(),
		})
		return
	}
	c.Status(http.StatusNoContent)
}

// createOrder converts the caller's cart into an order
func (h *Handler) createOrder(c *gin.Context) {
	var req service.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	order, err := h.orders.Checkout(c.Request.Context(), currentUserID(c), &req)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrEmptyCart):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cart is empty"})
		case errors.Is(err, service.ErrCheckoutInProgress):
			c.JSON(http.StatusConflict, gin.H{"error": "Checkout already in progress"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Failed to create order",
				"details": err.Error(),
			})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"order": order})
}

// listOrders returns the caller's order history
func (h *Handler) listOrders(c *gin.Context) {
	orders, err := h.orders.ListOrders(c.Request.Context(), currentUserID(c))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Failed to load orders",
			"details": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": orders})
}

// getOrder returns one of the caller's orders with its items
func (h *Handler) getOrder(c *gin.Context) {
	order, items, err := h.orders.GetOrder(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Failed to load order",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order": order,
		"items": items,
	})
}
