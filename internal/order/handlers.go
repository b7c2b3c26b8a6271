package order

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ashendes/order-fulfillment/internal/models"
	"github.com/ashendes/order-fulfillment/internal/patterns"
	"github.com/ashendes/order-fulfillment/internal/sagalog"
	"github.com/ashendes/order-fulfillment/internal/server"
	"github.com/gin-gonic/gin"
)

// IdempotencyHeader carries the client's idempotency key on order creation.
const IdempotencyHeader = "Idempotency-Key"

// Creator runs the order saga.
type Creator interface {
	CreateOrder(ctx context.Context, req models.CreateOrderRequest, idempotencyKey string) (*models.Order, error)
	History(ctx context.Context, orderID int64) ([]sagalog.Entry, error)
}

// DetailsFetcher builds the complete order view.
type DetailsFetcher interface {
	GetCompleteOrderDetails(ctx context.Context, orderID int64) (*models.OrderDetails, error)
}

// BreakerReporter exposes breaker state for the circuit-status endpoint.
type BreakerReporter struct {
	Payment func() patterns.BreakerSnapshot
	Clients []func() patterns.ClientBreakerStatus
}

// Handler serves the order HTTP API
type Handler struct {
	saga     Creator
	details  DetailsFetcher
	service  *Service
	breakers BreakerReporter
	sagaLog  bool
}

func NewHandler(saga Creator, details DetailsFetcher, service *Service, breakers BreakerReporter, sagaLogEnabled bool) *Handler {
	return &Handler{
		saga:     saga,
		details:  details,
		service:  service,
		breakers: breakers,
		sagaLog:  sagaLogEnabled,
	}
}

// Register mounts the order routes on the /api/v1 group.
func (h *Handler) Register(v1 *gin.RouterGroup) {
	orders := v1.Group("/orders")
	orders.POST("", h.CreateOrder)
	orders.GET("", h.ListOrders)
	orders.GET("/health", server.Health("order-service"))
	orders.GET("/circuit-status", h.CircuitStatus)
	orders.GET("/customer/:customerId", h.ListByCustomer)
	orders.GET("/status/:status", h.ListByStatus)
	orders.GET("/:id", h.GetOrder)
	orders.GET("/:id/complete-details", h.GetCompleteDetails)
	orders.GET("/:id/saga", h.GetSagaLog)
	orders.PUT("/:id/status", h.UpdateStatus)
	orders.PUT("/:id/cancel", h.CancelOrder)
}

func (h *Handler) CreateOrder(c *gin.Context) {
	var req models.CreateOrderRequest
	if !server.BindJSON(c, &req) {
		return
	}

	order, err := h.saga.CreateOrder(c.Request.Context(), req, c.GetHeader(IdempotencyHeader))
	if err != nil {
		if order != nil && errors.Is(err, models.ErrServiceUnavailable) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"order":   order,
				"message": err.Error(),
			})
			return
		}
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) GetOrder(c *gin.Context) {
	id, ok := server.ParseID(c, "id")
	if !ok {
		return
	}
	order, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) ListOrders(c *gin.Context) {
	h.list(c, models.OrderFilter{})
}

func (h *Handler) ListByCustomer(c *gin.Context) {
	id, ok := server.ParseID(c, "customerId")
	if !ok {
		return
	}
	h.list(c, models.OrderFilter{CustomerID: id})
}

func (h *Handler) ListByStatus(c *gin.Context) {
	status, err := models.ParseOrderStatus(c.Param("status"))
	if err != nil {
		server.RespondError(c, err)
		return
	}
	h.list(c, models.OrderFilter{Status: status})
}

func (h *Handler) list(c *gin.Context, f models.OrderFilter) {
	orders, err := h.service.List(c.Request.Context(), f)
	if err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) GetCompleteDetails(c *gin.Context) {
	id, ok := server.ParseID(c, "id")
	if !ok {
		return
	}
	details, err := h.details.GetCompleteOrderDetails(c.Request.Context(), id)
	if err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, details)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := server.ParseID(c, "id")
	if !ok {
		return
	}
	var req models.UpdateOrderStatusRequest
	if !server.BindJSON(c, &req) {
		return
	}
	order, err := h.service.UpdateStatus(c.Request.Context(), id, req)
	if err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) CancelOrder(c *gin.Context) {
	id, ok := server.ParseID(c, "id")
	if !ok {
		return
	}
	var req models.CancelOrderRequest
	if c.Request.ContentLength != 0 && !server.BindJSON(c, &req) {
		return
	}
	order, err := h.service.Cancel(c.Request.Context(), id, req.Reason)
	if err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) GetSagaLog(c *gin.Context) {
	if !h.sagaLog {
		server.RespondError(c, fmt.Errorf("saga log disabled: %w", models.ErrNotFound))
		return
	}
	id, ok := server.ParseID(c, "id")
	if !ok {
		return
	}
	entries, err := h.saga.History(c.Request.Context(), id)
	if err != nil {
		server.RespondError(c, err)
		return
	}
	if len(entries) == 0 {
		server.RespondError(c, models.ErrOrderNotFound)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *Handler) CircuitStatus(c *gin.Context) {
	clients := make([]patterns.ClientBreakerStatus, 0, len(h.breakers.Clients))
	for _, status := range h.breakers.Clients {
		clients = append(clients, status())
	}
	resp := gin.H{"clients": clients}
	if h.breakers.Payment != nil {
		resp["payment_circuit"] = h.breakers.Payment()
	}
	c.JSON(http.StatusOK, resp)
}
