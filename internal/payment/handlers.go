package payment

import (
	"net/http"

	"github.com/ashendes/order-fulfillment/internal/models"
	"github.com/ashendes/order-fulfillment/internal/server"
	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register mounts the payment routes on the /api/v1 group.
func (h *Handler) Register(v1 *gin.RouterGroup) {
	payments := v1.Group("/payments")
	payments.POST("", h.CreatePayment)
	payments.GET("", h.ListPayments)
	payments.GET("/health", server.Health("payment-service"))
	payments.GET("/statistics", h.Statistics)
	payments.GET("/status/:status", h.ListByStatus)
	payments.GET("/order/:orderId", h.GetByOrder)
	payments.GET("/order/:orderId/exists", h.ExistsByOrder)
	payments.GET("/:id", h.GetPayment)
	payments.PUT("/:id/status", h.UpdateStatus)
}

func (h *Handler) CreatePayment(c *gin.Context) {
	var req models.CreatePaymentRequest
	if !server.BindJSON(c, &req) {
		return
	}
	p, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPayment(c *gin.Context) {
	id, ok := server.ParseID(c, "id")
	if !ok {
		return
	}
	p, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) GetByOrder(c *gin.Context) {
	orderID, ok := server.ParseID(c, "orderId")
	if !ok {
		return
	}
	p, err := h.service.GetByOrder(c.Request.Context(), orderID)
	if err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) ExistsByOrder(c *gin.Context) {
	orderID, ok := server.ParseID(c, "orderId")
	if !ok {
		return
	}
	exists, err := h.service.ExistsByOrder(c.Request.Context(), orderID)
	if err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, exists)
}

func (h *Handler) ListPayments(c *gin.Context) {
	h.list(c, models.PaymentFilter{})
}

func (h *Handler) ListByStatus(c *gin.Context) {
	status, err := models.ParsePaymentStatus(c.Param("status"))
	if err != nil {
		server.RespondError(c, err)
		return
	}
	h.list(c, models.PaymentFilter{Status: status})
}

func (h *Handler) list(c *gin.Context, f models.PaymentFilter) {
	payments, err := h.service.List(c.Request.Context(), f)
	if err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payments)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	id, ok := server.ParseID(c, "id")
	if !ok {
		return
	}
	var req models.UpdatePaymentStatusRequest
	if !server.BindJSON(c, &req) {
		return
	}
	p, err := h.service.UpdateStatus(c.Request.Context(), id, req)
	if err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) Statistics(c *gin.Context) {
	stats, err := h.service.Statistics(c.Request.Context())
	if err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
