package customer

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

// Register mounts the customer routes on the /api/v1 group.
func (h *Handler) Register(v1 *gin.RouterGroup) {
	customers := v1.Group("/customers")
	customers.POST("", h.CreateCustomer)
	customers.GET("", h.ListCustomers)
	customers.GET("/health", server.Health("customer-service"))
	customers.GET("/email/:email", h.GetByEmail)
	customers.GET("/:id", h.GetCustomer)
	customers.GET("/:id/exists", h.Exists)
	customers.PUT("/:id", h.UpdateCustomer)
	customers.DELETE("/:id", h.DeleteCustomer)
}

func (h *Handler) CreateCustomer(c *gin.Context) {
	var req models.CustomerRequest
	if !server.BindJSON(c, &req) {
		return
	}
	customer, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, customer)
}

func (h *Handler) GetCustomer(c *gin.Context) {
	id, ok := server.ParseID(c, "id")
	if !ok {
		return
	}
	customer, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *Handler) GetByEmail(c *gin.Context) {
	customer, err := h.service.GetByEmail(c.Request.Context(), c.Param("email"))
	if err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *Handler) ListCustomers(c *gin.Context) {
	customers, err := h.service.List(c.Request.Context())
	if err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customers)
}

// Exists answers with a bare JSON boolean.
func (h *Handler) Exists(c *gin.Context) {
	id, ok := server.ParseID(c, "id")
	if !ok {
		return
	}
	exists, err := h.service.Exists(c.Request.Context(), id)
	if err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, exists)
}

func (h *Handler) UpdateCustomer(c *gin.Context) {
	id, ok := server.ParseID(c, "id")
	if !ok {
		return
	}
	var req models.CustomerRequest
	if !server.BindJSON(c, &req) {
		return
	}
	customer, err := h.service.Update(c.Request.Context(), id, req)
	if err != nil {
		server.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, customer)
}

func (h *Handler) DeleteCustomer(c *gin.Context) {
	id, ok := server.ParseID(c, "id")
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), id); err != nil {
		server.RespondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
