package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/judyrop/catering-backend/internal/middleware"
	"github.com/judyrop/catering-backend/internal/orders"
	"github.com/judyrop/catering-backend/models"
)

type statusUpdate struct {
	Status models.OrderStatus `json:"status"`
}

func (h *handler) CreateOrder(c *gin.Context) {
	var req orders.CheckoutRequest
	if !bindJSON(c, &req) {
		return
	}
	order, err := h.orders.Checkout(c.Request.Context(), middleware.Principal(c), req)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "order": order})
}

func (h *handler) ListOrders(c *gin.Context) {
	list, err := h.orders.List(c.Request.Context(), middleware.Principal(c))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *handler) GetOrder(c *gin.Context) {
	order, err := h.orders.Get(c.Request.Context(), middleware.Principal(c), c.Param("id"))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *handler) UpdateOrderStatus(c *gin.Context) {
	var body statusUpdate
	if !bindJSON(c, &body) {
		return
	}
	order, err := h.orders.SetStatus(c.Request.Context(), middleware.Principal(c), c.Param("id"), body.Status)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *handler) DeleteOrder(c *gin.Context) {
	if err := h.orders.Delete(c.Request.Context(), middleware.Principal(c), c.Param("id")); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) Stats(c *gin.Context) {
	s, err := h.orders.Stats(c.Request.Context(), middleware.Principal(c))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}
