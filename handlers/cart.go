package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/judyrop/catering-backend/internal/apperr"
	"github.com/judyrop/catering-backend/internal/cart"
	"github.com/judyrop/catering-backend/internal/logkey"
	"github.com/judyrop/catering-backend/internal/middleware"
	"github.com/judyrop/catering-backend/internal/orders"
)

type addLineRequest struct {
	ProductID string `json:"productId"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

// deliveryDetails is the checkout form. Items come from the session cart.
type deliveryDetails struct {
	CustomerName string `json:"customerName"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
}

func cartBody(lines []cart.Line) gin.H {
	c := cart.Cart{Lines: lines}
	return gin.H{"lines": c.Snapshot(), "total": c.Total()}
}

func (h *handler) GetCart(c *gin.Context) {
	lines, err := h.cart.Snapshot(c.Request.Context(), middleware.Principal(c))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, cartBody(lines))
}

func (h *handler) AddCartLine(c *gin.Context) {
	var req addLineRequest
	if !bindJSON(c, &req) {
		return
	}
	added, lines, err := h.cart.AddLine(c.Request.Context(), middleware.Principal(c), req.ProductID)
	if err != nil {
		middleware.AbortWithErrorFields(c, err, gin.H{"added": false})
		return
	}
	body := cartBody(lines)
	body["added"] = added
	c.JSON(http.StatusOK, body)
}

func (h *handler) UpdateCartLine(c *gin.Context) {
	var req quantityRequest
	if !bindJSON(c, &req) {
		return
	}
	lines, err := h.cart.SetQuantity(c.Request.Context(), middleware.Principal(c), c.Param("productId"), req.Quantity)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, cartBody(lines))
}

func (h *handler) RemoveCartLine(c *gin.Context) {
	lines, err := h.cart.RemoveLine(c.Request.Context(), middleware.Principal(c), c.Param("productId"))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, cartBody(lines))
}

func (h *handler) ClearCart(c *gin.Context) {
	if err := h.cart.Clear(c.Request.Context(), middleware.Principal(c)); err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CheckoutCart places an order from the caller's cart and empties the cart
// once the order is committed.
func (h *handler) CheckoutCart(c *gin.Context) {
	var details deliveryDetails
	if !bindJSON(c, &details) {
		return
	}
	ctx := c.Request.Context()
	p := middleware.Principal(c)

	lines, err := h.cart.Snapshot(ctx, p)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if len(lines) == 0 {
		middleware.AbortWithError(c, apperr.Validation("cart is empty"))
		return
	}
	items := make([]orders.LineInput, 0, len(lines))
	for _, l := range lines {
		items = append(items, orders.LineInput{ProductID: l.ProductID, Quantity: l.Quantity, Price: l.Price})
	}

	order, err := h.orders.Checkout(ctx, p, orders.CheckoutRequest{
		CustomerName: details.CustomerName,
		Phone:        details.Phone,
		Address:      details.Address,
		Items:        items,
	})
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	if err := h.cart.Clear(ctx, p); err != nil {
		slog.Error("clear cart after checkout", slog.String(logkey.TraceID, middleware.GetTraceIdOfRequest(c)), slog.String(logkey.OrderID, order.ID), slog.String(logkey.Error, err.Error()))
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "order": order})
}
