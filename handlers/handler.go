package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/judyrop/catering-backend/internal/apperr"
	"github.com/judyrop/catering-backend/internal/auth"
	"github.com/judyrop/catering-backend/internal/cart"
	"github.com/judyrop/catering-backend/internal/catalog"
	"github.com/judyrop/catering-backend/internal/logkey"
	"github.com/judyrop/catering-backend/internal/metrics"
	"github.com/judyrop/catering-backend/internal/middleware"
	"github.com/judyrop/catering-backend/internal/orders"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 * 1024

// Deps are the services the router dispatches to. A nil Limiter disables
// rate limiting on the checkout routes.
type Deps struct {
	Catalog  *catalog.Conf
	Cart     *cart.Service
	Orders   *orders.Conf
	Verifier auth.Verifier
	LoginURL string
	Limiter  *middleware.RateLimiter
	GinMode  string
}

type handler struct {
	catalog *catalog.Conf
	cart    *cart.Service
	orders  *orders.Conf
}

func API(d Deps) *gin.Engine {
	switch d.GinMode {
	case gin.ReleaseMode, gin.TestMode:
		gin.SetMode(d.GinMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	m := middleware.NewMid(d.Verifier, d.LoginURL)
	h := handler{catalog: d.Catalog, cart: d.Cart, orders: d.Orders}

	r.Use(middleware.Logger(), middleware.Metrics(), gin.Recovery())
	r.GET("/health", middleware.HealthCheck)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	limit := func(c *gin.Context) { c.Next() }
	if d.Limiter != nil {
		limit = d.Limiter.Handler()
	}

	v := r.Group("")
	{
		v.Use(m.Authentication())

		v.GET("/products", h.ListProducts)
		v.GET("/products/:id", h.GetProduct)
		v.GET("/categories", h.ListCategories)
		v.POST("/products", m.Authorize(h.CreateProduct, auth.RoleAdmin))
		v.PUT("/products/:id", m.Authorize(h.UpdateProduct, auth.RoleAdmin))
		v.DELETE("/products/:id", m.Authorize(h.DeleteProduct, auth.RoleAdmin))

		v.GET("/cart", h.GetCart)
		v.DELETE("/cart", h.ClearCart)
		v.POST("/cart/lines", h.AddCartLine)
		v.PATCH("/cart/lines/:productId", h.UpdateCartLine)
		v.DELETE("/cart/lines/:productId", h.RemoveCartLine)
		v.POST("/cart/checkout", limit, h.CheckoutCart)

		v.POST("/orders", limit, h.CreateOrder)
		v.GET("/orders", h.ListOrders)
		v.GET("/orders/:id", h.GetOrder)
		v.PATCH("/orders/:id", m.Authorize(h.UpdateOrderStatus, auth.RoleAdmin))
		v.DELETE("/orders/:id", m.Authorize(h.DeleteOrder, auth.RoleAdmin))

		v.GET("/admin/stats", m.Authorize(h.Stats, auth.RoleAdmin))
	}

	return r
}

// bindJSON decodes the body into dst, aborting with 400 when it is too large
// or malformed.
func bindJSON(c *gin.Context, dst any) bool {
	traceID := middleware.GetTraceIdOfRequest(c)
	if c.Request.ContentLength > maxBodyBytes {
		slog.Error("request body limit breached", slog.String(logkey.TraceID, traceID), slog.Int64("size", c.Request.ContentLength))
		middleware.AbortWithError(c, apperr.Validation("request body too large"))
		return false
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	if err := c.ShouldBindJSON(dst); err != nil {
		slog.Warn("json decode error", slog.String(logkey.TraceID, traceID), slog.String(logkey.Error, err.Error()))
		middleware.AbortWithError(c, apperr.Validation("invalid request body"))
		return false
	}
	return true
}
