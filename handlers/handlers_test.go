package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/judyrop/catering-backend/internal/auth"
	"github.com/judyrop/catering-backend/internal/cart"
	"github.com/judyrop/catering-backend/internal/catalog"
	"github.com/judyrop/catering-backend/internal/database/dbtest"
	"github.com/judyrop/catering-backend/internal/middleware"
	"github.com/judyrop/catering-backend/internal/notify"
	"github.com/judyrop/catering-backend/internal/orders"
	"github.com/judyrop/catering-backend/models"
)

const (
	userToken  = "user-token"
	adminToken = "admin-token"
)

func newRouter(t *testing.T, limiter *middleware.RateLimiter) (*gin.Engine, *gorm.DB) {
	t.Helper()
	db := dbtest.Open(t)
	products := []models.Product{
		{ID: "p1", Name: "Lahmacun", Description: "Thin", Price: 50, Category: models.CategoryMainCourse},
		{ID: "p2", Name: "Ayran", Description: "Cold", Price: 15, Category: models.CategoryDrink},
	}
	require.NoError(t, db.Create(&products).Error)

	cat := catalog.NewConf(db)
	r := API(Deps{
		Catalog: cat,
		Cart:    cart.NewService(cart.NewMemoryStore(), cat),
		Orders:  orders.NewConf(db, notify.LogNotifier{}),
		Verifier: auth.StaticVerifier{
			userToken:  {Subject: "alice", Role: auth.RoleUser},
			adminToken: {Subject: "root", Role: auth.RoleAdmin},
		},
		LoginURL: "/login",
		Limiter:  limiter,
		GinMode:  gin.TestMode,
	})
	return r, db
}

func do(r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			_ = json.NewEncoder(&buf).Encode(body)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dst), w.Body.String())
}

type errorBody struct {
	Success  bool   `json:"success"`
	Error    string `json:"error"`
	Redirect string `json:"redirect"`
	Added    *bool  `json:"added"`
}

type orderBody struct {
	Success bool         `json:"success"`
	Order   models.Order `json:"order"`
}

func orderPayload(items ...map[string]any) map[string]any {
	return map[string]any{
		"customerName": "Ayse Yilmaz",
		"phone":        "05321234567",
		"address":      "Bagdat Cad. 12",
		"totalAmount":  0,
		"items":        items,
	}
}

func TestProductRoutes(t *testing.T) {
	r, _ := newRouter(t, nil)

	w := do(r, http.MethodGet, "/products", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Product
	decode(t, w, &list)
	assert.Len(t, list, 2)

	w = do(r, http.MethodGet, "/products?category=icecek", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &list)
	require.Len(t, list, 1)
	assert.Equal(t, "p2", list[0].ID)

	w = do(r, http.MethodGet, "/products?category=pizza", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/products/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	newProduct := map[string]any{"name": "Mercimek", "description": "Lentil soup", "price": 40, "category": "corba"}

	w = do(r, http.MethodPost, "/products", "", newProduct)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	var eb errorBody
	decode(t, w, &eb)
	assert.False(t, eb.Success)
	assert.Equal(t, "/login", eb.Redirect)

	w = do(r, http.MethodPost, "/products", userToken, newProduct)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, http.MethodPost, "/products", adminToken, newProduct)
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.Product
	decode(t, w, &created)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, models.CategorySoup, created.Category)

	w = do(r, http.MethodPut, "/products/"+created.ID, adminToken, map[string]any{"price": 45})
	require.Equal(t, http.StatusOK, w.Code)
	var updated models.Product
	decode(t, w, &updated)
	assert.Equal(t, 45.0, updated.Price)
	assert.Equal(t, "Mercimek", updated.Name)

	w = do(r, http.MethodDelete, "/products/"+created.ID, adminToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(r, http.MethodGet, "/products/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCategoriesRoute(t *testing.T) {
	r, _ := newRouter(t, nil)
	w := do(r, http.MethodGet, "/categories", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var summaries []catalog.CategorySummary
	decode(t, w, &summaries)
	require.Len(t, summaries, len(models.Categories))
	for _, s := range summaries {
		if s.Category == models.CategoryDrink {
			assert.Equal(t, int64(1), s.ProductCount)
			assert.Equal(t, 15.0, s.AveragePrice)
		}
	}
}

func TestInvalidToken(t *testing.T) {
	r, _ := newRouter(t, nil)
	w := do(r, http.MethodGet, "/orders", "forged", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	var eb errorBody
	decode(t, w, &eb)
	assert.Equal(t, "invalid token", eb.Error)
}

func TestCreateOrder(t *testing.T) {
	r, db := newRouter(t, nil)

	w := do(r, http.MethodPost, "/orders", userToken, orderPayload(map[string]any{"productId": "p1", "quantity": 2, "price": 50}))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var ob orderBody
	decode(t, w, &ob)
	assert.True(t, ob.Success)
	assert.Equal(t, 100.0, ob.Order.TotalAmount)
	assert.Equal(t, models.OrderStatusPending, ob.Order.Status)
	require.Len(t, ob.Order.Items, 1)
	assert.Equal(t, "Lahmacun", ob.Order.Items[0].Product.Name)

	w = do(r, http.MethodPost, "/orders", userToken, orderPayload(map[string]any{"productId": "p9", "quantity": 1, "price": 10}))
	require.Equal(t, http.StatusBadRequest, w.Code)
	var eb errorBody
	decode(t, w, &eb)
	assert.False(t, eb.Success)
	assert.Equal(t, "some products not found", eb.Error)

	var n int64
	require.NoError(t, db.Model(&models.Order{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestMalformedBodies(t *testing.T) {
	r, _ := newRouter(t, nil)

	w := do(r, http.MethodPost, "/orders", userToken, `{"customerName":`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	var eb errorBody
	decode(t, w, &eb)
	assert.Equal(t, "invalid request body", eb.Error)

	huge := `{"customerName":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	w = do(r, http.MethodPost, "/orders", userToken, huge)
	require.Equal(t, http.StatusBadRequest, w.Code)
	decode(t, w, &eb)
	assert.Equal(t, "request body too large", eb.Error)
}

func TestOrderAdminRoutes(t *testing.T) {
	r, _ := newRouter(t, nil)
	w := do(r, http.MethodPost, "/orders", userToken, orderPayload(map[string]any{"productId": "p1", "quantity": 1, "price": 50}))
	require.Equal(t, http.StatusCreated, w.Code)
	var ob orderBody
	decode(t, w, &ob)
	path := "/orders/" + ob.Order.ID

	w = do(r, http.MethodPatch, path, userToken, map[string]any{"status": "DELIVERED"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(r, http.MethodPatch, path, adminToken, map[string]any{"status": "SHIPPED"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPatch, path, adminToken, map[string]any{"status": "DELIVERED"})
	require.Equal(t, http.StatusOK, w.Code)
	var updated models.Order
	decode(t, w, &updated)
	assert.Equal(t, models.OrderStatusDelivered, updated.Status)

	w = do(r, http.MethodGet, path, userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/admin/stats", userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = do(r, http.MethodGet, "/admin/stats", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats orders.Stats
	decode(t, w, &stats)
	assert.Equal(t, orders.Stats{TotalProducts: 2, TotalOrders: 1, TotalRevenue: 50}, stats)

	w = do(r, http.MethodDelete, path, userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = do(r, http.MethodDelete, path, adminToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(r, http.MethodDelete, path, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminRoutesAuthorizeBeforeBinding(t *testing.T) {
	r, _ := newRouter(t, nil)
	for _, tc := range []struct {
		token string
		want  int
	}{
		{"", http.StatusUnauthorized},
		{userToken, http.StatusForbidden},
		{adminToken, http.StatusBadRequest},
	} {
		w := do(r, http.MethodPatch, "/orders/any", tc.token, `{"status":`)
		assert.Equal(t, tc.want, w.Code, tc.token)
	}

	w := do(r, http.MethodDelete, "/orders/any", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = do(r, http.MethodGet, "/admin/stats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListOrdersRequiresLogin(t *testing.T) {
	r, _ := newRouter(t, nil)
	w := do(r, http.MethodGet, "/orders", "", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	var eb errorBody
	decode(t, w, &eb)
	assert.Equal(t, "/login", eb.Redirect)
}

func TestCartFlow(t *testing.T) {
	r, _ := newRouter(t, nil)

	w := do(r, http.MethodPost, "/cart/lines", "", map[string]any{"productId": "p1"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	var eb errorBody
	decode(t, w, &eb)
	require.NotNil(t, eb.Added)
	assert.False(t, *eb.Added)
	assert.Equal(t, "/login", eb.Redirect)

	w = do(r, http.MethodPost, "/cart/checkout", userToken, map[string]any{"customerName": "Ayse", "phone": "05321234567", "address": "Bagdat Cad. 12"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	decode(t, w, &eb)
	assert.Equal(t, "cart is empty", eb.Error)

	for _, id := range []string{"p1", "p1", "p2"} {
		w = do(r, http.MethodPost, "/cart/lines", userToken, map[string]any{"productId": id})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	var body struct {
		Lines []cart.Line `json:"lines"`
		Total float64     `json:"total"`
		Added bool        `json:"added"`
	}
	decode(t, w, &body)
	assert.True(t, body.Added)
	assert.Equal(t, 115.0, body.Total)

	w = do(r, http.MethodPatch, "/cart/lines/p2", userToken, map[string]any{"quantity": 0})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &body)
	require.Len(t, body.Lines, 1)
	assert.Equal(t, 100.0, body.Total)

	w = do(r, http.MethodPost, "/cart/checkout", userToken, map[string]any{"customerName": "Ayse", "phone": "05321234567", "address": "Bagdat Cad. 12"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var ob orderBody
	decode(t, w, &ob)
	assert.Equal(t, 100.0, ob.Order.TotalAmount)

	w = do(r, http.MethodGet, "/cart", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &body)
	assert.Empty(t, body.Lines)

	w = do(r, http.MethodGet, "/orders", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.Order
	decode(t, w, &list)
	require.Len(t, list, 1)
	assert.Equal(t, ob.Order.ID, list[0].ID)
}

func TestCartRemoveAndClear(t *testing.T) {
	r, _ := newRouter(t, nil)
	do(r, http.MethodPost, "/cart/lines", userToken, map[string]any{"productId": "p1"})
	do(r, http.MethodPost, "/cart/lines", userToken, map[string]any{"productId": "p2"})

	w := do(r, http.MethodDelete, "/cart/lines/p1", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Lines []cart.Line `json:"lines"`
	}
	decode(t, w, &body)
	require.Len(t, body.Lines, 1)
	assert.Equal(t, "p2", body.Lines[0].ProductID)

	w = do(r, http.MethodDelete, "/cart", userToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(r, http.MethodPost, "/cart/lines", userToken, map[string]any{"productId": "p404"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCheckoutRateLimited(t *testing.T) {
	r, _ := newRouter(t, middleware.NewRateLimiter(1, 1))
	payload := orderPayload(map[string]any{"productId": "p1", "quantity": 1, "price": 50})

	w := do(r, http.MethodPost, "/orders", userToken, payload)
	require.Equal(t, http.StatusCreated, w.Code)
	w = do(r, http.MethodPost, "/orders", userToken, payload)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// other routes are not limited
	w = do(r, http.MethodGet, "/products", userToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthMetricsAndTrace(t *testing.T) {
	r, _ := newRouter(t, nil)

	w := do(r, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(middleware.TraceHeader))

	req := httptest.NewRequest(http.MethodGet, "/products", nil)
	req.Header.Set(middleware.TraceHeader, "trace-123")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "trace-123", w.Header().Get(middleware.TraceHeader))

	w = do(r, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "catering_http_requests_total")
}
