package orders

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/judyrop/catering-backend/internal/apperr"
	"github.com/judyrop/catering-backend/internal/auth"
	"github.com/judyrop/catering-backend/internal/ctxmanage"
	"github.com/judyrop/catering-backend/internal/logkey"
	"github.com/judyrop/catering-backend/internal/metrics"
	"github.com/judyrop/catering-backend/internal/notify"
	"github.com/judyrop/catering-backend/internal/validation"
	"github.com/judyrop/catering-backend/models"
)

type LineInput struct {
	ProductID string  `json:"productId" validate:"required"`
	Quantity  int     `json:"quantity" validate:"gte=1"`
	Price     float64 `json:"price" validate:"gt=0"`
}

// CheckoutRequest is a cart snapshot plus delivery details. TotalAmount is
// accepted for compatibility but never used.
type CheckoutRequest struct {
	CustomerName string      `json:"customerName" validate:"required,min=2"`
	Phone        string      `json:"phone" validate:"required,min=10"`
	Address      string      `json:"address" validate:"required,min=5"`
	TotalAmount  float64     `json:"totalAmount"`
	Items        []LineInput `json:"items" validate:"required,min=1,dive"`
}

type Stats struct {
	TotalProducts int64   `json:"totalProducts"`
	TotalOrders   int64   `json:"totalOrders"`
	PendingOrders int64   `json:"pendingOrders"`
	TotalRevenue  float64 `json:"totalRevenue"`
}

type Conf struct {
	db       *gorm.DB
	validate *validator.Validate
	notifier notify.Notifier
}

func NewConf(db *gorm.DB, notifier notify.Notifier) *Conf {
	if notifier == nil {
		notifier = notify.LogNotifier{}
	}
	return &Conf{db: db, validate: validation.New(), notifier: notifier}
}

// Total is the sum of price times quantity, rounded to cents.
func Total(items []LineInput) float64 {
	var total float64
	for _, it := range items {
		total += it.Price * float64(it.Quantity)
	}
	return models.RoundCents(total)
}

// Checkout validates req against the catalog and persists the order with its
// items in one transaction. Nothing is written unless every product exists.
func (c *Conf) Checkout(ctx context.Context, owner auth.Principal, req CheckoutRequest) (models.Order, error) {
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Address = strings.TrimSpace(req.Address)
	// Items store the charged unit price, so it is fixed to cents before the
	// total is computed. A price that rounds to zero fails validation.
	items := make([]LineInput, len(req.Items))
	for i, it := range req.Items {
		it.Price = models.RoundCents(it.Price)
		items[i] = it
	}
	if req.Items != nil {
		req.Items = items
	}
	if err := validation.Struct(c.validate, req); err != nil {
		metrics.RecordCheckoutRejected(apperr.KindValidation.String())
		return models.Order{}, err
	}

	order := models.Order{
		CustomerName: req.CustomerName,
		Phone:        req.Phone,
		Address:      req.Address,
		Status:       models.OrderStatusPending,
		TotalAmount:  Total(req.Items),
	}
	if owner.Authenticated() {
		sub := owner.Subject
		order.UserID = &sub
	}
	if req.TotalAmount != 0 && req.TotalAmount != order.TotalAmount {
		slog.Warn("client total ignored",
			slog.String(logkey.TraceID, ctxmanage.TraceID(ctx)),
			slog.Float64("client_total", req.TotalAmount),
			slog.Float64("total", order.TotalAmount))
	}

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := uniqueProductIDs(req.Items)
		var found int64
		if err := tx.Model(&models.Product{}).
			Where("id IN ? AND is_deleted = ?", ids, false).
			Count(&found).Error; err != nil {
			return apperr.Store("check products", err)
		}
		if found != int64(len(ids)) {
			return apperr.Validation("some products not found")
		}

		if err := tx.Omit(clause.Associations).Create(&order).Error; err != nil {
			return apperr.Store("create order", err)
		}
		items := make([]models.OrderItem, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, models.OrderItem{
				OrderID:   order.ID,
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				Price:     it.Price,
			})
		}
		if err := tx.Omit(clause.Associations).Create(&items).Error; err != nil {
			return apperr.Store("create order items", err)
		}
		return nil
	})
	if err != nil {
		metrics.RecordCheckoutRejected(apperr.KindOf(err).String())
		return models.Order{}, err
	}
	metrics.RecordOrderCreated()

	created, err := c.load(ctx, order.ID)
	if err != nil {
		return models.Order{}, err
	}
	if err := c.notifier.OrderPlaced(ctx, created); err != nil {
		slog.Error("order notification failed",
			slog.String(logkey.TraceID, ctxmanage.TraceID(ctx)),
			slog.String(logkey.OrderID, created.ID),
			slog.String(logkey.Error, err.Error()))
	}
	return created, nil
}

// SetStatus moves an order to any status. No transition graph is enforced.
func (c *Conf) SetStatus(ctx context.Context, actor auth.Principal, id string, status models.OrderStatus) (models.Order, error) {
	if err := auth.RequireRole(actor, auth.RoleAdmin).Err(); err != nil {
		return models.Order{}, err
	}
	if !status.Valid() {
		return models.Order{}, apperr.Validationf("invalid status %q", status)
	}
	res := c.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return models.Order{}, apperr.Store("update order status", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.Order{}, apperr.NotFound("order")
	}
	metrics.RecordStatusChange(string(status))
	slog.Info("order status changed",
		slog.String(logkey.TraceID, ctxmanage.TraceID(ctx)),
		slog.String(logkey.OrderID, id),
		slog.String(logkey.Status, string(status)),
		slog.String(logkey.UserID, actor.Subject))
	return c.load(ctx, id)
}

// Delete removes the order's items and then the order in one transaction.
func (c *Conf) Delete(ctx context.Context, actor auth.Principal, id string) error {
	if err := auth.RequireRole(actor, auth.RoleAdmin).Err(); err != nil {
		return err
	}
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&models.Order{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return apperr.Store("load order", err)
		}
		if n == 0 {
			return apperr.NotFound("order")
		}
		if err := tx.Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
			return apperr.Store("delete order items", err)
		}
		if err := tx.Where("id = ?", id).Delete(&models.Order{}).Error; err != nil {
			return apperr.Store("delete order", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	metrics.RecordOrderDeleted()
	return nil
}

// List returns every order for administrators and the caller's own orders
// otherwise, most recent first, with items and their products.
func (c *Conf) List(ctx context.Context, actor auth.Principal) ([]models.Order, error) {
	if err := auth.RequireAuthenticated(actor).Err(); err != nil {
		return nil, err
	}
	q := c.db.WithContext(ctx).Preload("Items.Product").Order("created_at desc")
	if !actor.IsAdmin() {
		q = q.Where("user_id = ?", actor.Subject)
	}
	orders := []models.Order{}
	if err := q.Find(&orders).Error; err != nil {
		return nil, apperr.Store("list orders", err)
	}
	return orders, nil
}

// Get returns one order. Customers only see their own orders.
func (c *Conf) Get(ctx context.Context, actor auth.Principal, id string) (models.Order, error) {
	if err := auth.RequireAuthenticated(actor).Err(); err != nil {
		return models.Order{}, err
	}
	o, err := c.load(ctx, id)
	if err != nil {
		return models.Order{}, err
	}
	if !actor.IsAdmin() && (o.UserID == nil || *o.UserID != actor.Subject) {
		return models.Order{}, apperr.NotFound("order")
	}
	return o, nil
}

func (c *Conf) Stats(ctx context.Context, actor auth.Principal) (Stats, error) {
	if err := auth.RequireRole(actor, auth.RoleAdmin).Err(); err != nil {
		return Stats{}, err
	}
	db := c.db.WithContext(ctx)
	var s Stats
	if err := db.Model(&models.Product{}).Where("is_deleted = ?", false).Count(&s.TotalProducts).Error; err != nil {
		return Stats{}, apperr.Store("count products", err)
	}
	if err := db.Model(&models.Order{}).Count(&s.TotalOrders).Error; err != nil {
		return Stats{}, apperr.Store("count orders", err)
	}
	if err := db.Model(&models.Order{}).Where("status = ?", models.OrderStatusPending).Count(&s.PendingOrders).Error; err != nil {
		return Stats{}, apperr.Store("count pending orders", err)
	}
	if err := db.Model(&models.Order{}).Select("COALESCE(SUM(total_amount), 0)").Scan(&s.TotalRevenue).Error; err != nil {
		return Stats{}, apperr.Store("sum revenue", err)
	}
	return s, nil
}

func (c *Conf) load(ctx context.Context, id string) (models.Order, error) {
	var o models.Order
	err := c.db.WithContext(ctx).Preload("Items.Product").First(&o, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Order{}, apperr.NotFound("order")
	}
	if err != nil {
		return models.Order{}, apperr.Store("load order", err)
	}
	return o, nil
}

func uniqueProductIDs(items []LineInput) []string {
	seen := make(map[string]struct{}, len(items))
	ids := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}
	return ids
}
