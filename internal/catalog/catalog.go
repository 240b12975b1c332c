package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/judyrop/catering-backend/internal/apperr"
	"github.com/judyrop/catering-backend/internal/ctxmanage"
	"github.com/judyrop/catering-backend/internal/logkey"
	"github.com/judyrop/catering-backend/internal/validation"
	"github.com/judyrop/catering-backend/models"
)

type ProductInput struct {
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description" validate:"required"`
	Price       float64 `json:"price" validate:"gt=0"`
	Category    string  `json:"category" validate:"required,oneof=ana-yemek corba salata tatli icecek"`
	Image       *string `json:"image"`
}

// ProductPatch updates only the fields that are set.
type ProductPatch struct {
	Name        *string  `json:"name" validate:"omitempty,min=1"`
	Description *string  `json:"description" validate:"omitempty,min=1"`
	Price       *float64 `json:"price" validate:"omitempty,gt=0"`
	Category    *string  `json:"category" validate:"omitempty,oneof=ana-yemek corba salata tatli icecek"`
	Image       *string  `json:"image"`
}

type CategorySummary struct {
	Category     models.Category `json:"category"`
	ProductCount int64           `json:"productCount"`
	AveragePrice float64         `json:"averagePrice"`
}

type Conf struct {
	db       *gorm.DB
	validate *validator.Validate
}

func NewConf(db *gorm.DB) *Conf {
	return &Conf{db: db, validate: validation.New()}
}

// List returns purchasable products, newest first. An empty category lists all.
func (c *Conf) List(ctx context.Context, category string) ([]models.Product, error) {
	q := c.db.WithContext(ctx).Where("is_deleted = ?", false)
	if category != "" {
		if !models.Category(category).Valid() {
			return nil, apperr.Validationf("unknown category %q", category)
		}
		q = q.Where("category = ?", category)
	}
	products := []models.Product{}
	if err := q.Order("created_at desc").Find(&products).Error; err != nil {
		return nil, apperr.Store("list products", err)
	}
	return products, nil
}

func (c *Conf) Get(ctx context.Context, id string) (models.Product, error) {
	var p models.Product
	err := c.db.WithContext(ctx).Where("id = ? AND is_deleted = ?", id, false).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Product{}, apperr.NotFound("product")
	}
	if err != nil {
		return models.Product{}, apperr.Store("load product", err)
	}
	return p, nil
}

func (c *Conf) Create(ctx context.Context, in ProductInput) (models.Product, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Category = strings.TrimSpace(in.Category)
	in.Price = models.RoundCents(in.Price)
	if err := validation.Struct(c.validate, in); err != nil {
		return models.Product{}, err
	}
	p := models.Product{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Category:    models.Category(in.Category),
		Image:       trimmedOrNil(in.Image),
	}
	if err := c.db.WithContext(ctx).Create(&p).Error; err != nil {
		return models.Product{}, apperr.Store("create product", err)
	}
	slog.Info("product created", slog.String(logkey.TraceID, ctxmanage.TraceID(ctx)), slog.String(logkey.ProductID, p.ID))
	return p, nil
}

// Update changes catalog fields only. Order items keep the price captured at checkout.
func (c *Conf) Update(ctx context.Context, id string, patch ProductPatch) (models.Product, error) {
	if patch.Price != nil {
		price := models.RoundCents(*patch.Price)
		patch.Price = &price
	}
	if err := validation.Struct(c.validate, patch); err != nil {
		return models.Product{}, err
	}
	p, err := c.Get(ctx, id)
	if err != nil {
		return models.Product{}, err
	}
	updates := map[string]any{}
	if patch.Name != nil {
		updates["name"] = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		updates["description"] = strings.TrimSpace(*patch.Description)
	}
	if patch.Price != nil {
		updates["price"] = *patch.Price
	}
	if patch.Category != nil {
		updates["category"] = models.Category(*patch.Category)
	}
	if patch.Image != nil {
		updates["image"] = trimmedOrNil(patch.Image)
	}
	if len(updates) == 0 {
		return p, nil
	}
	if err := c.db.WithContext(ctx).Model(&p).Updates(updates).Error; err != nil {
		return models.Product{}, apperr.Store("update product", err)
	}
	return c.Get(ctx, id)
}

// SoftDelete hides the product from the catalog. The row stays so historical
// order items can still resolve it.
func (c *Conf) SoftDelete(ctx context.Context, id string) error {
	res := c.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND is_deleted = ?", id, false).
		Update("is_deleted", true)
	if res.Error != nil {
		return apperr.Store("delete product", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("product")
	}
	slog.Info("product deleted", slog.String(logkey.TraceID, ctxmanage.TraceID(ctx)), slog.String(logkey.ProductID, id))
	return nil
}

// Categories reports product count and average price for every category,
// including empty ones.
func (c *Conf) Categories(ctx context.Context) ([]CategorySummary, error) {
	var rows []CategorySummary
	err := c.db.WithContext(ctx).Model(&models.Product{}).
		Select("category, COUNT(*) AS product_count, AVG(price) AS average_price").
		Where("is_deleted = ?", false).
		Group("category").
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.Store("summarize categories", err)
	}
	byCategory := make(map[models.Category]CategorySummary, len(rows))
	for _, r := range rows {
		byCategory[r.Category] = r
	}
	out := make([]CategorySummary, 0, len(models.Categories))
	for _, cat := range models.Categories {
		s, ok := byCategory[cat]
		if !ok {
			s = CategorySummary{Category: cat}
		}
		out = append(out, s)
	}
	return out, nil
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
