package models

import (
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RoundCents rounds an amount to two decimal places.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

type Category string

const (
	CategoryMainCourse Category = "ana-yemek"
	CategorySoup       Category = "corba"
	CategorySalad      Category = "salata"
	CategoryDessert    Category = "tatli"
	CategoryDrink      Category = "icecek"
)

// Categories lists the closed set of product categories in menu order.
var Categories = []Category{CategoryMainCourse, CategorySoup, CategorySalad, CategoryDessert, CategoryDrink}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusPreparing OrderStatus = "PREPARING"
	OrderStatusReady     OrderStatus = "READY"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPreparing,
	OrderStatusReady,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

type Product struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"not null" json:"name"`
	Description string    `gorm:"not null" json:"description"`
	Price       float64   `gorm:"not null" json:"price"`
	Category    Category  `gorm:"size:32;not null;index" json:"category"`
	Image       *string   `json:"image"`
	IsDeleted   bool      `gorm:"not null;default:false;index" json:"isDeleted"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// Order is a committed purchase. TotalAmount is fixed when the order is created.
type Order struct {
	ID           string      `gorm:"primaryKey;size:36" json:"id"`
	CustomerName string      `gorm:"not null" json:"customerName"`
	Phone        string      `gorm:"not null" json:"phone"`
	Address      string      `gorm:"not null" json:"address"`
	Status       OrderStatus `gorm:"size:16;not null;index" json:"status"`
	TotalAmount  float64     `gorm:"not null" json:"totalAmount"`
	UserID       *string     `gorm:"size:255;index" json:"userId"`
	Items        []OrderItem `gorm:"constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt    time.Time   `gorm:"index" json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// OrderItem keeps the unit price the customer was charged, independent of the
// product's current price.
type OrderItem struct {
	ID        string  `gorm:"primaryKey;size:36" json:"id"`
	OrderID   string  `gorm:"size:36;not null;index" json:"orderId"`
	ProductID string  `gorm:"size:36;not null;index" json:"productId"`
	Product   Product `gorm:"foreignKey:ProductID" json:"product"`
	Quantity  int     `gorm:"not null" json:"quantity"`
	Price     float64 `gorm:"not null" json:"price"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// All returns the models managed by AutoMigrate, parents first.
func All() []any {
	return []any{&Product{}, &Order{}, &OrderItem{}}
}
