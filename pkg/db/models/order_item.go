package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem snapshots the auctioned product on the winning order.
// Quantity is always 1; the price is the final accepted bid.
type OrderItem struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Name       string    `gorm:"column:name;not null"`
	Qty        int       `gorm:"column:qty;not null;default:1"`
	PriceCents int       `gorm:"column:price_cents;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
