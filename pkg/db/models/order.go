package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/bidfinderz-backend/pkg/enums"
)

// Order is created exactly once per settled auction with a funded winner.
type Order struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AuctionID     uuid.UUID         `gorm:"column:auction_id;type:uuid;not null;uniqueIndex"`
	BuyerID       uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null"`
	SellerStoreID uuid.UUID         `gorm:"column:seller_store_id;type:uuid;not null"`
	TotalCents    int               `gorm:"column:total_cents;not null"`
	Status        enums.OrderStatus `gorm:"column:status;type:order_status;not null;default:'approved'"`
	ConfirmedAt   *time.Time        `gorm:"column:confirmed_at"`
	Items         []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
