package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bidfinderz-backend/pkg/enums"
)

// Auction represents a timed listing a seller puts up for open bidding.
//
// CurrentBidCents and CountdownEndTime are only ever advanced, never
// rolled back, while the auction is active.
type Auction struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ProductID         uuid.UUID           `gorm:"column:product_id;type:uuid;not null"`
	SellerStoreID     uuid.UUID           `gorm:"column:seller_store_id;type:uuid;not null"`
	Status            enums.AuctionStatus `gorm:"column:status;type:auction_status;not null;default:'scheduled'"`
	CurrentBidCents   int                 `gorm:"column:current_bid_cents;not null"`
	MinIncrementCents int                 `gorm:"column:min_increment_cents;not null"`
	HighestBidderID   *uuid.UUID          `gorm:"column:highest_bidder_id;type:uuid"`
	CountdownEndTime  *time.Time          `gorm:"column:countdown_end_time"`
	StartTime         time.Time           `gorm:"column:start_time;not null"`
	StartedAt         *time.Time          `gorm:"column:started_at"`
	EndedAt           *time.Time          `gorm:"column:ended_at"`
	Bids              []Bid               `gorm:"foreignKey:AuctionID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt         gorm.DeletedAt      `gorm:"column:deleted_at;index"`
}
