package models

import (
	"time"

	"github.com/google/uuid"
)

// Bid is the immutable record of an accepted bid. Rows are append-only;
// the accepted floor lives on the auction itself.
type Bid struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AuctionID   uuid.UUID `gorm:"column:auction_id;type:uuid;not null;index"`
	BidderID    uuid.UUID `gorm:"column:bidder_id;type:uuid;not null"`
	AmountCents int       `gorm:"column:amount_cents;not null"`
	PlacedAt    time.Time `gorm:"column:placed_at;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}
