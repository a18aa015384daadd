package payloads

import (
	"time"

	"github.com/google/uuid"
)

// AuctionActivatedEvent signals that a scheduled auction opened for bidding.
// The countdown is not armed yet; that happens on the first accepted bid.
type AuctionActivatedEvent struct {
	AuctionID     uuid.UUID `json:"auctionId"`
	ProductID     uuid.UUID `json:"productId"`
	SellerStoreID uuid.UUID `json:"sellerStoreId"`
	StartedAt     time.Time `json:"startedAt"`
}

// AuctionCancelledEvent is emitted when a seller or admin cancels an auction
// before it produced a sale.
type AuctionCancelledEvent struct {
	AuctionID   uuid.UUID `json:"auctionId"`
	CancelledAt time.Time `json:"cancelledAt"`
	Reason      string    `json:"reason,omitempty"`
}

// BidPlacedEvent carries an accepted bid.
type BidPlacedEvent struct {
	AuctionID       uuid.UUID  `json:"auctionId"`
	BidID           uuid.UUID  `json:"bidId"`
	BidderID        uuid.UUID  `json:"bidderId"`
	AmountCents     int        `json:"amountCents"`
	PreviousHighest *uuid.UUID `json:"previousHighest,omitempty"`
	PlacedAt        time.Time  `json:"placedAt"`
}

// AuctionEndedEvent surfaces the settlement outcome. OrderID and WinnerID are
// nil when the auction closed without bids or the winner could not pay.
type AuctionEndedEvent struct {
	AuctionID       uuid.UUID  `json:"auctionId"`
	WinnerID        *uuid.UUID `json:"winnerId,omitempty"`
	OrderID         *uuid.UUID `json:"orderId,omitempty"`
	FinalPriceCents int        `json:"finalPriceCents"`
	EndedAt         time.Time  `json:"endedAt"`
}
