package auctions

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/bidfinderz-backend/pkg/db/models"
	"github.com/angelmondragon/bidfinderz-backend/pkg/enums"
)

// CreateAuctionInput carries the fields a seller submits when scheduling an
// auction. StartingPriceCents seeds the accepted floor.
type CreateAuctionInput struct {
	ProductID          uuid.UUID
	SellerStoreID      uuid.UUID
	StartingPriceCents int
	MinIncrementCents  int
	StartTime          time.Time

	ActorUserID uuid.UUID
}

// CancelInput identifies the auction to cancel and who asked for it.
type CancelInput struct {
	AuctionID    uuid.UUID
	ActorUserID  uuid.UUID
	ActorStoreID uuid.UUID
	ActorRole    string
	Reason       string
}

// AuctionView is the read snapshot returned to clients. RemainingSeconds is
// derived at read time and clamped at zero.
type AuctionView struct {
	ID                  uuid.UUID           `json:"id"`
	ProductID           uuid.UUID           `json:"productId"`
	SellerStoreID       uuid.UUID           `json:"sellerStoreId"`
	Status              enums.AuctionStatus `json:"status"`
	CurrentBidCents     int                 `json:"currentBidCents"`
	MinIncrementCents   int                 `json:"minIncrementCents"`
	MinimumNextBidCents int                 `json:"minimumNextBidCents"`
	HighestBidderID     *uuid.UUID          `json:"highestBidderId,omitempty"`
	CountdownEndTime    *time.Time          `json:"countdownEndTime,omitempty"`
	RemainingSeconds    int                 `json:"remainingSeconds"`
	StartTime           time.Time           `json:"startTime"`
	StartedAt           *time.Time          `json:"startedAt,omitempty"`
	EndedAt             *time.Time          `json:"endedAt,omitempty"`
}

// NewAuctionView projects a model row into the client snapshot.
func NewAuctionView(a *models.Auction, now time.Time) AuctionView {
	view := AuctionView{
		ID:                  a.ID,
		ProductID:           a.ProductID,
		SellerStoreID:       a.SellerStoreID,
		Status:              a.Status,
		CurrentBidCents:     a.CurrentBidCents,
		MinIncrementCents:   a.MinIncrementCents,
		MinimumNextBidCents: a.CurrentBidCents + a.MinIncrementCents,
		HighestBidderID:     a.HighestBidderID,
		CountdownEndTime:    a.CountdownEndTime,
		StartTime:           a.StartTime,
		StartedAt:           a.StartedAt,
		EndedAt:             a.EndedAt,
	}
	if a.Status == enums.AuctionStatusActive && a.CountdownEndTime != nil {
		remaining := a.CountdownEndTime.Sub(now)
		if remaining > 0 {
			view.RemainingSeconds = int(remaining.Round(time.Second) / time.Second)
		}
	}
	return view
}
