package broadcast

import (
	"time"

	"github.com/google/uuid"
)

// Wire event types fanned out to every client watching an auction room.
const (
	TypeAuctionActivated = "auction_activated"
	TypeAuctionCancelled = "auction_cancelled"
	TypeAuctionEnded     = "auction_ended"
	TypeBidPlaced        = "bid_placed"
	TypeCountdownUpdate  = "countdown_update"
)

type AuctionActivated struct {
	Type                string    `json:"type"`
	AuctionID           uuid.UUID `json:"auctionId"`
	CurrentBidCents     int       `json:"currentBidCents"`
	MinimumNextBidCents int       `json:"minimumNextBidCents"`
}

func NewAuctionActivated(auctionID uuid.UUID, currentBid, minNext int) AuctionActivated {
	return AuctionActivated{
		Type:                TypeAuctionActivated,
		AuctionID:           auctionID,
		CurrentBidCents:     currentBid,
		MinimumNextBidCents: minNext,
	}
}

type AuctionCancelled struct {
	Type      string    `json:"type"`
	AuctionID uuid.UUID `json:"auctionId"`
	Reason    string    `json:"reason,omitempty"`
}

func NewAuctionCancelled(auctionID uuid.UUID, reason string) AuctionCancelled {
	return AuctionCancelled{Type: TypeAuctionCancelled, AuctionID: auctionID, Reason: reason}
}

type AuctionEnded struct {
	Type            string     `json:"type"`
	AuctionID       uuid.UUID  `json:"auctionId"`
	WinnerID        *uuid.UUID `json:"winnerId,omitempty"`
	OrderID         *uuid.UUID `json:"orderId,omitempty"`
	FinalPriceCents int        `json:"finalPriceCents"`
}

func NewAuctionEnded(auctionID uuid.UUID, winnerID, orderID *uuid.UUID, finalPrice int) AuctionEnded {
	return AuctionEnded{
		Type:            TypeAuctionEnded,
		AuctionID:       auctionID,
		WinnerID:        winnerID,
		OrderID:         orderID,
		FinalPriceCents: finalPrice,
	}
}

type BidPlaced struct {
	Type                string    `json:"type"`
	AuctionID           uuid.UUID `json:"auctionId"`
	BidderID            uuid.UUID `json:"bidderId"`
	AmountCents         int       `json:"amountCents"`
	MinimumNextBidCents int       `json:"minimumNextBidCents"`
	CountdownEndTime    time.Time `json:"countdownEndTime"`
}

func NewBidPlaced(auctionID, bidderID uuid.UUID, amount, minNext int, countdownEnd time.Time) BidPlaced {
	return BidPlaced{
		Type:                TypeBidPlaced,
		AuctionID:           auctionID,
		BidderID:            bidderID,
		AmountCents:         amount,
		MinimumNextBidCents: minNext,
		CountdownEndTime:    countdownEnd,
	}
}

type CountdownUpdate struct {
	Type             string    `json:"type"`
	AuctionID        uuid.UUID `json:"auctionId"`
	RemainingSeconds int       `json:"remainingSeconds"`
}

func NewCountdownUpdate(auctionID uuid.UUID, remaining int) CountdownUpdate {
	return CountdownUpdate{Type: TypeCountdownUpdate, AuctionID: auctionID, RemainingSeconds: remaining}
}
