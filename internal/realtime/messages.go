package realtime

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/bidfinderz-backend/internal/auctions"
	"github.com/angelmondragon/bidfinderz-backend/internal/bidding"
)

// Inbound message types accepted over the socket.
const (
	MsgJoinAuction  = "join_auction"
	MsgLeaveAuction = "leave_auction"
	MsgPlaceBid     = "place_bid"
)

// Outbound message types the gateway originates itself. Room events relayed
// from redis carry their own type field.
const (
	MsgConnected    = "connected"
	MsgAuctionState = "auction_state"
	MsgBidSuccess   = "bid_success"
	MsgAuctionError = "auction_error"
)

// InboundMessage is the envelope for every client -> server frame.
type InboundMessage struct {
	Type        string    `json:"type"`
	AuctionID   uuid.UUID `json:"auctionId"`
	AmountCents int       `json:"amountCents,omitempty"`
}

type connectedMessage struct {
	Type     string    `json:"type"`
	ClientID uuid.UUID `json:"clientId"`
}

type auctionStateMessage struct {
	Type    string               `json:"type"`
	Auction auctions.AuctionView `json:"auction"`
}

type bidSuccessMessage struct {
	Type string            `json:"type"`
	Bid  bidding.BidResult `json:"bid"`
}

type auctionErrorMessage struct {
	Type      string     `json:"type"`
	AuctionID *uuid.UUID `json:"auctionId,omitempty"`
	Code      string     `json:"code"`
	Message   string     `json:"message"`
	Details   any        `json:"details,omitempty"`
}
