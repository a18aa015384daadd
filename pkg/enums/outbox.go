package enums

// OutboxEventType names the domain events persisted through the outbox.
type OutboxEventType string

const (
	EventAuctionActivated OutboxEventType = "auction.activated"
	EventAuctionCancelled OutboxEventType = "auction.cancelled"
	EventAuctionEnded     OutboxEventType = "auction.ended"
	EventBidPlaced        OutboxEventType = "bid.placed"
)

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateAuction OutboxAggregateType = "auction"
)
