package enums

import "fmt"

// AuctionStatus tracks the lifecycle of an auction.
//
// Transitions are one-directional: scheduled -> active -> ended, or
// scheduled -> cancelled. Nothing ever moves back.
type AuctionStatus string

const (
	AuctionStatusScheduled AuctionStatus = "scheduled"
	AuctionStatusActive    AuctionStatus = "active"
	AuctionStatusEnded     AuctionStatus = "ended"
	AuctionStatusCancelled AuctionStatus = "cancelled"
)

var validAuctionStatuses = []AuctionStatus{
	AuctionStatusScheduled,
	AuctionStatusActive,
	AuctionStatusEnded,
	AuctionStatusCancelled,
}

// String implements fmt.Stringer.
func (a AuctionStatus) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AuctionStatus.
func (a AuctionStatus) IsValid() bool {
	for _, candidate := range validAuctionStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the auction can never change state again.
func (a AuctionStatus) IsTerminal() bool {
	return a == AuctionStatusEnded || a == AuctionStatusCancelled
}

// ParseAuctionStatus converts raw input into an AuctionStatus.
func ParseAuctionStatus(value string) (AuctionStatus, error) {
	for _, candidate := range validAuctionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid auction status %q", value)
}
