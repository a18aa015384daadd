package bidding

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bidfinderz-backend/internal/auctions"
	"github.com/angelmondragon/bidfinderz-backend/internal/broadcast"
	"github.com/angelmondragon/bidfinderz-backend/pkg/db/models"
	"github.com/angelmondragon/bidfinderz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bidfinderz-backend/pkg/errors"
	"github.com/angelmondragon/bidfinderz-backend/pkg/metrics"
	"github.com/angelmondragon/bidfinderz-backend/pkg/outbox"
	"github.com/angelmondragon/bidfinderz-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type roomBroadcaster interface {
	Publish(ctx context.Context, auctionID uuid.UUID, event any) error
}

// countdownExtender lets the in-process supervisor pick up the new deadline
// without waiting for its next database read.
type countdownExtender interface {
	Extend(auctionID uuid.UUID, end time.Time, bidderID uuid.UUID)
}

type outbidNotifier interface {
	NotifyOutbid(ctx context.Context, userID, auctionID uuid.UUID, newAmountCents int)
}

// SubmitBidInput is a single bid attempt.
type SubmitBidInput struct {
	AuctionID   uuid.UUID
	BidderID    uuid.UUID
	AmountCents int
}

// BidResult reflects the auction state right after the bid was accepted.
type BidResult struct {
	BidID               uuid.UUID `json:"bidId"`
	AuctionID           uuid.UUID `json:"auctionId"`
	AmountCents         int       `json:"amountCents"`
	MinimumNextBidCents int       `json:"minimumNextBidCents"`
	CountdownEndTime    time.Time `json:"countdownEndTime"`
}

// Service validates and records bids. All validation runs under the
// per-auction row lock, so concurrent bids on one auction are applied in
// lock acquisition order and each is judged against the floor left by the
// previous one.
type Service interface {
	SubmitBid(ctx context.Context, input SubmitBidInput) (*BidResult, error)
	History(ctx context.Context, auctionID uuid.UUID, limit int) ([]models.Bid, error)
}

type service struct {
	auctionRepo auctions.Repository
	bidRepo     Repository
	tx          txRunner
	outbox      outboxPublisher
	rooms       roomBroadcaster
	extender    countdownExtender
	notifier    outbidNotifier
	metrics     *metrics.BidMetrics
	bidWindow   time.Duration
	now         func() time.Time
}

// ServiceParams collects the bidding service dependencies. Extender and
// Notifier are optional; Metrics may be built on a nil registerer.
type ServiceParams struct {
	AuctionRepo auctions.Repository
	BidRepo     Repository
	Tx          txRunner
	Outbox      outboxPublisher
	Rooms       roomBroadcaster
	Extender    countdownExtender
	Notifier    outbidNotifier
	Metrics     *metrics.BidMetrics
	BidWindow   time.Duration
}

func NewService(params ServiceParams) (Service, error) {
	if params.AuctionRepo == nil {
		return nil, fmt.Errorf("auctions repository required")
	}
	if params.BidRepo == nil {
		return nil, fmt.Errorf("bid repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Rooms == nil {
		return nil, fmt.Errorf("room broadcaster required")
	}
	if params.Metrics == nil {
		return nil, fmt.Errorf("bid metrics required")
	}
	if params.BidWindow <= 0 {
		return nil, fmt.Errorf("bid window must be positive")
	}
	return &service{
		auctionRepo: params.AuctionRepo,
		bidRepo:     params.BidRepo,
		tx:          params.Tx,
		outbox:      params.Outbox,
		rooms:       params.Rooms,
		extender:    params.Extender,
		notifier:    params.Notifier,
		metrics:     params.Metrics,
		bidWindow:   params.BidWindow,
		now:         time.Now,
	}, nil
}

func (s *service) SubmitBid(ctx context.Context, input SubmitBidInput) (*BidResult, error) {
	if input.AuctionID == uuid.Nil {
		return nil, s.reject(pkgerrors.New(pkgerrors.CodeValidation, "auction id required"))
	}
	if input.BidderID == uuid.Nil {
		return nil, s.reject(pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing"))
	}
	if input.AmountCents <= 0 {
		return nil, s.reject(pkgerrors.New(pkgerrors.CodeValidation, "bid amount must be positive"))
	}

	var (
		result        BidResult
		previousOwner *uuid.UUID
	)

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		auctionRepo := s.auctionRepo.WithTx(tx)
		auction, err := auctionRepo.FindByIDForUpdate(ctx, input.AuctionID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeAuctionNotFound, "auction not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDB, err, "lock auction")
		}

		now := s.now()
		if auction.Status != enums.AuctionStatusActive {
			return pkgerrors.New(pkgerrors.CodeAuctionNotActive, "auction is not active")
		}
		// A bid that raced past an expired countdown loses even if the sweep
		// has not settled the row yet.
		if auction.CountdownEndTime != nil && !auction.CountdownEndTime.After(now) {
			return pkgerrors.New(pkgerrors.CodeAuctionNotActive, "auction countdown expired")
		}

		minimum := auction.CurrentBidCents + auction.MinIncrementCents
		if input.AmountCents < minimum {
			return pkgerrors.New(pkgerrors.CodeBidTooLow, "bid below the minimum").
				WithDetails(map[string]any{"minimumNextBidCents": minimum})
		}

		if auction.HighestBidderID != nil && *auction.HighestBidderID != input.BidderID {
			prev := *auction.HighestBidderID
			previousOwner = &prev
		}

		bid := &models.Bid{
			AuctionID:   auction.ID,
			BidderID:    input.BidderID,
			AmountCents: input.AmountCents,
			PlacedAt:    now,
		}
		if _, err := s.bidRepo.WithTx(tx).Create(ctx, bid); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDB, err, "record bid")
		}

		countdownEnd := now.Add(s.bidWindow)
		if err := auctionRepo.RecordBid(ctx, auction.ID, input.AmountCents, input.BidderID, countdownEnd); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDB, err, "advance auction state")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventBidPlaced,
			AggregateType: enums.AggregateAuction,
			AggregateID:   auction.ID,
			Version:       1,
			Data: payloads.BidPlacedEvent{
				AuctionID:       auction.ID,
				BidID:           bid.ID,
				BidderID:        input.BidderID,
				AmountCents:     input.AmountCents,
				PreviousHighest: previousOwner,
				PlacedAt:        now,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDB, err, "queue bid event")
		}

		result = BidResult{
			BidID:               bid.ID,
			AuctionID:           auction.ID,
			AmountCents:         input.AmountCents,
			MinimumNextBidCents: input.AmountCents + auction.MinIncrementCents,
			CountdownEndTime:    countdownEnd,
		}
		return nil
	})
	if err != nil {
		return nil, s.reject(err)
	}

	s.metrics.IncAccepted()

	if s.extender != nil {
		s.extender.Extend(result.AuctionID, result.CountdownEndTime, input.BidderID)
	}

	_ = s.rooms.Publish(ctx, result.AuctionID, broadcast.NewBidPlaced(
		result.AuctionID,
		input.BidderID,
		result.AmountCents,
		result.MinimumNextBidCents,
		result.CountdownEndTime,
	))

	if s.notifier != nil && previousOwner != nil {
		s.notifier.NotifyOutbid(ctx, *previousOwner, result.AuctionID, result.AmountCents)
	}

	return &result, nil
}

func (s *service) History(ctx context.Context, auctionID uuid.UUID, limit int) ([]models.Bid, error) {
	if auctionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "auction id required")
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := s.bidRepo.ListByAuction(ctx, auctionID, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDB, err, "list bids")
	}
	return rows, nil
}

func (s *service) reject(err error) error {
	s.metrics.IncRejected(string(pkgerrors.CodeOf(err)))
	return err
}
