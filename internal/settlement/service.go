package settlement

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
	"github.com/angelmondragon/bidfinderz-backend/pkg/logger"
	"github.com/angelmondragon/bidfinderz-backend/pkg/outbox"
	"github.com/angelmondragon/bidfinderz-backend/pkg/outbox/payloads"
)

const orderErrInsufficientBalance = "Insufficient balance"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type roomBroadcaster interface {
	Publish(ctx context.Context, auctionID uuid.UUID, event any) error
}

type settlementNotifier interface {
	NotifyAuctionWon(ctx context.Context, userID, auctionID uuid.UUID, priceCents int)
	NotifySellerSold(ctx context.Context, sellerStoreID, auctionID, orderID uuid.UUID, priceCents int)
}

// Result reports what one EndAuction call did. Settled is false when another
// caller already closed the auction; the remaining fields then reflect the
// persisted outcome of that earlier close.
type Result struct {
	AuctionID       uuid.UUID
	SellerStoreID   uuid.UUID
	Status          enums.AuctionStatus
	Settled         bool
	WinnerID        *uuid.UUID
	OrderID         *uuid.UUID
	FinalPriceCents int
	OrderError      string
}

// Service closes expired auctions. The whole settlement - status flip, wallet
// debit and order creation - commits in one transaction, so a crash can never
// end an auction without its order.
type Service interface {
	EndAuction(ctx context.Context, auctionID uuid.UUID) (*Result, error)
}

type service struct {
	auctionRepo auctions.Repository
	repo        Repository
	tx          txRunner
	outbox      outboxPublisher
	rooms       roomBroadcaster
	notifier    settlementNotifier
	logg        *logger.Logger
	now         func() time.Time
}

// ServiceParams collects the settlement dependencies. Notifier is optional.
type ServiceParams struct {
	AuctionRepo auctions.Repository
	Repo        Repository
	Tx          txRunner
	Outbox      outboxPublisher
	Rooms       roomBroadcaster
	Notifier    settlementNotifier
	Logger      *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.AuctionRepo == nil {
		return nil, fmt.Errorf("auctions repository required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("settlement repository required")
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
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		auctionRepo: params.AuctionRepo,
		repo:        params.Repo,
		tx:          params.Tx,
		outbox:      params.Outbox,
		rooms:       params.Rooms,
		notifier:    params.Notifier,
		logg:        params.Logger,
		now:         time.Now,
	}, nil
}

func (s *service) EndAuction(ctx context.Context, auctionID uuid.UUID) (*Result, error) {
	if auctionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "auction id required")
	}

	result := Result{AuctionID: auctionID}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		auctionRepo := s.auctionRepo.WithTx(tx)
		auction, err := auctionRepo.FindByIDForUpdate(ctx, auctionID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeAuctionNotFound, "auction not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDB, err, "lock auction")
		}
		if auction.Status != enums.AuctionStatusActive {
			// Already settled or cancelled; report the persisted outcome
			// without redoing any side effects.
			return s.reportClosed(ctx, tx, auction, &result)
		}

		now := s.now()
		if auction.CountdownEndTime == nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "countdown not armed")
		}
		if auction.CountdownEndTime.After(now) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "countdown still running")
		}

		repo := s.repo.WithTx(tx)
		flipped, err := repo.MarkEnded(ctx, auction.ID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDB, err, "end auction")
		}
		if !flipped {
			return nil
		}
		result.Settled = true
		result.Status = enums.AuctionStatusEnded
		result.SellerStoreID = auction.SellerStoreID
		result.FinalPriceCents = auction.CurrentBidCents

		if auction.HighestBidderID != nil {
			if err := s.settleWinner(ctx, repo, auction, now, &result); err != nil {
				return err
			}
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventAuctionEnded,
			AggregateType: enums.AggregateAuction,
			AggregateID:   auction.ID,
			Version:       1,
			Data: payloads.AuctionEndedEvent{
				AuctionID:       auction.ID,
				WinnerID:        result.WinnerID,
				OrderID:         result.OrderID,
				FinalPriceCents: result.FinalPriceCents,
				EndedAt:         now,
			},
		}
		return s.outbox.EmitIfNotExists(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}

	if result.Settled {
		s.afterSettle(ctx, &result)
	}
	return &result, nil
}

// reportClosed fills the result from a row another caller already closed.
// Winner and order only exist when the close was a settlement, not a
// cancellation.
func (s *service) reportClosed(ctx context.Context, tx *gorm.DB, auction *models.Auction, result *Result) error {
	result.Status = auction.Status
	result.SellerStoreID = auction.SellerStoreID
	result.FinalPriceCents = auction.CurrentBidCents
	if auction.Status != enums.AuctionStatusEnded {
		return nil
	}
	if auction.HighestBidderID != nil {
		winner := *auction.HighestBidderID
		result.WinnerID = &winner
	}
	order, err := s.repo.WithTx(tx).FindOrderByAuction(ctx, auction.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDB, err, "load settlement order")
	}
	if order != nil {
		orderID := order.ID
		result.OrderID = &orderID
	}
	return nil
}

// settleWinner debits the winner's wallet and creates the order inside the
// settlement transaction. An unfunded winner downgrades the close to a
// no-sale instead of failing it.
func (s *service) settleWinner(ctx context.Context, repo Repository, auction *models.Auction, now time.Time, result *Result) error {
	winnerID := *auction.HighestBidderID
	price := auction.CurrentBidCents

	if _, err := repo.FindUserForUpdate(ctx, winnerID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDB, err, "lock winner")
	}
	debited, err := repo.DebitWallet(ctx, winnerID, price)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDB, err, "debit wallet")
	}
	if !debited {
		result.OrderError = orderErrInsufficientBalance
		logCtx := s.logg.WithAuctionID(ctx, auction.ID.String())
		logCtx = s.logg.WithUserID(logCtx, winnerID.String())
		s.logg.Warn(logCtx, "winner wallet could not cover the final price")
		return nil
	}

	product, err := repo.FindProduct(ctx, auction.ProductID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDB, err, "load product")
	}

	order := &models.Order{
		AuctionID:     auction.ID,
		BuyerID:       winnerID,
		SellerStoreID: auction.SellerStoreID,
		TotalCents:    price,
		Status:        enums.OrderStatusApproved,
		ConfirmedAt:   &now,
	}
	if _, err := repo.CreateOrder(ctx, order); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDB, err, "create order")
	}
	items := []models.OrderItem{{
		OrderID:    order.ID,
		ProductID:  product.ID,
		Name:       product.Title,
		Qty:        1,
		PriceCents: price,
	}}
	if err := repo.CreateOrderItems(ctx, items); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDB, err, "create order items")
	}

	result.WinnerID = &winnerID
	result.OrderID = &order.ID
	return nil
}

func (s *service) afterSettle(ctx context.Context, result *Result) {
	_ = s.rooms.Publish(ctx, result.AuctionID, broadcast.NewAuctionEnded(
		result.AuctionID,
		result.WinnerID,
		result.OrderID,
		result.FinalPriceCents,
	))

	if s.notifier == nil || result.WinnerID == nil || result.OrderID == nil {
		return
	}
	s.notifier.NotifyAuctionWon(ctx, *result.WinnerID, result.AuctionID, result.FinalPriceCents)
	s.notifier.NotifySellerSold(ctx, result.SellerStoreID, result.AuctionID, *result.OrderID, result.FinalPriceCents)
}
