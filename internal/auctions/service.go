package auctions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bidfinderz-backend/internal/broadcast"
	"github.com/angelmondragon/bidfinderz-backend/pkg/db/models"
	"github.com/angelmondragon/bidfinderz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bidfinderz-backend/pkg/errors"
	"github.com/angelmondragon/bidfinderz-backend/pkg/outbox"
	"github.com/angelmondragon/bidfinderz-backend/pkg/outbox/payloads"
)

const roleAdmin = "admin"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type roomBroadcaster interface {
	Publish(ctx context.Context, auctionID uuid.UUID, event any) error
}

// Service owns the auction lifecycle outside the bidding hot path: creation,
// activation, cancellation and read access.
type Service interface {
	Create(ctx context.Context, input CreateAuctionInput) (*AuctionView, error)
	Get(ctx context.Context, id uuid.UUID) (*AuctionView, error)
	ListOpen(ctx context.Context, limit, offset int) ([]AuctionView, error)
	ListBySeller(ctx context.Context, sellerStoreID uuid.UUID, limit, offset int) ([]AuctionView, error)

	// Activate transitions a scheduled auction to active with a clear
	// countdown; the bid window arms on the first accepted bid. Safe to call
	// concurrently; only one caller wins.
	Activate(ctx context.Context, id uuid.UUID) (bool, error)
	Cancel(ctx context.Context, input CancelInput) error
	// ForceStop collapses an active auction's countdown to now so settlement
	// can run immediately. The expiry sweep remains the backstop.
	ForceStop(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	rooms  roomBroadcaster
	now    func() time.Time
}

// NewService builds the auction lifecycle service.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, rooms roomBroadcaster) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("auctions repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if rooms == nil {
		return nil, fmt.Errorf("room broadcaster required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		outbox: outboxSvc,
		rooms:  rooms,
		now:    time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateAuctionInput) (*AuctionView, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.SellerStoreID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller store id required")
	}
	if input.StartingPriceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "starting price cannot be negative")
	}
	if input.MinIncrementCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "minimum increment must be positive")
	}
	if input.StartTime.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "start time required")
	}

	now := s.now()
	auction := &models.Auction{
		ProductID:         input.ProductID,
		SellerStoreID:     input.SellerStoreID,
		Status:            enums.AuctionStatusScheduled,
		CurrentBidCents:   input.StartingPriceCents,
		MinIncrementCents: input.MinIncrementCents,
		StartTime:         input.StartTime,
	}

	startImmediately := !input.StartTime.After(now)
	var activated *models.Auction

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		created, err := repo.Create(ctx, auction)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDB, err, "create auction")
		}
		auction = created

		if !startImmediately {
			return nil
		}
		armed, err := s.activateTx(ctx, tx, repo, created.ID, now)
		if err != nil {
			return err
		}
		activated = armed
		return nil
	})
	if err != nil {
		return nil, err
	}

	if activated != nil {
		auction = activated
		s.broadcastActivated(ctx, auction)
	}

	view := NewAuctionView(auction, now)
	return &view, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*AuctionView, error) {
	auction, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeAuctionNotFound, "auction not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDB, err, "load auction")
	}
	view := NewAuctionView(auction, s.now())
	return &view, nil
}

func (s *service) ListOpen(ctx context.Context, limit, offset int) ([]AuctionView, error) {
	rows, err := s.repo.ListOpen(ctx, normalizeLimit(limit), offset)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDB, err, "list open auctions")
	}
	return s.toViews(rows), nil
}

func (s *service) ListBySeller(ctx context.Context, sellerStoreID uuid.UUID, limit, offset int) ([]AuctionView, error) {
	if sellerStoreID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller store id required")
	}
	rows, err := s.repo.ListBySeller(ctx, sellerStoreID, normalizeLimit(limit), offset)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDB, err, "list seller auctions")
	}
	return s.toViews(rows), nil
}

func (s *service) Activate(ctx context.Context, id uuid.UUID) (bool, error) {
	if id == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "auction id required")
	}

	now := s.now()
	var activated *models.Auction
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		armed, err := s.activateTx(ctx, tx, repo, id, now)
		if err != nil {
			return err
		}
		activated = armed
		return nil
	})
	if err != nil {
		return false, err
	}
	if activated == nil {
		return false, nil
	}

	s.broadcastActivated(ctx, activated)
	return true, nil
}

// activateTx performs the conditional transition and queues the lifecycle
// event. Returns nil when another caller already activated the row.
func (s *service) activateTx(ctx context.Context, tx *gorm.DB, repo Repository, id uuid.UUID, now time.Time) (*models.Auction, error) {
	ok, err := repo.Activate(ctx, id, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDB, err, "activate auction")
	}
	if !ok {
		return nil, nil
	}

	auction, err := repo.FindByID(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDB, err, "reload auction")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventAuctionActivated,
		AggregateType: enums.AggregateAuction,
		AggregateID:   auction.ID,
		Version:       1,
		Data: payloads.AuctionActivatedEvent{
			AuctionID:     auction.ID,
			ProductID:     auction.ProductID,
			SellerStoreID: auction.SellerStoreID,
			StartedAt:     now,
		},
	}
	if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDB, err, "queue activation event")
	}
	return auction, nil
}

func (s *service) Cancel(ctx context.Context, input CancelInput) error {
	if input.AuctionID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "auction id required")
	}
	if input.ActorUserID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	now := s.now()
	isAdmin := strings.EqualFold(input.ActorRole, roleAdmin)

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		auction, err := repo.FindByIDForUpdate(ctx, input.AuctionID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeAuctionNotFound, "auction not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDB, err, "load auction")
		}
		if !isAdmin {
			if auction.SellerStoreID != input.ActorStoreID {
				return pkgerrors.New(pkgerrors.CodeForbidden, "auction does not belong to store")
			}
			if auction.HighestBidderID != nil {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "auction already has bids")
			}
		}

		ok, err := repo.MarkCancelled(ctx, auction.ID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDB, err, "cancel auction")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "auction already closed")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventAuctionCancelled,
			AggregateType: enums.AggregateAuction,
			AggregateID:   auction.ID,
			Version:       1,
			Actor:         buildActor(input.ActorUserID, input.ActorStoreID, input.ActorRole),
			Data: payloads.AuctionCancelledEvent{
				AuctionID:   auction.ID,
				CancelledAt: now,
				Reason:      input.Reason,
			},
		}
		return s.outbox.EmitIfNotExists(ctx, tx, event)
	})
	if err != nil {
		return err
	}

	_ = s.rooms.Publish(ctx, input.AuctionID, broadcast.NewAuctionCancelled(input.AuctionID, input.Reason))
	return nil
}

func (s *service) ForceStop(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "auction id required")
	}
	ok, err := s.repo.ForceCountdown(ctx, id, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDB, err, "force countdown")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeAuctionNotActive, "auction is not active")
	}
	return nil
}

func (s *service) broadcastActivated(ctx context.Context, auction *models.Auction) {
	event := broadcast.NewAuctionActivated(
		auction.ID,
		auction.CurrentBidCents,
		auction.CurrentBidCents+auction.MinIncrementCents,
	)
	_ = s.rooms.Publish(ctx, auction.ID, event)
}

func (s *service) toViews(rows []models.Auction) []AuctionView {
	now := s.now()
	views := make([]AuctionView, 0, len(rows))
	for i := range rows {
		views = append(views, NewAuctionView(&rows[i], now))
	}
	return views
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 50
	}
	return limit
}

func buildActor(userID, storeID uuid.UUID, role string) *outbox.ActorRef {
	actor := &outbox.ActorRef{UserID: userID, Role: role}
	if storeID != uuid.Nil {
		sid := storeID
		actor.StoreID = &sid
	}
	return actor
}
