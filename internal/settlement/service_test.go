package settlement

import (
	"context"
	"errors"
	"testing"
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
)

type fakeAuctionRepo struct {
	auction *models.Auction
	findErr error
}

func (f *fakeAuctionRepo) WithTx(*gorm.DB) auctions.Repository { return f }

func (f *fakeAuctionRepo) Create(context.Context, *models.Auction) (*models.Auction, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeAuctionRepo) FindByID(context.Context, uuid.UUID) (*models.Auction, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.auction, nil
}

func (f *fakeAuctionRepo) FindByIDForUpdate(context.Context, uuid.UUID) (*models.Auction, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.auction, nil
}

func (f *fakeAuctionRepo) Activate(context.Context, uuid.UUID, time.Time) (bool, error) {
	return false, errors.New("not implemented")
}

func (f *fakeAuctionRepo) MarkCancelled(context.Context, uuid.UUID, time.Time) (bool, error) {
	return false, errors.New("not implemented")
}

func (f *fakeAuctionRepo) RecordBid(context.Context, uuid.UUID, int, uuid.UUID, time.Time) error {
	return errors.New("not implemented")
}

func (f *fakeAuctionRepo) ForceCountdown(context.Context, uuid.UUID, time.Time) (bool, error) {
	return false, errors.New("not implemented")
}

func (f *fakeAuctionRepo) FindDueScheduled(context.Context, time.Time, int) ([]models.Auction, error) {
	return nil, nil
}

func (f *fakeAuctionRepo) FindExpiredActive(context.Context, time.Time, int) ([]models.Auction, error) {
	return nil, nil
}

func (f *fakeAuctionRepo) ListOpen(context.Context, int, int) ([]models.Auction, error) {
	return nil, nil
}

func (f *fakeAuctionRepo) ListBySeller(context.Context, uuid.UUID, int, int) ([]models.Auction, error) {
	return nil, nil
}

type fakeSettlementRepo struct {
	markEnded     bool
	markEndedErr  error
	debited       bool
	debitErr      error
	user          models.User
	product       models.Product
	existingOrder *models.Order
	orders        []*models.Order
	items         []models.OrderItem
	markEndedAt   time.Time
	markEndedRows int
}

func (f *fakeSettlementRepo) WithTx(*gorm.DB) Repository { return f }

func (f *fakeSettlementRepo) MarkEnded(_ context.Context, _ uuid.UUID, endedAt time.Time) (bool, error) {
	if f.markEndedErr != nil {
		return false, f.markEndedErr
	}
	f.markEndedRows++
	f.markEndedAt = endedAt
	return f.markEnded, nil
}

func (f *fakeSettlementRepo) FindUserForUpdate(context.Context, uuid.UUID) (*models.User, error) {
	return &f.user, nil
}

func (f *fakeSettlementRepo) DebitWallet(context.Context, uuid.UUID, int) (bool, error) {
	if f.debitErr != nil {
		return false, f.debitErr
	}
	return f.debited, nil
}

func (f *fakeSettlementRepo) FindProduct(context.Context, uuid.UUID) (*models.Product, error) {
	return &f.product, nil
}

func (f *fakeSettlementRepo) CreateOrder(_ context.Context, order *models.Order) (*models.Order, error) {
	order.ID = uuid.New()
	f.orders = append(f.orders, order)
	return order, nil
}

func (f *fakeSettlementRepo) CreateOrderItems(_ context.Context, items []models.OrderItem) error {
	f.items = append(f.items, items...)
	return nil
}

func (f *fakeSettlementRepo) FindOrderByAuction(context.Context, uuid.UUID) (*models.Order, error) {
	return f.existingOrder, nil
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeOutbox struct {
	events []outbox.DomainEvent
}

func (f *fakeOutbox) EmitIfNotExists(_ context.Context, _ *gorm.DB, event outbox.DomainEvent) error {
	f.events = append(f.events, event)
	return nil
}

type fakeRooms struct {
	events []any
}

func (f *fakeRooms) Publish(_ context.Context, _ uuid.UUID, event any) error {
	f.events = append(f.events, event)
	return nil
}

type fakeNotifier struct {
	wonCalls  int
	soldCalls int
	winner    uuid.UUID
	seller    uuid.UUID
	price     int
}

func (f *fakeNotifier) NotifyAuctionWon(_ context.Context, userID, _ uuid.UUID, priceCents int) {
	f.wonCalls++
	f.winner = userID
	f.price = priceCents
}

func (f *fakeNotifier) NotifySellerSold(_ context.Context, sellerStoreID, _, _ uuid.UUID, _ int) {
	f.soldCalls++
	f.seller = sellerStoreID
}

type settleHarness struct {
	svc      *service
	auctions *fakeAuctionRepo
	repo     *fakeSettlementRepo
	outbox   *fakeOutbox
	rooms    *fakeRooms
	notifier *fakeNotifier
}

func newSettleHarness(t *testing.T, auction *models.Auction, now time.Time) *settleHarness {
	t.Helper()
	h := &settleHarness{
		auctions: &fakeAuctionRepo{auction: auction},
		repo:     &fakeSettlementRepo{markEnded: true, debited: true, product: models.Product{ID: uuid.New(), Title: "vintage lot"}},
		outbox:   &fakeOutbox{},
		rooms:    &fakeRooms{},
		notifier: &fakeNotifier{},
	}
	svc, err := NewService(ServiceParams{
		AuctionRepo: h.auctions,
		Repo:        h.repo,
		Tx:          fakeTxRunner{},
		Outbox:      h.outbox,
		Rooms:       h.rooms,
		Notifier:    h.notifier,
		Logger:      logger.New(logger.Options{ServiceName: "settlement-test"}),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	h.svc = svc.(*service)
	h.svc.now = func() time.Time { return now }
	return h
}

func expiredAuction(now time.Time, winner *uuid.UUID) *models.Auction {
	end := now.Add(-2 * time.Second)
	return &models.Auction{
		ID:                uuid.New(),
		ProductID:         uuid.New(),
		SellerStoreID:     uuid.New(),
		Status:            enums.AuctionStatusActive,
		CurrentBidCents:   5000,
		MinIncrementCents: 100,
		HighestBidderID:   winner,
		CountdownEndTime:  &end,
	}
}

func TestEndAuctionSettlesWinner(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	winner := uuid.New()
	auction := expiredAuction(now, &winner)
	h := newSettleHarness(t, auction, now)

	result, err := h.svc.EndAuction(context.Background(), auction.ID)
	if err != nil {
		t.Fatalf("end auction: %v", err)
	}

	if !result.Settled {
		t.Fatal("expected the auction to settle")
	}
	if result.WinnerID == nil || *result.WinnerID != winner {
		t.Fatalf("expected winner %s, got %v", winner, result.WinnerID)
	}
	if result.OrderID == nil {
		t.Fatal("expected an order for the funded winner")
	}
	if result.FinalPriceCents != 5000 {
		t.Fatalf("expected price 5000, got %d", result.FinalPriceCents)
	}
	if len(h.repo.orders) != 1 {
		t.Fatalf("expected one order, got %d", len(h.repo.orders))
	}
	order := h.repo.orders[0]
	if order.Status != enums.OrderStatusApproved || order.ConfirmedAt == nil {
		t.Fatalf("order not confirmed: %+v", order)
	}
	if order.BuyerID != winner || order.SellerStoreID != auction.SellerStoreID {
		t.Fatalf("order parties mismatch: %+v", order)
	}
	if len(h.repo.items) != 1 || h.repo.items[0].Qty != 1 || h.repo.items[0].PriceCents != 5000 {
		t.Fatalf("unexpected order items: %+v", h.repo.items)
	}
	if len(h.outbox.events) != 1 || h.outbox.events[0].EventType != enums.EventAuctionEnded {
		t.Fatalf("expected one auction.ended event, got %+v", h.outbox.events)
	}
	if len(h.rooms.events) != 1 {
		t.Fatalf("expected one ended broadcast, got %d", len(h.rooms.events))
	}
	if _, ok := h.rooms.events[0].(broadcast.AuctionEnded); !ok {
		t.Fatalf("expected AuctionEnded broadcast, got %T", h.rooms.events[0])
	}
	if h.notifier.wonCalls != 1 || h.notifier.winner != winner {
		t.Fatalf("expected winner notification, got %+v", h.notifier)
	}
	if h.notifier.soldCalls != 1 || h.notifier.seller != auction.SellerStoreID {
		t.Fatalf("expected seller notification, got %+v", h.notifier)
	}
}

func TestEndAuctionNoBidsEndsWithoutOrder(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	auction := expiredAuction(now, nil)
	h := newSettleHarness(t, auction, now)

	result, err := h.svc.EndAuction(context.Background(), auction.ID)
	if err != nil {
		t.Fatalf("end auction: %v", err)
	}
	if !result.Settled {
		t.Fatal("expected settle")
	}
	if result.WinnerID != nil || result.OrderID != nil {
		t.Fatalf("no-bid close must not produce a winner or order: %+v", result)
	}
	if len(h.repo.orders) != 0 {
		t.Fatal("no order rows expected")
	}
	if h.notifier.wonCalls != 0 || h.notifier.soldCalls != 0 {
		t.Fatal("no notifications expected without a sale")
	}
	if len(h.outbox.events) != 1 {
		t.Fatalf("ended event still required, got %d", len(h.outbox.events))
	}
}

func TestEndAuctionInsufficientBalanceDowngradesToNoSale(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	winner := uuid.New()
	auction := expiredAuction(now, &winner)
	h := newSettleHarness(t, auction, now)
	h.repo.debited = false

	result, err := h.svc.EndAuction(context.Background(), auction.ID)
	if err != nil {
		t.Fatalf("end auction: %v", err)
	}
	if !result.Settled {
		t.Fatal("auction must still end")
	}
	if result.OrderError != orderErrInsufficientBalance {
		t.Fatalf("expected order error %q, got %q", orderErrInsufficientBalance, result.OrderError)
	}
	if result.WinnerID != nil || result.OrderID != nil {
		t.Fatalf("unfunded winner must not produce an order: %+v", result)
	}
	if len(h.repo.orders) != 0 {
		t.Fatal("no order rows expected")
	}
	if h.notifier.wonCalls != 0 {
		t.Fatal("unfunded winner must not be congratulated")
	}
}

func TestEndAuctionIdempotentWhenAlreadyEnded(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	winner := uuid.New()
	auction := expiredAuction(now, &winner)
	auction.Status = enums.AuctionStatusEnded
	h := newSettleHarness(t, auction, now)
	h.repo.existingOrder = &models.Order{ID: uuid.New(), AuctionID: auction.ID}

	result, err := h.svc.EndAuction(context.Background(), auction.ID)
	if err != nil {
		t.Fatalf("end auction: %v", err)
	}
	if result.Settled {
		t.Fatal("second settle must be a no-op")
	}
	if result.Status != enums.AuctionStatusEnded {
		t.Fatalf("expected ended status reported, got %s", result.Status)
	}
	if result.WinnerID == nil || *result.WinnerID != winner {
		t.Fatalf("persisted winner must be reported, got %v", result.WinnerID)
	}
	if result.OrderID == nil || *result.OrderID != h.repo.existingOrder.ID {
		t.Fatalf("persisted order must be reported, got %v", result.OrderID)
	}
	if result.FinalPriceCents != 5000 {
		t.Fatalf("persisted price must be reported, got %d", result.FinalPriceCents)
	}
	if h.repo.markEndedRows != 0 {
		t.Fatal("already-ended auction must not be written")
	}
	if len(h.outbox.events) != 0 || len(h.rooms.events) != 0 {
		t.Fatal("no-op settle must not emit")
	}
}

func TestEndAuctionCancelledReportsStateWithoutSale(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	bidder := uuid.New()
	auction := expiredAuction(now, &bidder)
	auction.Status = enums.AuctionStatusCancelled
	h := newSettleHarness(t, auction, now)

	result, err := h.svc.EndAuction(context.Background(), auction.ID)
	if err != nil {
		t.Fatalf("end auction: %v", err)
	}
	if result.Settled {
		t.Fatal("cancelled auction must not settle")
	}
	if result.Status != enums.AuctionStatusCancelled {
		t.Fatalf("expected cancelled status reported, got %s", result.Status)
	}
	if result.WinnerID != nil || result.OrderID != nil {
		t.Fatalf("a cancellation never produced a sale: %+v", result)
	}
}

func TestEndAuctionLostFlipRace(t *testing.T) {
	// The row read as active, but another settler flipped it between the read
	// and the conditional update.
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	auction := expiredAuction(now, nil)
	h := newSettleHarness(t, auction, now)
	h.repo.markEnded = false

	result, err := h.svc.EndAuction(context.Background(), auction.ID)
	if err != nil {
		t.Fatalf("end auction: %v", err)
	}
	if result.Settled {
		t.Fatal("losing the flip race must be a no-op")
	}
	if len(h.outbox.events) != 0 {
		t.Fatal("loser must not emit the ended event")
	}
}

func TestEndAuctionRunningCountdownConflicts(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	auction := expiredAuction(now, nil)
	future := now.Add(5 * time.Second)
	auction.CountdownEndTime = &future
	h := newSettleHarness(t, auction, now)

	_, err := h.svc.EndAuction(context.Background(), auction.ID)
	if code := pkgerrors.CodeOf(err); code != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestEndAuctionUnarmedCountdownConflicts(t *testing.T) {
	// Active with no countdown means no bid arrived yet; there is nothing to
	// settle.
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	auction := expiredAuction(now, nil)
	auction.CountdownEndTime = nil
	h := newSettleHarness(t, auction, now)

	_, err := h.svc.EndAuction(context.Background(), auction.ID)
	if code := pkgerrors.CodeOf(err); code != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if h.repo.markEndedRows != 0 {
		t.Fatal("unarmed auction must not be written")
	}
}

func TestEndAuctionNotFound(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h := newSettleHarness(t, nil, now)
	h.auctions.findErr = gorm.ErrRecordNotFound

	_, err := h.svc.EndAuction(context.Background(), uuid.New())
	if code := pkgerrors.CodeOf(err); code != pkgerrors.CodeAuctionNotFound {
		t.Fatalf("expected auction not found, got %v", err)
	}
}
