package countdown

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/bidfinderz-backend/internal/broadcast"
	"github.com/angelmondragon/bidfinderz-backend/internal/settlement"
	"github.com/angelmondragon/bidfinderz-backend/pkg/db/models"
	"github.com/angelmondragon/bidfinderz-backend/pkg/enums"
	"github.com/angelmondragon/bidfinderz-backend/pkg/logger"
)

type stubReader struct {
	auction *models.Auction
	err     error
}

func (s *stubReader) FindByID(context.Context, uuid.UUID) (*models.Auction, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.auction, nil
}

type stubSettler struct {
	calls []uuid.UUID
	err   error
}

func (s *stubSettler) EndAuction(_ context.Context, auctionID uuid.UUID) (*settlement.Result, error) {
	s.calls = append(s.calls, auctionID)
	if s.err != nil {
		return nil, s.err
	}
	return &settlement.Result{AuctionID: auctionID, Settled: true}, nil
}

type stubRooms struct {
	events []any
}

func (s *stubRooms) Publish(_ context.Context, _ uuid.UUID, event any) error {
	s.events = append(s.events, event)
	return nil
}

type stubEndingSoon struct {
	calls     int
	userID    uuid.UUID
	remaining int
}

func (s *stubEndingSoon) NotifyEndingSoon(_ context.Context, userID, _ uuid.UUID, remainingSeconds int) {
	s.calls++
	s.userID = userID
	s.remaining = remainingSeconds
}

type supervisorHarness struct {
	sup      *Supervisor
	reader   *stubReader
	settler  *stubSettler
	rooms    *stubRooms
	notifier *stubEndingSoon
	now      time.Time
}

func newSupervisorHarness(t *testing.T, auction *models.Auction) *supervisorHarness {
	t.Helper()
	h := &supervisorHarness{
		reader:   &stubReader{auction: auction},
		settler:  &stubSettler{},
		rooms:    &stubRooms{},
		notifier: &stubEndingSoon{},
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	sup, err := NewSupervisor(SupervisorParams{
		Auctions:        h.reader,
		Settler:         h.settler,
		Rooms:           h.rooms,
		Notifier:        h.notifier,
		Logger:          logger.New(logger.Options{ServiceName: "countdown-test"}),
		TickInterval:    time.Second,
		EndingSoonFrom:  10 * time.Second,
		EndingSoonUntil: 8 * time.Second,
	})
	if err != nil {
		t.Fatalf("new supervisor: %v", err)
	}
	h.sup = sup
	h.sup.now = func() time.Time { return h.now }
	return h
}

func trackedAuction(now time.Time, remaining time.Duration, bidder *uuid.UUID) *models.Auction {
	end := now.Add(remaining)
	return &models.Auction{
		ID:               uuid.New(),
		Status:           enums.AuctionStatusActive,
		CountdownEndTime: &end,
		HighestBidderID:  bidder,
	}
}

func TestTrackIgnoresNonActiveAuctions(t *testing.T) {
	h := newSupervisorHarness(t, &models.Auction{
		ID:     uuid.New(),
		Status: enums.AuctionStatusEnded,
	})

	if err := h.sup.Track(context.Background(), h.reader.auction.ID); err != nil {
		t.Fatalf("track: %v", err)
	}
	if h.sup.Tracked(h.reader.auction.ID) {
		t.Fatal("ended auction must not be tracked")
	}
}

func TestTickBroadcastsWholeSecondChanges(t *testing.T) {
	auction := trackedAuction(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), 5*time.Second+200*time.Millisecond, nil)
	h := newSupervisorHarness(t, auction)
	if err := h.sup.Track(context.Background(), auction.ID); err != nil {
		t.Fatalf("track: %v", err)
	}

	h.sup.tick(context.Background())
	if len(h.rooms.events) != 1 {
		t.Fatalf("expected one countdown broadcast, got %d", len(h.rooms.events))
	}
	update, ok := h.rooms.events[0].(broadcast.CountdownUpdate)
	if !ok {
		t.Fatalf("expected CountdownUpdate, got %T", h.rooms.events[0])
	}
	if update.RemainingSeconds != 6 {
		t.Fatalf("5.2s remaining rounds up to 6, got %d", update.RemainingSeconds)
	}

	// Same whole second: no duplicate broadcast.
	h.sup.tick(context.Background())
	if len(h.rooms.events) != 1 {
		t.Fatalf("expected no duplicate broadcast, got %d", len(h.rooms.events))
	}

	// Crossing into the next second broadcasts again.
	h.now = h.now.Add(time.Second)
	h.sup.tick(context.Background())
	if len(h.rooms.events) != 2 {
		t.Fatalf("expected second broadcast after crossing, got %d", len(h.rooms.events))
	}
}

func TestTickSettlesExpiredAndReleases(t *testing.T) {
	auction := trackedAuction(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), 2*time.Second, nil)
	h := newSupervisorHarness(t, auction)
	if err := h.sup.Track(context.Background(), auction.ID); err != nil {
		t.Fatalf("track: %v", err)
	}

	h.now = h.now.Add(3 * time.Second)
	h.sup.tick(context.Background())

	if len(h.settler.calls) != 1 || h.settler.calls[0] != auction.ID {
		t.Fatalf("expected settlement call, got %v", h.settler.calls)
	}
	if h.sup.Tracked(auction.ID) {
		t.Fatal("settled auction must be released")
	}
}

func TestEndingSoonFiresOnceForHighestBidder(t *testing.T) {
	bidder := uuid.New()
	auction := trackedAuction(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), 9*time.Second, &bidder)
	h := newSupervisorHarness(t, auction)
	if err := h.sup.Track(context.Background(), auction.ID); err != nil {
		t.Fatalf("track: %v", err)
	}

	h.sup.tick(context.Background())
	if h.notifier.calls != 1 || h.notifier.userID != bidder {
		t.Fatalf("expected one ending-soon for the leader, got %+v", h.notifier)
	}

	h.sup.tick(context.Background())
	if h.notifier.calls != 1 {
		t.Fatal("ending-soon must fire once per armed window")
	}
}

func TestEndingSoonOutsideBandDoesNotFire(t *testing.T) {
	bidder := uuid.New()
	auction := trackedAuction(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), 12*time.Second, &bidder)
	h := newSupervisorHarness(t, auction)
	if err := h.sup.Track(context.Background(), auction.ID); err != nil {
		t.Fatalf("track: %v", err)
	}

	h.sup.tick(context.Background())
	if h.notifier.calls != 0 {
		t.Fatal("12s remaining is outside the warning band")
	}
}

func TestExtendRearmsEndingSoonForNewLeader(t *testing.T) {
	first := uuid.New()
	auction := trackedAuction(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), 9*time.Second, &first)
	h := newSupervisorHarness(t, auction)
	if err := h.sup.Track(context.Background(), auction.ID); err != nil {
		t.Fatalf("track: %v", err)
	}

	h.sup.tick(context.Background())
	if h.notifier.calls != 1 || h.notifier.userID != first {
		t.Fatalf("expected warning for first leader, got %+v", h.notifier)
	}

	// A new bid pushes the deadline out and hands the lead to someone else.
	second := uuid.New()
	h.sup.Extend(auction.ID, h.now.Add(15*time.Second), second)

	h.sup.tick(context.Background())
	if h.notifier.calls != 1 {
		t.Fatal("deadline outside band, no warning yet")
	}

	h.now = h.now.Add(6 * time.Second) // 9s remain on the new deadline
	h.sup.tick(context.Background())
	if h.notifier.calls != 2 || h.notifier.userID != second {
		t.Fatalf("expected re-armed warning for new leader, got %+v", h.notifier)
	}
}

func TestRetrackRearmsEndingSoon(t *testing.T) {
	// Joining again after a reconnect must reload the row and give the
	// warning a fresh shot.
	bidder := uuid.New()
	auction := trackedAuction(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), 9*time.Second, &bidder)
	h := newSupervisorHarness(t, auction)
	if err := h.sup.Track(context.Background(), auction.ID); err != nil {
		t.Fatalf("track: %v", err)
	}

	h.sup.tick(context.Background())
	if h.notifier.calls != 1 {
		t.Fatalf("expected first warning, got %d", h.notifier.calls)
	}

	if err := h.sup.Track(context.Background(), auction.ID); err != nil {
		t.Fatalf("re-track: %v", err)
	}
	h.sup.tick(context.Background())
	if h.notifier.calls != 2 {
		t.Fatalf("re-track must re-arm the warning, got %d calls", h.notifier.calls)
	}
}

func TestExtendDuringTicksKeepsStateConsistent(t *testing.T) {
	bidder := uuid.New()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	auction := trackedAuction(start, 30*time.Second, &bidder)
	h := newSupervisorHarness(t, auction)
	if err := h.sup.Track(context.Background(), auction.ID); err != nil {
		t.Fatalf("track: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			h.sup.Extend(auction.ID, start.Add(time.Duration(30+i%5)*time.Second), uuid.New())
		}
	}()
	for i := 0; i < 500; i++ {
		h.sup.tick(context.Background())
	}
	<-done

	if !h.sup.Tracked(auction.ID) {
		t.Fatal("auction must still be tracked")
	}
	if len(h.settler.calls) != 0 {
		t.Fatalf("deadlines stayed in the future, no settlement expected, got %v", h.settler.calls)
	}
}

func TestExtendUntrackedAuctionStartsTask(t *testing.T) {
	// Watchers who joined before the first bid had nothing to track; the bid
	// itself must start the countdown task.
	h := newSupervisorHarness(t, nil)
	auctionID := uuid.New()

	h.sup.Extend(auctionID, h.now.Add(15*time.Second), uuid.New())

	if !h.sup.Tracked(auctionID) {
		t.Fatal("first bid must start supervising the auction")
	}
	h.sup.tick(context.Background())
	if len(h.rooms.events) != 1 {
		t.Fatalf("expected a countdown broadcast for the new task, got %d", len(h.rooms.events))
	}
}
