package countdown

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/bidfinderz-backend/internal/broadcast"
	"github.com/angelmondragon/bidfinderz-backend/internal/settlement"
	"github.com/angelmondragon/bidfinderz-backend/pkg/db/models"
	"github.com/angelmondragon/bidfinderz-backend/pkg/enums"
	"github.com/angelmondragon/bidfinderz-backend/pkg/logger"
)

type auctionReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Auction, error)
}

type settler interface {
	EndAuction(ctx context.Context, auctionID uuid.UUID) (*settlement.Result, error)
}

type roomBroadcaster interface {
	Publish(ctx context.Context, auctionID uuid.UUID, event any) error
}

type endingSoonNotifier interface {
	NotifyEndingSoon(ctx context.Context, userID, auctionID uuid.UUID, remainingSeconds int)
}

type task struct {
	end             time.Time
	highestBidder   *uuid.UUID
	endingSoonSent  bool
	lastBroadcastAt int
}

// Supervisor drives the per-auction countdown. Every tracked auction gets a
// countdown_update broadcast each tick, a one-shot ending-soon warning inside
// the configured band, and settlement the moment its deadline passes.
//
// The supervisor is an accelerator over the database state, not the source of
// truth: an auction it never tracked is still settled by the expiry sweep.
type Supervisor struct {
	auctions auctionReader
	settler  settler
	rooms    roomBroadcaster
	notifier endingSoonNotifier
	logg     *logger.Logger

	tickInterval    time.Duration
	endingSoonFrom  time.Duration
	endingSoonUntil time.Duration
	now             func() time.Time

	mu    sync.Mutex
	tasks map[uuid.UUID]*task
}

// SupervisorParams collects the supervisor dependencies. Notifier is optional.
type SupervisorParams struct {
	Auctions        auctionReader
	Settler         settler
	Rooms           roomBroadcaster
	Notifier        endingSoonNotifier
	Logger          *logger.Logger
	TickInterval    time.Duration
	EndingSoonFrom  time.Duration
	EndingSoonUntil time.Duration
}

func NewSupervisor(params SupervisorParams) (*Supervisor, error) {
	if params.Auctions == nil {
		return nil, fmt.Errorf("auction reader required")
	}
	if params.Settler == nil {
		return nil, fmt.Errorf("settler required")
	}
	if params.Rooms == nil {
		return nil, fmt.Errorf("room broadcaster required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.TickInterval <= 0 {
		params.TickInterval = time.Second
	}
	if params.EndingSoonFrom <= 0 {
		params.EndingSoonFrom = 10 * time.Second
	}
	if params.EndingSoonUntil < 0 || params.EndingSoonUntil >= params.EndingSoonFrom {
		params.EndingSoonUntil = 8 * time.Second
	}
	return &Supervisor{
		auctions:        params.Auctions,
		settler:         params.Settler,
		rooms:           params.Rooms,
		notifier:        params.Notifier,
		logg:            params.Logger,
		tickInterval:    params.TickInterval,
		endingSoonFrom:  params.EndingSoonFrom,
		endingSoonUntil: params.EndingSoonUntil,
		now:             time.Now,
		tasks:           make(map[uuid.UUID]*task),
	}, nil
}

// Track starts supervising an auction. Reloads the row so a late Track call
// picks up the current deadline; re-tracking refreshes the deadline and
// re-arms the ending-soon warning. Tracking a non-active auction is a no-op.
func (s *Supervisor) Track(ctx context.Context, auctionID uuid.UUID) error {
	auction, err := s.auctions.FindByID(ctx, auctionID)
	if err != nil {
		return err
	}
	if auction.Status != enums.AuctionStatusActive || auction.CountdownEndTime == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.tasks[auctionID]
	if ok {
		existing.end = *auction.CountdownEndTime
		existing.highestBidder = auction.HighestBidderID
		existing.endingSoonSent = false
		return nil
	}
	s.tasks[auctionID] = &task{
		end:           *auction.CountdownEndTime,
		highestBidder: auction.HighestBidderID,
	}
	return nil
}

// Release stops supervising an auction, typically when its room empties.
// The expiry sweep remains responsible for settling it.
func (s *Supervisor) Release(auctionID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, auctionID)
}

// Extend pushes an auction's deadline forward after an accepted bid and
// re-arms the ending-soon warning for the new leader. The first bid starts
// the task when none exists yet: watchers can join before the window is
// armed, and their Track call found nothing to supervise.
func (s *Supervisor) Extend(auctionID uuid.UUID, end time.Time, bidderID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[auctionID]
	if !ok {
		t = &task{}
		s.tasks[auctionID] = t
	}
	t.end = end
	t.endingSoonSent = false
	if bidderID != uuid.Nil {
		b := bidderID
		t.highestBidder = &b
	}
}

// Tracked reports whether an auction is currently supervised.
func (s *Supervisor) Tracked(auctionID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[auctionID]
	return ok
}

// Run ticks until the context is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "countdown supervisor stopped")
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tickAction is one tick's decision for one auction, captured while the
// task map lock is held so the I/O below never touches shared task state.
type tickAction struct {
	auctionID     uuid.UUID
	expired       bool
	broadcast     bool
	notify        bool
	seconds       int
	highestBidder uuid.UUID
}

func (s *Supervisor) tick(ctx context.Context) {
	now := s.now()

	s.mu.Lock()
	actions := make([]tickAction, 0, len(s.tasks))
	for auctionID, t := range s.tasks {
		remaining := t.end.Sub(now)
		if remaining <= 0 {
			actions = append(actions, tickAction{auctionID: auctionID, expired: true})
			continue
		}

		act := tickAction{auctionID: auctionID}
		act.seconds = int((remaining + time.Second - 1) / time.Second)
		if act.seconds != t.lastBroadcastAt {
			t.lastBroadcastAt = act.seconds
			act.broadcast = true
		}
		if s.notifier != nil && !t.endingSoonSent &&
			remaining <= s.endingSoonFrom && remaining > s.endingSoonUntil {
			t.endingSoonSent = true
			if t.highestBidder != nil {
				act.notify = true
				act.highestBidder = *t.highestBidder
			}
		}
		if act.broadcast || act.notify {
			actions = append(actions, act)
		}
	}
	s.mu.Unlock()

	for _, act := range actions {
		if act.expired {
			s.settle(ctx, act.auctionID)
			continue
		}
		if act.broadcast {
			_ = s.rooms.Publish(ctx, act.auctionID, broadcast.NewCountdownUpdate(act.auctionID, act.seconds))
		}
		if act.notify {
			s.notifier.NotifyEndingSoon(ctx, act.highestBidder, act.auctionID, act.seconds)
		}
	}
}

func (s *Supervisor) settle(ctx context.Context, auctionID uuid.UUID) {
	s.Release(auctionID)
	if _, err := s.settler.EndAuction(ctx, auctionID); err != nil {
		logCtx := s.logg.WithAuctionID(ctx, auctionID.String())
		s.logg.Error(logCtx, "countdown settlement failed", err)
	}
}
