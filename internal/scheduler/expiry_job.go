package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/bidfinderz-backend/internal/settlement"
	"github.com/angelmondragon/bidfinderz-backend/pkg/db/models"
	"github.com/angelmondragon/bidfinderz-backend/pkg/logger"
)

const expiryBatchSize = 100

type expiredActiveFinder interface {
	FindExpiredActive(ctx context.Context, now time.Time, limit int) ([]models.Auction, error)
}

type settler interface {
	EndAuction(ctx context.Context, auctionID uuid.UUID) (*settlement.Result, error)
}

// ExpiryJobParams configure the expiry sweep.
type ExpiryJobParams struct {
	Logger    *logger.Logger
	Finder    expiredActiveFinder
	Settler   settler
	BatchSize int
}

// NewExpiryJob builds the job that settles active auctions whose countdown
// has expired. It is what guarantees every auction eventually closes even if
// no process was watching it when the countdown ran out.
func NewExpiryJob(params ExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Finder == nil {
		return nil, fmt.Errorf("auction finder required")
	}
	if params.Settler == nil {
		return nil, fmt.Errorf("settler required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = expiryBatchSize
	}
	return &expiryJob{
		logg:    params.Logger,
		finder:  params.Finder,
		settler: params.Settler,
		batch:   batch,
		now:     time.Now,
	}, nil
}

type expiryJob struct {
	logg    *logger.Logger
	finder  expiredActiveFinder
	settler settler
	batch   int
	now     func() time.Time
}

func (j *expiryJob) Name() string { return "expiry-sweep" }

func (j *expiryJob) Run(ctx context.Context) error {
	expired, err := j.finder.FindExpiredActive(ctx, j.now(), j.batch)
	if err != nil {
		return fmt.Errorf("find expired auctions: %w", err)
	}
	if len(expired) == 0 {
		return nil
	}

	var errs error
	settled := 0
	for _, auction := range expired {
		result, err := j.settler.EndAuction(ctx, auction.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("settle %s: %w", auction.ID, err))
			continue
		}
		if result.Settled {
			settled++
		}
	}

	if settled > 0 {
		logCtx := j.logg.WithField(ctx, "settled", settled)
		j.logg.Info(logCtx, "expired auctions settled")
	}
	return errs
}
