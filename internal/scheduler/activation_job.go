package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/bidfinderz-backend/pkg/db/models"
	"github.com/angelmondragon/bidfinderz-backend/pkg/logger"
)

const activationBatchSize = 100

type dueScheduledFinder interface {
	FindDueScheduled(ctx context.Context, now time.Time, limit int) ([]models.Auction, error)
}

type activator interface {
	Activate(ctx context.Context, id uuid.UUID) (bool, error)
}

// ActivationJobParams configure the activation sweep.
type ActivationJobParams struct {
	Logger    *logger.Logger
	Finder    dueScheduledFinder
	Activator activator
	BatchSize int
}

// NewActivationJob builds the job that opens scheduled auctions whose start
// time has passed.
func NewActivationJob(params ActivationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Finder == nil {
		return nil, fmt.Errorf("auction finder required")
	}
	if params.Activator == nil {
		return nil, fmt.Errorf("activator required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = activationBatchSize
	}
	return &activationJob{
		logg:      params.Logger,
		finder:    params.Finder,
		activator: params.Activator,
		batch:     batch,
		now:       time.Now,
	}, nil
}

type activationJob struct {
	logg      *logger.Logger
	finder    dueScheduledFinder
	activator activator
	batch     int
	now       func() time.Time
}

func (j *activationJob) Name() string { return "activation" }

func (j *activationJob) Run(ctx context.Context) error {
	due, err := j.finder.FindDueScheduled(ctx, j.now(), j.batch)
	if err != nil {
		return fmt.Errorf("find due auctions: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	var errs error
	activated := 0
	for _, auction := range due {
		ok, err := j.activator.Activate(ctx, auction.ID)
		if err != nil {
			// One broken row must not block the rest of the batch.
			errs = multierr.Append(errs, fmt.Errorf("activate %s: %w", auction.ID, err))
			continue
		}
		if ok {
			activated++
		}
	}

	if activated > 0 {
		logCtx := j.logg.WithField(ctx, "activated", activated)
		j.logg.Info(logCtx, "scheduled auctions activated")
	}
	return errs
}
