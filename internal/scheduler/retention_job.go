package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/bidfinderz-backend/pkg/logger"
)

const (
	outboxRetentionDays = 30
	retentionEvery      = time.Hour
)

type publishedDeleter interface {
	DeletePublishedBefore(cutoff time.Time) (int64, error)
}

// RetentionJobParams configure the outbox retention sweep.
type RetentionJobParams struct {
	Logger     *logger.Logger
	Repository publishedDeleter
	Retention  int
	Every      time.Duration
}

// NewRetentionJob builds the job that prunes published outbox rows. The
// scheduler loop ticks every few seconds, so the job throttles itself to the
// configured cadence.
func NewRetentionJob(params RetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = outboxRetentionDays
	}
	every := params.Every
	if every <= 0 {
		every = retentionEvery
	}
	return &retentionJob{
		logg:      params.Logger,
		repo:      params.Repository,
		retention: retention,
		every:     every,
		now:       time.Now,
	}, nil
}

type retentionJob struct {
	logg      *logger.Logger
	repo      publishedDeleter
	retention int
	every     time.Duration
	now       func() time.Time

	mu      sync.Mutex
	lastRun time.Time
}

func (j *retentionJob) Name() string { return "outbox-retention" }

func (j *retentionJob) Run(ctx context.Context) error {
	now := j.now()

	j.mu.Lock()
	if !j.lastRun.IsZero() && now.Sub(j.lastRun) < j.every {
		j.mu.Unlock()
		return nil
	}
	j.lastRun = now
	j.mu.Unlock()

	cutoff := now.UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	deleted, err := j.repo.DeletePublishedBefore(cutoff)
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	if deleted > 0 {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"cutoff":       cutoff,
			"rows_deleted": deleted,
		})
		j.logg.Info(logCtx, "outbox retention cleanup complete")
	}
	return nil
}
