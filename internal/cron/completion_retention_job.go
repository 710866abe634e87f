package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/metrics"
)

const (
	completionRetentionDays = 90
	completionJobName       = "completion-audit-retention"
)

type CompletionRetentionJobParams struct {
	Logger     *logger.Logger
	Repository completionRetentionRepo
	Metrics    *metrics.JobMetrics
	Retention  int
}

type completionRetentionRepo interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

func NewCompletionRetentionJob(params CompletionRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Repository == nil {
		return nil, errors.New("completion repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = completionRetentionDays
	}
	return &completionRetentionJob{
		logg:      params.Logger,
		repo:      params.Repository,
		metrics:   params.Metrics,
		retention: retention,
		now:       time.Now,
	}, nil
}

// completionRetentionJob prunes the completion audit log, which holds checkout
// session ids and financing details.
type completionRetentionJob struct {
	logg      *logger.Logger
	repo      completionRetentionRepo
	metrics   *metrics.JobMetrics
	retention int
	now       func() time.Time
}

func (j *completionRetentionJob) Name() string { return completionJobName }

func (j *completionRetentionJob) Run(ctx context.Context) error {
	cutoff := retentionCutoff(j.now(), j.retention)
	deleted, err := j.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("completion retention: %w", err)
	}
	j.metrics.AddRowsDeleted(completionJobName, deleted)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	}), "completion audit cleanup complete")
	return nil
}
