package usecase

import (
	"context"
	"fmt"

	"erp-ai-jobs/internal/domain"
	"erp-ai-jobs/internal/domain/model"
	"erp-ai-jobs/internal/domain/ports/repository"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

// StatsUseCase computes a point-in-time status distribution over one
// organization's jobs. Read-only and safe at arbitrary concurrency; the
// snapshot tolerates in-flight transitions (eventual consistency).
type StatsUseCase interface {
	Snapshot(ctx context.Context, orgID string, f repository.JobFilter) (*model.JobStats, error)
}

type statsUC struct {
	jobs repository.JobRepository
	log  *zerolog.Logger
}

func NewStatsUseCase(jobs repository.JobRepository, logger *zerolog.Logger) *statsUC {
	return &statsUC{jobs: jobs, log: logger}
}

func (s *statsUC) Snapshot(ctx context.Context, orgID string, f repository.JobFilter) (*model.JobStats, error) {
	if orgID == "" {
		return nil, fmt.Errorf("%w: organization is required", domain.ErrInvalidArgument)
	}

	counts, err := s.jobs.CountByStatus(ctx, repository.NoTX, orgID, f)
	if err != nil {
		return nil, err
	}

	stats := &model.JobStats{
		Pending:   counts[model.JobStatusPending],
		Running:   counts[model.JobStatusRunning],
		Completed: counts[model.JobStatusCompleted],
		Failed:    counts[model.JobStatusFailed],
		Cancelled: counts[model.JobStatusCancelled],
	}
	stats.Total = stats.Pending + stats.Running + stats.Completed + stats.Failed + stats.Cancelled
	return stats, nil
}
