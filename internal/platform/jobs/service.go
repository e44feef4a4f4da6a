package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"lms/internal/domain/leave"
	"lms/internal/domain/workflow"
	"lms/internal/platform/config"
	"lms/internal/platform/metrics"
)

const (
	JobYearRollover = "year_rollover"
	JobRequestPurge = "request_purge"
)

type Service struct {
	DB            *pgxpool.Pool
	Cfg           config.Config
	LeaveStore    *leave.Store
	WorkflowStore *workflow.Store
	queue         chan job
}

type job struct {
	Type string
	Run  func(context.Context) (any, error)
}

func New(db *pgxpool.Pool, cfg config.Config, leaveStore *leave.Store, workflowStore *workflow.Store) *Service {
	return &Service{
		DB:            db,
		Cfg:           cfg,
		LeaveStore:    leaveStore,
		WorkflowStore: workflowStore,
		queue:         make(chan job, 128),
	}
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	if s.Cfg.RolloverInterval > 0 {
		go s.scheduleRollover(ctx, s.Cfg.RolloverInterval)
	}
	if s.Cfg.PurgeInterval > 0 {
		go s.schedulePurge(ctx, s.Cfg.PurgeInterval)
	}
}

func (s *Service) Enqueue(jobType string, run func(context.Context) (any, error)) {
	select {
	case s.queue <- job{Type: jobType, Run: run}:
	default:
		slog.Warn("job queue full", "jobType", jobType)
	}
}

func (s *Service) RunNow(ctx context.Context, jobType string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, job{Type: jobType, Run: run})
}

// RunRollover computes next-year balances from this year's remainders.
func (s *Service) RunRollover(ctx context.Context, targetYear int) (any, error) {
	return s.RunNow(ctx, JobYearRollover, func(ctx context.Context) (any, error) {
		return leave.RunRollover(ctx, s.LeaveStore, targetYear)
	})
}

// RunPurge removes cancelled requests older than the grace period.
func (s *Service) RunPurge(ctx context.Context) (any, error) {
	return s.RunNow(ctx, JobRequestPurge, func(ctx context.Context) (any, error) {
		cutoff := time.Now().Add(-s.Cfg.PurgeGracePeriod)
		purged, err := s.WorkflowStore.PurgeDeleted(ctx, cutoff)
		return map[string]any{"cutoff": cutoff, "purged": purged}, err
	})
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID := ""
	if err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (job_type, status)
    VALUES ($1,$2)
    RETURNING id
  `, j.Type, "running").Scan(&runID); err != nil {
		slog.Warn("job run insert failed", "err", err)
	}

	details, err := j.Run(ctx)
	status := "completed"
	if err != nil {
		status = "failed"
	}
	metrics.JobRuns.WithLabelValues(j.Type, status).Inc()
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if _, updErr := s.DB.Exec(ctx, `
      UPDATE job_runs
      SET status = $1, details_json = $2, completed_at = now()
      WHERE id = $3
    `, status, detailsJSON, runID); updErr != nil {
			slog.Warn("job run update failed", "err", updErr)
		}
	}
	return details, err
}

func (s *Service) scheduleRollover(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Only roll balances forward near year end, into the coming year.
			now := time.Now()
			if now.Month() != time.December {
				continue
			}
			target := now.Year() + 1
			s.Enqueue(JobYearRollover, func(ctx context.Context) (any, error) {
				return leave.RunRollover(ctx, s.LeaveStore, target)
			})
		}
	}
}

func (s *Service) schedulePurge(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Enqueue(JobRequestPurge, func(ctx context.Context) (any, error) {
				cutoff := time.Now().Add(-s.Cfg.PurgeGracePeriod)
				purged, err := s.WorkflowStore.PurgeDeleted(ctx, cutoff)
				return map[string]any{"cutoff": cutoff, "purged": purged}, err
			})
		}
	}
}
