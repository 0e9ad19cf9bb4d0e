package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"agent-scheduler/internal/model"
	"agent-scheduler/internal/repository"
)

// SchedulerService is the time-triggered half of dispatch: a cron-driven
// job that claims due pending tasks and feeds them to the executor.
type SchedulerService struct {
	cron     *cron.Cron
	taskRepo *repository.TaskRepository
	executor *ExecutorService
	log      zerolog.Logger
}

func NewSchedulerService(loc *time.Location, taskRepo *repository.TaskRepository, executor *ExecutorService, log zerolog.Logger) *SchedulerService {
	return &SchedulerService{
		cron:     cron.New(cron.WithLocation(loc), cron.WithSeconds()),
		taskRepo: taskRepo,
		executor: executor,
		log:      log,
	}
}

// Start registers the polling job at the given interval and starts cron.
func (s *SchedulerService) Start(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	// Convert to cron spec: every N seconds.
	seconds := int(interval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	spec := fmt.Sprintf("@every %ds", seconds)
	if _, err := s.cron.AddFunc(spec, s.dispatchDue); err != nil {
		return fmt.Errorf("schedule dispatch: %w", err)
	}
	s.cron.Start()
	s.log.Info().Dur("interval", interval).Msg("scheduler started")
	return nil
}

func (s *SchedulerService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("scheduler stopped")
}

// dispatchDue claims every pending task whose time has come and enqueues
// it. Claims are optimistic, so a concurrent ExecuteTask on the same row
// is harmless — only one writer moves it out of pending.
func (s *SchedulerService) dispatchDue() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	due, err := s.taskRepo.ListDue(ctx, time.Now())
	if err != nil {
		s.log.Error().Err(err).Msg("cannot list due tasks")
		return
	}

	for _, task := range due {
		claimed, err := s.taskRepo.UpdateWhereStatus(ctx, task.ID, model.StatusPending, map[string]interface{}{
			"status":     model.StatusInProgress,
			"updated_at": time.Now(),
		})
		if err != nil {
			s.log.Error().Err(err).Uint("task_id", task.ID).Msg("cannot claim due task")
			continue
		}
		if !claimed {
			continue
		}

		if err := s.executor.Enqueue(task.ID); err != nil {
			if _, revertErr := s.taskRepo.UpdateWhereStatus(ctx, task.ID, model.StatusInProgress, map[string]interface{}{
				"status":     model.StatusPending,
				"updated_at": time.Now(),
			}); revertErr != nil {
				s.log.Error().Err(revertErr).Uint("task_id", task.ID).Msg("failed to revert claimed task")
			}
			if errors.Is(err, ErrQueueFull) {
				// No room for the rest of the batch either; next tick retries.
				return
			}
			s.log.Error().Err(err).Uint("task_id", task.ID).Msg("cannot enqueue due task")
			continue
		}
		s.log.Info().Uint("task_id", task.ID).Msg("due task dispatched")
	}
}
