package service

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"agent-scheduler/internal/agent"
	"agent-scheduler/internal/model"
	"agent-scheduler/internal/repository"
)

// ErrQueueFull is returned by Enqueue when the executor cannot accept more
// work. The caller is expected to release its claim on the task.
var ErrQueueFull = errors.New("executor queue full")

// Notifier delivers completion and failure notices to a task's owner.
// Delivery is best-effort: errors are logged by the executor and never
// influence the task's own status.
type Notifier interface {
	Notify(ctx context.Context, userID uint, title, message string) error
}

// ExecutorConfig sizes the worker pool.
type ExecutorConfig struct {
	Workers   int
	QueueSize int
	// Timeout bounds a single agent run. Zero means no limit.
	Timeout time.Duration
}

// ExecutorService runs claimed tasks on a fixed pool of workers fed by a
// bounded queue. Each run resolves the task's agent and tools, invokes the
// agent runner, persists the terminal result and handles recurrence and
// notification.
type ExecutorService struct {
	taskRepo  *repository.TaskRepository
	agentRepo *repository.AgentRepository
	resolver  *ToolResolver
	runner    agent.Runner
	notifier  Notifier
	log       zerolog.Logger
	cfg       ExecutorConfig

	queue  chan uint
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	running map[uint]context.CancelFunc
}

func NewExecutorService(taskRepo *repository.TaskRepository, agentRepo *repository.AgentRepository, resolver *ToolResolver, runner agent.Runner, notifier Notifier, cfg ExecutorConfig, log zerolog.Logger) *ExecutorService {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	return &ExecutorService{
		taskRepo:  taskRepo,
		agentRepo: agentRepo,
		resolver:  resolver,
		runner:    runner,
		notifier:  notifier,
		log:       log,
		cfg:       cfg,
		queue:     make(chan uint, cfg.QueueSize),
		stopCh:    make(chan struct{}),
		running:   make(map[uint]context.CancelFunc),
	}
}

// Start launches the worker pool. Workers exit when ctx is cancelled or
// Stop is called.
func (s *ExecutorService) Start(ctx context.Context) {
	s.wg.Add(s.cfg.Workers)
	for i := 0; i < s.cfg.Workers; i++ {
		idx := i
		go func() {
			defer s.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					s.log.Error().Int("worker", idx).Any("panic", r).
						Str("stack", string(debug.Stack())).Msg("panic in executor worker")
				}
			}()
			s.worker(ctx, idx)
		}()
	}
	s.log.Info().Int("workers", s.cfg.Workers).Int("queue_size", s.cfg.QueueSize).Msg("executor started")
}

// Stop shuts the pool down and waits for in-flight runs to finish their
// terminal writes.
func (s *ExecutorService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
	s.log.Info().Msg("executor stopped")
}

// Enqueue submits a claimed task id. It never blocks; a full queue is
// reported so the caller can revert the claim.
func (s *ExecutorService) Enqueue(taskID uint) error {
	select {
	case s.queue <- taskID:
		return nil
	default:
		s.log.Warn().Uint("task_id", taskID).Int("queue_cap", cap(s.queue)).Msg("executor queue full")
		return ErrQueueFull
	}
}

// Cancel aborts the in-flight run for the task, if any. Cooperative: the
// run stops at its next context check, and its stale result is discarded
// by the optimistic terminal write.
func (s *ExecutorService) Cancel(taskID uint) {
	s.mu.Lock()
	cancel := s.running[taskID]
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *ExecutorService) worker(ctx context.Context, idx int) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case taskID := <-s.queue:
			s.runTask(ctx, taskID)
		}
	}
}

// runTask executes one claimed task end to end. Errors from the agent
// pipeline never escape: they become a failed status with the error in
// the result payload.
func (s *ExecutorService) runTask(ctx context.Context, taskID uint) {
	start := time.Now()
	runID := uuid.NewString()

	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		s.log.Error().Err(err).Uint("task_id", taskID).Msg("cannot load queued task")
		return
	}
	if task.Status != model.StatusInProgress {
		// Stopped or deleted between claim and pickup.
		s.log.Debug().Uint("task_id", taskID).Str("status", task.Status).Msg("skipping task no longer in progress")
		return
	}

	var runCtx context.Context
	var cancel context.CancelFunc
	if s.cfg.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	s.mu.Lock()
	s.running[taskID] = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.running, taskID)
		s.mu.Unlock()
		cancel()
	}()

	result := s.safeRun(runCtx, task, runID, start)
	s.finish(task, result)
}

// safeRun contains a panicking pipeline to this one run: the task fails
// with the panic in its result and the worker stays alive.
func (s *ExecutorService) safeRun(ctx context.Context, task *model.Task, runID string, start time.Time) (result model.TaskResult) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Uint("task_id", task.ID).Any("panic", r).
				Str("stack", string(debug.Stack())).Msg("panic in agent run")
			result = failureResult("agent execution panicked", fmt.Errorf("panic: %v", r), runID, start)
		}
	}()
	return s.runPipeline(ctx, task, runID, start)
}

// runPipeline resolves the agent and tools and invokes the runner.
func (s *ExecutorService) runPipeline(ctx context.Context, task *model.Task, runID string, start time.Time) model.TaskResult {
	ag, err := s.agentRepo.FindByID(ctx, task.AgentID)
	if err != nil {
		return failureResult(fmt.Sprintf("agent %d not available", task.AgentID), err, runID, start)
	}
	if !ag.Enabled {
		return failureResult(fmt.Sprintf("agent %q is disabled", ag.Name),
			fmt.Errorf("agent %d disabled", ag.ID), runID, start)
	}

	tools, err := s.resolver.Resolve(ctx, task.Tools)
	if err != nil {
		return failureResult("tool resolution failed", err, runID, start)
	}

	input := agent.Input{Description: task.Description}
	for _, t := range tools {
		input.Tools = append(input.Tools, agent.ToolSpec{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}

	out, err := s.runner.Run(ctx, *ag, input)
	elapsed := time.Since(start)
	if err != nil {
		s.log.Warn().Err(err).Uint("task_id", task.ID).Uint("agent_id", ag.ID).
			Dur("dur", elapsed).Msg("agent run failed")
		return failureResult("agent execution failed", err, runID, start)
	}

	s.log.Info().Uint("task_id", task.ID).Uint("agent_id", ag.ID).
		Dur("dur", elapsed).Int("tools", len(tools)).Msg("agent run completed")
	return model.TaskResult{
		Success: true,
		Message: "task completed",
		Data: map[string]any{
			"run_id":     runID,
			"output":     out.Text,
			"tools_used": out.ToolsUsed,
			"elapsed_ms": elapsed.Milliseconds(),
		},
	}
}

// finish persists the terminal status, spawns the next occurrence on
// success and fires notifications. The write is optimistic on the task
// still being in-progress, so an external Stop wins and this run's stale
// result is discarded.
func (s *ExecutorService) finish(task *model.Task, result model.TaskResult) {
	// The triggering request is long gone and the worker context may be
	// shutting down; terminal persistence gets its own deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	now := time.Now()
	status := model.StatusFailed
	updates := map[string]interface{}{
		"updated_at": now,
		"result":     &result,
	}
	if result.Success {
		status = model.StatusCompleted
		updates["completed_at"] = now
	}
	updates["status"] = status

	written, err := s.taskRepo.UpdateWhereStatus(ctx, task.ID, model.StatusInProgress, updates)
	if err != nil {
		s.log.Error().Err(err).Uint("task_id", task.ID).Msg("cannot persist task result")
		return
	}
	if !written {
		s.log.Info().Uint("task_id", task.ID).Msg("task was stopped externally; discarding result")
		return
	}

	if status == model.StatusCompleted && task.Recurrence != "" {
		s.spawnNext(ctx, task, now)
	}

	if (status == model.StatusCompleted && task.NotifyOnComplete) ||
		(status == model.StatusFailed && task.NotifyOnFail) {
		s.notify(ctx, task, status, result)
	}
}

// spawnNext creates a fresh pending task at the next occurrence, carrying
// the template fields and tool associations forward. The completed row
// stays behind as history.
func (s *ExecutorService) spawnNext(ctx context.Context, task *model.Task, now time.Time) {
	base := now
	if task.ScheduledFor != nil {
		base = *task.ScheduledFor
	}
	next, ok := NextOccurrence(base, task.Recurrence)
	if !ok {
		return
	}

	clone := model.Task{
		Description:      task.Description,
		AgentID:          task.AgentID,
		OwnerID:          task.OwnerID,
		Status:           model.StatusPending,
		ScheduledFor:     &next,
		Recurrence:       task.Recurrence,
		Priority:         task.Priority,
		DependsOn:        task.DependsOn,
		NotifyOnComplete: task.NotifyOnComplete,
		NotifyOnFail:     task.NotifyOnFail,
	}
	if err := s.taskRepo.Create(ctx, &clone); err != nil {
		s.log.Error().Err(err).Uint("task_id", task.ID).Msg("cannot spawn recurring task")
		return
	}

	copies := make([]model.TaskTool, 0, len(task.Tools))
	for _, tt := range task.Tools {
		copies = append(copies, model.TaskTool{
			TaskID:     clone.ID,
			ToolID:     tt.ToolID,
			Priority:   tt.Priority,
			Parameters: tt.Parameters,
		})
	}
	if err := s.taskRepo.CreateTaskTools(ctx, copies); err != nil {
		s.log.Error().Err(err).Uint("task_id", clone.ID).Msg("cannot copy tool associations")
		return
	}

	s.log.Info().Uint("task_id", task.ID).Uint("next_task_id", clone.ID).
		Time("scheduled_for", next).Str("recurrence", task.Recurrence).
		Msg("recurring task rescheduled")
}

func (s *ExecutorService) notify(ctx context.Context, task *model.Task, status string, result model.TaskResult) {
	if s.notifier == nil {
		return
	}
	title := fmt.Sprintf("Task #%d %s", task.ID, status)
	message := fmt.Sprintf("%s\n\n%s", task.Description, result.Message)
	if errText, ok := result.Data["error"].(string); ok && errText != "" {
		message = fmt.Sprintf("%s: %s", message, errText)
	}
	if err := s.notifier.Notify(ctx, task.OwnerID, title, message); err != nil {
		s.log.Warn().Err(err).Uint("task_id", task.ID).Uint("owner_id", task.OwnerID).
			Msg("notification failed")
	}
}

func failureResult(message string, err error, runID string, start time.Time) model.TaskResult {
	return model.TaskResult{
		Success: false,
		Message: message,
		Data: map[string]any{
			"run_id":     runID,
			"error":      err.Error(),
			"elapsed_ms": time.Since(start).Milliseconds(),
		},
	}
}
