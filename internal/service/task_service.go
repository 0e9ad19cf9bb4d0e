package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"agent-scheduler/internal/model"
	"agent-scheduler/internal/repository"
)

// ToolRef names a registry tool for a task, with ordering and overrides.
type ToolRef struct {
	ToolID     uint
	Priority   int
	Parameters map[string]any
}

// TaskInput represents data required to create a task.
type TaskInput struct {
	Description      string
	AgentID          uint
	ScheduledFor     *time.Time
	Recurrence       string
	Priority         string
	DependsOn        *uint
	NotifyOnComplete *bool
	NotifyOnFail     *bool
	Tools            []ToolRef
}

// TaskPatch carries a partial update; nil fields are left untouched.
// A non-nil Tools replaces the task's entire tool set.
type TaskPatch struct {
	Description      *string
	AgentID          *uint
	Status           *string
	ScheduledFor     *time.Time
	Recurrence       *string
	Priority         *string
	DependsOn        *uint
	NotifyOnComplete *bool
	NotifyOnFail     *bool
	Tools            *[]ToolRef
}

// ListFilter narrows ListTasks. Non-admin callers are additionally scoped
// to their own tasks regardless of the filter.
type ListFilter struct {
	Status         string
	ScheduledAfter *time.Time
	AgentID        uint
}

// TaskService is the scheduling orchestrator: it owns task CRUD, ownership
// checks and the hand-off of execution to the worker pool.
type TaskService struct {
	taskRepo *repository.TaskRepository
	toolRepo *repository.ToolRepository
	executor *ExecutorService
	log      zerolog.Logger
}

func NewTaskService(taskRepo *repository.TaskRepository, toolRepo *repository.ToolRepository, executor *ExecutorService, log zerolog.Logger) *TaskService {
	return &TaskService{taskRepo: taskRepo, toolRepo: toolRepo, executor: executor, log: log}
}

// canSee implements the ownership rule: admins see everything, everyone
// else only their own tasks.
func canSee(task *model.Task, caller *model.User) bool {
	return caller.IsAdmin || task.OwnerID == caller.ID
}

// findVisible loads a task and applies the ownership rule. Absence and
// lack of ownership both come back as NotFoundError.
func (s *TaskService) findVisible(ctx context.Context, taskID uint, caller *model.User) (*model.Task, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{TaskID: taskID}
		}
		return nil, fmt.Errorf("find task: %w", err)
	}
	if !canSee(task, caller) {
		return nil, &NotFoundError{TaskID: taskID}
	}
	return task, nil
}

// ListTasks returns the caller's tasks matching the filter, newest
// scheduled first, with tool associations attached.
func (s *TaskService) ListTasks(ctx context.Context, filter ListFilter, caller *model.User) ([]model.Task, error) {
	repoFilter := repository.TaskFilter{
		Status:         filter.Status,
		ScheduledAfter: filter.ScheduledAfter,
		AgentID:        filter.AgentID,
	}
	if !caller.IsAdmin {
		repoFilter.OwnerID = caller.ID
	}
	return s.taskRepo.List(ctx, repoFilter)
}

// CreateTask validates the input, persists the task in pending state and
// then its tool associations, and returns the enriched task.
func (s *TaskService) CreateTask(ctx context.Context, input TaskInput, caller *model.User) (*model.Task, error) {
	if strings.TrimSpace(input.Description) == "" {
		return nil, &ValidationError{Field: "description", Reason: "must not be empty"}
	}
	if input.AgentID == 0 {
		return nil, &ValidationError{Field: "agentId", Reason: "must be positive"}
	}
	if !model.ValidRecurrence(input.Recurrence) {
		return nil, &ValidationError{Field: "recurrence", Reason: fmt.Sprintf("unknown rule %q", input.Recurrence)}
	}
	priority := input.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	if !model.ValidPriority(priority) {
		return nil, &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown level %q", input.Priority)}
	}
	for _, ref := range input.Tools {
		if ref.ToolID == 0 {
			return nil, &ValidationError{Field: "tools", Reason: "toolId must be positive"}
		}
	}

	task := model.Task{
		Description:      strings.TrimSpace(input.Description),
		AgentID:          input.AgentID,
		OwnerID:          caller.ID,
		Status:           model.StatusPending,
		ScheduledFor:     input.ScheduledFor,
		Recurrence:       input.Recurrence,
		Priority:         priority,
		DependsOn:        input.DependsOn,
		NotifyOnComplete: boolOrDefault(input.NotifyOnComplete, true),
		NotifyOnFail:     boolOrDefault(input.NotifyOnFail, true),
	}
	if err := s.taskRepo.Create(ctx, &task); err != nil {
		return nil, err
	}
	if err := s.taskRepo.CreateTaskTools(ctx, toolRows(task.ID, input.Tools)); err != nil {
		return nil, err
	}

	s.log.Info().Uint("task_id", task.ID).Uint("owner_id", task.OwnerID).
		Uint("agent_id", task.AgentID).Str("recurrence", task.Recurrence).
		Msg("task created")
	return s.taskRepo.FindByID(ctx, task.ID)
}

// GetTask returns a single enriched task visible to the caller.
func (s *TaskService) GetTask(ctx context.Context, taskID uint, caller *model.User) (*model.Task, error) {
	return s.findVisible(ctx, taskID, caller)
}

// UpdateTask merges the fields present in patch into the task. A status
// transition into completed stamps CompletedAt; updatedAt is always
// stamped. A present Tools field replaces the whole association set.
func (s *TaskService) UpdateTask(ctx context.Context, taskID uint, patch TaskPatch, caller *model.User) (*model.Task, error) {
	task, err := s.findVisible(ctx, taskID, caller)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	updates := map[string]interface{}{"updated_at": now}

	if patch.Description != nil {
		if strings.TrimSpace(*patch.Description) == "" {
			return nil, &ValidationError{Field: "description", Reason: "must not be empty"}
		}
		updates["description"] = strings.TrimSpace(*patch.Description)
	}
	if patch.AgentID != nil {
		if *patch.AgentID == 0 {
			return nil, &ValidationError{Field: "agentId", Reason: "must be positive"}
		}
		updates["agent_id"] = *patch.AgentID
	}
	if patch.Status != nil {
		if !model.ValidStatus(*patch.Status) {
			return nil, &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", *patch.Status)}
		}
		updates["status"] = *patch.Status
		if *patch.Status == model.StatusCompleted && task.Status != model.StatusCompleted {
			updates["completed_at"] = now
		}
	}
	if patch.ScheduledFor != nil {
		updates["scheduled_for"] = *patch.ScheduledFor
	}
	if patch.Recurrence != nil {
		if !model.ValidRecurrence(*patch.Recurrence) {
			return nil, &ValidationError{Field: "recurrence", Reason: fmt.Sprintf("unknown rule %q", *patch.Recurrence)}
		}
		updates["recurrence"] = *patch.Recurrence
	}
	if patch.Priority != nil {
		if !model.ValidPriority(*patch.Priority) {
			return nil, &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown level %q", *patch.Priority)}
		}
		updates["priority"] = *patch.Priority
	}
	if patch.DependsOn != nil {
		updates["depends_on"] = *patch.DependsOn
	}
	if patch.NotifyOnComplete != nil {
		updates["notify_on_complete"] = *patch.NotifyOnComplete
	}
	if patch.NotifyOnFail != nil {
		updates["notify_on_fail"] = *patch.NotifyOnFail
	}
	if patch.Tools != nil {
		for _, ref := range *patch.Tools {
			if ref.ToolID == 0 {
				return nil, &ValidationError{Field: "tools", Reason: "toolId must be positive"}
			}
		}
	}

	if _, err := s.taskRepo.Update(ctx, task.ID, updates); err != nil {
		return nil, err
	}

	if patch.Tools != nil {
		// Coarse-grained "set tools": drop the old set, insert the new one.
		if err := s.taskRepo.DeleteTaskTools(ctx, task.ID); err != nil {
			return nil, err
		}
		if err := s.taskRepo.CreateTaskTools(ctx, toolRows(task.ID, *patch.Tools)); err != nil {
			return nil, err
		}
	}

	return s.taskRepo.FindByID(ctx, task.ID)
}

// DeleteTask removes a task and its tool associations, children first.
// A second delete of the same id yields NotFoundError.
func (s *TaskService) DeleteTask(ctx context.Context, taskID uint, caller *model.User) error {
	task, err := s.findVisible(ctx, taskID, caller)
	if err != nil {
		return err
	}
	if err := s.taskRepo.DeleteTaskTools(ctx, task.ID); err != nil {
		return err
	}
	if err := s.taskRepo.Delete(ctx, task.ID); err != nil {
		return err
	}
	s.log.Info().Uint("task_id", task.ID).Uint("owner_id", task.OwnerID).Msg("task deleted")
	return nil
}

// ExecuteTask claims a pending task, hands it to the worker pool and
// returns the in-progress task without waiting for the run to finish.
// Callers observe the outcome via GetTask or a notification.
func (s *TaskService) ExecuteTask(ctx context.Context, taskID uint, caller *model.User) (*model.Task, error) {
	task, err := s.findVisible(ctx, taskID, caller)
	if err != nil {
		return nil, err
	}

	// Optimistic claim: only one of several concurrent execute calls can
	// move the row out of pending.
	claimed, err := s.taskRepo.UpdateWhereStatus(ctx, task.ID, model.StatusPending, map[string]interface{}{
		"status":     model.StatusInProgress,
		"updated_at": time.Now(),
	})
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, &InvalidStateError{TaskID: task.ID, Status: task.Status, Op: "execute"}
	}

	if err := s.executor.Enqueue(task.ID); err != nil {
		// Put the task back so a later execute or the poller can retry.
		if _, revertErr := s.taskRepo.UpdateWhereStatus(ctx, task.ID, model.StatusInProgress, map[string]interface{}{
			"status":     model.StatusPending,
			"updated_at": time.Now(),
		}); revertErr != nil {
			s.log.Error().Err(revertErr).Uint("task_id", task.ID).Msg("failed to revert claimed task")
		}
		return nil, fmt.Errorf("enqueue task %d: %w", task.ID, err)
	}

	s.log.Info().Uint("task_id", task.ID).Uint("owner_id", task.OwnerID).Msg("task execution started")
	return s.taskRepo.FindByID(ctx, task.ID)
}

// StopTask marks a running task as failed with a user-stop result and
// cancels the in-flight run if one is registered. Only legal while the
// task is in-progress.
func (s *TaskService) StopTask(ctx context.Context, taskID uint, caller *model.User) (*model.Task, error) {
	task, err := s.findVisible(ctx, taskID, caller)
	if err != nil {
		return nil, err
	}
	if task.Status != model.StatusInProgress {
		return nil, &InvalidStateError{TaskID: task.ID, Status: task.Status, Op: "stop"}
	}

	stopped, err := s.taskRepo.UpdateWhereStatus(ctx, task.ID, model.StatusInProgress, map[string]interface{}{
		"status":     model.StatusFailed,
		"updated_at": time.Now(),
		"result": &model.TaskResult{
			Success: false,
			Message: "stopped by user",
		},
	})
	if err != nil {
		return nil, err
	}
	if !stopped {
		// The executor finished in between; report the race as an illegal
		// transition rather than silently overwriting the result.
		fresh, ferr := s.taskRepo.FindByID(ctx, task.ID)
		status := task.Status
		if ferr == nil {
			status = fresh.Status
		}
		return nil, &InvalidStateError{TaskID: task.ID, Status: status, Op: "stop"}
	}

	s.executor.Cancel(task.ID)
	s.log.Info().Uint("task_id", task.ID).Uint("owner_id", task.OwnerID).Msg("task stopped by user")
	return s.taskRepo.FindByID(ctx, task.ID)
}

// ListAvailableTools exposes the registry's enabled tools for pickers in
// the surrounding UI layer.
func (s *TaskService) ListAvailableTools(ctx context.Context) ([]model.Tool, error) {
	return s.toolRepo.ListEnabled(ctx)
}

func toolRows(taskID uint, refs []ToolRef) []model.TaskTool {
	rows := make([]model.TaskTool, 0, len(refs))
	for _, ref := range refs {
		rows = append(rows, model.TaskTool{
			TaskID:     taskID,
			ToolID:     ref.ToolID,
			Priority:   ref.Priority,
			Parameters: ref.Parameters,
		})
	}
	return rows
}

func boolOrDefault(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
