package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"agent-scheduler/internal/model"
)

// TaskFilter narrows List results. Zero values mean "no constraint";
// OwnerID is set by the service layer for non-admin callers.
type TaskFilter struct {
	Status         string
	ScheduledAfter *time.Time
	AgentID        uint
	OwnerID        uint
}

// TaskRepository handles persistence for tasks and their tool associations.
type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) Create(ctx context.Context, task *model.Task) error {
	// Associations are inserted separately; Omit keeps gorm from
	// double-creating them from the Tools field.
	if err := r.db.WithContext(ctx).Omit("Tools").Create(task).Error; err != nil {
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

func (r *TaskRepository) FindByID(ctx context.Context, taskID uint) (*model.Task, error) {
	var task model.Task
	if err := r.db.WithContext(ctx).Preload("Tools").First(&task, taskID).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// List returns tasks matching the filter, newest scheduled first.
func (r *TaskRepository) List(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	q := r.db.WithContext(ctx).Model(&model.Task{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.ScheduledAfter != nil {
		q = q.Where("scheduled_for > ?", *filter.ScheduledAfter)
	}
	if filter.AgentID != 0 {
		q = q.Where("agent_id = ?", filter.AgentID)
	}
	if filter.OwnerID != 0 {
		q = q.Where("owner_id = ?", filter.OwnerID)
	}

	var tasks []model.Task
	if err := q.Preload("Tools").
		Order("scheduled_for DESC NULLS LAST, created_at DESC").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// ListDue returns pending tasks whose scheduled time has arrived.
func (r *TaskRepository) ListDue(ctx context.Context, now time.Time) ([]model.Task, error) {
	var tasks []model.Task
	if err := r.db.WithContext(ctx).
		Where("status = ? AND scheduled_for IS NOT NULL AND scheduled_for <= ?", model.StatusPending, now).
		Order("scheduled_for").
		Find(&tasks).Error; err != nil {
		return nil, fmt.Errorf("list due tasks: %w", err)
	}
	return tasks, nil
}

// Update applies the given column updates to a task. It reports whether a
// row was actually touched so callers can distinguish "absent" from "done".
func (r *TaskRepository) Update(ctx context.Context, taskID uint, updates map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Task{}).Where("id = ?", taskID).Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("update task: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// UpdateWhereStatus applies updates only if the task is currently in the
// expected status. It returns false when another writer got there first,
// which is how concurrent execute/stop calls on one task are serialized.
func (r *TaskRepository) UpdateWhereStatus(ctx context.Context, taskID uint, expected string, updates map[string]interface{}) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Task{}).
		Where("id = ? AND status = ?", taskID, expected).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("update task status: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Delete removes a task row. Tool associations must be deleted first.
func (r *TaskRepository) Delete(ctx context.Context, taskID uint) error {
	if err := r.db.WithContext(ctx).Delete(&model.Task{}, taskID).Error; err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}

func (r *TaskRepository) CreateTaskTools(ctx context.Context, tools []model.TaskTool) error {
	if len(tools) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&tools).Error; err != nil {
		return fmt.Errorf("create task tools: %w", err)
	}
	return nil
}

func (r *TaskRepository) ListTaskTools(ctx context.Context, taskID uint) ([]model.TaskTool, error) {
	var tools []model.TaskTool
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).Find(&tools).Error; err != nil {
		return nil, fmt.Errorf("list task tools: %w", err)
	}
	return tools, nil
}

func (r *TaskRepository) DeleteTaskTools(ctx context.Context, taskID uint) error {
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).
		Delete(&model.TaskTool{}).Error; err != nil {
		return fmt.Errorf("delete task tools: %w", err)
	}
	return nil
}
