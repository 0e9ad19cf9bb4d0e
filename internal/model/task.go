package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Task statuses. A task starts out pending, moves to in-progress when the
// executor picks it up and ends in completed or failed. Completed and failed
// rows are terminal; recurrence spawns a new row instead of reopening one.
const (
	StatusPending    = "pending"
	StatusInProgress = "in-progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Task priorities. Advisory only — the executor does not preempt.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Recurrence rules accepted on a task.
const (
	RecurDaily   = "daily"
	RecurWeekly  = "weekly"
	RecurMonthly = "monthly"
	RecurYearly  = "yearly"
)

// Task is a persisted unit of schedulable agent work.
type Task struct {
	ID          uint `gorm:"primaryKey"`
	Description string
	AgentID     uint `gorm:"index"`
	OwnerID     uint `gorm:"index"`
	Status      string
	// ScheduledFor is nil when the task runs only on explicit request.
	ScheduledFor *time.Time `gorm:"index"`
	Recurrence   string
	Priority     string
	// DependsOn is informational; execution does not block on it.
	DependsOn        *uint
	NotifyOnComplete bool
	NotifyOnFail     bool
	Result           *TaskResult `gorm:"type:json"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CompletedAt      *time.Time
	Tools            []TaskTool `gorm:"foreignKey:TaskID"`
}

// JSONMap stores a free-form JSON object in a single column.
type JSONMap map[string]any

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported JSON column type %T", value)
	}
}

// TaskResult is the structured outcome of one execution. It marshals
// itself so it survives both struct creates and map-based updates.
type TaskResult struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Data    JSONMap `json:"data,omitempty"`
}

func (r TaskResult) Value() (driver.Value, error) {
	return json.Marshal(r)
}

func (r *TaskResult) Scan(value any) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	default:
		return fmt.Errorf("unsupported JSON column type %T", value)
	}
}

// TaskTool binds a tool from the registry to a task, with a per-task
// ordering hint and parameter overrides. Rows are managed explicitly:
// children are always deleted before their task.
type TaskTool struct {
	ID         uint `gorm:"primaryKey"`
	TaskID     uint `gorm:"index"`
	ToolID     uint
	Priority   int
	Parameters JSONMap `gorm:"type:json"`
	CreatedAt  time.Time
}

// ValidStatus reports whether s is one of the four task statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// ValidPriority reports whether p is a known priority level.
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ValidRecurrence reports whether r is a known recurrence rule.
// The empty string (no recurrence) is valid.
func ValidRecurrence(r string) bool {
	switch r {
	case "", RecurDaily, RecurWeekly, RecurMonthly, RecurYearly:
		return true
	}
	return false
}
