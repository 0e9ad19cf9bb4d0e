package model

import "time"

// Tool is a named capability an agent may invoke while executing a task.
// The registry is owned elsewhere; this side only reads it.
type Tool struct {
	ID          uint `gorm:"primaryKey"`
	Name        string
	Description string
	// Handler references the implementation (e.g. "reports.generate").
	Handler   string
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
