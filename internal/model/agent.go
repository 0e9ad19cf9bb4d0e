package model

import "time"

// Agent is a named model configuration a task is bound to for execution.
type Agent struct {
	ID           uint `gorm:"primaryKey"`
	Name         string
	Model        string
	SystemPrompt string
	Temperature  float32
	Enabled      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
