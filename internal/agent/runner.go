package agent

import (
	"context"

	"agent-scheduler/internal/model"
)

// ToolSpec describes one tool made available to the agent for a run.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// Input is what the executor hands to a runner for one task.
type Input struct {
	Description string
	Tools       []ToolSpec
}

// Output is what a runner produced for one task.
type Output struct {
	Text      string
	ToolsUsed []string
}

// Runner invokes an agent over a task description and a set of tools.
// Implementations must honor ctx cancellation.
type Runner interface {
	Run(ctx context.Context, agent model.Agent, input Input) (Output, error)
}
