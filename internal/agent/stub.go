package agent

import (
	"context"
	"fmt"
	"strings"

	"agent-scheduler/internal/model"
)

// StubRunner is a deterministic stand-in for environments without an API
// key. It reports every offered tool as exercised, which keeps the executor
// pipeline and its tests independent of network access.
type StubRunner struct{}

func NewStubRunner() *StubRunner {
	return &StubRunner{}
}

func (StubRunner) Run(ctx context.Context, ag model.Agent, input Input) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s", ag.Name, input.Description)
	used := make([]string, 0, len(input.Tools))
	for _, tool := range input.Tools {
		used = append(used, tool.Name)
	}
	if len(used) > 0 {
		fmt.Fprintf(&sb, " (tools: %s)", strings.Join(used, ", "))
	}
	return Output{Text: sb.String(), ToolsUsed: used}, nil
}
