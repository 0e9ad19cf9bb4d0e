package service

import (
	"context"
	"sort"

	"agent-scheduler/internal/model"
	"agent-scheduler/internal/repository"
)

// ResolvedTool merges a registry tool with the per-task association fields.
type ResolvedTool struct {
	ToolID      uint
	Name        string
	Description string
	Handler     string
	Priority    int
	Parameters  map[string]any
}

// ToolResolver turns a task's tool associations into full tool descriptors.
type ToolResolver struct {
	toolRepo *repository.ToolRepository
}

func NewToolResolver(toolRepo *repository.ToolRepository) *ToolResolver {
	return &ToolResolver{toolRepo: toolRepo}
}

// Resolve looks up the referenced tools and merges per-task priority and
// parameters, ordered ascending by priority. An empty ref list resolves to
// an empty result. Ids missing from the registry and disabled tools are
// silently omitted — the registry may have been edited after association,
// and the executor must tolerate that.
func (r *ToolResolver) Resolve(ctx context.Context, refs []model.TaskTool) ([]ResolvedTool, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	ids := make([]uint, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.ToolID)
	}
	tools, err := r.toolRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[uint]model.Tool, len(tools))
	for _, t := range tools {
		byID[t.ID] = t
	}

	resolved := make([]ResolvedTool, 0, len(refs))
	for _, ref := range refs {
		tool, ok := byID[ref.ToolID]
		if !ok || !tool.Enabled {
			continue
		}
		resolved = append(resolved, ResolvedTool{
			ToolID:      tool.ID,
			Name:        tool.Name,
			Description: tool.Description,
			Handler:     tool.Handler,
			Priority:    ref.Priority,
			Parameters:  ref.Parameters,
		})
	}

	sort.SliceStable(resolved, func(i, j int) bool {
		return resolved[i].Priority < resolved[j].Priority
	})
	return resolved, nil
}
