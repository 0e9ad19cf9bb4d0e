package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"agent-scheduler/internal/model"
)

// ToolRepository reads the tool registry. The registry is owned by another
// part of the system; nothing here mutates it.
type ToolRepository struct {
	db *gorm.DB
}

func NewToolRepository(db *gorm.DB) *ToolRepository {
	return &ToolRepository{db: db}
}

// FindByIDs returns the tools with the given ids. Missing ids are simply
// absent from the result — the registry may have changed since a task was
// associated with them.
func (r *ToolRepository) FindByIDs(ctx context.Context, ids []uint) ([]model.Tool, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var tools []model.Tool
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&tools).Error; err != nil {
		return nil, fmt.Errorf("find tools: %w", err)
	}
	return tools, nil
}

func (r *ToolRepository) ListEnabled(ctx context.Context) ([]model.Tool, error) {
	var tools []model.Tool
	if err := r.db.WithContext(ctx).Where("enabled = ?", true).
		Order("name").Find(&tools).Error; err != nil {
		return nil, fmt.Errorf("list enabled tools: %w", err)
	}
	return tools, nil
}
