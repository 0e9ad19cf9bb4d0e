package repository

import (
	"context"

	"gorm.io/gorm"

	"agent-scheduler/internal/model"
)

// AgentRepository reads agent configurations.
type AgentRepository struct {
	db *gorm.DB
}

func NewAgentRepository(db *gorm.DB) *AgentRepository {
	return &AgentRepository{db: db}
}

func (r *AgentRepository) FindByID(ctx context.Context, agentID uint) (*model.Agent, error) {
	var agent model.Agent
	if err := r.db.WithContext(ctx).First(&agent, agentID).Error; err != nil {
		return nil, err
	}
	return &agent, nil
}
