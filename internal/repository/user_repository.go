package repository

import (
	"context"

	"gorm.io/gorm"

	"agent-scheduler/internal/model"
)

// UserRepository resolves task owners. Account creation and profile
// upkeep belong to the surrounding dashboard's auth layer; this side
// only needs to find a notification target.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByID(ctx context.Context, userID uint) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
