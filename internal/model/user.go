package model

import "time"

// User stores the task owner's identity and notification target.
type User struct {
	ID         uint  `gorm:"primaryKey"`
	TelegramID int64 `gorm:"uniqueIndex"`
	Username   string
	IsAdmin    bool `gorm:"default:false"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
