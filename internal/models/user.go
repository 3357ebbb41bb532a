package models

import "time"

// User is owned by the identity service. This service only reads it.
type User struct {
	ID        uint   `gorm:"primarykey"`
	Email     string `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time
}
