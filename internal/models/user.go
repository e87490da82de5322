package models

import "time"

// User is the local profile bound to one identity-provider subject.
type User struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	IdentityID string    `gorm:"uniqueIndex;not null" json:"identity_id"`
	Username   string    `gorm:"uniqueIndex;size:20;not null" json:"username"`
	Email      string    `gorm:"uniqueIndex;not null" json:"email"`
	CreatedAt  time.Time `json:"created_at"`
}
