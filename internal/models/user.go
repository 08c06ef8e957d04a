package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is an editor that creates or reviews clippings
type User struct {
	ID        uuid.UUID `json:"id" db:"id" gorm:"primaryKey;type:uuid"`
	Email     string    `json:"email" db:"email" gorm:"uniqueIndex;not null"`
	Name      string    `json:"name" db:"name"`
	IsActive  bool      `json:"is_active" db:"is_active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at" db:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for the User model
func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
