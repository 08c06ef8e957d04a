package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Topic groups articles about one subject. Crisis is derived from the
// topic's negative articles and is never set directly by users.
type Topic struct {
	ID        uuid.UUID `json:"id" db:"id" gorm:"primaryKey;type:uuid"`
	Name      string    `json:"name" db:"name" gorm:"uniqueIndex;not null"`
	Enabled   bool      `json:"enabled" db:"enabled" gorm:"not null;default:true"`
	Crisis    bool      `json:"crisis" db:"crisis" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at" db:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for the Topic model
func (Topic) TableName() string {
	return "topics"
}

func (t *Topic) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
