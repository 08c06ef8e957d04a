package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Mention is a named entity (person, company, institution) referenced by articles
type Mention struct {
	ID        uuid.UUID `json:"id" db:"id" gorm:"primaryKey;type:uuid"`
	Name      string    `json:"name" db:"name" gorm:"uniqueIndex;not null"`
	CreatedAt time.Time `json:"created_at" db:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for the Mention model
func (Mention) TableName() string {
	return "mentions"
}

func (m *Mention) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// ArticleMention links an article to a mention. Deleting a mention that still
// has links is refused; deleting an article removes its links.
type ArticleMention struct {
	ArticleID uuid.UUID `json:"article_id" db:"article_id" gorm:"primaryKey;type:uuid"`
	MentionID uuid.UUID `json:"mention_id" db:"mention_id" gorm:"primaryKey;type:uuid;index"`
	CreatedAt time.Time `json:"created_at" db:"created_at" gorm:"autoCreateTime"`

	// Relationships
	Mention Mention `json:"mention,omitempty" gorm:"foreignKey:MentionID;references:ID;constraint:OnDelete:RESTRICT"`
}

// TableName sets the table name for the ArticleMention model
func (ArticleMention) TableName() string {
	return "article_mentions"
}
