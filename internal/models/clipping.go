package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Clipping is a named, dated selection of articles about one topic. Metrics
// is derived from the members and rewritten on every qualifying change.
type Clipping struct {
	ID         uuid.UUID  `json:"id" db:"id" gorm:"primaryKey;type:uuid"`
	Name       string     `json:"name" db:"name" gorm:"not null"`
	StartDate  time.Time  `json:"start_date" db:"start_date" gorm:"type:date;not null"`
	EndDate    time.Time  `json:"end_date" db:"end_date" gorm:"type:date;not null"`
	TopicID    uuid.UUID  `json:"topic_id" db:"topic_id" gorm:"type:uuid;not null;index"`
	CreatorID  uuid.UUID  `json:"creator_id" db:"creator_id" gorm:"type:uuid;not null;index"`
	ReviewerID *uuid.UUID `json:"reviewer_id" db:"reviewer_id" gorm:"type:uuid;index"`

	Metrics datatypes.JSONType[ClippingMetrics] `json:"metrics" db:"metrics"`

	CreatedAt time.Time `json:"created_at" db:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at" gorm:"autoUpdateTime"`

	// Relationships
	Topic       *Topic            `json:"topic,omitempty" gorm:"foreignKey:TopicID;references:ID;constraint:OnDelete:RESTRICT"`
	Memberships []ClippingArticle `json:"memberships,omitempty" gorm:"foreignKey:ClippingID;constraint:OnDelete:CASCADE"`
}

// TableName sets the table name for the Clipping model
func (Clipping) TableName() string {
	return "clippings"
}

func (c *Clipping) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// ArticleIDs returns the ids of the clipping's member articles
func (c *Clipping) ArticleIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(c.Memberships))
	for _, m := range c.Memberships {
		ids = append(ids, m.ArticleID)
	}
	return ids
}

// ClippingArticle is the membership link between a clipping and an article.
// Its creation and destruction are the only writes that change a clipping's
// composition.
type ClippingArticle struct {
	ID         uuid.UUID `json:"id" db:"id" gorm:"primaryKey;type:uuid"`
	ClippingID uuid.UUID `json:"clipping_id" db:"clipping_id" gorm:"type:uuid;not null;uniqueIndex:idx_clipping_articles_pair"`
	ArticleID  uuid.UUID `json:"article_id" db:"article_id" gorm:"type:uuid;not null;uniqueIndex:idx_clipping_articles_pair;index"`
	CreatedAt  time.Time `json:"created_at" db:"created_at" gorm:"autoCreateTime"`

	// Relationships
	Article *Article `json:"article,omitempty" gorm:"foreignKey:ArticleID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName sets the table name for the ClippingArticle model
func (ClippingArticle) TableName() string {
	return "clipping_articles"
}

func (ca *ClippingArticle) BeforeCreate(tx *gorm.DB) error {
	if ca.ID == uuid.Nil {
		ca.ID = uuid.New()
	}
	return nil
}
