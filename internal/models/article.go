package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Valuation is the editorial sentiment classification of an article
type Valuation string

const (
	ValuationPositive Valuation = "positive"
	ValuationNeutral  Valuation = "neutral"
	ValuationNegative Valuation = "negative"
)

// Valid reports whether v is one of the known valuations
func (v Valuation) Valid() bool {
	switch v {
	case ValuationPositive, ValuationNeutral, ValuationNegative:
		return true
	}
	return false
}

// Article represents a press article under editorial review
type Article struct {
	ID              uuid.UUID  `json:"id" db:"id" gorm:"primaryKey;type:uuid"`
	Title           string     `json:"title" db:"title" gorm:"not null"`
	URL             string     `json:"url" db:"url"`
	Date            time.Time  `json:"date" db:"date" gorm:"type:date;not null;index"`
	Media           string     `json:"media" db:"media" gorm:"index"`     // Outlet name
	Support         string     `json:"support" db:"support" gorm:"index"` // Channel, e.g. print or digital
	Valuation       *Valuation `json:"valuation" db:"valuation" gorm:"type:varchar(16);index"`
	PoliticalFactor string     `json:"political_factor" db:"political_factor"`

	// Reach and advertising-equivalent value
	AudienceSize *int64           `json:"audience_size" db:"audience_size"`
	Quotation    *decimal.Decimal `json:"quotation" db:"quotation" gorm:"type:decimal(14,2)"`

	TopicID *uuid.UUID `json:"topic_id" db:"topic_id" gorm:"type:uuid;index"`

	CreatedAt time.Time `json:"created_at" db:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at" gorm:"autoUpdateTime"`

	// Relationships
	Topic        *Topic           `json:"topic,omitempty" gorm:"foreignKey:TopicID;references:ID;constraint:OnDelete:RESTRICT"`
	MentionLinks []ArticleMention `json:"mention_links,omitempty" gorm:"foreignKey:ArticleID;constraint:OnDelete:CASCADE"`
}

// TableName sets the table name for the Article model
func (Article) TableName() string {
	return "articles"
}

func (a *Article) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// MentionIDs returns the ids of the mentions linked to the article
func (a *Article) MentionIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(a.MentionLinks))
	for _, link := range a.MentionLinks {
		ids = append(ids, link.MentionID)
	}
	return ids
}

// DateOnly truncates t to midnight UTC of its calendar day
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
