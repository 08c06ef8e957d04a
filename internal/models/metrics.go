package models

import (
	"time"

	"github.com/google/uuid"
)

// ClippingMetrics is the cached statistics blob stored on a clipping. Field
// names and rounding rules are read by report consumers and must stay stable.
type ClippingMetrics struct {
	GeneratedAt  time.Time         `json:"generated_at"`
	DateRange    DateRange         `json:"date_range"`
	NewsCount    int               `json:"news_count"`
	Valuation    ValuationStats    `json:"valuation"`
	MediaStats   DistributionStats `json:"media_stats"`
	SupportStats DistributionStats `json:"support_stats"`
	MentionStats DistributionStats `json:"mention_stats"`
	Audience     AudienceStats     `json:"audience"`
	Quotation    QuotationStats    `json:"quotation"`
	Crisis       bool              `json:"crisis"`
}

// DateRange holds the earliest and latest member dates as YYYY-MM-DD
type DateRange struct {
	From *string `json:"from"`
	To   *string `json:"to"`
}

// Share is a count together with its percentage of a total
type Share struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// ValuationStats breaks the members down by valuation
type ValuationStats struct {
	Positive Share `json:"positive"`
	Neutral  Share `json:"neutral"`
	Negative Share `json:"negative"`
	Total    int   `json:"total"`
}

// DistributionItem is one distinct value of a grouped field
type DistributionItem struct {
	Key        string     `json:"key"`
	ID         *uuid.UUID `json:"id,omitempty"`
	Count      int        `json:"count"`
	Percentage float64    `json:"percentage"`
}

// DistributionStats lists items by count descending, then key ascending
// ignoring case
type DistributionStats struct {
	Items []DistributionItem `json:"items"`
	Total int                `json:"total"`
}

// AudienceStats aggregates audience sizes; all fields are nil when no member
// has an audience size
type AudienceStats struct {
	Total   *int64       `json:"total"`
	Average *float64     `json:"average"`
	Max     *AudienceMax `json:"max"`
}

// AudienceMax identifies the member with the largest audience
type AudienceMax struct {
	ArticleID uuid.UUID `json:"article_id"`
	Value     int64     `json:"value"`
}

// QuotationStats aggregates quotations; all fields are nil when no member has
// a quotation
type QuotationStats struct {
	Total   *float64      `json:"total"`
	Average *float64      `json:"average"`
	Max     *QuotationMax `json:"max"`
}

// QuotationMax identifies the member with the highest quotation
type QuotationMax struct {
	ArticleID uuid.UUID `json:"article_id"`
	Value     float64   `json:"value"`
}
