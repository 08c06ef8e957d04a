// Package metrics computes the statistics summary cached on a clipping.
//
// Compute is pure: it reads only the articles it is given and never touches
// storage. Persisting the result is the caller's job.
package metrics

import (
	"sort"
	"strings"
	"time"

	"press-clippings/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the format used for dates inside the metrics blob
const DateLayout = "2006-01-02"

var hundred = decimal.NewFromInt(100)

// Compute builds the metrics for a clipping whose members are articles.
// Articles must have MentionLinks with their Mention preloaded for
// mention_stats to be filled in. crisis is the clipping topic's current flag.
func Compute(articles []models.Article, crisis bool, now time.Time) models.ClippingMetrics {
	return models.ClippingMetrics{
		GeneratedAt:  now.UTC(),
		DateRange:    dateRange(articles),
		NewsCount:    len(articles),
		Valuation:    valuationStats(articles),
		MediaStats:   fieldStats(articles, func(a *models.Article) string { return a.Media }),
		SupportStats: fieldStats(articles, func(a *models.Article) string { return a.Support }),
		MentionStats: mentionStats(articles),
		Audience:     audienceStats(articles),
		Quotation:    quotationStats(articles),
		Crisis:       crisis,
	}
}

// Round rounds v half-up to two decimal places
func Round(v decimal.Decimal) float64 {
	return v.Round(2).InexactFloat64()
}

// Percentage returns count/total*100 rounded to two places, or 0 when total is 0
func Percentage(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return Round(decimal.NewFromInt(int64(count)).Mul(hundred).Div(decimal.NewFromInt(int64(total))))
}

func dateRange(articles []models.Article) models.DateRange {
	if len(articles) == 0 {
		return models.DateRange{}
	}

	from := models.DateOnly(articles[0].Date)
	to := from
	for _, a := range articles[1:] {
		d := models.DateOnly(a.Date)
		if d.Before(from) {
			from = d
		}
		if d.After(to) {
			to = d
		}
	}

	f, t := from.Format(DateLayout), to.Format(DateLayout)
	return models.DateRange{From: &f, To: &t}
}

func valuationStats(articles []models.Article) models.ValuationStats {
	var pos, neu, neg int
	for _, a := range articles {
		if a.Valuation == nil {
			continue
		}
		switch *a.Valuation {
		case models.ValuationPositive:
			pos++
		case models.ValuationNeutral:
			neu++
		case models.ValuationNegative:
			neg++
		}
	}

	total := pos + neu + neg
	return models.ValuationStats{
		Positive: models.Share{Count: pos, Percentage: Percentage(pos, total)},
		Neutral:  models.Share{Count: neu, Percentage: Percentage(neu, total)},
		Negative: models.Share{Count: neg, Percentage: Percentage(neg, total)},
		Total:    total,
	}
}

// tally counts occurrences per identity while remembering the display key
type tally struct {
	order  []string
	keys   map[string]string
	ids    map[string]*uuid.UUID
	counts map[string]int
	total  int
}

func newTally() *tally {
	return &tally{
		keys:   make(map[string]string),
		ids:    make(map[string]*uuid.UUID),
		counts: make(map[string]int),
	}
}

func (t *tally) add(identity, key string, id *uuid.UUID) {
	if _, seen := t.counts[identity]; !seen {
		t.order = append(t.order, identity)
		t.keys[identity] = key
		t.ids[identity] = id
	}
	t.counts[identity]++
	t.total++
}

func (t *tally) stats() models.DistributionStats {
	items := make([]models.DistributionItem, 0, len(t.order))
	for _, identity := range t.order {
		items = append(items, models.DistributionItem{
			Key:        t.keys[identity],
			ID:         t.ids[identity],
			Count:      t.counts[identity],
			Percentage: Percentage(t.counts[identity], t.total),
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Count != items[j].Count {
			return items[i].Count > items[j].Count
		}
		li, lj := strings.ToLower(items[i].Key), strings.ToLower(items[j].Key)
		if li != lj {
			return li < lj
		}
		return items[i].Key < items[j].Key
	})

	return models.DistributionStats{Items: items, Total: t.total}
}

func fieldStats(articles []models.Article, field func(*models.Article) string) models.DistributionStats {
	t := newTally()
	for i := range articles {
		value := strings.TrimSpace(field(&articles[i]))
		if value == "" {
			continue
		}
		t.add(value, value, nil)
	}
	return t.stats()
}

func mentionStats(articles []models.Article) models.DistributionStats {
	t := newTally()
	for _, a := range articles {
		for _, link := range a.MentionLinks {
			id := link.MentionID
			name := strings.TrimSpace(link.Mention.Name)
			if name == "" {
				name = id.String()
			}
			t.add(id.String(), name, &id)
		}
	}
	return t.stats()
}

// precedes orders articles for tie-breaks on max values: earliest date first,
// then lowest id
func precedes(a, b *models.Article) bool {
	da, db := models.DateOnly(a.Date), models.DateOnly(b.Date)
	if !da.Equal(db) {
		return da.Before(db)
	}
	return a.ID.String() < b.ID.String()
}

func audienceStats(articles []models.Article) models.AudienceStats {
	var (
		sum   int64
		n     int64
		maxAt *models.Article
	)
	for i := range articles {
		a := &articles[i]
		if a.AudienceSize == nil {
			continue
		}
		sum += *a.AudienceSize
		n++
		if maxAt == nil || *a.AudienceSize > *maxAt.AudienceSize ||
			(*a.AudienceSize == *maxAt.AudienceSize && precedes(a, maxAt)) {
			maxAt = a
		}
	}
	if n == 0 {
		return models.AudienceStats{}
	}

	avg := Round(decimal.NewFromInt(sum).Div(decimal.NewFromInt(n)))
	return models.AudienceStats{
		Total:   &sum,
		Average: &avg,
		Max:     &models.AudienceMax{ArticleID: maxAt.ID, Value: *maxAt.AudienceSize},
	}
}

func quotationStats(articles []models.Article) models.QuotationStats {
	var (
		sum   = decimal.Zero
		n     int64
		maxAt *models.Article
	)
	for i := range articles {
		a := &articles[i]
		if a.Quotation == nil {
			continue
		}
		sum = sum.Add(*a.Quotation)
		n++
		if maxAt == nil || a.Quotation.GreaterThan(*maxAt.Quotation) ||
			(a.Quotation.Equal(*maxAt.Quotation) && precedes(a, maxAt)) {
			maxAt = a
		}
	}
	if n == 0 {
		return models.QuotationStats{}
	}

	total := Round(sum)
	avg := Round(sum.Div(decimal.NewFromInt(n)))
	return models.QuotationStats{
		Total:   &total,
		Average: &avg,
		Max:     &models.QuotationMax{ArticleID: maxAt.ID, Value: Round(*maxAt.Quotation)},
	}
}
