package services

import (
	"fmt"
	"strings"
	"time"

	"press-clippings/internal/metrics"
	"press-clippings/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MembershipScope is the topic and window a clipping's members must fit in.
// A nil field skips the corresponding check.
type MembershipScope struct {
	Topic     *models.Topic
	StartDate *time.Time
	EndDate   *time.Time
}

// Contains reports whether date lies inside the scope's window, bounds
// included. A scope without both bounds contains every date.
func (s MembershipScope) Contains(date time.Time) bool {
	if s.StartDate == nil || s.EndDate == nil {
		return true
	}
	d := models.DateOnly(date)
	return !d.Before(models.DateOnly(*s.StartDate)) && !d.After(models.DateOnly(*s.EndDate))
}

// ValidateMembership checks a proposed article set for a clipping. All
// violations are collected under "article_ids"; nothing is written.
func ValidateMembership(tx *gorm.DB, scope MembershipScope, articleIDs []uuid.UUID) (ValidationErrors, error) {
	errs := ValidationErrors{}
	ids := uniqueIDs(articleIDs)

	articles, err := findArticles(tx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load articles: %w", err)
	}

	found := make(map[uuid.UUID]bool, len(articles))
	for _, a := range articles {
		found[a.ID] = true
	}
	var missing []string
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id.String())
		}
	}
	if len(missing) > 0 {
		errs.Add("article_ids", "references non-existent articles: "+strings.Join(missing, ", "))
	}

	if scope.Topic != nil {
		for _, a := range articles {
			if a.TopicID == nil || *a.TopicID != scope.Topic.ID {
				errs.Add("article_ids", fmt.Sprintf("must all belong to topic %s", scope.Topic.Name))
				break
			}
		}
	}

	if scope.StartDate != nil && scope.EndDate != nil {
		for _, a := range articles {
			if !scope.Contains(a.Date) {
				errs.Add("article_ids", fmt.Sprintf("must all be dated between %s and %s",
					scope.StartDate.Format(metrics.DateLayout), scope.EndDate.Format(metrics.DateLayout)))
				break
			}
		}
	}

	return errs, nil
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
