package services

import (
	"fmt"
	"time"

	"press-clippings/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	msgTopicLocked = "cannot be changed while the article belongs to clippings for the current topic"
	msgDateLocked  = "cannot move outside the date range of linked clippings"
)

// GuardArticleChange checks that moving a persisted article to topicID and
// date keeps every clipping that contains it valid. Only topic and date
// changes are inspected.
func GuardArticleChange(tx *gorm.DB, before *models.Article, topicID *uuid.UUID, date time.Time) (ValidationErrors, error) {
	errs := ValidationErrors{}

	if before.TopicID != nil && !sameTopic(before.TopicID, topicID) {
		n, err := countTopicClippingsContaining(tx, *before.TopicID, before.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to count clippings for topic: %w", err)
		}
		if n > 0 {
			errs.Add("topic_id", msgTopicLocked)
		}
	}

	if !models.DateOnly(before.Date).Equal(models.DateOnly(date)) {
		clippings, err := clippingsContaining(tx, before.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load clippings: %w", err)
		}
		for _, c := range clippings {
			scope := MembershipScope{StartDate: &c.StartDate, EndDate: &c.EndDate}
			if !scope.Contains(date) {
				errs.Add("date", msgDateLocked)
				break
			}
		}
	}

	return errs, nil
}

func sameTopic(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
