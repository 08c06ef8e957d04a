package services

import (
	"fmt"
	"log/slog"
	"strings"

	"press-clippings/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CrisisThreshold is the number of negative articles that puts a topic in crisis
const CrisisThreshold = 5

// CrisisEvaluator derives the crisis flag of topics. The configured default
// topic never enters crisis.
type CrisisEvaluator struct {
	defaultTopic string
}

// NewCrisisEvaluator creates an evaluator exempting the topic named defaultTopic
func NewCrisisEvaluator(defaultTopic string) *CrisisEvaluator {
	return &CrisisEvaluator{defaultTopic: strings.TrimSpace(defaultTopic)}
}

// IsDefault reports whether topic is the configured default topic
func (ce *CrisisEvaluator) IsDefault(topic *models.Topic) bool {
	return ce.defaultTopic != "" && strings.EqualFold(strings.TrimSpace(topic.Name), ce.defaultTopic)
}

// Crisis computes the flag topic should carry given its negative article count
func (ce *CrisisEvaluator) Crisis(topic *models.Topic, negatives int64) bool {
	if ce.IsDefault(topic) {
		return false
	}
	return negatives >= CrisisThreshold
}

// CheckCrisis recomputes and persists the crisis flag of topicID. It reports
// whether the stored flag changed.
func (ce *CrisisEvaluator) CheckCrisis(tx *gorm.DB, topicID uuid.UUID) (bool, error) {
	var topic models.Topic
	if err := tx.First(&topic, "id = ?", topicID).Error; err != nil {
		return false, fmt.Errorf("failed to load topic %s: %w", topicID, err)
	}

	negatives, err := countNegativeArticles(tx, topicID)
	if err != nil {
		return false, fmt.Errorf("failed to count negative articles: %w", err)
	}

	crisis := ce.Crisis(&topic, negatives)
	if crisis == topic.Crisis {
		return false, nil
	}

	if err := tx.Model(&topic).Update("crisis", crisis).Error; err != nil {
		return false, fmt.Errorf("failed to update topic crisis: %w", err)
	}

	slog.Info("topic crisis changed", "topic_id", topicID, "topic", topic.Name, "crisis", crisis, "negatives", negatives)
	return true, nil
}
