package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"press-clippings/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// TopicService manages topics and their derived crisis flag
type TopicService struct {
	*engine
}

// NewTopicService creates a new topic service
func NewTopicService(db *gorm.DB, opts Options) *TopicService {
	return &TopicService{engine: newEngine(db, opts)}
}

// Create stores a new topic. Crisis always starts false.
func (ts *TopicService) Create(ctx context.Context, name string, enabled bool) (*models.Topic, error) {
	topic := models.Topic{Name: strings.TrimSpace(name), Enabled: enabled}
	err := ts.transact(ctx, func(tx *gorm.DB, changes *changeSet) error {
		errs := ValidationErrors{}
		if err := validateTopicName(tx, topic.Name, uuid.Nil, errs); err != nil {
			return err
		}
		if err := errs.Err(); err != nil {
			return err
		}
		// gorm skips zero-value fields that carry a default, so Enabled is written explicitly
		if err := tx.Create(&topic).Error; err != nil {
			return fmt.Errorf("failed to create topic: %w", err)
		}
		return tx.Model(&topic).Update("enabled", enabled).Error
	})
	if err != nil {
		return nil, err
	}
	return ts.Get(ctx, topic.ID)
}

// Update renames or enables/disables a topic. A rename can move the topic in
// or out of the default-topic exemption, so crisis is re-evaluated.
func (ts *TopicService) Update(ctx context.Context, id uuid.UUID, name *string, enabled *bool) (*models.Topic, error) {
	err := ts.transact(ctx, func(tx *gorm.DB, changes *changeSet) error {
		var topic models.Topic
		if err := tx.First(&topic, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to load topic: %w", err)
		}

		updates := map[string]interface{}{}
		if name != nil {
			errs := ValidationErrors{}
			trimmed := strings.TrimSpace(*name)
			if err := validateTopicName(tx, trimmed, id, errs); err != nil {
				return err
			}
			if err := errs.Err(); err != nil {
				return err
			}
			updates["name"] = trimmed
		}
		if enabled != nil {
			updates["enabled"] = *enabled
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&topic).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update topic: %w", err)
		}
		return ts.checkCrisis(tx, changes, &topic.ID)
	})
	if err != nil {
		return nil, err
	}
	return ts.Get(ctx, id)
}

// Delete removes a topic that no article or clipping references
func (ts *TopicService) Delete(ctx context.Context, id uuid.UUID) error {
	return ts.transact(ctx, func(tx *gorm.DB, changes *changeSet) error {
		articles, err := countTopicArticles(tx, id)
		if err != nil {
			return fmt.Errorf("failed to count articles: %w", err)
		}
		clippings, err := clippingIDsForTopic(tx, id)
		if err != nil {
			return fmt.Errorf("failed to list clippings: %w", err)
		}
		if articles > 0 || len(clippings) > 0 {
			return fmt.Errorf("%w: topic %s is referenced by %d articles and %d clippings", ErrConflict, id, articles, len(clippings))
		}

		res := tx.Delete(&models.Topic{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete topic: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: topic %s", ErrNotFound, id)
		}
		return nil
	})
}

// Get returns a topic by id
func (ts *TopicService) Get(ctx context.Context, id uuid.UUID) (*models.Topic, error) {
	var topic models.Topic
	if err := ts.db.WithContext(ctx).First(&topic, "id = ?", id).Error; err != nil {
		return nil, translateError(err)
	}
	return &topic, nil
}

// List returns all topics by name
func (ts *TopicService) List(ctx context.Context) ([]models.Topic, error) {
	var topics []models.Topic
	if err := ts.db.WithContext(ctx).Order("name ASC").Find(&topics).Error; err != nil {
		return nil, translateError(err)
	}
	return topics, nil
}

// EvaluateCrisis re-runs crisis evaluation for one topic
func (ts *TopicService) EvaluateCrisis(ctx context.Context, id uuid.UUID) (*models.Topic, error) {
	err := ts.transact(ctx, func(tx *gorm.DB, changes *changeSet) error {
		return ts.checkCrisis(tx, changes, &id)
	})
	if err != nil {
		return nil, err
	}
	return ts.Get(ctx, id)
}

// EvaluateAll re-runs crisis evaluation for every topic and returns how
// many flags changed
func (ts *TopicService) EvaluateAll(ctx context.Context) (int, error) {
	topics, err := ts.List(ctx)
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, topic := range topics {
		before := topic.Crisis
		updated, err := ts.EvaluateCrisis(ctx, topic.ID)
		if err != nil {
			return changed, fmt.Errorf("failed to evaluate topic %s: %w", topic.Name, err)
		}
		if updated.Crisis != before {
			changed++
		}
	}

	slog.Info("evaluated topic crisis flags", "topics", len(topics), "changed", changed)
	return changed, nil
}

func validateTopicName(tx *gorm.DB, name string, self uuid.UUID, errs ValidationErrors) error {
	if name == "" {
		errs.Add("name", "can't be blank")
		return nil
	}
	var existing models.Topic
	err := tx.Where("name = ?", name).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to check topic name: %w", err)
	}
	if existing.ID != self {
		errs.Add("name", "has already been taken")
	}
	return nil
}
