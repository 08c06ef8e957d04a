package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"press-clippings/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MentionService manages mentions
type MentionService struct {
	db *gorm.DB
}

// NewMentionService creates a new mention service
func NewMentionService(db *gorm.DB) *MentionService {
	return &MentionService{db: db}
}

// Create stores a new mention with a unique name
func (ms *MentionService) Create(ctx context.Context, name string) (*models.Mention, error) {
	mention := models.Mention{Name: strings.TrimSpace(name)}
	err := ms.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		errs := ValidationErrors{}
		if mention.Name == "" {
			errs.Add("name", "can't be blank")
			return errs
		}
		var existing models.Mention
		err := tx.Where("name = ?", mention.Name).First(&existing).Error
		switch {
		case err == nil:
			errs.Add("name", "has already been taken")
			return errs
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("failed to check mention name: %w", err)
		}
		return tx.Create(&mention).Error
	})
	if err != nil {
		return nil, translateError(err)
	}
	return &mention, nil
}

// List returns all mentions by name
func (ms *MentionService) List(ctx context.Context) ([]models.Mention, error) {
	var mentions []models.Mention
	if err := ms.db.WithContext(ctx).Order("name ASC").Find(&mentions).Error; err != nil {
		return nil, translateError(err)
	}
	return mentions, nil
}

// Delete removes a mention. Mentions still linked to articles are kept and
// ErrConflict is returned.
func (ms *MentionService) Delete(ctx context.Context, id uuid.UUID) error {
	err := ms.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n, err := countMentionLinks(tx, id)
		if err != nil {
			return fmt.Errorf("failed to count mention links: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("%w: mention %s is linked to %d articles", ErrConflict, id, n)
		}
		res := tx.Delete(&models.Mention{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: mention %s", ErrNotFound, id)
		}
		return nil
	})
	return translateError(err)
}
