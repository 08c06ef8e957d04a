package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"press-clippings/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ClippingInput carries the attributes of a new clipping
type ClippingInput struct {
	Name       string
	StartDate  *time.Time
	EndDate    *time.Time
	TopicID    *uuid.UUID
	CreatorID  *uuid.UUID
	ReviewerID *uuid.UUID
	ArticleIDs []uuid.UUID
}

// ClippingUpdate carries changed attributes; nil fields are left untouched.
// A nil ArticleIDs keeps the current membership.
type ClippingUpdate struct {
	Name       *string
	StartDate  *time.Time
	EndDate    *time.Time
	TopicID    *uuid.UUID
	ReviewerID *uuid.UUID
	ArticleIDs []uuid.UUID
}

// ClippingService creates and edits clippings and keeps their metrics fresh
type ClippingService struct {
	*engine
}

// NewClippingService creates a new clipping service
func NewClippingService(db *gorm.DB, opts Options) *ClippingService {
	return &ClippingService{engine: newEngine(db, opts)}
}

// Create validates and persists a clipping with its initial members, and
// computes its metrics in the same transaction
func (cs *ClippingService) Create(ctx context.Context, in ClippingInput) (*models.Clipping, error) {
	var id uuid.UUID
	err := cs.transact(ctx, func(tx *gorm.DB, changes *changeSet) error {
		errs := ValidationErrors{}
		if strings.TrimSpace(in.Name) == "" {
			errs.Add("name", "can't be blank")
		}
		if in.CreatorID == nil {
			errs.Add("creator_id", "can't be blank")
		} else if err := requireUser(tx, *in.CreatorID, "creator_id", errs); err != nil {
			return err
		}
		if in.ReviewerID != nil {
			if err := requireUser(tx, *in.ReviewerID, "reviewer_id", errs); err != nil {
				return err
			}
		}

		topic, err := resolveTopic(tx, in.TopicID, true, errs)
		if err != nil {
			return err
		}
		validateWindow(in.StartDate, in.EndDate, errs)

		if len(in.ArticleIDs) == 0 {
			errs.Add("article_ids", "can't be blank")
		} else {
			memberErrs, err := ValidateMembership(tx, MembershipScope{Topic: topic, StartDate: in.StartDate, EndDate: in.EndDate}, in.ArticleIDs)
			if err != nil {
				return err
			}
			errs.Merge(memberErrs)
		}
		if err := errs.Err(); err != nil {
			return err
		}

		clipping := models.Clipping{
			Name:       strings.TrimSpace(in.Name),
			StartDate:  models.DateOnly(*in.StartDate),
			EndDate:    models.DateOnly(*in.EndDate),
			TopicID:    topic.ID,
			CreatorID:  *in.CreatorID,
			ReviewerID: in.ReviewerID,
		}
		if err := tx.Omit("Topic", "Memberships").Create(&clipping).Error; err != nil {
			return fmt.Errorf("failed to create clipping: %w", err)
		}
		if err := addMembers(tx, clipping.ID, uniqueIDs(in.ArticleIDs)); err != nil {
			return err
		}

		id = clipping.ID
		changes.touch(clipping.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("created clipping", "clipping_id", id, "articles", len(in.ArticleIDs))
	return cs.Get(ctx, id)
}

// Update applies changes to a clipping. The resulting membership is checked
// against the resulting topic and window, so retargeting or narrowing a
// clipping can never strand members that no longer fit.
func (cs *ClippingService) Update(ctx context.Context, id uuid.UUID, in ClippingUpdate) (*models.Clipping, error) {
	err := cs.transact(ctx, func(tx *gorm.DB, changes *changeSet) error {
		clipping, err := lockClipping(tx, id)
		if err != nil {
			return fmt.Errorf("failed to load clipping: %w", err)
		}

		errs := ValidationErrors{}
		if in.Name != nil {
			if strings.TrimSpace(*in.Name) == "" {
				errs.Add("name", "can't be blank")
			}
			clipping.Name = strings.TrimSpace(*in.Name)
		}
		if in.StartDate != nil {
			clipping.StartDate = models.DateOnly(*in.StartDate)
		}
		if in.EndDate != nil {
			clipping.EndDate = models.DateOnly(*in.EndDate)
		}
		if in.ReviewerID != nil {
			if err := requireUser(tx, *in.ReviewerID, "reviewer_id", errs); err != nil {
				return err
			}
			clipping.ReviewerID = in.ReviewerID
		}

		retarget := in.TopicID != nil && *in.TopicID != clipping.TopicID
		topicID := clipping.TopicID
		if in.TopicID != nil {
			topicID = *in.TopicID
		}
		topic, err := resolveTopic(tx, &topicID, retarget, errs)
		if err != nil {
			return err
		}
		validateWindow(&clipping.StartDate, &clipping.EndDate, errs)

		current, err := memberIDs(tx, id)
		if err != nil {
			return fmt.Errorf("failed to load members: %w", err)
		}
		wanted := current
		if in.ArticleIDs != nil {
			wanted = uniqueIDs(in.ArticleIDs)
			if len(wanted) == 0 {
				errs.Add("article_ids", "can't be blank")
			}
		}
		if len(wanted) > 0 {
			memberErrs, err := ValidateMembership(tx, MembershipScope{Topic: topic, StartDate: &clipping.StartDate, EndDate: &clipping.EndDate}, wanted)
			if err != nil {
				return err
			}
			errs.Merge(memberErrs)
		}
		if err := errs.Err(); err != nil {
			return err
		}

		clipping.TopicID = topic.ID
		err = tx.Model(clipping).
			Select("name", "start_date", "end_date", "topic_id", "reviewer_id", "updated_at").
			Updates(clipping).Error
		if err != nil {
			return fmt.Errorf("failed to update clipping: %w", err)
		}

		added, removed := diffIDs(current, wanted)
		if len(removed) > 0 {
			if err := tx.Where("clipping_id = ? AND article_id IN ?", id, removed).Delete(&models.ClippingArticle{}).Error; err != nil {
				return fmt.Errorf("failed to remove members: %w", err)
			}
		}
		if err := addMembers(tx, id, added); err != nil {
			return err
		}

		changes.touch(id)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cs.Get(ctx, id)
}

// AddArticle links an article to a clipping after checking it fits the
// clipping's topic and window
func (cs *ClippingService) AddArticle(ctx context.Context, clippingID, articleID uuid.UUID) (*models.Clipping, error) {
	err := cs.transact(ctx, func(tx *gorm.DB, changes *changeSet) error {
		clipping, err := lockClipping(tx, clippingID)
		if err != nil {
			return fmt.Errorf("failed to load clipping: %w", err)
		}
		var topic models.Topic
		if err := tx.First(&topic, "id = ?", clipping.TopicID).Error; err != nil {
			return fmt.Errorf("failed to load topic: %w", err)
		}
		clipping.Topic = &topic

		var n int64
		err = tx.Model(&models.ClippingArticle{}).
			Where("clipping_id = ? AND article_id = ?", clippingID, articleID).
			Count(&n).Error
		if err != nil {
			return fmt.Errorf("failed to check membership: %w", err)
		}
		if n > 0 {
			return fmt.Errorf("%w: article %s already belongs to clipping %s", ErrConflict, articleID, clippingID)
		}

		errs, err := ValidateMembership(tx, MembershipScope{Topic: clipping.Topic, StartDate: &clipping.StartDate, EndDate: &clipping.EndDate}, []uuid.UUID{articleID})
		if err != nil {
			return err
		}
		if err := errs.Err(); err != nil {
			return err
		}

		if err := addMembers(tx, clippingID, []uuid.UUID{articleID}); err != nil {
			return err
		}
		changes.touch(clippingID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cs.Get(ctx, clippingID)
}

// RemoveArticle unlinks an article from a clipping. Removing the last member
// destroys the clipping, in which case the returned clipping is nil.
func (cs *ClippingService) RemoveArticle(ctx context.Context, clippingID, articleID uuid.UUID) (*models.Clipping, error) {
	err := cs.transact(ctx, func(tx *gorm.DB, changes *changeSet) error {
		if _, err := lockClipping(tx, clippingID); err != nil {
			return fmt.Errorf("failed to load clipping: %w", err)
		}
		res := tx.Where("clipping_id = ? AND article_id = ?", clippingID, articleID).Delete(&models.ClippingArticle{})
		if res.Error != nil {
			return fmt.Errorf("failed to remove member: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: article %s is not a member of clipping %s", ErrNotFound, articleID, clippingID)
		}
		changes.touch(clippingID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	clipping, err := cs.Get(ctx, clippingID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return clipping, err
}

// Delete destroys a clipping and its membership links
func (cs *ClippingService) Delete(ctx context.Context, id uuid.UUID) error {
	return cs.transact(ctx, func(tx *gorm.DB, changes *changeSet) error {
		if err := tx.Where("clipping_id = ?", id).Delete(&models.ClippingArticle{}).Error; err != nil {
			return fmt.Errorf("failed to delete members: %w", err)
		}
		res := tx.Delete(&models.Clipping{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete clipping: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: clipping %s", ErrNotFound, id)
		}
		changes.events = append(changes.events, Event{Type: EventClippingDeleted, ClippingID: id})
		return nil
	})
}

// Get returns a clipping with its topic and membership
func (cs *ClippingService) Get(ctx context.Context, id uuid.UUID) (*models.Clipping, error) {
	var clipping models.Clipping
	err := cs.db.WithContext(ctx).
		Preload("Topic").
		Preload("Memberships").
		First(&clipping, "id = ?", id).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &clipping, nil
}

// List returns clippings, newest window first, optionally limited to a topic
func (cs *ClippingService) List(ctx context.Context, topicID *uuid.UUID) ([]models.Clipping, error) {
	q := cs.db.WithContext(ctx).Preload("Topic").Order("start_date DESC, created_at DESC")
	if topicID != nil {
		q = q.Where("topic_id = ?", *topicID)
	}
	var clippings []models.Clipping
	if err := q.Find(&clippings).Error; err != nil {
		return nil, translateError(err)
	}
	return clippings, nil
}

// Members returns the clipping's member articles ordered by date
func (cs *ClippingService) Members(ctx context.Context, id uuid.UUID) ([]models.Article, error) {
	if _, err := cs.Get(ctx, id); err != nil {
		return nil, err
	}
	articles, err := memberArticles(cs.db.WithContext(ctx), id)
	return articles, translateError(err)
}

// Metrics returns the cached metrics of a clipping as stored
func (cs *ClippingService) Metrics(ctx context.Context, id uuid.UUID) (*models.ClippingMetrics, error) {
	clipping, err := cs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	m := clipping.Metrics.Data()
	return &m, nil
}

// Recompute rewrites a clipping's metrics from its current membership
func (cs *ClippingService) Recompute(ctx context.Context, id uuid.UUID) (*models.Clipping, error) {
	err := cs.transact(ctx, func(tx *gorm.DB, changes *changeSet) error {
		if err := tx.Select("id").First(&models.Clipping{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to load clipping: %w", err)
		}
		changes.touch(id)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cs.Get(ctx, id)
}

// RecomputeAll rewrites the metrics of every clipping, one transaction per
// clipping. It returns how many clippings were processed.
func (cs *ClippingService) RecomputeAll(ctx context.Context) (int, error) {
	var ids []uuid.UUID
	if err := cs.db.WithContext(ctx).Model(&models.Clipping{}).Pluck("id", &ids).Error; err != nil {
		return 0, translateError(err)
	}

	for i, id := range ids {
		if _, err := cs.Recompute(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
			return i, fmt.Errorf("failed to recompute clipping %s: %w", id, err)
		}
	}
	return len(ids), nil
}

func addMembers(tx *gorm.DB, clippingID uuid.UUID, articleIDs []uuid.UUID) error {
	if len(articleIDs) == 0 {
		return nil
	}
	links := make([]models.ClippingArticle, 0, len(articleIDs))
	for _, articleID := range articleIDs {
		links = append(links, models.ClippingArticle{ClippingID: clippingID, ArticleID: articleID})
	}
	if err := tx.Omit("Article").Create(&links).Error; err != nil {
		return fmt.Errorf("failed to add members: %w", err)
	}
	return nil
}

func diffIDs(current, wanted []uuid.UUID) (added, removed []uuid.UUID) {
	have := make(map[uuid.UUID]bool, len(current))
	for _, id := range current {
		have[id] = true
	}
	want := make(map[uuid.UUID]bool, len(wanted))
	for _, id := range wanted {
		want[id] = true
		if !have[id] {
			added = append(added, id)
		}
	}
	for _, id := range current {
		if !want[id] {
			removed = append(removed, id)
		}
	}
	return added, removed
}

func validateWindow(start, end *time.Time, errs ValidationErrors) {
	if start == nil || start.IsZero() {
		errs.Add("start_date", "can't be blank")
	}
	if end == nil || end.IsZero() {
		errs.Add("end_date", "can't be blank")
	}
	if start != nil && end != nil && !start.IsZero() && !end.IsZero() &&
		models.DateOnly(*end).Before(models.DateOnly(*start)) {
		errs.Add("end_date", "must be on or after start date")
	}
}

// resolveTopic loads the clipping topic. requireEnabled rejects disabled
// topics, which only new choices of topic need to respect.
func resolveTopic(tx *gorm.DB, id *uuid.UUID, requireEnabled bool, errs ValidationErrors) (*models.Topic, error) {
	if id == nil {
		errs.Add("topic_id", "can't be blank")
		return nil, nil
	}
	var topic models.Topic
	err := tx.First(&topic, "id = ?", *id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		errs.Add("topic_id", "does not exist")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load topic: %w", err)
	}
	if requireEnabled && !topic.Enabled {
		errs.Add("topic_id", "is disabled")
	}
	return &topic, nil
}

func requireUser(tx *gorm.DB, id uuid.UUID, field string, errs ValidationErrors) error {
	var n int64
	if err := tx.Model(&models.User{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if n == 0 {
		errs.Add(field, "does not exist")
	}
	return nil
}
