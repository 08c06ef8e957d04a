package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"press-clippings/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// canonicalizeURL removes tracking parameters and other noise to create a canonical URL
func canonicalizeURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL // Return original if parsing fails
	}

	query := parsed.Query()

	// List of parameters to remove for canonicalization
	paramsToRemove := []string{
		"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content",
		"fbclid", "gclid", "msclkid", "ref", "_ga", "_gl", "mc_cid", "mc_eid",
	}

	for _, param := range paramsToRemove {
		query.Del(param)
	}

	parsed.RawQuery = query.Encode()
	return parsed.String()
}

// ArticleAttributes is the full editable state of an article. Update replaces
// every attribute, so callers send the article as they want it stored.
type ArticleAttributes struct {
	Title           string
	URL             string
	Date            time.Time
	Media           string
	Support         string
	Valuation       *models.Valuation
	PoliticalFactor string
	AudienceSize    *int64
	Quotation       *decimal.Decimal
	TopicID         *uuid.UUID
	MentionIDs      []uuid.UUID
}

// ArticlesService handles editorial changes to articles and propagates them
// to topic crisis flags and clipping metrics
type ArticlesService struct {
	*engine
}

// NewArticlesService creates a new articles service
func NewArticlesService(db *gorm.DB, opts Options) *ArticlesService {
	return &ArticlesService{engine: newEngine(db, opts)}
}

// Create stores a new article and re-evaluates its topic's crisis flag
func (as *ArticlesService) Create(ctx context.Context, attrs ArticleAttributes) (*models.Article, error) {
	var id uuid.UUID
	err := as.transact(ctx, func(tx *gorm.DB, changes *changeSet) error {
		errs, err := validateArticle(tx, attrs)
		if err != nil {
			return err
		}
		if err := errs.Err(); err != nil {
			return err
		}

		article := models.Article{}
		applyAttributes(&article, attrs)
		if err := tx.Omit("Topic", "MentionLinks").Create(&article).Error; err != nil {
			return fmt.Errorf("failed to create article: %w", err)
		}
		if err := replaceMentionLinks(tx, article.ID, attrs.MentionIDs); err != nil {
			return err
		}

		id = article.ID
		return as.checkCrisis(tx, changes, article.TopicID)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("created article", "article_id", id)
	return as.Get(ctx, id)
}

// Update replaces an article's attributes. Topic and date moves that would
// break a clipping containing the article are rejected; otherwise clippings
// containing the article are recomputed when a tracked attribute changed,
// and crisis flags follow valuation and topic changes.
func (as *ArticlesService) Update(ctx context.Context, id uuid.UUID, attrs ArticleAttributes) (*models.Article, error) {
	err := as.transact(ctx, func(tx *gorm.DB, changes *changeSet) error {
		if err := lockClippingsContaining(tx, id); err != nil {
			return fmt.Errorf("failed to lock clippings: %w", err)
		}
		before, err := lockArticle(tx, id)
		if err != nil {
			return fmt.Errorf("failed to load article: %w", err)
		}

		errs, err := validateArticle(tx, attrs)
		if err != nil {
			return err
		}
		guardErrs, err := GuardArticleChange(tx, before, attrs.TopicID, attrs.Date)
		if err != nil {
			return err
		}
		errs.Merge(guardErrs)
		if err := errs.Err(); err != nil {
			return err
		}

		after := *before
		after.MentionLinks = nil
		applyAttributes(&after, attrs)
		err = tx.Model(&after).
			Select("title", "url", "date", "media", "support", "valuation", "political_factor",
				"audience_size", "quotation", "topic_id", "updated_at").
			Updates(&after).Error
		if err != nil {
			return fmt.Errorf("failed to update article: %w", err)
		}

		mentionsChanged := !sameIDSet(before.MentionIDs(), attrs.MentionIDs)
		if mentionsChanged {
			if err := replaceMentionLinks(tx, id, attrs.MentionIDs); err != nil {
				return err
			}
		}

		if !sameValuation(before.Valuation, after.Valuation) || !sameTopic(before.TopicID, after.TopicID) {
			if err := as.checkCrisis(tx, changes, before.TopicID); err != nil {
				return err
			}
			if !sameTopic(before.TopicID, after.TopicID) {
				if err := as.checkCrisis(tx, changes, after.TopicID); err != nil {
					return err
				}
			}
		}

		if mentionsChanged || trackedChanged(before, &after) {
			ids, err := clippingIDsContaining(tx, id)
			if err != nil {
				return fmt.Errorf("failed to list clippings: %w", err)
			}
			changes.touch(ids...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return as.Get(ctx, id)
}

// Delete removes an article together with its mention and membership links.
// Clippings left without members are destroyed, the rest are recomputed.
func (as *ArticlesService) Delete(ctx context.Context, id uuid.UUID) error {
	return as.transact(ctx, func(tx *gorm.DB, changes *changeSet) error {
		if err := lockClippingsContaining(tx, id); err != nil {
			return fmt.Errorf("failed to lock clippings: %w", err)
		}
		article, err := lockArticle(tx, id)
		if err != nil {
			return fmt.Errorf("failed to load article: %w", err)
		}

		ids, err := clippingIDsContaining(tx, id)
		if err != nil {
			return fmt.Errorf("failed to list clippings: %w", err)
		}
		if err := tx.Where("article_id = ?", id).Delete(&models.ClippingArticle{}).Error; err != nil {
			return fmt.Errorf("failed to delete memberships: %w", err)
		}
		if err := tx.Where("article_id = ?", id).Delete(&models.ArticleMention{}).Error; err != nil {
			return fmt.Errorf("failed to delete mention links: %w", err)
		}
		if err := tx.Delete(article).Error; err != nil {
			return fmt.Errorf("failed to delete article: %w", err)
		}

		changes.touch(ids...)
		return as.checkCrisis(tx, changes, article.TopicID)
	})
}

// Get returns an article with its topic and mentions
func (as *ArticlesService) Get(ctx context.Context, id uuid.UUID) (*models.Article, error) {
	var article models.Article
	err := as.db.WithContext(ctx).
		Preload("Topic").
		Preload("MentionLinks.Mention").
		First(&article, "id = ?", id).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &article, nil
}

// ArticleFilter narrows List; zero fields are ignored
type ArticleFilter struct {
	TopicID *uuid.UUID
	From    *time.Time
	To      *time.Time
	Limit   int
	Offset  int
}

// List returns articles newest first
func (as *ArticlesService) List(ctx context.Context, f ArticleFilter) ([]models.Article, error) {
	q := as.db.WithContext(ctx).Preload("MentionLinks.Mention").Order("date DESC, created_at DESC")
	if f.TopicID != nil {
		q = q.Where("topic_id = ?", *f.TopicID)
	}
	if f.From != nil {
		q = q.Where("date >= ?", models.DateOnly(*f.From))
	}
	if f.To != nil {
		q = q.Where("date <= ?", models.DateOnly(*f.To))
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}

	var articles []models.Article
	if err := q.Find(&articles).Error; err != nil {
		return nil, translateError(err)
	}
	return articles, nil
}

func applyAttributes(a *models.Article, attrs ArticleAttributes) {
	a.Title = strings.TrimSpace(attrs.Title)
	a.URL = canonicalizeURL(attrs.URL)
	a.Date = models.DateOnly(attrs.Date)
	a.Media = strings.TrimSpace(attrs.Media)
	a.Support = strings.TrimSpace(attrs.Support)
	a.Valuation = attrs.Valuation
	a.PoliticalFactor = strings.TrimSpace(attrs.PoliticalFactor)
	a.AudienceSize = attrs.AudienceSize
	a.Quotation = attrs.Quotation
	a.TopicID = attrs.TopicID
}

func validateArticle(tx *gorm.DB, attrs ArticleAttributes) (ValidationErrors, error) {
	errs := ValidationErrors{}
	if strings.TrimSpace(attrs.Title) == "" {
		errs.Add("title", "can't be blank")
	}
	if attrs.Date.IsZero() {
		errs.Add("date", "can't be blank")
	}
	if attrs.Valuation != nil && !attrs.Valuation.Valid() {
		errs.Add("valuation", "is not included in the list")
	}
	if attrs.AudienceSize != nil && *attrs.AudienceSize < 0 {
		errs.Add("audience_size", "must be greater than or equal to 0")
	}
	if attrs.Quotation != nil && attrs.Quotation.IsNegative() {
		errs.Add("quotation", "must be greater than or equal to 0")
	}

	if attrs.TopicID != nil {
		var n int64
		if err := tx.Model(&models.Topic{}).Where("id = ?", *attrs.TopicID).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("failed to load topic: %w", err)
		}
		if n == 0 {
			errs.Add("topic_id", "does not exist")
		}
	}

	ids := uniqueIDs(attrs.MentionIDs)
	if len(ids) > 0 {
		var found []uuid.UUID
		if err := tx.Model(&models.Mention{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
			return nil, fmt.Errorf("failed to load mentions: %w", err)
		}
		known := make(map[uuid.UUID]bool, len(found))
		for _, id := range found {
			known[id] = true
		}
		var missing []string
		for _, id := range ids {
			if !known[id] {
				missing = append(missing, id.String())
			}
		}
		if len(missing) > 0 {
			errs.Add("mention_ids", "references non-existent mentions: "+strings.Join(missing, ", "))
		}
	}
	return errs, nil
}

func replaceMentionLinks(tx *gorm.DB, articleID uuid.UUID, mentionIDs []uuid.UUID) error {
	if err := tx.Where("article_id = ?", articleID).Delete(&models.ArticleMention{}).Error; err != nil {
		return fmt.Errorf("failed to clear mention links: %w", err)
	}
	ids := uniqueIDs(mentionIDs)
	if len(ids) == 0 {
		return nil
	}
	links := make([]models.ArticleMention, 0, len(ids))
	for _, id := range ids {
		links = append(links, models.ArticleMention{ArticleID: articleID, MentionID: id})
	}
	if err := tx.Omit("Mention").Create(&links).Error; err != nil {
		return fmt.Errorf("failed to link mentions: %w", err)
	}
	return nil
}

// trackedChanged reports whether any attribute feeding clipping metrics changed
func trackedChanged(before, after *models.Article) bool {
	return !sameValuation(before.Valuation, after.Valuation) ||
		before.Media != after.Media ||
		before.Support != after.Support ||
		!models.DateOnly(before.Date).Equal(models.DateOnly(after.Date)) ||
		!sameInt(before.AudienceSize, after.AudienceSize) ||
		!sameDecimal(before.Quotation, after.Quotation) ||
		!sameTopic(before.TopicID, after.TopicID)
}

func sameValuation(a, b *models.Valuation) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sameInt(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func sameDecimal(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func sameIDSet(a, b []uuid.UUID) bool {
	x, y := uniqueIDs(a), uniqueIDs(b)
	if len(x) != len(y) {
		return false
	}
	set := make(map[uuid.UUID]bool, len(x))
	for _, id := range x {
		set[id] = true
	}
	for _, id := range y {
		if !set[id] {
			return false
		}
	}
	return true
}
