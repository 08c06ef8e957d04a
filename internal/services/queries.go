package services

import (
	"press-clippings/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Explicit cross-entity queries. Topics, articles and clippings only hold ids
// of each other; every traversal goes through one of these functions.

// lockClipping loads a clipping under SELECT ... FOR UPDATE. Every write
// that changes or recomputes a clipping's membership holds this lock, so
// member reads that follow it see all previously committed links.
func lockClipping(tx *gorm.DB, id uuid.UUID) (*models.Clipping, error) {
	var clipping models.Clipping
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&clipping, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &clipping, nil
}

// lockClippingsContaining locks, in id order, every clipping that holds
// articleID. Article writers take these before the article row itself, the
// same order membership writers use.
func lockClippingsContaining(tx *gorm.DB, articleID uuid.UUID) error {
	var clippings []models.Clipping
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN (?)", membershipsOf(tx, articleID)).
		Order("id").
		Find(&clippings).Error
}

// lockArticle loads an article under SELECT ... FOR UPDATE, waiting out any
// membership validation holding it
func lockArticle(tx *gorm.DB, id uuid.UUID) (*models.Article, error) {
	var article models.Article
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("MentionLinks").
		First(&article, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &article, nil
}

// membershipsOf selects the clipping ids that contain articleID
func membershipsOf(tx *gorm.DB, articleID uuid.UUID) *gorm.DB {
	return tx.Model(&models.ClippingArticle{}).Select("clipping_id").Where("article_id = ?", articleID)
}

// findArticles loads the articles with the given ids, in no particular order.
// Rows are share-locked so their topic and date cannot change before the
// membership being validated commits.
func findArticles(tx *gorm.DB, ids []uuid.UUID) ([]models.Article, error) {
	var articles []models.Article
	if len(ids) == 0 {
		return articles, nil
	}
	err := tx.Clauses(clause.Locking{Strength: "SHARE"}).Where("id IN ?", ids).Find(&articles).Error
	return articles, err
}

// memberArticles loads a clipping's current members with their mentions
func memberArticles(tx *gorm.DB, clippingID uuid.UUID) ([]models.Article, error) {
	var articles []models.Article
	err := tx.Preload("MentionLinks.Mention").
		Where("id IN (?)", tx.Model(&models.ClippingArticle{}).Select("article_id").Where("clipping_id = ?", clippingID)).
		Order("date ASC").
		Find(&articles).Error
	return articles, err
}

// memberIDs returns the article ids linked to a clipping
func memberIDs(tx *gorm.DB, clippingID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := tx.Model(&models.ClippingArticle{}).Where("clipping_id = ?", clippingID).Pluck("article_id", &ids).Error
	return ids, err
}

// countMembers returns how many articles a clipping currently holds
func countMembers(tx *gorm.DB, clippingID uuid.UUID) (int64, error) {
	var n int64
	err := tx.Model(&models.ClippingArticle{}).Where("clipping_id = ?", clippingID).Count(&n).Error
	return n, err
}

// clippingsContaining loads every clipping that has articleID as a member
func clippingsContaining(tx *gorm.DB, articleID uuid.UUID) ([]models.Clipping, error) {
	var clippings []models.Clipping
	err := tx.Where("id IN (?)", membershipsOf(tx, articleID)).Find(&clippings).Error
	return clippings, err
}

// clippingIDsContaining returns the ids of the clippings that have articleID as a member
func clippingIDsContaining(tx *gorm.DB, articleID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := membershipsOf(tx, articleID).Pluck("clipping_id", &ids).Error
	return ids, err
}

// countTopicClippingsContaining counts clippings scoped to topicID that contain articleID
func countTopicClippingsContaining(tx *gorm.DB, topicID, articleID uuid.UUID) (int64, error) {
	var n int64
	err := tx.Model(&models.Clipping{}).
		Where("topic_id = ? AND id IN (?)", topicID, membershipsOf(tx, articleID)).
		Count(&n).Error
	return n, err
}

// clippingIDsForTopic returns the ids of the clippings scoped to topicID
func clippingIDsForTopic(tx *gorm.DB, topicID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := tx.Model(&models.Clipping{}).Where("topic_id = ?", topicID).Pluck("id", &ids).Error
	return ids, err
}

// countNegativeArticles counts the topic's articles valued negative
func countNegativeArticles(tx *gorm.DB, topicID uuid.UUID) (int64, error) {
	var n int64
	err := tx.Model(&models.Article{}).
		Where("topic_id = ? AND valuation = ?", topicID, models.ValuationNegative).
		Count(&n).Error
	return n, err
}

// countTopicArticles counts the articles assigned to topicID
func countTopicArticles(tx *gorm.DB, topicID uuid.UUID) (int64, error) {
	var n int64
	err := tx.Model(&models.Article{}).Where("topic_id = ?", topicID).Count(&n).Error
	return n, err
}

// countMentionLinks counts the articles linked to mentionID
func countMentionLinks(tx *gorm.DB, mentionID uuid.UUID) (int64, error) {
	var n int64
	err := tx.Model(&models.ArticleMention{}).Where("mention_id = ?", mentionID).Count(&n).Error
	return n, err
}
