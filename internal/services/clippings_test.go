package services

import (
	"errors"
	"testing"

	"press-clippings/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func TestClippingService_Create(t *testing.T) {
	f := newFixture(t)
	economy := f.topic("Economía")

	a := f.article(economy, 2, models.ValuationPositive)
	b := f.article(economy, 4, models.ValuationNeutral)
	c := f.article(economy, 6, models.ValuationNegative)

	clipping := f.clipping(economy, 1, 10, a, b, c)

	assert.Len(t, clipping.Memberships, 3)
	require.NotNil(t, clipping.Topic)
	assert.Equal(t, "Economía", clipping.Topic.Name)

	m := clipping.Metrics.Data()
	assert.Equal(t, 3, m.NewsCount)
	assert.Equal(t, models.ValuationStats{
		Positive: models.Share{Count: 1, Percentage: 33.33},
		Neutral:  models.Share{Count: 1, Percentage: 33.33},
		Negative: models.Share{Count: 1, Percentage: 33.33},
		Total:    3,
	}, m.Valuation)
	require.NotNil(t, m.DateRange.From)
	assert.Equal(t, "2024-03-02", *m.DateRange.From)
	assert.Equal(t, "2024-03-06", *m.DateRange.To)
	assert.False(t, m.Crisis)
	assert.False(t, m.GeneratedAt.IsZero())

	f.assertInvariants()
}

func TestClippingService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	economy := f.topic("Economía")
	sports := f.topic("Deportes")

	inside := f.article(economy, 5, models.ValuationNeutral)
	wrongTopic := f.article(sports, 5, models.ValuationNeutral)
	outside := f.article(economy, 20, models.ValuationNeutral)
	missing := uuid.New()

	tests := []struct {
		name     string
		input    ClippingInput
		expected map[string][]string
	}{
		{
			name:  "Missing everything",
			input: ClippingInput{},
			expected: map[string][]string{
				"name":        {"can't be blank"},
				"start_date":  {"can't be blank"},
				"end_date":    {"can't be blank"},
				"topic_id":    {"can't be blank"},
				"creator_id":  {"can't be blank"},
				"article_ids": {"can't be blank"},
			},
		},
		{
			name: "End before start",
			input: ClippingInput{
				Name: "Backwards", StartDate: datePtr(10), EndDate: datePtr(1),
				TopicID: &economy.ID, CreatorID: &f.editor.ID, ArticleIDs: []uuid.UUID{inside.ID},
			},
			expected: map[string][]string{
				"end_date":    {"must be on or after start date"},
				"article_ids": {"must all be dated between 2024-03-10 and 2024-03-01"},
			},
		},
		{
			name: "Every membership violation is collected",
			input: ClippingInput{
				Name: "Broken", StartDate: datePtr(1), EndDate: datePtr(10),
				TopicID: &economy.ID, CreatorID: &f.editor.ID,
				ArticleIDs: []uuid.UUID{inside.ID, missing, wrongTopic.ID, outside.ID},
			},
			expected: map[string][]string{
				"article_ids": {
					"references non-existent articles: " + missing.String(),
					"must all belong to topic Economía",
					"must all be dated between 2024-03-01 and 2024-03-10",
				},
			},
		},
		{
			name: "Unknown topic and creator",
			input: ClippingInput{
				Name: "Ghost", StartDate: datePtr(1), EndDate: datePtr(10),
				TopicID: &missing, CreatorID: &missing, ArticleIDs: []uuid.UUID{inside.ID},
			},
			expected: map[string][]string{
				"topic_id":   {"does not exist"},
				"creator_id": {"does not exist"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clipping, err := f.clippings.Create(f.ctx, tt.input)
			assert.Nil(t, clipping)

			var verrs ValidationErrors
			require.True(t, errors.As(err, &verrs), "expected validation errors, got %v", err)
			assert.Equal(t, ValidationErrors(tt.expected), verrs)
		})
	}

	var count int64
	require.NoError(t, f.db.Model(&models.Clipping{}).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, f.db.Model(&models.ClippingArticle{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestClippingService_CreateRejectsDisabledTopic(t *testing.T) {
	f := newFixture(t)
	archived := f.topic("Archivo")
	a := f.article(archived, 3, models.ValuationNeutral)

	disabled := false
	_, err := f.topics.Update(f.ctx, archived.ID, nil, &disabled)
	require.NoError(t, err)

	_, err = f.clippings.Create(f.ctx, ClippingInput{
		Name: "Old", StartDate: datePtr(1), EndDate: datePtr(5),
		TopicID: &archived.ID, CreatorID: &f.editor.ID, ArticleIDs: []uuid.UUID{a.ID},
	})
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, []string{"is disabled"}, verrs["topic_id"])
}

func TestClippingService_RemoveLastMemberDeletesClipping(t *testing.T) {
	f := newFixture(t)
	economy := f.topic("Economía")
	a := f.article(economy, 2, models.ValuationPositive)
	b := f.article(economy, 3, models.ValuationNegative)
	clipping := f.clipping(economy, 1, 10, a, b)

	remaining, err := f.clippings.RemoveArticle(f.ctx, clipping.ID, a.ID)
	require.NoError(t, err)
	require.NotNil(t, remaining)
	assert.Equal(t, 1, remaining.Metrics.Data().NewsCount)
	assert.Equal(t, 1, remaining.Metrics.Data().Valuation.Negative.Count)

	remaining, err = f.clippings.RemoveArticle(f.ctx, clipping.ID, b.ID)
	require.NoError(t, err)
	assert.Nil(t, remaining)
	assert.False(t, f.clippingExists(clipping.ID))

	_, err = f.clippings.Get(f.ctx, clipping.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	events := f.publisher.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, Event{Type: EventClippingDeleted, ClippingID: clipping.ID}, events[len(events)-1])
}

func TestClippingService_RemoveArticleNotMember(t *testing.T) {
	f := newFixture(t)
	economy := f.topic("Economía")
	a := f.article(economy, 2, models.ValuationPositive)
	b := f.article(economy, 2, models.ValuationPositive)
	clipping := f.clipping(economy, 1, 10, a)

	_, err := f.clippings.RemoveArticle(f.ctx, clipping.ID, b.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, f.clippingExists(clipping.ID))
}

func TestClippingService_AddArticle(t *testing.T) {
	f := newFixture(t)
	economy := f.topic("Economía")
	sports := f.topic("Deportes")
	a := f.article(economy, 2, models.ValuationPositive)
	b := f.article(economy, 3, models.ValuationNegative)
	other := f.article(sports, 3, models.ValuationNegative)
	clipping := f.clipping(economy, 1, 10, a)

	t.Run("adds a fitting article and recomputes", func(t *testing.T) {
		updated, err := f.clippings.AddArticle(f.ctx, clipping.ID, b.ID)
		require.NoError(t, err)
		m := updated.Metrics.Data()
		assert.Equal(t, 2, m.NewsCount)
		assert.Equal(t, 50.0, m.Valuation.Negative.Percentage)
	})

	t.Run("rejects a duplicate pair", func(t *testing.T) {
		_, err := f.clippings.AddArticle(f.ctx, clipping.ID, b.ID)
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("rejects an article of another topic", func(t *testing.T) {
		_, err := f.clippings.AddArticle(f.ctx, clipping.ID, other.ID)
		var verrs ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Equal(t, []string{"must all belong to topic Economía"}, verrs["article_ids"])
	})

	t.Run("unknown clipping", func(t *testing.T) {
		_, err := f.clippings.AddArticle(f.ctx, uuid.New(), b.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	assert.Equal(t, 2, f.metricsOf(clipping.ID).NewsCount)
	f.assertInvariants()
}

func TestClippingService_Update(t *testing.T) {
	f := newFixture(t)
	economy := f.topic("Economía")
	politics := f.topic("Política")
	a := f.article(economy, 2, models.ValuationPositive)
	b := f.article(economy, 8, models.ValuationNegative)
	p := f.article(politics, 4, models.ValuationNeutral)
	clipping := f.clipping(economy, 1, 10, a, b)

	t.Run("retarget keeping members of the old topic is rejected", func(t *testing.T) {
		_, err := f.clippings.Update(f.ctx, clipping.ID, ClippingUpdate{TopicID: &politics.ID})
		var verrs ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Equal(t, []string{"must all belong to topic Política"}, verrs["article_ids"])
	})

	t.Run("narrowing the window past a member is rejected", func(t *testing.T) {
		_, err := f.clippings.Update(f.ctx, clipping.ID, ClippingUpdate{EndDate: datePtr(5)})
		var verrs ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Equal(t, []string{"must all be dated between 2024-03-01 and 2024-03-05"}, verrs["article_ids"])
	})

	t.Run("empty membership is rejected", func(t *testing.T) {
		_, err := f.clippings.Update(f.ctx, clipping.ID, ClippingUpdate{ArticleIDs: []uuid.UUID{}})
		var verrs ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Equal(t, []string{"can't be blank"}, verrs["article_ids"])
	})

	t.Run("rename and replace membership", func(t *testing.T) {
		name := "Semana económica"
		updated, err := f.clippings.Update(f.ctx, clipping.ID, ClippingUpdate{
			Name:       &name,
			ArticleIDs: []uuid.UUID{b.ID},
		})
		require.NoError(t, err)
		assert.Equal(t, name, updated.Name)
		assert.Equal(t, []uuid.UUID{b.ID}, updated.ArticleIDs())
		m := updated.Metrics.Data()
		assert.Equal(t, 1, m.NewsCount)
		assert.Equal(t, "2024-03-08", *m.DateRange.From)
	})

	t.Run("retarget with a new member set", func(t *testing.T) {
		updated, err := f.clippings.Update(f.ctx, clipping.ID, ClippingUpdate{
			TopicID:    &politics.ID,
			ArticleIDs: []uuid.UUID{p.ID},
		})
		require.NoError(t, err)
		assert.Equal(t, politics.ID, updated.TopicID)
		assert.Equal(t, []uuid.UUID{p.ID}, updated.ArticleIDs())
		assert.Equal(t, 1, updated.Metrics.Data().Valuation.Neutral.Count)
	})

	f.assertInvariants()
}

func TestClippingService_Delete(t *testing.T) {
	f := newFixture(t)
	economy := f.topic("Economía")
	a := f.article(economy, 2, models.ValuationPositive)
	clipping := f.clipping(economy, 1, 10, a)

	require.NoError(t, f.clippings.Delete(f.ctx, clipping.ID))
	assert.False(t, f.clippingExists(clipping.ID))
	assert.ErrorIs(t, f.clippings.Delete(f.ctx, clipping.ID), ErrNotFound)

	// the article itself survives
	_, err := f.articles.Get(f.ctx, a.ID)
	assert.NoError(t, err)
}

func TestClippingService_RecomputeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	economy := f.topic("Economía")
	a := f.article(economy, 2, models.ValuationPositive)
	b := f.article(economy, 3, models.ValuationNegative)
	clipping := f.clipping(economy, 1, 10, a, b)

	first, err := f.clippings.Recompute(f.ctx, clipping.ID)
	require.NoError(t, err)
	second, err := f.clippings.Recompute(f.ctx, clipping.ID)
	require.NoError(t, err)

	m1, m2 := first.Metrics.Data(), second.Metrics.Data()
	assert.True(t, m2.GeneratedAt.After(m1.GeneratedAt))
	m2.GeneratedAt = m1.GeneratedAt
	assert.Equal(t, m1, m2)

	n, err := f.clippings.RecomputeAll(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestClippingService_PublishesAfterCommit(t *testing.T) {
	f := newFixture(t)
	economy := f.topic("Economía")
	a := f.article(economy, 2, models.ValuationPositive)
	clipping := f.clipping(economy, 1, 10, a)

	events := f.publisher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventMetricsUpdated, events[0].Type)
	assert.Equal(t, clipping.ID, events[0].ClippingID)
	require.NotNil(t, events[0].Metrics)
	assert.Equal(t, 1, events[0].Metrics.NewsCount)

	// a rejected write publishes nothing
	_, err := f.clippings.AddArticle(f.ctx, clipping.ID, a.ID)
	require.Error(t, err)
	assert.Len(t, f.publisher.Events(), 1)
}

// recordLocks captures the row locks requested by queries, as "table:strength"
func recordLocks(t *testing.T, db *gorm.DB) func() []string {
	var locks []string
	err := db.Callback().Query().Before("gorm:query").Register("test:record_locks", func(tx *gorm.DB) {
		c, ok := tx.Statement.Clauses["FOR"]
		if !ok {
			return
		}
		if l, ok := c.Expression.(clause.Locking); ok {
			locks = append(locks, tx.Statement.Table+":"+l.Strength)
		}
	})
	require.NoError(t, err)
	return func() []string {
		out := locks
		locks = nil
		return out
	}
}

func TestClippingService_WritesLockRows(t *testing.T) {
	f := newFixture(t)
	economy := f.topic("Economía")
	a := f.article(economy, 2, models.ValuationPositive)
	b := f.article(economy, 3, models.ValuationNegative)
	clipping := f.clipping(economy, 1, 10, a)
	locks := recordLocks(t, f.db)

	tests := []struct {
		name  string
		write func() error
		want  []string
	}{
		{
			name: "add article",
			write: func() error {
				_, err := f.clippings.AddArticle(f.ctx, clipping.ID, b.ID)
				return err
			},
			want: []string{"clippings:UPDATE", "articles:SHARE"},
		},
		{
			name: "remove article",
			write: func() error {
				_, err := f.clippings.RemoveArticle(f.ctx, clipping.ID, b.ID)
				return err
			},
			want: []string{"clippings:UPDATE"},
		},
		{
			name: "update clipping",
			write: func() error {
				name := "Renamed"
				_, err := f.clippings.Update(f.ctx, clipping.ID, ClippingUpdate{Name: &name})
				return err
			},
			want: []string{"clippings:UPDATE", "articles:SHARE"},
		},
		{
			name: "edit member article",
			write: func() error {
				attrs := attributesOf(a)
				attrs.Media = "Diario Sur"
				_, err := f.articles.Update(f.ctx, a.ID, attrs)
				return err
			},
			want: []string{"clippings:UPDATE", "articles:UPDATE"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locks()
			require.NoError(t, tt.write())
			got := locks()
			require.NotEmpty(t, got)
			for _, want := range tt.want {
				assert.Contains(t, got, want)
			}
			// the clipping lock comes before any article lock
			assert.Equal(t, "clippings:UPDATE", got[0])
		})
	}

	assert.Equal(t, 1, f.metricsOf(clipping.ID).NewsCount)
	f.assertInvariants()
}
