package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"press-clippings/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// every pooled connection to :memory: would open its own empty database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}
	return db
}

// fakeClock advances one second per reading
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

// recordingPublisher keeps every published event
type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

// fixture wires every service against one test database
type fixture struct {
	t         *testing.T
	ctx       context.Context
	db        *gorm.DB
	clock     *fakeClock
	publisher *recordingPublisher
	clippings *ClippingService
	articles  *ArticlesService
	topics    *TopicService
	mentions  *MentionService
	editor    models.User
}

const defaultTopicName = "General"

func newFixture(t *testing.T) *fixture {
	db := setupTestDB(t)
	clock := newFakeClock()
	pub := &recordingPublisher{}
	opts := Options{DefaultTopic: defaultTopicName, Now: clock.Now, Publisher: pub}

	editor := models.User{Email: "editor@example.com", Name: "Editor"}
	require.NoError(t, db.Create(&editor).Error)

	return &fixture{
		t:         t,
		ctx:       context.Background(),
		db:        db,
		clock:     clock,
		publisher: pub,
		clippings: NewClippingService(db, opts),
		articles:  NewArticlesService(db, opts),
		topics:    NewTopicService(db, opts),
		mentions:  NewMentionService(db),
		editor:    editor,
	}
}

func day(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }

func datePtr(d int) *time.Time {
	t := day(d)
	return &t
}

func valuationPtr(v models.Valuation) *models.Valuation { return &v }

func int64Ptr(n int64) *int64 { return &n }

func decimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func (f *fixture) topic(name string) *models.Topic {
	topic, err := f.topics.Create(f.ctx, name, true)
	require.NoError(f.t, err)
	return topic
}

func (f *fixture) article(topic *models.Topic, d int, v models.Valuation) *models.Article {
	attrs := ArticleAttributes{
		Title:     "Article " + uuid.NewString()[:8],
		Date:      day(d),
		Media:     "La Voz",
		Support:   "digital",
		Valuation: valuationPtr(v),
	}
	if topic != nil {
		attrs.TopicID = &topic.ID
	}
	a, err := f.articles.Create(f.ctx, attrs)
	require.NoError(f.t, err)
	return a
}

func (f *fixture) clipping(topic *models.Topic, from, to int, articles ...*models.Article) *models.Clipping {
	ids := make([]uuid.UUID, 0, len(articles))
	for _, a := range articles {
		ids = append(ids, a.ID)
	}
	c, err := f.clippings.Create(f.ctx, ClippingInput{
		Name:       "Clipping " + topic.Name,
		StartDate:  datePtr(from),
		EndDate:    datePtr(to),
		TopicID:    &topic.ID,
		CreatorID:  &f.editor.ID,
		ArticleIDs: ids,
	})
	require.NoError(f.t, err)
	return c
}

// attributesOf turns a stored article back into editable attributes
func attributesOf(a *models.Article) ArticleAttributes {
	return ArticleAttributes{
		Title:           a.Title,
		URL:             a.URL,
		Date:            a.Date,
		Media:           a.Media,
		Support:         a.Support,
		Valuation:       a.Valuation,
		PoliticalFactor: a.PoliticalFactor,
		AudienceSize:    a.AudienceSize,
		Quotation:       a.Quotation,
		TopicID:         a.TopicID,
		MentionIDs:      a.MentionIDs(),
	}
}

func (f *fixture) metricsOf(id uuid.UUID) models.ClippingMetrics {
	m, err := f.clippings.Metrics(f.ctx, id)
	require.NoError(f.t, err)
	return *m
}

func (f *fixture) clippingExists(id uuid.UUID) bool {
	var n int64
	require.NoError(f.t, f.db.Model(&models.Clipping{}).Where("id = ?", id).Count(&n).Error)
	return n > 0
}

// assertInvariants checks that every stored clipping has members and that
// each member fits the clipping's topic and window
func (f *fixture) assertInvariants() {
	var clippings []models.Clipping
	require.NoError(f.t, f.db.Find(&clippings).Error)
	for _, c := range clippings {
		members, err := memberArticles(f.db, c.ID)
		require.NoError(f.t, err)
		require.NotEmpty(f.t, members, "clipping %s has no members", c.Name)
		scope := MembershipScope{StartDate: &c.StartDate, EndDate: &c.EndDate}
		for _, a := range members {
			require.NotNil(f.t, a.TopicID)
			require.Equal(f.t, c.TopicID, *a.TopicID, "member topic of %s", c.Name)
			require.True(f.t, scope.Contains(a.Date), "member date of %s", c.Name)
		}
		require.Equal(f.t, len(members), c.Metrics.Data().NewsCount)
	}
}
