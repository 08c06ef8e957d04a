package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"press-clippings/internal/auth"
	"press-clippings/internal/models"
	"press-clippings/internal/report"
	"press-clippings/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// MockGenerator is a mock implementation of the report generator
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, req report.Request) (*report.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*report.Result), args.Error(1)
}

type testAPI struct {
	t         *testing.T
	router    *gin.Engine
	db        *gorm.DB
	generator *MockGenerator
	editor    models.User
	token     string
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db))
	return db
}

func newTestAPI(t *testing.T, withAuth bool) *testAPI {
	gin.SetMode(gin.TestMode)
	db := setupTestDB(t)

	editor := models.User{Email: "editor@example.com", Name: "Editor"}
	require.NoError(t, db.Create(&editor).Error)

	opts := services.Options{DefaultTopic: "General"}
	generator := &MockGenerator{}
	deps := Dependencies{
		DB:        db,
		Clippings: services.NewClippingService(db, opts),
		Articles:  services.NewArticlesService(db, opts),
		Topics:    services.NewTopicService(db, opts),
		Mentions:  services.NewMentionService(db),
		Reports:   generator,
	}

	api := &testAPI{t: t, db: db, generator: generator, editor: editor}
	if withAuth {
		verifier := auth.NewJWTVerifier("test-secret")
		token, err := verifier.Issue(editor.ID, time.Hour)
		require.NoError(t, err)
		deps.Verifier = verifier
		api.token = token
	}
	api.router = NewRouter(deps)
	return api
}

func (a *testAPI) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		require.NoError(a.t, err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testAPI) decode(w *httptest.ResponseRecorder, v interface{}) {
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func (a *testAPI) createTopic(name string) models.Topic {
	w := a.do(http.MethodPost, "/api/topics", gin.H{"name": name})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	var topic models.Topic
	a.decode(w, &topic)
	return topic
}

func (a *testAPI) createArticle(topicID uuid.UUID, date, valuation string) models.Article {
	w := a.do(http.MethodPost, "/api/articles", gin.H{
		"title":     "Article " + date,
		"date":      date,
		"media":     "La Voz",
		"valuation": valuation,
		"topic_id":  topicID,
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	var article models.Article
	a.decode(w, &article)
	return article
}

func (a *testAPI) createClipping(topicID uuid.UUID, articleIDs ...uuid.UUID) models.Clipping {
	w := a.do(http.MethodPost, "/api/clippings", gin.H{
		"name":        "Weekly",
		"start_date":  "2024-03-01",
		"end_date":    "2024-03-10",
		"topic_id":    topicID,
		"creator_id":  a.editor.ID,
		"article_ids": articleIDs,
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())
	var clipping models.Clipping
	a.decode(w, &clipping)
	return clipping
}

func TestHealthCheck(t *testing.T) {
	api := newTestAPI(t, false)
	w := api.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestClippingLifecycle(t *testing.T) {
	api := newTestAPI(t, false)
	topic := api.createTopic("Economía")
	a := api.createArticle(topic.ID, "2024-03-02", "positive")
	b := api.createArticle(topic.ID, "2024-03-04", "negative")

	clipping := api.createClipping(topic.ID, a.ID, b.ID)
	m := clipping.Metrics.Data()
	assert.Equal(t, 2, m.NewsCount)
	assert.Equal(t, 50.0, m.Valuation.Positive.Percentage)

	w := api.do(http.MethodGet, "/api/clippings/"+clipping.ID.String()+"/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var raw map[string]interface{}
	api.decode(w, &raw)
	for _, key := range []string{"generated_at", "date_range", "news_count", "valuation", "media_stats",
		"support_stats", "mention_stats", "audience", "quotation", "crisis"} {
		assert.Contains(t, raw, key)
	}

	w = api.do(http.MethodPost, "/api/clippings/"+clipping.ID.String()+"/articles/"+a.ID.String(), nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(http.MethodDelete, "/api/clippings/"+clipping.ID.String()+"/articles/"+a.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodDelete, "/api/clippings/"+clipping.ID.String()+"/articles/"+b.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deleted":true,"clipping_id":"`+clipping.ID.String()+`"}`, w.Body.String())

	w = api.do(http.MethodGet, "/api/clippings/"+clipping.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateClippingValidationShape(t *testing.T) {
	api := newTestAPI(t, false)
	economy := api.createTopic("Economía")
	sports := api.createTopic("Deportes")
	other := api.createArticle(sports.ID, "2024-03-02", "neutral")

	w := api.do(http.MethodPost, "/api/clippings", gin.H{
		"name":        "Mixed",
		"start_date":  "2024-03-01",
		"end_date":    "not-a-date",
		"topic_id":    economy.ID,
		"creator_id":  api.editor.ID,
		"article_ids": []uuid.UUID{other.ID},
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"errors":{"end_date":["is not a valid date"]}}`, w.Body.String())

	w = api.do(http.MethodPost, "/api/clippings", gin.H{
		"name":        "Mixed",
		"start_date":  "2024-03-01",
		"end_date":    "2024-03-10",
		"topic_id":    economy.ID,
		"creator_id":  api.editor.ID,
		"article_ids": []uuid.UUID{other.ID},
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"errors":{"article_ids":["must all belong to topic Economía"]}}`, w.Body.String())

	var count int64
	require.NoError(t, api.db.Model(&models.Clipping{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestArticleTopicMoveRejected(t *testing.T) {
	api := newTestAPI(t, false)
	economy := api.createTopic("Economía")
	politics := api.createTopic("Política")
	a := api.createArticle(economy.ID, "2024-03-02", "neutral")
	api.createClipping(economy.ID, a.ID)

	w := api.do(http.MethodPut, "/api/articles/"+a.ID.String(), gin.H{
		"title":    a.Title,
		"date":     "2024-03-02",
		"topic_id": politics.ID,
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var body struct {
		Errors map[string][]string `json:"errors"`
	}
	api.decode(w, &body)
	assert.Len(t, body.Errors["topic_id"], 1)
}

func TestBadRequests(t *testing.T) {
	api := newTestAPI(t, false)

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
	}{
		{"Malformed id", http.MethodGet, "/api/clippings/nope", nil, http.StatusBadRequest},
		{"Unknown clipping", http.MethodGet, "/api/clippings/" + uuid.NewString(), nil, http.StatusNotFound},
		{"Malformed body", http.MethodPost, "/api/topics", "not an object", http.StatusBadRequest},
		{"Bad topic filter", http.MethodGet, "/api/articles?topic_id=x", nil, http.StatusBadRequest},
		{"Unknown article delete", http.MethodDelete, "/api/articles/" + uuid.NewString(), nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := api.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}
}

func TestTopicDeleteConflict(t *testing.T) {
	api := newTestAPI(t, false)
	topic := api.createTopic("Economía")
	api.createArticle(topic.ID, "2024-03-02", "neutral")

	w := api.do(http.MethodDelete, "/api/topics/"+topic.ID.String(), nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAuthRequired(t *testing.T) {
	api := newTestAPI(t, true)
	topic := api.createTopic("Economía")
	a := api.createArticle(topic.ID, "2024-03-02", "neutral")

	// creator comes from the token
	w := api.do(http.MethodPost, "/api/clippings", gin.H{
		"name":        "Mine",
		"start_date":  "2024-03-01",
		"end_date":    "2024-03-10",
		"topic_id":    topic.ID,
		"article_ids": []uuid.UUID{a.ID},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var clipping models.Clipping
	api.decode(w, &clipping)
	assert.Equal(t, api.editor.ID, clipping.CreatorID)

	api.token = ""
	w = api.do(http.MethodGet, "/api/topics", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReports(t *testing.T) {
	api := newTestAPI(t, false)
	topic := api.createTopic("Economía")
	a := api.createArticle(topic.ID, "2024-03-02", "negative")
	clipping := api.createClipping(topic.ID, a.ID)
	base := "/api/clippings/" + clipping.ID.String()

	w := api.do(http.MethodGet, base+"/report", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, w.Body.String(), "# Weekly")

	w = api.do(http.MethodGet, base+"/report.html", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<h1")

	w = api.do(http.MethodGet, base+"/export.xlsx", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Weekly.xlsx"`, w.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))

	api.generator.On("Generate", mock.Anything, mock.MatchedBy(func(req report.Request) bool {
		return req.Clipping.ID == clipping.ID && req.Topic == "Economía" && req.Metrics.NewsCount == 1
	})).Return(&report.Result{StatusCode: http.StatusOK, ContentType: "application/pdf", Body: []byte("%PDF")}, nil).Once()

	w = api.do(http.MethodPost, base+"/report/generate", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, "%PDF", w.Body.String())

	api.generator.On("Generate", mock.Anything, mock.Anything).Return(nil, report.ErrNotConfigured).Once()
	w = api.do(http.MethodPost, base+"/report/generate", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	api.generator.AssertExpectations(t)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "Weekly_economy", fileName("Weekly economy"))
	assert.Equal(t, "Economa_2024", fileName("Economía 2024"))
	assert.Equal(t, "clipping", fileName("¿?"))
}
