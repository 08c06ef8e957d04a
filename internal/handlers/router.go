package handlers

import (
	"net/http"

	"press-clippings/internal/auth"
	"press-clippings/internal/live"
	"press-clippings/internal/report"
	"press-clippings/internal/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// StatusReporter exposes background worker state
type StatusReporter interface {
	GetStatus() map[string]interface{}
}

// Dependencies wires the router to its services
type Dependencies struct {
	DB        *gorm.DB
	Clippings *services.ClippingService
	Articles  *services.ArticlesService
	Topics    *services.TopicService
	Mentions  *services.MentionService
	Reports   report.Generator
	Hub       *live.Hub
	Previews  PreviewFetcher
	Worker    StatusReporter
	// Verifier guards /api; nil disables authentication
	Verifier auth.TokenValidator
}

// NewRouter builds the HTTP API
func NewRouter(d Dependencies) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	health := NewHealthHandler(d.DB)
	clippings := NewClippingHandler(d.Clippings)
	articles := NewArticleHandler(d.Articles).WithPreviews(d.Previews)
	topics := NewTopicHandler(d.Topics)
	mentions := NewMentionHandler(d.Mentions)
	reports := NewReportHandler(d.Clippings, d.Reports)

	r.GET("/health", health.HealthCheck)

	api := r.Group("/api")
	if d.Verifier != nil {
		api.Use(auth.Middleware(d.Verifier))
	}
	{
		api.POST("/topics", topics.Create)
		api.GET("/topics", topics.List)
		api.GET("/topics/:id", topics.Get)
		api.PUT("/topics/:id", topics.Update)
		api.DELETE("/topics/:id", topics.Delete)
		api.POST("/topics/:id/crisis", topics.EvaluateCrisis)

		api.POST("/mentions", mentions.Create)
		api.GET("/mentions", mentions.List)
		api.DELETE("/mentions/:id", mentions.Delete)

		api.POST("/articles", articles.Create)
		api.POST("/articles/preview", articles.Preview)
		api.GET("/articles", articles.List)
		api.GET("/articles/:id", articles.Get)
		api.PUT("/articles/:id", articles.Update)
		api.DELETE("/articles/:id", articles.Delete)

		api.POST("/clippings", clippings.Create)
		api.GET("/clippings", clippings.List)
		api.GET("/clippings/:id", clippings.Get)
		api.PUT("/clippings/:id", clippings.Update)
		api.DELETE("/clippings/:id", clippings.Delete)
		api.GET("/clippings/:id/articles", clippings.Members)
		api.POST("/clippings/:id/articles/:article_id", clippings.AddArticle)
		api.DELETE("/clippings/:id/articles/:article_id", clippings.RemoveArticle)
		api.GET("/clippings/:id/metrics", clippings.Metrics)
		api.POST("/clippings/:id/recompute", clippings.Recompute)

		api.GET("/clippings/:id/report", reports.Markdown)
		api.GET("/clippings/:id/report.html", reports.HTML)
		api.POST("/clippings/:id/report/generate", reports.Generate)
		api.GET("/clippings/:id/export.xlsx", reports.Export)

		if d.Worker != nil {
			api.GET("/worker/status", func(c *gin.Context) {
				c.JSON(http.StatusOK, d.Worker.GetStatus())
			})
		}

		if d.Hub != nil {
			api.GET("/live", d.Hub.ServeWS)
		}
	}

	return r
}
