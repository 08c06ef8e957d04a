package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"time"

	"press-clippings/internal/auth"
	"press-clippings/internal/config"
	"press-clippings/internal/database"
	"press-clippings/internal/logging"
	"press-clippings/internal/models"
	"press-clippings/internal/services"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// This is a simple utility script to seed the database with demo data
// In a production system, this would be done through the API

type seedArticle struct {
	title     string
	day       int
	media     string
	support   string
	valuation models.Valuation
	audience  int64
	quotation string
	mentions  []string
}

func main() {
	var email = flag.String("email", "editor@example.com", "Email of the seeded editor")
	flag.Parse()

	cfg := config.Load()
	slog.SetDefault(logging.New(cfg.Log.Level))

	slog.Info("seeding press clippings database")

	// Connect to database
	dbConfig := database.LoadConfig()
	if err := database.Connect(dbConfig); err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer database.Close()

	// Run migrations
	if err := database.Migrate(); err != nil {
		log.Fatal("Failed to run migrations:", err)
	}

	ctx := context.Background()
	editor := seedEditor(*email)

	var topicCount int64
	database.DB.Model(&models.Topic{}).Count(&topicCount)
	if topicCount > 0 {
		slog.Info("topics already present, skipping demo content", "topics", topicCount)
	} else {
		seedContent(ctx, database.DB, cfg, editor)
	}

	if cfg.AuthEnabled() {
		token, err := auth.NewJWTVerifier(cfg.Auth.JWTSecret).Issue(editor.ID, 30*24*time.Hour)
		if err != nil {
			log.Fatal("Failed to issue token:", err)
		}
		slog.Info("editor token (30 days)", "token", token)
	}

	slog.Info("seeding complete")
}

func seedEditor(email string) models.User {
	var user models.User
	err := database.DB.Where(models.User{Email: email}).
		Attrs(models.User{Name: "Demo Editor", IsActive: true}).
		FirstOrCreate(&user).Error
	if err != nil {
		log.Fatal("Failed to seed editor:", err)
	}
	slog.Info("editor ready", "user_id", user.ID, "email", user.Email)
	return user
}

func seedContent(ctx context.Context, db *gorm.DB, cfg config.Config, editor models.User) {
	opts := services.Options{DefaultTopic: cfg.Crisis.DefaultTopic}
	topics := services.NewTopicService(db, opts)
	mentions := services.NewMentionService(db)
	articles := services.NewArticlesService(db, opts)
	clippings := services.NewClippingService(db, opts)

	for _, name := range []string{cfg.Crisis.DefaultTopic, "Politics"} {
		if _, err := topics.Create(ctx, name, true); err != nil {
			log.Fatalf("Failed to seed topic %s: %v", name, err)
		}
	}
	economy, err := topics.Create(ctx, "Economy", true)
	if err != nil {
		log.Fatal("Failed to seed topic Economy:", err)
	}

	mentionIDs := map[string]uuid.UUID{}
	for _, name := range []string{"Central Bank", "Finance Ministry", "Chamber of Commerce"} {
		m, err := mentions.Create(ctx, name)
		if err != nil {
			log.Fatalf("Failed to seed mention %s: %v", name, err)
		}
		mentionIDs[name] = m.ID
	}

	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	demo := []seedArticle{
		{"Inflation slows for third month", 1, "The Daily Ledger", "print", models.ValuationPositive, 120000, "1850.00", []string{"Central Bank"}},
		{"Budget talks stall in committee", 2, "Capital Radio", "radio", models.ValuationNegative, 45000, "620.50", []string{"Finance Ministry"}},
		{"Exporters cautious on new tariffs", 3, "Market Wire", "digital", models.ValuationNeutral, 80000, "", []string{"Chamber of Commerce"}},
		{"Rate decision expected next week", 4, "The Daily Ledger", "digital", models.ValuationNeutral, 0, "310.00", []string{"Central Bank", "Finance Ministry"}},
	}

	ids := make([]uuid.UUID, 0, len(demo))
	for _, d := range demo {
		attrs := services.ArticleAttributes{
			Title:     d.title,
			Date:      start.AddDate(0, 0, d.day-1),
			Media:     d.media,
			Support:   d.support,
			Valuation: &d.valuation,
			TopicID:   &economy.ID,
		}
		if d.audience > 0 {
			attrs.AudienceSize = &d.audience
		}
		if d.quotation != "" {
			q := decimal.RequireFromString(d.quotation)
			attrs.Quotation = &q
		}
		for _, name := range d.mentions {
			attrs.MentionIDs = append(attrs.MentionIDs, mentionIDs[name])
		}

		a, err := articles.Create(ctx, attrs)
		if err != nil {
			log.Fatalf("Failed to seed article %q: %v", d.title, err)
		}
		ids = append(ids, a.ID)
	}

	end := start.AddDate(0, 1, -1)
	clipping, err := clippings.Create(ctx, services.ClippingInput{
		Name:       "Economy monthly review",
		StartDate:  &start,
		EndDate:    &end,
		TopicID:    &economy.ID,
		CreatorID:  &editor.ID,
		ArticleIDs: ids,
	})
	if err != nil {
		log.Fatal("Failed to seed clipping:", err)
	}

	slog.Info("demo content seeded", "articles", len(ids), "clipping_id", clipping.ID,
		"news_count", clipping.Metrics.Data().NewsCount)
}
