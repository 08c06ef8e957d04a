package database

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"press-clippings/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB holds the database connection
var DB *gorm.DB

// Config holds database configuration
type Config struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	// Path is the sqlite database file, used when Driver is "sqlite"
	Path     string
	LogLevel string
}

// LoadConfig loads database configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Driver:   strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		DBName:   getEnv("DB_NAME", "press_clippings"),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
		Path:     getEnv("DB_PATH", "press_clippings.db"),
		LogLevel: getEnv("DB_LOG_LEVEL", "warn"),
	}
}

// DSN builds the postgres connection string
func (c *Config) DSN() string {
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.DBName, c.SSLMode,
	)

	// Only add password if it's not empty
	if c.Password != "" {
		dsn = fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
		)
	}
	return dsn
}

// Open opens a connection for config without touching the package-level DB
func Open(config *Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch config.Driver {
	case "postgres", "":
		dialector = postgres.Open(config.DSN())
	case "sqlite":
		dialector = sqlite.Open(config.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", config.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel(config.LogLevel)),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if config.Driver == "sqlite" {
		// sqlite serializes writers; a single connection also keeps :memory: databases shared
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// Connect establishes the package-level database connection
func Connect(config *Config) error {
	db, err := Open(config)
	if err != nil {
		return err
	}
	DB = db

	slog.Info("connected to database", "driver", config.Driver)
	return nil
}

// Migrate runs database migrations
func Migrate() error {
	if DB == nil {
		return fmt.Errorf("database connection not established")
	}

	err := models.AutoMigrate(DB)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	slog.Info("database migrations completed")
	return nil
}

// Close closes the database connection
func Close() error {
	if DB == nil {
		return nil
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}

func logLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
