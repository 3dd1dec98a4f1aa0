package config

import (
	"fmt"
	"time"
	_ "time/tzdata" // TIMEZONE must resolve on hosts without a zone database

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	App      AppConfig
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Port      int
	Env       string
	StaticDir string // front-end bundle served for non-API paths, optional
}

// DatabaseConfig holds the database configuration
type DatabaseConfig struct {
	URL            string
	Host           string
	Port           int
	Username       string
	Password       string
	DBName         string
	SSLMode        string
	MaxOpenConns   int
	MaxIdleConns   int
	ConnectRetries int
}

// AuthConfig holds the authentication configuration
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// AppConfig holds business settings
type AppConfig struct {
	Timezone    string
	SeedOnStart bool
}

// GetDSN returns the database connection string. DATABASE_URL wins over the
// individual connection settings.
func (c *DatabaseConfig) GetDSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.Username, c.Password, c.DBName, c.SSLMode,
	)
}

// Location resolves the business timezone used for "today" and follow-ups
func (c *AppConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// IsDev reports whether the server runs in development mode
func (c *Config) IsDev() bool {
	return c.Server.Env == "development"
}

// LoadConfig loads the configuration from environment variables and an
// optional .env file in the working directory
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("ENV", "production")
	v.SetDefault("PORT", 5000)
	v.SetDefault("STATIC_DIR", "")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USERNAME", "postgres")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "claims")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 25)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONNECT_RETRIES", 5)
	v.SetDefault("JWT_SECRET", "your-secret-key-here")
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("TIMEZONE", "America/New_York")
	v.SetDefault("SEED_ON_START", false)

	// SERVER_PORT is the older name of PORT
	_ = v.BindEnv("PORT", "PORT", "SERVER_PORT")

	// Missing .env is fine
	_ = v.ReadInConfig()

	ttl, err := time.ParseDuration(v.GetString("TOKEN_TTL"))
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_TTL: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:      v.GetInt("PORT"),
			Env:       v.GetString("ENV"),
			StaticDir: v.GetString("STATIC_DIR"),
		},
		Database: DatabaseConfig{
			URL:            v.GetString("DATABASE_URL"),
			Host:           v.GetString("DB_HOST"),
			Port:           v.GetInt("DB_PORT"),
			Username:       v.GetString("DB_USERNAME"),
			Password:       v.GetString("DB_PASSWORD"),
			DBName:         v.GetString("DB_NAME"),
			SSLMode:        v.GetString("DB_SSLMODE"),
			MaxOpenConns:   v.GetInt("DB_MAX_OPEN_CONNS"),
			MaxIdleConns:   v.GetInt("DB_MAX_IDLE_CONNS"),
			ConnectRetries: v.GetInt("DB_CONNECT_RETRIES"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("JWT_SECRET"),
			TokenTTL:  ttl,
		},
		App: AppConfig{
			Timezone:    v.GetString("TIMEZONE"),
			SeedOnStart: v.GetBool("SEED_ON_START"),
		},
	}

	if cfg.Server.Port <= 0 {
		return nil, fmt.Errorf("invalid PORT %d", cfg.Server.Port)
	}
	if cfg.Auth.TokenTTL <= 0 {
		return nil, fmt.Errorf("TOKEN_TTL must be positive")
	}
	if _, err := cfg.App.Location(); err != nil {
		return nil, err
	}
	return cfg, nil
}
