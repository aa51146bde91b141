package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	JWTSecret              string
	JWTRefreshSecret       string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	GradebookURL           string
	GradebookAPIKey        string
	GradebookTimeout       time.Duration
	CourseworkCacheTTL     time.Duration
	EventSubjectPrefix     string
	CORSAllowOrigins       string
	UploadRateLimit        int
	UploadRateWindow       time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("MARKWISE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Markwise API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("cloudinary.folder", "markwise/submissions")
	v.SetDefault("coursework.cache_ttl", "5m")
	v.SetDefault("gradebook.timeout", "10s")
	v.SetDefault("events.subject_prefix", "markwise")
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("uploads.rate_limit", 30)
	v.SetDefault("uploads.rate_window", "1m")

	ttlString := v.GetString("coursework.cache_ttl")
	if ttlString == "" {
		ttlString = "5m"
	}

	ttl, err := time.ParseDuration(ttlString)
	if err != nil {
		return Config{}, fmt.Errorf("invalid coursework cache ttl: %w", err)
	}

	gradebookTimeout, err := time.ParseDuration(v.GetString("gradebook.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid gradebook timeout: %w", err)
	}

	uploadWindow, err := time.ParseDuration(v.GetString("uploads.rate_window"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid upload rate window: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		JWTSecret:              v.GetString("jwt.secret"),
		JWTRefreshSecret:       v.GetString("jwt.refresh_secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		GradebookURL:           v.GetString("gradebook.url"),
		GradebookAPIKey:        v.GetString("gradebook.api_key"),
		GradebookTimeout:       gradebookTimeout,
		CourseworkCacheTTL:     ttl,
		EventSubjectPrefix:     v.GetString("events.subject_prefix"),
		CORSAllowOrigins:       v.GetString("cors.allow_origins"),
		UploadRateLimit:        v.GetInt("uploads.rate_limit"),
		UploadRateWindow:       uploadWindow,
	}

	if cfg.JWTSecret == "" || cfg.JWTRefreshSecret == "" {
		return Config{}, fmt.Errorf("jwt secrets must be provided")
	}

	return cfg, nil
}
