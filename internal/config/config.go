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
	AppName          string
	AppEnv           string
	AppPort          string
	DatabaseURL      string
	RedisURL         string
	NATSURL          string
	JWTSecret        string
	JWTRefreshSecret string
	AIProvider       string
	OpenAIAPIKey     string
	AIModel          string
	AIMaxTokens      int
	AITemperature    float32
	AITimeout        time.Duration
	AIRetryAttempts  int
	AssessWorkers    int
	CostCacheTTL     time.Duration
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
	v.SetEnvPrefix("GRADEFLOW")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GradeFlow API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.model", "gpt-4o-mini")
	v.SetDefault("ai.max_tokens", 2048)
	v.SetDefault("ai.temperature", 0.2)
	v.SetDefault("ai.timeout", "60s")
	v.SetDefault("ai.retry_attempts", 3)
	v.SetDefault("assess.workers", 4)
	v.SetDefault("cost.cache_ttl", "5m")

	aiTimeout, err := time.ParseDuration(v.GetString("ai.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid ai timeout: %w", err)
	}

	costTTL, err := time.ParseDuration(v.GetString("cost.cache_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid cost cache ttl: %w", err)
	}

	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		AppPort:          v.GetString("app.port"),
		DatabaseURL:      v.GetString("database.url"),
		RedisURL:         v.GetString("redis.url"),
		NATSURL:          v.GetString("nats.url"),
		JWTSecret:        v.GetString("jwt.secret"),
		JWTRefreshSecret: v.GetString("jwt.refresh_secret"),
		AIProvider:       strings.ToLower(v.GetString("ai.provider")),
		OpenAIAPIKey:     v.GetString("openai_api_key"),
		AIModel:          v.GetString("ai.model"),
		AIMaxTokens:      v.GetInt("ai.max_tokens"),
		AITemperature:    float32(v.GetFloat64("ai.temperature")),
		AITimeout:        aiTimeout,
		AIRetryAttempts:  v.GetInt("ai.retry_attempts"),
		AssessWorkers:    v.GetInt("assess.workers"),
		CostCacheTTL:     costTTL,
	}

	if cfg.JWTSecret == "" || cfg.JWTRefreshSecret == "" {
		return Config{}, fmt.Errorf("jwt secrets must be provided")
	}

	if cfg.AIMaxTokens <= 0 {
		cfg.AIMaxTokens = 2048
	}

	if cfg.AssessWorkers <= 0 {
		cfg.AssessWorkers = 4
	}

	return cfg, nil
}
