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
	AppName string
	AppEnv  string
	AppPort string

	DatabaseURL string
	RedisURL    string
	NATSURL     string

	JWTSecret string

	CORSAllowOrigins string

	CloudinaryCloudName string
	CloudinaryAPIKey    string
	CloudinaryAPISecret string
	CloudinaryFolder    string

	GitHubToken   string
	GitHubAPIBase string

	ObjectStoreEndpoint  string
	ObjectStoreAccessKey string
	ObjectStoreSecretKey string
	ObjectStoreBucket    string
	ObjectStoreUseSSL    bool
	ObjectStorePublicURL string

	AISearchBaseURL   string
	AISearchAccountID string
	AISearchInstance  string
	AISearchToken     string
	AISearchModel     string

	OpenAIAPIKey string
	ScoringModel string

	ScreenshotAPIURL string
	ScreenshotAPIKey string

	Pipeline PipelineConfig

	RevealCacheTTL time.Duration
}

// PipelineConfig captures the retry and escape-hatch policy of the submission
// processing pipeline. The thresholds are deliberately configuration rather
// than constants: the "proceed anyway" escapes exist to work around an
// unreliable upstream index filter and are subject to tuning.
type PipelineConfig struct {
	MaxAttempts      int
	InitialPollDelay time.Duration
	MaxPollDelay     time.Duration
	SettleDelay      time.Duration
	ForceIndexAfter  time.Duration
	MinProbeAttempts int
	MaxFileBytes     int64
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// ObjectStoreConfigured reports whether the object store credentials are all present.
func (c Config) ObjectStoreConfigured() bool {
	return c.ObjectStoreEndpoint != "" && c.ObjectStoreAccessKey != "" &&
		c.ObjectStoreSecretKey != "" && c.ObjectStoreBucket != ""
}

// AISearchConfigured reports whether the AI search instance is fully identified.
func (c Config) AISearchConfigured() bool {
	return c.AISearchAccountID != "" && c.AISearchInstance != "" && c.AISearchToken != ""
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("HACKSTAGE")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "HackStage API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("cloudinary.folder", "hackstage/covers")
	v.SetDefault("github.api_base", "https://api.github.com")
	v.SetDefault("aisearch.base_url", "https://api.cloudflare.com/client/v4")
	v.SetDefault("aisearch.model", "@cf/meta/llama-3.1-8b-instruct")
	v.SetDefault("scoring.model", "gpt-4o-mini")
	v.SetDefault("pipeline.max_attempts", 60)
	v.SetDefault("pipeline.initial_poll_delay", "3s")
	v.SetDefault("pipeline.max_poll_delay", "10s")
	v.SetDefault("pipeline.settle_delay", "7s")
	v.SetDefault("pipeline.force_index_after", "5m")
	v.SetDefault("pipeline.min_probe_attempts", 5)
	v.SetDefault("pipeline.max_file_bytes", 100*1024)
	v.SetDefault("reveal.cache_ttl", "2h")

	pipeline, err := loadPipelineConfig(v)
	if err != nil {
		return Config{}, err
	}

	revealTTL, err := parseDurationSetting(v, "reveal.cache_ttl")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:              v.GetString("app.name"),
		AppEnv:               v.GetString("app.env"),
		AppPort:              v.GetString("app.port"),
		DatabaseURL:          v.GetString("database.url"),
		RedisURL:             v.GetString("redis.url"),
		NATSURL:              v.GetString("nats.url"),
		JWTSecret:            v.GetString("jwt.secret"),
		CORSAllowOrigins:     v.GetString("cors.allow_origins"),
		CloudinaryCloudName:  v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:     v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:  v.GetString("cloudinary.api_secret"),
		CloudinaryFolder:     v.GetString("cloudinary.folder"),
		GitHubToken:          v.GetString("github.token"),
		GitHubAPIBase:        v.GetString("github.api_base"),
		ObjectStoreEndpoint:  v.GetString("objectstore.endpoint"),
		ObjectStoreAccessKey: v.GetString("objectstore.access_key"),
		ObjectStoreSecretKey: v.GetString("objectstore.secret_key"),
		ObjectStoreBucket:    v.GetString("objectstore.bucket"),
		ObjectStoreUseSSL:    v.GetBool("objectstore.use_ssl"),
		ObjectStorePublicURL: v.GetString("objectstore.public_url"),
		AISearchBaseURL:      v.GetString("aisearch.base_url"),
		AISearchAccountID:    v.GetString("aisearch.account_id"),
		AISearchInstance:     v.GetString("aisearch.instance"),
		AISearchToken:        v.GetString("aisearch.token"),
		AISearchModel:        v.GetString("aisearch.model"),
		OpenAIAPIKey:         v.GetString("openai_api_key"),
		ScoringModel:         v.GetString("scoring.model"),
		ScreenshotAPIURL:     v.GetString("screenshot.api_url"),
		ScreenshotAPIKey:     v.GetString("screenshot.api_key"),
		Pipeline:             pipeline,
		RevealCacheTTL:       revealTTL,
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	return cfg, nil
}

func loadPipelineConfig(v *viper.Viper) (PipelineConfig, error) {
	initial, err := parseDurationSetting(v, "pipeline.initial_poll_delay")
	if err != nil {
		return PipelineConfig{}, err
	}
	maxDelay, err := parseDurationSetting(v, "pipeline.max_poll_delay")
	if err != nil {
		return PipelineConfig{}, err
	}
	settle, err := parseDurationSetting(v, "pipeline.settle_delay")
	if err != nil {
		return PipelineConfig{}, err
	}
	forceAfter, err := parseDurationSetting(v, "pipeline.force_index_after")
	if err != nil {
		return PipelineConfig{}, err
	}

	cfg := PipelineConfig{
		MaxAttempts:      v.GetInt("pipeline.max_attempts"),
		InitialPollDelay: initial,
		MaxPollDelay:     maxDelay,
		SettleDelay:      settle,
		ForceIndexAfter:  forceAfter,
		MinProbeAttempts: v.GetInt("pipeline.min_probe_attempts"),
		MaxFileBytes:     v.GetInt64("pipeline.max_file_bytes"),
	}

	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 60
	}
	if cfg.MinProbeAttempts <= 0 {
		cfg.MinProbeAttempts = 5
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = 100 * 1024
	}
	if cfg.MaxPollDelay < cfg.InitialPollDelay {
		cfg.MaxPollDelay = cfg.InitialPollDelay
	}

	return cfg, nil
}

func parseDurationSetting(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	if raw == "" {
		return 0, fmt.Errorf("missing duration setting %q", key)
	}

	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %q: %w", key, err)
	}

	return parsed, nil
}
