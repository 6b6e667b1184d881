package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Provider  ProviderConfig
	Backend   BackendConfig
	R2        R2Config
	Embedding EmbeddingConfig
	Pipeline  PipelineConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
	DataDir   string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
	JWKSURL   string
}

type RateLimitConfig struct {
	GeneratePerHour int
}

// ProviderConfig points at the third-party clipping service
type ProviderConfig struct {
	APIKey  string
	BaseURL string
}

// BackendConfig points at the main application backend (templates + storage)
type BackendConfig struct {
	BaseURL string
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type EmbeddingConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// PipelineConfig tunes the render pipeline
type PipelineConfig struct {
	WebhookWaitSeconds   int     // how long a job may wait for the provider webhook
	FilterThreshold      float64 // minimum similarity for the semantic filter
	KeepScores           bool    // retain similarity scores on returned clips
	MaxSourceDurationSec int     // reject source videos longer than this
	WorkDir              string  // scratch space for per-clip renders
	LogoWidth            int
	FrameRate            int
}

func Load() (*Config, error) {
	// Local development: .env before anything binds
	_ = godotenv.Load()

	// Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("VIZARD_API_KEY")
	readSecret("EMBEDDING_API_KEY")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")
	readSecret("JWT_SECRET")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.api_domain", "API_DOMAIN")
	_ = viper.BindEnv("server.data_dir", "DATA_DIR")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("auth.jwt_secret", "JWT_SECRET")
	_ = viper.BindEnv("auth.jwks_url", "JWKS_URL")
	_ = viper.BindEnv("ratelimit.generate_per_hour", "RATELIMIT_GENERATE_PER_HOUR")
	_ = viper.BindEnv("provider.api_key", "VIZARD_API_KEY")
	_ = viper.BindEnv("provider.base_url", "VIZARD_BASE_URL")
	_ = viper.BindEnv("backend.base_url", "BACKEND_URL")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = viper.BindEnv("embedding.api_key", "EMBEDDING_API_KEY")
	_ = viper.BindEnv("embedding.base_url", "EMBEDDING_BASE_URL")
	_ = viper.BindEnv("embedding.model", "EMBEDDING_MODEL")
	_ = viper.BindEnv("pipeline.webhook_wait_seconds", "WEBHOOK_WAIT_SECONDS")
	_ = viper.BindEnv("pipeline.filter_threshold", "FILTER_THRESHOLD")
	_ = viper.BindEnv("pipeline.keep_scores", "FILTER_KEEP_SCORES")
	_ = viper.BindEnv("pipeline.max_source_duration", "MAX_SOURCE_DURATION")
	_ = viper.BindEnv("pipeline.work_dir", "PIPELINE_WORK_DIR")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("server.data_dir", "data")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("ratelimit.generate_per_hour", 20)
	viper.SetDefault("provider.base_url", "https://elb-api.vizard.ai")
	viper.SetDefault("backend.base_url", "http://localhost:5000/api/v1")
	viper.SetDefault("embedding.model", "intfloat/multilingual-e5-base")
	viper.SetDefault("pipeline.webhook_wait_seconds", 500)
	viper.SetDefault("pipeline.filter_threshold", 0.5)
	viper.SetDefault("pipeline.keep_scores", false)
	viper.SetDefault("pipeline.max_source_duration", 7200)
	viper.SetDefault("pipeline.work_dir", os.TempDir())
	viper.SetDefault("pipeline.logo_width", 150)
	viper.SetDefault("pipeline.frame_rate", 30)

	// Config file is optional
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			LogLevel:  viper.GetString("server.log_level"),
			ApiDomain: viper.GetString("server.api_domain"),
			DataDir:   viper.GetString("server.data_dir"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Auth: AuthConfig{
			JWTSecret: viper.GetString("auth.jwt_secret"),
			JWKSURL:   viper.GetString("auth.jwks_url"),
		},
		RateLimit: RateLimitConfig{
			GeneratePerHour: viper.GetInt("ratelimit.generate_per_hour"),
		},
		Provider: ProviderConfig{
			APIKey:  viper.GetString("provider.api_key"),
			BaseURL: viper.GetString("provider.base_url"),
		},
		Backend: BackendConfig{
			BaseURL: viper.GetString("backend.base_url"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
		Embedding: EmbeddingConfig{
			APIKey:  viper.GetString("embedding.api_key"),
			BaseURL: viper.GetString("embedding.base_url"),
			Model:   viper.GetString("embedding.model"),
		},
		Pipeline: PipelineConfig{
			WebhookWaitSeconds:   viper.GetInt("pipeline.webhook_wait_seconds"),
			FilterThreshold:      viper.GetFloat64("pipeline.filter_threshold"),
			KeepScores:           viper.GetBool("pipeline.keep_scores"),
			MaxSourceDurationSec: viper.GetInt("pipeline.max_source_duration"),
			WorkDir:              viper.GetString("pipeline.work_dir"),
			LogoWidth:            viper.GetInt("pipeline.logo_width"),
			FrameRate:            viper.GetInt("pipeline.frame_rate"),
		},
	}

	return cfg, nil
}
