package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all gateway settings. Values come from an optional YAML file
// layered under environment variables; env always wins.
type Config struct {
	HTTPPort int    `yaml:"http_port"`
	Debug    bool   `yaml:"debug"`
	LogLevel string `yaml:"log_level"`
	DataDir  string `yaml:"data_dir"`

	// Provider credentials
	OpenAIAPIKey      string `yaml:"openai_api_key"`
	ReplicateAPIToken string `yaml:"replicate_api_token"`
	RemoveBGAPIKey    string `yaml:"removebg_api_key"`
	DeepLAPIKey       string `yaml:"deepl_api_key"`

	// Which background removal implementation to use: "removebg" or "replicate"
	BackgroundProvider string `yaml:"background_provider"`

	RedisURL string `yaml:"redis_url"`

	// Limits
	MaxImageSize         int `yaml:"max_image_size"`
	MaxBatchSize         int `yaml:"max_batch_size"`
	MaxRequestsPerMinute int `yaml:"max_requests_per_minute"`
	MaxRequestsPerDay    int `yaml:"max_requests_per_day"`
	TrackerCapacity      int `yaml:"tracker_capacity"`

	PollMaxAttempts int           `yaml:"poll_max_attempts"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	JobTTL          time.Duration `yaml:"job_ttl"`
	CacheTTL        time.Duration `yaml:"cache_ttl"`
	ResultCacheTTL  time.Duration `yaml:"result_cache_ttl"`

	// Feature flags per AI capability
	EnableImageGeneration   bool `yaml:"enable_image_generation"`
	EnableBackgroundRemoval bool `yaml:"enable_background_removal"`
	EnableTextGeneration    bool `yaml:"enable_text_generation"`
	EnableTranslation       bool `yaml:"enable_translation"`
	EnableUpscaling         bool `yaml:"enable_upscaling"`
	EnableAnimator          bool `yaml:"enable_animator"`
}

func defaults() *Config {
	return &Config{
		HTTPPort:                8000,
		LogLevel:                "info",
		DataDir:                 "data",
		BackgroundProvider:      "removebg",
		RedisURL:                "redis://localhost:6379",
		MaxImageSize:            2048,
		MaxBatchSize:            4,
		MaxRequestsPerMinute:    60,
		MaxRequestsPerDay:       1000,
		TrackerCapacity:         10000,
		PollMaxAttempts:         60,
		PollInterval:            5 * time.Second,
		JobTTL:                  24 * time.Hour,
		CacheTTL:                time.Hour,
		ResultCacheTTL:          24 * time.Hour,
		EnableImageGeneration:   true,
		EnableBackgroundRemoval: true,
		EnableTextGeneration:    true,
		EnableTranslation:       true,
		EnableUpscaling:         true,
		EnableAnimator:          true,
	}
}

// Load builds the configuration from defaults, the YAML file named by
// CONFIG_FILE (if set), and environment variables.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.HTTPPort = getEnvInt("HTTP_PORT", c.HTTPPort)
	c.Debug = getEnvBool("DEBUG", c.Debug)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.DataDir = getEnv("DATA_DIR", c.DataDir)

	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.ReplicateAPIToken = getEnv("REPLICATE_API_TOKEN", c.ReplicateAPIToken)
	c.RemoveBGAPIKey = getEnv("REMOVEBG_API_KEY", c.RemoveBGAPIKey)
	c.DeepLAPIKey = getEnv("DEEPL_API_KEY", c.DeepLAPIKey)
	c.BackgroundProvider = getEnv("BACKGROUND_PROVIDER", c.BackgroundProvider)
	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)

	c.MaxImageSize = getEnvInt("MAX_IMAGE_SIZE", c.MaxImageSize)
	c.MaxBatchSize = getEnvInt("MAX_BATCH_SIZE", c.MaxBatchSize)
	c.MaxRequestsPerMinute = getEnvInt("MAX_REQUESTS_PER_MINUTE", c.MaxRequestsPerMinute)
	c.MaxRequestsPerDay = getEnvInt("MAX_REQUESTS_PER_DAY", c.MaxRequestsPerDay)
	c.TrackerCapacity = getEnvInt("TRACKER_CAPACITY", c.TrackerCapacity)

	c.PollMaxAttempts = getEnvInt("POLL_MAX_ATTEMPTS", c.PollMaxAttempts)
	c.PollInterval = getEnvDuration("POLL_INTERVAL_SECONDS", c.PollInterval)
	c.JobTTL = getEnvDuration("JOB_TTL_SECONDS", c.JobTTL)
	c.CacheTTL = getEnvDuration("CACHE_TTL_SECONDS", c.CacheTTL)
	c.ResultCacheTTL = getEnvDuration("AI_RESULT_CACHE_TTL_SECONDS", c.ResultCacheTTL)

	c.EnableImageGeneration = getEnvBool("ENABLE_AI_IMAGE_GENERATION", c.EnableImageGeneration)
	c.EnableBackgroundRemoval = getEnvBool("ENABLE_BACKGROUND_REMOVAL", c.EnableBackgroundRemoval)
	c.EnableTextGeneration = getEnvBool("ENABLE_TEXT_GENERATION", c.EnableTextGeneration)
	c.EnableTranslation = getEnvBool("ENABLE_TRANSLATION", c.EnableTranslation)
	c.EnableUpscaling = getEnvBool("ENABLE_IMAGE_UPSCALING", c.EnableUpscaling)
	c.EnableAnimator = getEnvBool("ENABLE_MAGIC_ANIMATOR", c.EnableAnimator)
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// Validate reports missing credentials for enabled capabilities. The gateway
// still starts; the affected capability reports unhealthy and fails fast
// when invoked.
func (c *Config) Validate() []string {
	var problems []string
	if c.EnableImageGeneration && c.ReplicateAPIToken == "" {
		problems = append(problems, "REPLICATE_API_TOKEN required for image generation")
	}
	if c.EnableTextGeneration && c.OpenAIAPIKey == "" {
		problems = append(problems, "OPENAI_API_KEY required for text generation")
	}
	if c.EnableBackgroundRemoval && c.BackgroundProvider == "removebg" && c.RemoveBGAPIKey == "" {
		problems = append(problems, "REMOVEBG_API_KEY required for background removal (or set BACKGROUND_PROVIDER=replicate)")
	}
	if c.EnableTranslation && c.DeepLAPIKey == "" {
		problems = append(problems, "DEEPL_API_KEY required for translation")
	}
	return problems
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return time.Duration(i) * time.Second
		}
	}
	return fallback
}
