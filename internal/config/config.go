// Package config provides configuration loading for bbox-ocr.
// Supports YAML files, a .env file, and environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the OCR pipeline.
type Config struct {
	Inference     InferenceConfig     `yaml:"inference"`
	PDF           PDFConfig           `yaml:"pdf"`
	Pipeline      PipelineConfig      `yaml:"pipeline"`
	Cache         CacheConfig         `yaml:"cache"`
	Server        ServerConfig        `yaml:"server"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// InferenceConfig holds vision model endpoint settings.
type InferenceConfig struct {
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"api_key"`
	Model     string        `yaml:"model"`
	Timeout   time.Duration `yaml:"timeout"`
	MaxTokens int           `yaml:"max_tokens"`
	RateLimit float64       `yaml:"rate_limit"` // requests per second, 0 disables
	RateBurst int           `yaml:"rate_burst"`
}

// PDFConfig holds rasterization settings.
type PDFConfig struct {
	DPI int `yaml:"dpi"`
}

// PipelineConfig holds coordinator settings.
type PipelineConfig struct {
	Workers        int           `yaml:"workers"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryBudget    int           `yaml:"retry_budget"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// CacheConfig holds page-result cache settings.
type CacheConfig struct {
	Driver string        `yaml:"driver"` // none, memory or redis
	TTL    time.Duration `yaml:"ttl"`
	Redis  RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host             string        `yaml:"host"`
	Port             int           `yaml:"port"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	GracefulShutdown time.Duration `yaml:"graceful_shutdown"`
	MaxUploadBytes   int64         `yaml:"max_upload_bytes"`
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Load reads configuration from a YAML file and applies environment overrides.
// An empty path skips the file. A .env file in the working directory is honored.
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // optional

	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a configuration pointing at a local vLLM server.
func DefaultConfig() *Config {
	return &Config{
		Inference: InferenceConfig{
			BaseURL:   "http://localhost:8000/v1",
			Model:     "Qwen/Qwen2.5-VL-7B-Instruct",
			Timeout:   300 * time.Second,
			MaxTokens: 2048,
			RateBurst: 1,
		},
		PDF: PDFConfig{
			DPI: 150,
		},
		Pipeline: PipelineConfig{
			Workers:        4,
			MaxRetries:     2,
			RetryBudget:    16,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     10 * time.Second,
		},
		Cache: CacheConfig{
			Driver: "none",
			TTL:    24 * time.Hour,
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				PoolSize: 10,
			},
		},
		Server: ServerConfig{
			Host:             "0.0.0.0",
			Port:             8080,
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     15 * time.Minute,
			IdleTimeout:      120 * time.Second,
			GracefulShutdown: 10 * time.Second,
			MaxUploadBytes:   64 << 20,
		},
		Observability: ObservabilityConfig{
			LogLevel:  "info",
			LogFormat: "console",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Inference.BaseURL == "" {
		return fmt.Errorf("inference base_url is required")
	}
	if !strings.HasPrefix(c.Inference.BaseURL, "http://") && !strings.HasPrefix(c.Inference.BaseURL, "https://") {
		return fmt.Errorf("inference base_url must be http(s): %s", c.Inference.BaseURL)
	}
	if c.Inference.Model == "" {
		return fmt.Errorf("inference model is required")
	}
	if c.Inference.Timeout <= 0 {
		return fmt.Errorf("inference timeout must be positive")
	}
	if c.Inference.MaxTokens < 1 {
		return fmt.Errorf("max_tokens must be at least 1")
	}
	if c.Inference.RateLimit < 0 {
		return fmt.Errorf("rate_limit cannot be negative")
	}
	if c.PDF.DPI < 36 || c.PDF.DPI > 600 {
		return fmt.Errorf("dpi must be between 36 and 600, got %d", c.PDF.DPI)
	}
	if c.Pipeline.Workers < 1 || c.Pipeline.Workers > 64 {
		return fmt.Errorf("workers must be between 1 and 64, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.MaxRetries < 0 || c.Pipeline.RetryBudget < 0 {
		return fmt.Errorf("retry limits cannot be negative")
	}
	switch c.Cache.Driver {
	case "none", "memory", "redis":
	default:
		return fmt.Errorf("invalid cache driver: %s", c.Cache.Driver)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache ttl cannot be negative (0 keeps entries until evicted)")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	return nil
}

// Addr returns the host:port the HTTP server listens on.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("VLLM_BASE_URL"); v != "" {
		cfg.Inference.BaseURL = v
	}

	if v := os.Getenv("VLLM_API_KEY"); v != "" {
		cfg.Inference.APIKey = v
	}

	if v := os.Getenv("VLLM_MODEL"); v != "" {
		cfg.Inference.Model = v
	}

	if v := os.Getenv("VLLM_TIMEOUT_SECONDS"); v != "" {
		secs, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("VLLM_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Inference.Timeout = time.Duration(secs * float64(time.Second))
	}

	if err := envInt("VLLM_MAX_TOKENS", &cfg.Inference.MaxTokens); err != nil {
		return err
	}
	if err := envInt("PDF_DPI", &cfg.PDF.DPI); err != nil {
		return err
	}
	if err := envInt("OCR_WORKERS", &cfg.Pipeline.Workers); err != nil {
		return err
	}
	if err := envInt("OCR_MAX_RETRIES", &cfg.Pipeline.MaxRetries); err != nil {
		return err
	}
	if err := envInt("OCR_RETRY_BUDGET", &cfg.Pipeline.RetryBudget); err != nil {
		return err
	}

	if v := os.Getenv("OCR_RATE_LIMIT"); v != "" {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("OCR_RATE_LIMIT: %w", err)
		}
		cfg.Inference.RateLimit = rps
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		opts, err := redis.ParseURL(v)
		if err != nil {
			return fmt.Errorf("REDIS_URL: %w", err)
		}
		cfg.Cache.Driver = "redis"
		cfg.Cache.Redis.Addr = opts.Addr
		cfg.Cache.Redis.Username = opts.Username
		cfg.Cache.Redis.Password = opts.Password
		cfg.Cache.Redis.DB = opts.DB
	}

	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if err := envInt("SERVER_PORT", &cfg.Server.Port); err != nil {
		return err
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}

	return nil
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}
