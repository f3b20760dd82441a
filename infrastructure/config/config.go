// Package config loads application configuration from layered YAML files
// with environment variable overrides. Files are merged in order:
// config.yaml, config.<environment>.yaml, config.local.yaml; later files
// win, and environment variables win over everything.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	domaincfg "atlas-graph/domain/config"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	AWS       AWSConfig       `yaml:"aws"`
	Redis     RedisConfig     `yaml:"redis"`
	Auth      AuthConfig      `yaml:"auth"`
	Providers ProvidersConfig `yaml:"providers"`
	Engine    EngineConfig    `yaml:"engine"`
	Logging   LoggingConfig   `yaml:"logging"`
	Features  FeatureFlags    `yaml:"features"`

	Environment string `yaml:"environment"`
}

// ServerConfig configures the HTTP listeners.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	OpsAddress      string        `yaml:"opsAddress"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	IsLambda        bool          `yaml:"isLambda"`
}

// AWSConfig configures the AWS backends.
type AWSConfig struct {
	Region            string `yaml:"region"`
	Endpoint          string `yaml:"endpoint"`
	TableName         string `yaml:"tableName"`
	EventBusName      string `yaml:"eventBusName"`
	WebSocketEndpoint string `yaml:"webSocketEndpoint"`
}

// RedisConfig configures the cache backend; an empty address selects the
// in-process cache.
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// AuthConfig configures request authentication.
type AuthConfig struct {
	JWTSecret string `yaml:"jwtSecret"`
	JWTIssuer string `yaml:"jwtIssuer"`
	RateLimit int    `yaml:"rateLimit"`
}

// ProvidersConfig configures the external model providers.
type ProvidersConfig struct {
	ReasoningURL    string        `yaml:"reasoningUrl"`
	ReasoningAPIKey string        `yaml:"reasoningApiKey"`
	EmbeddingURL    string        `yaml:"embeddingUrl"`
	EmbeddingAPIKey string        `yaml:"embeddingApiKey"`
	EmbeddingModel  string        `yaml:"embeddingModel"`
	Timeout         time.Duration `yaml:"timeout"`
}

// EngineConfig overrides selected engine rules. Zero values keep the
// engine default.
type EngineConfig struct {
	MaxTraversalDepth    int           `yaml:"maxTraversalDepth"`
	MaxTraversalNodes    int           `yaml:"maxTraversalNodes"`
	MaxPathDepth         int           `yaml:"maxPathDepth"`
	DefaultPageSize      int           `yaml:"defaultPageSize"`
	MaxPageSize          int           `yaml:"maxPageSize"`
	MaxMergeSources      int           `yaml:"maxMergeSources"`
	MergeLockTTL         time.Duration `yaml:"mergeLockTtl"`
	SnapshotQueueSize    int           `yaml:"snapshotQueueSize"`
	SnapshotCaptureLimit int           `yaml:"snapshotCaptureLimit"`
	MetricsCacheTTL      int           `yaml:"metricsCacheTtlSeconds"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// FeatureFlags toggles optional subsystems.
type FeatureFlags struct {
	EnableSemanticSearch bool `yaml:"enableSemanticSearch"`
	EnableReasoning      bool `yaml:"enableReasoning"`
	EnableEventPush      bool `yaml:"enableEventPush"`
	EnableTracing        bool `yaml:"enableTracing"`
	EnableCORS           bool `yaml:"enableCors"`
}

// Load reads configuration from dir, falling back to pure defaults plus
// environment overrides when no files exist.
func Load(dir string) (*Config, error) {
	cfg := defaults()

	environment := getEnv("ENVIRONMENT", cfg.Environment)
	layers := []string{
		"config.yaml",
		fmt.Sprintf("config.%s.yaml", environment),
		"config.local.yaml",
	}
	for _, name := range layers {
		if err := mergeFile(cfg, filepath.Join(dir, name)); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv loads configuration without a config directory. Lambda
// deployments configure entirely through environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := defaults()
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Address:         ":8080",
			OpsAddress:      ":9090",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		AWS: AWSConfig{
			Region:       "us-west-2",
			TableName:    "atlas-graph",
			EventBusName: "atlas-graph-events",
		},
		Redis: RedisConfig{
			Prefix: "atlas",
		},
		Auth: AuthConfig{
			JWTIssuer: "atlas-graph",
			RateLimit: 100,
		},
		Providers: ProvidersConfig{
			EmbeddingModel: "text-embedding-3-small",
			Timeout:        10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Features: FeatureFlags{
			EnableSemanticSearch: true,
			EnableReasoning:      true,
			EnableCORS:           true,
		},
	}
}

func mergeFile(cfg *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.Environment = getEnv("ENVIRONMENT", cfg.Environment)

	cfg.Server.Address = getEnv("SERVER_ADDRESS", cfg.Server.Address)
	cfg.Server.OpsAddress = getEnv("OPS_ADDRESS", cfg.Server.OpsAddress)
	cfg.Server.IsLambda = getEnvBool("IS_LAMBDA", cfg.Server.IsLambda)

	cfg.AWS.Region = getEnv("AWS_REGION", cfg.AWS.Region)
	cfg.AWS.Endpoint = getEnv("AWS_ENDPOINT", cfg.AWS.Endpoint)
	cfg.AWS.TableName = getEnv("TABLE_NAME", cfg.AWS.TableName)
	cfg.AWS.EventBusName = getEnv("EVENT_BUS_NAME", cfg.AWS.EventBusName)
	cfg.AWS.WebSocketEndpoint = getEnv("WEBSOCKET_ENDPOINT", cfg.AWS.WebSocketEndpoint)

	cfg.Redis.Address = getEnv("REDIS_ADDRESS", cfg.Redis.Address)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvInt("REDIS_DB", cfg.Redis.DB)

	cfg.Auth.JWTSecret = getEnv("JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Auth.JWTIssuer = getEnv("JWT_ISSUER", cfg.Auth.JWTIssuer)
	cfg.Auth.RateLimit = getEnvInt("RATE_LIMIT", cfg.Auth.RateLimit)

	cfg.Providers.ReasoningURL = getEnv("REASONING_URL", cfg.Providers.ReasoningURL)
	cfg.Providers.ReasoningAPIKey = getEnv("REASONING_API_KEY", cfg.Providers.ReasoningAPIKey)
	cfg.Providers.EmbeddingURL = getEnv("EMBEDDING_URL", cfg.Providers.EmbeddingURL)
	cfg.Providers.EmbeddingAPIKey = getEnv("EMBEDDING_API_KEY", cfg.Providers.EmbeddingAPIKey)
	cfg.Providers.EmbeddingModel = getEnv("EMBEDDING_MODEL", cfg.Providers.EmbeddingModel)

	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.Format = getEnv("LOG_FORMAT", cfg.Logging.Format)

	cfg.Features.EnableSemanticSearch = getEnvBool("ENABLE_SEMANTIC_SEARCH", cfg.Features.EnableSemanticSearch)
	cfg.Features.EnableReasoning = getEnvBool("ENABLE_REASONING", cfg.Features.EnableReasoning)
	cfg.Features.EnableEventPush = getEnvBool("ENABLE_EVENT_PUSH", cfg.Features.EnableEventPush)
	cfg.Features.EnableTracing = getEnvBool("ENABLE_TRACING", cfg.Features.EnableTracing)
	cfg.Features.EnableCORS = getEnvBool("ENABLE_CORS", cfg.Features.EnableCORS)
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.AWS.TableName == "" {
		return fmt.Errorf("aws.tableName is required")
	}
	if c.IsProduction() {
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.AWS.EventBusName == "" {
			return fmt.Errorf("EVENT_BUS_NAME is required in production")
		}
	}
	if c.Features.EnableReasoning && c.IsProduction() && c.Providers.ReasoningURL == "" {
		return fmt.Errorf("providers.reasoningUrl is required when reasoning is enabled")
	}
	return nil
}

// DomainConfig derives the engine rules for this environment, applying
// any overrides from the engine section.
func (c *Config) DomainConfig() *domaincfg.DomainConfig {
	var dc *domaincfg.DomainConfig
	switch {
	case c.IsProduction():
		dc = domaincfg.ProductionDomainConfig()
	case c.IsDevelopment():
		dc = domaincfg.DevelopmentDomainConfig()
	default:
		dc = domaincfg.DefaultDomainConfig()
	}

	if c.Engine.MaxTraversalDepth > 0 {
		dc.MaxTraversalDepth = c.Engine.MaxTraversalDepth
	}
	if c.Engine.MaxTraversalNodes > 0 {
		dc.MaxTraversalNodes = c.Engine.MaxTraversalNodes
	}
	if c.Engine.MaxPathDepth > 0 {
		dc.MaxPathDepth = c.Engine.MaxPathDepth
	}
	if c.Engine.DefaultPageSize > 0 {
		dc.DefaultPageSize = c.Engine.DefaultPageSize
	}
	if c.Engine.MaxPageSize > 0 {
		dc.MaxPageSize = c.Engine.MaxPageSize
	}
	if c.Engine.MaxMergeSources > 0 {
		dc.MaxMergeSources = c.Engine.MaxMergeSources
	}
	if c.Engine.MergeLockTTL > 0 {
		dc.MergeLockTTL = c.Engine.MergeLockTTL
	}
	if c.Engine.SnapshotQueueSize > 0 {
		dc.SnapshotQueueSize = c.Engine.SnapshotQueueSize
	}
	if c.Engine.SnapshotCaptureLimit > 0 {
		dc.SnapshotCaptureLimit = c.Engine.SnapshotCaptureLimit
	}
	if c.Engine.MetricsCacheTTL > 0 {
		dc.MetricsCacheTTLSeconds = c.Engine.MetricsCacheTTL
	}

	dc.EnableSemanticSearch = c.Features.EnableSemanticSearch
	dc.EnableReasoning = c.Features.EnableReasoning
	dc.EnableEventPush = c.Features.EnableEventPush
	return dc
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
