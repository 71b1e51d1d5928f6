package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Postgres      PostgresConfig      `yaml:"postgres"`
	Redis         RedisConfig         `yaml:"redis"`
	AI            AIConfig            `yaml:"ai"`
	Kafka         KafkaConfig         `yaml:"kafka"`
	Search        SearchConfig        `yaml:"search"`
	Observability ObservabilityConfig `yaml:"observability"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxConcurrent   int           `yaml:"max_concurrent"`
}

type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	PingTimeout     time.Duration `yaml:"ping_timeout"`
}

// RedisConfig is optional; with no addresses the service runs on the
// in-process cache only.
type RedisConfig struct {
	Addresses    []string      `yaml:"addresses"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// AIConfig controls the text-completion parsing path. With an empty
// APIKey the path is disabled and every query takes the rule engine.
type AIConfig struct {
	APIKey         string               `yaml:"api_key"`
	Model          string               `yaml:"model"`
	MaxTokens      int64                `yaml:"max_tokens"`
	RequestTimeout time.Duration        `yaml:"request_timeout"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// Enabled reports whether a credential is configured.
func (c AIConfig) Enabled() bool {
	return c.APIKey != ""
}

// KafkaConfig is optional; with no brokers the catalog-change consumer
// is not started and cached batch groups age out on TTL alone.
type KafkaConfig struct {
	Brokers        []string      `yaml:"brokers"`
	TopicChanges   string        `yaml:"topic_changes"`
	TopicDLQ       string        `yaml:"topic_dlq"`
	ConsumerGroup  string        `yaml:"consumer_group"`
	MaxRetries     int           `yaml:"max_retries"`
	CommitInterval time.Duration `yaml:"commit_interval"`
}

type SearchConfig struct {
	DefaultLimit          int             `yaml:"default_limit"`
	MaxLimit              int             `yaml:"max_limit"`
	QueryCacheTTL         time.Duration   `yaml:"query_cache_ttl"`
	BatchGroupCacheTTL    time.Duration   `yaml:"batch_group_cache_ttl"`
	OverfetchFactorSingle int             `yaml:"overfetch_factor_single"`
	OverfetchFactorBatch  int             `yaml:"overfetch_factor_batch"`
	ScoringWorkers        int             `yaml:"scoring_workers"`
	SlowSearch            SlowSearchConfig `yaml:"slow_search"`
}

type SlowSearchConfig struct {
	WarningThreshold  time.Duration `yaml:"warning_threshold"`
	CriticalThreshold time.Duration `yaml:"critical_threshold"`
}

type CircuitBreakerConfig struct {
	MaxRequests      uint32        `yaml:"max_requests"`
	Interval         time.Duration `yaml:"interval"`
	Timeout          time.Duration `yaml:"timeout"`
	FailureThreshold uint32        `yaml:"failure_threshold"`
}

type ObservabilityConfig struct {
	TracingEndpoint string `yaml:"tracing_endpoint"`
	LogLevel        string `yaml:"log_level"`
	ServiceName     string `yaml:"service_name"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	data = []byte(os.ExpandEnv(string(data)))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxConcurrent:   1000,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "meatwise",
			Database:        "meatwise",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			PingTimeout:     5 * time.Second,
		},
		Redis: RedisConfig{
			PoolSize:     50,
			MinIdleConns: 5,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  1 * time.Second,
			WriteTimeout: 1 * time.Second,
		},
		AI: AIConfig{
			APIKey:         os.Getenv("ANTHROPIC_API_KEY"),
			Model:          "claude-3-5-haiku-latest",
			MaxTokens:      1024,
			RequestTimeout: 10 * time.Second,
			CircuitBreaker: CircuitBreakerConfig{
				MaxRequests:      10,
				Interval:         30 * time.Second,
				Timeout:          60 * time.Second,
				FailureThreshold: 5,
			},
		},
		Kafka: KafkaConfig{
			TopicChanges:   "catalog.changes",
			TopicDLQ:       "catalog.changes.dlq",
			ConsumerGroup:  "search-invalidator",
			MaxRetries:     3,
			CommitInterval: time.Second,
		},
		Search: SearchConfig{
			DefaultLimit:          20,
			MaxLimit:              100,
			QueryCacheTTL:         time.Hour,
			BatchGroupCacheTTL:    time.Hour,
			OverfetchFactorSingle: 2,
			OverfetchFactorBatch:  3,
			ScoringWorkers:        4,
			SlowSearch: SlowSearchConfig{
				WarningThreshold:  200 * time.Millisecond,
				CriticalThreshold: 500 * time.Millisecond,
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:    "info",
			ServiceName: "meatwise-search",
		},
	}
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Postgres.Host == "" {
		return fmt.Errorf("postgres host required")
	}
	if c.Search.DefaultLimit <= 0 {
		return fmt.Errorf("default limit must be positive")
	}
	if c.Search.MaxLimit <= 0 || c.Search.MaxLimit > 1000 {
		return fmt.Errorf("max limit must be between 1 and 1000")
	}
	if c.Search.OverfetchFactorSingle < 1 {
		return fmt.Errorf("single overfetch factor must be at least 1")
	}
	if c.Search.OverfetchFactorBatch < 1 {
		return fmt.Errorf("batch overfetch factor must be at least 1")
	}
	if c.Search.ScoringWorkers <= 0 {
		return fmt.Errorf("scoring workers must be positive")
	}
	if c.Server.MaxConcurrent <= 0 {
		return fmt.Errorf("max concurrent requests must be positive")
	}
	return nil
}
