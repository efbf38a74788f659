package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"

	"FinCast/pkg/logger"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Host            string        `yaml:"host" default:"0.0.0.0"`
		Port            int           `yaml:"port" default:"8080"`
		CORS            bool          `yaml:"cors" default:"true"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Logging logger.Config `yaml:"logging"`
	Data    struct {
		Dir            string   `yaml:"dir" default:"."`
		OutputDir      string   `yaml:"output_dir" default:"."`
		Symbol         string   `yaml:"symbol" default:"BTC"`
		Versions       []string `yaml:"versions" default:"[\"api\",\"csv\"]"`
		FeaturePattern string   `yaml:"feature_pattern" default:"crypto_features_%s.csv"`
		SentimentFile  string   `yaml:"sentiment_file" default:"crypto_sentiment_index.csv"`
		OutputPattern  string   `yaml:"output_pattern" default:"btc_predictions_%s.csv"`
	} `yaml:"data"`
	Forecast struct {
		Alpha   float64 `yaml:"alpha" default:"1.0"`
		Workers int     `yaml:"workers" default:"1"`
	} `yaml:"forecast"`
	Insight struct {
		Enabled  bool          `yaml:"enabled" default:"false"`
		APIKey   string        `yaml:"api_key"`
		Model    string        `yaml:"model" default:"gemini-pro"`
		BaseURL  string        `yaml:"base_url" default:"https://generativelanguage.googleapis.com/v1beta"`
		Timeout  time.Duration `yaml:"timeout" default:"30s"`
		Rows     int           `yaml:"rows" default:"10"`
		CacheTTL time.Duration `yaml:"cache_ttl" default:"1h"`
		RPS      float64       `yaml:"rps" default:"1"`
		Burst    int           `yaml:"burst" default:"2"`
	} `yaml:"insight"`
	Charts struct {
		CacheTTL time.Duration `yaml:"cache_ttl" default:"5m"`
	} `yaml:"charts"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr" default:"localhost:6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Queue struct {
		Name        string        `yaml:"name" default:"fincast:runs"`
		Workers     int           `yaml:"workers" default:"1"`
		MaxAttempts int           `yaml:"max_attempts" default:"3"`
		BackoffMin  time.Duration `yaml:"backoff_min" default:"1s"`
		BackoffMax  time.Duration `yaml:"backoff_max" default:"30s"`
	} `yaml:"queue"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers" default:"[\"localhost:9092\"]"`
		Topic        string   `yaml:"topic" default:"fincast.forecasts"`
		LogsTopic    string   `yaml:"logs_topic" default:"fincast.logs"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"50ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"500"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id" default:"fincast-forecast-store"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"256"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"fincast.forecasts.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled      bool          `yaml:"enabled"`
		Host         string        `yaml:"host" default:"localhost"`
		Port         int           `yaml:"port" default:"9000"`
		Database     string        `yaml:"database" default:"fincast"`
		User         string        `yaml:"user" default:"default"`
		Password     string        `yaml:"password"`
		Table        string        `yaml:"table" default:"forecast_records"`
		UseHTTP      bool          `yaml:"use_http"`
		AsyncInsert  bool          `yaml:"async_insert"`
		DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"30s"`
	} `yaml:"clickhouse"`
}

// RequiredKeys lists what Validate insists on. insight.api_key is only
// required when insight.enabled is set.
var RequiredKeys = []string{
	"environment",
	"data.dir",
	"data.symbol",
	"data.versions",
	"forecast.alpha (>= 0)",
	"insight.api_key (GEMINI_API_KEY) when insight.enabled",
	"kafka.brokers when kafka.enabled",
	"redis.addr when redis.enabled",
	"clickhouse.host when clickhouse.enabled",
}

// Default returns a config with every default applied and no file read.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads and parses a YAML configuration file on top of the defaults.
// An empty path yields the defaults alone.
func Load(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads config from YAML, overrides with environment variables
// and validates the merged result.
func LoadWithEnv(path string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	c.applyEnv(os.Getenv)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("GEMINI_API_KEY"); v != "" {
		c.Insight.APIKey = v
	}
	if v := getenv("GEMINI_MODEL"); v != "" {
		c.Insight.Model = v
	}
	if v := getenv("FINCAST_INSIGHT"); v != "" {
		c.Insight.Enabled, _ = strconv.ParseBool(v)
	}
	if v := getenv("FINCAST_DATA_DIR"); v != "" {
		c.Data.Dir = v
	}
	if v := getenv("FINCAST_OUTPUT_DIR"); v != "" {
		c.Data.OutputDir = v
	}
	if v := getenv("FINCAST_VERSIONS"); v != "" {
		c.Data.Versions = splitList(v)
	}
	if v := getenv("FINCAST_ALPHA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Forecast.Alpha = f
		}
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
		c.Kafka.Enabled = true
	}
	if v := getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Data.Dir == "" {
		return fmt.Errorf("data.dir is required")
	}
	if c.Data.Symbol == "" {
		return fmt.Errorf("data.symbol is required")
	}
	if len(c.Data.Versions) == 0 {
		return fmt.Errorf("data.versions cannot be empty")
	}
	for _, v := range c.Data.Versions {
		if v != "api" && v != "csv" {
			return fmt.Errorf("data.versions must contain only 'api' or 'csv', got '%s'", v)
		}
	}
	if c.Forecast.Alpha < 0 {
		return fmt.Errorf("forecast.alpha must be >= 0, got %v", c.Forecast.Alpha)
	}
	if c.Forecast.Workers < 1 {
		return fmt.Errorf("forecast.workers must be >= 1")
	}
	if c.Insight.Enabled && c.Insight.APIKey == "" {
		return fmt.Errorf("insight.api_key is required when insight is enabled (set GEMINI_API_KEY)")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr is required when redis is enabled")
	}
	if c.ClickHouse.Enabled && c.ClickHouse.Host == "" {
		return fmt.Errorf("clickhouse.host is required when clickhouse is enabled")
	}
	return nil
}

// FeaturePath is the raw feature table for a data version.
func (c *Config) FeaturePath(version string) string {
	return filepath.Join(c.Data.Dir, fmt.Sprintf(c.Data.FeaturePattern, version))
}

// SentimentPath is the shared sentiment index table.
func (c *Config) SentimentPath() string {
	return filepath.Join(c.Data.Dir, c.Data.SentimentFile)
}

// OutputPath is the predictions table for a data version.
func (c *Config) OutputPath(version string) string {
	return filepath.Join(c.Data.OutputDir, fmt.Sprintf(c.Data.OutputPattern, version))
}
