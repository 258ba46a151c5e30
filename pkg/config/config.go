package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080" validate:"gt=0"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"15s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"180s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		SlowRequest     time.Duration `yaml:"slow_request" default:"30s"`
		RateLimit       struct {
			Capacity     float64 `yaml:"capacity" default:"5"`
			RefillPerSec float64 `yaml:"refill_per_sec" default:"0.2"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`
	Log struct {
		Level     string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
		Format    string `yaml:"format" default:"console" validate:"oneof=console json"`
		Output    string `yaml:"output" default:"stdout"`
		Collector struct {
			Enabled   bool          `yaml:"enabled"`
			Interval  time.Duration `yaml:"interval" default:"30s"`
			Threshold int           `yaml:"threshold" default:"100"`
		} `yaml:"collector"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost" validate:"required"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"coinpulse" validate:"required"`
		Table            string        `yaml:"table" default:"metric_records"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Postgres struct {
		DSN             string        `yaml:"dsn"`
		MaxOpenConns    int           `yaml:"max_open_conns" default:"10"`
		MaxIdleConns    int           `yaml:"max_idle_conns" default:"5"`
		ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" default:"30m"`
		ConnectTimeout  time.Duration `yaml:"connect_timeout" default:"60s"`
		AutoMigrate     bool          `yaml:"auto_migrate"`
	} `yaml:"postgres"`
	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Host     string `yaml:"host" default:"localhost"`
		Port     int    `yaml:"port" default:"6379"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix" default:"coinpulse"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"gzip"`
		Topics       struct {
			Ingest string `yaml:"ingest" default:"coinpulse.metrics.ingest"`
			Events string `yaml:"events" default:"coinpulse.report.events"`
			Logs   string `yaml:"logs" default:"coinpulse.logs"`
		} `yaml:"topics"`
		Producer struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"3"`
			Linger       time.Duration `yaml:"linger" default:"1s"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			GroupID    string        `yaml:"group_id" default:"coinpulse-ingest"`
			Workers    int           `yaml:"workers" default:"2"`
			BufferSize int           `yaml:"buffer_size" default:"100"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"50ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"2s"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes" default:"10000"`
			MaxBytes   int           `yaml:"max_bytes" default:"10000000"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	LLM struct {
		APIKey          string        `yaml:"api_key"`
		Model           string        `yaml:"model" default:"gemini-2.5-flash"`
		Temperature     float32       `yaml:"temperature" default:"0.7"`
		MaxOutputTokens int32         `yaml:"max_output_tokens" default:"1024"`
		Timeout         time.Duration `yaml:"timeout" default:"60s"`
		Concurrency     int           `yaml:"concurrency" default:"1" validate:"gte=1,lte=16"`
	} `yaml:"llm"`
	PDF struct {
		Endpoint   string        `yaml:"endpoint" validate:"required,url"`
		APIKey     string        `yaml:"api_key"`
		AuthHeader string        `yaml:"auth_header" default:"X-API-Key"`
		PageFormat string        `yaml:"page_format" default:"A4"`
		Timeout    time.Duration `yaml:"timeout" default:"90s"`
	} `yaml:"pdf"`
	Email struct {
		Endpoint  string        `yaml:"endpoint" default:"https://api.resend.com/emails" validate:"url"`
		APIKey    string        `yaml:"api_key"`
		From      string        `yaml:"from" validate:"required"`
		ChunkSize int           `yaml:"chunk_size" default:"32768" validate:"gte=3"`
		Timeout   time.Duration `yaml:"timeout" default:"30s"`
	} `yaml:"email"`
	Report struct {
		Lookback        time.Duration `yaml:"lookback" default:"2160h"`
		WelcomeLookback time.Duration `yaml:"welcome_lookback" default:"8760h"`
		DashboardURL    string        `yaml:"dashboard_url"`
		HistoryCacheTTL time.Duration `yaml:"history_cache_ttl" default:"5m"`
		RunTimeout      time.Duration `yaml:"run_timeout" default:"10m"`
	} `yaml:"report"`
	Scheduler struct {
		Enabled bool          `yaml:"enabled"`
		Cron    string        `yaml:"cron" default:"0 7 * * 1"`
		LockTTL time.Duration `yaml:"lock_ttl" default:"10m"`
	} `yaml:"scheduler"`
	Queue struct {
		Workers    int           `yaml:"workers" default:"2"`
		RetryLimit int           `yaml:"retry_limit"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"1m"`
		KeyPrefix  string        `yaml:"key_prefix" default:"coinpulse:queue"`
	} `yaml:"queue"`
	Ingest struct {
		MaxRPS     int `yaml:"max_rps" default:"1"`
		BufferSize int `yaml:"buffer_size" default:"1000"`
		PriceFeed  struct {
			Enabled        bool              `yaml:"enabled"`
			APIKey         string            `yaml:"api_key"`
			WebSocketURL   string            `yaml:"websocket_url" default:"wss://ws.finnhub.io"`
			Symbols        map[string]string `yaml:"symbols"`
			SampleInterval time.Duration     `yaml:"sample_interval" default:"5m"`
			ReconnectDelay time.Duration     `yaml:"reconnect_delay" default:"5s"`
			PingInterval   time.Duration     `yaml:"ping_interval" default:"30s"`
		} `yaml:"price_feed"`
	} `yaml:"ingest"`
}

var validate = validator.New()

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	return load(path, false)
}

// LoadWithEnv loads config from YAML and overrides secrets and endpoints
// from environment variables.
func LoadWithEnv(path string) (*Config, error) {
	return load(path, true)
}

func load(path string, withEnv bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if withEnv {
		c.applyEnv()
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("APP_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("PDF_API_KEY"); v != "" {
		c.PDF.APIKey = v
	}
	if v := os.Getenv("PDF_ENDPOINT"); v != "" {
		c.PDF.Endpoint = v
	}
	if v := os.Getenv("EMAIL_API_KEY"); v != "" {
		c.Email.APIKey = v
	}
	if v := os.Getenv("EMAIL_FROM"); v != "" {
		c.Email.From = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Postgres.DSN = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
		c.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Redis.Port = p
		}
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("PRICEFEED_API_KEY"); v != "" {
		c.Ingest.PriceFeed.APIKey = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required")
	}
	if c.LLM.APIKey == "" {
		return fmt.Errorf("llm.api_key is required")
	}
	if c.Email.APIKey == "" {
		return fmt.Errorf("email.api_key is required")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Scheduler.Enabled && !c.Redis.Enabled {
		return fmt.Errorf("scheduler requires redis for the job queue")
	}
	if c.Ingest.PriceFeed.Enabled {
		if c.Ingest.PriceFeed.APIKey == "" {
			return fmt.Errorf("ingest.price_feed.api_key is required")
		}
		if len(c.Ingest.PriceFeed.Symbols) == 0 {
			return fmt.Errorf("ingest.price_feed.symbols cannot be empty")
		}
	}
	if c.Report.WelcomeLookback < c.Report.Lookback {
		return fmt.Errorf("report.welcome_lookback must not be shorter than report.lookback")
	}
	return nil
}
