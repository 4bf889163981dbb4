package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development" validate:"required"`
	Log         LogConfig        `yaml:"log"`
	Server      ServerConfig     `yaml:"server"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Exchange    ExchangeConfig   `yaml:"exchange"`
	Cycle       CycleConfig      `yaml:"cycle"`
	Agents      AgentsConfig     `yaml:"agents"`
	Feedback    FeedbackConfig   `yaml:"feedback"`
	Reporting   ReportingConfig  `yaml:"reporting"`
	Telegram    TelegramConfig   `yaml:"telegram"`
	Sentiment   SentimentConfig  `yaml:"sentiment"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Redis       RedisConfig      `yaml:"redis"`
	Queue       QueueConfig      `yaml:"queue"`
}

type LogConfig struct {
	Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format     string `yaml:"format" default:"json" validate:"oneof=json console"`
	Output     string `yaml:"output" default:"stdout"`
	TimeFormat string `yaml:"time_format"`
}

type ServerConfig struct {
	Enabled         bool          `yaml:"enabled" default:"true"`
	Host            string        `yaml:"host" default:"0.0.0.0"`
	Port            int           `yaml:"port" default:"8080" validate:"gt=0,lt=65536"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	CORSOrigins     []string      `yaml:"cors_origins" default:"[\"*\"]"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

type ExchangeConfig struct {
	APIKey           string        `yaml:"api_key"`
	APISecret        string        `yaml:"api_secret"`
	StreamURL        string        `yaml:"stream_url" default:"wss://fstream.binance.com/ws" validate:"required"`
	Symbols          []string      `yaml:"symbols"`
	QuoteAsset       string        `yaml:"quote_asset" default:"USDT"`
	MaxSymbols       int           `yaml:"max_symbols" default:"30" validate:"gt=0"`
	RESTTimeout      time.Duration `yaml:"rest_timeout" default:"8s" validate:"gt=0"`
	RESTRate         float64       `yaml:"rest_rate" default:"10"`
	RESTBurst        float64       `yaml:"rest_burst" default:"20"`
	FundingCacheTTL  time.Duration `yaml:"funding_cache_ttl" default:"5m"`
	ReconnectBackoff time.Duration `yaml:"reconnect_backoff" default:"5s" validate:"gt=0"`
	PingInterval     time.Duration `yaml:"ping_interval" default:"20s" validate:"gt=0"`
	StaggerDelay     time.Duration `yaml:"stagger_delay" default:"1500ms"`
	CandleCapacity   int           `yaml:"candle_capacity" default:"200" validate:"gte=30"`
	KlineLimit       int           `yaml:"kline_limit" default:"210" validate:"gte=30,lte=1500"`
	DepthLimit       int           `yaml:"depth_limit" default:"50" validate:"gt=0"`
}

type CycleConfig struct {
	Interval           time.Duration `yaml:"interval" default:"60s" validate:"gt=0"`
	MaxParallelSymbols int           `yaml:"max_parallel_symbols" default:"8" validate:"gt=0"`
	DataParallelLimit  int           `yaml:"data_parallel_limit" default:"8" validate:"gt=0"`
	AgentTimeout       time.Duration `yaml:"agent_timeout" default:"25s" validate:"gt=0"`
	AgentWorkers       int           `yaml:"agent_workers" default:"0"`
	NBest              int           `yaml:"n_best" default:"5" validate:"gt=0"`
	ScalpTimeframe     string        `yaml:"scalp_timeframe" default:"15m"`
	MidtermTimeframe   string        `yaml:"midterm_timeframe" default:"1h"`
	MinBars            int           `yaml:"min_bars" default:"30" validate:"gte=30"`
}

type AgentsConfig struct {
	Disabled  []string                      `yaml:"disabled"`
	Overrides map[string]map[string]float64 `yaml:"overrides"`
}

type FeedbackConfig struct {
	Autolearn       bool   `yaml:"autolearn" default:"true"`
	Backend         string `yaml:"backend" default:"file" validate:"oneof=file redis"`
	ModelDir        string `yaml:"model_dir" default:"./models"`
	HistoryCapacity int    `yaml:"history_capacity" default:"50" validate:"gt=0"`
}

type ReportingConfig struct {
	LogDir      string        `yaml:"log_dir" default:"./logs"`
	DecisionLog bool          `yaml:"decision_log" default:"true"`
	Timeout     time.Duration `yaml:"timeout" default:"10s"`
	RetryMin    time.Duration `yaml:"retry_min" default:"50ms"`
	RetryMax    time.Duration `yaml:"retry_max" default:"2s"`
	RetryBuffer int           `yaml:"retry_buffer" default:"256"`
}

type TelegramConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Token     string        `yaml:"token" validate:"required_if=Enabled true"`
	ChatID    int64         `yaml:"chat_id" validate:"required_if=Enabled true"`
	Timeout   time.Duration `yaml:"timeout" default:"8s"`
	MaxAgents int           `yaml:"max_agents" default:"7"`
	UseQueue  bool          `yaml:"use_queue"`
}

type SentimentConfig struct {
	Enabled  bool          `yaml:"enabled"`
	BaseURL  string        `yaml:"base_url" validate:"required_if=Enabled true"`
	Timeout  time.Duration `yaml:"timeout" default:"5s"`
	CacheTTL time.Duration `yaml:"cache_ttl" default:"2m"`
}

type KafkaConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Brokers       []string `yaml:"brokers"`
	DecisionTopic string   `yaml:"decision_topic" default:"tradeordu.decisions"`
	OutcomeTopic  string   `yaml:"outcome_topic" default:"trade_outcomes"`
	LogTopic      string   `yaml:"log_topic" default:"tradeordu.logs"`
	RequiredAcks  int      `yaml:"required_acks" default:"-1"`
	Compression   string   `yaml:"compression" default:"snappy"`
	Producer      struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"5"`
		Linger       time.Duration `yaml:"linger" default:"20ms"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
	} `yaml:"producer"`
	Consumer struct {
		Enabled    bool          `yaml:"enabled"`
		GroupID    string        `yaml:"group_id" default:"tradeordu-outcomes"`
		Workers    int           `yaml:"workers" default:"2"`
		BufferSize int           `yaml:"buffer_size" default:"64"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
		DLQTopic   string        `yaml:"dlq_topic" default:"trade_outcomes.dlq"`
	} `yaml:"consumer"`
}

type ClickHouseConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"tradeordu"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host" default:"localhost"`
	Port     int    `yaml:"port" default:"6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix" default:"tradeordu"`
	Pool     struct {
		Size        int           `yaml:"size" default:"10"`
		MinIdle     int           `yaml:"min_idle" default:"2"`
		WaitTimeout time.Duration `yaml:"wait_timeout" default:"4s"`
	} `yaml:"pool"`
}

type QueueConfig struct {
	Workers    int           `yaml:"workers" default:"2"`
	RetryLimit int           `yaml:"retry_limit" default:"3"`
	RetryDelay time.Duration `yaml:"retry_delay" default:"10s"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var c Config
	if err := defaults.Set(&c); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &c
}

// Load reads a YAML file on top of the defaults and validates the result.
func Load(path string) (*Config, error) {
	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func parse(path string) (*Config, error) {
	c := Default()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// LoadWithEnv loads .env (if present), the YAML file, then applies
// environment overrides before validating.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := parse(path)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = splitList(v)
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	seconds := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = time.Duration(f * float64(time.Second))
		}
	}
	flag := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("BINANCE_API_KEY", &c.Exchange.APIKey)
	str("BINANCE_API_SECRET", &c.Exchange.APISecret)
	list("SYMBOLS", &c.Exchange.Symbols)
	num("MAX_SYMBOLS", &c.Exchange.MaxSymbols)

	num("MAX_PARALLEL_SYMBOL", &c.Cycle.MaxParallelSymbols)
	num("DATA_PARALLEL_LIMIT", &c.Cycle.DataParallelLimit)
	seconds("ANALYSIS_INTERVAL", &c.Cycle.Interval)
	seconds("AGENT_TIMEOUT_SEC", &c.Cycle.AgentTimeout)
	num("SIGNAL_N_BEST", &c.Cycle.NBest)
	str("SCALP_TF", &c.Cycle.ScalpTimeframe)
	str("MIDTERM_TF", &c.Cycle.MidtermTimeframe)

	flag("FEEDBACK_AUTOLEARN", &c.Feedback.Autolearn)
	str("MODEL_DIR", &c.Feedback.ModelDir)
	str("LOG_DIR", &c.Reporting.LogDir)
	str("LOG_LEVEL", &c.Log.Level)

	if v, ok := lookup("TELEGRAM_BOT_TOKEN"); ok && v != "" {
		c.Telegram.Token = v
		c.Telegram.Enabled = true
	}
	if v, ok := lookup("TELEGRAM_CHAT_ID"); ok && v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("TELEGRAM_CHAT_ID: %w", err))
		} else {
			c.Telegram.ChatID = id
		}
	}

	if v, ok := lookup("REDIS_URI"); ok && v != "" {
		if err := c.Redis.applyURI(v); err != nil {
			errs = append(errs, err)
		}
	}

	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		c.Kafka.Brokers = splitList(v)
		c.Kafka.Enabled = true
	}
	str("KAFKA_DECISION_TOPIC", &c.Kafka.DecisionTopic)

	return errors.Join(errs...)
}

// applyURI accepts redis://[:password@]host:port[/db].
func (r *RedisConfig) applyURI(uri string) error {
	rest := strings.TrimPrefix(uri, "redis://")
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		r.Password = strings.TrimPrefix(rest[:at], ":")
		rest = rest[at+1:]
	}
	if slash := strings.Index(rest, "/"); slash >= 0 {
		if db := rest[slash+1:]; db != "" {
			n, err := strconv.Atoi(db)
			if err != nil {
				return fmt.Errorf("REDIS_URI db: %w", err)
			}
			r.DB = n
		}
		rest = rest[:slash]
	}
	host, port, found := strings.Cut(rest, ":")
	if host != "" {
		r.Host = host
	}
	if found {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("REDIS_URI port: %w", err)
		}
		r.Port = p
	}
	r.Enabled = true
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks struct tags and the rules that span sections. Symbols
// are upper-cased in place.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	for i, s := range c.Exchange.Symbols {
		c.Exchange.Symbols[i] = strings.ToUpper(strings.TrimSpace(s))
		if c.Exchange.Symbols[i] == "" {
			return fmt.Errorf("exchange.symbols[%d] is empty", i)
		}
	}
	if c.Feedback.Backend == "redis" && !c.Redis.Enabled {
		return fmt.Errorf("feedback.backend is redis but redis is disabled")
	}
	if c.Telegram.UseQueue && !c.Redis.Enabled {
		return fmt.Errorf("telegram.use_queue requires redis")
	}
	if (c.Kafka.Enabled || c.Kafka.Consumer.Enabled) && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Reporting.RetryMin > c.Reporting.RetryMax {
		return fmt.Errorf("reporting.retry_min must not exceed retry_max")
	}
	return nil
}
