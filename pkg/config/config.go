package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"MarketRelay/pkg/util"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Known collector families.
const (
	CollectorCrypto    = "crypto"
	CollectorForex     = "forex"
	CollectorCommodity = "commodity"
	CollectorStock     = "stock"
	CollectorIntl      = "intl"
)

var knownCollectors = map[string]bool{
	CollectorCrypto:    true,
	CollectorForex:     true,
	CollectorCommodity: true,
	CollectorStock:     true,
	CollectorIntl:      true,
}

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"4005"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout"` // 0 keeps long-lived streams open
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		APIKey          string        `yaml:"api_key"`
		AllowedOrigins  []string      `yaml:"allowed_origins"`
		SlowRequest     time.Duration `yaml:"slow_request" default:"2s"`
		RateLimit       float64       `yaml:"rate_limit" default:"20"` // requests/s per client on admin and trade, 0 disables
		RateBurst       int           `yaml:"rate_burst" default:"40"`
	} `yaml:"server"`
	Log struct {
		Level        string `yaml:"level" default:"info"`
		Format       string `yaml:"format" default:"console"`
		Output       string `yaml:"output" default:"stdout"`
		CollectTopic string `yaml:"collect_topic"`
	} `yaml:"log"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Persistence struct {
		StateDir  string `yaml:"state_dir" default:"data"`
		ConfigKey string `yaml:"config_key" default:"admin:config"`
		EventKey  string `yaml:"event_key" default:"market:last"`
	} `yaml:"persistence"`
	Redis struct {
		URL      string `yaml:"url"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port" default:"6379"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TLS      bool   `yaml:"tls"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool          `yaml:"enabled"`
		Brokers      []string      `yaml:"brokers"`
		Topic        string        `yaml:"topic" default:"market.events"`
		RequiredAcks int           `yaml:"required_acks" default:"1"`
		Compression  string        `yaml:"compression" default:"snappy"`
		MaxAttempts  int           `yaml:"max_attempts" default:"3"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"200ms"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"5s"`
	} `yaml:"kafka"`
	Stream struct {
		EventName string        `yaml:"event_name"`
		KeepAlive time.Duration `yaml:"keep_alive" default:"15s"`
	} `yaml:"stream"`
	Collector struct {
		Enabled       []string      `yaml:"enabled"`
		Retries       int           `yaml:"retries" default:"3"`
		RetryDelay    time.Duration `yaml:"retry_delay" default:"2s"`
		MaxBackoff    time.Duration `yaml:"max_backoff" default:"10m"`
		Debounce      time.Duration `yaml:"debounce" default:"2s"`
		IntlDebounce  time.Duration `yaml:"intl_debounce" default:"5s"`
		HTTPTimeout   time.Duration `yaml:"http_timeout" default:"15s"`
		PausedMarkets []string      `yaml:"paused_markets"`
		Intervals     struct {
			Global    time.Duration `yaml:"global" default:"10s"`
			Crypto    time.Duration `yaml:"crypto"`
			Forex     time.Duration `yaml:"forex"`
			Commodity time.Duration `yaml:"commodity"`
			Stock     time.Duration `yaml:"stock" default:"15s"`
			Intl      time.Duration `yaml:"intl" default:"30s"`
		} `yaml:"intervals"`
	} `yaml:"collector"`
	Providers struct {
		TradingViewURL     string        `yaml:"tradingview_url" default:"https://scanner.tradingview.com/global/scan"`
		TradingViewSession string        `yaml:"tradingview_session"`
		CoinGeckoURL       string        `yaml:"coingecko_url" default:"https://api.coingecko.com/api/v3/coins/markets"`
		GetMidasURL        string        `yaml:"getmidas_url" default:"https://www.getmidas.com/canli-borsa/xu100-bist-100-hisseleri"`
		FXRateURL          string        `yaml:"fx_rate_url" default:"https://api.exchangerate-api.com/v4/latest/USD"`
		FXRefresh          time.Duration `yaml:"fx_refresh" default:"1h"`
		FXDefaultRate      float64       `yaml:"fx_default_rate" default:"33"`
		ExchangesFile      string        `yaml:"exchanges_file" default:"config/exchanges.json"`
		CompaniesFile      string        `yaml:"companies_file" default:"config/country_companies.json"`
	} `yaml:"providers"`
}

// Load reads and parses a YAML configuration file on top of the struct defaults.
// A missing file is not an error: the defaults are used as-is.
func Load(path string) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("config defaults: %w", err)
	}

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads .env (if present), the YAML file and then applies
// environment variable overrides.
func LoadWithEnv(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	c, err := Load(path)
	if err != nil {
		return nil, err
	}

	c.applyEnv()

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv() {
	if v, ok := envInt("PORT"); ok {
		c.Server.Port = v
	}
	if v := os.Getenv("API_KEY"); v != "" {
		c.Server.APIKey = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		c.Server.AllowedOrigins = util.SplitList(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("STATE_DIR"); v != "" {
		c.Persistence.StateDir = v
	}

	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v, ok := envInt("REDIS_PORT"); ok {
		c.Redis.Port = v
	}
	if v := os.Getenv("REDIS_USERNAME"); v != "" {
		c.Redis.Username = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if os.Getenv("REDIS_TLS") == "1" {
		c.Redis.TLS = true
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = util.SplitList(v)
		c.Kafka.Enabled = true
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}

	if v := os.Getenv("TRADINGVIEW_SESSION_ID"); v != "" {
		c.Providers.TradingViewSession = v
	}
	if v := os.Getenv("COLLECTORS"); v != "" {
		c.Collector.Enabled = util.SplitList(strings.ToLower(v))
	}
	if v := os.Getenv("PAUSED_MARKETS"); v != "" {
		c.Collector.PausedMarkets = util.SplitList(strings.ToUpper(v))
	}

	iv := &c.Collector.Intervals
	for _, name := range []string{"GLOBAL_INTERVAL_MS", "COINGECKO_INTERVAL_MS", "TVAPI_INTERVAL"} {
		if d, ok := envMillis(name); ok {
			iv.Global = d
			break
		}
	}
	if d, ok := envMillis("CRYPTO_INTERVAL_MS"); ok {
		iv.Crypto = d
	}
	if d, ok := envMillis("FOREX_INTERVAL_MS"); ok {
		iv.Forex = d
	}
	if d, ok := envMillis("COMMODITY_INTERVAL_MS"); ok {
		iv.Commodity = d
	}
	if d, ok := envMillis("BIST_INTERVAL_MS"); ok {
		iv.Stock = d
	}
	if d, ok := envMillis("INTL_INTERVAL_MS"); ok {
		iv.Intl = d
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port)
	}
	if c.Collector.Intervals.Global <= 0 {
		return fmt.Errorf("collector.intervals.global must be positive")
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit cannot be negative")
	}
	if c.Collector.Retries < 0 {
		return fmt.Errorf("collector.retries cannot be negative")
	}
	for _, name := range c.Collector.Enabled {
		if !knownCollectors[name] {
			return fmt.Errorf("unknown collector %q", name)
		}
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	return nil
}

// CollectorEnabled reports whether a collector family should run.
// An empty list enables every family.
func (c *Config) CollectorEnabled(name string) bool {
	if len(c.Collector.Enabled) == 0 {
		return true
	}
	for _, n := range c.Collector.Enabled {
		if n == name {
			return true
		}
	}
	return false
}

// RedisConfigured reports whether an external key-value store was configured.
func (c *Config) RedisConfigured() bool {
	return c.Redis.URL != "" || c.Redis.Host != ""
}

func envInt(name string) (int, bool) {
	v := os.Getenv(name)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envMillis(name string) (time.Duration, bool) {
	n, ok := envInt(name)
	if !ok || n <= 0 {
		return 0, false
	}
	return time.Duration(n) * time.Millisecond, true
}
