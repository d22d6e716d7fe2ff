package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"otcdesk/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Quote    QuoteConfig    `mapstructure:"quote"`
	Pricing  PricingConfig  `mapstructure:"pricing"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Export   ExportConfig   `mapstructure:"export"`
}

// AppConfig general metadata. NodeID distinguishes concurrent deployments
// when generating transaction ids.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	NodeID      int64  `mapstructure:"node_id"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// QuoteConfig captures the OTC order-book source.
type QuoteConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	QuoteCurrency  string        `mapstructure:"quote_currency"`
	BaseCurrency   string        `mapstructure:"base_currency"`
	PaymentChannel string        `mapstructure:"payment_channel"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// PricingConfig holds the bootstrap markup used while the global settings
// row has not been written yet.
type PricingConfig struct {
	GlobalMarkup float64 `mapstructure:"global_markup"`
}

// MonitorConfig governs the alert monitor cadence.
type MonitorConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	Debounce        time.Duration `mapstructure:"debounce"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
}

// DispatchConfig tunes customer-service assignment.
type DispatchConfig struct {
	DefaultStrategy string        `mapstructure:"default_strategy"`
	SmartCutoff     float64       `mapstructure:"smart_cutoff"`
	StickyTTL       time.Duration `mapstructure:"sticky_ttl"`
}

// TelegramConfig 描述 Telegram 通知参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("OTCDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "otcdesk")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.node_id", int64(1))

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("quote.base_url", "https://www.okx.com")
	v.SetDefault("quote.quote_currency", "CNY")
	v.SetDefault("quote.base_currency", "USDT")
	v.SetDefault("quote.payment_channel", "aliPay")
	v.SetDefault("quote.request_timeout", "10s")
	v.SetDefault("quote.user_agent", "otcdesk/1.0")

	v.SetDefault("pricing.global_markup", 0.0)

	v.SetDefault("monitor.interval", "1m")
	v.SetDefault("monitor.debounce", "5m")
	v.SetDefault("monitor.startup_delay", "0s")
	v.SetDefault("monitor.advisory_lock_key", int64(0x6f746364))

	v.SetDefault("dispatch.default_strategy", "smart")
	v.SetDefault("dispatch.smart_cutoff", 0.8)
	v.SetDefault("dispatch.sticky_ttl", "10m")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.App.NodeID < 0 || c.App.NodeID > 1023 {
		return fmt.Errorf("app.node_id must be within [0,1023]")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor.interval must be greater than zero")
	}
	if c.Monitor.Debounce <= 0 {
		return fmt.Errorf("monitor.debounce must be greater than zero")
	}
	if c.Quote.PaymentChannel == "" {
		return fmt.Errorf("quote.payment_channel is required")
	}
	if c.Dispatch.SmartCutoff <= 0 || c.Dispatch.SmartCutoff > 1 {
		return fmt.Errorf("dispatch.smart_cutoff must be within (0,1]")
	}
	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token 必须配置")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
