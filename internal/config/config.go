package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Log        LogConfig        `yaml:"log"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Queues     QueueConfig      `yaml:"queues"`
	MarketData MarketDataConfig `yaml:"market_data"`
	Monitor    MonitorConfig    `yaml:"monitor"`
	Report     ReportConfig     `yaml:"report"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Port string `yaml:"port" default:":8080"`
	Host string `yaml:"host" default:"localhost"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Driver string `yaml:"driver" default:"sqlite"`
	DSN    string `yaml:"dsn" default:"stock-alerts.db"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level  string `yaml:"level" default:"info"`
	Format string `yaml:"format" default:"json"`
}

// TelegramConfig holds the credential tokens and the chat id bound to each
// logical notification channel.
type TelegramConfig struct {
	Tokens      []string `yaml:"tokens"`
	BuyChat     string   `yaml:"buy_chat"`
	SellChat    string   `yaml:"sell_chat"`
	BuyEODChat  string   `yaml:"buy_eod_chat"`
	SellEODChat string   `yaml:"sell_eod_chat"`
	PoolSize    int      `yaml:"pool_size"` // 0 = max(3, NumCPU)
}

// QueueConfig fixes the bounded queue capacities at startup.
type QueueConfig struct {
	Persistence int `yaml:"persistence" default:"1000"`
	Message     int `yaml:"message" default:"1000"`
	MessageEOD  int `yaml:"message_eod" default:"200"`
	BatchSize   int `yaml:"batch_size" default:"50"`
	DrainWaitMS int `yaml:"drain_wait_ms" default:"20"`
}

// MarketDataConfig selects and configures the market data provider.
type MarketDataConfig struct {
	Provider string        `yaml:"provider" default:"rest"` // rest, binance
	BaseURL  string        `yaml:"base_url" default:"http://localhost:8081"`
	Binance  BinanceConfig `yaml:"binance"`
}

// BinanceConfig represents Binance market data credentials
type BinanceConfig struct {
	APIKey    string `yaml:"api_key"`
	SecretKey string `yaml:"secret_key"`
}

// MonitorConfig configures the stoploss monitor loop.
type MonitorConfig struct {
	IntervalSeconds int    `yaml:"interval_seconds" default:"30"`
	ForceRun        bool   `yaml:"force_run" default:"false"`
	MarketOpen      string `yaml:"market_open" default:"09:15"`
	MarketClose     string `yaml:"market_close" default:"15:30"`
	SymbolTimeoutMS int    `yaml:"symbol_timeout_ms" default:"3000"`
}

// ReportConfig configures end-of-day report generation.
type ReportConfig struct {
	Dir string `yaml:"dir" default:"reports"`
	At  string `yaml:"at" default:"23:05"`
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	config.applyEnvOverrides()
	return &config, nil
}

// SaveConfig saves configuration to a YAML file
func SaveConfig(config *Config, filename string) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Database.DSN == "" {
		c.Database.DSN = "stock-alerts.db"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Queues.Persistence <= 0 {
		c.Queues.Persistence = 1000
	}
	if c.Queues.Message <= 0 {
		c.Queues.Message = 1000
	}
	if c.Queues.MessageEOD <= 0 {
		c.Queues.MessageEOD = 200
	}
	if c.Queues.BatchSize <= 0 {
		c.Queues.BatchSize = 50
	}
	if c.Queues.DrainWaitMS <= 0 {
		c.Queues.DrainWaitMS = 20
	}
	if c.MarketData.Provider == "" {
		c.MarketData.Provider = "rest"
	}
	if c.MarketData.BaseURL == "" {
		c.MarketData.BaseURL = "http://localhost:8081"
	}
	if c.Monitor.IntervalSeconds <= 0 {
		c.Monitor.IntervalSeconds = 30
	}
	if c.Monitor.MarketOpen == "" {
		c.Monitor.MarketOpen = "09:15"
	}
	if c.Monitor.MarketClose == "" {
		c.Monitor.MarketClose = "15:30"
	}
	if c.Monitor.SymbolTimeoutMS <= 0 {
		c.Monitor.SymbolTimeoutMS = 3000
	}
	if c.Report.Dir == "" {
		c.Report.Dir = "reports"
	}
	if c.Report.At == "" {
		c.Report.At = "23:05"
	}
}

// applyEnvOverrides lets deployment environments inject credentials without
// touching the config file. TELEGRAM_TOKENS is a comma-joined token list.
func (c *Config) applyEnvOverrides() {
	if tokens := os.Getenv("TELEGRAM_TOKENS"); tokens != "" {
		c.Telegram.Tokens = strings.Split(tokens, ",")
	}
	if key := os.Getenv("BINANCE_API_KEY"); key != "" {
		c.MarketData.Binance.APIKey = key
	}
	if secret := os.Getenv("BINANCE_SECRET_KEY"); secret != "" {
		c.MarketData.Binance.SecretKey = secret
	}
}
