package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"PriceWatch/pkg/logger"
)

const (
	defaultTimezone    = "UTC"
	configPathEnv      = "PRICEWATCH_CONFIG"
	logLevelEnv        = "LOG_LEVEL"
	databaseDriverEnv  = "DATABASE_DRIVER"
	databaseDSNEnv     = "DATABASE_DSN"
	chatGPTAPIKeyEnv   = "CHATGPT_API_KEY"
	chatGPTModelEnv    = "CHATGPT_MODEL"
	chatGPTEndpointEnv = "CHATGPT_ENDPOINT"
	webhookURLEnv      = "ALERT_WEBHOOK_URL"
	telegramTokenEnv   = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv  = "TELEGRAM_CHAT_ID"
	cronSecretEnv      = "CRON_SECRET"
	httpAddrEnv        = "HTTP_ADDR"
)

var bootLog = logger.New("config")

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Database      DatabaseConfig     `yaml:"database"`
	Scraper       ScraperConfig      `yaml:"scraper"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	Health        HealthConfig       `yaml:"health"`
	ChatGPT       ChatGPTConfig      `yaml:"chatgpt"`
	Extraction    ExtractionConfig   `yaml:"extraction"`
	Notifications NotificationConfig `yaml:"notifications"`
	Server        ServerConfig       `yaml:"server"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
}

// LoggingConfig selects the slog level and output format ("text" or "json").
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DatabaseConfig describes the storage backend. Driver is "sqlite" or "postgres".
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// ScraperConfig tunes page fetching etiquette.
type ScraperConfig struct {
	Timeout       time.Duration `yaml:"timeout"`
	ThrottleMin   time.Duration `yaml:"throttleMin"`
	ThrottleMax   time.Duration `yaml:"throttleMax"`
	RatePerSecond float64       `yaml:"ratePerSecond"`
	RateBurst     int           `yaml:"rateBurst"`
	RespectRobots bool          `yaml:"respectRobots"`
}

// PipelineConfig holds batch, retry and anomaly policy.
type PipelineConfig struct {
	BatchSize        int           `yaml:"batchSize"`
	BatchPause       time.Duration `yaml:"batchPause"`
	RunTimeout       time.Duration `yaml:"runTimeout"`
	MaxAttempts      int           `yaml:"maxAttempts"`
	AttemptWindow    time.Duration `yaml:"attemptWindow"`
	AnomalyThreshold float64       `yaml:"anomalyThreshold"`
}

// HealthConfig defines the alerting policy.
type HealthConfig struct {
	WindowHours    int           `yaml:"windowHours"`
	AlertThreshold float64       `yaml:"alertThreshold"`
	Cooldown       time.Duration `yaml:"cooldown"`
}

// ChatGPTConfig defines how to contact the ChatGPT API.
type ChatGPTConfig struct {
	Endpoint      string        `yaml:"endpoint"`
	Model         string        `yaml:"model"`
	APIKey        string        `yaml:"apiKey"`
	SystemPrompt  string        `yaml:"systemPrompt"`
	Timeout       time.Duration `yaml:"timeout"`
	MinConfidence float64       `yaml:"minConfidence"`
	MaxHTMLChars  int           `yaml:"maxHtmlChars"`
}

// Enabled reports whether a language-model backend is configured.
func (c ChatGPTConfig) Enabled() bool {
	return c.APIKey != ""
}

// ExtractionConfig orders the extraction strategies.
type ExtractionConfig struct {
	Strategies []string `yaml:"strategies"`
}

// NotificationConfig encapsulates outbound alert channels.
type NotificationConfig struct {
	Webhook  WebhookConfig  `yaml:"webhook"`
	Telegram TelegramConfig `yaml:"telegram"`
}

// WebhookConfig is a generic JSON POST target.
type WebhookConfig struct {
	URL string `yaml:"url"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// ServerConfig configures the trigger HTTP API.
type ServerConfig struct {
	Addr       string `yaml:"addr"`
	CronSecret string `yaml:"cronSecret"`
}

// SchedulerConfig defines the optional in-process trigger. Zero interval disables it.
type SchedulerConfig struct {
	Interval time.Duration  `yaml:"interval"`
	Timezone string         `yaml:"timezone"`
	location *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// Load reads .env and YAML configuration (if present) and applies environment overrides.
func Load() Config {
	_ = godotenv.Load()

	cfg := Default()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			bootLog.Printf("cannot read %s: %v (falling back to defaults)", path, err)
		} else if err := yaml.Unmarshal(raw, &cfg); err != nil {
			bootLog.Printf("cannot parse %s: %v (falling back to defaults)", path, err)
			cfg = Default()
		}
	}

	cfg.applyEnvOverrides()
	cfg.normalize()
	cfg.bindTimezone()

	return cfg
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(databaseDriverEnv); v != "" {
		c.Database.Driver = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Database.DSN = v
	}

	if v := os.Getenv(chatGPTAPIKeyEnv); v != "" {
		c.ChatGPT.APIKey = v
	}

	if v := os.Getenv(chatGPTModelEnv); v != "" {
		c.ChatGPT.Model = v
	}

	if v := os.Getenv(chatGPTEndpointEnv); v != "" {
		c.ChatGPT.Endpoint = v
	}

	if v := os.Getenv(webhookURLEnv); v != "" {
		c.Notifications.Webhook.URL = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}

	if v := os.Getenv(cronSecretEnv); v != "" {
		c.Server.CronSecret = v
	}

	if v := os.Getenv(httpAddrEnv); v != "" {
		c.Server.Addr = v
	}
}

// normalize restores defaults for values a partial YAML file zeroed out.
func (c *Config) normalize() {
	def := Default()

	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "" {
		c.Database.Driver = def.Database.Driver
	}
	if c.Database.DSN == "" {
		c.Database.DSN = def.Database.DSN
	}
	if c.Pipeline.BatchSize <= 0 {
		c.Pipeline.BatchSize = def.Pipeline.BatchSize
	}
	if c.Pipeline.MaxAttempts <= 0 {
		c.Pipeline.MaxAttempts = def.Pipeline.MaxAttempts
	}
	if c.Pipeline.AttemptWindow <= 0 {
		c.Pipeline.AttemptWindow = def.Pipeline.AttemptWindow
	}
	if c.Pipeline.RunTimeout <= 0 {
		c.Pipeline.RunTimeout = def.Pipeline.RunTimeout
	}
	if c.Pipeline.AnomalyThreshold <= 0 {
		c.Pipeline.AnomalyThreshold = def.Pipeline.AnomalyThreshold
	}
	if c.Health.WindowHours <= 0 {
		c.Health.WindowHours = def.Health.WindowHours
	}
	if c.Health.AlertThreshold <= 0 {
		c.Health.AlertThreshold = def.Health.AlertThreshold
	}
	if c.Health.Cooldown <= 0 {
		c.Health.Cooldown = def.Health.Cooldown
	}
	if len(c.Extraction.Strategies) == 0 {
		c.Extraction.Strategies = def.Extraction.Strategies
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		bootLog.Printf("unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

// Default returns the production defaults.
func Default() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "pricewatch.db"},
		Scraper: ScraperConfig{
			Timeout:       30 * time.Second,
			ThrottleMin:   2 * time.Second,
			ThrottleMax:   5 * time.Second,
			RatePerSecond: 1,
			RateBurst:     3,
		},
		Pipeline: PipelineConfig{
			BatchSize:        10,
			BatchPause:       5 * time.Second,
			RunTimeout:       5 * time.Minute,
			MaxAttempts:      3,
			AttemptWindow:    24 * time.Hour,
			AnomalyThreshold: 0.5,
		},
		Health: HealthConfig{
			WindowHours:    24,
			AlertThreshold: 15,
			Cooldown:       6 * time.Hour,
		},
		ChatGPT: ChatGPTConfig{
			Endpoint:      "https://api.openai.com/v1/chat/completions",
			Model:         "gpt-4o-mini",
			Timeout:       45 * time.Second,
			MinConfidence: 0.8,
			MaxHTMLChars:  60000,
		},
		Extraction: ExtractionConfig{Strategies: []string{"selector", "ai", "metadata"}},
		Server:     ServerConfig{Addr: ":8080"},
		Scheduler:  SchedulerConfig{Interval: 0, Timezone: defaultTimezone, location: tz},
	}
}
