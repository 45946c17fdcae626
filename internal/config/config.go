package config

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all DWLR Guardian configuration.
type Config struct {
	Data       DataConfig       `mapstructure:"data" yaml:"data"`
	Storage    StorageConfig    `mapstructure:"storage" yaml:"storage"`
	Thresholds ThresholdsConfig `mapstructure:"thresholds" yaml:"thresholds"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Alerts     AlertsConfig     `mapstructure:"alerts" yaml:"alerts"`
	Dispatch   DispatchConfig   `mapstructure:"dispatch" yaml:"dispatch"`
	History    HistoryConfig    `mapstructure:"history" yaml:"history"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-" yaml:"-"`
}

// DataConfig selects where readings come from.
type DataConfig struct {
	Source  string `mapstructure:"source" yaml:"source"` // csv or sqlite
	CSVPath string `mapstructure:"csv_path" yaml:"csv_path"`
}

// StorageConfig defines database settings.
type StorageConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// ThresholdsConfig bounds the normal water level range in metres.
type ThresholdsConfig struct {
	Low  float64 `mapstructure:"low_threshold" yaml:"low_threshold"`
	High float64 `mapstructure:"high_threshold" yaml:"high_threshold"`
}

// ServerConfig defines the HTTP API settings.
type ServerConfig struct {
	Listen       string   `mapstructure:"listen" yaml:"listen"`
	ReadTimeout  string   `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout string   `mapstructure:"write_timeout" yaml:"write_timeout"`
	CORSOrigins  []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// AlertsConfig defines notification channels.
type AlertsConfig struct {
	Email    EmailConfig    `mapstructure:"email" yaml:"email"`
	SMS      SMSConfig      `mapstructure:"sms" yaml:"sms"`
	Webhook  WebhookConfig  `mapstructure:"webhook" yaml:"webhook"`
	Slack    SlackConfig    `mapstructure:"slack" yaml:"slack"`
	Telegram TelegramConfig `mapstructure:"telegram" yaml:"telegram"`
	Kafka    KafkaConfig    `mapstructure:"kafka" yaml:"kafka"`
	MQTT     MQTTConfig     `mapstructure:"mqtt" yaml:"mqtt"`
}

// EmailConfig defines the SMTP relay.
type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	From     string `mapstructure:"from" yaml:"from"`
	To       string `mapstructure:"to" yaml:"to"`
	Subject  string `mapstructure:"subject" yaml:"subject"`
	Timeout  string `mapstructure:"timeout" yaml:"timeout"`
}

// SMSConfig defines the bulk SMS gateway.
type SMSConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	APIKey   string `mapstructure:"api_key" yaml:"api_key"`
	SenderID string `mapstructure:"sender_id" yaml:"sender_id"`
	Route    string `mapstructure:"route" yaml:"route"`
	Phone    string `mapstructure:"phone" yaml:"phone"`
	Timeout  string `mapstructure:"timeout" yaml:"timeout"`
}

// WebhookConfig defines generic webhook settings.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	URL     string `mapstructure:"url" yaml:"url"`
	Secret  string `mapstructure:"secret" yaml:"secret"`
	Timeout string `mapstructure:"timeout" yaml:"timeout"`
}

// SlackConfig defines Slack webhook settings.
type SlackConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	WebhookURL string `mapstructure:"webhook_url" yaml:"webhook_url"`
	Channel    string `mapstructure:"channel" yaml:"channel"`
	Timeout    string `mapstructure:"timeout" yaml:"timeout"`
}

// TelegramConfig defines Telegram bot settings.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Token    string `mapstructure:"token" yaml:"token"`
	ChatID   int64  `mapstructure:"chat_id" yaml:"chat_id"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	Timeout  string `mapstructure:"timeout" yaml:"timeout"`
}

// KafkaConfig defines the Kafka alert topic.
type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled" yaml:"enabled"`
	Brokers []string `mapstructure:"brokers" yaml:"brokers"`
	Topic   string   `mapstructure:"topic" yaml:"topic"`
}

// MQTTConfig defines the MQTT broker.
type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Broker      string `mapstructure:"broker" yaml:"broker"`
	ClientID    string `mapstructure:"client_id" yaml:"client_id"`
	TopicPrefix string `mapstructure:"topic_prefix" yaml:"topic_prefix"`
	Timeout     string `mapstructure:"timeout" yaml:"timeout"`
}

// DispatchConfig controls how alerts reach the notifiers.
type DispatchConfig struct {
	Mode        string `mapstructure:"mode" yaml:"mode"` // async or sync
	QueueSize   int    `mapstructure:"queue_size" yaml:"queue_size"`
	MaxAttempts int    `mapstructure:"max_attempts" yaml:"max_attempts"`
	Backoff     string `mapstructure:"backoff" yaml:"backoff"`
	SendTimeout string `mapstructure:"send_timeout" yaml:"send_timeout"`
}

// HistoryConfig controls the alert log.
type HistoryConfig struct {
	Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
	Retention     string `mapstructure:"retention" yaml:"retention"`
	PruneSchedule string `mapstructure:"prune_schedule" yaml:"prune_schedule"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Load reads configuration from file and environment variables.
// Environment variables use the DWLR_ prefix, e.g. DWLR_ALERTS_SMS_API_KEY.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("find home directory: %w", err)
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(filepath.Join(home, ".dwlr"))
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	setDefaults(v, home)

	v.SetEnvPrefix("DWLR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	return &cfg, nil
}

func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("data.source", "csv")
	v.SetDefault("data.csv_path", "dwlr_data.csv")
	v.SetDefault("storage.path", filepath.Join(home, ".dwlr", "dwlr.db"))

	v.SetDefault("thresholds.low_threshold", 2.0)
	v.SetDefault("thresholds.high_threshold", 10.0)

	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.cors_origins", []string{"*"})

	// Secrets default to empty so they can only come from the file or env.
	v.SetDefault("alerts.email.enabled", false)
	v.SetDefault("alerts.email.host", "smtp.gmail.com")
	v.SetDefault("alerts.email.port", 587)
	v.SetDefault("alerts.email.username", "")
	v.SetDefault("alerts.email.password", "")
	v.SetDefault("alerts.email.from", "")
	v.SetDefault("alerts.email.to", "")
	v.SetDefault("alerts.email.subject", "🚨 DWLR Water Level Alert")
	v.SetDefault("alerts.email.timeout", "10s")

	v.SetDefault("alerts.sms.enabled", false)
	v.SetDefault("alerts.sms.endpoint", "https://www.fast2sms.com/dev/bulkV2")
	v.SetDefault("alerts.sms.api_key", "")
	v.SetDefault("alerts.sms.sender_id", "TXTIND")
	v.SetDefault("alerts.sms.route", "v3")
	v.SetDefault("alerts.sms.phone", "")
	v.SetDefault("alerts.sms.timeout", "10s")

	v.SetDefault("alerts.webhook.enabled", false)
	v.SetDefault("alerts.webhook.url", "")
	v.SetDefault("alerts.webhook.secret", "")
	v.SetDefault("alerts.webhook.timeout", "10s")

	v.SetDefault("alerts.slack.enabled", false)
	v.SetDefault("alerts.slack.webhook_url", "")
	v.SetDefault("alerts.slack.channel", "#groundwater")
	v.SetDefault("alerts.slack.timeout", "10s")

	v.SetDefault("alerts.telegram.enabled", false)
	v.SetDefault("alerts.telegram.token", "")
	v.SetDefault("alerts.telegram.chat_id", 0)
	v.SetDefault("alerts.telegram.endpoint", "")
	v.SetDefault("alerts.telegram.timeout", "10s")

	v.SetDefault("alerts.kafka.enabled", false)
	v.SetDefault("alerts.kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("alerts.kafka.topic", "dwlr.alerts")

	v.SetDefault("alerts.mqtt.enabled", false)
	v.SetDefault("alerts.mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("alerts.mqtt.client_id", "dwlr-guardian")
	v.SetDefault("alerts.mqtt.topic_prefix", "dwlr/alerts")
	v.SetDefault("alerts.mqtt.timeout", "10s")

	v.SetDefault("dispatch.mode", "async")
	v.SetDefault("dispatch.queue_size", 64)
	v.SetDefault("dispatch.max_attempts", 3)
	v.SetDefault("dispatch.backoff", "2s")
	v.SetDefault("dispatch.send_timeout", "30s")

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.retention", "720h")
	v.SetDefault("history.prune_schedule", "@daily")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks the configuration for values that would fail at runtime.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	low, high := c.Thresholds.Low, c.Thresholds.High
	switch {
	case math.IsNaN(low) || math.IsInf(low, 0) || math.IsNaN(high) || math.IsInf(high, 0):
		add("thresholds: low_threshold and high_threshold must be finite, got %v and %v", low, high)
	case !(low < high):
		add("thresholds: low_threshold %.2f must be below high_threshold %.2f", low, high)
	}

	switch c.Data.Source {
	case "csv":
		if c.Data.CSVPath == "" {
			add("data.csv_path is required when data.source is csv")
		}
	case "sqlite":
	default:
		add("data.source must be csv or sqlite, got %q", c.Data.Source)
	}

	switch c.Dispatch.Mode {
	case "sync", "async":
	default:
		add("dispatch.mode must be sync or async, got %q", c.Dispatch.Mode)
	}
	if c.Dispatch.Mode == "async" && c.Dispatch.QueueSize <= 0 {
		add("dispatch.queue_size must be positive")
	}
	if c.Dispatch.MaxAttempts < 1 {
		add("dispatch.max_attempts must be at least 1")
	}

	durations := map[string]string{
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"alerts.email.timeout":    c.Alerts.Email.Timeout,
		"alerts.sms.timeout":      c.Alerts.SMS.Timeout,
		"alerts.webhook.timeout":  c.Alerts.Webhook.Timeout,
		"alerts.slack.timeout":    c.Alerts.Slack.Timeout,
		"alerts.telegram.timeout": c.Alerts.Telegram.Timeout,
		"alerts.mqtt.timeout":     c.Alerts.MQTT.Timeout,
		"dispatch.backoff":        c.Dispatch.Backoff,
		"dispatch.send_timeout":   c.Dispatch.SendTimeout,
		"history.retention":       c.History.Retention,
	}
	for _, key := range slices.Sorted(maps.Keys(durations)) {
		raw := durations[key]
		if raw == "" {
			continue
		}
		if d, err := time.ParseDuration(raw); err != nil || d < 0 {
			add("%s: invalid duration %q", key, raw)
		}
	}

	a := c.Alerts
	if a.Email.Enabled {
		if a.Email.Host == "" || a.Email.To == "" {
			add("alerts.email: host and to are required")
		}
		if a.Email.Username == "" || a.Email.Password == "" {
			add("alerts.email: username and password are required (set DWLR_ALERTS_EMAIL_USERNAME and DWLR_ALERTS_EMAIL_PASSWORD)")
		}
	}
	if a.SMS.Enabled {
		if a.SMS.APIKey == "" {
			add("alerts.sms: api_key is required (set DWLR_ALERTS_SMS_API_KEY)")
		}
		if a.SMS.Phone == "" {
			add("alerts.sms: phone is required")
		}
	}
	if a.Webhook.Enabled && a.Webhook.URL == "" {
		add("alerts.webhook: url is required")
	}
	if a.Slack.Enabled && a.Slack.WebhookURL == "" {
		add("alerts.slack: webhook_url is required")
	}
	if a.Telegram.Enabled && (a.Telegram.Token == "" || a.Telegram.ChatID == 0) {
		add("alerts.telegram: token and chat_id are required")
	}
	if a.Kafka.Enabled && (len(a.Kafka.Brokers) == 0 || a.Kafka.Topic == "") {
		add("alerts.kafka: brokers and topic are required")
	}
	if a.MQTT.Enabled && a.MQTT.Broker == "" {
		add("alerts.mqtt: broker is required")
	}

	return errors.Join(errs...)
}

// Redacted returns a copy with secrets masked, suitable for display.
func (c *Config) Redacted() *Config {
	out := *c
	mask := func(s *string) {
		if *s != "" {
			*s = "********"
		}
	}
	mask(&out.Alerts.Email.Password)
	mask(&out.Alerts.SMS.APIKey)
	mask(&out.Alerts.Webhook.Secret)
	mask(&out.Alerts.Slack.WebhookURL)
	mask(&out.Alerts.Telegram.Token)
	return &out
}

// Duration parses s, returning fallback when s is empty or invalid.
func Duration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
