package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// PostgresConfig holds the database connection settings.
type PostgresConfig struct {
	URL string
}

type HTTPConfig struct {
	Addr string
}

// GatewayConfig holds the bank gateway credentials and QR template.
type GatewayConfig struct {
	BaseURL       string
	SecretKey     string
	AccountNumber string
	Timeout       time.Duration
	AmountScale   int32
	QRTemplateURL string
}

// ReconConfig tunes the background poller.
type ReconConfig struct {
	PollInterval time.Duration
	PollBudget   time.Duration
	FeedLimit    int
}

type OutboxConfig struct {
	Schedule   string
	BatchSize  int
	StaleAfter time.Duration
}

type ReportConfig struct {
	StaleApprovedSchedule string
}

// RabbitMQConfig configures the settlement event relay.
// An empty URL disables it.
type RabbitMQConfig struct {
	URL      string
	Exchange string
}

// ModeratorBotConfig configures the operator Telegram bot.
// An empty Token disables it.
type ModeratorBotConfig struct {
	Token       string
	Mode        string // "polling" or "webhook"
	AdminIDs    []int64
	ChannelID   int64
	WebhookURL  string
	WebhookPort int
}

type BotConfig struct {
	Moderator ModeratorBotConfig
}

// Config holds all configuration for the application.
type Config struct {
	AppEnv        string
	LogLevel      string
	EncryptionKey string
	Postgres      PostgresConfig
	HTTP          HTTPConfig
	Gateway       GatewayConfig
	Recon         ReconConfig
	Outbox        OutboxConfig
	Report        ReportConfig
	RabbitMQ      RabbitMQConfig
	Bot           BotConfig
}

// IsDev reports whether the service runs in development mode.
func (c *Config) IsDev() bool {
	return c.AppEnv == "dev"
}

// EncryptionKeyBytes returns the decoded encryption key.
func (c *Config) EncryptionKeyBytes() ([]byte, error) {
	return hex.DecodeString(c.EncryptionKey)
}

// envBindings maps viper keys to the environment variables feeding them.
var envBindings = [][2]string{
	{"app.env", "APP_ENV"},
	{"log.level", "LOG_LEVEL"},
	{"encryption.key", "ENCRYPTION_KEY"},
	{"postgres.url", "DATABASE_URL"},
	{"http.addr", "HTTP_ADDR"},
	{"gateway.base_url", "GATEWAY_BASE_URL"},
	{"gateway.secret_key", "GATEWAY_SECRET_KEY"},
	{"gateway.account_number", "GATEWAY_ACCOUNT_NUMBER"},
	{"gateway.timeout", "GATEWAY_TIMEOUT"},
	{"gateway.amount_scale", "GATEWAY_AMOUNT_SCALE"},
	{"gateway.qr_template_url", "QR_TEMPLATE_URL"},
	{"recon.poll_interval", "RECON_POLL_INTERVAL"},
	{"recon.poll_budget", "RECON_POLL_BUDGET"},
	{"recon.feed_limit", "RECON_FEED_LIMIT"},
	{"outbox.schedule", "OUTBOX_SCHEDULE"},
	{"outbox.batch_size", "OUTBOX_BATCH_SIZE"},
	{"outbox.stale_after", "OUTBOX_STALE_AFTER"},
	{"report.stale_approved_schedule", "REPORT_STALE_APPROVED_SCHEDULE"},
	{"rabbitmq.url", "RABBITMQ_URL"},
	{"rabbitmq.exchange", "RABBITMQ_EXCHANGE"},
	{"bot.moderator.token", "BOT_MODERATOR_TOKEN"},
	{"bot.moderator.mode", "BOT_MODERATOR_MODE"},
	{"bot.moderator.admin_ids", "BOT_MODERATOR_ADMIN_IDS"},
	{"bot.moderator.channel_id", "BOT_MODERATOR_CHANNEL_ID"},
	{"bot.moderator.webhook_url", "BOT_MODERATOR_WEBHOOK_URL"},
	{"bot.moderator.webhook_port", "BOT_MODERATOR_WEBHOOK_PORT"},
}

// Load loads configuration from the environment, after merging a .env
// file from the working directory when one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	v := viper.New()
	for _, b := range envBindings {
		if err := v.BindEnv(b[0], b[1]); err != nil {
			return nil, fmt.Errorf("could not bind %s: %w", b[0], err)
		}
	}

	v.SetDefault("app.env", "dev")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("gateway.timeout", "10s")
	v.SetDefault("gateway.amount_scale", 0)
	v.SetDefault("gateway.qr_template_url", "https://qr.sepay.vn/img?acc={account}&bank={bank}&amount={amount}&des={content}")
	v.SetDefault("recon.poll_interval", "5s")
	v.SetDefault("recon.poll_budget", "3m")
	v.SetDefault("recon.feed_limit", 20)
	v.SetDefault("outbox.schedule", "@every 30s")
	v.SetDefault("outbox.batch_size", 50)
	v.SetDefault("outbox.stale_after", "2m")
	v.SetDefault("report.stale_approved_schedule", "@every 15m")
	v.SetDefault("rabbitmq.exchange", "payout_events")
	v.SetDefault("bot.moderator.mode", "polling")
	v.SetDefault("bot.moderator.webhook_port", 8443)

	adminIDs, err := parseIDList(v.GetString("bot.moderator.admin_ids"))
	if err != nil {
		return nil, fmt.Errorf("invalid BOT_MODERATOR_ADMIN_IDS: %w", err)
	}

	cfg := Config{
		AppEnv:        v.GetString("app.env"),
		LogLevel:      v.GetString("log.level"),
		EncryptionKey: v.GetString("encryption.key"),
		Postgres:      PostgresConfig{URL: v.GetString("postgres.url")},
		HTTP:          HTTPConfig{Addr: v.GetString("http.addr")},
		Gateway: GatewayConfig{
			BaseURL:       v.GetString("gateway.base_url"),
			SecretKey:     v.GetString("gateway.secret_key"),
			AccountNumber: v.GetString("gateway.account_number"),
			Timeout:       v.GetDuration("gateway.timeout"),
			AmountScale:   v.GetInt32("gateway.amount_scale"),
			QRTemplateURL: v.GetString("gateway.qr_template_url"),
		},
		Recon: ReconConfig{
			PollInterval: v.GetDuration("recon.poll_interval"),
			PollBudget:   v.GetDuration("recon.poll_budget"),
			FeedLimit:    v.GetInt("recon.feed_limit"),
		},
		Outbox: OutboxConfig{
			Schedule:   v.GetString("outbox.schedule"),
			BatchSize:  v.GetInt("outbox.batch_size"),
			StaleAfter: v.GetDuration("outbox.stale_after"),
		},
		Report: ReportConfig{
			StaleApprovedSchedule: v.GetString("report.stale_approved_schedule"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:      v.GetString("rabbitmq.url"),
			Exchange: v.GetString("rabbitmq.exchange"),
		},
		Bot: BotConfig{
			Moderator: ModeratorBotConfig{
				Token:       v.GetString("bot.moderator.token"),
				Mode:        strings.ToLower(v.GetString("bot.moderator.mode")),
				AdminIDs:    adminIDs,
				ChannelID:   v.GetInt64("bot.moderator.channel_id"),
				WebhookURL:  v.GetString("bot.moderator.webhook_url"),
				WebhookPort: v.GetInt("bot.moderator.webhook_port"),
			},
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Postgres.URL == "" {
		return errors.New("DATABASE_URL is not set in environment or .env file")
	}

	if len(c.EncryptionKey) != 64 {
		return fmt.Errorf("ENCRYPTION_KEY must be a 64-character hex string (32 bytes), but got %d chars", len(c.EncryptionKey))
	}
	if _, err := hex.DecodeString(c.EncryptionKey); err != nil {
		return fmt.Errorf("ENCRYPTION_KEY is not valid hex: %w", err)
	}

	if c.Gateway.AmountScale < 0 {
		return errors.New("GATEWAY_AMOUNT_SCALE must not be negative")
	}
	if c.Recon.PollInterval <= 0 || c.Recon.PollBudget < c.Recon.PollInterval {
		return fmt.Errorf("RECON_POLL_BUDGET (%s) must be at least RECON_POLL_INTERVAL (%s)", c.Recon.PollBudget, c.Recon.PollInterval)
	}
	if c.Recon.FeedLimit <= 0 {
		return errors.New("RECON_FEED_LIMIT must be positive")
	}

	mod := c.Bot.Moderator
	if mod.Token != "" {
		switch mod.Mode {
		case "polling":
		case "webhook":
			if mod.WebhookURL == "" {
				return errors.New("BOT_MODERATOR_WEBHOOK_URL is required in webhook mode")
			}
		default:
			return fmt.Errorf("BOT_MODERATOR_MODE must be 'polling' or 'webhook', got %q", mod.Mode)
		}
		if len(mod.AdminIDs) == 0 {
			return errors.New("BOT_MODERATOR_ADMIN_IDS must list at least one operator when the bot is enabled")
		}
	}

	return nil
}

func parseIDList(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a Telegram user ID", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
