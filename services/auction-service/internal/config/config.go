// Package config loads the auction service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/greenrow/lot-auction/services/auction-service/internal/domain/reminders"
)

// Environment keys
const (
	DBURL         = "AUCTION_DB_URL"
	DBLockTimeout = "DB_LOCK_TIMEOUT"
	MigrationsDir = "MIGRATIONS_DIR"

	RabbitMQURL      = "RABBITMQ_URL"
	EventsExchange   = "EVENTS_EXCHANGE"
	OutboxBatchSize  = "OUTBOX_BATCH_SIZE"
	OutboxInterval   = "OUTBOX_INTERVAL"
	ConsumerPrefetch = "CONSUMER_PREFETCH"

	RedisAddr     = "REDIS_ADDR"
	RedisPassword = "REDIS_PASSWORD"
	RedisDB       = "REDIS_DB"
	LotCacheTTL   = "LOT_CACHE_TTL"

	HTTPAddr           = "HTTP_ADDR"
	CORSAllowedOrigins = "CORS_ALLOWED_ORIGINS"
	BidRateLimit       = "BID_RATE_LIMIT"
	BidRateBurst       = "BID_RATE_BURST"
	JWTPublicKeyPath   = "JWT_PUBLIC_KEY_PATH"
	JWTIssuer          = "JWT_ISSUER"

	ReminderInterval    = "REMINDER_INTERVAL"
	ReminderLead        = "REMINDER_LEAD"
	ReminderWindow      = "REMINDER_WINDOW"
	ReminderTickTimeout = "REMINDER_TICK_TIMEOUT"

	SMTPHost     = "SMTP_HOST"
	SMTPPort     = "SMTP_PORT"
	SMTPFrom     = "SMTP_FROM"
	SMTPUsername = "SMTP_USERNAME"
	SMTPPassword = "SMTP_PASSWORD"
	SNSRegion    = "SNS_REGION"

	MoneyExponent = "MONEY_EXPONENT"
	LogLevel      = "LOG_LEVEL"
)

type Config struct {
	Database  DatabaseConfig
	Events    EventsConfig
	Redis     RedisConfig
	HTTP      HTTPConfig
	Auth      AuthConfig
	Reminders reminders.Config
	Delivery  DeliveryConfig
	LogLevel  slog.Level
}

type DatabaseConfig struct {
	URL           string
	LockTimeout   time.Duration
	MigrationsDir string
}

type EventsConfig struct {
	RabbitMQURL     string
	Exchange        string
	OutboxBatchSize int
	OutboxInterval  time.Duration
	Prefetch        int
}

// RedisConfig is optional. An empty Addr disables the lot cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	LotTTL   time.Duration
}

type HTTPConfig struct {
	Addr           string
	AllowedOrigins []string
	BidRateLimit   float64
	BidRateBurst   int
}

type AuthConfig struct {
	PublicKeyPath string
	Issuer        string
}

// DeliveryConfig leaves SMS disabled when SNSRegion is empty.
type DeliveryConfig struct {
	SMTPHost      string
	SMTPPort      string
	SMTPFrom      string
	SMTPUsername  string
	SMTPPassword  string
	SNSRegion     string
	MoneyExponent int32
}

// Load reads .env.local and .env when present, then the process environment.
// Values already set in the environment win over both files.
func Load() (*Config, error) {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)
	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	d := reminders.DefaultConfig()

	v.SetDefault(DBLockTimeout, 3*time.Second)
	v.SetDefault(MigrationsDir, "services/auction-service/migrations")

	v.SetDefault(EventsExchange, "auction.events")
	v.SetDefault(OutboxBatchSize, 10)
	v.SetDefault(OutboxInterval, time.Second)
	v.SetDefault(ConsumerPrefetch, 10)

	v.SetDefault(RedisDB, 0)
	v.SetDefault(LotCacheTTL, 30*time.Second)

	v.SetDefault(HTTPAddr, ":8080")
	v.SetDefault(CORSAllowedOrigins, "*")
	v.SetDefault(BidRateLimit, 5.0)
	v.SetDefault(BidRateBurst, 10)
	v.SetDefault(JWTIssuer, "greenrow-identity")

	v.SetDefault(ReminderInterval, d.Interval)
	v.SetDefault(ReminderLead, d.Lead)
	v.SetDefault(ReminderWindow, d.Window)
	v.SetDefault(ReminderTickTimeout, d.TickTimeout)

	v.SetDefault(SMTPHost, "localhost")
	v.SetDefault(SMTPPort, "1025")
	v.SetDefault(SMTPFrom, "auctions@greenrow.local")

	v.SetDefault(MoneyExponent, 0)
	v.SetDefault(LogLevel, "info")
}

func fromViper(v *viper.Viper) (*Config, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString(LogLevel))); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", LogLevel, err)
	}

	cfg := &Config{
		Database: DatabaseConfig{
			URL:           v.GetString(DBURL),
			LockTimeout:   v.GetDuration(DBLockTimeout),
			MigrationsDir: v.GetString(MigrationsDir),
		},
		Events: EventsConfig{
			RabbitMQURL:     v.GetString(RabbitMQURL),
			Exchange:        v.GetString(EventsExchange),
			OutboxBatchSize: v.GetInt(OutboxBatchSize),
			OutboxInterval:  v.GetDuration(OutboxInterval),
			Prefetch:        v.GetInt(ConsumerPrefetch),
		},
		Redis: RedisConfig{
			Addr:     v.GetString(RedisAddr),
			Password: v.GetString(RedisPassword),
			DB:       v.GetInt(RedisDB),
			LotTTL:   v.GetDuration(LotCacheTTL),
		},
		HTTP: HTTPConfig{
			Addr:           v.GetString(HTTPAddr),
			AllowedOrigins: splitList(v.GetString(CORSAllowedOrigins)),
			BidRateLimit:   v.GetFloat64(BidRateLimit),
			BidRateBurst:   v.GetInt(BidRateBurst),
		},
		Auth: AuthConfig{
			PublicKeyPath: v.GetString(JWTPublicKeyPath),
			Issuer:        v.GetString(JWTIssuer),
		},
		Reminders: reminders.Config{
			Interval:      v.GetDuration(ReminderInterval),
			Lead:          v.GetDuration(ReminderLead),
			Window:        v.GetDuration(ReminderWindow),
			TickTimeout:   v.GetDuration(ReminderTickTimeout),
			MoneyExponent: v.GetInt32(MoneyExponent),
		},
		Delivery: DeliveryConfig{
			SMTPHost:      v.GetString(SMTPHost),
			SMTPPort:      v.GetString(SMTPPort),
			SMTPFrom:      v.GetString(SMTPFrom),
			SMTPUsername:  v.GetString(SMTPUsername),
			SMTPPassword:  v.GetString(SMTPPassword),
			SNSRegion:     v.GetString(SNSRegion),
			MoneyExponent: v.GetInt32(MoneyExponent),
		},
		LogLevel: level,
	}
	return cfg, cfg.Validate()
}

// Validate checks the settings every process needs.
func (c *Config) Validate() error {
	var errs []error
	if c.Database.URL == "" {
		errs = append(errs, fmt.Errorf("%s is required", DBURL))
	}
	if c.Events.OutboxBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", OutboxBatchSize))
	}
	if c.Events.OutboxInterval <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", OutboxInterval))
	}
	if c.Reminders.Interval <= 0 || c.Reminders.TickTimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s and %s must be positive", ReminderInterval, ReminderTickTimeout))
	}
	// A window no wider than the sweep interval lets a lot slip between ticks.
	if c.Reminders.Window <= c.Reminders.Interval {
		errs = append(errs, fmt.Errorf("%s (%s) must exceed %s (%s)",
			ReminderWindow, c.Reminders.Window, ReminderInterval, c.Reminders.Interval))
	}
	if c.HTTP.BidRateLimit <= 0 || c.HTTP.BidRateBurst <= 0 {
		errs = append(errs, fmt.Errorf("%s and %s must be positive", BidRateLimit, BidRateBurst))
	}
	if c.Delivery.MoneyExponent < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", MoneyExponent))
	}
	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
