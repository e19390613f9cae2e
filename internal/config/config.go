/**
 * @description
 * This package handles the configuration management for the banking service. It uses
 * the Viper library to read configuration from environment variables (and an optional
 * .env file), then normalises the values the core engines consume.
 *
 * @dependencies
 * - github.com/spf13/viper: Environment and .env binding.
 * - github.com/shopspring/decimal: Monetary thresholds.
 */

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the banking service.
type Config struct {
	ServerPort   string `mapstructure:"SERVER_PORT"`
	StoreDriver  string `mapstructure:"STORE_DRIVER"`
	DatabaseURL  string `mapstructure:"DATABASE_URL"`
	MigrateOnRun bool   `mapstructure:"MIGRATE_ON_START"`

	RedisURL                    string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix        string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	OTPIssueRateLimitPerMinute  int    `mapstructure:"OTP_ISSUE_RATE_LIMIT_PER_MINUTE"`
	RabbitMQURL                 string `mapstructure:"RABBITMQ_URL"`
	NotificationExchange        string `mapstructure:"NOTIFICATION_EXCHANGE"`
	EmailDeliveryQueue          string `mapstructure:"EMAIL_DELIVERY_QUEUE"`
	NotificationTransport       string `mapstructure:"NOTIFICATION_TRANSPORT"`
	NotificationWorkers         int    `mapstructure:"NOTIFICATION_WORKERS"`
	NotificationQueueSize       int    `mapstructure:"NOTIFICATION_QUEUE_SIZE"`
	BroadcastConcurrency        int    `mapstructure:"BROADCAST_CONCURRENCY"`
	SMTPHost                    string `mapstructure:"SMTP_HOST"`
	SMTPPort                    int    `mapstructure:"SMTP_PORT"`
	SMTPUsername                string `mapstructure:"SMTP_USERNAME"`
	SMTPPassword                string `mapstructure:"SMTP_PASSWORD"`
	SMTPFrom                    string `mapstructure:"SMTP_FROM"`
	SessionJWTSecret            string `mapstructure:"SESSION_JWT_SECRET"`
	SessionTTLMinutes           int    `mapstructure:"SESSION_TTL_MINUTES"`
	AdminAPIKey                 string `mapstructure:"ADMIN_API_KEY"`
	CORSAllowedOrigins          string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	Timezone                    string `mapstructure:"TIMEZONE"`
	StepUpThresholdRaw          string `mapstructure:"STEP_UP_THRESHOLD"`
	LowBalanceThresholdRaw      string `mapstructure:"LOW_BALANCE_THRESHOLD"`
	OTPValidityMinutes          int    `mapstructure:"OTP_VALIDITY_MINUTES"`
	OTPGraceMinutes             int    `mapstructure:"OTP_GRACE_MINUTES"`
	OTPDeliveryAttempts         int    `mapstructure:"OTP_DELIVERY_ATTEMPTS"`
	OTPDeliveryRetryDelayMillis int    `mapstructure:"OTP_DELIVERY_RETRY_DELAY_MS"`
	EMIAutoDebitSchedule        string `mapstructure:"EMI_AUTODEBIT_SCHEDULE"`
	CardExpirySchedule          string `mapstructure:"CARD_EXPIRY_SCHEDULE"`
	BcryptCost                  int    `mapstructure:"BCRYPT_COST"`

	// Derived after unmarshal.
	StepUpThreshold     decimal.Decimal `mapstructure:"-"`
	LowBalanceThreshold decimal.Decimal `mapstructure:"-"`
	Location            *time.Location  `mapstructure:"-"`
}

// SessionTTL returns the lifetime of an issued session token.
func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c Config) AllowedOrigins() []string {
	var out []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

// Validate reports the settings the service cannot start without.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.SessionJWTSecret) == "" {
		errs = append(errs, errors.New("SESSION_JWT_SECRET must be configured"))
	}
	if strings.TrimSpace(c.AdminAPIKey) == "" {
		errs = append(errs, errors.New("ADMIN_API_KEY must be configured"))
	}
	if c.StoreDriver == "postgres" && strings.TrimSpace(c.DatabaseURL) == "" {
		errs = append(errs, errors.New("DATABASE_URL must be configured for the postgres store"))
	}
	return errors.Join(errs...)
}

// LoadConfig reads configuration from environment variables and an optional .env in path.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("STORE_DRIVER", "postgres")
	viper.SetDefault("MIGRATE_ON_START", false)
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "bank:rate_limit")
	viper.SetDefault("OTP_ISSUE_RATE_LIMIT_PER_MINUTE", 5)
	viper.SetDefault("NOTIFICATION_EXCHANGE", "bank.events")
	viper.SetDefault("EMAIL_DELIVERY_QUEUE", "banking_service.email_delivery")
	viper.SetDefault("NOTIFICATION_TRANSPORT", "queue")
	viper.SetDefault("NOTIFICATION_WORKERS", 4)
	viper.SetDefault("NOTIFICATION_QUEUE_SIZE", 256)
	viper.SetDefault("BROADCAST_CONCURRENCY", 8)
	viper.SetDefault("SMTP_PORT", 587)
	viper.SetDefault("SESSION_TTL_MINUTES", 30)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	viper.SetDefault("TIMEZONE", "Local")
	viper.SetDefault("STEP_UP_THRESHOLD", "5000")
	viper.SetDefault("LOW_BALANCE_THRESHOLD", "1000")
	viper.SetDefault("OTP_VALIDITY_MINUTES", 10)
	viper.SetDefault("OTP_GRACE_MINUTES", 5)
	viper.SetDefault("OTP_DELIVERY_ATTEMPTS", 3)
	viper.SetDefault("OTP_DELIVERY_RETRY_DELAY_MS", 1000)
	viper.SetDefault("EMI_AUTODEBIT_SCHEDULE", "0 9 1 * *")
	viper.SetDefault("CARD_EXPIRY_SCHEDULE", "@daily")
	viper.SetDefault("BCRYPT_COST", 10)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	for _, key := range []string{
		"SERVER_PORT", "PORT", "STORE_DRIVER", "DATABASE_URL", "MIGRATE_ON_START",
		"REDIS_URL", "REDIS_RATE_LIMIT_PREFIX", "OTP_ISSUE_RATE_LIMIT_PER_MINUTE",
		"RABBITMQ_URL", "NOTIFICATION_EXCHANGE", "EMAIL_DELIVERY_QUEUE", "NOTIFICATION_TRANSPORT",
		"NOTIFICATION_WORKERS", "NOTIFICATION_QUEUE_SIZE", "BROADCAST_CONCURRENCY",
		"SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "SMTP_FROM",
		"SESSION_JWT_SECRET", "SESSION_TTL_MINUTES", "CORS_ALLOWED_ORIGINS", "TIMEZONE",
		"STEP_UP_THRESHOLD", "LOW_BALANCE_THRESHOLD", "OTP_VALIDITY_MINUTES", "OTP_GRACE_MINUTES",
		"OTP_DELIVERY_ATTEMPTS", "OTP_DELIVERY_RETRY_DELAY_MS", "EMI_AUTODEBIT_SCHEDULE",
		"CARD_EXPIRY_SCHEDULE", "BCRYPT_COST",
	} {
		_ = viper.BindEnv(key)
	}
	_ = viper.BindEnv("ADMIN_API_KEY", "ADMIN_API_KEY", "BANK_ADMIN_API_KEY")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("failed to read config file; using environment values", "component", "config", "err", err)
		}
		err = nil
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	if strings.TrimSpace(config.AdminAPIKey) == "" {
		config.AdminAPIKey = strings.TrimSpace(os.Getenv("BANK_ADMIN_API_KEY"))
	}

	config.StoreDriver = strings.ToLower(strings.TrimSpace(config.StoreDriver))
	switch config.StoreDriver {
	case "postgres", "memory":
	default:
		return config, fmt.Errorf("unsupported STORE_DRIVER %q", config.StoreDriver)
	}

	config.NotificationTransport = strings.ToLower(strings.TrimSpace(config.NotificationTransport))
	switch config.NotificationTransport {
	case "queue", "smtp", "log":
	default:
		slog.Warn("unknown notification transport; falling back to log", "component", "config", "value", config.NotificationTransport)
		config.NotificationTransport = "log"
	}

	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "bank:rate_limit"
	}

	config.StepUpThreshold = parseThreshold("STEP_UP_THRESHOLD", config.StepUpThresholdRaw, decimal.NewFromInt(5000))
	config.LowBalanceThreshold = parseThreshold("LOW_BALANCE_THRESHOLD", config.LowBalanceThresholdRaw, decimal.NewFromInt(1000))

	config.Location = time.Local
	if tz := strings.TrimSpace(config.Timezone); tz != "" && tz != "Local" {
		loc, locErr := time.LoadLocation(tz)
		if locErr != nil {
			slog.Warn("invalid TIMEZONE; using local time", "component", "config", "value", tz, "err", locErr)
		} else {
			config.Location = loc
		}
	}

	positive(&config.OTPIssueRateLimitPerMinute, "OTP_ISSUE_RATE_LIMIT_PER_MINUTE", 5)
	positive(&config.NotificationWorkers, "NOTIFICATION_WORKERS", 4)
	positive(&config.NotificationQueueSize, "NOTIFICATION_QUEUE_SIZE", 256)
	positive(&config.BroadcastConcurrency, "BROADCAST_CONCURRENCY", 8)
	positive(&config.SessionTTLMinutes, "SESSION_TTL_MINUTES", 30)
	positive(&config.OTPValidityMinutes, "OTP_VALIDITY_MINUTES", 10)
	positive(&config.OTPDeliveryAttempts, "OTP_DELIVERY_ATTEMPTS", 3)
	positive(&config.SMTPPort, "SMTP_PORT", 587)
	if config.OTPGraceMinutes < 0 {
		slog.Warn("negative OTP grace configured; coercing to zero", "component", "config", "value", config.OTPGraceMinutes)
		config.OTPGraceMinutes = 0
	}
	if config.OTPDeliveryRetryDelayMillis < 0 {
		config.OTPDeliveryRetryDelayMillis = 0
	}
	if config.BcryptCost < 4 || config.BcryptCost > 31 {
		slog.Warn("bcrypt cost out of range; using 10", "component", "config", "value", config.BcryptCost)
		config.BcryptCost = 10
	}

	return config, nil
}

func parseThreshold(key, raw string, fallback decimal.Decimal) decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		slog.Warn("invalid threshold; using default", "component", "config", "key", key, "value", raw, "err", err)
		return fallback
	}
	if v.IsNegative() {
		slog.Warn("negative threshold configured; coercing to zero", "component", "config", "key", key, "value", raw)
		return decimal.Zero
	}
	return v
}

func positive(v *int, key string, fallback int) {
	if *v <= 0 {
		slog.Warn("non-positive setting; using default", "component", "config", "key", key, "value", *v, "default", fallback)
		*v = fallback
	}
}
