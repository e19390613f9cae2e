package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	for _, key := range []string{"PORT", "SERVER_PORT", "STORE_DRIVER", "STEP_UP_THRESHOLD", "LOW_BALANCE_THRESHOLD", "NOTIFICATION_TRANSPORT", "TIMEZONE", "OTP_GRACE_MINUTES"} {
		unsetEnvWithCleanup(t, key)
	}

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8080" || cfg.StoreDriver != "postgres" || cfg.NotificationTransport != "queue" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.StepUpThreshold.String() != "5000" || cfg.LowBalanceThreshold.String() != "1000" {
		t.Fatalf("unexpected thresholds %s / %s", cfg.StepUpThreshold, cfg.LowBalanceThreshold)
	}
	if cfg.OTPValidityMinutes != 10 || cfg.OTPGraceMinutes != 5 || cfg.OTPDeliveryAttempts != 3 {
		t.Fatalf("unexpected OTP defaults %+v", cfg)
	}
	if cfg.EMIAutoDebitSchedule != "0 9 1 * *" || cfg.CardExpirySchedule != "@daily" {
		t.Fatalf("unexpected schedules %q / %q", cfg.EMIAutoDebitSchedule, cfg.CardExpirySchedule)
	}
	if cfg.Location != time.Local || cfg.SessionTTL() != 30*time.Minute {
		t.Fatalf("unexpected location or session ttl")
	}
}

func TestLoadConfig_PortAliasOverridesServerPort(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "SERVER_PORT", "9000")
	setEnvWithCleanup(t, "PORT", "7000")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "7000" {
		t.Fatalf("expected PORT to win, got %q", cfg.ServerPort)
	}
}

func TestLoadConfig_AdminAPIKeyAlias(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "ADMIN_API_KEY")
	setEnvWithCleanup(t, "BANK_ADMIN_API_KEY", "alias-only-key")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.AdminAPIKey != "alias-only-key" {
		t.Fatalf("expected AdminAPIKey from alias env var, got %q", cfg.AdminAPIKey)
	}
}

func TestLoadConfig_CoercesInvalidValues(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "STEP_UP_THRESHOLD", "lots")
	setEnvWithCleanup(t, "LOW_BALANCE_THRESHOLD", "-5")
	setEnvWithCleanup(t, "OTP_GRACE_MINUTES", "-1")
	setEnvWithCleanup(t, "NOTIFICATION_WORKERS", "0")
	setEnvWithCleanup(t, "NOTIFICATION_TRANSPORT", "pigeon")
	setEnvWithCleanup(t, "TIMEZONE", "Nowhere/Special")
	setEnvWithCleanup(t, "BCRYPT_COST", "99")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StepUpThreshold.String() != "5000" {
		t.Fatalf("expected invalid step-up threshold to fall back, got %s", cfg.StepUpThreshold)
	}
	if !cfg.LowBalanceThreshold.IsZero() {
		t.Fatalf("expected negative low-balance threshold to be zeroed, got %s", cfg.LowBalanceThreshold)
	}
	if cfg.OTPGraceMinutes != 0 || cfg.NotificationWorkers != 4 || cfg.BcryptCost != 10 {
		t.Fatalf("unexpected coercions %+v", cfg)
	}
	if cfg.NotificationTransport != "log" || cfg.Location != time.Local {
		t.Fatalf("expected log transport and local time, got %q / %v", cfg.NotificationTransport, cfg.Location)
	}
}

func TestLoadConfig_RejectsUnknownStoreDriver(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "STORE_DRIVER", "mongo")

	if _, err := LoadConfig(t.TempDir()); err == nil {
		t.Fatalf("expected unsupported store driver to be rejected")
	}
}

func TestLoadConfig_ReadsDotEnvFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "STEP_UP_THRESHOLD")
	unsetEnvWithCleanup(t, "TIMEZONE")
	dir := t.TempDir()
	content := "STEP_UP_THRESHOLD=2500.50\nTIMEZONE=UTC\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}

	cfg, err := LoadConfig(dir)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StepUpThreshold.String() != "2500.5" {
		t.Fatalf("expected threshold from .env, got %s", cfg.StepUpThreshold)
	}
	if cfg.Location.String() != "UTC" {
		t.Fatalf("expected UTC location, got %s", cfg.Location)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "complete", cfg: Config{SessionJWTSecret: "s", AdminAPIKey: "k", StoreDriver: "memory"}},
		{name: "missing secret", cfg: Config{AdminAPIKey: "k", StoreDriver: "memory"}, wantErr: true},
		{name: "missing admin key", cfg: Config{SessionJWTSecret: "s", StoreDriver: "memory"}, wantErr: true},
		{name: "postgres without url", cfg: Config{SessionJWTSecret: "s", AdminAPIKey: "k", StoreDriver: "postgres"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfig_AllowedOrigins(t *testing.T) {
	cfg := Config{CORSAllowedOrigins: " https://a.example , ,https://b.example"}
	got := cfg.AllowedOrigins()
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Fatalf("unexpected origins %v", got)
	}
	if got := (Config{}).AllowedOrigins(); len(got) != 1 || got[0] != "*" {
		t.Fatalf("expected wildcard default, got %v", got)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
		}
	})
}
