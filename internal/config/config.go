package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// keychainService is the service name secrets are stored under.
const keychainService = "recallbot"

type Config struct {
	Telegram  TelegramConfig  `key:"telegram"`
	Scheduler SchedulerConfig `key:"scheduler"`
	Storage   StorageConfig   `key:"storage"`
	Admin     AdminConfig     `key:"admin"`
	Log       LogConfig       `key:"log"`
}

type TelegramConfig struct {
	Token       string `key:"token" validate:"required"`
	ChatID      int64  `key:"chat_id" validate:"required"`
	PollTimeout string `key:"poll_timeout" validate:"duration"`
	SendTimeout string `key:"send_timeout" validate:"duration"`
}

type SchedulerConfig struct {
	JobsPerHour  int    `key:"jobs_per_hour" validate:"min=1,max=60"`
	TickInterval string `key:"tick_interval" validate:"duration"`
}

type StorageConfig struct {
	DataDir string `key:"data_dir" validate:"required"`
}

type AdminConfig struct {
	Enabled bool   `key:"enabled"`
	Port    int    `key:"port" validate:"min=1,max=65535"`
	Token   string `key:"token" validate:"required_if=Enabled true"`
}

type LogConfig struct {
	Level string `key:"level" validate:"oneof=debug info warn error"`
}

func defaults() Config {
	return Config{
		Telegram: TelegramConfig{
			PollTimeout: "2s",
			SendTimeout: "10s",
		},
		Scheduler: SchedulerConfig{
			JobsPerHour:  12,
			TickInterval: "1s",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Admin: AdminConfig{
			Enabled: true,
			Port:    4100,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.recallbot.app) and
// secrets live in the macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/recallbot/config.json
// and secrets live in $XDG_DATA_HOME/recallbot/secrets.json.
//
// Environment variables (RECALLBOT_*) override backend values on all platforms.
// Load does not validate; call Validate before starting the bot.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainStore{})
}

// keychain abstracts secret storage for testing.
type keychain interface {
	Get(service, account string) (string, error)
	Set(service, account, value string) error
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Telegram.Token == "" {
		if v, err := kc.Get(keychainService, "telegram_token"); err == nil && v != "" {
			cfg.Telegram.Token = v
		}
	}

	if cfg.Admin.Token == "" {
		token, err := adminToken(kc)
		if err != nil {
			return Config{}, err
		}
		cfg.Admin.Token = token
	}

	if n := NormalizeJobsPerHour(cfg.Scheduler.JobsPerHour); n != cfg.Scheduler.JobsPerHour {
		fmt.Fprintf(os.Stderr, "[WARN] scheduler.jobs_per_hour=%d does not divide 60. Using %d.\n", cfg.Scheduler.JobsPerHour, n)
		cfg.Scheduler.JobsPerHour = n
	}

	return cfg, nil
}

// adminToken returns the stored admin API token, generating and storing a
// new one on first use.
func adminToken(kc keychain) (string, error) {
	if v, err := kc.Get(keychainService, "admin_token"); err == nil && v != "" {
		return v, nil
	}
	token := uuid.NewString()
	if err := kc.Set(keychainService, "admin_token", token); err != nil {
		return "", fmt.Errorf("storing admin token: %w", err)
	}
	return token, nil
}

// NormalizeJobsPerHour clamps n to [1, 60] and lowers it to the nearest
// divisor of 60, so that slots are evenly spaced within each hour.
func NormalizeJobsPerHour(n int) int {
	n = min(max(n, 1), 60)
	for 60%n != 0 {
		n--
	}
	return n
}

// MissingTokenHint tells the user where the Telegram token can be stored.
func MissingTokenHint() string {
	return "set RECALLBOT_TELEGRAM_TOKEN" + tokenHint()
}

func (c TelegramConfig) PollTimeoutDuration() time.Duration {
	return parseDuration(c.PollTimeout, 2*time.Second)
}

func (c TelegramConfig) SendTimeoutDuration() time.Duration {
	return parseDuration(c.SendTimeout, 10*time.Second)
}

func (c SchedulerConfig) TickDuration() time.Duration {
	return parseDuration(c.TickInterval, time.Second)
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// SlogLevel maps the configured level name to a slog.Level.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// keychainStore reads and writes the platform secret store.
type keychainStore struct{}

func (keychainStore) Get(service, account string) (string, error) {
	out, err := keychainGet(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (keychainStore) Set(service, account, value string) error {
	return keychainSet(service, account, value)
}
