package config

import (
	"errors"
	"strings"
	"testing"
)

// mockKeychain is a test double for the keychain interface.
type mockKeychain struct {
	values map[string]string
	setErr error
}

func (m *mockKeychain) Get(service, account string) (string, error) {
	v, ok := m.values[service+"/"+account]
	if !ok {
		return "", errors.New("not found")
	}
	return v, nil
}

func (m *mockKeychain) Set(service, account, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	if m.values == nil {
		m.values = make(map[string]string)
	}
	m.values[service+"/"+account] = value
	return nil
}

// mapBackend is an in-memory ConfigBackend.
type mapBackend map[string]any

func (b mapBackend) GetString(key string) (string, bool, error) {
	v, ok := b[key]
	if !ok {
		return "", false, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", true, errors.New("not a string")
	}
	return s, true, nil
}

func (b mapBackend) GetInt(key string) (int, bool, error) {
	v, ok := b[key]
	if !ok {
		return 0, false, nil
	}
	i, ok := v.(int)
	if !ok {
		return 0, true, errors.New("not an int")
	}
	return i, true, nil
}

func (b mapBackend) SetString(key, val string) error { b[key] = val; return nil }
func (b mapBackend) SetInt(key string, val int) error { b[key] = val; return nil }
func (b mapBackend) Delete(key string) error          { delete(b, key); return nil }

// clearEnv blanks every RECALLBOT_* variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := loadWith(mapBackend{}, &mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Scheduler.JobsPerHour != 12 {
		t.Errorf("Scheduler.JobsPerHour = %d, want 12", cfg.Scheduler.JobsPerHour)
	}
	if cfg.Telegram.PollTimeout != "2s" {
		t.Errorf("Telegram.PollTimeout = %q, want %q", cfg.Telegram.PollTimeout, "2s")
	}
	if cfg.Admin.Port != 4100 || !cfg.Admin.Enabled {
		t.Errorf("Admin = %+v, want enabled on 4100", cfg.Admin)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if cfg.Storage.DataDir == "" {
		t.Error("Storage.DataDir is empty")
	}
}

func TestBackendValues(t *testing.T) {
	clearEnv(t)
	b := mapBackend{
		"telegram.chat_id":        -100123,
		"scheduler.jobs_per_hour": 6,
		"storage.data_dir":        "/tmp/recallbot-test",
		"admin.enabled":           "false",
		"log.level":               "debug",
	}

	cfg, err := loadWith(b, &mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Telegram.ChatID != -100123 {
		t.Errorf("Telegram.ChatID = %d, want -100123", cfg.Telegram.ChatID)
	}
	if cfg.Scheduler.JobsPerHour != 6 {
		t.Errorf("Scheduler.JobsPerHour = %d, want 6", cfg.Scheduler.JobsPerHour)
	}
	if cfg.Storage.DataDir != "/tmp/recallbot-test" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.Admin.Enabled {
		t.Error("Admin.Enabled = true, want false")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestBackendReadError(t *testing.T) {
	clearEnv(t)
	_, err := loadWith(mapBackend{"admin.port": "not a number"}, &mockKeychain{})
	if err == nil {
		t.Fatal("expected error for mistyped backend value")
	}
}

func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("RECALLBOT_TELEGRAM_TOKEN", "env-token")
	t.Setenv("RECALLBOT_ADMIN_PORT", "5100")
	t.Setenv("RECALLBOT_SCHEDULER_JOBS_PER_HOUR", "garbage")

	kc := &mockKeychain{values: map[string]string{"recallbot/telegram_token": "keychain-token"}}
	cfg, err := loadWith(mapBackend{"admin.port": 4200}, kc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Errorf("Telegram.Token = %q, want %q", cfg.Telegram.Token, "env-token")
	}
	if cfg.Admin.Port != 5100 {
		t.Errorf("Admin.Port = %d, want 5100", cfg.Admin.Port)
	}
	if cfg.Scheduler.JobsPerHour != 12 {
		t.Errorf("Scheduler.JobsPerHour = %d, want default 12", cfg.Scheduler.JobsPerHour)
	}
}

func TestKeychainFallback(t *testing.T) {
	clearEnv(t)
	kc := &mockKeychain{values: map[string]string{"recallbot/telegram_token": "keychain-secret"}}

	cfg, err := loadWith(mapBackend{}, kc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Telegram.Token != "keychain-secret" {
		t.Errorf("Telegram.Token = %q, want %q", cfg.Telegram.Token, "keychain-secret")
	}
}

func TestAdminTokenGeneratedOnce(t *testing.T) {
	clearEnv(t)
	kc := &mockKeychain{}

	first, err := loadWith(mapBackend{}, kc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Admin.Token == "" {
		t.Fatal("admin token was not generated")
	}
	second, err := loadWith(mapBackend{}, kc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Admin.Token != first.Admin.Token {
		t.Errorf("admin token changed between loads: %q then %q", first.Admin.Token, second.Admin.Token)
	}
}

func TestAdminTokenStoreFailure(t *testing.T) {
	clearEnv(t)
	_, err := loadWith(mapBackend{}, &mockKeychain{setErr: errors.New("locked")})
	if err == nil {
		t.Fatal("expected error when the admin token cannot be stored")
	}
}

func TestNormalizeJobsPerHour(t *testing.T) {
	tests := []struct{ in, want int }{
		{12, 12}, {1, 1}, {60, 60}, {0, 1}, {-5, 1}, {100, 60}, {8, 6}, {7, 6}, {25, 20}, {59, 30},
	}
	for _, tt := range tests {
		if got := NormalizeJobsPerHour(tt.in); got != tt.want {
			t.Errorf("NormalizeJobsPerHour(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestLoadNormalizesJobsPerHour(t *testing.T) {
	clearEnv(t)
	cfg, err := loadWith(mapBackend{"scheduler.jobs_per_hour": 8}, &mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Scheduler.JobsPerHour != 6 {
		t.Errorf("Scheduler.JobsPerHour = %d, want 6", cfg.Scheduler.JobsPerHour)
	}
}

func validConfig() Config {
	cfg := defaults()
	cfg.Telegram.Token = "123:abc"
	cfg.Telegram.ChatID = 42
	cfg.Storage.DataDir = "/tmp/recallbot"
	cfg.Admin.Token = "secret"
	return cfg
}

func TestValidate(t *testing.T) {
	if err := Validate(validConfig()); err != nil {
		t.Fatalf("Validate(valid) = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing token", func(c *Config) { c.Telegram.Token = "" }, "telegram.token: is required"},
		{"missing chat", func(c *Config) { c.Telegram.ChatID = 0 }, "telegram.chat_id: is required"},
		{"bad duration", func(c *Config) { c.Telegram.PollTimeout = "soon" }, "telegram.poll_timeout"},
		{"negative duration", func(c *Config) { c.Scheduler.TickInterval = "-1s" }, "scheduler.tick_interval"},
		{"jobs too high", func(c *Config) { c.Scheduler.JobsPerHour = 61 }, "scheduler.jobs_per_hour: must be at most 60"},
		{"port", func(c *Config) { c.Admin.Port = 0 }, "admin.port: must be at least 1"},
		{"level", func(c *Config) { c.Log.Level = "verbose" }, "log.level: must be one of"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestValidate_AdminTokenOnlyWhenEnabled(t *testing.T) {
	cfg := validConfig()
	cfg.Admin.Token = ""
	if err := Validate(cfg); err == nil {
		t.Error("expected error for enabled admin API without token")
	}
	cfg.Admin.Enabled = false
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate(admin disabled) = %v", err)
	}
}

func TestDurations(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.PollTimeout = "5s"
	cfg.Telegram.SendTimeout = "bogus"
	if got := cfg.Telegram.PollTimeoutDuration().Seconds(); got != 5 {
		t.Errorf("PollTimeoutDuration = %vs, want 5s", got)
	}
	if got := cfg.Telegram.SendTimeoutDuration().Seconds(); got != 10 {
		t.Errorf("SendTimeoutDuration = %vs, want fallback 10s", got)
	}
}

func TestShowAllHidesSecrets(t *testing.T) {
	for _, ki := range ShowAll(validConfig()) {
		if ki.Key == "telegram.token" || ki.Key == "admin.token" {
			t.Errorf("ShowAll exposed secret %s", ki.Key)
		}
	}
	for _, k := range ValidKeys() {
		if k == "admin.token" {
			t.Error("ValidKeys lists admin.token")
		}
	}
}
