package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "telegram.token", typ: kString, env: "RECALLBOT_TELEGRAM_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Telegram.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Telegram.Token },
	},
	{
		key: "telegram.chat_id", typ: kInt, env: "RECALLBOT_TELEGRAM_CHAT_ID",
		apply:   func(cfg *Config, v any) { cfg.Telegram.ChatID = int64(v.(int)) },
		extract: func(cfg Config) any { return cfg.Telegram.ChatID },
	},
	{
		key: "telegram.poll_timeout", typ: kString, env: "RECALLBOT_TELEGRAM_POLL_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Telegram.PollTimeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Telegram.PollTimeout },
	},
	{
		key: "telegram.send_timeout", typ: kString, env: "RECALLBOT_TELEGRAM_SEND_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Telegram.SendTimeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Telegram.SendTimeout },
	},
	{
		key: "scheduler.jobs_per_hour", typ: kInt, env: "RECALLBOT_SCHEDULER_JOBS_PER_HOUR",
		apply:   func(cfg *Config, v any) { cfg.Scheduler.JobsPerHour = v.(int) },
		extract: func(cfg Config) any { return cfg.Scheduler.JobsPerHour },
	},
	{
		key: "scheduler.tick_interval", typ: kString, env: "RECALLBOT_SCHEDULER_TICK_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Scheduler.TickInterval = v.(string) },
		extract: func(cfg Config) any { return cfg.Scheduler.TickInterval },
	},
	{
		key: "storage.data_dir", typ: kString, env: "RECALLBOT_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "admin.enabled", typ: kBool, env: "RECALLBOT_ADMIN_ENABLED",
		apply:   func(cfg *Config, v any) { cfg.Admin.Enabled = v.(bool) },
		extract: func(cfg Config) any { return cfg.Admin.Enabled },
	},
	{
		key: "admin.port", typ: kInt, env: "RECALLBOT_ADMIN_PORT",
		apply:   func(cfg *Config, v any) { cfg.Admin.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Admin.Port },
	},
	{
		key: "admin.token", typ: kString, env: "RECALLBOT_ADMIN_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Admin.Token = v.(string) },
		extract: func(cfg Config) any { return cfg.Admin.Token },
	},
	{
		key: "log.level", typ: kString, env: "RECALLBOT_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
