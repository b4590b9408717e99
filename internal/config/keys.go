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
		key: "server.port", typ: kInt, env: "FREEVIBES_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "remote.api_base_url", typ: kString, env: "FREEVIBES_REMOTE_API_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Remote.APIBaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Remote.APIBaseURL },
	},
	{
		key: "remote.github_token", typ: kString, env: "FREEVIBES_GITHUB_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Remote.GitHubToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Remote.GitHubToken },
	},
	{
		key: "storage.data_dir", typ: kString, env: "FREEVIBES_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "rss.refresh_minutes", typ: kInt, env: "FREEVIBES_RSS_REFRESH_MINUTES",
		apply:   func(cfg *Config, v any) { cfg.RSS.RefreshMinutes = v.(int) },
		extract: func(cfg Config) any { return cfg.RSS.RefreshMinutes },
	},
	{
		key: "rss.cache_ttl_minutes", typ: kInt, env: "FREEVIBES_RSS_CACHE_TTL_MINUTES",
		apply:   func(cfg *Config, v any) { cfg.RSS.CacheTTLMinutes = v.(int) },
		extract: func(cfg Config) any { return cfg.RSS.CacheTTLMinutes },
	},
	{
		key: "log.level", typ: kString, env: "FREEVIBES_LOG_LEVEL",
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
		}
	}
}
