package config

import "strings"

type Config struct {
	Server  ServerConfig
	Remote  RemoteConfig
	Storage StorageConfig
	RSS     RSSConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
}

type RemoteConfig struct {
	// APIBaseURL is the GitHub API endpoint the gist sync talks to.
	// Overridable for GitHub Enterprise hosts and tests.
	APIBaseURL string
	// GitHubToken is an optional personal access token. When set, the daemon
	// logs into remote sync at startup without an explicit login call.
	GitHubToken string
}

type StorageConfig struct {
	DataDir string
}

type RSSConfig struct {
	// RefreshMinutes is the background feed refresh interval.
	RefreshMinutes int
	// CacheTTLMinutes is how long a cached fetch stays fresh.
	CacheTTLMinutes int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4200,
		},
		Remote: RemoteConfig{
			APIBaseURL: "https://api.github.com",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		RSS: RSSConfig{
			RefreshMinutes:  10,
			CacheTTLMinutes: 10,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and the platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.freevibes.app) and the
// GitHub token falls back to macOS Keychain.
// On Linux the backend is a JSON file at $XDG_CONFIG_HOME/freevibes/config.json
// and secrets must be provided via environment variables.
//
// Environment variables (FREEVIBES_*) override backend values on all
// platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts Keychain access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// Try the platform keychain for the GitHub token if still empty. The
	// token is optional; remote sync simply stays off without one.
	if cfg.Remote.GitHubToken == "" {
		if key, err := kc.Get("freevibes", "github_token"); err == nil && key != "" {
			cfg.Remote.GitHubToken = key
		}
	}

	return cfg, nil
}

// keychainReader reads from macOS Keychain via the security CLI.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainExec(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
