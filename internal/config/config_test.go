package config

import (
	"strconv"
	"testing"
)

// mockBackend is an in-memory ConfigBackend for tests.
type mockBackend struct {
	data map[string]string
}

func (m *mockBackend) GetString(key string) (string, bool, error) {
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mockBackend) GetInt(key string) (int, bool, error) {
	v, ok := m.data[key]
	if !ok {
		return 0, false, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, true, err
	}
	return i, true, nil
}

func (m *mockBackend) SetString(key, val string) error {
	m.data[key] = val
	return nil
}

func (m *mockBackend) SetInt(key string, val int) error {
	m.data[key] = strconv.Itoa(val)
	return nil
}

func (m *mockBackend) Delete(key string) error {
	delete(m.data, key)
	return nil
}

// mockKeychain is a test double for the keychain interface.
type mockKeychain struct {
	value string
	err   error
}

func (m mockKeychain) Get(service, account string) (string, error) {
	return m.value, m.err
}

func TestDefaults(t *testing.T) {
	t.Setenv("FREEVIBES_GITHUB_TOKEN", "")

	cfg, err := loadWith(&mockBackend{data: map[string]string{}}, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4200 {
		t.Errorf("Server.Port = %d, want 4200", cfg.Server.Port)
	}
	if cfg.Remote.APIBaseURL != "https://api.github.com" {
		t.Errorf("Remote.APIBaseURL = %q, want %q", cfg.Remote.APIBaseURL, "https://api.github.com")
	}
	if cfg.RSS.RefreshMinutes != 10 {
		t.Errorf("RSS.RefreshMinutes = %d, want 10", cfg.RSS.RefreshMinutes)
	}
	if cfg.RSS.CacheTTLMinutes != 10 {
		t.Errorf("RSS.CacheTTLMinutes = %d, want 10", cfg.RSS.CacheTTLMinutes)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if cfg.Remote.GitHubToken != "" {
		t.Errorf("Remote.GitHubToken = %q, want empty", cfg.Remote.GitHubToken)
	}
}

func TestBackendValues(t *testing.T) {
	t.Setenv("FREEVIBES_SERVER_PORT", "")
	t.Setenv("FREEVIBES_GITHUB_TOKEN", "")

	b := &mockBackend{data: map[string]string{
		"server.port":         "5000",
		"remote.api_base_url": "https://github.example.com/api/v3",
		"storage.data_dir":    "/tmp/freevibes-test",
		"rss.refresh_minutes": "30",
		"log.level":           "debug",
	}}

	cfg, err := loadWith(b, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Remote.APIBaseURL != "https://github.example.com/api/v3" {
		t.Errorf("Remote.APIBaseURL = %q", cfg.Remote.APIBaseURL)
	}
	if cfg.Storage.DataDir != "/tmp/freevibes-test" {
		t.Errorf("Storage.DataDir = %q", cfg.Storage.DataDir)
	}
	if cfg.RSS.RefreshMinutes != 30 {
		t.Errorf("RSS.RefreshMinutes = %d, want 30", cfg.RSS.RefreshMinutes)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("FREEVIBES_SERVER_PORT", "6000")
	t.Setenv("FREEVIBES_GITHUB_TOKEN", "env-token")

	b := &mockBackend{data: map[string]string{
		"server.port": "5000",
	}}

	cfg, err := loadWith(b, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 6000 {
		t.Errorf("Server.Port = %d, want 6000 (env should win over backend)", cfg.Server.Port)
	}
	if cfg.Remote.GitHubToken != "env-token" {
		t.Errorf("Remote.GitHubToken = %q, want %q", cfg.Remote.GitHubToken, "env-token")
	}
}

func TestKeychainFallback(t *testing.T) {
	t.Setenv("FREEVIBES_GITHUB_TOKEN", "")

	kc := mockKeychain{value: "keychain-token"}
	cfg, err := loadWith(&mockBackend{data: map[string]string{}}, kc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Remote.GitHubToken != "keychain-token" {
		t.Errorf("Remote.GitHubToken = %q, want %q", cfg.Remote.GitHubToken, "keychain-token")
	}
}

func TestInvalidEnvIntKeepsDefault(t *testing.T) {
	t.Setenv("FREEVIBES_SERVER_PORT", "not-a-number")
	t.Setenv("FREEVIBES_GITHUB_TOKEN", "")

	cfg, err := loadWith(&mockBackend{data: map[string]string{}}, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4200 {
		t.Errorf("Server.Port = %d, want default 4200", cfg.Server.Port)
	}
}

func TestSetKeyRejectsSecrets(t *testing.T) {
	if err := SetKey("remote.github_token", "x"); err == nil {
		t.Fatal("expected error setting secret key, got nil")
	}
}

func TestValidKeysExcludeSecrets(t *testing.T) {
	for _, k := range ValidKeys() {
		if k == "remote.github_token" {
			t.Errorf("ValidKeys includes secret key %q", k)
		}
	}
}
