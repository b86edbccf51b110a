package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

// TestSecretsAndPrecedence covers environment-only secrets and source precedence.
func TestSecretsAndPrecedence(t *testing.T) {
	t.Run("ST_HMAC_SECRET accessible via HMACSecrets", func(t *testing.T) {
		os.Setenv("ST_HMAC_SECRET", "0123456789abcdef0123456789abcdef:dGVzdHNlY3JldDEyMzQ1Njc4OTBhYmNkZWZnaGlqa2xtbm9w")
		defer os.Unsetenv("ST_HMAC_SECRET")

		secrets, err := HMACSecrets()
		if err != nil {
			t.Fatalf("HMACSecrets error: %v", err)
		}
		if _, ok := secrets["0123456789abcdef0123456789abcdef"]; !ok {
			t.Fatal("secret not accessible")
		}
	})

	t.Run("config file with hmac_secret rejected", func(t *testing.T) {
		path := writeConfigFile(t, `server:
  host: "localhost"
  port: 8080
  hmac_secret: "should_be_rejected"
`)
		_, err := LoadConfig(path)
		if err == nil {
			t.Fatal("expected error for secret in config file")
		}
		if err.Error() != "HMAC secrets not allowed in config files (use ST_HMAC_SECRET environment variable)" {
			t.Fatalf("wrong error message: %v", err)
		}
	})

	t.Run("config file with api_key rejected", func(t *testing.T) {
		path := writeConfigFile(t, `remote:
  address: "localhost:50061"
  api_key: "st-v1-should-be-rejected"
`)
		if _, err := LoadConfig(path); err == nil {
			t.Fatal("expected error for api key in config file")
		}
	})

	t.Run("environment overrides config file", func(t *testing.T) {
		os.Setenv("ST_SERVER_PORT", "8080")
		defer os.Unsetenv("ST_SERVER_PORT")

		path := writeConfigFile(t, `server:
  port: 9090
trace:
  backend: persistent-graph
  events_per_commit: 100
`)
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig error: %v", err)
		}
		if cfg.Server.Port != 8080 {
			t.Fatalf("environment should override config file: expected 8080, got %d", cfg.Server.Port)
		}
		if cfg.Trace.Backend != "persistent-graph" {
			t.Errorf("expected backend from config file, got %s", cfg.Trace.Backend)
		}
		if cfg.Trace.EventsPerCommit != 100 {
			t.Errorf("expected events_per_commit 100 from config file, got %d", cfg.Trace.EventsPerCommit)
		}
	})
}
