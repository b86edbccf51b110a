// Package config provides configuration management for searchtrace.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"
	"time"
)

// TraceConfig selects and parameterizes the trace graph backend.
type TraceConfig struct {
	Backend         string
	EventsPerCommit int
	DataDir         string
	DBURL           string
}

// RemoteConfig locates the graph service used by the remote backend.
// APIKey is read from ST_REMOTE_API_KEY only.
type RemoteConfig struct {
	Address string
	Timeout time.Duration
	APIKey  string
}

// ServerConfig holds configuration for the gRPC graph service.
type ServerConfig struct {
	Host           string
	Port           int
	RequestTimeout time.Duration
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string
	Format string
}

// Config is the complete searchtrace configuration.
type Config struct {
	Trace  TraceConfig
	Remote RemoteConfig
	Server ServerConfig
	Log    LogConfig
}

// Default returns configuration with default values.
func Default() *Config {
	return &Config{
		Trace: TraceConfig{
			Backend:         "in-memory",
			EventsPerCommit: 5000,
			DataDir:         "./data",
		},
		Remote: RemoteConfig{
			Address: "127.0.0.1:50061",
			Timeout: 10 * time.Second,
		},
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           50061,
			RequestTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// HMACSecrets extracts HMAC secrets from environment variables.
// Supports ST_HMAC_SECRET (single) and ST_HMAC_SECRET_N (rotation).
// Returns map of secret_id -> decoded secret bytes.
// Secret IDs are 32 hex chars (UUID without hyphens) matching API key format.
func HMACSecrets() (map[string][]byte, error) {
	secrets := make(map[string][]byte)

	add := func(envKey, val string) error {
		secretID, decoded, err := ParseHMACSecretWithID(val)
		if err != nil {
			return fmt.Errorf("%s: %w", envKey, err)
		}
		if _, exists := secrets[secretID]; exists {
			return fmt.Errorf("duplicate secret_id '%s' found in environment variables (check ST_HMAC_SECRET and ST_HMAC_SECRET_* for conflicts)", secretID)
		}
		secrets[secretID] = decoded
		return nil
	}

	// Format: <secret_id>:<base64_secret>
	if val := os.Getenv("ST_HMAC_SECRET"); val != "" {
		if err := add("ST_HMAC_SECRET", val); err != nil {
			return nil, err
		}
	}

	// Numbered secrets keep old and new keys valid during rotation
	for i := 1; ; i++ {
		key := fmt.Sprintf("ST_HMAC_SECRET_%d", i)
		val := os.Getenv(key)
		if val == "" {
			break
		}
		if err := add(key, val); err != nil {
			return nil, err
		}
	}

	return secrets, nil
}

// ParseHMACSecret decodes a base64-encoded HMAC secret.
func ParseHMACSecret(envValue string) ([]byte, error) {
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(envValue))
	if err != nil {
		return nil, fmt.Errorf("invalid base64 encoding: %w", err)
	}
	if len(decoded) < 32 {
		return nil, fmt.Errorf("secret must be at least 32 bytes, got %d", len(decoded))
	}
	return decoded, nil
}

// ParseHMACSecretWithID parses secret_id:base64_secret format.
// Secret ID must be 32 lowercase hex chars.
func ParseHMACSecretWithID(envValue string) (secretID string, secret []byte, err error) {
	parts := strings.SplitN(strings.TrimSpace(envValue), ":", 2)
	if len(parts) != 2 {
		return "", nil, fmt.Errorf("format must be <secret_id>:<base64_secret>")
	}

	secretID = parts[0]
	if len(secretID) != 32 {
		return "", nil, fmt.Errorf("secret_id must be 32 hex chars")
	}

	for _, c := range secretID {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return "", nil, fmt.Errorf("secret_id must be hex chars only")
		}
	}

	secret, err = ParseHMACSecret(parts[1])
	if err != nil {
		return "", nil, err
	}

	return secretID, secret, nil
}
