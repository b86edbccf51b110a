package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

var (
	validBackends   = []string{"in-memory", "persistent-graph", "kv", "remote"}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"json", "text"}
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence; the CLI
// applies flag overrides to the returned Config.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	d := Default()
	v.SetDefault("trace.backend", d.Trace.Backend)
	v.SetDefault("trace.events_per_commit", d.Trace.EventsPerCommit)
	v.SetDefault("trace.data_dir", d.Trace.DataDir)
	v.SetDefault("trace.db_url", d.Trace.DBURL)
	v.SetDefault("remote.address", d.Remote.Address)
	v.SetDefault("remote.timeout", d.Remote.Timeout.String())
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout.String())
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	// Bind environment variables with ST_ prefix
	v.SetEnvPrefix("ST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets must be environment-only
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		Trace: TraceConfig{
			Backend:         v.GetString("trace.backend"),
			EventsPerCommit: v.GetInt("trace.events_per_commit"),
			DataDir:         v.GetString("trace.data_dir"),
			DBURL:           v.GetString("trace.db_url"),
		},
		Remote: RemoteConfig{
			Address: v.GetString("remote.address"),
			Timeout: v.GetDuration("remote.timeout"),
			APIKey:  v.GetString("remote.api_key"),
		},
		Server: ServerConfig{
			Host:           v.GetString("server.host"),
			Port:           v.GetInt("server.port"),
			RequestTimeout: v.GetDuration("server.request_timeout"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func oneOf(value string, allowed []string) bool {
	for _, a := range allowed {
		if value == a {
			return true
		}
	}
	return false
}

// Validate checks port range, positive counts and durations, and enumerated values.
func Validate(cfg *Config) error {
	if !oneOf(cfg.Trace.Backend, validBackends) {
		return fmt.Errorf("trace.backend must be one of %v, got %q", validBackends, cfg.Trace.Backend)
	}
	if cfg.Trace.EventsPerCommit <= 0 {
		return fmt.Errorf("events_per_commit must be positive, got %d", cfg.Trace.EventsPerCommit)
	}
	if cfg.Remote.Timeout <= 0 {
		return fmt.Errorf("remote.timeout must be positive, got %v", cfg.Remote.Timeout)
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.Server.RequestTimeout)
	}
	if !oneOf(cfg.Log.Level, validLogLevels) {
		return fmt.Errorf("log.level must be one of %v, got %q", validLogLevels, cfg.Log.Level)
	}
	if !oneOf(cfg.Log.Format, validLogFormats) {
		return fmt.Errorf("log.format must be one of %v, got %q", validLogFormats, cfg.Log.Format)
	}
	return nil
}

// validateNoSecretsInConfig enforces environment-only secrets.
// InConfig ignores environment values, so ST_REMOTE_API_KEY stays allowed.
func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("hmac_secret") || v.InConfig("server.hmac_secret") {
		return fmt.Errorf("HMAC secrets not allowed in config files (use ST_HMAC_SECRET environment variable)")
	}
	if v.InConfig("remote.api_key") {
		return fmt.Errorf("API keys not allowed in config files (use ST_REMOTE_API_KEY environment variable)")
	}
	return nil
}
