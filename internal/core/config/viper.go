package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*Config, error) {
	return Load(viper.New(), configPath)
}

// Load reads configuration into v, which may already carry bound CLI flags.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	d := DefaultConfig()
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.metrics_addr", d.Server.MetricsAddr)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout.String())
	v.SetDefault("engine.project", d.Engine.Project)
	v.SetDefault("engine.default_ruleset", d.Engine.DefaultRuleset)
	v.SetDefault("engine.stop_on_error", d.Engine.StopOnError)
	v.SetDefault("engine.watch", d.Engine.Watch)
	v.SetDefault("storage.db_url", d.Storage.DBURL)

	// SB_SERVER_PORT overrides server.port.
	v.SetEnvPrefix("SB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets are environment-only.
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:           v.GetString("server.host"),
			Port:           v.GetInt("server.port"),
			MetricsAddr:    v.GetString("server.metrics_addr"),
			RequestTimeout: v.GetDuration("server.request_timeout"),
		},
		Engine: EngineConfig{
			Project:        v.GetString("engine.project"),
			DefaultRuleset: v.GetString("engine.default_ruleset"),
			StopOnError:    v.GetBool("engine.stop_on_error"),
			Watch:          v.GetBool("engine.watch"),
		},
		Storage: StorageConfig{
			DBURL: v.GetString("storage.db_url"),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validateConfig checks the port range, a positive timeout, and a default ruleset.
func validateConfig(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.Server.RequestTimeout)
	}
	if strings.TrimSpace(cfg.Engine.DefaultRuleset) == "" {
		return fmt.Errorf("default_ruleset must not be empty")
	}
	return nil
}

func validateNoSecretsInConfig(v *viper.Viper) error {
	for _, key := range v.AllKeys() {
		if key == "hmac_secret" || strings.HasSuffix(key, ".hmac_secret") {
			return fmt.Errorf("HMAC secrets not allowed in config files (use SB_HMAC_SECRET environment variable)")
		}
	}
	return nil
}
