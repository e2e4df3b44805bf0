package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the process configuration, read from grc.yaml (optional) with
// GRC_* environment overrides.
type Config struct {
	HTTPAddr        string `mapstructure:"http_addr"`
	DatabaseURL     string `mapstructure:"database_url"`
	AuthzModelPath  string `mapstructure:"authz_model_path"`
	AuthzPolicyPath string `mapstructure:"authz_policy_path"`
	AllowlistPath   string `mapstructure:"allowlist_path"`
	ConflictPolicy  string `mapstructure:"conflict_policy"`
	LogLevel        string `mapstructure:"log_level"`
}

func Load(path string) (Config, error) {
	v := viper.New()
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("conflict_policy", "exclusion_wins")
	v.SetDefault("log_level", "info")
	v.SetDefault("authz_model_path", "configs/authz_model.conf")
	v.SetDefault("authz_policy_path", "configs/authz_policy.csv")

	v.SetEnvPrefix("GRC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only covers keys viper already knows about; keys without
	// a default (database_url, allowlist_path) need an explicit binding or
	// Unmarshal never sees them in env-only deployments.
	for _, key := range []string{
		"http_addr", "database_url", "authz_model_path", "authz_policy_path",
		"allowlist_path", "conflict_policy", "log_level",
	} {
		_ = v.BindEnv(key)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("grc")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("config: database_url is required (GRC_DATABASE_URL)")
	}
	switch cfg.ConflictPolicy {
	case "exclusion_wins", "inclusion_wins":
	default:
		return Config{}, fmt.Errorf("config: invalid conflict_policy %q", cfg.ConflictPolicy)
	}
	return cfg, nil
}
