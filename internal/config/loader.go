package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var errInvalidConfig = errors.New("invalid configuration")

// Load reads configs/config.yaml, the config.<env>.yaml overlay and the
// environment. Missing files are not an error; env vars alone are enough.
func Load() (Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	return load(v, true)
}

// LoadFromFile reads a single yaml file plus environment overrides.
func LoadFromFile(path string) (Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	return load(v, false)
}

func load(v *viper.Viper, overlay bool) (Config, error) {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindEnv(v)
	v.SetDefault("matching.default_min_score", 60.0)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	if overlay {
		env := strings.TrimSpace(os.Getenv("APP_ENVIRONMENT"))
		if env == "" {
			env = "development"
		}
		v.SetConfigName("config." + env)
		_ = v.MergeInConfig()
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// bindEnv registers every key so AutomaticEnv also works for Unmarshal when
// no config file provides the key.
func bindEnv(v *viper.Viper) {
	keys := []string{
		"app.name", "app.environment", "app.http_port", "app.shutdown_timeout",
		"database.postgres.host", "database.postgres.port", "database.postgres.database",
		"database.postgres.user", "database.postgres.password", "database.postgres.sslmode",
		"database.postgres.connect_timeout", "database.postgres.pool_max_conns",
		"database.postgres.pool_min_conns",
		"database.redis.enabled", "database.redis.address", "database.redis.password", "database.redis.db",
		"matching.top_n", "matching.default_limit", "matching.max_limit", "matching.default_min_score",
		"matching.parallelism", "matching.cache_ttl", "matching.recompute_timeout",
		"auth.jwt.enabled", "auth.jwt.access_secret",
		"logging.level", "logging.format",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

func loadEnvFile() {
	paths := []string{".env", "../.env", "../../.env"}
	if root := findProjectRoot(); root != "" {
		paths = append(paths, filepath.Join(root, ".env"))
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			if err := godotenv.Load(p); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "freelance-match"
	}
	if cfg.App.Environment == "" {
		cfg.App.Environment = "development"
	}
	if cfg.App.HTTPPort == "" {
		cfg.App.HTTPPort = "8080"
	}
	if cfg.App.ShutdownTimeout <= 0 {
		cfg.App.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Postgres.ConnectTimeout <= 0 {
		cfg.Database.Postgres.ConnectTimeout = 5 * time.Second
	}
	if cfg.Database.Postgres.PoolMaxConns == 0 {
		cfg.Database.Postgres.PoolMaxConns = 25
	}

	if cfg.Matching.TopN <= 0 {
		cfg.Matching.TopN = 10
	}
	if cfg.Matching.DefaultLimit <= 0 {
		cfg.Matching.DefaultLimit = 10
	}
	if cfg.Matching.MaxLimit <= 0 {
		cfg.Matching.MaxLimit = 100
	}
	if cfg.Matching.Parallelism <= 0 {
		cfg.Matching.Parallelism = 8
	}
	if cfg.Matching.CacheTTL <= 0 {
		cfg.Matching.CacheTTL = 10 * time.Minute
	}
	if cfg.Matching.RecomputeTimeout <= 0 {
		cfg.Matching.RecomputeTimeout = 15 * time.Second
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validateConfig(cfg Config) error {
	var missing []string
	if cfg.Database.Postgres.Host == "" {
		missing = append(missing, "database.postgres.host")
	}
	if cfg.Database.Postgres.Database == "" {
		missing = append(missing, "database.postgres.database")
	}
	if cfg.Database.Postgres.User == "" {
		missing = append(missing, "database.postgres.user")
	}
	if cfg.Database.Redis.Enabled && cfg.Database.Redis.Address == "" {
		missing = append(missing, "database.redis.address")
	}
	if cfg.Auth.JWT.Enabled && cfg.Auth.JWT.AccessSecret == "" {
		missing = append(missing, "auth.jwt.access_secret")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", errInvalidConfig, strings.Join(missing, ", "))
	}

	if cfg.Matching.DefaultLimit > cfg.Matching.MaxLimit {
		return fmt.Errorf("%w: matching.default_limit exceeds matching.max_limit", errInvalidConfig)
	}
	if cfg.Matching.DefaultMinScore < 0 || cfg.Matching.DefaultMinScore > 100 {
		return fmt.Errorf("%w: matching.default_min_score must be within 0..100", errInvalidConfig)
	}
	return nil
}
