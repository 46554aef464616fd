// Package config loads the indexer's runtime configuration: node transport
// target, storage backend selection, HTTP bind address, wallet master key,
// and logging. A .env file is layered under real environment variables so
// local runs and deployed processes share one mechanism.
package config

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the unified configuration surface for both cmd/indexer (cloud,
// Postgres-backed) and cmd/standalone (embedded SQLite) binaries. Backend
// selects which storage package is wired at startup; fields the unused
// backend doesn't need are simply left at their zero value.
type Config struct {
	NodeURL string `mapstructure:"node_url"`

	Backend     string `mapstructure:"backend"` // "sqlite" or "postgres"
	SqlitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`

	HTTPAddr string `mapstructure:"http_addr"`

	WalletMasterKeyHex string `mapstructure:"wallet_master_key"`

	LogLevel string `mapstructure:"log_level"`
}

// WalletMasterKey decodes WalletMasterKeyHex into the 32-byte
// chacha20poly1305 key wallet.NewSessionManager requires.
func (c Config) WalletMasterKey() ([]byte, error) {
	key, err := hex.DecodeString(c.WalletMasterKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decode wallet_master_key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("wallet_master_key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// Load reads a .env file if present (ignored if absent, since production
// deployments set real environment variables instead), then layers
// MIDNIGHT_INDEXER_-prefixed environment variables over the defaults below.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("MIDNIGHT_INDEXER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("node_url", "ws://127.0.0.1:9944")
	v.SetDefault("backend", "sqlite")
	v.SetDefault("sqlite_path", "indexer.sqlite")
	v.SetDefault("postgres_dsn", "")
	v.SetDefault("http_addr", ":8088")
	v.SetDefault("wallet_master_key", "")
	v.SetDefault("log_level", "info")

	for _, key := range []string{"node_url", "backend", "sqlite_path", "postgres_dsn", "http_addr", "wallet_master_key", "log_level"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	switch cfg.Backend {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("backend must be %q or %q, got %q", "sqlite", "postgres", cfg.Backend)
	}
	if cfg.Backend == "postgres" && cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("postgres_dsn is required when backend=postgres")
	}

	return &cfg, nil
}
