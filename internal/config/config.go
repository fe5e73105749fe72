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

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
	IdleTimeout  int    `mapstructure:"idle_timeout"`  // in seconds
	// PublicURL is the externally reachable base URL used to build claim URLs
	PublicURL string `mapstructure:"public_url"`
}

// DatabaseConfig holds database configuration. An empty Host selects the
// in-memory store (local development fallback).
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// MoltbookConfig holds the identity-token verifier configuration
type MoltbookConfig struct {
	VerifyURL string `mapstructure:"verify_url"`
	AppKey    string `mapstructure:"app_key"`
	Audience  string `mapstructure:"audience"`
}

// XConfig holds the social-post search (X API v2) configuration
type XConfig struct {
	APIURL      string `mapstructure:"api_url"`
	BearerToken string `mapstructure:"bearer_token"`
}

// GitHubConfig holds the code-host PR lookup configuration
type GitHubConfig struct {
	APIURL string `mapstructure:"api_url"`
	Token  string `mapstructure:"token"`
}

// BlockscoutConfig holds the chain-explorer configuration
type BlockscoutConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// WalletStatsConfig holds wallet enrichment configuration
type WalletStatsConfig struct {
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
	PoolSize  int           `mapstructure:"pool_size"`
	QueueSize int           `mapstructure:"queue_size"`
}

// RateLimitConfig holds the per-IP arrival-rate ceilings (policy values)
type RateLimitConfig struct {
	RegisterPerHour int `mapstructure:"register_per_hour"`
	ProofsPerHour   int `mapstructure:"proofs_per_hour"`
}

// APIConfig holds configuration for the API server
type APIConfig struct {
	BaseConfig  `mapstructure:",squash"`
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Moltbook    MoltbookConfig    `mapstructure:"moltbook"`
	X           XConfig           `mapstructure:"x"`
	GitHub      GitHubConfig      `mapstructure:"github"`
	Blockscout  BlockscoutConfig  `mapstructure:"blockscout"`
	WalletStats WalletStatsConfig `mapstructure:"wallet_stats"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	// VerifierTimeout bounds GitHub/X/Moltbook/probe calls
	VerifierTimeout time.Duration `mapstructure:"verifier_timeout"`
}

// LoadAPIConfig loads configuration for the API server
func LoadAPIConfig(configFile string, envPath string) (*APIConfig, error) {
	v := configureViper("api", configFile, envPath)

	// Set defaults
	v.SetDefault("debug", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.idle_timeout", 120)
	v.SetDefault("server.public_url", "http://localhost:8080")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("moltbook.verify_url", "https://www.moltbook.com/api/v1/agents/verify-identity")
	v.SetDefault("x.api_url", "https://api.twitter.com/2")
	v.SetDefault("github.api_url", "https://api.github.com")
	v.SetDefault("blockscout.base_url", "https://base.blockscout.com/api/v2")
	v.SetDefault("blockscout.timeout", "2s")
	v.SetDefault("wallet_stats.cache_ttl", "1h")
	v.SetDefault("wallet_stats.pool_size", 4)
	v.SetDefault("wallet_stats.queue_size", 256)
	v.SetDefault("rate_limit.register_per_hour", 10)
	v.SetDefault("rate_limit.proofs_per_hour", 20)
	v.SetDefault("verifier_timeout", "10s")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Config file not found, use environment variables
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config APIConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

// configureViper returns a viper instance with the config file and environment variables set
func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	// Load environment variables
	loadEnv(envPath, service)

	// Set config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		v.AddConfigPath("config/")
	}

	v.SetEnvPrefix("MOLT_ORACLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind all environment variables
	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables.
// This is required for viper to map env vars to config struct fields when no config file exists.
func bindAllEnvVars(v *viper.Viper) {
	keys := []string{
		"debug",
		"sentry_dsn",
		"verifier_timeout",
		// Server
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"server.idle_timeout",
		"server.public_url",
		// Database
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_open_conns",
		"database.max_idle_conns",
		"database.conn_max_lifetime",
		"database.conn_max_idle_time",
		// Moltbook
		"moltbook.verify_url",
		"moltbook.app_key",
		"moltbook.audience",
		// X
		"x.api_url",
		"x.bearer_token",
		// GitHub
		"github.api_url",
		"github.token",
		// Blockscout
		"blockscout.base_url",
		"blockscout.timeout",
		// Wallet stats
		"wallet_stats.cache_ttl",
		"wallet_stats.pool_size",
		"wallet_stats.queue_size",
		// Rate limits
		"rate_limit.register_per_hour",
		"rate_limit.proofs_per_hour",
	}

	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads environment variables from the config directory
func loadEnv(envPath string, service string) {
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		candidate := filepath.Join(envPath, envFile)
		_ = godotenv.Overload(candidate) // Overload lets later files override earlier ones
	}
}

// ChdirRepoRoot changes the current working directory to the repository root
func ChdirRepoRoot() {
	cwd, _ := os.Getwd()
	for range 5 {
		if _, err := os.Stat(filepath.Join(cwd, "config")); err == nil {
			_ = os.Chdir(cwd)
			return
		}
		cwd = filepath.Dir(cwd)
	}
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
