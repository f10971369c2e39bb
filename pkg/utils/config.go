package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AuthConfig struct {
	JWTSecret   string        `mapstructure:"jwt_secret"`
	JWTIssuer   string        `mapstructure:"jwt_issuer"`
	JWTDuration time.Duration `mapstructure:"jwt_duration"`
}

type ServerConfig struct {
	HTTPAddr    string   `mapstructure:"http_addr"`
	TCPAddr     string   `mapstructure:"tcp_addr"`
	GRPCAddr    string   `mapstructure:"grpc_addr"`
	DBPath      string   `mapstructure:"db_path"`
	NATSURL     string   `mapstructure:"nats_url"` // empty disables event publishing
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// CatalogConfig holds the static credentials of the third-party catalog.
type CatalogConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	ClientID string        `mapstructure:"client_id"`
	Token    string        `mapstructure:"token"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Debounce time.Duration `mapstructure:"debounce"`
}

type S3Config struct {
	Bucket   string `mapstructure:"bucket"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"` // MinIO and friends; enables path-style
	Prefix   string `mapstructure:"prefix"`
}

// ClientConfig drives the offline-first CLI.
type ClientConfig struct {
	DBPath    string   `mapstructure:"db_path"`
	TokenPath string   `mapstructure:"token_path"`
	APIURL    string   `mapstructure:"api_url"`
	Remote    string   `mapstructure:"remote"` // "http" or "s3"
	S3        S3Config `mapstructure:"s3"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	Dev   bool   `mapstructure:"dev"`
}

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Client  ClientConfig  `mapstructure:"client"`
	Log     LogConfig     `mapstructure:"log"`
}

// DataDir is ~/.gamevault, or the working directory when there is no home.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".gamevault")
}

func setDefaults(v *viper.Viper) {
	dir := DataDir()

	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.tcp_addr", ":7070")
	v.SetDefault("server.grpc_addr", ":9090")
	v.SetDefault("server.db_path", filepath.Join(dir, "server.db"))
	v.SetDefault("server.nats_url", "")
	v.SetDefault("server.cors_origins", []string{"*"})

	// dev default (change for demo / production)
	v.SetDefault("auth.jwt_secret", "dev-secret-change-me")
	v.SetDefault("auth.jwt_issuer", "gamevault")
	v.SetDefault("auth.jwt_duration", 24*time.Hour)

	v.SetDefault("catalog.base_url", "https://api.igdb.com/v4")
	v.SetDefault("catalog.client_id", "")
	v.SetDefault("catalog.token", "")
	v.SetDefault("catalog.timeout", 15*time.Second)
	v.SetDefault("catalog.debounce", 300*time.Millisecond)

	v.SetDefault("client.db_path", filepath.Join(dir, "library.db"))
	v.SetDefault("client.token_path", filepath.Join(dir, "token.json"))
	v.SetDefault("client.api_url", "http://localhost:8080")
	v.SetDefault("client.remote", "http")
	v.SetDefault("client.s3.bucket", "")
	v.SetDefault("client.s3.region", "us-east-1")
	v.SetDefault("client.s3.endpoint", "")
	v.SetDefault("client.s3.prefix", "gamevault")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.dev", false)
}

// LoadConfig reads gamevault.yaml (or .toml/.json) from configPath, the
// working directory or ~/.gamevault, then applies GAMEVAULT_* environment
// overrides, e.g. GAMEVAULT_SERVER_HTTP_ADDR or GAMEVAULT_CATALOG_TOKEN.
// A missing config file is not an error.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("gamevault")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath(DataDir())

	v.SetEnvPrefix("GAMEVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings that would only fail later at runtime.
func (c *Config) Validate() error {
	switch c.Client.Remote {
	case "http", "s3":
	default:
		return fmt.Errorf("client.remote must be http or s3, got %q", c.Client.Remote)
	}
	if c.Client.Remote == "s3" && c.Client.S3.Bucket == "" {
		return errors.New("client.s3.bucket is required when client.remote is s3")
	}
	if c.Auth.JWTDuration <= 0 {
		return errors.New("auth.jwt_duration must be positive")
	}
	if c.Catalog.Debounce < 0 {
		return errors.New("catalog.debounce must not be negative")
	}
	return nil
}
