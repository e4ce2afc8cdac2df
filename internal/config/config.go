// Package config handles loading and parsing of NoteStash configuration.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for NoteStash.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	Catalog CatalogConfig `yaml:"catalog"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// ShutdownTimeout is the graceful shutdown timeout in seconds.
	ShutdownTimeout int `yaml:"shutdown_timeout"`
	// MaxUploadSize is the maximum accepted upload size in bytes.
	MaxUploadSize int64 `yaml:"max_upload_size"`
}

// AuthConfig holds token signing and password hashing settings.
type AuthConfig struct {
	// JWTSecret signs bearer tokens. Must be overridden in production via
	// config file or the NOTESTASH_JWT_SECRET environment variable.
	JWTSecret string `yaml:"jwt_secret"`
	// TokenTTLHours is the bearer token validity window in hours.
	TokenTTLHours int `yaml:"token_ttl_hours"`
	// BcryptCost is the bcrypt cost factor for password hashing.
	BcryptCost int `yaml:"bcrypt_cost"`
}

// CatalogConfig holds note catalog / credential store settings.
type CatalogConfig struct {
	// Engine is the catalog backend engine ("sqlite" or "postgres").
	Engine   string         `yaml:"engine"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite-specific catalog settings.
type SQLiteConfig struct {
	// Path is the filesystem path for the SQLite database file.
	Path string `yaml:"path"`
}

// PostgresConfig holds Postgres-specific catalog settings.
type PostgresConfig struct {
	// DSN is the Postgres connection string.
	DSN string `yaml:"dsn"`
}

// StorageConfig holds blob storage backend settings. Exactly one backend is
// active for new uploads; notes record which backend produced their ref.
type StorageConfig struct {
	// Backend is the active blob backend ("local", "sqlite", "chunk", "s3",
	// "gcs", "azure").
	Backend string `yaml:"backend"`

	Local LocalConfig       `yaml:"local"`
	DB    DBBlobConfig      `yaml:"db"`
	Chunk ChunkConfig       `yaml:"chunk"`
	S3    S3Config          `yaml:"s3"`
	GCS   GCSConfig         `yaml:"gcs"`
	Azure AzureConfig       `yaml:"azure"`
}

// LocalConfig holds local filesystem blob backend settings.
type LocalConfig struct {
	// RootDir is the base directory for local blob storage.
	RootDir string `yaml:"root_dir"`
}

// DBBlobConfig holds settings for the SQLite blob-column backend.
type DBBlobConfig struct {
	// Path is the SQLite database file holding blob rows.
	Path string `yaml:"path"`
}

// ChunkConfig holds settings for the chunked SQLite backend.
type ChunkConfig struct {
	// Path is the SQLite database file holding chunk rows.
	Path string `yaml:"path"`
	// ChunkSize is the chunk size in bytes (default 256 KiB).
	ChunkSize int `yaml:"chunk_size"`
}

// S3Config holds settings for the AWS S3 blob backend.
type S3Config struct {
	Bucket string `yaml:"bucket"`
	Region string `yaml:"region"`
	// Prefix is the optional key prefix for all blobs in the bucket.
	Prefix string `yaml:"prefix"`
	// EndpointURL overrides the S3 endpoint (MinIO, localstack).
	EndpointURL string `yaml:"endpoint_url"`
	// UsePathStyle forces path-style addressing (required by most S3-compatible stores).
	UsePathStyle bool `yaml:"use_path_style"`
	// AccessKeyID / SecretAccessKey are static credentials. When empty the
	// standard AWS credential chain is used.
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// GCSConfig holds settings for the Google Cloud Storage blob backend.
type GCSConfig struct {
	Bucket  string `yaml:"bucket"`
	Project string `yaml:"project"`
	Prefix  string `yaml:"prefix"`
}

// AzureConfig holds settings for the Azure Blob Storage backend.
type AzureConfig struct {
	Container string `yaml:"container"`
	// Account is the storage account name, used to construct the account URL
	// as https://{account}.blob.core.windows.net when AccountURL is empty.
	Account    string `yaml:"account"`
	AccountURL string `yaml:"account_url"`
	Prefix     string `yaml:"prefix"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a YAML configuration file from the given path and returns a
// parsed Config. A missing file is not an error: defaults plus environment
// overrides are enough to run with the local backend.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	applyDefaults(cfg)
	applyEnv(cfg)
	return cfg, nil
}

// Default returns a Config with sensible defaults, without reading any file
// or environment. Tests use it as a starting point.
func Default() *Config {
	return defaultConfig()
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            5000,
			ShutdownTimeout: 30,
			MaxUploadSize:   64 << 20,
		},
		Auth: AuthConfig{
			JWTSecret:     "notestash-dev-secret",
			TokenTTLHours: 7 * 24,
			BcryptCost:    10,
		},
		Catalog: CatalogConfig{
			Engine: "sqlite",
			SQLite: SQLiteConfig{Path: "./data/catalog.db"},
		},
		Storage: StorageConfig{
			Backend: "local",
			Local:   LocalConfig{RootDir: "./data/uploads"},
			DB:      DBBlobConfig{Path: "./data/blobs.db"},
			Chunk:   ChunkConfig{Path: "./data/chunks.db", ChunkSize: 256 << 10},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// applyDefaults fills in any fields that are still at their zero value
// after YAML unmarshaling.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 30
	}
	if cfg.Server.MaxUploadSize == 0 {
		cfg.Server.MaxUploadSize = 64 << 20
	}
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = "notestash-dev-secret"
	}
	if cfg.Auth.TokenTTLHours == 0 {
		cfg.Auth.TokenTTLHours = 7 * 24
	}
	if cfg.Auth.BcryptCost == 0 {
		cfg.Auth.BcryptCost = 10
	}
	if cfg.Catalog.Engine == "" {
		cfg.Catalog.Engine = "sqlite"
	}
	if cfg.Catalog.SQLite.Path == "" {
		cfg.Catalog.SQLite.Path = "./data/catalog.db"
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "local"
	}
	if cfg.Storage.Local.RootDir == "" {
		cfg.Storage.Local.RootDir = "./data/uploads"
	}
	if cfg.Storage.DB.Path == "" {
		cfg.Storage.DB.Path = "./data/blobs.db"
	}
	if cfg.Storage.Chunk.Path == "" {
		cfg.Storage.Chunk.Path = "./data/chunks.db"
	}
	if cfg.Storage.Chunk.ChunkSize == 0 {
		cfg.Storage.Chunk.ChunkSize = 256 << 10
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// applyEnv overrides config values from NOTESTASH_* environment variables.
// Secrets and connection strings are expected to come in this way in
// production rather than living in the config file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("NOTESTASH_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("NOTESTASH_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("NOTESTASH_DB_DSN"); v != "" {
		cfg.Catalog.Engine = "postgres"
		cfg.Catalog.Postgres.DSN = v
	}
	if v := os.Getenv("NOTESTASH_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("NOTESTASH_S3_ACCESS_KEY_ID"); v != "" {
		cfg.Storage.S3.AccessKeyID = v
	}
	if v := os.Getenv("NOTESTASH_S3_SECRET_ACCESS_KEY"); v != "" {
		cfg.Storage.S3.SecretAccessKey = v
	}
}
