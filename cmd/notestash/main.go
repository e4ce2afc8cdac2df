// Package main is the entry point for the NoteStash note-sharing server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/notestash/notestash/internal/blob"
	"github.com/notestash/notestash/internal/config"
	"github.com/notestash/notestash/internal/logging"
	"github.com/notestash/notestash/internal/metadata"
	"github.com/notestash/notestash/internal/metrics"
	"github.com/notestash/notestash/internal/server"
)

func main() {
	configPath := flag.String("config", "notestash.yaml", "path to configuration file")
	port := flag.Int("port", 0, "override listening port (default: from config or 5000)")
	host := flag.String("host", "", "override listening host (default: from config or 0.0.0.0)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error (default: from config or info)")
	logFormat := flag.String("log-format", "", "log format: text, json (default: from config or text)")
	storageBackend := flag.String("storage-backend", "", "blob backend: local, sqlite, chunk, s3, gcs, azure (default: from config or local)")
	shutdownTimeout := flag.Int("shutdown-timeout", 0, "graceful shutdown timeout in seconds (default: from config or 30)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Command-line flags override config file values.
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Logging.Format = *logFormat
	}
	if *storageBackend != "" {
		cfg.Storage.Backend = *storageBackend
	}
	if *shutdownTimeout != 0 {
		cfg.Server.ShutdownTimeout = *shutdownTimeout
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)
	metrics.Register()

	catalog, err := openCatalog(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize catalog: %v\n", err)
		os.Exit(1)
	}
	defer catalog.Close()

	registry, err := buildBlobRegistry(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize blob storage: %v\n", err)
		os.Exit(1)
	}

	srv, err := server.New(cfg,
		server.WithCatalog(catalog),
		server.WithBlobRegistry(registry),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create server: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)

	// Start the server in a goroutine so we can handle shutdown signals.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("NoteStash listening", "addr", addr,
			"catalog", cfg.Catalog.Engine, "backend", cfg.Storage.Backend)
		if err := srv.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// SIGTERM/SIGINT handler: stop accepting connections, wait for in-flight
	// requests with a timeout, then exit.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("Received signal, shutting down", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(),
			time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("Shutdown error", "error", err)
		}
		slog.Info("Server stopped")

	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}
}

// openCatalog creates the catalog store selected by config.
func openCatalog(cfg *config.Config) (metadata.Store, error) {
	switch cfg.Catalog.Engine {
	case "postgres":
		if cfg.Catalog.Postgres.DSN == "" {
			return nil, fmt.Errorf("catalog.postgres.dsn is required when engine is 'postgres'")
		}
		store, err := metadata.NewPostgresStore(cfg.Catalog.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		slog.Info("Catalog initialized", "engine", "postgres")
		return store, nil
	case "sqlite", "":
		dbPath := cfg.Catalog.SQLite.Path
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating catalog directory: %w", err)
		}
		store, err := metadata.NewSQLiteStore(dbPath)
		if err != nil {
			return nil, err
		}
		slog.Info("Catalog initialized", "engine", "sqlite", "path", dbPath)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown catalog engine %q", cfg.Catalog.Engine)
	}
}

// buildBlobRegistry creates the blob store selected by config and registers
// it as the active backend.
func buildBlobRegistry(cfg *config.Config) (*blob.Registry, error) {
	store, err := openBlobStore(cfg)
	if err != nil {
		return nil, err
	}
	return blob.NewRegistry(store), nil
}

func openBlobStore(cfg *config.Config) (blob.Store, error) {
	ctx := context.Background()

	switch cfg.Storage.Backend {
	case "s3":
		if cfg.Storage.S3.Bucket == "" {
			return nil, fmt.Errorf("storage.s3.bucket is required when backend is 's3'")
		}
		region := cfg.Storage.S3.Region
		if region == "" {
			region = "us-east-1"
		}
		return blob.NewS3(ctx, blob.S3Options{
			Bucket:          cfg.Storage.S3.Bucket,
			Region:          region,
			Prefix:          cfg.Storage.S3.Prefix,
			EndpointURL:     cfg.Storage.S3.EndpointURL,
			UsePathStyle:    cfg.Storage.S3.UsePathStyle,
			AccessKeyID:     cfg.Storage.S3.AccessKeyID,
			SecretAccessKey: cfg.Storage.S3.SecretAccessKey,
		})
	case "gcs":
		if cfg.Storage.GCS.Bucket == "" {
			return nil, fmt.Errorf("storage.gcs.bucket is required when backend is 'gcs'")
		}
		return blob.NewGCS(ctx, cfg.Storage.GCS.Bucket, cfg.Storage.GCS.Project, cfg.Storage.GCS.Prefix)
	case "azure":
		if cfg.Storage.Azure.Container == "" {
			return nil, fmt.Errorf("storage.azure.container is required when backend is 'azure'")
		}
		accountURL := cfg.Storage.Azure.AccountURL
		if accountURL == "" {
			if cfg.Storage.Azure.Account == "" {
				return nil, fmt.Errorf("storage.azure.account or storage.azure.account_url is required when backend is 'azure'")
			}
			accountURL = fmt.Sprintf("https://%s.blob.core.windows.net", cfg.Storage.Azure.Account)
		}
		return blob.NewAzure(ctx, cfg.Storage.Azure.Container, accountURL, cfg.Storage.Azure.Prefix)
	case "sqlite":
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.DB.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating blob directory: %w", err)
		}
		store, err := blob.NewSQLite(cfg.Storage.DB.Path)
		if err != nil {
			return nil, err
		}
		slog.Info("Blob backend initialized", "backend", "sqlite", "path", cfg.Storage.DB.Path)
		return store, nil
	case "chunk":
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Chunk.Path), 0o755); err != nil {
			return nil, fmt.Errorf("creating blob directory: %w", err)
		}
		store, err := blob.NewChunked(cfg.Storage.Chunk.Path, cfg.Storage.Chunk.ChunkSize)
		if err != nil {
			return nil, err
		}
		slog.Info("Blob backend initialized", "backend", "chunk",
			"path", cfg.Storage.Chunk.Path, "chunk_size", cfg.Storage.Chunk.ChunkSize)
		return store, nil
	case "local", "":
		store, err := blob.NewLocal(cfg.Storage.Local.RootDir)
		if err != nil {
			return nil, err
		}
		// Crash-only recovery: clean orphan temp files from incomplete writes.
		if err := store.CleanTempFiles(); err != nil {
			slog.Warn("Failed to clean temp files", "error", err)
		}
		slog.Info("Blob backend initialized", "backend", "local", "root", cfg.Storage.Local.RootDir)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
