// Package main is the entry point for the replication gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/replicagate/replicagate/internal/auth"
	"github.com/replicagate/replicagate/internal/config"
	"github.com/replicagate/replicagate/internal/logging"
	"github.com/replicagate/replicagate/internal/metrics"
	"github.com/replicagate/replicagate/internal/replication"
	"github.com/replicagate/replicagate/internal/server"
	"github.com/replicagate/replicagate/internal/storage"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to configuration file (required)")
	host := flag.String("host", "0.0.0.0", "listening host")
	port := flag.String("port", "8080", "listening port")
	accessKeyID := flag.String("access-key-id", os.Getenv("AWS_ACCESS_KEY_ID"), "access key id accepted by the authenticator")
	secretAccessKey := flag.String("secret-access-key", os.Getenv("AWS_SECRET_ACCESS_KEY"), "secret access key accepted by the authenticator")
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "--config (or CONFIG_PATH) is required")
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stderr)

	if len(cfg.Backends) == 0 {
		fmt.Fprintln(os.Stderr, "config has an empty backend list")
		os.Exit(1)
	}

	backends, err := buildBackends(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize backends: %v\n", err)
		os.Exit(1)
	}

	primaryIndex := cfg.PrimaryIndex()
	if cfg.UseLatencyBasedPrimaryBackend {
		primaryIndex = replication.ElectPrimary(context.Background(), backends)
	}

	engine := replication.New(backends, primaryIndex, cfg.ReadMode, cfg.WriteMode)

	metrics.Register()

	var verifier *auth.Verifier
	if *accessKeyID != "" && *secretAccessKey != "" {
		store := auth.NewCredentialStore([]auth.Credential{
			{AccessKeyID: *accessKeyID, SecretAccessKey: *secretAccessKey},
		})
		verifier = auth.NewVerifier(store)
	}

	srv := server.New(cfg, engine, verifier)

	addr := fmt.Sprintf("%s:%s", *host, *port)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("gateway listening", "addr", addr, "virtual_bucket", cfg.VirtualBucket, "backends", len(backends), "primary_index", primaryIndex)
		if err := srv.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("received signal, shutting down", "signal", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
		slog.Info("server stopped")

	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}
}

// buildBackends constructs one storage.Storage per configured backend entry,
// in the order they appear in the config file.
func buildBackends(cfg *config.Config) ([]storage.Storage, error) {
	backends := make([]storage.Storage, 0, len(cfg.Backends))
	for _, b := range cfg.Backends {
		switch b.Type {
		case config.BackendTypeMemory:
			backends = append(backends, storage.NewMemoryBackend(b.Name))
		case config.BackendTypeS3:
			backend, err := storage.NewS3Backend(context.Background(), b.Name, b.Bucket, b.Region, b.Endpoint, b.ForcePathStyle, b.AccessKeyID, b.SecretAccessKey)
			if err != nil {
				return nil, fmt.Errorf("backend %q: %w", b.Name, err)
			}
			backends = append(backends, backend)
		default:
			return nil, fmt.Errorf("backend %q: unknown type %q", b.Name, b.Type)
		}
	}
	return backends, nil
}
