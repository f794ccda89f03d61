package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	relaymux "github.com/relaymux/relaymux"
	"github.com/relaymux/relaymux/internal/logging"
	"github.com/relaymux/relaymux/internal/state"
	"github.com/relaymux/relaymux/internal/version"
)

const defaultPort = "3333"

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway server",
		RunE:  runServe,
	}
}

func runServe(_ *cobra.Command, _ []string) error {
	logging.Setup(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))

	cfgPath, err := resolveConfigPath()
	if err != nil {
		return err
	}
	cfg, err := relaymux.LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", cfgPath, err)
	}
	catalog := relaymux.BuildCatalog(cfg)
	if catalog.Len() == 0 {
		logging.Logger.Warn("no usable backends in config; all completion requests will fail",
			"config", cfgPath)
	}

	store, closeStore, err := openStateStore()
	if err != nil {
		return err
	}
	defer closeStore()

	gw := relaymux.New(catalog, store)

	var corsOrigins []string
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		corsOrigins = strings.Split(origins, ",")
	}

	r := newRouter(gw, os.Getenv("GATEWAY_API_KEY"), corsOrigins)

	srv := &http.Server{
		Addr:        ":" + listenPort(),
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		// No WriteTimeout: streaming relays stay open for as long as
		// the upstream keeps sending.
		IdleTimeout: 60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		logging.Logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Logger.Error("shutdown error", "error", err)
		}
	}()

	logging.Logger.Info("relaymux listening",
		"version", version.Short(),
		"addr", srv.Addr,
		"backends", catalog.Len(),
		"config", cfgPath)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	logging.Logger.Info("server stopped")
	return nil
}

// resolveConfigPath locates the provider catalog under CONFIG_DIR
// (default "config"), preferring providers.json over the YAML forms.
func resolveConfigPath() (string, error) {
	dir := os.Getenv("CONFIG_DIR")
	if dir == "" {
		dir = "config"
	}
	for _, name := range []string{"providers.json", "providers.yaml", "providers.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no providers.json or providers.yaml found in %s (set CONFIG_DIR to override)", dir)
}

// openStateStore builds the backend-state store selected by STATE_BACKEND.
// The default is a JSON file next to the provider catalog.
func openStateStore() (state.Store, func(), error) {
	noop := func() {}
	switch backend := os.Getenv("STATE_BACKEND"); backend {
	case "", "file":
		dir := os.Getenv("CONFIG_DIR")
		if dir == "" {
			dir = "config"
		}
		return state.NewFileStore(filepath.Join(dir, "backend-state.json")), noop, nil
	case "sqlite":
		s, err := state.NewSQLiteStore(os.Getenv("STATE_DSN"))
		if err != nil {
			return nil, noop, fmt.Errorf("open sqlite state store: %w", err)
		}
		return s, closer(s), nil
	case "postgres":
		s, err := state.NewPostgresStore(os.Getenv("STATE_DSN"))
		if err != nil {
			return nil, noop, fmt.Errorf("open postgres state store: %w", err)
		}
		return s, closer(s), nil
	case "redis":
		s, err := state.NewRedisStore(os.Getenv("REDIS_URL"))
		if err != nil {
			return nil, noop, fmt.Errorf("open redis state store: %w", err)
		}
		return s, closer(s), nil
	default:
		return nil, noop, fmt.Errorf("unknown STATE_BACKEND %q (want file, sqlite, postgres or redis)", backend)
	}
}

func closer(c io.Closer) func() {
	return func() {
		if err := c.Close(); err != nil {
			logging.Logger.Warn("closing state store", "error", err)
		}
	}
}
