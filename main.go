package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-hclog"

	"github.com/peteski22/prior-consent/internal/addons"
	"github.com/peteski22/prior-consent/internal/demo"
	"github.com/peteski22/prior-consent/internal/grpcplugin"
	"github.com/peteski22/prior-consent/internal/pipeline"
	"github.com/peteski22/prior-consent/internal/settings"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

type config struct {
	listen       string
	settingsPath string
	logLevel     string
	hostLanguage string
	gatePlugin   string
}

func parseFlags() config {
	var cfg config
	flag.StringVar(&cfg.listen, "listen", ":8080", "Address to serve HTTP on")
	flag.StringVar(&cfg.settingsPath, "settings", "settings.yaml", "Path to the YAML settings file")
	flag.StringVar(&cfg.logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	flag.StringVar(&cfg.hostLanguage, "host-language", "en", "Site language used when the visitor states no preference")
	flag.StringVar(&cfg.gatePlugin, "gate-plugin", "", "Optional path to the consent-gate plugin binary, served under /plugin")
	flag.Parse()
	return cfg
}

func run() error {
	cfg := parseFlags()

	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "prior-consent",
		Level: hclog.LevelFromString(cfg.logLevel),
	})

	logger.Info("starting prior-consent")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := settings.NewFileStore(cfg.settingsPath, logger)
	if err != nil {
		return err
	}
	if err := store.Load(); err != nil {
		return fmt.Errorf("error loading settings: %w", err)
	}

	registry, err := addons.NewRegistry(
		addons.DefaultCatalog(),
		settings.NewService(store, logger),
		settings.NewPluginState(store),
		logger,
	)
	if err != nil {
		return fmt.Errorf("error building addon registry: %w", err)
	}

	for _, d := range registry.Active() {
		logger.Info("addon active", "key", d.Key, "kind", d.Kind)
	}
	for _, d := range registry.AvailableDisabled() {
		logger.Info("addon available but disabled", "key", d.Key)
	}

	factory := pipeline.NewFactory(registry, cfg.hostLanguage, logger)
	factory.OnRender(demo.Schedule)

	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})

	router.Group(func(r chi.Router) {
		r.Use(factory.Middleware())
		r.Get("/", demo.Handler(logger))

		r.With(pipeline.FilterHTML(logger)).Get("/article", articleHandler)
	})

	if cfg.gatePlugin != "" {
		settingsPath, err := filepath.Abs(cfg.settingsPath)
		if err != nil {
			return fmt.Errorf("error resolving settings path: %w", err)
		}
		client, err := grpcplugin.Launch(ctx, cfg.gatePlugin, []string{"--settings", settingsPath}, map[string]string{
			"host_language": cfg.hostLanguage,
		}, logger)
		if err != nil {
			return fmt.Errorf("error starting consent-gate plugin: %w", err)
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := client.Stop(shutdownCtx); err != nil {
				logger.Error("failed to stop plugin", "error", err)
			}
		}()

		router.With(grpcplugin.Middleware(client, grpcplugin.DefaultConsentHeader, logger)).Get("/plugin/article", articleHandler)
		logger.Info("registered plugin", "name", client.Name())
	}

	srv := &http.Server{
		Addr:    cfg.listen,
		Handler: router,
	}

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

		for sig := range sigChan {
			if sig == syscall.SIGHUP {
				if err := store.Load(); err != nil {
					logger.Error("failed to reload settings", "error", err)
					continue
				}
				logger.Info("settings reloaded")
				continue
			}
			break
		}

		logger.Info("shutting down server...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	logger.Info("server starting", "addr", cfg.listen)

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// articleHandler serves the article as a plain HTML fragment, gated by whichever middleware wraps it.
func articleHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, demo.Article)
}
