package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/tabimport/internal/config"
	"github.com/JonMunkholm/tabimport/internal/core"
	"github.com/JonMunkholm/tabimport/internal/fileparse"
	"github.com/JonMunkholm/tabimport/internal/logging"
	"github.com/JonMunkholm/tabimport/internal/metrics"
	"github.com/JonMunkholm/tabimport/internal/schema"
	"github.com/JonMunkholm/tabimport/internal/submit"
	"github.com/JonMunkholm/tabimport/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	closeLog := logging.Setup(logging.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer closeLog()

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"template_store", cfg.Stores.Templates,
		"audit_store", cfg.Stores.Audit,
		"import_max_concurrent", cfg.Import.MaxConcurrent,
		"submit_concurrency", cfg.Submit.Concurrency,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	catalog, err := loadCatalog(cfg.Catalog.Path)
	if err != nil {
		slog.Error("failed to load table catalog", "path", cfg.Catalog.Path, "error", err)
		os.Exit(1)
	}
	slog.Info("tables registered", "count", catalog.Len())

	fileparse.MaxFileSize = cfg.Import.MaxFileSize

	ctx := context.Background()
	stores, err := openStores(ctx, cfg)
	if err != nil {
		slog.Error("failed to open stores", "error", err)
		os.Exit(1)
	}
	defer stores.Close()

	submitter, err := submit.New(submit.Config{
		BaseURL:      cfg.Submit.BaseURL,
		Timeout:      cfg.Submit.Timeout,
		APIToken:     cfg.Submit.APIToken,
		CSRFTokenURL: cfg.Submit.CSRFTokenURL,
		CSRFCookie:   cfg.Submit.CSRFCookie,
		CSRFHeader:   cfg.Submit.CSRFHeader,
	})
	if err != nil {
		slog.Error("failed to create submit client", "error", err)
		os.Exit(1)
	}
	if cfg.Submit.BaseURL != "" {
		if u, err := url.Parse(cfg.Submit.BaseURL); err == nil {
			slog.Info("submitting to", "host", u.Host)
		}
	}

	collectors := metrics.New(nil)

	service, err := core.NewService(catalog, core.Options{
		Templates:         stores.Templates,
		Audit:             stores.Audit,
		Submitter:         submitter,
		Metrics:           collectors,
		Limiter:           core.NewImportLimiter(cfg.Import.MaxConcurrent, cfg.Import.MaxWaitTime),
		SubmitConcurrency: cfg.Submit.Concurrency,
		ImportTimeout:     cfg.Import.Timeout,
		PreviewRows:       cfg.Import.PreviewRows,
	})
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	scheduler, err := core.NewScheduler(service, core.SchedulerConfig{
		SessionSweep:   cfg.Import.SessionSweep,
		SessionTTL:     cfg.Import.SessionTTL,
		AuditPurge:     cfg.Audit.PurgeSchedule,
		AuditRetention: cfg.Audit.Retention,
	}, slog.Default())
	if err != nil {
		slog.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}
	scheduler.Start()

	server := web.NewServer(service, cfg, collectors.Handler())

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		scheduler.Stop(shutdownCtx)

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		// Running imports record their rows and audit entries before exit.
		if status := service.Limiter().Status(); status.Active > 0 {
			slog.Info("waiting for imports to finish", "active", status.Active)
		}
		if err := service.Shutdown(shutdownCtx); err != nil {
			slog.Warn("imports did not finish in time", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}

// loadCatalog reads the table catalog from path, or returns the built-in
// tables when path is empty.
func loadCatalog(path string) (*schema.Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return schema.Default(), nil
	}
	return schema.LoadFile(path)
}
