// Command routelab runs the prompt evaluation server: an HTTP API that
// executes classification runs over a labeled ticket corpus and aggregates
// accuracy metrics per prompt.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/routelab-ai/routelab/internal/classifier"
	"github.com/routelab-ai/routelab/internal/config"
	"github.com/routelab-ai/routelab/internal/corpus"
	"github.com/routelab-ai/routelab/internal/executor"
	"github.com/routelab-ai/routelab/internal/ratelimit"
	"github.com/routelab-ai/routelab/internal/server"
	"github.com/routelab-ai/routelab/internal/service/suggest"
	"github.com/routelab-ai/routelab/internal/storage"
	"github.com/routelab-ai/routelab/internal/telemetry"
	"github.com/routelab-ai/routelab/migrations"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := slog.LevelInfo
	if os.Getenv("ROUTELAB_LOG_LEVEL") == "debug" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("routelab starting", "version", version, "port", cfg.Port)

	// Initialize OpenTelemetry.
	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	// Connect to database and apply migrations.
	db, err := storage.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer db.Close()

	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	// Seed the corpus from the configured JSON file when the table is
	// empty. Existing rows are never overwritten; the corpus is immutable
	// once loaded so run results stay comparable across prompts.
	if err := seedCorpus(ctx, db, cfg.TestSetPath, logger); err != nil {
		return err
	}

	// Classifier client, shared between run execution and suggestions so
	// a single rate limit governs the upstream.
	chatClient := classifier.NewOpenAIClient(classifier.OpenAIConfig{
		BaseURL:    cfg.ClassifierBaseURL,
		APIKey:     cfg.ClassifierAPIKey,
		Model:      cfg.ClassifierModel,
		Timeout:    cfg.ClassifierTimeout,
		Rate:       cfg.ClassifierRate,
		Burst:      cfg.ClassifierBurst,
		MaxRetries: cfg.ClassifierMaxRetries,
	}, logger)

	provider := corpus.NewStoreProvider(db)

	exec := executor.New(db, provider, chatClient, executor.Options{
		Concurrency:       cfg.RunConcurrency,
		SoftFailThreshold: cfg.SoftFailThreshold,
	}, logger)

	// HTTP rate limiter.
	var limiter ratelimit.Limiter
	if cfg.RateLimitEnabled {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		defer func() { _ = limiter.Close() }()
		logger.Info("rate limiting: memory (in-process token bucket)",
			"rps", cfg.RateLimitRPS, "burst", cfg.RateLimitBurst)
	} else {
		limiter = ratelimit.NoopLimiter{}
		logger.Info("rate limiting: disabled")
	}

	srv := server.New(server.ServerConfig{
		Store:               db,
		Runner:              exec,
		Corpus:              provider,
		Suggester:           suggest.New(db, chatClient, logger),
		Limiter:             limiter,
		Logger:              logger,
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	})

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	// Stop accepting requests first, then drain in-flight runs so each one
	// reaches a terminal state before the pool closes.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "error", err)
	}
	if err := exec.Shutdown(shutdownCtx); err != nil {
		slog.Warn("executor shutdown", "error", err)
	}

	slog.Info("routelab stopped")
	return nil
}

// seedCorpus loads the test set file into an empty test_cases table.
// A missing file with an empty table is fatal: the server would accept runs
// it can only fail.
func seedCorpus(ctx context.Context, db *storage.DB, path string, logger *slog.Logger) error {
	n, err := db.CountTestCases(ctx)
	if err != nil {
		return fmt.Errorf("corpus: %w", err)
	}
	if n > 0 {
		logger.Info("corpus ready", "cases", n)
		return nil
	}

	cases, err := corpus.LoadFile(path)
	if err != nil {
		return fmt.Errorf("corpus seed (set ROUTELAB_TEST_SET_PATH): %w", err)
	}
	if err := db.SeedTestCases(ctx, cases); err != nil {
		return fmt.Errorf("corpus seed: %w", err)
	}
	logger.Info("corpus seeded", "path", path, "cases", len(cases))
	return nil
}
