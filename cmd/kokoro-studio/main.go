// main package for the kokoro-studio launcher: it provisions the model
// assets, then starts the local web studio.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/kokoro-studio/internal/config"
	"github.com/book-expert/kokoro-studio/internal/kokoro"
	"github.com/book-expert/kokoro-studio/internal/provision"
	"github.com/book-expert/kokoro-studio/internal/session"
	"github.com/book-expert/kokoro-studio/internal/web"
)

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "kokoro-studio.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func loadConfig(bootstrapLog *logger.Logger) *config.Config {
	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		// A desktop install commonly has no project TOML at all; the
		// built-in defaults cover that case.
		bootstrapLog.Warn("No configuration found, using defaults: %v", err)

		return config.Default()
	}

	return cfg
}

func run() error {
	// 1. Create a temporary logger for the bootstrap process.
	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	cfg := loadConfig(bootstrapLog)

	// 2. Initialize the final logger based on the loaded configuration.
	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Make sure the model assets exist before anything touches them.
	err = provisionAssets(ctx, cfg, finalLog)
	if err != nil {
		return err
	}

	// 4. Load the model and serve the studio.
	return serve(ctx, cfg, finalLog)
}

func provisionAssets(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	err := os.MkdirAll(cfg.Paths.ModelDir, 0o750)
	if err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	provisioner := provision.New(cfg, log)

	results, err := provisioner.Ensure(ctx, provision.Manifest(cfg))
	if err != nil {
		log.Error("Asset provisioning failed: %v", err)

		return fmt.Errorf("failed to provision model assets: %w", err)
	}

	for _, result := range results {
		log.Info("Asset %s: %s", result.Name, result.Outcome)
	}

	return nil
}

func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	engine, err := kokoro.New(kokoro.Config{
		OnnxRuntimeLibPath: cfg.Synthesis.OnnxRuntimeLibPath,
		ModelPath:          filepath.Join(cfg.Paths.ModelDir, provision.ModelFileName),
		VoicesPath:         filepath.Join(cfg.Paths.ModelDir, provision.VoicesFileName),
	})
	if err != nil {
		return fmt.Errorf("failed to load synthesis engine: %w", err)
	}

	defer func() {
		closeErr := engine.Close()
		if closeErr != nil {
			log.Warn("Failed to close engine: %v", closeErr)
		}
	}()

	sess := session.New(engine, log, session.Options{
		MinSpeed:         cfg.Synthesis.MinSpeed,
		MaxSpeed:         cfg.Synthesis.MaxSpeed,
		SynthesisTimeout: time.Duration(cfg.Synthesis.TimeoutSeconds) * time.Second,
	})

	return web.NewServer(sess, log, cfg.ListenAddr()).Run(ctx)
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "kokoro-studio exited with error: %v\n", err)
		os.Exit(1)
	}
}
