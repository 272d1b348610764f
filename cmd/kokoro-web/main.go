// main package for kokoro-web: the bare studio server. It expects the model
// assets to already be on disk and refuses to start otherwise; use the
// kokoro-studio launcher to download them.
package main

import (
	"context"
	"errors"
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

// ErrAssetsMissing is returned when a model file is absent from the model
// directory at startup.
var ErrAssetsMissing = errors.New("model assets missing")

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "kokoro-web.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

// checkAssets verifies that both model files are present and non-empty. It
// does not download anything.
func checkAssets(cfg *config.Config) error {
	required := []string{
		filepath.Join(cfg.Paths.ModelDir, provision.ModelFileName),
		filepath.Join(cfg.Paths.ModelDir, provision.VoicesFileName),
	}

	for _, path := range required {
		info, err := os.Stat(path)
		if err != nil || info.Size() == 0 {
			return fmt.Errorf(
				"%w: %s not found; run kokoro-studio once to download the model files",
				ErrAssetsMissing, path)
		}
	}

	return nil
}

func run() error {
	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Warn("No configuration found, using defaults: %v", err)

		cfg = config.Default()
	}

	log, err := setupLogger(cfg.Paths.BaseLogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := log.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing logger: %v\n", closeErr)
		}
	}()

	err = checkAssets(cfg)
	if err != nil {
		log.Error("%v", err)

		return err
	}

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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
		fmt.Fprintf(os.Stderr, "kokoro-web exited with error: %v\n", err)
		os.Exit(1)
	}
}
