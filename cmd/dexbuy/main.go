package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"dexbuy/internal/app"
	"dexbuy/internal/config"
	"dexbuy/internal/errs"
	"dexbuy/internal/metrics"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	envPath := flag.String("env", ".env", "dotenv file holding key material, ignored when missing")
	debug := flag.Bool("debug", false, "force debug logging")
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "env error: %v\n", err)
		os.Exit(errs.ExitCode(errs.ErrConfig))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(errs.ExitCode(err))
	}

	logger := newLogger(cfg.Log.Level, cfg.Log.Format, *debug)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	application := app.New(cfg, logger, metrics.New(reg))
	_, err = application.Run(ctx)

	if cfg.Metrics.Textfile != "" {
		if werr := metrics.WriteTextfile(cfg.Metrics.Textfile, reg); werr != nil {
			logger.Warn("metrics textfile write failed", "path", cfg.Metrics.Textfile, "error", werr)
		}
	}
	if err != nil {
		stop()
		os.Exit(errs.ExitCode(err))
	}
}

func newLogger(level, format string, debug bool) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	if debug {
		lvl = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
