package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"bookworm/internal/app"
	"bookworm/internal/cli"
	"bookworm/internal/common/config"
	"bookworm/internal/common/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// The terminal belongs to the user; logs go to LOG_FILE, or to stderr in debug mode.
	var logOut io.Writer = io.Discard
	switch {
	case cfg.LogFile != "":
		f, err := logger.OpenFile(cfg.LogFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "log file:", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	case cfg.Debug:
		logOut = os.Stderr
	}
	logger.Init("bookworm", cfg.Debug, logOut)
	logger.Debug().Str("api", cfg.API.BaseURL).Str("storage", cfg.Storage.Backend).Msg("Configuration loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log.Logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "storage:", err)
		os.Exit(1)
	}

	err = cli.New(a, os.Stdout).Execute(ctx, os.Args[1:])
	if cerr := a.Close(); cerr != nil {
		logger.Warn().Err(cerr).Msg("Failed to close storage")
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
