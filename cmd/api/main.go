package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/arklim/social-login-auth/internal/infra/app"
	"github.com/arklim/social-login-auth/internal/infra/config"
)

func main() {
	if err := run(); err != nil {
		// The application logger may not exist yet, so failures go through a bootstrap one.
		bootstrap, _ := zap.NewProduction()
		bootstrap.Error("auth service exited", zap.Error(err))
		_ = bootstrap.Sync()
		os.Exit(1)
	}
}

func run() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	return application.Run(ctx)
}
