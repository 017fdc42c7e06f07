package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gooseberrytechnovision/schooniverse-checkout/cmd/checkout-api/app"
	"github.com/gooseberrytechnovision/schooniverse-checkout/configs"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/logging"
)

func main() {
	env := os.Getenv("APP_ENV") // dev | staging | prod
	if env == "" {
		env = "dev"
	}

	cfg, err := configs.Load("configs", env)
	if err != nil {
		log.Fatal(err)
	}

	logger := logging.Init(logging.Options{
		Component: cfg.App.Name,
		Level:     cfg.App.LogLevel,
		FilePath:  cfg.App.LogFile,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, cleanup, err := app.InitWithConfig(ctx, cfg)
	if err != nil {
		logger.Error("startup failed", "err", err)
		os.Exit(1)
	}
	defer cleanup()

	logger.Info("checkout-api listening", "env", env, "http", cfg.App.HTTPAddr, "grpc", cfg.GRPC.Addr)
	if err := a.Run(ctx); err != nil {
		logger.Error("checkout-api stopped", "err", err)
		cleanup()
		os.Exit(1)
	}
}
