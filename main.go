package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/dmorgan81/crimage/internal/config"
	"github.com/dmorgan81/crimage/internal/inject"
	"github.com/dmorgan81/crimage/internal/lambdaproxy"
	"github.com/dmorgan81/crimage/internal/log"
	"github.com/dmorgan81/crimage/internal/server"
	"github.com/joho/godotenv"
	"github.com/samber/do"
)

func main() {
	if err := run(); err != nil {
		log.New(os.Stderr, "").Error("exiting", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	cfg, err := config.FromEnv(os.Getenv)
	if err != nil {
		return err
	}

	logger := log.New(os.Stderr, cfg.LogLevel)
	ctx := log.NewContext(context.Background(), logger)
	injector := inject.Setup(ctx, cfg)
	srv, err := do.Invoke[*server.Server](injector)
	if err != nil {
		return err
	}

	if cfg.Lambda {
		adapter := lambdaproxy.New(srv.Handler())
		lambda.StartWithOptions(adapter.Handle, lambda.WithContext(ctx), lambda.WithEnableSIGTERM(func() {
			_ = injector.Shutdown()
		}))
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer func() {
		_ = injector.Shutdown()
	}()

	return srv.ListenAndServe(ctx, cfg.Addr)
}
