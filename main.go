package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/appetiteclub/apt"

	"github.com/appetiteclub/reconciler/internal/app"
	"github.com/appetiteclub/reconciler/internal/config"
)

const appNamespace = "RECONCILER"

func main() {
	aptConfig, err := apt.LoadConfig(appNamespace, os.Args[1:])
	if err != nil {
		log.Fatalf("%s(%s) cannot setup: %v", app.AppName, app.AppVersion, err)
	}

	cfg, err := config.Load(aptConfig)
	if err != nil {
		log.Fatalf("%s(%s) invalid configuration: %v", app.AppName, app.AppVersion, err)
	}

	logger := apt.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)
	defer stop()

	a := app.New(aptConfig, cfg, logger)
	if err := a.Initialize(ctx); err != nil {
		log.Fatalf("%s(%s) cannot initialize: %v", app.AppName, app.AppVersion, err)
	}

	if err := a.Run(ctx); err != nil {
		log.Fatalf("%s(%s) stopped: %v", app.AppName, app.AppVersion, err)
	}
}
