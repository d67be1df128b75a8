package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/citygate/internal/buildinfo"
	"github.com/dmitrijs2005/citygate/internal/gateway"
	"github.com/dmitrijs2005/citygate/internal/gateway/config"
	"github.com/dmitrijs2005/citygate/internal/logging"
)

func main() {
	configPath := flag.String("config", "configs/gateway.yaml", "path to the gateway config file")
	flag.Parse()

	buildinfo.PrintBuildData(os.Stdout)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logger := logging.New(os.Stdout, cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := gateway.NewApp(*configPath, cfg, logger)
	if err != nil {
		logger.Error(ctx, "init failed", "error", err)
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error(ctx, "gateway stopped", "error", err)
		os.Exit(1)
	}
}
