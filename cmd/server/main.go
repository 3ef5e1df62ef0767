package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"wikicache/internal/app"
	"wikicache/internal/config"

	"go.uber.org/zap"
)

var (
	configPath = flag.String("config", "", "config file")
	addr       = flag.String("addr", "", "http server address (default server.addr)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := app.NewLogger(cfg.Log, false)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open cache", zap.Error(err))
	}
	defer a.Close()

	if err := a.Serve(ctx, *addr); err != nil {
		logger.Error("Server stopped", zap.Error(err))
		a.Close()
		os.Exit(1)
	}
}
