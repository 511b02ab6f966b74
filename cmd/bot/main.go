package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/app/bot"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/config"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	logger.Info("starting vpn-subscription-bot", slog.String("env", cfg.Env))
	logger.Debug("config loaded", slog.String("config", cfg.String()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bot.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to init app", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("app stopped with error", sl.Err(err))
		os.Exit(1)
	}
	logger.Info("app stopped")
}
