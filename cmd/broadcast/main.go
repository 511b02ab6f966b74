package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/app/broadcast"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/config"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/lib/sl"
	broadcastservice "github.com/magabrotheeeer/vpn-subscription-bot/internal/services/broadcast"
)

func main() {
	audienceFlag := flag.String("audience", string(broadcastservice.AudienceAll), "получатели: all или inactive")
	text := flag.String("text", "", "текст сообщения")
	format := flag.String("format", "HTML", "режим разметки: HTML, MarkdownV2 или пусто")
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "путь к yaml-конфигу")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	audience, err := broadcastservice.ParseAudience(*audienceFlag)
	if err != nil {
		logger.Error("invalid audience", sl.Err(err))
		os.Exit(2)
	}
	if *text == "" {
		logger.Error("text is empty")
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("cannot read config", sl.Err(err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := broadcast.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to init broadcast", sl.Err(err))
		os.Exit(1)
	}
	if _, err := app.Run(ctx, audience, *text, *format); err != nil {
		logger.Error("broadcast failed", sl.Err(err))
		os.Exit(1)
	}
}
