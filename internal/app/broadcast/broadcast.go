// Package broadcast одноразовая рассылка сообщения администратора.
package broadcast

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/cache"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/config"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/panel"
	broadcastservice "github.com/magabrotheeeer/vpn-subscription-bot/internal/services/broadcast"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/storage/repository"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/telegram"
)

// App представляет приложение рассылки.
type App struct {
	service *broadcastservice.Service
	db      *repository.Storage
	cache   *cache.Cache
	logger  *slog.Logger
}

// New создает новый экземпляр приложения рассылки.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	if err := repository.CheckDatabaseReady(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		_ = cacheRedis.Close()
		_ = db.Close()
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}

	panelClient := panel.New(cfg.Panel, cacheRedis, logger)
	service := broadcastservice.NewService(db, panelClient, telegram.NewSink(api), cfg.AdminID, logger)

	return &App{
		service: service,
		db:      db,
		cache:   cacheRedis,
		logger:  logger,
	}, nil
}

// Run отправляет text аудитории audience и закрывает соединения.
func (a *App) Run(ctx context.Context, audience broadcastservice.Audience, text, format string) (broadcastservice.Result, error) {
	defer a.close()

	return a.service.Send(ctx, audience, text, format)
}

func (a *App) close() {
	if err := a.cache.Close(); err != nil {
		a.logger.Error("failed to close cache", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}
