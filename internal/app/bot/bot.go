// Package bot собирает зависимости Telegram-бота и управляет их жизненным циклом.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/cache"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/config"
	opshttp "github.com/magabrotheeeer/vpn-subscription-bot/internal/http"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/metrics"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/migrations"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/panel"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/paymentprovider"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/queue"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/scheduler"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/services/activation"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/services/notification"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/services/payment"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/services/referral"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/storage/repository"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/telegram"
)

const shutdownTimeout = 15 * time.Second

// App представляет приложение бота.
type App struct {
	bot       *telegram.Bot
	scheduler *scheduler.Scheduler
	server    *http.Server
	handler   *queue.Handler
	db        *repository.Storage
	cache     *cache.Cache
	conn      *amqp.Connection
	ch        *amqp.Channel
	logger    *slog.Logger
}

func waitForDB(db *repository.Storage) error {
	for range 10 {
		err := repository.CheckDatabaseReady(db)
		if err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// New создает новый экземпляр приложения бота.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{logger: logger}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	a.db = db

	if err := migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		a.closeResources()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	if err := waitForDB(db); err != nil {
		a.closeResources()
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}
	a.cache = cacheRedis

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("failed to load timezone: %w", err)
	}

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	sink := telegram.NewSink(api)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	panelClient := panel.New(cfg.Panel, cacheRedis, logger)
	referralService := referral.NewService(db, logger)

	opts := []activation.Option{
		activation.WithNotifier(sink),
		activation.WithRecorder(m),
	}
	if cfg.RabbitMQURL != "" {
		if err := a.setupQueue(cfg.RabbitMQ); err != nil {
			a.closeResources()
			return nil, err
		}
		opts = append(opts, activation.WithOwedCredits(queue.NewPublisher(a.ch)))
	} else {
		logger.Warn("rabbitmq url is empty, owed referral credits will only be logged")
	}
	activationService := activation.NewService(panelClient, db, referralService, logger, opts...)

	if a.ch != nil {
		a.handler = queue.NewHandler(activationService, sink, cfg.RabbitMQRetryDelay, logger)
	}

	gateway := paymentprovider.NewClient(cfg.YooKassa, cfg.ReturnURL)
	paymentService := payment.New(db, gateway, activationService, cfg.Prices, logger).WithRecorder(m)

	sweep := notification.NewSweepService(panelClient, sink, loc, logger).WithRecorder(m)
	sched := scheduler.New(loc, logger)
	if err := sched.Add("expiry", cfg.ExpirySchedule, sweep.Run); err != nil {
		a.closeResources()
		return nil, err
	}
	a.scheduler = sched

	a.bot = telegram.New(api, api.Self.UserName, cfg.Telegram, telegram.Deps{
		Activator: activationService,
		Payments:  paymentService,
		Referrals: referralService,
	}, loc, logger)

	a.server = opshttp.NewServer(cfg.HTTPServer, opshttp.NewRouter(logger, db, registry, cfg.TimeoutHTTP))

	return a, nil
}

func (a *App) setupQueue(cfg config.RabbitMQ) error {
	conn, err := rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		return fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}
	a.conn = conn

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.ActivationExchange, rabbitmq.GetActivationQueues())
	if err != nil {
		return fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}
	a.ch = ch
	return nil
}

// Run запускает бота, планировщик, обработчик очереди и служебный HTTP-сервер.
// Возвращается после отмены ctx или падения одного из компонентов.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.handler != nil {
		if err := rabbitmq.ConsumerMessage(ctx, a.ch, rabbitmq.OwedCreditQueue, a.logger, a.handler.Handle); err != nil {
			a.closeResources()
			return fmt.Errorf("failed to start owed credit consumer: %w", err)
		}
	}

	for _, next := range a.scheduler.Next(time.Now()) {
		a.logger.Info("next expiry sweep", slog.Time("at", next))
	}
	a.scheduler.Start()

	errCh := make(chan error, 2)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	botDone := make(chan struct{})
	go func() {
		defer close(botDone)
		if err := a.bot.Run(ctx); err != nil {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		a.logger.Error("component failed, shutting down", sl.Err(runErr))
	}
	cancel()

	a.logger.Info("shutting down bot")
	<-botDone
	<-a.scheduler.Stop().Done()

	timeoutCtx, cancelTimeout := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelTimeout()
	if err := a.server.Shutdown(timeoutCtx); err != nil {
		a.logger.Error("failed to shutdown HTTP server", sl.Err(err))
	}

	a.closeResources()
	return runErr
}

func (a *App) closeResources() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close cache", sl.Err(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("failed to close storage", sl.Err(err))
		}
	}
}
