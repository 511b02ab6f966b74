// Package telegram чат-бот: меню, оплата, пробный период, ключ и реферальная ссылка.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/config"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/models"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/services/payment"
)

// updateTimeout ограничение на обработку одного апдейта.
const updateTimeout = 60 * time.Second

// API часть *tgbotapi.BotAPI, которой пользуется бот.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Activator interface {
	Activate(ctx context.Context, userID, displayName string, reason models.Reason) (*models.ActivationResult, error)
	Subscription(ctx context.Context, userID string) (*models.Entitlement, error)
}

type Payments interface {
	Periods() []int
	Price(months int) (int64, error)
	Initiate(ctx context.Context, userID string, months int) (*payment.Invoice, error)
	Confirm(ctx context.Context, userID, displayName, gatewayHandle string) (*models.ActivationResult, error)
}

type Referrals interface {
	RegisterReferralIfEligible(ctx context.Context, referrerID, referralID string) (bool, error)
}

// Deps сервисы, которые вызывает бот.
type Deps struct {
	Activator Activator
	Payments  Payments
	Referrals Referrals
}

type Bot struct {
	api             API
	username        string
	deps            Deps
	kb              keyboards
	throttle        *throttle
	connectTemplate string
	pollTimeout     int
	loc             *time.Location
	now             func() time.Time
	log             *slog.Logger
	wg              sync.WaitGroup
}

// New создаёт бота. username нужен для реферальных ссылок, loc для отображения дат.
func New(api API, username string, cfg config.Telegram, deps Deps, loc *time.Location, log *slog.Logger) *Bot {
	if loc == nil {
		loc = time.UTC
	}
	return &Bot{
		api:             api,
		username:        username,
		deps:            deps,
		kb:              keyboards{termsURL: cfg.TermsURL, guideURL: cfg.GuideURL},
		throttle:        newThrottle(cfg.ActionRate, cfg.ActionBurst),
		connectTemplate: cfg.ConnectTemplate,
		pollTimeout:     cfg.UpdateTimeout,
		loc:             loc,
		now:             time.Now,
		log:             log,
	}
}

// Run читает апдейты до отмены ctx. Каждый апдейт обрабатывается в своей горутине,
// при остановке Run дожидается уже начатых обработчиков.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(u)

	prune := time.NewTicker(time.Minute)
	defer prune.Stop()

	b.log.Info("bot started", slog.String("username", b.username))
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.wg.Wait()
			b.log.Info("bot stopped")
			return nil
		case <-prune.C:
			b.throttle.prune()
		case update, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return fmt.Errorf("telegram updates channel closed")
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.handleUpdate(ctx, update)
			}()
		}
	}
}

func (b *Bot) handleUpdate(parent context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("panic while handling update",
				slog.Int("update_id", update.UpdateID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()

	// начатая активация доводится до конца даже при остановке
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), updateTimeout)
	defer cancel()

	switch {
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil && update.CallbackQuery.From != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}
