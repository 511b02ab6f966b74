package telegram

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/models"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/services/activation"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/services/payment"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/services/referral"
)

// ack ответ на нажатие кнопки. alert показывает всплывающее окно.
type ack struct {
	text  string
	alert bool
}

// screen сообщение, на которое заменяется текущее.
type screen struct {
	text   string
	markup tgbotapi.InlineKeyboardMarkup
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil || !msg.IsCommand() || msg.Command() != "start" {
		return
	}
	userID := strconv.FormatInt(msg.From.ID, 10)
	log := b.log.With(sl.User(userID))

	if !b.throttle.Allow(msg.From.ID) {
		log.Debug("start throttled")
		return
	}

	if payload := msg.CommandArguments(); payload != "" {
		b.handleReferralPayload(ctx, log, msg.Chat.ID, userID, payload)
	}
	b.send(log, msg.Chat.ID, screen{text: mainText, markup: b.kb.mainMenu()})
}

func (b *Bot) handleReferralPayload(ctx context.Context, log *slog.Logger, chatID int64, userID, payload string) {
	referrerID, ok := referral.DecodePayload(payload)
	if !ok {
		log.Debug("malformed referral payload", slog.String("payload", payload))
		return
	}
	registered, err := b.deps.Referrals.RegisterReferralIfEligible(ctx, referrerID, userID)
	if err != nil {
		log.Error("failed to register referral", sl.Err(err))
		return
	}
	if registered {
		b.send(log, chatID, screen{text: inviteText})
	}
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	userID := strconv.FormatInt(cq.From.ID, 10)
	log := b.log.With(sl.User(userID), slog.String("callback", cq.Data))

	if !b.throttle.Allow(cq.From.ID) {
		b.answer(log, cq, ack{text: throttledText})
		return
	}

	cb, err := parseCallback(cq.Data)
	if err != nil {
		log.Warn("unknown callback")
		b.answer(log, cq, ack{})
		return
	}

	var (
		next *screen
		a    ack
	)
	switch cb.action {
	case actionMainMenu:
		next = &screen{text: mainText, markup: b.kb.mainMenu()}
	case actionSub:
		next = b.tariffScreen()
	case actionSubPeriod:
		next, a = b.handleSubPeriod(ctx, log, userID, cb.months)
	case actionCheck:
		next, a = b.handleCheck(ctx, log, userID, displayName(cq.From), cb.handle)
	case actionTrial:
		next, a = b.handleTrial(ctx, log, userID, displayName(cq.From))
	case actionKey:
		next = b.handleKey(ctx, log, userID)
	case actionRef:
		next = &screen{text: referralText(referral.Link(b.username, userID)), markup: b.kb.backToMain()}
	case actionConnectAndroid:
		next = b.handleDevice(ctx, log, userID, "Android", "Google Play", androidStoreURL)
	case actionConnectIOS:
		next = b.handleDevice(ctx, log, userID, "iOS", "App Store", iosStoreURL)
	}

	b.answer(log, cq, a)
	if next != nil {
		b.edit(log, cq.Message, *next)
	}
}

func (b *Bot) tariffScreen() *screen {
	periods := b.deps.Payments.Periods()
	prices := make(map[int]int64, len(periods))
	for _, months := range periods {
		if price, err := b.deps.Payments.Price(months); err == nil {
			prices[months] = price
		}
	}
	return &screen{text: tariffText, markup: b.kb.subMenu(periods, prices)}
}

func (b *Bot) handleSubPeriod(ctx context.Context, log *slog.Logger, userID string, months int) (*screen, ack) {
	invoice, err := b.deps.Payments.Initiate(ctx, userID, months)
	if errors.Is(err, payment.ErrUnknownPeriod) {
		return nil, ack{text: unknownPeriodText, alert: true}
	}
	if err != nil {
		log.Error("failed to initiate payment", sl.Err(err))
		return b.failure(subPeriodData(months)), ack{}
	}
	return &screen{
		text:   paymentText(months),
		markup: b.kb.payment(invoice.ConfirmationURL, invoice.Amount, invoice.GatewayHandle),
	}, ack{}
}

func (b *Bot) handleCheck(ctx context.Context, log *slog.Logger, userID, name, handle string) (*screen, ack) {
	res, err := b.deps.Payments.Confirm(ctx, userID, name, handle)
	switch {
	case errors.Is(err, payment.ErrPaymentNotFound):
		return nil, ack{text: paymentNotFoundText, alert: true}
	case errors.Is(err, payment.ErrPaymentAlreadyApplied):
		return nil, ack{text: paymentAppliedText, alert: true}
	case err != nil:
		log.Error("failed to confirm payment", sl.Err(err))
		return b.failure(checkData(handle)), ack{}
	}
	return &screen{text: activationText(res), markup: b.kb.goKey()}, ack{}
}

func (b *Bot) handleTrial(ctx context.Context, log *slog.Logger, userID, name string) (*screen, ack) {
	res, err := b.deps.Activator.Activate(ctx, userID, name, models.Trial())
	if errors.Is(err, activation.ErrTrialAlreadyUsed) {
		return nil, ack{text: trialUsedText, alert: true}
	}
	if err != nil {
		log.Error("failed to activate trial", sl.Err(err))
		return b.failure(cbTrial), ack{}
	}
	return &screen{text: activationText(res), markup: b.kb.goKey()}, ack{}
}

func (b *Bot) handleKey(ctx context.Context, log *slog.Logger, userID string) *screen {
	ent, err := b.deps.Activator.Subscription(ctx, userID)
	if errors.Is(err, activation.ErrNoActiveSubscription) {
		return &screen{text: noSubscriptionText, markup: b.kb.backToMain()}
	}
	if err != nil {
		log.Error("failed to load subscription", sl.Err(err))
		return b.failure(cbKey)
	}
	text, active := keyText(ent, b.now(), b.loc)
	if !active {
		return &screen{text: text, markup: b.kb.backToMain()}
	}
	return &screen{text: text, markup: b.kb.key()}
}

func (b *Bot) handleDevice(ctx context.Context, log *slog.Logger, userID, device, market, storeURL string) *screen {
	ent, err := b.deps.Activator.Subscription(ctx, userID)
	if errors.Is(err, activation.ErrNoActiveSubscription) {
		return &screen{text: noSubscriptionText, markup: b.kb.backToMain()}
	}
	if err != nil {
		log.Error("failed to load subscription", sl.Err(err))
		return b.failure(cbKey)
	}
	return &screen{
		text:   connectText(device, market),
		markup: b.kb.device(storeURL, connectURL(b.connectTemplate, ent.SubscriptionURL)),
	}
}

func (b *Bot) failure(retryData string) *screen {
	return &screen{text: failureText, markup: b.kb.retry(retryData)}
}

func (b *Bot) answer(log *slog.Logger, cq *tgbotapi.CallbackQuery, a ack) {
	cfg := tgbotapi.NewCallback(cq.ID, a.text)
	cfg.ShowAlert = a.alert
	if _, err := b.api.Request(cfg); err != nil {
		log.Warn("failed to answer callback", sl.Err(err))
	}
}

// edit заменяет текст сообщения с кнопками. Если редактирование не удалось,
// отправляет новое сообщение.
func (b *Bot) edit(log *slog.Logger, msg *tgbotapi.Message, s screen) {
	cfg := tgbotapi.NewEditMessageTextAndMarkup(msg.Chat.ID, msg.MessageID, s.text, s.markup)
	cfg.ParseMode = parseModeHTML
	_, err := b.api.Send(cfg)
	if err == nil {
		return
	}
	if strings.Contains(err.Error(), "message is not modified") {
		return
	}
	log.Debug("failed to edit message, sending new one", sl.Err(err))
	b.send(log, msg.Chat.ID, s)
}

func (b *Bot) send(log *slog.Logger, chatID int64, s screen) {
	msg := tgbotapi.NewMessage(chatID, s.text)
	msg.ParseMode = parseModeHTML
	if len(s.markup.InlineKeyboard) > 0 {
		msg.ReplyMarkup = s.markup
	}
	if _, err := b.api.Send(msg); err != nil {
		log.Error("failed to send message", sl.Err(err))
	}
}

func displayName(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	if u.UserName != "" {
		return u.UserName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
