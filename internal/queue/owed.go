// Package queue очередь реферальных бонусов, которые не удалось начислить сразу.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/models"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/services/activation"
)

// Publisher публикует OwedCredit в очередь.
type Publisher struct {
	mu sync.Mutex
	ch *amqp.Channel
}

func NewPublisher(ch *amqp.Channel) *Publisher {
	return &Publisher{ch: ch}
}

// Enqueue ставит начисление в очередь на повтор.
func (p *Publisher) Enqueue(_ context.Context, credit models.OwedCredit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return rabbitmq.PublishMessage(p.ch, rabbitmq.ActivationExchange, rabbitmq.OwedCreditRoutingKey, credit)
}

type Activator interface {
	Activate(ctx context.Context, userID, displayName string, reason models.Reason) (*models.ActivationResult, error)
}

type Notifier interface {
	SendMessage(ctx context.Context, userID, text, format string) error
}

// Handler повторно выдаёт начисления из очереди.
type Handler struct {
	activator  Activator
	notifier   Notifier
	retryDelay time.Duration
	log        *slog.Logger
}

// NewHandler создает новый экземпляр Handler. notifier может быть nil.
func NewHandler(activator Activator, notifier Notifier, retryDelay time.Duration, log *slog.Logger) *Handler {
	return &Handler{
		activator:  activator,
		notifier:   notifier,
		retryDelay: retryDelay,
		log:        log,
	}
}

// Handle обрабатывает одно сообщение. Ошибка возвращает сообщение в очередь
// после паузы retryDelay. Нечитаемые сообщения отбрасываются.
func (h *Handler) Handle(ctx context.Context, body []byte) error {
	var credit models.OwedCredit
	if err := json.Unmarshal(body, &credit); err != nil {
		h.log.Error("dropping malformed owed credit", sl.Err(err))
		return nil
	}
	if credit.UserID == "" || credit.Days <= 0 {
		h.log.Error("dropping invalid owed credit", sl.User(credit.UserID), slog.Int("days", credit.Days))
		return nil
	}
	log := h.log.With(sl.User(credit.UserID), slog.String("referral_id", credit.ReferralID))

	res, err := h.activator.Activate(ctx, credit.UserID, "", models.ReferralCredit(credit.Days))
	if err != nil {
		log.Warn("owed credit retry failed", sl.Err(err))
		h.wait(ctx)
		return fmt.Errorf("failed to apply owed credit: %w", err)
	}
	log.Info("owed credit applied", slog.Time("expire", res.ExpireAt))

	if h.notifier != nil {
		if err := h.notifier.SendMessage(ctx, credit.UserID, activation.CreditText(credit), "HTML"); err != nil {
			log.Warn("failed to notify about owed credit", sl.Err(err))
		}
	}
	return nil
}

func (h *Handler) wait(ctx context.Context) {
	if h.retryDelay <= 0 {
		return
	}
	t := time.NewTimer(h.retryDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
