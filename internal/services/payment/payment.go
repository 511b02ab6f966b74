// Package payment связывает попытки оплаты с активацией подписки.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/models"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/paymentprovider"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/storage/repository"
)

var (
	// ErrPaymentNotFound платёж не найден или ещё не оплачен.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrPaymentAlreadyApplied оплата уже зачтена в подписку.
	ErrPaymentAlreadyApplied = errors.New("payment already applied")
	// ErrUnknownPeriod для срока нет тарифа.
	ErrUnknownPeriod = errors.New("unknown subscription period")
)

const descriptionFormat = "Оплата подписки на %d мес."

// releaseTimeout время на снятие отметки о зачёте после неудачной активации.
const releaseTimeout = 5 * time.Second

type Repository interface {
	InsertPayment(ctx context.Context, p models.Payment) error
	GetPaymentByHandle(ctx context.Context, gatewayHandle string) (*models.Payment, error)
	UpdatePaymentStatus(ctx context.Context, gatewayHandle string, status models.PaymentStatus) error
	ClaimPaymentActivation(ctx context.Context, gatewayHandle string) (bool, error)
	ReleasePaymentActivation(ctx context.Context, gatewayHandle string) error
}

type Gateway interface {
	CreatePayment(ctx context.Context, amount int64, userID, description string) (*paymentprovider.Checkout, error)
	FindPayment(ctx context.Context, paymentID string) (*paymentprovider.PaymentInfo, error)
}

type Activator interface {
	Activate(ctx context.Context, userID, displayName string, reason models.Reason) (*models.ActivationResult, error)
}

// Recorder метрики платежей.
type Recorder interface {
	Payment(stage string, ok bool)
}

// Invoice ссылка на оплату, которую видит пользователь.
type Invoice struct {
	ConfirmationURL string
	GatewayHandle   string
	Amount          int64
	Months          int
}

type PaymentService struct {
	repo      Repository
	gateway   Gateway
	activator Activator
	prices    map[int]int64
	recorder  Recorder
	log       *slog.Logger
}

// New создает новый экземпляр PaymentService.
func New(repo Repository, gateway Gateway, activator Activator, prices map[int]int64, log *slog.Logger) *PaymentService {
	return &PaymentService{
		repo:      repo,
		gateway:   gateway,
		activator: activator,
		prices:    prices,
		log:       log,
	}
}

// WithRecorder подключает метрики.
func (s *PaymentService) WithRecorder(r Recorder) *PaymentService {
	s.recorder = r
	return s
}

// Periods возвращает доступные сроки подписки по возрастанию.
func (s *PaymentService) Periods() []int {
	periods := make([]int, 0, len(s.prices))
	for months := range s.prices {
		periods = append(periods, months)
	}
	sort.Ints(periods)
	return periods
}

// Price возвращает цену срока в копейках.
func (s *PaymentService) Price(months int) (int64, error) {
	price, ok := s.prices[months]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownPeriod, months)
	}
	return price, nil
}

// Initiate создаёт платёж в шлюзе и сохраняет его в реестре.
func (s *PaymentService) Initiate(ctx context.Context, userID string, months int) (*Invoice, error) {
	log := s.log.With(sl.User(userID), slog.Int("months", months))

	amount, err := s.Price(months)
	if err != nil {
		return nil, err
	}

	checkout, err := s.gateway.CreatePayment(ctx, amount, userID, fmt.Sprintf(descriptionFormat, months))
	if err != nil {
		s.record("initiate", false)
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	if err := s.repo.InsertPayment(ctx, models.Payment{
		PaymentID:     checkout.IdempotenceKey,
		UserID:        userID,
		Amount:        amount,
		Months:        months,
		Status:        statusFromGateway(checkout.Status),
		GatewayHandle: checkout.PaymentID,
	}); err != nil {
		s.record("initiate", false)
		return nil, fmt.Errorf("failed to save payment: %w", err)
	}
	s.record("initiate", true)
	log.Info("payment created", slog.String("gateway_handle", checkout.PaymentID))

	return &Invoice{
		ConfirmationURL: checkout.ConfirmationURL,
		GatewayHandle:   checkout.PaymentID,
		Amount:          amount,
		Months:          months,
	}, nil
}

// Confirm проверяет оплату и зачитывает её в подписку ровно один раз.
func (s *PaymentService) Confirm(ctx context.Context, userID, displayName, gatewayHandle string) (*models.ActivationResult, error) {
	log := s.log.With(sl.User(userID), slog.String("gateway_handle", gatewayHandle))

	p, err := s.repo.GetPaymentByHandle(ctx, gatewayHandle)
	if errors.Is(err, repository.ErrPaymentNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	if p.UserID != userID {
		log.Warn("payment belongs to another user", slog.String("owner_id", p.UserID))
		return nil, ErrPaymentNotFound
	}
	if p.ActivatedAt != nil {
		return nil, ErrPaymentAlreadyApplied
	}

	info, err := s.gateway.FindPayment(ctx, gatewayHandle)
	if err != nil {
		s.record("confirm", false)
		return nil, fmt.Errorf("failed to check payment: %w", err)
	}
	if !info.Paid {
		if info.Status == paymentprovider.StatusCanceled {
			if err := s.repo.UpdatePaymentStatus(ctx, gatewayHandle, models.PaymentFailed); err != nil {
				log.Error("failed to mark payment failed", sl.Err(err))
			}
		}
		log.Info("payment is not paid yet", slog.String("status", info.Status))
		return nil, ErrPaymentNotFound
	}

	if err := s.repo.UpdatePaymentStatus(ctx, gatewayHandle, models.PaymentSucceeded); err != nil {
		return nil, fmt.Errorf("failed to update payment status: %w", err)
	}

	claimed, err := s.repo.ClaimPaymentActivation(ctx, gatewayHandle)
	if err != nil {
		return nil, fmt.Errorf("failed to claim payment: %w", err)
	}
	if !claimed {
		return nil, ErrPaymentAlreadyApplied
	}

	res, err := s.activator.Activate(ctx, userID, displayName, models.PaidPeriod(p.Months))
	if err != nil {
		s.record("confirm", false)
		// активация могла упасть по дедлайну ctx, отметка всё равно должна быть снята
		relCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if relErr := s.repo.ReleasePaymentActivation(relCtx, gatewayHandle); relErr != nil {
			log.Error("failed to release payment claim", sl.Err(relErr))
		}
		return nil, fmt.Errorf("failed to activate subscription: %w", err)
	}
	s.record("confirm", true)
	log.Info("payment applied", slog.Time("expire", res.ExpireAt))
	return res, nil
}

func statusFromGateway(status string) models.PaymentStatus {
	switch status {
	case paymentprovider.StatusSucceeded:
		return models.PaymentSucceeded
	case paymentprovider.StatusCanceled:
		return models.PaymentFailed
	default:
		return models.PaymentPending
	}
}

func (s *PaymentService) record(stage string, ok bool) {
	if s.recorder != nil {
		s.recorder.Payment(stage, ok)
	}
}
