// Package activation продлевает или создаёт подписку пользователя на панели,
// начисляет реферальные бонусы и синхронизирует локальный реестр.
//
// Панель считается источником истины по сроку подписки, реестр хранит
// его копию и учёт пробных периодов.
package activation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/models"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/panel"
)

var (
	// ErrTrialAlreadyUsed пробный период уже был активирован.
	ErrTrialAlreadyUsed = errors.New("trial already used")
	// ErrNoActiveSubscription у пользователя нет записи на панели.
	ErrNoActiveSubscription = errors.New("no active subscription")
)

const (
	referrerCreditText = "🎁 Вам начислено %d бонусных дней за приглашённого друга!"
	inviteeCreditText  = "🎁 Вам начислено %d бонусных дней по реферальной ссылке!"
)

// CreditText уведомление о начисленных бонусных днях. Приглашённый получает
// бонус за переход по ссылке, пригласивший за друга.
func CreditText(credit models.OwedCredit) string {
	if credit.ReferralID == credit.UserID {
		return fmt.Sprintf(inviteeCreditText, credit.Days)
	}
	return fmt.Sprintf(referrerCreditText, credit.Days)
}

type Panel interface {
	Token(ctx context.Context) (string, error)
	GetUser(ctx context.Context, token, username string) (*models.Entitlement, error)
	CreateUser(ctx context.Context, token, username string, expire time.Time, note string) (*models.Entitlement, error)
	ModifyUser(ctx context.Context, token, username string, expire time.Time) (*models.Entitlement, error)
}

type Ledger interface {
	HasUsedTrial(ctx context.Context, userID string) (bool, error)
	UpsertUser(ctx context.Context, user models.User) error
	MarkTrialUsed(ctx context.Context, userID string) error
}

type Referrals interface {
	ConsumeReferralBonus(ctx context.Context, referralID string) (string, bool, error)
}

// OwedCredits очередь начислений, которые не удалось выдать сразу.
type OwedCredits interface {
	Enqueue(ctx context.Context, credit models.OwedCredit) error
}

// Notifier отправка сообщения пользователю.
type Notifier interface {
	SendMessage(ctx context.Context, userID, text, format string) error
}

// Recorder метрики активаций.
type Recorder interface {
	Activation(reason models.ReasonKind, ok bool)
	ReferralBonus(party string)
}

type Service struct {
	panel     Panel
	ledger    Ledger
	referrals Referrals
	owed      OwedCredits
	notifier  Notifier
	recorder  Recorder
	locks     *userLocks
	now       func() time.Time
	log       *slog.Logger
}

type Option func(*Service)

func WithOwedCredits(q OwedCredits) Option { return func(s *Service) { s.owed = q } }

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithRecorder(r Recorder) Option { return func(s *Service) { s.recorder = r } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService создает новый экземпляр Service.
func NewService(p Panel, ledger Ledger, referrals Referrals, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		panel:     p,
		ledger:    ledger,
		referrals: referrals,
		locks:     newUserLocks(),
		now:       time.Now,
		log:       log,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Activate продлевает подписку пользователя по основанию reason.
// Ошибки панели до записи возвращаются вызывающему, реестр при этом не меняется.
func (s *Service) Activate(ctx context.Context, userID, displayName string, reason models.Reason) (*models.ActivationResult, error) {
	if err := reason.Validate(); err != nil {
		return nil, err
	}

	unlock, err := s.locks.lock(ctx, userID)
	if err != nil {
		s.record(reason.Kind, false)
		return nil, fmt.Errorf("failed to wait for user lock: %w", err)
	}
	result, referrerID, err := s.activateLocked(ctx, userID, displayName, reason)
	unlock()

	s.record(reason.Kind, err == nil)
	if err != nil {
		return nil, err
	}

	if referrerID != "" {
		s.creditReferrer(ctx, referrerID, userID)
	}
	return result, nil
}

func (s *Service) activateLocked(ctx context.Context, userID, displayName string, reason models.Reason) (*models.ActivationResult, string, error) {
	log := s.log.With(sl.User(userID), slog.String("reason", reason.String()))

	if reason.Kind == models.ReasonTrial {
		used, err := s.ledger.HasUsedTrial(ctx, userID)
		if err != nil {
			return nil, "", fmt.Errorf("failed to check trial: %w", err)
		}
		if used {
			return nil, "", ErrTrialAlreadyUsed
		}
	}

	token, current, err := s.lookup(ctx, userID)
	if err != nil && !errors.Is(err, panel.ErrNotFound) {
		return nil, "", err
	}
	exists := err == nil

	now := s.now()
	newExpiry := Extend(current.ExpireTime(), now, reason.Duration())

	var applied *models.Entitlement
	if exists {
		applied, err = s.panel.ModifyUser(ctx, token, userID, newExpiry)
	} else {
		applied, err = s.panel.CreateUser(ctx, token, userID, newExpiry, displayName)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to apply panel expiry: %w", err)
	}
	log.Info("panel expiry updated", slog.Bool("created", !exists), slog.Time("expire", newExpiry))

	var (
		referrerID   string
		bonusApplied bool
	)
	if reason.SettlesReferral() {
		referrerID, bonusApplied = s.settleReferral(ctx, log, token, userID, &newExpiry)
	}

	finalExpiry := newExpiry
	subscriptionURL := ""
	if applied != nil {
		subscriptionURL = applied.SubscriptionURL
	}
	if fresh, err := s.panel.GetUser(ctx, token, userID); err != nil {
		log.Warn("failed to re-read panel user, using computed expiry", sl.Err(err))
	} else {
		if t := fresh.ExpireTime(); !t.IsZero() {
			finalExpiry = t
		}
		subscriptionURL = fresh.SubscriptionURL
	}

	if err := s.ledger.UpsertUser(ctx, models.User{
		ID:          userID,
		DisplayName: displayName,
		ExpireAt:    finalExpiry,
		TrialUsed:   reason.Kind == models.ReasonTrial,
	}); err != nil {
		log.Error("failed to write user to ledger", sl.Err(err))
	}
	if reason.Kind == models.ReasonTrial {
		if err := s.ledger.MarkTrialUsed(ctx, userID); err != nil {
			log.Error("failed to mark trial used", sl.Err(err))
		}
	}

	return &models.ActivationResult{
		UserID:               userID,
		ExpireAt:             finalExpiry,
		Reason:               reason,
		ReferralBonusApplied: bonusApplied,
		SubscriptionURL:      subscriptionURL,
	}, referrerID, nil
}

// settleReferral списывает бонус приглашённого и добавляет его к текущей активации.
// Возвращает пригласившего, которому положен отдельный бонус.
func (s *Service) settleReferral(ctx context.Context, log *slog.Logger, token, userID string, expiry *time.Time) (string, bool) {
	referrerID, ok, err := s.referrals.ConsumeReferralBonus(ctx, userID)
	if err != nil {
		log.Warn("failed to consume referral bonus", sl.Err(err))
		return "", false
	}
	if !ok {
		return "", false
	}
	if referrerID == userID {
		log.Warn("self referral consumed, bonus skipped")
		return "", false
	}

	bonusExpiry := expiry.Add(models.ReferralBonusDuration)
	if _, err := s.panel.ModifyUser(ctx, token, userID, bonusExpiry); err != nil {
		log.Error("failed to apply referral bonus", sl.Err(err))
		s.enqueueOwed(ctx, models.OwedCredit{UserID: userID, Days: models.ReferralBonusDays, ReferralID: userID})
		return referrerID, false
	}
	*expiry = bonusExpiry
	s.recordBonus("referral")
	log.Info("referral bonus applied", slog.String("referrer_id", referrerID))
	return referrerID, true
}

// creditReferrer независимо продлевает подписку пригласившего.
// Ошибка не влияет на уже завершённую активацию приглашённого.
func (s *Service) creditReferrer(ctx context.Context, referrerID, referralID string) {
	log := s.log.With(slog.String("referrer_id", referrerID), sl.User(referralID))

	res, err := s.Activate(ctx, referrerID, "", models.ReferralCredit(models.ReferralBonusDays))
	if err != nil {
		log.Error("failed to credit referrer", sl.Err(err))
		s.enqueueOwed(ctx, models.OwedCredit{UserID: referrerID, Days: models.ReferralBonusDays, ReferralID: referralID})
		return
	}
	s.recordBonus("referrer")
	log.Info("referrer credited", slog.Time("expire", res.ExpireAt))

	if s.notifier == nil {
		return
	}
	text := CreditText(models.OwedCredit{UserID: referrerID, Days: models.ReferralBonusDays, ReferralID: referralID})
	if err := s.notifier.SendMessage(ctx, referrerID, text, "HTML"); err != nil {
		log.Warn("failed to notify referrer", sl.Err(err))
	}
}

func (s *Service) enqueueOwed(ctx context.Context, credit models.OwedCredit) {
	if s.owed == nil {
		s.log.Error("owed referral credit dropped: no queue configured",
			sl.User(credit.UserID), slog.Int("days", credit.Days))
		return
	}
	if err := s.owed.Enqueue(ctx, credit); err != nil {
		s.log.Error("failed to enqueue owed referral credit", sl.User(credit.UserID), sl.Err(err))
		return
	}
	s.log.Info("owed referral credit queued", sl.User(credit.UserID), slog.Int("days", credit.Days))
}

// Subscription возвращает текущую запись пользователя на панели.
func (s *Service) Subscription(ctx context.Context, userID string) (*models.Entitlement, error) {
	_, ent, err := s.lookup(ctx, userID)
	if errors.Is(err, panel.ErrNotFound) {
		return nil, ErrNoActiveSubscription
	}
	if err != nil {
		return nil, err
	}
	return ent, nil
}

// lookup берёт токен и читает пользователя с панели. Если панель отклонила
// закэшированный токен, один раз логинится заново. ErrNotFound возвращается как есть.
func (s *Service) lookup(ctx context.Context, userID string) (string, *models.Entitlement, error) {
	token, err := s.panel.Token(ctx)
	if err != nil {
		return "", nil, fmt.Errorf("failed to get panel token: %w", err)
	}
	ent, err := s.panel.GetUser(ctx, token, userID)
	if panel.IsUnauthorized(err) {
		s.log.Warn("panel token rejected, logging in again", sl.User(userID))
		if token, err = s.panel.Token(ctx); err != nil {
			return "", nil, fmt.Errorf("failed to get panel token: %w", err)
		}
		ent, err = s.panel.GetUser(ctx, token, userID)
	}
	if errors.Is(err, panel.ErrNotFound) {
		return token, nil, err
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to get panel user: %w", err)
	}
	return token, ent, nil
}

// Extend считает новый срок: max(current, now) + add.
// Продление до истечения не теряет остаток, после истечения отсчёт идёт от now.
func Extend(current, now time.Time, add time.Duration) time.Time {
	base := now
	if current.After(now) {
		base = current
	}
	return base.Add(add)
}

func (s *Service) record(reason models.ReasonKind, ok bool) {
	if s.recorder != nil {
		s.recorder.Activation(reason, ok)
	}
}

func (s *Service) recordBonus(party string) {
	if s.recorder != nil {
		s.recorder.ReferralBonus(party)
	}
}
