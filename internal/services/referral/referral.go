// Package referral реализует учёт приглашений: регистрацию приглашённого
// и однократное списание реферального бонуса.
package referral

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/lib/sl"
)

type Repository interface {
	UserExists(ctx context.Context, userID string) (bool, error)
	HasReferralRecord(ctx context.Context, referralID string) (bool, error)
	RecordReferral(ctx context.Context, referrerID, referralID string) error
	TryConsumeReferral(ctx context.Context, referralID string) (string, bool, error)
}

type Service struct {
	repo Repository
	log  *slog.Logger
}

func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log,
	}
}

// RegisterReferralIfEligible записывает приглашение, если пользователь новый и ещё никем не приглашён.
// Возвращает true, если запись создана.
func (s *Service) RegisterReferralIfEligible(ctx context.Context, referrerID, referralID string) (bool, error) {
	log := s.log.With(slog.String("referrer_id", referrerID), sl.User(referralID))

	if referrerID == "" || referralID == "" || referrerID == referralID {
		log.Debug("referral ignored: empty or self referral")
		return false, nil
	}

	exists, err := s.repo.UserExists(ctx, referralID)
	if err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}
	if exists {
		log.Debug("referral ignored: user already registered")
		return false, nil
	}

	recorded, err := s.repo.HasReferralRecord(ctx, referralID)
	if err != nil {
		return false, fmt.Errorf("failed to check referral: %w", err)
	}
	if recorded {
		log.Debug("referral ignored: already referred")
		return false, nil
	}

	if err := s.repo.RecordReferral(ctx, referrerID, referralID); err != nil {
		return false, fmt.Errorf("failed to record referral: %w", err)
	}
	log.Info("referral registered")
	return true, nil
}

// ConsumeReferralBonus списывает бонус приглашённого и возвращает пригласившего.
// false, если приглашения не было или бонус уже выдан.
func (s *Service) ConsumeReferralBonus(ctx context.Context, referralID string) (string, bool, error) {
	referrerID, ok, err := s.repo.TryConsumeReferral(ctx, referralID)
	if err != nil {
		return "", false, fmt.Errorf("failed to consume referral: %w", err)
	}
	if ok {
		s.log.Info("referral bonus consumed", slog.String("referrer_id", referrerID), sl.User(referralID))
	}
	return referrerID, ok, nil
}
