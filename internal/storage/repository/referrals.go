package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/models"
)

// RecordReferral сохраняет неиспользованную реферальную запись.
// Повторная запись для того же referralID молча игнорируется.
func (s *Storage) RecordReferral(ctx context.Context, referrerID, referralID string) error {
	const op = "storage.RecordReferral"
	if err := checkContext(ctx, op); err != nil {
		return err
	}

	query := `INSERT INTO referrals (referrer_id, referral_id) VALUES ($1, $2)
			  ON CONFLICT (referral_id) DO NOTHING`
	if _, err := s.DB.ExecContext(ctx, query, referrerID, referralID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// HasReferralRecord проверяет, был ли пользователь уже кем-то приглашён.
func (s *Storage) HasReferralRecord(ctx context.Context, referralID string) (bool, error) {
	const op = "storage.HasReferralRecord"
	if err := checkContext(ctx, op); err != nil {
		return false, err
	}

	var exists bool
	err := s.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM referrals WHERE referral_id = $1)`, referralID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// TryConsumeReferral атомарно переводит used из false в true и возвращает пригласившего.
// Из конкурирующих вызовов для одного referralID успешен ровно один.
func (s *Storage) TryConsumeReferral(ctx context.Context, referralID string) (string, bool, error) {
	const op = "storage.TryConsumeReferral"
	if err := checkContext(ctx, op); err != nil {
		return "", false, err
	}

	query := `UPDATE referrals SET used = TRUE, used_at = NOW()
			  WHERE referral_id = $1 AND used = FALSE
			  RETURNING referrer_id`
	var referrerID string
	err := s.DB.QueryRowContext(ctx, query, referralID).Scan(&referrerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%s: %w", op, err)
	}
	return referrerID, true, nil
}

// GetReferral возвращает реферальную запись приглашённого пользователя.
func (s *Storage) GetReferral(ctx context.Context, referralID string) (*models.Referral, error) {
	const op = "storage.GetReferral"
	if err := checkContext(ctx, op); err != nil {
		return nil, err
	}

	var (
		r      models.Referral
		usedAt sql.NullTime
	)
	err := s.DB.QueryRowContext(ctx,
		`SELECT referrer_id, referral_id, used, created_at, used_at FROM referrals WHERE referral_id = $1`,
		referralID).Scan(&r.ReferrerID, &r.ReferralID, &r.Used, &r.CreatedAt, &usedAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if usedAt.Valid {
		r.UsedAt = &usedAt.Time
	}
	return &r, nil
}
