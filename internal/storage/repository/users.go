package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/models"
)

// UpsertUser создаёт или обновляет пользователя.
// Срок подписки не уменьшается, флаг пробного периода не сбрасывается,
// пустое имя не затирает сохранённое.
func (s *Storage) UpsertUser(ctx context.Context, user models.User) error {
	const op = "storage.UpsertUser"
	if err := checkContext(ctx, op); err != nil {
		return err
	}

	query := `INSERT INTO users (user_id, display_name, expire_at, trial_used)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (user_id) DO UPDATE SET
			      display_name = COALESCE(NULLIF(EXCLUDED.display_name, ''), users.display_name),
			      expire_at = GREATEST(users.expire_at, EXCLUDED.expire_at),
			      trial_used = users.trial_used OR EXCLUDED.trial_used,
			      updated_at = NOW()`
	if _, err := s.DB.ExecContext(ctx, query,
		user.ID, user.DisplayName, nullTime(user.ExpireAt), user.TrialUsed); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// MarkTrialUsed отмечает, что пользователь активировал пробный период.
func (s *Storage) MarkTrialUsed(ctx context.Context, userID string) error {
	const op = "storage.MarkTrialUsed"
	if err := checkContext(ctx, op); err != nil {
		return err
	}

	query := `INSERT INTO users (user_id, trial_used) VALUES ($1, TRUE)
			  ON CONFLICT (user_id) DO UPDATE SET trial_used = TRUE, updated_at = NOW()`
	if _, err := s.DB.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// HasUsedTrial сообщает, использован ли пробный период. Неизвестный пользователь его не использовал.
func (s *Storage) HasUsedTrial(ctx context.Context, userID string) (bool, error) {
	const op = "storage.HasUsedTrial"
	if err := checkContext(ctx, op); err != nil {
		return false, err
	}

	var used bool
	err := s.DB.QueryRowContext(ctx, `SELECT trial_used FROM users WHERE user_id = $1`, userID).Scan(&used)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return used, nil
}

// GetUser возвращает пользователя или ErrUserNotFound.
func (s *Storage) GetUser(ctx context.Context, userID string) (*models.User, error) {
	const op = "storage.GetUser"
	if err := checkContext(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT user_id, display_name, expire_at, trial_used FROM users WHERE user_id = $1`
	var (
		u        models.User
		expireAt sql.NullTime
	)
	err := s.DB.QueryRowContext(ctx, query, userID).Scan(&u.ID, &u.DisplayName, &expireAt, &u.TrialUsed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if expireAt.Valid {
		u.ExpireAt = expireAt.Time
	}
	return &u, nil
}

// UserExists проверяет наличие записи пользователя.
func (s *Storage) UserExists(ctx context.Context, userID string) (bool, error) {
	const op = "storage.UserExists"
	if err := checkContext(ctx, op); err != nil {
		return false, err
	}

	var exists bool
	err := s.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE user_id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// ListUserIDs возвращает идентификаторы всех пользователей.
func (s *Storage) ListUserIDs(ctx context.Context) ([]string, error) {
	const op = "storage.ListUserIDs"
	if err := checkContext(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT user_id FROM users ORDER BY created_at, user_id`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ids, nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
