package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/models"
)

const paymentColumns = `payment_id, user_id, amount, months, created_at, status, gateway_handle, activated_at`

// InsertPayment сохраняет новую попытку оплаты.
func (s *Storage) InsertPayment(ctx context.Context, p models.Payment) error {
	const op = "storage.InsertPayment"
	if err := checkContext(ctx, op); err != nil {
		return err
	}

	query := `INSERT INTO payments (payment_id, user_id, amount, months, status, gateway_handle)
			  VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := s.DB.ExecContext(ctx, query,
		p.PaymentID, p.UserID, p.Amount, p.Months, string(p.Status), p.GatewayHandle); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// UpdatePaymentStatus меняет статус платежа. Статус succeeded не откатывается.
func (s *Storage) UpdatePaymentStatus(ctx context.Context, gatewayHandle string, status models.PaymentStatus) error {
	const op = "storage.UpdatePaymentStatus"
	if err := checkContext(ctx, op); err != nil {
		return err
	}

	query := `UPDATE payments SET status = $2
			  WHERE gateway_handle = $1 AND (status <> 'succeeded' OR $2 = 'succeeded')`
	res, err := s.DB.ExecContext(ctx, query, gatewayHandle, string(status))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		exists, err := s.paymentExists(ctx, gatewayHandle)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if !exists {
			return fmt.Errorf("%s: %w", op, ErrPaymentNotFound)
		}
	}
	return nil
}

// ClaimPaymentActivation атомарно помечает оплаченный платёж как зачтённый.
// Возвращает false, если платёж уже был зачтён ранее.
func (s *Storage) ClaimPaymentActivation(ctx context.Context, gatewayHandle string) (bool, error) {
	const op = "storage.ClaimPaymentActivation"
	if err := checkContext(ctx, op); err != nil {
		return false, err
	}

	query := `UPDATE payments SET activated_at = NOW()
			  WHERE gateway_handle = $1 AND status = 'succeeded' AND activated_at IS NULL
			  RETURNING payment_id`
	var paymentID string
	err := s.DB.QueryRowContext(ctx, query, gatewayHandle).Scan(&paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// ReleasePaymentActivation снимает отметку о зачёте, если активация не удалась.
func (s *Storage) ReleasePaymentActivation(ctx context.Context, gatewayHandle string) error {
	const op = "storage.ReleasePaymentActivation"
	if err := checkContext(ctx, op); err != nil {
		return err
	}

	if _, err := s.DB.ExecContext(ctx,
		`UPDATE payments SET activated_at = NULL WHERE gateway_handle = $1`, gatewayHandle); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetPaymentByHandle возвращает платёж по идентификатору шлюза или ErrPaymentNotFound.
func (s *Storage) GetPaymentByHandle(ctx context.Context, gatewayHandle string) (*models.Payment, error) {
	const op = "storage.GetPaymentByHandle"
	if err := checkContext(ctx, op); err != nil {
		return nil, err
	}

	row := s.DB.QueryRowContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE gateway_handle = $1`, gatewayHandle)
	p, err := scanPayment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrPaymentNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// GetPayments возвращает все платежи пользователя, новые первыми.
func (s *Storage) GetPayments(ctx context.Context, userID string) ([]*models.Payment, error) {
	const op = "storage.GetPayments"
	if err := checkContext(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func (s *Storage) paymentExists(ctx context.Context, gatewayHandle string) (bool, error) {
	var exists bool
	err := s.DB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM payments WHERE gateway_handle = $1)`, gatewayHandle).Scan(&exists)
	return exists, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPayment(row scanner) (*models.Payment, error) {
	var (
		p           models.Payment
		status      string
		activatedAt sql.NullTime
	)
	if err := row.Scan(&p.PaymentID, &p.UserID, &p.Amount, &p.Months, &p.CreatedAt,
		&status, &p.GatewayHandle, &activatedAt); err != nil {
		return nil, err
	}
	p.Status = models.PaymentStatus(status)
	if activatedAt.Valid {
		p.ActivatedAt = &activatedAt.Time
	}
	return &p, nil
}
