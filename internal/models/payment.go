package models

import "time"

// PaymentStatus статус платежа в локальном реестре.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
)

// Payment запись о попытке оплаты.
type Payment struct {
	PaymentID     string        `json:"payment_id"` // локальный ключ идемпотентности
	UserID        string        `json:"user_id"`
	Amount        int64         `json:"amount"` // в копейках
	Months        int           `json:"months"`
	CreatedAt     time.Time     `json:"created_at"`
	Status        PaymentStatus `json:"status"`
	GatewayHandle string        `json:"gateway_handle"`
	ActivatedAt   *time.Time    `json:"activated_at,omitempty"`
}
