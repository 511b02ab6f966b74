package paymentprovider

import "time"

// Статусы платежа в ЮKassa.
const (
	StatusPending           = "pending"
	StatusWaitingForCapture = "waiting_for_capture"
	StatusSucceeded         = "succeeded"
	StatusCanceled          = "canceled"
)

// Amount представляет денежную сумму.
type Amount struct {
	Value    string `json:"value" validate:"required"`        // сумма, например "99.00"
	Currency string `json:"currency" validate:"required,len=3"` // валюта, например "RUB"
}

type PaymentMethodData struct {
	Type string `json:"type" validate:"required"`
}

type Confirmation struct {
	Type            string `json:"type" validate:"required"`
	ReturnURL       string `json:"return_url,omitempty" validate:"omitempty,url"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

// CreatePaymentRequest представляет запрос на создание платежа.
type CreatePaymentRequest struct {
	Amount            Amount             `json:"amount" validate:"required"`
	Capture           bool               `json:"capture"`
	PaymentMethodData *PaymentMethodData `json:"payment_method_data,omitempty"`
	Confirmation      Confirmation       `json:"confirmation" validate:"required"`
	Description       string             `json:"description" validate:"required,max=128"`
	Metadata          map[string]string  `json:"metadata,omitempty"`
}

// PaymentResponse объект платежа в ответах ЮKassa.
type PaymentResponse struct {
	ID           string            `json:"id"`
	Status       string            `json:"status"`
	Paid         bool              `json:"paid"`
	Amount       Amount            `json:"amount"`
	Confirmation *Confirmation     `json:"confirmation,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Checkout результат создания платежа.
type Checkout struct {
	ConfirmationURL string
	IdempotenceKey  string
	PaymentID       string
	Status          string
}

// PaymentInfo состояние платежа в шлюзе.
type PaymentInfo struct {
	PaymentID string
	Status    string
	Paid      bool
}
