// Package paymentprovider клиент платёжного шлюза ЮKassa.
package paymentprovider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-playground/validator"
	"github.com/google/uuid"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/config"
)

const currencyRUB = "RUB"

// StatusError неожиданный HTTP-статус от шлюза.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Op, e.Code, e.Body)
}

type Client struct {
	shopID     string
	secretKey  string
	apiURL     string
	returnURL  string
	httpClient *http.Client
	validate   *validator.Validate
	newKey     func() string
}

// NewClient создаёт новый клиент ЮKassa
func NewClient(cfg config.YooKassa, returnURL string) *Client {
	return &Client{
		shopID:     cfg.ShopID,
		secretKey:  cfg.SecretKey,
		apiURL:     strings.TrimRight(cfg.APIURL, "/"),
		returnURL:  returnURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		validate:   validator.New(),
		newKey:     uuid.NewString,
	}
}

// CreatePayment создаёт платёж через СБП с немедленным списанием.
// amount передаётся в копейках.
func (c *Client) CreatePayment(ctx context.Context, amount int64, userID, description string) (*Checkout, error) {
	const op = "paymentprovider.CreatePayment"

	reqParams := CreatePaymentRequest{
		Amount:            Amount{Value: FormatAmount(amount), Currency: currencyRUB},
		Capture:           true,
		PaymentMethodData: &PaymentMethodData{Type: "sbp"},
		Confirmation:      Confirmation{Type: "redirect", ReturnURL: c.returnURL},
		Description:       description,
		Metadata:          map[string]string{"user_id": userID},
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%s: amount must be positive", op)
	}
	if err := c.validate.Struct(reqParams); err != nil {
		return nil, fmt.Errorf("%s: invalid request: %w", op, err)
	}

	idempotenceKey := c.newKey()
	req, err := c.newRequest(ctx, http.MethodPost, "/payments", reqParams)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Idempotence-Key", idempotenceKey)

	var resp PaymentResponse
	if err := c.do(req, op, &resp); err != nil {
		return nil, err
	}
	if resp.Confirmation == nil || resp.Confirmation.ConfirmationURL == "" {
		return nil, fmt.Errorf("%s: response has no confirmation url", op)
	}

	return &Checkout{
		ConfirmationURL: resp.Confirmation.ConfirmationURL,
		IdempotenceKey:  idempotenceKey,
		PaymentID:       resp.ID,
		Status:          resp.Status,
	}, nil
}

// FindPayment запрашивает текущее состояние платежа.
func (c *Client) FindPayment(ctx context.Context, paymentID string) (*PaymentInfo, error) {
	const op = "paymentprovider.FindPayment"

	req, err := c.newRequest(ctx, http.MethodGet, "/payments/"+url.PathEscape(paymentID), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var resp PaymentResponse
	if err := c.do(req, op, &resp); err != nil {
		return nil, err
	}
	return &PaymentInfo{
		PaymentID: resp.ID,
		Status:    resp.Status,
		Paid:      resp.Status == StatusSucceeded,
	}, nil
}

// IsPaid сообщает, подтвердил ли шлюз оплату.
func (c *Client) IsPaid(ctx context.Context, paymentID string) (bool, error) {
	info, err := c.FindPayment(ctx, paymentID)
	if err != nil {
		return false, err
	}
	return info.Paid, nil
}

// FormatAmount переводит копейки в строку вида "99.00".
func FormatAmount(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
		reader = &buf
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, reader)
	if err != nil {
		return nil, err
	}
	auth := base64.StdEncoding.EncodeToString([]byte(c.shopID + ":" + c.secretKey))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, op string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{Op: op, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
