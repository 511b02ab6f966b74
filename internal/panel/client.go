// Package panel клиент панели управления доступом Marzban.
// Панель хранит авторитетный срок подписки каждого пользователя.
package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/config"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/models"
)

type Client struct {
	baseURL    string
	username   string
	password   string
	tokenTTL   time.Duration
	httpClient *http.Client
	cache      TokenCache
	now        func() time.Time
	log        *slog.Logger
}

// New создаёт клиент панели. cache может быть nil, тогда токен запрашивается каждый раз.
func New(cfg config.Panel, cache TokenCache, log *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.PanelURL, "/"),
		username:   cfg.PanelUsername,
		password:   cfg.PanelPassword,
		tokenTTL:   cfg.TokenTTL,
		httpClient: &http.Client{Timeout: cfg.PanelTimeout},
		cache:      cache,
		now:        time.Now,
		log:        log,
	}
}

// GetUser возвращает запись пользователя или ErrNotFound.
func (c *Client) GetUser(ctx context.Context, token, username string) (*models.Entitlement, error) {
	const op = "panel.GetUser"

	req, err := c.newRequest(ctx, http.MethodGet, "/api/user/"+url.PathEscape(username), token, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var resp userResponse
	if err := c.do(req, op, &resp); err != nil {
		return nil, err
	}
	return resp.toModel(), nil
}

// CreateUser создаёт пользователя с протоколом vless и заданным сроком.
func (c *Client) CreateUser(ctx context.Context, token, username string, expire time.Time, note string) (*models.Entitlement, error) {
	const op = "panel.CreateUser"

	body := createUserRequest{
		Username: username,
		Proxies:  map[string]proxySettings{"vless": {Flow: defaultFlow}},
		Expire:   expire.Unix(),
		Note:     note,
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/user", token, body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var resp userResponse
	if err := c.do(req, op, &resp); err != nil {
		return nil, err
	}
	return resp.toModel(), nil
}

// ModifyUser меняет срок окончания подписки пользователя.
func (c *Client) ModifyUser(ctx context.Context, token, username string, expire time.Time) (*models.Entitlement, error) {
	const op = "panel.ModifyUser"

	req, err := c.newRequest(ctx, http.MethodPut, "/api/user/"+url.PathEscape(username), token,
		modifyUserRequest{Expire: expire.Unix()})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var resp userResponse
	if err := c.do(req, op, &resp); err != nil {
		return nil, err
	}
	return resp.toModel(), nil
}

// ListUsers возвращает всех пользователей панели.
func (c *Client) ListUsers(ctx context.Context, token string) ([]*models.Entitlement, error) {
	const op = "panel.ListUsers"

	req, err := c.newRequest(ctx, http.MethodGet, "/api/users", token, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var resp usersResponse
	if err := c.do(req, op, &resp); err != nil {
		return nil, err
	}
	result := make([]*models.Entitlement, 0, len(resp.Users))
	for _, u := range resp.Users {
		result = append(result, u.toModel())
	}
	return result, nil
}

func (c *Client) newRequest(ctx context.Context, method, path, token string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
		reader = &buf
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do выполняет запрос и декодирует ответ в out.
// 404 превращается в ErrNotFound, 401 сбрасывает закэшированный токен.
func (c *Client) do(req *http.Request, op string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		if resp.StatusCode == http.StatusUnauthorized {
			c.InvalidateToken(req.Context())
		}
		return &StatusError{Op: op, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
