package panel

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/lib/sl"
)

const (
	tokenCacheKey = "panel:access_token"
	tokenSkew     = time.Minute
)

// TokenCache хранилище токена панели.
type TokenCache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// Token возвращает действующий токен администратора, при необходимости логинится заново.
func (c *Client) Token(ctx context.Context) (string, error) {
	const op = "panel.Token"

	if c.cache != nil {
		var token string
		found, err := c.cache.Get(ctx, tokenCacheKey, &token)
		if err != nil {
			c.log.Warn("failed to read cached panel token", sl.Err(err))
		}
		if found && token != "" {
			return token, nil
		}
	}

	token, err := c.authenticate(ctx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if c.cache != nil {
		if ttl := c.tokenLifetime(token); ttl > 0 {
			if err := c.cache.Set(ctx, tokenCacheKey, token, ttl); err != nil {
				c.log.Warn("failed to cache panel token", sl.Err(err))
			}
		}
	}
	return token, nil
}

// InvalidateToken сбрасывает закэшированный токен.
func (c *Client) InvalidateToken(ctx context.Context) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Invalidate(ctx, tokenCacheKey); err != nil {
		c.log.Warn("failed to invalidate panel token", sl.Err(err))
	}
}

func (c *Client) authenticate(ctx context.Context) (string, error) {
	const op = "panel.authenticate"

	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("username", c.username)
	form.Set("password", c.password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/admin/token",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var resp tokenResponse
	if err := c.do(req, op, &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("%s: empty access token", op)
	}
	c.log.Debug("panel token issued")
	return resp.AccessToken, nil
}

// tokenLifetime берёт срок жизни из claim exp. Подпись не проверяется:
// токен получен напрямую от панели.
func (c *Client) tokenLifetime(token string) time.Duration {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Sub(c.now()) - tokenSkew
	}
	return c.tokenTTL
}
