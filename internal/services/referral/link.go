package referral

import (
	"encoding/base64"
	"regexp"
	"strings"
)

var userIDPattern = regexp.MustCompile(`^[0-9]{1,20}$`)

// EncodePayload кодирует идентификатор пригласившего для параметра /start.
func EncodePayload(userID string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(userID))
}

// DecodePayload раскодирует параметр /start. Любой мусор означает "приглашения нет".
func DecodePayload(payload string) (string, bool) {
	payload = strings.TrimRight(strings.TrimSpace(payload), "=")
	if payload == "" {
		return "", false
	}
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", false
	}
	userID := string(raw)
	if !userIDPattern.MatchString(userID) {
		return "", false
	}
	return userID, true
}

// Link ссылка-приглашение на бота.
func Link(botUsername, userID string) string {
	return "https://t.me/" + botUsername + "?start=" + EncodePayload(userID)
}
