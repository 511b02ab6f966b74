package telegram

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Sink доставляет сообщения пользователям по их Telegram id.
type Sink struct {
	api API
}

func NewSink(api API) *Sink {
	return &Sink{api: api}
}

// SendMessage отправляет text в личный чат userID. format - режим разметки, может быть пустым.
func (s *Sink) SendMessage(ctx context.Context, userID, text, format string) error {
	const op = "telegram.SendMessage"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return fmt.Errorf("%s: invalid chat id %q: %w", op, userID, err)
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = format
	if _, err := s.api.Send(msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
