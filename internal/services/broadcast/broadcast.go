// Package broadcast ручная рассылка сообщения выбранной аудитории.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/models"
)

// Audience получатели рассылки.
type Audience string

const (
	// AudienceAll все пользователи из реестра.
	AudienceAll Audience = "all"
	// AudienceInactive пользователи с активной подпиской, которые ни разу не подключались.
	AudienceInactive Audience = "inactive"
)

var ErrUnknownAudience = errors.New("unknown audience")

// ParseAudience проверяет название аудитории.
func ParseAudience(s string) (Audience, error) {
	switch a := Audience(s); a {
	case AudienceAll, AudienceInactive:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAudience, s)
	}
}

type Ledger interface {
	ListUserIDs(ctx context.Context) ([]string, error)
}

type Panel interface {
	Token(ctx context.Context) (string, error)
	ListUsers(ctx context.Context, token string) ([]*models.Entitlement, error)
}

type Sink interface {
	SendMessage(ctx context.Context, userID, text, format string) error
}

// Result итоги рассылки.
type Result struct {
	Sent   int
	Failed int
}

type Service struct {
	ledger  Ledger
	panel   Panel
	sink    Sink
	adminID string
	now     func() time.Time
	log     *slog.Logger
}

// NewService создает новый экземпляр Service. adminID всегда получает копию рассылки.
func NewService(ledger Ledger, p Panel, sink Sink, adminID string, log *slog.Logger) *Service {
	return &Service{
		ledger:  ledger,
		panel:   p,
		sink:    sink,
		adminID: adminID,
		now:     time.Now,
		log:     log,
	}
}

// Recipients собирает получателей без повторов.
func (s *Service) Recipients(ctx context.Context, audience Audience) ([]string, error) {
	var ids []string
	switch audience {
	case AudienceAll:
		all, err := s.ledger.ListUserIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list users: %w", err)
		}
		ids = all
	case AudienceInactive:
		token, err := s.panel.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get panel token: %w", err)
		}
		users, err := s.panel.ListUsers(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("failed to list panel users: %w", err)
		}
		now := s.now().Unix()
		for _, u := range users {
			if u.UsedTraffic == 0 && u.Expire > now {
				ids = append(ids, u.Username)
			}
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAudience, audience)
	}

	if s.adminID != "" {
		ids = append(ids, s.adminID)
	}
	return unique(ids), nil
}

// Send отправляет text каждому получателю. Ошибка доставки одному
// получателю логируется и учитывается в Result.Failed.
func (s *Service) Send(ctx context.Context, audience Audience, text, format string) (Result, error) {
	var res Result

	recipients, err := s.Recipients(ctx, audience)
	if err != nil {
		return res, err
	}
	s.log.Info("starting broadcast", slog.String("audience", string(audience)), slog.Int("recipients", len(recipients)))

	for _, id := range recipients {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := s.sink.SendMessage(ctx, id, text, format); err != nil {
			res.Failed++
			s.log.Warn("failed to deliver broadcast", sl.User(id), sl.Err(err))
			continue
		}
		res.Sent++
	}

	s.log.Info("broadcast finished", slog.Int("sent", res.Sent), slog.Int("failed", res.Failed))
	return res, nil
}

func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
