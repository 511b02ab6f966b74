// Package notification рассылает предупреждения об истечении подписки.
package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/vpn-subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/vpn-subscription-bot/internal/models"
)

// ExpiryWarningText сообщение за день до окончания подписки.
const ExpiryWarningText = "⚠️ <b>Ваша подписка истекает завтра!</b>\n\nПродлите её заранее, чтобы избежать отключения."

// FormatHTML режим разметки сообщений.
const FormatHTML = "HTML"

// NotificationSink доставляет сообщение пользователю.
type NotificationSink interface {
	SendMessage(ctx context.Context, userID, text, format string) error
}

// Panel источник сроков подписок.
type Panel interface {
	Token(ctx context.Context) (string, error)
	ListUsers(ctx context.Context, token string) ([]*models.Entitlement, error)
}

type Recorder interface {
	Notification(kind string, ok bool)
}

// Stats итоги одного прохода рассылки.
type Stats struct {
	Checked int
	Due     int
	Sent    int
	Failed  int
}

type SweepService struct {
	panel    Panel
	sink     NotificationSink
	loc      *time.Location
	now      func() time.Time
	recorder Recorder
	log      *slog.Logger
}

// NewSweepService создает новый экземпляр SweepService.
func NewSweepService(p Panel, sink NotificationSink, loc *time.Location, log *slog.Logger) *SweepService {
	if loc == nil {
		loc = time.UTC
	}
	return &SweepService{
		panel: p,
		sink:  sink,
		loc:   loc,
		now:   time.Now,
		log:   log,
	}
}

// WithClock подменяет источник текущего времени.
func (s *SweepService) WithClock(now func() time.Time) *SweepService {
	s.now = now
	return s
}

// WithRecorder подключает метрики.
func (s *SweepService) WithRecorder(r Recorder) *SweepService {
	s.recorder = r
	return s
}

// Sweep отправляет предупреждение всем, чья подписка заканчивается завтра
// по календарю настроенного часового пояса. Ошибка доставки одному
// пользователю не прерывает проход.
func (s *SweepService) Sweep(ctx context.Context) (Stats, error) {
	var stats Stats
	s.log.Info("starting expiry sweep")

	token, err := s.panel.Token(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to get panel token: %w", err)
	}
	users, err := s.panel.ListUsers(ctx, token)
	if err != nil {
		return stats, fmt.Errorf("failed to list panel users: %w", err)
	}

	tomorrow := dateOf(s.now().In(s.loc).AddDate(0, 0, 1))
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Checked++
		if u.Expire <= 0 || dateOf(u.ExpireTime().In(s.loc)) != tomorrow {
			continue
		}
		stats.Due++

		if err := s.sink.SendMessage(ctx, u.Username, ExpiryWarningText, FormatHTML); err != nil {
			stats.Failed++
			s.record(false)
			s.log.Warn("failed to send expiry warning", sl.User(u.Username), sl.Err(err))
			continue
		}
		stats.Sent++
		s.record(true)
	}

	s.log.Info("expiry sweep finished",
		slog.Int("checked", stats.Checked),
		slog.Int("due", stats.Due),
		slog.Int("sent", stats.Sent),
		slog.Int("failed", stats.Failed))
	return stats, nil
}

// Run выполняет Sweep и только логирует ошибку. Подходит для планировщика.
func (s *SweepService) Run(ctx context.Context) {
	if _, err := s.Sweep(ctx); err != nil {
		s.log.Error("expiry sweep failed", sl.Err(err))
	}
}

func (s *SweepService) record(ok bool) {
	if s.recorder != nil {
		s.recorder.Notification("expiry", ok)
	}
}

type date struct {
	y int
	m time.Month
	d int
}

func dateOf(t time.Time) date {
	y, m, d := t.Date()
	return date{y, m, d}
}
