// Package scheduler запускает периодические задачи по cron-расписанию.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Job задача планировщика. Контекст отменяется при остановке.
type Job func(ctx context.Context)

// Scheduler обёртка над cron с общим контекстом задач.
type Scheduler struct {
	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

// New создаёт планировщик, считающий расписание в часовом поясе loc.
func New(loc *time.Location, logger *slog.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelInfo))
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron:   c,
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}
}

// Add регистрирует задачу name по стандартному cron-выражению.
func (s *Scheduler) Add(name, spec string, job Job) error {
	if _, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		s.logger.Info("job started", slog.String("job", name))
		job(s.ctx)
		s.logger.Info("job finished", slog.String("job", name), slog.Duration("took", time.Since(start)))
	}); err != nil {
		return fmt.Errorf("failed to schedule %s job: %w", name, err)
	}
	s.logger.Info("scheduled job", slog.String("job", name), slog.String("schedule", spec))
	return nil
}

// Next возвращает время ближайших запусков всех задач после from.
func (s *Scheduler) Next(from time.Time) []time.Time {
	entries := s.cron.Entries()
	out := make([]time.Time, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Schedule.Next(from))
	}
	return out
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop отменяет контекст задач и ждёт завершения запущенных.
func (s *Scheduler) Stop() context.Context {
	s.cancel()
	return s.cron.Stop()
}
