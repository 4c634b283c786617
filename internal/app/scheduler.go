package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Freeeeeet/tutoring_portal/internal/metrics"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// feedbackLookback за какой период после окончания занятия ещё просим отзыв
const feedbackLookback = 24 * time.Hour

// Materializer создаёт open-заготовки занятий на недели вперёд
type Materializer interface {
	MaterializeOpenSessions(ctx context.Context, weeksAhead int) (int, error)
}

// FeedbackRequester рассылает просьбы оставить отзыв
type FeedbackRequester interface {
	RequestPendingFeedback(ctx context.Context, lookback time.Duration) (int, error)
}

type SchedulerConfig struct {
	MaterializeSpec  string
	MaterializeWeeks int
	FeedbackSpec     string
	Location         *time.Location
}

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	cron         *cron.Cron
	materializer Materializer
	feedback     FeedbackRequester
	cfg          SchedulerConfig
	logger       *zap.Logger

	// startup первый запуск материализации вне cron
	startup sync.WaitGroup
}

// NewScheduler регистрирует задачи; некорректное cron-выражение это ошибка конфигурации
func NewScheduler(materializer Materializer, feedback FeedbackRequester, cfg SchedulerConfig, logger *zap.Logger) (*Scheduler, error) {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	cl := cronLogger{logger.Sugar()}

	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		materializer: materializer,
		feedback:     feedback,
		cfg:          cfg,
		logger:       logger,
	}

	if _, err := s.cron.AddFunc(cfg.MaterializeSpec, func() { s.materialize(context.Background()) }); err != nil {
		return nil, fmt.Errorf("materialize schedule %q: %w", cfg.MaterializeSpec, err)
	}
	if _, err := s.cron.AddFunc(cfg.FeedbackSpec, func() { s.requestFeedback(context.Background()) }); err != nil {
		return nil, fmt.Errorf("feedback schedule %q: %w", cfg.FeedbackSpec, err)
	}

	return s, nil
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler",
		zap.String("materialize", s.cfg.MaterializeSpec),
		zap.String("feedback", s.cfg.FeedbackSpec),
	)

	// Первый запуск сразу при старте
	s.startup.Add(1)
	go func() {
		defer s.startup.Done()
		s.materialize(ctx)
	}()

	s.cron.Start()
}

// Stop останавливает планировщик и ждёт выполняющиеся задачи
func (s *Scheduler) Stop(ctx context.Context) {
	s.logger.Info("Stopping background scheduler")

	done := make(chan struct{})
	go func() {
		<-s.cron.Stop().Done()
		s.startup.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("Scheduler jobs did not finish before shutdown")
	}
}

func (s *Scheduler) materialize(ctx context.Context) {
	created, err := s.materializer.MaterializeOpenSessions(ctx, s.cfg.MaterializeWeeks)
	if err != nil {
		metrics.JobRuns.WithLabelValues("materialize", "error").Inc()
		s.logger.Error("Failed to materialize open sessions", zap.Error(err))
		return
	}
	metrics.JobRuns.WithLabelValues("materialize", "ok").Inc()
	s.logger.Debug("Materialize job finished", zap.Int("created", created))
}

func (s *Scheduler) requestFeedback(ctx context.Context) {
	sent, err := s.feedback.RequestPendingFeedback(ctx, feedbackLookback)
	if err != nil {
		metrics.JobRuns.WithLabelValues("feedback", "error").Inc()
		s.logger.Error("Failed to request feedback", zap.Error(err))
		return
	}
	metrics.JobRuns.WithLabelValues("feedback", "ok").Inc()
	s.logger.Debug("Feedback job finished", zap.Int("sent", sent))
}

// cronLogger пишет события cron в zap
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
