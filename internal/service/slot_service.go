package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Freeeeeet/tutoring_portal/internal/cache"
	"github.com/Freeeeeet/tutoring_portal/internal/civil"
	"github.com/Freeeeeet/tutoring_portal/internal/metrics"
	"github.com/Freeeeeet/tutoring_portal/internal/model"
	"github.com/Freeeeeet/tutoring_portal/internal/slots"
	"github.com/Freeeeeet/tutoring_portal/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// MaxRangeDays предел для недельного/месячного просмотра
const MaxRangeDays = 42

// SlotService вычисляет слоты для просмотра. Сверенный список дня
// кэшируется по (репетитор, дата), разметка по смотрящему делается после кэша.
type SlotService struct {
	windows  AvailabilityStore
	sessions SessionStore
	users    UserStore
	cache    cache.SlotCache
	zone     civil.Zone
	logger   *zap.Logger
	now      func() time.Time
}

func NewSlotService(
	windows AvailabilityStore,
	sessions SessionStore,
	users UserStore,
	slotCache cache.SlotCache,
	zone civil.Zone,
	logger *zap.Logger,
) *SlotService {
	return &SlotService{
		windows:  windows,
		sessions: sessions,
		users:    users,
		cache:    slotCache,
		zone:     zone,
		logger:   logger,
		now:      time.Now,
	}
}

// ComputeSlots слоты репетитора на дату с точки зрения viewerID (0 для анонима)
func (s *SlotService) ComputeSlots(ctx context.Context, tutorID int64, date string, viewerID int64) ([]model.Slot, error) {
	ctx, span := tracing.Tracer().Start(ctx, "SlotService.ComputeSlots")
	defer span.End()
	span.SetAttributes(attribute.Int64("tutor_id", tutorID), attribute.String("date", date))

	if _, err := s.zone.ParseDate(date); err != nil {
		return nil, invalid("date", "must be YYYY-MM-DD")
	}
	if _, err := requireTutor(ctx, s.users, tutorID); err != nil {
		return nil, err
	}

	reconciled, err := s.reconciledDay(ctx, tutorID, date)
	if err != nil {
		return nil, err
	}

	return slots.Tag(reconciled, viewerID, s.now()), nil
}

// ComputeRange слоты по дням в диапазоне [from, to] включительно
func (s *SlotService) ComputeRange(ctx context.Context, tutorID int64, from, to string, viewerID int64) ([]model.DaySlots, error) {
	ctx, span := tracing.Tracer().Start(ctx, "SlotService.ComputeRange")
	defer span.End()

	first, err := s.zone.ParseDate(from)
	if err != nil {
		return nil, invalid("from", "must be YYYY-MM-DD")
	}
	last, err := s.zone.ParseDate(to)
	if err != nil {
		return nil, invalid("to", "must be YYYY-MM-DD")
	}
	if last.Before(first) {
		return nil, invalid("to", "must not be before from")
	}
	days := int(last.Sub(first).Hours()/24) + 1
	if days > MaxRangeDays {
		return nil, invalid("to", "range must not exceed %d days", MaxRangeDays)
	}
	span.SetAttributes(attribute.Int64("tutor_id", tutorID), attribute.Int("days", days))

	if _, err := requireTutor(ctx, s.users, tutorID); err != nil {
		return nil, err
	}

	version, cacheable := s.cacheVersion(ctx, tutorID)

	windows, err := s.windows.ListByTutor(ctx, tutorID)
	if err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}
	sessions, err := s.sessions.ListByTutorBetween(ctx, tutorID, first, last.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	now := s.now()
	out := make([]model.DaySlots, days)

	// Вычисление дня чистое, дни считаются параллельно
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i := range days {
		date := first.AddDate(0, 0, i).Format(civil.DateLayout)
		g.Go(func() error {
			reconciled := slots.ForDay(windows, sessions, s.zone, date)
			metrics.SlotComputations.WithLabelValues("range").Inc()
			if cacheable {
				s.store(gctx, tutorID, version, date, reconciled)
			}
			out[i] = model.DaySlots{Date: date, Slots: slots.Tag(reconciled, viewerID, now)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return out, nil
}

// reconciledDay сверенный список дня из кэша или из хранилища
func (s *SlotService) reconciledDay(ctx context.Context, tutorID int64, date string) ([]model.Slot, error) {
	// Версия читается до запроса к хранилищу
	version, cacheable := s.cacheVersion(ctx, tutorID)
	if cacheable {
		cached, ok, err := s.cache.Get(ctx, tutorID, version, date)
		if err != nil {
			s.logger.Warn("Slot cache read failed", zap.Int64("tutor_id", tutorID), zap.String("date", date), zap.Error(err))
		}
		if ok {
			metrics.SlotComputations.WithLabelValues("hit").Inc()
			return cached, nil
		}
	}
	metrics.SlotComputations.WithLabelValues("miss").Inc()

	windows, err := s.windows.ListByTutor(ctx, tutorID)
	if err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}

	dayStart, _ := s.zone.ParseDate(date)
	sessions, err := s.sessions.ListByTutorBetween(ctx, tutorID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	reconciled := slots.ForDay(windows, sessions, s.zone, date)

	if cacheable {
		s.store(ctx, tutorID, version, date, reconciled)
	}

	return reconciled, nil
}

// cacheVersion версия кэша репетитора; false если кэш недоступен
func (s *SlotService) cacheVersion(ctx context.Context, tutorID int64) (int64, bool) {
	version, err := s.cache.Version(ctx, tutorID)
	if err != nil {
		s.logger.Warn("Slot cache version read failed", zap.Int64("tutor_id", tutorID), zap.Error(err))
		return 0, false
	}
	return version, true
}

func (s *SlotService) store(ctx context.Context, tutorID, version int64, date string, list []model.Slot) {
	if err := s.cache.Set(ctx, tutorID, version, date, list); err != nil {
		s.logger.Warn("Failed to cache slots", zap.Int64("tutor_id", tutorID), zap.String("date", date), zap.Error(err))
	}
}
