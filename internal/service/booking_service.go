package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Freeeeeet/tutoring_portal/internal/cache"
	"github.com/Freeeeeet/tutoring_portal/internal/civil"
	"github.com/Freeeeeet/tutoring_portal/internal/metrics"
	"github.com/Freeeeeet/tutoring_portal/internal/model"
	"github.com/Freeeeeet/tutoring_portal/internal/notify"
	"github.com/Freeeeeet/tutoring_portal/internal/repository"
	"github.com/Freeeeeet/tutoring_portal/internal/slots"
	"github.com/Freeeeeet/tutoring_portal/internal/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const maxCourseLength = 100

// BookSlotInput запрос на бронирование. Слот задаётся либо парой (Date, SlotIndex),
// либо моментом StartTime; в обоих случаях момент пересчитывается по окну.
type BookSlotInput struct {
	TutorID   int64
	WindowID  int64
	StudentID int64
	Date      string
	SlotIndex *int
	StartTime string
	Course    string
}

type BookingService struct {
	windows       AvailabilityStore
	sessions      SessionStore
	users         UserStore
	cache         cache.SlotCache
	notifier      notify.Notifier
	zone          civil.Zone
	logger        *zap.Logger
	now           func() time.Time
	notifyTimeout time.Duration
	inflight      sync.WaitGroup
}

func NewBookingService(
	windows AvailabilityStore,
	sessions SessionStore,
	users UserStore,
	slotCache cache.SlotCache,
	notifier notify.Notifier,
	zone civil.Zone,
	notifyTimeout time.Duration,
	logger *zap.Logger,
) *BookingService {
	if notifyTimeout <= 0 {
		notifyTimeout = 15 * time.Second
	}
	return &BookingService{
		windows:       windows,
		sessions:      sessions,
		users:         users,
		cache:         slotCache,
		notifier:      notifier,
		zone:          zone,
		logger:        logger,
		now:           time.Now,
		notifyTimeout: notifyTimeout,
	}
}

// BookSlot бронирует слот окна для ученика
func (s *BookingService) BookSlot(ctx context.Context, in BookSlotInput) (*model.SessionRecord, error) {
	ctx, span := tracing.Tracer().Start(ctx, "BookingService.BookSlot")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("tutor_id", in.TutorID),
		attribute.Int64("window_id", in.WindowID),
		attribute.Int64("student_id", in.StudentID),
	)

	session, err := s.bookSlot(ctx, in)
	metrics.BookingsTotal.WithLabelValues(bookingResult(err)).Inc()
	if err != nil {
		span.RecordError(err)
		s.logger.Info("Booking rejected",
			zap.Int64("tutor_id", in.TutorID),
			zap.Int64("window_id", in.WindowID),
			zap.Int64("student_id", in.StudentID),
			zap.Error(err),
		)
		return nil, err
	}

	return session, nil
}

func (s *BookingService) bookSlot(ctx context.Context, in BookSlotInput) (*model.SessionRecord, error) {
	if err := validateBookInput(in); err != nil {
		return nil, err
	}

	// Окно должно принадлежать репетитору
	window, err := s.windows.GetByID(ctx, in.WindowID)
	if err != nil {
		return nil, fmt.Errorf("get availability window: %w", err)
	}
	if window == nil || window.TutorID != in.TutorID {
		return nil, notFound("availability window %d of tutor %d", in.WindowID, in.TutorID)
	}

	tutor, err := requireTutor(ctx, s.users, in.TutorID)
	if err != nil {
		return nil, err
	}
	student, err := requireStudent(ctx, s.users, in.StudentID)
	if err != nil {
		return nil, err
	}

	slot, err := s.resolveSlot(window, in)
	if err != nil {
		return nil, err
	}

	// Проверяем что слот в будущем
	if slot.Start.Before(s.now()) {
		return nil, invalidSlot("slot %s on %s is in the past", slot.DisplayTime, slot.Date)
	}

	// Быстрая проверка; окончательно занятость решает уникальный индекс при записи
	existing, err := s.sessions.ListByTutorBetween(ctx, in.TutorID, slot.Start, slot.End)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	for _, e := range existing {
		if e.IsBooked() {
			return nil, ErrConflict
		}
	}

	studentID := in.StudentID
	windowID := window.ID
	session := &model.SessionRecord{
		TutorID:        in.TutorID,
		StudentID:      &studentID,
		AvailabilityID: &windowID,
		Course:         in.Course,
		Medium:         window.Medium,
		StartTime:      slot.Start,
		EndTime:        slot.Start.Add(slots.Granularity),
		Status:         model.SessionBooked,
	}

	if err := s.sessions.Book(ctx, session); err != nil {
		if errors.Is(err, repository.ErrAlreadyBooked) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("book session: %w", err)
	}

	if err := s.cache.Invalidate(ctx, in.TutorID); err != nil {
		s.logger.Warn("Failed to invalidate slot cache", zap.Int64("tutor_id", in.TutorID), zap.Error(err))
	}

	s.logger.Info("Slot booked",
		zap.Int64("session_id", session.ID),
		zap.Int64("tutor_id", in.TutorID),
		zap.Int64("student_id", in.StudentID),
		zap.Int64("window_id", window.ID),
		zap.String("date", slot.Date),
		zap.String("time", slot.DisplayTime),
	)

	s.notifyBooked(ctx, notify.Booking{Session: session, Tutor: tutor, Student: student, Zone: s.zone})

	return session, nil
}

func validateBookInput(in BookSlotInput) error {
	switch {
	case in.TutorID <= 0:
		return invalid("tutor_id", "is required")
	case in.WindowID <= 0:
		return invalid("availability_id", "is required")
	case in.StudentID <= 0:
		return invalid("student_id", "is required")
	case len(in.Course) > maxCourseLength:
		return invalid("course", "must be at most %d characters", maxCourseLength)
	}

	if in.SlotIndex != nil {
		if *in.SlotIndex < 0 {
			return invalid("slot_index", "must not be negative")
		}
		if !civil.ValidDate(in.Date) {
			return invalid("date", "must be YYYY-MM-DD")
		}
		return nil
	}
	if in.StartTime == "" {
		return invalid("start_time", "either start_time or date with slot_index is required")
	}
	return nil
}

// resolveSlot пересчитывает момент начала по окну; клиентскому времени не доверяем
func (s *BookingService) resolveSlot(w *model.AvailabilityWindow, in BookSlotInput) (model.Slot, error) {
	if in.SlotIndex != nil {
		slot, ok := slots.At(w, s.zone, in.Date, *in.SlotIndex)
		if !ok {
			return model.Slot{}, invalidSlot("window %d has no slot %d on %s", w.ID, *in.SlotIndex, in.Date)
		}
		return slot, nil
	}

	instant, err := s.zone.ParseInstant(in.StartTime)
	if err != nil {
		return model.Slot{}, invalid("start_time", "must be RFC 3339 or YYYY-MM-DDTHH:MM")
	}
	slot, ok := slots.Locate(w, s.zone, instant)
	if !ok {
		return model.Slot{}, invalidSlot("%s is not a slot of window %d", s.zone.In(instant).Format(time.DateTime), w.ID)
	}
	if in.Date != "" && in.Date != slot.Date {
		return model.Slot{}, invalidSlot("start_time falls on %s, not %s", slot.Date, in.Date)
	}
	return slot, nil
}

// notifyBooked отправляет уведомления в фоне. Ошибки только логируются.
func (s *BookingService) notifyBooked(ctx context.Context, b notify.Booking) {
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
		defer cancel()

		result := "ok"
		if err := s.notifier.SessionBooked(nctx, b); err != nil {
			result = "error"
			s.logger.Warn("Failed to send booking notifications",
				zap.Int64("session_id", b.Session.ID),
				zap.Error(err),
			)
		}
		metrics.NotificationsTotal.WithLabelValues("booking", result).Inc()
	}()
}

// Wait ждёт завершения фоновых уведомлений (остановка сервиса, тесты)
func (s *BookingService) Wait() {
	s.inflight.Wait()
}

// MaterializeOpenSessions создаёт open-заготовки на weeksAhead недель вперёд
// для всех окон. Повторный запуск ничего не дублирует.
func (s *BookingService) MaterializeOpenSessions(ctx context.Context, weeksAhead int) (int, error) {
	if weeksAhead <= 0 {
		return 0, nil
	}

	now := s.now()
	today := s.zone.DateKey(now)

	windows, err := s.windows.ListActiveFrom(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("list active windows: %w", err)
	}

	count := 0
	touched := make(map[int64]bool)
	daysToCheck := weeksAhead * 7

	for i := 0; i < daysToCheck; i++ {
		date, err := s.zone.AddDays(today, i)
		if err != nil {
			return count, err
		}

		for _, w := range windows {
			for slot := range slots.Candidates(w, s.zone, date) {
				// Пропускаем прошедшие слоты
				if slot.Start.Before(now) {
					continue
				}

				windowID := w.ID
				created, err := s.sessions.CreateOpen(ctx, &model.SessionRecord{
					TutorID:        w.TutorID,
					AvailabilityID: &windowID,
					Medium:         w.Medium,
					StartTime:      slot.Start,
					EndTime:        slot.End,
					Status:         model.SessionOpen,
				})
				if err != nil {
					s.logger.Error("Failed to create open session",
						zap.Int64("window_id", w.ID),
						zap.String("date", date),
						zap.Error(err),
					)
					continue
				}
				if created {
					count++
					touched[w.TutorID] = true
				}
			}
		}
	}

	for tutorID := range touched {
		if err := s.cache.Invalidate(ctx, tutorID); err != nil {
			s.logger.Warn("Failed to invalidate slot cache", zap.Int64("tutor_id", tutorID), zap.Error(err))
		}
	}

	s.logger.Info("Open sessions materialized",
		zap.Int("windows", len(windows)),
		zap.Int("weeks_ahead", weeksAhead),
		zap.Int("created", count),
	)

	return count, nil
}

func bookingResult(err error) string {
	var ve *ValidationError
	switch {
	case err == nil:
		return "booked"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidSlot):
		return "invalid_slot"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.As(err, &ve):
		return "validation"
	default:
		return "error"
	}
}
