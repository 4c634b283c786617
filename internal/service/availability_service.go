package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/tutoring_portal/internal/cache"
	"github.com/Freeeeeet/tutoring_portal/internal/civil"
	"github.com/Freeeeeet/tutoring_portal/internal/model"
	"github.com/Freeeeeet/tutoring_portal/internal/slots"
	"go.uber.org/zap"
)

// CreateAvailabilityInput запрос на новое окно. Для регулярного окна нужен DayOfWeek,
// для разового CalendarDate.
type CreateAvailabilityInput struct {
	TutorID      int64
	IsRecurring  bool
	DayOfWeek    *int
	CalendarDate string
	StartTime    string // HH:MM
	EndTime      string // HH:MM
	Medium       string
}

type AvailabilityService struct {
	windows AvailabilityStore
	users   UserStore
	cache   cache.SlotCache
	zone    civil.Zone
	logger  *zap.Logger
}

func NewAvailabilityService(
	windows AvailabilityStore,
	users UserStore,
	slotCache cache.SlotCache,
	zone civil.Zone,
	logger *zap.Logger,
) *AvailabilityService {
	return &AvailabilityService{
		windows: windows,
		users:   users,
		cache:   slotCache,
		zone:    zone,
		logger:  logger,
	}
}

// CreateAvailability проверяет ввод и сохраняет окно
func (s *AvailabilityService) CreateAvailability(ctx context.Context, in CreateAvailabilityInput) (*model.AvailabilityWindow, error) {
	w, err := s.buildWindow(in)
	if err != nil {
		return nil, err
	}

	if _, err := requireTutor(ctx, s.users, in.TutorID); err != nil {
		return nil, err
	}

	if err := s.windows.Create(ctx, w); err != nil {
		return nil, fmt.Errorf("create availability: %w", err)
	}

	// Новое окно меняет слоты репетитора, кэш больше не актуален
	if err := s.cache.Invalidate(ctx, w.TutorID); err != nil {
		s.logger.Warn("Failed to invalidate slot cache", zap.Int64("tutor_id", w.TutorID), zap.Error(err))
	}

	s.logger.Info("Availability window created",
		zap.Int64("window_id", w.ID),
		zap.Int64("tutor_id", w.TutorID),
		zap.String("kind", string(w.Kind)),
		zap.Int("day_of_week", w.DayOfWeek),
		zap.String("calendar_date", w.CalendarDate),
		zap.String("start", w.Start.String()),
		zap.String("end", w.End.String()),
		zap.Int("slots", slots.Count(w)),
	)

	return w, nil
}

func (s *AvailabilityService) buildWindow(in CreateAvailabilityInput) (*model.AvailabilityWindow, error) {
	if in.TutorID <= 0 {
		return nil, invalid("tutor_id", "is required")
	}

	medium := model.MediumRemote
	if in.Medium != "" {
		m, ok := model.ParseMedium(in.Medium)
		if !ok {
			return nil, invalid("session_medium", "must be remote or in_person, got %q", in.Medium)
		}
		medium = m
	}

	start, err := civil.ParseClock(in.StartTime)
	if err != nil {
		return nil, invalid("start_time", "must be HH:MM")
	}
	end, err := civil.ParseClock(in.EndTime)
	if err != nil {
		return nil, invalid("end_time", "must be HH:MM")
	}
	if end.Minutes() <= start.Minutes() {
		return nil, invalid("end_time", "must be after start_time")
	}
	if (end.Minutes()-start.Minutes())%int(slots.Granularity.Minutes()) != 0 {
		return nil, invalid("end_time", "window length must be a multiple of %d minutes", int(slots.Granularity.Minutes()))
	}

	w := &model.AvailabilityWindow{
		TutorID: in.TutorID,
		Start:   start,
		End:     end,
		Medium:  medium,
	}

	if in.IsRecurring {
		if in.DayOfWeek == nil || *in.DayOfWeek < 0 || *in.DayOfWeek > 6 {
			return nil, invalid("day_of_week", "must be 0 (Sunday) to 6 (Saturday) for recurring windows")
		}
		w.Kind = model.WindowRecurring
		w.DayOfWeek = *in.DayOfWeek
		return w, nil
	}

	wd, err := s.zone.Weekday(in.CalendarDate)
	if err != nil {
		return nil, invalid("calendar_date", "must be YYYY-MM-DD for dated windows")
	}
	w.Kind = model.WindowDated
	w.CalendarDate = in.CalendarDate
	w.DayOfWeek = int(wd)

	return w, nil
}

// ListAvailability окна репетитора: сначала регулярные, потом разовые
func (s *AvailabilityService) ListAvailability(ctx context.Context, tutorID int64) ([]*model.AvailabilityWindow, error) {
	if _, err := requireTutor(ctx, s.users, tutorID); err != nil {
		return nil, err
	}

	windows, err := s.windows.ListByTutor(ctx, tutorID)
	if err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}

	return slots.SortWindows(windows), nil
}

// Summary окна, действующие в диапазоне дат [from, to]: все регулярные
// и разовые с датой внутри диапазона. Порядок как у ListAvailability.
func (s *AvailabilityService) Summary(ctx context.Context, tutorID int64, from, to string) ([]*model.AvailabilityWindow, error) {
	if !civil.ValidDate(from) {
		return nil, invalid("from", "must be YYYY-MM-DD")
	}
	if !civil.ValidDate(to) {
		return nil, invalid("to", "must be YYYY-MM-DD")
	}
	if to < from {
		return nil, invalid("to", "must not be before from")
	}

	windows, err := s.ListAvailability(ctx, tutorID)
	if err != nil {
		return nil, err
	}

	var out []*model.AvailabilityWindow
	for _, w := range windows {
		if w.IsRecurring() || (w.CalendarDate >= from && w.CalendarDate <= to) {
			out = append(out, w)
		}
	}
	return out, nil
}
