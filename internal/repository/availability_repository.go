package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/tutoring_portal/internal/model"
	"github.com/Freeeeeet/tutoring_portal/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

type AvailabilityRepository struct {
	*base.Repository
}

func NewAvailabilityRepository(b *base.Repository) *AvailabilityRepository {
	return &AvailabilityRepository{Repository: b}
}

const windowColumns = `
	id, tutor_id, is_recurring, day_of_week, COALESCE(to_char(calendar_date, 'YYYY-MM-DD'), ''),
	start_hour, start_minute, end_hour, end_minute, session_medium, created_at`

// Create сохраняет новое окно доступности
func (r *AvailabilityRepository) Create(ctx context.Context, w *model.AvailabilityWindow) error {
	query := `
		INSERT INTO availability_windows (
			tutor_id, is_recurring, day_of_week, calendar_date,
			start_hour, start_minute, end_hour, end_minute, session_medium
		)
		VALUES ($1, $2, $3, $4::text::date, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`

	var calendarDate *string
	if !w.IsRecurring() {
		calendarDate = &w.CalendarDate
	}

	err := r.QueryRow(
		ctx, query,
		w.TutorID,
		w.IsRecurring(),
		w.DayOfWeek,
		calendarDate,
		w.Start.Hour,
		w.Start.Minute,
		w.End.Hour,
		w.End.Minute,
		w.Medium,
	).Scan(&w.ID, &w.CreatedAt)

	if err != nil {
		return fmt.Errorf("create availability window: %w", err)
	}

	return nil
}

// GetByID получает окно по ID, nil если не найдено
func (r *AvailabilityRepository) GetByID(ctx context.Context, id int64) (*model.AvailabilityWindow, error) {
	query := `SELECT ` + windowColumns + `
		FROM availability_windows
		WHERE id = $1
	`

	w, err := scanWindow(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get availability window by id: %w", err)
	}

	return w, nil
}

// ListByTutor все окна репетитора
func (r *AvailabilityRepository) ListByTutor(ctx context.Context, tutorID int64) ([]*model.AvailabilityWindow, error) {
	query := `SELECT ` + windowColumns + `
		FROM availability_windows
		WHERE tutor_id = $1
		ORDER BY is_recurring DESC, day_of_week, calendar_date, start_hour, start_minute, id
	`

	rows, err := r.Query(ctx, query, tutorID)
	if err != nil {
		return nil, fmt.Errorf("list availability windows: %w", err)
	}

	return collectWindows(rows)
}

// ListActiveFrom регулярные окна всех репетиторов и разовые окна начиная с fromDate.
// Используется для предварительной генерации занятий.
func (r *AvailabilityRepository) ListActiveFrom(ctx context.Context, fromDate string) ([]*model.AvailabilityWindow, error) {
	query := `SELECT ` + windowColumns + `
		FROM availability_windows
		WHERE is_recurring OR calendar_date >= $1::text::date
		ORDER BY tutor_id, id
	`

	rows, err := r.Query(ctx, query, fromDate)
	if err != nil {
		return nil, fmt.Errorf("list active availability windows: %w", err)
	}

	return collectWindows(rows)
}

func collectWindows(rows pgx.Rows) ([]*model.AvailabilityWindow, error) {
	defer rows.Close()

	var windows []*model.AvailabilityWindow
	for rows.Next() {
		w, err := scanWindow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan availability window: %w", err)
		}
		windows = append(windows, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate availability windows: %w", err)
	}

	return windows, nil
}

func scanWindow(row pgx.Row) (*model.AvailabilityWindow, error) {
	var (
		w         model.AvailabilityWindow
		recurring bool
	)
	err := row.Scan(
		&w.ID,
		&w.TutorID,
		&recurring,
		&w.DayOfWeek,
		&w.CalendarDate,
		&w.Start.Hour,
		&w.Start.Minute,
		&w.End.Hour,
		&w.End.Minute,
		&w.Medium,
		&w.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	w.Kind = model.WindowDated
	if recurring {
		w.Kind = model.WindowRecurring
	}

	return &w, nil
}
