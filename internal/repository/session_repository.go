package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Freeeeeet/tutoring_portal/internal/civil"
	"github.com/Freeeeeet/tutoring_portal/internal/model"
	"github.com/Freeeeeet/tutoring_portal/internal/repository/base"
	"github.com/jackc/pgx/v5"
)

// SessionRepository хранит занятия. start_time и end_time лежат в колонках
// timestamp without time zone как настенное время гражданской зоны.
type SessionRepository struct {
	*base.Repository
	outbox *OutboxRepository
	zone   civil.Zone
}

func NewSessionRepository(b *base.Repository, outbox *OutboxRepository, zone civil.Zone) *SessionRepository {
	return &SessionRepository{Repository: b, outbox: outbox, zone: zone}
}

const sessionColumns = `
	id, tutor_id, student_id, availability_id, course, session_medium,
	start_time, end_time, status, attendance_note, student_feedback,
	rating::float8, rating_comment, feedback_requested_at, created_at, updated_at`

// GetByID получает занятие по ID
func (r *SessionRepository) GetByID(ctx context.Context, id int64) (*model.SessionRecord, error) {
	query := `SELECT ` + sessionColumns + `
		FROM sessions
		WHERE id = $1
	`

	s, err := r.scanSession(r.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session by id: %w", err)
	}

	return s, nil
}

// ListByTutorBetween занятия репетитора с началом в [from, to)
func (r *SessionRepository) ListByTutorBetween(ctx context.Context, tutorID int64, from, to time.Time) ([]*model.SessionRecord, error) {
	query := `SELECT ` + sessionColumns + `
		FROM sessions
		WHERE tutor_id = $1 AND start_time >= $2 AND start_time < $3
		ORDER BY start_time, id
	`

	return r.list(ctx, "list tutor sessions between", query, tutorID, r.zone.Naive(from), r.zone.Naive(to))
}

// ListByTutor все занятия репетитора
func (r *SessionRepository) ListByTutor(ctx context.Context, tutorID int64) ([]*model.SessionRecord, error) {
	query := `SELECT ` + sessionColumns + `
		FROM sessions
		WHERE tutor_id = $1
		ORDER BY start_time, id
	`

	return r.list(ctx, "list tutor sessions", query, tutorID)
}

// ListByStudent все занятия ученика
func (r *SessionRepository) ListByStudent(ctx context.Context, studentID int64) ([]*model.SessionRecord, error) {
	query := `SELECT ` + sessionColumns + `
		FROM sessions
		WHERE student_id = $1
		ORDER BY start_time, id
	`

	return r.list(ctx, "list student sessions", query, studentID)
}

// ListAwaitingFeedback забронированные занятия, закончившиеся в [from, to),
// без оценки и без отправленного запроса отзыва
func (r *SessionRepository) ListAwaitingFeedback(ctx context.Context, from, to time.Time, limit int) ([]*model.SessionRecord, error) {
	query := `SELECT ` + sessionColumns + `
		FROM sessions
		WHERE status = 'booked'
			AND rating IS NULL
			AND feedback_requested_at IS NULL
			AND end_time >= $1 AND end_time < $2
		ORDER BY end_time, id
		LIMIT $3
	`

	return r.list(ctx, "list sessions awaiting feedback", query, r.zone.Naive(from), r.zone.Naive(to), limit)
}

// Book атомарно бронирует время: занимает open-заготовку, если она есть,
// иначе вставляет новую запись. Событие бронирования пишется в outbox
// в той же транзакции. Занятое время возвращает ErrAlreadyBooked.
func (r *SessionRepository) Book(ctx context.Context, s *model.SessionRecord) error {
	claim := `
		UPDATE sessions
		SET status = 'booked', student_id = $3, availability_id = $4, course = $5,
			session_medium = $6, end_time = $7, updated_at = NOW()
		WHERE id = (
			SELECT id FROM sessions
			WHERE tutor_id = $1 AND start_time = $2 AND status = 'open'
			ORDER BY id
			LIMIT 1
		) AND status = 'open'
		RETURNING id, created_at, updated_at
	`
	insert := `
		INSERT INTO sessions (tutor_id, start_time, student_id, availability_id, course, session_medium, end_time, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 'booked')
		RETURNING id, created_at, updated_at
	`

	args := []any{
		s.TutorID,
		r.zone.Naive(s.StartTime),
		s.StudentID,
		s.AvailabilityID,
		s.Course,
		s.Medium,
		r.zone.Naive(s.EndTime),
	}

	err := r.WithTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, claim, args...).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
		if base.IsNotFound(err) {
			err = tx.QueryRow(ctx, insert, args...).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
		}
		if err != nil {
			return err
		}

		s.Status = model.SessionBooked

		evt, err := model.NewSessionBookedEvent(s)
		if err != nil {
			return err
		}
		return r.outbox.Insert(ctx, tx, evt)
	})

	if err != nil {
		if base.IsUniqueViolation(err) {
			return ErrAlreadyBooked
		}
		return fmt.Errorf("book session: %w", err)
	}

	return nil
}

// CreateOpen вставляет open-заготовку, если на это время у репетитора ещё ничего нет.
// Возвращает false если запись уже существовала.
func (r *SessionRepository) CreateOpen(ctx context.Context, s *model.SessionRecord) (bool, error) {
	query := `
		INSERT INTO sessions (tutor_id, availability_id, session_medium, start_time, end_time, status)
		SELECT $1::bigint, $2::bigint, $3::text, $4::timestamp, $5::timestamp, 'open'
		WHERE NOT EXISTS (
			SELECT 1 FROM sessions WHERE tutor_id = $1::bigint AND start_time = $4::timestamp
		)
		ON CONFLICT DO NOTHING
		RETURNING id, created_at, updated_at
	`

	err := r.QueryRow(
		ctx, query,
		s.TutorID,
		s.AvailabilityID,
		s.Medium,
		r.zone.Naive(s.StartTime),
		r.zone.Naive(s.EndTime),
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)

	if err != nil {
		if base.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("create open session: %w", err)
	}

	s.Status = model.SessionOpen
	return true, nil
}

// UpdateAttendance сохраняет отметку о посещении и отзыв репетитора
func (r *SessionRepository) UpdateAttendance(ctx context.Context, id int64, note, feedback string) error {
	query := `
		UPDATE sessions
		SET attendance_note = $2, student_feedback = $3, updated_at = NOW()
		WHERE id = $1
	`

	affected, err := r.ExecAffected(ctx, query, id, note, feedback)
	if err != nil {
		return fmt.Errorf("update attendance: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update attendance: %w", pgx.ErrNoRows)
	}

	return nil
}

// UpdateRating сохраняет оценку ученика
func (r *SessionRepository) UpdateRating(ctx context.Context, id int64, rating float64, comment string) error {
	query := `
		UPDATE sessions
		SET rating = $2, rating_comment = $3, updated_at = NOW()
		WHERE id = $1
	`

	affected, err := r.ExecAffected(ctx, query, id, rating, comment)
	if err != nil {
		return fmt.Errorf("update rating: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("update rating: %w", pgx.ErrNoRows)
	}

	return nil
}

// MarkFeedbackRequested отмечает что ученику отправлен запрос отзыва
func (r *SessionRepository) MarkFeedbackRequested(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE sessions SET feedback_requested_at = $2 WHERE id = $1`

	if _, err := r.ExecAffected(ctx, query, id, at); err != nil {
		return fmt.Errorf("mark feedback requested: %w", err)
	}

	return nil
}

// CountBooked количество забронированных занятий ученика у репетитора
func (r *SessionRepository) CountBooked(ctx context.Context, studentID, tutorID int64) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM sessions
		WHERE student_id = $1 AND tutor_id = $2 AND status = 'booked'
	`

	var count int
	if err := r.QueryRow(ctx, query, studentID, tutorID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count booked sessions: %w", err)
	}

	return count, nil
}

// AverageRating средняя оценка репетитора и число оценок
func (r *SessionRepository) AverageRating(ctx context.Context, tutorID int64) (float64, int, error) {
	query := `
		SELECT COALESCE(AVG(rating), 0)::float8, COUNT(rating)
		FROM sessions
		WHERE tutor_id = $1 AND status = 'booked'
	`

	var (
		avg   float64
		count int
	)
	if err := r.QueryRow(ctx, query, tutorID).Scan(&avg, &count); err != nil {
		return 0, 0, fmt.Errorf("average rating: %w", err)
	}

	return avg, count, nil
}

func (r *SessionRepository) list(ctx context.Context, op, query string, args ...any) ([]*model.SessionRecord, error) {
	rows, err := r.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var sessions []*model.SessionRecord
	for rows.Next() {
		s, err := r.scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		sessions = append(sessions, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return sessions, nil
}

func (r *SessionRepository) scanSession(row pgx.Row) (*model.SessionRecord, error) {
	var s model.SessionRecord
	err := row.Scan(
		&s.ID,
		&s.TutorID,
		&s.StudentID,
		&s.AvailabilityID,
		&s.Course,
		&s.Medium,
		&s.StartTime,
		&s.EndTime,
		&s.Status,
		&s.AttendanceNote,
		&s.StudentFeedback,
		&s.Rating,
		&s.RatingComment,
		&s.FeedbackRequestedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.StartTime = r.zone.Reinterpret(s.StartTime)
	s.EndTime = r.zone.Reinterpret(s.EndTime)

	return &s, nil
}

// IsMissing ошибка обновления несуществующей записи
func IsMissing(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
