package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/Freeeeeet/tutoring_portal/internal/cache"
	"github.com/Freeeeeet/tutoring_portal/internal/civil"
	"github.com/Freeeeeet/tutoring_portal/internal/metrics"
	"github.com/Freeeeeet/tutoring_portal/internal/model"
	"github.com/Freeeeeet/tutoring_portal/internal/notify"
	"go.uber.org/zap"
)

const (
	maxNoteLength      = 2000
	feedbackBatchLimit = 100
)

// SessionFilter нужен хотя бы один из идентификаторов
type SessionFilter struct {
	TutorID   int64
	StudentID int64
}

// AttendanceInput отметка репетитора после занятия
type AttendanceInput struct {
	AttendanceNote  string
	StudentFeedback string
}

// SessionService чтение занятий, посещаемость, оценки и запросы отзывов
type SessionService struct {
	sessions    SessionStore
	users       UserStore
	cache       cache.SlotCache
	notifier    notify.Notifier
	zone        civil.Zone
	frontendURL string
	logger      *zap.Logger
	now         func() time.Time
}

func NewSessionService(
	sessions SessionStore,
	users UserStore,
	slotCache cache.SlotCache,
	notifier notify.Notifier,
	zone civil.Zone,
	frontendURL string,
	logger *zap.Logger,
) *SessionService {
	return &SessionService{
		sessions:    sessions,
		users:       users,
		cache:       slotCache,
		notifier:    notifier,
		zone:        zone,
		frontendURL: frontendURL,
		logger:      logger,
		now:         time.Now,
	}
}

// ListSessions занятия репетитора или ученика; если заданы оба, то занятия ученика у репетитора
func (s *SessionService) ListSessions(ctx context.Context, f SessionFilter) ([]*model.SessionRecord, error) {
	if f.TutorID <= 0 && f.StudentID <= 0 {
		return nil, invalid("", "tutor_id or student_id is required")
	}

	if f.TutorID > 0 {
		if _, err := requireTutor(ctx, s.users, f.TutorID); err != nil {
			return nil, err
		}
		sessions, err := s.sessions.ListByTutor(ctx, f.TutorID)
		if err != nil {
			return nil, fmt.Errorf("list tutor sessions: %w", err)
		}
		if f.StudentID <= 0 {
			return sessions, nil
		}
		var out []*model.SessionRecord
		for _, session := range sessions {
			if session.StudentID != nil && *session.StudentID == f.StudentID {
				out = append(out, session)
			}
		}
		return out, nil
	}

	if _, err := getUser(ctx, s.users, f.StudentID); err != nil {
		return nil, err
	}
	sessions, err := s.sessions.ListByStudent(ctx, f.StudentID)
	if err != nil {
		return nil, fmt.Errorf("list student sessions: %w", err)
	}
	return sessions, nil
}

// GetSession занятие по ID
func (s *SessionService) GetSession(ctx context.Context, id int64) (*model.SessionRecord, error) {
	session, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if session == nil {
		return nil, notFound("session %d", id)
	}
	return session, nil
}

// LogAttendance репетитор отмечает посещение и оставляет отзыв ученику
func (s *SessionService) LogAttendance(ctx context.Context, tutorID, sessionID int64, in AttendanceInput) (*model.SessionRecord, error) {
	if len(in.AttendanceNote) > maxNoteLength {
		return nil, invalid("attendance_note", "must be at most %d characters", maxNoteLength)
	}
	if len(in.StudentFeedback) > maxNoteLength {
		return nil, invalid("student_feedback", "must be at most %d characters", maxNoteLength)
	}

	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.TutorID != tutorID {
		return nil, forbidden("session %d belongs to another tutor", sessionID)
	}
	if !session.IsBooked() {
		return nil, invalid("session", "attendance can only be logged for booked sessions")
	}

	if err := s.sessions.UpdateAttendance(ctx, sessionID, in.AttendanceNote, in.StudentFeedback); err != nil {
		return nil, fmt.Errorf("update attendance: %w", err)
	}
	session.AttendanceNote = in.AttendanceNote
	session.StudentFeedback = in.StudentFeedback

	s.invalidate(ctx, session.TutorID)

	s.logger.Info("Attendance logged",
		zap.Int64("session_id", sessionID),
		zap.Int64("tutor_id", tutorID),
	)

	return session, nil
}

// RateSession ученик оценивает прошедшее занятие: 0.5..5.0 с шагом 0.5
func (s *SessionService) RateSession(ctx context.Context, studentID, sessionID int64, rating float64, comment string) (*model.SessionRecord, error) {
	if err := validateRating(rating); err != nil {
		return nil, err
	}
	if len(comment) > maxNoteLength {
		return nil, invalid("comment", "must be at most %d characters", maxNoteLength)
	}

	session, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.BookedBy(studentID) {
		return nil, forbidden("session %d is not booked by student %d", sessionID, studentID)
	}
	if session.EndTime.After(s.now()) {
		return nil, invalid("session", "can only be rated after it ends")
	}

	if err := s.sessions.UpdateRating(ctx, sessionID, rating, comment); err != nil {
		return nil, fmt.Errorf("update rating: %w", err)
	}
	session.Rating = &rating
	session.RatingComment = comment

	s.invalidate(ctx, session.TutorID)

	s.logger.Info("Session rated",
		zap.Int64("session_id", sessionID),
		zap.Int64("student_id", studentID),
		zap.Float64("rating", rating),
	)

	return session, nil
}

func validateRating(rating float64) error {
	if math.IsNaN(rating) || rating < 0.5 || rating > 5 {
		return invalid("rating", "must be between 0.5 and 5.0")
	}
	if doubled := rating * 2; doubled != math.Trunc(doubled) {
		return invalid("rating", "must be a multiple of 0.5")
	}
	return nil
}

// RequestPendingFeedback просит оценку у учеников занятий, закончившихся за lookback
func (s *SessionService) RequestPendingFeedback(ctx context.Context, lookback time.Duration) (int, error) {
	now := s.now()

	pending, err := s.sessions.ListAwaitingFeedback(ctx, now.Add(-lookback), now, feedbackBatchLimit)
	if err != nil {
		return 0, fmt.Errorf("list sessions awaiting feedback: %w", err)
	}

	sent := 0
	for _, session := range pending {
		if session.StudentID == nil {
			continue
		}

		tutor, err := s.users.GetByID(ctx, session.TutorID)
		if err != nil {
			s.logger.Warn("Failed to load tutor for feedback request", zap.Int64("session_id", session.ID), zap.Error(err))
			continue
		}
		student, err := s.users.GetByID(ctx, *session.StudentID)
		if err != nil || student == nil {
			s.logger.Warn("Failed to load student for feedback request", zap.Int64("session_id", session.ID), zap.Error(err))
			continue
		}

		err = s.notifier.FeedbackRequested(ctx, notify.FeedbackRequest{
			Session: session,
			Tutor:   tutor,
			Student: student,
			Link:    fmt.Sprintf("%s/feedback/%d", s.frontendURL, session.ID),
			Zone:    s.zone,
		})
		if err != nil {
			metrics.NotificationsTotal.WithLabelValues("feedback", "error").Inc()
			s.logger.Warn("Failed to send feedback request", zap.Int64("session_id", session.ID), zap.Error(err))
			continue
		}
		metrics.NotificationsTotal.WithLabelValues("feedback", "ok").Inc()

		if err := s.sessions.MarkFeedbackRequested(ctx, session.ID, now); err != nil {
			s.logger.Error("Failed to mark feedback requested", zap.Int64("session_id", session.ID), zap.Error(err))
			continue
		}
		sent++
	}

	if sent > 0 {
		s.logger.Info("Feedback requests sent", zap.Int("count", sent))
	}

	return sent, nil
}

func (s *SessionService) invalidate(ctx context.Context, tutorID int64) {
	if err := s.cache.Invalidate(ctx, tutorID); err != nil {
		s.logger.Warn("Failed to invalidate slot cache", zap.Int64("tutor_id", tutorID), zap.Error(err))
	}
}
