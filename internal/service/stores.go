package service

import (
	"context"
	"time"

	"github.com/Freeeeeet/tutoring_portal/internal/model"
)

// AvailabilityStore хранилище окон доступности
type AvailabilityStore interface {
	Create(ctx context.Context, w *model.AvailabilityWindow) error
	GetByID(ctx context.Context, id int64) (*model.AvailabilityWindow, error)
	ListByTutor(ctx context.Context, tutorID int64) ([]*model.AvailabilityWindow, error)
	ListActiveFrom(ctx context.Context, fromDate string) ([]*model.AvailabilityWindow, error)
}

// SessionStore хранилище занятий
type SessionStore interface {
	GetByID(ctx context.Context, id int64) (*model.SessionRecord, error)
	ListByTutorBetween(ctx context.Context, tutorID int64, from, to time.Time) ([]*model.SessionRecord, error)
	ListByTutor(ctx context.Context, tutorID int64) ([]*model.SessionRecord, error)
	ListByStudent(ctx context.Context, studentID int64) ([]*model.SessionRecord, error)
	ListAwaitingFeedback(ctx context.Context, from, to time.Time, limit int) ([]*model.SessionRecord, error)
	// Book атомарно: занятое время возвращает repository.ErrAlreadyBooked
	Book(ctx context.Context, s *model.SessionRecord) error
	CreateOpen(ctx context.Context, s *model.SessionRecord) (bool, error)
	UpdateAttendance(ctx context.Context, id int64, note, feedback string) error
	UpdateRating(ctx context.Context, id int64, rating float64, comment string) error
	MarkFeedbackRequested(ctx context.Context, id int64, at time.Time) error
	CountBooked(ctx context.Context, studentID, tutorID int64) (int, error)
	AverageRating(ctx context.Context, tutorID int64) (float64, int, error)
}

// UserStore чтение пользователей
type UserStore interface {
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByTelegramChatID(ctx context.Context, chatID int64) (*model.User, error)
	ListByRole(ctx context.Context, role model.Role) ([]*model.User, error)
}
