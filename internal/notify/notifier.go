package notify

import (
	"context"
	"errors"

	"github.com/Freeeeeet/tutoring_portal/internal/civil"
	"github.com/Freeeeeet/tutoring_portal/internal/model"
)

// Booking данные для уведомления о новом бронировании
type Booking struct {
	Session *model.SessionRecord
	Tutor   *model.User
	Student *model.User
	Zone    civil.Zone
}

// FeedbackRequest просьба оставить отзыв после занятия
type FeedbackRequest struct {
	Session *model.SessionRecord
	Tutor   *model.User
	Student *model.User
	Link    string
	Zone    civil.Zone
}

// Notifier канал уведомлений. Ошибки уведомлений никогда не влияют на бронирование.
type Notifier interface {
	SessionBooked(ctx context.Context, b Booking) error
	FeedbackRequested(ctx context.Context, r FeedbackRequest) error
}

// Multi рассылает по всем каналам, ошибки объединяются
type Multi []Notifier

func (m Multi) SessionBooked(ctx context.Context, b Booking) error {
	var errs []error
	for _, n := range m {
		if err := n.SessionBooked(ctx, b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) FeedbackRequested(ctx context.Context, r FeedbackRequest) error {
	var errs []error
	for _, n := range m {
		if err := n.FeedbackRequested(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop ничего не отправляет
type Nop struct{}

func (Nop) SessionBooked(context.Context, Booking) error             { return nil }
func (Nop) FeedbackRequested(context.Context, FeedbackRequest) error { return nil }

func mediumDisplay(m model.SessionMedium) string {
	if m == model.MediumInPerson {
		return "In-Person"
	}
	return "Online"
}

func displayName(u *model.User) string {
	if u == nil || u.Name == "" {
		return "Unknown"
	}
	return u.Name
}
