package rest

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/Freeeeeet/tutoring_portal/internal/model"
	"github.com/Freeeeeet/tutoring_portal/internal/service"
	"github.com/Freeeeeet/tutoring_portal/internal/slots"
	"github.com/go-playground/validator/v10"
)

// Запросы

type createAvailabilityRequest struct {
	TutorID       int64  `json:"tutor_id" validate:"omitempty,gt=0"` // только для admin
	IsRecurring   *bool  `json:"is_recurring" validate:"required"`
	DayOfWeek     *int   `json:"day_of_week" validate:"omitempty,min=0,max=6"`
	CalendarDate  string `json:"calendar_date" validate:"omitempty,datetime=2006-01-02"`
	StartTime     string `json:"start_time" validate:"required"`
	EndTime       string `json:"end_time" validate:"required"`
	SessionMedium string `json:"session_medium"`
}

type bookSlotRequest struct {
	AvailabilityID int64  `json:"availability_id" validate:"required,gt=0"`
	StudentID      int64  `json:"student_id" validate:"omitempty,gt=0"` // только для admin
	Date           string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	SlotIndex      *int   `json:"slot_index" validate:"omitempty,min=0"`
	StartTime      string `json:"start_time"`
	Course         string `json:"course" validate:"max=100"`
}

type attendanceRequest struct {
	AttendanceNote  string `json:"attendance_note" validate:"max=2000"`
	StudentFeedback string `json:"student_feedback" validate:"max=2000"`
}

type ratingRequest struct {
	Rating  *float64 `json:"rating" validate:"required"`
	Comment string   `json:"comment" validate:"max=1000"`
}

// newValidator в ошибках использует имена полей из json тегов
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError превращает ошибку validator в ValidationError первого поля
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]

	var msg string
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "datetime":
		msg = "must be YYYY-MM-DD"
	case "min", "gt":
		msg = fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			msg = fmt.Sprintf("must be at most %s characters", fe.Param())
		} else {
			msg = fmt.Sprintf("must be at most %s", fe.Param())
		}
	default:
		msg = "is invalid"
	}
	return &service.ValidationError{Field: fe.Field(), Message: msg}
}

// Ответы

type windowResponse struct {
	ID            int64     `json:"id"`
	TutorID       int64     `json:"tutor_id"`
	IsRecurring   bool      `json:"is_recurring"`
	DayOfWeek     int       `json:"day_of_week"`
	CalendarDate  string    `json:"calendar_date,omitempty"`
	StartTime     string    `json:"start_time"`
	EndTime       string    `json:"end_time"`
	SessionMedium string    `json:"session_medium"`
	SlotCount     int       `json:"slot_count"`
	CreatedAt     time.Time `json:"created_at"`
}

func toWindowResponse(w *model.AvailabilityWindow) windowResponse {
	return windowResponse{
		ID:            w.ID,
		TutorID:       w.TutorID,
		IsRecurring:   w.IsRecurring(),
		DayOfWeek:     w.DayOfWeek,
		CalendarDate:  w.CalendarDate,
		StartTime:     w.Start.String(),
		EndTime:       w.End.String(),
		SessionMedium: string(w.Medium),
		SlotCount:     slots.Count(w),
		CreatedAt:     w.CreatedAt,
	}
}

func toWindowResponses(ws []*model.AvailabilityWindow) []windowResponse {
	out := make([]windowResponse, 0, len(ws))
	for _, w := range ws {
		out = append(out, toWindowResponse(w))
	}
	return out
}

// slotResponse не раскрывает чужие брони: session_id только для своей
type slotResponse struct {
	ID             string    `json:"id"`
	Date           string    `json:"date"`
	SlotIndex      int       `json:"slot_index"`
	StartTime      time.Time `json:"start_time"`
	EndTime        time.Time `json:"end_time"`
	DisplayTime    string    `json:"display_time"`
	SessionMedium  string    `json:"session_medium"`
	AvailabilityID *int64    `json:"availability_id,omitempty"`
	Occupancy      string    `json:"occupancy"`
	SessionID      *int64    `json:"session_id,omitempty"`
}

func toSlotResponses(in []model.Slot) []slotResponse {
	out := make([]slotResponse, 0, len(in))
	for _, s := range in {
		r := slotResponse{
			ID:             s.ID,
			Date:           s.Date,
			SlotIndex:      s.Index,
			StartTime:      s.Start,
			EndTime:        s.End,
			DisplayTime:    s.DisplayTime,
			SessionMedium:  string(s.Medium),
			AvailabilityID: s.WindowID,
			Occupancy:      string(s.Occupancy),
		}
		if s.Occupancy == model.OccupancyBookedByViewer && s.Session != nil {
			id := s.Session.ID
			r.SessionID = &id
		}
		out = append(out, r)
	}
	return out
}

type daySlotsResponse struct {
	Date  string         `json:"date"`
	Slots []slotResponse `json:"slots"`
}

func toDayResponses(days []model.DaySlots) []daySlotsResponse {
	out := make([]daySlotsResponse, 0, len(days))
	for _, d := range days {
		out = append(out, daySlotsResponse{Date: d.Date, Slots: toSlotResponses(d.Slots)})
	}
	return out
}
