package model

import (
	"strings"
	"time"

	"github.com/Freeeeeet/tutoring_portal/internal/civil"
)

type WindowKind string

const (
	WindowRecurring WindowKind = "recurring" // каждую неделю в day_of_week
	WindowDated     WindowKind = "dated"     // один раз в calendar_date
)

type SessionMedium string

const (
	MediumRemote   SessionMedium = "remote"
	MediumInPerson SessionMedium = "in_person"
)

// ParseMedium принимает также старые написания "online" и "in-person"
func ParseMedium(s string) (SessionMedium, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "remote", "online":
		return MediumRemote, true
	case "in_person", "in-person", "inperson":
		return MediumInPerson, true
	}
	return "", false
}

// AvailabilityWindow окно доступности репетитора. После создания не меняется.
type AvailabilityWindow struct {
	ID           int64         `json:"id"`
	TutorID      int64         `json:"tutor_id"`
	Kind         WindowKind    `json:"kind"`
	DayOfWeek    int           `json:"day_of_week"`             // 0 = Sunday, 6 = Saturday; для dated вычисляется из даты
	CalendarDate string        `json:"calendar_date,omitempty"` // YYYY-MM-DD, только для dated
	Start        civil.Clock   `json:"start_time"`
	End          civil.Clock   `json:"end_time"`
	Medium       SessionMedium `json:"session_medium"`
	CreatedAt    time.Time     `json:"created_at"`
}

func (w *AvailabilityWindow) IsRecurring() bool {
	return w.Kind == WindowRecurring
}

// DurationMinutes длина окна; отрицательная для некорректного окна
func (w *AvailabilityWindow) DurationMinutes() int {
	return w.End.Minutes() - w.Start.Minutes()
}
