package model

import "time"

type Occupancy string

const (
	OccupancyAvailable      Occupancy = "available"
	OccupancyBookedByViewer Occupancy = "booked_by_viewer"
	OccupancyBookedByOther  Occupancy = "booked_by_other"
	OccupancyPast           Occupancy = "past"
)

// Slot 20-минутный интервал для бронирования. Вычисляется на лету, не хранится.
type Slot struct {
	ID          string         `json:"id"` // slot-<window>-<minute> или session-<id> для осиротевших занятий
	Date        string         `json:"date"`
	Index       int            `json:"slot_index"` // -1 у осиротевших занятий
	Start       time.Time      `json:"start_time"`
	End         time.Time      `json:"end_time"`
	DisplayTime string         `json:"display_time"`
	Medium      SessionMedium  `json:"session_medium"`
	WindowID    *int64         `json:"availability_id,omitempty"`
	Session     *SessionRecord `json:"session,omitempty"`
	Occupancy   Occupancy      `json:"occupancy,omitempty"`
}

func (s *Slot) IsBooked() bool {
	return s.Session.IsBooked()
}

// DaySlots слоты одного календарного дня
type DaySlots struct {
	Date  string `json:"date"`
	Slots []Slot `json:"slots"`
}
