package slots

import (
	"time"

	"github.com/Freeeeeet/tutoring_portal/internal/model"
)

// Tag размечает слоты с точки зрения смотрящего. Исходный срез не меняется.
func Tag(in []model.Slot, viewerID int64, now time.Time) []model.Slot {
	out := make([]model.Slot, len(in))
	copy(out, in)
	for i := range out {
		out[i].Occupancy = Classify(&out[i], viewerID, now)
	}
	return out
}

// Classify бронь важнее прошедшего времени: своё прошедшее занятие остаётся своим
func Classify(s *model.Slot, viewerID int64, now time.Time) model.Occupancy {
	switch {
	case viewerID != 0 && s.Session.BookedBy(viewerID):
		return model.OccupancyBookedByViewer
	case s.IsBooked():
		return model.OccupancyBookedByOther
	case s.Start.Before(now):
		return model.OccupancyPast
	default:
		return model.OccupancyAvailable
	}
}
