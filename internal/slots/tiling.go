package slots

import (
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/Freeeeeet/tutoring_portal/internal/civil"
	"github.com/Freeeeeet/tutoring_portal/internal/model"
)

// Granularity длина одного слота
const Granularity = 20 * time.Minute

const granularityMinutes = 20

// Applies проверяет что окно действует в указанную дату
func Applies(w *model.AvailabilityWindow, zone civil.Zone, dateKey string) bool {
	switch w.Kind {
	case model.WindowRecurring:
		wd, err := zone.Weekday(dateKey)
		return err == nil && int(wd) == w.DayOfWeek
	case model.WindowDated:
		return w.CalendarDate == dateKey
	}
	return false
}

// Count количество целых слотов в окне, хвост короче 20 минут отбрасывается
func Count(w *model.AvailabilityWindow) int {
	d := w.DurationMinutes()
	if d <= 0 {
		return 0
	}
	return d / granularityMinutes
}

// Candidates лениво перечисляет слоты окна в дату. Последовательность
// можно обходить повторно, побочных эффектов нет.
func Candidates(w *model.AvailabilityWindow, zone civil.Zone, dateKey string) iter.Seq[model.Slot] {
	return func(yield func(model.Slot) bool) {
		if !Applies(w, zone, dateKey) {
			return
		}
		dayStart, err := zone.ParseDate(dateKey)
		if err != nil {
			return
		}

		first := w.Start.Minutes()
		for i := range Count(w) {
			minute := first + i*granularityMinutes
			start := dayStart.Add(time.Duration(minute) * time.Minute)
			windowID := w.ID

			slot := model.Slot{
				ID:          fmt.Sprintf("slot-%d-%d", w.ID, minute),
				Date:        dateKey,
				Index:       i,
				Start:       start,
				End:         start.Add(Granularity),
				DisplayTime: civil.ClockFromMinutes(minute).Display(),
				Medium:      w.Medium,
				WindowID:    &windowID,
			}
			if !yield(slot) {
				return
			}
		}
	}
}

// Tile собирает Candidates в срез
func Tile(w *model.AvailabilityWindow, zone civil.Zone, dateKey string) []model.Slot {
	return slices.Collect(Candidates(w, zone, dateKey))
}

// At возвращает слот окна с номером index в дату
func At(w *model.AvailabilityWindow, zone civil.Zone, dateKey string, index int) (model.Slot, bool) {
	if index < 0 {
		return model.Slot{}, false
	}
	for slot := range Candidates(w, zone, dateKey) {
		if slot.Index == index {
			return slot, true
		}
	}
	return model.Slot{}, false
}

// Locate находит слот окна, который начинается ровно в instant
func Locate(w *model.AvailabilityWindow, zone civil.Zone, instant time.Time) (model.Slot, bool) {
	dateKey := zone.DateKey(instant)
	for slot := range Candidates(w, zone, dateKey) {
		if slot.Start.Equal(instant) {
			return slot, true
		}
	}
	return model.Slot{}, false
}
