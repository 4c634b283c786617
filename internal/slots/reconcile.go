package slots

import (
	"fmt"
	"slices"

	"github.com/Freeeeeet/tutoring_portal/internal/civil"
	"github.com/Freeeeeet/tutoring_portal/internal/model"
)

// ForDay строит итоговый список слотов репетитора на дату:
// нарезка всех окон и наложение занятий.
func ForDay(windows []*model.AvailabilityWindow, sessions []*model.SessionRecord, zone civil.Zone, dateKey string) []model.Slot {
	var candidates []model.Slot
	for _, w := range SortWindows(windows) {
		for slot := range Candidates(w, zone, dateKey) {
			candidates = append(candidates, slot)
		}
	}
	return Reconcile(candidates, sessions, zone, dateKey)
}

// Reconcile накладывает занятия на слоты-кандидаты.
//
// Занятие относится к слоту, если его начало попадает в [start, start+20m).
// Слоты с одинаковым началом схлопываются: существующий заменяется только
// забронированным. Забронированные занятия без подходящего слота
// добавляются отдельными слотами. Результат отсортирован по началу.
func Reconcile(candidates []model.Slot, sessions []*model.SessionRecord, zone civil.Zone, dateKey string) []model.Slot {
	var daySessions []*model.SessionRecord
	for _, s := range sessions {
		if s != nil && zone.DateKey(s.StartTime) == dateKey {
			daySessions = append(daySessions, s)
		}
	}

	matched := make([]bool, len(daySessions))
	byStart := make(map[int64]int, len(candidates))
	out := make([]model.Slot, 0, len(candidates))

	put := func(slot model.Slot) {
		key := slot.Start.Unix()
		if idx, ok := byStart[key]; ok {
			if slot.IsBooked() && !out[idx].IsBooked() {
				out[idx] = slot
			}
			return
		}
		byStart[key] = len(out)
		out = append(out, slot)
	}

	for _, slot := range candidates {
		until := slot.Start.Add(Granularity)
		for i, s := range daySessions {
			if s.StartTime.Before(slot.Start) || !s.StartTime.Before(until) {
				continue
			}
			matched[i] = true
			slot.Session = prefer(slot.Session, s)
		}
		put(slot)
	}

	for i, s := range daySessions {
		if matched[i] || !s.IsBooked() {
			continue
		}
		put(orphan(s, zone, dateKey))
	}

	slices.SortStableFunc(out, func(a, b model.Slot) int {
		return a.Start.Compare(b.Start)
	})
	return out
}

// prefer забронированное побеждает незабронированное, иначе остаётся текущее
func prefer(current, next *model.SessionRecord) *model.SessionRecord {
	if current == nil || (next.IsBooked() && !current.IsBooked()) {
		return next
	}
	return current
}

func orphan(s *model.SessionRecord, zone civil.Zone, dateKey string) model.Slot {
	start := zone.In(s.StartTime)
	end := s.EndTime
	if !end.After(s.StartTime) {
		end = start.Add(Granularity)
	}
	return model.Slot{
		ID:          fmt.Sprintf("session-%d", s.ID),
		Date:        dateKey,
		Index:       -1,
		Start:       start,
		End:         zone.In(end),
		DisplayTime: zone.WallClock(start).Display(),
		Medium:      s.Medium,
		WindowID:    s.AvailabilityID,
		Session:     s,
	}
}
