package slots

import (
	"cmp"
	"slices"

	"github.com/Freeeeeet/tutoring_portal/internal/model"
)

// SortWindows возвращает отсортированную копию: сначала регулярные окна
// (по дню недели и началу), затем разовые (по дате и началу).
func SortWindows(windows []*model.AvailabilityWindow) []*model.AvailabilityWindow {
	out := slices.Clone(windows)
	slices.SortStableFunc(out, compareWindows)
	return out
}

func compareWindows(a, b *model.AvailabilityWindow) int {
	if a.IsRecurring() != b.IsRecurring() {
		if a.IsRecurring() {
			return -1
		}
		return 1
	}
	if a.IsRecurring() {
		if c := cmp.Compare(a.DayOfWeek, b.DayOfWeek); c != 0 {
			return c
		}
	} else if c := cmp.Compare(a.CalendarDate, b.CalendarDate); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Start.Minutes(), b.Start.Minutes()); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
