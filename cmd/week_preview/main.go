// week_preview печатает недельную сетку слотов на тестовых данных.
// Нужен для ручной проверки нарезки окон и разметки занятости без базы.
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/Freeeeeet/tutoring_portal/internal/civil"
	"github.com/Freeeeeet/tutoring_portal/internal/model"
	"github.com/Freeeeeet/tutoring_portal/internal/slots"
)

func main() {
	start := flag.String("week", "", "любая дата недели YYYY-MM-DD, по умолчанию текущая")
	viewer := flag.Int64("viewer", 100, "ID смотрящего ученика, 0 для анонима")
	offset := flag.Int("offset", -300, "смещение гражданской зоны в минутах")
	flag.Parse()

	zone := civil.NewZone("PREVIEW", *offset)
	now := time.Now()

	monday, err := weekStart(zone, *start, now)
	if err != nil {
		log.Fatalf("bad -week: %v", err)
	}

	windows, sessions := fixture(zone, monday)

	for i := 0; i < 7; i++ {
		date, _ := zone.AddDays(monday, i)
		day := slots.Tag(slots.ForDay(windows, sessions, zone, date), *viewer, now)
		printDay(date, zone, day)
	}
}

func weekStart(zone civil.Zone, date string, now time.Time) (string, error) {
	if date == "" {
		date = zone.DateKey(now)
	}
	wd, err := zone.Weekday(date)
	if err != nil {
		return "", err
	}
	// Неделя с понедельника
	back := (int(wd) + 6) % 7
	return zone.AddDays(date, -back)
}

func fixture(zone civil.Zone, monday string) ([]*model.AvailabilityWindow, []*model.SessionRecord) {
	wednesday, _ := zone.AddDays(monday, 2)
	friday, _ := zone.AddDays(monday, 4)

	windows := []*model.AvailabilityWindow{
		{ID: 1, TutorID: 1, Kind: model.WindowRecurring, DayOfWeek: 1,
			Start: civil.Clock{Hour: 20}, End: civil.Clock{Hour: 21}, Medium: model.MediumRemote},
		{ID: 2, TutorID: 1, Kind: model.WindowRecurring, DayOfWeek: 3,
			Start: civil.Clock{Hour: 9}, End: civil.Clock{Hour: 10, Minute: 10}, Medium: model.MediumInPerson},
		{ID: 3, TutorID: 1, Kind: model.WindowDated, CalendarDate: friday, DayOfWeek: 5,
			Start: civil.Clock{Hour: 16, Minute: 20}, End: civil.Clock{Hour: 17}, Medium: model.MediumRemote},
	}

	viewer, other := int64(100), int64(200)
	at := func(date string, h, m int) time.Time {
		t, _ := zone.Combine(date, h, m)
		return t
	}
	sessions := []*model.SessionRecord{
		{ID: 10, TutorID: 1, StudentID: &viewer, Status: model.SessionBooked,
			StartTime: at(monday, 20, 20), EndTime: at(monday, 20, 40)},
		{ID: 11, TutorID: 1, StudentID: &other, Status: model.SessionBooked,
			StartTime: at(wednesday, 9, 0), EndTime: at(wednesday, 9, 20)},
		// Окно под этим занятием не заведено, слот появится как осиротевший
		{ID: 12, TutorID: 1, StudentID: &other, Status: model.SessionBooked,
			StartTime: at(friday, 12, 0), EndTime: at(friday, 12, 20)},
	}
	return windows, sessions
}

func printDay(date string, zone civil.Zone, day []model.Slot) {
	wd, _ := zone.Weekday(date)
	fmt.Printf("%s %s\n", date, wd.String()[:3])
	if len(day) == 0 {
		fmt.Println("  -")
		return
	}
	for _, s := range day {
		fmt.Printf("  %-9s %-17s %-10s %s\n", s.DisplayTime, s.Occupancy, s.Medium, s.ID)
	}
}
