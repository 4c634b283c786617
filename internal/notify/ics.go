package notify

import (
	"fmt"
	"time"

	"github.com/Freeeeeet/tutoring_portal/internal/model"
	ics "github.com/arran4/golang-ical"
)

const productID = "-//Tutoring Portal//Sessions//EN"

// BuildInvite календарное приглашение (METHOD:REQUEST) на занятие
func BuildInvite(s *model.SessionRecord, tutor, student *model.User, now time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodRequest)
	cal.SetProductId(productID)

	event := cal.AddEvent(fmt.Sprintf("session-%d@tutoring-portal", s.ID))
	event.SetDtStampTime(now.UTC())
	event.SetStartAt(s.StartTime.UTC())
	event.SetEndAt(s.EndTime.UTC())
	event.SetSummary(fmt.Sprintf("Tutoring Session - %s", courseOrDefault(s.Course)))
	event.SetDescription(fmt.Sprintf(
		"Tutoring session with %s\nStudent: %s\nType: %s",
		displayName(tutor), displayName(student), mediumDisplay(s.Medium),
	))
	if tutor != nil && tutor.Email != "" {
		event.SetOrganizer("mailto:"+tutor.Email, ics.WithCN(tutor.Name))
	}
	if student != nil && student.Email != "" {
		event.AddAttendee(student.Email, ics.WithCN(student.Name))
	}

	return cal.Serialize()
}

func courseOrDefault(course string) string {
	if course == "" {
		return "General"
	}
	return course
}
