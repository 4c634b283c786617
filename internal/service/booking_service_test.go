package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/Freeeeeet/tutoring_portal/internal/model"
)

func TestBookSlotBySlotIndex(t *testing.T) {
	m := seededStore()
	w := mondayEvening(m)
	c := newMemCache()
	n := &recordingNotifier{}
	svc := newBookingService(m, c, n, at("2024-01-01", "09:00"))

	session, err := svc.BookSlot(context.Background(), BookSlotInput{
		TutorID: tutorID, WindowID: w.ID, StudentID: studentA, Date: monday, SlotIndex: intPtr(1), Course: "Calculus",
	})
	if err != nil {
		t.Fatalf("BookSlot: %v", err)
	}
	svc.Wait()

	if !session.StartTime.Equal(at(monday, "20:20")) || !session.EndTime.Equal(at(monday, "20:40")) {
		t.Errorf("session = %v..%v, want 20:20..20:40", session.StartTime, session.EndTime)
	}
	if !session.BookedBy(studentA) {
		t.Error("session not booked by student")
	}
	if session.AvailabilityID == nil || *session.AvailabilityID != w.ID {
		t.Error("session not linked to window")
	}
	if session.Medium != model.MediumRemote || session.Course != "Calculus" {
		t.Errorf("medium/course = %s/%s", session.Medium, session.Course)
	}
	if c.invalidated != 1 {
		t.Errorf("cache invalidations = %d, want 1", c.invalidated)
	}
	if len(n.booked) != 1 || n.booked[0].Student.ID != studentA || n.booked[0].Tutor.ID != tutorID {
		t.Errorf("notifications = %+v", n.booked)
	}
}

func TestBookSlotByStartTime(t *testing.T) {
	tests := []struct {
		name  string
		start string
	}{
		{"naive wall clock", "2024-01-08T20:40"},
		{"utc instant", "2024-01-09T01:40:00Z"},
		{"offset instant", "2024-01-08T20:40:00-05:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := seededStore()
			w := mondayEvening(m)
			svc := newBookingService(m, newMemCache(), &recordingNotifier{}, at("2024-01-01", "09:00"))

			session, err := svc.BookSlot(context.Background(), BookSlotInput{
				TutorID: tutorID, WindowID: w.ID, StudentID: studentA, StartTime: tt.start,
			})
			if err != nil {
				t.Fatalf("BookSlot: %v", err)
			}
			svc.Wait()
			if !session.StartTime.Equal(at(monday, "20:40")) {
				t.Errorf("start = %v, want 20:40", session.StartTime)
			}
		})
	}
}

func TestBookSlotRejects(t *testing.T) {
	tests := []struct {
		name    string
		in      func(windowID int64) BookSlotInput
		wantErr error
	}{
		{
			name:    "unknown window",
			in:      func(int64) BookSlotInput { return BookSlotInput{TutorID: tutorID, WindowID: 999, StudentID: studentA, Date: monday, SlotIndex: intPtr(0)} },
			wantErr: ErrNotFound,
		},
		{
			name:    "window of another tutor",
			in:      func(id int64) BookSlotInput { return BookSlotInput{TutorID: otherTutor, WindowID: id, StudentID: studentA, Date: monday, SlotIndex: intPtr(0)} },
			wantErr: ErrNotFound,
		},
		{
			name:    "unknown student",
			in:      func(id int64) BookSlotInput { return BookSlotInput{TutorID: tutorID, WindowID: id, StudentID: 999, Date: monday, SlotIndex: intPtr(0)} },
			wantErr: ErrNotFound,
		},
		{
			name:    "tutor booked as a student",
			in:      func(id int64) BookSlotInput { return BookSlotInput{TutorID: tutorID, WindowID: id, StudentID: otherTutor, Date: monday, SlotIndex: intPtr(0)} },
			wantErr: ErrNotFound,
		},
		{
			name:    "tutor booking own slot",
			in:      func(id int64) BookSlotInput { return BookSlotInput{TutorID: tutorID, WindowID: id, StudentID: tutorID, Date: monday, SlotIndex: intPtr(0)} },
			wantErr: ErrNotFound,
		},
		{
			name:    "index past the window",
			in:      func(id int64) BookSlotInput { return BookSlotInput{TutorID: tutorID, WindowID: id, StudentID: studentA, Date: monday, SlotIndex: intPtr(3)} },
			wantErr: ErrInvalidSlot,
		},
		{
			name:    "date the window does not apply to",
			in:      func(id int64) BookSlotInput { return BookSlotInput{TutorID: tutorID, WindowID: id, StudentID: studentA, Date: "2024-01-09", SlotIndex: intPtr(0)} },
			wantErr: ErrInvalidSlot,
		},
		{
			name:    "start not on a slot boundary",
			in:      func(id int64) BookSlotInput { return BookSlotInput{TutorID: tutorID, WindowID: id, StudentID: studentA, StartTime: "2024-01-08T20:10"} },
			wantErr: ErrInvalidSlot,
		},
		{
			name:    "start at window end",
			in:      func(id int64) BookSlotInput { return BookSlotInput{TutorID: tutorID, WindowID: id, StudentID: studentA, StartTime: "2024-01-08T21:00"} },
			wantErr: ErrInvalidSlot,
		},
		{
			name: "start on a different date than requested",
			in: func(id int64) BookSlotInput {
				return BookSlotInput{TutorID: tutorID, WindowID: id, StudentID: studentA, Date: "2024-01-15", StartTime: "2024-01-08T20:00"}
			},
			wantErr: ErrInvalidSlot,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := seededStore()
			w := mondayEvening(m)
			svc := newBookingService(m, newMemCache(), &recordingNotifier{}, at("2024-01-01", "09:00"))

			_, err := svc.BookSlot(context.Background(), tt.in(w.ID))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if m.bookCalls != 0 {
				t.Errorf("store Book called %d times", m.bookCalls)
			}
		})
	}
}

func TestBookSlotValidation(t *testing.T) {
	tests := []struct {
		name  string
		in    BookSlotInput
		field string
	}{
		{"missing tutor", BookSlotInput{WindowID: 1, StudentID: studentA, StartTime: "2024-01-08T20:00"}, "tutor_id"},
		{"missing window", BookSlotInput{TutorID: tutorID, StudentID: studentA, StartTime: "2024-01-08T20:00"}, "availability_id"},
		{"missing student", BookSlotInput{TutorID: tutorID, WindowID: 1, StartTime: "2024-01-08T20:00"}, "student_id"},
		{"no slot reference", BookSlotInput{TutorID: tutorID, WindowID: 1, StudentID: studentA}, "start_time"},
		{"negative index", BookSlotInput{TutorID: tutorID, WindowID: 1, StudentID: studentA, Date: monday, SlotIndex: intPtr(-1)}, "slot_index"},
		{"index without date", BookSlotInput{TutorID: tutorID, WindowID: 1, StudentID: studentA, SlotIndex: intPtr(0)}, "date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := seededStore()
			mondayEvening(m)
			svc := newBookingService(m, newMemCache(), &recordingNotifier{}, at("2024-01-01", "09:00"))

			_, err := svc.BookSlot(context.Background(), tt.in)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if ve.Field != tt.field {
				t.Errorf("field = %q, want %q", ve.Field, tt.field)
			}
		})
	}
}

func TestBookSlotBadStartTime(t *testing.T) {
	m := seededStore()
	w := mondayEvening(m)
	svc := newBookingService(m, newMemCache(), &recordingNotifier{}, at("2024-01-01", "09:00"))

	_, err := svc.BookSlot(context.Background(), BookSlotInput{
		TutorID: tutorID, WindowID: w.ID, StudentID: studentA, StartTime: "next monday",
	})
	if !IsValidation(err) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}

func TestBookSlotInPast(t *testing.T) {
	m := seededStore()
	w := mondayEvening(m)
	svc := newBookingService(m, newMemCache(), &recordingNotifier{}, at(monday, "20:30"))

	_, err := svc.BookSlot(context.Background(), BookSlotInput{
		TutorID: tutorID, WindowID: w.ID, StudentID: studentA, Date: monday, SlotIndex: intPtr(1),
	})
	if !errors.Is(err, ErrInvalidSlot) {
		t.Fatalf("err = %v, want ErrInvalidSlot", err)
	}

	// следующий слот ещё впереди
	if _, err := svc.BookSlot(context.Background(), BookSlotInput{
		TutorID: tutorID, WindowID: w.ID, StudentID: studentA, Date: monday, SlotIndex: intPtr(2),
	}); err != nil {
		t.Fatalf("BookSlot future slot: %v", err)
	}
	svc.Wait()
}

func TestBookSlotTwice(t *testing.T) {
	m := seededStore()
	w := mondayEvening(m)
	svc := newBookingService(m, newMemCache(), &recordingNotifier{}, at("2024-01-01", "09:00"))
	ctx := context.Background()

	in := BookSlotInput{TutorID: tutorID, WindowID: w.ID, StudentID: studentA, Date: monday, SlotIndex: intPtr(0)}
	if _, err := svc.BookSlot(ctx, in); err != nil {
		t.Fatalf("first BookSlot: %v", err)
	}
	in.StudentID = studentB
	if _, err := svc.BookSlot(ctx, in); !errors.Is(err, ErrConflict) {
		t.Fatalf("second BookSlot err = %v, want ErrConflict", err)
	}
	svc.Wait()

	if got := m.bookedCount(); got != 1 {
		t.Errorf("booked sessions = %d, want 1", got)
	}
}

func TestBookSlotConcurrent(t *testing.T) {
	m := seededStore()
	w := mondayEvening(m)
	const students = 12
	for i := range students {
		m.addUser(int64(100+i), "student", model.RoleStudent)
	}
	svc := newBookingService(m, newMemCache(), &recordingNotifier{}, at("2024-01-01", "09:00"))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
		other     []error
	)
	for i := range students {
		wg.Add(1)
		go func(studentID int64) {
			defer wg.Done()
			_, err := svc.BookSlot(context.Background(), BookSlotInput{
				TutorID: tutorID, WindowID: w.ID, StudentID: studentID, Date: monday, SlotIndex: intPtr(2),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrConflict):
				conflicts++
			default:
				other = append(other, err)
			}
		}(int64(100 + i))
	}
	wg.Wait()
	svc.Wait()

	if succeeded != 1 || conflicts != students-1 || len(other) != 0 {
		t.Fatalf("succeeded=%d conflicts=%d other=%v", succeeded, conflicts, other)
	}
	if got := m.bookedCount(); got != 1 {
		t.Errorf("booked sessions = %d, want 1", got)
	}
}

func TestBookSlotNotificationFailureIgnored(t *testing.T) {
	m := seededStore()
	w := mondayEvening(m)
	n := &recordingNotifier{err: errors.New("smtp down")}
	svc := newBookingService(m, newMemCache(), n, at("2024-01-01", "09:00"))

	if _, err := svc.BookSlot(context.Background(), BookSlotInput{
		TutorID: tutorID, WindowID: w.ID, StudentID: studentA, Date: monday, SlotIndex: intPtr(0),
	}); err != nil {
		t.Fatalf("BookSlot: %v", err)
	}
	svc.Wait()

	if len(n.booked) != 1 {
		t.Errorf("notifier calls = %d, want 1", len(n.booked))
	}
	if m.bookedCount() != 1 {
		t.Error("booking must persist when notifications fail")
	}
}

func TestMaterializeOpenSessions(t *testing.T) {
	m := seededStore()
	w := mondayEvening(m)
	m.addWindow(&model.AvailabilityWindow{
		TutorID: tutorID, Kind: model.WindowDated, DayOfWeek: 3, CalendarDate: "2024-01-10",
		Start: clock("10:00"), End: clock("10:40"), Medium: model.MediumInPerson,
	})
	// разовое окно в прошлом не материализуется
	m.addWindow(&model.AvailabilityWindow{
		TutorID: tutorID, Kind: model.WindowDated, DayOfWeek: 5, CalendarDate: "2024-01-05",
		Start: clock("10:00"), End: clock("11:00"), Medium: model.MediumRemote,
	})
	c := newMemCache()
	svc := newBookingService(m, c, &recordingNotifier{}, at(monday, "12:00"))
	ctx := context.Background()

	created, err := svc.MaterializeOpenSessions(ctx, 1)
	if err != nil {
		t.Fatalf("MaterializeOpenSessions: %v", err)
	}
	if created != 5 {
		t.Fatalf("created = %d, want 5 (3 Monday evening + 2 dated)", created)
	}
	if c.invalidated != 1 {
		t.Errorf("cache invalidations = %d, want 1", c.invalidated)
	}

	again, err := svc.MaterializeOpenSessions(ctx, 1)
	if err != nil {
		t.Fatalf("second MaterializeOpenSessions: %v", err)
	}
	if again != 0 {
		t.Errorf("second run created %d, want 0", again)
	}

	more, _ := svc.MaterializeOpenSessions(ctx, 2)
	if more != 3 {
		t.Errorf("two weeks ahead created %d more, want 3", more)
	}

	// бронирование занимает заготовку, а не создаёт новое занятие
	total := len(m.sessions)
	session, err := svc.BookSlot(ctx, BookSlotInput{
		TutorID: tutorID, WindowID: w.ID, StudentID: studentA, Date: monday, SlotIndex: intPtr(0),
	})
	if err != nil {
		t.Fatalf("BookSlot: %v", err)
	}
	svc.Wait()
	if len(m.sessions) != total {
		t.Errorf("sessions = %d after booking, want %d", len(m.sessions), total)
	}
	if m.bookedCount() != 1 || session.ID == 0 {
		t.Errorf("booked = %d, session id = %d", m.bookedCount(), session.ID)
	}
}

func TestMaterializeSkipsPastSlots(t *testing.T) {
	m := seededStore()
	mondayEvening(m)
	svc := newBookingService(m, newMemCache(), &recordingNotifier{}, at(monday, "20:30"))

	created, err := svc.MaterializeOpenSessions(context.Background(), 1)
	if err != nil {
		t.Fatalf("MaterializeOpenSessions: %v", err)
	}
	if created != 1 {
		t.Errorf("created = %d, want 1 (only 20:40 is ahead)", created)
	}

	if n, _ := svc.MaterializeOpenSessions(context.Background(), 0); n != 0 {
		t.Errorf("zero weeks created %d", n)
	}
}
