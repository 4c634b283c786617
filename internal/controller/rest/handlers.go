package rest

import (
	"fmt"
	"strconv"

	"github.com/Freeeeeet/tutoring_portal/internal/civil"
	"github.com/Freeeeeet/tutoring_portal/internal/model"
	"github.com/Freeeeeet/tutoring_portal/internal/service"
	"github.com/gofiber/fiber/v2"
)

func badField(field, msg string) error {
	return &service.ValidationError{Field: field, Message: msg}
}

func idParam(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, badField(name, "must be a positive integer")
	}
	return id, nil
}

func optionalIDQuery(c *fiber.Ctx, name string) (int64, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badField(name, "must be a positive integer")
	}
	return id, nil
}

// bind разбирает тело и прогоняет validator
func (s *Server) bind(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return badField("body", "malformed JSON body")
	}
	if err := s.validate.Struct(out); err != nil {
		return validationError(err)
	}
	return nil
}

// GET /api/tutors/:tutorId/availability[?from=&to=]
func (s *Server) listAvailability(c *fiber.Ctx) error {
	tutorID, err := idParam(c, "tutorId")
	if err != nil {
		return err
	}

	from, to := c.Query("from"), c.Query("to")
	var windows []*model.AvailabilityWindow
	switch {
	case from == "" && to == "":
		windows, err = s.svc.Availability.ListAvailability(c.UserContext(), tutorID)
	case from == "":
		return badField("from", "is required together with to")
	case to == "":
		return badField("to", "is required together with from")
	default:
		windows, err = s.svc.Availability.Summary(c.UserContext(), tutorID, from, to)
	}
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"tutor_id": tutorID,
		"windows":  toWindowResponses(windows),
	})
}

// POST /api/availability
func (s *Server) createAvailability(c *fiber.Ctx) error {
	who, _ := identity(c)

	var req createAvailabilityRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	tutorID := who.UserID
	switch {
	case who.Is(model.RoleAdmin):
		if req.TutorID == 0 {
			return badField("tutor_id", "is required for admin requests")
		}
		tutorID = req.TutorID
	case req.TutorID != 0 && req.TutorID != who.UserID:
		return fmt.Errorf("%w: tutors manage only their own availability", service.ErrForbidden)
	}

	w, err := s.svc.Availability.CreateAvailability(c.UserContext(), service.CreateAvailabilityInput{
		TutorID:      tutorID,
		IsRecurring:  *req.IsRecurring,
		DayOfWeek:    req.DayOfWeek,
		CalendarDate: req.CalendarDate,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Medium:       req.SessionMedium,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(toWindowResponse(w))
}

// GET /api/tutors/:tutorId/slots?date= или ?from=&to=
func (s *Server) computeSlots(c *fiber.Ctx) error {
	tutorID, err := idParam(c, "tutorId")
	if err != nil {
		return err
	}

	var viewerID int64
	if who, ok := identity(c); ok {
		viewerID = who.UserID
	}

	if date := c.Query("date"); date != "" {
		list, err := s.svc.Slots.ComputeSlots(c.UserContext(), tutorID, date, viewerID)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"tutor_id": tutorID,
			"date":     date,
			"slots":    toSlotResponses(list),
		})
	}

	from, to := c.Query("from"), c.Query("to")
	if from == "" || to == "" {
		return badField("date", "date or from and to are required")
	}
	days, err := s.svc.Slots.ComputeRange(c.UserContext(), tutorID, from, to, viewerID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"tutor_id": tutorID,
		"days":     toDayResponses(days),
	})
}

// POST /api/tutors/:tutorId/bookings
func (s *Server) bookSlot(c *fiber.Ctx) error {
	who, _ := identity(c)

	tutorID, err := idParam(c, "tutorId")
	if err != nil {
		return err
	}

	var req bookSlotRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	studentID := who.UserID
	switch {
	case who.Is(model.RoleAdmin):
		if req.StudentID == 0 {
			return badField("student_id", "is required for admin requests")
		}
		studentID = req.StudentID
	case req.StudentID != 0 && req.StudentID != who.UserID:
		return fmt.Errorf("%w: students book only for themselves", service.ErrForbidden)
	}

	session, err := s.svc.Bookings.BookSlot(c.UserContext(), service.BookSlotInput{
		TutorID:   tutorID,
		WindowID:  req.AvailabilityID,
		StudentID: studentID,
		Date:      req.Date,
		SlotIndex: req.SlotIndex,
		StartTime: req.StartTime,
		Course:    req.Course,
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(session)
}

// GET /api/sessions[?tutor_id=&student_id=]
func (s *Server) listSessions(c *fiber.Ctx) error {
	who, _ := identity(c)

	tutorID, err := optionalIDQuery(c, "tutor_id")
	if err != nil {
		return err
	}
	studentID, err := optionalIDQuery(c, "student_id")
	if err != nil {
		return err
	}

	// Не-админ видит только свои занятия
	switch who.Role {
	case model.RoleAdmin:
	case model.RoleTutor:
		if tutorID == 0 {
			tutorID = who.UserID
		}
		if tutorID != who.UserID {
			return fmt.Errorf("%w: sessions of another tutor", service.ErrForbidden)
		}
	default:
		if studentID == 0 {
			studentID = who.UserID
		}
		if studentID != who.UserID {
			return fmt.Errorf("%w: sessions of another student", service.ErrForbidden)
		}
	}

	list, err := s.svc.Sessions.ListSessions(c.UserContext(), service.SessionFilter{
		TutorID:   tutorID,
		StudentID: studentID,
	})
	if err != nil {
		return err
	}
	if list == nil {
		list = []*model.SessionRecord{}
	}

	return c.JSON(fiber.Map{"sessions": list})
}

// GET /api/sessions/:id
func (s *Server) getSession(c *fiber.Ctx) error {
	who, _ := identity(c)

	id, err := idParam(c, "id")
	if err != nil {
		return err
	}

	session, err := s.svc.Sessions.GetSession(c.UserContext(), id)
	if err != nil {
		return err
	}

	participant := session.TutorID == who.UserID ||
		(session.StudentID != nil && *session.StudentID == who.UserID)
	if !participant && !who.Is(model.RoleAdmin) {
		return fmt.Errorf("%w: not a participant of session %d", service.ErrForbidden, id)
	}

	return c.JSON(session)
}

// PUT /api/sessions/:id/attendance
func (s *Server) logAttendance(c *fiber.Ctx) error {
	who, _ := identity(c)

	id, err := idParam(c, "id")
	if err != nil {
		return err
	}

	var req attendanceRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	session, err := s.svc.Sessions.LogAttendance(c.UserContext(), who.UserID, id, service.AttendanceInput{
		AttendanceNote:  req.AttendanceNote,
		StudentFeedback: req.StudentFeedback,
	})
	if err != nil {
		return err
	}

	return c.JSON(session)
}

// PUT /api/sessions/:id/rating
func (s *Server) rateSession(c *fiber.Ctx) error {
	who, _ := identity(c)

	id, err := idParam(c, "id")
	if err != nil {
		return err
	}

	var req ratingRequest
	if err := s.bind(c, &req); err != nil {
		return err
	}

	session, err := s.svc.Sessions.RateSession(c.UserContext(), who.UserID, id, *req.Rating, req.Comment)
	if err != nil {
		return err
	}

	return c.JSON(session)
}

// GET /api/matching/recommend?day=&time=&medium=&limit=
func (s *Server) recommend(c *fiber.Ctx) error {
	who, _ := identity(c)

	var prefs service.MatchPreferences
	if raw := c.Query("day"); raw != "" {
		day, err := strconv.Atoi(raw)
		if err != nil {
			return badField("day", "must be an integer 0-6")
		}
		prefs.DayOfWeek = &day
	}
	if raw := c.Query("time"); raw != "" {
		clock, err := civil.ParseClock(raw)
		if err != nil {
			return badField("time", "must be HH:MM")
		}
		prefs.Time = &clock
	}
	if raw := c.Query("medium"); raw != "" {
		medium, ok := model.ParseMedium(raw)
		if !ok {
			return badField("medium", "must be remote or in_person")
		}
		prefs.Medium = medium
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return badField("limit", "must be a positive integer")
		}
		limit = n
	}

	matches, err := s.svc.Matching.Recommend(c.UserContext(), who.UserID, prefs, limit)
	if err != nil {
		return err
	}
	if matches == nil {
		matches = []service.TutorMatch{}
	}

	return c.JSON(fiber.Map{
		"student_id": who.UserID,
		"matches":    matches,
	})
}
