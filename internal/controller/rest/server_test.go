package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Freeeeeet/tutoring_portal/internal/civil"
	"github.com/Freeeeeet/tutoring_portal/internal/model"
	"github.com/Freeeeeet/tutoring_portal/internal/service"
	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

type fakeAPI struct {
	windows  []*model.AvailabilityWindow
	slots    []model.Slot
	session  *model.SessionRecord
	matches  []service.TutorMatch
	err      error
	lastBook service.BookSlotInput
	lastView int64
	lastList service.SessionFilter
	lastPref service.MatchPreferences
	created  service.CreateAvailabilityInput
}

func (f *fakeAPI) CreateAvailability(_ context.Context, in service.CreateAvailabilityInput) (*model.AvailabilityWindow, error) {
	f.created = in
	if f.err != nil {
		return nil, f.err
	}
	return &model.AvailabilityWindow{
		ID:        9,
		TutorID:   in.TutorID,
		Kind:      model.WindowRecurring,
		DayOfWeek: 1,
		Start:     civil.Clock{Hour: 20},
		End:       civil.Clock{Hour: 21},
		Medium:    model.MediumRemote,
	}, nil
}

func (f *fakeAPI) ListAvailability(context.Context, int64) ([]*model.AvailabilityWindow, error) {
	return f.windows, f.err
}

func (f *fakeAPI) Summary(_ context.Context, _ int64, from, to string) ([]*model.AvailabilityWindow, error) {
	return f.windows, f.err
}

func (f *fakeAPI) ComputeSlots(_ context.Context, _ int64, _ string, viewerID int64) ([]model.Slot, error) {
	f.lastView = viewerID
	return f.slots, f.err
}

func (f *fakeAPI) ComputeRange(_ context.Context, _ int64, from, _ string, viewerID int64) ([]model.DaySlots, error) {
	f.lastView = viewerID
	return []model.DaySlots{{Date: from, Slots: f.slots}}, f.err
}

func (f *fakeAPI) BookSlot(_ context.Context, in service.BookSlotInput) (*model.SessionRecord, error) {
	f.lastBook = in
	if f.err != nil {
		return nil, f.err
	}
	student := in.StudentID
	return &model.SessionRecord{ID: 77, TutorID: in.TutorID, StudentID: &student, Status: model.SessionBooked}, nil
}

func (f *fakeAPI) ListSessions(_ context.Context, filter service.SessionFilter) ([]*model.SessionRecord, error) {
	f.lastList = filter
	return nil, f.err
}

func (f *fakeAPI) GetSession(context.Context, int64) (*model.SessionRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

func (f *fakeAPI) LogAttendance(context.Context, int64, int64, service.AttendanceInput) (*model.SessionRecord, error) {
	return f.session, f.err
}

func (f *fakeAPI) RateSession(context.Context, int64, int64, float64, string) (*model.SessionRecord, error) {
	return f.session, f.err
}

func (f *fakeAPI) Recommend(_ context.Context, _ int64, prefs service.MatchPreferences, _ int) ([]service.TutorMatch, error) {
	f.lastPref = prefs
	return f.matches, f.err
}

func newTestServer(api *fakeAPI) *Server {
	return NewServer(Services{
		Availability: api,
		Slots:        api,
		Bookings:     api,
		Sessions:     api,
		Matching:     api,
	}, Config{
		JWTSecret: testSecret,
		Checks: map[string]Check{
			"postgres": func(context.Context) error { return nil },
		},
	}, zap.NewNop())
}

func token(t *testing.T, userID int64, role model.Role) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    string(role),
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := tok.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func do(t *testing.T, s *Server, method, path, bearer, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := s.App().Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode %s: %v", raw, err)
		}
	}
	return resp.StatusCode, out
}

func TestSlotsAnonymousAndViewer(t *testing.T) {
	windowID := int64(5)
	api := &fakeAPI{slots: []model.Slot{
		{ID: "slot-5-1200", Date: "2024-01-08", Index: 0, WindowID: &windowID, Occupancy: model.OccupancyAvailable},
		{ID: "slot-5-1220", Date: "2024-01-08", Index: 1, WindowID: &windowID, Occupancy: model.OccupancyBookedByViewer,
			Session: &model.SessionRecord{ID: 31, Status: model.SessionBooked}},
		{ID: "slot-5-1240", Date: "2024-01-08", Index: 2, WindowID: &windowID, Occupancy: model.OccupancyBookedByOther,
			Session: &model.SessionRecord{ID: 32, Status: model.SessionBooked}},
	}}
	s := newTestServer(api)

	status, body := do(t, s, http.MethodGet, "/api/tutors/1/slots?date=2024-01-08", "", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d, body %v", status, body)
	}
	if api.lastView != 0 {
		t.Errorf("anonymous viewer = %d, want 0", api.lastView)
	}

	_, body = do(t, s, http.MethodGet, "/api/tutors/1/slots?date=2024-01-08", token(t, 2, model.RoleStudent), "")
	if api.lastView != 2 {
		t.Errorf("viewer = %d, want 2", api.lastView)
	}
	list := body["slots"].([]any)
	if len(list) != 3 {
		t.Fatalf("slots = %d, want 3", len(list))
	}
	own := list[1].(map[string]any)
	if own["session_id"] != float64(31) {
		t.Errorf("own slot session_id = %v, want 31", own["session_id"])
	}
	other := list[2].(map[string]any)
	if _, ok := other["session_id"]; ok {
		t.Errorf("other's booking leaks session_id: %v", other)
	}
	if other["occupancy"] != "booked_by_other" {
		t.Errorf("occupancy = %v", other["occupancy"])
	}
}

func TestSlotsRange(t *testing.T) {
	api := &fakeAPI{}
	s := newTestServer(api)

	status, body := do(t, s, http.MethodGet, "/api/tutors/1/slots?from=2024-01-08&to=2024-01-09", "", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if days := body["days"].([]any); len(days) != 1 {
		t.Errorf("days = %v", days)
	}

	status, body = do(t, s, http.MethodGet, "/api/tutors/1/slots", "", "")
	if status != http.StatusBadRequest || body["field"] != "date" {
		t.Errorf("missing date: status %d body %v", status, body)
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &service.ValidationError{Field: "date", Message: "must be YYYY-MM-DD"}, http.StatusBadRequest, "validation_error"},
		{"not found", service.ErrNotFound, http.StatusNotFound, "not_found"},
		{"conflict", service.ErrConflict, http.StatusConflict, "conflict"},
		{"invalid slot", service.ErrInvalidSlot, http.StatusUnprocessableEntity, "invalid_slot"},
		{"forbidden", service.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"internal", errors.New("pool closed"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakeAPI{err: tt.err})
			status, body := do(t, s, http.MethodPost, "/api/tutors/1/bookings", token(t, 2, model.RoleStudent),
				`{"availability_id": 5, "date": "2024-01-08", "slot_index": 1}`)
			if status != tt.status {
				t.Errorf("status = %d, want %d", status, tt.status)
			}
			if body["error"] != tt.code {
				t.Errorf("error code = %v, want %s", body["error"], tt.code)
			}
		})
	}
}

func TestBookSlot(t *testing.T) {
	api := &fakeAPI{}
	s := newTestServer(api)

	status, body := do(t, s, http.MethodPost, "/api/tutors/1/bookings", token(t, 2, model.RoleStudent),
		`{"availability_id": 5, "date": "2024-01-08", "slot_index": 1, "course": "Algebra"}`)
	if status != http.StatusCreated {
		t.Fatalf("status = %d, body %v", status, body)
	}
	in := api.lastBook
	if in.TutorID != 1 || in.StudentID != 2 || in.WindowID != 5 || in.SlotIndex == nil || *in.SlotIndex != 1 || in.Course != "Algebra" {
		t.Errorf("book input = %+v", in)
	}
	if body["id"] != float64(77) {
		t.Errorf("session id = %v", body["id"])
	}
}

func TestBookSlotAuth(t *testing.T) {
	body := `{"availability_id": 5, "date": "2024-01-08", "slot_index": 0}`
	tests := []struct {
		name   string
		bearer string
		body   string
		status int
	}{
		{"no token", "", body, http.StatusBadRequest},
		{"bad signature", "abc.def.ghi", body, http.StatusUnauthorized},
		{"tutor role", token(t, 1, model.RoleTutor), body, http.StatusForbidden},
		{"other student", token(t, 2, model.RoleStudent), `{"availability_id": 5, "student_id": 3, "date": "2024-01-08", "slot_index": 0}`, http.StatusForbidden},
		{"admin without student", token(t, 9, model.RoleAdmin), body, http.StatusBadRequest},
		{"admin for student", token(t, 9, model.RoleAdmin), `{"availability_id": 5, "student_id": 3, "date": "2024-01-08", "slot_index": 0}`, http.StatusCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&fakeAPI{})
			status, _ := do(t, s, http.MethodPost, "/api/tutors/1/bookings", tt.bearer, tt.body)
			if status != tt.status {
				t.Errorf("status = %d, want %d", status, tt.status)
			}
		})
	}
}

func TestBookSlotValidation(t *testing.T) {
	tests := []struct {
		body  string
		field string
	}{
		{`{"date": "2024-01-08", "slot_index": 0}`, "availability_id"},
		{`{"availability_id": 5, "date": "08.01.2024"}`, "date"},
		{`{"availability_id": 5, "slot_index": -1}`, "slot_index"},
		{`{"availability_id": 5, "course": "` + strings.Repeat("x", 101) + `"}`, "course"},
		{`{not json`, "body"},
	}
	for _, tt := range tests {
		api := &fakeAPI{}
		s := newTestServer(api)
		status, body := do(t, s, http.MethodPost, "/api/tutors/1/bookings", token(t, 2, model.RoleStudent), tt.body)
		if status != http.StatusBadRequest || body["field"] != tt.field {
			t.Errorf("body %s: status %d, field %v, want 400 %s", tt.body, status, body["field"], tt.field)
		}
		if api.lastBook.TutorID != 0 {
			t.Errorf("body %s: service was called", tt.body)
		}
	}
}

func TestCreateAvailability(t *testing.T) {
	api := &fakeAPI{}
	s := newTestServer(api)

	status, body := do(t, s, http.MethodPost, "/api/availability", token(t, 1, model.RoleTutor),
		`{"is_recurring": true, "day_of_week": 1, "start_time": "20:00", "end_time": "21:00", "session_medium": "online"}`)
	if status != http.StatusCreated {
		t.Fatalf("status = %d, body %v", status, body)
	}
	if api.created.TutorID != 1 || !api.created.IsRecurring || api.created.Medium != "online" {
		t.Errorf("input = %+v", api.created)
	}
	if body["start_time"] != "20:00" || body["end_time"] != "21:00" || body["slot_count"] != float64(3) {
		t.Errorf("response = %v", body)
	}

	status, _ = do(t, s, http.MethodPost, "/api/availability", token(t, 1, model.RoleTutor),
		`{"tutor_id": 4, "is_recurring": true, "day_of_week": 1, "start_time": "20:00", "end_time": "21:00"}`)
	if status != http.StatusForbidden {
		t.Errorf("foreign tutor: status = %d, want 403", status)
	}

	status, body = do(t, s, http.MethodPost, "/api/availability", token(t, 1, model.RoleTutor),
		`{"day_of_week": 1, "start_time": "20:00", "end_time": "21:00"}`)
	if status != http.StatusBadRequest || body["field"] != "is_recurring" {
		t.Errorf("missing is_recurring: status %d body %v", status, body)
	}
}

func TestListAvailability(t *testing.T) {
	api := &fakeAPI{windows: []*model.AvailabilityWindow{{
		ID: 1, TutorID: 1, Kind: model.WindowDated, CalendarDate: "2024-01-09",
		Start: civil.Clock{Hour: 9}, End: civil.Clock{Hour: 10}, Medium: model.MediumInPerson,
	}}}
	s := newTestServer(api)

	status, body := do(t, s, http.MethodGet, "/api/tutors/1/availability", "", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	w := body["windows"].([]any)[0].(map[string]any)
	if w["is_recurring"] != false || w["calendar_date"] != "2024-01-09" || w["session_medium"] != "in_person" {
		t.Errorf("window = %v", w)
	}

	status, body = do(t, s, http.MethodGet, "/api/tutors/1/availability?from=2024-01-08", "", "")
	if status != http.StatusBadRequest || body["field"] != "to" {
		t.Errorf("half range: status %d body %v", status, body)
	}
}

func TestSessionsAccess(t *testing.T) {
	student := int64(2)
	api := &fakeAPI{session: &model.SessionRecord{ID: 10, TutorID: 1, StudentID: &student, Status: model.SessionBooked}}
	s := newTestServer(api)

	do(t, s, http.MethodGet, "/api/sessions", token(t, 2, model.RoleStudent), "")
	if api.lastList != (service.SessionFilter{StudentID: 2}) {
		t.Errorf("student filter = %+v", api.lastList)
	}
	do(t, s, http.MethodGet, "/api/sessions?student_id=2", token(t, 1, model.RoleTutor), "")
	if api.lastList != (service.SessionFilter{TutorID: 1, StudentID: 2}) {
		t.Errorf("tutor filter = %+v", api.lastList)
	}

	if status, _ := do(t, s, http.MethodGet, "/api/sessions?student_id=3", token(t, 2, model.RoleStudent), ""); status != http.StatusForbidden {
		t.Errorf("foreign student list: status = %d", status)
	}

	tests := []struct {
		bearer string
		status int
	}{
		{token(t, 1, model.RoleTutor), http.StatusOK},
		{token(t, 2, model.RoleStudent), http.StatusOK},
		{token(t, 3, model.RoleStudent), http.StatusForbidden},
		{token(t, 9, model.RoleAdmin), http.StatusOK},
	}
	for _, tt := range tests {
		if status, _ := do(t, s, http.MethodGet, "/api/sessions/10", tt.bearer, ""); status != tt.status {
			t.Errorf("get session: status = %d, want %d", status, tt.status)
		}
	}
}

func TestRatingAndAttendanceRoles(t *testing.T) {
	api := &fakeAPI{session: &model.SessionRecord{ID: 10}}
	s := newTestServer(api)

	if status, _ := do(t, s, http.MethodPut, "/api/sessions/10/rating", token(t, 2, model.RoleStudent), `{"rating": 4.5}`); status != http.StatusOK {
		t.Errorf("rating: status = %d", status)
	}
	if status, body := do(t, s, http.MethodPut, "/api/sessions/10/rating", token(t, 2, model.RoleStudent), `{}`); status != http.StatusBadRequest || body["field"] != "rating" {
		t.Errorf("missing rating: status %d body %v", status, body)
	}
	if status, _ := do(t, s, http.MethodPut, "/api/sessions/10/rating", token(t, 1, model.RoleTutor), `{"rating": 5}`); status != http.StatusForbidden {
		t.Errorf("tutor rating: status = %d", status)
	}
	if status, _ := do(t, s, http.MethodPut, "/api/sessions/10/attendance", token(t, 1, model.RoleTutor), `{"attendance_note": "ok"}`); status != http.StatusOK {
		t.Errorf("attendance: status = %d", status)
	}
}

func TestRecommend(t *testing.T) {
	api := &fakeAPI{matches: []service.TutorMatch{{TutorID: 1, TotalScore: 80}}}
	s := newTestServer(api)

	status, body := do(t, s, http.MethodGet, "/api/matching/recommend?day=1&time=20:30&medium=in-person", token(t, 2, model.RoleStudent), "")
	if status != http.StatusOK {
		t.Fatalf("status = %d body %v", status, body)
	}
	p := api.lastPref
	if p.DayOfWeek == nil || *p.DayOfWeek != 1 || p.Time == nil || p.Time.Minutes() != 20*60+30 || p.Medium != model.MediumInPerson {
		t.Errorf("prefs = %+v", p)
	}
	if len(body["matches"].([]any)) != 1 {
		t.Errorf("matches = %v", body["matches"])
	}

	for _, q := range []string{"time=25:00", "medium=carrier-pigeon", "limit=0", "day=x"} {
		if status, _ := do(t, s, http.MethodGet, "/api/matching/recommend?"+q, token(t, 2, model.RoleStudent), ""); status != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, status)
		}
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(&fakeAPI{})
	if status, body := do(t, s, http.MethodGet, "/healthz", "", ""); status != http.StatusOK || body["status"] != "ok" {
		t.Errorf("healthz: %d %v", status, body)
	}
	if status, body := do(t, s, http.MethodGet, "/readyz", "", ""); status != http.StatusOK || body["status"] != "ready" {
		t.Errorf("readyz: %d %v", status, body)
	}

	down := NewServer(Services{}, Config{
		JWTSecret: testSecret,
		Checks: map[string]Check{
			"redis": func(context.Context) error { return errors.New("connection refused") },
		},
	}, zap.NewNop())
	if status, _ := do(t, down, http.MethodGet, "/readyz", "", ""); status != http.StatusServiceUnavailable {
		t.Errorf("readyz with failing check: %d", status)
	}
}
