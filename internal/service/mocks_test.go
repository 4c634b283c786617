package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Freeeeeet/tutoring_portal/internal/civil"
	"github.com/Freeeeeet/tutoring_portal/internal/model"
	"github.com/Freeeeeet/tutoring_portal/internal/notify"
	"github.com/Freeeeeet/tutoring_portal/internal/repository"
)

// memStore in-memory реализация всех хранилищ для тестов сервисов
type memStore struct {
	mu        sync.Mutex
	users     map[int64]*model.User
	windows   []*model.AvailabilityWindow
	sessions  []*model.SessionRecord
	nextID    int64
	createErr error
	bookCalls int
}

func newMemStore() *memStore {
	return &memStore{users: make(map[int64]*model.User), nextID: 100}
}

func (m *memStore) addUser(id int64, name string, role model.Role) *model.User {
	u := &model.User{ID: id, Name: name, Email: name + "@example.com", Role: role}
	m.users[id] = u
	return u
}

func (m *memStore) addWindow(w *model.AvailabilityWindow) *model.AvailabilityWindow {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	w.ID = m.nextID
	m.windows = append(m.windows, w)
	return w
}

func (m *memStore) addSession(s *model.SessionRecord) *model.SessionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s.ID = m.nextID
	m.sessions = append(m.sessions, s)
	return s
}

func (m *memStore) bookedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sessions {
		if s.IsBooked() {
			n++
		}
	}
	return n
}

// users

func (m *memStore) userStore() UserStore { return memUsers{m} }

type memUsers struct{ m *memStore }

func (u memUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	return u.m.users[id], nil
}

func (u memUsers) GetByTelegramChatID(_ context.Context, chatID int64) (*model.User, error) {
	for _, user := range u.m.users {
		if user.TelegramChatIDOrZero() == chatID {
			return user, nil
		}
	}
	return nil, nil
}

func (u memUsers) ListByRole(_ context.Context, role model.Role) ([]*model.User, error) {
	var out []*model.User
	for _, user := range u.m.users {
		if user.Role == role {
			out = append(out, user)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// windows

func (m *memStore) windowStore() AvailabilityStore { return memWindows{m} }

type memWindows struct{ m *memStore }

func (w memWindows) Create(_ context.Context, win *model.AvailabilityWindow) error {
	if w.m.createErr != nil {
		return w.m.createErr
	}
	w.m.addWindow(win)
	return nil
}

func (w memWindows) GetByID(_ context.Context, id int64) (*model.AvailabilityWindow, error) {
	w.m.mu.Lock()
	defer w.m.mu.Unlock()
	for _, win := range w.m.windows {
		if win.ID == id {
			return win, nil
		}
	}
	return nil, nil
}

func (w memWindows) ListByTutor(_ context.Context, tutorID int64) ([]*model.AvailabilityWindow, error) {
	w.m.mu.Lock()
	defer w.m.mu.Unlock()
	var out []*model.AvailabilityWindow
	for _, win := range w.m.windows {
		if win.TutorID == tutorID {
			out = append(out, win)
		}
	}
	return out, nil
}

func (w memWindows) ListActiveFrom(_ context.Context, fromDate string) ([]*model.AvailabilityWindow, error) {
	w.m.mu.Lock()
	defer w.m.mu.Unlock()
	var out []*model.AvailabilityWindow
	for _, win := range w.m.windows {
		if win.IsRecurring() || win.CalendarDate >= fromDate {
			out = append(out, win)
		}
	}
	return out, nil
}

// sessions

func (m *memStore) sessionStore() SessionStore { return memSessions{m} }

type memSessions struct{ m *memStore }

func (s memSessions) GetByID(_ context.Context, id int64) (*model.SessionRecord, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, rec := range s.m.sessions {
		if rec.ID == id {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, nil
}

func (s memSessions) filter(keep func(*model.SessionRecord) bool) []*model.SessionRecord {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	var out []*model.SessionRecord
	for _, rec := range s.m.sessions {
		if keep(rec) {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

func (s memSessions) ListByTutorBetween(_ context.Context, tutorID int64, from, to time.Time) ([]*model.SessionRecord, error) {
	return s.filter(func(r *model.SessionRecord) bool {
		return r.TutorID == tutorID && !r.StartTime.Before(from) && r.StartTime.Before(to)
	}), nil
}

func (s memSessions) ListByTutor(_ context.Context, tutorID int64) ([]*model.SessionRecord, error) {
	return s.filter(func(r *model.SessionRecord) bool { return r.TutorID == tutorID }), nil
}

func (s memSessions) ListByStudent(_ context.Context, studentID int64) ([]*model.SessionRecord, error) {
	return s.filter(func(r *model.SessionRecord) bool { return r.BookedBy(studentID) }), nil
}

func (s memSessions) ListAwaitingFeedback(_ context.Context, from, to time.Time, limit int) ([]*model.SessionRecord, error) {
	out := s.filter(func(r *model.SessionRecord) bool {
		return r.IsBooked() && r.FeedbackRequestedAt == nil && r.Rating == nil &&
			!r.EndTime.Before(from) && !r.EndTime.After(to)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s memSessions) Book(_ context.Context, rec *model.SessionRecord) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	s.m.bookCalls++

	for _, existing := range s.m.sessions {
		if existing.TutorID == rec.TutorID && existing.StartTime.Equal(rec.StartTime) && existing.IsBooked() {
			return repository.ErrAlreadyBooked
		}
	}
	for _, existing := range s.m.sessions {
		if existing.TutorID == rec.TutorID && existing.StartTime.Equal(rec.StartTime) && existing.Status == model.SessionOpen {
			existing.StudentID = rec.StudentID
			existing.Course = rec.Course
			existing.Status = model.SessionBooked
			rec.ID = existing.ID
			return nil
		}
	}
	s.m.nextID++
	rec.ID = s.m.nextID
	cp := *rec
	s.m.sessions = append(s.m.sessions, &cp)
	return nil
}

func (s memSessions) CreateOpen(_ context.Context, rec *model.SessionRecord) (bool, error) {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, existing := range s.m.sessions {
		if existing.TutorID == rec.TutorID && existing.StartTime.Equal(rec.StartTime) {
			return false, nil
		}
	}
	s.m.nextID++
	rec.ID = s.m.nextID
	cp := *rec
	s.m.sessions = append(s.m.sessions, &cp)
	return true, nil
}

func (s memSessions) update(id int64, fn func(*model.SessionRecord)) error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	for _, rec := range s.m.sessions {
		if rec.ID == id {
			fn(rec)
			return nil
		}
	}
	return errors.New("session not found")
}

func (s memSessions) UpdateAttendance(_ context.Context, id int64, note, feedback string) error {
	return s.update(id, func(r *model.SessionRecord) {
		r.AttendanceNote = note
		r.StudentFeedback = feedback
	})
}

func (s memSessions) UpdateRating(_ context.Context, id int64, rating float64, comment string) error {
	return s.update(id, func(r *model.SessionRecord) {
		r.Rating = &rating
		r.RatingComment = comment
	})
}

func (s memSessions) MarkFeedbackRequested(_ context.Context, id int64, at time.Time) error {
	return s.update(id, func(r *model.SessionRecord) { r.FeedbackRequestedAt = &at })
}

func (s memSessions) CountBooked(_ context.Context, studentID, tutorID int64) (int, error) {
	return len(s.filter(func(r *model.SessionRecord) bool {
		return r.TutorID == tutorID && r.BookedBy(studentID)
	})), nil
}

func (s memSessions) AverageRating(_ context.Context, tutorID int64) (float64, int, error) {
	rated := s.filter(func(r *model.SessionRecord) bool { return r.TutorID == tutorID && r.Rating != nil })
	if len(rated) == 0 {
		return 0, 0, nil
	}
	sum := 0.0
	for _, r := range rated {
		sum += *r.Rating
	}
	return sum / float64(len(rated)), len(rated), nil
}

// memCache версионированный кэш в памяти, как у Redis
type memCache struct {
	mu          sync.Mutex
	entries     map[string][]model.Slot
	versions    map[int64]int64
	invalidated int
	// beforeSet вызывается один раз перед первой записью
	beforeSet func()
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]model.Slot), versions: make(map[int64]int64)}
}

func cacheKey(tutorID, version int64, date string) string {
	return fmt.Sprintf("%d:v%d:%s", tutorID, version, date)
}

func (c *memCache) Version(_ context.Context, tutorID int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[tutorID], nil
}

func (c *memCache) Get(_ context.Context, tutorID, version int64, date string) ([]model.Slot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[cacheKey(tutorID, version, date)]
	return s, ok, nil
}

func (c *memCache) Set(_ context.Context, tutorID, version int64, date string, slots []model.Slot) error {
	c.mu.Lock()
	hook := c.beforeSet
	c.beforeSet = nil
	c.mu.Unlock()
	if hook != nil {
		hook()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey(tutorID, version, date)] = slots
	return nil
}

func (c *memCache) Invalidate(_ context.Context, tutorID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[tutorID]++
	c.invalidated++
	return nil
}

// recordingNotifier запоминает отправленные уведомления
type recordingNotifier struct {
	mu       sync.Mutex
	booked   []notify.Booking
	feedback []notify.FeedbackRequest
	err      error
}

func (n *recordingNotifier) SessionBooked(_ context.Context, b notify.Booking) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.booked = append(n.booked, b)
	return n.err
}

func (n *recordingNotifier) FeedbackRequested(_ context.Context, r notify.FeedbackRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.feedback = append(n.feedback, r)
	return n.err
}

// фикстуры

// 2024-01-08 понедельник
const monday = "2024-01-08"

var zone = civil.Eastern

func clock(s string) civil.Clock {
	c, err := civil.ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func at(date, hhmm string) time.Time {
	t, err := zone.At(date, clock(hhmm))
	if err != nil {
		panic(err)
	}
	return t
}

func intPtr(v int) *int { return &v }

const (
	tutorID    int64 = 1
	studentA   int64 = 2
	studentB   int64 = 3
	otherTutor int64 = 4
)

func seededStore() *memStore {
	m := newMemStore()
	m.addUser(tutorID, "tutor", model.RoleTutor)
	m.addUser(studentA, "alice", model.RoleStudent)
	m.addUser(studentB, "bob", model.RoleStudent)
	m.addUser(otherTutor, "other", model.RoleTutor)
	return m
}

// mondayEvening регулярное окно по понедельникам 20:00-21:00
func mondayEvening(m *memStore) *model.AvailabilityWindow {
	return m.addWindow(&model.AvailabilityWindow{
		TutorID:   tutorID,
		Kind:      model.WindowRecurring,
		DayOfWeek: 1,
		Start:     clock("20:00"),
		End:       clock("21:00"),
		Medium:    model.MediumRemote,
	})
}
