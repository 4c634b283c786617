package model

import "time"

type SessionStatus string

const (
	SessionOpen   SessionStatus = "open"   // заготовка, созданная заранее
	SessionBooked SessionStatus = "booked" // занято учеником
)

// SessionRecord занятие. StartTime и EndTime хранятся как настенное время
// гражданской зоны (timestamp without time zone).
type SessionRecord struct {
	ID                  int64         `json:"id"`
	TutorID             int64         `json:"tutor_id"`
	StudentID           *int64        `json:"student_id"` // nil у open-заготовок
	AvailabilityID      *int64        `json:"availability_id,omitempty"`
	Course              string        `json:"course,omitempty"`
	Medium              SessionMedium `json:"session_medium"`
	StartTime           time.Time     `json:"start_time"`
	EndTime             time.Time     `json:"end_time"`
	Status              SessionStatus `json:"status"`
	AttendanceNote      string        `json:"attendance_note,omitempty"`
	StudentFeedback     string        `json:"student_feedback,omitempty"`
	Rating              *float64      `json:"rating,omitempty"`
	RatingComment       string        `json:"rating_comment,omitempty"`
	FeedbackRequestedAt *time.Time    `json:"feedback_requested_at,omitempty"`
	CreatedAt           time.Time     `json:"created_at"`
	UpdatedAt           time.Time     `json:"updated_at"`
}

func (s *SessionRecord) IsBooked() bool {
	return s != nil && s.Status == SessionBooked
}

// BookedBy проверяет что занятие забронировано указанным учеником
func (s *SessionRecord) BookedBy(studentID int64) bool {
	return s.IsBooked() && s.StudentID != nil && *s.StudentID == studentID
}
