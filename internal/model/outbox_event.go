package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const EventSessionBooked = "tutoring.session.booked.v1"

// OutboxEvent событие, записанное в той же транзакции что и изменение данных
type OutboxEvent struct {
	ID          int64      `json:"id"`
	EventID     uuid.UUID  `json:"event_id"`
	EventType   string     `json:"event_type"`
	AggregateID string     `json:"aggregate_id"`
	Payload     []byte     `json:"payload"`
	Traceparent string     `json:"traceparent,omitempty"`
	Tracestate  string     `json:"tracestate,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// SessionBookedPayload тело события tutoring.session.booked.v1
type SessionBookedPayload struct {
	SessionID int64         `json:"session_id"`
	TutorID   int64         `json:"tutor_id"`
	StudentID int64         `json:"student_id"`
	WindowID  int64         `json:"availability_id"`
	Course    string        `json:"course,omitempty"`
	Medium    SessionMedium `json:"session_medium"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
}

// NewSessionBookedEvent событие о бронировании занятия
func NewSessionBookedEvent(s *SessionRecord) (*OutboxEvent, error) {
	payload := SessionBookedPayload{
		SessionID: s.ID,
		TutorID:   s.TutorID,
		Course:    s.Course,
		Medium:    s.Medium,
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
	}
	if s.StudentID != nil {
		payload.StudentID = *s.StudentID
	}
	if s.AvailabilityID != nil {
		payload.WindowID = *s.AvailabilityID
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal session booked payload: %w", err)
	}

	return &OutboxEvent{
		EventID:     uuid.New(),
		EventType:   EventSessionBooked,
		AggregateID: strconv.FormatInt(s.TutorID, 10),
		Payload:     body,
	}, nil
}
