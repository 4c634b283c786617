package state

import "time"

// UserState шаг диалога с пользователем
type UserState string

const (
	StateNone UserState = "" // Нет активного диалога

	// Просмотр слотов: /slots без аргументов спрашивает репетитора, затем дату
	StateSlotsTutor UserState = "slots_tutor"
	StateSlotsDate  UserState = "slots_date"
)

// Ключи данных диалога
const (
	KeyTutorID = "tutor_id"
)

// UserData хранит временные данные пользователя во время диалога
type UserData struct {
	State     UserState
	Data      map[string]any
	UpdatedAt time.Time
}
