package model

import "time"

type Role string

const (
	RoleStudent Role = "student"
	RoleTutor   Role = "tutor"
	RoleAdmin   Role = "admin"
)

// User учётная запись портала. Регистрация и вход живут во внешнем сервисе,
// здесь только чтение.
type User struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Role           Role      `json:"role"`
	TelegramChatID *int64    `json:"telegram_chat_id,omitempty"` // чат для уведомлений, если пользователь подключил бота
	CreatedAt      time.Time `json:"created_at"`
}

func (u *User) IsTutor() bool {
	return u != nil && u.Role == RoleTutor
}

func (u *User) IsStudent() bool {
	return u != nil && u.Role == RoleStudent
}

// TelegramChatIDOrZero 0 если чат не привязан
func (u *User) TelegramChatIDOrZero() int64 {
	if u == nil || u.TelegramChatID == nil {
		return 0
	}
	return *u.TelegramChatID
}
