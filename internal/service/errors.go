package service

import (
	"errors"
	"fmt"
)

// Ошибки сервисного слоя. Транспорт сопоставляет их со статусами через errors.Is/As.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("slot already booked, choose another slot")
	ErrInvalidSlot = errors.New("invalid slot")
	ErrForbidden   = errors.New("forbidden")
)

// ValidationError некорректный ввод; проверяется до любой записи в хранилище
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func notFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func invalidSlot(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidSlot, fmt.Sprintf(format, args...))
}

func forbidden(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrForbidden, fmt.Sprintf(format, args...))
}

// IsValidation проверяет что err это ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
