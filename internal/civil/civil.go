package civil

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// DateLayout формат ключа календарной даты
	DateLayout = "2006-01-02"
	// ClockLayout формат времени суток
	ClockLayout = "15:04"

	naiveLayout        = "2006-01-02T15:04:05"
	naiveLayoutMinutes = "2006-01-02T15:04"
)

var (
	ErrInvalidDate  = errors.New("invalid calendar date")
	ErrInvalidClock = errors.New("invalid wall-clock time")
)

// Eastern зона портала по умолчанию: фиксированное смещение -05:00 без перехода на летнее время
var Eastern = NewZone("EST", -5*60)

// Zone гражданская зона, в которой живут все даты и время суток портала.
// Локальная зона процесса не используется нигде.
type Zone struct {
	loc *time.Location
}

// NewZone создаёт зону с фиксированным смещением в минутах относительно UTC
func NewZone(name string, offsetMinutes int) Zone {
	return Zone{loc: time.FixedZone(name, offsetMinutes*60)}
}

// Location возвращает *time.Location зоны
func (z Zone) Location() *time.Location {
	if z.loc == nil {
		return Eastern.loc
	}
	return z.loc
}

// In переводит момент времени в зону
func (z Zone) In(t time.Time) time.Time {
	return t.In(z.Location())
}

// DateKey возвращает "YYYY-MM-DD" для момента времени в гражданской зоне
func (z Zone) DateKey(t time.Time) string {
	return z.In(t).Format(DateLayout)
}

// WallClock возвращает время суток момента в гражданской зоне
func (z Zone) WallClock(t time.Time) Clock {
	local := z.In(t)
	return Clock{Hour: local.Hour(), Minute: local.Minute()}
}

// Combine собирает момент времени из ключа даты и времени суток.
// Combine(DateKey(x), WallClock(x)) == x для x, выровненного по минуте.
func (z Zone) Combine(dateKey string, hour, minute int) (time.Time, error) {
	day, err := z.ParseDate(dateKey)
	if err != nil {
		return time.Time{}, err
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return time.Time{}, fmt.Errorf("%w: %02d:%02d", ErrInvalidClock, hour, minute)
	}
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute), nil
}

// At то же, что Combine, но принимает Clock
func (z Zone) At(dateKey string, c Clock) (time.Time, error) {
	return z.Combine(dateKey, c.Hour, c.Minute)
}

// ParseDate разбирает "YYYY-MM-DD" в полночь этой даты в зоне
func (z Zone) ParseDate(dateKey string) (time.Time, error) {
	day, err := time.ParseInLocation(DateLayout, strings.TrimSpace(dateKey), z.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, dateKey)
	}
	return day, nil
}

// StartOfDay полночь календарного дня момента t
func (z Zone) StartOfDay(t time.Time) time.Time {
	local := z.In(t)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, z.Location())
}

// AddDays сдвигает ключ даты на n календарных дней
func (z Zone) AddDays(dateKey string, n int) (string, error) {
	day, err := z.ParseDate(dateKey)
	if err != nil {
		return "", err
	}
	return day.AddDate(0, 0, n).Format(DateLayout), nil
}

// Reinterpret читает значение из колонки timestamp without time zone:
// компоненты настенного времени берутся как есть и считаются временем в зоне,
// независимо от того, какую метку зоны вернул драйвер.
func (z Zone) Reinterpret(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), z.Location())
}

// Naive обратная к Reinterpret операция для записи в базу:
// настенное время в зоне, помеченное как UTC.
func (z Zone) Naive(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	local := z.In(t)
	return time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), local.Minute(), local.Second(), local.Nanosecond(), time.UTC)
}

// ParseInstant принимает RFC 3339 со смещением (абсолютный момент)
// или строку без смещения "YYYY-MM-DDTHH:MM[:SS]" (настенное время в зоне).
func (z Zone) ParseInstant(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return z.In(t), nil
	}
	for _, layout := range []string{naiveLayout, naiveLayoutMinutes} {
		if t, err := time.ParseInLocation(layout, s, z.Location()); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// Weekday день недели для ключа даты (воскресенье = 0)
func (z Zone) Weekday(dateKey string) (time.Weekday, error) {
	day, err := z.ParseDate(dateKey)
	if err != nil {
		return 0, err
	}
	return day.Weekday(), nil
}

// ValidDate проверяет формат ключа даты без привязки к зоне
func ValidDate(dateKey string) bool {
	_, err := time.Parse(DateLayout, dateKey)
	return err == nil
}
