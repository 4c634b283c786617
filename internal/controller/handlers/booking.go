package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Freeeeeet/tutoring_portal/internal/civil"
	"github.com/Freeeeeet/tutoring_portal/internal/model"
	"github.com/Freeeeeet/tutoring_portal/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// BookPrefix префикс callback кнопки бронирования: book:<tutor>:<window>:<date>:<index>
const BookPrefix = "book:"

var errBadCallback = errors.New("invalid callback format")

type bookCallback struct {
	TutorID  int64
	WindowID int64
	Date     string
	Index    int
}

func (c bookCallback) String() string {
	return fmt.Sprintf("%s%d:%d:%s:%d", BookPrefix, c.TutorID, c.WindowID, c.Date, c.Index)
}

func parseBookCallback(data string) (bookCallback, error) {
	parts := strings.Split(strings.TrimPrefix(data, BookPrefix), ":")
	if !strings.HasPrefix(data, BookPrefix) || len(parts) != 4 {
		return bookCallback{}, errBadCallback
	}

	tutorID, err1 := strconv.ParseInt(parts[0], 10, 64)
	windowID, err2 := strconv.ParseInt(parts[1], 10, 64)
	index, err3 := strconv.Atoi(parts[3])
	if err1 != nil || err2 != nil || err3 != nil || !civil.ValidDate(parts[2]) {
		return bookCallback{}, errBadCallback
	}

	return bookCallback{TutorID: tutorID, WindowID: windowID, Date: parts[2], Index: index}, nil
}

// HandleBookCallback бронирует слот по нажатию кнопки
func (h *Handlers) HandleBookCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.bookCallback(ctx, b, update)
}

func (h *Handlers) bookCallback(ctx context.Context, s Sender, update *models.Update) {
	q := update.CallbackQuery
	if q == nil {
		return
	}
	// Бронирование только из личного чата, его ID совпадает с ID пользователя
	chatID := q.From.ID

	cb, err := parseBookCallback(q.Data)
	if err != nil {
		h.logger.Warn("Bad booking callback", zap.String("data", q.Data))
		h.answer(ctx, s, q, "❌ Неверный формат данных")
		return
	}

	user, ok := h.requireUser(ctx, s, chatID)
	if !ok {
		h.answer(ctx, s, q, "")
		return
	}
	if user.Role != model.RoleStudent {
		h.answer(ctx, s, q, "❌ Записываться могут только ученики")
		return
	}

	index := cb.Index
	session, err := h.bookings.BookSlot(ctx, service.BookSlotInput{
		TutorID:   cb.TutorID,
		WindowID:  cb.WindowID,
		StudentID: user.ID,
		Date:      cb.Date,
		SlotIndex: &index,
	})
	if err != nil {
		h.logger.Info("Booking from bot rejected",
			zap.Int64("student_id", user.ID),
			zap.String("slot", q.Data),
			zap.Error(err),
		)
		h.answer(ctx, s, q, errorMessage(err))
		return
	}

	h.answer(ctx, s, q, "✅ Записано")
	h.sendMessage(ctx, s, chatID, fmt.Sprintf(
		"✅ Вы записаны на занятие #%d\n\n📅 %s %s, %s\n\nПриглашение придёт на почту.",
		session.ID,
		h.zone.DateKey(session.StartTime),
		h.zone.WallClock(session.StartTime).Display(),
		mediumDisplay(session.Medium),
	))
}
