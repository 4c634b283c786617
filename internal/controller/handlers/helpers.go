package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/Freeeeeet/tutoring_portal/internal/model"
	"github.com/Freeeeeet/tutoring_portal/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// sendMessage отправляет сообщение и логирует если не удалось
func (h *Handlers) sendMessage(ctx context.Context, s Sender, chatID int64, text string) {
	h.send(ctx, s, &bot.SendMessageParams{ChatID: chatID, Text: text})
}

func (h *Handlers) send(ctx context.Context, s Sender, params *bot.SendMessageParams) {
	if _, err := s.SendMessage(ctx, params); err != nil {
		h.logger.Error("Failed to send message",
			zap.Any("chat_id", params.ChatID),
			zap.Error(err),
		)
	}
}

// answer закрывает индикатор загрузки на кнопке
func (h *Handlers) answer(ctx context.Context, s Sender, q *models.CallbackQuery, text string) {
	_, err := s.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: q.ID,
		Text:            text,
	})
	if err != nil {
		h.logger.Warn("Failed to answer callback", zap.String("data", q.Data), zap.Error(err))
	}
}

// errorMessage пользовательский текст для ошибки сервиса
func errorMessage(err error) string {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		return "❌ " + ve.Error()
	case errors.Is(err, service.ErrConflict):
		return "❌ Этот слот уже занят, выберите другой"
	case errors.Is(err, service.ErrInvalidSlot):
		return "❌ Такого слота нет в расписании репетитора"
	case errors.Is(err, service.ErrNotFound):
		return "❌ Репетитор или окно не найдены"
	case errors.Is(err, service.ErrForbidden):
		return "❌ Нет доступа"
	default:
		return "❌ Произошла ошибка. Попробуйте позже."
	}
}

func (h *Handlers) notLinkedText(chatID int64) string {
	text := fmt.Sprintf(
		"🔗 Этот чат не привязан к аккаунту портала.\n\n"+
			"Укажите ID чата %d в профиле на сайте, чтобы получать уведомления и записываться через бота.",
		chatID,
	)
	if h.portalURL != "" {
		text += "\n\n🌐 " + h.portalURL + "/profile"
	}
	return text
}

func roleDisplay(r model.Role) string {
	switch r {
	case model.RoleTutor:
		return "репетитор"
	case model.RoleAdmin:
		return "администратор"
	default:
		return "ученик"
	}
}

func mediumDisplay(m model.SessionMedium) string {
	if m == model.MediumInPerson {
		return "очно"
	}
	return "онлайн"
}
