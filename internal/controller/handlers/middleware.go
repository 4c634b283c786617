package handlers

import (
	"context"

	"github.com/Freeeeeet/tutoring_portal/internal/model"
	"go.uber.org/zap"
)

// requireUser ищет пользователя по чату. Чат привязывается в профиле портала,
// без привязки команды с личными данными недоступны.
func (h *Handlers) requireUser(ctx context.Context, s Sender, chatID int64) (*model.User, bool) {
	user, err := h.users.GetByTelegramChatID(ctx, chatID)
	if err != nil {
		h.logger.Error("Failed to get user by chat", zap.Int64("chat_id", chatID), zap.Error(err))
		h.sendMessage(ctx, s, chatID, "❌ Произошла ошибка. Попробуйте позже.")
		return nil, false
	}

	if user == nil {
		h.sendMessage(ctx, s, chatID, h.notLinkedText(chatID))
		return nil, false
	}

	return user, true
}

// viewer пользователь чата или nil; ошибки только логируются
func (h *Handlers) viewer(ctx context.Context, chatID int64) *model.User {
	user, err := h.users.GetByTelegramChatID(ctx, chatID)
	if err != nil {
		h.logger.Warn("Failed to resolve viewer", zap.Int64("chat_id", chatID), zap.Error(err))
		return nil
	}
	return user
}
