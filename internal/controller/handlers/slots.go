package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Freeeeeet/tutoring_portal/internal/controller/keyboard"
	"github.com/Freeeeeet/tutoring_portal/internal/controller/state"
	"github.com/Freeeeeet/tutoring_portal/internal/model"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

const slotButtonsPerRow = 3

// HandleSlots обрабатывает /slots [репетитор] [дата]
func (h *Handlers) HandleSlots(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.slotsCommand(ctx, b, update)
}

func (h *Handlers) slotsCommand(ctx context.Context, s Sender, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID
	args := strings.Fields(update.Message.Text)[1:]

	if len(args) == 0 {
		h.stateManager.SetState(chatID, state.StateSlotsTutor)
		h.sendMessage(ctx, s, chatID, "👤 Введите ID репетитора (или /cancel):")
		return
	}

	tutorID, ok := parseTutorID(args[0])
	if !ok {
		h.sendMessage(ctx, s, chatID, "❌ ID репетитора должен быть положительным числом")
		return
	}

	if len(args) == 1 {
		h.stateManager.SetState(chatID, state.StateSlotsDate)
		h.stateManager.SetData(chatID, state.KeyTutorID, tutorID)
		h.sendMessage(ctx, s, chatID, datePrompt)
		return
	}

	date, ok := h.resolveDate(args[1])
	if !ok {
		h.sendMessage(ctx, s, chatID, "❌ Дата должна быть в формате YYYY-MM-DD")
		return
	}
	h.stateManager.ClearState(chatID)
	h.showSlots(ctx, s, chatID, tutorID, date)
}

const datePrompt = "📅 Введите дату (YYYY-MM-DD, сегодня или завтра):"

func (h *Handlers) onSlotsTutor(ctx context.Context, s Sender, chatID int64, text string) {
	tutorID, ok := parseTutorID(text)
	if !ok {
		h.sendMessage(ctx, s, chatID, "❌ ID репетитора должен быть положительным числом. Попробуйте ещё раз:")
		return
	}

	h.stateManager.SetData(chatID, state.KeyTutorID, tutorID)
	h.stateManager.SetState(chatID, state.StateSlotsDate)
	h.sendMessage(ctx, s, chatID, datePrompt)
}

func (h *Handlers) onSlotsDate(ctx context.Context, s Sender, chatID int64, text string) {
	tutorID, ok := h.stateManager.Int64(chatID, state.KeyTutorID)
	if !ok {
		h.stateManager.ClearState(chatID)
		h.sendMessage(ctx, s, chatID, "❌ Диалог устарел, начните заново: /slots")
		return
	}

	date, ok := h.resolveDate(text)
	if !ok {
		h.sendMessage(ctx, s, chatID, "❌ Дата должна быть в формате YYYY-MM-DD. Попробуйте ещё раз:")
		return
	}

	h.stateManager.ClearState(chatID)
	h.showSlots(ctx, s, chatID, tutorID, date)
}

func (h *Handlers) showSlots(ctx context.Context, s Sender, chatID, tutorID int64, date string) {
	var viewerID int64
	if user := h.viewer(ctx, chatID); user != nil {
		viewerID = user.ID
	}

	list, err := h.slots.ComputeSlots(ctx, tutorID, date, viewerID)
	if err != nil {
		h.logger.Info("Slots request rejected",
			zap.Int64("tutor_id", tutorID),
			zap.String("date", date),
			zap.Error(err),
		)
		h.sendMessage(ctx, s, chatID, errorMessage(err))
		return
	}

	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   formatSlots(tutorID, date, list),
	}
	if kb := slotKeyboard(tutorID, list); !kb.Empty() {
		params.ReplyMarkup = kb.Build()
	}
	h.send(ctx, s, params)
}

func formatSlots(tutorID int64, date string, list []model.Slot) string {
	if len(list) == 0 {
		return fmt.Sprintf("📭 У репетитора #%d нет слотов на %s", tutorID, date)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "🗓 Слоты репетитора #%d на %s:\n", tutorID, date)
	for _, slot := range list {
		fmt.Fprintf(&sb, "\n%s %s, %s", occupancyEmoji(slot.Occupancy), slot.DisplayTime, mediumDisplay(slot.Medium))
		if slot.Occupancy == model.OccupancyBookedByViewer {
			sb.WriteString(" (ваша запись)")
		}
	}
	return sb.String()
}

func occupancyEmoji(o model.Occupancy) string {
	switch o {
	case model.OccupancyAvailable:
		return "🟢"
	case model.OccupancyBookedByViewer:
		return "✅"
	case model.OccupancyBookedByOther:
		return "🔴"
	default:
		return "⚪️"
	}
}

// slotKeyboard кнопки только для свободных слотов
func slotKeyboard(tutorID int64, list []model.Slot) *keyboard.Builder {
	var buttons []models.InlineKeyboardButton
	for _, slot := range list {
		if slot.Occupancy != model.OccupancyAvailable || slot.WindowID == nil {
			continue
		}
		data := bookCallback{TutorID: tutorID, WindowID: *slot.WindowID, Date: slot.Date, Index: slot.Index}.String()
		buttons = append(buttons, keyboard.Button(slot.DisplayTime, data))
	}
	return keyboard.NewBuilder().Grid(slotButtonsPerRow, buttons...)
}

func parseTutorID(s string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return id, err == nil && id > 0
}

// resolveDate понимает YYYY-MM-DD, "сегодня" и "завтра" в зоне портала
func (h *Handlers) resolveDate(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	today := h.zone.DateKey(h.now())

	switch s {
	case "сегодня", "today":
		return today, true
	case "завтра", "tomorrow":
		next, err := h.zone.AddDays(today, 1)
		return next, err == nil
	}

	if _, err := h.zone.ParseDate(s); err != nil {
		return "", false
	}
	return s, true
}
