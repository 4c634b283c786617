package handlers

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Freeeeeet/tutoring_portal/internal/controller/state"
	"github.com/Freeeeeet/tutoring_portal/internal/model"
	"github.com/Freeeeeet/tutoring_portal/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

const maxListedSessions = 10

const helpText = "📚 Справка по командам:\n\n" +
	"/tutors - Список репетиторов\n" +
	"/slots <репетитор> <дата> - Свободные слоты репетитора на дату (YYYY-MM-DD, сегодня, завтра)\n" +
	"/slots - То же по шагам\n" +
	"/sessions - Мои ближайшие занятия\n" +
	"/cancel - Отменить текущий диалог\n" +
	"/help - Показать эту справку\n\n" +
	"Запись на слот делается кнопкой под списком слотов."

// HandleStart обрабатывает команду /start
func (h *Handlers) HandleStart(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.start(ctx, b, update)
}

func (h *Handlers) start(ctx context.Context, s Sender, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	user := h.viewer(ctx, chatID)
	if user == nil {
		h.sendMessage(ctx, s, chatID, "👋 Привет!\n\n"+h.notLinkedText(chatID)+"\n\n"+helpText)
		return
	}

	h.sendMessage(ctx, s, chatID, fmt.Sprintf(
		"👋 Привет, %s!\n\nВы вошли как %s.\n\n%s",
		user.Name, roleDisplay(user.Role), helpText,
	))
}

// HandleHelp обрабатывает команду /help
func (h *Handlers) HandleHelp(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update.Message == nil {
		return
	}
	h.sendMessage(ctx, b, update.Message.Chat.ID, helpText)
}

// HandleCancel обрабатывает команду /cancel - отмена текущего диалога
func (h *Handlers) HandleCancel(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.cancel(ctx, b, update)
}

func (h *Handlers) cancel(ctx context.Context, s Sender, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	if h.stateManager.GetState(chatID) == state.StateNone {
		h.sendMessage(ctx, s, chatID, "❌ Нет активных операций для отмены.")
		return
	}

	h.stateManager.ClearState(chatID)
	h.sendMessage(ctx, s, chatID, "✅ Операция отменена.\n\nИспользуйте /help для просмотра доступных команд.")
}

// HandleSessions обрабатывает команду /sessions
func (h *Handlers) HandleSessions(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.listSessions(ctx, b, update)
}

func (h *Handlers) listSessions(ctx context.Context, s Sender, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	user, ok := h.requireUser(ctx, s, chatID)
	if !ok {
		return
	}

	filter := service.SessionFilter{StudentID: user.ID}
	if user.IsTutor() {
		filter = service.SessionFilter{TutorID: user.ID}
	}

	list, err := h.sessions.ListSessions(ctx, filter)
	if err != nil {
		h.logger.Error("Failed to list sessions", zap.Int64("user_id", user.ID), zap.Error(err))
		h.sendMessage(ctx, s, chatID, errorMessage(err))
		return
	}

	h.sendMessage(ctx, s, chatID, h.formatUpcoming(list))
}

// formatUpcoming ближайшие забронированные занятия, не больше maxListedSessions
func (h *Handlers) formatUpcoming(list []*model.SessionRecord) string {
	now := h.now()

	var upcoming []*model.SessionRecord
	for _, rec := range list {
		if rec.IsBooked() && rec.EndTime.After(now) {
			upcoming = append(upcoming, rec)
		}
	}
	if len(upcoming) == 0 {
		return "📭 У вас нет предстоящих занятий.\n\nНайти свободное время: /slots"
	}

	sort.Slice(upcoming, func(i, j int) bool {
		return upcoming[i].StartTime.Before(upcoming[j].StartTime)
	})
	if len(upcoming) > maxListedSessions {
		upcoming = upcoming[:maxListedSessions]
	}

	var sb strings.Builder
	sb.WriteString("📅 Ближайшие занятия:\n")
	for _, rec := range upcoming {
		fmt.Fprintf(&sb, "\n#%d %s %s, %s",
			rec.ID,
			h.zone.DateKey(rec.StartTime),
			h.zone.WallClock(rec.StartTime).Display(),
			mediumDisplay(rec.Medium),
		)
		if rec.Course != "" {
			fmt.Fprintf(&sb, ", %s", rec.Course)
		}
	}
	return sb.String()
}

// HandleTutors обрабатывает команду /tutors
func (h *Handlers) HandleTutors(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.listTutors(ctx, b, update)
}

func (h *Handlers) listTutors(ctx context.Context, s Sender, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	tutors, err := h.users.ListTutors(ctx)
	if err != nil {
		h.logger.Error("Failed to list tutors", zap.Error(err))
		h.sendMessage(ctx, s, chatID, errorMessage(err))
		return
	}
	if len(tutors) == 0 {
		h.sendMessage(ctx, s, chatID, "📭 Репетиторов пока нет.")
		return
	}

	var sb strings.Builder
	sb.WriteString("👩‍🏫 Репетиторы:\n")
	for _, t := range tutors {
		fmt.Fprintf(&sb, "\n#%d %s", t.ID, t.Name)
	}
	sb.WriteString("\n\nСлоты: /slots <ID> <дата>")
	h.sendMessage(ctx, s, chatID, sb.String())
}

// HandleTextMessage обрабатывает текстовые сообщения в зависимости от состояния пользователя
func (h *Handlers) HandleTextMessage(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.text(ctx, b, update)
}

func (h *Handlers) text(ctx context.Context, s Sender, update *models.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}

	// Команды обрабатываются своими handlers
	if strings.HasPrefix(update.Message.Text, "/") {
		return
	}

	chatID := update.Message.Chat.ID
	switch current := h.stateManager.GetState(chatID); current {
	case state.StateSlotsTutor:
		h.onSlotsTutor(ctx, s, chatID, update.Message.Text)
	case state.StateSlotsDate:
		h.onSlotsDate(ctx, s, chatID, update.Message.Text)
	default:
		h.logger.Debug("No active state, ignoring message", zap.Int64("chat_id", chatID))
	}
}
