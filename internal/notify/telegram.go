package notify

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// MessageSender подмножество *bot.Bot, нужное для уведомлений
type MessageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

// TelegramNotifier пишет в админский чат и в личный чат репетитора, если он привязан
type TelegramNotifier struct {
	bot       MessageSender
	adminChat int64
	logger    *zap.Logger
}

func NewTelegramNotifier(b MessageSender, adminChat int64, logger *zap.Logger) *TelegramNotifier {
	return &TelegramNotifier{bot: b, adminChat: adminChat, logger: logger}
}

func (n *TelegramNotifier) SessionBooked(ctx context.Context, b Booking) error {
	start := b.Zone.In(b.Session.StartTime)
	text := fmt.Sprintf(
		"📅 <b>New booking</b>\n\nStudent: %s\nTutor: %s\nCourse: %s\nWhen: %s %s\nType: %s",
		html.EscapeString(displayName(b.Student)),
		html.EscapeString(displayName(b.Tutor)),
		html.EscapeString(courseOrDefault(b.Session.Course)),
		start.Format("Mon, Jan 02"),
		b.Zone.WallClock(start).Display(),
		mediumDisplay(b.Session.Medium),
	)

	chats := n.chats(b.Tutor.TelegramChatIDOrZero())
	return n.send(ctx, chats, text)
}

func (n *TelegramNotifier) FeedbackRequested(ctx context.Context, r FeedbackRequest) error {
	if r.Student == nil || r.Student.TelegramChatID == nil {
		return nil
	}
	text := fmt.Sprintf(
		"How was your session with %s? Leave feedback: %s",
		html.EscapeString(displayName(r.Tutor)),
		r.Link,
	)
	return n.send(ctx, []int64{*r.Student.TelegramChatID}, text)
}

func (n *TelegramNotifier) chats(extra int64) []int64 {
	var chats []int64
	if n.adminChat != 0 {
		chats = append(chats, n.adminChat)
	}
	if extra != 0 && extra != n.adminChat {
		chats = append(chats, extra)
	}
	return chats
}

func (n *TelegramNotifier) send(ctx context.Context, chats []int64, text string) error {
	var errs []string
	for _, chatID := range chats {
		_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    chatID,
			Text:      text,
			ParseMode: models.ParseModeHTML,
		})
		if err != nil {
			n.logger.Warn("Failed to send telegram message", zap.Int64("chat_id", chatID), zap.Error(err))
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("telegram notification: %s", strings.Join(errs, "; "))
	}
	return nil
}
