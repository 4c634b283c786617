package handlers

import (
	"context"
	"time"

	"github.com/Freeeeeet/tutoring_portal/internal/civil"
	"github.com/Freeeeeet/tutoring_portal/internal/controller/state"
	"github.com/Freeeeeet/tutoring_portal/internal/model"
	"github.com/Freeeeeet/tutoring_portal/internal/service"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// Sender часть API бота, которую используют обработчики; *bot.Bot её реализует
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

type UserReader interface {
	GetByTelegramChatID(ctx context.Context, chatID int64) (*model.User, error)
	ListTutors(ctx context.Context) ([]*model.User, error)
}

type SlotReader interface {
	ComputeSlots(ctx context.Context, tutorID int64, date string, viewerID int64) ([]model.Slot, error)
}

type Booker interface {
	BookSlot(ctx context.Context, in service.BookSlotInput) (*model.SessionRecord, error)
}

type SessionReader interface {
	ListSessions(ctx context.Context, f service.SessionFilter) ([]*model.SessionRecord, error)
}

// Handlers содержит все зависимости для обработки команд
type Handlers struct {
	users        UserReader
	slots        SlotReader
	bookings     Booker
	sessions     SessionReader
	stateManager *state.Manager
	zone         civil.Zone
	portalURL    string
	logger       *zap.Logger
	now          func() time.Time
}

func NewHandlers(
	users UserReader,
	slots SlotReader,
	bookings Booker,
	sessions SessionReader,
	stateManager *state.Manager,
	zone civil.Zone,
	portalURL string,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		users:        users,
		slots:        slots,
		bookings:     bookings,
		sessions:     sessions,
		stateManager: stateManager,
		zone:         zone,
		portalURL:    portalURL,
		logger:       logger,
		now:          time.Now,
	}
}
