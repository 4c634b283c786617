package service

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/tutoring_portal/internal/model"
	"go.uber.org/zap"
)

// UserService чтение учётных записей. Сами записи создаёт внешний сервис онбординга.
type UserService struct {
	users  UserStore
	logger *zap.Logger
}

func NewUserService(users UserStore, logger *zap.Logger) *UserService {
	return &UserService{
		users:  users,
		logger: logger,
	}
}

// GetByID получает пользователя, ErrNotFound если его нет
func (s *UserService) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return getUser(ctx, s.users, id)
}

// GetByTelegramChatID пользователь, привязавший чат бота, nil если не найден
func (s *UserService) GetByTelegramChatID(ctx context.Context, chatID int64) (*model.User, error) {
	user, err := s.users.GetByTelegramChatID(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("get user by telegram chat: %w", err)
	}
	return user, nil
}

// ListTutors все репетиторы
func (s *UserService) ListTutors(ctx context.Context) ([]*model.User, error) {
	tutors, err := s.users.ListByRole(ctx, model.RoleTutor)
	if err != nil {
		return nil, fmt.Errorf("list tutors: %w", err)
	}
	return tutors, nil
}

func getUser(ctx context.Context, users UserStore, id int64) (*model.User, error) {
	user, err := users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, notFound("user %d", id)
	}
	return user, nil
}

// requireTutor ErrNotFound если пользователя нет или он не репетитор
func requireTutor(ctx context.Context, users UserStore, id int64) (*model.User, error) {
	user, err := users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get tutor: %w", err)
	}
	if !user.IsTutor() {
		return nil, notFound("tutor %d", id)
	}
	return user, nil
}

// requireStudent ErrNotFound если пользователя нет или он не студент
func requireStudent(ctx context.Context, users UserStore, id int64) (*model.User, error) {
	user, err := users.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	if !user.IsStudent() {
		return nil, notFound("student %d", id)
	}
	return user, nil
}
