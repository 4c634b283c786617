package rest

import (
	"context"
	"time"

	"github.com/Freeeeeet/tutoring_portal/internal/model"
	"github.com/Freeeeeet/tutoring_portal/internal/service"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
)

// Сервисы, которые использует HTTP слой

type AvailabilityAPI interface {
	CreateAvailability(ctx context.Context, in service.CreateAvailabilityInput) (*model.AvailabilityWindow, error)
	ListAvailability(ctx context.Context, tutorID int64) ([]*model.AvailabilityWindow, error)
	Summary(ctx context.Context, tutorID int64, from, to string) ([]*model.AvailabilityWindow, error)
}

type SlotAPI interface {
	ComputeSlots(ctx context.Context, tutorID int64, date string, viewerID int64) ([]model.Slot, error)
	ComputeRange(ctx context.Context, tutorID int64, from, to string, viewerID int64) ([]model.DaySlots, error)
}

type BookingAPI interface {
	BookSlot(ctx context.Context, in service.BookSlotInput) (*model.SessionRecord, error)
}

type SessionAPI interface {
	ListSessions(ctx context.Context, f service.SessionFilter) ([]*model.SessionRecord, error)
	GetSession(ctx context.Context, id int64) (*model.SessionRecord, error)
	LogAttendance(ctx context.Context, tutorID, sessionID int64, in service.AttendanceInput) (*model.SessionRecord, error)
	RateSession(ctx context.Context, studentID, sessionID int64, rating float64, comment string) (*model.SessionRecord, error)
}

type MatchingAPI interface {
	Recommend(ctx context.Context, studentID int64, prefs service.MatchPreferences, limit int) ([]service.TutorMatch, error)
}

// Check проверка зависимости для /readyz
type Check func(ctx context.Context) error

type Services struct {
	Availability AvailabilityAPI
	Slots        SlotAPI
	Bookings     BookingAPI
	Sessions     SessionAPI
	Matching     MatchingAPI
}

type Config struct {
	JWTSecret   string
	CORSOrigins string
	Checks      map[string]Check
}

// Server HTTP API портала
type Server struct {
	app      *fiber.App
	svc      Services
	cfg      Config
	validate *validator.Validate
	logger   *zap.Logger
}

func NewServer(svc Services, cfg Config, logger *zap.Logger) *Server {
	if cfg.CORSOrigins == "" {
		cfg.CORSOrigins = "*"
	}

	s := &Server{
		svc:      svc,
		cfg:      cfg,
		validate: newValidator(),
		logger:   logger,
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "tutoring-portal",
		ReadTimeout:           15 * time.Second,
		WriteTimeout:          15 * time.Second,
		IdleTimeout:           60 * time.Second,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})

	s.app.Use(recover.New())
	s.app.Use(requestid.New())
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, OPTIONS",
		MaxAge:       86400,
	}))
	s.app.Use(s.observe)

	s.routes()

	return s
}

func (s *Server) routes() {
	s.app.Get("/healthz", s.healthz)
	s.app.Get("/readyz", s.readyz)
	s.app.Get("/metrics", metricsHandler())

	api := s.app.Group("/api")

	// Просмотр доступен без входа, токен если есть задаёт смотрящего
	public := api.Group("/tutors/:tutorId", s.optionalAuth())
	public.Get("/availability", s.listAvailability)
	public.Get("/slots", s.computeSlots)

	auth := s.requireAuth()
	api.Post("/tutors/:tutorId/bookings", auth, requireRole(model.RoleStudent, model.RoleAdmin), s.bookSlot)
	api.Post("/availability", auth, requireRole(model.RoleTutor, model.RoleAdmin), s.createAvailability)

	sessions := api.Group("/sessions", auth)
	sessions.Get("", s.listSessions)
	sessions.Get("/:id", s.getSession)
	sessions.Put("/:id/attendance", requireRole(model.RoleTutor), s.logAttendance)
	sessions.Put("/:id/rating", requireRole(model.RoleStudent), s.rateSession)

	api.Get("/matching/recommend", auth, requireRole(model.RoleStudent), s.recommend)
}

// App для тестов через app.Test
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen блокирует до остановки сервера
func (s *Server) Listen(addr string) error {
	s.logger.Info("HTTP server listening", zap.String("addr", addr))
	return s.app.Listen(addr)
}

// Shutdown дожидается текущих запросов
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
