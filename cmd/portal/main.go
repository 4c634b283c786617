package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Freeeeeet/tutoring_portal/internal/app"
	"github.com/Freeeeeet/tutoring_portal/internal/cache"
	"github.com/Freeeeeet/tutoring_portal/internal/civil"
	"github.com/Freeeeeet/tutoring_portal/internal/config"
	"github.com/Freeeeeet/tutoring_portal/internal/controller"
	"github.com/Freeeeeet/tutoring_portal/internal/controller/rest"
	"github.com/Freeeeeet/tutoring_portal/internal/events"
	"github.com/Freeeeeet/tutoring_portal/internal/notify"
	"github.com/Freeeeeet/tutoring_portal/internal/repository"
	"github.com/Freeeeeet/tutoring_portal/internal/repository/base"
	"github.com/Freeeeeet/tutoring_portal/internal/service"
	"github.com/Freeeeeet/tutoring_portal/internal/tracing"
	"github.com/go-telegram/bot"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 20 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment, cfg.LogLevel)
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("Portal stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting tutoring portal",
		zap.String("environment", cfg.Environment),
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("civil_zone", cfg.CivilZoneName),
	)

	shutdownTracing, err := tracing.Setup(ctx, tracing.Config{
		Enabled:      cfg.OTelEnabled,
		ServiceName:  "tutoring-portal",
		OTLPEndpoint: cfg.OTelEndpoint,
		SampleRatio:  cfg.OTelSampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		tctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(tctx); err != nil {
			logger.Warn("Tracer shutdown failed", zap.Error(err))
		}
	}()

	// База и миграции
	pool, err := app.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	migrator, err := app.NewMigrator(pool, logger)
	if err != nil {
		return err
	}
	if err := migrator.Run(ctx); err != nil {
		return err
	}
	if err := migrator.Close(); err != nil {
		logger.Warn("Failed to close migrator", zap.Error(err))
	}

	zone := civil.NewZone(cfg.CivilZoneName, cfg.CivilZoneOffsetMinutes)

	db := base.NewRepository(pool)
	outboxRepo := repository.NewOutboxRepository(db)
	windowRepo := repository.NewAvailabilityRepository(db)
	sessionRepo := repository.NewSessionRepository(db, outboxRepo, zone)
	userRepo := repository.NewUserRepository(db)

	checks := map[string]rest.Check{"postgres": db.Ping}

	var slotCache cache.SlotCache = cache.Nop{}
	if cfg.RedisAddr != "" {
		redisCache, err := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SlotCacheTTL, logger)
		if err != nil {
			return err
		}
		defer redisCache.Close()
		slotCache = redisCache
		checks["redis"] = redisCache.Ping
	} else {
		logger.Warn("REDIS_ADDR not set, slot cache disabled")
	}

	// Уведомления
	var notifiers notify.Multi
	if cfg.SMTPHost != "" {
		sender := notify.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
		notifiers = append(notifiers, notify.NewEmailNotifier(sender, logger))
	} else {
		logger.Warn("SMTP_HOST not set, email notifications disabled")
	}

	var tg *bot.Bot
	if cfg.TelegramToken != "" {
		tg, err = bot.New(cfg.TelegramToken)
		if err != nil {
			return err
		}
		notifiers = append(notifiers, notify.NewTelegramNotifier(tg, cfg.TelegramAdminChat, logger))
	}

	users := service.NewUserService(userRepo, logger)
	availability := service.NewAvailabilityService(windowRepo, userRepo, slotCache, zone, logger)
	slotSvc := service.NewSlotService(windowRepo, sessionRepo, userRepo, slotCache, zone, logger)
	bookings := service.NewBookingService(windowRepo, sessionRepo, userRepo, slotCache, notifiers, zone, cfg.NotifyTimeout, logger)
	sessions := service.NewSessionService(sessionRepo, userRepo, slotCache, notifiers, zone, cfg.FrontendURL, logger)
	matching := service.NewMatchingService(windowRepo, sessionRepo, userRepo, logger)

	scheduler, err := app.NewScheduler(bookings, sessions, app.SchedulerConfig{
		MaterializeSpec:  cfg.MaterializeCron,
		MaterializeWeeks: cfg.MaterializeWeeks,
		FeedbackSpec:     cfg.FeedbackCron,
		Location:         zone.Location(),
	}, logger)
	if err != nil {
		return err
	}

	if cfg.KafkaBrokers != "" {
		checks["kafka"] = events.ReadyCheck(cfg.KafkaBrokers)
	}
	publisher := events.NewPublisher(outboxRepo, logger, events.PublisherConfig{
		Brokers:   cfg.KafkaBrokers,
		PollEvery: cfg.OutboxPollEvery,
		BatchSize: cfg.OutboxBatchSize,
	})

	server := rest.NewServer(rest.Services{
		Availability: availability,
		Slots:        slotSvc,
		Bookings:     bookings,
		Sessions:     sessions,
		Matching:     matching,
	}, rest.Config{
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
		Checks:      checks,
	}, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Listen(cfg.HTTPAddr)
	})
	g.Go(func() error {
		return publisher.Run(gctx)
	})
	if tg != nil {
		botController := controller.NewBotController(tg, controller.BotServices{
			Users:    users,
			Slots:    slotSvc,
			Bookings: bookings,
			Sessions: sessions,
		}, zone, cfg.FrontendURL, logger)
		if err := botController.RegisterHandlers(ctx); err != nil {
			logger.Warn("Bot commands were not registered", zap.Error(err))
		}
		g.Go(func() error {
			return botController.Start(gctx)
		})
	} else {
		logger.Warn("TELEGRAM_TOKEN not set, bot disabled")
	}

	scheduler.Start(gctx)

	// Остановка по сигналу или по ошибке любого компонента
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")

		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		scheduler.Stop(sctx)
		err := server.Shutdown(sctx)
		bookings.Wait()
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("Portal stopped")
	return nil
}
