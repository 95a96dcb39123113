package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Freeeeeet/session_booking/internal/app"
	"github.com/Freeeeeet/session_booking/internal/availability"
	"github.com/Freeeeeet/session_booking/internal/calendar"
	"github.com/Freeeeeet/session_booking/internal/config"
	"github.com/Freeeeeet/session_booking/internal/controller/api"
	"github.com/Freeeeeet/session_booking/internal/controller/telegram"
	"github.com/Freeeeeet/session_booking/internal/events"
	"github.com/Freeeeeet/session_booking/internal/holidays"
	"github.com/Freeeeeet/session_booking/internal/lock"
	"github.com/Freeeeeet/session_booking/internal/migrations"
	"github.com/Freeeeeet/session_booking/internal/notify"
	"github.com/Freeeeeet/session_booking/internal/repository"
	"github.com/Freeeeeet/session_booking/internal/repository/base"
	"github.com/Freeeeeet/session_booking/internal/service"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, fromFile, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := app.NewLogger(app.LoggerConfig{Environment: cfg.Environment, Level: cfg.LogLevel})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting booking service",
		zap.String("environment", cfg.Environment),
		zap.Bool("dotenv", fromFile),
		zap.String("http_addr", cfg.HTTPAddr),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Service stopped with error", zap.Error(err))
	}
	logger.Info("Service stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	shutdownTracing, err := app.SetupTracing(ctx, app.TracingConfig{
		Enabled:      cfg.OTelEnabled,
		OTLPEndpoint: cfg.OTelEndpoint,
		SampleRatio:  cfg.OTelSamplingRate,
	})
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("Failed to flush traces", zap.Error(err))
		}
	}()

	pool, err := app.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer pool.Close()
	storageLog := app.Component(logger, app.ComponentStorage)
	storageLog.Info("Connected to database")

	migrator, err := app.NewMigrator(pool, migrations.FS, storageLog)
	if err != nil {
		return err
	}
	if err := migrator.Run(ctx); err != nil {
		migrator.Close()
		return err
	}
	migrator.Close()

	var rdb *redis.Client
	if cfg.RedisEnabled() {
		rdb, err = app.NewRedis(ctx, app.RedisConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			return err
		}
		defer rdb.Close()
		storageLog.Info("Connected to redis", zap.String("addr", cfg.RedisAddr))
	} else {
		storageLog.Warn("REDIS_ADDR not set, free/busy cache and slot holds are disabled")
	}

	eventsLog := app.Component(logger, app.ComponentEvents)
	var publisher events.Publisher = events.Noop{}
	if cfg.KafkaEnabled() {
		kp := events.NewKafkaPublisher(cfg.KafkaBrokers, eventsLog)
		defer kp.Close()
		publisher = kp
		eventsLog.Info("Publishing booking events to kafka", zap.Strings("brokers", cfg.KafkaBrokers))
	} else {
		eventsLog.Warn("KAFKA_BROKERS not set, booking events are dropped")
	}

	botLog := app.Component(logger, app.ComponentBot)
	var (
		tgBot    *bot.Bot
		notifier notify.Notifier = notify.Noop{}
	)
	if cfg.TelegramEnabled() {
		tgBot, err = bot.New(cfg.TelegramToken)
		if err != nil {
			return fmt.Errorf("create telegram bot: %w", err)
		}
		notifier = notify.NewTelegramNotifier(tgBot, cfg.TelegramAdminChatID, botLog)
	} else {
		botLog.Warn("TELEGRAM_TOKEN or TELEGRAM_ADMIN_CHAT_ID not set, admin bot is disabled")
	}

	calendarLog := app.Component(logger, app.ComponentCalendar)
	var gateway calendar.Gateway = calendar.Disabled{}
	graphCfg := calendar.GraphConfig{
		TenantID:     cfg.GraphTenantID,
		ClientID:     cfg.GraphClientID,
		ClientSecret: cfg.GraphClientSecret,
		CalendarUser: cfg.GraphCalendarUser,
	}
	if graphCfg.Enabled() {
		gateway = calendar.NewGraphGateway(graphCfg, calendarLog)
		if rdb != nil {
			gateway = calendar.NewCachedGateway(gateway, rdb, cfg.FreeBusyCacheTTL, calendarLog)
		}
		calendarLog.Info("External calendar enabled", zap.String("user", cfg.GraphCalendarUser))
	} else {
		calendarLog.Warn("Graph credentials not set, external calendar busy time is ignored")
	}

	bookingLog := app.Component(logger, app.ComponentBooking)
	var holds service.SlotHolder = lock.Noop{}
	if rdb != nil {
		holds = lock.NewSlotLocker(rdb, cfg.SlotHoldTTL, bookingLog)
	}

	// Repositories
	baseRepo := base.NewRepository(pool)
	settingsRepo := repository.NewSettingsRepository(baseRepo, storageLog)
	overrideRepo := repository.NewOverrideRepository(baseRepo)
	bookingRepo := repository.NewBookingRepository(baseRepo)
	creditRepo := repository.NewCreditRepository(baseRepo)

	// Services
	holidayCalendar := holidays.New()
	engine := availability.NewEngine(settingsRepo, overrideRepo, bookingRepo, gateway, app.Component(logger, app.ComponentAvailability),
		availability.WithCalendarTimeout(cfg.CalendarTimeout),
	)
	bookingService := service.NewBookingService(baseRepo, bookingRepo, creditRepo, settingsRepo, engine, holds, publisher, notifier, bookingLog)
	overrideService := service.NewOverrideService(overrideRepo, bookingLog)
	settingsService := service.NewSettingsService(settingsRepo, bookingLog)
	schedulerLog := app.Component(logger, app.ComponentScheduler)
	reminderService := service.NewReminderService(bookingRepo, holidayCalendar, publisher, schedulerLog)

	apiLog := app.Component(logger, app.ComponentAPI)
	handler := api.NewHandler(engine, bookingService, overrideService, settingsService, holidayCalendar, cfg.AdminAPIKey, apiLog)
	if cfg.AdminAPIKey == "" {
		apiLog.Warn("ADMIN_API_KEY not set, admin routes are closed")
	}
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       time.Minute,
	}

	scheduler := app.NewScheduler(reminderService, cfg.ReminderInterval, schedulerLog)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		apiLog.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		apiLog.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if tgBot != nil {
		controller := telegram.NewBotController(tgBot, engine, bookingRepo, holidayCalendar, cfg.TelegramAdminChatID, botLog)
		if err := controller.RegisterHandlers(gctx); err != nil {
			botLog.Warn("Bot command menu not set", zap.Error(err))
		}
		g.Go(func() error {
			controller.Start(gctx)
			return nil
		})
	}

	scheduler.Start(gctx)
	g.Go(func() error {
		<-gctx.Done()
		scheduler.Stop()
		return nil
	})

	return g.Wait()
}
