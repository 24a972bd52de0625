package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/streadway/amqp"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/internal/catalog"
	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/internal/config"
	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/internal/consumer"
	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/internal/repository"
	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/internal/routes"
	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/internal/services"
	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/pkg/logger"
	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/pkg/metrics"
	"github.com/CyberwizD/Distributed-Notification-System/services/streak_service/pkg/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logr := logger.New(cfg.LogLevel, cfg.LogFormat)
	logr.Info("starting streak service", slog.String("app", cfg.AppName))

	loc, err := cfg.Location()
	if err != nil {
		logr.Error("invalid timezone", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		logr.Error("failed to connect database", slog.Any("error", err))
		os.Exit(1)
	}

	prefStore := repository.NewPreferenceStore(db, cfg.PreferencesTable)
	statusStore := repository.NewStatusStore(db, cfg.DeliveriesTable)
	for _, m := range []interface{ Migrate() error }{prefStore, statusStore} {
		if err := m.Migrate(); err != nil {
			logr.Error("failed to migrate database", slog.Any("error", err))
			os.Exit(1)
		}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	redisRepo := repository.NewRedisRepository(rdb, 24*time.Hour)
	defer redisRepo.Close()

	metricsCollector := metrics.New("streak_service")
	content := catalog.Load(cfg.CatalogDir, logr)

	sessions := services.NewSessions(services.NewSessionFactory(services.SessionDeps{
		Centers: func(deviceID string) services.NotificationCenter {
			return redisRepo.Center(deviceID)
		},
		Preferences: func(deviceID string) services.PreferenceStore {
			return prefStore.ForDevice(deviceID)
		},
		Catalog: content,
		Scheduler: services.SchedulerConfig{
			QuizCount:         cfg.QuizCount,
			QuizStartHour:     cfg.QuizStartHour,
			QuizEndHour:       cfg.QuizEndHour,
			QuizFallbackTitle: cfg.QuizFallbackTitle,
			StreakFireOffset:  cfg.StreakFireOffset,
		},
		CelebrationSettleDelay: cfg.CelebrationSettleDelay,
		Location:               loc,
		Metrics:                metricsCollector,
		Logger:                 logr,
	}))

	fcmProvider := services.NewFCMProvider(cfg.FCMServerKey, cfg.FCMEndpoint, cfg.ProviderTimeout, logr)
	presenter := services.NewPushPresenter(redisRepo, fcmProvider, logr)
	dispatcher := services.NewTapDispatcher(sessions, redisRepo, content, presenter, metricsCollector, logr, cfg.TapSettleDelay)

	retryCfg := retry.Config{
		MaxAttempts:    cfg.RetryMaxAttempts,
		InitialBackoff: cfg.RetryInitialBackoff,
		MaxBackoff:     cfg.RetryMaxBackoff,
	}
	worker := services.NewDeliveryWorker(
		redisRepo,
		redisRepo,
		fcmProvider,
		services.NewStatusUpdater(statusStore, logr),
		metricsCollector,
		logr,
		retryCfg,
		cfg.DeliveryPollInterval,
		cfg.DeliveryBatch,
	)

	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		logr.Error("failed to connect rabbitmq", slog.Any("error", err))
		os.Exit(1)
	}
	defer conn.Close()

	base := consumer.NewBaseConsumer(
		conn,
		cfg.TapQueue,
		cfg.DeadLetterQueue,
		cfg.TapRoutingKey,
		cfg.PrefetchCount,
		cfg.WorkerCount,
		logr,
	)
	tapConsumer := consumer.NewTapConsumer(base, dispatcher, logr, cfg.MaxDeliveries, cfg.LaunchSettleDelay)
	tapConsumer.Permanent = consumer.IsPermanent(services.ErrInvalidTap)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handlers := routes.NewHandlers(sessions, redisRepo, logr, cfg.PermissionWaitTimeout)
	httpSrv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: routes.NewRouter(handlers, metricsCollector, time.Now()),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logr.Info("http server listening", slog.String("addr", httpSrv.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownHTTP(httpSrv, logr)
		return nil
	})
	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		return sessions.Run(gctx, cfg.SessionSweepInterval, cfg.SessionIdleTTL, logr)
	})
	g.Go(func() error {
		return tapConsumer.Start(gctx)
	})

	if err := g.Wait(); err != nil {
		logr.Error("streak service exited", slog.Any("error", err))
	}
	logr.Info("streak service stopped", slog.Int("sessions", sessions.Len()))
}

func shutdownHTTP(srv *http.Server, logr *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("failed to shutdown http server", slog.Any("error", err))
	}
}
