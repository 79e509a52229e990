// Package main provides the entry point of the job alert service
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/jobboard-alerts/alerting"
	"github.com/amirphl/jobboard-alerts/app/handlers"
	"github.com/amirphl/jobboard-alerts/app/middleware"
	"github.com/amirphl/jobboard-alerts/app/router"
	"github.com/amirphl/jobboard-alerts/app/scheduler"
	"github.com/amirphl/jobboard-alerts/app/services"
	businessflow "github.com/amirphl/jobboard-alerts/business_flow"
	"github.com/amirphl/jobboard-alerts/config"
	"github.com/amirphl/jobboard-alerts/models"
	"github.com/amirphl/jobboard-alerts/repository"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// callSessionRetention bounds how long an abandoned IVR session is kept
const callSessionRetention = 24 * time.Hour

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting jobboard alerts service...")

	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	// Stop background workers in reverse start order
	for i := len(app.stopFuncs) - 1; i >= 0; i-- {
		app.stopFuncs[i]()
	}

	log.Println("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	gormCfg := &gorm.Config{}
	if cfg.SlowQueryLog {
		gormCfg.Logger = gormlogger.New(log.Default(), gormlogger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		})
	}

	db, err := gorm.Open(postgres.Open(dsn), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := db.AutoMigrate(models.All()...); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the redis client and verifies connectivity.
// It returns nil when the cache is disabled.
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established to %s (db=%d)", cfg.RedisURL, cfg.RedisDB)
	return rc, nil
}

// startCacheHealthMonitor periodically pings redis and logs failures.
// The returned func stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// initializeChannelRouter registers one sender per delivery channel
func initializeChannelRouter(
	cfg *config.ProductionConfig,
	records repository.ChannelSendRecordRepository,
	notifications repository.SiteNotificationRepository,
	limiter alerting.VolumeLimiter,
	loc *time.Location,
	logger *log.Logger,
) *scheduler.ChannelRouter {
	var emailTransport scheduler.EmailTransport
	switch cfg.Email.Provider {
	case "smtp":
		emailTransport = services.NewSMTPEmailTransport(&cfg.Email)
	default:
		emailTransport = services.NewMockEmailTransport()
	}

	var messagingClient scheduler.MessagingClient
	switch cfg.Messaging.Provider {
	case "http":
		messagingClient = services.NewHTTPMessagingClient(&cfg.Messaging)
	default:
		messagingClient = services.NewMockMessagingClient()
	}

	var phoneClient scheduler.PhoneListClient
	switch cfg.Phone.Provider {
	case "http":
		phoneClient = services.NewHTTPPhoneListClient(&cfg.Phone)
	default:
		phoneClient = services.NewMockPhoneListClient()
	}

	r := scheduler.NewChannelRouter(records, limiter, loc, logger)
	r.Register(scheduler.NewSiteSender(notifications))
	r.Register(scheduler.NewEmailSender(emailTransport))
	r.Register(scheduler.NewMessagingSender(messagingClient))
	r.Register(scheduler.NewPhoneSender(phoneClient))

	log.Printf("Channel senders initialized (email=%s, messaging=%s, phone=%s)",
		cfg.Email.Provider, cfg.Messaging.Provider, cfg.Phone.Provider)
	return r
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	loc, err := time.LoadLocation(cfg.Alerts.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid ALERTS_TIMEZONE %q: %w", cfg.Alerts.Timezone, err)
	}

	schedLogger, closeLogger := scheduler.NewSchedulerLogger(cfg.Logging)
	stopFuncs = append(stopFuncs, closeLogger)

	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		stopFuncs = append(stopFuncs, func() { _ = rc.Close() })
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, 30*time.Second))
	}

	// Repositories
	jobRepo := repository.NewJobRepository(db)
	alertRepo := repository.NewAlertPreferenceRepository(db)
	recordRepo := repository.NewChannelSendRecordRepository(db)
	notificationRepo := repository.NewSiteNotificationRepository(db)
	settingsRepo := repository.NewAlertSettingsRepository(db)
	callSessionRepo := repository.NewCallSessionRepository(db)

	settingsLoader := scheduler.NewSettingsLoader(settingsRepo, scheduler.DefaultSettings(cfg.Alerts), schedLogger)

	var limiter alerting.VolumeLimiter
	if rc != nil {
		limiter = scheduler.NewRedisVolumeLimiter(rc, cfg.Alerts.RedisPrefix, scheduler.SettingsCap(settingsLoader))
	} else {
		// Nothing is dispatched without redis; the counters only back the admin stats
		limiter = alerting.NewMemoryVolumeLimiter(scheduler.SettingsCap(settingsLoader))
		log.Println("Redis disabled: volume counters are kept in memory")
	}

	channelRouter := initializeChannelRouter(cfg, recordRepo, notificationRepo, limiter, loc, schedLogger)

	// The matching engine keeps its pending state in redis. Without it jobs and
	// alerts are still stored but nothing is matched or delivered.
	var (
		dispatcher *scheduler.DispatchScheduler
		scanner    *scheduler.AlertScanner

		alertScan   businessflow.AlertScanHook
		jobScan     businessflow.JobScanHook
		pending     businessflow.PendingDiscarder
		dispatchCtl businessflow.DispatchControl
	)
	if rc != nil {
		store := scheduler.NewDispatchStore(rc, cfg.Alerts.RedisPrefix, cfg.Alerts.MatchTTL)
		dispatcher = scheduler.NewDispatchScheduler(
			alertRepo,
			jobRepo,
			recordRepo,
			store,
			channelRouter,
			settingsLoader,
			loc,
			time.Weekday(cfg.Alerts.WeeklyDigestDay),
			schedLogger,
		)
		scanner = scheduler.NewAlertScanner(
			alertRepo,
			jobRepo,
			store,
			dispatcher,
			cfg.Alerts.ScanWorkers,
			cfg.Alerts.SweepLookback,
			schedLogger,
		)
		alertScan, jobScan, pending, dispatchCtl = scanner, scanner, dispatcher, dispatcher
	} else {
		log.Println("Redis disabled: alert matching and dispatch are off")
	}

	// IVR sessions
	var (
		callSessions services.CallSessionStore
		extraJobs    []scheduler.CronJob
	)
	switch {
	case cfg.Phone.SessionBackend == "redis" && rc != nil:
		callSessions = services.NewRedisCallSessionStore(rc, cfg.Cache.RedisPrefix, callSessionRetention)
	default:
		gormSessions := services.NewGormCallSessionStore(callSessionRepo)
		callSessions = gormSessions
		extraJobs = append(extraJobs, scheduler.CronJob{
			Name: "prune-call-sessions",
			Spec: "@every 1h",
			Run: func(ctx context.Context) error {
				n, err := gormSessions.Prune(ctx, callSessionRetention)
				if err == nil && n > 0 {
					schedLogger.Printf("scheduler: pruned %d call sessions", n)
				}
				return err
			},
		})
	}

	var runner *scheduler.Runner
	switch {
	case cfg.Alerts.SchedulerEnabled && dispatcher != nil:
		// The sweep period is read once; changing it in the admin settings takes effect on restart
		sweepEvery := time.Duration(settingsLoader.Current(context.Background()).CheckFrequencyMinutes) * time.Minute
		runner = scheduler.NewRunner(dispatcher, scanner, cfg.Alerts.TickSpec, sweepEvery, schedLogger, extraJobs...)
	case len(extraJobs) > 0:
		runner = scheduler.NewRunner(nil, nil, "", 0, schedLogger, extraJobs...)
	}
	if runner != nil {
		stopRunner, err := runner.Start(context.Background())
		if err != nil {
			return nil, fmt.Errorf("failed to start alert scheduler: %w", err)
		}
		stopFuncs = append(stopFuncs, stopRunner)
	}
	if dispatcher != nil {
		// drains immediate releases started by requests; runs before the runner stops
		stopFuncs = append(stopFuncs, dispatcher.Wait)
	}

	tokenService, err := services.NewTokenService(cfg.JWT)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	// Flows
	alertFlow := businessflow.NewAlertFlow(alertRepo, alertScan, pending)
	jobFlow := businessflow.NewJobFlow(jobRepo, jobScan)
	notificationFlow := businessflow.NewSiteNotificationFlow(notificationRepo)
	alertAdminFlow := businessflow.NewAlertAdminFlow(recordRepo, settingsRepo, jobRepo, settingsLoader, dispatchCtl, limiter, loc)
	ivrFlow := businessflow.NewIVRFlow(callSessions, alertRepo, recordRepo, jobRepo, pending, cfg.Phone.SessionTimeout)

	// Handlers
	alertHandler := handlers.NewAlertHandler(alertFlow)
	jobHandler := handlers.NewJobHandler(jobFlow)
	notificationHandler := handlers.NewNotificationHandler(notificationFlow)
	alertAdminHandler := handlers.NewAlertAdminHandler(alertAdminFlow)
	ivrHandler := handlers.NewIVRHandler(ivrFlow)

	authMiddleware := middleware.NewAuthMiddleware(tokenService, cfg.JWT.AdminRole)

	healthChecks := map[string]router.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if rc != nil {
		healthChecks["redis"] = func(ctx context.Context) error {
			return rc.Ping(ctx).Err()
		}
	}

	appRouter := router.NewFiberRouter(
		cfg,
		alertHandler,
		jobHandler,
		notificationHandler,
		alertAdminHandler,
		ivrHandler,
		authMiddleware,
		healthChecks,
	)

	fiberRouter := appRouter.(*router.FiberRouter)
	return &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}, nil
}
