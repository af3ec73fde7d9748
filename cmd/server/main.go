package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appstock "github.com/stockcore/backend/internal/application/stock"
	"github.com/stockcore/backend/internal/infrastructure/cache"
	"github.com/stockcore/backend/internal/infrastructure/config"
	"github.com/stockcore/backend/internal/infrastructure/event"
	"github.com/stockcore/backend/internal/infrastructure/logger"
	"github.com/stockcore/backend/internal/infrastructure/persistence"
	"github.com/stockcore/backend/internal/infrastructure/scheduler"
	"github.com/stockcore/backend/internal/interfaces/http/handler"
	"github.com/stockcore/backend/internal/interfaces/http/middleware"
	"github.com/stockcore/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting server",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Connect to the database
	gormLogger := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLogger)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	// Repositories
	balanceRepo := persistence.NewGormBalanceRepository(db.DB)
	ledgerRepo := persistence.NewGormLedgerRepository(db.DB)
	locations := persistence.NewGormLocationDirectory(db.DB)
	txScope := persistence.NewGormTransactionScope(db.DB)

	// Event bus with post-commit domain event handlers
	eventBus := event.NewInMemoryEventBus(log)
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("failed to start event bus", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = eventBus.Stop(ctx)
	}()

	// Application services
	movementService := appstock.NewMovementService(txScope, locations, log)
	movementService.SetEventPublisher(eventBus)
	if cfg.Movement.MaxRetryAttempts > 0 {
		movementService.SetMaxAttempts(cfg.Movement.MaxRetryAttempts)
	}

	reservationService := appstock.NewReservationService(txScope, log)
	reservationService.SetEventPublisher(eventBus)
	if cfg.Movement.MaxRetryAttempts > 0 {
		reservationService.SetMaxAttempts(cfg.Movement.MaxRetryAttempts)
	}

	queryService := appstock.NewBalanceQueryService(balanceRepo, ledgerRepo, log)

	// Optional Redis-backed balance snapshot cache
	if cfg.Cache.Enabled {
		balanceCache, err := cache.NewRedisBalanceCache(cfg.Redis)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer func() { _ = balanceCache.Close() }()

		queryService.SetCache(balanceCache, cfg.Cache.BalanceTTL)

		invalidation := cache.NewBalanceInvalidationHandler(balanceCache, log)
		eventBus.Subscribe(invalidation, invalidation.EventTypes()...)
		log.Info("balance cache enabled", zap.Duration("ttl", cfg.Cache.BalanceTTL))
	}

	// Reservation expiry sweep
	if cfg.Reservation.SweepEnabled {
		expiryService := appstock.NewReservationExpiryService(txScope, log)
		expiryService.SetEventPublisher(eventBus)
		if cfg.Reservation.SweepBatch > 0 {
			expiryService.SetBatchSize(cfg.Reservation.SweepBatch)
		}

		sweeper := scheduler.NewReservationSweeper(
			scheduler.SweeperConfig{Interval: cfg.Reservation.SweepInterval},
			expiryService,
			log,
		)
		if err := sweeper.Start(context.Background()); err != nil {
			log.Fatal("failed to start reservation sweeper", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = sweeper.Stop(ctx)
		}()
	}

	// HTTP handlers
	movementHandler := handler.NewMovementHandler(movementService)
	reservationHandler := handler.NewReservationHandler(reservationService)
	balanceHandler := handler.NewBalanceHandler(queryService)
	systemHandler := handler.NewSystemHandler(db)

	// Gin engine
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("failed to set trusted proxies", zap.Error(err))
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.CORS())

	// Liveness probe outside the versioned API
	engine.GET("/healthz", systemHandler.Health)

	// Routes
	r := router.NewRouter(engine)
	r.Register(
		&router.StockAPI{
			Movements:    movementHandler,
			Reservations: reservationHandler,
			Balances:     balanceHandler,
		},
		&router.SystemAPI{System: systemHandler},
	)
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("forced shutdown", zap.Error(err))
	}
	log.Info("server stopped")
}
