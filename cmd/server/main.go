package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/showtime-seat-booking/internal/cache"
	"github.com/iliyamo/showtime-seat-booking/internal/config"
	"github.com/iliyamo/showtime-seat-booking/internal/database"
	"github.com/iliyamo/showtime-seat-booking/internal/handler"
	"github.com/iliyamo/showtime-seat-booking/internal/logger"
	"github.com/iliyamo/showtime-seat-booking/internal/metrics"
	"github.com/iliyamo/showtime-seat-booking/internal/middleware"
	"github.com/iliyamo/showtime-seat-booking/internal/payment"
	"github.com/iliyamo/showtime-seat-booking/internal/ports"
	"github.com/iliyamo/showtime-seat-booking/internal/queue"
	"github.com/iliyamo/showtime-seat-booking/internal/repository"
	"github.com/iliyamo/showtime-seat-booking/internal/router"
	"github.com/iliyamo/showtime-seat-booking/internal/service"
	"github.com/iliyamo/showtime-seat-booking/internal/worker"
)

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Get().Fatal("invalid configuration", zap.Error(err))
	}
	log := logger.Init(cfg.IsProduction())
	defer func() { _ = logger.Sync() }()

	db, err := database.Open(database.Options{
		User:            cfg.DBUser,
		Password:        cfg.DBPass,
		Host:            cfg.DBHost,
		Port:            cfg.DBPort,
		Name:            cfg.DBName,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		log.Fatal("database unavailable", zap.Error(err))
	}
	defer db.Close()
	if cfg.DBMigrate {
		if err := database.Migrate(db.DB, cfg.DBName); err != nil {
			log.Fatal("migration failed", zap.Error(err))
		}
		log.Info("database migrations applied")
	}

	m := metrics.New()
	opts := []service.Option{
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithHoldWindow(cfg.HoldWindow),
		service.WithPaymentTimeout(cfg.Payment.Timeout),
		service.WithTicketQR(cfg.TicketQR),
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable, availability cache and rate limiting disabled")
	} else {
		defer rdb.Close()
	}
	if cc := config.LoadCacheConfig(); cc.Enabled && rdb != nil {
		opts = append(opts, service.WithCache(cache.NewAvailabilityCache(rdb, cc.TTL, cc.Prefix, log)))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.RabbitMQURL != "" {
		opts = append(opts, service.WithPublisher(queue.NewPublisher(cfg.RabbitMQURL, log)))
		if cfg.ConsumerEnabled {
			consumer := queue.NewConsumer(cfg.RabbitMQURL, log)
			go func() {
				if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("booking event consumer stopped", zap.Error(err))
				}
			}()
		}
	} else {
		log.Info("RABBITMQ_URL not set, booking events disabled")
	}

	store := repository.NewStore(db)
	gateway := newGateway(cfg.Payment)
	inventory := service.NewInventory(store, opts...)
	reservations := service.NewReservationManager(store, opts...)
	payments := service.NewPaymentOrchestrator(store, gateway, opts...)
	expirer := service.NewExpirer(store, opts...)
	query := service.NewBookingQuery(store, opts...)

	sweeper := worker.NewExpirySweeper(expirer, cfg.SweepInterval, cfg.SweepBatch, log, m)
	go sweeper.Start(ctx)

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = handler.ErrorHandler(log)
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(log))
	e.Use(middleware.Prometheus(m))
	e.Use(echomw.Recover())

	showtimes := handler.NewShowtimeHandler(inventory, query, log)
	router.RegisterRoutes(e, handler.NewHealthHandler(db), showtimes, handler.NewPaymentHandler(payments, log))
	router.RegisterAdmin(e, showtimes, cfg.JWTSecret)
	router.RegisterBookings(e,
		handler.NewBookingHandler(reservations, payments, query, log),
		cfg.JWTSecret,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log))

	go func() {
		addr := ":" + cfg.Port
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", zap.Error(err))
	}
	sweeper.Stop()
	log.Info("server stopped")
}

// newGateway returns the configured payment gateway.  The remote gateway
// still verifies callbacks with the VNPay secret.
func newGateway(cfg config.PaymentConfig) ports.PaymentGateway {
	vnpay := payment.NewVNPay(payment.VNPayConfig{
		TmnCode:    cfg.VNPayTmnCode,
		HashSecret: cfg.VNPayHashSecret,
		PayURL:     cfg.VNPayPayURL,
		ReturnURL:  cfg.VNPayReturnURL,
		Locale:     cfg.VNPayLocale,
	})
	if cfg.Provider == config.ProviderRemote {
		return payment.NewRemoteGateway(cfg.RemoteBaseURL, vnpay, cfg.Timeout)
	}
	return vnpay
}
