package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"ms-booking/internal/booking"
	"ms-booking/internal/booking/api"
	bookingdb "ms-booking/internal/booking/db"
	bookingredis "ms-booking/internal/booking/redis"
	"ms-booking/internal/config"
	"ms-booking/internal/coupon"
	coupondb "ms-booking/internal/coupon/db"
	"ms-booking/internal/database/migrations"
	"ms-booking/internal/inventory"
	inventorydb "ms-booking/internal/inventory/db"
	"ms-booking/internal/kafka"
	"ms-booking/internal/logger"
	"ms-booking/internal/payment"
	"ms-booking/internal/reconcile"
	"ms-booking/internal/sweeper"
	"ms-booking/internal/ticketcode"
	"ms-booking/internal/utils"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.NewLogger()
	defer log.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- PostgreSQL ---
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.Database.Username, cfg.Database.Password,
		cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	connector := pgdriver.NewConnector(pgdriver.WithDSN(dsn))
	sqldb := sql.OpenDB(connector)
	defer sqldb.Close()

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	if err := sqldb.Ping(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to connect to Postgres: %v", err))
	}
	bunDB := bun.NewDB(sqldb, pgdialect.New())

	runner := migrations.NewRunner(bunDB, migrations.DefaultOptions())
	if err := runner.Up(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}
	log.Info("DATABASE", "Connected and migrated")

	// --- Redis ---
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Failed to connect to Redis: %v", err))
	}

	// --- Kafka ---
	if cfg.Kafka.Enabled && !cfg.Kafka.MockMode {
		topics := []string{
			cfg.Kafka.Topics.BookingCreated,
			cfg.Kafka.Topics.BookingPaid,
			cfg.Kafka.Topics.BookingClosed,
			cfg.Kafka.Topics.PaymentEvents,
		}
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic bootstrap failed: %v", err))
		}
	}
	producer := kafka.NewProducer(cfg.Kafka, log)
	defer producer.Close()

	// --- Services ---
	gateway, err := payment.NewStripeGateway(cfg.Stripe, log)
	if err != nil {
		log.Fatal("STRIPE", fmt.Sprintf("Gateway init failed: %v", err))
	}

	invService := inventory.NewService(&inventorydb.DB{Bun: bunDB}, cfg.Booking.HoldTTL, log)
	couponService := coupon.NewService(&coupondb.DB{Bun: bunDB}, cfg.Booking.HoldTTL, log)
	lock := bookingredis.NewRedis(redisClient, log)

	bookingService := booking.NewService(
		&bookingdb.DB{Bun: bunDB},
		invService,
		couponService,
		gateway,
		ticketcode.NewGenerator(),
		lock,
		producer,
		cfg.Booking.HoldTTL,
		cfg.Booking.TicketCodeAttempts,
		log,
	)

	reconciler := reconcile.NewReconciler(
		bookingService, gateway,
		cfg.Booking.VerifyMaxRetries, cfg.Booking.VerifyMaxInterval,
		log,
	)

	// --- Background workers ---
	sweep := sweeper.NewSweeper(bookingService, cfg.Booking.SweepInterval, log)
	go sweep.Run(ctx)

	if cfg.Kafka.Enabled && !cfg.Kafka.MockMode {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.PaymentEvents, cfg.Kafka.GroupID, log)
		defer consumer.Close()
		go consumer.Start(ctx, func(reference string) {
			if _, err := reconciler.Reconcile(ctx, reference); err != nil {
				log.Warn("RECONCILE", fmt.Sprintf("Consumer-triggered reconcile of %s: %v", reference, err))
			}
		})
	}

	// --- Router ---
	handler := &api.Handler{
		Bookings:      bookingService,
		Coupons:       couponService,
		Reconciler:    reconciler,
		QR:            ticketcode.NewQRGenerator(cfg.Booking.QRSecret),
		WebhookSecret: cfg.Stripe.WebhookSecret,
		Logger:        log,
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(utils.SuccessResponse("ok", nil))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/bookings", handler.CreateBooking)
		r.Get("/bookings/{bookingID}", handler.GetBooking)
		r.Delete("/bookings/{bookingID}", handler.CancelBooking)
		r.Get("/bookings/{bookingID}/qr", handler.BookingQR)
		r.Post("/coupons/validate", handler.ValidateCoupon)
		r.Get("/payment/verify", handler.VerifyPayment)
		r.Post("/payment/webhook", handler.HandleWebhook)
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("SERVER", fmt.Sprintf("Booking service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("SERVER", "Shutdown signal received, cleaning up")
	cancel()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.WriteTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatal("SERVER", fmt.Sprintf("Server forced to shutdown: %v", err))
	}

	log.Info("SERVER", "Server exited gracefully")
}
