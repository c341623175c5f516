package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Stripe   StripeConfig
	Booking  BookingConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         string
	Username     string
	Password     string
	Database     string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
}

type RedisConfig struct {
	Addr string
}

type KafkaConfig struct {
	Brokers  []string
	GroupID  string
	Topics   TopicConfig
	MockMode bool
	Enabled  bool
}

type TopicConfig struct {
	BookingCreated string
	BookingPaid    string
	BookingClosed  string
	PaymentEvents  string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

type BookingConfig struct {
	// HoldTTL is the window a pending booking retains its reservation.
	HoldTTL time.Duration
	// SweepInterval is how often the expiry sweeper scans for stale holds.
	SweepInterval time.Duration
	// VerifyMaxRetries bounds the exponential backoff around gateway verify.
	VerifyMaxRetries  int
	VerifyMaxInterval time.Duration
	// TicketCodeAttempts bounds regeneration on ticket code collisions.
	TicketCodeAttempts int
	// QRSecret keys the AES encryption of QR ticket payloads.
	QRSecret string
}

func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", ":8080"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			Username:     getEnv("DB_USERNAME", "booking_user"),
			Password:     getEnv("DB_PASSWORD", "booking_pass"),
			Database:     getEnv("DB_NAME", "bookingdb"),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 25),
			MaxLifetime:  time.Duration(getEnvInt("DB_MAX_LIFETIME_MINUTES", 5)) * time.Minute,
		},
		Redis: RedisConfig{
			Addr: getEnv("REDIS_ADDR", "localhost:6379"),
		},
		Kafka: KafkaConfig{
			Brokers:  []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			GroupID:  getEnv("KAFKA_GROUP_ID", "booking-service-group"),
			Enabled:  getEnvBool("KAFKA_ENABLED", true),
			MockMode: getEnvBool("KAFKA_MOCK_MODE", false),
			Topics: TopicConfig{
				BookingCreated: getEnv("KAFKA_TOPIC_BOOKING_CREATED", "booking-created"),
				BookingPaid:    getEnv("KAFKA_TOPIC_BOOKING_PAID", "booking-paid"),
				BookingClosed:  getEnv("KAFKA_TOPIC_BOOKING_CLOSED", "booking-closed"),
				PaymentEvents:  getEnv("KAFKA_TOPIC_PAYMENT_EVENTS", "payment-events"),
			},
		},
		Stripe: StripeConfig{
			SecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
			WebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
			SuccessURL:    getEnv("CHECKOUT_SUCCESS_URL", "http://localhost:3000/bookings/success"),
			CancelURL:     getEnv("CHECKOUT_CANCEL_URL", "http://localhost:3000/bookings/cancel"),
		},
		Booking: BookingConfig{
			HoldTTL:            time.Duration(getEnvInt("HOLD_TTL_MINUTES", 15)) * time.Minute,
			SweepInterval:      time.Duration(getEnvInt("SWEEP_INTERVAL_SECONDS", 60)) * time.Second,
			VerifyMaxRetries:   getEnvInt("VERIFY_MAX_RETRIES", 4),
			VerifyMaxInterval:  time.Duration(getEnvInt("VERIFY_MAX_INTERVAL_SECONDS", 10)) * time.Second,
			TicketCodeAttempts: getEnvInt("TICKET_CODE_ATTEMPTS", 5),
			QRSecret:           getEnv("QR_SECRET", "booking-qr-secret"),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
