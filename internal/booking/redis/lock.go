package redis

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"ms-booking/internal/logger"

	"github.com/go-redis/redis/v8"
)

// Redis guards against double-submitted booking requests: one in-flight
// create per tier+buyer. The TTL is only a safety net; the orchestrator
// releases the lock when the create finishes either way.
type Redis struct {
	Client *redis.Client
	Logger *logger.Logger
}

func NewRedis(client *redis.Client, log *logger.Logger) *Redis {
	return &Redis{Client: client, Logger: log}
}

func lockKey(tierID, buyerID string) string {
	return fmt.Sprintf("booking_lock:%s:%s", tierID, buyerID)
}

// lockDuration reads BOOKING_LOCK_TTL_SECONDS, defaulting to 30 seconds.
func (r *Redis) lockDuration() time.Duration {
	defaultDuration := 30 * time.Second

	ttlStr := os.Getenv("BOOKING_LOCK_TTL_SECONDS")
	if ttlStr == "" {
		return defaultDuration
	}

	ttlSec, err := strconv.Atoi(ttlStr)
	if err != nil {
		r.Logger.Warn("REDIS", "Invalid BOOKING_LOCK_TTL_SECONDS value '"+ttlStr+"', using default 30 seconds")
		return defaultDuration
	}
	return time.Duration(ttlSec) * time.Second
}

// Acquire takes the per-tier-per-buyer lock. Returns false when another
// create for the same pair is still in flight.
func (r *Redis) Acquire(tierID, buyerID string) (bool, error) {
	key := lockKey(tierID, buyerID)
	ok, err := r.Client.SetNX(context.Background(), key, buyerID, r.lockDuration()).Result()
	return ok, err
}

// Release drops the lock. Already-expired locks are not an error.
func (r *Redis) Release(tierID, buyerID string) error {
	ctx := context.Background()
	key := lockKey(tierID, buyerID)

	_, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already expired
	}
	if err != nil {
		return err
	}

	_, err = r.Client.Del(ctx, key).Result()
	return err
}
