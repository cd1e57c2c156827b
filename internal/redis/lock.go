package redisclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("appointment lock not acquired")
)

// Locker is used by the appointment service to serialize mutations per appointment
type Locker interface {
	WithAppointmentLock(ctx context.Context, appointmentID uuid.UUID, fn func(ctx context.Context) error) error
}

type redisAppointmentLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisAppointmentLocker creates a locker that uses a per appointment Redis key
func NewRedisAppointmentLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisAppointmentLocker{
		client: client,
		ttl:    ttl,
	}
}

func (l *redisAppointmentLocker) WithAppointmentLock(ctx context.Context, appointmentID uuid.UUID, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:appointment:%s", appointmentID.String())
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire appointment lock: %w", err)
	}
	if !ok {
		return ErrLockNotAcquired
	}

	defer func() {
		// release on a fresh context so a cancelled request still frees the key
		relCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = l.release(relCtx, key, token)
	}()

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisAppointmentLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release appointment lock: %w", err)
	}
	return nil
}
