package redisclient

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// LocalLocker serializes per appointment inside one process. It is the
// locker for the memory store backend, where there is no Redis.
type LocalLocker struct {
	mu   sync.Mutex
	held map[uuid.UUID]struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[uuid.UUID]struct{})}
}

// WithAppointmentLock fails fast with ErrLockNotAcquired when the key is
// held, like the Redis locker.
func (l *LocalLocker) WithAppointmentLock(ctx context.Context, appointmentID uuid.UUID, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	if _, busy := l.held[appointmentID]; busy {
		l.mu.Unlock()
		return ErrLockNotAcquired
	}
	l.held[appointmentID] = struct{}{}
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		delete(l.held, appointmentID)
		l.mu.Unlock()
	}()

	return fn(ctx)
}
