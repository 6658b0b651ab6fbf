package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrTimeout is returned when a key could not be acquired within the wait
var ErrTimeout = errors.New("lock wait timed out")

// Locker provides mutual exclusion per key with a bounded wait.
// Release is safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string, wait time.Duration) (release func(), err error)
}

// InstanceKey is the lock key serializing occupancy changes of one session instance
func InstanceKey(id uuid.UUID) string {
	return fmt.Sprintf("instance:%s", id)
}

// LocationKey is the lock key serializing scheduling at one location
func LocationKey(id uuid.UUID) string {
	return fmt.Sprintf("location:%s", id)
}
