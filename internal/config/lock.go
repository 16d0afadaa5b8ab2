package config

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

// AcquireSingleton takes an exclusive, process-lifetime lock on path so
// two fabricd processes never silently double-bind the same ports,
// grounded on the teacher's `internal/discovery` use of
// `github.com/gofrs/flock` for exclusive file locks. Unlike that
// short-lived per-operation lock, this one is held until the returned
// lock's Unlock is called (typically at process shutdown).
func AcquireSingleton(path string) (*flock.Flock, error) {
	lock := flock.New(path)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	locked, err := lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("config: acquire lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("config: %s is locked by another fabricd process", path)
	}
	return lock, nil
}
