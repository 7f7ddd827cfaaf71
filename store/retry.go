package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"time"

	"funneltrack/api/models"
)

// readWithRetry runs a read-only query and retries transient failures with
// bounded backoff. Write paths never go through here: their idempotency
// guarantees already cover client replays, so a failed write surfaces
// immediately instead of risking duplicate side effects.
func readWithRetry(ctx context.Context, attempts int, fn func() error) error {
	backoff := 100 * time.Millisecond
	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if err == nil || !isTransient(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return err
}

func isTransient(err error) bool {
	return errors.Is(err, models.ErrTransient) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, context.DeadlineExceeded)
}
