package service

import (
	"context"
	"time"

	"companion_gateway/internal/logger"
)

const (
	retryAttempts = 3
	retryBaseWait = time.Second
	retryMaxWait  = 60 * time.Second
)

// retryTransient runs op up to retryAttempts times with exponential backoff,
// retrying only while transient(err) holds. The last error is returned as-is.
func retryTransient(ctx context.Context, name string, transient func(error) bool, op func(ctx context.Context) error) error {
	wait := retryBaseWait
	var err error
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if !transient(err) || attempt == retryAttempts {
			return err
		}
		logger.Warn("transient failure, retrying", "op", name, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		wait *= 2
		if wait > retryMaxWait {
			wait = retryMaxWait
		}
	}
	return err
}
