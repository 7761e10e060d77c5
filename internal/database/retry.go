package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"whatsflow/internal/constants"
	"whatsflow/internal/retry"
)

var writeBackoff = retry.BackoffConfig{
	InitialDelay: time.Duration(constants.DefaultBackoffInitialMs) * time.Millisecond,
	MaxDelay:     time.Duration(constants.DefaultBackoffMaxSec) * time.Second,
	Multiplier:   2.0,
	MaxAttempts:  constants.DefaultDatabaseRetryAttempts,
}

// retryableDBOperation executes a write with retry on transient SQLite errors
func retryableDBOperation(ctx context.Context, operation func() error, operationName string) error {
	err := retry.NewBackoff(writeBackoff).RetryWithPredicate(ctx, operation, isRetryableDBError)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%s failed: %w", operationName, err)
}

// isRetryableDBError reports whether err is a transient SQLite condition
func isRetryableDBError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	errStr := err.Error()
	return strings.Contains(errStr, "database is locked") ||
		strings.Contains(errStr, "database table is locked") ||
		strings.Contains(errStr, "disk I/O error")
}
