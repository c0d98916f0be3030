package repository

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// MySQL server error numbers the engine treats as transient.
const (
	mysqlErrLockWaitTimeout = 1205
	mysqlErrDeadlock        = 1213
	mysqlErrDuplicateEntry  = 1062
)

// IsRetryable reports whether err is worth retrying: a claim-version
// conflict from the optimistic write, or a deadlock / lock wait timeout
// reported by MySQL. Validation and conflict errors are never retryable.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrVersionConflict) {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlErrDeadlock, mysqlErrLockWaitTimeout:
			return true
		}
	}
	return false
}

// IsDuplicateEntry reports whether err is a MySQL duplicate-key error on
// the index containing the given name fragment. An empty fragment matches
// any duplicate-key error.
func IsDuplicateEntry(err error, indexFragment string) bool {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) || myErr.Number != mysqlErrDuplicateEntry {
		return false
	}
	return indexFragment == "" || strings.Contains(myErr.Message, indexFragment)
}

// WithRetry runs fn up to attempts times, sleeping between attempts with
// exponential backoff plus bounded random jitter so that concurrent
// claimants retrying after the same conflict do not stampede in lockstep.
// Only errors classified by IsRetryable are retried; any other error, and
// the final retryable error once attempts are exhausted, is returned as-is.
func WithRetry(ctx context.Context, attempts int, base time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		err = fn()
		if err == nil || !IsRetryable(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}
		delay := base << uint(attempt)
		delay += time.Duration(rand.Int63n(int64(base) + 1))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
