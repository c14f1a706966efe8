package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrDeadlock      = errors.New("deadlock detected")
	ErrLockTimeout   = errors.New("lock wait timed out")
	ErrSerialization = errors.New("serialization failure")
	ErrContention    = errors.New("row changed concurrently")
)

// ShortageError is returned by a stock decrement whose guard found fewer
// units than requested.
type ShortageError struct {
	ProductID uuid.UUID
	Available int
}

func (e *ShortageError) Error() string {
	return fmt.Sprintf("product %s has %d units available", e.ProductID, e.Available)
}

// PostgreSQL SQLSTATE codes surfaced as lock failures.
const (
	pgDeadlock         = "40P01"
	pgSerialization    = "40001"
	pgLockNotAvailable = "55P03"
)

func classify(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgDeadlock:
			return fmt.Errorf("%w: %w", ErrDeadlock, err)
		case pgSerialization:
			return fmt.Errorf("%w: %w", ErrSerialization, err)
		case pgLockNotAvailable:
			return fmt.Errorf("%w: %w", ErrLockTimeout, err)
		}
	}
	return err
}

// Kind names the failure class of a storage error for logs and metrics.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrDeadlock):
		return "deadlock"
	case errors.Is(err, ErrLockTimeout):
		return "lock_timeout"
	case errors.Is(err, ErrSerialization):
		return "serialization"
	case errors.Is(err, ErrContention):
		return "contention"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "storage"
	}
}
