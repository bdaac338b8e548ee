package ledger

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yungbote/rubric-backend/internal/platform/apierr"
	"github.com/yungbote/rubric-backend/internal/platform/logger"
)

// persistenceError logs driver details and maps err to a PersistenceError.
// Context cancellation passes through unchanged.
func persistenceError(log *logger.Logger, op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	kv := []interface{}{"op", op, "error", err}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		kv = append(kv,
			"pg_code", strings.TrimSpace(pgErr.Code),
			"pg_table", pgErr.TableName,
			"pg_constraint", pgErr.ConstraintName,
			"pg_detail", pgErr.Detail,
		)
	}
	if log != nil {
		log.Error("Ledger storage failure", kv...)
	}
	return apierr.New(apierr.KindPersistenceError, op, err)
}

// IsRetryable reports serialization failures, deadlocks and lock timeouts.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "40001", "40P01", "55P03":
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "deadlock") || strings.Contains(msg, "database is locked")
}
