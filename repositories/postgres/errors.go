package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/mrpayong/terual-accounting/repositories"
)

const uniqueViolation = "23505"

// translate maps driver errors onto repository sentinels and wraps them with op
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, repositories.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return fmt.Errorf("%s: %s: %w", op, pqErr.Constraint, repositories.ErrDuplicateKey)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// expectAffected returns ErrNotFound when an update or delete touched no rows
func expectAffected(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, repositories.ErrNotFound)
	}
	return nil
}
