package repositories

import (
	"errors"

	"github.com/lib/pq"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrConflict is a unique constraint violation, e.g. an e-mail bound to another account.
	ErrConflict = errors.New("unique constraint violation")
)

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
