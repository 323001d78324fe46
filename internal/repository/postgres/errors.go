package postgres

import (
	"errors"

	"github.com/arnaud-morvan/v6-api/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsPgDuplicateError checks if error is a unique constraint violation
func IsPgDuplicateError(err error) bool {
	return pgCode(err) == "23505" // unique_violation
}

// IsPgNoRowsError checks if error is a "no rows" error
func IsPgNoRowsError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// IsPgForeignKeyError checks if error is a foreign key violation
func IsPgForeignKeyError(err error) bool {
	return pgCode(err) == "23503" // foreign_key_violation
}

// IsPgSerializationError reports a transaction that lost a race with a
// concurrent writer.
func IsPgSerializationError(err error) bool {
	switch pgCode(err) {
	case "40001", "40P01": // serialization_failure, deadlock_detected
		return true
	}
	return false
}

// ConflictFromPg turns a lost race into a ConflictError. Other errors are
// returned unchanged.
func ConflictFromPg(err error) error {
	if !IsPgSerializationError(err) && !IsPgDuplicateError(err) {
		return err
	}
	return &domain.ConflictError{
		Message:      "the document was modified by a concurrent request, reload it and retry",
		ResourceType: "document",
	}
}
