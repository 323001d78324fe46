package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/arnaud-morvan/v6-api/internal/domain/repositories"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TransactionManager implements the TransactionManager interface
type TransactionManager struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewTransactionManager creates a new transaction manager
func NewTransactionManager(pool *pgxpool.Pool, logger *slog.Logger) repositories.TransactionManager {
	return &TransactionManager{pool: pool, logger: logger}
}

// ExecTx runs fn in a read-committed transaction. Serialization failures and
// deadlocks, whether raised by a statement or at commit, are reported as
// *domain.ConflictError.
func (tm *TransactionManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	tx, err := tm.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	// No-op once committed.
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			tm.logger.Warn("rollback failed", "error", err)
		}
	}()

	if err := fn(repositories.SetTx(ctx, tx)); err != nil {
		return ConflictFromPg(err)
	}

	if err := tx.Commit(ctx); err != nil {
		if IsPgSerializationError(err) {
			return ConflictFromPg(err)
		}
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
