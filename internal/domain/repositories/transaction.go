package repositories

import "context"

// TxFn is the body of a transaction. It must use the context it receives
// so that repositories pick up the transaction.
type TxFn func(ctx context.Context) error

// TransactionManager runs a unit of work atomically: when fn returns an
// error nothing it wrote is kept.
type TransactionManager interface {
	ExecTx(ctx context.Context, fn TxFn) error
}
