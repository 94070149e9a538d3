package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

// NoTX is passed where a repository call should run outside any transaction.
var NoTX Tx

// TransactionManager provides a thin abstraction to execute a function within
// a database transaction, passing the underlying transaction handle via `tx`.
//
// Use-case interfaces stay clean (no driver types leaking out); repository
// methods accept `tx Tx` and detect a live transaction implementation-side,
// upgrading reads to SELECT ... FOR UPDATE where it matters. Repositories
// MUST gracefully accept a nil tx (non-transactional path).
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
