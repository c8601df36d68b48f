package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager executes a function inside a database transaction,
// passing the underlying handle via `tx`.
//
// - Keeps use-case interfaces clean (no driver types leaking out).
// - Repositories accept `tx Tx` and detect a live transaction on the
//   implementation side (SELECT ... FOR UPDATE, tx-bound Exec/Query).
// - Repositories MUST gracefully accept a nil tx (non-transactional path).
//
// The activation write path relies on this: the account mutation and the
// ledger back-reference commit or roll back together.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
