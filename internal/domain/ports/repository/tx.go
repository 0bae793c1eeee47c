package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager executes a function within a database transaction,
// passing the underlying handle via `tx`.
//
// Repository methods accept `tx Tx` and detect the concrete handle
// (implementation-side); they MUST gracefully accept nil (non-transactional
// path). Keeps use-case interfaces free of storage types.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
