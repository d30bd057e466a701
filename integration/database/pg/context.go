package pg

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// txContextKey is unexported to avoid context key collisions.
type txContextKey struct{}

// WithTx returns a context carrying the transaction. Repository methods that
// see it run their statements inside the transaction instead of the pool. A
// nil tx leaves the context unchanged.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txContextKey{}, tx)
}

// TxFromContext extracts a transaction stored with WithTx. The second return
// value reports whether one was present.
func TxFromContext(ctx context.Context) (pgx.Tx, bool) {
	if ctx == nil {
		return nil, false
	}
	tx, ok := ctx.Value(txContextKey{}).(pgx.Tx)
	return tx, ok
}
