package db

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// WithTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back on error or panic (panics are re-raised).
//
// Repositories are bound to the transaction with their WithTx method:
//
//	err := db.WithTx(ctx, database, func(tx *sqlx.Tx) error {
//	    users := userRepository.WithTx(tx)
//	    ...
//	})
func WithTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(tx)
	return err
}
