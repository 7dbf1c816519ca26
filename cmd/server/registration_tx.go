package main

import (
	"context"
	"database/sql"
	"time"

	"registrar/internal/registration/ports"
	pgstore "registrar/internal/registration/store/postgres"
	dErrors "registrar/pkg/domain-errors"
)

const defaultRegistrationTxTimeout = 5 * time.Second

type registrationPostgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newRegistrationPostgresTx(db *sql.DB, timeout time.Duration) ports.TxRunner {
	return &registrationPostgresTx{db: db, timeout: timeout}
}

// RunInTx runs fn inside one serializable transaction. Each queue item is
// processed by exactly one such unit.
func (t *registrationPostgresTx) RunInTx(ctx context.Context, fn func(store ports.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultRegistrationTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "begin registration transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(pgstore.New(tx)); err != nil {
		return classify(err)
	}

	if err := tx.Commit(); err != nil {
		return classify(err)
	}
	return nil
}

func classify(err error) error {
	if pgstore.IsSerializationFailure(err) {
		return dErrors.Wrap(err, dErrors.CodeConflict, "registration transaction serialization conflict")
	}
	return err
}
