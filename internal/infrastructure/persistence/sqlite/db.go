package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/garyjia/taskdoc/internal/application/port"
)

type txKey struct{}

type scopedTx struct {
	*sql.Tx
	id string

	mu          sync.Mutex
	done        bool
	afterCommit []func()
}

// finish marks the transaction closed and hands back its commit hooks
func (tx *scopedTx) finish() []func() {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.done = true
	hooks := tx.afterCommit
	tx.afterCommit = nil
	return hooks
}

func (tx *scopedTx) open() bool {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return !tx.done
}

// DB is the transaction manager repositories share. A transaction opened
// by WithTransaction travels on the context and is picked up by
// ExecutorFor.
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a transaction manager over sqlDB
func NewDB(sqlDB *sql.DB, logger *zap.Logger) *DB {
	return &DB{DB: sqlDB, logger: logger}
}

// WithTransaction runs fn inside a transaction. A call made while one is
// already open on ctx joins it; only the outermost call commits.
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		db.logger.Error("Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("begin transaction: %w", err)
	}
	scoped := &scopedTx{Tx: tx, id: uuid.NewString()}

	defer func() {
		if p := recover(); p != nil {
			db.rollback(scoped, "panic")
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, scoped)); err != nil {
		db.rollback(scoped, err.Error())
		return err
	}

	if err = tx.Commit(); err != nil {
		scoped.finish()
		db.logger.Error("Failed to commit transaction", zap.String("tx_id", scoped.id), zap.Error(err))
		return fmt.Errorf("commit transaction: %w", err)
	}

	for _, hook := range scoped.finish() {
		hook()
	}
	return nil
}

// AfterCommit queues fn on the transaction carried by ctx, or runs it now
// when there is none
func (db *DB) AfterCommit(ctx context.Context, fn func()) {
	scoped, ok := ctx.Value(txKey{}).(*scopedTx)
	if !ok || !scoped.open() {
		fn()
		return
	}
	scoped.mu.Lock()
	scoped.afterCommit = append(scoped.afterCommit, fn)
	scoped.mu.Unlock()
}

func (db *DB) rollback(tx *scopedTx, reason string) {
	tx.finish()
	if err := tx.Rollback(); err != nil {
		db.logger.Error("Failed to roll back transaction",
			zap.String("tx_id", tx.id), zap.String("reason", reason), zap.Error(err))
		return
	}
	db.logger.Debug("Transaction rolled back", zap.String("tx_id", tx.id), zap.String("reason", reason))
}

// TxFromContext returns the open transaction on ctx, or nil. A context
// that outlives its transaction reports none.
func TxFromContext(ctx context.Context) *sql.Tx {
	if tx, ok := ctx.Value(txKey{}).(*scopedTx); ok && tx.open() {
		return tx.Tx
	}
	return nil
}

// Executor is the query surface shared by *sql.DB and *sql.Tx
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// ExecutorFor returns the transaction on ctx, falling back to db
func ExecutorFor(ctx context.Context, db *sql.DB) Executor {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return db
}

var _ port.TransactionManager = (*DB)(nil)
