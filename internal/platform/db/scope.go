package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// contextKey namespaces values this package stores on a context.Context so
// they can never collide with keys set by other packages.
type contextKey string

const (
	tenantIDKey contextKey = "healthprep_tenant_id"
	dbConnKey   contextKey = "healthprep_db_conn"
	dbTxKey     contextKey = "healthprep_db_tx"
)

// Querier is satisfied by *pgxpool.Pool, *pgxpool.Conn, and pgx.Tx. Every
// repository method accepts a context and resolves its own querier through
// Resolve, so callers never pass a connection explicitly.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// WithTenant returns a context carrying tenantID. Every tenant-scoped
// repository call must run against a context produced by this function (or
// a descendant of one) — HealthPrep has no implicit "current tenant".
func WithTenant(ctx context.Context, tenantID uuid.UUID) context.Context {
	return context.WithValue(ctx, tenantIDKey, tenantID)
}

// TenantFromContext returns the tenant id set by WithTenant, or false if none
// is present. Repository and service methods that touch PHI-bearing tables
// must treat a missing tenant as a hard error, never as "no filter".
func TenantFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(tenantIDKey).(uuid.UUID)
	return id, ok
}

// WithConn attaches an acquired pool connection to the context so a sequence
// of repository calls within one request can share it without threading a
// *pgxpool.Conn through every function signature.
func WithConn(ctx context.Context, conn *pgxpool.Conn) context.Context {
	return context.WithValue(ctx, dbConnKey, conn)
}

// ConnFromContext returns the connection attached by WithConn, if any.
func ConnFromContext(ctx context.Context) (*pgxpool.Conn, bool) {
	conn, ok := ctx.Value(dbConnKey).(*pgxpool.Conn)
	return conn, ok
}

// WithTx attaches an open transaction to the context.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, dbTxKey, tx)
}

// TxFromContext returns the transaction attached by WithTx, if any.
func TxFromContext(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(dbTxKey).(pgx.Tx)
	return tx, ok
}

// Resolve picks the querier to use for a repository call: a transaction if
// one is open, else a borrowed connection, else the pool itself. This is the
// same fallback chain the teacher repo uses in its tenant-scoped connection
// helper, generalized from schema-per-tenant session state to a plain pool
// borrow since HealthPrep isolates tenants by column, not by schema.
func Resolve(ctx context.Context, pool *pgxpool.Pool) Querier {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	if conn, ok := ConnFromContext(ctx); ok {
		return conn
	}
	return pool
}

// RunInTx runs fn inside a transaction attached to the context, committing on
// nil return and rolling back otherwise. Nested calls reuse the outer
// transaction instead of opening a new one.
func RunInTx(ctx context.Context, pool *pgxpool.Pool, fn func(ctx context.Context) error) error {
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(WithTx(ctx, tx)); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// quoteLiteral escapes a string for safe interpolation into a SQL literal.
// Used only for identifiers that cannot be bound as parameters (none in the
// tenant_id-column model today, kept for parity with diagnostic queries that
// build SQL dynamically, e.g. search filters).
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
