// Package tenant owns per-tenant storage handles: a registry that
// lazily creates one isolated connection pool per tenant and a
// resolver for schema-less document collections inside each store.
package tenant

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ConnState tracks the lifecycle of a tenant handle.
type ConnState string

const (
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateError        ConnState = "error"
	StateDisconnected ConnState = "disconnected"
)

// Querier is the subset of pgxpool.Pool the collection accessors use.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is an isolated tenant storage backend. *pgxpool.Pool satisfies it.
type Store interface {
	Querier
	Ping(ctx context.Context) error
	Close()
}

// Status is a read-only snapshot of one registry entry.
type Status struct {
	TenantID  string    `json:"tenantId"`
	State     ConnState `json:"state"`
	Database  string    `json:"database"`
	Host      string    `json:"host"`
	CreatedAt time.Time `json:"createdAt"`
}
