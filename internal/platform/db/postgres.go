package db

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// New creates a new PostgreSQL connection pool.
func New(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("platform/db: parse config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("platform/db: new pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("platform/db: ping: %w", err)
	}

	return pool, nil
}

// TenantDatabase returns the deterministic database name for a tenant.
func TenantDatabase(tenantID string) string {
	return "tenant_" + tenantID
}

// Host extracts the server host from a DSN, for status snapshots.
func Host(dsn string) string {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return ""
	}
	return config.ConnConfig.Host
}

// TenantDSN rewrites the database of a base DSN to the tenant's
// isolated database. The name is derived deterministically so the same
// tenant always resolves to the same store. Both URL and keyword/value
// DSN forms are accepted.
func TenantDSN(baseDSN, tenantID string) (string, error) {
	dbname := TenantDatabase(tenantID)

	if strings.HasPrefix(baseDSN, "postgres://") || strings.HasPrefix(baseDSN, "postgresql://") {
		u, err := url.Parse(baseDSN)
		if err != nil {
			return "", fmt.Errorf("platform/db: parse base dsn: %w", err)
		}
		u.Path = "/" + dbname
		return u.String(), nil
	}

	fields := strings.Fields(baseDSN)
	replaced := false
	for i, field := range fields {
		if strings.HasPrefix(field, "dbname=") {
			fields[i] = "dbname=" + dbname
			replaced = true
		}
	}
	if !replaced {
		fields = append(fields, "dbname="+dbname)
	}
	return strings.Join(fields, " "), nil
}
