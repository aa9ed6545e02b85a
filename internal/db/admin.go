package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// CreateDatabase connects to the server at serverURL (no database selected)
// and creates a database called name.
func CreateDatabase(ctx context.Context, serverURL, name string) error {
	return adminExec(ctx, serverURL, "CREATE DATABASE "+pq.QuoteIdentifier(name))
}

// DropDatabase removes name, terminating any connection still attached.
func DropDatabase(ctx context.Context, serverURL, name string) error {
	return adminExec(ctx, serverURL, "DROP DATABASE IF EXISTS "+pq.QuoteIdentifier(name)+" WITH (FORCE)")
}

func adminExec(ctx context.Context, serverURL, stmt string) error {
	if serverURL == "" {
		return ErrEmptyURL
	}

	conn, err := sql.Open("postgres", serverURL)
	if err != nil {
		return fmt.Errorf("open admin connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("%s: %w", stmt, err)
	}
	return nil
}
