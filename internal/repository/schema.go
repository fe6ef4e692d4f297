package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = `
CREATE TABLE IF NOT EXISTS users (
	id UUID PRIMARY KEY,
	name VARCHAR(250) NOT NULL
);

CREATE INDEX IF NOT EXISTS users_name_idx ON users (name);

CREATE TABLE IF NOT EXISTS tickets (
	id UUID PRIMARY KEY,
	user_id UUID NOT NULL UNIQUE REFERENCES users (id) ON DELETE CASCADE,
	created TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS meals (
	id BIGSERIAL PRIMARY KEY,
	ticket_id UUID NOT NULL REFERENCES tickets (id) ON DELETE CASCADE,
	time TIMESTAMPTZ NOT NULL,
	scan_key TEXT
);

CREATE INDEX IF NOT EXISTS meals_ticket_id_idx ON meals (ticket_id);
`

// Migrate creates the tables the service needs if they are missing
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
