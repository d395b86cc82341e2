package db_client

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func Open(host, port, user, pass, database string) (*sql.DB, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		user, pass, host, port, database,
	)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetConnMaxIdleTime(time.Minute)
	return db, db.Ping()
}

// EnsureSchema creates the message-log table on boot so a fresh database
// works without a separate migration step.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	const ddl = `
	  CREATE TABLE IF NOT EXISTS messages (
	      id       BIGSERIAL PRIMARY KEY,
	      room     TEXT        NOT NULL,
	      username TEXT        NOT NULL,
	      content  TEXT        NOT NULL,
	      sent_at  TIMESTAMPTZ NOT NULL
	  );
	  CREATE INDEX IF NOT EXISTS idx_messages_room_sent_at
	      ON messages (room, sent_at DESC)`

	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
