package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "pgx"
	DriverSQLite   = "sqlite"
)

type Database struct {
	Conn   *sql.DB
	Driver string
}

func NewDatabase(driver, dsn string) (*Database, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	if driver == DriverSQLite {
		// every connection to :memory: is a separate database
		conn.SetMaxOpenConns(1)
	} else {
		conn.SetMaxOpenConns(25)
		conn.SetMaxIdleConns(25)
	}
	conn.SetConnMaxLifetime(5 * time.Minute)
	return &Database{Conn: conn, Driver: driver}, nil
}

func (d *Database) Close() error {
	return d.Conn.Close()
}

// Rebind rewrites ? placeholders into $n for Postgres.
func (d *Database) Rebind(query string) string {
	if d.Driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d *Database) AutoMigrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS transcript_lines (
            id TEXT PRIMARY KEY,
            room_code VARCHAR(6) NOT NULL,
            recipient_id VARCHAR(16) NOT NULL,
            speaker_id TEXT NOT NULL,
            speaker_name VARCHAR(50) NOT NULL,
            content TEXT NOT NULL,
            from_recipient BOOLEAN NOT NULL DEFAULT FALSE,
            created_at BIGINT NOT NULL
        )`,

		`CREATE INDEX IF NOT EXISTS idx_transcript_lines_room
            ON transcript_lines (room_code, created_at)`,

		`CREATE TABLE IF NOT EXISTS game_results (
            id TEXT PRIMARY KEY,
            room_code VARCHAR(6) NOT NULL,
            winner_id TEXT NOT NULL,
            winner_name VARCHAR(50) NOT NULL,
            recipient_id VARCHAR(16) NOT NULL,
            recipient_name VARCHAR(50) NOT NULL,
            finished_at BIGINT NOT NULL
        )`,
	}

	for _, query := range queries {
		_, err := d.Conn.Exec(query)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}
