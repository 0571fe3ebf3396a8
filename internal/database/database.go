// BService Suite - LMS Analytics and User Synchronization Service
// SPDX-License-Identifier: GPL-3.0-or-later

// Package database wraps the DuckDB database shared with the site. The
// site-owned tables (users, courses, activities, completions, enrolments,
// activity log, sessions) are read by the analytics queries and written
// only by the profile-update operation; the user_sync table is owned
// entirely by this service.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/config"
	"github.com/Tareq-Adnan/moodle-local-bservicesuite/internal/metrics"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// DB wraps the DuckDB connection and provides data access methods.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// queryer is satisfied by both *sql.DB and *sql.Tx so the row-level
// helpers can run inside or outside a transaction.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// New opens the database and initializes the schema.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	dbDir := filepath.Dir(cfg.Path)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write", cfg.Path)
	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn, cfg: cfg}
	if err := db.initialize(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

// Conn exposes the underlying connection. Intended for tests seeding
// site-owned tables.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// initialize creates all tables if they do not exist. The site-owned
// tables mirror the subset of the platform schema this service touches.
func (db *DB) initialize() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY,
			username VARCHAR NOT NULL,
			email VARCHAR NOT NULL,
			password VARCHAR NOT NULL DEFAULT '',
			firstname VARCHAR NOT NULL DEFAULT '',
			lastname VARCHAR NOT NULL DEFAULT '',
			city VARCHAR NOT NULL DEFAULT '',
			country VARCHAR NOT NULL DEFAULT '',
			admin BOOLEAN NOT NULL DEFAULT false,
			guest BOOLEAN NOT NULL DEFAULT false,
			deleted BOOLEAN NOT NULL DEFAULT false,
			suspended BOOLEAN NOT NULL DEFAULT false
		)`,
		`CREATE TABLE IF NOT EXISTS courses (
			id BIGINT PRIMARY KEY,
			fullname VARCHAR NOT NULL,
			shortname VARCHAR NOT NULL,
			visible BOOLEAN NOT NULL DEFAULT true,
			sortorder BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS course_activities (
			id BIGINT PRIMARY KEY,
			course_id BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS activity_completions (
			activity_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			state INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS enrolments (
			course_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS activity_log (
			id BIGINT,
			eventname VARCHAR NOT NULL,
			action VARCHAR NOT NULL DEFAULT '',
			userid BIGINT NOT NULL DEFAULT 0,
			courseid BIGINT NOT NULL DEFAULT 0,
			contextlevel INTEGER NOT NULL DEFAULT 0,
			component VARCHAR NOT NULL DEFAULT '',
			origin VARCHAR NOT NULL DEFAULT '',
			ip VARCHAR NOT NULL DEFAULT '',
			other VARCHAR NOT NULL DEFAULT '',
			timecreated TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			sid VARCHAR NOT NULL,
			user_id BIGINT NOT NULL,
			timecreated TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS user_sync (
			user_id BIGINT PRIMARY KEY,
			payload VARCHAR NOT NULL,
			synced BOOLEAN NOT NULL DEFAULT false
		)`,
	}

	for _, stmt := range stmts {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}
	return nil
}

// Tx exposes the row-level operations that must share one transaction,
// notably the per-edit profile update sequence.
type Tx struct {
	tx *sql.Tx
}

// WithTx runs fn inside a transaction. The transaction is committed when
// fn returns nil and rolled back otherwise (including on panic).
func (db *DB) WithTx(ctx context.Context, fn func(*Tx) error) (err error) {
	sqlTx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Tx{tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}
	return nil
}

// observe records query timing for the Prometheus instrumentation.
func observe(operation, table string, start time.Time, err error) {
	metrics.RecordDBQuery(operation, table, time.Since(start), err)
}
