// Package db is the durable ledger of harvested articles. Dedup rides on the
// unique index over url; the crawler never checks-then-inserts.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "modernc.org/sqlite"
)

// ErrNotProvisioned means the database file or its schema is missing. The
// crawl refuses to run in that state; the setup command creates both.
var ErrNotProvisioned = errors.New("database not provisioned")

type DB struct {
	*sql.DB
	path string
}

// openDB opens a SQLite database at the given path
func openDB(dbPath string) (*sql.DB, error) {
	sqlDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = sqlDB.Close() // Close error less important than PRAGMA error
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return sqlDB, nil
}

// Open opens an existing, provisioned database. It never creates schema:
// a missing file or a missing articles table returns ErrNotProvisioned.
func Open(dbPath string) (*DB, error) {
	if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s not found", ErrNotProvisioned, dbPath)
	}

	sqlDB, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	db := &DB{
		DB:   sqlDB,
		path: dbPath,
	}

	if err := db.ensureProvisioned(); err != nil {
		_ = db.Close() // Close error less important than schema error
		return nil, err
	}

	return db, nil
}

// Create opens the database at the given path, creating the file and the
// schema as needed. This is the setup command's entry point.
func Create(dbPath string) (*DB, error) {
	sqlDB, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	db := &DB{
		DB:   sqlDB,
		path: dbPath,
	}

	if err := db.InitSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// ensureProvisioned checks that the articles table exists.
func (db *DB) ensureProvisioned() error {
	var tableName string
	err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='articles'").Scan(&tableName)

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: articles table missing in %s", ErrNotProvisioned, db.path)
	}
	if err != nil {
		return fmt.Errorf("failed to check schema: %w", err)
	}

	return nil
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// InitSchema initializes the database schema
func (db *DB) InitSchema() error {
	_, err := db.Exec(schema)
	return err
}
