package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// InMemorySQLite is the path that selects a private in-memory database.
const InMemorySQLite = ":memory:"

// OpenSQLite opens a SQLite database for the ledger.
//
// Every transaction starts with BEGIN IMMEDIATE so writers serialize on the database lock
// instead of failing at commit, and a single connection is kept so an in-memory database
// lives as long as the handle.
func OpenSQLite(path string) (*sql.DB, error) {
	dsn := "file::memory:?_txlock=immediate&_busy_timeout=5000"
	if path != InMemorySQLite {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("can not create database directory for %s: %w", path, err)
		}
		dsn = fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=5000&_journal_mode=WAL", path)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("can not open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("can not connect with database: %w", err)
	}
	return db, nil
}
