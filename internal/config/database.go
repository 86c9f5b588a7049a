package config

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// SetupDatabase initializes the database connection
func SetupDatabase(cfg *Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	// Create tables if they don't exist
	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// createTables creates the necessary tables in the database
func createTables(db *sqlx.DB) error {
	// Create users table
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(36) PRIMARY KEY,
			email VARCHAR(255) UNIQUE NOT NULL,
			name VARCHAR(255) NOT NULL,
			password VARCHAR(255) NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create accounts table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			id VARCHAR(36) PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name VARCHAR(255) NOT NULL,
			currency VARCHAR(3) NOT NULL,
			balance NUMERIC(18,2) NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create categories table (global, not per-user)
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS categories (
			id VARCHAR(36) PRIMARY KEY,
			name VARCHAR(255) UNIQUE NOT NULL,
			color VARCHAR(16) NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create rules table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS rules (
			id VARCHAR(36) PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			pattern TEXT NOT NULL,
			field VARCHAR(16) NOT NULL,
			category_id VARCHAR(36) NOT NULL REFERENCES categories(id),
			active BOOLEAN NOT NULL DEFAULT TRUE,
			priority INT NOT NULL DEFAULT 100,
			notes TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create transactions table. The unique fingerprint is the duplicate
	// prevention mechanism for imports.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			id VARCHAR(36) PRIMARY KEY,
			account_id VARCHAR(36) NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
			posted_at TIMESTAMP NOT NULL,
			amount NUMERIC(18,2) NOT NULL CHECK (amount >= 0),
			direction VARCHAR(6) NOT NULL,
			merchant TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			notes TEXT NOT NULL DEFAULT '',
			category_id VARCHAR(36) REFERENCES categories(id),
			fingerprint CHAR(64) UNIQUE NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create import_batches table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS import_batches (
			id VARCHAR(36) PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			status VARCHAR(16) NOT NULL,
			filename VARCHAR(255) NOT NULL,
			source VARCHAR(32) NOT NULL,
			row_count INT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create import_rows table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS import_rows (
			id VARCHAR(36) PRIMARY KEY,
			batch_id VARCHAR(36) NOT NULL REFERENCES import_batches(id) ON DELETE CASCADE,
			row_no INT NOT NULL,
			raw_data JSONB,
			normalized JSONB,
			error TEXT,
			duplicate_of_id VARCHAR(36),
			suggested_category_id VARCHAR(36),
			created_at TIMESTAMP NOT NULL,
			UNIQUE (batch_id, row_no)
		)
	`)
	if err != nil {
		return err
	}

	// Create indexes for better performance
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_accounts_user_id ON accounts(user_id)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_account_id ON transactions(account_id)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_posted_at ON transactions(posted_at)",
		"CREATE INDEX IF NOT EXISTS idx_rules_user_priority ON rules(user_id, priority, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_import_batches_user_id ON import_batches(user_id)",
		"CREATE INDEX IF NOT EXISTS idx_import_rows_batch_id ON import_rows(batch_id, row_no)",
	}

	for _, idx := range indexes {
		_, err = db.Exec(idx)
		if err != nil {
			log.Printf("Warning: Failed to create index: %v", err)
			// Don't return error here, indexes are not critical
		}
	}

	return nil
}
