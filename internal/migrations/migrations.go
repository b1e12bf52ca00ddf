package migrations

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Run creates the database schema. It is idempotent and safe to call on
// every startup.
func Run(db *sqlx.DB) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            username TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            password TEXT NOT NULL,
            role TEXT NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS medicines (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL,
            manufacturer TEXT NOT NULL,
            price NUMERIC NOT NULL DEFAULT 0,
            quantity INTEGER NOT NULL DEFAULT 0,
            is_discontinued INTEGER NOT NULL DEFAULT 0,
            medicine_type TEXT NOT NULL DEFAULT '',
            pack_size TEXT NOT NULL DEFAULT '',
            composition1 TEXT NOT NULL DEFAULT '',
            composition2 TEXT NOT NULL DEFAULT '',
            UNIQUE(name, manufacturer)
        );`,
		`CREATE TABLE IF NOT EXISTS calls (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            phone_number TEXT NOT NULL,
            duration INTEGER NOT NULL DEFAULT 0,
            call_time TEXT NOT NULL,
            follow_up INTEGER NOT NULL DEFAULT 0,
            summary TEXT NOT NULL DEFAULT '',
            transcript TEXT NOT NULL DEFAULT '',
            recording_url TEXT NOT NULL DEFAULT ''
        );`,
		`CREATE TABLE IF NOT EXISTS orders (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            call_id INTEGER NOT NULL,
            medicine_name TEXT NOT NULL,
            quantity TEXT NOT NULL,
            delivery_method TEXT NOT NULL DEFAULT 'pickup',
            status TEXT NOT NULL DEFAULT 'pending',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY(call_id) REFERENCES calls(id) ON DELETE CASCADE
        );`,
		`CREATE INDEX IF NOT EXISTS idx_orders_call_id ON orders(call_id);`,
		`CREATE TABLE IF NOT EXISTS bills (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            call_id INTEGER NOT NULL UNIQUE,
            invoice_number TEXT NOT NULL UNIQUE,
            total_amount NUMERIC NOT NULL,
            gst_percentage NUMERIC NOT NULL DEFAULT 18.00,
            content TEXT NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY(call_id) REFERENCES calls(id) ON DELETE CASCADE
        );`,
	}

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
