package main

import (
	"database/sql"
	"fmt"
	"log"
	"strings"

	"mex/internal/auth"

	_ "modernc.org/sqlite"
)

var db *sql.DB

func initDB(path string) error {
	// Close previous connection if any (prevents goroutine leaks in tests)
	if db != nil {
		db.Close()
	}
	var err error
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err = sql.Open("sqlite", path+sep+"_journal_mode=WAL&_busy_timeout=10000&_foreign_keys=1")
	if err != nil {
		return err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=30000"); err != nil {
		return fmt.Errorf("set busy_timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}

	return runMigrations()
}

func runMigrations() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			display_name TEXT,
			role TEXT DEFAULT 'user',
			active INTEGER DEFAULT 1,
			last_login TIMESTAMP,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			expires_at DATETIME NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS work_orders (
			id TEXT PRIMARY KEY,
			assembly_ipn TEXT NOT NULL,
			qty INTEGER NOT NULL DEFAULT 1 CHECK(qty > 0),
			qty_good INTEGER DEFAULT 0,
			qty_scrap INTEGER DEFAULT 0,
			status TEXT DEFAULT 'draft' CHECK(status IN ('draft','open','in_progress','completed','cancelled','on_hold')),
			priority TEXT DEFAULT 'normal' CHECK(priority IN ('low','normal','high','critical')),
			notes TEXT DEFAULT '',
			due_date TEXT DEFAULT '',
			version INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_by TEXT DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS ncrs (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT DEFAULT '',
			ipn TEXT DEFAULT '',
			severity TEXT DEFAULT 'minor' CHECK(severity IN ('minor','major','critical')),
			status TEXT DEFAULT 'open' CHECK(status IN ('open','investigating','resolved','closed')),
			root_cause TEXT DEFAULT '',
			corrective_action TEXT DEFAULT '',
			version INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_by TEXT DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS vendors (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			contact_email TEXT DEFAULT '',
			payment_terms TEXT DEFAULT '',
			lead_time_days INTEGER DEFAULT 0 CHECK(lead_time_days >= 0),
			status TEXT DEFAULT 'active' CHECK(status IN ('active','preferred','inactive','blocked')),
			notes TEXT DEFAULT '',
			version INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_by TEXT DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			module TEXT NOT NULL,
			action TEXT NOT NULL,
			record_id TEXT NOT NULL,
			username TEXT DEFAULT '',
			summary TEXT DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, ddl := range tables {
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func seedDB(demoData bool) {
	var userCount int
	db.QueryRow("SELECT COUNT(*) FROM users").Scan(&userCount)
	if userCount == 0 {
		hash, err := auth.HashPassword("changeme")
		if err != nil {
			log.Printf("seed: hash admin password: %v", err)
			return
		}
		db.Exec("INSERT INTO users (username, password_hash, display_name, role) VALUES (?, ?, ?, ?)",
			"admin", hash, "Administrator", "admin")
		log.Println("seed: created default admin user (password: changeme)")
	}

	if !demoData {
		return
	}
	var woCount int
	db.QueryRow("SELECT COUNT(*) FROM work_orders").Scan(&woCount)
	if woCount == 0 {
		db.Exec(`INSERT INTO work_orders (id, assembly_ipn, qty, status, priority, notes) VALUES
			('WO-0001', 'ASY-100', 25, 'open', 'normal', 'pilot build'),
			('WO-0002', 'ASY-200', 10, 'in_progress', 'high', '')`)
		db.Exec(`INSERT INTO vendors (id, name, contact_email, payment_terms, lead_time_days, status) VALUES
			('V-001', 'Acme Components', 'sales@acme.example', 'NET30', 14, 'preferred'),
			('V-002', 'Globex Fab', 'orders@globex.example', 'NET45', 30, 'active')`)
		db.Exec(`INSERT INTO ncrs (id, title, severity, status) VALUES
			('NCR-0001', 'Solder bridging on ASY-100 lot 7', 'major', 'open')`)
	}
}
