package main

import (
	"strings"
	"testing"

	"mex/internal/config"
	"mex/internal/testutil"
)

// setupTestApp wires the global db/config to a fresh in-memory database and
// returns a live admin session token. The shared-cache URI keeps every pool
// connection on the same in-memory database.
func setupTestApp(t *testing.T) string {
	t.Helper()
	cfg = config.Default()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	if err := initDB("file:" + name + "?mode=memory&cache=shared"); err != nil {
		t.Fatalf("Failed to init test DB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	seedDB(false)

	var adminID int
	if err := db.QueryRow("SELECT id FROM users WHERE username = 'admin'").Scan(&adminID); err != nil {
		t.Fatalf("Failed to find seeded admin: %v", err)
	}
	return testutil.CreateTestSession(t, db, adminID)
}
