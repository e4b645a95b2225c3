// Package audit records who did what to which record, including rejected
// versioned updates so edit contention is observable.
package audit

import (
	"database/sql"
	"log"
	"net/http"
)

// Action constants.
const (
	ActionCreate   = "CREATE"
	ActionUpdate   = "UPDATE"
	ActionDelete   = "DELETE"
	ActionConflict = "CONFLICT"
	ActionExport   = "EXPORT"
	ActionLogin    = "LOGIN"
	ActionLogout   = "LOGOUT"
)

// Log writes an audit entry. Failures are logged, never fatal.
func Log(db *sql.DB, username, action, module, recordID, summary string) {
	_, err := db.Exec(
		"INSERT INTO audit_log (username, action, module, record_id, summary) VALUES (?, ?, ?, ?, ?)",
		username, action, module, recordID, summary)
	if err != nil {
		log.Printf("audit: %v", err)
	}
}

// Username extracts the username from the session cookie, or "system".
func Username(db *sql.DB, r *http.Request) string {
	cookie, err := r.Cookie("mex_session")
	if err != nil {
		return "system"
	}
	var username string
	err = db.QueryRow(
		"SELECT u.username FROM users u JOIN sessions s ON u.id = s.user_id WHERE s.token = ?",
		cookie.Value).Scan(&username)
	if err != nil {
		return "system"
	}
	return username
}
