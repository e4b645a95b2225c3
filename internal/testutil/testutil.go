// Package testutil holds shared helpers for handler and integration tests.
package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"mex/internal/auth"
	"mex/internal/models"
)

// CreateTestUser inserts a user and returns its id.
func CreateTestUser(t *testing.T, db *sql.DB, username, password, role string) int {
	t.Helper()
	hash, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}
	res, err := db.Exec(
		"INSERT INTO users (username, password_hash, display_name, role) VALUES (?, ?, ?, ?)",
		username, hash, username+" Display", role)
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	id, _ := res.LastInsertId()
	return int(id)
}

// CreateTestSession creates a 24h session token for the given user.
func CreateTestSession(t *testing.T, db *sql.DB, userID int) string {
	t.Helper()
	token := auth.GenerateToken()
	expires := time.Now().Add(24 * time.Hour)
	_, err := db.Exec("INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)",
		token, userID, expires.Format("2006-01-02 15:04:05"))
	if err != nil {
		t.Fatalf("Failed to create test session: %v", err)
	}
	return token
}

// LoginAs creates a user and returns a live session token for them.
func LoginAs(t *testing.T, db *sql.DB, username string) string {
	t.Helper()
	return CreateTestSession(t, db, CreateTestUser(t, db, username, "password", "user"))
}

// AuthedRequest creates an HTTP request carrying a session cookie.
func AuthedRequest(method, path string, body []byte, sessionToken string) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if sessionToken != "" {
		req.AddCookie(&http.Cookie{Name: "mex_session", Value: sessionToken})
	}
	return req
}

// AuthedJSONRequest creates an authenticated request with a JSON body.
func AuthedJSONRequest(t *testing.T, method, path string, body any, sessionToken string) *http.Request {
	t.Helper()
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
	}
	req := AuthedRequest(method, path, bodyBytes, sessionToken)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// AssertStatus checks that the HTTP status code matches expected.
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// DecodeEnvelope decodes an APIResponse envelope and extracts the data.
func DecodeEnvelope(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	var resp models.APIResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode API envelope: %v", err)
	}
	dataBytes, _ := json.Marshal(resp.Data)
	if err := json.Unmarshal(dataBytes, v); err != nil {
		t.Fatalf("Failed to decode data from envelope: %v", err)
	}
}
