package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"mex/internal/testutil"
)

func TestAPIRequiresSession(t *testing.T) {
	setupTestApp(t)
	handler := requireAuth(newMux())

	req := httptest.NewRequest("GET", "/api/v1/workorders", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	testutil.AssertStatus(t, w, 401)

	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["code"] != "UNAUTHORIZED" {
		t.Errorf("Expected UNAUTHORIZED code, got %v", body)
	}
}

func TestLoginFlow(t *testing.T) {
	setupTestApp(t)
	handler := requireAuth(newMux())

	// Wrong password is rejected.
	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "wrong"})
	req := httptest.NewRequest("POST", "/auth/login", bytes.NewReader(body))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	testutil.AssertStatus(t, w, 401)

	// Correct credentials issue a session cookie.
	body, _ = json.Marshal(map[string]string{"username": "admin", "password": "changeme"})
	req = httptest.NewRequest("POST", "/auth/login", bytes.NewReader(body))
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	testutil.AssertStatus(t, w, 200)

	var session *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "mex_session" {
			session = c
		}
	}
	if session == nil || session.Value == "" {
		t.Fatal("Login must set the mex_session cookie")
	}

	// The cookie opens the API.
	req = httptest.NewRequest("GET", "/api/v1/workorders", nil)
	req.AddCookie(session)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	testutil.AssertStatus(t, w, 200)

	// Logout invalidates it.
	req = httptest.NewRequest("POST", "/auth/logout", nil)
	req.AddCookie(session)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	testutil.AssertStatus(t, w, 200)

	req = httptest.NewRequest("GET", "/api/v1/workorders", nil)
	req.AddCookie(session)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	testutil.AssertStatus(t, w, 401)
}

func TestExpiredSessionRejected(t *testing.T) {
	setupTestApp(t)
	handler := requireAuth(newMux())

	userID := testutil.CreateTestUser(t, db, "old", "password", "user")
	token := "expired-token"
	if _, err := db.Exec("INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, datetime('now', '-1 hour'))",
		token, userID); err != nil {
		t.Fatalf("Failed to insert expired session: %v", err)
	}

	req := testutil.AuthedRequest("GET", "/api/v1/workorders", nil, token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	testutil.AssertStatus(t, w, 401)
}
