package main

import (
	"encoding/json"
	"net/http"
	"time"

	"mex/internal/audit"
	"mex/internal/auth"
	"mex/internal/response"
)

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type UserResponse struct {
	ID          int    `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

func handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Err(w, "Invalid request body", 400)
		return
	}

	var id int
	var passwordHash, displayName, role string
	var active int
	err := db.QueryRow("SELECT id, password_hash, display_name, role, active FROM users WHERE username = ?", req.Username).
		Scan(&id, &passwordHash, &displayName, &role, &active)
	if err != nil {
		response.Err(w, "Invalid username or password", 401)
		return
	}
	if !auth.CheckPassword(passwordHash, req.Password) {
		response.Err(w, "Invalid username or password", 401)
		return
	}
	if active == 0 {
		response.Err(w, "Account deactivated", 403)
		return
	}

	db.Exec("DELETE FROM sessions WHERE expires_at < CURRENT_TIMESTAMP")

	token := auth.GenerateToken()
	expires := time.Now().Add(time.Duration(cfg.SessionTTLHrs) * time.Hour)
	_, err = db.Exec("INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)",
		token, id, expires.Format("2006-01-02 15:04:05"))
	if err != nil {
		response.Err(w, "Failed to create session", 500)
		return
	}
	db.Exec("UPDATE users SET last_login = CURRENT_TIMESTAMP WHERE id = ?", id)

	http.SetCookie(w, &http.Cookie{
		Name:     "mex_session",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	})

	audit.Log(db, req.Username, audit.ActionLogin, "auth", req.Username, "logged in")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"user": UserResponse{ID: id, Username: req.Username, DisplayName: displayName, Role: role},
	})
}

func handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie("mex_session"); err == nil {
		audit.Log(db, audit.Username(db, r), audit.ActionLogout, "auth", "", "logged out")
		db.Exec("DELETE FROM sessions WHERE token = ?", cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "mex_session",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func handleMe(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie("mex_session")
	if err != nil {
		response.Err(w, "Unauthorized", 401)
		return
	}
	var u UserResponse
	err = db.QueryRow(`SELECT u.id, u.username, COALESCE(u.display_name,''), u.role
		FROM users u JOIN sessions s ON u.id = s.user_id
		WHERE s.token = ? AND s.expires_at > CURRENT_TIMESTAMP`, cookie.Value).
		Scan(&u.ID, &u.Username, &u.DisplayName, &u.Role)
	if err != nil {
		response.Err(w, "Unauthorized", 401)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"user": u})
}
