package main

import (
	"fmt"
	"net/http"

	"mex/internal/audit"
	"mex/internal/models"
	"mex/internal/response"
)

var validNCRSeverities = map[string]bool{"minor": true, "major": true, "critical": true}

var validNCRStatuses = map[string]bool{
	"open": true, "investigating": true, "resolved": true, "closed": true,
}

const ncrColumns = `id,title,COALESCE(description,''),COALESCE(ipn,''),severity,status,COALESCE(root_cause,''),COALESCE(corrective_action,''),version,created_at,updated_at,COALESCE(updated_by,'')`

func scanNCR(row interface{ Scan(...any) error }) (models.NCR, error) {
	var n models.NCR
	err := row.Scan(&n.ID, &n.Title, &n.Description, &n.IPN, &n.Severity, &n.Status,
		&n.RootCause, &n.CorrectiveAction, &n.Version, &n.CreatedAt, &n.UpdatedAt, &n.UpdatedBy)
	return n, err
}

func getNCR(id string) (models.NCR, error) {
	return scanNCR(db.QueryRow("SELECT "+ncrColumns+" FROM ncrs WHERE id=?", id))
}

func handleListNCRs(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)

	var total int
	if err := db.QueryRow("SELECT COUNT(*) FROM ncrs").Scan(&total); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	rows, err := db.Query("SELECT "+ncrColumns+" FROM ncrs ORDER BY id LIMIT ? OFFSET ?",
		limit, (page-1)*limit)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	ncrs := []models.NCR{}
	for rows.Next() {
		n, err := scanNCR(rows)
		if err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		ncrs = append(ncrs, n)
	}
	response.JSONMeta(w, ncrs, total, page, limit)
}

func handleGetNCR(w http.ResponseWriter, r *http.Request, id string) {
	n, err := getNCR(id)
	if err != nil {
		notFoundOr500(w, err, "NCR")
		return
	}
	response.JSON(w, n)
}

func handleCreateNCR(w http.ResponseWriter, r *http.Request) {
	var n models.NCR
	if err := response.DecodeBody(r, &n); err != nil {
		response.Err(w, "invalid request body", 400)
		return
	}
	if n.ID == "" || n.Title == "" {
		response.Err(w, "id and title are required", 400)
		return
	}
	if n.Severity == "" {
		n.Severity = "minor"
	}
	if n.Status == "" {
		n.Status = "open"
	}
	if !validNCRSeverities[n.Severity] || !validNCRStatuses[n.Status] {
		response.Err(w, "invalid severity or status", 400)
		return
	}

	username := audit.Username(db, r)
	_, err := db.Exec(`INSERT INTO ncrs (id, title, description, ipn, severity, status, root_cause, corrective_action, updated_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.Title, n.Description, n.IPN, n.Severity, n.Status, n.RootCause, n.CorrectiveAction, username)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	created, err := getNCR(n.ID)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	audit.Log(db, username, audit.ActionCreate, "ncrs", n.ID, "created "+n.Title)
	wsHub.BroadcastChange("ncr", "create", n.ID, created.Version)
	response.JSON(w, created)
}

func handleUpdateNCR(w http.ResponseWriter, r *http.Request, id string) {
	var changes map[string]any
	if err := response.DecodeBody(r, &changes); err != nil {
		response.Err(w, "invalid request body", 400)
		return
	}
	submitted, ok := submittedVersion(changes)
	if !ok {
		response.Err(w, "version is required for updates", 400)
		return
	}

	cur, err := getNCR(id)
	if err != nil {
		notFoundOr500(w, err, "NCR")
		return
	}
	if submitted != cur.Version {
		rejectConflict(w, r, "ncrs", id, models.Entity(cur), changes, submitted)
		return
	}

	updated := cur
	if err := models.Apply(&updated, changes); err != nil {
		response.Err(w, "invalid field value: "+err.Error(), 400)
		return
	}
	if !validNCRSeverities[updated.Severity] || !validNCRStatuses[updated.Status] {
		response.Err(w, "invalid severity or status", 400)
		return
	}

	username := audit.Username(db, r)
	won, err := casUpdate(`UPDATE ncrs SET title=?,description=?,ipn=?,severity=?,status=?,root_cause=?,corrective_action=?,
		version=version+1,updated_at=CURRENT_TIMESTAMP,updated_by=? WHERE id=? AND version=?`,
		[]any{updated.Title, updated.Description, updated.IPN, updated.Severity,
			updated.Status, updated.RootCause, updated.CorrectiveAction, username},
		id, submitted)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if !won {
		lost, err := getNCR(id)
		if err != nil {
			notFoundOr500(w, err, "NCR")
			return
		}
		rejectConflict(w, r, "ncrs", id, models.Entity(lost), changes, submitted)
		return
	}

	fresh, err := getNCR(id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	audit.Log(db, username, audit.ActionUpdate, "ncrs", id,
		fmt.Sprintf("updated to v%d", fresh.Version))
	wsHub.BroadcastChange("ncr", "update", id, fresh.Version)
	response.JSON(w, fresh)
}
