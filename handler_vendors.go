package main

import (
	"fmt"
	"net/http"

	"mex/internal/audit"
	"mex/internal/models"
	"mex/internal/response"
)

var validVendorStatuses = map[string]bool{
	"active": true, "preferred": true, "inactive": true, "blocked": true,
}

const vendorColumns = `id,name,COALESCE(contact_email,''),COALESCE(payment_terms,''),lead_time_days,status,COALESCE(notes,''),version,created_at,updated_at,COALESCE(updated_by,'')`

func scanVendor(row interface{ Scan(...any) error }) (models.Vendor, error) {
	var v models.Vendor
	err := row.Scan(&v.ID, &v.Name, &v.ContactEmail, &v.PaymentTerms, &v.LeadTimeDays,
		&v.Status, &v.Notes, &v.Version, &v.CreatedAt, &v.UpdatedAt, &v.UpdatedBy)
	return v, err
}

func getVendor(id string) (models.Vendor, error) {
	return scanVendor(db.QueryRow("SELECT "+vendorColumns+" FROM vendors WHERE id=?", id))
}

func handleListVendors(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)

	var total int
	if err := db.QueryRow("SELECT COUNT(*) FROM vendors").Scan(&total); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	rows, err := db.Query("SELECT "+vendorColumns+" FROM vendors ORDER BY id LIMIT ? OFFSET ?",
		limit, (page-1)*limit)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	vendors := []models.Vendor{}
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		vendors = append(vendors, v)
	}
	response.JSONMeta(w, vendors, total, page, limit)
}

func handleGetVendor(w http.ResponseWriter, r *http.Request, id string) {
	v, err := getVendor(id)
	if err != nil {
		notFoundOr500(w, err, "vendor")
		return
	}
	response.JSON(w, v)
}

func handleCreateVendor(w http.ResponseWriter, r *http.Request) {
	var v models.Vendor
	if err := response.DecodeBody(r, &v); err != nil {
		response.Err(w, "invalid request body", 400)
		return
	}
	if v.ID == "" || v.Name == "" {
		response.Err(w, "id and name are required", 400)
		return
	}
	if v.Status == "" {
		v.Status = "active"
	}
	if !validVendorStatuses[v.Status] {
		response.Err(w, "invalid status", 400)
		return
	}

	username := audit.Username(db, r)
	_, err := db.Exec(`INSERT INTO vendors (id, name, contact_email, payment_terms, lead_time_days, status, notes, updated_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.Name, v.ContactEmail, v.PaymentTerms, v.LeadTimeDays, v.Status, v.Notes, username)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	created, err := getVendor(v.ID)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	audit.Log(db, username, audit.ActionCreate, "vendors", v.ID, "created "+v.Name)
	wsHub.BroadcastChange("vendor", "create", v.ID, created.Version)
	response.JSON(w, created)
}

func handleUpdateVendor(w http.ResponseWriter, r *http.Request, id string) {
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

	cur, err := getVendor(id)
	if err != nil {
		notFoundOr500(w, err, "vendor")
		return
	}
	if submitted != cur.Version {
		rejectConflict(w, r, "vendors", id, models.Entity(cur), changes, submitted)
		return
	}

	updated := cur
	if err := models.Apply(&updated, changes); err != nil {
		response.Err(w, "invalid field value: "+err.Error(), 400)
		return
	}
	if !validVendorStatuses[updated.Status] {
		response.Err(w, "invalid status", 400)
		return
	}
	if updated.LeadTimeDays < 0 {
		response.Err(w, "lead_time_days must be non-negative", 400)
		return
	}

	username := audit.Username(db, r)
	won, err := casUpdate(`UPDATE vendors SET name=?,contact_email=?,payment_terms=?,lead_time_days=?,status=?,notes=?,
		version=version+1,updated_at=CURRENT_TIMESTAMP,updated_by=? WHERE id=? AND version=?`,
		[]any{updated.Name, updated.ContactEmail, updated.PaymentTerms, updated.LeadTimeDays,
			updated.Status, updated.Notes, username},
		id, submitted)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if !won {
		lost, err := getVendor(id)
		if err != nil {
			notFoundOr500(w, err, "vendor")
			return
		}
		rejectConflict(w, r, "vendors", id, models.Entity(lost), changes, submitted)
		return
	}

	fresh, err := getVendor(id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	audit.Log(db, username, audit.ActionUpdate, "vendors", id,
		fmt.Sprintf("updated to v%d", fresh.Version))
	wsHub.BroadcastChange("vendor", "update", id, fresh.Version)
	response.JSON(w, fresh)
}

func handleDeleteVendor(w http.ResponseWriter, r *http.Request, id string) {
	res, err := db.Exec("DELETE FROM vendors WHERE id=?", id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		response.Err(w, "vendor not found", 404)
		return
	}
	audit.Log(db, audit.Username(db, r), audit.ActionDelete, "vendors", id, "deleted")
	wsHub.BroadcastChange("vendor", "delete", id, 0)
	response.JSON(w, map[string]string{"deleted": id})
}
