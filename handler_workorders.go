package main

import (
	"fmt"
	"net/http"

	"mex/internal/audit"
	"mex/internal/models"
	"mex/internal/response"
)

var validWOStatuses = map[string]bool{
	"draft": true, "open": true, "in_progress": true,
	"completed": true, "cancelled": true, "on_hold": true,
}

var validWOPriorities = map[string]bool{
	"low": true, "normal": true, "high": true, "critical": true,
}

const woColumns = `id,assembly_ipn,qty,qty_good,qty_scrap,status,priority,COALESCE(notes,''),COALESCE(due_date,''),version,created_at,updated_at,COALESCE(updated_by,'')`

func scanWorkOrder(row interface{ Scan(...any) error }) (models.WorkOrder, error) {
	var wo models.WorkOrder
	err := row.Scan(&wo.ID, &wo.AssemblyIPN, &wo.Qty, &wo.QtyGood, &wo.QtyScrap,
		&wo.Status, &wo.Priority, &wo.Notes, &wo.DueDate, &wo.Version,
		&wo.CreatedAt, &wo.UpdatedAt, &wo.UpdatedBy)
	return wo, err
}

func getWorkOrder(id string) (models.WorkOrder, error) {
	return scanWorkOrder(db.QueryRow("SELECT "+woColumns+" FROM work_orders WHERE id=?", id))
}

func handleListWorkOrders(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	status := r.URL.Query().Get("status")

	query := "SELECT " + woColumns + " FROM work_orders"
	countQuery := "SELECT COUNT(*) FROM work_orders"
	var args []any
	if status != "" {
		query += " WHERE status=?"
		countQuery += " WHERE status=?"
		args = append(args, status)
	}
	query += " ORDER BY id LIMIT ? OFFSET ?"

	var total int
	if err := db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	rows, err := db.Query(query, append(args, limit, (page-1)*limit)...)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	defer rows.Close()

	wos := []models.WorkOrder{}
	for rows.Next() {
		wo, err := scanWorkOrder(rows)
		if err != nil {
			response.Err(w, err.Error(), 500)
			return
		}
		wos = append(wos, wo)
	}
	response.JSONMeta(w, wos, total, page, limit)
}

func handleGetWorkOrder(w http.ResponseWriter, r *http.Request, id string) {
	wo, err := getWorkOrder(id)
	if err != nil {
		notFoundOr500(w, err, "work order")
		return
	}
	response.JSON(w, wo)
}

func handleCreateWorkOrder(w http.ResponseWriter, r *http.Request) {
	var wo models.WorkOrder
	if err := response.DecodeBody(r, &wo); err != nil {
		response.Err(w, "invalid request body", 400)
		return
	}
	if wo.ID == "" || wo.AssemblyIPN == "" {
		response.Err(w, "id and assembly_ipn are required", 400)
		return
	}
	if wo.Qty < 1 {
		wo.Qty = 1
	}
	if wo.Status == "" {
		wo.Status = "draft"
	}
	if wo.Priority == "" {
		wo.Priority = "normal"
	}
	if !validWOStatuses[wo.Status] || !validWOPriorities[wo.Priority] {
		response.Err(w, "invalid status or priority", 400)
		return
	}

	username := audit.Username(db, r)
	_, err := db.Exec(`INSERT INTO work_orders (id, assembly_ipn, qty, status, priority, notes, due_date, updated_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		wo.ID, wo.AssemblyIPN, wo.Qty, wo.Status, wo.Priority, wo.Notes, wo.DueDate, username)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	created, err := getWorkOrder(wo.ID)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	audit.Log(db, username, audit.ActionCreate, "workorders", wo.ID, "created "+wo.AssemblyIPN)
	wsHub.BroadcastChange("workorder", "create", wo.ID, created.Version)
	response.JSON(w, created)
}

// handleUpdateWorkOrder accepts a partial body that must echo the last-known
// version. A stale version gets the conflict envelope; the row-level
// compare-and-swap catches the race that slips between the read and the
// UPDATE.
func handleUpdateWorkOrder(w http.ResponseWriter, r *http.Request, id string) {
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

	cur, err := getWorkOrder(id)
	if err != nil {
		notFoundOr500(w, err, "work order")
		return
	}
	if submitted != cur.Version {
		rejectConflict(w, r, "workorders", id, models.Entity(cur), changes, submitted)
		return
	}

	updated := cur
	if err := models.Apply(&updated, changes); err != nil {
		response.Err(w, "invalid field value: "+err.Error(), 400)
		return
	}
	if !validWOStatuses[updated.Status] || !validWOPriorities[updated.Priority] {
		response.Err(w, "invalid status or priority", 400)
		return
	}
	if updated.Qty < 1 {
		response.Err(w, "qty must be positive", 400)
		return
	}

	username := audit.Username(db, r)
	won, err := casUpdate(`UPDATE work_orders SET assembly_ipn=?,qty=?,qty_good=?,qty_scrap=?,status=?,priority=?,notes=?,due_date=?,
		version=version+1,updated_at=CURRENT_TIMESTAMP,updated_by=? WHERE id=? AND version=?`,
		[]any{updated.AssemblyIPN, updated.Qty, updated.QtyGood, updated.QtyScrap,
			updated.Status, updated.Priority, updated.Notes, updated.DueDate, username},
		id, submitted)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if !won {
		lost, err := getWorkOrder(id)
		if err != nil {
			notFoundOr500(w, err, "work order")
			return
		}
		rejectConflict(w, r, "workorders", id, models.Entity(lost), changes, submitted)
		return
	}

	fresh, err := getWorkOrder(id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	audit.Log(db, username, audit.ActionUpdate, "workorders", id,
		fmt.Sprintf("updated to v%d", fresh.Version))
	wsHub.BroadcastChange("workorder", "update", id, fresh.Version)
	response.JSON(w, fresh)
}

func handleDeleteWorkOrder(w http.ResponseWriter, r *http.Request, id string) {
	res, err := db.Exec("DELETE FROM work_orders WHERE id=?", id)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		response.Err(w, "work order not found", 404)
		return
	}
	audit.Log(db, audit.Username(db, r), audit.ActionDelete, "workorders", id, "deleted")
	wsHub.BroadcastChange("workorder", "delete", id, 0)
	response.JSON(w, map[string]string{"deleted": id})
}
