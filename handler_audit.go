package main

import (
	"net/http"
	"strconv"

	"mex/internal/audit"
	"mex/internal/export"
	"mex/internal/response"
)

type auditEntry struct {
	ID        int    `json:"id"`
	Module    string `json:"module"`
	Action    string `json:"action"`
	RecordID  string `json:"record_id"`
	Username  string `json:"username"`
	Summary   string `json:"summary"`
	CreatedAt string `json:"created_at"`
}

func queryAuditLog(module, action string, limit, offset int) ([]auditEntry, error) {
	query := "SELECT id, module, action, record_id, username, summary, created_at FROM audit_log WHERE 1=1"
	var args []any
	if module != "" {
		query += " AND module=?"
		args = append(args, module)
	}
	if action != "" {
		query += " AND action=?"
		args = append(args, action)
	}
	query += " ORDER BY id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []auditEntry{}
	for rows.Next() {
		var e auditEntry
		if err := rows.Scan(&e.ID, &e.Module, &e.Action, &e.RecordID, &e.Username, &e.Summary, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func handleAuditLog(w http.ResponseWriter, r *http.Request) {
	page, limit := pageParams(r)
	entries, err := queryAuditLog(r.URL.Query().Get("module"), r.URL.Query().Get("action"), limit, (page-1)*limit)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	var total int
	if err := db.QueryRow("SELECT COUNT(*) FROM audit_log").Scan(&total); err != nil {
		response.Err(w, err.Error(), 500)
		return
	}
	response.JSONMeta(w, entries, total, page, limit)
}

// handleExportAuditLog exports the audit trail, conflict rejections
// included, as CSV or Excel.
func handleExportAuditLog(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	entries, err := queryAuditLog(r.URL.Query().Get("module"), r.URL.Query().Get("action"), 10000, 0)
	if err != nil {
		response.Err(w, err.Error(), 500)
		return
	}

	headers := []string{"ID", "Module", "Action", "Record", "User", "Summary", "At"}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			strconv.Itoa(e.ID), e.Module, e.Action, e.RecordID, e.Username, e.Summary, e.CreatedAt,
		})
	}

	audit.Log(db, audit.Username(db, r), audit.ActionExport, "audit", "", format+" export")
	if format == "xlsx" {
		export.Excel(w, "AuditLog", headers, rows)
	} else {
		export.CSV(w, "audit_log.csv", headers, rows)
	}
}
