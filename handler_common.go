package main

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"

	"mex/internal/audit"
	"mex/internal/occ"
	"mex/internal/response"
)

// pageParams reads page/limit query parameters with list defaults.
func pageParams(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	return page, limit
}

// submittedVersion extracts the version field a client echoed back in its
// update body. Updates without a version are rejected before touching the
// row: the version is the compare-and-swap token.
func submittedVersion(changes map[string]any) (int64, bool) {
	v, present := changes[occ.FieldVersion]
	if !present {
		return 0, false
	}
	return occ.NumericVersion(v)
}

// rejectConflict emits the 409 conflict envelope for a stale update and
// records the contention in the audit log. current must be the entity's
// authoritative server-side snapshot.
func rejectConflict(w http.ResponseWriter, r *http.Request, module, id string, current occ.Entity, changes map[string]any, submitted int64) {
	// A version the server never issued is a malformed request, not
	// contention: a descriptor always has current_version > submitted_version.
	if submitted > current.Version() {
		response.Err(w, fmt.Sprintf("submitted version %d is ahead of the current version %d", submitted, current.Version()), 400)
		return
	}
	updatedBy, _ := current["updated_by"].(string)
	updatedAt, _ := current[occ.FieldUpdatedAt].(string)
	d := &occ.Descriptor{
		CurrentVersion:   current.Version(),
		SubmittedVersion: submitted,
		CurrentData:      current,
		SubmittedChanges: changes,
		UpdatedBy:        updatedBy,
		UpdatedAt:        updatedAt,
		Message: fmt.Sprintf("%s %s was modified by %s; your change is based on version %d but the current version is %d",
			module, id, displayName(updatedBy), submitted, current.Version()),
	}
	audit.Log(db, audit.Username(db, r), audit.ActionConflict, module, id,
		fmt.Sprintf("update rejected: submitted v%d, current v%d", submitted, current.Version()))
	response.Conflict(w, d)
}

func displayName(username string) string {
	if username == "" {
		return "another user"
	}
	return username
}

// casUpdate runs the compare-and-swap UPDATE and reports whether the row was
// won. query must end with "WHERE id=? AND version=?" and bump
// version=version+1; args are the SET values (id and expected version are
// appended here).
func casUpdate(query string, args []any, id string, expected int64) (bool, error) {
	args = append(args, id, expected)
	res, err := db.Exec(query, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// notFoundOr500 maps a row-scan error to the right API error.
func notFoundOr500(w http.ResponseWriter, err error, what string) {
	if err == sql.ErrNoRows {
		response.Err(w, what+" not found", 404)
		return
	}
	response.Err(w, err.Error(), 500)
}
