package main

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"mex/internal/occ"
	"mex/internal/testutil"
)

func TestNCRUpdateConflictCarriesBothSides(t *testing.T) {
	token := setupTestApp(t)

	req := testutil.AuthedJSONRequest(t, "POST", "/api/v1/ncrs", map[string]any{
		"id":       "NCR-100",
		"title":    "Solder bridging on U7",
		"ipn":      "PCB-042",
		"severity": "major",
	}, token)
	w := httptest.NewRecorder()
	newMux().ServeHTTP(w, req)
	testutil.AssertStatus(t, w, 200)

	// The v1 snapshot both editors started from, database defaults included.
	var base occ.Entity
	testutil.DecodeEnvelope(t, w, &base)

	// A quality engineer fills in the root cause first.
	qaToken := testutil.LoginAs(t, db, "quinn")
	req = testutil.AuthedJSONRequest(t, "PUT", "/api/v1/ncrs/NCR-100", map[string]any{
		"root_cause": "stencil misalignment",
		"version":    1,
	}, qaToken)
	w = httptest.NewRecorder()
	newMux().ServeHTTP(w, req)
	testutil.AssertStatus(t, w, 200)

	// The stale writer touched a different field, so the envelope carries
	// everything a client needs for a clean three-way merge.
	req = testutil.AuthedJSONRequest(t, "PUT", "/api/v1/ncrs/NCR-100", map[string]any{
		"corrective_action": "re-seat stencil and re-run lot",
		"version":           1,
	}, token)
	w = httptest.NewRecorder()
	newMux().ServeHTTP(w, req)
	testutil.AssertStatus(t, w, 409)

	var env occ.Envelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("Failed to decode conflict envelope: %v", err)
	}
	d := env.Conflict
	if d == nil {
		t.Fatal("Expected a conflict descriptor")
	}
	if d.CurrentData["root_cause"] != "stencil misalignment" {
		t.Errorf("current_data missing the winner's field: %v", d.CurrentData["root_cause"])
	}
	if !occ.ValueEqual(d.SubmittedChanges["corrective_action"], "re-seat stencil and re-run lot") {
		t.Errorf("submitted_changes missing the loser's field: %v", d.SubmittedChanges)
	}

	// Both edits survive an AutoMerge of the envelope's two sides.
	merged, err := occ.AutoMerge(base, d.SubmittedChanges, d.CurrentData)
	if err != nil {
		t.Fatalf("Disjoint edits must auto-merge: %v", err)
	}
	if merged["root_cause"] != "stencil misalignment" || merged["corrective_action"] != "re-seat stencil and re-run lot" {
		t.Errorf("Merge lost an edit: %v", merged)
	}
}
