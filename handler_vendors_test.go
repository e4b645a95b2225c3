package main

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"mex/internal/models"
	"mex/internal/occ"
	"mex/internal/testutil"
)

func createTestVendor(t *testing.T, token string) models.Vendor {
	t.Helper()
	req := testutil.AuthedJSONRequest(t, "POST", "/api/v1/vendors", map[string]any{
		"id":            "V-100",
		"name":          "Acme Fasteners",
		"contact_email": "sales@acme.test",
		"payment_terms": "net30",
	}, token)
	w := httptest.NewRecorder()
	newMux().ServeHTTP(w, req)
	testutil.AssertStatus(t, w, 200)

	var v models.Vendor
	testutil.DecodeEnvelope(t, w, &v)
	return v
}

func TestUpdateVendorStaleVersionConflict(t *testing.T) {
	token := setupTestApp(t)
	createTestVendor(t, token)

	req := testutil.AuthedJSONRequest(t, "PUT", "/api/v1/vendors/V-100", map[string]any{
		"payment_terms": "net60",
		"version":       1,
	}, token)
	w := httptest.NewRecorder()
	newMux().ServeHTTP(w, req)
	testutil.AssertStatus(t, w, 200)

	req = testutil.AuthedJSONRequest(t, "PUT", "/api/v1/vendors/V-100", map[string]any{
		"lead_time_days": 14,
		"version":        1,
	}, token)
	w = httptest.NewRecorder()
	newMux().ServeHTTP(w, req)
	testutil.AssertStatus(t, w, 409)

	var env occ.Envelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("Failed to decode conflict envelope: %v", err)
	}
	if env.Error != occ.EnvelopeError || env.Conflict == nil {
		t.Fatalf("Expected CONFLICT envelope, got %+v", env)
	}
	if env.Conflict.CurrentVersion != 2 || env.Conflict.SubmittedVersion != 1 {
		t.Errorf("Expected current=2 submitted=1, got %+v", env.Conflict)
	}
	if env.Conflict.CurrentData["payment_terms"] != "net60" {
		t.Errorf("current_data must hold the winning write, got %v", env.Conflict.CurrentData["payment_terms"])
	}
}

func TestDeleteVendor(t *testing.T) {
	token := setupTestApp(t)
	createTestVendor(t, token)

	req := testutil.AuthedRequest("DELETE", "/api/v1/vendors/V-100", nil, token)
	w := httptest.NewRecorder()
	newMux().ServeHTTP(w, req)
	testutil.AssertStatus(t, w, 200)

	req = testutil.AuthedRequest("GET", "/api/v1/vendors/V-100", nil, token)
	w = httptest.NewRecorder()
	newMux().ServeHTTP(w, req)
	testutil.AssertStatus(t, w, 404)
}
