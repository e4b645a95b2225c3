// Package models holds the domain types shared by the handlers, the API
// client, and the tests.
package models

import (
	"encoding/json"

	"mex/internal/occ"
)

// APIResponse is the standard success envelope.
type APIResponse struct {
	Data any   `json:"data"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta carries pagination metadata.
type Meta struct {
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// WorkOrder is a versioned manufacturing work order.
type WorkOrder struct {
	ID          string `json:"id"`
	AssemblyIPN string `json:"assembly_ipn"`
	Qty         int    `json:"qty"`
	QtyGood     int    `json:"qty_good"`
	QtyScrap    int    `json:"qty_scrap"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	Notes       string `json:"notes"`
	DueDate     string `json:"due_date"`
	Version     int64  `json:"version"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
	UpdatedBy   string `json:"updated_by"`
}

// NCR is a versioned non-conformance report.
type NCR struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	IPN              string `json:"ipn"`
	Severity         string `json:"severity"`
	Status           string `json:"status"`
	RootCause        string `json:"root_cause"`
	CorrectiveAction string `json:"corrective_action"`
	Version          int64  `json:"version"`
	CreatedAt        string `json:"created_at"`
	UpdatedAt        string `json:"updated_at"`
	UpdatedBy        string `json:"updated_by"`
}

// Vendor is a versioned supplier record.
type Vendor struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ContactEmail string `json:"contact_email"`
	PaymentTerms string `json:"payment_terms"`
	LeadTimeDays int    `json:"lead_time_days"`
	Status       string `json:"status"`
	Notes        string `json:"notes"`
	Version      int64  `json:"version"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
	UpdatedBy    string `json:"updated_by"`
}

// Entity converts a domain struct to its JSON-shaped occ form. Panics only
// on unmarshalable types, which the types above are not.
func Entity(v any) occ.Entity {
	e, err := occ.FromStruct(v)
	if err != nil {
		panic(err)
	}
	return e
}

// Apply overlays a partial change set onto a domain struct by JSON
// round-trip, so updates accept the same partial bodies the OCC engine
// diffs and merges.
func Apply(target any, changes map[string]any) error {
	data, err := json.Marshal(changes)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}
