package occ

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// EnvelopeError is the fixed error discriminator in the conflict envelope.
const EnvelopeError = "CONFLICT"

// Descriptor is the server's structured description of a rejected update.
// By construction CurrentVersion > SubmittedVersion: a conflict means the
// server has moved ahead of the submitted snapshot.
type Descriptor struct {
	CurrentVersion   int64   `json:"current_version"`
	SubmittedVersion int64   `json:"submitted_version"`
	CurrentData      Entity  `json:"current_data"`
	SubmittedChanges Changes `json:"submitted_changes"`
	UpdatedBy        string  `json:"updated_by,omitempty"`
	UpdatedAt        string  `json:"updated_at,omitempty"`
	Message          string  `json:"message"`
}

// Envelope is the HTTP 409 response body for a version conflict.
type Envelope struct {
	Error    string      `json:"error"`
	Message  string      `json:"message"`
	Conflict *Descriptor `json:"conflict"`
}

// ConflictError wraps exactly one Descriptor as a typed error. It is
// distinguishable from every other failure mode by type, never by string
// matching.
type ConflictError struct {
	Descriptor *Descriptor
}

func (e *ConflictError) Error() string {
	d := e.Descriptor
	return fmt.Sprintf("version conflict: submitted version %d, server at version %d: %s",
		d.SubmittedVersion, d.CurrentVersion, d.Message)
}

// StatusCode returns the fixed HTTP classification of a version conflict.
func (e *ConflictError) StatusCode() int { return http.StatusConflict }

// ParseConflict recognizes a version conflict in a transport response.
// It returns a ConflictError if and only if the status code is exactly 409
// and the body matches the conflict envelope shape; any other status or
// shape returns (nil, false) and the caller must propagate the original
// failure unchanged. This is a boundary-only concern: no domain semantics
// are inspected, only the envelope.
func ParseConflict(statusCode int, body []byte) (*ConflictError, bool) {
	if statusCode != http.StatusConflict {
		return nil, false
	}
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, false
	}
	if env.Error != EnvelopeError || env.Conflict == nil {
		return nil, false
	}
	return &ConflictError{Descriptor: env.Conflict}, true
}

// NewEnvelope builds the wire envelope for a rejected update. The server
// handlers use this; the message is duplicated at both levels so thin
// clients can show it without digging into the descriptor.
func NewEnvelope(d *Descriptor) *Envelope {
	return &Envelope{Error: EnvelopeError, Message: d.Message, Conflict: d}
}
