package occ

import (
	"fmt"
	"sort"
	"strings"
)

// MergeConflictError reports fields that were independently changed to two
// different values. Such fields must be resolved by a human; AutoMerge never
// silently picks a side.
type MergeConflictError struct {
	Fields []string
}

func (e *MergeConflictError) Error() string {
	return fmt.Sprintf("cannot auto-merge, fields changed on both sides: %s",
		strings.Join(e.Fields, ", "))
}

// AutoMerge reconciles two divergent edits against their common baseline.
// original is the last-known-common snapshot, yours is the local delta (only
// the fields the user intended to change), theirs is the server's current
// full entity.
//
// The merge starts from a copy of theirs, so fields only the other side
// touched are already in place. For each field in yours (id, version and
// updated_at excluded): if only you changed it, your value wins; if both
// sides changed it to the same value, it stays; if both sides changed it to
// different values, the merge fails with a MergeConflictError naming every
// such field.
//
// On success the merged entity carries theirs' version and must be
// resubmitted against it. Pure and deterministic.
func AutoMerge(original Entity, yours Changes, theirs Entity) (Entity, error) {
	merged := theirs.Clone()
	var conflicts []string

	for k, yourVal := range yours {
		if k == FieldID || k == FieldVersion || k == FieldUpdatedAt {
			continue
		}
		youChanged := !ValueEqual(yourVal, original[k])
		theyChanged := !ValueEqual(theirs[k], original[k])

		switch {
		case youChanged && theyChanged && !ValueEqual(yourVal, theirs[k]):
			conflicts = append(conflicts, k)
		case youChanged && !theyChanged:
			merged[k] = cloneValue(yourVal)
		}
		// Only they changed, or neither changed, or both converged on the
		// same value: merged already holds theirs.
	}

	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return nil, &MergeConflictError{Fields: conflicts}
	}
	return merged, nil
}
