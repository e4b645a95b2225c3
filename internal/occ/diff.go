package occ

import "sort"

// ChangedFields returns the sorted set of fields whose values differ between
// two snapshots of the same entity. Every key present in current is compared
// against original under ValueEqual; version and updated_at are always
// excluded, they are bookkeeping rather than semantic content.
func ChangedFields(original, current Entity) []string {
	var changed []string
	for k, cur := range current {
		if k == FieldVersion || k == FieldUpdatedAt {
			continue
		}
		orig, present := original[k]
		if !present || !ValueEqual(orig, cur) {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}
