package occ

import "sort"

// Partition buckets the fields touched by either side of a conflict for
// display and decision-making. The three slices are disjoint and together
// cover exactly the union of fields either side touched.
type Partition struct {
	Conflicting []string `json:"conflicting"`
	OnlyMine    []string `json:"only_mine"`
	OnlyTheirs  []string `json:"only_theirs"`
}

// CanAutoMerge reports whether an unattended merge may be offered: only when
// no field was touched by both sides.
func (p Partition) CanAutoMerge() bool { return len(p.Conflicting) == 0 }

// PartitionConflict partitions a conflict into both-changed, mine-only, and
// theirs-only field buckets. original is the session baseline the local
// changes were made against; localChanges is the rejected delta. Read-only.
func PartitionConflict(original Entity, d *Descriptor, localChanges Changes) Partition {
	mine := make(map[string]bool, len(localChanges))
	for k := range localChanges {
		if k == FieldVersion {
			continue
		}
		mine[k] = true
	}

	theirs := make(map[string]bool)
	for _, k := range ChangedFields(original, d.CurrentData) {
		theirs[k] = true
	}

	p := Partition{
		Conflicting: []string{},
		OnlyMine:    []string{},
		OnlyTheirs:  []string{},
	}
	for k := range mine {
		if theirs[k] {
			p.Conflicting = append(p.Conflicting, k)
		} else {
			p.OnlyMine = append(p.OnlyMine, k)
		}
	}
	for k := range theirs {
		if !mine[k] {
			p.OnlyTheirs = append(p.OnlyTheirs, k)
		}
	}
	sort.Strings(p.Conflicting)
	sort.Strings(p.OnlyMine)
	sort.Strings(p.OnlyTheirs)
	return p
}
