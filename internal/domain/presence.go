package domain

import (
	"slices"
)

// PresenceRecord is the shared "devices online" aggregate.
// Count always equals len(MemberIDs); both member lists are kept sorted
// and free of duplicates so equal memberships compare equal.
type PresenceRecord struct {
	Count       int      `json:"count"`
	MemberNames []string `json:"memberNames"`
	MemberIDs   []int    `json:"memberIds"`
}

// Join returns the record with the member added. Joining twice is a no-op.
func (r PresenceRecord) Join(id int, name string) PresenceRecord {
	ids := normalizeIDs(r.MemberIDs)
	names := normalizeNames(r.MemberNames)
	if !slices.Contains(ids, id) {
		ids = append(ids, id)
		slices.Sort(ids)
	}
	if name != "" && !slices.Contains(names, name) {
		names = append(names, name)
		slices.Sort(names)
	}
	return PresenceRecord{Count: len(ids), MemberNames: names, MemberIDs: ids}
}

// Leave returns the record with the member removed. Leaving when absent
// is a no-op, so Count never goes negative.
func (r PresenceRecord) Leave(id int, name string) PresenceRecord {
	ids := normalizeIDs(r.MemberIDs)
	names := normalizeNames(r.MemberNames)
	ids = slices.DeleteFunc(ids, func(v int) bool { return v == id })
	if name != "" {
		names = slices.DeleteFunc(names, func(v string) bool { return v == name })
	}
	return PresenceRecord{Count: len(ids), MemberNames: names, MemberIDs: ids}
}

// Normalize repairs a record read from the store: duplicates dropped,
// lists sorted and Count recomputed.
func (r PresenceRecord) Normalize() PresenceRecord {
	ids := normalizeIDs(r.MemberIDs)
	return PresenceRecord{Count: len(ids), MemberNames: normalizeNames(r.MemberNames), MemberIDs: ids}
}

func (r PresenceRecord) Has(id int) bool { return slices.Contains(r.MemberIDs, id) }

func (r PresenceRecord) Equal(o PresenceRecord) bool {
	return r.Count == o.Count && slices.Equal(r.MemberIDs, o.MemberIDs) && slices.Equal(r.MemberNames, o.MemberNames)
}

func normalizeIDs(in []int) []int {
	out := slices.Clone(in)
	if out == nil {
		out = []int{}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func normalizeNames(in []string) []string {
	out := slices.Clone(in)
	if out == nil {
		out = []string{}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
