package privilege

import "strings"

func normalizeRecord(r Record) Record {
	r.Description = strings.TrimSpace(r.Description)
	if r.Status != StatusActive {
		r.Status = StatusInactive
	}
	return r
}

// Normalize returns a copy of the set with every status coerced to
// active/inactive. Normalizing an already-normalized set is a no-op.
func Normalize(s Set) Set {
	out := make(Set, len(s))
	for module, recs := range s {
		list := make([]Record, 0, len(recs))
		for _, r := range recs {
			list = append(list, normalizeRecord(r))
		}
		out[module] = list
	}
	return out
}

// Merge consolidates per-role privilege sets into one. Role order decides
// which casing of a module key survives, nothing else: merging is a union
// keyed by description, and an active grant from any role wins over an
// inactive one ("active dominates"). A wildcard in any input replaces the
// whole result.
func Merge(sets ...Set) Set {
	for _, s := range sets {
		if s.HasWildcard() {
			return WildcardSet()
		}
	}
	merged := make(Set)
	for _, s := range sets {
		for module, recs := range s {
			existing, ok := merged[module]
			if !ok {
				list := make([]Record, 0, len(recs))
				for _, r := range recs {
					list = append(list, normalizeRecord(r))
				}
				merged[module] = list
				continue
			}
			merged[module] = mergeRecords(existing, recs)
		}
	}
	return merged
}

func mergeRecords(existing, incoming []Record) []Record {
	index := make(map[string]int, len(existing))
	for i, r := range existing {
		index[r.Description] = i
	}
	for _, r := range incoming {
		r = normalizeRecord(r)
		if i, ok := index[r.Description]; ok {
			// Never downgrade an active grant.
			if r.Active() {
				existing[i].Status = StatusActive
			}
			continue
		}
		index[r.Description] = len(existing)
		existing = append(existing, r)
	}
	return existing
}
