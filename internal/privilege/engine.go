package privilege

import "strings"

// CanPerformAction reports whether the privilege set allows the given action
// in the given UI module. The wildcard set allows everything; otherwise an
// active record under the resolved resource key must start with one of the
// action's description prefixes. Unknown actions and unknown modules deny.
func CanPerformAction(set Set, moduleLabel, action string) bool {
	if set.HasWildcard() {
		return true
	}
	patterns, ok := ActionPatterns(action)
	if !ok {
		return false
	}
	records, ok := set.Module(ResourceKey(moduleLabel))
	if !ok {
		return false
	}
	for _, rec := range records {
		if !rec.Active() {
			continue
		}
		desc := strings.TrimSpace(rec.Description)
		for _, p := range patterns {
			if strings.HasPrefix(desc, p) {
				return true
			}
		}
	}
	return false
}

// HasPrivilege reports whether any active record's description contains the
// given text, case-insensitively. A non-empty module scopes the scan to that
// resource key; otherwise all modules are searched. Advisory only: action
// gating goes through CanPerformAction.
func HasPrivilege(set Set, description, module string) bool {
	if set.HasWildcard() {
		return true
	}
	needle := strings.ToLower(strings.TrimSpace(description))
	if needle == "" {
		return false
	}
	if module != "" {
		records, ok := set.Module(ResourceKey(module))
		if !ok {
			return false
		}
		return containsPrivilege(records, needle)
	}
	for _, records := range set {
		if containsPrivilege(records, needle) {
			return true
		}
	}
	return false
}

func containsPrivilege(records []Record, needle string) bool {
	for _, rec := range records {
		if rec.Active() && strings.Contains(strings.ToLower(rec.Description), needle) {
			return true
		}
	}
	return false
}

// HasModule reports whether the set carries any records for the module
// label. Used by the permissive development fallback.
func HasModule(set Set, moduleLabel string) bool {
	_, ok := set.Module(ResourceKey(moduleLabel))
	return ok
}
