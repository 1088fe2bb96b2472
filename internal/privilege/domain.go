// Package privilege implements the authorization model for the gateway:
// per-role privilege grants are merged into one consolidated set per user,
// and UI-facing module/action queries are answered against that set.
package privilege

import (
	"encoding/json"
	"strings"
)

// Status of a privilege grant.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// UnmarshalJSON coerces the loose upstream status encoding: boolean true and
// the string "active" (any casing) are active, everything else is inactive.
func (s *Status) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*s = CoerceStatus(v)
	return nil
}

// CoerceStatus normalizes an arbitrary status value.
func CoerceStatus(v any) Status {
	switch t := v.(type) {
	case bool:
		if t {
			return StatusActive
		}
	case string:
		if strings.EqualFold(strings.TrimSpace(t), string(StatusActive)) {
			return StatusActive
		}
	case Status:
		if t == StatusActive {
			return StatusActive
		}
	}
	return StatusInactive
}

// Record is one named permission grant, e.g. "Create a new Brand".
type Record struct {
	Description string `json:"description"`
	Status      Status `json:"status"`
}

// Active reports whether the grant is usable.
func (r Record) Active() bool {
	return r.Status == StatusActive
}

// WildcardModule is the sentinel key meaning "all privileges for all
// modules". A set carrying it holds no per-module records.
const WildcardModule = "*"

// Set maps an upstream module key to its privilege records. Module keys are
// case-variant upstream; use Module for lookups.
type Set map[string][]Record

// WildcardSet returns the super-admin privilege set.
func WildcardSet() Set {
	return Set{WildcardModule: {{Description: "All privileges for all modules", Status: StatusActive}}}
}

// HasWildcard reports whether the set short-circuits every check to true.
func (s Set) HasWildcard() bool {
	_, ok := s[WildcardModule]
	return ok
}

// Module locates the records for a resource key. Lookup order: exact match,
// upper-cased match, then a full case-insensitive scan.
func (s Set) Module(key string) ([]Record, bool) {
	if recs, ok := s[key]; ok {
		return recs, true
	}
	if recs, ok := s[strings.ToUpper(key)]; ok {
		return recs, true
	}
	for k, recs := range s {
		if strings.EqualFold(k, key) {
			return recs, true
		}
	}
	return nil, false
}
