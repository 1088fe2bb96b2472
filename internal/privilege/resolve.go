package privilege

import "strings"

// moduleResources maps the UI-facing module label to the upstream resource
// key. Labels without an entry fall back to a lower-cased, underscored form
// of themselves.
var moduleResources = map[string]string{
	"Categories":        "categories",
	"Sub Categories":    "sub_categories",
	"Units":             "units",
	"Unit of Measure":   "units",
	"Brands":            "brands",
	"Academic Sessions": "academic_sessions",
	"Suppliers":         "suppliers",
	"Students":          "students",
	"Classes":           "classes",
	"Class Sections":    "class_sections",
	"Items":             "items",
	"Item Receipts":     "item_receipts",
	"Item Issues":       "item_issues",
	"Users":             "users",
	"Roles":             "roles",
}

// ResourceKey resolves a UI module label to its upstream resource key.
func ResourceKey(label string) string {
	label = strings.TrimSpace(label)
	if key, ok := moduleResources[label]; ok {
		return key
	}
	return strings.ReplaceAll(strings.ToLower(label), " ", "_")
}

// actionPatterns lists the acceptable description prefixes per action. The
// upstream stores privileges as free-text sentences; this table is the
// compatibility shim pinning the phrasing the privilege source uses. A
// renamed description upstream silently revokes the action, so changes here
// must track the upstream seed data.
var actionPatterns = map[string][]string{
	"create": {"Create a new", "Create an"},
	"read":   {"View", "Get all", "Get"},
	"update": {"Update a", "Update an", "Edit"},
	"delete": {"Delete a", "Delete an", "Remove"},
}

func init() {
	// read and get are synonyms.
	actionPatterns["get"] = actionPatterns["read"]
}

// ActionPatterns returns the description prefixes granting the action.
// Unknown actions resolve to nothing.
func ActionPatterns(action string) ([]string, bool) {
	patterns, ok := actionPatterns[strings.ToLower(strings.TrimSpace(action))]
	return patterns, ok
}

// roleCodes maps loose upstream role names to canonical role codes.
var roleCodes = map[string]string{
	"admin":         "ADMIN",
	"administrator": "ADMIN",
	"super admin":   "SUPER_ADMIN",
	"super-admin":   "SUPER_ADMIN",
	"super_admin":   "SUPER_ADMIN",
	"superadmin":    "SUPER_ADMIN",
	"chairman":      "CHAIRMAN",
	"class teacher": "CLASS_TEACHER",
	"class-teacher": "CLASS_TEACHER",
	"class_teacher": "CLASS_TEACHER",
	"classteacher":  "CLASS_TEACHER",
	"store keeper":  "STORE_KEEPER",
	"store-keeper":  "STORE_KEEPER",
	"store_keeper":  "STORE_KEEPER",
	"storekeeper":   "STORE_KEEPER",
	"student":       "STUDENTS",
	"students":      "STUDENTS",
}

// RoleCode derives the canonical role code from an upstream role name.
// Unmapped names upper-case themselves, with separators collapsed to
// underscores.
func RoleCode(name string) string {
	name = strings.TrimSpace(name)
	if code, ok := roleCodes[strings.ToLower(name)]; ok {
		return code
	}
	code := strings.ToUpper(name)
	code = strings.ReplaceAll(code, " ", "_")
	code = strings.ReplaceAll(code, "-", "_")
	return code
}

// superAdminRoles are role codes that grant the wildcard set outright.
var superAdminRoles = map[string]struct{}{
	"SUPER_ADMIN": {},
	"ADMIN":       {},
	"CHAIRMAN":    {},
}

// IsSuperAdminRole reports whether the role code bypasses per-module grants.
func IsSuperAdminRole(code string) bool {
	_, ok := superAdminRoles[code]
	return ok
}
