package privilege

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func subCategorySet() Set {
	return Set{
		"SUB_CATEGORIES": {
			{Description: "Create a new Sub Category", Status: StatusActive},
			{Description: "Delete a Sub Category", Status: StatusInactive},
		},
	}
}

func TestWildcardAllowsEveryPair(t *testing.T) {
	set := WildcardSet()
	for _, module := range []string{"Sub Categories", "Brands", "Totally Unmapped Screen"} {
		for _, action := range []string{"create", "read", "update", "delete", "get"} {
			assert.True(t, CanPerformAction(set, module, action), "%s/%s", module, action)
		}
	}
}

func TestCanPerformActionMatchesPrefix(t *testing.T) {
	set := subCategorySet()

	assert.True(t, CanPerformAction(set, "Sub Categories", "create"))
	// Inactive record never grants.
	assert.False(t, CanPerformAction(set, "Sub Categories", "delete"))
	assert.False(t, CanPerformAction(set, "Sub Categories", "update"))
}

func TestCanPerformActionModuleLookupIsCaseInsensitive(t *testing.T) {
	// Upstream keys come back in arbitrary casings.
	mixed := Set{"Sub_Categories": {{Description: "Create a new Sub Category", Status: StatusActive}}}
	assert.True(t, CanPerformAction(mixed, "Sub Categories", "create"))

	upper := subCategorySet()
	assert.True(t, CanPerformAction(upper, "Sub Categories", "create"))
}

func TestCanPerformActionUnknownActionDenies(t *testing.T) {
	set := subCategorySet()
	for _, action := range []string{"approve", "export", ""} {
		assert.False(t, CanPerformAction(set, "Sub Categories", action), action)
	}
}

func TestCanPerformActionUnknownModuleDenies(t *testing.T) {
	assert.False(t, CanPerformAction(subCategorySet(), "Brands", "create"))
	assert.False(t, CanPerformAction(Set{}, "Sub Categories", "create"))
}

func TestHasPrivilegeSubstringMatch(t *testing.T) {
	set := Set{
		"STUDENTS": {{Description: "Promote Students to next class", Status: StatusActive}},
		"ITEMS":    {{Description: "Write off damaged Items", Status: StatusInactive}},
	}

	assert.True(t, HasPrivilege(set, "promote students", ""))
	assert.True(t, HasPrivilege(set, "Promote", "Students"))
	// Inactive grants never match.
	assert.False(t, HasPrivilege(set, "write off", ""))
	// Scoped to the wrong module.
	assert.False(t, HasPrivilege(set, "promote", "Items"))
	assert.False(t, HasPrivilege(set, "", ""))
}

func TestHasModule(t *testing.T) {
	assert.True(t, HasModule(subCategorySet(), "Sub Categories"))
	assert.False(t, HasModule(subCategorySet(), "Brands"))
}
