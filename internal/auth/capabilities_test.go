package auth

import "testing"

func TestHasCapability_SystemAdminBypassesRoleBits(t *testing.T) {
	id := &Identity{IsSystemAdmin: true, Permissions: Capabilities{}}
	if !id.HasCapability(ManageRights) {
		t.Error("HasCapability() = false, want true for system admin with empty permissions")
	}
}

func TestHasCapability_HonorsRoleBits(t *testing.T) {
	id := &Identity{Permissions: capsOf(ViewPlanning)}
	if !id.HasCapability(ViewPlanning) {
		t.Error("HasCapability(ViewPlanning) = false, want true")
	}
	if id.HasCapability(ManageRights) {
		t.Error("HasCapability(ManageRights) = true, want false")
	}
}

func TestFull_SetsEveryCapability(t *testing.T) {
	full := Full()
	for _, cap := range AllCapabilities {
		if !full.Has(cap) {
			t.Errorf("Full() missing capability %q", cap)
		}
	}
}

func TestSeedRoles_BuildAdditivelyAndAdminHasEverything(t *testing.T) {
	roles := SeedRoles()
	byName := make(map[string]SeedRole, len(roles))
	for _, r := range roles {
		byName[r.Name] = r
	}

	viewer := byName["viewer"]
	planner := byName["planner"]
	for cap := range viewer.Capabilities {
		if !planner.Capabilities.Has(cap) {
			t.Errorf("planner role missing %q carried by viewer", cap)
		}
	}

	admin := byName["admin"]
	for _, cap := range AllCapabilities {
		if !admin.Capabilities.Has(cap) {
			t.Errorf("admin role missing capability %q", cap)
		}
	}
}
