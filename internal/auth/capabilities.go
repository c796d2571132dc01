package auth

// Capability is one of the named boolean permission bits in the capability
// matrix (spec §4.2). The spec's prose says "18 capabilities" but enumerates
// only 17 distinct names; this implementation carries exactly those 17 (see
// DESIGN.md's Open Question resolutions) — no invented 18th bit.
type Capability string

const (
	ViewPlanning               Capability = "view_planning"
	EditPlanning               Capability = "edit_planning"
	ViewDrivers                Capability = "view_drivers"
	ManageDrivers              Capability = "manage_drivers"
	EditDriverPlanning         Capability = "edit_driver_planning"
	ManageRights               Capability = "manage_rights"
	ManageVoyages              Capability = "manage_voyages"
	GeneratePlanning           Capability = "generate_planning"
	EditPastPlanning           Capability = "edit_past_planning"
	EditPastPlanningAdvanced   Capability = "edit_past_planning_advanced"
	ViewFinance                Capability = "view_finance"
	ManageFinance              Capability = "manage_finance"
	ViewAnalyse                Capability = "view_analyse"
	ViewSauron                 Capability = "view_sauron"
	SendAnnouncements          Capability = "send_announcements"
	ManageAnnouncementsConfig  Capability = "manage_announcements_config"
	AdminAccess                Capability = "admin_access"
)

// AllCapabilities lists every named capability, in the order spec §4.2
// enumerates them.
var AllCapabilities = []Capability{
	ViewPlanning, EditPlanning, ViewDrivers, ManageDrivers, EditDriverPlanning,
	ManageRights, ManageVoyages, GeneratePlanning, EditPastPlanning,
	EditPastPlanningAdvanced, ViewFinance, ManageFinance, ViewAnalyse,
	ViewSauron, SendAnnouncements, ManageAnnouncementsConfig, AdminAccess,
}

// Capabilities is a boolean vector over the capability set, keyed by name so
// it serializes as a flat JSON object matching spec §6's
// `permissions{…}` shape.
type Capabilities map[Capability]bool

// Has reports whether cap is set.
func (c Capabilities) Has(cap Capability) bool { return c[cap] }

// Full returns a Capabilities vector with every bit set (the is_system_admin
// effective-permissions case).
func Full() Capabilities {
	c := make(Capabilities, len(AllCapabilities))
	for _, cap := range AllCapabilities {
		c[cap] = true
	}
	return c
}

// SeedRole is a named seed role and its capability set, per spec §6's
// "Seed role matrix (bit-exact)".
type SeedRole struct {
	Name         string
	Description  string
	Capabilities Capabilities
}

func capsOf(caps ...Capability) Capabilities {
	c := make(Capabilities, len(caps))
	for _, cap := range caps {
		c[cap] = true
	}
	return c
}

// SeedRoles returns the closed set of roles provisioned on first start
// (spec §3 Role lifecycle, §6 seed matrix), built additively: planner adds to
// viewer, planner_advanced adds to planner, and driver_admin, finance and
// analyse each add to viewer.
func SeedRoles() []SeedRole {
	viewer := capsOf(ViewPlanning, ViewDrivers)

	planner := capsOf(ViewPlanning, ViewDrivers, EditPlanning, ManageVoyages, SendAnnouncements)

	plannerAdvanced := capsOf(
		ViewPlanning, ViewDrivers, EditPlanning, ManageVoyages, SendAnnouncements,
		EditPastPlanning, EditPastPlanningAdvanced, ViewFinance, ManageAnnouncementsConfig,
	)

	driverAdmin := capsOf(ViewPlanning, ViewDrivers, ManageDrivers, EditDriverPlanning)

	finance := capsOf(ViewPlanning, ViewDrivers, ViewFinance, ManageFinance)

	analyse := capsOf(ViewPlanning, ViewDrivers, ViewFinance, ViewAnalyse)

	admin := Full()

	return []SeedRole{
		{Name: "viewer", Description: "Read-only access to planning and drivers", Capabilities: viewer},
		{Name: "planner", Description: "Edits planning and manages routes", Capabilities: planner},
		{Name: "planner_advanced", Description: "Planner plus past-planning edits and finance visibility", Capabilities: plannerAdvanced},
		{Name: "driver_admin", Description: "Manages drivers and driver-side planning edits", Capabilities: driverAdmin},
		{Name: "finance", Description: "Views and manages financial parameters", Capabilities: finance},
		{Name: "analyse", Description: "Views drivers, finance, and analytics", Capabilities: analyse},
		{Name: "admin", Description: "Full access to every capability", Capabilities: admin},
	}
}
