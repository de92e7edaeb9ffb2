// Package construction holds the construction-phase recruitment trigger model:
// the ordered phase template, the hiring lead time for each role in each phase,
// the workforce matrix of crew sizes, and the contract value size classifier.
package construction

import (
	"sort"
)

// Role is a canonical trade or site role name
type Role string

// Roles referenced by the phase template
const (
	RoleProjectManager     Role = "Project Manager"
	RoleSiteManager        Role = "Site Manager"
	RoleContractAdmin      Role = "Contract Administrator"
	RoleWHSOfficer         Role = "WHS Officer"
	RoleLabourer           Role = "Labourer"
	RoleCivilForeman       Role = "Civil Foreman"
	RoleExcavatorOperator  Role = "Excavator Operator"
	RoleDumpTruckOperator  Role = "Dump Truck Operator"
	RolePipelayer          Role = "Pipelayer"
	RolePilingRigOperator  Role = "Piling Rig Operator"
	RoleSteelFixer         Role = "Steel Fixer"
	RoleConcreter          Role = "Concreter"
	RoleFormworker         Role = "Formworker"
	RoleCraneOperator      Role = "Crane Operator"
	RoleDogman             Role = "Dogman"
	RoleRigger             Role = "Rigger"
	RoleScaffolder         Role = "Scaffolder"
	RoleRoofPlumber        Role = "Roof Plumber"
	RoleCladder            Role = "Cladder"
	RoleGlazier            Role = "Glazier"
	RoleElectrician        Role = "Electrician"
	RolePlumber            Role = "Plumber"
	RoleHVACTechnician     Role = "HVAC Technician"
	RoleFireServicesFitter Role = "Fire Services Fitter"
	RoleCarpenter          Role = "Carpenter"
	RolePlasterer          Role = "Plasterer"
	RoleCeilingFixer       Role = "Ceiling Fixer"
	RoleJoiner             Role = "Joiner"
	RolePainter            Role = "Painter"
	RoleTiler              Role = "Tiler"
	RoleFloorLayer         Role = "Floor Layer"
	RoleCleaner            Role = "Cleaner"
)

// Trigger says when to start sourcing a role relative to a phase's nominal start
type Trigger struct {
	Role      Role   `json:"role"`
	LeadWeeks int    `json:"lead_weeks"`
	Note      string `json:"note,omitempty"`
}

// Phase is one step of the construction phase template
type Phase struct {
	Key           string    `json:"key"`
	Name          string    `json:"name"`
	Order         int       `json:"order"`
	DurationWeeks int       `json:"duration_weeks"`
	Triggers      []Trigger `json:"triggers"`
}

// Phase keys
const (
	PhaseSiteEstablishment = "site_establishment"
	PhaseEarthworks        = "earthworks"
	PhaseSubstructure      = "substructure"
	PhaseSuperstructure    = "superstructure"
	PhaseEnvelope          = "envelope"
	PhaseServicesRoughIn   = "services_rough_in"
	PhaseFitOut            = "fit_out"
	PhaseFinishes          = "finishes"
	PhaseHandover          = "handover"
)

var phaseTemplate = []Phase{
	{
		Key: PhaseSiteEstablishment, Name: "Site Establishment & Preliminaries", Order: 1, DurationWeeks: 3,
		Triggers: []Trigger{
			{Role: RoleProjectManager, LeadWeeks: 8, Note: "Engage before contract award is confirmed"},
			{Role: RoleSiteManager, LeadWeeks: 6},
			{Role: RoleContractAdmin, LeadWeeks: 4},
			{Role: RoleWHSOfficer, LeadWeeks: 3, Note: "Site-specific safety plan must exist before mobilisation"},
			{Role: RoleLabourer, LeadWeeks: 1},
		},
	},
	{
		Key: PhaseEarthworks, Name: "Civil & Earthworks", Order: 2, DurationWeeks: 4,
		Triggers: []Trigger{
			{Role: RoleCivilForeman, LeadWeeks: 4},
			{Role: RoleExcavatorOperator, LeadWeeks: 3, Note: "Check plant tickets are current"},
			{Role: RoleDumpTruckOperator, LeadWeeks: 2, Note: "HR licence required"},
			{Role: RolePipelayer, LeadWeeks: 2},
			{Role: RoleLabourer, LeadWeeks: 1},
		},
	},
	{
		Key: PhaseSubstructure, Name: "Substructure & Foundations", Order: 3, DurationWeeks: 5,
		Triggers: []Trigger{
			{Role: RolePilingRigOperator, LeadWeeks: 4, Note: "Usually supplied with the piling subcontract; confirm first"},
			{Role: RoleFormworker, LeadWeeks: 3},
			{Role: RoleSteelFixer, LeadWeeks: 3},
			{Role: RoleConcreter, LeadWeeks: 2},
			{Role: RoleLabourer, LeadWeeks: 1},
		},
	},
	{
		Key: PhaseSuperstructure, Name: "Superstructure", Order: 4, DurationWeeks: 12,
		Triggers: []Trigger{
			{Role: RoleCraneOperator, LeadWeeks: 5, Note: "Tower crane operators are scarce"},
			{Role: RoleFormworker, LeadWeeks: 4, Note: "Largest crew on the job"},
			{Role: RoleSteelFixer, LeadWeeks: 3},
			{Role: RoleDogman, LeadWeeks: 3},
			{Role: RoleRigger, LeadWeeks: 3},
			{Role: RoleConcreter, LeadWeeks: 2},
			{Role: RoleScaffolder, LeadWeeks: 2},
			{Role: RoleLabourer, LeadWeeks: 1},
		},
	},
	{
		Key: PhaseEnvelope, Name: "Building Envelope", Order: 5, DurationWeeks: 8,
		Triggers: []Trigger{
			{Role: RoleGlazier, LeadWeeks: 4, Note: "Facade packages run long; align with procurement"},
			{Role: RoleCladder, LeadWeeks: 3},
			{Role: RoleRoofPlumber, LeadWeeks: 3},
			{Role: RoleScaffolder, LeadWeeks: 2},
		},
	},
	{
		Key: PhaseServicesRoughIn, Name: "Services Rough-In", Order: 6, DurationWeeks: 10,
		Triggers: []Trigger{
			{Role: RoleElectrician, LeadWeeks: 4},
			{Role: RolePlumber, LeadWeeks: 4},
			{Role: RoleHVACTechnician, LeadWeeks: 4},
			{Role: RoleFireServicesFitter, LeadWeeks: 3},
		},
	},
	{
		Key: PhaseFitOut, Name: "Internal Fit-Out", Order: 7, DurationWeeks: 10,
		Triggers: []Trigger{
			{Role: RoleJoiner, LeadWeeks: 4, Note: "Joinery is shop-built; fabrication starts early"},
			{Role: RoleCarpenter, LeadWeeks: 3},
			{Role: RolePlasterer, LeadWeeks: 3},
			{Role: RoleCeilingFixer, LeadWeeks: 2},
		},
	},
	{
		Key: PhaseFinishes, Name: "Finishes", Order: 8, DurationWeeks: 6,
		Triggers: []Trigger{
			{Role: RolePainter, LeadWeeks: 2},
			{Role: RoleTiler, LeadWeeks: 2},
			{Role: RoleFloorLayer, LeadWeeks: 2},
			{Role: RoleLabourer, LeadWeeks: 1},
		},
	},
	{
		Key: PhaseHandover, Name: "Commissioning & Handover", Order: 9, DurationWeeks: 3,
		Triggers: []Trigger{
			{Role: RoleElectrician, LeadWeeks: 1, Note: "Testing, tagging and final connections"},
			{Role: RoleHVACTechnician, LeadWeeks: 1, Note: "Commissioning and air balancing"},
			{Role: RoleCarpenter, LeadWeeks: 1, Note: "Defects rectification"},
			{Role: RoleCleaner, LeadWeeks: 1},
		},
	},
}

// Phases returns the ordered phase template. The returned slice is a deep copy.
func Phases() []Phase {
	out := make([]Phase, len(phaseTemplate))
	for i, p := range phaseTemplate {
		out[i] = p.clone()
	}
	return out
}

// PhaseByKey looks up a phase by its key
func PhaseByKey(key string) (Phase, bool) {
	for _, p := range phaseTemplate {
		if p.Key == key {
			return p.clone(), true
		}
	}
	return Phase{}, false
}

// Roles returns every role referenced by a trigger, sorted
func Roles() []Role {
	seen := make(map[Role]bool)
	for _, p := range phaseTemplate {
		for _, t := range p.Triggers {
			seen[t.Role] = true
		}
	}

	roles := make([]Role, 0, len(seen))
	for r := range seen {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })
	return roles
}

// IsKnownRole reports whether any phase triggers hiring for r
func IsKnownRole(r Role) bool {
	for _, p := range phaseTemplate {
		for _, t := range p.Triggers {
			if t.Role == r {
				return true
			}
		}
	}
	return false
}

// TotalWeeks is the nominal project length before size scaling
func TotalWeeks() int {
	total := 0
	for _, p := range phaseTemplate {
		total += p.DurationWeeks
	}
	return total
}

func (p Phase) clone() Phase {
	c := p
	c.Triggers = append([]Trigger(nil), p.Triggers...)
	return c
}
