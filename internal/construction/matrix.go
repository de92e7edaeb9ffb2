package construction

// Matrix maps phase key -> role -> project size -> free-text crew band
type Matrix map[string]map[Role]map[Size]string

func bands(s, m, l, xl string) map[Size]string {
	return map[Size]string{SizeS: s, SizeM: m, SizeL: l, SizeXL: xl}
}

var workforce = Matrix{
	PhaseSiteEstablishment: {
		RoleProjectManager: bands("1", "1", "1", "1-2"),
		RoleSiteManager:    bands("1", "1", "1-2", "2-3"),
		RoleContractAdmin:  bands("0-1", "1", "1-2", "2-3"),
		RoleWHSOfficer:     bands("0-1", "1", "1", "1-2"),
		RoleLabourer:       bands("1-2", "2-3", "3-5", "5-8"),
	},
	PhaseEarthworks: {
		RoleCivilForeman:      bands("1", "1", "1-2", "2-3"),
		RoleExcavatorOperator: bands("1", "1-2", "2-4", "4-6"),
		RoleDumpTruckOperator: bands("1", "1-2", "2-4", "4-8"),
		RolePipelayer:         bands("1", "1-2", "2-3", "3-5"),
		RoleLabourer:          bands("1-2", "2-4", "4-6", "6-10"),
	},
	PhaseSubstructure: {
		RolePilingRigOperator: bands("0-1", "1", "1-2", "2-3"),
		RoleFormworker:        bands("2-3", "3-6", "6-10", "10-16"),
		RoleSteelFixer:        bands("1-2", "2-4", "4-8", "8-12"),
		RoleConcreter:         bands("1-2", "2-4", "4-6", "6-10"),
		RoleLabourer:          bands("1-2", "2-4", "4-6", "6-10"),
	},
	PhaseSuperstructure: {
		RoleCraneOperator: bands("0-1", "1", "1-2", "2-4"),
		RoleFormworker:    bands("3-5", "6-10", "12-20", "20+"),
		RoleSteelFixer:    bands("2-3", "4-6", "8-12", "12-20"),
		RoleDogman:        bands("0-1", "1-2", "2-3", "3-6"),
		RoleRigger:        bands("0-1", "1-2", "2-4", "4-6"),
		RoleConcreter:     bands("1-2", "2-4", "4-8", "8-12"),
		RoleScaffolder:    bands("1-2", "2-3", "3-6", "6-10"),
		RoleLabourer:      bands("2-3", "3-6", "6-10", "10-15"),
	},
	PhaseEnvelope: {
		RoleGlazier:     bands("1-2", "2-4", "4-8", "8-12"),
		RoleCladder:     bands("1-2", "2-4", "4-6", "6-10"),
		RoleRoofPlumber: bands("1-2", "2-3", "3-4", "4-6"),
		RoleScaffolder:  bands("1-2", "2-3", "3-6", "6-10"),
	},
	PhaseServicesRoughIn: {
		RoleElectrician:        bands("2-3", "3-6", "8-12", "15+"),
		RolePlumber:            bands("1-2", "2-4", "4-8", "8-12"),
		RoleHVACTechnician:     bands("1-2", "2-4", "4-8", "8-12"),
		RoleFireServicesFitter: bands("1", "1-2", "2-4", "4-6"),
	},
	PhaseFitOut: {
		RoleJoiner:       bands("1", "1-2", "2-4", "4-6"),
		RoleCarpenter:    bands("2-3", "3-6", "6-12", "12-20"),
		RolePlasterer:    bands("1-2", "2-4", "4-8", "8-15"),
		RoleCeilingFixer: bands("1-2", "2-3", "3-6", "6-10"),
	},
	PhaseFinishes: {
		RolePainter:    bands("1-2", "2-4", "4-8", "8-12"),
		RoleTiler:      bands("1", "1-2", "2-4", "4-6"),
		RoleFloorLayer: bands("1", "1-2", "2-3", "3-5"),
		RoleLabourer:   bands("1", "1-2", "2-4", "4-6"),
	},
	PhaseHandover: {
		RoleElectrician:    bands("1", "1-2", "2-3", "3-5"),
		RoleHVACTechnician: bands("1", "1", "1-2", "2-3"),
		RoleCarpenter:      bands("1", "1-2", "2-3", "3-4"),
		RoleCleaner:        bands("1-2", "2-3", "3-5", "5-8"),
	},
}

// Workforce returns a copy of the workforce matrix
func Workforce() Matrix {
	out := make(Matrix, len(workforce))
	for phase, roles := range workforce {
		rc := make(map[Role]map[Size]string, len(roles))
		for role, sizes := range roles {
			sc := make(map[Size]string, len(sizes))
			for size, band := range sizes {
				sc[size] = band
			}
			rc[role] = sc
		}
		out[phase] = rc
	}
	return out
}

// CrewBand looks up the expected crew band for a role in a phase on a project
// of the given size
func CrewBand(phaseKey string, role Role, size Size) (Band, bool) {
	raw, ok := workforce[phaseKey][role][size]
	if !ok {
		return Band{}, false
	}
	band, err := ParseBand(raw)
	if err != nil {
		return Band{}, false
	}
	return band, true
}

// PhaseCrew returns every role's band in a phase for the given size
func PhaseCrew(phaseKey string, size Size) map[Role]Band {
	roles, ok := workforce[phaseKey]
	if !ok {
		return nil
	}
	crew := make(map[Role]Band, len(roles))
	for role := range roles {
		if band, ok := CrewBand(phaseKey, role, size); ok {
			crew[role] = band
		}
	}
	return crew
}
