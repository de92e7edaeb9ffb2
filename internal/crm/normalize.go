package crm

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/siteworks/recruitops/internal/construction"
)

// NormalizeName collapses whitespace and title-cases a person or company name.
// Name particles such as "Mc" and "O'" keep their inner capital.
func NormalizeName(s string) string {
	fields := strings.Fields(s)
	for i, f := range fields {
		fields[i] = titleWord(f)
	}
	return strings.Join(fields, " ")
}

func titleWord(w string) string {
	caser := cases.Title(language.English)
	parts := strings.Split(w, "-")
	for i, p := range parts {
		t := caser.String(p)
		switch {
		case strings.HasPrefix(t, "Mc") && len(t) > 2:
			t = "Mc" + strings.ToUpper(t[2:3]) + t[3:]
		case strings.HasPrefix(t, "O'") && len(t) > 2:
			t = "O'" + strings.ToUpper(t[2:3]) + t[3:]
		}
		parts[i] = t
	}
	return strings.Join(parts, "-")
}

// NormalizeEmail lower-cases and trims an email address
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizePhone converts Australian phone numbers to E.164 (+61...). Numbers
// already in international form keep their country code. Anything that does
// not look like a phone number is returned trimmed but otherwise untouched.
func NormalizePhone(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return ""
	}

	international := strings.HasPrefix(trimmed, "+") || strings.HasPrefix(trimmed, "00")

	var digits strings.Builder
	for _, r := range trimmed {
		if unicode.IsDigit(r) {
			digits.WriteRune(r)
		}
	}
	d := digits.String()

	switch {
	case len(d) < 8:
		return trimmed
	case strings.HasPrefix(trimmed, "00"):
		return "+" + strings.TrimPrefix(d, "00")
	case international:
		return "+" + d
	case strings.HasPrefix(d, "61") && len(d) == 11:
		return "+" + d
	case strings.HasPrefix(d, "0") && len(d) == 10:
		return "+61" + d[1:]
	case len(d) == 9 && (d[0] == '4' || d[0] == '2' || d[0] == '3' || d[0] == '7' || d[0] == '8'):
		return "+61" + d
	default:
		return trimmed
	}
}

var roleAliases = map[string]construction.Role{
	"pm":                     construction.RoleProjectManager,
	"project manager":        construction.RoleProjectManager,
	"site manager":           construction.RoleSiteManager,
	"site super":             construction.RoleSiteManager,
	"site supervisor":        construction.RoleSiteManager,
	"contract admin":         construction.RoleContractAdmin,
	"contracts admin":        construction.RoleContractAdmin,
	"ca":                     construction.RoleContractAdmin,
	"whs":                    construction.RoleWHSOfficer,
	"whs officer":            construction.RoleWHSOfficer,
	"hse officer":            construction.RoleWHSOfficer,
	"safety officer":         construction.RoleWHSOfficer,
	"labourer":               construction.RoleLabourer,
	"laborer":                construction.RoleLabourer,
	"general labourer":       construction.RoleLabourer,
	"gl":                     construction.RoleLabourer,
	"trade assistant":        construction.RoleLabourer,
	"civil foreman":          construction.RoleCivilForeman,
	"excavator operator":     construction.RoleExcavatorOperator,
	"excavator op":           construction.RoleExcavatorOperator,
	"digger operator":        construction.RoleExcavatorOperator,
	"dump truck operator":    construction.RoleDumpTruckOperator,
	"truck driver":           construction.RoleDumpTruckOperator,
	"pipelayer":              construction.RolePipelayer,
	"pipe layer":             construction.RolePipelayer,
	"piling rig operator":    construction.RolePilingRigOperator,
	"piling operator":        construction.RolePilingRigOperator,
	"steel fixer":            construction.RoleSteelFixer,
	"steelfixer":             construction.RoleSteelFixer,
	"concreter":              construction.RoleConcreter,
	"formworker":             construction.RoleFormworker,
	"form worker":            construction.RoleFormworker,
	"formwork carpenter":     construction.RoleFormworker,
	"crane operator":         construction.RoleCraneOperator,
	"crane driver":           construction.RoleCraneOperator,
	"tower crane operator":   construction.RoleCraneOperator,
	"dogman":                 construction.RoleDogman,
	"dogger":                 construction.RoleDogman,
	"rigger":                 construction.RoleRigger,
	"scaffolder":             construction.RoleScaffolder,
	"roof plumber":           construction.RoleRoofPlumber,
	"cladder":                construction.RoleCladder,
	"glazier":                construction.RoleGlazier,
	"electrician":            construction.RoleElectrician,
	"sparky":                 construction.RoleElectrician,
	"leccy":                  construction.RoleElectrician,
	"plumber":                construction.RolePlumber,
	"hvac technician":        construction.RoleHVACTechnician,
	"hvac tech":              construction.RoleHVACTechnician,
	"refrigeration mechanic": construction.RoleHVACTechnician,
	"fridgie":                construction.RoleHVACTechnician,
	"fire services fitter":   construction.RoleFireServicesFitter,
	"sprinkler fitter":       construction.RoleFireServicesFitter,
	"carpenter":              construction.RoleCarpenter,
	"chippy":                 construction.RoleCarpenter,
	"chippie":                construction.RoleCarpenter,
	"plasterer":              construction.RolePlasterer,
	"plasterboard fixer":     construction.RolePlasterer,
	"ceiling fixer":          construction.RoleCeilingFixer,
	"joiner":                 construction.RoleJoiner,
	"cabinet maker":          construction.RoleJoiner,
	"painter":                construction.RolePainter,
	"tiler":                  construction.RoleTiler,
	"floor layer":            construction.RoleFloorLayer,
	"floorer":                construction.RoleFloorLayer,
	"cleaner":                construction.RoleCleaner,
	"builders cleaner":       construction.RoleCleaner,
}

// NormalizeRole maps trade names, abbreviations and site slang to canonical
// roles. Unknown roles are title-cased and returned as-is.
func NormalizeRole(s string) construction.Role {
	key := strings.ToLower(strings.Join(strings.Fields(s), " "))
	if role, ok := roleAliases[key]; ok {
		return role
	}
	if role, ok := roleAliases[strings.TrimSuffix(key, "s")]; ok {
		return role
	}
	return construction.Role(NormalizeName(s))
}

// NormalizeStatus maps free-text availability labels to a CandidateStatus
func NormalizeStatus(s string) CandidateStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "available", "avail", "active", "looking", "ready", "on bench", "bench":
		return CandidateAvailable
	case "placed", "working", "on assignment", "assigned", "on site":
		return CandidatePlaced
	case "finishing", "finishing soon", "ending soon", "available soon":
		return CandidateFinishing
	case "unavailable", "inactive", "not looking", "do not use", "dnu", "archived":
		return CandidateUnavailable
	default:
		return CandidateAvailable
	}
}

// NormalizeSkills trims, de-duplicates case-insensitively, and sorts a skill list.
// The first spelling of a duplicated skill wins.
func NormalizeSkills(skills []string) []string {
	seen := make(map[string]bool, len(skills))
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		s = strings.Join(strings.Fields(s), " ")
		if s == "" {
			continue
		}
		k := strings.ToLower(s)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i]) < strings.ToLower(out[j]) })
	return out
}

// SplitSkills splits a comma, semicolon or pipe separated skill string
func SplitSkills(s string) []string {
	return NormalizeSkills(strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';' || r == '|' || r == '\n'
	}))
}

// Normalize applies the normalisation helpers to every candidate field
func (c *Candidate) Normalize() {
	c.FirstName = NormalizeName(c.FirstName)
	c.LastName = NormalizeName(c.LastName)
	c.Email = NormalizeEmail(c.Email)
	c.Phone = NormalizePhone(c.Phone)
	if c.Role != "" {
		c.Role = NormalizeRole(string(c.Role))
	}
	c.Skills = NormalizeSkills(c.Skills)
	if c.Status == "" {
		c.Status = CandidateAvailable
	} else {
		c.Status = NormalizeStatus(string(c.Status))
	}
	c.Location = strings.TrimSpace(c.Location)
	if c.Source == "" {
		c.Source = SourceManual
	}
}

// Normalize fills derived project fields and tidies free text
func (p *Project) Normalize() {
	p.Name = strings.Join(strings.Fields(p.Name), " ")
	p.ContractValue = strings.TrimSpace(p.ContractValue)
	if !p.Size.Valid() {
		p.Size = construction.GetProjectSize(p.ContractValue)
	}
	if p.Status == "" {
		p.Status = ProjectPipeline
	}
	if p.Probability == 0 && (p.Status == ProjectWon || p.Status == ProjectActive) {
		p.Probability = 100
	}
	p.Location = strings.TrimSpace(p.Location)
	if p.Source == "" {
		p.Source = SourceManual
	}
}

// Normalize tidies client contact details
func (c *Client) Normalize() {
	c.Name = strings.Join(strings.Fields(c.Name), " ")
	c.Email = NormalizeEmail(c.Email)
	c.Phone = NormalizePhone(c.Phone)
	c.Website = strings.TrimSpace(c.Website)
	if c.Source == "" {
		c.Source = SourceManual
	}
}

// Normalize tidies a client contact
func (c *Contact) Normalize() {
	c.Name = NormalizeName(c.Name)
	c.Title = strings.TrimSpace(c.Title)
	c.Email = NormalizeEmail(c.Email)
	c.Phone = NormalizePhone(c.Phone)
}
