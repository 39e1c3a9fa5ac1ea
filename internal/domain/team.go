package domain

// Team is one flat input row describing a team and its parent.
type Team struct {
	TeamName     string
	ParentTeam   string
	ManagerName  string
	BusinessUnit *string
}

// IsRoot reports whether the team has no parent.
func (t Team) IsRoot() bool {
	return t.ParentTeam == ""
}

// BusinessUnitOrEmpty returns the business unit, or "" when absent.
func (t Team) BusinessUnitOrEmpty() string {
	if t.BusinessUnit == nil {
		return ""
	}
	return *t.BusinessUnit
}
