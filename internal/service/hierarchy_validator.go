package service

import (
	"fmt"
	"strings"

	"github.com/spec-kit/team-hierarchy-service/internal/domain"
)

// HierarchyValidator checks business rules on a flat team list before a tree
// is built.
type HierarchyValidator struct{}

// NewHierarchyValidator constructs the validator.
func NewHierarchyValidator() *HierarchyValidator {
	return &HierarchyValidator{}
}

// Validate runs every rule and returns a *domain.ValidationError holding all
// violations, or nil when the set is valid. Messages within a category follow
// input order. Business unit is not checked.
func (v *HierarchyValidator) Validate(teams []domain.Team) error {
	verr := domain.NewValidationError()

	roots := 0
	names := make(map[string]struct{}, len(teams))
	for _, team := range teams {
		if team.IsRoot() {
			roots++
		}
		names[team.TeamName] = struct{}{}
	}
	if roots != 1 {
		verr.Add(domain.CategoryHierarchy, "There must be exactly one root team (team without parent).")
	}

	for _, team := range teams {
		if team.IsRoot() {
			continue
		}
		if _, ok := names[team.ParentTeam]; !ok {
			verr.Add(domain.CategoryParentTeam,
				fmt.Sprintf("Parent team '%s' for '%s' does not exist.", team.ParentTeam, team.TeamName))
		}
	}
	for _, name := range cyclicTeams(teams, names) {
		verr.Add(domain.CategoryParentTeam, fmt.Sprintf("Parent chain of team '%s' never reaches the root team.", name))
	}

	for _, team := range teams {
		if strings.TrimSpace(team.ManagerName) == "" {
			verr.Add(domain.CategoryManagerName, fmt.Sprintf("Team '%s' must have a manager.", team.TeamName))
		}
	}

	seen := make(map[string]struct{}, len(teams))
	for _, team := range teams {
		if _, dup := seen[team.TeamName]; dup {
			verr.Add(domain.CategoryTeam, fmt.Sprintf("Team '%s' is defined more than once.", team.TeamName))
			continue
		}
		seen[team.TeamName] = struct{}{}
	}

	if verr.Empty() {
		return nil
	}
	return verr
}

const (
	chainUnknown = iota
	chainVisiting
	chainTerminates
	chainCyclic
)

// cyclicTeams returns, in input order, the teams whose parent chain loops
// instead of ending at a root or at a missing parent.
func cyclicTeams(teams []domain.Team, names map[string]struct{}) []string {
	parentOf := make(map[string]string, len(teams))
	for _, team := range teams {
		parentOf[team.TeamName] = team.ParentTeam
	}

	state := make(map[string]int, len(teams))
	for _, team := range teams {
		var path []string
		result := chainTerminates
		cur := team.TeamName
		for {
			switch state[cur] {
			case chainTerminates, chainCyclic:
				result = state[cur]
			case chainVisiting:
				result = chainCyclic
			default:
				state[cur] = chainVisiting
				path = append(path, cur)
				parent := parentOf[cur]
				if _, ok := names[parent]; parent != "" && ok {
					cur = parent
					continue
				}
				result = chainTerminates
			}
			break
		}
		for _, name := range path {
			state[name] = result
		}
	}

	var out []string
	reported := make(map[string]struct{})
	for _, team := range teams {
		if state[team.TeamName] != chainCyclic {
			continue
		}
		if _, done := reported[team.TeamName]; done {
			continue
		}
		reported[team.TeamName] = struct{}{}
		out = append(out, team.TeamName)
	}
	return out
}
