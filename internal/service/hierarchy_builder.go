package service

import (
	"fmt"

	"github.com/spec-kit/team-hierarchy-service/internal/domain"
)

// HierarchyBuilder assembles a flat team list into a rooted tree.
type HierarchyBuilder interface {
	Build(teams []domain.Team) (string, *domain.TeamNode, error)
}

type treeBuilder struct{}

// NewHierarchyBuilder returns the default builder. It holds no state, so one
// instance may serve concurrent calls.
func NewHierarchyBuilder() HierarchyBuilder {
	return treeBuilder{}
}

// Build creates one node per team and links every non-root node under its
// parent. It re-checks parent resolution and root count itself so it stays
// safe for callers that skip validation. A repeated team name replaces the
// earlier node.
func (treeBuilder) Build(teams []domain.Team) (string, *domain.TeamNode, error) {
	nodes := make(map[string]*domain.TeamNode, len(teams))
	parents := make(map[string]string, len(teams))
	var order []string

	for _, team := range teams {
		if _, exists := nodes[team.TeamName]; !exists {
			order = append(order, team.TeamName)
		}
		nodes[team.TeamName] = domain.NewTeamNode(team)
		if team.IsRoot() {
			delete(parents, team.TeamName)
		} else {
			parents[team.TeamName] = team.ParentTeam
		}
	}

	for _, child := range order {
		parent, ok := parents[child]
		if !ok {
			continue
		}
		if _, found := nodes[parent]; !found {
			return "", nil, fmt.Errorf("%w: Parent %q not found for %q", domain.ErrInvalidHierarchy, parent, child)
		}
	}

	var root *domain.TeamNode
	roots := 0
	for _, name := range order {
		if node := nodes[name]; node.ParentTeam == "" {
			root = node
			roots++
		}
	}
	if roots != 1 {
		return "", nil, fmt.Errorf("%w: Hierarchy must have exactly one root node", domain.ErrInvalidHierarchy)
	}

	for _, child := range order {
		if parent, ok := parents[child]; ok {
			nodes[parent].AddChild(nodes[child])
		}
	}

	if reached := root.Size(); reached != len(nodes) {
		return "", nil, fmt.Errorf("%w: %d team(s) not reachable from root %q",
			domain.ErrInvalidHierarchy, len(nodes)-reached, root.TeamName)
	}

	return root.TeamName, root, nil
}
