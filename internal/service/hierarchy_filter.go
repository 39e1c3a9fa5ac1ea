package service

import (
	"fmt"

	"github.com/spec-kit/team-hierarchy-service/internal/domain"
)

// HierarchyFilter prunes a tree down to one team, its ancestors and its subtree.
type HierarchyFilter struct{}

// NewHierarchyFilter constructs the filter.
func NewHierarchyFilter() *HierarchyFilter {
	return &HierarchyFilter{}
}

// FilterByTeam returns a new tree rooted at a clone of root that holds only
// the ancestor chain down to teamName plus that team's original children.
// The input tree is not modified; the target's children are shared by
// reference.
func (f *HierarchyFilter) FilterByTeam(root *domain.TeamNode, teamName string) (*domain.TeamNode, error) {
	path := findPath(root, teamName)
	if len(path) == 0 {
		return nil, fmt.Errorf("%w: Team %q not found", domain.ErrTeamNotFound, teamName)
	}

	pruned := path[0].CloneWithoutChildren()
	cursor := pruned
	for _, node := range path[1:] {
		clone := node.CloneWithoutChildren()
		cursor.AddChild(clone)
		cursor = clone
	}

	target := path[len(path)-1]
	for _, child := range target.Children() {
		cursor.AddChild(child)
	}
	return pruned, nil
}

// findPath returns the nodes from root down to the first team named target,
// searching children in insertion order, or nil when there is none. One
// accumulator is shared across the walk and copied only on a match.
func findPath(root *domain.TeamNode, target string) []*domain.TeamNode {
	if root == nil {
		return nil
	}
	var (
		path  []*domain.TeamNode
		found []*domain.TeamNode
		walk  func(node *domain.TeamNode) bool
	)
	walk = func(node *domain.TeamNode) bool {
		path = append(path, node)
		if node.TeamName == target {
			found = append([]*domain.TeamNode(nil), path...)
			return true
		}
		for _, child := range node.Children() {
			if walk(child) {
				return true
			}
		}
		path = path[:len(path)-1]
		return false
	}
	walk(root)
	return found
}
