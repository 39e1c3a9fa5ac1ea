package domain

// TeamNode is one vertex of an assembled hierarchy. Children are keyed by
// team name and keep insertion order.
type TeamNode struct {
	TeamName     string
	ParentTeam   string
	ManagerName  string
	BusinessUnit *string

	children map[string]*TeamNode
	order    []string
}

// NewTeamNode creates a childless node from a team record.
func NewTeamNode(team Team) *TeamNode {
	return &TeamNode{
		TeamName:     team.TeamName,
		ParentTeam:   team.ParentTeam,
		ManagerName:  team.ManagerName,
		BusinessUnit: team.BusinessUnit,
	}
}

// CloneWithoutChildren copies the scalar fields of n into a new node.
func (n *TeamNode) CloneWithoutChildren() *TeamNode {
	return &TeamNode{
		TeamName:     n.TeamName,
		ParentTeam:   n.ParentTeam,
		ManagerName:  n.ManagerName,
		BusinessUnit: n.BusinessUnit,
	}
}

// AddChild attaches child under its team name. An existing child with the
// same name is replaced in place.
func (n *TeamNode) AddChild(child *TeamNode) {
	if n.children == nil {
		n.children = make(map[string]*TeamNode)
	}
	if _, exists := n.children[child.TeamName]; !exists {
		n.order = append(n.order, child.TeamName)
	}
	n.children[child.TeamName] = child
}

// Child returns the direct child with the given name.
func (n *TeamNode) Child(name string) (*TeamNode, bool) {
	child, ok := n.children[name]
	return child, ok
}

// Children returns the direct children in insertion order.
func (n *TeamNode) Children() []*TeamNode {
	out := make([]*TeamNode, 0, len(n.order))
	for _, name := range n.order {
		out = append(out, n.children[name])
	}
	return out
}

// ChildCount returns the number of direct children.
func (n *TeamNode) ChildCount() int {
	return len(n.order)
}

// Size returns the number of nodes in the subtree rooted at n.
func (n *TeamNode) Size() int {
	total := 1
	for _, child := range n.Children() {
		total += child.Size()
	}
	return total
}

// BusinessUnitOrEmpty returns the business unit, or "" when absent.
func (n *TeamNode) BusinessUnitOrEmpty() string {
	if n.BusinessUnit == nil {
		return ""
	}
	return *n.BusinessUnit
}

// Flatten walks the subtree depth-first, parents before children, and
// returns it as flat team records.
func (n *TeamNode) Flatten() []Team {
	var out []Team
	var walk func(node *TeamNode)
	walk = func(node *TeamNode) {
		out = append(out, Team{
			TeamName:     node.TeamName,
			ParentTeam:   node.ParentTeam,
			ManagerName:  node.ManagerName,
			BusinessUnit: node.BusinessUnit,
		})
		for _, child := range node.Children() {
			walk(child)
		}
	}
	walk(n)
	return out
}
