package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/team-hierarchy-service/internal/domain"
)

func strPtr(s string) *string { return &s }

func team(name, parent, manager string, bu *string) domain.Team {
	return domain.Team{TeamName: name, ParentTeam: parent, ManagerName: manager, BusinessUnit: bu}
}

func sampleTeams() []domain.Team {
	return []domain.Team{
		team("HQ", "", "Alice", nil),
		team("Eng", "HQ", "Bob", strPtr("Tech")),
		team("Sales", "HQ", "Carol", nil),
		team("Backend", "Eng", "Dan", strPtr("Tech")),
	}
}

func names(n *domain.TeamNode) []string {
	var out []string
	for _, c := range n.Children() {
		out = append(out, c.TeamName)
	}
	return out
}

func validationErrors(t *testing.T, err error) map[string][]string {
	t.Helper()
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *domain.ValidationError, got %v", err)
	}
	return verr.Errors
}

func TestValidate_ValidSet(t *testing.T) {
	if err := NewHierarchyValidator().Validate(sampleTeams()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Rules(t *testing.T) {
	tests := []struct {
		name  string
		teams []domain.Team
		want  map[string][]string
	}{
		{
			name:  "unknown parent",
			teams: []domain.Team{team("A", "", "X", nil), team("B", "Z", "Y", nil)},
			want:  map[string][]string{"parent_team": {"Parent team 'Z' for 'B' does not exist."}},
		},
		{
			name:  "no root",
			teams: []domain.Team{team("A", "B", "X", nil), team("B", "C", "Y", nil)},
			want: map[string][]string{
				"hierarchy":   {"There must be exactly one root team (team without parent)."},
				"parent_team": {"Parent team 'C' for 'B' does not exist."},
			},
		},
		{
			name:  "two roots",
			teams: []domain.Team{team("A", "", "X", nil), team("B", "", "Y", nil)},
			want:  map[string][]string{"hierarchy": {"There must be exactly one root team (team without parent)."}},
		},
		{
			name:  "empty input",
			teams: nil,
			want:  map[string][]string{"hierarchy": {"There must be exactly one root team (team without parent)."}},
		},
		{
			name: "blank managers in input order",
			teams: []domain.Team{
				team("A", "", "X", nil),
				team("C", "A", "   ", nil),
				team("B", "A", "", nil),
			},
			want: map[string][]string{"manager_name": {"Team 'C' must have a manager.", "Team 'B' must have a manager."}},
		},
		{
			name:  "duplicate team",
			teams: []domain.Team{team("A", "", "X", nil), team("B", "A", "Y", nil), team("B", "A", "Z", nil)},
			want:  map[string][]string{"team": {"Team 'B' is defined more than once."}},
		},
		{
			name: "cycle detached from root",
			teams: []domain.Team{
				team("R", "", "X", nil),
				team("A", "B", "Y", nil),
				team("B", "A", "Z", nil),
				team("C", "A", "W", nil),
			},
			want: map[string][]string{"parent_team": {
				"Parent chain of team 'A' never reaches the root team.",
				"Parent chain of team 'B' never reaches the root team.",
				"Parent chain of team 'C' never reaches the root team.",
			}},
		},
		{
			name:  "self parent",
			teams: []domain.Team{team("R", "", "X", nil), team("A", "A", "Y", nil)},
			want:  map[string][]string{"parent_team": {"Parent chain of team 'A' never reaches the root team."}},
		},
		{
			name: "all categories collected",
			teams: []domain.Team{
				team("A", "", "", nil),
				team("B", "", "Y", nil),
				team("C", "Q", "Z", strPtr("")),
			},
			want: map[string][]string{
				"hierarchy":    {"There must be exactly one root team (team without parent)."},
				"parent_team":  {"Parent team 'Q' for 'C' does not exist."},
				"manager_name": {"Team 'A' must have a manager."},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewHierarchyValidator().Validate(tt.teams)
			got := validationErrors(t, err)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("got %#v\nwant %#v", got, tt.want)
			}
		})
	}
}

func TestBuild_Example(t *testing.T) {
	rootName, root, err := NewHierarchyBuilder().Build(sampleTeams())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rootName != "HQ" || root.TeamName != "HQ" {
		t.Fatalf("expected root HQ, got %s", rootName)
	}
	if got := strings.Join(names(root), ","); got != "Eng,Sales" {
		t.Fatalf("expected Eng,Sales, got %s", got)
	}
	eng, _ := root.Child("Eng")
	if got := strings.Join(names(eng), ","); got != "Backend" {
		t.Fatalf("expected Backend under Eng, got %s", got)
	}
	if root.Size() != 4 {
		t.Fatalf("expected every record once, got %d nodes", root.Size())
	}
}

func TestBuild_ChildBeforeParent(t *testing.T) {
	teams := []domain.Team{
		team("Backend", "Eng", "Dan", nil),
		team("Eng", "HQ", "Bob", nil),
		team("HQ", "", "Alice", nil),
	}
	rootName, root, err := NewHierarchyBuilder().Build(teams)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rootName != "HQ" || root.Size() != 3 {
		t.Fatalf("unexpected tree %s/%d", rootName, root.Size())
	}
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name    string
		teams   []domain.Team
		message string
	}{
		{"unknown parent", []domain.Team{team("A", "", "X", nil), team("B", "Z", "Y", nil)}, `Parent "Z" not found for "B"`},
		{"no root", []domain.Team{team("A", "B", "X", nil), team("B", "A", "Y", nil)}, "exactly one root node"},
		{"two roots", []domain.Team{team("A", "", "X", nil), team("B", "", "Y", nil)}, "exactly one root node"},
		{"empty", nil, "exactly one root node"},
		{"detached cycle", []domain.Team{team("R", "", "X", nil), team("A", "B", "Y", nil), team("B", "A", "Y", nil)}, "not reachable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := NewHierarchyBuilder().Build(tt.teams)
			if !errors.Is(err, domain.ErrInvalidHierarchy) {
				t.Fatalf("expected ErrInvalidHierarchy, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.message) {
				t.Fatalf("expected %q in %q", tt.message, err.Error())
			}
		})
	}
}

func TestBuild_DuplicateLastWriteWins(t *testing.T) {
	teams := []domain.Team{
		team("HQ", "", "Alice", nil),
		team("Eng", "HQ", "Bob", nil),
		team("Eng", "HQ", "Eve", nil),
	}
	_, root, err := NewHierarchyBuilder().Build(teams)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	eng, ok := root.Child("Eng")
	if !ok || eng.ManagerName != "Eve" || root.ChildCount() != 1 {
		t.Fatalf("expected the later Eng record to win, got %+v", eng)
	}
}

func TestBuild_ConcurrentCallsAreIndependent(t *testing.T) {
	builder := NewHierarchyBuilder()
	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			teams := sampleTeams()
			if i%2 == 1 {
				teams = append(teams, team("Ops", "Sales", "Fay", nil))
			}
			_, root, err := builder.Build(teams)
			if err != nil {
				errs <- err
				return
			}
			if root.Size() != len(teams) {
				errs <- errors.New("node count mismatch")
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatal(err)
	}
}

func TestFilterByTeam_Example(t *testing.T) {
	_, root, err := NewHierarchyBuilder().Build(sampleTeams())
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	pruned, err := NewHierarchyFilter().FilterByTeam(root, "Eng")
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if pruned == root {
		t.Fatal("expected a cloned root")
	}
	if got := strings.Join(names(pruned), ","); got != "Eng" {
		t.Fatalf("expected only Eng under HQ, got %s", got)
	}
	eng, _ := pruned.Child("Eng")
	if got := strings.Join(names(eng), ","); got != "Backend" {
		t.Fatalf("expected Backend under Eng, got %s", got)
	}

	originalEng, _ := root.Child("Eng")
	originalBackend, _ := originalEng.Child("Backend")
	prunedBackend, _ := eng.Child("Backend")
	if prunedBackend != originalBackend {
		t.Fatal("expected target subtree to be shared by reference")
	}
	if root.ChildCount() != 2 || root.Size() != 4 {
		t.Fatal("original tree must not be modified")
	}
}

func TestFilterByTeam_Root(t *testing.T) {
	_, root, _ := NewHierarchyBuilder().Build(sampleTeams())

	pruned, err := NewHierarchyFilter().FilterByTeam(root, "HQ")
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	if !reflect.DeepEqual(pruned.Flatten(), root.Flatten()) {
		t.Fatal("filtering by the root should yield an equal tree")
	}
}

func TestFilterByTeam_Leaf(t *testing.T) {
	_, root, _ := NewHierarchyBuilder().Build(sampleTeams())

	pruned, err := NewHierarchyFilter().FilterByTeam(root, "Backend")
	if err != nil {
		t.Fatalf("filter: %v", err)
	}
	var got []string
	for _, rec := range pruned.Flatten() {
		got = append(got, rec.TeamName)
	}
	if strings.Join(got, ">") != "HQ>Eng>Backend" {
		t.Fatalf("unexpected pruned chain %v", got)
	}
}

func TestFilterByTeam_NotFound(t *testing.T) {
	_, root, _ := NewHierarchyBuilder().Build(sampleTeams())

	_, err := NewHierarchyFilter().FilterByTeam(root, "eng")
	if !errors.Is(err, domain.ErrTeamNotFound) {
		t.Fatalf("expected ErrTeamNotFound for case mismatch, got %v", err)
	}
	if !strings.Contains(err.Error(), `Team "eng" not found`) {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestFilterByTeam_RebuildFromPrunedTreeIsStable(t *testing.T) {
	_, root, _ := NewHierarchyBuilder().Build(append(sampleTeams(), team("API", "Backend", "Gus", nil)))
	filter := NewHierarchyFilter()

	first, err := filter.FilterByTeam(root, "Backend")
	if err != nil {
		t.Fatalf("filter: %v", err)
	}

	records := first.Flatten()
	if err := NewHierarchyValidator().Validate(records); err != nil {
		t.Fatalf("pruned records should validate: %v", err)
	}
	_, rebuilt, err := NewHierarchyBuilder().Build(records)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	second, err := filter.FilterByTeam(rebuilt, "Backend")
	if err != nil {
		t.Fatalf("refilter: %v", err)
	}
	if !reflect.DeepEqual(first.Flatten(), second.Flatten()) {
		t.Fatalf("pruned shape changed:\n%v\n%v", first.Flatten(), second.Flatten())
	}
}

func chainTeams(n int) []domain.Team {
	teams := make([]domain.Team, n)
	teams[0] = team("t0", "", "m", nil)
	for i := 1; i < n; i++ {
		teams[i] = team(fmt.Sprintf("t%d", i), fmt.Sprintf("t%d", i-1), "m", nil)
	}
	return teams
}

func fanOutTeams(n int) []domain.Team {
	teams := make([]domain.Team, 0, n+1)
	teams = append(teams, team("root", "", "m", nil))
	for i := 0; i < n; i++ {
		teams = append(teams, team(fmt.Sprintf("c%d", i), "root", "m", nil))
	}
	return teams
}

func chainDepth(n *domain.TeamNode) int {
	d := 1
	for n.ChildCount() > 0 {
		n = n.Children()[0]
		d++
	}
	return d
}

func TestDeepChain_ValidateBuildFilter(t *testing.T) {
	const n = 100000
	teams := chainTeams(n)
	start := time.Now()

	if err := NewHierarchyValidator().Validate(teams); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	rootName, root, err := NewHierarchyBuilder().Build(teams)
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	if rootName != "t0" || chainDepth(root) != n {
		t.Fatalf("expected chain of %d, got %d", n, chainDepth(root))
	}

	leaf := fmt.Sprintf("t%d", n-1)
	pruned, err := NewHierarchyFilter().FilterByTeam(root, leaf)
	if err != nil {
		t.Fatalf("unexpected filter error: %v", err)
	}
	if chainDepth(pruned) != n || pruned == root {
		t.Fatalf("expected a cloned chain of %d, got %d", n, chainDepth(pruned))
	}

	if _, err := NewHierarchyFilter().FilterByTeam(root, "missing"); !errors.Is(err, domain.ErrTeamNotFound) {
		t.Fatalf("expected ErrTeamNotFound, got %v", err)
	}

	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("deep chain pipeline took %v", elapsed)
	}
}

func TestWideFanOut_BuildFilter(t *testing.T) {
	const n = 100000
	teams := fanOutTeams(n)
	start := time.Now()

	_, root, err := NewHierarchyBuilder().Build(teams)
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	if root.ChildCount() != n {
		t.Fatalf("expected %d children, got %d", n, root.ChildCount())
	}

	last := fmt.Sprintf("c%d", n-1)
	pruned, err := NewHierarchyFilter().FilterByTeam(root, last)
	if err != nil {
		t.Fatalf("unexpected filter error: %v", err)
	}
	if got := names(pruned); len(got) != 1 || got[0] != last {
		t.Fatalf("expected only %s under root, got %d children", last, len(got))
	}
	if root.ChildCount() != n {
		t.Fatal("filter must not modify the input tree")
	}

	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("wide fan-out pipeline took %v", elapsed)
	}
}
