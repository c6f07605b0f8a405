package workflow

import (
	"testing"

	"github.com/managebug/managebug/internal/types"
)

func userWith(id string, role types.Role) *types.User {
	return &types.User{ID: id, Email: id + "@example.com", Role: role}
}

func assigned(b *types.Bug, userID string) *types.Bug {
	out := b.Clone()
	out.AssigneeID = &userID
	return out
}

// corpus builds a mixed pile of bugs across two projects with different
// creators and assignees, plus the managers map covering both projects.
func corpus() ([]*types.Bug, ProjectManagers) {
	bugs := []*types.Bug{
		assigned(&types.Bug{ID: "b1", ProjectID: "p1", Type: types.TypeBug, Title: "crash on save", Status: types.StatusNew, CreatorID: "qa-1"}, "dev-1"),
		{ID: "b2", ProjectID: "p1", Type: types.TypeFeature, Title: "dark mode", Status: types.StatusStarted, CreatorID: "qa-2"},
		assigned(&types.Bug{ID: "b3", ProjectID: "p2", Type: types.TypeBug, Title: "login fails", Status: types.StatusResolved, CreatorID: "qa-1"}, "dev-2"),
		assigned(&types.Bug{ID: "b4", ProjectID: "p2", Type: types.TypeBug, Title: "slow search", Status: types.StatusNew, CreatorID: "qa-2"}, "dev-1"),
	}
	managers := ProjectManagers{"p1": "mgr-1", "p2": "mgr-2"}
	return bugs, managers
}

func ids(bugs []*types.Bug) []string {
	out := make([]string, len(bugs))
	for i, b := range bugs {
		out[i] = b.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFilterPerRole(t *testing.T) {
	bugs, managers := corpus()

	tests := []struct {
		name   string
		caller *types.User
		want   []string
	}{
		{"manager sees own projects only", userWith("mgr-1", types.RoleManager), []string{"b1", "b2"}},
		{"other manager sees the rest", userWith("mgr-2", types.RoleManager), []string{"b3", "b4"}},
		{"developer sees assigned across projects", userWith("dev-1", types.RoleDeveloper), []string{"b1", "b4"}},
		{"developer with one assignment", userWith("dev-2", types.RoleDeveloper), []string{"b3"}},
		{"qa sees created only", userWith("qa-1", types.RoleQA), []string{"b1", "b3"}},
		{"qa with other creations", userWith("qa-2", types.RoleQA), []string{"b2", "b4"}},
		{"unknown role sees nothing", userWith("x-1", types.Role("auditor")), []string{}},
		{"nil caller sees nothing", nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ids(Filter(tt.caller, bugs, managers))
			if !equalIDs(got, tt.want) {
				t.Fatalf("Filter() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilterPreservesOrder(t *testing.T) {
	bugs, managers := corpus()
	caller := userWith("dev-1", types.RoleDeveloper)

	got := Filter(caller, bugs, managers)
	pos := map[string]int{}
	for i, b := range bugs {
		pos[b.ID] = i
	}
	for i := 1; i < len(got); i++ {
		if pos[got[i-1].ID] > pos[got[i].ID] {
			t.Fatalf("relative order changed: %v", ids(got))
		}
	}
}

func TestFilterIsDeterministic(t *testing.T) {
	bugs, managers := corpus()
	caller := userWith("qa-1", types.RoleQA)

	first := ids(Filter(caller, bugs, managers))
	for i := 0; i < 5; i++ {
		if again := ids(Filter(caller, bugs, managers)); !equalIDs(first, again) {
			t.Fatalf("run %d differs: %v vs %v", i, first, again)
		}
	}
}

func TestCanSeeFailsClosed(t *testing.T) {
	bug := assigned(&types.Bug{ID: "b1", ProjectID: "p1", Type: types.TypeBug, Title: "t", Status: types.StatusNew, CreatorID: "qa-1"}, "dev-1")

	tests := []struct {
		name     string
		caller   *types.User
		bug      *types.Bug
		managers ProjectManagers
		want     bool
	}{
		{"nil caller", nil, bug, ProjectManagers{"p1": "mgr-1"}, false},
		{"nil bug", userWith("dev-1", types.RoleDeveloper), nil, nil, false},
		{"unknown role", userWith("dev-1", types.Role("ghost")), bug, ProjectManagers{"p1": "mgr-1"}, false},
		{"manager of missing project", userWith("mgr-1", types.RoleManager), bug, ProjectManagers{}, false},
		{"manager wrong project owner", userWith("mgr-1", types.RoleManager), bug, ProjectManagers{"p1": "mgr-2"}, false},
		{"manager of owning project", userWith("mgr-1", types.RoleManager), bug, ProjectManagers{"p1": "mgr-1"}, true},
		{"assignee developer", userWith("dev-1", types.RoleDeveloper), bug, nil, true},
		{"non-assignee developer", userWith("dev-9", types.RoleDeveloper), bug, nil, false},
		{"creator qa", userWith("qa-1", types.RoleQA), bug, nil, true},
		{"other qa", userWith("qa-9", types.RoleQA), bug, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanSee(tt.caller, tt.bug, tt.managers); got != tt.want {
				t.Fatalf("CanSee() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUnassignedBugInvisibleToDevelopers(t *testing.T) {
	bug := &types.Bug{ID: "b1", ProjectID: "p1", Type: types.TypeBug, Title: "t", Status: types.StatusNew, CreatorID: "qa-1"}
	if CanSee(userWith("dev-1", types.RoleDeveloper), bug, nil) {
		t.Fatal("unassigned bug must not be visible to any developer")
	}
	if !CanSee(userWith("qa-1", types.RoleQA), bug, nil) {
		t.Fatal("creator must still see their unassigned bug")
	}
}
