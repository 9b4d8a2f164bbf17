package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"showroom/internal/model"
	"showroom/internal/session"
)

func TestConsoleRoutesLookup(t *testing.T) {
	table := ConsoleRoutes()

	tests := []struct {
		path string
		want Requirement
	}{
		{path: "/", want: Approved()},
		{path: "", want: Approved()},
		{path: "/sign-in", want: None()},
		{path: "/sign-in?error=forbidden", want: None()},
		{path: "/pending-approval", want: None()},
		{path: "/users", want: Role(model.RoleMaster)},
		{path: "/users/", want: Role(model.RoleMaster)},
		{path: "/users/123/edit", want: Role(model.RoleMaster)},
		{path: "/usersettings", want: Approved()},
		{path: "/projects", want: RoleOrHigher(model.RoleGeneral)},
		{path: "/projects/new", want: RoleOrHigher(model.RoleGeneral)},
		{path: "/brands/1", want: RoleOrHigher(model.RoleGeneral)},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, table.Lookup(tt.path))
		})
	}
}

func TestTableFallback(t *testing.T) {
	table := NewTable(Role(model.RoleAdmin), Route{Prefix: "/open", Requirement: None()})
	assert.Equal(t, None(), table.Lookup("/open/x"))
	assert.Equal(t, Role(model.RoleAdmin), table.Lookup("/closed"))
}

func TestTableDecide(t *testing.T) {
	d := ConsoleRoutes().Decide(session.Anonymous(), "/projects", DefaultPaths())
	assert.Equal(t, OutcomeSignIn, d.Outcome)
	assert.Equal(t, "/sign-in?returnTo=%2Fprojects", d.Target)

	d = ConsoleRoutes().Decide(signedIn(model.RoleGeneral, model.StatusApproved), "/users", DefaultPaths())
	assert.Equal(t, OutcomeForbidden, d.Outcome)
}

func TestRequirementString(t *testing.T) {
	assert.Equal(t, "none", None().String())
	assert.Equal(t, "roleOrHigher(admin)", RoleOrHigher(model.RoleAdmin).String())
	assert.Equal(t, "role(master)", Role(model.RoleMaster).String())
}
