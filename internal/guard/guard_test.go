package guard

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"showroom/internal/model"
	"showroom/internal/session"
)

func signedIn(role model.Role, status model.ProfileStatus) session.State {
	id := uuid.New()
	return session.Resolved(
		session.Identity{ID: id.String(), Email: "user@example.com"},
		&model.Profile{ID: id, Email: "user@example.com", Role: role, Status: status},
	)
}

func TestDecide(t *testing.T) {
	paths := DefaultPaths()

	tests := []struct {
		name  string
		state session.State
		req   Requirement
		path  string
		want  Decision
	}{
		{
			name:  "loading waits",
			state: session.State{Phase: session.PhaseLoading},
			req:   RoleOrHigher(model.RoleGeneral),
			path:  "/projects",
			want:  Decision{Outcome: OutcomeWait},
		},
		{
			name:  "loading waits on a public page too",
			state: session.State{Phase: session.PhaseLoading},
			req:   None(),
			path:  "/sign-in",
			want:  Decision{Outcome: OutcomeWait},
		},
		{
			name:  "anonymous requesting projects signs in with return path",
			state: session.Anonymous(),
			req:   RoleOrHigher(model.RoleGeneral),
			path:  "/projects",
			want:  Decision{Outcome: OutcomeSignIn, Target: "/sign-in?returnTo=%2Fprojects", Code: CodeUnauthorized},
		},
		{
			name:  "anonymous on public page",
			state: session.Anonymous(),
			req:   None(),
			path:  "/sign-in",
			want:  Decision{Outcome: OutcomeAllow},
		},
		{
			name:  "pending user on public page",
			state: signedIn(model.RoleGeneral, model.StatusPending),
			req:   None(),
			path:  "/pending-approval",
			want:  Decision{Outcome: OutcomeAllow},
		},
		{
			name:  "pending user",
			state: signedIn(model.RoleMaster, model.StatusPending),
			req:   Approved(),
			path:  "/",
			want:  Decision{Outcome: OutcomePending, Target: "/pending-approval", Code: CodeApprovalPending},
		},
		{
			name:  "unknown profile is treated as pending",
			state: session.Resolved(session.Identity{ID: "u1"}, nil),
			req:   RoleOrHigher(model.RoleGeneral),
			path:  "/items",
			want:  Decision{Outcome: OutcomePending, Target: "/pending-approval", Code: CodeApprovalPending},
		},
		{
			name:  "rejected user",
			state: signedIn(model.RoleAdmin, model.StatusRejected),
			req:   RoleOrHigher(model.RoleGeneral),
			path:  "/items",
			want:  Decision{Outcome: OutcomeRejected, Target: "/sign-in?error=account_rejected", Code: CodeAccountRejected},
		},
		{
			name:  "general requesting master page is forbidden",
			state: signedIn(model.RoleGeneral, model.StatusApproved),
			req:   Role(model.RoleMaster),
			path:  "/users",
			want:  Decision{Outcome: OutcomeForbidden, Target: "/?error=forbidden", Code: CodeForbidden},
		},
		{
			name:  "admin below master",
			state: signedIn(model.RoleAdmin, model.StatusApproved),
			req:   RoleOrHigher(model.RoleMaster),
			path:  "/users",
			want:  Decision{Outcome: OutcomeForbidden, Target: "/?error=forbidden", Code: CodeForbidden},
		},
		{
			name:  "master is not exactly admin",
			state: signedIn(model.RoleMaster, model.StatusApproved),
			req:   Role(model.RoleAdmin),
			path:  "/reports",
			want:  Decision{Outcome: OutcomeForbidden, Target: "/?error=forbidden", Code: CodeForbidden},
		},
		{
			name:  "master or higher",
			state: signedIn(model.RoleMaster, model.StatusApproved),
			req:   RoleOrHigher(model.RoleAdmin),
			path:  "/projects",
			want:  Decision{Outcome: OutcomeAllow},
		},
		{
			name:  "approved general",
			state: signedIn(model.RoleGeneral, model.StatusApproved),
			req:   Approved(),
			path:  "/",
			want:  Decision{Outcome: OutcomeAllow},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.state, tt.req, tt.path, paths)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got.Outcome != OutcomeAllow && got.Outcome != OutcomeWait, got.Redirect())
		})
	}
}

// Every state/requirement pair maps to exactly one known outcome.
func TestDecideIsTotal(t *testing.T) {
	states := []session.State{{}, {Phase: session.PhaseLoading}, session.Anonymous(), session.Resolved(session.Identity{ID: "u1"}, nil)}
	for _, role := range model.Roles() {
		for _, status := range []model.ProfileStatus{model.StatusPending, model.StatusApproved, model.StatusRejected} {
			states = append(states, signedIn(role, status))
		}
	}
	reqs := []Requirement{None(), Approved()}
	for _, role := range model.Roles() {
		reqs = append(reqs, Role(role), RoleOrHigher(role))
	}

	for _, s := range states {
		for _, req := range reqs {
			d := Decide(s, req, "/x", DefaultPaths())
			assert.NotEqual(t, "unknown", d.Outcome.String())
			if d.Redirect() {
				assert.NotEmpty(t, d.Target, "%s %s", s.Phase, req)
			}
		}
	}
}

func TestSafeReturnTo(t *testing.T) {
	tests := map[string]string{
		"":                     "/",
		"/projects":            "/projects",
		"/items/42?tab=photos": "/items/42?tab=photos",
		"//evil.example.com":   "/",
		"/\\evil.example.com":  "/",
		"https://evil.example": "/",
		"projects":             "/",
	}
	for in, want := range tests {
		assert.Equal(t, want, SafeReturnTo(in), in)
	}
}

func TestAnonymousRedirectIgnoresForeignReturnTo(t *testing.T) {
	d := Decide(session.Anonymous(), Approved(), "//evil.example.com", DefaultPaths())
	assert.Equal(t, "/sign-in?returnTo=%2F", d.Target)
}
