package guard

import (
	"sort"
	"strings"

	"showroom/internal/model"
	"showroom/internal/session"
)

// Route binds a path prefix to a requirement.
type Route struct {
	Prefix      string
	Requirement Requirement
}

// Table maps paths to requirements. The longest prefix that matches on a
// segment boundary wins; unmatched paths get the fallback.
type Table struct {
	routes   []Route
	fallback Requirement
}

// NewTable builds a table from routes.
func NewTable(fallback Requirement, routes ...Route) *Table {
	sorted := make([]Route, 0, len(routes))
	for _, r := range routes {
		r.Prefix = normalize(r.Prefix)
		sorted = append(sorted, r)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].Prefix) > len(sorted[j].Prefix)
	})
	return &Table{routes: sorted, fallback: fallback}
}

// Lookup returns the requirement for path.
func (t *Table) Lookup(path string) Requirement {
	path = normalize(path)
	for _, r := range t.routes {
		if matches(r.Prefix, path) {
			return r.Requirement
		}
	}
	return t.fallback
}

// Decide looks up path and applies Decide to it.
func (t *Table) Decide(s session.State, path string, paths Paths) Decision {
	return Decide(s, t.Lookup(path), path, paths)
}

// Routes returns the table entries, longest prefix first.
func (t *Table) Routes() []Route {
	return append([]Route(nil), t.routes...)
}

// ConsoleRoutes is the page table of the console.
func ConsoleRoutes() *Table {
	return NewTable(RoleOrHigher(model.RoleGeneral),
		Route{Prefix: "/sign-in", Requirement: None()},
		Route{Prefix: "/sign-up", Requirement: None()},
		Route{Prefix: "/pending-approval", Requirement: None()},
		Route{Prefix: "/auth", Requirement: None()},
		Route{Prefix: "/assets", Requirement: None()},
		Route{Prefix: "/favicon.ico", Requirement: None()},
		Route{Prefix: "/users", Requirement: Role(model.RoleMaster)},
		Route{Prefix: "/projects", Requirement: RoleOrHigher(model.RoleGeneral)},
		Route{Prefix: "/items", Requirement: RoleOrHigher(model.RoleGeneral)},
		Route{Prefix: "/brands", Requirement: RoleOrHigher(model.RoleGeneral)},
		Route{Prefix: "/tags", Requirement: RoleOrHigher(model.RoleGeneral)},
		Route{Prefix: "/", Requirement: Approved()},
	)
}

func normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			return "/"
		}
	}
	return path
}

func matches(prefix, path string) bool {
	if prefix == "/" {
		return true
	}
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
