// Package guard decides whether a console page or API route may be served
// for a session state. The same table is enforced by the HTTP edge and by the
// Go client, so the two can never drift.
package guard

import (
	"fmt"
	"net/url"
	"strings"

	"showroom/internal/model"
	"showroom/internal/session"
)

// Kind is the shape of a route requirement.
type Kind int

const (
	KindNone Kind = iota
	KindApproved
	KindRole
	KindRoleOrHigher
)

// Requirement is what a route declares about who may see it.
type Requirement struct {
	Kind Kind
	Role model.Role
}

// None lets everyone through, signed in or not.
func None() Requirement { return Requirement{Kind: KindNone} }

// Approved requires an approved profile of any role.
func Approved() Requirement { return Requirement{Kind: KindApproved} }

// Role requires exactly role r.
func Role(r model.Role) Requirement { return Requirement{Kind: KindRole, Role: r} }

// RoleOrHigher requires role r or any role ranked above it.
func RoleOrHigher(r model.Role) Requirement { return Requirement{Kind: KindRoleOrHigher, Role: r} }

func (r Requirement) String() string {
	switch r.Kind {
	case KindNone:
		return "none"
	case KindApproved:
		return "approved"
	case KindRole:
		return fmt.Sprintf("role(%s)", r.Role)
	case KindRoleOrHigher:
		return fmt.Sprintf("roleOrHigher(%s)", r.Role)
	default:
		return "unknown"
	}
}

// Outcome is the result of a guard decision.
type Outcome int

const (
	// OutcomeWait means the session is still loading.
	OutcomeWait Outcome = iota
	OutcomeAllow
	OutcomeSignIn
	OutcomePending
	OutcomeRejected
	OutcomeForbidden
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWait:
		return "wait"
	case OutcomeAllow:
		return "allow"
	case OutcomeSignIn:
		return "sign_in"
	case OutcomePending:
		return "pending"
	case OutcomeRejected:
		return "rejected"
	case OutcomeForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Error codes carried by redirects in the error query parameter.
const (
	CodeUnauthorized    = "unauthorized"
	CodeForbidden       = "forbidden"
	CodeAccountRejected = "account_rejected"
	CodeApprovalPending = "approval_pending"
)

// Query parameters read by the sign-in page.
const (
	ParamReturnTo = "returnTo"
	ParamError    = "error"
)

// Decision is a guard verdict. Target is set for every redirect.
type Decision struct {
	Outcome Outcome `json:"outcome"`
	Target  string  `json:"target,omitempty"`
	Code    string  `json:"code,omitempty"`
}

// Redirect reports whether the decision sends the user elsewhere.
func (d Decision) Redirect() bool {
	return d.Outcome != OutcomeWait && d.Outcome != OutcomeAllow
}

// Paths are the console pages the guard redirects to.
type Paths struct {
	SignIn    string
	Pending   string
	Forbidden string
}

// DefaultPaths returns the console's page locations.
func DefaultPaths() Paths {
	return Paths{
		SignIn:    "/sign-in",
		Pending:   "/pending-approval",
		Forbidden: "/",
	}
}

// Decide applies the guard rules in priority order; the first match wins.
//
//  1. loading: wait
//  2. requirement none: allow
//  3. not authenticated: sign in, returning to requestedPath
//  4. profile pending or unknown: pending-approval page
//  5. profile rejected: sign in with account_rejected
//  6. role requirement not met: forbidden
//  7. allow
func Decide(s session.State, req Requirement, requestedPath string, paths Paths) Decision {
	if s.IsLoading() {
		return Decision{Outcome: OutcomeWait}
	}
	if req.Kind == KindNone {
		return Decision{Outcome: OutcomeAllow}
	}
	if !s.IsAuthenticated() {
		return Decision{
			Outcome: OutcomeSignIn,
			Target:  withQuery(paths.SignIn, ParamReturnTo, SafeReturnTo(requestedPath)),
			Code:    CodeUnauthorized,
		}
	}
	if s.Profile == nil || s.Profile.Status == model.StatusPending {
		return Decision{Outcome: OutcomePending, Target: paths.Pending, Code: CodeApprovalPending}
	}
	if s.Profile.Status != model.StatusApproved {
		return Decision{
			Outcome: OutcomeRejected,
			Target:  withQuery(paths.SignIn, ParamError, CodeAccountRejected),
			Code:    CodeAccountRejected,
		}
	}
	if (req.Kind == KindRole && !s.HasRole(req.Role)) ||
		(req.Kind == KindRoleOrHigher && !s.HasRoleOrHigher(req.Role)) {
		return Decision{
			Outcome: OutcomeForbidden,
			Target:  withQuery(paths.Forbidden, ParamError, CodeForbidden),
			Code:    CodeForbidden,
		}
	}
	return Decision{Outcome: OutcomeAllow}
}

// SafeReturnTo returns raw when it is a path on this site and "/" otherwise.
func SafeReturnTo(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return "/"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return raw
}

func withQuery(path, key, value string) string {
	return path + "?" + url.Values{key: {value}}.Encode()
}
