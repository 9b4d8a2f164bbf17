package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"showroom/internal/activity"
	"showroom/internal/errors"
	"showroom/internal/guard"
)

// Guard enforces route requirements against the resolved session state.
type Guard struct {
	table    *guard.Table
	paths    guard.Paths
	activity activity.Sink
}

// NewGuard creates a guard over a route table.
func NewGuard(table *guard.Table, paths guard.Paths, sink activity.Sink) *Guard {
	return &Guard{table: table, paths: paths, activity: sink}
}

// Pages redirects page requests the table does not allow for the caller.
func (g *Guard) Pages() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.RequestURI()
			d := g.table.Decide(StateFrom(c), path, g.paths)
			if !d.Redirect() {
				return next(c)
			}
			g.recordForbidden(c, d)
			return c.Redirect(http.StatusFound, d.Target)
		}
	}
}

// Require rejects API requests that do not meet req with a JSON error.
func (g *Guard) Require(req guard.Requirement) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			d := guard.Decide(StateFrom(c), req, c.Request().URL.RequestURI(), g.paths)
			if !d.Redirect() {
				return next(c)
			}
			g.recordForbidden(c, d)
			status, message := decisionStatus(d)
			return echo.NewHTTPError(status, errors.ErrorResponse{Error: message, Code: d.Code})
		}
	}
}

// RequireIdentity rejects anonymous API requests. Any profile status passes.
func (g *Guard) RequireIdentity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !StateFrom(c).IsAuthenticated() {
				return echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{
					Error: errors.ErrUnauthenticated.Error(),
					Code:  guard.CodeUnauthorized,
				})
			}
			return next(c)
		}
	}
}

func (g *Guard) recordForbidden(c echo.Context, d guard.Decision) {
	if d.Outcome != guard.OutcomeForbidden && d.Outcome != guard.OutcomeRejected {
		return
	}
	g.activity.Record(c.Request().Context(), activity.Event{
		Type:     activity.TypeAccessForbidden,
		ActorID:  StateFrom(c).IdentityID(),
		Resource: c.Request().URL.Path,
		Detail:   map[string]any{"outcome": d.Outcome.String(), "method": c.Request().Method},
	})
}

func decisionStatus(d guard.Decision) (int, string) {
	switch d.Outcome {
	case guard.OutcomeSignIn:
		return http.StatusUnauthorized, errors.ErrUnauthenticated.Error()
	case guard.OutcomePending:
		return http.StatusForbidden, errors.ErrApprovalPending.Error()
	case guard.OutcomeRejected:
		return http.StatusForbidden, "account rejected"
	default:
		return http.StatusForbidden, errors.ErrForbidden.Error()
	}
}
