package router

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	"showroom/internal/config"
	"showroom/internal/guard"
	"showroom/internal/handler"
	"showroom/internal/logger"
	edge "showroom/internal/middleware"
	"showroom/internal/model"
)

// Handlers groups everything Register mounts.
type Handlers struct {
	Auth     *handler.AuthHandler
	Profiles *handler.ProfileHandler
	Brands   *handler.CatalogHandler[model.Brand, *model.Brand]
	Tags     *handler.CatalogHandler[model.Tag, *model.Tag]
	Items    *handler.CatalogHandler[model.Item, *model.Item]
	Projects *handler.CatalogHandler[model.Project, *model.Project]
	Pages    *handler.PageHandler
}

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	log *slog.Logger,
	secret []byte,
	tokens edge.Blacklist,
	profiles edge.ProfileLoader,
	g *edge.Guard,
	h Handlers,
	ready func() error,
) {
	e.Use(middleware.RequestID())
	e.Use(otelecho.Middleware(cfg.ServiceName))
	e.Use(logger.RequestLogger(log))
	e.Use(middleware.Recover())

	// Add validator
	e.Validator = handler.NewValidator()

	e.GET("/healthz", func(c echo.Context) error {
		if ready != nil {
			if err := ready(); err != nil {
				return c.String(http.StatusServiceUnavailable, "unavailable")
			}
		}
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	session := []echo.MiddlewareFunc{edge.JWT(secret), edge.Session(tokens, profiles, log)}

	api := e.Group("/api", session...)

	// Public routes
	api.POST("/auth/sign-up", h.Auth.SignUp)
	api.POST("/auth/sign-in", h.Auth.SignIn)
	api.POST("/auth/refresh", h.Auth.Refresh)
	api.GET("/auth/confirm", h.Auth.Confirm)
	api.GET("/auth/session", h.Auth.Session)

	// Any identity, whatever the profile status
	api.POST("/auth/sign-out", h.Auth.SignOut, g.RequireIdentity())
	api.GET("/auth/events", h.Auth.Events, g.RequireIdentity())
	api.GET("/profiles/me", h.Profiles.Me, g.RequireIdentity())

	// User management
	master := g.Require(guard.Role(model.RoleMaster))
	api.GET("/profiles", h.Profiles.List, master)
	api.PATCH("/profiles/:id", h.Profiles.Update, master)

	// Catalog
	member := g.Require(guard.RoleOrHigher(model.RoleGeneral))
	h.Brands.Register(api.Group("/brands"), member)
	h.Tags.Register(api.Group("/tags"), member)
	h.Items.Register(api.Group("/items"), member)
	h.Projects.Register(api.Group("/projects"), member)

	// Console pages behind the edge guard. Unknown /api paths never reach
	// them: the api group answers 404.
	e.GET("/*", h.Pages.Serve, edge.JWT(secret), edge.Session(tokens, profiles, log), g.Pages())
}
