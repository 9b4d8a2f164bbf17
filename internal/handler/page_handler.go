package handler

import (
	"fmt"
	"html"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/labstack/echo/v4"

	"showroom/internal/middleware"
)

// PageHandler serves the console build. Unknown paths fall back to
// index.html so client-side routes load. The edge guard runs before it.
type PageHandler struct {
	dir string
}

// NewPageHandler serves files from dir. An empty dir serves a placeholder page.
func NewPageHandler(dir string) *PageHandler {
	return &PageHandler{dir: dir}
}

// Serve handles GET for every console path.
func (h *PageHandler) Serve(c echo.Context) error {
	if h.dir == "" {
		return h.placeholder(c)
	}

	rel := path.Clean("/" + c.Param("*"))
	file := filepath.Join(h.dir, filepath.FromSlash(rel))
	if info, err := os.Stat(file); err == nil && !info.IsDir() {
		return c.File(file)
	}
	return c.File(filepath.Join(h.dir, "index.html"))
}

func (h *PageHandler) placeholder(c echo.Context) error {
	state := middleware.StateFrom(c)
	who := "anonymous"
	if state.IsAuthenticated() {
		who = state.Identity.Email
	}
	body := fmt.Sprintf(
		"<!doctype html><title>Showroom console</title><h1>%s</h1><p>Signed in as %s.</p>",
		html.EscapeString(c.Request().URL.Path),
		html.EscapeString(who),
	)
	return c.HTML(http.StatusOK, body)
}
