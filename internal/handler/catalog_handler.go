package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"showroom/internal/middleware"
	"showroom/internal/model"
	"showroom/internal/repository"
	"showroom/internal/service"
)

// CatalogHandler serves list/get/create/update/delete for one catalog entity.
// decode binds and validates a request body into an apply function, so create
// and update share one request type.
type CatalogHandler[T any, P service.OwnedPtr[T]] struct {
	service *service.CatalogService[T, P]
	decode  func(c echo.Context) (func(*T), error)
}

// Page is a page of catalog rows.
type Page[T any] struct {
	Data   []T   `json:"data"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// BrandRequest creates or replaces a brand.
type BrandRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description"`
	WebsiteURL  string `json:"website_url" validate:"omitempty,url"`
	LogoURL     string `json:"logo_url" validate:"omitempty,url"`
}

// TagRequest creates or replaces a tag. The slug defaults to the name.
type TagRequest struct {
	Name string `json:"name" validate:"required,max=100"`
	Slug string `json:"slug" validate:"omitempty,max=100"`
}

// ItemRequest creates or replaces an item. Omitting tag_ids keeps the current tags.
type ItemRequest struct {
	Name        string          `json:"name" validate:"required,max=255"`
	Description string          `json:"description"`
	ImageURL    string          `json:"image_url" validate:"omitempty,url"`
	BrandID     *uuid.UUID      `json:"brand_id"`
	Price       decimal.Decimal `json:"price" swaggertype:"string"`
	TagIDs      []uuid.UUID     `json:"tag_ids"`
}

// ProjectRequest creates or replaces a project. Omitting item_ids keeps the current items.
type ProjectRequest struct {
	Title         string      `json:"title" validate:"required,max=255"`
	Client        string      `json:"client" validate:"max=255"`
	Location      string      `json:"location" validate:"max=255"`
	Description   string      `json:"description"`
	CoverImageURL string      `json:"cover_image_url" validate:"omitempty,url"`
	CompletedOn   *time.Time  `json:"completed_on"`
	Published     bool        `json:"published"`
	ItemIDs       []uuid.UUID `json:"item_ids"`
}

// NewBrandHandler creates the brand handler.
func NewBrandHandler(svc *service.CatalogService[model.Brand, *model.Brand]) *CatalogHandler[model.Brand, *model.Brand] {
	return &CatalogHandler[model.Brand, *model.Brand]{
		service: svc,
		decode: func(c echo.Context) (func(*model.Brand), error) {
			var req BrandRequest
			if err := bindAndValidate(c, &req); err != nil {
				return nil, err
			}
			return func(b *model.Brand) {
				b.Name = req.Name
				b.Description = req.Description
				b.WebsiteURL = req.WebsiteURL
				b.LogoURL = req.LogoURL
			}, nil
		},
	}
}

// NewTagHandler creates the tag handler.
func NewTagHandler(svc *service.CatalogService[model.Tag, *model.Tag]) *CatalogHandler[model.Tag, *model.Tag] {
	return &CatalogHandler[model.Tag, *model.Tag]{
		service: svc,
		decode: func(c echo.Context) (func(*model.Tag), error) {
			var req TagRequest
			if err := bindAndValidate(c, &req); err != nil {
				return nil, err
			}
			return func(t *model.Tag) {
				t.Name = req.Name
				t.Slug = req.Slug
			}, nil
		},
	}
}

// NewItemHandler creates the item handler.
func NewItemHandler(svc *service.CatalogService[model.Item, *model.Item]) *CatalogHandler[model.Item, *model.Item] {
	return &CatalogHandler[model.Item, *model.Item]{
		service: svc,
		decode: func(c echo.Context) (func(*model.Item), error) {
			var req ItemRequest
			if err := bindAndValidate(c, &req); err != nil {
				return nil, err
			}
			return func(i *model.Item) {
				i.Name = req.Name
				i.Description = req.Description
				i.ImageURL = req.ImageURL
				i.BrandID = req.BrandID
				i.Price = req.Price
				if req.TagIDs != nil {
					i.Tags = make([]model.Tag, 0, len(req.TagIDs))
					for _, id := range req.TagIDs {
						i.Tags = append(i.Tags, model.Tag{ID: id})
					}
				}
			}, nil
		},
	}
}

// NewProjectHandler creates the project handler.
func NewProjectHandler(svc *service.CatalogService[model.Project, *model.Project]) *CatalogHandler[model.Project, *model.Project] {
	return &CatalogHandler[model.Project, *model.Project]{
		service: svc,
		decode: func(c echo.Context) (func(*model.Project), error) {
			var req ProjectRequest
			if err := bindAndValidate(c, &req); err != nil {
				return nil, err
			}
			return func(p *model.Project) {
				p.Title = req.Title
				p.Client = req.Client
				p.Location = req.Location
				p.Description = req.Description
				p.CoverImageURL = req.CoverImageURL
				p.CompletedOn = req.CompletedOn
				p.Published = req.Published
				if req.ItemIDs != nil {
					p.Items = make([]model.Item, 0, len(req.ItemIDs))
					for _, id := range req.ItemIDs {
						p.Items = append(p.Items, model.Item{ID: id})
					}
				}
			}, nil
		},
	}
}

// Register mounts the CRUD routes on g.
func (h *CatalogHandler[T, P]) Register(g *echo.Group, m ...echo.MiddlewareFunc) {
	g.GET("", h.List, m...)
	g.POST("", h.Create, m...)
	g.GET("/:id", h.Get, m...)
	g.PUT("/:id", h.Update, m...)
	g.DELETE("/:id", h.Delete, m...)
}

// List godoc
// @Summary List catalog rows
// @Description Works for /brands, /tags, /items and /projects.
// @Tags catalog
// @Produce json
// @Security BearerAuth
// @Param resource path string true "Catalog resource" Enums(brands, tags, items, projects)
// @Param q query string false "Search by name or title"
// @Param limit query int false "Page size (max 200)"
// @Param offset query int false "Offset"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /{resource} [get]
func (h *CatalogHandler[T, P]) List(c echo.Context) error {
	opts := repository.ListOptions{
		Search: c.QueryParam("q"),
		Limit:  queryInt(c, "limit"),
		Offset: queryInt(c, "offset"),
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	rows, total, err := h.service.List(c.Request().Context(), middleware.StateFrom(c), opts)
	if err != nil {
		return fail(err)
	}
	if rows == nil {
		rows = []T{}
	}
	return c.JSON(http.StatusOK, Page[T]{Data: rows, Total: total, Limit: opts.Limit, Offset: opts.Offset})
}

// Get godoc
// @Summary Get a catalog row
// @Tags catalog
// @Produce json
// @Security BearerAuth
// @Param resource path string true "Catalog resource" Enums(brands, tags, items, projects)
// @Param id path string true "Row ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /{resource}/{id} [get]
func (h *CatalogHandler[T, P]) Get(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	row, err := h.service.Get(c.Request().Context(), middleware.StateFrom(c), id)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, row)
}

// Create godoc
// @Summary Create a catalog row owned by the caller
// @Tags catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param resource path string true "Catalog resource" Enums(brands, tags, items, projects)
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /{resource} [post]
func (h *CatalogHandler[T, P]) Create(c echo.Context) error {
	apply, err := h.decode(c)
	if err != nil {
		return err
	}
	row := new(T)
	apply(row)

	created, err := h.service.Create(c.Request().Context(), middleware.StateFrom(c), row)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusCreated, created)
}

// Update godoc
// @Summary Replace a catalog row
// @Description Admins and masters may edit any row, general users only their own.
// @Tags catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param resource path string true "Catalog resource" Enums(brands, tags, items, projects)
// @Param id path string true "Row ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /{resource}/{id} [put]
func (h *CatalogHandler[T, P]) Update(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	apply, err := h.decode(c)
	if err != nil {
		return err
	}

	updated, err := h.service.Update(c.Request().Context(), middleware.StateFrom(c), id, apply)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, updated)
}

// Delete godoc
// @Summary Delete a catalog row
// @Tags catalog
// @Security BearerAuth
// @Param resource path string true "Catalog resource" Enums(brands, tags, items, projects)
// @Param id path string true "Row ID"
// @Success 204
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /{resource}/{id} [delete]
func (h *CatalogHandler[T, P]) Delete(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.Request().Context(), middleware.StateFrom(c), id); err != nil {
		return fail(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func queryInt(c echo.Context, name string) int {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return 0
	}
	return v
}
