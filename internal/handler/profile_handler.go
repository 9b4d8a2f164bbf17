package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"showroom/internal/errors"
	"showroom/internal/middleware"
	"showroom/internal/model"
	"showroom/internal/service"
)

// ProfileHandler handles profile and user management endpoints.
type ProfileHandler struct {
	profileService service.ProfileService
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(profileService service.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// UpdateProfileRequest changes role and/or status. Omitted fields stay as they are.
type UpdateProfileRequest struct {
	Role   *model.Role          `json:"role,omitempty" validate:"omitempty,oneof=general admin master"`
	Status *model.ProfileStatus `json:"status,omitempty" validate:"omitempty,oneof=pending approved rejected"`
}

// Me godoc
// @Summary Current profile
// @Description Returns the caller's profile row. Pending and rejected profiles are returned too.
// @Tags profiles
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.Profile
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /profiles/me [get]
func (h *ProfileHandler) Me(c echo.Context) error {
	state := middleware.StateFrom(c)
	if state.Profile == nil {
		return fail(errors.ErrNotFound)
	}
	return c.JSON(http.StatusOK, state.Profile)
}

// List godoc
// @Summary List profiles
// @Tags profiles
// @Produce json
// @Security BearerAuth
// @Param status query string false "Filter by status" Enums(pending, approved, rejected)
// @Success 200 {array} model.Profile
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Router /profiles [get]
func (h *ProfileHandler) List(c echo.Context) error {
	profiles, err := h.profileService.List(c.Request().Context(), middleware.StateFrom(c), model.ProfileStatus(c.QueryParam("status")))
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, profiles)
}

// Update godoc
// @Summary Approve, reject or change the role of a profile
// @Tags profiles
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Identity ID"
// @Param request body UpdateProfileRequest true "Changes"
// @Success 200 {object} model.Profile
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /profiles/{id} [patch]
func (h *ProfileHandler) Update(c echo.Context) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var req UpdateProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	profile, err := h.profileService.Update(c.Request().Context(), middleware.StateFrom(c), id, service.ProfileUpdate{
		Role:   req.Role,
		Status: req.Status,
	})
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, profile)
}
