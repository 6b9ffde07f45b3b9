package controllers

import (
	"context"
	"log/slog"
	"net/http"

	"eventportal/internal/delivery/http/helpers"
	"eventportal/internal/domain"
)

// ListUsersResponse is the data of GET /api/admin/users.
type ListUsersResponse struct {
	Items      []*domain.User         `json:"items"`
	Pagination helpers.PaginationMeta `json:"pagination"`
}

// AdminController serves routes mounted behind RequireRole(admin). ListEventRegistrations is
// also mounted for organizers, so it relies on the service for authorization.
type AdminController struct {
	Logger        *slog.Logger
	Service       domain.AdminService
	Registrations domain.RegistrationService
}

func NewAdminController(logger *slog.Logger, svc domain.AdminService, registrations domain.RegistrationService) *AdminController {
	return &AdminController{
		Logger:        logger,
		Service:       svc,
		Registrations: registrations,
	}
}

// ListUsers godoc
// @Summary List users
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} helpers.APIResponse "data contains items and pagination"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /api/admin/users [get]
func (c *AdminController) ListUsers(w http.ResponseWriter, r *http.Request) {
	params := helpers.ParsePagination(r)
	users, total, err := c.Service.ListUsers(r.Context(), params)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	if users == nil {
		users = []*domain.User{}
	}
	meta := helpers.NewPaginationMeta(params.Page, params.PageSize, total)
	helpers.WriteJSONSuccess(w, http.StatusOK, ListUsersResponse{Items: users, Pagination: meta})
}

// GrantRole godoc
// @Summary Grant a role
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param userID path string true "User ID"
// @Param role path string true "Role code (attendee or admin)"
// @Success 204 "No Content"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /api/admin/users/{userID}/roles/{role} [put]
func (c *AdminController) GrantRole(w http.ResponseWriter, r *http.Request) {
	c.changeRole(w, r, c.Service.GrantRole)
}

// RevokeRole godoc
// @Summary Revoke a role
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param userID path string true "User ID"
// @Param role path string true "Role code (attendee or admin)"
// @Success 204 "No Content"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /api/admin/users/{userID}/roles/{role} [delete]
func (c *AdminController) RevokeRole(w http.ResponseWriter, r *http.Request) {
	c.changeRole(w, r, c.Service.RevokeRole)
}

func (c *AdminController) changeRole(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, userID, role string) error) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	role, ok := pathID(w, r, "role")
	if !ok {
		return
	}
	if err := apply(r.Context(), userID, role); err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListEventRegistrations godoc
// @Summary List an event's registrations
// @Description Available to admins and to the event's organizer.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Success 200 {object} helpers.APIResponse "data contains the registrations"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /api/admin/events/{eventID}/registrations [get]
// @Router /api/events/{eventID}/registrations [get]
func (c *AdminController) ListEventRegistrations(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	eventID, ok := pathID(w, r, "eventID")
	if !ok {
		return
	}
	regs, err := c.Registrations.ListEventRegistrations(r.Context(), eventID, caller)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	if regs == nil {
		regs = []*domain.Registration{}
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, regs)
}
